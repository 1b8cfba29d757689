// Copyright 2025 Alexander Alten (novatechflow), NovaTechflow (novatechflow.com).
// This project is supported and financed by Scalytics, Inc. (www.scalytics.io).
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package main

import (
	"context"
	"flag"
	"log/slog"
	"net"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/novatechflow/natpal/internal/discovery"
	"github.com/novatechflow/natpal/pkg/protocol"
	"github.com/novatechflow/natpal/pkg/records"
	"github.com/novatechflow/natpal/pkg/server"
)

func main() {
	var (
		addr       string
		palVersion int
		newFormat  bool
		etcd       string
		key        string
	)
	flag.StringVar(&addr, "addr", envOrDefault("PALMOCK_ADDR", ":2700"), "Listen address")
	flag.IntVar(&palVersion, "pal-version", 47, "Protocol version assumed for clients")
	flag.BoolVar(&newFormat, "new-format", true, "Send replies with the new header format flag")
	flag.StringVar(&etcd, "etcd", os.Getenv("PALMOCK_ETCD_ENDPOINTS"), "Comma separated etcd endpoints to publish the address to")
	flag.StringVar(&key, "key", "/natpal/servers/default", "etcd key to publish the address under")
	flag.Parse()

	logger := newLogger()
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	srv := &server.Server{
		Addr:       addr,
		Handler:    mockHandler(),
		PalVersion: palVersion,
		NewFormat:  newFormat,
		Logger:     logger,
	}
	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe(ctx) }()

	if etcd != "" {
		go publish(ctx, srv, strings.Split(etcd, ","), key, palVersion, logger)
	}

	if err := <-errCh; err != nil {
		logger.Error("pal mock server error", "error", err)
		os.Exit(1)
	}
	srv.Wait()
}

// mockHandler answers LIST operations with a fixed set of system files
// and echoes every other transaction.
func mockHandler() server.Handler {
	return server.HandlerFunc(func(ctx context.Context, tx *server.Transaction) ([]protocol.Record, error) {
		for _, rec := range tx.Of(protocol.TypeOperation) {
			if op, ok := rec.(*records.Operation); ok && op.SubKey == records.SubKeyList {
				return []protocol.Record{
					&records.SystemFile{DatabaseID: 10, FileNumber: 32, Location: "FNAT", ReadOnly: true},
					&records.SystemFile{DatabaseID: 10, FileNumber: 33, Location: "FUSER"},
				}, nil
			}
		}
		return server.EchoHandler{}.Handle(ctx, tx)
	})
}

func publish(ctx context.Context, srv *server.Server, endpoints []string, key string, palVersion int, logger *slog.Logger) {
	resolver, err := discovery.New(discovery.Config{Endpoints: endpoints})
	if err != nil {
		logger.Warn("etcd connect failed", "error", err)
		return
	}
	defer resolver.Close()
	for i := 0; i < 40 && srv.ListenAddress() == srv.Addr; i++ {
		select {
		case <-ctx.Done():
			return
		case <-time.After(50 * time.Millisecond):
		}
	}
	host, portText, err := net.SplitHostPort(srv.ListenAddress())
	if err != nil {
		logger.Warn("listen address", "error", err)
		return
	}
	if host == "" || host == "::" || host == "0.0.0.0" {
		host, _ = os.Hostname()
	}
	port, _ := strconv.Atoi(portText)
	ep := discovery.Endpoint{Host: host, Port: port, PalVersion: palVersion}
	if err := resolver.Publish(ctx, key, ep); err != nil {
		logger.Warn("publish endpoint failed", "error", err)
		return
	}
	logger.Info("published endpoint", "key", key, "endpoint", ep.String())
}

func envOrDefault(key, fallback string) string {
	if val := strings.TrimSpace(os.Getenv(key)); val != "" {
		return val
	}
	return fallback
}

func newLogger() *slog.Logger {
	level := slog.LevelInfo
	switch strings.ToLower(os.Getenv("PALMOCK_LOG_LEVEL")) {
	case "debug":
		level = slog.LevelDebug
	case "warn", "warning":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}
	handler := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level:     level,
		AddSource: true,
	})
	return slog.New(handler).With("component", "palmock")
}
