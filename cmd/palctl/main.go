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
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/novatechflow/natpal/internal/config"
	"github.com/novatechflow/natpal/internal/discovery"
	"github.com/novatechflow/natpal/pkg/pal"
	"github.com/novatechflow/natpal/pkg/protocol"
	"github.com/novatechflow/natpal/pkg/records"
	"github.com/novatechflow/natpal/pkg/trace"
)

var subKeys = map[string]int{
	"check":   records.SubKeyCheck,
	"raw":     records.SubKeyRaw,
	"save":    records.SubKeySave,
	"execute": records.SubKeyExecute,
	"debug":   records.SubKeyDebug,
	"list":    records.SubKeyList,
	"read":    records.SubKeyRead,
	"logon":   records.SubKeyLogon,
	"edit":    records.SubKeyEdit,
}

type options struct {
	subKey   int
	library  string
	dbid     int
	fnr      int
	types    []protocol.Type
	repeat   int
	interval time.Duration
}

func main() {
	var (
		configPath string
		opName     string
		typeList   string
		opts       options
	)
	flag.StringVar(&configPath, "config", "", "Path to palctl config")
	flag.StringVar(&opName, "op", "check", "Operation sub key name or number")
	flag.StringVar(&opts.library, "library", "", "Library sent as LibId with the operation")
	flag.IntVar(&opts.dbid, "dbid", 0, "Database id of the library")
	flag.IntVar(&opts.fnr, "fnr", 0, "File number of the library")
	flag.StringVar(&typeList, "types", "", "Comma separated type keys to print; empty prints every key")
	flag.IntVar(&opts.repeat, "repeat", 1, "Number of transactions to run")
	flag.DurationVar(&opts.interval, "interval", time.Second, "Pause between repeated transactions")
	flag.Parse()

	logger := newLogger()

	cfg, err := config.Load(configPath)
	if err != nil {
		logger.Error("load config", "error", err)
		os.Exit(1)
	}
	if opts.subKey, err = parseSubKey(opName); err != nil {
		logger.Error("parse -op", "error", err)
		os.Exit(2)
	}
	if opts.types, err = parseTypes(typeList); err != nil {
		logger.Error("parse -types", "error", err)
		os.Exit(2)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if cfg.Metrics.Addr != "" {
		startMetricsServer(ctx, cfg.Metrics.Addr, logger)
	}

	if err := run(ctx, cfg, opts, logger, os.Stdout); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("palctl failed", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg config.Config, opts options, logger *slog.Logger, out io.Writer) error {
	if err := resolveServer(ctx, &cfg, logger); err != nil {
		return err
	}
	tracer, err := buildTracer(ctx, cfg.Trace, logger)
	if err != nil {
		return err
	}
	if tracer != nil {
		go tracer.Run(ctx, cfg.Trace.FlushInterval)
		defer func() {
			if err := tracer.Close(context.Background()); err != nil {
				logger.Warn("close tracer", "error", err)
			}
		}()
	}

	client := pal.New(pal.Config{
		ReadTimeout:    cfg.Server.ReadTimeout,
		DialTimeout:    cfg.Server.DialTimeout,
		PalVersion:     cfg.Session.PalVersion,
		NdvType:        cfg.Session.NdvType,
		ServerCodePage: cfg.Session.ServerCodePage,
		SessionID:      cfg.Session.SessionID,
		UserID:         cfg.Session.UserID,
		Logger:         logger,
		Tracer:         tracer,
	})
	if err := client.Connect(ctx, cfg.Server.Host, cfg.Server.Port); err != nil {
		return err
	}
	defer func() {
		if err := client.Disconnect(); err != nil {
			logger.Warn("disconnect", "error", err)
		}
	}()

	for i := 1; i <= opts.repeat; i++ {
		if err := transact(client, i, opts, out); err != nil {
			return err
		}
		if i == opts.repeat {
			break
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(opts.interval):
		}
	}
	return nil
}

// transact sends one operation and prints the reply buckets.
func transact(client *pal.Pal, tx int, opts options, out io.Writer) error {
	if err := client.Add(records.NewOperation(tx, opts.subKey)); err != nil {
		return fmt.Errorf("add operation: %w", err)
	}
	if opts.library != "" {
		if err := client.Add(records.NewLibID(opts.dbid, opts.fnr, opts.library)); err != nil {
			return fmt.Errorf("add library: %w", err)
		}
	}
	if err := client.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	keys := opts.types
	if len(keys) == 0 {
		for k := protocol.Type(0); k <= protocol.MaxType; k++ {
			keys = append(keys, k)
		}
	}
	fmt.Fprintf(out, "# transaction %d\n", tx)
	for _, key := range keys {
		recs, err := client.Retrieve(key)
		if err != nil {
			return fmt.Errorf("retrieve %s: %w", key, err)
		}
		for _, rec := range recs {
			printRecord(out, key, rec)
		}
	}
	return nil
}

func printRecord(out io.Writer, key protocol.Type, rec protocol.Record) {
	if raw, ok := rec.(*protocol.RawRecord); ok {
		fmt.Fprintf(out, "%-20s raw %d bytes %q\n", key, len(raw.Data), raw.Data)
		return
	}
	fmt.Fprintf(out, "%-20s %+v\n", key, rec)
}

func resolveServer(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	if len(cfg.Discovery.Endpoints) == 0 {
		return nil
	}
	resolver, err := discovery.New(discovery.Config{
		Endpoints:   cfg.Discovery.Endpoints,
		DialTimeout: cfg.Discovery.DialTimeout,
	})
	if err != nil {
		return err
	}
	defer resolver.Close()
	ep, err := resolver.Resolve(ctx, cfg.Discovery.Key)
	if err != nil {
		return err
	}
	cfg.Server.Host = ep.Host
	cfg.Server.Port = ep.Port
	if ep.PalVersion > 0 {
		cfg.Session.PalVersion = ep.PalVersion
	}
	if ep.NdvType > 0 {
		cfg.Session.NdvType = ep.NdvType
	}
	logger.Info("resolved pal server", "key", cfg.Discovery.Key, "endpoint", ep.String())
	return nil
}

func buildTracer(ctx context.Context, cfg config.TraceConfig, logger *slog.Logger) (*trace.Tracer, error) {
	if !cfg.Enabled {
		return nil, nil
	}
	var sink trace.Sink
	switch cfg.Sink {
	case config.SinkFile:
		fileSink, err := trace.NewFileSink(cfg.File)
		if err != nil {
			return nil, err
		}
		sink = fileSink
	case config.SinkS3:
		store, err := trace.NewS3Store(ctx, trace.S3Config{
			Bucket:         cfg.S3.Bucket,
			Region:         cfg.S3.Region,
			Endpoint:       cfg.S3.Endpoint,
			ForcePathStyle: cfg.S3.ForcePathStyle,
			KMSKeyARN:      cfg.S3.KMSKeyARN,
		})
		if err != nil {
			return nil, err
		}
		if err := store.EnsureBucket(ctx); err != nil {
			return nil, err
		}
		sink = trace.NewS3Sink(store, cfg.S3.Prefix)
	case config.SinkKafka:
		kafkaSink, err := trace.NewKafkaSink(cfg.Kafka.Brokers, cfg.Kafka.Topic)
		if err != nil {
			return nil, err
		}
		sink = kafkaSink
	default:
		return nil, fmt.Errorf("unknown trace sink %q", cfg.Sink)
	}
	logger.Info("packet trace enabled", "sink", cfg.Sink)
	return trace.New(trace.Config{
		MaxEntries:    cfg.MaxEntries,
		MaxBytes:      cfg.MaxBytes,
		FlushInterval: cfg.FlushInterval,
	}, sink, logger), nil
}

func startMetricsServer(ctx context.Context, addr string, logger *slog.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Warn("metrics server stopped", "addr", addr, "error", err)
		}
	}()
}

func parseSubKey(name string) (int, error) {
	if v, ok := subKeys[strings.ToLower(strings.TrimSpace(name))]; ok {
		return v, nil
	}
	v, err := strconv.Atoi(strings.TrimSpace(name))
	if err != nil {
		return 0, fmt.Errorf("unknown operation %q", name)
	}
	return v, nil
}

func parseTypes(list string) ([]protocol.Type, error) {
	var out []protocol.Type
	for _, part := range strings.Split(list, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		v, err := strconv.Atoi(part)
		if err != nil || !protocol.Type(v).Valid() {
			return nil, fmt.Errorf("invalid type key %q", part)
		}
		out = append(out, protocol.Type(v))
	}
	return out, nil
}

func newLogger() *slog.Logger {
	level := slog.LevelWarn
	switch strings.ToLower(os.Getenv("PALCTL_LOG_LEVEL")) {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "warn", "warning":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}
	handler := slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level:     level,
		AddSource: true,
	})
	return slog.New(handler).With("component", "palctl")
}
