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

// Package server accepts PAL connections and answers each transaction
// with the records returned by a Handler.
package server

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"sync"

	"github.com/novatechflow/natpal/pkg/protocol"
	"github.com/novatechflow/natpal/pkg/records"
)

var errClientDisconnect = errors.New("client sent DISCONNECT")

// Transaction is one request read from a client.
type Transaction struct {
	RemoteAddr string
	Packets    int
	Records    []protocol.Record
}

// Of returns the records of type key in arrival order.
func (t *Transaction) Of(key protocol.Type) []protocol.Record {
	var out []protocol.Record
	for _, rec := range t.Records {
		if rec.Type() == key {
			out = append(out, rec)
		}
	}
	return out
}

// Handler processes a transaction and returns the reply records. Reply
// records of one type key must be contiguous.
type Handler interface {
	Handle(ctx context.Context, tx *Transaction) ([]protocol.Record, error)
}

// HandlerFunc adapts a function to Handler.
type HandlerFunc func(ctx context.Context, tx *Transaction) ([]protocol.Record, error)

func (f HandlerFunc) Handle(ctx context.Context, tx *Transaction) ([]protocol.Record, error) {
	return f(ctx, tx)
}

// EchoHandler replies with every received record.
type EchoHandler struct{}

func (EchoHandler) Handle(ctx context.Context, tx *Transaction) ([]protocol.Record, error) {
	return tx.Records, nil
}

// Server implements PAL TCP handling.
type Server struct {
	Addr    string
	Handler Handler
	// PalVersion is the protocol version assumed for every client. It
	// controls continuation acknowledgements in both directions.
	PalVersion int
	// NewFormat flags every reply header with the request to switch to
	// the new header format.
	NewFormat bool
	Registry  *records.Registry
	Logger    *slog.Logger

	mu       sync.Mutex
	listener net.Listener
	wg       sync.WaitGroup
}

// ListenAndServe starts accepting PAL connections.
func (s *Server) ListenAndServe(ctx context.Context) error {
	if s.Handler == nil {
		return errors.New("server.Server requires a Handler")
	}
	ln, err := net.Listen("tcp", s.Addr)
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.listener = ln
	s.mu.Unlock()
	s.logger().Info("pal server listening", "addr", ln.Addr().String())

	go func() {
		<-ctx.Done()
		_ = ln.Close()
	}()

	for {
		conn, err := ln.Accept()
		if err != nil {
			select {
			case <-ctx.Done():
				return nil
			default:
			}
			if ne, ok := err.(net.Error); ok && ne.Timeout() {
				s.logger().Warn("accept timeout", "error", err)
				continue
			}
			return err
		}
		s.wg.Add(1)
		go func(c net.Conn) {
			defer s.wg.Done()
			s.ServeConn(ctx, c)
		}(conn)
	}
}

// Wait blocks until all connection goroutines exit.
func (s *Server) Wait() {
	s.wg.Wait()
}

// ListenAddress returns the actual listener address if the server has started.
func (s *Server) ListenAddress() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener != nil {
		return s.listener.Addr().String()
	}
	return s.Addr
}

// ServeConn answers transactions on conn until the client disconnects or
// a protocol error occurs. It closes conn before returning.
func (s *Server) ServeConn(ctx context.Context, conn net.Conn) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	defer conn.Close()
	logger := s.logger().With("remote", conn.RemoteAddr().String())
	for {
		tx, err := s.readTransaction(conn)
		if err != nil {
			switch {
			case errors.Is(err, io.EOF), errors.Is(err, errClientDisconnect):
				logger.Debug("pal client closed")
			default:
				logger.Warn("read transaction", "error", err)
			}
			return
		}
		reply, err := s.Handler.Handle(ctx, tx)
		if err != nil {
			logger.Warn("handle transaction", "error", err, "records", len(tx.Records))
			return
		}
		if err := s.writeReply(conn, reply); err != nil {
			logger.Warn("write reply", "error", err)
			return
		}
	}
}

func (s *Server) readTransaction(conn net.Conn) (*Transaction, error) {
	r := protocol.NewStreamReader(func() ([]byte, error) {
		pkt, err := protocol.ReadPacket(conn)
		if err != nil {
			return nil, err
		}
		switch pkt.Control {
		case protocol.ControlDisconnect:
			return nil, errClientDisconnect
		case protocol.ControlNextChunk:
			return nil, fmt.Errorf("%w: continuation ack outside a reply", protocol.ErrUnexpectedReply)
		}
		return pkt.Body, nil
	}, func() error {
		return protocol.WriteControl(conn, protocol.NextChunk())
	})
	r.SetVersion(s.PalVersion)
	r.SetAckBufferFull(true)

	registry := s.registry()
	session := protocol.Session{PalVersion: s.PalVersion}
	tx := &Transaction{RemoteAddr: conn.RemoteAddr().String()}
	for {
		key, data, err := r.Next()
		if errors.Is(err, protocol.ErrTransactionEnd) {
			tx.Packets = r.Packets()
			return tx, nil
		}
		if err != nil {
			return nil, err
		}
		tx.Records = append(tx.Records, registry.Decode(key, data, session))
	}
}

func (s *Server) writeReply(conn net.Conn, reply []protocol.Record) error {
	b := protocol.NewBuilder(func(p []byte) error {
		_, err := conn.Write(p)
		return err
	}, func() error {
		pkt, err := protocol.ReadPacket(conn)
		if err != nil {
			return err
		}
		if pkt.Control != protocol.ControlNextChunk {
			return fmt.Errorf("%w: expected continuation ack", protocol.ErrUnexpectedReply)
		}
		return nil
	})
	b.SetVersion(s.PalVersion)
	b.SetAnnounceFormat(s.NewFormat)
	b.SetBufferFullAck(false)
	b.SetSession(protocol.Session{PalVersion: s.PalVersion})
	for start := 0; start < len(reply); {
		end := start + 1
		for end < len(reply) && reply[end].Type() == reply[start].Type() {
			end++
		}
		if err := b.Add(reply[start:end]...); err != nil {
			return err
		}
		start = end
	}
	return b.Commit()
}

func (s *Server) registry() *records.Registry {
	if s.Registry != nil {
		return s.Registry
	}
	return records.Default()
}

func (s *Server) logger() *slog.Logger {
	if s.Logger != nil {
		return s.Logger
	}
	return slog.Default()
}
