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

package server

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net"
	"syscall"
	"testing"
	"time"

	"github.com/novatechflow/natpal/pkg/pal"
	"github.com/novatechflow/natpal/pkg/protocol"
	"github.com/novatechflow/natpal/pkg/records"
)

func startConn(t *testing.T, s *Server, version int) (*pal.Pal, <-chan struct{}) {
	t.Helper()
	serverConn, clientConn := net.Pipe()
	done := make(chan struct{})
	go func() {
		defer close(done)
		s.ServeConn(context.Background(), serverConn)
	}()
	client := pal.New(pal.Config{PalVersion: version, SessionID: "S1", UserID: "DEV"})
	if err := client.ConnectConn(clientConn); err != nil {
		t.Fatalf("ConnectConn: %v", err)
	}
	t.Cleanup(func() { _ = client.Disconnect() })
	return client, done
}

func waitDone(t *testing.T, done <-chan struct{}) {
	t.Helper()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatalf("server ServeConn did not exit")
	}
}

func TestServeConnEcho(t *testing.T) {
	s := &Server{Handler: EchoHandler{}, PalVersion: 47}
	client, done := startConn(t, s, 47)

	big := bytes.Repeat([]byte("0123456789"), 900)
	if err := client.Add(records.NewOperation(7, records.SubKeyRead)); err != nil {
		t.Fatalf("Add operation: %v", err)
	}
	if err := client.Add(records.NewStream(big)); err != nil {
		t.Fatalf("Add stream: %v", err)
	}
	if err := client.Commit(); err != nil {
		t.Fatalf("Commit: %v", err)
	}

	streams, err := client.Retrieve(protocol.TypeStream)
	if err != nil {
		t.Fatalf("Retrieve stream: %v", err)
	}
	if len(streams) != 1 || !bytes.Equal(streams[0].(*records.Stream).Data, big) {
		t.Fatalf("stream not echoed intact")
	}
	ops, err := client.Retrieve(protocol.TypeOperation)
	if err != nil {
		t.Fatalf("Retrieve operation: %v", err)
	}
	op := ops[0].(*records.Operation)
	if op.TransactionID != 7 || op.ClientID != "S1" || op.UserID != "DEV" {
		t.Fatalf("unexpected operation %+v", op)
	}

	if err := client.Disconnect(); err != nil {
		t.Fatalf("Disconnect: %v", err)
	}
	waitDone(t, done)
}

func TestServeConnSeveralTransactions(t *testing.T) {
	var seen []int
	handler := HandlerFunc(func(ctx context.Context, tx *Transaction) ([]protocol.Record, error) {
		seen = append(seen, tx.Packets)
		return []protocol.Record{
			&records.SystemFile{DatabaseID: 10, FileNumber: 1, Location: "FNAT"},
			&records.SystemFile{DatabaseID: 10, FileNumber: 2, Location: "FUSER"},
		}, nil
	})
	s := &Server{Handler: handler, PalVersion: 17}
	client, done := startConn(t, s, 17)

	for i := 1; i <= 3; i++ {
		if err := client.Add(records.NewOperation(i, records.SubKeyList)); err != nil {
			t.Fatalf("Add: %v", err)
		}
		if err := client.Commit(); err != nil {
			t.Fatalf("Commit: %v", err)
		}
		files, err := client.Retrieve(protocol.TypeSystemFile)
		if err != nil {
			t.Fatalf("Retrieve: %v", err)
		}
		if len(files) != 2 || files[1].(*records.SystemFile).Location != "FUSER" {
			t.Fatalf("unexpected system files %v", files)
		}
	}
	if err := client.Disconnect(); err != nil {
		t.Fatalf("Disconnect: %v", err)
	}
	waitDone(t, done)
	if len(seen) != 3 || seen[0] != 1 {
		t.Fatalf("unexpected packet counts %v", seen)
	}
}

func TestServeConnClientHangupSkipsHandler(t *testing.T) {
	calls := 0
	s := &Server{Handler: HandlerFunc(func(ctx context.Context, tx *Transaction) ([]protocol.Record, error) {
		calls++
		return nil, nil
	}), PalVersion: 17}
	serverConn, clientConn := net.Pipe()
	done := make(chan struct{})
	go func() {
		defer close(done)
		s.ServeConn(context.Background(), serverConn)
	}()
	_ = clientConn.Close()
	waitDone(t, done)
	if calls != 0 {
		t.Fatalf("handler ran %d times for a client that sent nothing", calls)
	}
}

func TestServeConnBufferFullRoundTrip(t *testing.T) {
	s := &Server{Handler: EchoHandler{}, PalVersion: 17}
	client, done := startConn(t, s, 17)

	// the stream leaves no room for another block header, so both the
	// request and the echoed reply flush a buffer full packet
	stream := bytes.Repeat([]byte("s"), 3900)
	if err := client.Add(records.NewStream(stream)); err != nil {
		t.Fatalf("Add stream: %v", err)
	}
	if err := client.Add(records.NewOperation(1, records.SubKeyRead)); err != nil {
		t.Fatalf("Add operation: %v", err)
	}
	if err := client.Commit(); err != nil {
		t.Fatalf("Commit: %v", err)
	}
	ops, err := client.Retrieve(protocol.TypeOperation)
	if err != nil || len(ops) != 1 {
		t.Fatalf("Retrieve operation: %v %v", ops, err)
	}
	streams, err := client.Retrieve(protocol.TypeStream)
	if err != nil || len(streams) != 1 || !bytes.Equal(streams[0].(*records.Stream).Data, stream) {
		t.Fatalf("Retrieve stream: %d records, %v", len(streams), err)
	}
	if err := client.Disconnect(); err != nil {
		t.Fatalf("Disconnect: %v", err)
	}
	waitDone(t, done)
}

func TestServeConnHandlerError(t *testing.T) {
	s := &Server{Handler: HandlerFunc(func(ctx context.Context, tx *Transaction) ([]protocol.Record, error) {
		return nil, errors.New("library locked")
	}), PalVersion: 17}
	client, done := startConn(t, s, 17)

	if err := client.Add(records.NewOperation(1, records.SubKeySave)); err != nil {
		t.Fatalf("Add: %v", err)
	}
	if err := client.Commit(); err != nil {
		t.Fatalf("Commit: %v", err)
	}
	if _, err := client.Retrieve(protocol.TypeOperation); !errors.Is(err, io.EOF) {
		t.Fatalf("expected EOF after server closed, got %v", err)
	}
	if !client.IsConnectionLost() {
		t.Fatalf("expected connection lost")
	}
	waitDone(t, done)
}

func TestServeConnRejectsStrayAck(t *testing.T) {
	s := &Server{Handler: EchoHandler{}, PalVersion: 17}
	serverConn, clientConn := net.Pipe()
	defer clientConn.Close()
	done := make(chan struct{})
	go func() {
		defer close(done)
		s.ServeConn(context.Background(), serverConn)
	}()
	if err := protocol.WriteControl(clientConn, protocol.NextChunk()); err != nil {
		t.Fatalf("WriteControl: %v", err)
	}
	waitDone(t, done)
}

func TestTransactionOf(t *testing.T) {
	tx := &Transaction{Records: []protocol.Record{
		records.NewOperation(1, records.SubKeyCheck),
		records.NewStream([]byte("a")),
		records.NewStream([]byte("b")),
	}}
	if got := tx.Of(protocol.TypeStream); len(got) != 2 {
		t.Fatalf("expected 2 streams got %d", len(got))
	}
	if got := tx.Of(protocol.TypeLibID); got != nil {
		t.Fatalf("expected nil for absent key")
	}
}

func TestServerListenAndServe_Shutdown(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	s := &Server{
		Addr:    "127.0.0.1:0",
		Handler: EchoHandler{},
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- s.ListenAndServe(ctx)
	}()

	// Allow listener to start
	time.Sleep(100 * time.Millisecond)
	cancel()

	select {
	case err := <-errCh:
		if err != nil {
			if errors.Is(err, syscall.EPERM) {
				t.Skip("binding sockets not permitted in sandbox")
			}
			t.Fatalf("ListenAndServe returned error: %v", err)
		}
	case <-time.After(time.Second):
		t.Fatalf("server did not shut down")
	}
	s.Wait()
}

func TestServerRequiresHandler(t *testing.T) {
	s := &Server{Addr: "127.0.0.1:0"}
	if err := s.ListenAndServe(context.Background()); err == nil {
		t.Fatalf("expected error without handler")
	}
	if s.ListenAddress() != "127.0.0.1:0" {
		t.Fatalf("unexpected listen address %s", s.ListenAddress())
	}
}

func TestServerOverTCP(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	s := &Server{Addr: "127.0.0.1:0", Handler: EchoHandler{}, PalVersion: 47}
	errCh := make(chan error, 1)
	go func() { errCh <- s.ListenAndServe(ctx) }()

	deadline := time.Now().Add(time.Second)
	for s.ListenAddress() == s.Addr && time.Now().Before(deadline) {
		select {
		case err := <-errCh:
			if errors.Is(err, syscall.EPERM) {
				t.Skip("binding sockets not permitted in sandbox")
			}
			t.Fatalf("ListenAndServe: %v", err)
		default:
		}
		time.Sleep(10 * time.Millisecond)
	}
	host, portText, err := net.SplitHostPort(s.ListenAddress())
	if err != nil {
		t.Fatalf("listener did not start: %v", err)
	}
	port, err := net.LookupPort("tcp", portText)
	if err != nil {
		t.Fatalf("LookupPort: %v", err)
	}

	client := pal.New(pal.Config{PalVersion: 47})
	if err := client.Connect(ctx, host, port); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	if err := client.Add(records.NewStream([]byte("over tcp"))); err != nil {
		t.Fatalf("Add: %v", err)
	}
	if err := client.Commit(); err != nil {
		t.Fatalf("Commit: %v", err)
	}
	got, err := client.Retrieve(protocol.TypeStream)
	if err != nil {
		t.Fatalf("Retrieve: %v", err)
	}
	if string(got[0].(*records.Stream).Data) != "over tcp" {
		t.Fatalf("unexpected echo %q", got[0].(*records.Stream).Data)
	}
	if err := client.Disconnect(); err != nil {
		t.Fatalf("Disconnect: %v", err)
	}
	cancel()
	s.Wait()
}
