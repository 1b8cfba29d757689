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

// Package pal implements the client side of a PAL connection: it sends
// transactions built from typed records and demultiplexes the reply into
// per-type buckets.
//
// Add, Commit and Retrieve must be called from one goroutine. A second
// goroutine per connection reads packets from the socket and hands them
// over one at a time.
package pal

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/novatechflow/natpal/pkg/protocol"
	"github.com/novatechflow/natpal/pkg/records"
	"github.com/novatechflow/natpal/pkg/trace"
)

var (
	ErrNotConnected     = errors.New("pal: not connected")
	ErrAlreadyConnected = errors.New("pal: already connected")
	// ErrInvalidType is returned by Retrieve for keys outside the known
	// type range.
	ErrInvalidType = errors.New("pal: invalid type key")
	// ErrBuilding is returned by Retrieve while a transaction is being
	// built and has not been committed.
	ErrBuilding = errors.New("pal: transaction not committed")
	// ErrNotCommitted is returned by Retrieve before any transaction was
	// committed on the connection.
	ErrNotCommitted = errors.New("pal: no committed transaction")
	ErrClosed       = errors.New("pal: connection closed")
)

// Pal is one client connection to a PAL server.
type Pal struct {
	cfg      Config
	registry *records.Registry
	tracer   *trace.Tracer

	mu             sync.RWMutex
	sessionID      string
	userID         string
	timeout        TimeoutHandler
	palVersion     int
	ndvType        int
	serverCodePage string

	conn    net.Conn
	handoff *handoff
	exited  chan struct{}

	recvMu   sync.Mutex
	recvErr  error
	recvDone bool

	newFormat atomic.Bool
	connLost  atomic.Bool
	closing   atomic.Bool

	builder     *protocol.Builder
	reader      *protocol.StreamReader
	buckets     map[protocol.Type][]protocol.Record
	state       State
	committedAt time.Time
}

// New returns an unconnected client.
func New(cfg Config) *Pal {
	cfg = cfg.withDefaults()
	return &Pal{
		cfg:            cfg,
		registry:       cfg.Registry,
		tracer:         cfg.Tracer,
		sessionID:      cfg.SessionID,
		userID:         cfg.UserID,
		timeout:        cfg.TimeoutHandler,
		palVersion:     cfg.PalVersion,
		ndvType:        cfg.NdvType,
		serverCodePage: cfg.ServerCodePage,
	}
}

// Connect dials the server and starts the receive goroutine.
func (p *Pal) Connect(ctx context.Context, host string, port int) error {
	if p.conn != nil {
		return ErrAlreadyConnected
	}
	addr := net.JoinHostPort(host, strconv.Itoa(port))
	d := net.Dialer{Timeout: p.cfg.DialTimeout}
	conn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		errorsTotal.WithLabelValues("connect").Inc()
		return fmt.Errorf("pal: connect %s: %w", addr, err)
	}
	p.cfg.Logger.Info("pal connected", "addr", addr, "session", p.SessionID())
	return p.ConnectConn(conn)
}

// ConnectConn runs the client over an established connection.
func (p *Pal) ConnectConn(conn net.Conn) error {
	if p.conn != nil {
		return ErrAlreadyConnected
	}
	p.conn = conn
	p.handoff = newHandoff()
	p.exited = make(chan struct{})
	p.recvMu.Lock()
	p.recvErr = nil
	p.recvDone = false
	p.recvMu.Unlock()
	p.newFormat.Store(false)
	p.connLost.Store(false)
	p.closing.Store(false)
	p.builder = protocol.NewBuilder(p.send, p.awaitAck)
	p.reader = nil
	p.buckets = nil
	p.state = StateIdle
	connectionsActive.Inc()
	go p.receive(conn, p.handoff, p.exited)
	return nil
}

// Disconnect ends the session. Servers speaking version 47 or later are
// told with the DISCONNECT sentinel before the socket is closed.
func (p *Pal) Disconnect() error {
	if p.conn == nil {
		return nil
	}
	var sendErr error
	if p.PalVersion() >= protocol.VersionDisconnect && !p.connLost.Load() {
		sendErr = p.send(protocol.Disconnect())
	}
	if err := p.closeSocket(); err != nil && sendErr == nil {
		return err
	}
	return sendErr
}

// closeSocket closes the connection without notifying the server and
// waits for the receive goroutine to exit.
func (p *Pal) closeSocket() error {
	if p.conn == nil {
		return nil
	}
	p.closing.Store(true)
	p.handoff.close()
	err := p.conn.Close()
	<-p.exited
	p.conn = nil
	p.connLost.Store(true)
	p.reader = nil
	p.state = StateIdle
	connectionsActive.Dec()
	p.cfg.Logger.Info("pal disconnected", "session", p.SessionID())
	if err != nil {
		return fmt.Errorf("pal: close: %w", err)
	}
	return nil
}

// IsConnectionLost reports whether the connection failed or was closed.
func (p *Pal) IsConnectionLost() bool { return p.connLost.Load() }

// SetConnectionLost overrides the connection-lost flag.
func (p *Pal) SetConnectionLost(lost bool) { p.connLost.Store(lost) }

// State returns where the connection is in the request/reply cycle.
func (p *Pal) State() State { return p.state }

// Add appends records of one type key to the current transaction. A
// reply still being read from an earlier transaction is drained first.
func (p *Pal) Add(recs ...protocol.Record) error {
	if p.conn == nil {
		return ErrNotConnected
	}
	if len(recs) == 0 {
		return nil
	}
	if p.state != StateBuilding {
		if err := p.finishReply(); err != nil {
			return err
		}
		p.buckets = nil
	}
	sessionID, userID := p.identity()
	for _, rec := range recs {
		if id, ok := rec.(protocol.Identified); ok {
			id.SetClientID(sessionID)
			id.SetUserID(userID)
		}
	}
	p.syncBuilder()
	if err := p.builder.Add(recs...); err != nil {
		return err
	}
	p.state = StateBuilding
	return nil
}

// Commit terminates the transaction and sends its final packet. The
// reply is read lazily by Retrieve.
func (p *Pal) Commit() error {
	if p.conn == nil {
		return ErrNotConnected
	}
	if p.state != StateBuilding {
		if err := p.finishReply(); err != nil {
			return err
		}
		p.buckets = nil
	}
	p.syncBuilder()
	if err := p.builder.Commit(); err != nil {
		p.state = StateIdle
		return err
	}
	transactionsTotal.Inc()
	p.reader = protocol.NewStreamReader(p.nextPacket, p.sendAck)
	p.reader.SetVersion(p.PalVersion())
	p.buckets = make(map[protocol.Type][]protocol.Record)
	p.state = StateCommitted
	p.committedAt = time.Now()
	return nil
}

// Retrieve returns the records of type key from the reply to the last
// committed transaction, reading packets until a block of that type has
// been read completely or the reply ends. Records already read are
// served from the per-type buckets without touching the socket.
//
// A key absent from the reply yields a nil slice and nil error. Keys
// without a codec yield *protocol.RawRecord values.
func (p *Pal) Retrieve(key protocol.Type) ([]protocol.Record, error) {
	if !key.Valid() {
		return nil, fmt.Errorf("%w: %d", ErrInvalidType, int(key))
	}
	switch p.state {
	case StateBuilding:
		return nil, ErrBuilding
	case StateIdle:
		if p.buckets == nil {
			return nil, ErrNotCommitted
		}
		return p.buckets[key], nil
	}
	if recs := p.buckets[key]; len(recs) > 0 {
		return recs, nil
	}
	session := p.session()
	for {
		next, ok, err := p.reader.Peek()
		if err != nil {
			return nil, err
		}
		if !ok {
			p.endReply()
			break
		}
		if next != key && len(p.buckets[key]) > 0 {
			break
		}
		p.state = StateDraining
		k, data, err := p.reader.Next()
		if errors.Is(err, protocol.ErrTransactionEnd) {
			p.endReply()
			break
		}
		if err != nil {
			return nil, err
		}
		p.buckets[k] = append(p.buckets[k], p.registry.Decode(k, data, session))
		if p.reader.Done() {
			p.endReply()
			break
		}
	}
	return p.buckets[key], nil
}

// finishReply reads and discards the rest of an unfinished reply so the
// next transaction starts on a packet boundary.
func (p *Pal) finishReply() error {
	if p.reader == nil {
		return nil
	}
	for !p.reader.Done() {
		if _, _, err := p.reader.Next(); err != nil {
			if errors.Is(err, protocol.ErrTransactionEnd) {
				break
			}
			return err
		}
	}
	p.endReply()
	return nil
}

func (p *Pal) endReply() {
	if p.reader == nil {
		return
	}
	transactionLatency.Observe(float64(time.Since(p.committedAt).Milliseconds()))
	p.reader = nil
	p.state = StateIdle
}

func (p *Pal) syncBuilder() {
	p.builder.SetVersion(p.PalVersion())
	p.builder.SetNewFormat(p.newFormat.Load())
	p.builder.SetSession(p.session())
}

func (p *Pal) send(b []byte) error {
	p.tracer.Trace(trace.Sent, p.SessionID(), b)
	if _, err := p.conn.Write(b); err != nil {
		errorsTotal.WithLabelValues("send").Inc()
		p.connLost.Store(true)
		return fmt.Errorf("pal: write packet: %w", err)
	}
	observePacket(directionSent, len(b))
	return nil
}

func (p *Pal) sendAck() error {
	return p.send(protocol.NextChunk())
}

// take returns the next packet from the receive goroutine, or the error
// that stopped it.
func (p *Pal) take() ([]byte, error) {
	p.recvMu.Lock()
	done := p.recvDone
	p.recvMu.Unlock()
	if done {
		return nil, p.receiveErr()
	}
	b, ok := p.handoff.take()
	if !ok {
		return nil, ErrClosed
	}
	if isWakeup(b) {
		p.recvMu.Lock()
		p.recvDone = true
		p.recvMu.Unlock()
		return nil, p.receiveErr()
	}
	p.tracer.Trace(trace.Received, p.SessionID(), b)
	observePacket(directionReceived, len(b))
	return b, nil
}

func (p *Pal) awaitAck() error {
	b, err := p.take()
	if err != nil {
		return err
	}
	if !protocol.IsNextChunk(b) {
		return fmt.Errorf("%w: data packet while waiting for continuation ack", protocol.ErrUnexpectedReply)
	}
	return nil
}

// nextPacket returns the bytes after the header of the next data packet.
func (p *Pal) nextPacket() ([]byte, error) {
	b, err := p.take()
	if err != nil {
		return nil, err
	}
	if protocol.IsNextChunk(b) {
		return nil, fmt.Errorf("%w: continuation ack while waiting for data", protocol.ErrUnexpectedReply)
	}
	return b[protocol.HeaderLen:], nil
}

func (p *Pal) identity() (string, string) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.sessionID, p.userID
}

func (p *Pal) session() protocol.Session {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return protocol.Session{
		PalVersion:     p.palVersion,
		NdvType:        p.ndvType,
		ServerCodePage: p.serverCodePage,
	}
}

func (p *Pal) timeoutHandler() TimeoutHandler {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.timeout
}

// SessionID returns the id stamped into traced packets and records.
func (p *Pal) SessionID() string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.sessionID
}

// PalVersion returns the negotiated protocol version.
func (p *Pal) PalVersion() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.palVersion
}

func (p *Pal) SetSessionID(id string) {
	p.mu.Lock()
	p.sessionID = id
	p.mu.Unlock()
}

func (p *Pal) SetUserID(id string) {
	p.mu.Lock()
	p.userID = id
	p.mu.Unlock()
}

func (p *Pal) SetPalVersion(v int) {
	p.mu.Lock()
	p.palVersion = v
	p.mu.Unlock()
}

func (p *Pal) SetNdvType(t int) {
	p.mu.Lock()
	p.ndvType = t
	p.mu.Unlock()
}

func (p *Pal) SetServerCodePage(cp string) {
	p.mu.Lock()
	p.serverCodePage = cp
	p.mu.Unlock()
}

// SetTimeoutHandler installs the policy consulted on read timeouts. A
// nil handler makes every timeout fatal.
func (p *Pal) SetTimeoutHandler(h TimeoutHandler) {
	p.mu.Lock()
	p.timeout = h
	p.mu.Unlock()
}

func (p *Pal) String() string {
	s := p.session()
	remote := "-"
	if p.conn != nil {
		remote = p.conn.RemoteAddr().String()
	}
	return fmt.Sprintf("pal remote=%s session=%s version=%d ndv=%d codepage=%s state=%s",
		remote, p.SessionID(), s.PalVersion, s.NdvType, s.ServerCodePage, p.state)
}
