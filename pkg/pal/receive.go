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

package pal

import (
	"errors"
	"fmt"
	"io"
	"net"
	"time"

	"github.com/novatechflow/natpal/pkg/protocol"
)

// ErrPeerDisconnected is stored when the server sends the DISCONNECT
// sentinel.
var ErrPeerDisconnected = errors.New("pal: server closed the session")

// wakeup is handed to a blocked consumer after the receive goroutine
// stored its error. It is recognized by identity, never by content.
var wakeup = []byte{0}

func isWakeup(b []byte) bool {
	return len(b) == 1 && &b[0] == &wakeup[0]
}

// receive reads packets from conn and hands them over one at a time
// until a read fails.
func (p *Pal) receive(conn net.Conn, h *handoff, exited chan<- struct{}) {
	defer close(exited)
	for {
		header := make([]byte, protocol.HeaderLen)
		if err := p.readFull(conn, header); err != nil {
			p.failReceive(h, err)
			return
		}
		if protocol.IsNextChunk(header) {
			if !h.put(header) {
				return
			}
			continue
		}
		if protocol.IsDisconnect(header) {
			p.failReceive(h, ErrPeerDisconnected)
			return
		}
		hdr, err := protocol.DecodeHeader(header)
		if err != nil {
			p.failReceive(h, err)
			return
		}
		if hdr.Announce || hdr.NewFormat {
			p.newFormat.Store(true)
		}
		packet := make([]byte, protocol.HeaderLen+hdr.BodyLen())
		copy(packet, header)
		if err := p.readFull(conn, packet[protocol.HeaderLen:]); err != nil {
			p.failReceive(h, err)
			return
		}
		if !h.put(packet) {
			return
		}
	}
}

// readFull fills buf, tolerating partial reads. Each read is bounded by
// the read timeout; the timeout handler decides whether an expired read
// is retried.
func (p *Pal) readFull(conn net.Conn, buf []byte) error {
	off := 0
	for off < len(buf) {
		if p.cfg.ReadTimeout > 0 {
			_ = conn.SetReadDeadline(time.Now().Add(p.cfg.ReadTimeout))
		}
		n, err := conn.Read(buf[off:])
		off += n
		if err == nil {
			continue
		}
		var ne net.Error
		if errors.As(err, &ne) && ne.Timeout() {
			if th := p.timeoutHandler(); th != nil && th.ContinueOperation() {
				p.cfg.Logger.Debug("pal read timeout, continuing", "session", p.SessionID(), "after", p.cfg.ReadTimeout)
				continue
			}
			return &TimeoutError{After: p.cfg.ReadTimeout}
		}
		if errors.Is(err, io.EOF) && off > 0 && off < len(buf) {
			return fmt.Errorf("pal: read packet: %w", io.ErrUnexpectedEOF)
		}
		return fmt.Errorf("pal: read packet: %w", err)
	}
	return nil
}

// failReceive stores err for the consumer and releases it if it is
// blocked waiting for a packet.
func (p *Pal) failReceive(h *handoff, err error) {
	stage := "receive"
	if errors.Is(err, ErrTimeout) {
		stage = "timeout"
	}
	errorsTotal.WithLabelValues(stage).Inc()
	p.recvMu.Lock()
	p.recvErr = err
	p.recvMu.Unlock()
	p.connLost.Store(true)
	if !p.closing.Load() {
		p.cfg.Logger.Warn("pal receive failed", "session", p.SessionID(), "error", err)
	}
	h.put(wakeup)
}

func (p *Pal) receiveErr() error {
	p.recvMu.Lock()
	defer p.recvMu.Unlock()
	return p.recvErr
}
