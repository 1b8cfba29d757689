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

// Package trace records the raw packets exchanged on a PAL connection and
// ships them to a file, an object store or a Kafka topic.
package trace

import (
	"context"
	"encoding/hex"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"time"
)

// Direction tells whether a packet was sent or received.
type Direction string

const (
	Sent     Direction = "send"
	Received Direction = "recv"
)

// Entry is one traced packet.
type Entry struct {
	Time      time.Time `json:"time"`
	Direction Direction `json:"direction"`
	Session   string    `json:"session"`
	Data      []byte    `json:"data"`
}

// Dump renders the entry as a header line followed by a hex dump.
func (e Entry) Dump() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "%s %s session=%s bytes=%d\n", e.Time.UTC().Format(time.RFC3339Nano), e.Direction, e.Session, len(e.Data))
	sb.WriteString(hex.Dump(e.Data))
	return sb.String()
}

// Sink persists batches of trace entries.
type Sink interface {
	Write(ctx context.Context, entries []Entry) error
	Close() error
}

// Config controls when buffered entries are flushed to the sink.
type Config struct {
	MaxBytes      int
	MaxEntries    int
	FlushInterval time.Duration
}

// Tracer buffers packet entries and flushes them to a Sink. The zero
// value is not usable; a nil *Tracer ignores every call.
type Tracer struct {
	sink   Sink
	buf    *Buffer
	logger *slog.Logger
	now    func() time.Time

	mu     sync.Mutex
	closed bool
}

// New returns a tracer writing to sink.
func New(cfg Config, sink Sink, logger *slog.Logger) *Tracer {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Tracer{
		sink:   sink,
		buf:    NewBuffer(cfg),
		logger: logger,
		now:    time.Now,
	}
}

// Trace records a copy of data.
func (t *Tracer) Trace(dir Direction, session string, data []byte) {
	if t == nil {
		return
	}
	t.mu.Lock()
	closed := t.closed
	t.mu.Unlock()
	if closed {
		return
	}
	now := t.now()
	t.buf.Append(Entry{
		Time:      now,
		Direction: dir,
		Session:   session,
		Data:      append([]byte(nil), data...),
	})
	if t.buf.ShouldFlush(now) {
		if err := t.Flush(context.Background()); err != nil {
			t.logger.Warn("trace flush failed", "error", err)
		}
	}
}

// Flush writes every buffered entry to the sink.
func (t *Tracer) Flush(ctx context.Context) error {
	if t == nil {
		return nil
	}
	entries := t.buf.Drain()
	if len(entries) == 0 {
		return nil
	}
	if err := t.sink.Write(ctx, entries); err != nil {
		return fmt.Errorf("write %d trace entries: %w", len(entries), err)
	}
	return nil
}

// Run flushes on the configured interval until ctx is done.
func (t *Tracer) Run(ctx context.Context, interval time.Duration) {
	if t == nil || interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			if !t.buf.ShouldFlush(now) {
				continue
			}
			if err := t.Flush(ctx); err != nil {
				t.logger.Warn("trace flush failed", "error", err)
			}
		}
	}
}

// Close flushes pending entries and closes the sink.
func (t *Tracer) Close(ctx context.Context) error {
	if t == nil {
		return nil
	}
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return nil
	}
	t.closed = true
	t.mu.Unlock()
	flushErr := t.Flush(ctx)
	if err := t.sink.Close(); err != nil && flushErr == nil {
		return fmt.Errorf("close trace sink: %w", err)
	}
	return flushErr
}
