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

package trace

import (
	"sync"
	"time"
)

// Buffer accumulates trace entries until a flush threshold is reached.
type Buffer struct {
	cfg       Config
	mu        sync.Mutex
	entries   []Entry
	sizeBytes int
	lastFlush time.Time
}

// NewBuffer creates an empty buffer.
func NewBuffer(cfg Config) *Buffer {
	return &Buffer{
		cfg:       cfg,
		lastFlush: time.Now(),
	}
}

// Append adds an entry to the buffer.
func (b *Buffer) Append(e Entry) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.entries = append(b.entries, e)
	b.sizeBytes += len(e.Data)
}

// ShouldFlush checks if size thresholds or time elapsed require a flush.
func (b *Buffer) ShouldFlush(now time.Time) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	if len(b.entries) == 0 {
		return false
	}
	if b.cfg.MaxBytes > 0 && b.sizeBytes >= b.cfg.MaxBytes {
		return true
	}
	if b.cfg.MaxEntries > 0 && len(b.entries) >= b.cfg.MaxEntries {
		return true
	}
	if b.cfg.FlushInterval > 0 && now.Sub(b.lastFlush) >= b.cfg.FlushInterval {
		return true
	}
	return false
}

// Drain returns all buffered entries and resets counters.
func (b *Buffer) Drain() []Entry {
	b.mu.Lock()
	defer b.mu.Unlock()
	drained := make([]Entry, len(b.entries))
	copy(drained, b.entries)
	b.entries = b.entries[:0]
	b.sizeBytes = 0
	b.lastFlush = time.Now()
	return drained
}

// Len returns the number of buffered entries.
func (b *Buffer) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.entries)
}

// Size returns the accumulated payload byte count.
func (b *Buffer) Size() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.sizeBytes
}
