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

import "sync"

// handoff passes packets from the receive goroutine to the caller one at
// a time. A put blocks while the previous packet is still untaken.
type handoff struct {
	slot   chan []byte
	closed chan struct{}
	once   sync.Once
}

func newHandoff() *handoff {
	return &handoff{
		slot:   make(chan []byte, 1),
		closed: make(chan struct{}),
	}
}

// put stores b, blocking while the slot is full. It returns false once
// the handoff is closed.
func (h *handoff) put(b []byte) bool {
	select {
	case <-h.closed:
		return false
	default:
	}
	select {
	case h.slot <- b:
		return true
	case <-h.closed:
		return false
	}
}

// take removes the stored packet, blocking while the slot is empty. It
// returns false once the handoff is closed.
func (h *handoff) take() ([]byte, bool) {
	select {
	case b := <-h.slot:
		return b, true
	case <-h.closed:
		return nil, false
	}
}

func (h *handoff) close() {
	h.once.Do(func() { close(h.closed) })
}
