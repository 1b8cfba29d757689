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
	"testing"
	"time"
)

func TestHandoffHoldsOnePacket(t *testing.T) {
	h := newHandoff()
	if !h.put([]byte("a")) {
		t.Fatalf("first put should succeed")
	}

	released := make(chan bool, 1)
	go func() { released <- h.put([]byte("b")) }()
	select {
	case <-released:
		t.Fatalf("put must block while the slot is full")
	case <-time.After(20 * time.Millisecond):
	}

	got, ok := h.take()
	if !ok || string(got) != "a" {
		t.Fatalf("expected a, got %q", got)
	}
	select {
	case ok := <-released:
		if !ok {
			t.Fatalf("blocked put should succeed after take")
		}
	case <-time.After(time.Second):
		t.Fatalf("take did not release the blocked put")
	}
	if len(h.slot) != 1 {
		t.Fatalf("slot should hold exactly one packet, has %d", len(h.slot))
	}
	got, ok = h.take()
	if !ok || string(got) != "b" {
		t.Fatalf("expected b, got %q", got)
	}
}

func TestHandoffClose(t *testing.T) {
	h := newHandoff()
	h.put([]byte("a"))
	released := make(chan bool, 1)
	go func() { released <- h.put([]byte("b")) }()
	time.Sleep(10 * time.Millisecond)
	h.close()
	select {
	case ok := <-released:
		if ok {
			t.Fatalf("put on a closed handoff should fail")
		}
	case <-time.After(time.Second):
		t.Fatalf("close did not release the blocked put")
	}
	if h.put([]byte("c")) {
		t.Fatalf("put after close should fail")
	}
	h.close()
}

func TestWakeupIdentity(t *testing.T) {
	if !isWakeup(wakeup) {
		t.Fatalf("wakeup must be recognized")
	}
	if isWakeup([]byte{0}) {
		t.Fatalf("a one-byte packet with the same content is not the wakeup")
	}
}
