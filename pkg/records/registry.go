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

// Package records holds the concrete record layouts exchanged with a PAL
// server and the registry that maps type keys to them.
package records

import (
	"fmt"
	"sync"

	"github.com/novatechflow/natpal/pkg/protocol"
)

// Layout classifies how a type key is decoded.
type Layout int

const (
	// LayoutUnknown is a key outside the known range.
	LayoutUnknown Layout = iota
	// LayoutCodec keys decode into a typed record.
	LayoutCodec
	// LayoutNotImplemented keys are known to the server but decode into a
	// *protocol.RawRecord.
	LayoutNotImplemented
)

func (l Layout) String() string {
	switch l {
	case LayoutCodec:
		return "codec"
	case LayoutNotImplemented:
		return "not-implemented"
	default:
		return "unknown"
	}
}

// Factory constructs an empty record ready for Decode.
type Factory func() protocol.Record

// Registry maps type keys to record factories.
type Registry struct {
	mu        sync.RWMutex
	factories map[protocol.Type]Factory
}

// NewRegistry returns a registry where every known key is not implemented.
func NewRegistry() *Registry {
	return &Registry{factories: make(map[protocol.Type]Factory)}
}

// Register binds a factory to a type key, replacing any earlier binding.
func (r *Registry) Register(key protocol.Type, f Factory) error {
	if !key.Valid() {
		return fmt.Errorf("register type key %d: out of range", int(key))
	}
	if f == nil {
		return fmt.Errorf("register type key %d: nil factory", int(key))
	}
	r.mu.Lock()
	r.factories[key] = f
	r.mu.Unlock()
	return nil
}

// Layout reports how key is decoded.
func (r *Registry) Layout(key protocol.Type) Layout {
	if !key.Valid() {
		return LayoutUnknown
	}
	r.mu.RLock()
	_, ok := r.factories[key]
	r.mu.RUnlock()
	if ok {
		return LayoutCodec
	}
	return LayoutNotImplemented
}

// New returns an empty record for key. Keys without a codec yield a
// *protocol.RawRecord.
func (r *Registry) New(key protocol.Type) protocol.Record {
	r.mu.RLock()
	f, ok := r.factories[key]
	r.mu.RUnlock()
	if !ok {
		return &protocol.RawRecord{Key: key}
	}
	return f()
}

// Decode builds the record for key from its payload. Field errors inside
// the payload are absorbed by the codec.
func (r *Registry) Decode(key protocol.Type, data []byte, s protocol.Session) protocol.Record {
	rec := r.New(key)
	if sa, ok := rec.(protocol.SessionAware); ok {
		sa.SetSession(s)
	}
	rec.Decode(protocol.NewRecordReader(data))
	return rec
}

// Default returns a registry with every layout this package implements.
func Default() *Registry {
	r := NewRegistry()
	for key, f := range defaultFactories {
		_ = r.Register(key, f)
	}
	return r
}

var defaultFactories = map[protocol.Type]Factory{
	protocol.TypeOperation:         func() protocol.Record { return &Operation{} },
	protocol.TypeSystemFile:        func() protocol.Record { return &SystemFile{} },
	protocol.TypeLibraryStatistics: func() protocol.Record { return &LibraryStatistics{} },
	protocol.TypeLibID:             func() protocol.Record { return &LibID{Key: protocol.TypeLibID} },
	protocol.TypeLibID2:            func() protocol.Record { return &LibID{Key: protocol.TypeLibID2} },
	protocol.TypeStream:            func() protocol.Record { return &Stream{Key: protocol.TypeStream} },
	protocol.TypeStream2:           func() protocol.Record { return &Stream{Key: protocol.TypeStream2} },
	protocol.TypeFileID:            func() protocol.Record { return &FileID{} },
	protocol.TypeCmdGuard:          func() protocol.Record { return &CmdGuard{} },
}
