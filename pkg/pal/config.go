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
	"io"
	"log/slog"
	"time"

	"github.com/novatechflow/natpal/pkg/records"
	"github.com/novatechflow/natpal/pkg/trace"
)

const (
	defaultReadTimeout = 60 * time.Second
	defaultDialTimeout = 10 * time.Second
)

// Config carries connection parameters and collaborators for a Pal.
// Version, NDV type and code page are negotiated by the application
// layer and may also be set later through the setters.
type Config struct {
	// ReadTimeout bounds each socket read in the receive goroutine. Zero
	// selects the default; a negative value disables the deadline.
	ReadTimeout time.Duration
	DialTimeout time.Duration

	PalVersion     int
	NdvType        int
	ServerCodePage string
	SessionID      string
	UserID         string

	Logger         *slog.Logger
	Registry       *records.Registry
	TimeoutHandler TimeoutHandler
	Tracer         *trace.Tracer
}

// DefaultConfig returns a Config with default timeouts and collaborators.
func DefaultConfig() Config {
	return Config{}.withDefaults()
}

func (c Config) withDefaults() Config {
	if c.ReadTimeout == 0 {
		c.ReadTimeout = defaultReadTimeout
	}
	if c.DialTimeout <= 0 {
		c.DialTimeout = defaultDialTimeout
	}
	if c.Logger == nil {
		c.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if c.Registry == nil {
		c.Registry = records.Default()
	}
	return c
}
