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
	"time"
)

// ErrTimeout matches every *TimeoutError.
var ErrTimeout = errors.New("pal: receive timeout")

// TimeoutError reports a socket read that exceeded the read timeout and
// was not continued by the TimeoutHandler.
type TimeoutError struct {
	After time.Duration
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("pal: no data from server within %s", e.After)
}

func (e *TimeoutError) Is(target error) bool {
	return target == ErrTimeout
}

// TimeoutHandler decides whether a read timeout is tolerated. It is
// called from the receive goroutine each time a read times out;
// returning true keeps waiting for another ReadTimeout.
type TimeoutHandler interface {
	ContinueOperation() bool
}

// TimeoutHandlerFunc adapts a function to TimeoutHandler.
type TimeoutHandlerFunc func() bool

func (f TimeoutHandlerFunc) ContinueOperation() bool { return f() }

// ContinueUntil tolerates timeouts until deadline passes. It suits
// long-running server operations such as a debug session waiting for a
// breakpoint.
func ContinueUntil(deadline time.Time) TimeoutHandler {
	return TimeoutHandlerFunc(func() bool {
		return time.Now().Before(deadline)
	})
}
