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

package protocol

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidHeader reports a header with a bad signature or unreadable
	// fixed-width fields.
	ErrInvalidHeader = errors.New("invalid packet header")
	// ErrInvalidPacket reports a packet body that does not follow the
	// block and record layout.
	ErrInvalidPacket = errors.New("invalid packet body")
	// ErrDuplicateType is returned when a type key is added twice before
	// commit.
	ErrDuplicateType = errors.New("type key already pending in transaction")
	ErrMixedTypes    = errors.New("records in one add must share a type key")
	// ErrUnexpectedReply reports a control sentinel where a data packet was
	// required, or the reverse.
	ErrUnexpectedReply = errors.New("unexpected reply")
	// ErrTransactionEnd is returned by StreamReader.Next once the
	// transaction end marker has been consumed. Transport errors never
	// match it.
	ErrTransactionEnd = errors.New("end of transaction")
)

// DuplicateTypeError names the type key that was already pending.
type DuplicateTypeError struct {
	Key Type
}

func (e *DuplicateTypeError) Error() string {
	return fmt.Sprintf("type key %d (%s) already pending in transaction", int(e.Key), e.Key)
}

func (e *DuplicateTypeError) Is(target error) bool {
	return target == ErrDuplicateType
}
