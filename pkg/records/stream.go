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

package records

import (
	"encoding/hex"
	"strings"

	"github.com/novatechflow/natpal/pkg/protocol"
)

// NdvTypeMainframe marks a server that exchanges stream data hex encoded.
const NdvTypeMainframe = 1

// Stream carries an opaque chunk of source or object data.
type Stream struct {
	Key  protocol.Type
	Data []byte

	session protocol.Session
}

// NewStream returns a Stream record carrying a copy of data.
func NewStream(data []byte) *Stream {
	return &Stream{Key: protocol.TypeStream, Data: append([]byte(nil), data...)}
}

func (s *Stream) Type() protocol.Type {
	if s.Key == protocol.TypeStream2 {
		return protocol.TypeStream2
	}
	return protocol.TypeStream
}

func (s *Stream) SetSession(sess protocol.Session) { s.session = sess }

func (s *Stream) Encode(w *protocol.RecordWriter) {
	if s.session.NdvType != NdvTypeMainframe {
		w.ByteArray(s.Data)
		return
	}
	w.ByteArray([]byte(strings.ToUpper(hex.EncodeToString(s.Data))))
	w.Byte(0)
}

// Decode copies the record payload. Hex payloads from mainframe servers
// decode to nothing when they contain a non-hex digit.
func (s *Stream) Decode(r *protocol.RecordReader) {
	raw := r.Rest()
	if s.session.NdvType != NdvTypeMainframe {
		s.Data = append([]byte(nil), raw...)
		return
	}
	even := raw[:len(raw)/2*2]
	out := make([]byte, hex.DecodedLen(len(even)))
	if _, err := hex.Decode(out, even); err != nil {
		s.Data = []byte{}
		return
	}
	s.Data = out
}
