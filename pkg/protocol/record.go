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

// Record is one typed unit carried in a transaction block.
type Record interface {
	Type() Type
	Encode(w *RecordWriter)
	Decode(r *RecordReader)
}

// Session carries the parameters negotiated for a connection that some
// record layouts depend on.
type Session struct {
	PalVersion     int
	NdvType        int
	ServerCodePage string
}

// SessionAware records receive the connection's Session before they are
// encoded or decoded.
type SessionAware interface {
	SetSession(s Session)
}

// Identified records are stamped with the connection's session and user
// id when added to a transaction.
type Identified interface {
	SetClientID(id string)
	SetUserID(id string)
}

// RawRecord keeps the undecoded payload of a record whose layout has no
// codec.
type RawRecord struct {
	Key  Type
	Data []byte
}

func (r *RawRecord) Type() Type { return r.Key }

func (r *RawRecord) Encode(w *RecordWriter) { w.ByteArray(r.Data) }

func (r *RawRecord) Decode(rd *RecordReader) {
	r.Data = append([]byte(nil), rd.Rest()...)
}

// EncodeRecord serializes rec into a fresh payload.
func EncodeRecord(rec Record) []byte {
	w := NewRecordWriter()
	rec.Encode(w)
	return w.Bytes()
}
