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

import "github.com/novatechflow/natpal/pkg/protocol"

// FileID describes an object being saved, renamed or cataloged.
type FileID struct {
	Object     string
	NewObject  string
	User       string
	SourceSize int
	GPSize     int
	NatKind    int
	NatType    int
	Structured bool
	SourceDate Date
	GPDate     Date
	GPUser     string
	DatabaseID int
	FileNumber int
	Options    int
}

func (f *FileID) Type() protocol.Type { return protocol.TypeFileID }

func (f *FileID) Encode(w *protocol.RecordWriter) {
	w.Text(f.Object)
	w.Text(f.NewObject)
	w.Text(f.User)
	w.Int(f.SourceSize)
	w.Int(f.GPSize)
	w.Int(f.NatKind)
	w.Int(f.NatType)
	if f.Structured {
		w.Int(1)
	} else {
		w.Int(0)
	}
	f.SourceDate.encode(w)
	f.GPDate.encode(w)
	w.Text(f.GPUser)
	w.Int(f.DatabaseID)
	w.Int(f.FileNumber)
	w.Int(f.Options)
}

func (f *FileID) Decode(r *protocol.RecordReader) {
	f.Object = r.Text()
	f.NewObject = r.Text()
	f.User = r.Text()
	f.SourceSize = r.Int()
	f.GPSize = r.Int()
	f.NatKind = r.Int()
	f.NatType = r.Int()
	f.Structured = r.Int() == 1
	f.SourceDate.decode(r)
	f.GPDate.decode(r)
	f.GPUser = r.Text()
	f.DatabaseID = r.Int()
	f.FileNumber = r.Int()
	f.Options = r.Int()
}
