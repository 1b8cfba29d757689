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
	"fmt"
	"time"

	"github.com/novatechflow/natpal/pkg/protocol"
)

// Date is the minute resolution timestamp used by library records.
type Date struct {
	Day    int
	Month  int
	Year   int
	Hour   int
	Minute int
}

// DateOf converts t to a Date.
func DateOf(t time.Time) Date {
	return Date{Day: t.Day(), Month: int(t.Month()), Year: t.Year(), Hour: t.Hour(), Minute: t.Minute()}
}

// Time returns d as a UTC time.
func (d Date) Time() time.Time {
	return time.Date(d.Year, time.Month(d.Month), d.Day, d.Hour, d.Minute, 0, 0, time.UTC)
}

func (d Date) String() string {
	return fmt.Sprintf("%04d-%02d-%02d %02d:%02d", d.Year, d.Month, d.Day, d.Hour, d.Minute)
}

func (d Date) encode(w *protocol.RecordWriter) {
	w.Int(d.Day)
	w.Int(d.Month)
	w.Int(d.Year)
	w.Int(d.Hour)
	w.Int(d.Minute)
}

func (d *Date) decode(r *protocol.RecordReader) {
	d.Day = r.Int()
	d.Month = r.Int()
	d.Year = r.Int()
	d.Hour = r.Int()
	d.Minute = r.Int()
}

// LibID identifies a library on a system file. It is sent under either
// the LibId or the LibId2 key.
type LibID struct {
	Key        protocol.Type
	DatabaseID int
	FileNumber int
	Library    string
	Password   string
	Cipher     string
}

// NewLibID returns a LibId record for library on dbid/fnr.
func NewLibID(dbid, fnr int, library string) *LibID {
	return &LibID{Key: protocol.TypeLibID, DatabaseID: dbid, FileNumber: fnr, Library: library}
}

func (l *LibID) Type() protocol.Type {
	if l.Key == protocol.TypeLibID2 {
		return protocol.TypeLibID2
	}
	return protocol.TypeLibID
}

func (l *LibID) Encode(w *protocol.RecordWriter) {
	w.Int(l.DatabaseID)
	w.Int(l.FileNumber)
	w.Text(l.Library)
	w.Text(l.Password)
	w.Text(l.Cipher)
}

func (l *LibID) Decode(r *protocol.RecordReader) {
	l.DatabaseID = r.Int()
	l.FileNumber = r.Int()
	l.Library = r.Text()
	l.Password = r.Text()
	l.Cipher = r.Text()
}

// Kind values swapped on decode for mainframe servers.
const (
	kindReportedAsDDM = 5
	kindDDM           = 6
)

// SystemFile describes one system file the server exposes.
type SystemFile struct {
	DatabaseID int
	FileNumber int
	Password   string
	Cipher     string
	ReadOnly   bool
	Kind       int
	Location   string
	Alias      string

	session protocol.Session
}

func (s *SystemFile) Type() protocol.Type { return protocol.TypeSystemFile }

func (s *SystemFile) SetSession(sess protocol.Session) { s.session = sess }

func (s *SystemFile) Encode(w *protocol.RecordWriter) {
	w.Int(s.DatabaseID)
	w.Int(s.FileNumber)
	w.Text(s.Password)
	w.Text(s.Cipher)
	if s.ReadOnly {
		w.Int(1)
	} else {
		w.Int(0)
	}
	w.Int(s.Kind)
	w.Text(s.Location)
	if s.Alias != "" {
		w.Text(s.Alias)
	}
}

// Decode reads the system file layout. Mainframe servers report the DDM
// file under a different kind, which is remapped here.
func (s *SystemFile) Decode(r *protocol.RecordReader) {
	s.DatabaseID = r.Int()
	s.FileNumber = r.Int()
	s.Password = r.Text()
	s.Cipher = r.Text()
	s.ReadOnly = r.Int() == 1
	s.Kind = r.Int()
	if s.Kind == kindReportedAsDDM && s.session.NdvType == NdvTypeMainframe {
		s.Kind = kindDDM
	}
	s.Location = r.Text()
	if r.Remaining() > 0 {
		s.Alias = r.Text()
	}
}

// Object type bits reported in LibraryStatistics.
const (
	NatTypeGDA          = 1
	NatTypeLDA          = 2
	NatTypePDA          = 4
	NatTypeDDM          = 8
	NatTypeProgram      = 16
	NatTypeSubprogram   = 32
	NatTypeMap          = 64
	NatTypeCopycode     = 128
	NatTypeSubroutine   = 256
	NatTypeHelpRoutine  = 512
	NatTypeClass        = 1024
	NatTypeDialog       = 2048
	NatTypeText         = 4096
	NatTypeCommandProc  = 8192
	NatTypeAdaptview    = 16384
	NatTypeErrorMessage = 32768
	NatTypeResource     = 65536
	NatTypeFunction     = 524288
	NatTypeAdapter      = 2097152
)

var natTypeNames = []struct {
	mask int
	name string
}{
	{NatTypeProgram, "Program"},
	{NatTypeSubprogram, "Subprogram"},
	{NatTypeSubroutine, "Subroutine"},
	{NatTypeCopycode, "Copycode"},
	{NatTypeText, "Text"},
	{NatTypeMap, "Map"},
	{NatTypeLDA, "Local"},
	{NatTypeGDA, "Global"},
	{NatTypePDA, "Parameter"},
	{NatTypeDDM, "DDM"},
	{NatTypeDialog, "Dialog"},
	{NatTypeAdapter, "Adapter"},
	{NatTypeFunction, "Function"},
	{NatTypeAdaptview, "Adaptview"},
	{NatTypeCommandProc, "Command Processor"},
	{NatTypeHelpRoutine, "Helproutine"},
	{NatTypeClass, "Class"},
	{NatTypeErrorMessage, "Error Message"},
	{NatTypeResource, "Resource"},
}

// ObjectCount is the number and size of objects of one object type.
type ObjectCount struct {
	NatType int
	Number  int
	Size    int
}

// LibraryStatistics summarizes the contents of a library.
type LibraryStatistics struct {
	Library           string
	NumberSources     int
	SizeSources       int
	NumberGPs         int
	SizeGPs           int
	NumberResources   int
	SizeResources     int
	NumberErrMessages int
	SizeErrMessages   int
	NumberBytes       int
	NumberObjects     int
	Objects           []ObjectCount
	Modified          Date
	Flags             int
}

func (l *LibraryStatistics) Type() protocol.Type { return protocol.TypeLibraryStatistics }

func (l *LibraryStatistics) Encode(w *protocol.RecordWriter) {
	w.Text(l.Library)
	for _, v := range []int{
		l.NumberSources, l.SizeSources, l.NumberGPs, l.SizeGPs,
		l.NumberResources, l.SizeResources, l.NumberErrMessages, l.SizeErrMessages,
		l.NumberBytes, l.NumberObjects,
	} {
		w.Int(v)
	}
	w.Int(len(l.Objects))
	for _, o := range l.Objects {
		w.Int(o.NatType)
		w.Int(o.Number)
		w.Int(o.Size)
	}
	l.Modified.encode(w)
	w.Int(l.Flags)
}

func (l *LibraryStatistics) Decode(r *protocol.RecordReader) {
	l.Library = r.Text()
	l.NumberSources = r.Int()
	l.SizeSources = r.Int()
	l.NumberGPs = r.Int()
	l.SizeGPs = r.Int()
	l.NumberResources = r.Int()
	l.SizeResources = r.Int()
	l.NumberErrMessages = r.Int()
	l.SizeErrMessages = r.Int()
	l.NumberBytes = r.Int()
	l.NumberObjects = r.Int()
	n := r.Int()
	// a corrupt count cannot exceed one entry per remaining byte
	if n < 0 || n > r.Remaining() {
		n = 0
	}
	l.Objects = make([]ObjectCount, n)
	for i := range l.Objects {
		l.Objects[i] = ObjectCount{NatType: r.Int(), Number: r.Int(), Size: r.Int()}
	}
	l.Modified.decode(r)
	if r.Remaining() > 0 {
		l.Flags = r.Int()
	}
}

// NatTypes returns the OR of every object type present in the library.
func (l *LibraryStatistics) NatTypes() int {
	var flags int
	for _, o := range l.Objects {
		flags |= o.NatType
	}
	return flags
}

// Has reports whether objects of type mask exist in the library.
func (l *LibraryStatistics) Has(mask int) bool {
	return l.NatTypes()&mask == mask
}

// TypeNames lists the object types present, in display order.
func (l *LibraryStatistics) TypeNames() []string {
	flags := l.NatTypes()
	var out []string
	for _, t := range natTypeNames {
		if flags&t.mask == t.mask {
			out = append(out, t.name)
		}
	}
	return out
}
