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
	"bytes"
	"reflect"
	"testing"

	"github.com/novatechflow/natpal/pkg/protocol"
)

func decodeAs(t *testing.T, reg *Registry, rec protocol.Record, s protocol.Session) protocol.Record {
	t.Helper()
	if sa, ok := rec.(protocol.SessionAware); ok {
		sa.SetSession(s)
	}
	return reg.Decode(rec.Type(), protocol.EncodeRecord(rec), s)
}

func TestOperationEncoding(t *testing.T) {
	op := NewOperation(2, SubKeyCheck)
	op.SetClientID("S1")
	op.SetUserID("DEV")
	op.AddFlags(FlagMap)

	got := protocol.EncodeRecord(op)
	want := []byte("2\x002\x001\x00S1\x00DEV\x00")
	if !bytes.Equal(got, want) {
		t.Fatalf("unexpected encoding: %q", got)
	}

	back, ok := Default().Decode(protocol.TypeOperation, got, protocol.Session{}).(*Operation)
	if !ok {
		t.Fatalf("expected *Operation")
	}
	if *back != *op {
		t.Fatalf("round trip mismatch: %+v vs %+v", back, op)
	}
}

func TestLibIDKeys(t *testing.T) {
	reg := Default()
	lib := NewLibID(10, 1001, "SYSTEM")
	lib.Password = "secret"
	back := decodeAs(t, reg, lib, protocol.Session{}).(*LibID)
	if *back != *lib {
		t.Fatalf("round trip mismatch: %+v vs %+v", back, lib)
	}

	lib2 := &LibID{Key: protocol.TypeLibID2, Library: "USER"}
	back = decodeAs(t, reg, lib2, protocol.Session{}).(*LibID)
	if back.Type() != protocol.TypeLibID2 || back.Library != "USER" {
		t.Fatalf("unexpected LibId2 decode: %+v", back)
	}
}

func TestSystemFileDecode(t *testing.T) {
	w := protocol.NewRecordWriter()
	w.Int(10)
	w.Int(1002)
	w.Text("")
	w.Text("")
	w.Int(1)
	w.Int(5)
	w.Text("FUSER")
	payload := w.Bytes()

	reg := Default()
	sf := reg.Decode(protocol.TypeSystemFile, payload, protocol.Session{}).(*SystemFile)
	if sf.DatabaseID != 10 || sf.FileNumber != 1002 || !sf.ReadOnly || sf.Kind != 5 || sf.Location != "FUSER" {
		t.Fatalf("unexpected system file: %+v", sf)
	}
	if sf.Alias != "" {
		t.Fatalf("alias must stay empty when absent, got %q", sf.Alias)
	}

	sf = reg.Decode(protocol.TypeSystemFile, payload, protocol.Session{NdvType: NdvTypeMainframe}).(*SystemFile)
	if sf.Kind != 6 {
		t.Fatalf("expected kind remapped on mainframe, got %d", sf.Kind)
	}

	w.Text("ALIAS")
	sf = reg.Decode(protocol.TypeSystemFile, w.Bytes(), protocol.Session{}).(*SystemFile)
	if sf.Alias != "ALIAS" {
		t.Fatalf("expected alias, got %q", sf.Alias)
	}
}

func TestStreamHexOnMainframe(t *testing.T) {
	data := []byte{0x00, 0xc1, 0xff, 0x10}
	s := NewStream(data)
	s.SetSession(protocol.Session{NdvType: NdvTypeMainframe})
	enc := protocol.EncodeRecord(s)
	if !bytes.Equal(enc, []byte("00C1FF10\x00")) {
		t.Fatalf("unexpected hex encoding: %q", enc)
	}
	back := Default().Decode(protocol.TypeStream, enc, protocol.Session{NdvType: NdvTypeMainframe}).(*Stream)
	if !bytes.Equal(back.Data, data) {
		t.Fatalf("hex round trip mismatch: %x", back.Data)
	}

	bad := Default().Decode(protocol.TypeStream, []byte("ZZ\x00"), protocol.Session{NdvType: NdvTypeMainframe}).(*Stream)
	if len(bad.Data) != 0 {
		t.Fatalf("expected empty data for non hex input, got %x", bad.Data)
	}

	plain := NewStream(data)
	if !bytes.Equal(protocol.EncodeRecord(plain), data) {
		t.Fatalf("open systems stream must be sent raw")
	}
}

func TestCmdGuardPermissions(t *testing.T) {
	g := &CmdGuard{Info1: 131072, Info2: 4 | 16 | 64, Info3: 65536}
	back := decodeAs(t, Default(), g, protocol.Session{}).(*CmdGuard)
	if *back != *g {
		t.Fatalf("round trip mismatch: %+v vs %+v", back, g)
	}
	if !back.CheckAllowed() || !back.SaveAllowed() || !back.ReadAllowed() {
		t.Fatalf("expected check, save and read permissions")
	}
	if back.StowAllowed() || back.DeleteAllowed() {
		t.Fatalf("unexpected stow or delete permission")
	}
	if !back.ListDDMAllowed() || back.Private() || !back.NSCInstalled() {
		t.Fatalf("unexpected DDM or mode flags: %+v", back)
	}
}

func TestFileIDRoundTrip(t *testing.T) {
	f := &FileID{
		Object:     "PGM1",
		User:       "DEV",
		SourceSize: 1024,
		NatKind:    1,
		NatType:    NatTypeProgram,
		Structured: true,
		SourceDate: Date{Day: 3, Month: 4, Year: 2025, Hour: 10, Minute: 30},
		DatabaseID: 10,
		FileNumber: 1002,
	}
	back := decodeAs(t, Default(), f, protocol.Session{}).(*FileID)
	if !reflect.DeepEqual(back, f) {
		t.Fatalf("round trip mismatch: %+v vs %+v", back, f)
	}
}

func TestLibraryStatistics(t *testing.T) {
	l := &LibraryStatistics{
		Library:       "SYSTEM",
		NumberSources: 4,
		NumberObjects: 4,
		Objects: []ObjectCount{
			{NatType: NatTypeProgram, Number: 3, Size: 900},
			{NatType: NatTypeMap, Number: 1, Size: 120},
		},
		Modified: Date{Day: 1, Month: 2, Year: 2024, Hour: 8, Minute: 0},
		Flags:    7,
	}
	back := decodeAs(t, Default(), l, protocol.Session{}).(*LibraryStatistics)
	if !reflect.DeepEqual(back, l) {
		t.Fatalf("round trip mismatch: %+v vs %+v", back, l)
	}
	if !back.Has(NatTypeProgram) || back.Has(NatTypeDDM) {
		t.Fatalf("unexpected type flags %d", back.NatTypes())
	}
	if names := back.TypeNames(); !reflect.DeepEqual(names, []string{"Program", "Map"}) {
		t.Fatalf("unexpected type names %v", names)
	}
}

func TestLibraryStatisticsTruncated(t *testing.T) {
	w := protocol.NewRecordWriter()
	w.Text("LIB")
	w.Int(1)
	back := Default().Decode(protocol.TypeLibraryStatistics, w.Bytes(), protocol.Session{}).(*LibraryStatistics)
	if back.Library != "LIB" || back.NumberSources != 1 || len(back.Objects) != 0 || back.Flags != 0 {
		t.Fatalf("expected lenient decode, got %+v", back)
	}
}

func TestRegistryLayouts(t *testing.T) {
	reg := Default()
	if reg.Layout(protocol.TypeOperation) != LayoutCodec {
		t.Fatalf("operation must have a codec")
	}
	if reg.Layout(protocol.TypeDbgStatus) != LayoutNotImplemented {
		t.Fatalf("debug status must be not implemented")
	}
	if reg.Layout(protocol.Type(99)) != LayoutUnknown {
		t.Fatalf("key 99 must be unknown")
	}

	raw, ok := reg.Decode(protocol.TypeDbgStatus, []byte("a\x00b"), protocol.Session{}).(*protocol.RawRecord)
	if !ok {
		t.Fatalf("expected raw record for not implemented layout")
	}
	if raw.Key != protocol.TypeDbgStatus || !bytes.Equal(raw.Data, []byte("a\x00b")) {
		t.Fatalf("unexpected raw record %+v", raw)
	}

	if err := reg.Register(protocol.Type(-1), func() protocol.Record { return &CmdGuard{} }); err == nil {
		t.Fatalf("expected error registering out of range key")
	}
	if err := reg.Register(protocol.TypeDbgStatus, nil); err == nil {
		t.Fatalf("expected error registering nil factory")
	}
	if err := reg.Register(protocol.TypeDbgStatus, func() protocol.Record { return &protocol.RawRecord{Key: protocol.TypeDbgStatus} }); err != nil {
		t.Fatalf("Register: %v", err)
	}
	if reg.Layout(protocol.TypeDbgStatus) != LayoutCodec {
		t.Fatalf("registered key must report a codec")
	}
}
