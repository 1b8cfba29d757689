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
	"bytes"
	"errors"
	"testing"
)

func TestHeaderEncodeDecode(t *testing.T) {
	buf := make([]byte, HeaderLen)
	in := Header{PacketSize: 120, Entries: 1, PayloadLen: 88}
	if err := EncodeHeader(buf, in); err != nil {
		t.Fatalf("EncodeHeader: %v", err)
	}
	want := "NATSPOD00000120001" + "0000088\x01"
	if string(buf) != want {
		t.Fatalf("unexpected header bytes: %q", buf)
	}

	out, err := DecodeHeader(buf)
	if err != nil {
		t.Fatalf("DecodeHeader: %v", err)
	}
	if out != in {
		t.Fatalf("header mismatch: %+v vs %+v", out, in)
	}
}

func TestHeaderAnnounceFlag(t *testing.T) {
	buf := make([]byte, HeaderLen)
	if err := EncodeHeader(buf, Header{PacketSize: 50, Entries: 1, PayloadLen: 18, Announce: true}); err != nil {
		t.Fatalf("EncodeHeader: %v", err)
	}
	if buf[HeaderLen-1] != 0x02 {
		t.Fatalf("expected announce flag, got %#x", buf[HeaderLen-1])
	}
	h, err := DecodeHeader(buf)
	if err != nil {
		t.Fatalf("DecodeHeader: %v", err)
	}
	if !h.Announce || h.NewFormat || h.PayloadLen != 18 {
		t.Fatalf("unexpected header: %+v", h)
	}
}

func TestHeaderNewFormatUsesWholeLengthField(t *testing.T) {
	buf := make([]byte, HeaderLen)
	in := Header{PacketSize: 3950, Entries: 1, PayloadLen: 3918, NewFormat: true, Announce: true}
	if err := EncodeHeader(buf, in); err != nil {
		t.Fatalf("EncodeHeader: %v", err)
	}
	if got := string(buf[payloadOffset:]); got != "00003918" {
		t.Fatalf("payload length field %q, want eight digits and no flag", got)
	}
	h, err := DecodeHeader(buf)
	if err != nil {
		t.Fatalf("DecodeHeader: %v", err)
	}
	if !h.NewFormat || h.Announce || h.PayloadLen != 3918 {
		t.Fatalf("unexpected header: %+v", h)
	}

	// left aligned and NUL terminated, as older peers write it
	raw := []byte("NATSPOD" + "50\x00\x00\x00\x00\x00\x00" + "1\x00\x00" + "18\x00\x00\x00\x00\x00\x00")
	if h, err = DecodeHeader(raw); err != nil || !h.NewFormat || h.PayloadLen != 18 {
		t.Fatalf("left aligned new format header: %+v %v", h, err)
	}
}

func TestDecodeHeaderTolerantPadding(t *testing.T) {
	// left aligned, NUL terminated fields
	raw := []byte("NATSPOD" + "120\x00\x00\x00\x00\x00" + "1\x00\x00" + "88\x00\x00\x00\x00\x00\x01")
	h, err := DecodeHeader(raw)
	if err != nil {
		t.Fatalf("DecodeHeader: %v", err)
	}
	if h.PacketSize != 120 || h.Entries != 1 || h.PayloadLen != 88 {
		t.Fatalf("unexpected header: %+v", h)
	}

	// space padded
	raw = []byte("NATSPOD" + "     120" + "  1" + "     88\x01")
	h, err = DecodeHeader(raw)
	if err != nil {
		t.Fatalf("DecodeHeader: %v", err)
	}
	if h.PayloadLen != 88 {
		t.Fatalf("unexpected payload length: %d", h.PayloadLen)
	}
}

func TestDecodeHeaderRejectsBadSignature(t *testing.T) {
	raw := []byte("KAFKAPD00000120001" + "0000088\x01")
	if _, err := DecodeHeader(raw); !errors.Is(err, ErrInvalidHeader) {
		t.Fatalf("expected ErrInvalidHeader, got %v", err)
	}
	if _, err := DecodeHeader(raw[:10]); !errors.Is(err, ErrInvalidHeader) {
		t.Fatalf("expected ErrInvalidHeader for short header, got %v", err)
	}
}

func TestSentinels(t *testing.T) {
	if len(NextChunk()) != HeaderLen || len(Disconnect()) != HeaderLen {
		t.Fatalf("sentinels must fill a header slot")
	}
	if !IsNextChunk(NextChunk()) || IsNextChunk(Disconnect()) {
		t.Fatalf("NEXTCHUNK detection failed")
	}
	if !IsDisconnect(Disconnect()) || IsDisconnect(NextChunk()) {
		t.Fatalf("DISCONNECT detection failed")
	}
}

func TestReadPacket(t *testing.T) {
	var buf bytes.Buffer
	b := NewBuilder(func(p []byte) error {
		buf.Write(p)
		return nil
	}, nil)
	if err := b.Add(&blobRecord{key: TypeOperation, data: []byte("abc")}); err != nil {
		t.Fatalf("Add: %v", err)
	}
	if err := b.Commit(); err != nil {
		t.Fatalf("Commit: %v", err)
	}
	if err := WriteControl(&buf, NextChunk()); err != nil {
		t.Fatalf("WriteControl: %v", err)
	}

	pkt, err := ReadPacket(&buf)
	if err != nil {
		t.Fatalf("ReadPacket: %v", err)
	}
	if pkt.Control != ControlNone {
		t.Fatalf("expected data packet, got control %d", pkt.Control)
	}
	if pkt.Header.PacketSize != HeaderLen+len(pkt.Body) {
		t.Fatalf("packet size %d does not match body %d", pkt.Header.PacketSize, len(pkt.Body))
	}
	if pkt.Trailer() != MarkerTransactionEnd {
		t.Fatalf("unexpected trailer %d", pkt.Trailer())
	}

	ctrl, err := ReadPacket(&buf)
	if err != nil {
		t.Fatalf("ReadPacket control: %v", err)
	}
	if ctrl.Control != ControlNextChunk {
		t.Fatalf("expected NEXTCHUNK, got %d", ctrl.Control)
	}

	if _, err := ReadPacket(&buf); err == nil {
		t.Fatalf("expected error on empty reader")
	}
}
