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
	"fmt"
	"io"
)

// HeaderLen is the fixed size of every packet header and control sentinel.
const HeaderLen = 26

// Signature opens every packet header.
const Signature = "NATSPOD"

const (
	sizeOffset     = 7
	sizeWidth      = 8
	entriesOffset  = 15
	entriesWidth   = 3
	payloadOffset  = 18
	payloadDigits  = 7
	payloadWidth   = 8
	formatFlagByte = 25

	formatOld      byte = 0x01
	formatAnnounce byte = 0x02
)

var (
	nextChunkText  = []byte("NATSPODNEXTCHUNK")
	disconnectText = []byte("NATSPODDISCONNECT")
)

// NextChunk returns the continuation acknowledgement sentinel.
func NextChunk() []byte { return sentinel(nextChunkText) }

// Disconnect returns the graceful close sentinel.
func Disconnect() []byte { return sentinel(disconnectText) }

func sentinel(text []byte) []byte {
	out := bytes.Repeat([]byte{' '}, HeaderLen)
	copy(out, text)
	return out
}

// IsNextChunk reports whether a 26-byte header slot carries the
// continuation acknowledgement instead of a packet header.
func IsNextChunk(b []byte) bool {
	return bytes.HasPrefix(b, nextChunkText)
}

// IsDisconnect reports whether a header slot carries the close sentinel.
func IsDisconnect(b []byte) bool {
	return bytes.HasPrefix(b, disconnectText)
}

// Header is the decoded fixed-width packet header.
type Header struct {
	PacketSize int
	Entries    int
	// PayloadLen is the number of bytes after the header minus the trailer.
	PayloadLen int
	// NewFormat selects the new layout: the payload length fills all eight
	// bytes of its field and no flag byte is carried.
	NewFormat bool
	// Announce marks an old format header with the flag asking the peer to
	// switch to the new format. It is ignored when NewFormat is set.
	Announce bool
}

// BodyLen is the number of bytes following the header on the wire.
func (h Header) BodyLen() int {
	return h.PayloadLen + TrailerLen
}

// EncodeHeader writes h into the first HeaderLen bytes of dst.
func EncodeHeader(dst []byte, h Header) error {
	if len(dst) < HeaderLen {
		return fmt.Errorf("header buffer too small: %d", len(dst))
	}
	copy(dst, Signature)
	if err := formatDecimal(dst[sizeOffset:sizeOffset+sizeWidth], h.PacketSize); err != nil {
		return fmt.Errorf("encode packet size: %w", err)
	}
	if err := formatDecimal(dst[entriesOffset:entriesOffset+entriesWidth], h.Entries); err != nil {
		return fmt.Errorf("encode entries: %w", err)
	}
	if h.NewFormat {
		if err := formatDecimal(dst[payloadOffset:payloadOffset+payloadWidth], h.PayloadLen); err != nil {
			return fmt.Errorf("encode payload length: %w", err)
		}
		return nil
	}
	if err := formatDecimal(dst[payloadOffset:payloadOffset+payloadDigits], h.PayloadLen); err != nil {
		return fmt.Errorf("encode payload length: %w", err)
	}
	dst[formatFlagByte] = formatOld
	if h.Announce {
		dst[formatFlagByte] = formatAnnounce
	}
	return nil
}

// DecodeHeader parses a 26-byte packet header. A last byte of 0x01 or
// 0x02 is the old format flag; anything else belongs to the payload
// length of a new format header.
func DecodeHeader(b []byte) (Header, error) {
	if len(b) < HeaderLen {
		return Header{}, fmt.Errorf("%w: short header (%d bytes)", ErrInvalidHeader, len(b))
	}
	if !bytes.Equal(b[:sizeOffset], []byte(Signature)) {
		return Header{}, fmt.Errorf("%w: bad signature %q", ErrInvalidHeader, b[:sizeOffset])
	}
	var h Header
	var err error
	if h.PacketSize, err = parseDecimal(b[sizeOffset : sizeOffset+sizeWidth]); err != nil {
		return Header{}, fmt.Errorf("%w: packet size: %v", ErrInvalidHeader, err)
	}
	if h.Entries, err = parseDecimal(b[entriesOffset : entriesOffset+entriesWidth]); err != nil {
		return Header{}, fmt.Errorf("%w: entries: %v", ErrInvalidHeader, err)
	}
	if h.PayloadLen, err = parseDecimal(b[payloadOffset : payloadOffset+payloadWidth]); err != nil {
		return Header{}, fmt.Errorf("%w: payload length: %v", ErrInvalidHeader, err)
	}
	if h.BodyLen() > MaxPacketSize {
		return Header{}, fmt.Errorf("%w: payload length %d exceeds packet cap", ErrInvalidHeader, h.PayloadLen)
	}
	switch b[formatFlagByte] {
	case formatOld:
	case formatAnnounce:
		h.Announce = true
	default:
		h.NewFormat = true
	}
	return h, nil
}

// Control classifies what a header slot carried.
type Control int

const (
	ControlNone Control = iota
	ControlNextChunk
	ControlDisconnect
)

// Packet is one unit read from the wire. Body holds every byte after the
// header, the trailer included. Control packets have no header or body.
type Packet struct {
	Control Control
	Header  Header
	Body    []byte
}

// Trailer returns the marker carried in the last TrailerLen bytes.
func (p *Packet) Trailer() int {
	if len(p.Body) < TrailerLen {
		return 0
	}
	v, err := parseDecimal(p.Body[len(p.Body)-TrailerLen:])
	if err != nil {
		return 0
	}
	return v
}

// ReadPacket reads a single packet or control sentinel from r.
func ReadPacket(r io.Reader) (*Packet, error) {
	var head [HeaderLen]byte
	if _, err := io.ReadFull(r, head[:]); err != nil {
		return nil, fmt.Errorf("read packet header: %w", err)
	}
	switch {
	case IsNextChunk(head[:]):
		return &Packet{Control: ControlNextChunk}, nil
	case IsDisconnect(head[:]):
		return &Packet{Control: ControlDisconnect}, nil
	}
	h, err := DecodeHeader(head[:])
	if err != nil {
		return nil, err
	}
	body := make([]byte, h.BodyLen())
	if _, err := io.ReadFull(r, body); err != nil {
		return nil, fmt.Errorf("read packet body: %w", err)
	}
	return &Packet{Header: h, Body: body}, nil
}

// WriteControl writes a control sentinel such as NextChunk() to w.
func WriteControl(w io.Writer, s []byte) error {
	if _, err := w.Write(s); err != nil {
		return fmt.Errorf("write control sentinel: %w", err)
	}
	return nil
}
