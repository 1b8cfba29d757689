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
	"fmt"
)

// Builder assembles one transaction into packets of at most MaxPacketSize
// bytes, splitting records that do not fit across packets.
//
// Full packets are handed to send as soon as they are sealed. When the
// negotiated version supports it, awaitAck blocks after every
// mid-transaction packet until the peer acknowledges it.
type Builder struct {
	send     func([]byte) error
	awaitAck func() error

	version       int
	newFormat     bool
	announce      bool
	bufferFullAck bool
	session       Session

	buf       []byte
	pos       int
	blockOpen bool
	blockKey  Type
	countPos  int
	count     int
	pending   map[Type]struct{}

	packets int64
	written int64
}

// NewBuilder returns a builder that emits packets through send.
func NewBuilder(send func([]byte) error, awaitAck func() error) *Builder {
	b := &Builder{
		send:          send,
		awaitAck:      awaitAck,
		buf:           make([]byte, MaxPacketSize),
		pending:       make(map[Type]struct{}),
		bufferFullAck: true,
	}
	b.resetPacket()
	return b
}

// SetVersion sets the negotiated protocol version.
func (b *Builder) SetVersion(v int) { b.version = v }

// SetNewFormat switches subsequent headers to the new format, where the
// payload length fills its whole field and no flag byte is written.
func (b *Builder) SetNewFormat(v bool) { b.newFormat = v }

// SetAnnounceFormat marks old format headers with the flag that tells the
// peer to switch to the new format.
func (b *Builder) SetAnnounceFormat(v bool) { b.announce = v }

// SetBufferFullAck controls whether a packet flushed with
// MarkerBufferFull waits for an acknowledgement. Clients wait; a server
// replying to a client must not, because clients only acknowledge
// segment continuations.
func (b *Builder) SetBufferFullAck(v bool) { b.bufferFullAck = v }

// SetSession sets the parameters passed to SessionAware records.
func (b *Builder) SetSession(s Session) { b.session = s }

// Pending reports whether any record was added since the last commit.
func (b *Builder) Pending() bool { return len(b.pending) > 0 }

// Packets returns the number of packets sent so far.
func (b *Builder) Packets() int64 { return b.packets }

// BytesSent returns the number of bytes sent so far.
func (b *Builder) BytesSent() int64 { return b.written }

// Add appends records of a single type key to the open transaction.
func (b *Builder) Add(records ...Record) error {
	if len(records) == 0 {
		return nil
	}
	key := records[0].Type()
	for _, rec := range records[1:] {
		if rec.Type() != key {
			return fmt.Errorf("%w: %s and %s", ErrMixedTypes, key, rec.Type())
		}
	}
	if _, ok := b.pending[key]; ok {
		return &DuplicateTypeError{Key: key}
	}
	b.pending[key] = struct{}{}
	for _, rec := range records {
		if sa, ok := rec.(SessionAware); ok {
			sa.SetSession(b.session)
		}
		if err := b.writeRecord(key, EncodeRecord(rec)); err != nil {
			return err
		}
	}
	return nil
}

// Commit terminates the transaction, sends the final packet and resets
// the builder for the next transaction.
func (b *Builder) Commit() error {
	b.closeBlock()
	b.putMarker(MarkerTransactionEnd)
	err := b.sendPacket()
	b.resetPacket()
	b.pending = make(map[Type]struct{})
	return err
}

// Reset discards any partially built transaction.
func (b *Builder) Reset() {
	b.resetPacket()
	b.pending = make(map[Type]struct{})
}

func (b *Builder) writeRecord(key Type, payload []byte) error {
	rest := payload
	for {
		overhead := followingRecordOverhead
		if !b.blockOpen || b.blockKey != key {
			overhead = firstRecordOverhead
		}
		if b.pos+overhead+len(rest) < MaxPacketSize {
			b.openBlock(key)
			b.putRecord(rest, MarkerRecordEnd)
			return nil
		}
		space := MaxPacketSize - (b.pos + overhead)
		if space <= 0 {
			b.closeBlock()
			b.putMarker(MarkerBufferFull)
			if err := b.flush(b.bufferFullAck); err != nil {
				return err
			}
			continue
		}
		b.openBlock(key)
		if space >= len(rest) {
			b.putRecord(rest, MarkerRecordEnd)
			return nil
		}
		b.putRecord(rest[:space], MarkerSegmentContinue)
		rest = rest[space:]
		b.closeBlock()
		if err := b.flush(true); err != nil {
			return err
		}
	}
}

func (b *Builder) openBlock(key Type) {
	if b.blockOpen && b.blockKey == key {
		return
	}
	b.closeBlock()
	b.pos += putInt(b.buf[b.pos:], int(key))
	b.countPos = b.pos
	for i := 0; i < RecordCountLen; i++ {
		b.buf[b.pos+i] = ' '
	}
	b.pos += RecordCountLen
	b.blockOpen = true
	b.blockKey = key
	b.count = 0
}

func (b *Builder) closeBlock() {
	if !b.blockOpen {
		return
	}
	putInt(b.buf[b.countPos:b.countPos+RecordCountLen], b.count)
	b.blockOpen = false
}

func (b *Builder) putRecord(data []byte, marker int) {
	b.pos += putInt(b.buf[b.pos:], len(data))
	b.pos += copy(b.buf[b.pos:], data)
	b.putMarker(marker)
	b.count++
}

func (b *Builder) putMarker(marker int) {
	b.pos += putInt(b.buf[b.pos:], marker)
}

// flush sends a mid-transaction packet and, when ack is set, waits for the
// continuation acknowledgement if the peer supports it.
func (b *Builder) flush(ack bool) error {
	err := b.sendPacket()
	b.resetPacket()
	if err != nil {
		return err
	}
	if ack && b.version >= VersionNextChunk && b.awaitAck != nil {
		if err := b.awaitAck(); err != nil {
			return fmt.Errorf("await continuation ack: %w", err)
		}
	}
	return nil
}

func (b *Builder) sendPacket() error {
	sizeField := b.buf[HeaderLen:firstWriteOffset]
	for i := range sizeField {
		sizeField[i] = 0
	}
	putInt(sizeField, b.pos-HeaderLen)
	h := Header{
		PacketSize: b.pos,
		Entries:    1,
		PayloadLen: b.pos - HeaderLen - TrailerLen,
		NewFormat:  b.newFormat,
		Announce:   b.announce,
	}
	if err := EncodeHeader(b.buf, h); err != nil {
		return err
	}
	out := make([]byte, b.pos)
	copy(out, b.buf[:b.pos])
	if err := b.send(out); err != nil {
		return fmt.Errorf("send packet: %w", err)
	}
	b.packets++
	b.written += int64(len(out))
	return nil
}

func (b *Builder) resetPacket() {
	b.pos = firstWriteOffset
	b.blockOpen = false
	b.count = 0
}
