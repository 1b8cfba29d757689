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

import "fmt"

// StreamReader walks the records of one transaction as they arrive packet
// by packet. next returns the bytes following the header of the next
// packet; ack is called before fetching the packet that continues a
// segmented record, when the negotiated version supports
// acknowledgements.
type StreamReader struct {
	next          func() ([]byte, error)
	ack           func() error
	version       int
	ackBufferFull bool

	cur     *byteReader
	key     Type
	left    int
	done    bool
	packets int
}

// NewStreamReader returns a reader for a single transaction.
func NewStreamReader(next func() ([]byte, error), ack func() error) *StreamReader {
	return &StreamReader{next: next, ack: ack}
}

// SetVersion sets the negotiated protocol version.
func (r *StreamReader) SetVersion(v int) { r.version = v }

// SetAckBufferFull makes packets ending in MarkerBufferFull acknowledged
// as well. Servers reading client transactions need it: clients wait for
// an ack after every mid-transaction packet, while servers only expect
// one after a segment continuation.
func (r *StreamReader) SetAckBufferFull(v bool) { r.ackBufferFull = v }

// Done reports whether the transaction end marker has been consumed.
func (r *StreamReader) Done() bool { return r.done }

// Packets returns the number of packets consumed so far.
func (r *StreamReader) Packets() int { return r.packets }

// Next returns the type key and reassembled payload of the next record.
// It returns ErrTransactionEnd once the transaction end marker has been
// read.
func (r *StreamReader) Next() (Type, []byte, error) {
	if err := r.advance(); err != nil {
		return 0, nil, err
	}
	if r.done {
		return 0, nil, ErrTransactionEnd
	}
	data, err := r.readRecord()
	if err != nil {
		return 0, nil, err
	}
	return r.key, data, nil
}

// Peek reports the type key of the next record without consuming it. It
// may fetch further packets to find it. ok is false at the end of the
// transaction.
func (r *StreamReader) Peek() (key Type, ok bool, err error) {
	if err := r.advance(); err != nil {
		return 0, false, err
	}
	if r.done {
		return 0, false, nil
	}
	return r.key, true, nil
}

// advance positions the cursor on the next record, reading block headers
// and fetching packets as needed.
func (r *StreamReader) advance() error {
	for !r.done && r.left == 0 {
		if r.cur == nil {
			if err := r.load(); err != nil {
				return err
			}
		}
		if r.cur.remaining() == 0 {
			if err := r.load(); err != nil {
				return err
			}
			continue
		}
		v, err := r.cur.Int()
		if err != nil {
			return fmt.Errorf("%w: block key: %v", ErrInvalidPacket, err)
		}
		switch v {
		case MarkerTransactionEnd:
			r.done = true
			return nil
		case MarkerBufferFull:
			load := r.load
			if r.ackBufferFull {
				load = r.continuePacket
			}
			if err := load(); err != nil {
				return err
			}
			continue
		}
		if !Type(v).Valid() {
			return fmt.Errorf("%w: unexpected block key %d", ErrInvalidPacket, v)
		}
		count, err := r.cur.Field(RecordCountLen)
		if err != nil {
			return fmt.Errorf("%w: record count: %v", ErrInvalidPacket, err)
		}
		r.key = Type(v)
		r.left = count
	}
	return nil
}

func (r *StreamReader) readRecord() ([]byte, error) {
	var out []byte
	for {
		n, err := r.cur.Int()
		if err != nil {
			return nil, fmt.Errorf("%w: record length: %v", ErrInvalidPacket, err)
		}
		data, err := r.cur.read(n)
		if err != nil {
			return nil, fmt.Errorf("%w: record payload: %v", ErrInvalidPacket, err)
		}
		out = append(out, data...)
		marker, err := r.cur.Int()
		if err != nil {
			return nil, fmt.Errorf("%w: record marker: %v", ErrInvalidPacket, err)
		}
		r.left--
		switch marker {
		case MarkerRecordEnd:
			return out, nil
		case MarkerTransactionEnd:
			r.left = 0
			r.done = true
			return out, nil
		case MarkerSegmentContinue:
			if err := r.continuePacket(); err != nil {
				return nil, err
			}
			key, err := r.cur.Int()
			if err != nil {
				return nil, fmt.Errorf("%w: continuation key: %v", ErrInvalidPacket, err)
			}
			if Type(key) != r.key {
				return nil, fmt.Errorf("%w: continuation of %s reopened as key %d", ErrInvalidPacket, r.key, key)
			}
			count, err := r.cur.Field(RecordCountLen)
			if err != nil {
				return nil, fmt.Errorf("%w: continuation count: %v", ErrInvalidPacket, err)
			}
			r.left = count
		default:
			return nil, fmt.Errorf("%w: unknown record marker %d", ErrInvalidPacket, marker)
		}
	}
}

func (r *StreamReader) continuePacket() error {
	if r.version >= VersionNextChunk && r.ack != nil {
		if err := r.ack(); err != nil {
			return fmt.Errorf("send continuation ack: %w", err)
		}
	}
	return r.load()
}

func (r *StreamReader) load() error {
	body, err := r.next()
	if err != nil {
		return err
	}
	r.packets++
	r.cur = newByteReader(body)
	if _, err := r.cur.read(TransactionSizeLen); err != nil {
		return fmt.Errorf("%w: transaction size: %v", ErrInvalidPacket, err)
	}
	return nil
}
