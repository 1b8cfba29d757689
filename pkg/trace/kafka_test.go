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

package trace

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/twmb/franz-go/pkg/kgo"
)

type fakeProducer struct {
	records []*kgo.Record
	err     error
	closed  bool
}

func (p *fakeProducer) ProduceSync(ctx context.Context, rs ...*kgo.Record) kgo.ProduceResults {
	results := make(kgo.ProduceResults, 0, len(rs))
	for _, r := range rs {
		p.records = append(p.records, r)
		results = append(results, kgo.ProduceResult{Record: r, Err: p.err})
	}
	return results
}

func (p *fakeProducer) Close() { p.closed = true }

func TestKafkaSinkPublishesEntries(t *testing.T) {
	prod := &fakeProducer{}
	sink := &KafkaSink{client: prod, topic: "pal-trace"}
	ts := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

	err := sink.Write(context.Background(), []Entry{
		{Time: ts, Direction: Sent, Session: "S1", Data: []byte("NATSPOD")},
		{Time: ts, Direction: Received, Session: "S1", Data: []byte("reply")},
	})
	if err != nil {
		t.Fatalf("Write: %v", err)
	}
	if len(prod.records) != 2 {
		t.Fatalf("expected 2 records got %d", len(prod.records))
	}
	rec := prod.records[1]
	if rec.Topic != "pal-trace" || string(rec.Key) != "S1" {
		t.Fatalf("unexpected record %#v", rec)
	}
	var decoded Entry
	if err := json.Unmarshal(rec.Value, &decoded); err != nil {
		t.Fatalf("decode value: %v", err)
	}
	if decoded.Direction != Received || string(decoded.Data) != "reply" {
		t.Fatalf("unexpected entry %+v", decoded)
	}

	if err := sink.Close(); err != nil || !prod.closed {
		t.Fatalf("Close: %v closed=%v", err, prod.closed)
	}
}

func TestKafkaSinkProduceError(t *testing.T) {
	prod := &fakeProducer{err: errors.New("leader not available")}
	sink := &KafkaSink{client: prod, topic: "pal-trace"}
	if err := sink.Write(context.Background(), []Entry{{Session: "S1"}}); err == nil {
		t.Fatalf("expected produce error")
	}
}

func TestNewKafkaSinkValidation(t *testing.T) {
	if _, err := NewKafkaSink(nil, "t"); err == nil {
		t.Fatalf("expected error without brokers")
	}
	if _, err := NewKafkaSink([]string{"localhost:9092"}, ""); err == nil {
		t.Fatalf("expected error without topic")
	}
}
