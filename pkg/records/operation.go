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

// Operation sub keys.
const (
	SubKeyUnknown        = 0
	SubKeyCheck          = 2
	SubKeyRaw            = 3
	SubKeySave           = 4
	SubKeyLibStatRebuild = 5
	SubKeyExecute        = 6
	SubKeyDebug          = 7
	SubKeyList           = 8
	SubKeyRead           = 10
	SubKeyReadDDM        = 11
	SubKeyLogon          = 12
	SubKeyGenDDM         = 17
	SubKeyEdit           = 21
	SubKeyCheckNoSource  = 28
)

// Operation flags.
const (
	FlagIni = 0
	FlagMap = 1
)

// Operation opens every transaction and names the action the server should
// perform. The session and user id are stamped by the client on add.
type Operation struct {
	TransactionID int
	SubKey        int
	Flags         int
	ClientID      string
	UserID        string
}

// NewOperation returns an operation for transaction tx with sub key sub.
func NewOperation(tx, sub int) *Operation {
	return &Operation{TransactionID: tx, SubKey: sub}
}

func (o *Operation) Type() protocol.Type { return protocol.TypeOperation }

func (o *Operation) Encode(w *protocol.RecordWriter) {
	w.Int(o.TransactionID)
	w.Int(o.SubKey)
	w.Int(o.Flags)
	w.Text(o.ClientID)
	w.Text(o.UserID)
}

func (o *Operation) Decode(r *protocol.RecordReader) {
	o.TransactionID = r.Int()
	o.SubKey = r.Int()
	o.Flags = r.Int()
	o.ClientID = r.Text()
	o.UserID = r.Text()
}

func (o *Operation) SetClientID(id string) { o.ClientID = id }
func (o *Operation) SetUserID(id string)   { o.UserID = id }

// AddFlags ORs f into the operation flags.
func (o *Operation) AddFlags(f int) { o.Flags |= f }
