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

// CmdGuard carries the command permissions of the logged on user as four
// bit sets.
type CmdGuard struct {
	Info1 int
	Info2 int
	Info3 int
	Info4 int
}

func (c *CmdGuard) Type() protocol.Type { return protocol.TypeCmdGuard }

func (c *CmdGuard) Encode(w *protocol.RecordWriter) {
	w.Int(c.Info1)
	w.Int(c.Info2)
	w.Int(c.Info3)
	w.Int(c.Info4)
}

func (c *CmdGuard) Decode(r *protocol.RecordReader) {
	c.Info1 = r.Int()
	c.Info2 = r.Int()
	c.Info3 = r.Int()
	c.Info4 = r.Int()
}

func bit(v, mask int) bool { return v&mask == mask }

func (c *CmdGuard) CatalogAllowed() bool   { return bit(c.Info2, 1) }
func (c *CmdGuard) CheckAllowed() bool     { return bit(c.Info2, 4) }
func (c *CmdGuard) StowAllowed() bool      { return bit(c.Info2, 8) }
func (c *CmdGuard) SaveAllowed() bool      { return bit(c.Info2, 16) }
func (c *CmdGuard) ListAllowed() bool      { return bit(c.Info2, 32) }
func (c *CmdGuard) ReadAllowed() bool      { return bit(c.Info2, 64) }
func (c *CmdGuard) CutAllowed() bool       { return bit(c.Info2, 16384) }
func (c *CmdGuard) CopyAllowed() bool      { return bit(c.Info2, 32768) }
func (c *CmdGuard) PasteAllowed() bool     { return bit(c.Info2, 65536) }
func (c *CmdGuard) DeleteAllowed() bool    { return bit(c.Info3, 1) }
func (c *CmdGuard) RenameAllowed() bool    { return bit(c.Info3, 512) }
func (c *CmdGuard) UnlockAllowed() bool    { return bit(c.Info3, 16384) }
func (c *CmdGuard) FDICInstalled() bool    { return bit(c.Info3, 131072) }
func (c *CmdGuard) NSCInstalled() bool     { return !bit(c.Info1, 134217728) }
func (c *CmdGuard) ListDDMAllowed() bool   { return bit(c.Info1, 131072) }
func (c *CmdGuard) SaveDDMAllowed() bool   { return bit(c.Info1, 33554432) }
func (c *CmdGuard) StowDDMAllowed() bool   { return bit(c.Info1, 67108864) }
func (c *CmdGuard) DeleteDDMAllowed() bool { return bit(c.Info1, 2097152) }

// Private reports whether the user works in private mode.
func (c *CmdGuard) Private() bool { return !bit(c.Info3, 65536) }
