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

package pal

// State is the position of a connection in the request/reply cycle.
type State int

const (
	// StateIdle: no transaction is being built and the previous reply, if
	// any, has been read to its end.
	StateIdle State = iota
	// StateBuilding: records have been added but not committed.
	StateBuilding
	// StateCommitted: the transaction was sent and no reply record has
	// been read yet.
	StateCommitted
	// StateDraining: part of the reply has been read.
	StateDraining
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateBuilding:
		return "building"
	case StateCommitted:
		return "committed"
	case StateDraining:
		return "draining"
	default:
		return "unknown"
	}
}
