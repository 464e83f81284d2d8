// Copyright (C) 2026 CardinalHQ, Inc
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as
// published by the Free Software Foundation, version 3.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with this program. If not, see <http://www.gnu.org/licenses/>.

package importer

import "fmt"

// FileState is the position of one file in its import.
//
//	Pending -> Reading -> Writing -> Completed
//	Pending -> Skipped
//	any     -> Failed
type FileState int

const (
	StatePending FileState = iota
	StateReading
	StateWriting
	StateCompleted
	StateSkipped
	StateFailed
)

var fileStateNames = [...]string{
	StatePending:   "pending",
	StateReading:   "reading",
	StateWriting:   "writing",
	StateCompleted: "completed",
	StateSkipped:   "skipped",
	StateFailed:    "failed",
}

func (s FileState) String() string {
	if s < 0 || int(s) >= len(fileStateNames) {
		return fmt.Sprintf("FileState(%d)", int(s))
	}
	return fileStateNames[s]
}

func (s FileState) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// Terminal reports whether no further transition is possible.
func (s FileState) Terminal() bool {
	return s == StateCompleted || s == StateSkipped || s == StateFailed
}

// canTransition enforces the state machine.
func canTransition(from, to FileState) bool {
	if from.Terminal() {
		return false
	}
	switch to {
	case StateFailed:
		return true
	case StateSkipped:
		// A ledger conflict at commit time also ends in Skipped.
		return from == StatePending || from == StateReading || from == StateWriting
	case StateReading:
		return from == StatePending || from == StateWriting
	case StateWriting:
		return from == StateReading
	case StateCompleted:
		return from == StateReading || from == StateWriting
	}
	return false
}
