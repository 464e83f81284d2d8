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

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFileStateTransitions(t *testing.T) {
	tests := []struct {
		from, to FileState
		ok       bool
	}{
		{StatePending, StateReading, true},
		{StatePending, StateSkipped, true},
		{StatePending, StateFailed, true},
		{StatePending, StateWriting, false},
		{StateReading, StateWriting, true},
		{StateReading, StateCompleted, true},
		{StateWriting, StateReading, true},
		{StateWriting, StateFailed, true},
		{StateWriting, StateSkipped, true},
		{StateCompleted, StateFailed, false},
		{StateSkipped, StateReading, false},
		{StateFailed, StatePending, false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.ok, canTransition(tt.from, tt.to), "%s -> %s", tt.from, tt.to)
	}
}

func TestFileStateString(t *testing.T) {
	assert.Equal(t, "completed", StateCompleted.String())
	assert.Equal(t, "FileState(42)", FileState(42).String())

	b, err := StateSkipped.MarshalText()
	assert.NoError(t, err)
	assert.Equal(t, "skipped", string(b))
}
