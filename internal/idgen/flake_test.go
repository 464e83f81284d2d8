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

package idgen

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFlakeGenerator_NextID(t *testing.T) {
	gen, err := newFlakeGenerator()
	if err != nil {
		t.Skipf("sonyflake unavailable on this host: %v", err)
	}

	id := gen.NextID()
	id2 := gen.NextID()
	assert.Greater(t, id2, id, "NextID() did not return increasing id")
}

func TestNilGeneratorFallsBack(t *testing.T) {
	var g *FlakeGenerator
	assert.GreaterOrEqual(t, g.NextID(), int64(0))
}

func TestInstanceIDIsStable(t *testing.T) {
	id := InstanceID()
	assert.NotEmpty(t, id)
	assert.Equal(t, id, InstanceID())
}
