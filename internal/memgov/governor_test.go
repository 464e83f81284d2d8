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

package memgov

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fixedRSS(v uint64) Option {
	return WithRSSSampler(func() (uint64, error) { return v, nil })
}

func TestGovernor_AbsoluteThreshold(t *testing.T) {
	g, err := New(Config{ThresholdBytes: 1000}, fixedRSS(999))
	require.NoError(t, err)
	assert.Equal(t, uint64(1000), g.Threshold())
	assert.False(t, g.IsUnderPressure())

	g, err = New(Config{ThresholdBytes: 1000}, fixedRSS(1001))
	require.NoError(t, err)
	assert.True(t, g.IsUnderPressure())

	w := g.Check(context.Background())
	require.NotNil(t, w)
	assert.Equal(t, uint64(1001), w.RSSBytes)
	assert.Equal(t, uint64(1000), w.ThresholdBytes)
	assert.Contains(t, w.Error(), "exceeds threshold")
}

func TestGovernor_PercentThreshold(t *testing.T) {
	orig := hostLimit
	t.Cleanup(func() { hostLimit = orig })
	hostLimit = func() (uint64, error) { return 10_000, nil }

	g, err := New(Config{ThresholdPercent: 50}, fixedRSS(1))
	require.NoError(t, err)
	assert.Equal(t, uint64(5000), g.Threshold())

	g, err = New(DefaultConfig(), fixedRSS(1))
	require.NoError(t, err)
	assert.Equal(t, uint64(8000), g.Threshold())

	_, err = New(Config{ThresholdPercent: 150}, fixedRSS(1))
	assert.Error(t, err)
}

func TestGovernor_UnknownHostLimit(t *testing.T) {
	orig := hostLimit
	t.Cleanup(func() { hostLimit = orig })

	hostLimit = func() (uint64, error) { return 0, errors.New("no limit") }
	_, err := New(DefaultConfig(), fixedRSS(1))
	assert.Error(t, err)

	hostLimit = func() (uint64, error) { return 0, nil }
	_, err = New(DefaultConfig(), fixedRSS(1))
	assert.Error(t, err)
}

func TestGovernor_SampleErrorIsNoPressure(t *testing.T) {
	g, err := New(Config{ThresholdBytes: 1}, WithRSSSampler(func() (uint64, error) {
		return 0, errors.New("boom")
	}))
	require.NoError(t, err)
	assert.False(t, g.IsUnderPressure())
	assert.Equal(t, int64(1), g.Stats().Checks)
	assert.Equal(t, int64(0), g.Stats().Pressure)
}

func TestGovernor_ForceReclaim(t *testing.T) {
	calls := 0
	g, err := New(Config{ThresholdBytes: 1}, fixedRSS(2), WithReclaimer(func() { calls++ }))
	require.NoError(t, err)

	g.ForceReclaim()
	g.ForceReclaim()
	assert.Equal(t, 2, calls)
	assert.Equal(t, int64(2), g.Stats().Reclaims)
}

func TestGovernor_Disabled(t *testing.T) {
	g, err := New(Config{Disabled: true})
	require.NoError(t, err)
	assert.Nil(t, g)

	// A nil governor is inert.
	assert.False(t, g.IsUnderPressure())
	assert.Nil(t, g.Check(context.Background()))
	g.ForceReclaim()
	assert.Equal(t, Stats{}, g.Stats())
	assert.Equal(t, uint64(0), g.Threshold())
}

func TestGovernor_RealSampler(t *testing.T) {
	g, err := New(Config{ThresholdBytes: 1 << 62})
	require.NoError(t, err)
	assert.False(t, g.IsUnderPressure())
}
