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

// Package idgen issues time-ordered numeric IDs for process instances.
package idgen

import (
	"errors"
	"math/rand/v2"
	"strconv"
	"sync"
	"time"

	"github.com/sony/sonyflake"
)

// FlakeGenerator wraps sonyflake. IDs increase roughly in time order.
type FlakeGenerator struct {
	sf *sonyflake.Sonyflake
}

var epoch = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

func newFlakeGenerator() (*FlakeGenerator, error) {
	sf, err := sonyflake.New(sonyflake.Settings{StartTime: epoch})
	if err != nil {
		return nil, err
	}
	if sf == nil {
		return nil, errors.New("failed to create Sonyflake instance")
	}
	return &FlakeGenerator{sf: sf}, nil
}

// NextID returns a positive int64. When sonyflake cannot issue an ID a
// random positive value is returned instead.
func (g *FlakeGenerator) NextID() int64 {
	if g == nil || g.sf == nil {
		return rand.Int64()
	}
	v, err := g.sf.NextID()
	if err != nil {
		return rand.Int64()
	}
	return int64(v)
}

// sonyflake needs a private IPv4 address for its machine ID; hosts
// without one fall back to random IDs.
var defaultGenerator = sync.OnceValue(func() *FlakeGenerator {
	g, err := newFlakeGenerator()
	if err != nil {
		return nil
	}
	return g
})

// NextID returns an ID from the process-wide generator.
func NextID() int64 {
	return defaultGenerator().NextID()
}

var instanceID = sync.OnceValue(func() string {
	return strconv.FormatInt(NextID(), 36)
})

// InstanceID identifies this process for its whole lifetime.
func InstanceID() string {
	return instanceID()
}
