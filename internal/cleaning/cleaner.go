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

// Package cleaning drops trip rows that fail plausibility rules before
// they reach the sink.
package cleaning

import (
	"maps"
	"slices"

	"github.com/cardinalhq/tripload/internal/pipeline"
)

// DropCounts maps a rule name to the number of rows it removed.
type DropCounts map[string]int64

// Add merges other into d.
func (d DropCounts) Add(other DropCounts) {
	for k, v := range other {
		d[k] += v
	}
}

// Total is the number of rows removed across all rules.
func (d DropCounts) Total() int64 {
	var n int64
	for _, v := range d {
		n += v
	}
	return n
}

// Rules returns the rule names in sorted order.
func (d DropCounts) Rules() []string {
	return slices.Sorted(maps.Keys(d))
}

// Cleaner filters a batch in place and reports what it removed.
type Cleaner interface {
	Clean(b *pipeline.Batch) DropCounts
}

// Rule keeps a row when Keep returns true for the value in Column.
// Keep sees nil for null values.
type Rule struct {
	Name   string
	Column string
	Keep   func(v any) bool
}

// RuleCleaner applies rules in order. A dropped row is charged to the
// first rule it fails. Rules on columns absent from the batch schema
// are skipped.
type RuleCleaner struct {
	rules []Rule
}

var _ Cleaner = (*RuleCleaner)(nil)

func NewRuleCleaner(rules ...Rule) *RuleCleaner {
	return &RuleCleaner{rules: slices.Clone(rules)}
}

func (c *RuleCleaner) Clean(b *pipeline.Batch) DropCounts {
	drops := DropCounts{}
	if b == nil || b.Len() == 0 || len(c.rules) == 0 {
		return drops
	}

	schema := b.Schema()
	type boundRule struct {
		name string
		idx  int
		keep func(any) bool
	}
	bound := make([]boundRule, 0, len(c.rules))
	for _, r := range c.rules {
		if idx := schema.Index(r.Column); idx >= 0 {
			bound = append(bound, boundRule{name: r.Name, idx: idx, keep: r.Keep})
		}
	}
	if len(bound) == 0 {
		return drops
	}

	b.Filter(func(row pipeline.Row) bool {
		for _, r := range bound {
			if !r.keep(row[r.idx]) {
				drops[r.name]++
				return false
			}
		}
		return true
	})
	return drops
}

// NoopCleaner keeps every row.
type NoopCleaner struct{}

func (NoopCleaner) Clean(*pipeline.Batch) DropCounts { return DropCounts{} }
