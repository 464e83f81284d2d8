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

package pipeline

import (
	"errors"
	"fmt"
	"strings"
)

// DataType is the logical type of a target column.
type DataType int

const (
	DataTypeInt64 DataType = iota
	DataTypeFloat64
	DataTypeString
	DataTypeTimestamp
)

func (t DataType) String() string {
	switch t {
	case DataTypeInt64:
		return "int64"
	case DataTypeFloat64:
		return "float64"
	case DataTypeString:
		return "string"
	case DataTypeTimestamp:
		return "timestamp"
	default:
		return fmt.Sprintf("DataType(%d)", int(t))
	}
}

// Column is one column of the destination table.
type Column struct {
	Name    string
	Type    DataType
	Aliases []string
}

// TargetSchema is the ordered list of destination columns plus the
// table they live in. It is immutable after construction and safe to
// share between workers.
type TargetSchema struct {
	table   string
	columns []Column
	names   []string
	byName  map[string]int
	// exact holds every canonical name and alias as spelled.
	exact map[string]int
	// folded holds the lowercase form of every canonical name and alias.
	folded map[string]int
}

// NewTargetSchema validates the column list and precomputes the lookup
// indexes used during source column resolution.
func NewTargetSchema(table string, columns ...Column) (*TargetSchema, error) {
	if table == "" {
		return nil, errors.New("target schema requires a table name")
	}
	if len(columns) == 0 {
		return nil, errors.New("target schema requires at least one column")
	}

	s := &TargetSchema{
		table:   table,
		columns: make([]Column, len(columns)),
		names:   make([]string, len(columns)),
		byName:  make(map[string]int, len(columns)),
		exact:   make(map[string]int, len(columns)*2),
		folded:  make(map[string]int, len(columns)*2),
	}

	for i, c := range columns {
		if c.Name == "" {
			return nil, fmt.Errorf("target column %d has no name", i)
		}
		if _, dup := s.byName[c.Name]; dup {
			return nil, fmt.Errorf("duplicate target column %q", c.Name)
		}
		c.Aliases = append([]string(nil), c.Aliases...)
		s.columns[i] = c
		s.names[i] = c.Name
		s.byName[c.Name] = i
	}

	for i, c := range s.columns {
		for _, n := range append([]string{c.Name}, c.Aliases...) {
			if other, ok := s.exact[n]; ok && other != i {
				return nil, fmt.Errorf("name %q maps to both %q and %q", n, s.columns[other].Name, c.Name)
			}
			s.exact[n] = i
			lower := strings.ToLower(n)
			if other, ok := s.folded[lower]; ok && other != i {
				return nil, fmt.Errorf("name %q maps to both %q and %q ignoring case", n, s.columns[other].Name, c.Name)
			}
			s.folded[lower] = i
		}
	}

	return s, nil
}

// MustTargetSchema is NewTargetSchema for static schemas.
func MustTargetSchema(table string, columns ...Column) *TargetSchema {
	s, err := NewTargetSchema(table, columns...)
	if err != nil {
		panic(err)
	}
	return s
}

func (s *TargetSchema) Table() string { return s.table }

func (s *TargetSchema) Len() int { return len(s.columns) }

// Columns returns a copy of the column list.
func (s *TargetSchema) Columns() []Column {
	out := make([]Column, len(s.columns))
	copy(out, s.columns)
	return out
}

// Column returns the column at position i.
func (s *TargetSchema) Column(i int) Column { return s.columns[i] }

// Names returns the canonical column names in table order. The returned
// slice must not be modified.
func (s *TargetSchema) Names() []string { return s.names }

// Index returns the position of the canonical column name, or -1.
func (s *TargetSchema) Index(name string) int {
	if i, ok := s.byName[name]; ok {
		return i
	}
	return -1
}

// WithTable returns a copy of the schema bound to a different table.
func (s *TargetSchema) WithTable(table string) *TargetSchema {
	out := *s
	out.table = table
	return &out
}

// Projection maps target columns to source columns. Sources[i] is the
// source column index feeding target column i, or -1 when the target
// column is absent from the source and must be null-filled.
type Projection struct {
	Sources []int
	// Missing lists target columns with no source.
	Missing []string
	// Dropped lists source columns that matched no target column.
	Dropped []string
}

// Resolve binds source column names to target columns. An exact match
// on a canonical name or alias wins; otherwise the first unused source
// column that matches ignoring case is taken. Each source column feeds
// at most one target column.
func (s *TargetSchema) Resolve(sourceNames []string) Projection {
	p := Projection{Sources: make([]int, len(s.columns))}
	for i := range p.Sources {
		p.Sources[i] = -1
	}
	used := make([]bool, len(sourceNames))

	// Canonical-name matches are bound before alias matches so that a file
	// carrying both spellings keeps the canonical one.
	for si, name := range sourceNames {
		if ti, ok := s.byName[name]; ok && p.Sources[ti] < 0 {
			p.Sources[ti] = si
			used[si] = true
		}
	}
	for si, name := range sourceNames {
		if used[si] {
			continue
		}
		if ti, ok := s.exact[name]; ok && p.Sources[ti] < 0 {
			p.Sources[ti] = si
			used[si] = true
		}
	}
	for si, name := range sourceNames {
		if used[si] {
			continue
		}
		if ti, ok := s.folded[strings.ToLower(name)]; ok && p.Sources[ti] < 0 {
			p.Sources[ti] = si
			used[si] = true
		}
	}

	for ti, si := range p.Sources {
		if si < 0 {
			p.Missing = append(p.Missing, s.columns[ti].Name)
		}
	}
	for si, name := range sourceNames {
		if !used[si] {
			p.Dropped = append(p.Dropped, name)
		}
	}
	return p
}
