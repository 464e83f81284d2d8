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
	"context"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/cardinalhq/tripload/internal/cleaning"
	"github.com/cardinalhq/tripload/internal/filereader"
	"github.com/cardinalhq/tripload/internal/ledger"
	"github.com/cardinalhq/tripload/internal/pipeline"
)

// recordingSink keeps copies of every row it is given.
type recordingSink struct {
	mu      sync.Mutex
	rows    []pipeline.Row
	batches int
	// onWrite runs before the rows are kept; an error fails the write.
	onWrite func(b *pipeline.Batch) error
}

func (s *recordingSink) Write(_ context.Context, b *pipeline.Batch) (int64, error) {
	if s.onWrite != nil {
		if err := s.onWrite(b); err != nil {
			return 0, err
		}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.batches++
	for _, r := range b.Rows() {
		s.rows = append(s.rows, pipeline.CopyRow(r))
	}
	return int64(b.Len()), nil
}

func (s *recordingSink) rowCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.rows)
}

// countingOpener wraps OpenRowGroupReader, counting opens per path and
// the peak number of readers open at once.
type countingOpener struct {
	mu    sync.Mutex
	opens map[string]int
	open  atomic.Int64
	peak  atomic.Int64
}

func newCountingOpener() *countingOpener {
	return &countingOpener{opens: map[string]int{}}
}

func (c *countingOpener) Open(ctx context.Context, path string, schema *pipeline.TargetSchema, batchRows int) (filereader.Reader, error) {
	c.mu.Lock()
	c.opens[path]++
	c.mu.Unlock()

	r, err := OpenRowGroupReader(ctx, path, schema, batchRows)
	if err != nil {
		return nil, err
	}
	n := c.open.Add(1)
	for {
		p := c.peak.Load()
		if n <= p || c.peak.CompareAndSwap(p, n) {
			break
		}
	}
	return &closeNotifier{Reader: r, onClose: func() { c.open.Add(-1) }}, nil
}

type closeNotifier struct {
	filereader.Reader
	onClose func()
}

func (c *closeNotifier) Close() error {
	c.onClose()
	return c.Reader.Close()
}

func newTestDeps(l ledger.Ledger, s *recordingSink) Dependencies {
	return Dependencies{
		Ledger:  l,
		Sink:    s,
		Schema:  pipeline.YellowTaxiSchema(),
		Cleaner: cleaning.NewTaxiCleaner(),
	}
}

func newTestCoordinator(t *testing.T, cfg Config, deps Dependencies) *Coordinator {
	t.Helper()
	c, err := NewCoordinator(cfg, deps)
	require.NoError(t, err)
	return c
}
