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
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/hashicorp/go-multierror"

	"github.com/cardinalhq/tripload/internal/cleaning"
	"github.com/cardinalhq/tripload/internal/sink"
)

// FileOutcome is what one Worker did with one file.
type FileOutcome struct {
	FileName           string              `json:"file_name"`
	Path               string              `json:"path"`
	State              FileState           `json:"state"`
	FileSizeBytes      int64               `json:"file_size_bytes"`
	RowsRead           int64               `json:"rows_read"`
	RowsDropped        int64               `json:"rows_dropped"`
	RowsWritten        int64               `json:"rows_written"`
	Batches            int                 `json:"batches"`
	ConversionFailures int64               `json:"conversion_failures,omitempty"`
	DropCounts         cleaning.DropCounts `json:"drop_counts,omitempty"`
	DurationSeconds    float64             `json:"duration_seconds"`
	// Reason explains a Skipped or Failed outcome.
	Reason string `json:"reason,omitempty"`
	Err    error  `json:"-"`
}

// SkippedFile names a file that needed no work.
type SkippedFile struct {
	FileName string `json:"file_name"`
	Reason   string `json:"reason"`
	// RowsWritten is non-zero only when another import recorded the file
	// first; those rows are duplicates already in the destination.
	RowsWritten int64 `json:"rows_written,omitempty"`
}

// FileFailure names a file whose import failed. The file has no ledger
// entry and will be retried by the next run.
type FileFailure struct {
	FileName string `json:"file_name"`
	Reason   string `json:"reason"`
	Err      error  `json:"-"`
}

// RunResult summarizes one Coordinator run. It is complete once Run
// returns and is not modified afterwards.
type RunResult struct {
	RunID            string              `json:"run_id"`
	Directory        string              `json:"directory"`
	StartedAt        time.Time           `json:"started_at"`
	FinishedAt       time.Time           `json:"finished_at"`
	DurationSeconds  float64             `json:"duration_seconds"`
	FilesDiscovered  int                 `json:"files_discovered"`
	Succeeded        []FileOutcome       `json:"succeeded"`
	Skipped          []SkippedFile       `json:"skipped"`
	Failed           []FileFailure       `json:"failed"`
	TotalRowsRead    int64               `json:"total_rows_read"`
	TotalRowsWritten int64               `json:"total_rows_written"`
	TotalRowsDropped int64               `json:"total_rows_dropped"`
	DropCounts       cleaning.DropCounts `json:"drop_counts"`
	SinkStats        *sink.Stats         `json:"sink_stats,omitempty"`
	Cancelled        bool                `json:"cancelled"`

	mu sync.Mutex
}

func newRunResult(directory string) *RunResult {
	return &RunResult{
		RunID:      uuid.NewString(),
		Directory:  directory,
		StartedAt:  time.Now().UTC(),
		Succeeded:  []FileOutcome{},
		Skipped:    []SkippedFile{},
		Failed:     []FileFailure{},
		DropCounts: cleaning.DropCounts{},
	}
}

// add folds one outcome into the result. Safe for concurrent use.
func (r *RunResult) add(o FileOutcome) {
	r.mu.Lock()
	defer r.mu.Unlock()

	switch o.State {
	case StateCompleted:
		r.Succeeded = append(r.Succeeded, o)
		r.TotalRowsRead += o.RowsRead
		r.TotalRowsWritten += o.RowsWritten
		r.TotalRowsDropped += o.RowsDropped
		r.DropCounts.Add(o.DropCounts)
	case StateSkipped:
		r.Skipped = append(r.Skipped, SkippedFile{FileName: o.FileName, Reason: o.Reason, RowsWritten: o.RowsWritten})
		r.TotalRowsWritten += o.RowsWritten
	default:
		reason := o.Reason
		if reason == "" && o.Err != nil {
			reason = o.Err.Error()
		}
		r.Failed = append(r.Failed, FileFailure{FileName: o.FileName, Reason: reason, Err: o.Err})
	}
}

func (r *RunResult) skip(name, reason string) {
	r.add(FileOutcome{FileName: name, State: StateSkipped, Reason: reason})
}

func (r *RunResult) fail(name string, err error) {
	r.add(FileOutcome{FileName: name, State: StateFailed, Err: err, Reason: err.Error()})
}

func (r *RunResult) finish() {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.FinishedAt = time.Now().UTC()
	r.DurationSeconds = r.FinishedAt.Sub(r.StartedAt).Seconds()
	slices.SortFunc(r.Succeeded, func(a, b FileOutcome) int { return strings.Compare(a.FileName, b.FileName) })
	slices.SortFunc(r.Skipped, func(a, b SkippedFile) int { return strings.Compare(a.FileName, b.FileName) })
	slices.SortFunc(r.Failed, func(a, b FileFailure) int { return strings.Compare(a.FileName, b.FileName) })
}

// HasFailures reports whether any file failed.
func (r *RunResult) HasFailures() bool {
	return len(r.Failed) > 0
}

// Err combines every file failure, or returns nil when none failed.
func (r *RunResult) Err() error {
	var merr *multierror.Error
	for _, f := range r.Failed {
		err := f.Err
		if err == nil {
			err = errors.New(f.Reason)
		}
		merr = multierror.Append(merr, fmt.Errorf("%s: %w", f.FileName, err))
	}
	return merr.ErrorOrNil()
}
