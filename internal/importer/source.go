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

// Package importer runs file imports: a Worker takes one source file
// from ledger check to ledger entry, and a Coordinator schedules a
// directory of files over a bounded pool of workers.
package importer

import (
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"
)

const DefaultExtension = ".parquet"

// SourceFile is a discovered input file. Name is the base name and is
// the file's identity in the ledger.
type SourceFile struct {
	Name         string    `json:"name"`
	Path         string    `json:"path"`
	SizeBytes    int64     `json:"size_bytes"`
	DiscoveredAt time.Time `json:"discovered_at"`
}

// Discover lists the regular files in dir whose names end in ext,
// sorted by name. Subdirectories are not descended.
func Discover(dir, ext string) ([]SourceFile, error) {
	if ext == "" {
		ext = DefaultExtension
	}
	if !strings.HasPrefix(ext, ".") {
		ext = "." + ext
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to list %s: %w", dir, err)
	}

	now := time.Now().UTC()
	files := make([]SourceFile, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ext) {
			continue
		}
		info, err := e.Info()
		if err != nil {
			// Removed between listing and stat.
			if os.IsNotExist(err) {
				continue
			}
			return nil, fmt.Errorf("failed to stat %s: %w", e.Name(), err)
		}
		if !info.Mode().IsRegular() {
			continue
		}
		files = append(files, SourceFile{
			Name:         e.Name(),
			Path:         filepath.Join(dir, e.Name()),
			SizeBytes:    info.Size(),
			DiscoveredAt: now,
		})
	}

	slices.SortFunc(files, func(a, b SourceFile) int { return strings.Compare(a.Name, b.Name) })
	return files, nil
}
