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

package main

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"runtime/debug"
	"time"

	"github.com/KimMachineGun/automemlimit/memlimit"
	gomaxecs "github.com/rdforte/gomaxecs/maxprocs"
	"go.uber.org/automaxprocs/maxprocs"

	"github.com/cardinalhq/tripload/cmd"
)

// defaultGCPercent trades some CPU for a smaller heap during large loads.
const defaultGCPercent = 50

func stderrf(msg string, args ...any) {
	fmt.Fprintf(os.Stderr, msg+"\n", args...)
}

func init() {
	time.Local = time.UTC

	setMaxProcs()
	setMemoryLimit()

	if os.Getenv("GOGC") == "" {
		debug.SetGCPercent(defaultGCPercent)
		_ = os.Setenv("GOGC", fmt.Sprint(defaultGCPercent))
	}
}

func setMaxProcs() {
	var err error
	if gomaxecs.IsECS() {
		_, err = gomaxecs.Set(gomaxecs.WithLogger(stderrf))
	} else {
		_, err = maxprocs.Set(maxprocs.Logger(stderrf))
	}
	if err != nil {
		stderrf("failed to set GOMAXPROCS: %v", err)
	}
}

func setMemoryLimit() {
	_, err := memlimit.SetGoMemLimitWithOpts(
		memlimit.WithRatio(0.8),
		memlimit.WithLogger(slog.Default()),
		memlimit.WithProvider(memlimit.ApplyFallback(memlimit.FromCgroup, memlimit.FromSystem)),
	)
	if err != nil {
		stderrf("failed to set GOMEMLIMIT: %v", err)
	}
}

// useScratchDir points TMPDIR at a tripload subdirectory. DuckDB spill
// files land there unless duckdb.temp_directory is configured.
func useScratchDir() {
	dir := filepath.Join(os.TempDir(), "tripload")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		stderrf("failed to create scratch dir %s, using %s: %v", dir, os.TempDir(), err)
		return
	}
	if err := os.Setenv("TMPDIR", dir); err != nil {
		stderrf("failed to set TMPDIR to %s: %v", dir, err)
	}
}

func main() {
	useScratchDir()
	cmd.Execute()
}
