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

package cmd

import (
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/cardinalhq/tripload/config"
)

// storeFlags select the destination and ledger for any command that
// touches them.
type storeFlags struct {
	target     string
	ledger     string
	table      string
	duckdbPath string
	jsonOutput bool
}

func (f *storeFlags) register(fs *pflag.FlagSet) {
	fs.StringVar(&f.target, "target", "", "Destination store: postgres or duckdb")
	fs.StringVar(&f.ledger, "ledger", "", "Ledger backend: postgres, duckdb, redis or memory (defaults to the target)")
	fs.StringVar(&f.table, "table", "", "Destination table name")
	fs.StringVar(&f.duckdbPath, "duckdb-path", "", "DuckDB database file")
	fs.BoolVar(&f.jsonOutput, "json", false, "Write output as JSON")
}

func (f *storeFlags) apply(cmd *cobra.Command) func(*config.Config) {
	return func(cfg *config.Config) {
		flags := cmd.Flags()
		if flags.Changed("target") {
			cfg.Ingest.Target = f.target
		}
		if flags.Changed("ledger") {
			cfg.Ledger.Backend = f.ledger
		}
		if flags.Changed("table") {
			cfg.Ingest.Table = f.table
		}
		if flags.Changed("duckdb-path") {
			cfg.DuckDB.Path = f.duckdbPath
		}
	}
}
