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
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/cardinalhq/tripload/config"
	"github.com/cardinalhq/tripload/internal/importer"
	"github.com/cardinalhq/tripload/internal/memgov"
	"github.com/cardinalhq/tripload/internal/sink"
)

// errImportFailures makes the process exit non-zero when any file failed.
var errImportFailures = errors.New("import finished with failures")

type importFlags struct {
	storeFlags
	dir       string
	extension string
	workers   int
	batchRows int
	noClean   bool
	timeout   time.Duration
}

func init() {
	var f importFlags
	cmd := &cobra.Command{
		Use:   "import [directory]",
		Short: "Import every Parquet file in a directory",
		Long: `Import every Parquet file in a directory that is not already recorded in the import ledger.
Files are imported concurrently; a failed file is reported and retried by the next run.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(c *cobra.Command, args []string) error {
			if len(args) == 1 {
				if err := c.Flags().Set("dir", args[0]); err != nil {
					return err
				}
			}
			cfg, err := loadConfig(f.apply(c), f.applyIngest(c))
			if err != nil {
				return err
			}
			return withTelemetry("tripload-import", func(ctx context.Context) error {
				result, err := runImport(ctx, cfg)
				if err != nil {
					return err
				}
				if err := writeRunResult(c.OutOrStdout(), result, f.jsonOutput); err != nil {
					return err
				}
				if result.HasFailures() {
					return fmt.Errorf("%w: %d of %d files failed", errImportFailures, len(result.Failed), result.FilesDiscovered)
				}
				return nil
			})
		},
	}

	f.register(cmd.Flags())
	cmd.Flags().StringVar(&f.dir, "dir", "", "Directory of Parquet files")
	cmd.Flags().StringVar(&f.extension, "extension", "", "File extension to import")
	cmd.Flags().IntVar(&f.workers, "workers", 0, "Concurrent file imports (0 means min(4, GOMAXPROCS))")
	cmd.Flags().IntVar(&f.batchRows, "batch-rows", 0, "Maximum rows per batch")
	cmd.Flags().BoolVar(&f.noClean, "no-clean", false, "Write rows without applying cleaning rules")
	cmd.Flags().DurationVar(&f.timeout, "timeout", 0, "Overall run deadline (0 means none)")

	rootCmd.AddCommand(cmd)
}

func (f *importFlags) applyIngest(c *cobra.Command) func(*config.Config) {
	return func(cfg *config.Config) {
		flags := c.Flags()
		if flags.Changed("dir") {
			cfg.Ingest.Directory = f.dir
		}
		if flags.Changed("extension") {
			cfg.Ingest.Extension = f.extension
		}
		if flags.Changed("workers") {
			cfg.Ingest.Workers = f.workers
		}
		if flags.Changed("batch-rows") {
			cfg.Ingest.BatchRows = f.batchRows
		}
		if flags.Changed("no-clean") {
			cfg.Ingest.Clean = !f.noClean
		}
		if flags.Changed("timeout") {
			cfg.Ingest.RunTimeout = f.timeout
		}
	}
}

// runImport wires the configured stores into a Coordinator and runs it
// once over cfg.Ingest.Directory.
func runImport(ctx context.Context, cfg *config.Config) (*importer.RunResult, error) {
	if cfg.Ingest.RunTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, cfg.Ingest.RunTimeout)
		defer cancel()
	}

	dest, err := openDestination(ctx, cfg)
	if err != nil {
		return nil, err
	}
	defer dest.Close()

	store, err := dest.ledgerStore(ctx)
	if err != nil {
		return nil, err
	}

	governor, err := memgov.New(cfg.Memory)
	if err != nil {
		return nil, fmt.Errorf("failed to create memory governor: %w", err)
	}
	if governor != nil {
		slog.Info("Memory governor enabled", slog.Uint64("thresholdBytes", governor.Threshold()))
	}

	coordinator, err := importer.NewCoordinator(importer.Config{
		Extension: cfg.Ingest.Extension,
		Workers:   cfg.Ingest.Workers,
		BatchRows: cfg.Ingest.BatchRows,
	}, importer.Dependencies{
		Ledger:   store,
		Sink:     sink.NewTieredSink(dest.target(), cfg.Sink),
		Schema:   dest.schema,
		Cleaner:  dest.cleaner(),
		Governor: governor,
	})
	if err != nil {
		return nil, err
	}

	return coordinator.Run(ctx, cfg.Ingest.Directory)
}

func writeRunResult(w io.Writer, result *importer.RunResult, asJSON bool) error {
	if asJSON {
		return writeJSON(w, result)
	}

	fmt.Fprintf(w, "run %s: %d discovered, %d imported, %d skipped, %d failed in %.1fs\n",
		result.RunID, result.FilesDiscovered, len(result.Succeeded), len(result.Skipped), len(result.Failed), result.DurationSeconds)
	fmt.Fprintf(w, "rows: %d read, %d written, %d dropped\n",
		result.TotalRowsRead, result.TotalRowsWritten, result.TotalRowsDropped)
	if result.Cancelled {
		fmt.Fprintln(w, "run was cancelled before all files finished")
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	for _, o := range result.Succeeded {
		fmt.Fprintf(tw, "imported\t%s\t%d rows\t%.2fs\n", o.FileName, o.RowsWritten, o.DurationSeconds)
	}
	for _, s := range result.Skipped {
		if s.RowsWritten > 0 {
			fmt.Fprintf(tw, "skipped\t%s\t%s (%d duplicate rows written)\n", s.FileName, s.Reason, s.RowsWritten)
			continue
		}
		fmt.Fprintf(tw, "skipped\t%s\t%s\n", s.FileName, s.Reason)
	}
	for _, f := range result.Failed {
		fmt.Fprintf(tw, "failed\t%s\t%s\n", f.FileName, f.Reason)
	}
	for _, rule := range result.DropCounts.Rules() {
		fmt.Fprintf(tw, "dropped\t%s\t%d rows\n", rule, result.DropCounts[rule])
	}
	return tw.Flush()
}
