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
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/cardinalhq/tripload/config"
	"github.com/cardinalhq/tripload/internal/ledger"
)

type importsPage struct {
	Entries []ledger.Entry `json:"entries"`
	Total   int64          `json:"total"`
	Limit   int            `json:"limit"`
	Offset  int            `json:"offset"`
}

func init() {
	var (
		f      storeFlags
		limit  int
		offset int
	)
	cmd := &cobra.Command{
		Use:   "imports [file-name]",
		Short: "List completed imports, newest first, or show one by file name",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(c *cobra.Command, args []string) error {
			cfg, err := loadConfig(f.apply(c))
			if err != nil {
				return err
			}
			return withTelemetry("tripload-imports", func(ctx context.Context) error {
				if len(args) == 1 {
					entry, err := getImport(ctx, cfg, args[0])
					if err != nil {
						return err
					}
					return writeEntry(c.OutOrStdout(), entry, f.jsonOutput)
				}
				page, err := listImports(ctx, cfg, limit, offset)
				if err != nil {
					return err
				}
				return writeImportsPage(c.OutOrStdout(), page, f.jsonOutput)
			})
		},
	}
	f.register(cmd.Flags())
	cmd.Flags().IntVar(&limit, "limit", 100, "Maximum entries to list")
	cmd.Flags().IntVar(&offset, "offset", 0, "Entries to skip")
	rootCmd.AddCommand(cmd)
}

func listImports(ctx context.Context, cfg *config.Config, limit, offset int) (importsPage, error) {
	dest, err := openDestination(ctx, cfg)
	if err != nil {
		return importsPage{}, err
	}
	defer dest.Close()

	store, err := dest.ledgerStore(ctx)
	if err != nil {
		return importsPage{}, err
	}
	entries, total, err := store.List(ctx, limit, offset)
	if err != nil {
		return importsPage{}, fmt.Errorf("failed to list imports: %w", err)
	}
	return importsPage{Entries: entries, Total: total, Limit: limit, Offset: offset}, nil
}

func getImport(ctx context.Context, cfg *config.Config, fileName string) (ledger.Entry, error) {
	dest, err := openDestination(ctx, cfg)
	if err != nil {
		return ledger.Entry{}, err
	}
	defer dest.Close()

	store, err := dest.ledgerStore(ctx)
	if err != nil {
		return ledger.Entry{}, err
	}
	entry, err := store.Get(ctx, fileName)
	if errors.Is(err, ledger.ErrNotFound) {
		return ledger.Entry{}, fmt.Errorf("%s has not been imported", fileName)
	}
	return entry, err
}

func writeImportsPage(w io.Writer, page importsPage, asJSON bool) error {
	if asJSON {
		return writeJSON(w, page)
	}
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "FILE\tIMPORTED\tROWS\tBYTES\tSECONDS")
	for _, e := range page.Entries {
		fmt.Fprintf(tw, "%s\t%s\t%d\t%d\t%.2f\n",
			e.FileName, e.ImportDate.Format(time.RFC3339), e.RowsImported, e.FileSizeBytes, e.ImportDurationSeconds)
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	_, err := fmt.Fprintf(w, "%d of %d entries\n", len(page.Entries), page.Total)
	return err
}

func writeEntry(w io.Writer, e ledger.Entry, asJSON bool) error {
	if asJSON {
		return writeJSON(w, e)
	}
	_, err := fmt.Fprintf(w, "file:     %s\nimported: %s\nrows:     %d\nbytes:    %d\nseconds:  %.2f\n",
		e.FileName, e.ImportDate.Format(time.RFC3339), e.RowsImported, e.FileSizeBytes, e.ImportDurationSeconds)
	return err
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
