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
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/cardinalhq/tripload/config"
	"github.com/cardinalhq/tripload/internal/tripdb"
)

const dayLayout = "2006-01-02"

type dailyFlags struct {
	enabled bool
	from    string
	to      string
	limit   int
}

func (d dailyFlags) bounds() (time.Time, time.Time, error) {
	var from, to time.Time
	var err error
	if d.from != "" {
		if from, err = time.Parse(dayLayout, d.from); err != nil {
			return from, to, fmt.Errorf("invalid --from %q: %w", d.from, err)
		}
	}
	if d.to != "" {
		if to, err = time.Parse(dayLayout, d.to); err != nil {
			return from, to, fmt.Errorf("invalid --to %q: %w", d.to, err)
		}
		// inclusive of the named day
		to = to.AddDate(0, 0, 1)
	}
	return from, to, nil
}

func init() {
	var (
		f     storeFlags
		daily dailyFlags
	)
	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Summarize imported trips",
		RunE: func(c *cobra.Command, _ []string) error {
			cfg, err := loadConfig(f.apply(c))
			if err != nil {
				return err
			}
			return withTelemetry("tripload-stats", func(ctx context.Context) error {
				if daily.enabled {
					from, to, err := daily.bounds()
					if err != nil {
						return err
					}
					days, err := dailyStatistics(ctx, cfg, from, to, daily.limit)
					if err != nil {
						return err
					}
					return writeDaily(c.OutOrStdout(), days, f.jsonOutput)
				}
				st, err := statistics(ctx, cfg)
				if err != nil {
					return err
				}
				return writeStatistics(c.OutOrStdout(), st, f.jsonOutput)
			})
		},
	}
	f.register(cmd.Flags())
	cmd.Flags().BoolVar(&daily.enabled, "daily", false, "Aggregate by pickup day instead")
	cmd.Flags().StringVar(&daily.from, "from", "", "First pickup day (YYYY-MM-DD), with --daily")
	cmd.Flags().StringVar(&daily.to, "to", "", "Last pickup day (YYYY-MM-DD), with --daily")
	cmd.Flags().IntVar(&daily.limit, "limit", 30, "Maximum days, with --daily")
	rootCmd.AddCommand(cmd)
}

// statistics summarizes the destination table. The imported file count
// comes from the configured ledger, which need not live in the
// destination.
func statistics(ctx context.Context, cfg *config.Config) (tripdb.Statistics, error) {
	dest, err := openDestination(ctx, cfg)
	if err != nil {
		return tripdb.Statistics{}, err
	}
	defer dest.Close()

	st, err := dest.statsReader().Summary(ctx)
	if err != nil {
		return tripdb.Statistics{}, err
	}

	store, err := dest.ledgerStore(ctx)
	if err != nil {
		return tripdb.Statistics{}, err
	}
	_, total, err := store.List(ctx, 1, 0)
	if err != nil {
		return tripdb.Statistics{}, fmt.Errorf("failed to count imported files: %w", err)
	}
	st.FilesImported = total
	return st, nil
}

func dailyStatistics(ctx context.Context, cfg *config.Config, from, to time.Time, limit int) ([]tripdb.DailyStat, error) {
	dest, err := openDestination(ctx, cfg)
	if err != nil {
		return nil, err
	}
	defer dest.Close()
	return dest.statsReader().Daily(ctx, from, to, limit)
}

func writeStatistics(w io.Writer, st tripdb.Statistics, asJSON bool) error {
	if asJSON {
		return writeJSON(w, st)
	}
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintf(tw, "total trips\t%d\n", st.TotalTrips)
	fmt.Fprintf(tw, "files imported\t%d\n", st.FilesImported)
	fmt.Fprintf(tw, "first pickup\t%s\n", formatOptionalTime(st.PickupMin))
	fmt.Fprintf(tw, "last dropoff\t%s\n", formatOptionalTime(st.DropoffMax))
	fmt.Fprintf(tw, "total fares\t%.2f\n", st.TotalFareAmount)
	fmt.Fprintf(tw, "avg distance\t%.2f\n", st.AvgTripDistance)
	fmt.Fprintf(tw, "avg fare\t%.2f\n", st.AvgFareAmount)
	fmt.Fprintf(tw, "avg tip\t%.2f\n", st.AvgTipAmount)
	fmt.Fprintf(tw, "avg passengers\t%.2f\n", st.AvgPassengerCount)
	return tw.Flush()
}

func writeDaily(w io.Writer, days []tripdb.DailyStat, asJSON bool) error {
	if asJSON {
		return writeJSON(w, days)
	}
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "DAY\tTRIPS\tTOTAL FARE\tAVG DISTANCE\tAVG PASSENGERS")
	for _, d := range days {
		fmt.Fprintf(tw, "%s\t%d\t%.2f\t%.2f\t%.2f\n",
			d.Date.Format(dayLayout), d.TripCount, d.TotalFare, d.AvgDistance, d.AvgPassengers)
	}
	return tw.Flush()
}

func formatOptionalTime(t *time.Time) string {
	if t == nil {
		return "-"
	}
	return t.Format(time.RFC3339)
}
