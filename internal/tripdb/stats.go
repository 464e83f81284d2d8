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

package tripdb

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Statistics summarizes the trips table and the import ledger.
type Statistics struct {
	TotalTrips        int64      `json:"total_trips"`
	FilesImported     int64      `json:"files_imported"`
	PickupMin         *time.Time `json:"pickup_min"`
	DropoffMax        *time.Time `json:"dropoff_max"`
	TotalFareAmount   float64    `json:"total_fare_amount"`
	AvgTripDistance   float64    `json:"avg_trip_distance"`
	AvgFareAmount     float64    `json:"avg_fare_amount"`
	AvgTipAmount      float64    `json:"avg_tip_amount"`
	AvgPassengerCount float64    `json:"avg_passenger_count"`
}

// DailyStat aggregates trips by pickup date.
type DailyStat struct {
	Date          time.Time `json:"date"`
	TripCount     int64     `json:"trip_count"`
	TotalFare     float64   `json:"total_fare"`
	AvgDistance   float64   `json:"avg_distance"`
	AvgPassengers float64   `json:"avg_passengers"`
}

type rowScanner interface {
	Scan(dest ...any) error
}

type rowIterator interface {
	Next() bool
	Scan(dest ...any) error
	Err() error
	Close()
}

// StatsReader runs the read-side queries. Both destinations accept the
// same SQL, including $n placeholders.
type StatsReader struct {
	table    string
	queryRow func(ctx context.Context, q string, args ...any) rowScanner
	query    func(ctx context.Context, q string, args ...any) (rowIterator, error)
}

// NewPostgresStats reads statistics through a pgx pool.
func NewPostgresStats(pool *pgxpool.Pool, table string) *StatsReader {
	return &StatsReader{
		table: table,
		queryRow: func(ctx context.Context, q string, args ...any) rowScanner {
			return pool.QueryRow(ctx, q, args...)
		},
		query: func(ctx context.Context, q string, args ...any) (rowIterator, error) {
			rows, err := pool.Query(ctx, q, args...)
			if err != nil {
				return nil, err
			}
			return pgxRows{rows}, nil
		},
	}
}

// NewDuckDBStats reads statistics through database/sql.
func NewDuckDBStats(db *sql.DB, table string) *StatsReader {
	return &StatsReader{
		table: table,
		queryRow: func(ctx context.Context, q string, args ...any) rowScanner {
			return db.QueryRowContext(ctx, q, args...)
		},
		query: func(ctx context.Context, q string, args ...any) (rowIterator, error) {
			rows, err := db.QueryContext(ctx, q, args...)
			if err != nil {
				return nil, err
			}
			return sqlRows{rows}, nil
		},
	}
}

type pgxRows struct{ pgx.Rows }

func (r pgxRows) Close() { r.Rows.Close() }

type sqlRows struct{ *sql.Rows }

func (r sqlRows) Close() { _ = r.Rows.Close() }

// Summary returns whole-table statistics.
func (s *StatsReader) Summary(ctx context.Context) (Statistics, error) {
	var st Statistics

	q := fmt.Sprintf(`SELECT
  count(*),
  min(tpep_pickup_datetime),
  max(tpep_dropoff_datetime),
  coalesce(sum(total_amount), 0),
  coalesce(avg(trip_distance), 0),
  coalesce(avg(fare_amount), 0),
  coalesce(avg(tip_amount), 0),
  coalesce(avg(passenger_count), 0)
FROM %s`, QuoteIdent(s.table))

	var pickupMin, dropoffMax sql.NullTime
	err := s.queryRow(ctx, q).Scan(
		&st.TotalTrips,
		&pickupMin,
		&dropoffMax,
		&st.TotalFareAmount,
		&st.AvgTripDistance,
		&st.AvgFareAmount,
		&st.AvgTipAmount,
		&st.AvgPassengerCount,
	)
	if err != nil {
		return Statistics{}, fmt.Errorf("failed to summarize %s: %w", s.table, err)
	}
	if pickupMin.Valid {
		t := pickupMin.Time.UTC()
		st.PickupMin = &t
	}
	if dropoffMax.Valid {
		t := dropoffMax.Time.UTC()
		st.DropoffMax = &t
	}

	if err := s.queryRow(ctx, `SELECT count(*) FROM import_log`).Scan(&st.FilesImported); err != nil {
		return Statistics{}, fmt.Errorf("failed to count imported files: %w", err)
	}
	return st, nil
}

// Daily returns per-day aggregates for pickups in [from, to), newest day
// first. Zero bounds are open.
func (s *StatsReader) Daily(ctx context.Context, from, to time.Time, limit int) ([]DailyStat, error) {
	if limit <= 0 {
		limit = 30
	}
	if from.IsZero() {
		from = time.Unix(0, 0).UTC()
	}
	if to.IsZero() {
		to = time.Date(9999, 1, 1, 0, 0, 0, 0, time.UTC)
	}

	q := fmt.Sprintf(`SELECT
  CAST(tpep_pickup_datetime AS DATE) AS day,
  count(*),
  coalesce(sum(total_amount), 0),
  coalesce(avg(trip_distance), 0),
  coalesce(avg(passenger_count), 0)
FROM %s
WHERE tpep_pickup_datetime >= $1 AND tpep_pickup_datetime < $2
GROUP BY day
ORDER BY day DESC
LIMIT $3`, QuoteIdent(s.table))

	rows, err := s.query(ctx, q, from.UTC(), to.UTC(), limit)
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate %s by day: %w", s.table, err)
	}
	defer rows.Close()

	out := []DailyStat{}
	for rows.Next() {
		var d DailyStat
		if err := rows.Scan(&d.Date, &d.TripCount, &d.TotalFare, &d.AvgDistance, &d.AvgPassengers); err != nil {
			return nil, fmt.Errorf("failed to read daily aggregate: %w", err)
		}
		d.Date = d.Date.UTC()
		out = append(out, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read daily aggregate: %w", err)
	}
	return out, nil
}
