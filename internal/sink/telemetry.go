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

package sink

import (
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

var (
	sinkWrites        metric.Int64Counter
	sinkRows          metric.Int64Counter
	sinkWriteDuration metric.Float64Histogram
)

func init() {
	meter := otel.Meter("github.com/cardinalhq/tripload/internal/sink")

	var err error
	sinkWrites, err = meter.Int64Counter(
		"tripload.sink.writes",
		metric.WithDescription("Batches written, by write path"),
	)
	if err != nil {
		panic(err)
	}

	sinkRows, err = meter.Int64Counter(
		"tripload.sink.rows",
		metric.WithDescription("Rows written, by write path"),
	)
	if err != nil {
		panic(err)
	}

	sinkWriteDuration, err = meter.Float64Histogram(
		"tripload.sink.write.duration",
		metric.WithDescription("Time to write one batch"),
		metric.WithUnit("s"),
	)
	if err != nil {
		panic(err)
	}
}
