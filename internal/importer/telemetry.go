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
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

var (
	tracer = otel.Tracer("github.com/cardinalhq/tripload/internal/importer")

	filesCounter       metric.Int64Counter
	rowsWrittenCounter metric.Int64Counter
	rowsDroppedCounter metric.Int64Counter
	fileDuration       metric.Float64Histogram
)

func init() {
	meter := otel.Meter("github.com/cardinalhq/tripload/internal/importer")

	var err error
	filesCounter, err = meter.Int64Counter(
		"tripload.importer.files",
		metric.WithDescription("Files finished, by final state"),
	)
	if err != nil {
		panic(err)
	}

	rowsWrittenCounter, err = meter.Int64Counter(
		"tripload.importer.rows.written",
		metric.WithDescription("Rows written to the destination"),
	)
	if err != nil {
		panic(err)
	}

	rowsDroppedCounter, err = meter.Int64Counter(
		"tripload.importer.rows.dropped",
		metric.WithDescription("Rows removed by cleaning, by rule"),
	)
	if err != nil {
		panic(err)
	}

	fileDuration, err = meter.Float64Histogram(
		"tripload.importer.file.duration",
		metric.WithDescription("Time to import one file"),
		metric.WithUnit("s"),
	)
	if err != nil {
		panic(err)
	}
}
