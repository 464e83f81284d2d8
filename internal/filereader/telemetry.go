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

package filereader

import (
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

var (
	meter = otel.Meter("github.com/cardinalhq/tripload/internal/filereader")

	rowsInCounter             metric.Int64Counter
	rowGroupsCounter          metric.Int64Counter
	conversionFailuresCounter metric.Int64Counter
)

func init() {
	var err error

	rowsInCounter, err = meter.Int64Counter(
		"tripload.reader.rows.in",
		metric.WithDescription("Number of rows read from source files"),
	)
	if err != nil {
		panic(err)
	}

	rowGroupsCounter, err = meter.Int64Counter(
		"tripload.reader.rowgroups",
		metric.WithDescription("Number of Parquet row groups opened"),
	)
	if err != nil {
		panic(err)
	}

	conversionFailuresCounter, err = meter.Int64Counter(
		"tripload.reader.conversion.failures",
		metric.WithDescription("Number of source values that could not be coerced to the target column type and were nulled"),
	)
	if err != nil {
		panic(err)
	}
}
