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

// Package filereader streams Parquet trip files as bounded batches that
// already conform to a pipeline.TargetSchema.
//
// A RowGroupReader never decodes more than one row group at a time and
// further splits large row groups so that no batch exceeds the configured
// row cap:
//
//	reader, err := filereader.NewRowGroupReader(ctx, path, schema, 50_000)
//	if err != nil {
//	    return err // *CorruptFileError when the file cannot be opened
//	}
//	defer reader.Close()
//
//	for {
//	    batch, err := reader.Next(ctx)
//	    if errors.Is(err, io.EOF) {
//	        break
//	    }
//	    if err != nil {
//	        return err
//	    }
//	    // use batch, then pipeline.ReturnBatch(batch)
//	}
//
// Source columns are bound to target columns through the schema's name
// resolution. Unmatched source columns are dropped, missing target
// columns are null-filled, and values that cannot be coerced to the
// target column type become null and are counted.
package filereader
