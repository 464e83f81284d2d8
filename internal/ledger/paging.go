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

package ledger

import (
	"cmp"
	"slices"
)

// DefaultListLimit applies when List is called with a non-positive limit.
const DefaultListLimit = 100

func sortNewestFirst(entries []Entry) {
	slices.SortFunc(entries, func(a, b Entry) int {
		if c := b.ImportDate.Compare(a.ImportDate); c != 0 {
			return c
		}
		return cmp.Compare(a.FileName, b.FileName)
	})
}

func page(entries []Entry, limit, offset int) []Entry {
	limit, offset = pageBounds(limit, offset)
	if offset >= len(entries) {
		return []Entry{}
	}
	end := min(offset+limit, len(entries))
	return entries[offset:end]
}

func pageBounds(limit, offset int) (int, int) {
	if limit <= 0 {
		limit = DefaultListLimit
	}
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}
