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
	"context"
	"sync"
)

// MemoryStore keeps the ledger in process memory. It is used for dry
// runs and tests.
type MemoryStore struct {
	mu      sync.RWMutex
	entries map[string]Entry
}

var _ Store = (*MemoryStore)(nil)

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{entries: map[string]Entry{}}
}

func (m *MemoryStore) IsImported(_ context.Context, fileName string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.entries[fileName]
	return ok, nil
}

func (m *MemoryStore) RecordCompletion(_ context.Context, entry Entry) error {
	if err := validate(entry); err != nil {
		return err
	}
	entry = normalize(entry)

	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.entries[entry.FileName]; ok {
		return &ConflictError{FileName: entry.FileName}
	}
	m.entries[entry.FileName] = entry
	return nil
}

func (m *MemoryStore) List(_ context.Context, limit, offset int) ([]Entry, int64, error) {
	m.mu.RLock()
	all := make([]Entry, 0, len(m.entries))
	for _, e := range m.entries {
		all = append(all, e)
	}
	m.mu.RUnlock()

	sortNewestFirst(all)
	return page(all, limit, offset), int64(len(all)), nil
}

func (m *MemoryStore) Get(_ context.Context, fileName string) (Entry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	e, ok := m.entries[fileName]
	if !ok {
		return Entry{}, ErrNotFound
	}
	return e, nil
}
