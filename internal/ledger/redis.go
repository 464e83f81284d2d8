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
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/redis/go-redis/v9"
)

// DefaultRedisPrefix namespaces ledger keys.
const DefaultRedisPrefix = "tripload:import_log:"

// RedisStore keeps one JSON document per imported file under
// prefix+file_name. SETNX makes the completion write exclusive, which
// lets several importer processes share one ledger.
type RedisStore struct {
	client redis.UniversalClient
	prefix string
}

var _ Store = (*RedisStore)(nil)

func NewRedisStore(client redis.UniversalClient, prefix string) *RedisStore {
	if prefix == "" {
		prefix = DefaultRedisPrefix
	}
	return &RedisStore{client: client, prefix: prefix}
}

func (s *RedisStore) key(fileName string) string {
	return s.prefix + fileName
}

func (s *RedisStore) IsImported(ctx context.Context, fileName string) (bool, error) {
	n, err := s.client.Exists(ctx, s.key(fileName)).Result()
	if err != nil {
		return false, fmt.Errorf("failed to check import ledger for %s: %w", fileName, err)
	}
	return n > 0, nil
}

func (s *RedisStore) RecordCompletion(ctx context.Context, entry Entry) error {
	if err := validate(entry); err != nil {
		return err
	}
	entry = normalize(entry)

	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("failed to encode ledger entry for %s: %w", entry.FileName, err)
	}

	ok, err := s.client.SetNX(ctx, s.key(entry.FileName), data, 0).Result()
	if err != nil {
		return fmt.Errorf("failed to record import of %s: %w", entry.FileName, err)
	}
	if !ok {
		return &ConflictError{FileName: entry.FileName}
	}
	return nil
}

func (s *RedisStore) Get(ctx context.Context, fileName string) (Entry, error) {
	data, err := s.client.Get(ctx, s.key(fileName)).Bytes()
	if errors.Is(err, redis.Nil) {
		return Entry{}, ErrNotFound
	}
	if err != nil {
		return Entry{}, fmt.Errorf("failed to read import ledger for %s: %w", fileName, err)
	}
	var e Entry
	if err := json.Unmarshal(data, &e); err != nil {
		return Entry{}, fmt.Errorf("failed to decode ledger entry for %s: %w", fileName, err)
	}
	return e, nil
}

// List scans every ledger key. It is meant for operator use and reads
// the whole keyspace under the prefix.
func (s *RedisStore) List(ctx context.Context, limit, offset int) ([]Entry, int64, error) {
	var keys []string
	var cursor uint64
	for {
		batch, next, err := s.client.Scan(ctx, cursor, s.prefix+"*", 500).Result()
		if err != nil {
			return nil, 0, fmt.Errorf("failed to scan import ledger: %w", err)
		}
		keys = append(keys, batch...)
		cursor = next
		if cursor == 0 {
			break
		}
	}

	entries := make([]Entry, 0, len(keys))
	for start := 0; start < len(keys); start += 500 {
		chunk := keys[start:min(start+500, len(keys))]
		vals, err := s.client.MGet(ctx, chunk...).Result()
		if err != nil {
			return nil, 0, fmt.Errorf("failed to read import ledger: %w", err)
		}
		for i, v := range vals {
			str, ok := v.(string)
			if !ok {
				continue
			}
			var e Entry
			if err := json.Unmarshal([]byte(str), &e); err != nil {
				return nil, 0, fmt.Errorf("failed to decode ledger entry %s: %w",
					strings.TrimPrefix(chunk[i], s.prefix), err)
			}
			entries = append(entries, e)
		}
	}

	sortNewestFirst(entries)
	return page(entries, limit, offset), int64(len(entries)), nil
}
