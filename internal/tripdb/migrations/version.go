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

package migrations

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/jackc/pgx/v5/pgxpool"
)

// CheckVersion verifies that the trip database is at the migration
// version embedded in this binary.
func CheckVersion(ctx context.Context, pool *pgxpool.Pool, options ...CheckOption) error {
	if !checkEnabledFromEnv() {
		slog.Debug("Migration version checking disabled for tripdb")
		return nil
	}

	opts := DefaultCheckOptions()
	for _, option := range options {
		option(&opts)
	}
	if opts.Mode == CheckModeSkip {
		slog.Debug("Migration version checking skipped for tripdb")
		return nil
	}
	applyEnvironmentOverrides(&opts)

	expected, err := extractLatestMigrationVersion(migrationFiles)
	if err != nil {
		return fmt.Errorf("failed to extract expected migration version: %w", err)
	}

	current, dirty, err := currentVersion(pool)
	if err != nil {
		return err
	}
	if dirty && !opts.AllowDirty {
		return errors.New("tripdb migration is in dirty state, please fix before proceeding")
	}
	if current == expected {
		return nil
	}

	if current > expected {
		if opts.Mode == CheckModeWarn {
			slog.Warn("Database version is newer than expected, but continuing anyway",
				slog.Uint64("current_version", uint64(current)),
				slog.Uint64("expected_version", uint64(expected)))
			return nil
		}
		return fmt.Errorf("tripdb version %d is newer than expected version %d - you may need to update the application",
			current, expected)
	}

	if opts.Mode == CheckModeWarn {
		slog.Warn("Database version is older than expected, but continuing anyway",
			slog.Uint64("current_version", uint64(current)),
			slog.Uint64("expected_version", uint64(expected)))
		return nil
	}

	deadline := time.Now().Add(opts.Timeout)
	ticker := time.NewTicker(opts.RetryInterval)
	defer ticker.Stop()

	for {
		slog.Info("Waiting for tripdb migrations",
			slog.Uint64("current_version", uint64(current)),
			slog.Uint64("expected_version", uint64(expected)),
			slog.Duration("remaining_timeout", time.Until(deadline)))

		select {
		case <-ctx.Done():
			return fmt.Errorf("context cancelled while waiting for tripdb migrations: %w", ctx.Err())
		case <-ticker.C:
		}

		current, _, err = currentVersion(pool)
		if err != nil {
			return err
		}
		if current == expected {
			slog.Info("Migration version check passed", slog.Uint64("version", uint64(current)))
			return nil
		}
		if time.Now().After(deadline) {
			return fmt.Errorf("tripdb is at migration %d, expected %d; run the migrate command", current, expected)
		}
	}
}

func currentVersion(pool *pgxpool.Pool) (uint, bool, error) {
	m, closeFn, err := newMigrator(pool)
	if err != nil {
		return 0, false, err
	}
	defer closeFn()

	version, dirty, err := m.Version()
	if err != nil {
		if err == migrate.ErrNilVersion {
			return 0, false, nil
		}
		return 0, false, fmt.Errorf("failed to get current version: %w", err)
	}
	return version, dirty, nil
}

// extractLatestMigrationVersion extracts the highest migration version from embedded migration files
func extractLatestMigrationVersion(files embed.FS) (uint, error) {
	entries, err := files.ReadDir(".")
	if err != nil {
		return 0, fmt.Errorf("failed to read migration directory: %w", err)
	}

	var maxVersion uint
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasSuffix(name, ".up.sql") {
			continue
		}
		prefix, _, _ := strings.Cut(name, "_")
		version, err := strconv.ParseUint(prefix, 10, 64)
		if err != nil {
			continue
		}
		maxVersion = max(maxVersion, uint(version))
	}

	if maxVersion == 0 {
		return 0, errors.New("no valid migration files found")
	}
	return maxVersion, nil
}
