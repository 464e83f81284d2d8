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

// Package dbopen connects to the PostgreSQL trip database described by
// the TRIPDB_* environment variables.
package dbopen

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"net"
	"net/url"
	"os"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/cardinalhq/tripload/internal/tripdb"
	"github.com/cardinalhq/tripload/internal/tripdb/migrations"
)

// Environment variables locating the trip database. TRIPDB_URL, when
// set, is used as is and the others are ignored.
const (
	EnvURL      = "TRIPDB_URL"
	EnvHost     = "TRIPDB_HOST"
	EnvPort     = "TRIPDB_PORT"
	EnvUser     = "TRIPDB_USER"
	EnvPassword = "TRIPDB_PASSWORD"
	EnvDBName   = "TRIPDB_DBNAME"
	EnvSSLMode  = "TRIPDB_SSLMODE"
)

// maxApplicationName is PostgreSQL's NAMEDATALEN minus one.
const maxApplicationName = 63

var ErrDatabaseNotConfigured = errors.New("trip database connection is not configured")

// tripDBURL builds the connection URL from the environment. HOST and
// DBNAME are required; PORT defaults to 5432.
func tripDBURL() (string, error) {
	if s := os.Getenv(EnvURL); s != "" {
		return s, nil
	}

	host, dbname := os.Getenv(EnvHost), os.Getenv(EnvDBName)
	var missing []string
	if host == "" {
		missing = append(missing, EnvHost)
	}
	if dbname == "" {
		missing = append(missing, EnvDBName)
	}
	if len(missing) > 0 {
		return "", fmt.Errorf("set %s or %s", EnvURL, strings.Join(missing, " and "))
	}

	u := &url.URL{
		Scheme: "postgresql",
		Host:   net.JoinHostPort(host, cmp.Or(os.Getenv(EnvPort), "5432")),
		Path:   "/" + dbname,
	}
	switch user, pass := os.Getenv(EnvUser), os.Getenv(EnvPassword); {
	case user != "" && pass != "":
		u.User = url.UserPassword(user, pass)
	case user != "":
		u.User = url.User(user)
	}

	q := url.Values{}
	if sslmode := os.Getenv(EnvSSLMode); sslmode != "" {
		q.Set("sslmode", sslmode)
	}
	if name := applicationName(os.Getenv("OTEL_SERVICE_NAME")); name != "" {
		q.Set("application_name", name)
	}
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// applicationName restricts name to characters PostgreSQL shows cleanly
// in pg_stat_activity.
func applicationName(name string) string {
	name = strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			return r
		default:
			return '_'
		}
	}, name)
	if len(name) > maxApplicationName {
		name = name[:maxApplicationName]
	}
	return name
}

// ConnectToTripDB opens a pool to the trip database and checks its
// migration version.
func ConnectToTripDB(ctx context.Context, opts ...Options) (*pgxpool.Pool, error) {
	connectionString, err := tripDBURL()
	if err != nil {
		return nil, errors.Join(ErrDatabaseNotConfigured, err)
	}

	var checkOpts []migrations.CheckOption
	var maxConns int32
	for _, o := range opts {
		checkOpts = append(checkOpts, o.MigrationCheckOptions...)
		if o.MaxConns > 0 {
			maxConns = o.MaxConns
		}
	}

	pool, err := tripdb.NewConnectionPool(ctx, connectionString, maxConns)
	if err != nil {
		return nil, err
	}

	if err := migrations.CheckVersion(ctx, pool, checkOpts...); err != nil {
		pool.Close()
		return nil, fmt.Errorf("trip database migration check failed: %w", err)
	}
	return pool, nil
}
