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

//go:build integration

package testhelpers

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand"
	"os"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/orlangure/gnomock"
	postgrespreset "github.com/orlangure/gnomock/preset/postgres"
	redispreset "github.com/orlangure/gnomock/preset/redis"
	"github.com/redis/go-redis/v9"

	"github.com/cardinalhq/tripload/internal/tripdb"
	"github.com/cardinalhq/tripload/internal/tripdb/migrations"
)

// SetupTestTripDB creates a clean trip database with migrations applied.
// When TRIPDB_HOST is set, a throwaway database is created on that server;
// otherwise a Postgres container is started. Cleanup is registered with
// t.Cleanup.
func SetupTestTripDB(t *testing.T) *pgxpool.Pool {
	t.Helper()

	ctx := context.Background()
	baseConnStr, cleanupBase := testPostgresServer(t)
	dbName := fmt.Sprintf("test_tripdb_%d_%d", time.Now().Unix(), rand.Intn(10000))

	// Connect to base database to create test database
	basePool, err := pgxpool.New(ctx, baseConnStr.url("postgres"))
	if err != nil {
		t.Fatalf("Failed to connect to base database: %v", err)
	}

	_, err = basePool.Exec(ctx, fmt.Sprintf("CREATE DATABASE %s", dbName))
	if err != nil {
		t.Fatalf("Failed to create test database %s: %v", dbName, err)
	}

	testPool, err := tripdb.NewConnectionPool(ctx, baseConnStr.url(dbName), 8)
	if err != nil {
		t.Fatalf("Failed to connect to test database: %v", err)
	}

	if err := migrations.RunMigrationsUp(ctx, testPool); err != nil {
		testPool.Close()
		t.Fatalf("Failed to run tripdb migrations: %v", err)
	}

	t.Cleanup(func() {
		testPool.Close()

		_, err := basePool.Exec(context.Background(), fmt.Sprintf("DROP DATABASE IF EXISTS %s", dbName))
		if err != nil {
			slog.Error("Failed to drop test database", slog.String("dbName", dbName), slog.Any("error", err))
		}

		basePool.Close()
		cleanupBase()
	})

	return testPool
}

type pgServer struct {
	host     string
	port     string
	user     string
	password string
}

func (s pgServer) url(db string) string {
	if s.password != "" {
		return fmt.Sprintf("postgresql://%s:%s@%s:%s/%s?sslmode=disable", s.user, s.password, s.host, s.port, db)
	}
	return fmt.Sprintf("postgresql://%s@%s:%s/%s?sslmode=disable", s.user, s.host, s.port, db)
}

func testPostgresServer(t *testing.T) (pgServer, func()) {
	t.Helper()

	if host := os.Getenv("TRIPDB_HOST"); host != "" {
		return pgServer{
			host:     host,
			port:     getEnvOrDefault("TRIPDB_PORT", "5432"),
			user:     getEnvOrDefault("TRIPDB_USER", os.Getenv("USER")),
			password: os.Getenv("TRIPDB_PASSWORD"),
		}, func() {}
	}

	p := postgrespreset.Preset(
		postgrespreset.WithVersion("16"),
		postgrespreset.WithUser("tripload", "tripload"),
		postgrespreset.WithDatabase("tripload"),
	)
	container, err := gnomock.Start(p)
	if err != nil {
		t.Skipf("Postgres unavailable: set TRIPDB_HOST or run docker: %v", err)
	}
	return pgServer{
			host:     container.Host,
			port:     fmt.Sprintf("%d", container.DefaultPort()),
			user:     "tripload",
			password: "tripload",
		}, func() {
			if err := gnomock.Stop(container); err != nil {
				slog.Error("Failed to stop postgres container", slog.Any("error", err))
			}
		}
}

// SetupTestRedis returns a Redis client and a key prefix unique to the
// test. REDIS_ADDR selects an existing server; otherwise a container is
// started.
func SetupTestRedis(t *testing.T) (redis.UniversalClient, string) {
	t.Helper()

	addr := os.Getenv("REDIS_ADDR")
	if addr == "" {
		container, err := gnomock.Start(redispreset.Preset(redispreset.WithVersion("7.2")))
		if err != nil {
			t.Skipf("Redis unavailable: set REDIS_ADDR or run docker: %v", err)
		}
		t.Cleanup(func() {
			if err := gnomock.Stop(container); err != nil {
				slog.Error("Failed to stop redis container", slog.Any("error", err))
			}
		})
		addr = container.DefaultAddress()
	}

	client := redis.NewUniversalClient(&redis.UniversalOptions{Addrs: []string{addr}})
	prefix := fmt.Sprintf("tripload:test:%d_%d:", time.Now().UnixNano(), rand.Intn(10000))
	t.Cleanup(func() {
		ctx := context.Background()
		iter := client.Scan(ctx, 0, prefix+"*", 100).Iterator()
		for iter.Next(ctx) {
			_ = client.Del(ctx, iter.Val()).Err()
		}
		_ = client.Close()
	})
	return client, prefix
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
