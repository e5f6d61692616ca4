// SPDX-License-Identifier: Apache-2.0

// Package testutils provides the shared test harness every package's
// _test.go files build on: a temp-dir filesystem fixture, a fake clock, and
// an optional Postgres-backed document store, grounded on pgroll's
// pkg/testutils (which spins up a real Postgres via testcontainers-go for
// every migration test) but adapted to signalstore's in-process-by-default
// core — most tests never need a container at all.
package testutils

import (
	"context"
	"testing"
	"time"

	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/signalstore/signalstore-go/internal/objectid"
	"github.com/signalstore/signalstore-go/pkg/store/docstore"
	"github.com/signalstore/signalstore-go/pkg/store/filestore"
)

// NewFakeClock returns a deterministic clock starting at a fixed instant,
// advancing by 1 microsecond per call, for tests that assert on exact
// version_timestamp/time_of_save values.
func NewFakeClock() *objectid.FakeClock {
	return objectid.NewFakeClock(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC), time.Microsecond)
}

// NewTempFilesystem returns a filestore.Filesystem rooted at a t.TempDir(),
// cleaned up automatically by the test runner.
func NewTempFilesystem(t *testing.T) *filestore.LocalFilesystem {
	t.Helper()
	return filestore.NewLocalFilesystem(t.TempDir())
}

// WithPostgresDocStore starts a disposable Postgres container (skipping the
// test if Docker is unavailable, the same guard pgroll's own container
// fixtures use) and returns a docstore.DAO backed by it, torn down via
// t.Cleanup.
func WithPostgresDocStore(t *testing.T, schemaName string) docstore.DAO {
	t.Helper()
	ctx := context.Background()

	container, err := postgres.Run(ctx, "postgres:16-alpine",
		postgres.WithDatabase("signalstore_test"),
		postgres.WithUsername("postgres"),
		postgres.WithPassword("postgres"),
		testcontainers.WithWaitStrategy(wait.ForListeningPort("5432/tcp")),
	)
	if err != nil {
		t.Skipf("skipping: could not start postgres container: %v", err)
	}
	t.Cleanup(func() { _ = container.Terminate(ctx) })

	connStr, err := container.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		t.Fatalf("connection string: %v", err)
	}

	dao, err := docstore.NewPostgresDAO(ctx, connStr, schemaName)
	if err != nil {
		t.Fatalf("opening postgres doc store: %v", err)
	}
	return dao
}
