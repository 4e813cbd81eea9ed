// Package test provides store fixtures backed by a throwaway SQLite file.
package test

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/yonder-travel/yonder/internal/profile"
	"github.com/yonder-travel/yonder/store"
	"github.com/yonder-travel/yonder/store/db/sqlite"
)

// NewTestingStore creates a migrated store on a fresh SQLite database under
// the test's temp dir. The store is closed automatically on cleanup.
func NewTestingStore(ctx context.Context, t *testing.T) *store.Store {
	dir := t.TempDir()
	p := &profile.Profile{
		Mode:   "dev",
		Data:   dir,
		Driver: "sqlite",
		DSN:    filepath.Join(dir, "yonder_test.db"),
	}

	driver, err := sqlite.NewDB(p)
	require.NoError(t, err)

	ts := store.New(driver, p)
	require.NoError(t, ts.Migrate(ctx))
	t.Cleanup(func() {
		_ = ts.Close()
	})
	return ts
}

// NewFaultableStore creates a migrated store whose driver is wrapped by the
// given function, for injecting failures into individual operations. The
// wrapper typically embeds store.Driver and overrides one method.
func NewFaultableStore(ctx context.Context, t *testing.T, wrap func(store.Driver) store.Driver) *store.Store {
	dir := t.TempDir()
	p := &profile.Profile{
		Mode:   "dev",
		Data:   dir,
		Driver: "sqlite",
		DSN:    filepath.Join(dir, "yonder_test.db"),
	}

	driver, err := sqlite.NewDB(p)
	require.NoError(t, err)

	ts := store.New(wrap(driver), p)
	require.NoError(t, ts.Migrate(ctx))
	t.Cleanup(func() {
		_ = ts.Close()
	})
	return ts
}

// CreateTestingTrip inserts a trip row for fixtures.
func CreateTestingTrip(ctx context.Context, t *testing.T, ts *store.Store) *store.Trip {
	trip, err := ts.CreateTrip(ctx, &store.Trip{
		UID:      "trip-fixture",
		Name:     "Lisbon long weekend",
		Currency: "EUR",
	})
	require.NoError(t, err)
	return trip
}
