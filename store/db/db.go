package db

import (
	"github.com/pkg/errors"

	"github.com/yonder-travel/yonder/internal/profile"
	"github.com/yonder-travel/yonder/store"
	"github.com/yonder-travel/yonder/store/db/postgres"
	"github.com/yonder-travel/yonder/store/db/sqlite"
)

// NewDBDriver creates new db driver based on profile.
//
// PostgreSQL is the reference implementation for production; SQLite covers
// development, testing, and single-box deployments.
func NewDBDriver(profile *profile.Profile) (store.Driver, error) {
	var driver store.Driver
	var err error

	switch profile.Driver {
	case "sqlite":
		driver, err = sqlite.NewDB(profile)
	case "postgres":
		driver, err = postgres.NewDB(profile)
	default:
		return nil, errors.New("unknown db driver: only 'postgres' and 'sqlite' are supported")
	}
	if err != nil {
		return nil, errors.Wrap(err, "failed to create db driver")
	}
	return driver, nil
}
