package db

import (
	"embed"
	"net/http"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/httpfs"
	"github.com/ninja-software/terror/v2"
)

//go:embed migrations
var migrations embed.FS

// Migrate brings the schema up (or all the way down) using the embedded
// migration files. connString must be a stdlib postgres:// URL.
func Migrate(connString string, down bool) error {
	source, err := httpfs.New(http.FS(migrations), "migrations")
	if err != nil {
		return terror.Error(err, "could not load migrations")
	}
	defer source.Close()

	mig, err := migrate.NewWithSourceInstance("embed", source, connString)
	if err != nil {
		return terror.Error(err, "could not init migrations")
	}

	if down {
		err = mig.Down()
	} else {
		err = mig.Up()
	}
	if err != nil && err != migrate.ErrNoChange {
		return terror.Error(err, "migration failed")
	}
	return nil
}
