package commands

import (
	"database/sql"

	"github.com/teranos/tempo/config"
	"github.com/teranos/tempo/db"
	"github.com/teranos/tempo/errors"
	"github.com/teranos/tempo/logger"
)

// openDatabase opens and migrates the tempo database. An empty path falls
// back to the configured one.
func openDatabase(dbPath string) (*sql.DB, error) {
	if dbPath == "" {
		path, err := config.GetDatabasePath()
		if err != nil {
			return nil, errors.Wrap(err, "failed to resolve database path")
		}
		dbPath = path
	}

	database, err := db.OpenWithMigrations(dbPath, logger.Logger)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to open database at %s", dbPath)
	}

	return database, nil
}
