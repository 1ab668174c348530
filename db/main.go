package db

import (
	"database/sql"

	"github.com/cyverse-de/dbutil"
	"github.com/pkg/errors"

	_ "github.com/lib/pq"
)

// DriverName is the name of the database driver used for the notifications database.
const DriverName = "postgres"

// InitDatabase establishes a connection to the notifications database and verifies that the
// database can be reached, retrying for up to the given timeout (for example, "1m").
func InitDatabase(databaseURI, timeout string) (*sql.DB, error) {
	wrapMsg := "unable to initialize the database"

	// Create a database connector to establish the connection.
	connector, err := dbutil.NewDefaultConnector(timeout)
	if err != nil {
		return nil, errors.Wrap(err, wrapMsg)
	}

	// Establish the database connection.
	db, err := connector.Connect(DriverName, databaseURI)
	if err != nil {
		return nil, errors.Wrap(err, wrapMsg)
	}

	// Notifications are recorded one at a time, so a small pool is enough.
	db.SetMaxOpenConns(4)
	db.SetMaxIdleConns(2)

	return db, nil
}
