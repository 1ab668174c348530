package db

import (
	"context"
	"database/sql"
	"fmt"

	sq "github.com/Masterminds/squirrel"
	"github.com/pkg/errors"
)

// GetUserID obtains the user ID for `user`, adding the user to the `users` table in the
// notifications database if necessary. Users are identified by their sign-in address.
func GetUserID(ctx context.Context, tx *sql.Tx, user string) (string, error) {
	wrapMsg := fmt.Sprintf("unable to get the user ID for `%s`", user)

	// The no-op update makes RETURNING produce the existing row on a conflict.
	statement, args, err := sq.StatementBuilder.
		PlaceholderFormat(sq.Dollar).
		Insert("users").
		Columns("username").
		Values(user).
		Suffix("ON CONFLICT (username) DO UPDATE SET username = EXCLUDED.username RETURNING id").
		ToSql()
	if err != nil {
		return "", errors.Wrap(err, wrapMsg)
	}

	// Execute the statement.
	var id string
	err = tx.QueryRowContext(ctx, statement, args...).Scan(&id)
	if err != nil {
		return "", errors.Wrap(err, wrapMsg)
	}

	return id, nil
}
