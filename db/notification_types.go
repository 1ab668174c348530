package db

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/pkg/errors"

	sq "github.com/Masterminds/squirrel"
)

// GetNotificationTypeID obtains the ID of the notification type with the given name. An error
// is returned if the database can't be queried or the notification type doesn't exist.
func GetNotificationTypeID(ctx context.Context, tx *sql.Tx, notificationType string) (string, error) {
	wrapMsg := fmt.Sprintf("unable to get the notification type ID for `%s`", notificationType)

	// Build the SQL query and arguments.
	query, args, err := sq.StatementBuilder.
		PlaceholderFormat(sq.Dollar).
		Select("id::text").
		From("notification_types").
		Where(sq.Eq{"name": notificationType}).
		ToSql()
	if err != nil {
		return "", errors.Wrap(err, wrapMsg)
	}

	// Query the database.
	var id string
	row := tx.QueryRowContext(ctx, query, args...)
	err = row.Scan(&id)
	if err != nil {
		return "", errors.Wrap(err, wrapMsg)
	}

	return id, nil
}

// RegisterNotificationType adds a notification type to the database. Registering a notification
// type that already exists is not an error.
func RegisterNotificationType(ctx context.Context, tx *sql.Tx, notificationType string) error {
	wrapMsg := fmt.Sprintf("unable to register notification type `%s`", notificationType)

	// Build the statement.
	statement, args, err := sq.StatementBuilder.
		PlaceholderFormat(sq.Dollar).
		Insert("notification_types").
		Columns("name").
		Values(notificationType).
		Suffix("ON CONFLICT (name) DO NOTHING").
		ToSql()
	if err != nil {
		return errors.Wrap(err, wrapMsg)
	}

	// Execute the statement.
	_, err = tx.ExecContext(ctx, statement, args...)
	if err != nil {
		return errors.Wrap(err, wrapMsg)
	}

	return nil
}

// EnsureNotificationType obtains the ID of the notification type with the given name,
// registering the notification type first if it doesn't exist yet.
func EnsureNotificationType(ctx context.Context, tx *sql.Tx, notificationType string) (string, error) {
	if err := RegisterNotificationType(ctx, tx, notificationType); err != nil {
		return "", err
	}
	return GetNotificationTypeID(ctx, tx, notificationType)
}
