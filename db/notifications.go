package db

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/cyverse-de/placement-notifier/common"
	"github.com/cyverse-de/placement-notifier/model"
	"github.com/pkg/errors"

	sq "github.com/Masterminds/squirrel"
)

// OutgoingNotification is the JSON document stored alongside each notification for display.
type OutgoingNotification struct {
	ID        string         `json:"id"`
	Type      string         `json:"type"`
	User      string         `json:"user"`
	Subject   string         `json:"subject"`
	Text      string         `json:"text"`
	Severity  model.Severity `json:"severity"`
	Timestamp string         `json:"timestamp"`
}

// NewOutgoingNotification builds the outgoing JSON document for a saved notification.
func NewOutgoingNotification(notification *model.RecordedNotification) *OutgoingNotification {
	return &OutgoingNotification{
		ID:        notification.ID,
		Type:      notification.NotificationType,
		User:      notification.User,
		Subject:   notification.Subject,
		Text:      notification.Body,
		Severity:  notification.Severity,
		Timestamp: common.FormatTimestamp(notification.TimeCreated),
	}
}

// CountUnreadNotifications counts the number of notifications for the user that haven't been marked as read.
func CountUnreadNotifications(ctx context.Context, tx *sql.Tx, user string) (int64, error) {
	wrapMsg := "unable to count unread notifications"
	var total int64

	// Build the statement to count the unread notifications.
	statement, args, err := sq.StatementBuilder.
		PlaceholderFormat(sq.Dollar).
		Select("count(*)").
		From("notifications n").
		Join("users u ON n.user_id = u.id").
		Where(sq.Eq{"u.username": user}).
		Where(sq.Eq{"n.deleted": false}).
		Where(sq.Eq{"n.seen": false}).
		ToSql()
	if err != nil {
		return 0, errors.Wrap(err, wrapMsg)
	}

	// Execute the statement.
	err = tx.QueryRowContext(ctx, statement, args...).Scan(&total)
	if err != nil {
		return 0, errors.Wrap(err, wrapMsg)
	}

	return total, nil
}

// SaveNotification saves a single notification into the database, registering its notification
// type and user if necessary. The ID assigned by the database is stored in the notification.
func SaveNotification(ctx context.Context, tx *sql.Tx, notification *model.RecordedNotification) error {
	wrapMsg := "unable to save notification"

	// Get the notification type ID.
	notificationTypeID, err := EnsureNotificationType(ctx, tx, notification.NotificationType)
	if err != nil {
		return errors.Wrap(err, wrapMsg)
	}

	// Get the user ID.
	userID, err := GetUserID(ctx, tx, notification.User)
	if err != nil {
		return errors.Wrap(err, wrapMsg)
	}

	// Build the statement to insert the notification.
	statement, args, err := sq.StatementBuilder.
		PlaceholderFormat(sq.Dollar).
		Insert("notifications").
		Columns(
			"notification_type_id",
			"user_id",
			"subject",
			"message",
			"severity",
			"seen",
			"deleted",
			"time_created").
		Values(
			notificationTypeID,
			userID,
			notification.Subject,
			notification.Body,
			string(notification.Severity),
			notification.Seen,
			notification.Deleted,
			notification.TimeCreated).
		Suffix("RETURNING id").
		ToSql()
	if err != nil {
		return errors.Wrap(err, wrapMsg)
	}

	// Execute the insert statement, scanning the ID into the notification structure.
	row := tx.QueryRowContext(ctx, statement, args...)
	err = row.Scan(&notification.ID)
	if err != nil {
		return errors.Wrap(err, wrapMsg)
	}

	return nil
}

// SaveOutgoingNotification adds the outgoing notification JSON to the notification in the database.
func SaveOutgoingNotification(ctx context.Context, tx *sql.Tx, outgoingNotification *OutgoingNotification) error {
	wrapMsg := "unable to save outgoing notification JSON"

	// Marshal the outgoing notification message.
	outgoingJSON, err := json.Marshal(outgoingNotification)
	if err != nil {
		return errors.Wrap(err, wrapMsg)
	}

	// Build the statement to add the notification.
	statement, args, err := sq.StatementBuilder.
		PlaceholderFormat(sq.Dollar).
		Update("notifications").
		Set("outgoing_json", outgoingJSON).
		Where(sq.Eq{"id": outgoingNotification.ID}).
		ToSql()
	if err != nil {
		return errors.Wrap(err, wrapMsg)
	}

	// Execute the update statement and verify that the correct number of rows was affected.
	result, err := tx.ExecContext(ctx, statement, args...)
	if err != nil {
		return errors.Wrap(err, wrapMsg)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return errors.Wrap(err, wrapMsg)
	}
	if rowsAffected != 1 {
		return fmt.Errorf("%s: unexpected number of rows affected: %d", wrapMsg, rowsAffected)
	}

	return nil
}
