package model

import "time"

// Severity determines how prominently a notification is displayed to the user.
type Severity string

const (
	// SeverityNormal is used for informational notifications.
	SeverityNormal Severity = "normal"

	// SeverityAttention is used for notifications that the user should look at right away.
	SeverityAttention Severity = "attention"
)

// Notification represents a single user-facing notification produced from a change event.
type Notification struct {
	Title    string
	Body     string
	Severity Severity
}

// RecordedNotification represents a single notification to be recorded in the database.
type RecordedNotification struct {
	ID               string
	NotificationType string
	User             string
	Subject          string
	Body             string
	Severity         Severity
	Seen             bool
	Deleted          bool
	TimeCreated      time.Time
}
