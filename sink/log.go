package sink

import (
	"github.com/cyverse-de/placement-notifier/model"
	"github.com/sirupsen/logrus"
)

var log = logrus.WithFields(logrus.Fields{"context": "sink"})

// Log writes notifications to the service log. Notifications that need the user's attention
// are logged as warnings.
type Log struct {
	entry *logrus.Entry
}

// NewLog returns a new log sink.
func NewLog() *Log {
	return &Log{entry: log.WithField("sink", "log")}
}

// Notify implements handlerset.Sink.
func (l *Log) Notify(recipient model.Identity, table model.Table, notification model.Notification) {
	entry := l.entry.WithFields(logrus.Fields{
		"user":     recipient.User,
		"table":    table,
		"severity": notification.Severity,
	})
	if notification.Severity == model.SeverityAttention {
		entry.Warnf("%s: %s", notification.Title, notification.Body)
		return
	}
	entry.Infof("%s: %s", notification.Title, notification.Body)
}
