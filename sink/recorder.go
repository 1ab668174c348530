package sink

import (
	"context"
	"database/sql"
	"sync"
	"time"

	"github.com/cyverse-de/placement-notifier/db"
	"github.com/cyverse-de/placement-notifier/handlers"
	"github.com/cyverse-de/placement-notifier/metrics"
	"github.com/cyverse-de/placement-notifier/model"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

const (
	defaultRecorderQueueDepth = 100
	recordTimeout             = 30 * time.Second
)

// Recorder stores notifications in the notifications database. Notifications are queued and
// written by a background goroutine so that Notify never waits for the database.
type Recorder struct {
	db    *sql.DB
	queue chan *model.RecordedNotification
	wg    sync.WaitGroup

	mu     sync.RWMutex
	closed bool
}

// NewRecorder returns a new recorder and starts its background goroutine.
func NewRecorder(database *sql.DB, queueDepth int) *Recorder {
	if queueDepth <= 0 {
		queueDepth = defaultRecorderQueueDepth
	}
	r := &Recorder{
		db:    database,
		queue: make(chan *model.RecordedNotification, queueDepth),
	}
	r.wg.Add(1)
	go r.run()
	return r
}

// Notify implements handlerset.Sink. Notifications are dropped if the queue is full.
func (r *Recorder) Notify(recipient model.Identity, table model.Table, notification model.Notification) {
	record := &model.RecordedNotification{
		NotificationType: string(table),
		User:             recipient.User,
		Subject:          notification.Title,
		Body:             notification.Body,
		Severity:         notification.Severity,
		TimeCreated:      time.Now(),
	}

	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.closed {
		return
	}

	select {
	case r.queue <- record:
	default:
		metrics.NotificationsRecorded.WithLabelValues("dropped").Inc()
		log.WithFields(logrus.Fields{"user": record.User, "table": table}).
			Warn("notification queue full; notification not recorded")
	}
}

// Close stops accepting notifications and waits for queued notifications to be recorded.
func (r *Recorder) Close() {
	r.mu.Lock()
	if !r.closed {
		r.closed = true
		close(r.queue)
	}
	r.mu.Unlock()
	r.wg.Wait()
}

func (r *Recorder) run() {
	defer r.wg.Done()
	for record := range r.queue {
		r.recordWithRetry(record)
	}
}

// recordWithRetry records a notification, trying one more time if the first failure is
// recoverable.
func (r *Recorder) recordWithRetry(record *model.RecordedNotification) {
	fields := logrus.Fields{"user": record.User, "type": record.NotificationType}

	err := r.record(record)
	if err != nil && handlers.IsRecoverable(err) {
		log.WithFields(fields).Warnf("retrying notification: %s", err)
		err = r.record(record)
	}
	if err != nil {
		metrics.NotificationsRecorded.WithLabelValues("error").Inc()
		log.WithFields(fields).Errorf("unable to record notification: %s", err)
		return
	}
	metrics.NotificationsRecorded.WithLabelValues("success").Inc()
}

// record stores a single notification and its outgoing JSON in one transaction.
func (r *Recorder) record(record *model.RecordedNotification) error {
	ctx, cancel := context.WithTimeout(context.Background(), recordTimeout)
	defer cancel()

	// Begin a database transaction.
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return handlers.NewRecoverableError("unable to begin a database transaction: %s", err.Error())
	}
	defer tx.Rollback()

	// Store the notification in the database.
	err = db.SaveNotification(ctx, tx, record)
	if err != nil {
		return handlers.NewUnrecoverableError(err.Error())
	}
	err = db.SaveOutgoingNotification(ctx, tx, db.NewOutgoingNotification(record))
	if err != nil {
		return handlers.NewUnrecoverableError(err.Error())
	}

	// Count the unread notifications for the log message.
	unread, err := db.CountUnreadNotifications(ctx, tx, record.User)
	if err != nil {
		return errors.Wrap(err, "unable to record notification")
	}

	// Commit the transaction.
	err = tx.Commit()
	if err != nil {
		return handlers.NewRecoverableError("unable to commit the database transaction: %s", err.Error())
	}

	log.WithFields(logrus.Fields{"user": record.User, "id": record.ID, "unread": unread}).
		Debug("notification recorded")
	return nil
}
