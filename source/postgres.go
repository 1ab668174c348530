package source

import (
	"context"
	"sync"
	"time"

	"github.com/cyverse-de/placement-notifier/handlers"
	"github.com/cyverse-de/placement-notifier/handlerset"
	"github.com/cyverse-de/placement-notifier/model"
	"github.com/lib/pq"
	"github.com/sirupsen/logrus"
)

const (
	minReconnectInterval = 10 * time.Second
	maxReconnectInterval = time.Minute
)

// Postgres receives change events sent with NOTIFY by a trigger function in the placement
// database. The channel name passed to Subscribe is used as the notification channel.
type Postgres struct {
	databaseURI string
}

// NewPostgres returns a new Postgres change event source.
func NewPostgres(databaseURI string) *Postgres {
	return &Postgres{databaseURI: databaseURI}
}

// Subscribe implements handlerset.Source.
func (s *Postgres) Subscribe(
	ctx context.Context,
	channel string,
	registrations []model.Registration,
	deliver func(model.ChangeEvent),
) (handlerset.Handle, error) {
	fields := logrus.Fields{"channel": channel}
	listener := pq.NewListener(s.databaseURI, minReconnectInterval, maxReconnectInterval,
		func(event pq.ListenerEventType, err error) {
			if err != nil {
				log.WithFields(fields).Warnf("database listener event %d: %s", event, err)
			}
		},
	)

	// Listen blocks until the listener has a connection, so it's run in the background to
	// honor the context.
	listenErr := make(chan error, 1)
	go func() {
		listenErr <- listener.Listen(channel)
	}()

	select {
	case err := <-listenErr:
		if err != nil {
			listener.Close()
			return nil, handlers.NewRecoverableError("unable to listen on %s: %s", channel, err.Error())
		}
	case <-ctx.Done():
		listener.Close()
		return nil, handlers.NewRecoverableError("unable to listen on %s: %s", channel, ctx.Err().Error())
	}

	handle := &postgresHandle{
		listener: listener,
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}
	go handle.receive(fields, registrations, deliver)

	return handle, nil
}

type postgresHandle struct {
	listener *pq.Listener
	stop     chan struct{}
	done     chan struct{}
	once     sync.Once
	err      error
}

func (h *postgresHandle) receive(
	fields logrus.Fields,
	registrations []model.Registration,
	deliver func(model.ChangeEvent),
) {
	defer close(h.done)

	for {
		select {
		case <-h.stop:
			return
		case notification, ok := <-h.listener.Notify:
			if !ok {
				return
			}

			// A nil notification is sent after the connection is re-established.
			if notification == nil {
				log.WithFields(fields).Info("database listener reconnected; changes may have been missed")
				continue
			}

			event, err := DecodeTriggerPayload(notification.Extra)
			if err != nil {
				log.WithFields(fields).Errorf("discarding change notification: %s", err)
				continue
			}
			if matchesAny(registrations, event) {
				deliver(event)
			}
		}
	}
}

// Done implements handlerset.Handle.
func (h *postgresHandle) Done() <-chan struct{} {
	return h.done
}

// Unsubscribe stops listening and closes the database connection.
func (h *postgresHandle) Unsubscribe() error {
	h.once.Do(func() {
		close(h.stop)
		if err := h.listener.Close(); err != nil {
			h.err = handlers.NewRecoverableError("unable to close the database listener: %s", err.Error())
		}
		<-h.done
	})
	return h.err
}
