package source

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/cyverse-de/placement-notifier/common"
	"github.com/cyverse-de/placement-notifier/handlers"
	"github.com/cyverse-de/placement-notifier/handlerset"
	"github.com/cyverse-de/placement-notifier/model"
	"github.com/nats-io/nats.go"
	"github.com/sirupsen/logrus"
)

// NATS receives change events in Debezium JSON format published to one subject per table. The
// subject for a table is `<prefix>.<table>`.
type NATS struct {
	settings *common.NATSSettings

	mu   sync.Mutex
	conn *nats.Conn
}

// NewNATS returns a new NATS change event source. The connection is established when the first
// subscription is requested.
func NewNATS(settings *common.NATSSettings) *NATS {
	return &NATS{settings: settings}
}

// Subject returns the subject that change events for a table are published to.
func (s *NATS) Subject(table model.Table) string {
	return fmt.Sprintf("%s.%s", s.settings.SubjectPrefix, table)
}

func (s *NATS) connection() (*nats.Conn, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.conn != nil && !s.conn.IsClosed() {
		return s.conn, nil
	}

	conn, err := nats.Connect(s.settings.URL,
		nats.Name("placement-notifier"),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(time.Second),
	)
	if err != nil {
		return nil, handlers.NewRecoverableError("unable to connect to NATS: %s", err.Error())
	}
	s.conn = conn
	return conn, nil
}

// Subscribe implements handlerset.Source. Messages for each table are handled on their own
// goroutine, so events for a table arrive in order but tables are independent of each other.
func (s *NATS) Subscribe(
	ctx context.Context,
	channel string,
	registrations []model.Registration,
	deliver func(model.ChangeEvent),
) (handlerset.Handle, error) {
	conn, err := s.connection()
	if err != nil {
		return nil, err
	}

	handle := newNATSHandle()
	for _, reg := range registrations {
		reg := reg
		subject := s.Subject(reg.Table)
		fields := logrus.Fields{"channel": channel, "subject": subject}

		sub, err := conn.Subscribe(subject, func(msg *nats.Msg) {
			event, err := DecodeDebezium(msg.Data, reg.Table)
			if err != nil {
				log.WithFields(fields).Errorf("discarding change message: %s", err)
				return
			}
			if reg.Matches(event.Table, event.Operation) {
				deliver(event)
			}
		})
		if err != nil {
			_ = handle.Unsubscribe()
			return nil, handlers.NewRecoverableError("unable to subscribe to %s: %s", subject, err.Error())
		}
		handle.subs = append(handle.subs, sub)
	}

	// Make sure that the server has processed the subscriptions.
	if err := conn.FlushWithContext(ctx); err != nil {
		_ = handle.Unsubscribe()
		return nil, handlers.NewRecoverableError("unable to confirm NATS subscriptions: %s", err.Error())
	}

	return handle, nil
}

// Close closes the connection to the NATS server.
func (s *NATS) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.conn != nil {
		s.conn.Close()
		s.conn = nil
	}
}

// natsHandle owns the subscriptions for a single handler set subscription. The client reconnects
// on its own, so the handle only ends when it's released.
type natsHandle struct {
	subs []*nats.Subscription
	done chan struct{}
	once sync.Once
	err  error
}

func newNATSHandle() *natsHandle {
	return &natsHandle{done: make(chan struct{})}
}

// Done implements handlerset.Handle.
func (h *natsHandle) Done() <-chan struct{} {
	return h.done
}

// Unsubscribe removes every subscription owned by the handle.
func (h *natsHandle) Unsubscribe() error {
	h.once.Do(func() {
		for _, sub := range h.subs {
			if err := sub.Unsubscribe(); err != nil && h.err == nil {
				h.err = handlers.NewRecoverableError("unable to unsubscribe from %s: %s", sub.Subject, err.Error())
			}
		}
		close(h.done)
	})
	return h.err
}
