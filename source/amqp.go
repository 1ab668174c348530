package source

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/cyverse-de/placement-notifier/common"
	"github.com/cyverse-de/placement-notifier/handlers"
	"github.com/cyverse-de/placement-notifier/handlerset"
	"github.com/cyverse-de/placement-notifier/model"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/streadway/amqp"
)

// AMQP receives change events published to an AMQP exchange with routing keys of the form
// `<table>.<operation>`. Each subscription gets its own exclusive queue, which the broker
// deletes when the subscription is released.
type AMQP struct {
	settings *common.AMQPSettings

	mu   sync.Mutex
	conn *amqp.Connection
}

// NewAMQP returns a new AMQP change event source. The connection is established when the first
// subscription is requested.
func NewAMQP(settings *common.AMQPSettings) *AMQP {
	return &AMQP{settings: settings}
}

// RoutingKeys returns the routing keys that a queue must be bound to in order to receive the
// events covered by a registration.
func RoutingKeys(reg model.Registration) []string {
	if len(reg.Operations) == 0 {
		return []string{fmt.Sprintf("%s.*", reg.Table)}
	}
	keys := make([]string, len(reg.Operations))
	for i, op := range reg.Operations {
		keys[i] = fmt.Sprintf("%s.%s", reg.Table, op.RoutingKey())
	}
	return keys
}

// tableFromRoutingKey extracts the table name from a routing key.
func tableFromRoutingKey(routingKey string) model.Table {
	return model.Table(strings.SplitN(routingKey, ".", 2)[0])
}

func (s *AMQP) connection() (*amqp.Connection, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.conn != nil && !s.conn.IsClosed() {
		return s.conn, nil
	}

	conn, err := amqp.Dial(s.settings.URI)
	if err != nil {
		return nil, handlers.NewRecoverableError("unable to connect to the AMQP broker: %s", err.Error())
	}
	s.conn = conn
	return conn, nil
}

// Subscribe implements handlerset.Source.
func (s *AMQP) Subscribe(
	ctx context.Context,
	channel string,
	registrations []model.Registration,
	deliver func(model.ChangeEvent),
) (handlerset.Handle, error) {
	conn, err := s.connection()
	if err != nil {
		return nil, err
	}

	ch, err := conn.Channel()
	if err != nil {
		return nil, handlers.NewRecoverableError("unable to open an AMQP channel: %s", err.Error())
	}

	queue, err := s.declare(ctx, ch, channel, registrations)
	if err != nil {
		ch.Close()
		return nil, err
	}

	consumerTag := uuid.New().String()
	deliveries, err := ch.Consume(queue, consumerTag, false, true, false, false, nil)
	if err != nil {
		ch.Close()
		return nil, handlers.NewRecoverableError("unable to consume from %s: %s", queue, err.Error())
	}

	handle := &amqpHandle{
		ch:          ch,
		consumerTag: consumerTag,
		done:        make(chan struct{}),
	}
	go handle.consume(deliveries, registrations, deliver)

	return handle, nil
}

// declare declares the exchange and a new exclusive queue bound to it, returning the queue name.
func (s *AMQP) declare(
	ctx context.Context,
	ch *amqp.Channel,
	channel string,
	registrations []model.Registration,
) (string, error) {
	exchange := s.settings.ExchangeName

	err := ch.ExchangeDeclare(exchange, s.settings.ExchangeType, true, false, false, false, nil)
	if err != nil {
		return "", handlers.NewUnrecoverableError("unable to declare exchange %s: %s", exchange, err.Error())
	}

	name := fmt.Sprintf("%s.%s", channel, uuid.New().String())
	queue, err := ch.QueueDeclare(name, false, true, true, false, nil)
	if err != nil {
		return "", handlers.NewRecoverableError("unable to declare queue %s: %s", name, err.Error())
	}

	for _, reg := range registrations {
		for _, key := range RoutingKeys(reg) {
			if err := ctx.Err(); err != nil {
				return "", handlers.NewRecoverableError("subscription cancelled: %s", err.Error())
			}
			if err := ch.QueueBind(queue.Name, key, exchange, false, nil); err != nil {
				return "", handlers.NewRecoverableError("unable to bind %s to %s: %s", queue.Name, key, err.Error())
			}
		}
	}

	return queue.Name, nil
}

// Close closes the connection to the AMQP broker.
func (s *AMQP) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.conn != nil {
		s.conn.Close()
		s.conn = nil
	}
}

type amqpHandle struct {
	ch          *amqp.Channel
	consumerTag string
	done        chan struct{}
	once        sync.Once
	released    atomic.Bool
	err         error
}

func (h *amqpHandle) consume(
	deliveries <-chan amqp.Delivery,
	registrations []model.Registration,
	deliver func(model.ChangeEvent),
) {
	defer close(h.done)

	for delivery := range deliveries {
		fields := logrus.Fields{"routing-key": delivery.RoutingKey}

		event, err := DecodeDebezium(delivery.Body, tableFromRoutingKey(delivery.RoutingKey))
		if err != nil {
			log.WithFields(fields).Errorf("discarding change message: %s", err)
			if err := delivery.Reject(false); err != nil {
				log.WithFields(fields).Errorf("unable to reject change message: %s", err)
			}
			continue
		}

		if matchesAny(registrations, event) {
			deliver(event)
		}

		if err := delivery.Ack(false); err != nil {
			log.WithFields(fields).Errorf("unable to acknowledge change message: %s", err)
		}
	}

	if !h.released.Load() {
		log.WithField("consumer", h.consumerTag).Warn("the AMQP broker stopped delivering change messages")
	}
}

// Done implements handlerset.Handle. The channel is closed when the consumer stops, which
// includes the broker closing the channel or the connection.
func (h *amqpHandle) Done() <-chan struct{} {
	return h.done
}

// Unsubscribe cancels the consumer and closes the channel, which also deletes the queue.
func (h *amqpHandle) Unsubscribe() error {
	h.once.Do(func() {
		h.released.Store(true)
		if err := h.ch.Cancel(h.consumerTag, false); err != nil {
			h.err = handlers.NewRecoverableError("unable to cancel consumer %s: %s", h.consumerTag, err.Error())
		}
		if err := h.ch.Close(); err != nil && h.err == nil {
			h.err = handlers.NewRecoverableError("unable to close the AMQP channel: %s", err.Error())
		}
		<-h.done
	})
	return h.err
}

var (
	_ handlerset.Source = (*AMQP)(nil)
	_ handlerset.Source = (*Postgres)(nil)
	_ handlerset.Source = (*NATS)(nil)
)
