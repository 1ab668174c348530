package handlerset

import (
	"context"
	"sync"
	"time"

	"github.com/cyverse-de/placement-notifier/handlers"
	"github.com/cyverse-de/placement-notifier/metrics"
	"github.com/cyverse-de/placement-notifier/model"
	"github.com/sirupsen/logrus"
)

var log = logrus.WithFields(logrus.Fields{"context": "handlerset"})

// Handle represents an open subscription to the change event source. Unsubscribe must be safe
// to call more than once. The channel returned by Done is closed when the subscription stops
// delivering events, either because it was released or because the source lost it.
type Handle interface {
	Unsubscribe() error
	Done() <-chan struct{}
}

// Source describes the change event source that subscriptions are opened against. The deliver
// function is called once for every matching change, in the order that the source emits them
// for each table.
type Source interface {
	Subscribe(
		ctx context.Context,
		channel string,
		registrations []model.Registration,
		deliver func(model.ChangeEvent),
	) (Handle, error)
}

// Sink describes the destination for notifications. Notify must not block for long; the
// dispatcher doesn't wait for the notification to be displayed or stored.
type Sink interface {
	Notify(recipient model.Identity, table model.Table, notification model.Notification)
}

// Settings represents the settings used by a handler set.
type Settings struct {
	// Channel is the name of the logical channel that subscriptions are opened on.
	Channel string

	// EstablishTimeout limits the amount of time that a single subscription attempt may take.
	EstablishTimeout time.Duration

	// QueueDepth is the number of inbound change events that may be waiting for dispatch.
	QueueDepth int
}

const (
	defaultEstablishTimeout = 30 * time.Second
	defaultQueueDepth       = 256
)

// inbound is a change event tagged with the subscription that delivered it.
type inbound struct {
	generation uint64
	event      model.ChangeEvent
}

// subscription is the single open subscription owned by a handler set.
type subscription struct {
	generation uint64
	identity   model.Identity
	handle     Handle

	// stale is closed before the handle is released so that pending deliveries give up.
	stale chan struct{}
}

// HandlerSet binds realtime change delivery to the current identity. It owns at most one open
// subscription at a time and routes every change event it receives to the classifier for the
// event's table. All subscription changes and event dispatching happen on a single goroutine.
//
// Callers only record the identity that they want to be bound. The dispatch goroutine
// reconciles the subscription with the most recently requested identity, so identities that
// are replaced before the goroutine gets to them are never subscribed.
type HandlerSet struct {
	settings   Settings
	source     Source
	sink       Sink
	handlerFor map[model.Table]handlers.Classifier

	// Guarded by mu.
	mu      sync.Mutex
	desired *model.Identity
	dirty   bool
	waiters []chan struct{}

	wake      chan struct{}
	events    chan inbound
	lost      chan uint64
	done      chan struct{}
	stopped   chan struct{}
	closeOnce sync.Once

	// Owned by the dispatch goroutine.
	active     *subscription
	generation uint64
}

// New creates a new handler set and starts its dispatch goroutine. The handler set starts out
// without a subscription.
func New(settings Settings, source Source, sink Sink, handlerFor map[model.Table]handlers.Classifier) *HandlerSet {
	if settings.EstablishTimeout <= 0 {
		settings.EstablishTimeout = defaultEstablishTimeout
	}
	if settings.QueueDepth <= 0 {
		settings.QueueDepth = defaultQueueDepth
	}

	hs := &HandlerSet{
		settings:   settings,
		source:     source,
		sink:       sink,
		handlerFor: handlerFor,
		wake:       make(chan struct{}, 1),
		events:     make(chan inbound, settings.QueueDepth),
		lost:       make(chan uint64),
		done:       make(chan struct{}),
		stopped:    make(chan struct{}),
	}
	go hs.run()

	return hs
}

// Bind makes sure that the subscription is bound to the given identity. A nil identity
// releases the current subscription. Binding the identity that is already bound does nothing.
// Bind never blocks; the subscription is established in the background.
func (hs *HandlerSet) Bind(identity *model.Identity) {
	var copied *model.Identity
	if identity != nil {
		id := *identity
		copied = &id
	}
	hs.request(copied)
}

// Release tears down the current subscription if there is one.
func (hs *HandlerSet) Release() {
	hs.request(nil)
}

// Close releases the current subscription and stops the dispatch goroutine. Calls to Bind or
// Release after Close are ignored.
func (hs *HandlerSet) Close() {
	hs.closeOnce.Do(func() {
		close(hs.done)
	})
	<-hs.stopped
}

// flush waits until every request and event that was queued before the call has been handled.
func (hs *HandlerSet) flush() {
	done := make(chan struct{})
	hs.mu.Lock()
	hs.waiters = append(hs.waiters, done)
	hs.mu.Unlock()
	hs.notify()

	select {
	case <-done:
	case <-hs.stopped:
	}
}

func (hs *HandlerSet) request(identity *model.Identity) {
	hs.mu.Lock()
	hs.desired = identity
	hs.dirty = true
	hs.mu.Unlock()
	hs.notify()
}

// notify wakes the dispatch goroutine without waiting for it.
func (hs *HandlerSet) notify() {
	select {
	case hs.wake <- struct{}{}:
	default:
	}
}

func (hs *HandlerSet) run() {
	defer close(hs.stopped)
	for {
		select {
		case <-hs.wake:
			// Events that arrived before the request belong to the subscription that was
			// active when they were delivered.
			hs.drainEvents()
			hs.reconcile()
		case in := <-hs.events:
			hs.dispatch(in)
		case generation := <-hs.lost:
			hs.drainEvents()
			hs.subscriptionLost(generation)
		case <-hs.done:
			hs.release()
			return
		}
	}
}

func (hs *HandlerSet) drainEvents() {
	for {
		select {
		case in := <-hs.events:
			hs.dispatch(in)
		default:
			return
		}
	}
}

// reconcile brings the subscription in line with the most recent request. A failed
// establishment isn't retried until the next request.
func (hs *HandlerSet) reconcile() {
	hs.mu.Lock()
	desired, dirty, waiters := hs.desired, hs.dirty, hs.waiters
	hs.dirty = false
	hs.waiters = nil
	hs.mu.Unlock()

	if dirty {
		hs.bind(desired)
	}
	for _, w := range waiters {
		close(w)
	}
}

func (hs *HandlerSet) bind(identity *model.Identity) {
	if identity == nil {
		hs.release()
		return
	}
	if hs.active != nil && hs.active.identity == *identity {
		return
	}
	hs.release()
	hs.establish(*identity)
}

func (hs *HandlerSet) establish(identity model.Identity) {
	hs.generation++
	generation := hs.generation
	stale := make(chan struct{})

	deliver := func(event model.ChangeEvent) {
		select {
		case hs.events <- inbound{generation: generation, event: event}:
		case <-stale:
		case <-hs.done:
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), hs.settings.EstablishTimeout)
	defer cancel()

	fields := logrus.Fields{"user": identity.User, "channel": hs.settings.Channel}
	handle, err := hs.source.Subscribe(ctx, hs.settings.Channel, model.UnrestrictedRegistrations(), deliver)
	if err != nil {
		close(stale)
		metrics.SubscriptionFailures.Inc()
		log.WithFields(fields).WithField("recoverable", handlers.IsRecoverable(err)).
			Warnf("unable to establish the subscription: %s", err)
		return
	}

	hs.active = &subscription{
		generation: generation,
		identity:   identity,
		handle:     handle,
		stale:      stale,
	}
	metrics.SubscriptionsEstablished.Inc()
	metrics.ActiveSubscriptions.Set(1)
	log.WithFields(fields).Info("subscription established")

	go hs.watch(generation, handle.Done(), stale)
}

// watch reports the end of a subscription that the handler set didn't release itself.
func (hs *HandlerSet) watch(generation uint64, ended, stale <-chan struct{}) {
	select {
	case <-ended:
		select {
		case hs.lost <- generation:
		case <-stale:
		case <-hs.done:
		}
	case <-stale:
	}
}

// subscriptionLost resets the handler set to the unbound state after the source ends a
// subscription. The next Bind establishes a new one, even for the same identity.
func (hs *HandlerSet) subscriptionLost(generation uint64) {
	if hs.active == nil || hs.active.generation != generation {
		return
	}
	metrics.SubscriptionsLost.Inc()
	log.WithField("user", hs.active.identity.User).Warn("subscription lost")
	hs.release()
}

func (hs *HandlerSet) release() {
	if hs.active == nil {
		return
	}
	active := hs.active
	hs.active = nil

	close(active.stale)
	if err := active.handle.Unsubscribe(); err != nil {
		log.WithField("user", active.identity.User).Errorf("unable to release the subscription: %s", err)
	}
	metrics.SubscriptionsReleased.Inc()
	metrics.ActiveSubscriptions.Set(0)
	log.WithField("user", active.identity.User).Info("subscription released")
}

func (hs *HandlerSet) dispatch(in inbound) {
	if hs.active == nil || in.generation != hs.active.generation {
		metrics.EventsDiscarded.Inc()
		return
	}
	event := in.event
	metrics.EventsReceived.WithLabelValues(string(event.Table), string(event.Operation)).Inc()

	classifier, ok := hs.handlerFor[event.Table]
	if !ok {
		log.WithField("table", event.Table).Debug("no classifier registered for table")
		return
	}

	notification, ok := classify(classifier, event)
	if !ok {
		return
	}

	metrics.NotificationsDispatched.WithLabelValues(string(event.Table), string(notification.Severity)).Inc()
	hs.sink.Notify(hs.active.identity, event.Table, notification)
}

// classify runs a classifier, treating a panic as "no notification".
func classify(classifier handlers.Classifier, event model.ChangeEvent) (notification model.Notification, ok bool) {
	defer func() {
		if r := recover(); r != nil {
			log.WithFields(logrus.Fields{"table": event.Table, "operation": event.Operation}).
				Errorf("classifier failed: %v", r)
			notification, ok = model.Notification{}, false
		}
	}()
	return classifier.Classify(event)
}
