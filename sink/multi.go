package sink

import (
	"github.com/cyverse-de/placement-notifier/handlerset"
	"github.com/cyverse-de/placement-notifier/model"
)

// Multi forwards each notification to several sinks in order.
type Multi []handlerset.Sink

// Notify implements handlerset.Sink.
func (m Multi) Notify(recipient model.Identity, table model.Table, notification model.Notification) {
	for _, s := range m {
		s.Notify(recipient, table, notification)
	}
}
