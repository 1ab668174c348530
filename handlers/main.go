package handlers

import (
	"github.com/cyverse-de/placement-notifier/model"
	"github.com/sirupsen/logrus"
)

var log = logrus.WithFields(logrus.Fields{"context": "handlers"})

// Classifier describes the interface used to turn change events into notifications. Classify
// returns false when the event doesn't warrant a notification. Implementations must not retain
// state between calls.
type Classifier interface {
	Classify(event model.ChangeEvent) (model.Notification, bool)
}

// Settings contains the tunable parameters of the classifiers.
type Settings struct {
	// StrongResultThreshold is the minimum evaluation score that counts as a strong result.
	StrongResultThreshold float64
}

// DefaultStrongResultThreshold is the strong result threshold used when none is configured.
const DefaultStrongResultThreshold = 70

// InitClassifiers returns a map from table name to classifier.
func InitClassifiers(settings *Settings) map[model.Table]Classifier {
	threshold := settings.StrongResultThreshold
	if threshold <= 0 {
		threshold = DefaultStrongResultThreshold
	}
	return map[model.Table]Classifier{
		model.TableApplications: NewApplications(),
		model.TableEvaluations:  NewEvaluations(threshold),
	}
}
