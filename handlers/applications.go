package handlers

import (
	"fmt"
	"strings"

	"github.com/cyverse-de/placement-notifier/model"
	"github.com/sirupsen/logrus"
)

// applicationStatus is a status value that has its own notification wording.
type applicationStatus string

const (
	statusShortlisted        applicationStatus = "shortlisted"
	statusHired              applicationStatus = "hired"
	statusRejected           applicationStatus = "rejected"
	statusInterviewScheduled applicationStatus = "interview_scheduled"
)

var newApplicationNotification = model.Notification{
	Title:    "📝 New Job Application",
	Body:     "A new job application has been submitted.",
	Severity: model.SeverityNormal,
}

var statusNotifications = map[applicationStatus]model.Notification{
	statusShortlisted: {
		Title:    "🎉 Application Shortlisted!",
		Body:     "An application has been shortlisted for the next round.",
		Severity: model.SeverityNormal,
	},
	statusHired: {
		Title:    "🏆 Candidate Hired!",
		Body:     "An application has resulted in a job offer.",
		Severity: model.SeverityNormal,
	},
	statusRejected: {
		Title:    "❌ Application Rejected",
		Body:     "An application was not selected to move forward.",
		Severity: model.SeverityAttention,
	},
	statusInterviewScheduled: {
		Title:    "📅 Interview Scheduled",
		Body:     "An interview has been scheduled for an application.",
		Severity: model.SeverityNormal,
	},
}

// Applications classifies changes to the applications table.
type Applications struct{}

// NewApplications returns a new applications classifier.
func NewApplications() *Applications {
	return &Applications{}
}

// Classify implements Classifier.
func (a *Applications) Classify(event model.ChangeEvent) (model.Notification, bool) {
	switch event.Operation {
	case model.OperationInsert:
		return newApplicationNotification, true
	case model.OperationUpdate:
		return a.classifyUpdate(event)
	default:
		return model.Notification{}, false
	}
}

func (a *Applications) classifyUpdate(event model.ChangeEvent) (model.Notification, bool) {
	var before, after applicationRow
	if err := decodeRow(event.Before, &before); err != nil {
		log.WithFields(logrus.Fields{"table": event.Table}).Debugf("skipping update: %s", err)
		return model.Notification{}, false
	}
	if err := decodeRow(event.After, &after); err != nil {
		log.WithFields(logrus.Fields{"table": event.Table}).Debugf("skipping update: %s", err)
		return model.Notification{}, false
	}

	// The status can only be compared if both snapshots carry the column. A null prior
	// status is a real value that differs from any new status.
	_, hasBefore := event.Before["status"]
	_, hasAfter := event.After["status"]
	if !hasBefore || !hasAfter {
		return model.Notification{}, false
	}

	// A cleared status has nothing to describe.
	if after.Status == nil {
		return model.Notification{}, false
	}
	if before.Status != nil && *before.Status == *after.Status {
		return model.Notification{}, false
	}

	return statusNotification(*after.Status), true
}

// statusNotification returns the notification for a new application status.
func statusNotification(status string) model.Notification {
	key := applicationStatus(strings.ReplaceAll(strings.ToLower(status), "-", "_"))
	if n, ok := statusNotifications[key]; ok {
		return n
	}
	return model.Notification{
		Title:    "📋 Application Status Updated",
		Body:     fmt.Sprintf("Application status updated to %s.", status),
		Severity: model.SeverityNormal,
	}
}
