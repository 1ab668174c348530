package handlers

import (
	"testing"

	"github.com/cyverse-de/placement-notifier/model"
	"github.com/stretchr/testify/assert"
)

// applicationUpdate returns an update event for the applications table that changes the status
// from `before` to `after`.
func applicationUpdate(before, after string) model.ChangeEvent {
	return model.ChangeEvent{
		Table:     model.TableApplications,
		Operation: model.OperationUpdate,
		Before:    model.Row{"id": "a1", "status": before},
		After:     model.Row{"id": "a1", "status": after},
	}
}

func TestApplicationInsert(t *testing.T) {
	assert := assert.New(t)

	event := model.ChangeEvent{
		Table:     model.TableApplications,
		Operation: model.OperationInsert,
		After:     model.Row{"id": "a1", "status": "submitted"},
	}
	n, ok := NewApplications().Classify(event)
	assert.True(ok, "no notification for a new application")
	assert.Equal("📝 New Job Application", n.Title)
	assert.Equal(model.SeverityNormal, n.Severity)
}

func TestApplicationShortlisted(t *testing.T) {
	assert := assert.New(t)

	n, ok := NewApplications().Classify(applicationUpdate("submitted", "shortlisted"))
	assert.True(ok, "no notification for a shortlisted application")
	assert.Equal("🎉 Application Shortlisted!", n.Title)
	assert.Equal(model.SeverityNormal, n.Severity)
}

func TestApplicationRejected(t *testing.T) {
	assert := assert.New(t)

	n, ok := NewApplications().Classify(applicationUpdate("shortlisted", "rejected"))
	assert.True(ok, "no notification for a rejected application")
	assert.Equal(model.SeverityAttention, n.Severity)
}

func TestApplicationKnownStatuses(t *testing.T) {
	assert := assert.New(t)

	titles := make(map[string]bool)
	for _, status := range []string{"shortlisted", "hired", "rejected", "interview_scheduled"} {
		n, ok := NewApplications().Classify(applicationUpdate("submitted", status))
		assert.Truef(ok, "no notification for status %s", status)
		assert.NotEqualf("📋 Application Status Updated", n.Title, "generic wording used for status %s", status)
		titles[n.Title] = true
		if status == "rejected" {
			assert.Equal(model.SeverityAttention, n.Severity)
		} else {
			assert.Equalf(model.SeverityNormal, n.Severity, "incorrect severity for %s", status)
		}
	}
	assert.Len(titles, 4, "status titles are not distinct")

	// Hyphenated status values share the wording of their underscored forms.
	hyphenated, _ := NewApplications().Classify(applicationUpdate("submitted", "interview-scheduled"))
	underscored, _ := NewApplications().Classify(applicationUpdate("submitted", "interview_scheduled"))
	assert.Equal(underscored, hyphenated)
}

func TestApplicationUnknownStatus(t *testing.T) {
	assert := assert.New(t)

	n, ok := NewApplications().Classify(applicationUpdate("submitted", "on_hold"))
	assert.True(ok, "no notification for an unknown status")
	assert.Equal("Application status updated to on_hold.", n.Body)
	assert.Equal(model.SeverityNormal, n.Severity)
}

func TestApplicationUpdateWithoutStatusChange(t *testing.T) {
	assert := assert.New(t)

	event := applicationUpdate("shortlisted", "shortlisted")
	event.After["notes"] = "called the candidate"
	_, ok := NewApplications().Classify(event)
	assert.False(ok, "notification produced for an update without a status change")
}

func TestApplicationDelete(t *testing.T) {
	event := model.ChangeEvent{
		Table:     model.TableApplications,
		Operation: model.OperationDelete,
		Before:    model.Row{"id": "a1", "status": "hired"},
	}
	_, ok := NewApplications().Classify(event)
	assert.False(t, ok, "notification produced for a deleted application")
}

func TestApplicationMalformedUpdate(t *testing.T) {
	assert := assert.New(t)

	// The before snapshot is missing.
	event := model.ChangeEvent{
		Table:     model.TableApplications,
		Operation: model.OperationUpdate,
		After:     model.Row{"id": "a1", "status": "hired"},
	}
	_, ok := NewApplications().Classify(event)
	assert.False(ok, "notification produced without a before snapshot")

	// The status can't be decoded as a string.
	event = applicationUpdate("submitted", "hired")
	event.After["status"] = []interface{}{"hired"}
	_, ok = NewApplications().Classify(event)
	assert.False(ok, "notification produced for an undecodable status")
}

func TestApplicationClassificationIsRepeatable(t *testing.T) {
	classifier := NewApplications()
	event := applicationUpdate("submitted", "hired")

	first, firstOK := classifier.Classify(event)
	second, secondOK := classifier.Classify(event)
	assert.Equal(t, firstOK, secondOK)
	assert.Equal(t, first, second)
}

func TestApplicationStatusFromNull(t *testing.T) {
	assert := assert.New(t)

	event := model.ChangeEvent{
		Table:     model.TableApplications,
		Operation: model.OperationUpdate,
		Before:    model.Row{"id": "a1", "status": nil},
		After:     model.Row{"id": "a1", "status": "shortlisted"},
	}
	n, ok := NewApplications().Classify(event)
	assert.True(ok, "no notification for a status set from null")
	assert.Equal("🎉 Application Shortlisted!", n.Title)

	// A status that stays null hasn't changed.
	event.After["status"] = nil
	_, ok = NewApplications().Classify(event)
	assert.False(ok, "notification produced for a status that stayed null")

	// A status that's cleared has nothing to describe.
	event.Before["status"] = "shortlisted"
	_, ok = NewApplications().Classify(event)
	assert.False(ok, "notification produced for a cleared status")

	// The column is missing from the before snapshot.
	event = model.ChangeEvent{
		Table:     model.TableApplications,
		Operation: model.OperationUpdate,
		Before:    model.Row{"id": "a1"},
		After:     model.Row{"id": "a1", "status": "shortlisted"},
	}
	_, ok = NewApplications().Classify(event)
	assert.False(ok, "notification produced without a prior status column")
}
