package handlers

import (
	"fmt"
	"strconv"

	"github.com/cyverse-de/placement-notifier/model"
	"github.com/sirupsen/logrus"
)

// Evaluations classifies changes to the evaluations table.
type Evaluations struct {
	threshold float64
}

// NewEvaluations returns a new evaluations classifier. Scores greater than or equal to the
// threshold are considered to be strong results.
func NewEvaluations(threshold float64) *Evaluations {
	return &Evaluations{threshold: threshold}
}

// Classify implements Classifier.
func (e *Evaluations) Classify(event model.ChangeEvent) (model.Notification, bool) {
	if event.Operation != model.OperationInsert {
		return model.Notification{}, false
	}

	if event.After == nil {
		return model.Notification{}, false
	}

	var row evaluationRow
	if err := decodeRow(event.After, &row); err != nil {
		log.WithFields(logrus.Fields{"table": event.Table}).Debugf("skipping insert: %s", err)
		return model.Notification{}, false
	}

	// An evaluation without a score hasn't been taken yet.
	if row.Score == nil {
		return newEvaluationNotification(row.Category), true
	}

	correct, total, err := row.counts()
	if err != nil {
		log.WithFields(logrus.Fields{"table": event.Table}).Debugf("skipping insert: %s", err)
		return model.Notification{}, false
	}

	return e.resultNotification(&row, correct, total), true
}

func (e *Evaluations) resultNotification(row *evaluationRow, correct, total int64) model.Notification {
	summary := fmt.Sprintf(
		"%s: %d/%d correct (%s%%)",
		row.Category, correct, total, strconv.FormatFloat(*row.Score, 'f', -1, 64),
	)

	if *row.Score >= e.threshold {
		return model.Notification{
			Title:    "🎯 Great Evaluation Result!",
			Body:     fmt.Sprintf("Strong result on %s.", summary),
			Severity: model.SeverityNormal,
		}
	}
	return model.Notification{
		Title:    "📚 Evaluation Needs Review",
		Body:     fmt.Sprintf("Keep practicing. %s.", summary),
		Severity: model.SeverityAttention,
	}
}

func newEvaluationNotification(category string) model.Notification {
	body := "A new evaluation is ready to take."
	if category != "" {
		body = fmt.Sprintf("A new %s evaluation is ready to take.", category)
	}
	return model.Notification{
		Title:    "🧪 New Evaluation Available",
		Body:     body,
		Severity: model.SeverityNormal,
	}
}
