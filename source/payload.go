package source

import (
	"encoding/json"
	"strconv"

	"github.com/cyverse-de/placement-notifier/common"
	"github.com/cyverse-de/placement-notifier/handlers"
	"github.com/cyverse-de/placement-notifier/model"
	"github.com/sirupsen/logrus"
)

var log = logrus.WithFields(logrus.Fields{"context": "source"})

// debeziumPayload is the payload section of a Debezium change message.
type debeziumPayload struct {
	Before    model.Row `json:"before"`
	After     model.Row `json:"after"`
	Operation string    `json:"op"`
	TimeMs    *int64    `json:"ts_ms"`
	Source    struct {
		Table string `json:"table"`
	} `json:"source"`
}

// debeziumEnvelope is a Debezium change message with an embedded schema. Messages published
// with schemas disabled consist of the payload alone.
type debeziumEnvelope struct {
	Payload *debeziumPayload `json:"payload"`
}

// DecodeDebezium decodes a change message in Debezium JSON format. The table name in the message
// takes precedence over defaultTable, which is usually derived from the routing key or subject.
func DecodeDebezium(body []byte, defaultTable model.Table) (model.ChangeEvent, error) {
	var envelope debeziumEnvelope
	if err := json.Unmarshal(body, &envelope); err != nil {
		return model.ChangeEvent{}, handlers.NewUnrecoverableError("unable to parse message body: %s", err.Error())
	}

	payload := envelope.Payload
	if payload == nil {
		payload = &debeziumPayload{}
		if err := json.Unmarshal(body, payload); err != nil {
			return model.ChangeEvent{}, handlers.NewUnrecoverableError("unable to parse message body: %s", err.Error())
		}
	}

	op, err := model.ParseOperation(payload.Operation)
	if err != nil {
		return model.ChangeEvent{}, handlers.NewUnrecoverableError("unable to parse message body: %s", err.Error())
	}

	table := defaultTable
	if payload.Source.Table != "" {
		table = model.Table(payload.Source.Table)
	}
	if table == "" {
		return model.ChangeEvent{}, handlers.NewUnrecoverableError("no table name found in change message")
	}

	event := model.ChangeEvent{
		Table:     table,
		Operation: op,
		Before:    payload.Before,
		After:     payload.After,
	}
	if payload.TimeMs != nil {
		event.Timestamp = strconv.FormatInt(*payload.TimeMs, 10)
	}

	return event, nil
}

// triggerPayload is the JSON document sent by the change notification trigger function in the
// placement database.
type triggerPayload struct {
	Table           string    `json:"table"`
	Type            string    `json:"type"`
	Record          model.Row `json:"record"`
	OldRecord       model.Row `json:"old_record"`
	CommitTimestamp string    `json:"commit_timestamp"`
}

// DecodeTriggerPayload decodes a change notification sent by the database trigger.
func DecodeTriggerPayload(body string) (model.ChangeEvent, error) {
	var payload triggerPayload
	if err := json.Unmarshal([]byte(body), &payload); err != nil {
		return model.ChangeEvent{}, handlers.NewUnrecoverableError("unable to parse notification payload: %s", err.Error())
	}
	if payload.Table == "" {
		return model.ChangeEvent{}, handlers.NewUnrecoverableError("no table name found in notification payload")
	}

	op, err := model.ParseOperation(payload.Type)
	if err != nil {
		return model.ChangeEvent{}, handlers.NewUnrecoverableError("unable to parse notification payload: %s", err.Error())
	}

	timestamp, err := common.FixTimestamp(payload.CommitTimestamp)
	if err != nil {
		log.Debugf("ignoring commit timestamp: %s", err)
		timestamp = ""
	}

	return model.ChangeEvent{
		Table:     model.Table(payload.Table),
		Operation: op,
		Before:    payload.OldRecord,
		After:     payload.Record,
		Timestamp: timestamp,
	}, nil
}

// matchesAny returns true if any of the registrations covers the event.
func matchesAny(registrations []model.Registration, event model.ChangeEvent) bool {
	for _, reg := range registrations {
		if reg.Matches(event.Table, event.Operation) {
			return true
		}
	}
	return false
}
