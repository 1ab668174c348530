package model

import (
	"fmt"
	"strings"
)

// Table identifies one of the record tables that the dispatcher listens to.
type Table string

const (
	// TableApplications contains job applications submitted by students.
	TableApplications Table = "applications"

	// TableEvaluations contains skill evaluations taken by students.
	TableEvaluations Table = "evaluations"
)

// KnownTables returns the tables that every subscription is registered for.
func KnownTables() []Table {
	return []Table{TableApplications, TableEvaluations}
}

// Operation is the kind of row-level change carried by a change event.
type Operation string

const (
	OperationInsert Operation = "INSERT"
	OperationUpdate Operation = "UPDATE"
	OperationDelete Operation = "DELETE"
)

// ParseOperation converts either a SQL operation name or a single-letter Debezium operation
// code into an Operation. Snapshot reads are treated as inserts.
func ParseOperation(s string) (Operation, error) {
	switch strings.ToLower(s) {
	case "insert", "c", "r":
		return OperationInsert, nil
	case "update", "u":
		return OperationUpdate, nil
	case "delete", "d":
		return OperationDelete, nil
	default:
		return "", fmt.Errorf("unrecognized operation: %q", s)
	}
}

// RoutingKey returns the lower-case form of the operation that is used in routing keys.
func (o Operation) RoutingKey() string {
	return strings.ToLower(string(o))
}

// Row is a snapshot of a single database row, keyed by column name.
type Row map[string]interface{}

// ChangeEvent represents a single row-level change pushed by the change event source.
type ChangeEvent struct {
	Table     Table
	Operation Operation
	Before    Row
	After     Row

	// Timestamp is the commit time in epoch milliseconds, or an empty string if the source
	// didn't provide one.
	Timestamp string
}

// Registration describes the events that a subscription should receive for a single table.
// An empty list of operations matches all operations.
type Registration struct {
	Table      Table
	Operations []Operation
}

// Matches returns true if the registration covers the given table and operation.
func (r Registration) Matches(table Table, op Operation) bool {
	if r.Table != table {
		return false
	}
	if len(r.Operations) == 0 {
		return true
	}
	for _, candidate := range r.Operations {
		if candidate == op {
			return true
		}
	}
	return false
}

// UnrestrictedRegistrations returns a registration for every known table that matches all
// operations on all rows.
func UnrestrictedRegistrations() []Registration {
	tables := KnownTables()
	result := make([]Registration, len(tables))
	for i, table := range tables {
		result[i] = Registration{Table: table}
	}
	return result
}
