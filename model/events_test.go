package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseOperation(t *testing.T) {
	assert := assert.New(t)

	expected := map[string]Operation{
		"INSERT": OperationInsert,
		"insert": OperationInsert,
		"c":      OperationInsert,
		"r":      OperationInsert,
		"UPDATE": OperationUpdate,
		"u":      OperationUpdate,
		"DELETE": OperationDelete,
		"d":      OperationDelete,
	}
	for input, op := range expected {
		actual, err := ParseOperation(input)
		assert.NoErrorf(err, "unexpected error for %q", input)
		assert.Equalf(op, actual, "incorrect operation for %q", input)
	}

	_, err := ParseOperation("truncate")
	assert.Error(err, "no error returned for an unknown operation")
}

func TestRegistrationMatches(t *testing.T) {
	assert := assert.New(t)

	all := Registration{Table: TableApplications}
	assert.True(all.Matches(TableApplications, OperationInsert))
	assert.True(all.Matches(TableApplications, OperationDelete))
	assert.False(all.Matches(TableEvaluations, OperationInsert))

	inserts := Registration{Table: TableEvaluations, Operations: []Operation{OperationInsert}}
	assert.True(inserts.Matches(TableEvaluations, OperationInsert))
	assert.False(inserts.Matches(TableEvaluations, OperationUpdate))
}

func TestUnrestrictedRegistrations(t *testing.T) {
	assert := assert.New(t)

	regs := UnrestrictedRegistrations()
	if assert.Len(regs, 2) {
		assert.Equal(TableApplications, regs[0].Table)
		assert.Equal(TableEvaluations, regs[1].Table)
		assert.Empty(regs[0].Operations)
		assert.Empty(regs[1].Operations)
	}
}
