package common

import (
	"testing"

	"github.com/cyverse-de/placement-notifier/model"
	"github.com/stretchr/testify/assert"
)

func TestValidateEmailAddress(t *testing.T) {
	assert := assert.New(t)

	assert.NoError(ValidateEmailAddress("student@example.edu"))
	assert.Error(ValidateEmailAddress("not an email address"))
}

func TestValidateIdentity(t *testing.T) {
	assert := assert.New(t)

	valid := &model.Identity{User: "student@example.edu", Token: "abc123"}
	assert.NoError(ValidateIdentity(valid))

	missingToken := &model.Identity{User: "student@example.edu"}
	assert.Error(ValidateIdentity(missingToken), "an identity without a token was accepted")

	badUser := &model.Identity{User: "student", Token: "abc123"}
	assert.Error(ValidateIdentity(badUser), "an identity with an invalid user was accepted")
}
