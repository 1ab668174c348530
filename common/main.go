package common

import (
	"github.com/cyverse-de/placement-notifier/model"
	"github.com/mcnijman/go-emailaddress"
	"github.com/pkg/errors"
)

// AMQPSettings represents the settings that we require in order to connect to the AMQP exchange.
type AMQPSettings struct {
	URI          string
	ExchangeName string
	ExchangeType string
}

// NATSSettings represents the settings that we require in order to subscribe to change events
// published to NATS.
type NATSSettings struct {
	URL           string
	SubjectPrefix string
}

// ValidateEmailAddress returns an error if the format of an email address is invalid.
func ValidateEmailAddress(emailAddress string) error {
	_, err := emailaddress.Parse(emailAddress)
	return err
}

// ValidateIdentity returns an error if the identity can't be used to establish a subscription.
func ValidateIdentity(identity *model.Identity) error {
	if identity.Token == "" {
		return errors.New("the session token is required")
	}
	if err := ValidateEmailAddress(identity.User); err != nil {
		return errors.Wrapf(err, "invalid user `%s`", identity.User)
	}
	return nil
}
