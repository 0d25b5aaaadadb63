package config

import (
	"errors"
	"fmt"
)

func nonEmpty(value, envName string) error {
	if value == "" {
		return fmt.Errorf("missing required env %s", envName)
	}
	return nil
}

func nonEmptyBytes(value []byte, envName string) error {
	if len(value) == 0 {
		return fmt.Errorf("missing required env %s", envName)
	}
	return nil
}

// Validate checks the settings the storefront server cannot start without.
// Twilio and the delivery product ids stay optional: the server degrades by
// skipping the SMS or rejecting the matching delivery method.
func (c *Config) Validate() error {
	return errors.Join(
		nonEmpty(c.AdminPassword, "ADMIN_PASSWORD"),
		nonEmptyBytes(c.AdminSessionSecret, "ADMIN_SESSION_SECRET"),
		nonEmpty(c.StripeSecretKey, "STRIPE_SECRET_KEY"),
		nonEmpty(c.StripeWebhookSecret, "STRIPE_WEBHOOK_SECRET"),
	)
}

func (c *Config) SMSEnabled() bool {
	return c.TwilioAccountSID != "" && c.TwilioAuthToken != "" && c.TwilioFromNumber != ""
}
