package device

import (
	"fmt"
	"strings"
)

// Validation constants.
const (
	maxIdentityPartLength = 128
	maxDisplayNameLength  = 100

	// Size limits for the free-form maps, matching what fits comfortably in
	// the persisted devices document.
	maxParameterKeys  = 50
	maxIdentifierKeys = 20
	maxStringValueLen = 1024
)

// topicReserved are characters that cannot appear in an identity part because
// identities are embedded in MQTT topics.
const topicReserved = "/+#"

// Validate checks that both parts of the identity are present and topic-safe.
func (i Identity) Validate() error {
	if err := validateIdentityPart("id", i.ID); err != nil {
		return err
	}
	return validateIdentityPart("type", i.Type)
}

func validateIdentityPart(name, value string) error {
	if strings.TrimSpace(value) == "" {
		return fmt.Errorf("%w: %s cannot be empty", ErrInvalidIdentity, name)
	}
	if len(value) > maxIdentityPartLength {
		return fmt.Errorf("%w: %s exceeds %d characters", ErrInvalidIdentity, name, maxIdentityPartLength)
	}
	if strings.ContainsAny(value, topicReserved) {
		return fmt.Errorf("%w: %s contains one of %q", ErrInvalidIdentity, name, topicReserved)
	}
	return nil
}

// ValidateDevice checks a device description before it is registered or loaded.
func ValidateDevice(d Device) error {
	if err := d.Identity.Validate(); err != nil {
		return err
	}
	if len(d.DisplayName) > maxDisplayNameLength {
		return fmt.Errorf("%w: display name exceeds %d characters", ErrInvalidDevice, maxDisplayNameLength)
	}
	if err := validateStringMap(d.Parameters, "parameters", maxParameterKeys); err != nil {
		return err
	}
	return validateStringMap(d.CustomIdentifiers, "customIdentifiers", maxIdentifierKeys)
}

func validateStringMap(m map[string]string, fieldName string, maxKeys int) error {
	if len(m) > maxKeys {
		return fmt.Errorf("%w: %s exceeds max keys (%d)", ErrInvalidDevice, fieldName, maxKeys)
	}
	for k, v := range m {
		if k == "" {
			return fmt.Errorf("%w: %s has an empty key", ErrInvalidDevice, fieldName)
		}
		if len(k) > maxStringValueLen || len(v) > maxStringValueLen {
			return fmt.Errorf("%w: %s entry %q too long", ErrInvalidDevice, fieldName, k)
		}
	}
	return nil
}
