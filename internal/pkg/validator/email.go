package validator

import (
	"errors"
	"net/mail"
	"strings"
)

// IsValidEmail checks the address format. It deliberately avoids DNS
// lookups so batch jobs and request handlers never block on a resolver.
func IsValidEmail(email string) error {
	addr, err := mail.ParseAddress(email)
	if err != nil {
		return errors.New("invalid email format")
	}

	// ParseAddress accepts display names ("Jan <jan@x>"); stored
	// contact emails must be the bare address.
	if addr.Address != email {
		return errors.New("email must be a bare address")
	}

	parts := strings.Split(email, "@")
	if len(parts) != 2 || parts[0] == "" || !strings.Contains(parts[1], ".") {
		return errors.New("invalid email format")
	}

	return nil
}
