// Package validate checks the format of credential fields.
package validate

import (
	"regexp"
	"strings"

	"github.com/inkpost/apiserver/internal/apperr"
)

const passwordSymbols = "!@#$%^&*"

const (
	minPasswordLength = 8
	// bcrypt rejects longer input.
	maxPasswordLength = 72
)

var (
	emailPattern    = regexp.MustCompile(`^\w+([.-]?\w+)*@\w+([.-]?\w+)*(\.\w{2,})+$`)
	passwordCharset = regexp.MustCompile(`^[\w!@#$%^&*]+$`)
)

// Email accepts local-part@domain.tld addresses.
func Email(value string) error {
	if value == "" {
		return apperr.Validation("Email not specified.")
	}
	if !emailPattern.MatchString(value) {
		return apperr.Validation("Email is incorrect.")
	}
	return nil
}

// Password requires 8 to 72 bytes drawn from word characters and !@#$%^&*,
// including a digit, an upper and lower case letter and a symbol.
func Password(value string) error {
	if value == "" {
		return apperr.Validation("Password not specified.")
	}
	if !strongPassword(value) {
		return apperr.Validation("Password too weak.")
	}
	return nil
}

func strongPassword(value string) bool {
	if len(value) < minPasswordLength || len(value) > maxPasswordLength {
		return false
	}
	if !passwordCharset.MatchString(value) {
		return false
	}

	var digit, upper, lower, symbol bool
	for _, r := range value {
		switch {
		case r >= '0' && r <= '9':
			digit = true
		case r >= 'A' && r <= 'Z':
			upper = true
		case r >= 'a' && r <= 'z':
			lower = true
		case strings.ContainsRune(passwordSymbols, r):
			symbol = true
		}
	}
	return digit && upper && lower && symbol
}
