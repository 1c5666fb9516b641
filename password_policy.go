package auth

import (
	"regexp"

	validation "github.com/go-ozzo/ozzo-validation"
)

// MinPasswordLength applies to registration and authenticated password
// changes. bcrypt truncates past 72 bytes, hence the upper bound.
const MinPasswordLength = 6

// MinResetPasswordLength applies to passwords set through the recovery flow,
// which carries the stricter composed policy.
const MinResetPasswordLength = 8

var (
	hasLowercase = validation.Match(regexp.MustCompile(`[a-z]`)).
			Error("must contain a lowercase letter")
	hasUppercase = validation.Match(regexp.MustCompile(`[A-Z]`)).
			Error("must contain an uppercase letter")
	hasDigit = validation.Match(regexp.MustCompile(`[0-9]`)).
			Error("must contain a digit")
	hasSymbol = validation.Match(regexp.MustCompile(`[^a-zA-Z0-9]`)).
			Error("must contain a symbol")
)

// ValidatePassword enforces the minimum length policy.
func ValidatePassword(password string) error {
	return validation.Validate(password,
		validation.Required,
		validation.Length(MinPasswordLength, 72),
	)
}

// ValidateResetPassword enforces the composed recovery policy: minimum
// length plus mixed case, digit, and symbol.
func ValidateResetPassword(password string) error {
	return validation.Validate(password,
		validation.Required,
		validation.Length(MinResetPasswordLength, 72),
		hasLowercase,
		hasUppercase,
		hasDigit,
		hasSymbol,
	)
}
