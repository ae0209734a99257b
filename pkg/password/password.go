// Package password implements the password-strength rule pipeline. Rules
// run in order and every violation is reported, mirroring how a form
// surfaces all problems with a new password at once.
package password

import (
	"fmt"
	"strings"
	"unicode"
)

// MinLength is the minimum accepted password length.
const MinLength = 8

// Identity carries the user attributes a password may not resemble.
type Identity struct {
	Username  string
	FirstName string
	LastName  string
	Email     string
}

// Rule is a single named password check.
type Rule struct {
	Name  string
	Check func(pw string, id Identity) error
}

// DefaultRules returns the configured rule set in evaluation order.
func DefaultRules() []Rule {
	return []Rule{
		{"min_length", checkMinLength},
		{"numeric", checkNotNumeric},
		{"similarity", checkNotSimilar},
		{"common", checkNotCommon},
		{"uppercase", checkHasUppercase},
		{"lowercase", checkHasLowercase},
		{"digit", checkHasDigit},
	}
}

// Validate runs every rule and returns all violation messages.
func Validate(pw string, id Identity) []string {
	return ValidateWith(DefaultRules(), pw, id)
}

// ValidateWith runs an explicit rule set, for callers that need a
// narrower or extended pipeline.
func ValidateWith(rules []Rule, pw string, id Identity) []string {
	var msgs []string
	for _, r := range rules {
		if err := r.Check(pw, id); err != nil {
			msgs = append(msgs, err.Error())
		}
	}
	return msgs
}

func checkMinLength(pw string, _ Identity) error {
	if len(pw) < MinLength {
		return fmt.Errorf("This password is too short. It must contain at least %d characters.", MinLength)
	}
	return nil
}

func checkNotNumeric(pw string, _ Identity) error {
	if pw == "" {
		return nil
	}
	for _, r := range pw {
		if !unicode.IsDigit(r) {
			return nil
		}
	}
	return fmt.Errorf("This password is entirely numeric.")
}

// checkNotSimilar rejects passwords that contain (or are contained in)
// an identity attribute, compared case-insensitively. Attributes shorter
// than 3 characters are skipped so initials do not block everything.
func checkNotSimilar(pw string, id Identity) error {
	lower := strings.ToLower(pw)
	attrs := []struct{ label, value string }{
		{"username", id.Username},
		{"first name", id.FirstName},
		{"last name", id.LastName},
		{"email address", id.Email},
	}
	for _, a := range attrs {
		v := strings.ToLower(strings.TrimSpace(a.value))
		if len(v) < 3 {
			continue
		}
		if strings.Contains(lower, v) || strings.Contains(v, lower) {
			return fmt.Errorf("The password is too similar to the %s.", a.label)
		}
	}
	return nil
}

func checkNotCommon(pw string, _ Identity) error {
	if _, found := commonPasswords[strings.ToLower(pw)]; found {
		return fmt.Errorf("This password is too common.")
	}
	return nil
}

func checkHasUppercase(pw string, _ Identity) error {
	for _, r := range pw {
		if unicode.IsUpper(r) {
			return nil
		}
	}
	return fmt.Errorf("The password must contain at least one uppercase letter.")
}

func checkHasLowercase(pw string, _ Identity) error {
	for _, r := range pw {
		if unicode.IsLower(r) {
			return nil
		}
	}
	return fmt.Errorf("The password must contain at least one lowercase letter.")
}

func checkHasDigit(pw string, _ Identity) error {
	for _, r := range pw {
		if unicode.IsDigit(r) {
			return nil
		}
	}
	return fmt.Errorf("The password must contain at least one digit.")
}
