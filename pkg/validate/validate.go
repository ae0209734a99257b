// Package validate holds the field-level validators for profile input.
package validate

import (
	"errors"
	"strings"
	"time"
)

// BioMinLength is the minimum trimmed bio length. "Hello World!" (12)
// passes, "About me." (9) does not.
const BioMinLength = 12

const dateLayout = "2006-01-02"

// ErrBioTooShort is returned by Bio for bios below the minimum length.
var ErrBioTooShort = errors.New("Add more detail to your bio.")

// Bio rejects bios whose trimmed length is below BioMinLength.
func Bio(s string) error {
	if len(strings.TrimSpace(s)) < BioMinLength {
		return ErrBioTooShort
	}
	return nil
}

// Date parses a birth date. Only ISO YYYY-MM-DD is accepted; ambiguous
// locale forms like 1/1/39 are rejected.
func Date(s string) (time.Time, error) {
	t, err := time.Parse(dateLayout, strings.TrimSpace(s))
	if err != nil {
		return time.Time{}, errors.New("Invalid date format. Use YYYY-MM-DD.")
	}
	return t, nil
}
