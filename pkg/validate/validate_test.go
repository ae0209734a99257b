package validate

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBio(t *testing.T) {
	tests := []struct {
		name string
		bio  string
		ok   bool
	}{
		{"too short", "About me.", false},
		{"boundary pass", "Hello World!", true},
		{"empty", "", false},
		{"whitespace padding ignored", "   About me.   ", false},
		{"long enough", "A little info about me...", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Bio(tt.bio)
			if tt.ok {
				assert.NoError(t, err)
			} else {
				assert.EqualError(t, err, "Add more detail to your bio.")
			}
		})
	}
}

func TestDate(t *testing.T) {
	got, err := Date("2019-01-01")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2019, 1, 1, 0, 0, 0, 0, time.UTC), got)

	_, err = Date("1/1/39")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Invalid date format")

	_, err = Date("2019-13-40")
	assert.Error(t, err)

	_, err = Date("")
	assert.Error(t, err)
}
