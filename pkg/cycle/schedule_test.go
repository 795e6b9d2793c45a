package cycle

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseSchedule(t *testing.T) {
	start := time.Date(2024, 1, 1, 10, 2, 30, 0, time.UTC)

	tests := []struct {
		spec string
		next time.Time
	}{
		{"300s", start.Add(300 * time.Second)},
		{"1m30s", start.Add(90 * time.Second)},
		{"@every 5m", start.Add(5 * time.Minute)},
		{"*/5 * * * *", time.Date(2024, 1, 1, 10, 5, 0, 0, time.UTC)},
		{"@hourly", time.Date(2024, 1, 1, 11, 0, 0, 0, time.UTC)},
	}
	for _, tt := range tests {
		t.Run(tt.spec, func(t *testing.T) {
			s, err := ParseSchedule(tt.spec)
			require.NoError(t, err)
			assert.Equal(t, tt.next, s.Next(start))
		})
	}
}

func TestParseSchedule_Invalid(t *testing.T) {
	for _, spec := range []string{"", "-5s", "0s", "every five minutes"} {
		_, err := ParseSchedule(spec)
		assert.Error(t, err, spec)
	}
}

func TestDescribe(t *testing.T) {
	s, err := ParseSchedule("60s")
	require.NoError(t, err)
	assert.Equal(t, "1m0s", Describe(s))

	s, err = ParseSchedule("@every 2m")
	require.NoError(t, err)
	assert.Equal(t, "@every 2m0s", Describe(s))
}
