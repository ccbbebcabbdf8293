package listq

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseDateTime(t *testing.T) {
	utc := func(h, m, s, ns int) time.Time {
		return time.Date(2025, 6, 1, h, m, s, ns, time.UTC)
	}

	tests := []struct {
		in   string
		want time.Time
	}{
		{"2025-06-01T10:20:30.5Z", utc(10, 20, 30, 500000000)},
		{"2025-06-01T10:20:30Z", utc(10, 20, 30, 0)},
		{"2025-06-01T10:20:30+02:00", utc(8, 20, 30, 0)},
		{"2025-06-01T10:20:30", utc(10, 20, 30, 0)},
		{"2025-06-01T10:20", utc(10, 20, 0, 0)},
		{"2025-06-01 10:20:30.25", utc(10, 20, 30, 250000000)},
		{"2025-06-01 10:20:30", utc(10, 20, 30, 0)},
		{"2025-06-01 10:20", utc(10, 20, 0, 0)},
		{"2025-06-01", utc(0, 0, 0, 0)},
		{"2025/06/01", utc(0, 0, 0, 0)},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseDateTime(tt.in)
			require.NoError(t, err)
			assert.True(t, got.Equal(tt.want), "got %v, want %v", got, tt.want)
		})
	}

	t.Run("rejects everything else", func(t *testing.T) {
		for _, in := range []string{"", "junk", "01-06-2025", "2025-13-40", "10:20:30"} {
			_, err := ParseDateTime(in)
			assert.ErrorContains(t, err, "unable to parse date", "input %q", in)
		}
	})
}
