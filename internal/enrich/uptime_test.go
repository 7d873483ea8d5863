package enrich

import (
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFormatElapsed(t *testing.T) {
	now := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	clock := clockwork.NewFakeClockAt(now)

	tests := []struct {
		name      string
		startedAt string
		want      string
	}{
		{
			name:      "more than a day",
			startedAt: "2024-01-01T01:00:00Z",
			want:      "1d2h4m",
		},
		{
			name:      "under a day",
			startedAt: "2024-01-02T01:30:00Z",
			want:      "1h34m",
		},
		{
			name:      "start equals now",
			startedAt: "2024-01-02T03:04:05Z",
			want:      "0h0m",
		},
		{
			name:      "future start clamps to zero",
			startedAt: "2024-01-03T00:00:00Z",
			want:      "0h0m",
		},
		{
			name:      "seconds truncate",
			startedAt: "2024-01-02T03:03:06Z",
			want:      "0h0m",
		},
		{
			name:      "exactly one day",
			startedAt: "2024-01-01T03:04:05Z",
			want:      "1d0h0m",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := FormatElapsed(clock, tt.startedAt)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestFormatElapsedInvalidTimestamp(t *testing.T) {
	clock := clockwork.NewFakeClockAt(time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC))

	_, err := FormatElapsed(clock, "not-a-timestamp")
	assert.Error(t, err)

	_, err = FormatElapsed(clock, "")
	assert.Error(t, err)
}
