package enrich

import (
	"fmt"
	"time"

	"github.com/jonboulle/clockwork"
)

// FormatElapsed renders the time since an RFC 3339 UTC timestamp as a
// compact duration: "{D}d{H}h{M}m" when at least one full day has passed,
// "{H}h{M}m" otherwise. Seconds are truncated, never shown. The current
// wall time comes from clock, so the output for a fixed start drifts as
// real time passes.
func FormatElapsed(clock clockwork.Clock, startedAt string) (string, error) {
	start, err := time.Parse(time.RFC3339, startedAt)
	if err != nil {
		return "", fmt.Errorf("parse start time: %w", err)
	}

	elapsed := clock.Now().UTC().Sub(start)
	if elapsed < 0 {
		elapsed = 0
	}

	days := int(elapsed.Hours()) / 24
	hours := int(elapsed.Hours()) % 24
	minutes := int(elapsed.Minutes()) % 60

	if days > 0 {
		return fmt.Sprintf("%dd%dh%dm", days, hours, minutes), nil
	}
	return fmt.Sprintf("%dh%dm", hours, minutes), nil
}
