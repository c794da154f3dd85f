// Package duration formats durations for human readers, extending the
// standard units with days and weeks and omitting zero components:
// 1h0m0s renders as "1h", 1h0m10s as "1h10s".
package duration

import (
	"fmt"
	"strings"
	"time"
)

// Calendar-ish units used for formatting.
const (
	Day  = 24 * time.Hour
	Week = 7 * Day
)

// Format converts a duration to a compact human-readable string.
func Format(d time.Duration) string {
	if d == 0 {
		return "0s"
	}

	var b strings.Builder
	if d < 0 {
		b.WriteByte('-')
		d = -d
	}

	for _, unit := range []struct {
		size  time.Duration
		label string
	}{
		{Week, "w"},
		{Day, "d"},
		{time.Hour, "h"},
		{time.Minute, "m"},
		{time.Second, "s"},
	} {
		if n := d / unit.size; n > 0 {
			fmt.Fprintf(&b, "%d%s", n, unit.label)
			d -= n * unit.size
		}
	}

	// Sub-second remainders fall back to the standard rendering.
	if d > 0 {
		b.WriteString(d.String())
	}
	return b.String()
}
