// Package timecode converts between the "MM:SS" markers the analysis model
// emits and the "H:MM:SS.cc" form the subtitle renderer expects.
package timecode

import (
	"fmt"
	"strconv"
	"strings"
)

// ToSeconds parses an "MM:SS" marker into total seconds. Components that fail
// to parse default to zero, so a malformed marker yields 0 rather than an error.
func ToSeconds(ts string) int {
	parts := strings.SplitN(ts, ":", 2)
	minutes := atoiOrZero(parts[0])
	seconds := 0
	if len(parts) > 1 {
		seconds = atoiOrZero(parts[1])
	}
	total := minutes*60 + seconds
	if total < 0 {
		total = 0
	}
	return total
}

// ToHMS normalizes an "MM:SS" marker to "HH:MM:SS.00".
func ToHMS(ts string) string {
	total := ToSeconds(ts)
	return fmt.Sprintf("%02d:%02d:%02d.00", total/3600, (total%3600)/60, total%60)
}

// AddSeconds offsets an "MM:SS" marker by the given number of seconds and
// returns the result in "MM:SS" form, clamped at zero.
func AddSeconds(ts string, add int) string {
	total := ToSeconds(ts) + add
	if total < 0 {
		total = 0
	}
	return fmt.Sprintf("%02d:%02d", total/60, total%60)
}

func atoiOrZero(s string) int {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return 0
	}
	return n
}
