package jobs

import (
	"strconv"
	"strings"
	"time"
)

// DefaultOffset applies when no valid reminder offsets are configured.
const DefaultOffset = 24 * time.Hour

// ParseOffsets reads a comma-separated list of minutes-before-appointment
// values ("1440,60"). Invalid or non-positive entries are dropped; an empty
// result falls back to DefaultOffset.
func ParseOffsets(raw string) []time.Duration {
	var offsets []time.Duration
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		mins, err := strconv.Atoi(part)
		if err != nil || mins <= 0 {
			continue
		}
		offsets = append(offsets, time.Duration(mins)*time.Minute)
	}
	if len(offsets) == 0 {
		offsets = []time.Duration{DefaultOffset}
	}
	return offsets
}
