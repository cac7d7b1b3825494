package scheduler

import (
	"fmt"
	"strings"
)

// Mode selects when Run returns.
type Mode string

// Supported run modes.
const (
	// ModeOnce runs a single cycle.
	ModeOnce Mode = "once"
	// ModeDuration repeats cycles until the configured duration has elapsed.
	ModeDuration Mode = "duration"
	// ModeForever repeats cycles until the context is canceled.
	ModeForever Mode = "forever"
)

// ParseMode validates a configured mode name.
func ParseMode(raw string) (Mode, error) {
	switch m := Mode(strings.ToLower(strings.TrimSpace(raw))); m {
	case ModeOnce, ModeDuration, ModeForever:
		return m, nil
	case "":
		return ModeDuration, nil
	default:
		return "", fmt.Errorf("unknown run mode %q", raw)
	}
}
