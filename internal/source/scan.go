package source

import (
	"fmt"
	"strings"
	"time"

	"github.com/JakeFAU/bidwatch/internal/bid"
)

// ScanPolicy selects how a result page is checked against the window.
type ScanPolicy string

// Supported scan policies.
const (
	EarlyBreakOnTimestamp ScanPolicy = "early_break"
	FullScan              ScanPolicy = "full_scan"
)

// ParseScanPolicy validates a configured policy name. Empty means early break.
func ParseScanPolicy(raw string) (ScanPolicy, error) {
	switch ScanPolicy(strings.ToLower(strings.TrimSpace(raw))) {
	case "", EarlyBreakOnTimestamp:
		return EarlyBreakOnTimestamp, nil
	case FullScan:
		return FullScan, nil
	default:
		return "", fmt.Errorf("unknown scan policy %q", raw)
	}
}

// admitFunc decides whether a record created at t belongs to the window.
type admitFunc func(t time.Time) bool

// sinceStart admits records created at or after the window start.
func sinceStart(w bid.Window) admitFunc {
	return w.Admits
}

// onStartDay admits records stamped with the window start's calendar date.
// Used by portals that only report a date.
func onStartDay(w bid.Window) admitFunc {
	day := w.StartDay()
	return func(t time.Time) bool {
		y1, m1, d1 := t.Date()
		y2, m2, d2 := day.Date()
		return y1 == y2 && m1 == m2 && d1 == d2
	}
}

// pageEntry is one item of a result page. Its timestamp stays raw until the
// scan reaches it, so items past an early break are never parsed.
type pageEntry struct {
	record bid.Record
	stamp  string
	// ref is the portal identifier the link is built from.
	ref string
}

func (e pageEntry) complete() bool {
	return e.record.Title != "" && strings.TrimSpace(e.ref) != ""
}

// stampParser turns a raw portal timestamp into a time.
type stampParser func(raw string) (time.Time, error)

// scanResult is what a scan kept from one page.
type scanResult struct {
	kept       []bid.Record
	incomplete []pageEntry
	broke      bool
}

// scan applies policy to entries in response order. A timestamp that cannot
// be parsed fails the page, but only when the scan reaches that entry.
// Entries without a title or identifier are set aside instead of kept.
func scan(policy ScanPolicy, entries []pageEntry, parse stampParser, admit admitFunc) (scanResult, error) {
	res := scanResult{kept: make([]bid.Record, 0, len(entries))}
	for _, e := range entries {
		created, err := parse(e.stamp)
		if err != nil {
			return scanResult{}, err
		}
		if !admit(created) {
			if policy != FullScan {
				res.broke = true
				return res, nil
			}
			continue
		}
		if !e.complete() {
			res.incomplete = append(res.incomplete, e)
			continue
		}
		e.record.CreatedAt = created
		res.kept = append(res.kept, e.record)
	}
	return res, nil
}
