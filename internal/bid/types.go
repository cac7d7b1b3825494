// Package bid defines the core types shared by the sources, filters, dedup
// store, notifier and scheduler.
package bid

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// ErrEmptyKeyword is returned when a source is asked to search for a blank keyword.
var ErrEmptyKeyword = errors.New("keyword must not be empty")

// Record is one matched procurement announcement.
type Record struct {
	Title   string `json:"title"`
	DocType string `json:"doc_type,omitempty"`
	Link    string `json:"link"`
	// CreatedAt is the portal's naive creation time interpreted in the clock's location.
	CreatedAt time.Time `json:"created_at"`
	// Source names the portal that produced the record. It is not part of the identity.
	Source string `json:"source,omitempty"`
}

// Identity is the comparable tuple that decides whether two records are the same announcement.
type Identity struct {
	Title   string
	DocType string
	Link    string
}

// Identity returns the dedup identity of r. Records without a doc type
// compare on title and link only, since the empty doc types match.
func (r Record) Identity() Identity {
	return Identity{Title: r.Title, DocType: r.DocType, Link: r.Link}
}

// Same reports whether r and other describe the same announcement.
func (r Record) Same(other Record) bool {
	return r.Identity() == other.Identity()
}

// KeywordSet is the immutable keyword configuration loaded at startup.
type KeywordSet struct {
	Main    []string
	Others  []string
	Exclude []string
}

// Queries returns the effective query order: Main followed by Others.
func (k KeywordSet) Queries() []string {
	out := make([]string, 0, len(k.Main)+len(k.Others))
	out = append(out, k.Main...)
	out = append(out, k.Others...)
	return out
}

// Window is the half-open [Start, End) lookback interval for one cycle.
type Window struct {
	Start time.Time
	End   time.Time
}

// NewWindow builds the window ending at now and reaching lookback into the past.
func NewWindow(now time.Time, lookback time.Duration) Window {
	return Window{Start: now.Add(-lookback), End: now}
}

// Admits reports whether a record created at t is new enough. End is not
// enforced: portals occasionally stamp records slightly ahead of the local clock.
func (w Window) Admits(t time.Time) bool {
	return !t.Before(w.Start)
}

// StartDay truncates Start to midnight in its own location.
func (w Window) StartDay() time.Time {
	y, m, d := w.Start.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, w.Start.Location())
}

// SourceError signals that a source could not complete a query, as opposed
// to completing it and finding nothing.
type SourceError struct {
	Source  string
	Keyword string
	Err     error
}

func (e *SourceError) Error() string {
	return fmt.Sprintf("source %s keyword %q: %v", e.Source, e.Keyword, e.Err)
}

func (e *SourceError) Unwrap() error {
	return e.Err
}

// Delivery is the outcome of a single webhook send.
type Delivery struct {
	OK      bool   `json:"ok"`
	ErrCode int    `json:"errcode"`
	ErrMsg  string `json:"errmsg"`
}

// Failed builds an unsuccessful Delivery.
func Failed(code int, msg string) Delivery {
	return Delivery{OK: false, ErrCode: code, ErrMsg: strings.TrimSpace(msg)}
}
