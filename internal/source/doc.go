// Package source implements the portal adapters. Each adapter turns a keyword
// into zero or more bid.Records, issuing one query per portal category and
// applying the configured ScanPolicy against the cycle's window.
//
// The portals return their newest announcements first. Under
// EarlyBreakOnTimestamp an adapter stops reading a page at the first record
// older than the window; if a portal ever returns an unsorted page, records
// after that point are dropped even when they are new. FullScan checks every
// record on the page instead.
package source
