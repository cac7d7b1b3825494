// Package filter rejects records whose titles contain an excluded term.
package filter

import (
	"strings"

	"github.com/JakeFAU/bidwatch/internal/bid"
)

// Exclusion is the global set of terms that veto a record.
type Exclusion struct {
	terms []string
}

// NewExclusion builds the set from configured terms. Blank and repeated terms are dropped.
func NewExclusion(terms []string) Exclusion {
	seen := make(map[string]struct{}, len(terms))
	out := make([]string, 0, len(terms))
	for _, term := range terms {
		if term == "" {
			continue
		}
		if _, ok := seen[term]; ok {
			continue
		}
		seen[term] = struct{}{}
		out = append(out, term)
	}
	return Exclusion{terms: out}
}

// Match returns the first excluded term found in title, if any. Matching is
// an exact, case-sensitive substring test.
func (e Exclusion) Match(title string) (string, bool) {
	for _, term := range e.terms {
		if strings.Contains(title, term) {
			return term, true
		}
	}
	return "", false
}

// Accept reports whether r survives the exclusion set.
func (e Exclusion) Accept(r bid.Record) bool {
	_, hit := e.Match(r.Title)
	return !hit
}

// Len returns the number of distinct terms.
func (e Exclusion) Len() int {
	return len(e.terms)
}

// Accept is a convenience wrapper for one-off checks against a raw term list.
func Accept(r bid.Record, exclude []string) bool {
	return NewExclusion(exclude).Accept(r)
}
