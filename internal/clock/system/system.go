// Package system provides the wall clock in the portals' time zone.
package system

import (
	"fmt"
	"time"
	// Embedded zone database so Asia/Shanghai resolves on minimal images.
	_ "time/tzdata"
)

// DefaultLocation is the zone the procurement portals publish naive timestamps in.
const DefaultLocation = "Asia/Shanghai"

// Clock implements bid.Clock, reporting wall time in a fixed location.
type Clock struct {
	loc *time.Location
}

// New returns a Clock for the named IANA zone; empty means DefaultLocation.
func New(name string) (*Clock, error) {
	if name == "" {
		name = DefaultLocation
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return nil, fmt.Errorf("load location %q: %w", name, err)
	}
	return &Clock{loc: loc}, nil
}

// Now returns the current time in the clock's location.
func (c *Clock) Now() time.Time {
	return time.Now().In(c.loc)
}

// Location returns the clock's zone, used to interpret portal timestamps.
func (c *Clock) Location() *time.Location {
	return c.loc
}
