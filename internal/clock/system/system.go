// Package system provides the wall clock used to stamp generated pages.
package system

import "time"

// Clock implements servicetags.Clock using time.Now.
type Clock struct{}

// New creates a new Clock.
func New() *Clock {
	return &Clock{}
}

// Now returns the current time in UTC, the zone the landing page reports.
func (Clock) Now() time.Time {
	return time.Now().UTC()
}
