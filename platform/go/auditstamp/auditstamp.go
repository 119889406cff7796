// Package auditstamp renders the audit timestamps stored on every Harmony record.
//
// Stored timestamps are "DD/MM/YYYY HH:MM" strings in the company's business time
// zone (America/Bogota by default); existing data and clients depend on that exact shape.
package auditstamp

import (
	"fmt"
	"time"
)

const (
	// Layout is the persisted createdAt/updatedAt format.
	Layout = "02/01/2006 15:04"
	// DayLayout is the persisted shift day format.
	DayLayout = "2006-01-02"
	// DefaultZone is the business time zone used when none is configured.
	DefaultZone = "America/Bogota"
)

// Clock produces audit stamps in a fixed location.
type Clock struct {
	loc *time.Location
	now func() time.Time
}

// New loads zone and returns a Clock; an empty zone selects DefaultZone.
func New(zone string) (*Clock, error) {
	if zone == "" {
		zone = DefaultZone
	}
	loc, err := time.LoadLocation(zone)
	if err != nil {
		return nil, fmt.Errorf("load time zone %q: %w", zone, err)
	}
	return &Clock{loc: loc, now: time.Now}, nil
}

// Fixed returns a Clock frozen at t, for tests and deterministic tooling.
func Fixed(t time.Time, loc *time.Location) *Clock {
	if loc == nil {
		loc = time.UTC
	}
	return &Clock{loc: loc, now: func() time.Time { return t }}
}

// Location is the business time zone.
func (c *Clock) Location() *time.Location { return c.loc }

// Now is the current instant in the business time zone.
func (c *Clock) Now() time.Time { return c.now().In(c.loc) }

// Stamp renders the current instant in Layout.
func (c *Clock) Stamp() string { return c.Now().Format(Layout) }

// Format renders t in Layout within the business time zone.
func (c *Clock) Format(t time.Time) string { return t.In(c.loc).Format(Layout) }

// Parse reads a stored stamp back into a time in the business time zone.
func (c *Clock) Parse(stamp string) (time.Time, error) {
	return time.ParseInLocation(Layout, stamp, c.loc)
}

// Day renders t's calendar date as DayLayout.
func Day(t time.Time) string { return t.Format(DayLayout) }

// MonthYear returns the zero-padded month ("01".."12") and four digit year of t.
func MonthYear(t time.Time) (string, string) {
	return fmt.Sprintf("%02d", int(t.Month())), fmt.Sprintf("%04d", t.Year())
}

// ParseDay reads a DayLayout date at midnight in loc.
func ParseDay(day string, loc *time.Location) (time.Time, error) {
	if loc == nil {
		loc = time.UTC
	}
	return time.ParseInLocation(DayLayout, day, loc)
}
