// Package engine expands a rotation sequence across a calendar range.
//
// A sequence is cyclic: day i of the range (0-based from rangeStart) receives
// steps[(startIndex + jump + i) mod len(steps)]. Expansion is pure; calling it
// twice with the same inputs yields the same assignments.
package engine

import (
	"fmt"
	"time"

	"github.com/harmony-hq/harmony/platform/go/apperr"
)

// Shift types derived from a step.
const (
	TypeShift = "shift"
	TypeRest  = "rest"
	TypeEvent = "event"
)

// Step is one day of a rotation. Times are "HH:MM"; both empty marks a rest day.
type Step struct {
	StartTime    string `json:"startTime"`
	EndTime      string `json:"endTime"`
	Color        string `json:"color"`
	Abbreviation string `json:"abbreviation,omitempty"`
	Description  string `json:"description,omitempty"`
}

// Type reports whether the step materializes a work shift or a rest day.
func (s Step) Type() string {
	if s.StartTime == "" && s.EndTime == "" {
		return TypeRest
	}
	return TypeShift
}

// Assignment pairs a calendar day with the step that applies to it.
type Assignment struct {
	Day   time.Time
	Index int
	Step  Step
}

// Expand maps the rotation onto every day in [rangeStart, rangeEnd].
// Both bounds are truncated to midnight in rangeStart's location.
func Expand(steps []Step, startIndex, jump int, rangeStart, rangeEnd time.Time) ([]Assignment, error) {
	if err := validate(len(steps), startIndex, jump); err != nil {
		return nil, err
	}

	loc := rangeStart.Location()
	first := midnight(rangeStart, loc)
	last := midnight(rangeEnd, loc)
	if last.Before(first) {
		return nil, fmt.Errorf("%w: range end %s precedes range start %s",
			apperr.ErrInvalidSequence, last.Format(time.DateOnly), first.Format(time.DateOnly))
	}

	days := DaysBetween(first, last) + 1
	out := make([]Assignment, 0, days)
	for i := 0; i < days; i++ {
		idx := position(len(steps), startIndex, jump, i)
		out = append(out, Assignment{
			// AddDate keeps wall-clock midnight across DST transitions.
			Day:   first.AddDate(0, 0, i),
			Index: idx,
			Step:  steps[idx],
		})
	}
	return out, nil
}

// NextIndex returns the pointer that follows an expansion of days days.
// Persisting it with jump 0 resumes the rotation without repeating a step.
func NextIndex(length, startIndex, jump, days int) (int, error) {
	if err := validate(length, startIndex, jump); err != nil {
		return 0, err
	}
	if days < 0 {
		return 0, fmt.Errorf("%w: negative day count %d", apperr.ErrInvalidSequence, days)
	}
	return position(length, startIndex, jump, days), nil
}

// DaysBetween counts calendar days from a to b, ignoring clock time.
func DaysBetween(a, b time.Time) int {
	ua := time.Date(a.Year(), a.Month(), a.Day(), 0, 0, 0, 0, time.UTC)
	ub := time.Date(b.Year(), b.Month(), b.Day(), 0, 0, 0, 0, time.UTC)
	return int(ub.Sub(ua).Hours() / 24)
}

func validate(length, startIndex, jump int) error {
	switch {
	case length == 0:
		return fmt.Errorf("%w: sequence has no steps", apperr.ErrInvalidSequence)
	case startIndex < 0 || startIndex >= length:
		return fmt.Errorf("%w: index %d out of range [0,%d)", apperr.ErrInvalidSequence, startIndex, length)
	case jump < 0:
		return fmt.Errorf("%w: negative jump %d", apperr.ErrInvalidSequence, jump)
	}
	return nil
}

func position(length, startIndex, jump, offset int) int {
	return (startIndex + jump%length + offset%length) % length
}

func midnight(t time.Time, loc *time.Location) time.Time {
	t = t.In(loc)
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, loc)
}
