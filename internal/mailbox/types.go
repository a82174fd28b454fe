package mailbox

import (
	"errors"
	"fmt"
	"time"
)

// MessageRef is an opaque handle to one message inside a SearchResult. It is
// only valid for the lifetime of the result that produced it; after a session
// reset all outstanding refs are stale.
type MessageRef uint32

// Range bounds a sent-date search. After is the inclusive lower bound, Before
// the upper bound. Callers normalize Before to the end of its calendar day so
// "before June 3" covers all of June 3.
type Range struct {
	After  time.Time
	Before time.Time
}

// Validate reports whether the range is usable: both bounds set, After
// strictly before Before, and Before strictly in the past.
func (r Range) Validate(now time.Time) error {
	switch {
	case r.Before.IsZero():
		return errors.New("before date is required")
	case r.After.IsZero():
		return errors.New("after date is required")
	case !r.After.Before(r.Before):
		return fmt.Errorf("after date %s must precede before date %s",
			r.After.Format(DateFormat), r.Before.Format(DateFormat))
	case !r.Before.Before(now):
		return fmt.Errorf("before date %s must be in the past", r.Before.Format(DateFormat))
	}
	return nil
}

// DateFormat is the wire format for dates on the command line.
const DateFormat = "2006-01-02"

// EndOfDay returns the last representable second of t's calendar day in t's
// location.
func EndOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 23, 59, 59, 0, t.Location())
}

// SearchResult is one page of a sent-date search. Total is the full server
// match count for the range; Messages holds at most the requested page size,
// in server order. A result is consumed by exactly one loop pass and replaced
// wholesale on any session reset.
type SearchResult struct {
	Total    int
	Messages []MessageRef
}

// Summary carries the header fields reported in audit lines.
type Summary struct {
	From    string
	Subject string
	Date    time.Time
}
