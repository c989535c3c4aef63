package engine

import (
	"time"

	"github.com/resolvd/resolvd/pkg/domain"
)

// Promise types for the shipping-delay calendar.
const (
	PromiseFriday        = "FRIDAY"
	PromiseEarlyNextWeek = "EARLY_NEXT_WEEK"
)

// ContactDay returns the weekday abbreviation (Mon..Sun) of the customer's
// first contact. It prefers the value stored in the case context, then the
// first customer message timestamp, then session creation, then now.
func ContactDay(session *domain.Session, now time.Time) string {
	if session.CaseContext.ContactDay != "" {
		return session.CaseContext.ContactDay
	}
	if msg, ok := session.FirstCustomerMessage(); ok {
		return Weekday(msg.Timestamp)
	}
	if !session.CreatedAt.IsZero() {
		return Weekday(session.CreatedAt)
	}
	return Weekday(now)
}

// Weekday formats a time as the three-letter day abbreviation.
func Weekday(t time.Time) string {
	return t.UTC().Weekday().String()[:3]
}

// ComputePromiseDeadline derives the delivery promise from the contact day:
// contact Mon-Wed promises delivery by Friday, Thu-Sun by early next week.
// Returns the promise type and the deadline date (YYYY-MM-DD) computed from
// the reference time.
func ComputePromiseDeadline(contactDay string, ref time.Time) (string, string) {
	ref = ref.UTC()
	contact, ok := parseDay(contactDay)
	if !ok {
		// Unknown day: take the conservative promise.
		contact = time.Friday
	}

	current := ref.Weekday()

	// Monday..Wednesday: promise Friday of the current week.
	if contact >= time.Monday && contact <= time.Wednesday {
		days := (int(time.Friday) - int(current) + 7) % 7
		deadline := ref.AddDate(0, 0, days)
		return PromiseFriday, deadline.Format("2006-01-02")
	}

	// Thursday..Sunday: promise next Monday.
	days := (int(time.Monday) - int(current) + 7) % 7
	if days == 0 {
		days = 7
	}
	deadline := ref.AddDate(0, 0, days)
	return PromiseEarlyNextWeek, deadline.Format("2006-01-02")
}

// PromiseDeadlinePassed reports whether the stored deadline date lies before
// the given time's date. The deadline holds through the end of its day; an
// empty or malformed deadline never counts as passed.
func PromiseDeadlinePassed(deadline string, now time.Time) bool {
	if deadline == "" {
		return false
	}
	d, err := time.Parse("2006-01-02", deadline)
	if err != nil {
		return false
	}
	y1, m1, d1 := now.UTC().Date()
	y2, m2, d2 := d.Date()
	if y1 != y2 {
		return y1 > y2
	}
	if m1 != m2 {
		return m1 > m2
	}
	return d1 > d2
}

func parseDay(day string) (time.Weekday, bool) {
	for wd := time.Sunday; wd <= time.Saturday; wd++ {
		if wd.String()[:3] == day {
			return wd, true
		}
	}
	return 0, false
}
