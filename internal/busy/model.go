package busy

import (
	"errors"
	"time"

	"github.com/nekogravitycat/resource-booking-backend/internal/interval"
)

// ErrInvalidRecurrence is returned for rules that cannot be expanded safely.
var ErrInvalidRecurrence = errors.New("busy: recurrence needs a count or an until bound")

// Commitment is an active scheduled or confirmed booking as seen by the
// tracker. It blocks every resource of its combination and its requester.
type Commitment struct {
	BookingID   string
	RequesterID string
	ResourceIDs []string
	Start       time.Time
	Stop        time.Time
}

// Meeting is a calendar event outside the booking flow.
// Only attendees are busy; an organizer who is not attending stays free.
type Meeting struct {
	ID          string
	Name        string
	Start       time.Time
	Stop        time.Time
	OrganizerID string
	AttendeeIDs []string
	ShowAsFree  bool
	Recurrence  *Recurrence
}

// Attends reports whether userID is among the attendees.
func (m Meeting) Attends(userID string) bool {
	for _, id := range m.AttendeeIDs {
		if id == userID {
			return true
		}
	}
	return false
}

// Recurrence is a weekly rule. Weekdays defaults to the weekday of the first
// occurrence. Interval is the number of weeks between active weeks. Count
// limits the number of occurrences and Until is the last allowed start.
type Recurrence struct {
	Weekdays []time.Weekday
	Interval int
	Count    int
	Until    *time.Time
}

// Occurrences expands the meeting into its concrete spans overlapping rng.
// Non-recurring meetings yield at most one span.
func (m Meeting) Occurrences(rng interval.Interval) ([]interval.Interval, error) {
	first := interval.New(m.Start, m.Stop)
	if !first.Valid() {
		return nil, nil
	}
	if m.Recurrence == nil {
		if first.Overlaps(rng) {
			return []interval.Interval{first}, nil
		}
		return nil, nil
	}
	return m.Recurrence.expand(first, rng)
}

func (r *Recurrence) expand(first, rng interval.Interval) ([]interval.Interval, error) {
	if r.Count <= 0 && r.Until == nil {
		return nil, ErrInvalidRecurrence
	}

	step := r.Interval
	if step < 1 {
		step = 1
	}
	days := make(map[time.Weekday]struct{}, len(r.Weekdays))
	for _, d := range r.Weekdays {
		days[d] = struct{}{}
	}
	if len(days) == 0 {
		days[first.Start.Weekday()] = struct{}{}
	}

	duration := first.Duration()
	y, mo, d := first.Start.Date()
	clock := first.Start.Sub(time.Date(y, mo, d, 0, 0, 0, 0, time.UTC))
	// Weeks are counted from the Monday of the first occurrence.
	weekAnchor := time.Date(y, mo, d-(int(first.Start.Weekday())+6)%7, 0, 0, 0, 0, time.UTC)

	var (
		out   []interval.Interval
		count int
	)
	for day := time.Date(y, mo, d, 0, 0, 0, 0, time.UTC); ; day = day.AddDate(0, 0, 1) {
		start := day.Add(clock)
		if !start.Before(rng.Stop) {
			break
		}
		if r.Until != nil && start.After(*r.Until) {
			break
		}
		if r.Count > 0 && count >= r.Count {
			break
		}
		if _, ok := days[day.Weekday()]; !ok {
			continue
		}
		week := int(day.Sub(weekAnchor).Hours()) / (24 * 7)
		if week%step != 0 {
			continue
		}

		count++
		occ := interval.New(start, start.Add(duration))
		if occ.Overlaps(rng) {
			out = append(out, occ)
		}
	}
	return out, nil
}
