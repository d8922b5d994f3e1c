package calendar

import (
	"net/http"
	"time"

	"github.com/nekogravitycat/resource-booking-backend/internal/pkg/apperror"
)

var (
	ErrNotFound          = apperror.New(http.StatusNotFound, "calendar not found")
	ErrInvalidAttendance = apperror.New(http.StatusBadRequest, "attendance hours must satisfy 0 <= hour_from < hour_to <= 24")
	ErrInvalidWeekday    = apperror.New(http.StatusBadRequest, "invalid day of week")
	ErrInvalidTimezone   = apperror.New(http.StatusBadRequest, "invalid calendar timezone")
	ErrInvalidLeave      = apperror.New(http.StatusBadRequest, "leave date_from must be before date_to")
)

// Attendance is one recurring weekly working span, expressed in fractional
// hours of the calendar's local day (8.5 = 08:30, 24 = next midnight).
type Attendance struct {
	Weekday  time.Weekday
	HourFrom float64
	HourTo   float64
}

// Validate checks the hour bounds and the weekday.
func (a Attendance) Validate() error {
	if a.Weekday < time.Sunday || a.Weekday > time.Saturday {
		return ErrInvalidWeekday
	}
	if a.HourFrom < 0 || a.HourTo > 24 || a.HourFrom >= a.HourTo {
		return ErrInvalidAttendance
	}
	return nil
}

// Leave removes [DateFrom, DateTo) from the calendar. An empty ResourceID
// makes it apply to every resource using the calendar.
type Leave struct {
	ID         string
	CalendarID string
	ResourceID string
	Name       string
	DateFrom   time.Time
	DateTo     time.Time
}

// Global reports whether the leave applies to every resource.
func (l Leave) Global() bool {
	return l.ResourceID == ""
}

// AppliesTo reports whether the leave removes time for resourceID.
func (l Leave) AppliesTo(resourceID string) bool {
	return l.Global() || l.ResourceID == resourceID
}

// Calendar is a weekly working pattern plus its time-off records.
type Calendar struct {
	ID          string
	Name        string
	Timezone    string
	Attendances []Attendance
	Leaves      []Leave
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Location resolves the calendar timezone. An empty timezone means UTC.
func (c *Calendar) Location() (*time.Location, error) {
	if c.Timezone == "" {
		return time.UTC, nil
	}
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return nil, apperror.Wrap(err, ErrInvalidTimezone.Code, ErrInvalidTimezone.Message)
	}
	return loc, nil
}

// ValidateAttendances checks every attendance of a weekly pattern.
func ValidateAttendances(attendances []Attendance) error {
	for _, a := range attendances {
		if err := a.Validate(); err != nil {
			return err
		}
	}
	return nil
}
