package testutil

import (
	"math/rand/v2"
	"time"

	"go.uber.org/zap"

	"github.com/nekogravitycat/resource-booking-backend/internal/availability"
	"github.com/nekogravitycat/resource-booking-backend/internal/booking"
	"github.com/nekogravitycat/resource-booking-backend/internal/bookingtype"
	"github.com/nekogravitycat/resource-booking-backend/internal/busy"
	"github.com/nekogravitycat/resource-booking-backend/internal/calendar"
	"github.com/nekogravitycat/resource-booking-backend/internal/combination"
	"github.com/nekogravitycat/resource-booking-backend/internal/resource"
	"github.com/nekogravitycat/resource-booking-backend/internal/scheduling"
)

// Now is the frozen clock of the fixture: Friday 2021-02-26 09:00 UTC.
var Now = time.Date(2021, 2, 26, 9, 0, 0, 0, time.UTC)

// UTC builds a 2021 timestamp.
func UTC(month time.Month, day, hour, minute int) time.Time {
	return time.Date(2021, month, day, hour, minute, 0, 0, time.UTC)
}

// Weekly returns one attendance per weekday with the same hours.
func Weekly(from, to float64, days ...time.Weekday) []calendar.Attendance {
	out := make([]calendar.Attendance, len(days))
	for i, d := range days {
		out[i] = calendar.Attendance{Weekday: d, HourFrom: from, HourTo: to}
	}
	return out
}

// Fixture is a small office: four calendars, a material and a person on
// each, four combinations pairing them, and a booking type offering all
// four combinations within the Monday-Tuesday calendar.
type Fixture struct {
	Store *Store
	Log   *zap.Logger

	CalMon, CalTue, CalMonTue, CalFriSun string

	MaterialMon, MaterialTue, MaterialMonTue, MaterialFriSun string
	PersonMon, PersonTue, PersonMonTue, PersonFriSun         string

	// Users linked to the persons, in the same order.
	UserMon, UserTue, UserMonTue, UserFriSun string

	// C0..C3 pair the person and the material of Mon, Tue, MonTue and FriSun.
	C0, C1, C2, C3 string
	Type           string

	Engine     *availability.Engine
	Selector   *scheduling.Selector
	Validator  *scheduling.Validator
	Types      bookingtype.Service
	Bookings   booking.Service
	Calendars  calendar.Service
	Resources  resource.Service
	SlotWindow time.Duration
}

// NewFixture seeds the store and wires every service on top of it with the
// clock frozen at Now and a seeded random source.
func NewFixture() *Fixture {
	f := &Fixture{Store: NewStore(), Log: zap.NewNop()}
	s := f.Store

	f.CalMon = s.PutCalendar(calendar.Calendar{Name: "Mon", Attendances: Weekly(8, 17, time.Monday)})
	f.CalTue = s.PutCalendar(calendar.Calendar{Name: "Tue", Attendances: Weekly(8, 17, time.Tuesday)})
	f.CalMonTue = s.PutCalendar(calendar.Calendar{Name: "MonTue", Attendances: Weekly(8, 17, time.Monday, time.Tuesday)})
	f.CalFriSun = s.PutCalendar(calendar.Calendar{Name: "FriSun", Attendances: Weekly(0, 24, time.Friday, time.Saturday, time.Sunday)})

	f.UserMon, f.UserTue, f.UserMonTue, f.UserFriSun = "user-mon", "user-tue", "user-montue", "user-frisun"

	material := func(name, cal string) string {
		return s.PutResource(resource.Resource{Name: name, Type: resource.TypeMaterial, CalendarID: cal})
	}
	person := func(name, cal, user string) string {
		return s.PutResource(resource.Resource{Name: name, Type: resource.TypePerson, CalendarID: cal, UserID: user})
	}
	f.MaterialMon = material("Material Mon", f.CalMon)
	f.MaterialTue = material("Material Tue", f.CalTue)
	f.MaterialMonTue = material("Material MonTue", f.CalMonTue)
	f.MaterialFriSun = material("Material FriSun", f.CalFriSun)
	f.PersonMon = person("Person Mon", f.CalMon, f.UserMon)
	f.PersonTue = person("Person Tue", f.CalTue, f.UserTue)
	f.PersonMonTue = person("Person MonTue", f.CalMonTue, f.UserMonTue)
	f.PersonFriSun = person("Person FriSun", f.CalFriSun, f.UserFriSun)

	combo := func(name string, ids ...string) string {
		return s.PutCombination(combination.Combination{Name: name, ResourceIDs: ids})
	}
	f.C0 = combo("c0", f.PersonMon, f.MaterialMon)
	f.C1 = combo("c1", f.PersonTue, f.MaterialTue)
	f.C2 = combo("c2", f.PersonMonTue, f.MaterialMonTue)
	f.C3 = combo("c3", f.PersonFriSun, f.MaterialFriSun)

	f.Type = s.PutBookingType(bookingtype.BookingType{
		Name:       "Meeting room",
		CalendarID: f.CalMonTue,
		Assignment: scheduling.PolicySorted,
		Combinations: []bookingtype.CombinationRel{
			{CombinationID: f.C0, Sequence: 0},
			{CombinationID: f.C1, Sequence: 1},
			{CombinationID: f.C2, Sequence: 2},
			{CombinationID: f.C3, Sequence: 3},
		},
		SlotDuration:      30 * time.Minute,
		Duration:          time.Hour,
		Location:          "Main office",
		VideocallLocation: "Videocall Main office",
	})

	f.SlotWindow = 30 * 24 * time.Hour
	f.wire()
	return f
}

func (f *Fixture) wire() {
	s := f.Store
	now := func() time.Time { return Now }

	tracker := busy.NewTracker(s.BusySource(), f.Log)
	f.Engine = availability.NewEngine(s.Calendars(), tracker, availability.WithClock(now))
	f.Selector = scheduling.NewSelector(f.Engine)
	f.Validator = scheduling.NewValidator(f.Engine)
	f.Types = bookingtype.NewService(s.BookingTypes(), s.Combinations(), s.Resources(), f.Engine, f.SlotWindow)
	f.Resources = resource.NewService(s.Resources())
	f.Bookings = booking.NewService(s.Bookings(), f.Types, f.Selector, f.Validator, s, f.Log,
		booking.WithClock(now),
		booking.WithRand(func() *rand.Rand { return rand.New(rand.NewPCG(1, 2)) }),
	)
	f.Calendars = calendar.NewService(s.Calendars(), s, f.Bookings, f.Log)
}

// Staff acts with every permission.
var Staff = booking.Actor{UserID: "staff", Staff: true}

// Customer is a requester that is not linked to any resource.
func Customer(id string) booking.Actor {
	return booking.Actor{UserID: id}
}
