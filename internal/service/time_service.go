package service

import "time"

// TimeService is the injected clock. Nothing in the pipeline reads the system clock directly.
type TimeService interface {
	Now() time.Time
	// Location is the time zone calendar days are computed in
	Location() *time.Location
}

// SystemTimeService reads the wall clock
type SystemTimeService struct {
	loc *time.Location
}

// NewSystemTimeService creates a clock for the given zone; nil means time.Local
func NewSystemTimeService(loc *time.Location) *SystemTimeService {
	if loc == nil {
		loc = time.Local
	}
	return &SystemTimeService{loc: loc}
}

// Now returns the current time in the service zone
func (s *SystemTimeService) Now() time.Time { return time.Now().In(s.loc) }

// Location returns the service zone
func (s *SystemTimeService) Location() *time.Location { return s.loc }

// StartOfDay returns local midnight of the day containing t
func StartOfDay(t time.Time, loc *time.Location) time.Time {
	t = t.In(loc)
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, loc)
}

// NextDay returns local midnight of the day after the one starting at dayStart
func NextDay(dayStart time.Time) time.Time {
	return dayStart.AddDate(0, 0, 1)
}

// SameDay reports whether a and b fall on the same calendar day in loc
func SameDay(a, b time.Time, loc *time.Location) bool {
	return StartOfDay(a, loc).Equal(StartOfDay(b, loc))
}
