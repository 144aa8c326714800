package models

import "time"

// TemporaryTimeSlot is a candidate activity interval flowing through the pipeline
type TemporaryTimeSlot struct {
	Start      time.Time
	End        *time.Time // nil while the slot is current
	SmartGuess *SmartGuess
	Category   Category
	Location   *Location
}

// NewTemporaryTimeSlot creates an open-ended slot with unknown category
func NewTemporaryTimeSlot(start time.Time) TemporaryTimeSlot {
	return TemporaryTimeSlot{Start: start, Category: CategoryUnknown}
}

// IsOpen reports whether the slot has no end yet
func (t TemporaryTimeSlot) IsOpen() bool { return t.End == nil }

// WithStart returns a copy starting at start
func (t TemporaryTimeSlot) WithStart(start time.Time) TemporaryTimeSlot {
	t.Start = start
	return t
}

// WithEnd returns a copy ending at end
func (t TemporaryTimeSlot) WithEnd(end time.Time) TemporaryTimeSlot {
	t.End = &end
	return t
}

// WithoutEnd returns an open-ended copy
func (t TemporaryTimeSlot) WithoutEnd() TemporaryTimeSlot {
	t.End = nil
	return t
}

// WithCategory returns a copy with category c
func (t TemporaryTimeSlot) WithCategory(c Category) TemporaryTimeSlot {
	t.Category = c
	return t
}

// WithSmartGuess returns a copy carrying guess and its category
func (t TemporaryTimeSlot) WithSmartGuess(guess *SmartGuess) TemporaryTimeSlot {
	t.SmartGuess = guess
	if guess != nil {
		t.Category = guess.Category
	}
	return t
}

// WithLocation returns a copy located at loc
func (t TemporaryTimeSlot) WithLocation(loc *Location) TemporaryTimeSlot {
	t.Location = loc
	return t
}

// Duration returns End-Start, or 0 for open slots
func (t TemporaryTimeSlot) Duration() time.Duration {
	if t.End == nil {
		return 0
	}
	return t.End.Sub(t.Start)
}

// TimeSlot is a persisted activity interval
type TimeSlot struct {
	ID                   string     `json:"id" db:"id"`
	StartTime            time.Time  `json:"startTime" db:"start_time"`
	EndTime              *time.Time `json:"endTime,omitempty" db:"end_time"`
	Category             Category   `json:"category" db:"category"`
	SmartGuessID         string     `json:"smartGuessId,omitempty" db:"smart_guess_id"`
	Location             *Location  `json:"location,omitempty"`
	CategoryWasSetByUser bool       `json:"categoryWasSetByUser" db:"category_was_set_by_user"`
}

// WithEnd returns a copy ending at end
func (t TimeSlot) WithEnd(end time.Time) TimeSlot {
	t.EndTime = &end
	return t
}

// WithCategory returns a copy with category c set by the user or the pipeline
func (t TimeSlot) WithCategory(c Category, setByUser bool) TimeSlot {
	t.Category = c
	t.CategoryWasSetByUser = setByUser
	return t
}

// Duration returns the slot length, measured up to now for open slots
func (t TimeSlot) Duration(now time.Time) time.Duration {
	end := now
	if t.EndTime != nil {
		end = *t.EndTime
	}
	if end.Before(t.StartTime) {
		return 0
	}
	return end.Sub(t.StartTime)
}

// Activity is the total time spent in one category
type Activity struct {
	Category Category      `json:"category"`
	Duration time.Duration `json:"duration"`
}
