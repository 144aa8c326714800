package repository

import (
	"database/sql"
	"time"

	"github.com/jengzang/daytrail-backend-go/internal/models"
)

// TimeSlotRepository handles database operations for persisted time slots
type TimeSlotRepository = SQLRepository[models.TimeSlot]

var timeSlotMapper = Mapper[models.TimeSlot]{
	Table: "time_slots",
	Columns: []string{
		"id", "start_time", "end_time", "category", "smart_guess_id", "category_was_set_by_user",
		"has_location", "latitude", "longitude", "location_time",
		"speed", "course", "altitude", "vertical_accuracy", "horizontal_accuracy",
	},
	OrderBy: "start_time",
	Scan: func(row scanner) (models.TimeSlot, error) {
		var s models.TimeSlot
		var start int64
		var end, locationTime sql.NullInt64
		var category string
		var smartGuessID sql.NullString
		var hasLocation bool
		var lat, lon, speed, course, altitude, vAcc, hAcc sql.NullFloat64

		err := row.Scan(
			&s.ID, &start, &end, &category, &smartGuessID, &s.CategoryWasSetByUser,
			&hasLocation, &lat, &lon, &locationTime,
			&speed, &course, &altitude, &vAcc, &hAcc,
		)
		if err != nil {
			return s, err
		}

		s.StartTime = fromMillis(start)
		s.EndTime = fromNullMillis(end)
		s.Category = models.Category(category)
		s.SmartGuessID = smartGuessID.String
		if hasLocation {
			s.Location = &models.Location{
				Timestamp:          fromMillis(locationTime.Int64),
				Latitude:           lat.Float64,
				Longitude:          lon.Float64,
				Speed:              speed.Float64,
				Course:             course.Float64,
				Altitude:           altitude.Float64,
				VerticalAccuracy:   vAcc.Float64,
				HorizontalAccuracy: hAcc.Float64,
			}
		}
		return s, nil
	},
	Values: func(s models.TimeSlot) []interface{} {
		smartGuessID := sql.NullString{String: s.SmartGuessID, Valid: s.SmartGuessID != ""}
		values := []interface{}{
			s.ID, toMillis(s.StartTime), toNullMillis(s.EndTime), string(s.Category), smartGuessID, s.CategoryWasSetByUser,
		}
		if s.Location == nil {
			return append(values, false, nil, nil, nil, nil, nil, nil, nil, nil)
		}
		l := s.Location
		return append(values, true, l.Latitude, l.Longitude, toMillis(l.Timestamp),
			l.Speed, l.Course, l.Altitude, l.VerticalAccuracy, l.HorizontalAccuracy)
	},
}

// NewTimeSlotRepository creates a new time slot repository
func NewTimeSlotRepository(db *sql.DB) *TimeSlotRepository {
	return NewSQLRepository(db, timeSlotMapper)
}

// TimeSlotByID matches one slot
func TimeSlotByID(id string) Predicate {
	return Where("id = ?", id)
}

// TimeSlotsStartingBetween matches slots with from <= start_time < to
func TimeSlotsStartingBetween(from, to time.Time) Predicate {
	return Where("start_time >= ?", toMillis(from)).And("start_time < ?", toMillis(to))
}

// TimeSlotsOverlapping matches slots intersecting [from, to), open slots included
func TimeSlotsOverlapping(from, to time.Time) Predicate {
	return Where("start_time < ?", toMillis(to)).And("(end_time IS NULL OR end_time > ?)", toMillis(from))
}

// TimeSlotsBySmartGuess matches slots whose category came from the given guess
func TimeSlotsBySmartGuess(smartGuessID string) Predicate {
	return Where("smart_guess_id = ?", smartGuessID)
}
