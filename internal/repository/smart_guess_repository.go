package repository

import (
	"database/sql"
	"time"

	"github.com/jengzang/daytrail-backend-go/internal/models"
	"github.com/jengzang/daytrail-backend-go/internal/spatial"
)

// SmartGuessRepository handles database operations for smart guesses
type SmartGuessRepository = SQLRepository[models.SmartGuess]

var smartGuessMapper = Mapper[models.SmartGuess]{
	Table: "smart_guesses",
	Columns: []string{
		"id", "category", "latitude", "longitude", "location_time",
		"speed", "course", "altitude", "vertical_accuracy", "horizontal_accuracy",
		"last_used", "error_count",
	},
	OrderBy: "last_used",
	Scan: func(row scanner) (models.SmartGuess, error) {
		var g models.SmartGuess
		var category string
		var locationTime, lastUsed int64
		err := row.Scan(
			&g.ID, &category, &g.Location.Latitude, &g.Location.Longitude, &locationTime,
			&g.Location.Speed, &g.Location.Course, &g.Location.Altitude,
			&g.Location.VerticalAccuracy, &g.Location.HorizontalAccuracy,
			&lastUsed, &g.ErrorCount,
		)
		if err != nil {
			return g, err
		}
		g.Category = models.Category(category)
		g.Location.Timestamp = fromMillis(locationTime)
		g.LastUsed = fromMillis(lastUsed)
		return g, nil
	},
	Values: func(g models.SmartGuess) []interface{} {
		return []interface{}{
			g.ID, string(g.Category), g.Location.Latitude, g.Location.Longitude, toMillis(g.Location.Timestamp),
			g.Location.Speed, g.Location.Course, g.Location.Altitude,
			g.Location.VerticalAccuracy, g.Location.HorizontalAccuracy,
			toMillis(g.LastUsed), g.ErrorCount,
		}
	},
}

// NewSmartGuessRepository creates a new smart guess repository
func NewSmartGuessRepository(db *sql.DB) *SmartGuessRepository {
	return NewSQLRepository(db, smartGuessMapper)
}

// SmartGuessByID matches one guess
func SmartGuessByID(id string) Predicate {
	return Where("id = ?", id)
}

// SmartGuessesWithin matches guesses inside box
func SmartGuessesWithin(box spatial.Box) Predicate {
	return Where("latitude BETWEEN ? AND ?", box.MinLat, box.MaxLat).
		And("longitude BETWEEN ? AND ?", box.MinLon, box.MaxLon)
}

// SmartGuessesUsedBefore matches guesses whose last use is strictly before t
func SmartGuessesUsedBefore(t time.Time) Predicate {
	return Where("last_used < ?", toMillis(t))
}
