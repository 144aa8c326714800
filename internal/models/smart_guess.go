package models

import (
	"time"

	"github.com/jengzang/daytrail-backend-go/internal/knn"
)

// SmartGuess is a stored (location, category) observation used to classify unlabeled slots
type SmartGuess struct {
	ID         string    `json:"id" db:"id"`
	Category   Category  `json:"category" db:"category"`
	Location   Location  `json:"location"`
	LastUsed   time.Time `json:"lastUsed" db:"last_used"`
	ErrorCount int       `json:"errorCount" db:"error_count"`
}

// MaxSmartGuessErrorCount is the strike count at which a guess is evicted
const MaxSmartGuessErrorCount = 3

// WithLastUsed returns a copy with LastUsed set to t
func (g SmartGuess) WithLastUsed(t time.Time) SmartGuess {
	g.LastUsed = t
	return g
}

// WithErrorCount returns a copy with ErrorCount set to n
func (g SmartGuess) WithErrorCount(n int) SmartGuess {
	g.ErrorCount = n
	return g
}

// Label is the category the guess votes for
func (g SmartGuess) Label() Category { return g.Category }

// Attributes exposes the guess position and the time it was last used to the classifier
func (g SmartGuess) Attributes() knn.Attributes {
	return knn.Attributes{
		Latitude:  g.Location.Latitude,
		Longitude: g.Location.Longitude,
		Timestamp: g.LastUsed,
	}
}
