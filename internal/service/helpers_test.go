package service

import (
	"database/sql"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/jengzang/daytrail-backend-go/internal/database"
	"github.com/jengzang/daytrail-backend-go/internal/metrics"
	"github.com/jengzang/daytrail-backend-go/internal/models"
	"github.com/jengzang/daytrail-backend-go/internal/repository"
)

type fixedClock struct {
	now time.Time
}

func (c *fixedClock) Now() time.Time           { return c.now }
func (c *fixedClock) Location() *time.Location { return time.UTC }

func newTestDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := database.Open(database.Config{InMemory: true}, zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

type fixture struct {
	clock        *fixedClock
	smartGuesses *SmartGuessService
	timeSlots    *TimeSlotService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db := newTestDB(t)
	clock := &fixedClock{now: time.Date(2024, 3, 4, 18, 0, 0, 0, time.UTC)}
	collector := metrics.NewCollector("test")

	smartGuesses := NewSmartGuessService(repository.NewSmartGuessRepository(db), clock, DefaultSmartGuessConfig(), collector, zap.NewNop())
	timeSlots := NewTimeSlotService(repository.NewTimeSlotRepository(db), smartGuesses, clock, zap.NewNop())
	return &fixture{clock: clock, smartGuesses: smartGuesses, timeSlots: timeSlots}
}

func at(hour, minute int) time.Time {
	return time.Date(2024, 3, 4, hour, minute, 0, 0, time.UTC)
}

func location(lat, lon float64, ts time.Time) models.Location {
	return models.Location{Timestamp: ts, Latitude: lat, Longitude: lon, HorizontalAccuracy: 10}
}
