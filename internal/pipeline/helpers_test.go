package pipeline

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/jengzang/daytrail-backend-go/internal/database"
	"github.com/jengzang/daytrail-backend-go/internal/metrics"
	"github.com/jengzang/daytrail-backend-go/internal/models"
	"github.com/jengzang/daytrail-backend-go/internal/repository"
	"github.com/jengzang/daytrail-backend-go/internal/service"
)

type fixedClock struct {
	now time.Time
}

func (c *fixedClock) Now() time.Time           { return c.now }
func (c *fixedClock) Location() *time.Location { return time.UTC }

// day is the calendar day most tests run on
var day = time.Date(2024, 3, 4, 0, 0, 0, 0, time.UTC)

func at(hour, minute int) time.Time {
	return day.Add(time.Duration(hour)*time.Hour + time.Duration(minute)*time.Minute)
}

func nextDayAt(hour, minute int) time.Time {
	return at(hour, minute).AddDate(0, 0, 1)
}

func fix(lat, lon float64, ts time.Time, accuracy float64) models.Location {
	return models.Location{Timestamp: ts, Latitude: lat, Longitude: lon, HorizontalAccuracy: accuracy}
}

func closed(start, end time.Time, category models.Category) models.TemporaryTimeSlot {
	return models.NewTemporaryTimeSlot(start).WithEnd(end).WithCategory(category)
}

func located(slot models.TemporaryTimeSlot, loc models.Location) models.TemporaryTimeSlot {
	return slot.WithLocation(&loc)
}

func assertSlot(t *testing.T, slot models.TemporaryTimeSlot, start time.Time, end *time.Time, category models.Category) {
	t.Helper()
	assert.True(t, start.Equal(slot.Start), "start: want %s, got %s", start, slot.Start)
	if end == nil {
		assert.Nil(t, slot.End, "want open slot")
	} else if assert.NotNil(t, slot.End, "want closed slot") {
		assert.True(t, end.Equal(*slot.End), "end: want %s, got %s", *end, *slot.End)
	}
	assert.Equal(t, category, slot.Category)
}

func ptr(t time.Time) *time.Time { return &t }

type stubLast struct {
	slot *models.TimeSlot
	err  error
}

func (s stubLast) GetLast(ctx context.Context) (*models.TimeSlot, error) {
	return s.slot, s.err
}

type services struct {
	clock        *fixedClock
	smartGuesses *service.SmartGuessService
	timeSlots    *service.TimeSlotService
	metrics      *metrics.Collector
}

func newServices(t *testing.T) *services {
	t.Helper()
	db, err := database.Open(database.Config{InMemory: true}, zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	clock := &fixedClock{now: at(18, 0)}
	collector := metrics.NewCollector("test")
	smartGuesses := service.NewSmartGuessService(repository.NewSmartGuessRepository(db), clock, service.DefaultSmartGuessConfig(), collector, zap.NewNop())
	timeSlots := service.NewTimeSlotService(repository.NewTimeSlotRepository(db), smartGuesses, clock, zap.NewNop())
	return &services{clock: clock, smartGuesses: smartGuesses, timeSlots: timeSlots, metrics: collector}
}
