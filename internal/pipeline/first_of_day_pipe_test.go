package pipeline

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jengzang/daytrail-backend-go/internal/models"
)

func anchor(t *testing.T, last *models.TimeSlot, timeline ...models.TemporaryTimeSlot) []models.TemporaryTimeSlot {
	t.Helper()
	pipe := NewFirstTimeSlotOfDayPipe(stubLast{slot: last}, &fixedClock{now: nextDayAt(10, 0)})
	out, err := pipe.Process(context.Background(), timeline)
	require.NoError(t, err)
	require.NoError(t, Validate(out))
	return out
}

func TestFirstSlotStartsAtMidnight(t *testing.T) {
	out := anchor(t, nil,
		closed(at(7, 42), at(9, 0), models.CategoryUnknown),
		closed(at(9, 0), at(10, 0), models.CategoryWork),
	)

	require.Len(t, out, 2)
	assertSlot(t, out[0], at(0, 0), ptr(at(9, 0)), models.CategoryUnknown)
	assertSlot(t, out[1], at(9, 0), ptr(at(10, 0)), models.CategoryWork)
}

func TestSlotAtMidnightIsUnchanged(t *testing.T) {
	out := anchor(t, nil, closed(at(0, 0), at(6, 0), models.CategorySleep))
	require.Len(t, out, 1)
	assertSlot(t, out[0], at(0, 0), ptr(at(6, 0)), models.CategorySleep)
}

func TestPersistedSlotContinuesPastMidnight(t *testing.T) {
	last := &models.TimeSlot{ID: "s", StartTime: at(22, 0).AddDate(0, 0, -1), Category: models.CategorySleep}
	out := anchor(t, last, closed(at(7, 42), at(9, 0), models.CategoryUnknown))

	require.Len(t, out, 2)
	assertSlot(t, out[0], at(0, 0), ptr(at(7, 42)), models.CategorySleep)
	assertSlot(t, out[1], at(7, 42), ptr(at(9, 0)), models.CategoryUnknown)
}

func TestPersistedSlotEndingAfterMidnight(t *testing.T) {
	last := &models.TimeSlot{ID: "s", StartTime: at(22, 0).AddDate(0, 0, -1), EndTime: ptr(at(6, 30)), Category: models.CategorySleep}
	out := anchor(t, last, closed(at(7, 42), at(9, 0), models.CategoryUnknown))

	require.Len(t, out, 2)
	assertSlot(t, out[0], at(0, 0), ptr(at(6, 30)), models.CategorySleep)
	assertSlot(t, out[1], at(6, 30), ptr(at(9, 0)), models.CategoryUnknown)
}

func TestPersistedSlotSameDayMovesStartToItsEnd(t *testing.T) {
	last := &models.TimeSlot{ID: "s", StartTime: at(5, 0), EndTime: ptr(at(6, 0)), Category: models.CategoryFitness}
	out := anchor(t, last, closed(at(7, 42), at(9, 0), models.CategoryUnknown))

	require.Len(t, out, 1)
	assertSlot(t, out[0], at(6, 0), ptr(at(9, 0)), models.CategoryUnknown)
}

func TestOpenPersistedSlotSameDayLeavesStart(t *testing.T) {
	last := &models.TimeSlot{ID: "s", StartTime: at(5, 0), Category: models.CategoryFitness}
	out := anchor(t, last, closed(at(7, 42), at(9, 0), models.CategoryUnknown))

	require.Len(t, out, 1)
	assertSlot(t, out[0], at(7, 42), ptr(at(9, 0)), models.CategoryUnknown)
}

func TestLeadingCommuteIsNotStretchedToMidnight(t *testing.T) {
	out := anchor(t, nil,
		closed(at(8, 0), at(8, 40), models.CategoryCommute),
		models.NewTemporaryTimeSlot(at(8, 40)),
	)

	require.Len(t, out, 4)
	assertSlot(t, out[0], at(0, 0), ptr(at(8, 0)), models.CategoryUnknown)
	assertSlot(t, out[1], at(8, 0), ptr(at(8, 40)), models.CategoryCommute)
	assertSlot(t, out[2], at(8, 40), ptr(nextDayAt(0, 0)), models.CategoryUnknown)
	assertSlot(t, out[3], nextDayAt(0, 0), nil, models.CategoryUnknown)
}

func TestLeadingCommuteAfterPersistedSlotSameDay(t *testing.T) {
	last := &models.TimeSlot{ID: "s", StartTime: at(5, 0), EndTime: ptr(at(6, 0)), Category: models.CategoryFitness}
	out := anchor(t, last, closed(at(7, 42), at(8, 0), models.CategoryCommute))

	require.Len(t, out, 2)
	assertSlot(t, out[0], at(6, 0), ptr(at(7, 42)), models.CategoryUnknown)
	assertSlot(t, out[1], at(7, 42), ptr(at(8, 0)), models.CategoryCommute)
}

func TestLaterDayLeadingCommuteKeepsStart(t *testing.T) {
	out := anchor(t, nil,
		closed(at(0, 0), at(20, 0), models.CategoryWork),
		closed(nextDayAt(7, 0), nextDayAt(7, 30), models.CategoryCommute),
	)

	require.Len(t, out, 3)
	assertSlot(t, out[1], nextDayAt(0, 0), ptr(nextDayAt(7, 0)), models.CategoryUnknown)
	assertSlot(t, out[2], nextDayAt(7, 0), ptr(nextDayAt(7, 30)), models.CategoryCommute)
}

func TestSlotsAreSplitAtMidnight(t *testing.T) {
	out := anchor(t, nil,
		closed(at(0, 0), at(22, 0), models.CategoryUnknown),
		closed(at(22, 0), nextDayAt(2, 0), models.CategorySleep),
	)

	require.Len(t, out, 3)
	assertSlot(t, out[1], at(22, 0), ptr(nextDayAt(0, 0)), models.CategorySleep)
	assertSlot(t, out[2], nextDayAt(0, 0), ptr(nextDayAt(2, 0)), models.CategorySleep)
}

func TestOpenSlotIsSplitUpToNow(t *testing.T) {
	out := anchor(t, nil,
		closed(at(0, 0), at(20, 0), models.CategoryWork),
		models.NewTemporaryTimeSlot(at(20, 0)),
	)

	require.Len(t, out, 3)
	assertSlot(t, out[1], at(20, 0), ptr(nextDayAt(0, 0)), models.CategoryUnknown)
	assertSlot(t, out[2], nextDayAt(0, 0), nil, models.CategoryUnknown)
}

func TestLaterDaysStartAtMidnight(t *testing.T) {
	out := anchor(t, nil,
		closed(at(8, 0), at(20, 0), models.CategoryWork),
		closed(nextDayAt(7, 0), nextDayAt(9, 0), models.CategoryFood),
	)

	require.Len(t, out, 2)
	assertSlot(t, out[0], at(0, 0), ptr(at(20, 0)), models.CategoryWork)
	assertSlot(t, out[1], nextDayAt(0, 0), ptr(nextDayAt(9, 0)), models.CategoryFood)
}

func TestFirstOfDayPropagatesLookupError(t *testing.T) {
	boom := errors.New("boom")
	pipe := NewFirstTimeSlotOfDayPipe(stubLast{err: boom}, &fixedClock{now: at(12, 0)})

	_, err := pipe.Process(context.Background(), []models.TemporaryTimeSlot{closed(at(7, 0), at(8, 0), models.CategoryWork)})
	assert.ErrorIs(t, err, boom)
}

func TestFirstOfDayEmpty(t *testing.T) {
	out := anchor(t, nil)
	assert.Empty(t, out)
}
