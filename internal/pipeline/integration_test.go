package pipeline

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/jengzang/daytrail-backend-go/internal/models"
)

func TestPipelineFromBufferToStore(t *testing.T) {
	ctx := context.Background()
	s := newServices(t)

	office, err := s.smartGuesses.Add(ctx, models.CategoryWork, fix(officeLat, lon, at(0, 0), 10))
	require.NoError(t, err)

	buffer := bufferWith(
		fix(homeLat, lon, at(7, 42), 10),
		fix(homeLat, lon, at(8, 0), 10),
		fix(officeLat, lon, at(8, 15), 10),
		fix(officeLat, lon, at(12, 0), 10),
		models.HealthSample{Identifier: models.HealthWorkout, StartTime: at(12, 30), EndTime: at(13, 30)},
	)

	p := With(NewLocationPump(buffer, nil, 0, zap.NewNop()), NewHealthPump(buffer, 0, zap.NewNop())).
		CrossPipe(NewMergePipe()).
		Pipe(NewMergeMiniCommuteTimeSlotsPipe()).
		Pipe(NewFirstTimeSlotOfDayPipe(s.timeSlots, s.clock)).
		Metrics(s.metrics).
		Sink(newSink(s))
	require.NoError(t, p.Run(ctx))

	slots, err := s.timeSlots.GetTimeSlots(ctx, at(0, 0))
	require.NoError(t, err)
	require.Len(t, slots, 4)

	assert.True(t, slots[0].StartTime.Equal(at(0, 0)))
	assert.Equal(t, models.CategoryUnknown, slots[0].Category)

	assert.True(t, slots[1].StartTime.Equal(at(8, 15)))
	assert.Equal(t, models.CategoryWork, slots[1].Category)
	assert.Equal(t, office.ID, slots[1].SmartGuessID)

	assert.True(t, slots[2].StartTime.Equal(at(12, 30)))
	assert.Equal(t, models.CategoryFitness, slots[2].Category)

	assert.True(t, slots[3].StartTime.Equal(at(13, 30)))
	assert.Equal(t, models.CategoryWork, slots[3].Category)
	assert.Nil(t, slots[3].EndTime)

	assert.Zero(t, buffer.Len(), "consumed events are committed")
}

func TestPipelineIncrementalRunsKeepCommutes(t *testing.T) {
	ctx := context.Background()
	s := newServices(t)
	buffer := bufferWith()

	p := With(NewLocationPump(buffer, s.clock, 0, zap.NewNop())).
		CrossPipe(NewMergePipe()).
		Pipe(NewMergeMiniCommuteTimeSlotsPipe()).
		Pipe(NewFirstTimeSlotOfDayPipe(s.timeSlots, s.clock)).
		Metrics(s.metrics).
		Sink(newSink(s))

	fixes := []models.Location{
		fix(homeLat, lon, at(8, 0), 10),
		fix(52.5230, lon, at(8, 10), 10),
		fix(52.5260, lon, at(8, 20), 10),
		fix(officeLat, lon, at(8, 40), 10),
		fix(officeLat, lon, at(8, 50), 10),
		fix(officeLat, lon, at(9, 55), 10),
		fix(parkLat, lon, at(10, 30), 10),
	}
	for _, f := range fixes {
		buffer.Add(f)
		s.clock.now = f.Timestamp.Add(time.Minute)
		require.NoError(t, p.Run(ctx))
		assert.Zero(t, buffer.Len())
	}

	slots, err := s.timeSlots.GetTimeSlots(ctx, at(0, 0))
	require.NoError(t, err)
	require.Len(t, slots, 4)

	assert.True(t, slots[0].StartTime.Equal(at(0, 0)))
	require.NotNil(t, slots[0].EndTime)
	assert.True(t, slots[0].EndTime.Equal(at(8, 0)))
	assert.Equal(t, models.CategoryUnknown, slots[0].Category)

	assert.True(t, slots[1].StartTime.Equal(at(8, 0)))
	require.NotNil(t, slots[1].EndTime)
	assert.True(t, slots[1].EndTime.Equal(at(8, 40)))
	assert.Equal(t, models.CategoryCommute, slots[1].Category)

	assert.True(t, slots[2].StartTime.Equal(at(8, 40)))
	require.NotNil(t, slots[2].EndTime)
	assert.True(t, slots[2].EndTime.Equal(at(10, 30)))
	require.NotNil(t, slots[2].Location)
	assert.Equal(t, officeLat, slots[2].Location.Latitude)

	assert.True(t, slots[3].StartTime.Equal(at(10, 30)))
	assert.Nil(t, slots[3].EndTime)
	require.NotNil(t, slots[3].Location)
	assert.Equal(t, parkLat, slots[3].Location.Latitude)
}
