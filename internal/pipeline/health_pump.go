package pipeline

import (
	"context"
	"sort"

	"go.uber.org/zap"

	"github.com/jengzang/daytrail-backend-go/internal/models"
)

// DefaultCommuteSpeedThreshold is the distance sample speed in m/s above which a sample counts as commute
const DefaultCommuteSpeedThreshold = 1.0

// HealthSampleSource hands out buffered health samples together with a commit mark
type HealthSampleSource interface {
	HealthSamples() ([]models.HealthSample, uint64)
	CommitHealthSamples(mark uint64)
}

// HealthPump maps health samples to sleep, fitness and commute slots
type HealthPump struct {
	source       HealthSampleSource
	commuteSpeed float64
	logger       *zap.Logger
	mark         uint64
}

// NewHealthPump creates a pump reading from source. A non-positive
// commuteSpeed selects DefaultCommuteSpeedThreshold.
func NewHealthPump(source HealthSampleSource, commuteSpeed float64, logger *zap.Logger) *HealthPump {
	if commuteSpeed <= 0 {
		commuteSpeed = DefaultCommuteSpeedThreshold
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &HealthPump{source: source, commuteSpeed: commuteSpeed, logger: logger.Named("health_pump")}
}

// Start snapshots the buffered samples and derives the timeline
func (p *HealthPump) Start(ctx context.Context) ([]models.TemporaryTimeSlot, error) {
	samples, mark := p.source.HealthSamples()
	p.mark = mark

	slots := make([]models.TemporaryTimeSlot, 0, len(samples))
	for _, s := range samples {
		if !s.EndTime.After(s.StartTime) {
			continue
		}
		category, ok := p.categorize(s)
		if !ok {
			continue
		}
		slots = append(slots, models.NewTemporaryTimeSlot(s.StartTime).WithEnd(s.EndTime).WithCategory(category))
	}

	sort.SliceStable(slots, func(i, j int) bool {
		return slots[i].Start.Before(slots[j].Start)
	})

	out := make([]models.TemporaryTimeSlot, 0, len(slots))
	for _, slot := range slots {
		if n := len(out); n > 0 {
			prev := out[n-1]
			if prev.Category == slot.Category && !slot.Start.After(*prev.End) {
				if slot.End.After(*prev.End) {
					out[n-1] = prev.WithEnd(*slot.End)
				}
				continue
			}
		}
		out = append(out, slot)
	}

	p.logger.Debug("derived health timeline", zap.Int("samples", len(samples)), zap.Int("slots", len(out)))
	return out, nil
}

func (p *HealthPump) categorize(s models.HealthSample) (models.Category, bool) {
	switch s.Identifier {
	case models.HealthSleepAnalysis:
		return models.CategorySleep, true
	case models.HealthWorkout:
		return models.CategoryFitness, true
	case models.HealthDistanceWalkingRunning, models.HealthDistanceCycling:
		if s.Speed() > p.commuteSpeed {
			return models.CategoryCommute, true
		}
	}
	return "", false
}

// Commit removes the samples consumed by the last Start from the buffer
func (p *HealthPump) Commit() {
	p.source.CommitHealthSamples(p.mark)
}
