package pipeline

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/jengzang/daytrail-backend-go/internal/metrics"
	"github.com/jengzang/daytrail-backend-go/internal/models"
)

// TimeSlotStore is the part of the time slot service the sink writes through
type TimeSlotStore interface {
	LastTimeSlotGetter
	AddTimeSlot(ctx context.Context, slot models.TemporaryTimeSlot, setByUser bool) (*models.TimeSlot, error)
}

// SmartGuesser classifies locations from stored smart guesses
type SmartGuesser interface {
	Get(ctx context.Context, location models.Location) (*models.SmartGuess, error)
	MarkAsUsed(ctx context.Context, guess models.SmartGuess, at time.Time) (*models.SmartGuess, error)
}

// PersistencySink resolves categories for unknown slots and persists the timeline
type PersistencySink struct {
	timeSlots    TimeSlotStore
	smartGuesses SmartGuesser
	metrics      *metrics.Collector
	logger       *zap.Logger
}

// NewPersistencySink creates the sink
func NewPersistencySink(timeSlots TimeSlotStore, smartGuesses SmartGuesser, collector *metrics.Collector, logger *zap.Logger) *PersistencySink {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PersistencySink{
		timeSlots:    timeSlots,
		smartGuesses: smartGuesses,
		metrics:      collector,
		logger:       logger.Named("persistency_sink"),
	}
}

// Execute persists every slot that starts after the last persisted one.
// A slot that fails to persist is logged and skipped.
func (s *PersistencySink) Execute(ctx context.Context, timeline []models.TemporaryTimeSlot) error {
	last, err := s.timeSlots.GetLast(ctx)
	if err != nil {
		return fmt.Errorf("get last time slot: %w", err)
	}

	persisted := 0
	for _, slot := range timeline {
		if last != nil && !slot.Start.After(last.StartTime) {
			s.logger.Debug("skipping already persisted slot", zap.Time("start", slot.Start))
			continue
		}

		slot = s.resolve(ctx, slot)
		if _, err := s.timeSlots.AddTimeSlot(ctx, slot, false); err != nil {
			s.logger.Warn("failed to persist time slot",
				zap.Time("start", slot.Start),
				zap.String("category", string(slot.Category)),
				zap.Error(err))
			continue
		}
		s.metrics.RecordTimeSlotPersisted()
		persisted++
	}

	s.logger.Info("timeline persisted", zap.Int("slots", persisted), zap.Int("received", len(timeline)))
	return nil
}

// resolve attaches a smart guess to unknown slots with a location and marks
// the guess carried by the slot as used at the slot start
func (s *PersistencySink) resolve(ctx context.Context, slot models.TemporaryTimeSlot) models.TemporaryTimeSlot {
	if slot.SmartGuess == nil && slot.Category == models.CategoryUnknown && slot.Location != nil {
		guess, err := s.smartGuesses.Get(ctx, *slot.Location)
		if err != nil {
			s.logger.Warn("smart guess lookup failed", zap.Time("start", slot.Start), zap.Error(err))
			return slot
		}
		if guess == nil {
			return slot
		}
		slot = slot.WithSmartGuess(guess)
	}
	if slot.SmartGuess == nil {
		return slot
	}

	used, err := s.smartGuesses.MarkAsUsed(ctx, *slot.SmartGuess, slot.Start)
	if err != nil {
		s.logger.Warn("failed to mark smart guess as used", zap.String("id", slot.SmartGuess.ID), zap.Error(err))
		return slot
	}
	if used != nil {
		slot.SmartGuess = used
	}
	return slot
}
