package service

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/jengzang/daytrail-backend-go/internal/models"
	"github.com/jengzang/daytrail-backend-go/internal/repository"
)

// TimeSlotService handles business logic for persisted time slots
type TimeSlotService struct {
	repo         repository.Persistency[models.TimeSlot]
	smartGuesses *SmartGuessService
	timeService  TimeService
	logger       *zap.Logger
}

// NewTimeSlotService creates a new time slot service
func NewTimeSlotService(
	repo repository.Persistency[models.TimeSlot],
	smartGuesses *SmartGuessService,
	timeService TimeService,
	logger *zap.Logger,
) *TimeSlotService {
	return &TimeSlotService{
		repo:         repo,
		smartGuesses: smartGuesses,
		timeService:  timeService,
		logger:       logger.Named("time_slot"),
	}
}

// AddTimeSlot persists slot after the current last slot. The previous slot is
// closed at slot.Start; when it has the same category on the same day, reaches
// slot.Start and is not significantly away from slot, it is extended instead
// of creating a new row.
func (s *TimeSlotService) AddTimeSlot(ctx context.Context, slot models.TemporaryTimeSlot, setByUser bool) (*models.TimeSlot, error) {
	category := slot.Category
	if category == "" {
		category = models.CategoryUnknown
	}

	last, err := s.repo.GetLast(ctx)
	if err != nil {
		s.logger.Error("failed to load last time slot", zap.Error(err))
		return nil, fmt.Errorf("failed to load last time slot: %w", err)
	}

	if last != nil && s.reaches(*last, slot.Start) {
		if last.Category == category && SameDay(last.StartTime, slot.Start, s.timeService.Location()) && !movedAway(*last, slot) {
			return s.extend(ctx, *last, slot.End)
		}
		if _, err := s.close(ctx, *last, slot.Start); err != nil {
			return nil, err
		}
	}

	timeSlot := models.TimeSlot{
		ID:                   uuid.NewString(),
		StartTime:            slot.Start,
		EndTime:              slot.End,
		Category:             category,
		Location:             slot.Location,
		CategoryWasSetByUser: setByUser,
	}
	if slot.SmartGuess != nil {
		timeSlot.SmartGuessID = slot.SmartGuess.ID
	}

	if err := s.repo.Create(ctx, timeSlot); err != nil {
		s.logger.Error("failed to create time slot", zap.Time("start", slot.Start), zap.Error(err))
		return nil, fmt.Errorf("failed to create time slot: %w", err)
	}
	return &timeSlot, nil
}

// movedAway reports whether both slots are located and significantly apart
func movedAway(last models.TimeSlot, slot models.TemporaryTimeSlot) bool {
	return last.Location != nil && slot.Location != nil && slot.Location.IsSignificantlyDifferent(*last.Location)
}

// reaches reports whether last is still open or ends at or after t
func (s *TimeSlotService) reaches(last models.TimeSlot, t time.Time) bool {
	return last.EndTime == nil || !last.EndTime.Before(t)
}

func (s *TimeSlotService) extend(ctx context.Context, last models.TimeSlot, end *time.Time) (*models.TimeSlot, error) {
	updated, err := s.repo.Update(ctx, repository.TimeSlotByID(last.ID), func(t models.TimeSlot) models.TimeSlot {
		if end == nil {
			t.EndTime = nil
			return t
		}
		if t.EndTime == nil || t.EndTime.Before(*end) {
			return t.WithEnd(*end)
		}
		return t
	})
	if err != nil {
		s.logger.Error("failed to extend time slot", zap.String("id", last.ID), zap.Error(err))
		return nil, fmt.Errorf("failed to extend time slot: %w", err)
	}
	return updated, nil
}

func (s *TimeSlotService) close(ctx context.Context, last models.TimeSlot, at time.Time) (*models.TimeSlot, error) {
	updated, err := s.repo.Update(ctx, repository.TimeSlotByID(last.ID), func(t models.TimeSlot) models.TimeSlot {
		return t.WithEnd(at)
	})
	if err != nil {
		s.logger.Error("failed to close time slot", zap.String("id", last.ID), zap.Error(err))
		return nil, fmt.Errorf("failed to close time slot: %w", err)
	}
	return updated, nil
}

// GetLast returns the latest slot, or nil when none exist
func (s *TimeSlotService) GetLast(ctx context.Context) (*models.TimeSlot, error) {
	return s.repo.GetLast(ctx)
}

// GetTimeSlot returns one slot or ErrNotFound
func (s *TimeSlotService) GetTimeSlot(ctx context.Context, id string) (*models.TimeSlot, error) {
	slots, err := s.repo.Get(ctx, repository.TimeSlotByID(id))
	if err != nil {
		return nil, fmt.Errorf("failed to load time slot: %w", err)
	}
	if len(slots) == 0 {
		return nil, ErrNotFound
	}
	return &slots[0], nil
}

// GetTimeSlots returns the slots starting on the calendar day containing day
func (s *TimeSlotService) GetTimeSlots(ctx context.Context, day time.Time) ([]models.TimeSlot, error) {
	start := StartOfDay(day, s.timeService.Location())
	slots, err := s.repo.Get(ctx, repository.TimeSlotsStartingBetween(start, NextDay(start)))
	if err != nil {
		return nil, fmt.Errorf("failed to get time slots: %w", err)
	}
	return slots, nil
}

// GetActivities sums the time spent per category on the day containing date.
// Slots are clipped to the day; open slots count up to now.
func (s *TimeSlotService) GetActivities(ctx context.Context, date time.Time) ([]models.Activity, error) {
	dayStart := StartOfDay(date, s.timeService.Location())
	dayEnd := NextDay(dayStart)

	slots, err := s.repo.Get(ctx, repository.TimeSlotsOverlapping(dayStart, dayEnd))
	if err != nil {
		return nil, fmt.Errorf("failed to get activities: %w", err)
	}

	now := s.timeService.Now()
	totals := make(map[models.Category]time.Duration)
	for _, slot := range slots {
		start := slot.StartTime
		if start.Before(dayStart) {
			start = dayStart
		}
		end := now
		if slot.EndTime != nil {
			end = *slot.EndTime
		}
		if end.After(dayEnd) {
			end = dayEnd
		}
		if end.After(start) {
			totals[slot.Category] += end.Sub(start)
		}
	}

	activities := make([]models.Activity, 0, len(totals))
	for category, duration := range totals {
		activities = append(activities, models.Activity{Category: category, Duration: duration})
	}
	sort.Slice(activities, func(i, j int) bool {
		if activities[i].Duration != activities[j].Duration {
			return activities[i].Duration > activities[j].Duration
		}
		return activities[i].Category < activities[j].Category
	})
	return activities, nil
}

// UpdateCategory applies a user correction. The smart guess that produced the
// old category is struck, and the new choice is remembered for the slot's location.
func (s *TimeSlotService) UpdateCategory(ctx context.Context, id string, category models.Category) (*models.TimeSlot, error) {
	slot, err := s.GetTimeSlot(ctx, id)
	if err != nil {
		return nil, err
	}

	if s.smartGuesses != nil {
		if slot.SmartGuessID != "" && slot.Category != category {
			if err := s.smartGuesses.Strike(ctx, slot.SmartGuessID); err != nil {
				s.logger.Warn("failed to strike smart guess", zap.String("smart_guess_id", slot.SmartGuessID), zap.Error(err))
			}
		}
		if slot.Location != nil && category != models.CategoryUnknown {
			if _, err := s.smartGuesses.Add(ctx, category, *slot.Location); err != nil {
				s.logger.Warn("failed to record smart guess", zap.String("time_slot_id", id), zap.Error(err))
			}
		}
	}

	updated, err := s.repo.Update(ctx, repository.TimeSlotByID(id), func(t models.TimeSlot) models.TimeSlot {
		t = t.WithCategory(category, true)
		t.SmartGuessID = ""
		return t
	})
	if err != nil {
		s.logger.Error("failed to update time slot category", zap.String("id", id), zap.Error(err))
		return nil, fmt.Errorf("failed to update time slot category: %w", err)
	}
	if updated == nil {
		return nil, ErrNotFound
	}
	return updated, nil
}
