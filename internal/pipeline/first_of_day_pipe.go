package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/jengzang/daytrail-backend-go/internal/models"
	"github.com/jengzang/daytrail-backend-go/internal/service"
)

// LastTimeSlotGetter returns the most recently started persisted slot, or nil
type LastTimeSlotGetter interface {
	GetLast(ctx context.Context) (*models.TimeSlot, error)
}

// FirstTimeSlotOfDayPipe makes every calendar day of the timeline begin at a
// day boundary. Slots crossing midnight are split per day, open slots up to now.
type FirstTimeSlotOfDayPipe struct {
	timeSlots   LastTimeSlotGetter
	timeService service.TimeService
}

// NewFirstTimeSlotOfDayPipe creates the pipe
func NewFirstTimeSlotOfDayPipe(timeSlots LastTimeSlotGetter, timeService service.TimeService) *FirstTimeSlotOfDayPipe {
	return &FirstTimeSlotOfDayPipe{timeSlots: timeSlots, timeService: timeService}
}

// Process anchors the first slot of each day.
//
// For the first day of the timeline the persisted history decides the anchor:
// a persisted slot still running at midnight is continued from midnight with
// its category, a persisted slot that started later that day leaves the
// timeline start alone or moves it back to where that slot ended, and with
// no persisted slot that day the first slot starts at midnight. Every later
// day starts at midnight. A commute is never stretched back; an unknown slot
// covers the time before it.
func (p *FirstTimeSlotOfDayPipe) Process(ctx context.Context, timeline []models.TemporaryTimeSlot) ([]models.TemporaryTimeSlot, error) {
	if len(timeline) == 0 {
		return []models.TemporaryTimeSlot{}, nil
	}
	loc := p.timeService.Location()

	last, err := p.timeSlots.GetLast(ctx)
	if err != nil {
		return nil, fmt.Errorf("get last time slot: %w", err)
	}

	head := anchorFirstDay(timeline, last, loc)
	now := p.timeService.Now()
	var out []models.TemporaryTimeSlot
	for _, slot := range head {
		out = append(out, splitAtMidnight(slot, now, loc)...)
	}

	anchored := make([]models.TemporaryTimeSlot, 0, len(out))
	for i, slot := range out {
		if i > 0 {
			prev := out[i-1]
			midnight := service.StartOfDay(slot.Start, loc)
			if !slot.Start.Equal(midnight) && !service.SameDay(prev.Start, slot.Start, loc) &&
				prev.End != nil && !prev.End.After(midnight) {
				anchored = append(anchored, startAt(slot, midnight)...)
				continue
			}
		}
		anchored = append(anchored, slot)
	}
	return anchored, nil
}

// startAt moves the start of slot back to t. A commute keeps its start and
// is preceded by an unknown slot from t instead.
func startAt(slot models.TemporaryTimeSlot, t time.Time) []models.TemporaryTimeSlot {
	if slot.Category != models.CategoryCommute {
		return []models.TemporaryTimeSlot{slot.WithStart(t)}
	}
	return []models.TemporaryTimeSlot{models.NewTemporaryTimeSlot(t).WithEnd(slot.Start), slot}
}

func anchorFirstDay(timeline []models.TemporaryTimeSlot, last *models.TimeSlot, loc *time.Location) []models.TemporaryTimeSlot {
	first := timeline[0]
	rest := timeline[1:]
	out := make([]models.TemporaryTimeSlot, 0, len(timeline)+2)
	midnight := service.StartOfDay(first.Start, loc)
	if first.Start.Equal(midnight) {
		return append(append(out, first), rest...)
	}

	if last == nil || (last.EndTime != nil && !last.EndTime.After(midnight)) {
		return append(append(out, startAt(first, midnight)...), rest...)
	}

	if last.StartTime.Before(midnight) {
		end := first.Start
		head := []models.TemporaryTimeSlot{first}
		if last.EndTime != nil && last.EndTime.Before(end) {
			end = *last.EndTime
			head = startAt(first, end)
		}
		continuation := models.NewTemporaryTimeSlot(midnight).WithEnd(end).WithCategory(last.Category)
		if last.Location != nil {
			l := *last.Location
			continuation = continuation.WithLocation(&l)
		}
		out = append(out, continuation)
		out = append(out, head...)
		return append(out, rest...)
	}

	if last.EndTime != nil && last.EndTime.Before(first.Start) {
		return append(append(out, startAt(first, *last.EndTime)...), rest...)
	}
	return append(append(out, first), rest...)
}

// splitAtMidnight cuts slot at every local midnight it crosses. Open slots
// are cut up to now and the final piece stays open.
func splitAtMidnight(slot models.TemporaryTimeSlot, now time.Time, loc *time.Location) []models.TemporaryTimeSlot {
	end := now
	if slot.End != nil {
		end = *slot.End
	}

	var pieces []models.TemporaryTimeSlot
	current := slot
	for {
		boundary := service.NextDay(service.StartOfDay(current.Start, loc))
		if !boundary.Before(end) {
			break
		}
		pieces = append(pieces, current.WithEnd(boundary))
		current = current.WithStart(boundary)
		current.End = slot.End
	}
	return append(pieces, current)
}
