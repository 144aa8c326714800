package pipeline

import (
	"context"

	"github.com/jengzang/daytrail-backend-go/internal/models"
)

// MergeMiniCommuteTimeSlotsPipe folds commute slots shorter than
// models.CommuteDetectionLimit into an adjacent non-commute slot
type MergeMiniCommuteTimeSlotsPipe struct{}

// NewMergeMiniCommuteTimeSlotsPipe creates a MergeMiniCommuteTimeSlotsPipe
func NewMergeMiniCommuteTimeSlotsPipe() *MergeMiniCommuteTimeSlotsPipe {
	return &MergeMiniCommuteTimeSlotsPipe{}
}

// Process collapses short commutes. The preceding slot is extended over the
// commute when it is not itself a commute and ends where the commute starts;
// otherwise a following non-commute slot starting at the commute end has its
// start pulled back. Commutes with no such adjacent neighbour are kept.
func (MergeMiniCommuteTimeSlotsPipe) Process(ctx context.Context, timeline []models.TemporaryTimeSlot) ([]models.TemporaryTimeSlot, error) {
	slots := make([]models.TemporaryTimeSlot, 0, len(timeline))
	for _, slot := range timeline {
		slots = appendCoalescingCommute(slots, slot)
	}

	out := make([]models.TemporaryTimeSlot, 0, len(slots))
	for i := 0; i < len(slots); i++ {
		slot := slots[i]
		if !isMiniCommute(slot) {
			out = append(out, slot)
			continue
		}

		if n := len(out); n > 0 && out[n-1].Category != models.CategoryCommute &&
			out[n-1].End != nil && out[n-1].End.Equal(slot.Start) {
			out[n-1] = out[n-1].WithEnd(*slot.End)
			continue
		}
		if i+1 < len(slots) && slots[i+1].Category != models.CategoryCommute && slots[i+1].Start.Equal(*slot.End) {
			slots[i+1] = slots[i+1].WithStart(slot.Start)
			continue
		}
		out = append(out, slot)
	}
	return out, nil
}

func isMiniCommute(slot models.TemporaryTimeSlot) bool {
	return slot.Category == models.CategoryCommute &&
		slot.End != nil &&
		slot.Duration() < models.CommuteDetectionLimit
}
