package pipeline

import (
	"context"
	"sort"
	"time"

	"github.com/jengzang/daytrail-backend-go/internal/models"
)

// MergePipe reduces per-source timelines to a single non-overlapping one.
//
// Slots are painted onto the time axis in precedence order: slots with a
// location first, then the more accurate location, then the earliest start.
// A later slot only keeps the parts of its interval no earlier slot covers.
// An open-ended slot is cut at the next start of any other slot and its
// remainder is painted last, so it only fills what is still uncovered.
type MergePipe struct{}

// NewMergePipe creates a MergePipe
func NewMergePipe() *MergePipe { return &MergePipe{} }

// unbounded stands in for the missing end of open slots while painting
var unbounded = time.Date(9999, time.December, 31, 0, 0, 0, 0, time.UTC)

type claim struct {
	slot   models.TemporaryTimeSlot
	source int
	start  time.Time
	end    time.Time
	tail   bool
}

type span struct {
	start, end time.Time
}

type fragment struct {
	slot   models.TemporaryTimeSlot
	source int
	span
}

// Process merges timelines
func (MergePipe) Process(ctx context.Context, timelines [][]models.TemporaryTimeSlot) ([]models.TemporaryTimeSlot, error) {
	var all []models.TemporaryTimeSlot
	for _, timeline := range timelines {
		all = append(all, timeline...)
	}
	if len(all) == 0 {
		return []models.TemporaryTimeSlot{}, nil
	}

	claims := make([]claim, 0, len(all)+1)
	for i, slot := range all {
		if slot.End != nil {
			if slot.End.After(slot.Start) {
				claims = append(claims, claim{slot: slot, source: i, start: slot.Start, end: *slot.End})
			}
			continue
		}
		cut, ok := nextStart(all, i)
		if !ok {
			claims = append(claims, claim{slot: slot, source: i, start: slot.Start, end: unbounded})
			continue
		}
		claims = append(claims,
			claim{slot: slot, source: i, start: slot.Start, end: cut},
			claim{slot: slot, source: i, start: cut, end: unbounded, tail: true})
	}

	sort.SliceStable(claims, func(i, j int) bool {
		return precedes(claims[i], claims[j])
	})

	var covered []span
	var fragments []fragment
	for _, c := range claims {
		for _, free := range uncovered(covered, span{c.start, c.end}) {
			fragments = append(fragments, fragment{slot: c.slot, source: c.source, span: free})
			covered = insertSpan(covered, free)
		}
	}

	sort.SliceStable(fragments, func(i, j int) bool {
		return fragments[i].start.Before(fragments[j].start)
	})

	out := make([]models.TemporaryTimeSlot, 0, len(fragments))
	lastSource := -1
	for _, f := range fragments {
		slot := f.slot.WithStart(f.start)
		if f.end.Equal(unbounded) {
			slot = slot.WithoutEnd()
		} else {
			slot = slot.WithEnd(f.end)
		}

		// pieces of one slot that ended up adjacent are joined again
		if n := len(out); n > 0 && f.source == lastSource && out[n-1].End != nil && out[n-1].End.Equal(f.start) {
			out[n-1].End = slot.End
			continue
		}
		out = append(out, slot)
		lastSource = f.source
	}
	return out, nil
}

// nextStart returns the earliest start of any slot other than all[i] that begins after it
func nextStart(all []models.TemporaryTimeSlot, i int) (time.Time, bool) {
	var cut time.Time
	found := false
	for j, other := range all {
		if j == i || !other.Start.After(all[i].Start) {
			continue
		}
		if !found || other.Start.Before(cut) {
			cut = other.Start
			found = true
		}
	}
	return cut, found
}

func precedes(a, b claim) bool {
	if a.tail != b.tail {
		return !a.tail
	}
	aLoc, bLoc := a.slot.Location != nil, b.slot.Location != nil
	if aLoc != bLoc {
		return aLoc
	}
	if aLoc && a.slot.Location.HorizontalAccuracy != b.slot.Location.HorizontalAccuracy {
		return a.slot.Location.IsMoreAccurate(*b.slot.Location)
	}
	return a.start.Before(b.start)
}

// uncovered returns the parts of s not covered by the sorted, disjoint spans in covered
func uncovered(covered []span, s span) []span {
	var free []span
	cursor := s.start
	for _, c := range covered {
		if !c.end.After(cursor) {
			continue
		}
		if !c.start.Before(s.end) {
			break
		}
		if c.start.After(cursor) {
			free = append(free, span{cursor, c.start})
		}
		cursor = c.end
		if !cursor.Before(s.end) {
			return free
		}
	}
	if cursor.Before(s.end) {
		free = append(free, span{cursor, s.end})
	}
	return free
}

func insertSpan(covered []span, s span) []span {
	i := sort.Search(len(covered), func(i int) bool {
		return covered[i].start.After(s.start)
	})
	covered = append(covered, span{})
	copy(covered[i+1:], covered[i:])
	covered[i] = s
	return covered
}
