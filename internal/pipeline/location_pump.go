package pipeline

import (
	"context"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/jengzang/daytrail-backend-go/internal/models"
	"github.com/jengzang/daytrail-backend-go/internal/service"
)

// DefaultMaxHorizontalAccuracy is the accuracy radius in meters above which fixes are discarded
const DefaultMaxHorizontalAccuracy = 200.0

// LocationSource hands out buffered location fixes together with a commit mark
type LocationSource interface {
	Locations() ([]models.Location, uint64)
	CommitLocations(mark uint64)
}

// LocationPump turns a stream of location fixes into stay and commute slots.
//
// Runs are incremental: after a commit the pump keeps the fixes of the last
// visit, and of any movement still in progress, so the next run classifies
// its first fixes against them.
type LocationPump struct {
	source      LocationSource
	clock       service.TimeService
	maxAccuracy float64
	logger      *zap.Logger

	mark        uint64
	tail        []models.Location
	pendingTail []models.Location
}

// NewLocationPump creates a pump reading from source. A non-positive
// maxAccuracy selects DefaultMaxHorizontalAccuracy. With a nil clock a
// trailing movement is always emitted as soon as it is seen.
func NewLocationPump(source LocationSource, clock service.TimeService, maxAccuracy float64, logger *zap.Logger) *LocationPump {
	if maxAccuracy <= 0 {
		maxAccuracy = DefaultMaxHorizontalAccuracy
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LocationPump{
		source:      source,
		clock:       clock,
		maxAccuracy: maxAccuracy,
		logger:      logger.Named("location_pump"),
	}
}

// visit is a run of fixes that are not significantly different from each other
type visit struct {
	location models.Location // arrival fix, carrying the most accurate coordinates seen
	lastSeen time.Time
}

func (v visit) departure() models.Location {
	d := v.location
	d.Timestamp = v.lastSeen
	return d
}

// single reports whether the visit consists of one fix
func (v visit) single() bool {
	return !v.lastSeen.After(v.location.Timestamp)
}

// fixes returns the fixes that rebuild v when collapsed again
func (v visit) fixes() []models.Location {
	if v.single() {
		return []models.Location{v.location}
	}
	return []models.Location{v.location, v.departure()}
}

// Start snapshots the buffered fixes and derives the timeline
func (p *LocationPump) Start(ctx context.Context) ([]models.TemporaryTimeSlot, error) {
	buffered, mark := p.source.Locations()
	p.mark = mark

	locations := make([]models.Location, 0, len(p.tail)+len(buffered))
	locations = append(locations, p.tail...)
	locations = append(locations, buffered...)
	sort.SliceStable(locations, func(i, j int) bool {
		return locations[i].Timestamp.Before(locations[j].Timestamp)
	})

	visits := p.collapse(locations)
	p.pendingTail = nil
	if len(visits) == 0 {
		return []models.TemporaryTimeSlot{}, nil
	}

	from := p.unsettledFrom(visits)
	for _, v := range visits[from:] {
		p.pendingTail = append(p.pendingTail, v.fixes()...)
	}

	slots := p.derive(visits[:from+1])
	if from < len(visits)-1 {
		// the open stay of the origin visit ends where the held movement begins
		slots = slots[:len(slots)-1]
		if origin := visits[from]; !origin.single() {
			loc := origin.location
			slots = append(slots, models.NewTemporaryTimeSlot(loc.Timestamp).WithEnd(origin.lastSeen).WithLocation(&loc))
		}
	}

	p.logger.Debug("derived location timeline",
		zap.Int("fixes", len(locations)),
		zap.Int("visits", len(visits)),
		zap.Int("held", len(visits)-1-from),
		zap.Int("slots", len(slots)))
	return slots, nil
}

// derive emits stays and commutes for visits; the last visit yields an open stay
func (p *LocationPump) derive(visits []visit) []models.TemporaryTimeSlot {
	slots := make([]models.TemporaryTimeSlot, 0, len(visits))
	for i, v := range visits {
		loc := v.location
		if i == len(visits)-1 {
			slots = append(slots, models.NewTemporaryTimeSlot(loc.Timestamp).WithLocation(&loc))
			break
		}

		next := visits[i+1].location
		departure := v.departure()
		if next.IsCommute(departure) {
			if v.lastSeen.After(loc.Timestamp) {
				slots = append(slots, models.NewTemporaryTimeSlot(loc.Timestamp).WithEnd(v.lastSeen).WithLocation(&loc))
			}
			if next.Timestamp.After(v.lastSeen) {
				commute := models.NewTemporaryTimeSlot(v.lastSeen).
					WithEnd(next.Timestamp).
					WithCategory(models.CategoryCommute).
					WithLocation(&departure)
				slots = appendCoalescingCommute(slots, commute)
			}
			continue
		}

		if next.Timestamp.After(loc.Timestamp) {
			slots = append(slots, models.NewTemporaryTimeSlot(loc.Timestamp).WithEnd(next.Timestamp).WithLocation(&loc))
		}
	}
	return slots
}

// unsettledFrom returns the index of the first visit whose slots may still
// change with later fixes. A movement is unsettled while its last visit is a
// single fix reached by commute and a further commute fix can still follow;
// it is then held back to the visit it started from.
func (p *LocationPump) unsettledFrom(visits []visit) int {
	last := len(visits) - 1
	if last == 0 || !visits[last].single() || !reachedByCommute(visits, last) || p.settled(visits[last]) {
		return last
	}
	from := last - 1
	for from > 0 && visits[from].single() && reachedByCommute(visits, from) {
		from--
	}
	return from
}

func reachedByCommute(visits []visit, i int) bool {
	return visits[i].location.IsCommute(visits[i-1].departure())
}

// settled reports whether no later fix can count as a commute from v
func (p *LocationPump) settled(v visit) bool {
	if p.clock == nil {
		return true
	}
	return p.clock.Now().Sub(v.lastSeen) >= models.CommuteDetectionLimit
}

// collapse drops inaccurate fixes and folds fixes that stay within
// SignificantDistanceMeters of the current visit into it
func (p *LocationPump) collapse(locations []models.Location) []visit {
	var visits []visit
	for _, loc := range locations {
		if loc.HorizontalAccuracy < 0 || loc.HorizontalAccuracy > p.maxAccuracy {
			continue
		}
		if n := len(visits); n > 0 && !loc.IsSignificantlyDifferent(visits[n-1].location) {
			current := &visits[n-1]
			if loc.IsMoreAccurate(current.location) {
				arrival := current.location.Timestamp
				current.location = loc
				current.location.Timestamp = arrival
			}
			if loc.Timestamp.After(current.lastSeen) {
				current.lastSeen = loc.Timestamp
			}
			continue
		}
		visits = append(visits, visit{location: loc, lastSeen: loc.Timestamp})
	}
	return visits
}

// Commit removes the fixes consumed by the last Start from the buffer and
// keeps the unsettled tail for the next run
func (p *LocationPump) Commit() {
	p.source.CommitLocations(p.mark)
	p.tail = p.pendingTail
	p.pendingTail = nil
}

// appendCoalescingCommute appends slot, extending the previous slot instead
// when both are commutes that touch
func appendCoalescingCommute(slots []models.TemporaryTimeSlot, slot models.TemporaryTimeSlot) []models.TemporaryTimeSlot {
	if n := len(slots); n > 0 {
		prev := slots[n-1]
		if prev.Category == models.CategoryCommute && slot.Category == models.CategoryCommute &&
			prev.End != nil && !prev.End.Before(slot.Start) {
			if slot.End == nil {
				slots[n-1] = prev.WithoutEnd()
			} else if slot.End.After(*prev.End) {
				slots[n-1] = prev.WithEnd(*slot.End)
			}
			return slots
		}
	}
	return append(slots, slot)
}
