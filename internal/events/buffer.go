package events

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/jengzang/daytrail-backend-go/internal/metrics"
	"github.com/jengzang/daytrail-backend-go/internal/models"
)

type entry[T any] struct {
	seq   uint64
	value T
}

// queue keeps items in arrival order and drops the oldest past maxSize
type queue[T any] struct {
	items   []entry[T]
	maxSize int
}

func (q *queue[T]) push(seq uint64, v T) (dropped bool) {
	q.items = append(q.items, entry[T]{seq: seq, value: v})
	if q.maxSize > 0 && len(q.items) > q.maxSize {
		q.items = q.items[1:]
		return true
	}
	return false
}

func (q *queue[T]) snapshot() ([]T, uint64) {
	values := make([]T, len(q.items))
	var last uint64
	for i, e := range q.items {
		values[i] = e.value
		last = e.seq
	}
	return values, last
}

func (q *queue[T]) commit(upTo uint64) {
	i := 0
	for i < len(q.items) && q.items[i].seq <= upTo {
		i++
	}
	q.items = append([]entry[T](nil), q.items[i:]...)
}

// Buffer accumulates events from a Source until pumps take them.
// Pumps read a snapshot and commit it once the pipeline run succeeded, so
// events survive a failed run.
type Buffer struct {
	mu        sync.Mutex
	seq       uint64
	locations queue[models.Location]
	samples   queue[models.HealthSample]
	metrics   *metrics.Collector
	logger    *zap.Logger
}

// NewBuffer creates a buffer holding at most maxSize events per channel (0 = unbounded)
func NewBuffer(maxSize int, collector *metrics.Collector, logger *zap.Logger) *Buffer {
	return &Buffer{
		locations: queue[models.Location]{maxSize: maxSize},
		samples:   queue[models.HealthSample]{maxSize: maxSize},
		metrics:   collector,
		logger:    logger.Named("events"),
	}
}

// Run consumes source until ctx is done or the source closes
func (b *Buffer) Run(ctx context.Context, source Source) {
	ch := source.Events()
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-ch:
			if !ok {
				return
			}
			b.Add(ev)
		}
	}
}

// Add stores one event
func (b *Buffer) Add(event models.TrackEvent) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.seq++
	var dropped bool
	var eventType string
	switch ev := event.(type) {
	case models.Location:
		eventType = models.TrackEventTypeLocation
		dropped = b.locations.push(b.seq, ev)
	case models.HealthSample:
		eventType = models.TrackEventTypeHealthSample
		dropped = b.samples.push(b.seq, ev)
	default:
		b.logger.Warn("ignoring unsupported track event")
		return
	}

	b.metrics.RecordEventIngested(eventType)
	if dropped {
		b.logger.Warn("event buffer full, dropped oldest event", zap.String("type", eventType))
	}
}

// Locations returns the buffered locations and a mark for CommitLocations
func (b *Buffer) Locations() ([]models.Location, uint64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.locations.snapshot()
}

// CommitLocations drops every location up to mark
func (b *Buffer) CommitLocations(mark uint64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.locations.commit(mark)
}

// HealthSamples returns the buffered samples and a mark for CommitHealthSamples
func (b *Buffer) HealthSamples() ([]models.HealthSample, uint64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.samples.snapshot()
}

// CommitHealthSamples drops every sample up to mark
func (b *Buffer) CommitHealthSamples(mark uint64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.samples.commit(mark)
}

// Len returns the number of buffered events
func (b *Buffer) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.locations.items) + len(b.samples.items)
}
