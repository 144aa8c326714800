// Package pipeline turns buffered track events into persisted time slots.
//
// A Pipeline pulls candidate timelines from its Pumps, merges them with a
// CrossPipe, transforms the result with each Pipe in order and hands the
// final timeline to a Sink.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/jengzang/daytrail-backend-go/internal/metrics"
	"github.com/jengzang/daytrail-backend-go/internal/models"
)

var (
	// ErrPipelineBusy is returned by Run while another run is in flight
	ErrPipelineBusy = errors.New("pipeline run already in progress")
	// ErrInvalidTimeline is returned when a stage breaks the timeline ordering
	ErrInvalidTimeline = errors.New("invalid timeline")
)

// Pump converts the events buffered for one channel into candidate slots
type Pump interface {
	Start(ctx context.Context) ([]models.TemporaryTimeSlot, error)
}

// Committer is implemented by pumps that release their events after a successful run
type Committer interface {
	Commit()
}

// Pipe transforms one ordered timeline into another
type Pipe interface {
	Process(ctx context.Context, timeline []models.TemporaryTimeSlot) ([]models.TemporaryTimeSlot, error)
}

// CrossPipe reduces several per-source timelines into one ordered, non-overlapping timeline
type CrossPipe interface {
	Process(ctx context.Context, timelines [][]models.TemporaryTimeSlot) ([]models.TemporaryTimeSlot, error)
}

// Sink consumes the final timeline
type Sink interface {
	Execute(ctx context.Context, timeline []models.TemporaryTimeSlot) error
}

// Builder assembles a Pipeline
type Builder struct {
	pumps     []Pump
	crossPipe CrossPipe
	pipes     []Pipe
	metrics   *metrics.Collector
	logger    *zap.Logger
}

// With starts a pipeline fed by pumps, invoked in the given order
func With(pumps ...Pump) *Builder {
	return &Builder{pumps: pumps, logger: zap.NewNop()}
}

// CrossPipe sets the merge stage. Without one, pump outputs are concatenated and sorted.
func (b *Builder) CrossPipe(cp CrossPipe) *Builder {
	b.crossPipe = cp
	return b
}

// Pipe appends a transformation stage
func (b *Builder) Pipe(p Pipe) *Builder {
	b.pipes = append(b.pipes, p)
	return b
}

// Metrics sets the collector run outcomes are recorded on
func (b *Builder) Metrics(c *metrics.Collector) *Builder {
	b.metrics = c
	return b
}

// Logger sets the pipeline logger
func (b *Builder) Logger(l *zap.Logger) *Builder {
	b.logger = l
	return b
}

// Sink terminates the pipeline
func (b *Builder) Sink(s Sink) *Pipeline {
	return &Pipeline{
		pumps:     b.pumps,
		crossPipe: b.crossPipe,
		pipes:     b.pipes,
		sink:      s,
		metrics:   b.metrics,
		logger:    b.logger.Named("pipeline"),
	}
}

// Pipeline wires Pumps -> CrossPipe -> Pipes -> Sink
type Pipeline struct {
	pumps     []Pump
	crossPipe CrossPipe
	pipes     []Pipe
	sink      Sink

	running atomic.Bool
	metrics *metrics.Collector
	logger  *zap.Logger
}

// Run executes the pipeline once. Runs are not re-entrant: a call made while
// another is in flight returns ErrPipelineBusy. Any stage error aborts the run
// before the sink sees a timeline, and buffered events are kept for the next run.
func (p *Pipeline) Run(ctx context.Context) error {
	if !p.running.CompareAndSwap(false, true) {
		return ErrPipelineBusy
	}
	defer p.running.Store(false)

	started := time.Now()
	count, err := p.run(ctx)
	elapsed := time.Since(started)

	if err != nil {
		p.metrics.RecordPipelineRun("failed", elapsed)
		p.logger.Error("pipeline run failed", zap.Duration("duration", elapsed), zap.Error(err))
		return err
	}

	p.metrics.RecordPipelineRun("success", elapsed)
	p.logger.Info("pipeline run completed", zap.Int("slots", count), zap.Duration("duration", elapsed))
	return nil
}

func (p *Pipeline) run(ctx context.Context) (int, error) {
	timelines := make([][]models.TemporaryTimeSlot, 0, len(p.pumps))
	for _, pump := range p.pumps {
		timeline, err := pump.Start(ctx)
		if err != nil {
			return 0, fmt.Errorf("pump %T: %w", pump, err)
		}
		timelines = append(timelines, normalize(timeline))
		p.logger.Debug("pump finished", zap.String("pump", fmt.Sprintf("%T", pump)), zap.Int("slots", len(timeline)))
	}

	var timeline []models.TemporaryTimeSlot
	if p.crossPipe != nil {
		merged, err := p.crossPipe.Process(ctx, timelines)
		if err != nil {
			return 0, fmt.Errorf("cross pipe %T: %w", p.crossPipe, err)
		}
		timeline = merged
	} else {
		for _, t := range timelines {
			timeline = append(timeline, t...)
		}
		timeline = normalize(timeline)
	}
	if err := Validate(timeline); err != nil {
		return 0, fmt.Errorf("after merge: %w", err)
	}

	for _, pipe := range p.pipes {
		next, err := pipe.Process(ctx, timeline)
		if err != nil {
			return 0, fmt.Errorf("pipe %T: %w", pipe, err)
		}
		if err := Validate(next); err != nil {
			return 0, fmt.Errorf("after pipe %T: %w", pipe, err)
		}
		timeline = next
	}

	if p.sink != nil {
		if err := p.sink.Execute(ctx, timeline); err != nil {
			return 0, fmt.Errorf("sink %T: %w", p.sink, err)
		}
	}

	for _, pump := range p.pumps {
		if c, ok := pump.(Committer); ok {
			c.Commit()
		}
	}
	return len(timeline), nil
}

// normalize copies timeline sorted by start, with empty categories set to unknown
func normalize(timeline []models.TemporaryTimeSlot) []models.TemporaryTimeSlot {
	out := make([]models.TemporaryTimeSlot, len(timeline))
	copy(out, timeline)
	for i := range out {
		if out[i].Category == "" {
			out[i].Category = models.CategoryUnknown
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Start.Before(out[j].Start)
	})
	return out
}

// Validate checks that timeline is ordered by start, that every closed slot
// ends after it starts, that slots do not overlap and that only the last slot is open.
func Validate(timeline []models.TemporaryTimeSlot) error {
	for i, slot := range timeline {
		if slot.End != nil && !slot.End.After(slot.Start) {
			return fmt.Errorf("%w: slot %d ends at or before its start", ErrInvalidTimeline, i)
		}
		if i == 0 {
			continue
		}
		prev := timeline[i-1]
		if prev.End == nil {
			return fmt.Errorf("%w: open slot %d is not last", ErrInvalidTimeline, i-1)
		}
		if slot.Start.Before(*prev.End) {
			return fmt.Errorf("%w: slot %d overlaps slot %d", ErrInvalidTimeline, i, i-1)
		}
	}
	return nil
}
