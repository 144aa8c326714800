// Package events delivers track events from producers to the pipeline pumps.
package events

import (
	"context"
	"errors"
	"sync"

	"github.com/jengzang/daytrail-backend-go/internal/models"
)

// ErrSourceClosed is returned when publishing to a closed source
var ErrSourceClosed = errors.New("event source closed")

// Source pushes track events asynchronously
type Source interface {
	Events() <-chan models.TrackEvent
}

// ChannelSource is a Source backed by a bounded channel
type ChannelSource struct {
	ch     chan models.TrackEvent
	mu     sync.RWMutex
	closed bool
}

// NewChannelSource creates a source holding up to capacity undelivered events
func NewChannelSource(capacity int) *ChannelSource {
	if capacity < 1 {
		capacity = 1
	}
	return &ChannelSource{ch: make(chan models.TrackEvent, capacity)}
}

// Events implements Source
func (s *ChannelSource) Events() <-chan models.TrackEvent {
	return s.ch
}

// Publish blocks until the event is queued or ctx is done
func (s *ChannelSource) Publish(ctx context.Context, event models.TrackEvent) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return ErrSourceClosed
	}

	select {
	case s.ch <- event:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close stops the source; consumers see the channel close
func (s *ChannelSource) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.closed {
		s.closed = true
		close(s.ch)
	}
}
