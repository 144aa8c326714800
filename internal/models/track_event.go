package models

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/jengzang/daytrail-backend-go/internal/spatial"
)

// Thresholds shared by the location derived operations
const (
	CommuteDetectionLimit      = 25 * time.Minute
	SignificantDistanceMeters  = 100.0
	TrackEventTypeLocation     = "location"
	TrackEventTypeHealthSample = "health_sample"
)

// TrackEvent is a raw sensor observation: either a Location or a HealthSample
type TrackEvent interface {
	EventTime() time.Time
	trackEvent()
}

// Location represents a single location fix
type Location struct {
	Timestamp          time.Time `json:"timestamp"`
	Latitude           float64   `json:"latitude"`
	Longitude          float64   `json:"longitude"`
	Speed              float64   `json:"speed"`
	Course             float64   `json:"course"`
	Altitude           float64   `json:"altitude"`
	VerticalAccuracy   float64   `json:"verticalAccuracy"`
	HorizontalAccuracy float64   `json:"horizontalAccuracy"`
}

// EventTime returns the fix timestamp
func (l Location) EventTime() time.Time { return l.Timestamp }

func (Location) trackEvent() {}

// Equal reports whether two fixes carry the same timestamp and coordinates
func (l Location) Equal(other Location) bool {
	return l.Timestamp.Equal(other.Timestamp) &&
		l.Latitude == other.Latitude &&
		l.Longitude == other.Longitude
}

// DistanceTo returns the great-circle distance to other in meters
func (l Location) DistanceTo(other Location) float64 {
	return spatial.HaversineDistance(l.Latitude, l.Longitude, other.Latitude, other.Longitude)
}

// IsMoreAccurate reports whether l has a lower horizontal accuracy radius than other
func (l Location) IsMoreAccurate(than Location) bool {
	return l.HorizontalAccuracy < than.HorizontalAccuracy
}

// IsSignificantlyDifferent reports whether l is more than 100m away from other
func (l Location) IsSignificantlyDifferent(from Location) bool {
	return l.DistanceTo(from) > SignificantDistanceMeters
}

// IsCommute reports whether l was recorded less than CommuteDetectionLimit after previous
func (l Location) IsCommute(from Location) bool {
	return l.Timestamp.Sub(from.Timestamp) < CommuteDetectionLimit
}

// HealthSample represents one sample exported by a health data store
type HealthSample struct {
	Identifier string    `json:"identifier"`
	StartTime  time.Time `json:"startTime"`
	EndTime    time.Time `json:"endTime"`
	Value      *float64  `json:"value,omitempty"`
}

// Known health sample identifiers
const (
	HealthDistanceWalkingRunning = "distance_walking_running"
	HealthDistanceCycling        = "distance_cycling"
	HealthSleepAnalysis          = "sleep_analysis"
	HealthWorkout                = "workout"
)

// EventTime returns the sample start
func (h HealthSample) EventTime() time.Time { return h.StartTime }

func (HealthSample) trackEvent() {}

// Equal reports whether two samples carry the same identifier, interval and value
func (h HealthSample) Equal(other HealthSample) bool {
	if h.Identifier != other.Identifier || !h.StartTime.Equal(other.StartTime) || !h.EndTime.Equal(other.EndTime) {
		return false
	}
	if h.Value == nil || other.Value == nil {
		return h.Value == nil && other.Value == nil
	}
	return *h.Value == *other.Value
}

// Duration returns the sample length
func (h HealthSample) Duration() time.Duration {
	return h.EndTime.Sub(h.StartTime)
}

// Speed returns value/duration in units per second, or 0 when it cannot be derived
func (h HealthSample) Speed() float64 {
	seconds := h.Duration().Seconds()
	if h.Value == nil || seconds <= 0 {
		return 0
	}
	return *h.Value / seconds
}

// TrackEventEnvelope is the JSON form of a TrackEvent
type TrackEventEnvelope struct {
	Type         string        `json:"type" binding:"required,oneof=location health_sample"`
	Location     *Location     `json:"location,omitempty"`
	HealthSample *HealthSample `json:"healthSample,omitempty"`
}

// Event unwraps the envelope
func (e TrackEventEnvelope) Event() (TrackEvent, error) {
	switch e.Type {
	case TrackEventTypeLocation:
		if e.Location == nil {
			return nil, fmt.Errorf("location event without payload")
		}
		return *e.Location, nil
	case TrackEventTypeHealthSample:
		if e.HealthSample == nil {
			return nil, fmt.Errorf("health sample event without payload")
		}
		return *e.HealthSample, nil
	default:
		return nil, fmt.Errorf("unknown track event type %q", e.Type)
	}
}

// WrapTrackEvent builds the envelope for event
func WrapTrackEvent(event TrackEvent) TrackEventEnvelope {
	switch ev := event.(type) {
	case Location:
		return TrackEventEnvelope{Type: TrackEventTypeLocation, Location: &ev}
	case HealthSample:
		return TrackEventEnvelope{Type: TrackEventTypeHealthSample, HealthSample: &ev}
	}
	return TrackEventEnvelope{}
}

// DecodeTrackEvents parses a JSON array of envelopes
func DecodeTrackEvents(data []byte) ([]TrackEvent, error) {
	var envelopes []TrackEventEnvelope
	if err := json.Unmarshal(data, &envelopes); err != nil {
		return nil, fmt.Errorf("failed to decode track events: %w", err)
	}

	events := make([]TrackEvent, 0, len(envelopes))
	for i, env := range envelopes {
		ev, err := env.Event()
		if err != nil {
			return nil, fmt.Errorf("event %d: %w", i, err)
		}
		events = append(events, ev)
	}
	return events, nil
}
