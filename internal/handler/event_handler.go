package handler

import (
	"context"
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/jengzang/daytrail-backend-go/internal/events"
	"github.com/jengzang/daytrail-backend-go/internal/models"
	"github.com/jengzang/daytrail-backend-go/pkg/response"
)

// MaxEventsBodyBytes caps the size of one ingestion request
const MaxEventsBodyBytes = 8 << 20

// EventPublisher accepts track events for the pipeline
type EventPublisher interface {
	Publish(ctx context.Context, event models.TrackEvent) error
}

// EventHandler handles HTTP requests for track event ingestion
type EventHandler struct {
	publisher EventPublisher
}

// NewEventHandler creates a new event handler
func NewEventHandler(publisher EventPublisher) *EventHandler {
	return &EventHandler{publisher: publisher}
}

// Ingest handles POST /api/v1/events with a JSON array of track event envelopes
func (h *EventHandler) Ingest(c *gin.Context) {
	body, err := io.ReadAll(http.MaxBytesReader(c.Writer, c.Request.Body, MaxEventsBodyBytes))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			response.Error(c, http.StatusRequestEntityTooLarge, "Request body too large", err)
			return
		}
		response.BadRequest(c, "Failed to read request body", err)
		return
	}

	trackEvents, err := models.DecodeTrackEvents(body)
	if err != nil {
		response.BadRequest(c, "Invalid track events", err)
		return
	}

	accepted := 0
	for _, ev := range trackEvents {
		if err := h.publisher.Publish(c.Request.Context(), ev); err != nil {
			if errors.Is(err, events.ErrSourceClosed) {
				response.Error(c, http.StatusServiceUnavailable, "Event source closed", err)
				return
			}
			response.InternalError(c, "Failed to publish track event", err)
			return
		}
		accepted++
	}

	response.Success(c, gin.H{"accepted": accepted})
}
