package handler

import (
	"errors"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/jengzang/daytrail-backend-go/internal/models"
	"github.com/jengzang/daytrail-backend-go/internal/service"
	"github.com/jengzang/daytrail-backend-go/pkg/response"
)

const dateLayout = "2006-01-02"

// TimeSlotHandler handles HTTP requests for time slots and daily activities
type TimeSlotHandler struct {
	service     *service.TimeSlotService
	timeService service.TimeService
}

// NewTimeSlotHandler creates a new time slot handler
func NewTimeSlotHandler(service *service.TimeSlotService, timeService service.TimeService) *TimeSlotHandler {
	return &TimeSlotHandler{service: service, timeService: timeService}
}

// UpdateCategoryRequest represents the request body for a category correction
type UpdateCategoryRequest struct {
	Category string `json:"category" binding:"required"`
}

// parseDay reads a YYYY-MM-DD query parameter, defaulting to today
func (h *TimeSlotHandler) parseDay(c *gin.Context, key string) (time.Time, error) {
	value := c.Query(key)
	if value == "" {
		return h.timeService.Now(), nil
	}
	return time.ParseInLocation(dateLayout, value, h.timeService.Location())
}

// GetTimeSlots handles GET /api/v1/timeslots?day=YYYY-MM-DD
func (h *TimeSlotHandler) GetTimeSlots(c *gin.Context) {
	day, err := h.parseDay(c, "day")
	if err != nil {
		response.BadRequest(c, "Invalid day, expected YYYY-MM-DD", err)
		return
	}

	slots, err := h.service.GetTimeSlots(c.Request.Context(), day)
	if err != nil {
		response.InternalError(c, "Failed to get time slots", err)
		return
	}

	response.Success(c, gin.H{
		"day":   day.Format(dateLayout),
		"data":  slots,
		"total": len(slots),
	})
}

// GetTimeSlot handles GET /api/v1/timeslots/:id
func (h *TimeSlotHandler) GetTimeSlot(c *gin.Context) {
	slot, err := h.service.GetTimeSlot(c.Request.Context(), c.Param("id"))
	if errors.Is(err, service.ErrNotFound) {
		response.NotFound(c, "Time slot not found")
		return
	}
	if err != nil {
		response.InternalError(c, "Failed to get time slot", err)
		return
	}

	response.Success(c, slot)
}

// GetActivities handles GET /api/v1/activities?date=YYYY-MM-DD
func (h *TimeSlotHandler) GetActivities(c *gin.Context) {
	date, err := h.parseDay(c, "date")
	if err != nil {
		response.BadRequest(c, "Invalid date, expected YYYY-MM-DD", err)
		return
	}

	activities, err := h.service.GetActivities(c.Request.Context(), date)
	if err != nil {
		response.InternalError(c, "Failed to get activities", err)
		return
	}

	response.Success(c, gin.H{
		"date": date.Format(dateLayout),
		"data": activities,
	})
}

// UpdateCategory handles PUT /api/v1/timeslots/:id/category
func (h *TimeSlotHandler) UpdateCategory(c *gin.Context) {
	var req UpdateCategoryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "Invalid request body", err)
		return
	}

	category, err := models.ParseCategory(req.Category)
	if err != nil {
		response.BadRequest(c, "Invalid category", err)
		return
	}

	slot, err := h.service.UpdateCategory(c.Request.Context(), c.Param("id"), category)
	if errors.Is(err, service.ErrNotFound) {
		response.NotFound(c, "Time slot not found")
		return
	}
	if err != nil {
		response.InternalError(c, "Failed to update time slot category", err)
		return
	}

	response.Success(c, slot)
}
