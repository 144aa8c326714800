package handler

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/jengzang/daytrail-backend-go/internal/models"
	"github.com/jengzang/daytrail-backend-go/internal/service"
	"github.com/jengzang/daytrail-backend-go/pkg/response"
)

// SmartGuessHandler handles HTTP requests for smart guesses
type SmartGuessHandler struct {
	service     *service.SmartGuessService
	timeService service.TimeService
	maxAge      time.Duration
}

// NewSmartGuessHandler creates a new smart guess handler. maxAge is the purge
// cutoff used when a purge request names none.
func NewSmartGuessHandler(service *service.SmartGuessService, timeService service.TimeService, maxAge time.Duration) *SmartGuessHandler {
	return &SmartGuessHandler{service: service, timeService: timeService, maxAge: maxAge}
}

// AddSmartGuessRequest represents the request body for teaching a category
type AddSmartGuessRequest struct {
	Category  string   `json:"category" binding:"required"`
	Latitude  *float64 `json:"latitude" binding:"required,min=-90,max=90"`
	Longitude *float64 `json:"longitude" binding:"required,min=-180,max=180"`
}

// PurgeRequest represents the request body for a purge. Both fields are optional.
type PurgeRequest struct {
	OlderThan *time.Time `json:"olderThan"`
	MaxAge    string     `json:"maxAge"`
}

// GetSmartGuesses handles GET /api/v1/smartguesses. With lat and lon it
// classifies that location, otherwise it lists every stored guess.
func (h *SmartGuessHandler) GetSmartGuesses(c *gin.Context) {
	latStr, lonStr := c.Query("lat"), c.Query("lon")
	if latStr == "" && lonStr == "" {
		guesses, err := h.service.GetAll(c.Request.Context())
		if err != nil {
			response.InternalError(c, "Failed to get smart guesses", err)
			return
		}
		response.Success(c, gin.H{"data": guesses, "total": len(guesses)})
		return
	}

	lat, err := strconv.ParseFloat(latStr, 64)
	if err != nil {
		response.BadRequest(c, "Invalid lat", err)
		return
	}
	lon, err := strconv.ParseFloat(lonStr, 64)
	if err != nil {
		response.BadRequest(c, "Invalid lon", err)
		return
	}

	location := models.Location{Timestamp: h.timeService.Now(), Latitude: lat, Longitude: lon}
	guess, err := h.service.Get(c.Request.Context(), location)
	if err != nil {
		response.InternalError(c, "Failed to classify location", err)
		return
	}
	if guess == nil {
		response.NotFound(c, "No smart guess for this location")
		return
	}

	response.Success(c, guess)
}

// AddSmartGuess handles POST /api/v1/smartguesses
func (h *SmartGuessHandler) AddSmartGuess(c *gin.Context) {
	var req AddSmartGuessRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "Invalid request body", err)
		return
	}

	category, err := models.ParseCategory(req.Category)
	if err != nil {
		response.BadRequest(c, "Invalid category", err)
		return
	}

	location := models.Location{Timestamp: h.timeService.Now(), Latitude: *req.Latitude, Longitude: *req.Longitude}
	guess, err := h.service.Add(c.Request.Context(), category, location)
	if err != nil {
		response.InternalError(c, "Failed to add smart guess", err)
		return
	}

	c.JSON(http.StatusCreated, response.Response{Code: 0, Message: "created", Data: guess})
}

// Strike handles POST /api/v1/smartguesses/:id/strike
func (h *SmartGuessHandler) Strike(c *gin.Context) {
	id := c.Param("id")
	if err := h.service.Strike(c.Request.Context(), id); err != nil {
		response.InternalError(c, "Failed to strike smart guess", err)
		return
	}

	guess, err := h.service.GetByID(c.Request.Context(), id)
	if err != nil {
		response.InternalError(c, "Failed to get smart guess", err)
		return
	}

	response.Success(c, gin.H{"id": id, "deleted": guess == nil, "smartGuess": guess})
}

// Purge handles POST /api/v1/smartguesses/purge
func (h *SmartGuessHandler) Purge(c *gin.Context) {
	var req PurgeRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			response.BadRequest(c, "Invalid request body", err)
			return
		}
	}

	cutoff := h.timeService.Now().Add(-h.maxAge)
	switch {
	case req.OlderThan != nil:
		cutoff = *req.OlderThan
	case req.MaxAge != "":
		maxAge, err := time.ParseDuration(req.MaxAge)
		if err != nil {
			response.BadRequest(c, "Invalid maxAge", err)
			return
		}
		cutoff = h.timeService.Now().Add(-maxAge)
	}

	purged, err := h.service.PurgeEntries(c.Request.Context(), cutoff)
	if err != nil {
		response.InternalError(c, "Failed to purge smart guesses", err)
		return
	}

	response.Success(c, gin.H{"purged": purged, "olderThan": cutoff})
}
