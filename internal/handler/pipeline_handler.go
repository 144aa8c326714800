package handler

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/jengzang/daytrail-backend-go/internal/pipeline"
	"github.com/jengzang/daytrail-backend-go/pkg/response"
)

// PipelineRunner runs the pipeline once
type PipelineRunner interface {
	Run(ctx context.Context) error
}

// PipelineHandler handles HTTP requests that trigger pipeline runs
type PipelineHandler struct {
	runner PipelineRunner
}

// NewPipelineHandler creates a new pipeline handler
func NewPipelineHandler(runner PipelineRunner) *PipelineHandler {
	return &PipelineHandler{runner: runner}
}

// Run handles POST /api/v1/pipeline/run
func (h *PipelineHandler) Run(c *gin.Context) {
	err := h.runner.Run(c.Request.Context())
	switch {
	case errors.Is(err, pipeline.ErrPipelineBusy):
		response.Error(c, http.StatusConflict, "Pipeline run already in progress", err)
	case err != nil:
		response.InternalError(c, "Pipeline run failed", err)
	default:
		response.Success(c, gin.H{"status": "completed"})
	}
}
