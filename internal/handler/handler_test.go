package handler

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/jengzang/daytrail-backend-go/internal/database"
	"github.com/jengzang/daytrail-backend-go/internal/events"
	"github.com/jengzang/daytrail-backend-go/internal/models"
	"github.com/jengzang/daytrail-backend-go/internal/pipeline"
	"github.com/jengzang/daytrail-backend-go/internal/repository"
	"github.com/jengzang/daytrail-backend-go/internal/service"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type fixedClock struct{}

func (fixedClock) Now() time.Time           { return time.Date(2024, 3, 4, 12, 0, 0, 0, time.UTC) }
func (fixedClock) Location() *time.Location { return time.UTC }

type runnerFunc func(ctx context.Context) error

func (f runnerFunc) Run(ctx context.Context) error { return f(ctx) }

func serve(r *gin.Engine, method, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestPipelineHandlerStatus(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want int
	}{
		{"completed", nil, http.StatusOK},
		{"busy", pipeline.ErrPipelineBusy, http.StatusConflict},
		{"failed", pipeline.ErrInvalidTimeline, http.StatusInternalServerError},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			r := gin.New()
			r.POST("/run", NewPipelineHandler(runnerFunc(func(context.Context) error { return tc.err })).Run)
			assert.Equal(t, tc.want, serve(r, http.MethodPost, "/run", "").Code)
		})
	}
}

func TestEventHandler(t *testing.T) {
	source := events.NewChannelSource(10)
	r := gin.New()
	r.POST("/events", NewEventHandler(source).Ingest)

	w := serve(r, http.MethodPost, "/events", `[
		{"type":"location","location":{"timestamp":"2024-03-04T08:00:00Z","latitude":52.52,"longitude":13.405,"horizontalAccuracy":10}},
		{"type":"health_sample","healthSample":{"identifier":"workout","startTime":"2024-03-04T18:00:00Z","endTime":"2024-03-04T19:00:00Z"}}
	]`)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"accepted":2`)
	assert.Len(t, source.Events(), 2)

	ev := <-source.Events()
	loc, ok := ev.(models.Location)
	require.True(t, ok)
	assert.Equal(t, 52.52, loc.Latitude)

	assert.Equal(t, http.StatusBadRequest, serve(r, http.MethodPost, "/events", `{"not":"an array"}`).Code)
	assert.Equal(t, http.StatusBadRequest, serve(r, http.MethodPost, "/events", `[{"type":"location"}]`).Code)

	source.Close()
	assert.Equal(t, http.StatusServiceUnavailable,
		serve(r, http.MethodPost, "/events", `[{"type":"location","location":{"latitude":1,"longitude":1}}]`).Code)
}

func TestEventHandlerRejectsOversizedBody(t *testing.T) {
	source := events.NewChannelSource(10)
	r := gin.New()
	r.POST("/events", NewEventHandler(source).Ingest)

	body := "[" + strings.Repeat(" ", MaxEventsBodyBytes) + "]"
	assert.Equal(t, http.StatusRequestEntityTooLarge, serve(r, http.MethodPost, "/events", body).Code)
	assert.Empty(t, source.Events())
}

func TestTimeSlotHandlerErrors(t *testing.T) {
	db, err := database.Open(database.Config{InMemory: true}, zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	timeSlots := service.NewTimeSlotService(repository.NewTimeSlotRepository(db), nil, fixedClock{}, zap.NewNop())
	h := NewTimeSlotHandler(timeSlots, fixedClock{})
	r := gin.New()
	r.GET("/timeslots", h.GetTimeSlots)
	r.GET("/timeslots/:id", h.GetTimeSlot)
	r.PUT("/timeslots/:id/category", h.UpdateCategory)
	r.GET("/activities", h.GetActivities)

	assert.Equal(t, http.StatusBadRequest, serve(r, http.MethodGet, "/timeslots?day=04.03.2024", "").Code)
	assert.Equal(t, http.StatusBadRequest, serve(r, http.MethodGet, "/activities?date=yesterday", "").Code)
	assert.Equal(t, http.StatusNotFound, serve(r, http.MethodGet, "/timeslots/missing", "").Code)
	assert.Equal(t, http.StatusNotFound, serve(r, http.MethodPut, "/timeslots/missing/category", `{"category":"work"}`).Code)
	assert.Equal(t, http.StatusBadRequest, serve(r, http.MethodPut, "/timeslots/missing/category", `{"category":"napping"}`).Code)
	assert.Equal(t, http.StatusBadRequest, serve(r, http.MethodPut, "/timeslots/missing/category", `{}`).Code)

	w := serve(r, http.MethodGet, "/timeslots", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"day":"2024-03-04"`)
}
