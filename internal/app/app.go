// Package app wires storage, services, the event buffer and the pipeline.
package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/jengzang/daytrail-backend-go/internal/api"
	"github.com/jengzang/daytrail-backend-go/internal/config"
	"github.com/jengzang/daytrail-backend-go/internal/database"
	"github.com/jengzang/daytrail-backend-go/internal/events"
	"github.com/jengzang/daytrail-backend-go/internal/handler"
	"github.com/jengzang/daytrail-backend-go/internal/knn"
	"github.com/jengzang/daytrail-backend-go/internal/metrics"
	"github.com/jengzang/daytrail-backend-go/internal/middleware"
	"github.com/jengzang/daytrail-backend-go/internal/models"
	"github.com/jengzang/daytrail-backend-go/internal/pipeline"
	"github.com/jengzang/daytrail-backend-go/internal/repository"
	"github.com/jengzang/daytrail-backend-go/internal/service"
)

const shutdownTimeout = 30 * time.Second

// App holds every long-lived component
type App struct {
	cfg     *config.Config
	db      *sql.DB
	logger  *zap.Logger
	metrics *metrics.Collector

	TimeService  service.TimeService
	SmartGuesses *service.SmartGuessService
	TimeSlots    *service.TimeSlotService
	Source       *events.ChannelSource
	Buffer       *events.Buffer
	Pipeline     *pipeline.Pipeline
}

// Option customizes New
type Option func(*options)

type options struct {
	timeService service.TimeService
	inMemory    bool
}

// WithTimeService replaces the wall clock
func WithTimeService(ts service.TimeService) Option {
	return func(o *options) { o.timeService = ts }
}

// WithInMemoryDatabase uses a private in-memory database instead of cfg.DBPath
func WithInMemoryDatabase() Option {
	return func(o *options) { o.inMemory = true }
}

// New opens the database and builds the services and the pipeline
func New(cfg *config.Config, logger *zap.Logger, opts ...Option) (*App, error) {
	var o options
	for _, opt := range opts {
		opt(&o)
	}

	if o.timeService == nil {
		loc, err := cfg.Location()
		if err != nil {
			return nil, err
		}
		o.timeService = service.NewSystemTimeService(loc)
	}

	db, err := database.Open(database.Config{Path: cfg.DBPath, InMemory: o.inMemory}, logger)
	if err != nil {
		return nil, err
	}

	collector := metrics.NewCollector("daytrail")
	smartGuesses := service.NewSmartGuessService(
		repository.NewSmartGuessRepository(db),
		o.timeService,
		service.SmartGuessConfig{
			K:           cfg.SmartGuess.K,
			MaxDistance: cfg.SmartGuess.MaxDistance,
			Decision:    knn.ParseDecisionType(cfg.SmartGuess.Decision),
		},
		collector,
		logger,
	)
	timeSlots := service.NewTimeSlotService(repository.NewTimeSlotRepository(db), smartGuesses, o.timeService, logger)

	buffer := events.NewBuffer(cfg.Events.BufferSize, collector, logger)
	p := pipeline.With(
		pipeline.NewLocationPump(buffer, o.timeService, cfg.Pipeline.MaxHorizontalAccuracy, logger),
		pipeline.NewHealthPump(buffer, cfg.Pipeline.CommuteSpeedThreshold, logger),
	).
		CrossPipe(pipeline.NewMergePipe()).
		Pipe(pipeline.NewMergeMiniCommuteTimeSlotsPipe()).
		Pipe(pipeline.NewFirstTimeSlotOfDayPipe(timeSlots, o.timeService)).
		Metrics(collector).
		Logger(logger).
		Sink(pipeline.NewPersistencySink(timeSlots, smartGuesses, collector, logger))

	return &App{
		cfg:          cfg,
		db:           db,
		logger:       logger,
		metrics:      collector,
		TimeService:  o.timeService,
		SmartGuesses: smartGuesses,
		TimeSlots:    timeSlots,
		Source:       events.NewChannelSource(cfg.Events.SourceCapacity),
		Buffer:       buffer,
		Pipeline:     p,
	}, nil
}

// Close releases the event source and the database
func (a *App) Close() error {
	a.Source.Close()
	return a.db.Close()
}

// Metrics returns the application metrics collector
func (a *App) Metrics() *metrics.Collector { return a.metrics }

// Router builds the HTTP API. The rate limiter lives until ctx is done.
func (a *App) Router(ctx context.Context) *gin.Engine {
	var limiter *middleware.RateLimiter
	if a.cfg.RateLimit.Requests > 0 {
		limiter = middleware.NewRateLimiter(ctx, a.cfg.RateLimit.Requests, a.cfg.RateLimit.Window)
	}

	return api.SetupRouter(api.Options{
		JWTSecret:   a.cfg.JWTSecret,
		Logger:      a.logger.Named("http"),
		Metrics:     a.metrics,
		RateLimiter: limiter,
	}, api.Handlers{
		Events:       handler.NewEventHandler(a.Source),
		Pipeline:     handler.NewPipelineHandler(a.Pipeline),
		TimeSlots:    handler.NewTimeSlotHandler(a.TimeSlots, a.TimeService),
		SmartGuesses: handler.NewSmartGuessHandler(a.SmartGuesses, a.TimeService, a.cfg.SmartGuess.MaxAge),
	})
}

// Purge deletes smart guesses not used within the configured maximum age
func (a *App) Purge(ctx context.Context) (int64, error) {
	cutoff := a.TimeService.Now().Add(-a.cfg.SmartGuess.MaxAge)
	return a.SmartGuesses.PurgeEntries(ctx, cutoff)
}

// RunOnce buffers trackEvents and runs the pipeline over them
func (a *App) RunOnce(ctx context.Context, trackEvents []models.TrackEvent) error {
	for _, ev := range trackEvents {
		a.Buffer.Add(ev)
	}
	return a.Pipeline.Run(ctx)
}

// Schedule runs the pipeline every cfg.Pipeline.Interval and purges stale
// smart guesses once at start and every cfg.SmartGuess.PurgeInterval, until ctx is done
func (a *App) Schedule(ctx context.Context) {
	if _, err := a.Purge(ctx); err != nil {
		a.logger.Warn("startup purge failed", zap.Error(err))
	}

	runs := tick(a.cfg.Pipeline.Interval)
	purges := tick(a.cfg.SmartGuess.PurgeInterval)
	defer runs.Stop()
	defer purges.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-runs.C:
			if err := a.Pipeline.Run(ctx); err != nil && !errors.Is(err, pipeline.ErrPipelineBusy) {
				a.logger.Warn("scheduled pipeline run failed", zap.Error(err))
			}
		case <-purges.C:
			if _, err := a.Purge(ctx); err != nil {
				a.logger.Warn("scheduled purge failed", zap.Error(err))
			}
		}
	}
}

// ticker whose channel never fires for a non-positive interval
type ticker struct {
	C <-chan time.Time
	t *time.Ticker
}

func tick(interval time.Duration) ticker {
	if interval <= 0 {
		return ticker{}
	}
	t := time.NewTicker(interval)
	return ticker{C: t.C, t: t}
}

func (t ticker) Stop() {
	if t.t != nil {
		t.t.Stop()
	}
}

// Serve runs the event buffer, the scheduler and the HTTP server until ctx is done
func (a *App) Serve(ctx context.Context) error {
	go a.Buffer.Run(ctx, a.Source)
	go a.Schedule(ctx)

	srv := &http.Server{
		Addr:         a.cfg.Port,
		Handler:      a.Router(ctx),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		a.logger.Info("server starting", zap.String("address", a.cfg.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	a.logger.Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}
	return nil
}
