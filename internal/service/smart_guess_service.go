package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/jengzang/daytrail-backend-go/internal/knn"
	"github.com/jengzang/daytrail-backend-go/internal/metrics"
	"github.com/jengzang/daytrail-backend-go/internal/models"
	"github.com/jengzang/daytrail-backend-go/internal/repository"
	"github.com/jengzang/daytrail-backend-go/internal/spatial"
)

// SmartGuessConfig tunes the classifier behind SmartGuessService.Get
type SmartGuessConfig struct {
	K           int     // neighbors consulted
	MaxDistance float64 // meters; guesses further away are ignored
	Decision    knn.DecisionType
}

// DefaultSmartGuessConfig returns the default classifier settings
func DefaultSmartGuessConfig() SmartGuessConfig {
	return SmartGuessConfig{
		K:           3,
		MaxDistance: 100,
		Decision:    knn.MinAverageDistance,
	}
}

// SmartGuessService answers "what category does the user usually pick near here?"
type SmartGuessService struct {
	repo        repository.Persistency[models.SmartGuess]
	timeService TimeService
	cfg         SmartGuessConfig
	metrics     *metrics.Collector
	logger      *zap.Logger
}

// NewSmartGuessService creates a new smart guess service
func NewSmartGuessService(
	repo repository.Persistency[models.SmartGuess],
	timeService TimeService,
	cfg SmartGuessConfig,
	collector *metrics.Collector,
	logger *zap.Logger,
) *SmartGuessService {
	return &SmartGuessService{
		repo:        repo,
		timeService: timeService,
		cfg:         cfg,
		metrics:     collector,
		logger:      logger.Named("smart_guess"),
	}
}

// Get classifies location against the stored guesses. It returns nil when
// no stored guess lies within the configured distance.
func (s *SmartGuessService) Get(ctx context.Context, location models.Location) (*models.SmartGuess, error) {
	box := spatial.BoundingBox(location.Latitude, location.Longitude, s.cfg.MaxDistance)
	candidates, err := s.repo.Get(ctx, repository.SmartGuessesWithin(box))
	if err != nil {
		s.logger.Error("failed to load smart guesses", zap.Error(err))
		return nil, fmt.Errorf("failed to load smart guesses: %w", err)
	}

	dataset := candidates[:0]
	for _, c := range candidates {
		if c.Location.DistanceTo(location) <= s.cfg.MaxDistance {
			dataset = append(dataset, c)
		}
	}

	test := models.SmartGuess{Location: location, LastUsed: location.Timestamp}
	best, ok := knn.Classify[models.SmartGuess, models.Category](test, s.cfg.K, dataset, s.cfg.Decision)
	s.metrics.RecordSmartGuessLookup(ok)
	if !ok {
		return nil, nil
	}
	return &best, nil
}

// GetByID returns one guess, or nil when it does not exist
func (s *SmartGuessService) GetByID(ctx context.Context, id string) (*models.SmartGuess, error) {
	guesses, err := s.repo.Get(ctx, repository.SmartGuessByID(id))
	if err != nil {
		return nil, fmt.Errorf("failed to load smart guess: %w", err)
	}
	if len(guesses) == 0 {
		return nil, nil
	}
	return &guesses[0], nil
}

// GetAll returns every stored guess, least recently used first
func (s *SmartGuessService) GetAll(ctx context.Context) ([]models.SmartGuess, error) {
	return s.repo.Get(ctx, repository.All())
}

// Add records that the user picked category at location
func (s *SmartGuessService) Add(ctx context.Context, category models.Category, location models.Location) (*models.SmartGuess, error) {
	guess := models.SmartGuess{
		ID:         uuid.NewString(),
		Category:   category,
		Location:   location,
		LastUsed:   s.timeService.Now(),
		ErrorCount: 0,
	}

	if err := s.repo.Create(ctx, guess); err != nil {
		s.logger.Error("failed to add smart guess", zap.String("category", string(category)), zap.Error(err))
		return nil, fmt.Errorf("failed to add smart guess: %w", err)
	}

	s.logger.Debug("smart guess added", zap.String("id", guess.ID), zap.String("category", string(category)))
	return &guess, nil
}

// MarkAsUsed sets the guess's last use to at. ErrorCount is left untouched.
func (s *SmartGuessService) MarkAsUsed(ctx context.Context, guess models.SmartGuess, at time.Time) (*models.SmartGuess, error) {
	updated, err := s.repo.Update(ctx, repository.SmartGuessByID(guess.ID), func(g models.SmartGuess) models.SmartGuess {
		return g.WithLastUsed(at)
	})
	if err != nil {
		s.logger.Error("failed to mark smart guess as used", zap.String("id", guess.ID), zap.Error(err))
		return nil, fmt.Errorf("failed to mark smart guess as used: %w", err)
	}
	return updated, nil
}

// Strike records that the guess produced a wrong category. A guess reaching
// MaxSmartGuessErrorCount strikes is deleted. Unknown ids are ignored.
func (s *SmartGuessService) Strike(ctx context.Context, id string) error {
	updated, err := s.repo.Update(ctx, repository.SmartGuessByID(id), func(g models.SmartGuess) models.SmartGuess {
		return g.WithErrorCount(g.ErrorCount + 1)
	})
	if err != nil {
		s.logger.Error("failed to strike smart guess", zap.String("id", id), zap.Error(err))
		return fmt.Errorf("failed to strike smart guess: %w", err)
	}
	if updated == nil {
		return nil
	}

	if updated.ErrorCount < models.MaxSmartGuessErrorCount {
		return nil
	}

	if _, err := s.repo.Delete(ctx, repository.SmartGuessByID(id)); err != nil {
		s.logger.Error("failed to evict smart guess", zap.String("id", id), zap.Error(err))
		return fmt.Errorf("failed to evict smart guess: %w", err)
	}
	s.metrics.RecordSmartGuessEviction()
	s.logger.Info("smart guess evicted", zap.String("id", id), zap.Int("error_count", updated.ErrorCount))
	return nil
}

// PurgeEntries deletes every guess last used before olderThan
func (s *SmartGuessService) PurgeEntries(ctx context.Context, olderThan time.Time) (int64, error) {
	n, err := s.repo.Delete(ctx, repository.SmartGuessesUsedBefore(olderThan))
	if err != nil {
		s.logger.Error("failed to purge smart guesses", zap.Time("older_than", olderThan), zap.Error(err))
		return 0, fmt.Errorf("failed to purge smart guesses: %w", err)
	}

	s.metrics.RecordSmartGuessesPurged(n)
	s.logger.Info("smart guesses purged", zap.Int64("count", n), zap.Time("older_than", olderThan))
	return n, nil
}
