package services

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/SAP-F-2025/challenge-service/internal/events"
	"github.com/SAP-F-2025/challenge-service/internal/metrics"
	"github.com/SAP-F-2025/challenge-service/internal/repositories"
	"github.com/SAP-F-2025/challenge-service/internal/validator"
)

// Dependencies holds everything the services are built from
type Dependencies struct {
	Repo        repositories.Repository
	Logger      *slog.Logger
	Validator   *validator.Validator
	MediaStore  MediaStore
	Adjudicator Adjudicator
	Publisher   events.EventPublisher
	Metrics     *metrics.Metrics
}

// serviceManager implements ServiceManager interface
type serviceManager struct {
	deps     Dependencies
	registry *ContentRegistry

	// Service instances
	questionService QuestionService
	answerService   AnswerService
	statsService    StatsService

	// Lifecycle management
	initialized bool
	shutdown    bool
	mu          sync.RWMutex
}

// NewServiceManager creates a new service manager with all dependencies
func NewServiceManager(deps Dependencies) ServiceManager {
	return &serviceManager{
		deps:     deps,
		registry: NewContentRegistry(),
	}
}

// Initialize sets up all services and their dependencies
func (sm *serviceManager) Initialize(ctx context.Context) error {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	if sm.initialized {
		return nil
	}

	d := sm.deps
	if d.Repo == nil {
		return fmt.Errorf("failed to initialize services: repository is required")
	}
	if d.Logger == nil {
		d.Logger = slog.Default()
	}
	if d.Validator == nil {
		d.Validator = validator.New()
	}

	d.Logger.Info("Initializing service manager")

	sm.questionService = NewQuestionService(d.Repo, d.Logger, d.Validator, sm.registry, d.MediaStore, d.Publisher, d.Metrics)
	sm.answerService = NewAnswerService(d.Repo, d.Logger, d.Validator, sm.registry, d.MediaStore, d.Adjudicator, d.Publisher, d.Metrics)
	sm.statsService = NewStatsService(d.Repo, d.Logger)

	if d.MediaStore == nil {
		d.Logger.Warn("No media store configured; media uploads and audio answers will fail")
	}
	if d.Adjudicator == nil {
		d.Logger.Warn("No adjudicator configured; IA questions cannot be answered")
	}

	sm.deps = d
	sm.initialized = true
	d.Logger.Info("Service manager initialized successfully")

	return nil
}

// Service getters
func (sm *serviceManager) Question() QuestionService {
	sm.mu.RLock()
	defer sm.mu.RUnlock()

	if !sm.initialized {
		panic("service manager not initialized")
	}
	return sm.questionService
}

func (sm *serviceManager) Answer() AnswerService {
	sm.mu.RLock()
	defer sm.mu.RUnlock()

	if !sm.initialized {
		panic("service manager not initialized")
	}
	return sm.answerService
}

func (sm *serviceManager) Stats() StatsService {
	sm.mu.RLock()
	defer sm.mu.RUnlock()

	if !sm.initialized {
		panic("service manager not initialized")
	}
	return sm.statsService
}

func (sm *serviceManager) Registry() *ContentRegistry {
	return sm.registry
}

// Health and lifecycle
func (sm *serviceManager) HealthCheck(ctx context.Context) error {
	sm.mu.RLock()
	defer sm.mu.RUnlock()

	if !sm.initialized {
		return fmt.Errorf("service manager not initialized")
	}

	if sm.shutdown {
		return fmt.Errorf("service manager is shut down")
	}

	if err := sm.deps.Repo.Ping(ctx); err != nil {
		return fmt.Errorf("repository health check failed: %w", err)
	}

	return nil
}

func (sm *serviceManager) Shutdown(ctx context.Context) error {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	if sm.shutdown || !sm.initialized {
		return nil
	}

	sm.deps.Logger.Info("Shutting down service manager")

	if sm.deps.Publisher != nil {
		if err := sm.deps.Publisher.Close(); err != nil {
			sm.deps.Logger.Error("Failed to close event publisher", "error", err)
		}
	}

	sm.shutdown = true
	sm.deps.Logger.Info("Service manager shut down completed")

	return nil
}
