package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"github.com/SAP-F-2025/challenge-service/internal/cache"
	"github.com/SAP-F-2025/challenge-service/internal/repositories"
)

const defaultTxMaxRetries = 5

// PostgreSQLRepository implements the main Repository interface
type PostgreSQLRepository struct {
	db           *gorm.DB
	redisClient  *redis.Client
	cacheManager *cache.CacheManager
	scope        *cacheScope
	maxRetries   int

	// Repository instances
	question  repositories.QuestionRepository
	answer    repositories.AnswerRepository
	challenge repositories.ChallengeRepository
	school    repositories.SchoolRepository
	student   repositories.StudentRepository
}

// RepositoryConfig holds configuration for repository initialization
type RepositoryConfig struct {
	DB           *gorm.DB
	RedisClient  *redis.Client
	TxMaxRetries int
}

// NewPostgreSQLRepository creates a new repository manager with all sub-repositories
func NewPostgreSQLRepository(config RepositoryConfig) repositories.Repository {
	maxRetries := config.TxMaxRetries
	if maxRetries <= 0 {
		maxRetries = defaultTxMaxRetries
	}

	cacheManager := cache.NewCacheManager(config.RedisClient)
	return newRepository(config.DB, config.RedisClient, cacheManager, newLiveScope(cacheManager), maxRetries)
}

func newRepository(db *gorm.DB, redisClient *redis.Client, cacheManager *cache.CacheManager, scope *cacheScope, maxRetries int) *PostgreSQLRepository {
	return &PostgreSQLRepository{
		db:           db,
		redisClient:  redisClient,
		cacheManager: cacheManager,
		scope:        scope,
		maxRetries:   maxRetries,
		question:     newQuestionPostgreSQL(db, scope),
		answer:       newAnswerPostgreSQL(db, scope),
		challenge:    newChallengePostgreSQL(db, scope),
		school:       NewSchoolPostgreSQL(db),
		student:      NewStudentPostgreSQL(db),
	}
}

// Question returns the question repository
func (r *PostgreSQLRepository) Question() repositories.QuestionRepository {
	return r.question
}

// Answer returns the answer repository
func (r *PostgreSQLRepository) Answer() repositories.AnswerRepository {
	return r.answer
}

func (r *PostgreSQLRepository) Challenge() repositories.ChallengeRepository {
	return r.challenge
}

func (r *PostgreSQLRepository) School() repositories.SchoolRepository {
	return r.school
}

func (r *PostgreSQLRepository) Student() repositories.StudentRepository {
	return r.student
}

// WithTransaction executes a function within a database transaction. Cache
// invalidations made by fn run after the commit.
func (r *PostgreSQLRepository) WithTransaction(ctx context.Context, fn func(repositories.Repository) error) error {
	return r.transaction(ctx, fn)
}

// WithSerializableTransaction executes fn in a SERIALIZABLE transaction and
// retries it with backoff while the failure is a serialization conflict
func (r *PostgreSQLRepository) WithSerializableTransaction(ctx context.Context, fn func(repositories.Repository) error) error {
	var err error
	for attempt := 1; attempt <= r.maxRetries; attempt++ {
		err = r.transaction(ctx, fn, &sql.TxOptions{Isolation: sql.LevelSerializable})

		if err == nil || !repositories.IsRetryableError(err) {
			return err
		}

		backoff := time.Duration(attempt*attempt) * 10 * time.Millisecond
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff):
		}
	}

	return fmt.Errorf("transaction failed after %d attempts: %w", r.maxRetries, err)
}

// transaction runs fn against repositories bound to one transaction. A nested
// call joins the outer scope, whose commit flushes the cache.
func (r *PostgreSQLRepository) transaction(ctx context.Context, fn func(repositories.Repository) error, opts ...*sql.TxOptions) error {
	scope := r.scope
	if !scope.inTx {
		scope = newTxScope(r.cacheManager)
	}

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(newRepository(tx, r.redisClient, r.cacheManager, scope, r.maxRetries))
	}, opts...)

	if r.scope.inTx {
		return err
	}
	if err != nil {
		scope.discard()
		return err
	}
	scope.flush(ctx)
	return nil
}

// Ping checks the health of database and cache connections
func (r *PostgreSQLRepository) Ping(ctx context.Context) error {
	sqlDB, err := r.db.DB()
	if err != nil {
		return fmt.Errorf("failed to get database instance: %w", err)
	}

	if err := sqlDB.PingContext(ctx); err != nil {
		return fmt.Errorf("database ping failed: %w", err)
	}

	if r.redisClient != nil {
		if err := r.cacheManager.HealthCheck(ctx); err != nil {
			return fmt.Errorf("cache ping failed: %w", err)
		}
	}

	return nil
}

// Close closes all connections
func (r *PostgreSQLRepository) Close() error {
	sqlDB, err := r.db.DB()
	if err != nil {
		return fmt.Errorf("failed to get database instance: %w", err)
	}

	if err := sqlDB.Close(); err != nil {
		return fmt.Errorf("failed to close database: %w", err)
	}

	if r.redisClient != nil {
		if err := r.redisClient.Close(); err != nil {
			return fmt.Errorf("failed to close Redis: %w", err)
		}
	}

	return nil
}

// RepositoryManager implements the RepositoryManager interface
type RepositoryManager struct {
	config RepositoryConfig
	repo   repositories.Repository
}

// NewRepositoryManager creates a new repository manager
func NewRepositoryManager(config RepositoryConfig) repositories.RepositoryManager {
	return &RepositoryManager{
		config: config,
	}
}

// Initialize initializes all repositories and connections
func (rm *RepositoryManager) Initialize() error {
	if rm.config.DB == nil {
		return fmt.Errorf("database connection is required")
	}

	sqlDB, err := rm.config.DB.DB()
	if err != nil {
		return fmt.Errorf("failed to get database instance: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := sqlDB.PingContext(ctx); err != nil {
		return fmt.Errorf("database connection failed: %w", err)
	}

	if rm.config.RedisClient != nil {
		if _, err := rm.config.RedisClient.Ping(ctx).Result(); err != nil {
			return fmt.Errorf("redis connection failed: %w", err)
		}
	}

	rm.repo = NewPostgreSQLRepository(rm.config)

	return nil
}

// GetRepository returns the repository instance
func (rm *RepositoryManager) GetRepository() repositories.Repository {
	return rm.repo
}

// HealthCheck checks the health of all repository connections
func (rm *RepositoryManager) HealthCheck(ctx context.Context) error {
	if rm.repo == nil {
		return fmt.Errorf("repository not initialized")
	}

	return rm.repo.Ping(ctx)
}

// Shutdown gracefully shuts down all repository connections
func (rm *RepositoryManager) Shutdown(ctx context.Context) error {
	if rm.repo == nil {
		return nil
	}

	return rm.repo.Close()
}
