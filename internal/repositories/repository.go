package repositories

import "context"

// Repository aggregates the repositories of the challenge domain
type Repository interface {
	// Question domain
	Question() QuestionRepository
	Answer() AnswerRepository

	// Reference data owned by other services, read-only here
	Challenge() ChallengeRepository
	School() SchoolRepository
	Student() StudentRepository

	// Transaction support
	WithTransaction(ctx context.Context, fn func(Repository) error) error

	// WithSerializableTransaction runs fn at SERIALIZABLE isolation and re-runs
	// it when the database reports a serialization failure or a unique
	// violation. fn must therefore be safe to repeat.
	WithSerializableTransaction(ctx context.Context, fn func(Repository) error) error

	// Health check
	Ping(ctx context.Context) error

	// Close connections
	Close() error
}

// RepositoryManager interface for managing repository lifecycle
type RepositoryManager interface {
	Initialize() error
	GetRepository() Repository
	HealthCheck(ctx context.Context) error
	Shutdown(ctx context.Context) error
}
