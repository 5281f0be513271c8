package pkg

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/SAP-F-2025/challenge-service/internal/config"
	"github.com/SAP-F-2025/challenge-service/internal/models"
)

// positionIndexes back the position sequencer: a root question's position is
// unique per (challenge, stage), a sub-question's per parent. Deleted rows
// leave the scope.
var positionIndexes = []string{
	`CREATE UNIQUE INDEX IF NOT EXISTS idx_questions_root_position
		ON questions (challenge_id, stage, position)
		WHERE parent_question_id IS NULL AND lifecycle <> 'deleted'`,
	`CREATE UNIQUE INDEX IF NOT EXISTS idx_questions_sub_position
		ON questions (parent_question_id, position)
		WHERE parent_question_id IS NOT NULL AND lifecycle <> 'deleted'`,
}

// InitDatabase opens the PostgreSQL connection pool and migrates the schema
func InitDatabase(cfg *config.Config) (*gorm.DB, error) {
	logLevel := logger.Warn
	if cfg.Environment == "development" {
		logLevel = logger.Info
	}

	db, err := gorm.Open(postgres.Open(cfg.DatabaseURL), &gorm.Config{
		Logger: logger.Default.LogMode(logLevel),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get database instance: %w", err)
	}
	sqlDB.SetMaxOpenConns(cfg.DBMaxOpenConns)
	sqlDB.SetMaxIdleConns(cfg.DBMaxIdleConns)
	sqlDB.SetConnMaxLifetime(cfg.DBConnMaxLife)

	if err := Migrate(db); err != nil {
		return nil, err
	}

	return db, nil
}

// Migrate creates or updates tables and the partial unique indexes
func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(
		&models.School{},
		&models.Student{},
		&models.Challenge{},
		&models.Question{},
		&models.QuestionMedia{},
		&models.StudentAnswer{},
	); err != nil {
		return fmt.Errorf("failed to migrate schema: %w", err)
	}

	for _, stmt := range positionIndexes {
		if err := db.Exec(stmt).Error; err != nil {
			return fmt.Errorf("failed to create position index: %w", err)
		}
	}

	return nil
}

// NewRedisClient connects to Redis using REDIS_URL
func NewRedisClient(cfg *config.Config) (*redis.Client, error) {
	opts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("invalid redis url: %w", err)
	}

	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to ping redis: %w", err)
	}

	return client, nil
}
