package cache

import (
	"context"
	"fmt"
	"log/slog"
)

// SafeInvalidatePattern safely invalidates cache pattern with logging
func SafeInvalidatePattern(ctx context.Context, helper *CacheHelper, pattern string) {
	if err := helper.InvalidatePattern(ctx, pattern); err != nil {
		slog.ErrorContext(ctx, "Failed to invalidate cache pattern",
			"error", err,
			"pattern", pattern)
	}
}

// SafeDelete safely deletes cache keys with logging
func SafeDelete(ctx context.Context, helper *CacheHelper, keys ...string) {
	if err := helper.Delete(ctx, keys...); err != nil {
		slog.ErrorContext(ctx, "Failed to delete cache keys",
			"error", err,
			"keys", keys)
	}
}

func QuestionKey(questionID uint) string {
	return fmt.Sprintf("id:%d", questionID)
}

func ChallengeExistsKey(challengeID uint) string {
	return fmt.Sprintf("challenge:%d", challengeID)
}

func SchoolStatsKey(schoolID uint, questionID *uint) string {
	if questionID == nil {
		return fmt.Sprintf("school:%d:all", schoolID)
	}
	return fmt.Sprintf("school:%d:question:%d", schoolID, *questionID)
}

// InvalidateQuestionCache drops the cached question, its parent, and every
// school statistic derived from it
func InvalidateQuestionCache(ctx context.Context, cm *CacheManager, questionID uint, parentID *uint) {
	keys := []string{QuestionKey(questionID)}
	if parentID != nil {
		keys = append(keys, QuestionKey(*parentID))
	}
	SafeDelete(ctx, cm.Question, keys...)
	SafeInvalidatePattern(ctx, cm.Stats, "school:*")
}

// InvalidateSchoolStats drops cached statistics for one school
func InvalidateSchoolStats(ctx context.Context, cm *CacheManager, schoolID uint) {
	SafeInvalidatePattern(ctx, cm.Stats, fmt.Sprintf("school:%d:*", schoolID))
}
