package postgres

import (
	"github.com/SAP-F-2025/challenge-service/internal/models"
	"github.com/SAP-F-2025/challenge-service/internal/repositories"
	"gorm.io/gorm"
)

// SharedHelpers contains common query building used by the question and
// answer repositories
type SharedHelpers struct {
	db *gorm.DB
}

func NewSharedHelpers(db *gorm.DB) *SharedHelpers {
	return &SharedHelpers{db: db}
}

// ScopeActiveRoots restricts a question query to listable questions: active
// and not a sub-question
func (h *SharedHelpers) ScopeActiveRoots(query *gorm.DB) *gorm.DB {
	return query.Where("lifecycle = ? AND parent_question_id IS NULL", models.LifecycleActive)
}

// ApplyQuestionFilters applies the optional list filters
func (h *SharedHelpers) ApplyQuestionFilters(query *gorm.DB, filters repositories.QuestionFilters) *gorm.DB {
	if filters.ChallengeID != nil {
		query = query.Where("challenge_id = ?", *filters.ChallengeID)
	}
	if filters.Stage != nil {
		query = query.Where("stage = ?", *filters.Stage)
	}
	if filters.Type != nil {
		query = query.Where("type = ?", *filters.Type)
	}
	if filters.Search != "" {
		query = query.Where("text ILIKE ?", "%"+filters.Search+"%")
	}
	return query
}

// ApplyPaginationAndSort applies pagination and sorting with SQL injection protection
func (h *SharedHelpers) ApplyPaginationAndSort(query *gorm.DB, sortBy, sortOrder string, limit, offset int) *gorm.DB {
	// Whitelist allowed sort columns
	allowedSortColumns := map[string]bool{
		"position":   true,
		"created_at": true,
		"points":     true,
		"id":         true,
	}

	if sortBy == "" || !allowedSortColumns[sortBy] {
		sortBy = "position"
	}

	if sortOrder == "desc" || sortOrder == "DESC" {
		sortOrder = "DESC"
	} else {
		sortOrder = "ASC"
	}

	query = query.Order(sortBy + " " + sortOrder).Order("id ASC")

	if limit > 0 {
		query = query.Limit(limit)
	}
	if offset > 0 {
		query = query.Offset(offset)
	}

	return query
}
