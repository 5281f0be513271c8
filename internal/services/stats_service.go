package services

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"math"
	"sort"

	"github.com/SAP-F-2025/challenge-service/internal/models"
	"github.com/SAP-F-2025/challenge-service/internal/repositories"
	"github.com/xuri/excelize/v2"
)

const statsSheet = "School stats"

var statsHeader = []interface{}{
	"Question ID", "Question", "Type", "Stage", "Challenge ID",
	"Total attempts", "Correct answers", "Average time (s)", "Success rate (%)",
}

type statsService struct {
	repo   repositories.Repository
	logger *slog.Logger
}

func NewStatsService(repo repositories.Repository, logger *slog.Logger) StatsService {
	return &statsService{
		repo:   repo,
		logger: logger,
	}
}

func (s *statsService) GetSchoolStats(ctx context.Context, schoolID uint, questionID *uint) ([]models.QuestionSchoolStats, error) {
	exists, err := s.repo.School().Exists(ctx, nil, schoolID)
	if err != nil {
		return nil, fmt.Errorf("failed to check school: %w", err)
	}
	if !exists {
		return nil, ErrSchoolNotFound
	}

	aggregates, err := s.repo.Answer().GetSchoolAggregates(ctx, nil, schoolID, questionID)
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate school answers: %w", err)
	}

	stats := make([]models.QuestionSchoolStats, 0, len(aggregates))
	for _, a := range aggregates {
		stats = append(stats, toSchoolStats(a))
	}

	sort.SliceStable(stats, func(i, j int) bool {
		return stats[i].TotalAttempts > stats[j].TotalAttempts
	})

	s.logger.Debug("School stats computed", "school_id", schoolID, "questions", len(stats))
	return stats, nil
}

// ExportSchoolStats writes the school stats as an xlsx workbook
func (s *statsService) ExportSchoolStats(ctx context.Context, schoolID uint, questionID *uint, w io.Writer) error {
	stats, err := s.GetSchoolStats(ctx, schoolID, questionID)
	if err != nil {
		return err
	}

	f := excelize.NewFile()
	defer func() {
		if err := f.Close(); err != nil {
			s.logger.Warn("Failed to close workbook", "error", err)
		}
	}()

	if err := f.SetSheetName("Sheet1", statsSheet); err != nil {
		return fmt.Errorf("failed to name sheet: %w", err)
	}
	if err := f.SetSheetRow(statsSheet, "A1", &statsHeader); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}

	for i, st := range stats {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		row := []interface{}{
			st.QuestionID, st.QuestionText, string(st.QuestionType), string(st.Stage), st.ChallengeID,
			st.TotalAttempts, st.CorrectAnswers, st.AverageTime, st.SuccessRate,
		}
		if err := f.SetSheetRow(statsSheet, cell, &row); err != nil {
			return fmt.Errorf("failed to write row %d: %w", i+2, err)
		}
	}

	if err := f.Write(w); err != nil {
		return fmt.Errorf("failed to write workbook: %w", err)
	}
	return nil
}

func toSchoolStats(a repositories.SchoolQuestionAggregate) models.QuestionSchoolStats {
	st := models.QuestionSchoolStats{
		QuestionID:     a.QuestionID,
		QuestionText:   a.QuestionText,
		QuestionType:   a.QuestionType,
		Stage:          a.Stage,
		ChallengeID:    a.ChallengeID,
		TotalAttempts:  a.TotalAttempts,
		CorrectAnswers: a.CorrectAnswers,
	}
	if a.TotalAttempts > 0 {
		st.AverageTime = int64(math.Round(a.AvgTimeSpent))
		st.SuccessRate = math.Round(float64(a.CorrectAnswers)/float64(a.TotalAttempts)*100*100) / 100
	}
	return st
}
