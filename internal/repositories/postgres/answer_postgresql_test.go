package postgres

import (
	"context"
	"testing"

	"github.com/SAP-F-2025/challenge-service/internal/models"
)

func TestAnswerPostgreSQL_Attempts(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	questions := NewQuestionPostgreSQL(db, bypassCache)
	answers := NewAnswerPostgreSQL(db, bypassCache)
	seedSchool(t, db, 1, 10, 11)

	q := mustCreate(t, questions, rootQuestion(models.StageGrammar, 1))
	for _, a := range []*models.StudentAnswer{newAnswer(q, 10, 2, true), newAnswer(q, 10, 1, false), newAnswer(q, 11, 1, true)} {
		if err := answers.Create(ctx, nil, a); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}

	if err := answers.Create(ctx, nil, newAnswer(q, 10, 2, false)); err == nil {
		t.Error("a second answer with the same attempt number was accepted")
	}

	count, err := answers.CountByQuestionAndStudent(ctx, nil, q.ID, 10)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if count != 2 {
		t.Errorf("count = %d, want 2", count)
	}

	history, err := answers.GetByQuestionAndStudent(ctx, nil, q.ID, 10)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(history) != 2 || history[0].AttemptNumber != 1 || history[1].AttemptNumber != 2 {
		t.Errorf("history not in attempt order: %+v", history)
	}
}

func TestAnswerPostgreSQL_GetSchoolAggregates(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	questions := NewQuestionPostgreSQL(db, bypassCache)
	answers := NewAnswerPostgreSQL(db, bypassCache)
	seedSchool(t, db, 1, 10, 11)
	seedSchool(t, db, 2, 20)

	popular := mustCreate(t, questions, rootQuestion(models.StageGrammar, 1))
	quiet := mustCreate(t, questions, rootQuestion(models.StageGrammar, 2))
	retired := mustCreate(t, questions, rootQuestion(models.StageGrammar, 3))

	recorded := []*models.StudentAnswer{
		newAnswer(popular, 10, 1, false), // 10s
		newAnswer(popular, 10, 2, true),  // 20s
		newAnswer(popular, 11, 1, true),  // 10s
		newAnswer(quiet, 11, 1, false),
		newAnswer(retired, 10, 1, true),
		newAnswer(popular, 20, 1, true),
	}
	for _, a := range recorded {
		if err := answers.Create(ctx, nil, a); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if err := questions.UpdateLifecycle(ctx, nil, retired.ID, models.LifecycleInactive); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	t.Run("whole school", func(t *testing.T) {
		rows, err := answers.GetSchoolAggregates(ctx, nil, 1, nil)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(rows) != 2 {
			t.Fatalf("got %d rows, want 2 (inactive question excluded): %+v", len(rows), rows)
		}

		top := rows[0]
		if top.QuestionID != popular.ID || top.TotalAttempts != 3 || top.CorrectAnswers != 2 {
			t.Errorf("top row = %+v, want question %d with 3 attempts and 2 correct", top, popular.ID)
		}
		if top.AvgTimeSpent < 13.3 || top.AvgTimeSpent > 13.4 {
			t.Errorf("avg time spent = %f, want about 13.33", top.AvgTimeSpent)
		}
		if top.Stage != models.StageGrammar || top.QuestionType != models.TagIt || top.ChallengeID != 1 {
			t.Errorf("question columns not mapped: %+v", top)
		}
		if rows[1].QuestionID != quiet.ID || rows[1].TotalAttempts != 1 || rows[1].CorrectAnswers != 0 {
			t.Errorf("second row = %+v", rows[1])
		}
	})

	t.Run("single question", func(t *testing.T) {
		id := quiet.ID
		rows, err := answers.GetSchoolAggregates(ctx, nil, 1, &id)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(rows) != 1 || rows[0].QuestionID != quiet.ID {
			t.Errorf("got %+v, want only question %d", rows, quiet.ID)
		}
	})

	t.Run("other school", func(t *testing.T) {
		rows, err := answers.GetSchoolAggregates(ctx, nil, 2, nil)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(rows) != 1 || rows[0].TotalAttempts != 1 {
			t.Errorf("got %+v, want one question with one attempt", rows)
		}
	})
}
