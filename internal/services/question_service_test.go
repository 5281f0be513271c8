package services

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/SAP-F-2025/challenge-service/internal/events"
	"github.com/SAP-F-2025/challenge-service/internal/models"
)

func imageQuestion(challengeID uint) *models.QuestionCreateRequest {
	return &models.QuestionCreateRequest{
		ChallengeID: challengeID,
		Type:        models.ImageToMultipleChoices,
		Text:        "What animal is this?",
		Points:      10,
		Content:     raw(`"https://cdn.test/cat.png"`),
		Options:     raw(`["cat","dog","bird","fish"]`),
		Answer:      raw(`"cat"`),
	}
}

func readItQuestion(challengeID uint) *models.QuestionCreateRequest {
	return &models.QuestionCreateRequest{
		ChallengeID: challengeID,
		Type:        models.ReadIt,
		Text:        "Read and answer",
		Content:     raw(`"Tom has a red bike. He rides it every day."`),
		SubQuestions: raw(`[
			{"content":"Tom has a bike","options":[true,false],"answer":true,"points":5},
			{"content":"Tom never rides","options":[true,false],"answer":false,"points":7}
		]`),
	}
}

func TestQuestionService_Create(t *testing.T) {
	ctx := context.Background()

	t.Run("first question of a stage", func(t *testing.T) {
		env := newTestEnv()

		q, err := env.questions.Create(ctx, imageQuestion(1), "teacher-1")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if q.Position != 1 {
			t.Errorf("position = %d, want 1", q.Position)
		}
		if q.Stage != models.StageVocabulary {
			t.Errorf("stage = %s, want VOCABULARY", q.Stage)
		}
		if q.ValidationMethod != models.ValidationAuto {
			t.Errorf("validation method = %s, want AUTO", q.ValidationMethod)
		}
		if q.MaxAttempts != 1 {
			t.Errorf("max attempts = %d, want 1", q.MaxAttempts)
		}
		if string(q.Answer) != `"cat"` || string(q.Options) != `["cat","dog","bird","fish"]` {
			t.Errorf("unexpected columns answer=%s options=%s", q.Answer, q.Options)
		}

		published := env.publisher.GetPublishedEvents()
		if len(published) != 1 || published[0].Type != events.QuestionCreated {
			t.Errorf("expected one question.created event, got %+v", published)
		}
	})

	t.Run("positions follow within a stage", func(t *testing.T) {
		env := newTestEnv()
		for want := 1; want <= 3; want++ {
			q, err := env.questions.Create(ctx, imageQuestion(1), "teacher-1")
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if q.Position != want {
				t.Errorf("position = %d, want %d", q.Position, want)
			}
		}

		// another stage starts its own sequence
		req := &models.QuestionCreateRequest{
			ChallengeID: 1,
			Type:        models.Tenses,
			Text:        "Pick the tense",
			Content:     raw(`"She ___ to school"`),
			Options:     raw(`["goes","went"]`),
			Answer:      raw(`"goes"`),
		}
		q, err := env.questions.Create(ctx, req, "teacher-1")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if q.Position != 1 || q.Stage != models.StageGrammar {
			t.Errorf("got position %d stage %s", q.Position, q.Stage)
		}
	})

	t.Run("composite parent sums sub-question points", func(t *testing.T) {
		env := newTestEnv()

		q, err := env.questions.Create(ctx, readItQuestion(1), "teacher-1")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if q.Points != 12 {
			t.Errorf("points = %d, want 12", q.Points)
		}
		if len(q.SubQuestions) != 2 {
			t.Fatalf("expected 2 sub-questions, got %d", len(q.SubQuestions))
		}
		for i, sub := range q.SubQuestions {
			if sub.ParentQuestionID == nil || *sub.ParentQuestionID != q.ID {
				t.Errorf("sub-question %d not linked to parent", i)
			}
			if sub.Position != i+1 || sub.MaxAttempts != 0 || sub.TimeLimit != 0 {
				t.Errorf("sub-question %d: position=%d max_attempts=%d time_limit=%d", i, sub.Position, sub.MaxAttempts, sub.TimeLimit)
			}
			if sub.ValidationMethod != models.ValidationAuto {
				t.Errorf("sub-question %d validation method = %s", i, sub.ValidationMethod)
			}
		}

		stored, err := env.questions.GetByID(ctx, q.ID)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if stored.Points != 12 || len(stored.SubQuestions) != 2 {
			t.Errorf("stored parent points=%d subs=%d", stored.Points, len(stored.SubQuestions))
		}
	})

	t.Run("failed sub-question insert persists nothing", func(t *testing.T) {
		env := newTestEnv()
		env.store.failQuestionInsert = 3

		if _, err := env.questions.Create(ctx, readItQuestion(1), "teacher-1"); err == nil {
			t.Fatal("expected error")
		}
		if len(env.store.questions) != 0 {
			t.Errorf("expected no rows, got %d", len(env.store.questions))
		}
		if len(env.publisher.GetPublishedEvents()) != 0 {
			t.Errorf("no event expected for a rolled back create")
		}
	})

	t.Run("invalid content is rejected before any write", func(t *testing.T) {
		env := newTestEnv()
		req := imageQuestion(1)
		req.Answer = raw(`"lion"`)

		_, err := env.questions.Create(ctx, req, "teacher-1")
		var structural *StructuralValidationError
		if !errors.As(err, &structural) {
			t.Fatalf("expected StructuralValidationError, got %v", err)
		}
		if !strings.Contains(err.Error(), "Answer must be one of the options") {
			t.Errorf("unexpected message %q", err.Error())
		}
		if env.store.serializableTxs != 0 {
			t.Errorf("no transaction expected, got %d", env.store.serializableTxs)
		}
	})

	t.Run("unknown challenge", func(t *testing.T) {
		env := newTestEnv()
		if _, err := env.questions.Create(ctx, imageQuestion(99), "teacher-1"); !errors.Is(err, ErrChallengeNotFound) {
			t.Errorf("expected ErrChallengeNotFound, got %v", err)
		}
	})

	t.Run("unknown challenge is reported before content errors", func(t *testing.T) {
		env := newTestEnv()
		req := imageQuestion(99)
		req.Answer = raw(`"lion"`)

		if _, err := env.questions.Create(ctx, req, "teacher-1"); !errors.Is(err, ErrChallengeNotFound) {
			t.Errorf("expected ErrChallengeNotFound, got %v", err)
		}
	})

	t.Run("wordbox records grid size", func(t *testing.T) {
		env := newTestEnv()
		req := &models.QuestionCreateRequest{
			ChallengeID: 1,
			Type:        models.Wordbox,
			Text:        "Find the words",
			Content:     raw(`[["A","B","C"],["D","E","F"]]`),
		}
		q, err := env.questions.Create(ctx, req, "teacher-1")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if w, _ := q.ConfigValue(models.ConfigGridWidth); w != "3" {
			t.Errorf("gridWidth = %q, want 3", w)
		}
		if h, _ := q.ConfigValue(models.ConfigGridHeight); h != "2" {
			t.Errorf("gridHeight = %q, want 2", h)
		}
		if q.ValidationMethod != models.ValidationIA {
			t.Errorf("validation method = %s, want IA", q.ValidationMethod)
		}
	})

	t.Run("media attached after insert", func(t *testing.T) {
		env := newTestEnv()
		req := imageQuestion(1)
		req.Media = []models.MediaFile{{FileName: "cat.png", Size: 3, Reader: strings.NewReader("png"), Context: "image"}}

		q, err := env.questions.Create(ctx, req, "teacher-1")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(q.Media) != 1 || q.Media[0].Position != 1 || q.Media[0].Context != "image" {
			t.Errorf("unexpected media %+v", q.Media)
		}
	})

	t.Run("media failure keeps the question", func(t *testing.T) {
		env := newTestEnv()
		env.media.err = errors.New("bucket unavailable")
		req := imageQuestion(1)
		req.Media = []models.MediaFile{{FileName: "cat.png", Size: 3, Reader: strings.NewReader("png"), Context: "image"}}

		q, err := env.questions.Create(ctx, req, "teacher-1")
		if !errors.Is(err, ErrMediaUploadFailed) {
			t.Fatalf("expected ErrMediaUploadFailed, got %v", err)
		}
		if q == nil || len(env.store.questions) != 1 {
			t.Errorf("question should stay persisted")
		}
	})
}

func TestQuestionService_AddSubQuestion(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv()

	parent, err := env.questions.Create(ctx, readItQuestion(1), "teacher-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	sub, err := env.questions.AddSubQuestion(ctx, parent.ID, raw(`{"content":"The bike is red","options":[true,false],"answer":true,"points":3}`), "teacher-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if sub.Position != 3 {
		t.Errorf("position = %d, want 3", sub.Position)
	}

	stored, _ := env.questions.GetByID(ctx, parent.ID)
	if stored.Points != 15 {
		t.Errorf("parent points = %d, want 15", stored.Points)
	}

	// a sub-question can never be a parent
	if _, err := env.questions.AddSubQuestion(ctx, sub.ID, raw(`{"content":"x","options":[true,false],"answer":true,"points":1}`), "teacher-1"); !errors.Is(err, ErrNestingTooDeep) {
		t.Errorf("expected ErrNestingTooDeep, got %v", err)
	}

	simple, _ := env.questions.Create(ctx, imageQuestion(1), "teacher-1")
	if _, err := env.questions.AddSubQuestion(ctx, simple.ID, raw(`{}`), "teacher-1"); !errors.Is(err, ErrNotComposite) {
		t.Errorf("expected ErrNotComposite, got %v", err)
	}

	if _, err := env.questions.AddSubQuestion(ctx, 999, raw(`{}`), "teacher-1"); !errors.Is(err, ErrParentQuestionNotFound) {
		t.Errorf("expected ErrParentQuestionNotFound, got %v", err)
	}
}

func TestQuestionService_Lifecycle(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv()

	parent, err := env.questions.Create(ctx, readItQuestion(1), "teacher-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	sub := parent.SubQuestions[1]

	if err := env.questions.UpdateLifecycle(ctx, sub.ID, models.LifecycleInactive, "teacher-1"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	stored, _ := env.questions.GetByID(ctx, parent.ID)
	if stored.Points != 5 {
		t.Errorf("parent points = %d after deactivating a sub-question, want 5", stored.Points)
	}

	if err := env.questions.UpdateLifecycle(ctx, parent.ID, models.LifecycleDeleted, "teacher-1"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := env.questions.GetByID(ctx, parent.ID); !errors.Is(err, ErrQuestionNotFound) {
		t.Errorf("deleted question should be hidden, got %v", err)
	}
	if err := env.questions.UpdateLifecycle(ctx, parent.ID, models.LifecycleActive, "teacher-1"); !errors.Is(err, ErrBadRequest) {
		t.Errorf("restoring a deleted question should fail, got %v", err)
	}
	if err := env.questions.UpdateLifecycle(ctx, parent.ID, models.Lifecycle("archived"), "teacher-1"); !errors.Is(err, ErrBadRequest) {
		t.Errorf("unknown lifecycle should fail, got %v", err)
	}

	// the deleted position is free again
	q, err := env.questions.Create(ctx, readItQuestion(1), "teacher-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if q.Position != 1 {
		t.Errorf("position = %d, want 1", q.Position)
	}
}

func TestQuestionService_ParentLifecycleKeepsDeletedSubQuestions(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv()

	parent, err := env.questions.Create(ctx, readItQuestion(1), "teacher-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	deleted := parent.SubQuestions[1]

	if err := env.questions.UpdateLifecycle(ctx, deleted.ID, models.LifecycleDeleted, "teacher-1"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for _, lifecycle := range []models.Lifecycle{models.LifecycleInactive, models.LifecycleActive} {
		if err := env.questions.UpdateLifecycle(ctx, parent.ID, lifecycle, "teacher-1"); err != nil {
			t.Fatalf("set parent %s: %v", lifecycle, err)
		}
	}

	if got := env.store.questions[deleted.ID].Lifecycle; got != models.LifecycleDeleted {
		t.Errorf("deleted sub-question lifecycle = %s after parent reactivation", got)
	}
	sum, _ := (&mockQuestionRepo{store: env.store}).SumSubQuestionPoints(ctx, nil, parent.ID)
	if stored := env.store.questions[parent.ID].Points; stored != sum || stored != 5 {
		t.Errorf("parent points = %d, active sub-question sum = %d, want 5", stored, sum)
	}

	if err := env.questions.UpdateLifecycle(ctx, parent.ID, models.LifecycleDeleted, "teacher-1"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := env.store.questions[parent.SubQuestions[0].ID].Lifecycle; got != models.LifecycleDeleted {
		t.Errorf("deleting the parent left sub-question %s", got)
	}
}

func TestQuestionService_RecalculateParentPoints(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv()

	parent, err := env.questions.Create(ctx, readItQuestion(1), "teacher-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// drift the stored total
	env.store.questions[parent.ID].Points = 1

	total, err := env.questions.RecalculateParentPoints(ctx, parent.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if total != 12 || env.store.questions[parent.ID].Points != 12 {
		t.Errorf("total = %d stored = %d, want 12", total, env.store.questions[parent.ID].Points)
	}

	var recalculated bool
	for _, e := range env.publisher.GetPublishedEvents() {
		if e.Type == events.QuestionPointsRecalculated {
			recalculated = true
		}
	}
	if !recalculated {
		t.Error("expected a question.points_recalculated event")
	}

	simple, _ := env.questions.Create(ctx, imageQuestion(1), "teacher-1")
	if _, err := env.questions.RecalculateParentPoints(ctx, simple.ID); !errors.Is(err, ErrNotComposite) {
		t.Errorf("expected ErrNotComposite, got %v", err)
	}
	if _, err := env.questions.RecalculateParentPoints(ctx, 999); !errors.Is(err, ErrQuestionNotFound) {
		t.Errorf("expected ErrQuestionNotFound, got %v", err)
	}
}

func TestQuestionService_List(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv()

	for i := 0; i < 3; i++ {
		if _, err := env.questions.Create(ctx, imageQuestion(1), "teacher-1"); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if _, err := env.questions.Create(ctx, readItQuestion(1), "teacher-1"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	page, err := env.questions.List(ctx, &models.ListQuestionsParams{Page: 0, Size: 2, Stage: models.StageVocabulary})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if page.TotalElements != 3 || page.TotalPages != 2 || page.NumberOfElements != 2 {
		t.Errorf("unexpected page %+v", page)
	}

	if _, err := env.questions.List(ctx, &models.ListQuestionsParams{Size: 500}); err == nil {
		t.Error("expected validation error for oversized page")
	}

	stage := models.StageGrammar
	grammar, err := env.questions.GetByChallenge(ctx, 1, &stage)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(grammar) != 1 || grammar[0].Type != models.ReadIt {
		t.Errorf("expected only the read_it parent, got %d questions", len(grammar))
	}

	if _, err := env.questions.GetByChallenge(ctx, 42, nil); !errors.Is(err, ErrChallengeNotFound) {
		t.Errorf("expected ErrChallengeNotFound, got %v", err)
	}
}

func TestBuildQuestion_DefaultsAndOverrides(t *testing.T) {
	registry := NewContentRegistry()
	req := imageQuestion(1)
	req.MaxAttempts = 3
	req.ValidationMethod = models.ValidationIA

	content, err := registry.Validate(req)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	spec, _ := registry.Spec(req.Type)

	q, err := buildQuestion(req, spec, content)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if q.MaxAttempts != 3 || q.ValidationMethod != models.ValidationIA {
		t.Errorf("max attempts=%d method=%s", q.MaxAttempts, q.ValidationMethod)
	}

	var image string
	if err := json.Unmarshal(q.Content, &image); err != nil || image != "https://cdn.test/cat.png" {
		t.Errorf("content column = %s", q.Content)
	}
}
