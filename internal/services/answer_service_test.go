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

func strPtr(s string) *string { return &s }

func TestAnswerService_Submit(t *testing.T) {
	ctx := context.Background()

	t.Run("correct answer is recorded", func(t *testing.T) {
		env := newTestEnv()
		env.store.addStudent("student-1", 7, 3)
		q, _ := env.questions.Create(ctx, imageQuestion(1), "teacher-1")

		result, err := env.answers.Submit(ctx, q.ID, "student-1", &models.SubmitAnswerRequest{Answer: raw(`"CAT"`), TimeSpent: 12})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !result.IsCorrect || result.PointsEarned != 10 || result.AttemptNumber != 1 || result.RemainingAttempts != 0 {
			t.Errorf("unexpected result %+v", result)
		}

		stored := env.store.answers[0]
		if stored.StudentID != 7 || stored.ChallengeID != 1 || stored.TimeSpent != 12 || string(stored.UserAnswer) != `"CAT"` {
			t.Errorf("unexpected stored answer %+v", stored)
		}

		var recorded bool
		for _, e := range env.publisher.GetPublishedEvents() {
			if e.Type == events.AnswerRecorded {
				recorded = true
			}
		}
		if !recorded {
			t.Error("expected an answer.recorded event")
		}
	})

	t.Run("attempt limit", func(t *testing.T) {
		env := newTestEnv()
		env.store.addStudent("student-1", 7, 3)
		req := imageQuestion(1)
		req.MaxAttempts = 2
		q, _ := env.questions.Create(ctx, req, "teacher-1")

		for i := 1; i <= 2; i++ {
			result, err := env.answers.Submit(ctx, q.ID, "student-1", &models.SubmitAnswerRequest{Answer: raw(`"dog"`)})
			if err != nil {
				t.Fatalf("attempt %d: unexpected error: %v", i, err)
			}
			if result.AttemptNumber != i || result.IsCorrect {
				t.Errorf("attempt %d: unexpected result %+v", i, result)
			}
		}

		_, err := env.answers.Submit(ctx, q.ID, "student-1", &models.SubmitAnswerRequest{Answer: raw(`"cat"`)})
		if !errors.Is(err, ErrAttemptLimitExceeded) {
			t.Fatalf("expected ErrAttemptLimitExceeded, got %v", err)
		}
		if err.Error() != "Maximum attempts (2) reached for this question" {
			t.Errorf("unexpected message %q", err.Error())
		}
		if len(env.store.answers) != 2 {
			t.Errorf("expected 2 stored answers, got %d", len(env.store.answers))
		}
	})

	t.Run("unknown student", func(t *testing.T) {
		env := newTestEnv()
		q, _ := env.questions.Create(ctx, imageQuestion(1), "teacher-1")

		_, err := env.answers.Submit(ctx, q.ID, "nobody", &models.SubmitAnswerRequest{Answer: raw(`"cat"`)})
		if !errors.Is(err, ErrStudentNotFound) {
			t.Errorf("expected ErrStudentNotFound, got %v", err)
		}
	})

	t.Run("unknown question", func(t *testing.T) {
		env := newTestEnv()
		env.store.addStudent("student-1", 7, 3)

		_, err := env.answers.Submit(ctx, 404, "student-1", &models.SubmitAnswerRequest{Answer: raw(`"cat"`)})
		if !errors.Is(err, ErrQuestionNotFound) {
			t.Errorf("expected ErrQuestionNotFound, got %v", err)
		}
	})

	t.Run("inactive question", func(t *testing.T) {
		env := newTestEnv()
		env.store.addStudent("student-1", 7, 3)
		q, _ := env.questions.Create(ctx, imageQuestion(1), "teacher-1")
		_ = env.questions.UpdateLifecycle(ctx, q.ID, models.LifecycleInactive, "teacher-1")

		_, err := env.answers.Submit(ctx, q.ID, "student-1", &models.SubmitAnswerRequest{Answer: raw(`"cat"`)})
		if !errors.Is(err, ErrQuestionNotAnswerable) {
			t.Errorf("expected ErrQuestionNotAnswerable, got %v", err)
		}
	})

	t.Run("missing answer", func(t *testing.T) {
		env := newTestEnv()
		env.store.addStudent("student-1", 7, 3)
		q, _ := env.questions.Create(ctx, imageQuestion(1), "teacher-1")

		_, err := env.answers.Submit(ctx, q.ID, "student-1", &models.SubmitAnswerRequest{})
		if !errors.Is(err, ErrBadRequest) {
			t.Errorf("expected ErrBadRequest, got %v", err)
		}
	})
}

func TestAnswerService_Composite(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv()
	env.store.addStudent("student-1", 7, 3)

	parentReq := readItQuestion(1)
	parentReq.MaxAttempts = 2
	parent, err := env.questions.Create(ctx, parentReq, "teacher-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	first, second := parent.SubQuestions[0], parent.SubQuestions[1]

	answer, _ := json.Marshal([]map[string]interface{}{
		{"question_id": first.ID, "answer": true},
		{"question_id": second.ID, "answer": true},
	})
	result, err := env.answers.Submit(ctx, parent.ID, "student-1", &models.SubmitAnswerRequest{Answer: answer})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.IsCorrect || result.PointsEarned != 5 {
		t.Errorf("got correct=%v points=%d, want false/5", result.IsCorrect, result.PointsEarned)
	}
	if len(result.Details) == 0 {
		t.Error("expected per sub-question details")
	}

	// sub-questions are answered through their parent
	_, err = env.answers.Submit(ctx, first.ID, "student-1", &models.SubmitAnswerRequest{Answer: raw(`true`)})
	if !errors.Is(err, ErrQuestionNotAnswerable) {
		t.Errorf("expected ErrQuestionNotAnswerable, got %v", err)
	}
}

func TestAnswerService_Adjudicated(t *testing.T) {
	ctx := context.Background()

	speaking := &models.QuestionCreateRequest{
		ChallengeID: 1,
		Type:        models.Debate,
		Text:        "Defend your position",
		Points:      20,
		MaxAttempts: 3,
		Content:     raw(`"School uniforms should be mandatory"`),
		Answer:      raw(`"support"`),
	}
	audio := func() *models.MediaFile {
		return &models.MediaFile{FileName: "answer.webm", ContentType: "audio/webm", Size: 4, Reader: strings.NewReader("webm")}
	}

	t.Run("audio is required", func(t *testing.T) {
		env := newTestEnv()
		env.store.addStudent("student-1", 7, 3)
		q, _ := env.questions.Create(ctx, speaking, "teacher-1")

		_, err := env.answers.Submit(ctx, q.ID, "student-1", &models.SubmitAnswerRequest{Answer: raw(`"hello"`)})
		if !errors.Is(err, ErrAudioRequired) {
			t.Errorf("expected ErrAudioRequired, got %v", err)
		}
		if len(env.adjudicator.requests) != 0 {
			t.Error("adjudicator should not be called")
		}
	})

	t.Run("verdict is recorded verbatim", func(t *testing.T) {
		env := newTestEnv()
		env.store.addStudent("student-1", 7, 3)
		env.adjudicator.verdict = &models.AdjudicationVerdict{
			IsCorrect:       true,
			PointsEarned:    17,
			FeedbackEnglish: strPtr("Well argued"),
			FeedbackSpanish: strPtr("Bien argumentado"),
		}
		q, _ := env.questions.Create(ctx, speaking, "teacher-1")

		result, err := env.answers.Submit(ctx, q.ID, "student-1", &models.SubmitAnswerRequest{Audio: audio(), TimeSpent: 60})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !result.IsCorrect || result.PointsEarned != 17 || *result.FeedbackSpanish != "Bien argumentado" {
			t.Errorf("unexpected result %+v", result)
		}
		if result.AudioURL == nil || !strings.HasPrefix(*result.AudioURL, "http://media.test/") {
			t.Errorf("expected audio url, got %v", result.AudioURL)
		}

		sent := env.adjudicator.requests[0]
		if sent.AudioURL == nil || *sent.AudioURL != *result.AudioURL || sent.MaxPoints != 20 {
			t.Errorf("unexpected adjudication request %+v", sent)
		}
		if env.media.uploads[0].Context != answerMediaContext {
			t.Errorf("audio uploaded under %q", env.media.uploads[0].Context)
		}

		var stored string
		if err := json.Unmarshal(env.store.answers[0].UserAnswer, &stored); err != nil || stored != *result.AudioURL {
			t.Errorf("user answer should be the audio url, got %s", env.store.answers[0].UserAnswer)
		}
	})

	t.Run("adjudicator failure records nothing", func(t *testing.T) {
		env := newTestEnv()
		env.store.addStudent("student-1", 7, 3)
		env.adjudicator.err = context.DeadlineExceeded
		q, _ := env.questions.Create(ctx, speaking, "teacher-1")

		_, err := env.answers.Submit(ctx, q.ID, "student-1", &models.SubmitAnswerRequest{Audio: audio()})
		if !errors.Is(err, ErrAdjudicationFailed) {
			t.Fatalf("expected ErrAdjudicationFailed, got %v", err)
		}
		if !errors.Is(err, context.DeadlineExceeded) {
			t.Errorf("cause should be kept, got %v", err)
		}
		if len(env.store.answers) != 0 {
			t.Errorf("expected no stored answers, got %d", len(env.store.answers))
		}
	})
}

func TestAnswerService_History(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv()
	env.store.addStudent("student-1", 7, 3)
	env.store.addStudent("student-2", 8, 3)

	req := imageQuestion(1)
	req.MaxAttempts = 3
	q, _ := env.questions.Create(ctx, req, "teacher-1")

	for _, a := range []string{`"dog"`, `"cat"`} {
		if _, err := env.answers.Submit(ctx, q.ID, "student-1", &models.SubmitAnswerRequest{Answer: raw(a)}); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if _, err := env.answers.Submit(ctx, q.ID, "student-2", &models.SubmitAnswerRequest{Answer: raw(`"cat"`)}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	history, err := env.answers.History(ctx, q.ID, "student-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(history) != 2 || history[0].AttemptNumber != 1 || history[1].AttemptNumber != 2 {
		t.Errorf("unexpected history %+v", history)
	}
}

func TestReserveAttempt(t *testing.T) {
	ctx := context.Background()
	store := newMemStore()
	repo := &mockRepository{store: store}
	question := &models.Question{ID: 1, MaxAttempts: 2}

	tests := []struct {
		name    string
		used    int
		want    int
		wantErr bool
	}{
		{name: "first attempt", used: 0, want: 1},
		{name: "last attempt", used: 1, want: 2},
		{name: "exhausted", used: 2, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store.answers = nil
			for i := 1; i <= tt.used; i++ {
				store.answers = append(store.answers, &models.StudentAnswer{QuestionID: 1, StudentID: 5, AttemptNumber: i})
			}

			got, err := reserveAttempt(ctx, repo, question, 5)
			if tt.wantErr {
				var limitErr *AttemptLimitError
				if !errors.As(err, &limitErr) || limitErr.MaxAttempts != 2 {
					t.Fatalf("expected AttemptLimitError, got %v", err)
				}
				return
			}
			if err != nil || got != tt.want {
				t.Errorf("got %d, %v; want %d", got, err, tt.want)
			}
		})
	}
}
