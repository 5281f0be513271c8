package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/SAP-F-2025/challenge-service/internal/events"
	"github.com/SAP-F-2025/challenge-service/internal/metrics"
	"github.com/SAP-F-2025/challenge-service/internal/models"
	"github.com/SAP-F-2025/challenge-service/internal/repositories"
	"github.com/SAP-F-2025/challenge-service/internal/validator"
	"gorm.io/datatypes"
)

const answerMediaContext = "answers"

type answerService struct {
	repo        repositories.Repository
	logger      *slog.Logger
	validator   *validator.Validator
	registry    *ContentRegistry
	media       MediaStore
	adjudicator Adjudicator
	publisher   events.EventPublisher
	metrics     *metrics.Metrics
}

func NewAnswerService(
	repo repositories.Repository,
	logger *slog.Logger,
	validator *validator.Validator,
	registry *ContentRegistry,
	media MediaStore,
	adjudicator Adjudicator,
	publisher events.EventPublisher,
	metrics *metrics.Metrics,
) AnswerService {
	return &answerService{
		repo:        repo,
		logger:      logger,
		validator:   validator,
		registry:    registry,
		media:       media,
		adjudicator: adjudicator,
		publisher:   publisher,
		metrics:     metrics,
	}
}

// submission carries one answer through the pipeline
type submission struct {
	question   *models.Question
	spec       TypeSpec
	student    *models.Student
	userAnswer json.RawMessage
	audioURL   *string
	timeSpent  int

	isCorrect       bool
	pointsEarned    int
	feedbackEnglish *string
	feedbackSpanish *string
	details         json.RawMessage
}

func (s *answerService) Submit(ctx context.Context, questionID uint, userID string, req *models.SubmitAnswerRequest) (*models.AnswerResult, error) {
	s.logState(ctx, models.AnswerReceived, questionID, userID)

	if errs := s.validator.GetBusinessValidator().ValidateAnswerSubmit(req); len(errs) > 0 {
		return nil, errs
	}

	question, err := s.answerableQuestion(ctx, questionID)
	if err != nil {
		return nil, err
	}
	spec, ok := s.registry.Spec(question.Type)
	if !ok {
		return nil, fmt.Errorf("question %d has unsupported type %s", question.ID, question.Type)
	}

	student, err := s.repo.Student().GetByUserID(ctx, nil, userID)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return nil, ErrStudentNotFound
		}
		return nil, fmt.Errorf("failed to resolve student: %w", err)
	}

	// Cheap pre-check; the transaction below is authoritative
	used, err := s.repo.Answer().CountByQuestionAndStudent(ctx, nil, question.ID, student.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to count attempts: %w", err)
	}
	if used >= int64(question.MaxAttempts) {
		s.metrics.ObserveAnswer(string(question.Type), string(question.ValidationMethod), metrics.OutcomeLimitReached)
		return nil, &AttemptLimitError{QuestionID: question.ID, MaxAttempts: question.MaxAttempts}
	}
	s.logState(ctx, models.AnswerAttemptChecked, questionID, userID, "attempts_used", used)

	sub := &submission{question: question, spec: spec, student: student, timeSpent: req.TimeSpent}
	if err := s.prepareAnswer(ctx, sub, req); err != nil {
		return nil, err
	}

	if err := s.grade(ctx, sub); err != nil {
		s.metrics.ObserveAnswer(string(question.Type), string(question.ValidationMethod), metrics.OutcomeError)
		return nil, err
	}
	s.logState(ctx, models.AnswerValidated, questionID, userID, "is_correct", sub.isCorrect, "points_earned", sub.pointsEarned)

	var answer *models.StudentAnswer
	err = s.repo.WithSerializableTransaction(ctx, func(txRepo repositories.Repository) error {
		attempt, err := reserveAttempt(ctx, txRepo, question, student.ID)
		if err != nil {
			return err
		}

		a := sub.record(attempt)
		if err := txRepo.Answer().Create(ctx, nil, a); err != nil {
			return err
		}
		answer = a
		return nil
	})
	if err != nil {
		var limitErr *AttemptLimitError
		if errors.As(err, &limitErr) {
			s.metrics.ObserveAnswer(string(question.Type), string(question.ValidationMethod), metrics.OutcomeLimitReached)
			return nil, limitErr
		}
		s.metrics.ObserveAnswer(string(question.Type), string(question.ValidationMethod), metrics.OutcomeError)
		return nil, fmt.Errorf("failed to record answer: %w", err)
	}
	s.logState(ctx, models.AnswerRecorded, questionID, userID, "answer_id", answer.ID, "attempt", answer.AttemptNumber)

	outcome := metrics.OutcomeIncorrect
	if answer.IsCorrect {
		outcome = metrics.OutcomeCorrect
	}
	s.metrics.ObserveAnswer(string(question.Type), string(question.ValidationMethod), outcome)

	s.publish(ctx, events.NewEvent(events.AnswerRecorded, map[string]interface{}{
		"answer_id":      answer.ID,
		"question_id":    answer.QuestionID,
		"challenge_id":   answer.ChallengeID,
		"student_id":     answer.StudentID,
		"school_id":      student.SchoolID,
		"attempt_number": answer.AttemptNumber,
		"is_correct":     answer.IsCorrect,
		"points_earned":  answer.PointsEarned,
	}))

	return &models.AnswerResult{
		AnswerID:          answer.ID,
		QuestionID:        answer.QuestionID,
		AttemptNumber:     answer.AttemptNumber,
		RemainingAttempts: question.MaxAttempts - answer.AttemptNumber,
		IsCorrect:         answer.IsCorrect,
		PointsEarned:      answer.PointsEarned,
		FeedbackEnglish:   answer.FeedbackEnglish,
		FeedbackSpanish:   answer.FeedbackSpanish,
		Details:           sub.details,
		AudioURL:          answer.AudioURL,
	}, nil
}

func (s *answerService) History(ctx context.Context, questionID uint, userID string) ([]*models.StudentAnswer, error) {
	if _, err := s.repo.Question().GetByID(ctx, nil, questionID); err != nil {
		if repositories.IsNotFoundError(err) {
			return nil, ErrQuestionNotFound
		}
		return nil, fmt.Errorf("failed to get question: %w", err)
	}

	student, err := s.repo.Student().GetByUserID(ctx, nil, userID)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return nil, ErrStudentNotFound
		}
		return nil, fmt.Errorf("failed to resolve student: %w", err)
	}

	answers, err := s.repo.Answer().GetByQuestionAndStudent(ctx, nil, questionID, student.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to get answers: %w", err)
	}
	return answers, nil
}

// reserveAttempt returns the next attempt number of a student on a question.
// It must run in the transaction that inserts the answer.
func reserveAttempt(ctx context.Context, txRepo repositories.Repository, question *models.Question, studentID uint) (int, error) {
	used, err := txRepo.Answer().CountByQuestionAndStudent(ctx, nil, question.ID, studentID)
	if err != nil {
		return 0, fmt.Errorf("failed to count attempts: %w", err)
	}
	if used >= int64(question.MaxAttempts) {
		return 0, &AttemptLimitError{QuestionID: question.ID, MaxAttempts: question.MaxAttempts}
	}
	return int(used) + 1, nil
}

func (s *answerService) answerableQuestion(ctx context.Context, questionID uint) (*models.Question, error) {
	question, err := s.repo.Question().GetByID(ctx, nil, questionID)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return nil, ErrQuestionNotFound
		}
		return nil, fmt.Errorf("failed to get question: %w", err)
	}

	switch {
	case question.Lifecycle == models.LifecycleDeleted:
		return nil, ErrQuestionNotFound
	case !question.IsActive():
		return nil, fmt.Errorf("%w: question %d is inactive", ErrQuestionNotAnswerable, question.ID)
	case question.IsSubQuestion():
		return nil, fmt.Errorf("%w: answer parent question %d instead", ErrQuestionNotAnswerable, *question.ParentQuestionID)
	}
	return question, nil
}

// prepareAnswer resolves the recorded form of the answer. Audio types store
// the URL of the uploaded file.
func (s *answerService) prepareAnswer(ctx context.Context, sub *submission, req *models.SubmitAnswerRequest) error {
	if !sub.spec.RequiresAudio {
		if !present(req.Answer) {
			return newBadRequest("answer is required")
		}
		sub.userAnswer = req.Answer
		return nil
	}

	if req.Audio == nil {
		return ErrAudioRequired
	}
	if s.media == nil {
		return fmt.Errorf("%w: no media store is configured", ErrMediaUploadFailed)
	}

	file := *req.Audio
	file.Context = answerMediaContext
	stored, err := s.media.Upload(ctx, file)
	if err != nil {
		s.logger.ErrorContext(ctx, "Failed to upload answer audio", "question_id", sub.question.ID, "error", err)
		return fmt.Errorf("%w: %v", ErrMediaUploadFailed, err)
	}

	raw, err := json.Marshal(stored.URL)
	if err != nil {
		return fmt.Errorf("failed to marshal audio reference: %w", err)
	}
	sub.userAnswer = raw
	sub.audioURL = &stored.URL
	return nil
}

func (s *answerService) grade(ctx context.Context, sub *submission) error {
	q := sub.question

	if q.ValidationMethod == models.ValidationIA {
		return s.adjudicate(ctx, sub)
	}

	var subs []*models.Question
	if sub.spec.Composite {
		all, err := s.repo.Question().GetSubQuestions(ctx, nil, q.ID)
		if err != nil {
			return fmt.Errorf("failed to get sub-questions: %w", err)
		}
		for _, sq := range all {
			if sq.IsActive() {
				subs = append(subs, sq)
			}
		}
	}

	result, err := s.registry.Evaluate(q, subs, sub.userAnswer)
	if err != nil {
		return err
	}
	sub.isCorrect = result.IsCorrect
	sub.pointsEarned = result.PointsEarned
	sub.details = result.Details
	return nil
}

// adjudicate delegates to the external grader. Its verdict is recorded as is.
func (s *answerService) adjudicate(ctx context.Context, sub *submission) error {
	if s.adjudicator == nil {
		return &AdjudicationError{QuestionID: sub.question.ID, Err: errors.New("no adjudicator configured")}
	}

	q := sub.question
	req := &models.AdjudicationRequest{
		QuestionID:   q.ID,
		QuestionType: q.Type,
		Stage:        q.Stage,
		Text:         q.Text,
		Content:      json.RawMessage(q.Content),
		Answer:       json.RawMessage(q.Answer),
		MaxPoints:    q.Points,
		UserAnswer:   sub.userAnswer,
		AudioURL:     sub.audioURL,
	}

	start := time.Now()
	verdict, err := s.adjudicator.Adjudicate(ctx, req)
	if err != nil {
		s.metrics.ObserveAdjudication(metrics.OutcomeError, time.Since(start))
		s.logger.ErrorContext(ctx, "Adjudication failed", "question_id", q.ID, "error", err)
		return &AdjudicationError{QuestionID: q.ID, Err: err}
	}

	outcome := metrics.OutcomeIncorrect
	if verdict.IsCorrect {
		outcome = metrics.OutcomeCorrect
	}
	s.metrics.ObserveAdjudication(outcome, time.Since(start))

	sub.isCorrect = verdict.IsCorrect
	sub.pointsEarned = verdict.PointsEarned
	sub.feedbackEnglish = verdict.FeedbackEnglish
	sub.feedbackSpanish = verdict.FeedbackSpanish
	sub.details = verdict.Details
	return nil
}

// record builds a fresh row so a retried transaction never reuses an ID
func (sub *submission) record(attempt int) *models.StudentAnswer {
	answer := &models.StudentAnswer{
		StudentID:       sub.student.ID,
		QuestionID:      sub.question.ID,
		ChallengeID:     sub.question.ChallengeID,
		UserAnswer:      datatypes.JSON(sub.userAnswer),
		AttemptNumber:   attempt,
		IsCorrect:       sub.isCorrect,
		PointsEarned:    sub.pointsEarned,
		FeedbackEnglish: sub.feedbackEnglish,
		FeedbackSpanish: sub.feedbackSpanish,
		TimeSpent:       sub.timeSpent,
		AudioURL:        sub.audioURL,
		AnsweredAt:      time.Now().UTC(),
		Student:         sub.student,
	}
	if present(sub.details) {
		answer.Details = datatypes.JSON(sub.details)
	}
	return answer
}

func (s *answerService) logState(ctx context.Context, state models.AnswerState, questionID uint, userID string, args ...interface{}) {
	attrs := append([]interface{}{"state", state, "question_id", questionID, "user_id", userID}, args...)
	s.logger.DebugContext(ctx, "Answer state", attrs...)
}

func (s *answerService) publish(ctx context.Context, event *events.Event) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.Publish(ctx, event); err != nil {
		s.logger.WarnContext(ctx, "Failed to publish event", "event_type", event.Type, "event_id", event.ID, "error", err)
	}
}
