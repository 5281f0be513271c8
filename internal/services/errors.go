package services

import (
	"errors"
	"fmt"
	"strings"

	"github.com/SAP-F-2025/challenge-service/internal/models"
	"github.com/SAP-F-2025/challenge-service/internal/validator"
)

// Reference errors
var (
	ErrQuestionNotFound       = errors.New("question not found")
	ErrChallengeNotFound      = errors.New("challenge not found")
	ErrSchoolNotFound         = errors.New("school not found")
	ErrParentQuestionNotFound = errors.New("parent question not found")
)

// Request errors
var (
	ErrValidationFailed      = errors.New("validation failed")
	ErrBadRequest            = errors.New("bad request")
	ErrStudentNotFound       = errors.New("no student profile for the current user")
	ErrAudioRequired         = errors.New("an audio file is required for this question type")
	ErrQuestionNotAnswerable = errors.New("question is not answerable")
	ErrNotComposite          = errors.New("question has no sub-questions")
	ErrNestingTooDeep        = errors.New("sub-questions cannot have sub-questions")
)

// Answer pipeline errors
var (
	ErrAttemptLimitExceeded = errors.New("maximum attempts reached")
	ErrAdjudicationFailed   = errors.New("answer adjudication failed")
	ErrMediaUploadFailed    = errors.New("media upload failed")
)

// StructuralValidationError reports every rule a question payload violates.
// Nothing is written when it is returned.
type StructuralValidationError struct {
	Type   models.QuestionType
	Errors validator.ValidationErrors
}

func NewStructuralValidationError(questionType models.QuestionType, errs validator.ValidationErrors) *StructuralValidationError {
	return &StructuralValidationError{Type: questionType, Errors: errs}
}

func (e *StructuralValidationError) Error() string {
	if len(e.Errors) == 0 {
		return fmt.Sprintf("invalid %s question", e.Type)
	}
	return strings.Join(e.Errors.Messages(), "; ")
}

func (e *StructuralValidationError) Unwrap() error {
	return ErrValidationFailed
}

// AttemptLimitError is returned when a student has used every attempt
type AttemptLimitError struct {
	QuestionID  uint
	MaxAttempts int
}

func (e *AttemptLimitError) Error() string {
	return fmt.Sprintf("Maximum attempts (%d) reached for this question", e.MaxAttempts)
}

func (e *AttemptLimitError) Is(target error) bool {
	return target == ErrAttemptLimitExceeded
}

// AdjudicationError wraps a failed or timed out adjudicator call. It is never
// turned into a verdict.
type AdjudicationError struct {
	QuestionID uint
	Err        error
}

func (e *AdjudicationError) Error() string {
	return fmt.Sprintf("answer adjudication failed for question %d: %v", e.QuestionID, e.Err)
}

func (e *AdjudicationError) Unwrap() error {
	return e.Err
}

func (e *AdjudicationError) Is(target error) bool {
	return target == ErrAdjudicationFailed
}

// newBadRequest wraps a message as ErrBadRequest
func newBadRequest(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrBadRequest, fmt.Sprintf(format, args...))
}
