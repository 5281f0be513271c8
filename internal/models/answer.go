package models

import (
	"time"

	"gorm.io/datatypes"
)

// StudentAnswer is one recorded attempt. Rows are append-only.
type StudentAnswer struct {
	ID          uint `json:"id" gorm:"primaryKey"`
	StudentID   uint `json:"student_id" gorm:"not null;uniqueIndex:idx_answer_attempt,priority:2;index"`
	QuestionID  uint `json:"question_id" gorm:"not null;uniqueIndex:idx_answer_attempt,priority:1"`
	ChallengeID uint `json:"challenge_id" gorm:"not null;index"`

	// Answer content (variant-typed, or the audio URL for audio types)
	UserAnswer    datatypes.JSON `json:"user_answer" gorm:"type:jsonb"`
	AttemptNumber int            `json:"attempt_number" gorm:"not null;uniqueIndex:idx_answer_attempt,priority:3"`

	// Grading
	IsCorrect       bool           `json:"is_correct" gorm:"not null;default:false"`
	PointsEarned    int            `json:"points_earned" gorm:"not null;default:0"`
	FeedbackEnglish *string        `json:"feedback_english" gorm:"type:text"`
	FeedbackSpanish *string        `json:"feedback_spanish" gorm:"type:text"`
	Details         datatypes.JSON `json:"details,omitempty" gorm:"type:jsonb"`

	// Timing
	TimeSpent  int       `json:"time_spent"` // seconds
	AudioURL   *string   `json:"audio_url" gorm:"size:500"`
	AnsweredAt time.Time `json:"answered_at" gorm:"not null;index"`

	// Relations
	Question *Question `json:"question,omitempty" gorm:"foreignKey:QuestionID"`
	Student  *Student  `json:"student,omitempty" gorm:"foreignKey:StudentID"`
}

// AnswerState tracks a submission through the answer pipeline.
type AnswerState string

const (
	AnswerReceived       AnswerState = "received"
	AnswerAttemptChecked AnswerState = "attempt_checked"
	AnswerValidated      AnswerState = "validated"
	AnswerRecorded       AnswerState = "recorded"
)

// QuestionSchoolStats is derived from StudentAnswer rows; it is never stored.
type QuestionSchoolStats struct {
	QuestionID     uint         `json:"question_id"`
	QuestionText   string       `json:"question_text"`
	QuestionType   QuestionType `json:"question_type"`
	Stage          Stage        `json:"stage"`
	ChallengeID    uint         `json:"challenge_id"`
	TotalAttempts  int64        `json:"total_attempts"`
	CorrectAnswers int64        `json:"correct_answers"`
	AverageTime    int64        `json:"average_time"`
	SuccessRate    float64      `json:"success_rate"`
}
