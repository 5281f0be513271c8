package models

import (
	"encoding/json"
	"io"
)

// QuestionCreateRequest is the body of every create-per-type endpoint. The
// raw content, options, answer and sub_questions are decoded by the content
// registry into the variant of Type.
type QuestionCreateRequest struct {
	ChallengeID      uint             `json:"challenge_id" validate:"required"`
	Type             QuestionType     `json:"type" validate:"required,question_type"`
	Phase            string           `json:"phase" validate:"omitempty,max=100"`
	Text             string           `json:"text" validate:"required,max=2000"`
	Instructions     string           `json:"instructions" validate:"omitempty,max=2000"`
	Points           int              `json:"points" validate:"min=0,max=1000"`
	TimeLimit        int              `json:"time_limit" validate:"min=0,max=7200"`
	MaxAttempts      int              `json:"max_attempts" validate:"omitempty,min=1,max=100"`
	ValidationMethod ValidationMethod `json:"validation_method" validate:"omitempty,validation_method"`
	Content          json.RawMessage  `json:"content"`
	Options          json.RawMessage  `json:"options"`
	Answer           json.RawMessage  `json:"answer"`
	SubQuestions     json.RawMessage  `json:"sub_questions"`
	Configurations   []Configuration  `json:"configurations" validate:"dive"`

	// Uploaded by the handler from multipart form files
	Media []MediaFile `json:"-"`
}

// MediaFile is a file received from a client, not yet stored.
type MediaFile struct {
	FileName    string
	ContentType string
	Size        int64
	Reader      io.Reader
	Context     string
}

type StoredMedia struct {
	ID  string `json:"id"`
	URL string `json:"url"`
}

type SubmitAnswerRequest struct {
	Answer    json.RawMessage `json:"answer"`
	TimeSpent int             `json:"time_spent" validate:"min=0,max=86400"`

	Audio *MediaFile `json:"-"`
}

type AnswerResult struct {
	AnswerID          uint            `json:"answer_id"`
	QuestionID        uint            `json:"question_id"`
	AttemptNumber     int             `json:"attempt_number"`
	RemainingAttempts int             `json:"remaining_attempts"`
	IsCorrect         bool            `json:"is_correct"`
	PointsEarned      int             `json:"points_earned"`
	FeedbackEnglish   *string         `json:"feedback_english,omitempty"`
	FeedbackSpanish   *string         `json:"feedback_spanish,omitempty"`
	Details           json.RawMessage `json:"details,omitempty"`
	AudioURL          *string         `json:"audio_url,omitempty"`
}

// ===== PAGINATION & FILTERING =====

type ListQuestionsParams struct {
	Page        int          `json:"page" validate:"min=0"`
	Size        int          `json:"size" validate:"min=1,max=100"`
	ChallengeID *uint        `json:"challenge_id"`
	Stage       Stage        `json:"stage" validate:"omitempty,stage"`
	Type        QuestionType `json:"type" validate:"omitempty,question_type"`
	Search      string       `json:"search" validate:"omitempty,max=200"`
	SortBy      string       `json:"sort_by" validate:"omitempty,oneof=position created_at points"`
	SortDir     string       `json:"sort_dir" validate:"omitempty,oneof=asc desc"`
}

type PaginatedResponse struct {
	Content          interface{} `json:"content"`
	TotalElements    int64       `json:"total_elements"`
	TotalPages       int         `json:"total_pages"`
	Size             int         `json:"size"`
	Page             int         `json:"page"`
	First            bool        `json:"first"`
	Last             bool        `json:"last"`
	NumberOfElements int         `json:"number_of_elements"`
	Empty            bool        `json:"empty"`
}

func NewPaginatedResponse(content interface{}, total int64, page, size, count int) *PaginatedResponse {
	totalPages := 0
	if size > 0 {
		totalPages = int((total + int64(size) - 1) / int64(size))
	}
	return &PaginatedResponse{
		Content:          content,
		TotalElements:    total,
		TotalPages:       totalPages,
		Size:             size,
		Page:             page,
		First:            page == 0,
		Last:             page >= totalPages-1,
		NumberOfElements: count,
		Empty:            count == 0,
	}
}

// ===== ADJUDICATION =====

// AdjudicationRequest is sent to the external grader for IA questions. Audio
// answers are passed by URL after upload.
type AdjudicationRequest struct {
	QuestionID   uint            `json:"question_id"`
	QuestionType QuestionType    `json:"question_type"`
	Stage        Stage           `json:"stage"`
	Text         string          `json:"text"`
	Content      json.RawMessage `json:"content,omitempty"`
	Answer       json.RawMessage `json:"answer,omitempty"`
	MaxPoints    int             `json:"max_points"`
	UserAnswer   json.RawMessage `json:"user_answer,omitempty"`
	AudioURL     *string         `json:"audio_url,omitempty"`
}

type AdjudicationVerdict struct {
	IsCorrect       bool            `json:"is_correct"`
	PointsEarned    int             `json:"points_earned"`
	FeedbackEnglish *string         `json:"feedback_english"`
	FeedbackSpanish *string         `json:"feedback_spanish"`
	Details         json.RawMessage `json:"details"`
}
