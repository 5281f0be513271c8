package validator

import (
	"strings"
	"testing"

	"github.com/SAP-F-2025/challenge-service/internal/models"
)

func TestValidator_QuestionCreate(t *testing.T) {
	v := New()

	tests := []struct {
		name      string
		req       models.QuestionCreateRequest
		wantField string
	}{
		{
			name: "valid request",
			req: models.QuestionCreateRequest{
				ChallengeID: 1,
				Type:        models.Tenses,
				Text:        "Pick the right tense",
				MaxAttempts: 2,
			},
		},
		{
			name: "unknown type",
			req: models.QuestionCreateRequest{
				ChallengeID: 1,
				Type:        models.QuestionType("essay"),
				Text:        "Write something",
			},
			wantField: "type",
		},
		{
			name: "missing challenge",
			req: models.QuestionCreateRequest{
				Type: models.Tenses,
				Text: "Pick the right tense",
			},
			wantField: "challenge_id",
		},
		{
			name: "bad validation method",
			req: models.QuestionCreateRequest{
				ChallengeID:      1,
				Type:             models.Tenses,
				Text:             "Pick the right tense",
				ValidationMethod: models.ValidationMethod("MANUAL"),
			},
			wantField: "validation_method",
		},
		{
			name: "duplicate configuration key",
			req: models.QuestionCreateRequest{
				ChallengeID: 1,
				Type:        models.Wordbox,
				Text:        "Find words",
				Configurations: []models.Configuration{
					{Key: "gridWidth", Value: "3"},
					{Key: "gridWidth", Value: "4"},
				},
			},
			wantField: "configurations[1].key",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			errs := v.GetBusinessValidator().ValidateQuestionCreate(&tt.req)
			if tt.wantField == "" {
				if len(errs) != 0 {
					t.Fatalf("expected no errors, got %v", errs)
				}
				return
			}
			found := false
			for _, e := range errs {
				if e.Field == tt.wantField {
					found = true
				}
			}
			if !found {
				t.Errorf("expected error on %q, got %+v", tt.wantField, errs)
			}
		})
	}
}

func TestValidator_AnswerSubmit(t *testing.T) {
	v := New()

	errs := v.GetBusinessValidator().ValidateAnswerSubmit(&models.SubmitAnswerRequest{TimeSpent: -1})
	if len(errs) != 1 || errs[0].Field != "time_spent" {
		t.Fatalf("expected time_spent error, got %+v", errs)
	}

	errs = v.GetBusinessValidator().ValidateAnswerSubmit(&models.SubmitAnswerRequest{
		TimeSpent: 10,
		Audio:     &models.MediaFile{FileName: "a.mp3"},
	})
	if len(errs) != 1 || errs[0].Field != "audio" {
		t.Fatalf("expected audio error, got %+v", errs)
	}
}

func TestValidationErrors_Error(t *testing.T) {
	var empty ValidationErrors
	if empty.Error() != "validation failed" {
		t.Errorf("unexpected message %q", empty.Error())
	}

	one := ValidationErrors{{Field: "text", Message: "is required"}}
	if !strings.Contains(one.Error(), "text is required") {
		t.Errorf("unexpected message %q", one.Error())
	}
}
