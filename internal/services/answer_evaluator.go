package services

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/SAP-F-2025/challenge-service/internal/models"
)

// Evaluation is the verdict of a deterministic comparator
type Evaluation struct {
	IsCorrect    bool
	PointsEarned int
	Details      json.RawMessage
}

// comparator grades a user answer against the stored answer of a question.
// subs holds the active sub-questions of a composite question.
type comparator func(question *models.Question, subs []*models.Question, userAnswer json.RawMessage) (*Evaluation, error)

// Evaluate grades an AUTO question
func (r *ContentRegistry) Evaluate(question *models.Question, subs []*models.Question, userAnswer json.RawMessage) (*Evaluation, error) {
	spec, ok := r.specs[question.Type]
	if !ok || spec.compare == nil {
		return nil, fmt.Errorf("no comparator for question type %s", question.Type)
	}
	return spec.compare(question, subs, userAnswer)
}

func scored(question *models.Question, correct bool) *Evaluation {
	if correct {
		return &Evaluation{IsCorrect: true, PointsEarned: question.Points}
	}
	return &Evaluation{}
}

// compareOption matches one option, ignoring case and surrounding space
func compareOption(question *models.Question, _ []*models.Question, userAnswer json.RawMessage) (*Evaluation, error) {
	var expected string
	if err := json.Unmarshal(question.Answer, &expected); err != nil {
		return nil, fmt.Errorf("failed to decode stored answer of question %d: %w", question.ID, err)
	}

	given, err := decodeTextAnswer(userAnswer)
	if err != nil {
		return nil, err
	}

	return scored(question, strings.EqualFold(strings.TrimSpace(given), strings.TrimSpace(expected))), nil
}

// compareOrdered requires the same words in the same order. A sentence is
// split on whitespace.
func compareOrdered(question *models.Question, _ []*models.Question, userAnswer json.RawMessage) (*Evaluation, error) {
	var expected []string
	if err := json.Unmarshal(question.Answer, &expected); err != nil {
		return nil, fmt.Errorf("failed to decode stored answer of question %d: %w", question.ID, err)
	}

	given, err := decodeWordsAnswer(userAnswer)
	if err != nil {
		return nil, err
	}

	if len(given) != len(expected) {
		return scored(question, false), nil
	}
	for i := range expected {
		if !strings.EqualFold(strings.TrimSpace(given[i]), strings.TrimSpace(expected[i])) {
			return scored(question, false), nil
		}
	}
	return scored(question, true), nil
}

// compareTagSet accepts any tag of the stored set. A list answer is correct
// when every entry is acceptable.
func compareTagSet(question *models.Question, _ []*models.Question, userAnswer json.RawMessage) (*Evaluation, error) {
	var tags []string
	if err := json.Unmarshal(question.Answer, &tags); err != nil {
		return nil, fmt.Errorf("failed to decode stored answer of question %d: %w", question.ID, err)
	}

	var given []string
	if text, err := decodeTextAnswer(userAnswer); err == nil {
		given = []string{text}
	} else if err := json.Unmarshal(userAnswer, &given); err != nil || len(given) == 0 {
		return nil, newBadRequest("answer must be a tag or a list of tags")
	}

	for _, g := range given {
		if !containsFold(tags, g) {
			return scored(question, false), nil
		}
	}
	return scored(question, true), nil
}

// subAnswer is one entry of a composite answer
type subAnswer struct {
	QuestionID uint            `json:"question_id"`
	Answer     json.RawMessage `json:"answer"`
}

type subResult struct {
	QuestionID   uint `json:"question_id"`
	IsCorrect    bool `json:"is_correct"`
	PointsEarned int  `json:"points_earned"`
}

func compareBooleanSubs(question *models.Question, subs []*models.Question, userAnswer json.RawMessage) (*Evaluation, error) {
	return compareSubs(question, subs, userAnswer, func(expected, given json.RawMessage) (bool, error) {
		var want, got bool
		if err := json.Unmarshal(expected, &want); err != nil {
			return false, fmt.Errorf("failed to decode stored sub-question answer: %w", err)
		}
		if err := json.Unmarshal(given, &got); err != nil {
			return false, newBadRequest("sub-question answers must be true or false")
		}
		return want == got, nil
	})
}

func compareOptionSubs(question *models.Question, subs []*models.Question, userAnswer json.RawMessage) (*Evaluation, error) {
	return compareSubs(question, subs, userAnswer, func(expected, given json.RawMessage) (bool, error) {
		var want string
		if err := json.Unmarshal(expected, &want); err != nil {
			return false, fmt.Errorf("failed to decode stored sub-question answer: %w", err)
		}
		got, err := decodeTextAnswer(given)
		if err != nil {
			return false, err
		}
		return strings.EqualFold(strings.TrimSpace(got), strings.TrimSpace(want)), nil
	})
}

// compareSubs grades each sub-question. Points are the sum over correct
// sub-answers; the whole answer is correct only when every sub-answer is.
// Unanswered sub-questions count as wrong.
func compareSubs(question *models.Question, subs []*models.Question, userAnswer json.RawMessage, match func(expected, given json.RawMessage) (bool, error)) (*Evaluation, error) {
	var answers []subAnswer
	if err := json.Unmarshal(userAnswer, &answers); err != nil {
		return nil, newBadRequest("answer must be a list of {question_id, answer} entries")
	}

	byID := make(map[uint]json.RawMessage, len(answers))
	for _, a := range answers {
		byID[a.QuestionID] = a.Answer
	}
	for id := range byID {
		if !hasSub(subs, id) {
			return nil, newBadRequest("question %d is not a sub-question of question %d", id, question.ID)
		}
	}

	result := &Evaluation{IsCorrect: len(subs) > 0}
	details := make([]subResult, 0, len(subs))
	for _, sub := range subs {
		r := subResult{QuestionID: sub.ID}
		if given, ok := byID[sub.ID]; ok && present(given) {
			correct, err := match(json.RawMessage(sub.Answer), given)
			if err != nil {
				return nil, err
			}
			r.IsCorrect = correct
		}
		if r.IsCorrect {
			r.PointsEarned = sub.Points
			result.PointsEarned += sub.Points
		} else {
			result.IsCorrect = false
		}
		details = append(details, r)
	}

	raw, err := json.Marshal(map[string]interface{}{"sub_questions": details})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal evaluation details: %w", err)
	}
	result.Details = raw
	return result, nil
}

func hasSub(subs []*models.Question, id uint) bool {
	for _, s := range subs {
		if s.ID == id {
			return true
		}
	}
	return false
}

func decodeTextAnswer(raw json.RawMessage) (string, error) {
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return "", newBadRequest("answer must be a string")
	}
	return s, nil
}

func decodeWordsAnswer(raw json.RawMessage) ([]string, error) {
	var words []string
	if err := json.Unmarshal(raw, &words); err == nil {
		return words, nil
	}
	sentence, err := decodeTextAnswer(raw)
	if err != nil {
		return nil, newBadRequest("answer must be a list of words or a sentence")
	}
	return strings.Fields(sentence), nil
}
