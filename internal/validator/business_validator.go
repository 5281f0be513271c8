package validator

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/SAP-F-2025/challenge-service/internal/models"
	"github.com/go-playground/validator/v10"
)

// ValidationError describes one failed rule on one field
type ValidationError struct {
	Field   string      `json:"field"`
	Message string      `json:"message"`
	Value   interface{} `json:"value,omitempty"`
	Rule    string      `json:"rule,omitempty"`
}

type ValidationErrors []ValidationError

func (ve ValidationErrors) Error() string {
	if len(ve) == 0 {
		return "validation failed"
	}
	if len(ve) == 1 {
		return fmt.Sprintf("validation failed: %s %s", ve[0].Field, ve[0].Message)
	}
	return fmt.Sprintf("validation failed: %d field errors", len(ve))
}

// Messages returns every message in order, for responses
func (ve ValidationErrors) Messages() []string {
	msgs := make([]string, len(ve))
	for i, e := range ve {
		msgs[i] = e.Message
	}
	return msgs
}

// Validator is the request validator shared by services and handlers
type Validator struct {
	validate *validator.Validate
	business *BusinessValidator
}

func New() *Validator {
	v := validator.New()
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	registerRules(v)
	return &Validator{
		validate: v,
		business: &BusinessValidator{validate: v},
	}
}

// Validate runs struct tag validation. It returns nil or ValidationErrors.
func (v *Validator) Validate(s interface{}) error {
	if errs := ToValidationErrors(v.validate.Struct(s)); len(errs) > 0 {
		return errs
	}
	return nil
}

func (v *Validator) GetBusinessValidator() *BusinessValidator {
	return v.business
}

// ToValidationErrors converts errors from go-playground/validator.
func ToValidationErrors(err error) ValidationErrors {
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return ValidationErrors{{Field: "request", Message: err.Error(), Rule: "invalid"}}
	}

	result := make(ValidationErrors, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		result = append(result, ValidationError{
			Field:   fe.Field(),
			Message: errorMessage(fe),
			Value:   fe.Value(),
			Rule:    fe.Tag(),
		})
	}
	return result
}

// BusinessValidator handles business rule validation
type BusinessValidator struct {
	validate *validator.Validate
}

// Validate validates business rules for any struct
func (bv *BusinessValidator) Validate(s interface{}) ValidationErrors {
	return ToValidationErrors(bv.validate.Struct(s))
}

// ValidateQuestionCreate validates the request envelope. Variant content is
// checked separately by the content registry.
func (bv *BusinessValidator) ValidateQuestionCreate(req *models.QuestionCreateRequest) ValidationErrors {
	var errs ValidationErrors

	errs = append(errs, bv.Validate(req)...)

	seen := make(map[string]bool, len(req.Configurations))
	for i, c := range req.Configurations {
		key := strings.TrimSpace(c.Key)
		if seen[key] {
			errs = append(errs, ValidationError{
				Field:   fmt.Sprintf("configurations[%d].key", i),
				Message: fmt.Sprintf("duplicate configuration key '%s'", key),
				Value:   c.Key,
				Rule:    "unique",
			})
		}
		seen[key] = true
	}

	for i, m := range req.Media {
		if m.Reader == nil || m.Size <= 0 {
			errs = append(errs, ValidationError{
				Field:   fmt.Sprintf("media[%d]", i),
				Message: "media file is empty",
				Value:   m.FileName,
				Rule:    "required",
			})
		}
	}

	return errs
}

// ValidateAnswerSubmit validates an answer submission envelope
func (bv *BusinessValidator) ValidateAnswerSubmit(req *models.SubmitAnswerRequest) ValidationErrors {
	errs := bv.Validate(req)

	if req.Audio != nil && (req.Audio.Reader == nil || req.Audio.Size <= 0) {
		errs = append(errs, ValidationError{
			Field:   "audio",
			Message: "audio file is empty",
			Value:   req.Audio.FileName,
			Rule:    "required",
		})
	}

	return errs
}

func registerRules(v *validator.Validate) {
	v.RegisterValidation("question_type", func(fl validator.FieldLevel) bool {
		return models.QuestionType(fl.Field().String()).IsValid()
	})

	v.RegisterValidation("stage", func(fl validator.FieldLevel) bool {
		return models.Stage(fl.Field().String()).IsValid()
	})

	v.RegisterValidation("validation_method", func(fl validator.FieldLevel) bool {
		method := models.ValidationMethod(fl.Field().String())
		return method == models.ValidationAuto || method == models.ValidationIA
	})
}

func errorMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "min":
		return fmt.Sprintf("must be at least %s", fe.Param())
	case "max":
		return fmt.Sprintf("must be at most %s", fe.Param())
	case "oneof":
		return fmt.Sprintf("must be one of [%s]", fe.Param())
	case "question_type":
		return "is not a supported question type"
	case "stage":
		return "must be one of VOCABULARY, GRAMMAR, LISTENING, WRITING, SPEAKING"
	case "validation_method":
		return "must be AUTO or IA"
	default:
		return fmt.Sprintf("failed on the '%s' rule", fe.Tag())
	}
}
