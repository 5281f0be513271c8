package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/SAP-F-2025/challenge-service/internal/services"
	"github.com/SAP-F-2025/challenge-service/internal/utils"
	"github.com/SAP-F-2025/challenge-service/internal/validator"
	"github.com/gin-gonic/gin"
)

type ErrorResponse struct {
	Message string      `json:"message"`
	Details interface{} `json:"details,omitempty"`
}

type SuccessResponse struct {
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

// BaseHandler carries the logger shared by every handler
type BaseHandler struct {
	logger utils.Logger
}

func NewBaseHandler(logger utils.Logger) BaseHandler {
	return BaseHandler{logger: logger}
}

// LogRequest logs an incoming request with the request scoped logger
func (b *BaseHandler) LogRequest(c *gin.Context, msg string, args ...any) {
	utils.GetLogger(c, b.logger).Info(msg, args...)
}

func (b *BaseHandler) LogError(c *gin.Context, err error, msg string, args ...any) {
	args = append(args, "error", err)
	utils.GetLogger(c, b.logger).Error(msg, args...)
}

func (b *BaseHandler) parseIDParam(c *gin.Context, param string) uint {
	idStr := c.Param(param)
	id, err := strconv.ParseUint(idStr, 10, 32)
	if err != nil || id == 0 {
		details := "ID must be a positive integer"
		if err != nil {
			details = err.Error()
		}
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Message: "Invalid " + param,
			Details: details,
		})
		return 0
	}
	return uint(id)
}

// parseOptionalUintQuery reads an optional positive integer query parameter.
// ok is false when a response has already been written.
func (b *BaseHandler) parseOptionalUintQuery(c *gin.Context, key string) (*uint, bool) {
	raw := c.Query(key)
	if raw == "" {
		return nil, true
	}
	v, err := strconv.ParseUint(raw, 10, 32)
	if err != nil || v == 0 {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Message: "Invalid " + key,
			Details: "must be a positive integer",
		})
		return nil, false
	}
	id := uint(v)
	return &id, true
}

// currentUserID returns the authenticated user, writing 401 when absent
func (b *BaseHandler) currentUserID(c *gin.Context) (string, bool) {
	userID, err := GetUserIDFromContext(c)
	if err != nil || userID == "" {
		c.JSON(http.StatusUnauthorized, ErrorResponse{
			Message: "User not authenticated",
		})
		return "", false
	}
	return userID, true
}

// handleServiceError maps service errors to HTTP responses
func (b *BaseHandler) handleServiceError(c *gin.Context, err error) {
	var structural *services.StructuralValidationError
	if errors.As(err, &structural) {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Message: "Validation failed",
			Details: structural.Errors,
		})
		return
	}

	var validationErrors validator.ValidationErrors
	if errors.As(err, &validationErrors) {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Message: "Validation failed",
			Details: validationErrors,
		})
		return
	}

	var limitErr *services.AttemptLimitError
	if errors.As(err, &limitErr) {
		c.JSON(http.StatusConflict, ErrorResponse{
			Message: limitErr.Error(),
			Details: map[string]interface{}{
				"question_id":  limitErr.QuestionID,
				"max_attempts": limitErr.MaxAttempts,
			},
		})
		return
	}

	switch {
	case errors.Is(err, services.ErrQuestionNotFound):
		c.JSON(http.StatusNotFound, ErrorResponse{Message: "Question not found"})
	case errors.Is(err, services.ErrParentQuestionNotFound):
		c.JSON(http.StatusNotFound, ErrorResponse{Message: "Parent question not found"})
	case errors.Is(err, services.ErrChallengeNotFound):
		c.JSON(http.StatusNotFound, ErrorResponse{Message: "Challenge not found"})
	case errors.Is(err, services.ErrSchoolNotFound):
		c.JSON(http.StatusNotFound, ErrorResponse{Message: "School not found"})
	case errors.Is(err, services.ErrStudentNotFound):
		c.JSON(http.StatusBadRequest, ErrorResponse{Message: "No student profile for the current user"})
	case errors.Is(err, services.ErrQuestionNotAnswerable):
		c.JSON(http.StatusConflict, ErrorResponse{Message: "Question cannot be answered", Details: err.Error()})
	case errors.Is(err, services.ErrAudioRequired):
		c.JSON(http.StatusBadRequest, ErrorResponse{Message: "An audio file is required for this question type"})
	case errors.Is(err, services.ErrNotComposite), errors.Is(err, services.ErrNestingTooDeep):
		c.JSON(http.StatusUnprocessableEntity, ErrorResponse{Message: err.Error()})
	case errors.Is(err, services.ErrBadRequest), errors.Is(err, services.ErrValidationFailed):
		c.JSON(http.StatusBadRequest, ErrorResponse{Message: "Invalid request", Details: err.Error()})
	case errors.Is(err, services.ErrAdjudicationFailed):
		b.LogError(c, err, "Adjudication failed")
		c.JSON(http.StatusBadGateway, ErrorResponse{Message: "Answer could not be graded, please try again"})
	case errors.Is(err, services.ErrMediaUploadFailed):
		b.LogError(c, err, "Media upload failed")
		c.JSON(http.StatusBadGateway, ErrorResponse{Message: "Media upload failed", Details: err.Error()})
	default:
		b.LogError(c, err, "Internal server error")
		c.JSON(http.StatusInternalServerError, ErrorResponse{Message: "Internal server error"})
	}
}
