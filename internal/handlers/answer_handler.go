package handlers

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/SAP-F-2025/challenge-service/internal/models"
	"github.com/SAP-F-2025/challenge-service/internal/services"
	"github.com/SAP-F-2025/challenge-service/internal/utils"
	"github.com/gin-gonic/gin"
)

const audioFormField = "audio"

type AnswerHandler struct {
	BaseHandler
	answerService services.AnswerService
}

func NewAnswerHandler(answerService services.AnswerService, logger utils.Logger) *AnswerHandler {
	return &AnswerHandler{
		BaseHandler:   NewBaseHandler(logger),
		answerService: answerService,
	}
}

// SubmitAnswer grades and records one attempt of the current student
// @Summary Submit answer
// @Description Accepts JSON, or multipart with "answer", "time_spent" and an "audio" file for speaking questions
// @Tags answers
// @Accept json,mpfd
// @Produce json
// @Param id path uint true "Question ID"
// @Param answer body models.SubmitAnswerRequest true "Answer"
// @Success 201 {object} models.AnswerResult
// @Failure 400 {object} ErrorResponse
// @Failure 403 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Failure 409 {object} ErrorResponse
// @Failure 429 {object} ErrorResponse
// @Failure 502 {object} ErrorResponse
// @Router /questions/{id}/answers [post]
func (h *AnswerHandler) SubmitAnswer(c *gin.Context) {
	questionID := h.parseIDParam(c, "id")
	if questionID == 0 {
		return
	}

	userID, ok := h.currentUserID(c)
	if !ok {
		return
	}

	var req models.SubmitAnswerRequest
	closeFile, err := bindAnswerRequest(c, &req)
	defer closeFile()
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Message: "Invalid request payload",
			Details: err.Error(),
		})
		return
	}

	h.LogRequest(c, "Submitting answer", "question_id", questionID, "audio", req.Audio != nil)

	result, err := h.answerService.Submit(c.Request.Context(), questionID, userID, &req)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusCreated, result)
}

// GetMyAnswers lists the current student's attempts on a question
// @Summary Get my answers
// @Tags answers
// @Produce json
// @Param id path uint true "Question ID"
// @Success 200 {array} models.StudentAnswer
// @Failure 403 {object} ErrorResponse
// @Router /questions/{id}/answers/me [get]
func (h *AnswerHandler) GetMyAnswers(c *gin.Context) {
	questionID := h.parseIDParam(c, "id")
	if questionID == 0 {
		return
	}

	userID, ok := h.currentUserID(c)
	if !ok {
		return
	}

	answers, err := h.answerService.History(c.Request.Context(), questionID, userID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, answers)
}

// bindAnswerRequest decodes a JSON answer, or a multipart form with an optional
// audio file. A form answer that is not JSON is taken as plain text.
func bindAnswerRequest(c *gin.Context, req *models.SubmitAnswerRequest) (func(), error) {
	noop := func() {}

	if !strings.HasPrefix(c.ContentType(), "multipart/") {
		return noop, c.ShouldBindJSON(req)
	}

	if raw := c.PostForm("answer"); raw != "" {
		if json.Valid([]byte(raw)) {
			req.Answer = json.RawMessage(raw)
		} else {
			encoded, err := json.Marshal(raw)
			if err != nil {
				return noop, err
			}
			req.Answer = encoded
		}
	}

	if raw := c.PostForm("time_spent"); raw != "" {
		seconds, err := strconv.Atoi(raw)
		if err != nil {
			return noop, fmt.Errorf("time_spent: %w", err)
		}
		req.TimeSpent = seconds
	}

	fh, err := c.FormFile(audioFormField)
	if err == http.ErrMissingFile {
		return noop, nil
	}
	if err != nil {
		return noop, err
	}

	file, err := openUpload(fh)
	if err != nil {
		return noop, err
	}
	req.Audio = file
	return func() { _ = file.Reader.(io.Closer).Close() }, nil
}
