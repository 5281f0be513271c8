package handlers

import (
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"

	"github.com/SAP-F-2025/challenge-service/internal/models"
	"github.com/SAP-F-2025/challenge-service/internal/services"
	"github.com/SAP-F-2025/challenge-service/internal/utils"
	"github.com/gin-gonic/gin"
)

const (
	maxUploadSize  = 50 << 20
	mediaFormField = "media"
)

type QuestionHandler struct {
	BaseHandler
	questionService services.QuestionService
	registry        *services.ContentRegistry
}

func NewQuestionHandler(
	questionService services.QuestionService,
	registry *services.ContentRegistry,
	logger utils.Logger,
) *QuestionHandler {
	return &QuestionHandler{
		BaseHandler:     NewBaseHandler(logger),
		questionService: questionService,
		registry:        registry,
	}
}

type questionTypeResponse struct {
	Type             models.QuestionType     `json:"type"`
	Stage            models.Stage            `json:"stage"`
	ValidationMethod models.ValidationMethod `json:"validation_method"`
	Composite        bool                    `json:"composite"`
	RequiresAudio    bool                    `json:"requires_audio"`
}

type updateLifecycleRequest struct {
	Lifecycle models.Lifecycle `json:"lifecycle" binding:"required"`
}

// ListQuestionTypes lists every supported question type
// @Summary List question types
// @Tags questions
// @Produce json
// @Success 200 {array} questionTypeResponse
// @Router /question-types [get]
func (h *QuestionHandler) ListQuestionTypes(c *gin.Context) {
	types := make([]questionTypeResponse, 0, len(models.AllQuestionTypes))
	for _, qt := range models.AllQuestionTypes {
		spec, ok := h.registry.Spec(qt)
		if !ok {
			continue
		}
		types = append(types, questionTypeResponse{
			Type:             spec.Type,
			Stage:            spec.Stage,
			ValidationMethod: spec.Method,
			Composite:        spec.Composite,
			RequiresAudio:    spec.RequiresAudio,
		})
	}
	c.JSON(http.StatusOK, types)
}

// CreateQuestion creates a question of the type named in the path
// @Summary Create question
// @Description Accepts JSON, or multipart with a "payload" JSON field and "media" files
// @Tags questions
// @Accept json,mpfd
// @Produce json
// @Param type path string true "Question type"
// @Param question body models.QuestionCreateRequest true "Question data"
// @Success 201 {object} models.Question
// @Failure 400 {object} ErrorResponse
// @Failure 401 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Failure 502 {object} ErrorResponse
// @Router /question-types/{type}/questions [post]
func (h *QuestionHandler) CreateQuestion(c *gin.Context) {
	questionType := models.QuestionType(c.Param("type"))
	if !questionType.IsValid() {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Message: "Unsupported question type",
			Details: string(questionType),
		})
		return
	}

	userID, ok := h.currentUserID(c)
	if !ok {
		return
	}

	var req models.QuestionCreateRequest
	closeFiles, err := bindQuestionRequest(c, &req)
	defer closeFiles()
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Message: "Invalid request payload",
			Details: err.Error(),
		})
		return
	}

	if req.Type != "" && req.Type != questionType {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Message: "Question type does not match the endpoint",
			Details: fmt.Sprintf("body has %q, path has %q", req.Type, questionType),
		})
		return
	}
	req.Type = questionType

	h.LogRequest(c, "Creating question", "type", questionType, "challenge_id", req.ChallengeID, "media", len(req.Media))

	question, err := h.questionService.Create(c.Request.Context(), &req, userID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusCreated, question)
}

// ListQuestions lists root questions with filters
// @Summary List questions
// @Tags questions
// @Produce json
// @Param page query int false "Page number, from 0"
// @Param size query int false "Page size" default(20)
// @Param challenge_id query int false "Challenge ID"
// @Param stage query string false "Stage"
// @Param type query string false "Question type"
// @Param search query string false "Text search"
// @Param sort_by query string false "position, created_at or points"
// @Param sort_dir query string false "asc or desc"
// @Success 200 {object} models.PaginatedResponse
// @Failure 400 {object} ErrorResponse
// @Router /questions [get]
func (h *QuestionHandler) ListQuestions(c *gin.Context) {
	params, err := parseListParams(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Message: "Invalid query parameters",
			Details: err.Error(),
		})
		return
	}

	h.LogRequest(c, "Listing questions", "page", params.Page, "size", params.Size)

	result, err := h.questionService.List(c.Request.Context(), params)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}

// GetQuestion returns a question with its sub-questions, configurations and media
// @Summary Get question
// @Tags questions
// @Produce json
// @Param id path uint true "Question ID"
// @Success 200 {object} models.Question
// @Failure 400 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Router /questions/{id} [get]
func (h *QuestionHandler) GetQuestion(c *gin.Context) {
	id := h.parseIDParam(c, "id")
	if id == 0 {
		return
	}

	question, err := h.questionService.GetByID(c.Request.Context(), id)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, question)
}

// GetChallengeQuestions lists the active root questions of a challenge in order
// @Summary Get questions by challenge
// @Tags questions
// @Produce json
// @Param id path uint true "Challenge ID"
// @Param stage query string false "Stage"
// @Success 200 {array} models.Question
// @Failure 400 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Router /challenges/{id}/questions [get]
func (h *QuestionHandler) GetChallengeQuestions(c *gin.Context) {
	challengeID := h.parseIDParam(c, "id")
	if challengeID == 0 {
		return
	}

	var stage *models.Stage
	if raw := c.Query("stage"); raw != "" {
		s := models.Stage(strings.ToUpper(raw))
		stage = &s
	}

	questions, err := h.questionService.GetByChallenge(c.Request.Context(), challengeID, stage)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, questions)
}

// UpdateLifecycle activates, deactivates or deletes a question
// @Summary Update question lifecycle
// @Tags questions
// @Accept json
// @Produce json
// @Param id path uint true "Question ID"
// @Param body body updateLifecycleRequest true "New lifecycle"
// @Success 200 {object} SuccessResponse
// @Failure 400 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Router /questions/{id}/lifecycle [put]
func (h *QuestionHandler) UpdateLifecycle(c *gin.Context) {
	id := h.parseIDParam(c, "id")
	if id == 0 {
		return
	}

	userID, ok := h.currentUserID(c)
	if !ok {
		return
	}

	var req updateLifecycleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Message: "Invalid request payload",
			Details: err.Error(),
		})
		return
	}

	h.LogRequest(c, "Updating question lifecycle", "question_id", id, "lifecycle", req.Lifecycle)

	if err := h.questionService.UpdateLifecycle(c.Request.Context(), id, req.Lifecycle, userID); err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, SuccessResponse{
		Message: "Question lifecycle updated",
		Data:    gin.H{"question_id": id, "lifecycle": req.Lifecycle},
	})
}

// AddSubQuestion appends a sub-question to a composite question
// @Summary Add sub-question
// @Tags questions
// @Accept json
// @Produce json
// @Param id path uint true "Parent question ID"
// @Success 201 {object} models.Question
// @Failure 400 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Failure 422 {object} ErrorResponse
// @Router /questions/{id}/sub-questions [post]
func (h *QuestionHandler) AddSubQuestion(c *gin.Context) {
	parentID := h.parseIDParam(c, "id")
	if parentID == 0 {
		return
	}

	userID, ok := h.currentUserID(c)
	if !ok {
		return
	}

	body, err := c.GetRawData()
	if err != nil || !json.Valid(body) {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Message: "Invalid request payload",
			Details: "body must be a JSON object",
		})
		return
	}

	h.LogRequest(c, "Adding sub-question", "parent_id", parentID)

	sub, err := h.questionService.AddSubQuestion(c.Request.Context(), parentID, body, userID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusCreated, sub)
}

// RecalculatePoints sets a composite question's points to the sum of its active sub-questions
// @Summary Recalculate composite points
// @Tags questions
// @Produce json
// @Param id path uint true "Parent question ID"
// @Success 200 {object} SuccessResponse
// @Failure 404 {object} ErrorResponse
// @Failure 422 {object} ErrorResponse
// @Router /questions/{id}/recalculate-points [post]
func (h *QuestionHandler) RecalculatePoints(c *gin.Context) {
	parentID := h.parseIDParam(c, "id")
	if parentID == 0 {
		return
	}

	points, err := h.questionService.RecalculateParentPoints(c.Request.Context(), parentID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, SuccessResponse{
		Message: "Points recalculated",
		Data:    gin.H{"question_id": parentID, "points": points},
	})
}

// bindQuestionRequest decodes a JSON body, or a multipart form carrying the
// JSON in "payload" plus media files. The returned func closes opened files.
func bindQuestionRequest(c *gin.Context, req *models.QuestionCreateRequest) (func(), error) {
	noop := func() {}

	if !strings.HasPrefix(c.ContentType(), "multipart/") {
		if err := c.ShouldBindJSON(req); err != nil {
			return noop, err
		}
		return noop, nil
	}

	payload := c.PostForm("payload")
	if payload == "" {
		return noop, fmt.Errorf("multipart requests need a payload field")
	}
	if err := json.Unmarshal([]byte(payload), req); err != nil {
		return noop, fmt.Errorf("invalid payload: %w", err)
	}

	form, err := c.MultipartForm()
	if err != nil {
		return noop, err
	}

	var opened []io.Closer
	closeAll := func() {
		for _, f := range opened {
			_ = f.Close()
		}
	}
	for _, fh := range form.File[mediaFormField] {
		file, err := openUpload(fh)
		if err != nil {
			closeAll()
			return noop, err
		}
		opened = append(opened, file.Reader.(io.Closer))
		req.Media = append(req.Media, *file)
	}
	return closeAll, nil
}

func openUpload(fh *multipart.FileHeader) (*models.MediaFile, error) {
	if fh.Size > maxUploadSize {
		return nil, fmt.Errorf("file %s exceeds %d MB", fh.Filename, maxUploadSize>>20)
	}
	f, err := fh.Open()
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", fh.Filename, err)
	}
	contentType := fh.Header.Get("Content-Type")
	return &models.MediaFile{
		FileName:    fh.Filename,
		ContentType: contentType,
		Size:        fh.Size,
		Reader:      f,
		Context:     mediaContext(contentType),
	}, nil
}

func mediaContext(contentType string) string {
	switch {
	case strings.HasPrefix(contentType, "image/"):
		return "image"
	case strings.HasPrefix(contentType, "audio/"):
		return "audio"
	case strings.HasPrefix(contentType, "video/"):
		return "video"
	default:
		return "file"
	}
}

func parseListParams(c *gin.Context) (*models.ListQuestionsParams, error) {
	params := &models.ListQuestionsParams{
		Stage:   models.Stage(strings.ToUpper(c.Query("stage"))),
		Type:    models.QuestionType(c.Query("type")),
		Search:  c.Query("search"),
		SortBy:  c.Query("sort_by"),
		SortDir: strings.ToLower(c.Query("sort_dir")),
	}

	var err error
	if params.Page, err = queryInt(c, "page", 0); err != nil {
		return nil, err
	}
	if params.Size, err = queryInt(c, "size", 0); err != nil {
		return nil, err
	}
	if raw := c.Query("challenge_id"); raw != "" {
		id, err := strconv.ParseUint(raw, 10, 32)
		if err != nil {
			return nil, fmt.Errorf("challenge_id: %w", err)
		}
		challengeID := uint(id)
		params.ChallengeID = &challengeID
	}
	return params, nil
}

func queryInt(c *gin.Context, key string, fallback int) (int, error) {
	raw := c.Query(key)
	if raw == "" {
		return fallback, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return v, nil
}
