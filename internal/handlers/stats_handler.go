package handlers

import (
	"bytes"
	"fmt"
	"net/http"

	"github.com/SAP-F-2025/challenge-service/internal/services"
	"github.com/SAP-F-2025/challenge-service/internal/utils"
	"github.com/gin-gonic/gin"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

type StatsHandler struct {
	BaseHandler
	statsService services.StatsService
}

func NewStatsHandler(statsService services.StatsService, logger utils.Logger) *StatsHandler {
	return &StatsHandler{
		BaseHandler:  NewBaseHandler(logger),
		statsService: statsService,
	}
}

// GetSchoolStats returns per-question answer statistics for a school
// @Summary Get school statistics
// @Tags stats
// @Produce json
// @Param id path uint true "School ID"
// @Param question_id query int false "Only this question"
// @Success 200 {array} models.QuestionSchoolStats
// @Failure 400 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Router /schools/{id}/stats [get]
func (h *StatsHandler) GetSchoolStats(c *gin.Context) {
	schoolID := h.parseIDParam(c, "id")
	if schoolID == 0 {
		return
	}
	questionID, ok := h.parseOptionalUintQuery(c, "question_id")
	if !ok {
		return
	}

	h.LogRequest(c, "Getting school stats", "school_id", schoolID)

	stats, err := h.statsService.GetSchoolStats(c.Request.Context(), schoolID, questionID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, stats)
}

// ExportSchoolStats downloads the school statistics as an xlsx workbook
// @Summary Export school statistics
// @Tags stats
// @Produce application/vnd.openxmlformats-officedocument.spreadsheetml.sheet
// @Param id path uint true "School ID"
// @Param question_id query int false "Only this question"
// @Success 200 {file} file
// @Failure 404 {object} ErrorResponse
// @Router /schools/{id}/stats/export [get]
func (h *StatsHandler) ExportSchoolStats(c *gin.Context) {
	schoolID := h.parseIDParam(c, "id")
	if schoolID == 0 {
		return
	}
	questionID, ok := h.parseOptionalUintQuery(c, "question_id")
	if !ok {
		return
	}

	h.LogRequest(c, "Exporting school stats", "school_id", schoolID)

	var buf bytes.Buffer
	if err := h.statsService.ExportSchoolStats(c.Request.Context(), schoolID, questionID, &buf); err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=school-%d-stats.xlsx", schoolID))
	c.Data(http.StatusOK, xlsxContentType, buf.Bytes())
}
