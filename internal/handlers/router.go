package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/SAP-F-2025/challenge-service/internal/metrics"
	"github.com/SAP-F-2025/challenge-service/internal/models"
	"github.com/SAP-F-2025/challenge-service/internal/services"
	"github.com/SAP-F-2025/challenge-service/internal/utils"
)

type HandlerManager struct {
	questionHandler *QuestionHandler
	answerHandler   *AnswerHandler
	statsHandler    *StatsHandler
	serviceManager  services.ServiceManager
	authMiddleware  Authenticator
	answerLimiter   *RateLimiter
	metrics         *metrics.Metrics
}

func NewHandlerManager(
	serviceManager services.ServiceManager,
	logger utils.Logger,
	auth Authenticator,
	m *metrics.Metrics,
	answersPerMinute int,
) *HandlerManager {
	return &HandlerManager{
		questionHandler: NewQuestionHandler(serviceManager.Question(), serviceManager.Registry(), logger),
		answerHandler:   NewAnswerHandler(serviceManager.Answer(), logger),
		statsHandler:    NewStatsHandler(serviceManager.Stats(), logger),
		serviceManager:  serviceManager,
		authMiddleware:  auth,
		answerLimiter:   NewRateLimiter(answersPerMinute),
		metrics:         m,
	}
}

// SetupRoutes sets up all API routes
func (hm *HandlerManager) SetupRoutes(router *gin.Engine) {
	staff := hm.authMiddleware.RequireRoleMiddleware(models.RoleTeacher, models.RoleAdmin)

	v1 := router.Group("/api/v1")
	v1.Use(hm.authMiddleware.AuthMiddleware())
	{
		questionTypes := v1.Group("/question-types")
		{
			questionTypes.GET("", hm.questionHandler.ListQuestionTypes)
			questionTypes.POST("/:type/questions", staff, hm.questionHandler.CreateQuestion)
		}

		questions := v1.Group("/questions")
		{
			questions.GET("", hm.questionHandler.ListQuestions)
			questions.GET("/:id", hm.questionHandler.GetQuestion)

			// Authoring - Teachers and Admins only
			questions.PUT("/:id/lifecycle", staff, hm.questionHandler.UpdateLifecycle)
			questions.POST("/:id/sub-questions", staff, hm.questionHandler.AddSubQuestion)
			questions.POST("/:id/recalculate-points", staff, hm.questionHandler.RecalculatePoints)

			// Answers - Students
			questions.POST("/:id/answers",
				hm.authMiddleware.RequireRoleMiddleware(models.RoleStudent),
				RateLimitMiddleware(hm.answerLimiter),
				hm.answerHandler.SubmitAnswer,
			)
			questions.GET("/:id/answers/me", hm.authMiddleware.RequireRoleMiddleware(models.RoleStudent), hm.answerHandler.GetMyAnswers)
		}

		v1.GET("/challenges/:id/questions", hm.questionHandler.GetChallengeQuestions)

		schools := v1.Group("/schools")
		schools.Use(staff)
		{
			schools.GET("/:id/stats", hm.statsHandler.GetSchoolStats)
			schools.GET("/:id/stats/export", hm.statsHandler.ExportSchoolStats)
		}
	}

	router.GET("/metrics", hm.metrics.Handler())
	router.GET("/health", hm.health)
}

func (hm *HandlerManager) health(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 3*time.Second)
	defer cancel()

	if err := hm.serviceManager.HealthCheck(ctx); err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"status":  "unhealthy",
			"service": "challenge-service",
			"error":   err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status":  "healthy",
		"service": "challenge-service",
	})
}
