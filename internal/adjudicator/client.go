package adjudicator

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/SAP-F-2025/challenge-service/internal/config"
	"github.com/SAP-F-2025/challenge-service/internal/models"
)

const adjudicatePath = "/v1/adjudicate"

// HTTPAdjudicator grades free-form and spoken answers through the AI grading service
type HTTPAdjudicator struct {
	client  *resty.Client
	timeout time.Duration
	logger  *slog.Logger
}

func NewHTTPAdjudicator(cfg config.AdjudicatorConfig, logger *slog.Logger) *HTTPAdjudicator {
	client := resty.New().
		SetBaseURL(cfg.URL).
		SetTimeout(cfg.Timeout).
		SetHeader("Content-Type", "application/json").
		SetHeader("Accept", "application/json")
	if cfg.APIKey != "" {
		client.SetAuthToken(cfg.APIKey)
	}

	return &HTTPAdjudicator{
		client:  client,
		timeout: cfg.Timeout,
		logger:  logger,
	}
}

// Adjudicate returns the grader's verdict. Every failure, including a
// timeout or a non-2xx status, is returned as an error; there is no default
// verdict.
func (a *HTTPAdjudicator) Adjudicate(ctx context.Context, req *models.AdjudicationRequest) (*models.AdjudicationVerdict, error) {
	ctx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	start := time.Now()
	var verdict models.AdjudicationVerdict
	resp, err := a.client.R().
		SetContext(ctx).
		SetBody(req).
		SetResult(&verdict).
		Post(adjudicatePath)
	if err != nil {
		return nil, fmt.Errorf("adjudicator request failed: %w", err)
	}

	if resp.IsError() {
		return nil, fmt.Errorf("adjudicator returned status %d: %s", resp.StatusCode(), truncate(resp.String(), 200))
	}

	a.logger.Debug("Answer adjudicated",
		"question_id", req.QuestionID,
		"is_correct", verdict.IsCorrect,
		"duration_ms", time.Since(start).Milliseconds())

	return &verdict, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
