package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics owns the collectors of the service on a private registry. All
// methods are safe on a nil receiver.
type Metrics struct {
	registry *prometheus.Registry

	requestCounter      *prometheus.CounterVec
	requestDuration     *prometheus.HistogramVec
	answerCounter       *prometheus.CounterVec
	adjudicationLatency *prometheus.HistogramVec
	questionCounter     *prometheus.CounterVec
}

func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		requestCounter: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "endpoint", "status"},
		),
		requestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "Duration of HTTP requests",
				Buckets: []float64{0.05, 0.1, 0.5, 1, 2, 5},
			},
			[]string{"method", "endpoint"},
		),
		answerCounter: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "challenge_answers_total",
				Help: "Answer submissions by question type, validation method and outcome",
			},
			[]string{"type", "method", "outcome"},
		),
		adjudicationLatency: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "challenge_adjudication_duration_seconds",
				Help:    "Latency of calls to the answer adjudicator",
				Buckets: []float64{0.25, 0.5, 1, 2, 5, 10, 20, 30},
			},
			[]string{"outcome"},
		),
		questionCounter: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "challenge_questions_created_total",
				Help: "Questions created by type",
			},
			[]string{"type"},
		),
	}

	m.registry.MustRegister(
		m.requestCounter,
		m.requestDuration,
		m.answerCounter,
		m.adjudicationLatency,
		m.questionCounter,
	)
	return m
}

// Answer outcomes
const (
	OutcomeCorrect      = "correct"
	OutcomeIncorrect    = "incorrect"
	OutcomeLimitReached = "limit_reached"
	OutcomeError        = "error"
)

func (m *Metrics) ObserveAnswer(questionType, method, outcome string) {
	if m == nil {
		return
	}
	m.answerCounter.WithLabelValues(questionType, method, outcome).Inc()
}

func (m *Metrics) ObserveAdjudication(outcome string, duration time.Duration) {
	if m == nil {
		return
	}
	m.adjudicationLatency.WithLabelValues(outcome).Observe(duration.Seconds())
}

func (m *Metrics) ObserveQuestionCreated(questionType string) {
	if m == nil {
		return
	}
	m.questionCounter.WithLabelValues(questionType).Inc()
}

func (m *Metrics) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if m == nil {
			c.Next()
			return
		}

		start := time.Now()
		c.Next()

		endpoint := c.FullPath()
		if endpoint == "" {
			endpoint = "unmatched"
		}

		m.requestCounter.WithLabelValues(
			c.Request.Method,
			endpoint,
			strconv.Itoa(c.Writer.Status()),
		).Inc()

		m.requestDuration.WithLabelValues(
			c.Request.Method,
			endpoint,
		).Observe(time.Since(start).Seconds())
	}
}

func (m *Metrics) Handler() gin.HandlerFunc {
	if m == nil {
		return func(c *gin.Context) {
			c.Status(http.StatusNotFound)
		}
	}
	h := promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
	return func(c *gin.Context) {
		h.ServeHTTP(c.Writer, c.Request)
	}
}
