package service

import (
	"net/http"
	"runtime"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/codequest-edu/codequest-api/internal/models"
)

// MetricsService owns the Prometheus registry and the domain counters the
// rest of the services increment.
type MetricsService struct {
	registry *prometheus.Registry

	httpRequestsTotal   *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec

	analysesTotal        *prometheus.CounterVec
	analysisDuration     prometheus.Histogram
	missionsGenerated    prometheus.Counter
	missionsResolved     *prometheus.CounterVec
	achievementsUnlocked prometheus.Counter
	toolRuns             *prometheus.CounterVec

	requestCount    atomic.Uint64
	requestDuration atomic.Uint64 // accumulated microseconds

	analysisCount    atomic.Uint64
	missionCount     atomic.Uint64
	achievementCount atomic.Uint64

	cache *CacheService
}

// NewMetricsService builds the registry with all collectors registered.
func NewMetricsService(cache *CacheService) *MetricsService {
	registry := prometheus.NewRegistry()
	registry.MustRegister(prometheus.NewGoCollector())
	registry.MustRegister(prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}))

	m := &MetricsService{
		registry: registry,
		cache:    cache,
		httpRequestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total HTTP requests handled, by method, path and status.",
		}, []string{"method", "path", "status"}),
		httpRequestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request latency distribution.",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "path"}),
		analysesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "analyses_total",
			Help: "Analysis runs by final status.",
		}, []string{"status"}),
		analysisDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "analysis_duration_seconds",
			Help:    "Wall clock time of the full analysis pipeline.",
			Buckets: []float64{1, 5, 15, 30, 60, 120, 300, 600},
		}),
		missionsGenerated: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "missions_generated_total",
			Help: "Missions created from analysis findings.",
		}),
		missionsResolved: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "missions_resolved_total",
			Help: "Missions closed, by resolution.",
		}, []string{"resolution"}),
		achievementsUnlocked: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "achievements_unlocked_total",
			Help: "Achievements unlocked across all users.",
		}),
		toolRuns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "analysis_tool_runs_total",
			Help: "Static analysis tool executions, by tool and outcome.",
		}, []string{"tool", "outcome"}),
	}

	registry.MustRegister(
		m.httpRequestsTotal,
		m.httpRequestDuration,
		m.analysesTotal,
		m.analysisDuration,
		m.missionsGenerated,
		m.missionsResolved,
		m.achievementsUnlocked,
		m.toolRuns,
	)

	return m
}

// Registry exposes the underlying registry for the /metrics handler.
func (m *MetricsService) Registry() *prometheus.Registry {
	return m.registry
}

// Handler returns the Prometheus scrape handler bound to the registry.
func (m *MetricsService) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// ObserveRequest records one handled HTTP request.
func (m *MetricsService) ObserveRequest(method, path, status string, duration time.Duration) {
	m.httpRequestsTotal.WithLabelValues(method, path, status).Inc()
	m.httpRequestDuration.WithLabelValues(method, path).Observe(duration.Seconds())
	m.requestCount.Add(1)
	m.requestDuration.Add(uint64(duration.Microseconds()))
}

// ObserveAnalysis records a finished analysis run.
func (m *MetricsService) ObserveAnalysis(status models.AnalysisStatus, duration time.Duration) {
	m.analysesTotal.WithLabelValues(string(status)).Inc()
	m.analysisDuration.Observe(duration.Seconds())
	m.analysisCount.Add(1)
}

// ObserveToolRun records a single tool execution outcome.
func (m *MetricsService) ObserveToolRun(tool string, success bool) {
	outcome := "success"
	if !success {
		outcome = "failure"
	}
	m.toolRuns.WithLabelValues(tool, outcome).Inc()
}

// AddMissionsGenerated records newly created missions.
func (m *MetricsService) AddMissionsGenerated(count int) {
	if count <= 0 {
		return
	}
	m.missionsGenerated.Add(float64(count))
	m.missionCount.Add(uint64(count))
}

// ObserveMissionResolved records a mission transition to fixed or skipped.
func (m *MetricsService) ObserveMissionResolved(status models.MissionStatus) {
	m.missionsResolved.WithLabelValues(string(status)).Inc()
}

// ObserveAchievementUnlocked records an unlocked achievement.
func (m *MetricsService) ObserveAchievementUnlocked() {
	m.achievementsUnlocked.Inc()
	m.achievementCount.Add(1)
}

// Snapshot produces the aggregate view served by the admin metrics endpoint.
func (m *MetricsService) Snapshot() models.SystemMetrics {
	var hits, misses uint64
	if m.cache != nil {
		hits, misses = m.cache.Stats()
	}

	ratio := 0.0
	if hits+misses > 0 {
		ratio = float64(hits) / float64(hits+misses)
	}

	requests := m.requestCount.Load()
	avgMs := 0.0
	if requests > 0 {
		avgMs = float64(m.requestDuration.Load()) / float64(requests) / 1000.0
	}

	return models.SystemMetrics{
		CacheHitRatio:            ratio,
		CacheHits:                hits,
		CacheMisses:              misses,
		RequestsTotal:            requests,
		AverageRequestDurationMs: avgMs,
		AnalysesTotal:            m.analysisCount.Load(),
		MissionsGenerated:        m.missionCount.Load(),
		AchievementsUnlocked:     m.achievementCount.Load(),
		Goroutines:               runtime.NumGoroutine(),
		GeneratedAt:              time.Now().UTC(),
	}
}
