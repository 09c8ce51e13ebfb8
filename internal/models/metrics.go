package models

import "time"

// SystemMetrics is a lightweight aggregate snapshot for API consumption.
type SystemMetrics struct {
	CacheHitRatio            float64   `json:"cache_hit_ratio"`
	CacheHits                uint64    `json:"cache_hits"`
	CacheMisses              uint64    `json:"cache_misses"`
	RequestsTotal            uint64    `json:"requests_total"`
	AverageRequestDurationMs float64   `json:"average_request_duration_ms"`
	AnalysesTotal            uint64    `json:"analyses_total"`
	MissionsGenerated        uint64    `json:"missions_generated"`
	AchievementsUnlocked     uint64    `json:"achievements_unlocked"`
	Goroutines               int       `json:"goroutines"`
	GeneratedAt              time.Time `json:"generated_at"`
}
