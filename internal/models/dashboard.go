package models

import "time"

// DashboardSummary carries per-college headline counts.
type DashboardSummary struct {
	CollegeID       string    `json:"college_id"`
	Students        int       `json:"students"`
	Faculty         int       `json:"faculty"`
	Classes         int       `json:"classes"`
	Rooms           int       `json:"rooms"`
	PendingBookings int       `json:"pending_bookings"`
	ActiveLoans     int       `json:"active_loans"`
	UpcomingEvents  int       `json:"upcoming_events"`
	GeneratedAt     time.Time `json:"generated_at"`
}

// SystemMetrics carries aggregated runtime metrics for the ops endpoint.
type SystemMetrics struct {
	CacheHitRatio            float64   `json:"cache_hit_ratio"`
	CacheHits                uint64    `json:"cache_hits"`
	CacheMisses              uint64    `json:"cache_misses"`
	RequestsTotal            uint64    `json:"requests_total"`
	AverageRequestDurationMs float64   `json:"avg_request_duration_ms"`
	DBQueryCount             uint64    `json:"db_query_count"`
	AverageDBQueryDurationMs float64   `json:"avg_db_query_duration_ms"`
	Goroutines               int       `json:"goroutines"`
	GeneratedAt              time.Time `json:"generated_at"`
}
