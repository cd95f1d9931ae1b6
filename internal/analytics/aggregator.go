package analytics

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"

	"carequery/internal/archive"
	"carequery/internal/model"
	"carequery/internal/platform/mysql"
	"carequery/internal/repository"
)

const (
	defaultWindowDays = 7
	maxWindowDays     = 30
)

type DailyStat struct {
	Date               string  `json:"date"`
	TotalRequests      int     `json:"total_requests"`
	SuccessfulRequests int     `json:"successful_requests"`
	FailedRequests     int     `json:"failed_requests"`
	UniqueSessions     int     `json:"unique_sessions"`
	AvgResponseTime    float64 `json:"avg_response_time"`
}

type HourlyStat struct {
	Hour               int `json:"hour"`
	TotalRequests      int `json:"total_requests"`
	SuccessfulRequests int `json:"successful_requests"`
	FailedRequests     int `json:"failed_requests"`
}

type SessionStats struct {
	TotalSessions          int     `json:"total_sessions"`
	ActiveSessions         int     `json:"active_sessions"`
	AvgRequestsPerSession  float64 `json:"avg_requests_per_session"`
	AvgSessionResponseTime float64 `json:"avg_session_response_time"`
}

type Period struct {
	StartDate string `json:"start_date"`
	EndDate   string `json:"end_date"`
	Days      int    `json:"days"`
}

type Overview struct {
	Period       Period                     `json:"period"`
	DailyStats   []DailyStat                `json:"daily_stats"`
	HourlyStats  []HourlyStat               `json:"hourly_stats"`
	TopEndpoints []repository.EndpointCount `json:"top_endpoints"`
	SessionStats SessionStats               `json:"session_stats"`
	GeneratedAt  time.Time                  `json:"generated_at"`
}

// Aggregator derives read-only rollups from the raw exchange history. It
// recomputes everything on demand and never writes to the history, so it
// runs fully concurrently with exchange handling.
type Aggregator struct {
	db        *gorm.DB
	requests  *repository.RequestLogRepository
	responses *repository.ResponseLogRepository
	sessions  *repository.SessionRecordRepository
	archive   *archive.Archive

	now func() time.Time
}

func NewAggregator(
	db *gorm.DB,
	requests *repository.RequestLogRepository,
	responses *repository.ResponseLogRepository,
	sessions *repository.SessionRecordRepository,
	arch *archive.Archive,
) *Aggregator {
	return &Aggregator{
		db:        db,
		requests:  requests,
		responses: responses,
		sessions:  sessions,
		archive:   arch,
		now:       time.Now,
	}
}

// Overview rolls the last `days` calendar days (ending today) into daily,
// hourly, endpoint, and session statistics. Days is clamped to [1, 30];
// zero or negative input falls back to the 7-day default. Empty history
// yields zero-filled rollups, never an error.
func (a *Aggregator) Overview(ctx context.Context, days int) (*Overview, error) {
	if days <= 0 {
		days = defaultWindowDays
	}
	if days > maxWindowDays {
		days = maxWindowDays
	}

	now := a.now()
	today := startOfDay(now)
	since := today.AddDate(0, 0, -(days - 1))

	responseLogs, err := a.responses.ListSince(ctx, since)
	if err != nil {
		return nil, err
	}
	requestLogs, err := a.requests.ListSince(ctx, since)
	if err != nil {
		return nil, err
	}
	topEndpoints, err := a.requests.CountByEndpointSince(ctx, since, 10)
	if err != nil {
		return nil, err
	}
	if topEndpoints == nil {
		topEndpoints = []repository.EndpointCount{}
	}
	sessionRecords, err := a.sessions.ListSince(ctx, since)
	if err != nil {
		return nil, err
	}

	return &Overview{
		Period: Period{
			StartDate: since.Format("2006-01-02"),
			EndDate:   today.Format("2006-01-02"),
			Days:      days,
		},
		DailyStats:   a.rollupDaily(since, days, responseLogs, requestLogs),
		HourlyStats:  a.rollupHourly(today, responseLogs),
		TopEndpoints: topEndpoints,
		SessionStats: rollupSessions(sessionRecords),
		GeneratedAt:  now,
	}, nil
}

// rollupDaily produces exactly `days` entries, oldest first, zero-filled
// for days with no traffic.
func (a *Aggregator) rollupDaily(since time.Time, days int, responses []model.ResponseLog, requests []model.RequestLog) []DailyStat {
	type bucket struct {
		total, success, fail int
		timeSum              float64
		sessions             map[string]struct{}
	}
	buckets := make(map[string]*bucket, days)

	stats := make([]DailyStat, 0, days)
	for i := 0; i < days; i++ {
		date := since.AddDate(0, 0, i).Format("2006-01-02")
		buckets[date] = &bucket{sessions: make(map[string]struct{})}
		stats = append(stats, DailyStat{Date: date})
	}

	for _, entry := range responses {
		b, ok := buckets[entry.CreatedAt.Format("2006-01-02")]
		if !ok {
			continue
		}
		b.total++
		if entry.Success {
			b.success++
		} else {
			b.fail++
		}
		b.timeSum += entry.ProcessingTime
	}
	for _, entry := range requests {
		b, ok := buckets[entry.CreatedAt.Format("2006-01-02")]
		if !ok || entry.SessionID == "" {
			continue
		}
		b.sessions[entry.SessionID] = struct{}{}
	}

	for i := range stats {
		b := buckets[stats[i].Date]
		stats[i].TotalRequests = b.total
		stats[i].SuccessfulRequests = b.success
		stats[i].FailedRequests = b.fail
		stats[i].UniqueSessions = len(b.sessions)
		if b.total > 0 {
			stats[i].AvgResponseTime = b.timeSum / float64(b.total)
		}
	}
	return stats
}

// rollupHourly covers all 24 hours of today, zero-filled.
func (a *Aggregator) rollupHourly(today time.Time, responses []model.ResponseLog) []HourlyStat {
	stats := make([]HourlyStat, 24)
	for hour := range stats {
		stats[hour].Hour = hour
	}

	for _, entry := range responses {
		if !startOfDay(entry.CreatedAt).Equal(today) {
			continue
		}
		hour := entry.CreatedAt.Hour()
		stats[hour].TotalRequests++
		if entry.Success {
			stats[hour].SuccessfulRequests++
		} else {
			stats[hour].FailedRequests++
		}
	}
	return stats
}

func rollupSessions(records []model.SessionRecord) SessionStats {
	stats := SessionStats{TotalSessions: len(records)}
	if len(records) == 0 {
		return stats
	}

	var requestsSum int
	var perSessionTimeSum float64
	var timedSessions int
	for _, record := range records {
		if record.IsActive {
			stats.ActiveSessions++
		}
		requestsSum += record.TotalRequests
		if record.TotalRequests > 0 {
			perSessionTimeSum += record.TotalResponseTime / float64(record.TotalRequests)
			timedSessions++
		}
	}
	stats.AvgRequestsPerSession = float64(requestsSum) / float64(len(records))
	if timedSessions > 0 {
		stats.AvgSessionResponseTime = perSessionTimeSum / float64(timedSessions)
	}
	return stats
}

type DatabaseStats struct {
	TotalRequests  int64   `json:"total_requests"`
	TotalResponses int64   `json:"total_responses"`
	TotalSessions  int64   `json:"total_sessions"`
	ActiveSessions int64   `json:"active_sessions"`
	DBSizeBytes    int64   `json:"db_size_bytes"`
	DBSizeMB       float64 `json:"db_size_mb"`
}

type TotalStorage struct {
	SizeBytes int64   `json:"size_bytes"`
	SizeMB    float64 `json:"size_mb"`
	SizeGB    float64 `json:"size_gb"`
}

type StorageStats struct {
	DatabaseStats DatabaseStats                    `json:"database_stats"`
	FileStats     map[string]archive.CategoryStats `json:"file_stats"`
	TotalStorage  TotalStorage                     `json:"total_storage"`
	Directories   map[string]string                `json:"directories"`
	GeneratedAt   time.Time                        `json:"generated_at"`
}

// Storage reports row counts, database size, and archive file totals.
func (a *Aggregator) Storage(ctx context.Context) (*StorageStats, error) {
	totalRequests, err := a.requests.Count(ctx)
	if err != nil {
		return nil, err
	}
	totalResponses, err := a.responses.Count(ctx)
	if err != nil {
		return nil, err
	}
	totalSessions, activeSessions, err := a.sessions.Counts(ctx)
	if err != nil {
		return nil, err
	}

	dbSize := mysql.SizeBytes(a.db)
	fileStats, fileSize := a.archive.Stats()
	totalSize := dbSize + fileSize

	return &StorageStats{
		DatabaseStats: DatabaseStats{
			TotalRequests:  totalRequests,
			TotalResponses: totalResponses,
			TotalSessions:  totalSessions,
			ActiveSessions: activeSessions,
			DBSizeBytes:    dbSize,
			DBSizeMB:       roundTo(float64(dbSize)/(1024*1024), 2),
		},
		FileStats: fileStats,
		TotalStorage: TotalStorage{
			SizeBytes: totalSize,
			SizeMB:    roundTo(float64(totalSize)/(1024*1024), 2),
			SizeGB:    roundTo(float64(totalSize)/(1024*1024*1024), 3),
		},
		Directories: a.archive.Directories(),
		GeneratedAt: a.now(),
	}, nil
}

type CleanupStats struct {
	DeletedRecords int64 `json:"deleted_records"`
	DeletedFiles   int   `json:"deleted_files"`
	Errors         int   `json:"errors"`
}

// Cleanup removes history older than daysToKeep days. Active sessions
// survive regardless of age.
func (a *Aggregator) Cleanup(ctx context.Context, daysToKeep int) (*CleanupStats, error) {
	if daysToKeep <= 0 {
		daysToKeep = 30
	}
	cutoff := a.now().AddDate(0, 0, -daysToKeep)

	stats := &CleanupStats{}
	deleted, err := a.responses.DeleteOlderThan(ctx, cutoff)
	if err != nil {
		return nil, fmt.Errorf("cleanup responses failed: %w", err)
	}
	stats.DeletedRecords += deleted

	deleted, err = a.requests.DeleteOlderThan(ctx, cutoff)
	if err != nil {
		return nil, fmt.Errorf("cleanup requests failed: %w", err)
	}
	stats.DeletedRecords += deleted

	deleted, err = a.sessions.DeleteInactiveOlderThan(ctx, cutoff)
	if err != nil {
		return nil, fmt.Errorf("cleanup sessions failed: %w", err)
	}
	stats.DeletedRecords += deleted

	files, errored := a.archive.CleanupOlderThan(cutoff)
	stats.DeletedFiles = files
	stats.Errors = errored
	return stats, nil
}

func startOfDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

func roundTo(v float64, places int) float64 {
	factor := 1.0
	for i := 0; i < places; i++ {
		factor *= 10
	}
	return float64(int64(v*factor+0.5)) / factor
}
