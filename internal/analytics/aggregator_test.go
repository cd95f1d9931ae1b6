package analytics

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"carequery/internal/archive"
	"carequery/internal/model"
	"carequery/internal/repository"
)

func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := db.AutoMigrate(&model.RequestLog{}, &model.ResponseLog{}, &model.SessionRecord{}); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

func newTestAggregator(t *testing.T, at time.Time) (*Aggregator, *gorm.DB, *archive.Archive) {
	t.Helper()
	db := openTestDB(t)
	arch, err := archive.New(t.TempDir())
	if err != nil {
		t.Fatalf("archive: %v", err)
	}
	agg := NewAggregator(
		db,
		repository.NewRequestLogRepository(db),
		repository.NewResponseLogRepository(db),
		repository.NewSessionRecordRepository(db),
		arch,
	)
	agg.now = func() time.Time { return at }
	return agg, db, arch
}

func seedResponse(t *testing.T, db *gorm.DB, sessionID string, success bool, processingTime float64, at time.Time) {
	t.Helper()
	entry := model.ResponseLog{
		ResponseID:     uuid.NewString(),
		RequestID:      uuid.NewString(),
		SessionID:      sessionID,
		StatusCode:     200,
		Success:        success,
		ProcessingTime: processingTime,
		CreatedAt:      at,
	}
	if err := db.Create(&entry).Error; err != nil {
		t.Fatalf("seed response log: %v", err)
	}
}

func seedRequest(t *testing.T, db *gorm.DB, sessionID, endpoint string, at time.Time) {
	t.Helper()
	entry := model.RequestLog{
		RequestID: uuid.NewString(),
		SessionID: sessionID,
		Endpoint:  endpoint,
		Method:    "POST",
		CreatedAt: at,
	}
	if err := db.Create(&entry).Error; err != nil {
		t.Fatalf("seed request log: %v", err)
	}
}

func TestOverviewEmptyHistory(t *testing.T) {
	now := time.Date(2026, 9, 1, 14, 30, 0, 0, time.UTC)
	agg, _, _ := newTestAggregator(t, now)

	overview, err := agg.Overview(context.Background(), 7)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(overview.DailyStats) != 7 {
		t.Fatalf("expected 7 daily entries, got %d", len(overview.DailyStats))
	}
	if len(overview.HourlyStats) != 24 {
		t.Fatalf("expected 24 hourly entries, got %d", len(overview.HourlyStats))
	}
	for _, day := range overview.DailyStats {
		if day.TotalRequests != 0 || day.UniqueSessions != 0 || day.AvgResponseTime != 0 {
			t.Fatalf("expected zero-filled day, got %+v", day)
		}
	}
	if overview.TopEndpoints == nil || len(overview.TopEndpoints) != 0 {
		t.Fatalf("expected empty (non-nil) top endpoints, got %v", overview.TopEndpoints)
	}
	if overview.SessionStats.TotalSessions != 0 {
		t.Fatalf("expected zero session stats, got %+v", overview.SessionStats)
	}
	if overview.Period.Days != 7 {
		t.Fatalf("unexpected period %+v", overview.Period)
	}
	if overview.Period.StartDate != "2026-08-26" || overview.Period.EndDate != "2026-09-01" {
		t.Fatalf("unexpected window %+v", overview.Period)
	}
}

func TestOverviewClampsDays(t *testing.T) {
	now := time.Date(2026, 9, 1, 10, 0, 0, 0, time.UTC)
	agg, _, _ := newTestAggregator(t, now)

	for _, tc := range []struct {
		in, want int
	}{
		{0, 7},
		{-3, 7},
		{1, 1},
		{30, 30},
		{365, 30},
	} {
		overview, err := agg.Overview(context.Background(), tc.in)
		if err != nil {
			t.Fatalf("days=%d: %v", tc.in, err)
		}
		if overview.Period.Days != tc.want || len(overview.DailyStats) != tc.want {
			t.Fatalf("days=%d: got period %d with %d entries, want %d",
				tc.in, overview.Period.Days, len(overview.DailyStats), tc.want)
		}
	}
}

func TestOverviewRollups(t *testing.T) {
	now := time.Date(2026, 9, 1, 14, 30, 0, 0, time.UTC)
	agg, db, _ := newTestAggregator(t, now)

	today := time.Date(2026, 9, 1, 9, 15, 0, 0, time.UTC)
	yesterday := today.AddDate(0, 0, -1)

	seedResponse(t, db, "web_1", true, 0.4, today)
	seedResponse(t, db, "web_1", true, 0.6, today.Add(time.Hour))
	seedResponse(t, db, "web_2", false, 1.0, today.Add(time.Hour))
	seedResponse(t, db, "web_3", true, 2.0, yesterday)

	seedRequest(t, db, "web_1", "/chat", today)
	seedRequest(t, db, "web_1", "/chat", today.Add(time.Hour))
	seedRequest(t, db, "web_2", "/chat", today.Add(time.Hour))
	seedRequest(t, db, "web_3", "/analytics", yesterday)
	seedRequest(t, db, "web_3", "/chat", yesterday)

	overview, err := agg.Overview(context.Background(), 7)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	last := overview.DailyStats[len(overview.DailyStats)-1]
	if last.Date != "2026-09-01" {
		t.Fatalf("expected today last, got %q", last.Date)
	}
	if last.TotalRequests != 3 || last.SuccessfulRequests != 2 || last.FailedRequests != 1 {
		t.Fatalf("unexpected today rollup %+v", last)
	}
	if last.UniqueSessions != 2 {
		t.Fatalf("expected 2 unique sessions today, got %d", last.UniqueSessions)
	}
	if avg := (0.4 + 0.6 + 1.0) / 3; last.AvgResponseTime < avg-0.001 || last.AvgResponseTime > avg+0.001 {
		t.Fatalf("unexpected avg response time %f", last.AvgResponseTime)
	}

	prev := overview.DailyStats[len(overview.DailyStats)-2]
	if prev.TotalRequests != 1 || prev.UniqueSessions != 1 {
		t.Fatalf("unexpected yesterday rollup %+v", prev)
	}

	// Hourly covers today only: hour 9 has one response, hour 10 has two.
	if got := overview.HourlyStats[9]; got.TotalRequests != 1 || got.SuccessfulRequests != 1 {
		t.Fatalf("unexpected hour 9 rollup %+v", got)
	}
	if got := overview.HourlyStats[10]; got.TotalRequests != 2 || got.FailedRequests != 1 {
		t.Fatalf("unexpected hour 10 rollup %+v", got)
	}
	if got := overview.HourlyStats[15]; got.TotalRequests != 0 {
		t.Fatalf("expected empty hour 15, got %+v", got)
	}

	if len(overview.TopEndpoints) != 2 {
		t.Fatalf("expected 2 endpoints, got %v", overview.TopEndpoints)
	}
	if overview.TopEndpoints[0].Endpoint != "/chat" || overview.TopEndpoints[0].RequestCount != 4 {
		t.Fatalf("unexpected top endpoint %+v", overview.TopEndpoints[0])
	}
}

func TestTopEndpointsTieBreaksByName(t *testing.T) {
	now := time.Date(2026, 9, 1, 12, 0, 0, 0, time.UTC)
	agg, db, _ := newTestAggregator(t, now)

	at := now.Add(-time.Hour)
	seedRequest(t, db, "web_1", "/chat", at)
	seedRequest(t, db, "web_1", "/analytics", at)

	overview, err := agg.Overview(context.Background(), 7)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(overview.TopEndpoints) != 2 {
		t.Fatalf("expected 2 endpoints, got %v", overview.TopEndpoints)
	}
	if overview.TopEndpoints[0].Endpoint != "/analytics" {
		t.Fatalf("expected name tie-break, got %+v", overview.TopEndpoints)
	}
}

func TestOverviewSessionStats(t *testing.T) {
	now := time.Date(2026, 9, 1, 12, 0, 0, 0, time.UTC)
	agg, db, _ := newTestAggregator(t, now)

	records := []model.SessionRecord{
		{
			SessionID:          "web_1",
			CreatedAt:          now.Add(-2 * time.Hour),
			LastActivity:       now,
			TotalRequests:      4,
			SuccessfulRequests: 3,
			FailedRequests:     1,
			TotalResponseTime:  2.0,
			IsActive:           true,
		},
		{
			SessionID:     "web_2",
			CreatedAt:     now.Add(-time.Hour),
			LastActivity:  now.Add(-30 * time.Minute),
			TotalRequests: 2,
			IsActive:      false,
		},
	}
	for i := range records {
		if err := db.Create(&records[i]).Error; err != nil {
			t.Fatalf("seed session record: %v", err)
		}
	}

	overview, err := agg.Overview(context.Background(), 7)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	stats := overview.SessionStats
	if stats.TotalSessions != 2 || stats.ActiveSessions != 1 {
		t.Fatalf("unexpected session stats %+v", stats)
	}
	if stats.AvgRequestsPerSession != 3 {
		t.Fatalf("expected avg 3 requests/session, got %f", stats.AvgRequestsPerSession)
	}
}

func TestStorage(t *testing.T) {
	now := time.Date(2026, 9, 1, 12, 0, 0, 0, time.UTC)
	agg, db, arch := newTestAggregator(t, now)

	seedRequest(t, db, "web_1", "/chat", now.Add(-time.Hour))
	seedResponse(t, db, "web_1", true, 0.5, now.Add(-time.Hour))
	if err := db.Create(&model.SessionRecord{
		SessionID: "web_1", CreatedAt: now, LastActivity: now, IsActive: true,
	}).Error; err != nil {
		t.Fatalf("seed session record: %v", err)
	}
	if err := arch.WriteJSON(archive.CategoryRequests, "req_1", map[string]any{"q": "hello"}); err != nil {
		t.Fatalf("archive write: %v", err)
	}

	stats, err := agg.Storage(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	dbStats := stats.DatabaseStats
	if dbStats.TotalRequests != 1 || dbStats.TotalResponses != 1 {
		t.Fatalf("unexpected row counts %+v", dbStats)
	}
	if dbStats.TotalSessions != 1 || dbStats.ActiveSessions != 1 {
		t.Fatalf("unexpected session counts %+v", dbStats)
	}
	reqFiles, ok := stats.FileStats[archive.CategoryRequests]
	if !ok || reqFiles.FileCount != 1 || reqFiles.SizeBytes == 0 {
		t.Fatalf("unexpected file stats %+v", stats.FileStats)
	}
	if stats.TotalStorage.SizeBytes < reqFiles.SizeBytes {
		t.Fatalf("total storage %d below file total %d",
			stats.TotalStorage.SizeBytes, reqFiles.SizeBytes)
	}
	if stats.Directories["base"] != arch.BaseDir() {
		t.Fatalf("unexpected directories %v", stats.Directories)
	}
}

func TestCleanup(t *testing.T) {
	now := time.Date(2026, 9, 1, 12, 0, 0, 0, time.UTC)
	agg, db, arch := newTestAggregator(t, now)

	old := now.AddDate(0, 0, -40)
	recent := now.AddDate(0, 0, -1)

	seedRequest(t, db, "web_old", "/chat", old)
	seedRequest(t, db, "web_new", "/chat", recent)
	seedResponse(t, db, "web_old", true, 0.5, old)
	seedResponse(t, db, "web_new", true, 0.5, recent)
	for _, record := range []model.SessionRecord{
		{SessionID: "web_old", CreatedAt: old, LastActivity: old, IsActive: false},
		{SessionID: "web_stale_active", CreatedAt: old, LastActivity: old, IsActive: true},
		{SessionID: "web_new", CreatedAt: recent, LastActivity: recent, IsActive: false},
	} {
		record := record
		if err := db.Create(&record).Error; err != nil {
			t.Fatalf("seed session record: %v", err)
		}
	}

	if err := arch.WriteJSON(archive.CategoryRequests, "req_old", map[string]any{"q": "old"}); err != nil {
		t.Fatalf("archive write: %v", err)
	}
	oldPath := filepath.Join(arch.BaseDir(), archive.CategoryRequests, "req_old.json")
	if err := os.Chtimes(oldPath, old, old); err != nil {
		t.Fatalf("chtimes: %v", err)
	}
	if err := arch.WriteJSON(archive.CategoryRequests, "req_new", map[string]any{"q": "new"}); err != nil {
		t.Fatalf("archive write: %v", err)
	}

	stats, err := agg.Cleanup(context.Background(), 30)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	// Old request, old response, old inactive session: the active stale
	// session survives regardless of age.
	if stats.DeletedRecords != 3 {
		t.Fatalf("expected 3 deleted records, got %d", stats.DeletedRecords)
	}
	if stats.DeletedFiles != 1 || stats.Errors != 0 {
		t.Fatalf("unexpected file cleanup %+v", stats)
	}

	remaining, _ := agg.requests.Count(context.Background())
	if remaining != 1 {
		t.Fatalf("expected 1 request log left, got %d", remaining)
	}
	if _, err := os.Stat(oldPath); !os.IsNotExist(err) {
		t.Fatalf("expected old archive file removed")
	}
	newPath := filepath.Join(arch.BaseDir(), archive.CategoryRequests, "req_new.json")
	if _, err := os.Stat(newPath); err != nil {
		t.Fatalf("expected new archive file kept: %v", err)
	}
}
