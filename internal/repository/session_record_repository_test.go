package repository

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"carequery/internal/model"
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

func TestTouchCreatesThenIncrements(t *testing.T) {
	db := openTestDB(t)
	repo := NewSessionRecordRepository(db)
	ctx := context.Background()
	now := time.Now()

	if err := repo.Touch(ctx, "web_1", "10.0.0.1", "test-client", now); err != nil {
		t.Fatalf("first touch: %v", err)
	}
	if err := repo.Touch(ctx, "web_1", "10.0.0.1", "test-client", now.Add(time.Minute)); err != nil {
		t.Fatalf("second touch: %v", err)
	}

	var record model.SessionRecord
	if err := db.Where("session_id = ?", "web_1").First(&record).Error; err != nil {
		t.Fatalf("load record: %v", err)
	}
	if record.TotalRequests != 2 {
		t.Fatalf("expected 2 total requests, got %d", record.TotalRequests)
	}
	if !record.IsActive {
		t.Fatalf("expected touched session active")
	}
	if record.IPAddress != "10.0.0.1" {
		t.Fatalf("unexpected ip %q", record.IPAddress)
	}
	if !record.LastActivity.After(record.CreatedAt) {
		t.Fatalf("expected last activity bumped, got %v vs %v", record.LastActivity, record.CreatedAt)
	}
}

func TestRecordResult(t *testing.T) {
	db := openTestDB(t)
	repo := NewSessionRecordRepository(db)
	ctx := context.Background()
	now := time.Now()

	if err := repo.Touch(ctx, "web_1", "", "", now); err != nil {
		t.Fatalf("touch: %v", err)
	}
	if err := repo.RecordResult(ctx, "web_1", true, 0.5); err != nil {
		t.Fatalf("record success: %v", err)
	}
	if err := repo.RecordResult(ctx, "web_1", false, 1.5); err != nil {
		t.Fatalf("record failure: %v", err)
	}

	var record model.SessionRecord
	if err := db.Where("session_id = ?", "web_1").First(&record).Error; err != nil {
		t.Fatalf("load record: %v", err)
	}
	if record.SuccessfulRequests != 1 || record.FailedRequests != 1 {
		t.Fatalf("unexpected counters %+v", record)
	}
	if record.TotalResponseTime < 1.999 || record.TotalResponseTime > 2.001 {
		t.Fatalf("unexpected response time sum %f", record.TotalResponseTime)
	}
}

func TestEndMarksInactive(t *testing.T) {
	db := openTestDB(t)
	repo := NewSessionRecordRepository(db)
	ctx := context.Background()
	now := time.Now()

	if err := repo.Touch(ctx, "web_1", "", "", now); err != nil {
		t.Fatalf("touch: %v", err)
	}
	if err := repo.End(ctx, "web_1", now.Add(time.Minute)); err != nil {
		t.Fatalf("end: %v", err)
	}

	var record model.SessionRecord
	if err := db.Where("session_id = ?", "web_1").First(&record).Error; err != nil {
		t.Fatalf("load record: %v", err)
	}
	if record.IsActive {
		t.Fatalf("expected session inactive after End")
	}
	if record.EndedAt == nil {
		t.Fatalf("expected ended_at set")
	}

	total, active, err := repo.Counts(ctx)
	if err != nil {
		t.Fatalf("counts: %v", err)
	}
	if total != 1 || active != 0 {
		t.Fatalf("unexpected counts total=%d active=%d", total, active)
	}
}

func TestCountByEndpointSinceOrdering(t *testing.T) {
	db := openTestDB(t)
	repo := NewRequestLogRepository(db)
	ctx := context.Background()
	now := time.Now()

	seed := func(endpoint string, n int) {
		for i := 0; i < n; i++ {
			entry := model.RequestLog{
				RequestID: uuid.NewString(),
				Endpoint:  endpoint,
				Method:    "POST",
				CreatedAt: now,
			}
			if err := db.Create(&entry).Error; err != nil {
				t.Fatalf("seed: %v", err)
			}
		}
	}
	seed("/chat", 3)
	seed("/analytics", 1)
	seed("/sessions", 1)

	counts, err := repo.CountByEndpointSince(ctx, now.Add(-time.Hour), 10)
	if err != nil {
		t.Fatalf("count: %v", err)
	}
	if len(counts) != 3 {
		t.Fatalf("expected 3 endpoints, got %d", len(counts))
	}
	if counts[0].Endpoint != "/chat" || counts[0].RequestCount != 3 {
		t.Fatalf("unexpected leader %+v", counts[0])
	}
	// Tied endpoints order by name.
	if counts[1].Endpoint != "/analytics" || counts[2].Endpoint != "/sessions" {
		t.Fatalf("unexpected tie order %+v", counts[1:])
	}
}
