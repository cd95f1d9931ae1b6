package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"carequery/internal/model"
)

type SessionRecordRepository struct {
	db *gorm.DB
}

func NewSessionRecordRepository(db *gorm.DB) *SessionRecordRepository {
	return &SessionRecordRepository{db: db}
}

// Touch creates the record on first sight of a session id and bumps
// last-activity plus the request counter on every subsequent call.
func (r *SessionRecordRepository) Touch(ctx context.Context, sessionID, ipAddress, userAgent string, at time.Time) error {
	var record model.SessionRecord
	err := r.db.WithContext(ctx).Where("session_id = ?", sessionID).First(&record).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		record = model.SessionRecord{
			SessionID:     sessionID,
			CreatedAt:     at,
			LastActivity:  at,
			TotalRequests: 1,
			IPAddress:     ipAddress,
			UserAgent:     userAgent,
			IsActive:      true,
		}
		if createErr := r.db.WithContext(ctx).Create(&record).Error; createErr != nil {
			return fmt.Errorf("create session record failed: %w", createErr)
		}
		return nil
	}
	if err != nil {
		return fmt.Errorf("get session record failed: %w", err)
	}

	updates := map[string]any{
		"last_activity":  at,
		"total_requests": gorm.Expr("total_requests + 1"),
		"is_active":      true,
	}
	if err := r.db.WithContext(ctx).Model(&model.SessionRecord{}).
		Where("session_id = ?", sessionID).
		Updates(updates).Error; err != nil {
		return fmt.Errorf("touch session record failed: %w", err)
	}
	return nil
}

// RecordResult folds one exchange outcome into the session counters.
func (r *SessionRecordRepository) RecordResult(ctx context.Context, sessionID string, success bool, processingTime float64) error {
	column := "failed_requests"
	if success {
		column = "successful_requests"
	}
	if err := r.db.WithContext(ctx).Model(&model.SessionRecord{}).
		Where("session_id = ?", sessionID).
		Updates(map[string]any{
			column:                gorm.Expr(column + " + 1"),
			"total_response_time": gorm.Expr("total_response_time + ?", processingTime),
		}).Error; err != nil {
		return fmt.Errorf("record session result failed: %w", err)
	}
	return nil
}

func (r *SessionRecordRepository) End(ctx context.Context, sessionID string, at time.Time) error {
	if err := r.db.WithContext(ctx).Model(&model.SessionRecord{}).
		Where("session_id = ? AND is_active = ?", sessionID, true).
		Updates(map[string]any{"is_active": false, "ended_at": at}).Error; err != nil {
		return fmt.Errorf("end session record failed: %w", err)
	}
	return nil
}

func (r *SessionRecordRepository) ListSince(ctx context.Context, since time.Time) ([]model.SessionRecord, error) {
	var records []model.SessionRecord
	if err := r.db.WithContext(ctx).
		Where("created_at >= ?", since).
		Find(&records).Error; err != nil {
		return nil, fmt.Errorf("list session records failed: %w", err)
	}
	return records, nil
}

func (r *SessionRecordRepository) Counts(ctx context.Context) (total, active int64, err error) {
	if err = r.db.WithContext(ctx).Model(&model.SessionRecord{}).Count(&total).Error; err != nil {
		return 0, 0, fmt.Errorf("count session records failed: %w", err)
	}
	if err = r.db.WithContext(ctx).Model(&model.SessionRecord{}).
		Where("is_active = ?", true).Count(&active).Error; err != nil {
		return 0, 0, fmt.Errorf("count active session records failed: %w", err)
	}
	return total, active, nil
}

// DeleteInactiveOlderThan removes ended sessions past the retention cutoff.
// Active sessions are kept regardless of age.
func (r *SessionRecordRepository) DeleteInactiveOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	res := r.db.WithContext(ctx).
		Where("created_at < ? AND is_active = ?", cutoff, false).
		Delete(&model.SessionRecord{})
	if res.Error != nil {
		return 0, fmt.Errorf("delete old session records failed: %w", res.Error)
	}
	return res.RowsAffected, nil
}
