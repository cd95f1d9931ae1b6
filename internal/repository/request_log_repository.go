package repository

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"

	"carequery/internal/model"
)

type RequestLogRepository struct {
	db *gorm.DB
}

func NewRequestLogRepository(db *gorm.DB) *RequestLogRepository {
	return &RequestLogRepository{db: db}
}

func (r *RequestLogRepository) Create(ctx context.Context, entry *model.RequestLog) error {
	if err := r.db.WithContext(ctx).Create(entry).Error; err != nil {
		return fmt.Errorf("create request log failed: %w", err)
	}
	return nil
}

func (r *RequestLogRepository) ListSince(ctx context.Context, since time.Time) ([]model.RequestLog, error) {
	var entries []model.RequestLog
	if err := r.db.WithContext(ctx).
		Where("created_at >= ?", since).
		Order("created_at ASC").
		Find(&entries).Error; err != nil {
		return nil, fmt.Errorf("list request logs failed: %w", err)
	}
	return entries, nil
}

type EndpointCount struct {
	Endpoint     string `json:"endpoint"`
	RequestCount int64  `json:"request_count"`
}

// CountByEndpointSince ranks endpoints by traffic, busiest first, endpoint
// name breaking ties.
func (r *RequestLogRepository) CountByEndpointSince(ctx context.Context, since time.Time, limit int) ([]EndpointCount, error) {
	if limit <= 0 {
		limit = 10
	}
	var counts []EndpointCount
	if err := r.db.WithContext(ctx).
		Model(&model.RequestLog{}).
		Select("endpoint, COUNT(*) AS request_count").
		Where("created_at >= ?", since).
		Group("endpoint").
		Order("request_count DESC, endpoint ASC").
		Limit(limit).
		Scan(&counts).Error; err != nil {
		return nil, fmt.Errorf("count requests by endpoint failed: %w", err)
	}
	return counts, nil
}

func (r *RequestLogRepository) Count(ctx context.Context) (int64, error) {
	var n int64
	if err := r.db.WithContext(ctx).Model(&model.RequestLog{}).Count(&n).Error; err != nil {
		return 0, fmt.Errorf("count request logs failed: %w", err)
	}
	return n, nil
}

func (r *RequestLogRepository) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	res := r.db.WithContext(ctx).Where("created_at < ?", cutoff).Delete(&model.RequestLog{})
	if res.Error != nil {
		return 0, fmt.Errorf("delete old request logs failed: %w", res.Error)
	}
	return res.RowsAffected, nil
}
