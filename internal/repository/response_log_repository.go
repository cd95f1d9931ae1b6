package repository

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"

	"carequery/internal/model"
)

type ResponseLogRepository struct {
	db *gorm.DB
}

func NewResponseLogRepository(db *gorm.DB) *ResponseLogRepository {
	return &ResponseLogRepository{db: db}
}

func (r *ResponseLogRepository) Create(ctx context.Context, entry *model.ResponseLog) error {
	if err := r.db.WithContext(ctx).Create(entry).Error; err != nil {
		return fmt.Errorf("create response log failed: %w", err)
	}
	return nil
}

func (r *ResponseLogRepository) ListSince(ctx context.Context, since time.Time) ([]model.ResponseLog, error) {
	var entries []model.ResponseLog
	if err := r.db.WithContext(ctx).
		Where("created_at >= ?", since).
		Order("created_at ASC").
		Find(&entries).Error; err != nil {
		return nil, fmt.Errorf("list response logs failed: %w", err)
	}
	return entries, nil
}

func (r *ResponseLogRepository) Count(ctx context.Context) (int64, error) {
	var n int64
	if err := r.db.WithContext(ctx).Model(&model.ResponseLog{}).Count(&n).Error; err != nil {
		return 0, fmt.Errorf("count response logs failed: %w", err)
	}
	return n, nil
}

func (r *ResponseLogRepository) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	res := r.db.WithContext(ctx).Where("created_at < ?", cutoff).Delete(&model.ResponseLog{})
	if res.Error != nil {
		return 0, fmt.Errorf("delete old response logs failed: %w", res.Error)
	}
	return res.RowsAffected, nil
}
