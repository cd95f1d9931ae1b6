package mysql

import (
	"context"
	"fmt"
	"time"

	"gorm.io/driver/mysql"
	"gorm.io/gorm"
)

func New(ctx context.Context, dsn string) (*gorm.DB, error) {
	db, err := gorm.Open(mysql.Open(dsn), &gorm.Config{})
	if err != nil {
		return nil, fmt.Errorf("open mysql failed: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("get mysql sql db failed: %w", err)
	}

	sqlDB.SetMaxIdleConns(10)
	sqlDB.SetMaxOpenConns(50)
	sqlDB.SetConnMaxLifetime(1 * time.Hour)
	sqlDB.SetConnMaxIdleTime(30 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := sqlDB.PingContext(pingCtx); err != nil {
		return nil, fmt.Errorf("ping mysql failed: %w", err)
	}

	return db, nil
}

// SizeBytes reports the on-disk size of the current schema. Returns 0 when
// the backing engine has no information_schema (sqlite in tests).
func SizeBytes(db *gorm.DB) int64 {
	var size *int64
	row := db.Raw(
		"SELECT SUM(data_length + index_length) FROM information_schema.tables WHERE table_schema = DATABASE()",
	).Row()
	if row == nil {
		return 0
	}
	if err := row.Scan(&size); err != nil || size == nil {
		return 0
	}
	return *size
}
