package model

import "time"

// RequestLog is one inbound exchange request as recorded for analytics.
type RequestLog struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	RequestID   string    `gorm:"size:36;uniqueIndex;not null" json:"request_id"`
	SessionID   string    `gorm:"size:64;index" json:"session_id"`
	Endpoint    string    `gorm:"size:64;not null;index" json:"endpoint"`
	Method      string    `gorm:"size:8;not null" json:"method"`
	UserQuery   string    `gorm:"type:text" json:"user_query"`
	RequestSize int       `json:"request_size"`
	IPAddress   string    `gorm:"size:45" json:"ip_address"`
	UserAgent   string    `gorm:"size:255" json:"user_agent"`
	CreatedAt   time.Time `gorm:"index" json:"created_at"`
}
