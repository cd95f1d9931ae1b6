package model

import "time"

// SessionRecord is the durable per-session aggregate behind the session
// rollups in /analytics. The live conversation itself stays in the
// in-memory session store; this row only accumulates counters.
type SessionRecord struct {
	ID                 uint       `gorm:"primaryKey" json:"id"`
	SessionID          string     `gorm:"size:64;uniqueIndex;not null" json:"session_id"`
	CreatedAt          time.Time  `json:"created_at"`
	LastActivity       time.Time  `gorm:"index" json:"last_activity"`
	TotalRequests      int        `json:"total_requests"`
	SuccessfulRequests int        `json:"successful_requests"`
	FailedRequests     int        `json:"failed_requests"`
	TotalResponseTime  float64    `json:"total_response_time"`
	IPAddress          string     `gorm:"size:45" json:"ip_address"`
	UserAgent          string     `gorm:"size:255" json:"user_agent"`
	IsActive           bool       `gorm:"index" json:"is_active"`
	EndedAt            *time.Time `json:"ended_at,omitempty"`
}
