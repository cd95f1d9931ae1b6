package model

import "time"

// ResponseLog is the outcome side of an exchange, joined to its RequestLog
// by RequestID.
type ResponseLog struct {
	ID             uint      `gorm:"primaryKey" json:"id"`
	ResponseID     string    `gorm:"size:36;uniqueIndex;not null" json:"response_id"`
	RequestID      string    `gorm:"size:36;index;not null" json:"request_id"`
	SessionID      string    `gorm:"size:64;index" json:"session_id"`
	StatusCode     int       `json:"status_code"`
	Success        bool      `gorm:"index" json:"success"`
	ResponseSize   int       `json:"response_size"`
	ProcessingTime float64   `json:"processing_time"`
	SQLGenerated   string    `gorm:"type:text" json:"sql_generated"`
	ResultCount    int       `json:"result_count"`
	AgentType      string    `gorm:"size:64" json:"agent_type"`
	ErrorMessage   string    `gorm:"type:text" json:"error_message"`
	CreatedAt      time.Time `gorm:"index" json:"created_at"`
}
