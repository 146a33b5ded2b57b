package models

import (
	"time"

	"github.com/google/uuid"
)

// AuditLog represents an audit log entry
type AuditLog struct {
	ID         uuid.UUID  `json:"id" gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	UserID     *uuid.UUID `json:"userId,omitempty" gorm:"type:uuid;index"`
	Method     string     `json:"method" gorm:"type:varchar(10);not null"`
	Path       string     `json:"path" gorm:"type:varchar(500);not null"`
	StatusCode int        `json:"statusCode" gorm:"not null;index"`
	IPAddress  string     `json:"ipAddress" gorm:"type:varchar(45)"`
	UserAgent  string     `json:"userAgent" gorm:"type:text"`
	Duration   int64      `json:"durationMs" gorm:"not null"` // milliseconds
	RequestID  string     `json:"requestId" gorm:"type:varchar(100);index"`
	CreatedAt  time.Time  `json:"createdAt" gorm:"autoCreateTime;index"`
}

func (AuditLog) TableName() string {
	return "audit_logs"
}
