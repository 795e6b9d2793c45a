package models

import (
	"time"

	"gorm.io/datatypes"
)

type AgentStatus struct {
	IsRunning     bool       `json:"is_running"`
	Status        string     `json:"status"`
	LastRun       *time.Time `json:"last_run"`
	CurrentAction string     `json:"current_action"`
	AIEnabled     bool       `json:"ai_enabled"`
}

// LogEntry is one row of the activity journal.
type LogEntry struct {
	ID        uint           `json:"id" gorm:"primaryKey"`
	Timestamp time.Time      `json:"timestamp" gorm:"index"`
	Level     string         `json:"level" gorm:"index;size:16"`
	Category  string         `json:"category" gorm:"index;size:32"`
	Message   string         `json:"message" gorm:"type:text"`
	Metadata  datatypes.JSON `json:"metadata,omitempty"`
}

func (LogEntry) TableName() string { return "activity_logs" }

type LogStats struct {
	TotalLogs    int64 `json:"total_logs"`
	ErrorCount   int64 `json:"error_count"`
	WarningCount int64 `json:"warning_count"`
}

const (
	LevelInfo    = "INFO"
	LevelWarning = "WARNING"
	LevelError   = "ERROR"
)
