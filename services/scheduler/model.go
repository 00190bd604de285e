package scheduler

import (
	"time"

	"gorm.io/datatypes"
)

type JobStatus string

const (
	JobPending JobStatus = "pending"
	JobRunning JobStatus = "running"
	JobSuccess JobStatus = "success"
	JobFailed  JobStatus = "failed"
)

// Job is an execution record for one sweep run against one company.
type Job struct {
	ID          string         `gorm:"column:id;primaryKey" json:"id"`
	TaskName    string         `gorm:"column:task_name;index;not null" json:"task_name"`
	CompanyID   string         `gorm:"column:company_id;index;not null" json:"company_id"`
	Status      JobStatus      `gorm:"column:status;type:varchar(20);default:'pending'" json:"status"`
	ErrorMsg    string         `gorm:"column:error_msg;type:text" json:"error_msg,omitempty"`
	StartedAt   *time.Time     `gorm:"column:started_at" json:"started_at,omitempty"`
	CompletedAt *time.Time     `gorm:"column:completed_at" json:"completed_at,omitempty"`
	CreatedAt   time.Time      `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt   time.Time      `gorm:"autoUpdateTime" json:"updated_at"`
	Metadata    datatypes.JSON `gorm:"column:metadata" json:"metadata,omitempty"`
}

func (Job) TableName() string { return "scheduled_jobs" }

// Payload is carried by every sweep task.
type Payload struct {
	CompanyID string `json:"company_id"`
	JobID     string `json:"job_id"`
}
