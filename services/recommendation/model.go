package recommendation

import (
	"encoding/json"
	"time"

	"gorm.io/datatypes"
)

const Table = "approved_recommendations"

type Status string

const (
	StatusPending  Status = "pending"
	StatusAccepted Status = "accepted"
)

type Recommendation struct {
	ID             string         `gorm:"column:id;primaryKey" json:"id"`
	CreatedAt      time.Time      `gorm:"column:created_at" json:"created_at"`
	UpdatedAt      time.Time      `gorm:"column:updated_at" json:"updated_at"`
	CompanyID      string         `gorm:"column:company_id;index;not null" json:"company_id"`
	EmployeeID     string         `gorm:"column:employee_id;index;not null" json:"employee_id"`
	ApprovedBy     string         `gorm:"column:approved_by;not null" json:"approved_by"`
	CycleID        *string        `gorm:"column:cycle_id;index" json:"cycle_id,omitempty"`
	Recommendation datatypes.JSON `gorm:"column:recommendation;not null" json:"recommendation"`
	Status         Status         `gorm:"column:status;not null;default:'pending'" json:"status"`
	AcceptedAt     *time.Time     `gorm:"column:accepted_at" json:"accepted_at,omitempty"`
}

func (Recommendation) TableName() string { return Table }

type ApproveRequest struct {
	EmployeeID     string          `json:"employee_id" binding:"required"`
	CycleID        *string         `json:"cycle_id"`
	Recommendation json.RawMessage `json:"recommendation" binding:"required"`
}

type Filter struct {
	EmployeeID string
	Status     Status
}
