package milestone

import (
	"time"

	"gorm.io/datatypes"
)

type Type string

const (
	TypeAnniversary Type = "anniversary"
	TypeBurnoutRisk Type = "burnout_risk"
	TypeLifeEvent   Type = "life_event"
	TypeAchievement Type = "achievement"
)

func (t Type) Valid() bool {
	switch t {
	case TypeAnniversary, TypeBurnoutRisk, TypeLifeEvent, TypeAchievement:
		return true
	default:
		return false
	}
}

type Status string

const (
	StatusPending   Status = "pending"
	StatusActive    Status = "active"
	StatusCompleted Status = "completed"
	StatusExpired   Status = "expired"
)

// transitions lists the statuses reachable from each status.
var transitions = map[Status][]Status{
	StatusPending: {StatusActive, StatusCompleted, StatusExpired},
	StatusActive:  {StatusCompleted, StatusExpired},
}

func (s Status) CanMoveTo(next Status) bool {
	for _, n := range transitions[s] {
		if n == next {
			return true
		}
	}
	return false
}

type Source string

const (
	SourceHRIS   Source = "hris"
	SourceManual Source = "manual"
	SourceAI     Source = "ai"
)

type EventType string

const (
	EventHire        EventType = "hire"
	EventPromotion   EventType = "promotion"
	EventRoleChange  EventType = "role_change"
	EventLeaveStart  EventType = "leave_start"
	EventLeaveEnd    EventType = "leave_end"
	EventRelocation  EventType = "relocation"
	EventBirthday    EventType = "birthday"
	EventFamilyEvent EventType = "family_event"
)

// milestoneFor maps HRIS events to the milestone type they open. Events
// not listed are recorded only.
var milestoneFor = map[EventType]Type{
	EventBirthday:    TypeLifeEvent,
	EventFamilyEvent: TypeLifeEvent,
	EventRelocation:  TypeLifeEvent,
	EventLeaveEnd:    TypeLifeEvent,
	EventPromotion:   TypeAchievement,
}

func (e EventType) Valid() bool {
	switch e {
	case EventHire, EventPromotion, EventRoleChange, EventLeaveStart, EventLeaveEnd,
		EventRelocation, EventBirthday, EventFamilyEvent:
		return true
	default:
		return false
	}
}

type Milestone struct {
	ID              string     `gorm:"column:id;primaryKey" json:"id"`
	CreatedAt       time.Time  `gorm:"column:created_at" json:"created_at"`
	UpdatedAt       time.Time  `gorm:"column:updated_at" json:"updated_at"`
	EmployeeID      string     `gorm:"column:employee_id;index;not null" json:"employee_id"`
	CompanyID       string     `gorm:"column:company_id;index;not null" json:"company_id"`
	Type            Type       `gorm:"column:type;not null" json:"type"`
	TriggerDate     *time.Time `gorm:"column:trigger_date" json:"trigger_date,omitempty"`
	PredictedDate   *time.Time `gorm:"column:predicted_date" json:"predicted_date,omitempty"`
	ConfidenceScore float64    `gorm:"column:confidence_score" json:"confidence_score"`
	Status          Status     `gorm:"column:status;index;not null;default:'pending'" json:"status"`
	Description     string     `gorm:"column:description" json:"description,omitempty"`
	Source          Source     `gorm:"column:source;not null;default:'manual'" json:"source"`
	BonusAmount     int64      `gorm:"column:bonus_amount;not null;default:0" json:"bonus_amount"`
	CompletedAt     *time.Time `gorm:"column:completed_at" json:"completed_at,omitempty"`
}

func (Milestone) TableName() string { return "milestones" }

// DueDate is the date a milestone is anchored on: the trigger date, or the
// predicted date for AI-sourced ones.
func (m *Milestone) DueDate() *time.Time {
	if m.TriggerDate != nil {
		return m.TriggerDate
	}
	return m.PredictedDate
}

type HRISEvent struct {
	ID          string         `gorm:"column:id;primaryKey" json:"id"`
	CreatedAt   time.Time      `gorm:"column:created_at" json:"created_at"`
	EmployeeID  string         `gorm:"column:employee_id;index;not null" json:"employee_id"`
	CompanyID   string         `gorm:"column:company_id;index;not null" json:"company_id"`
	EventType   EventType      `gorm:"column:event_type;not null" json:"event_type"`
	Source      Source         `gorm:"column:source;not null" json:"source"`
	OccurredAt  time.Time      `gorm:"column:occurred_at" json:"occurred_at"`
	Payload     datatypes.JSON `gorm:"column:payload" json:"payload,omitempty"`
	MilestoneID *string        `gorm:"column:milestone_id" json:"milestone_id,omitempty"`
}

func (HRISEvent) TableName() string { return "hris_events" }

type CreateRequest struct {
	EmployeeID      string     `json:"employee_id" binding:"required"`
	Type            Type       `json:"type" binding:"required"`
	TriggerDate     *time.Time `json:"trigger_date"`
	PredictedDate   *time.Time `json:"predicted_date"`
	ConfidenceScore float64    `json:"confidence_score" binding:"gte=0,lte=1"`
	Description     string     `json:"description"`
	BonusAmount     int64      `json:"bonus_amount" binding:"gte=0"`
}

type StatusRequest struct {
	Status Status `json:"status" binding:"required"`
}

type EventRequest struct {
	EmployeeID string         `json:"employee_id" binding:"required"`
	EventType  EventType      `json:"event_type" binding:"required"`
	OccurredAt time.Time      `json:"occurred_at" binding:"required"`
	Payload    map[string]any `json:"payload"`
}

type Filter struct {
	EmployeeID string
	Status     Status
}

type SweepResult struct {
	Expired int `json:"expired,omitempty"`
	Created int `json:"created,omitempty"`
}
