package detection

import (
	"time"

	"gorm.io/datatypes"
)

type State string

const (
	StateIdle              State = "idle"
	StateContextAnalysis   State = "context_analysis"
	StatePreferenceMatch   State = "preference_match"
	StatePolicyAlignment   State = "policy_alignment"
	StateBudgetFitCheck    State = "budget_fit_check"
	StateGeneratingRewards State = "generating_rewards"
	StateCompleted         State = "completed"
	StateFailed            State = "failed"
	StateCancelled         State = "cancelled"
)

// Steps is the fixed execution order of a cycle.
var Steps = []State{
	StateContextAnalysis,
	StatePreferenceMatch,
	StatePolicyAlignment,
	StateBudgetFitCheck,
	StateGeneratingRewards,
}

func (s State) Terminal() bool {
	return s == StateCompleted || s == StateFailed || s == StateCancelled
}

// Running reports whether s is one of the step states clients poll on.
func (s State) Running() bool {
	for _, step := range Steps {
		if s == step {
			return true
		}
	}
	return false
}

type StepStatus string

const (
	StepPending    StepStatus = "pending"
	StepInProgress StepStatus = "in_progress"
	StepCompleted  StepStatus = "completed"
	StepFailed     StepStatus = "failed"
)

type Cycle struct {
	ID           string         `gorm:"column:id;primaryKey" json:"id"`
	CreatedAt    time.Time      `gorm:"column:created_at" json:"created_at"`
	UpdatedAt    time.Time      `gorm:"column:updated_at" json:"updated_at"`
	CompanyID    string         `gorm:"column:company_id;index;not null" json:"company_id"`
	InitiatedBy  string         `gorm:"column:initiated_by;not null" json:"initiated_by"`
	State        State          `gorm:"column:state;not null;index" json:"state"`
	FastMode     bool           `gorm:"column:fast_mode;default:false" json:"fast_mode"`
	Version      int64          `gorm:"column:version;not null;default:1" json:"version"`
	StartedAt    time.Time      `gorm:"column:started_at" json:"started_at"`
	CompletedAt  *time.Time     `gorm:"column:completed_at" json:"completed_at,omitempty"`
	ErrorMessage string         `gorm:"column:error_message" json:"error_message,omitempty"`
	RetryOf      *string        `gorm:"column:retry_of" json:"retry_of,omitempty"`
	WorkflowID   string         `gorm:"column:workflow_id" json:"workflow_id,omitempty"`
	Result       datatypes.JSON `gorm:"column:result" json:"result,omitempty"`
}

func (Cycle) TableName() string { return "detection_cycles" }

type Step struct {
	ID        string         `gorm:"column:id;primaryKey" json:"id"`
	CreatedAt time.Time      `gorm:"column:created_at" json:"created_at"`
	UpdatedAt time.Time      `gorm:"column:updated_at" json:"updated_at"`
	CycleID   string         `gorm:"column:cycle_id;not null;uniqueIndex:idx_detection_step_pos" json:"cycle_id"`
	Name      State          `gorm:"column:name;not null" json:"name"`
	Position  int            `gorm:"column:position;not null;uniqueIndex:idx_detection_step_pos" json:"position"`
	Status    StepStatus     `gorm:"column:status;not null;default:'pending'" json:"status"`
	StartedAt *time.Time     `gorm:"column:started_at" json:"started_at,omitempty"`
	EndedAt   *time.Time     `gorm:"column:ended_at" json:"ended_at,omitempty"`
	Output    datatypes.JSON `gorm:"column:output" json:"output,omitempty"`
}

func (Step) TableName() string { return "detection_steps" }

// View is what GetCycle hands to pollers.
type View struct {
	*Cycle
	Steps    []*Step `json:"steps"`
	Progress int     `json:"progress"`
}

type StartRequest struct {
	FastMode *bool `json:"fast_mode"`
}

// Progress maps a cycle onto [0,100]. Each completed step adds a sixth and
// only a completed cycle reaches 100.
func Progress(state State, steps []*Step) int {
	if state == StateCompleted {
		return 100
	}
	done := 0
	for _, s := range steps {
		if s.Status == StepCompleted {
			done++
		}
	}
	if done > len(Steps) {
		done = len(Steps)
	}
	return done * 100 / (len(Steps) + 1)
}
