package wellness

import (
	"time"

	"gorm.io/datatypes"
)

type RiskLevel string

const (
	RiskLow      RiskLevel = "low"
	RiskMedium   RiskLevel = "medium"
	RiskHigh     RiskLevel = "high"
	RiskCritical RiskLevel = "critical"
)

func (r RiskLevel) Valid() bool {
	switch r {
	case RiskLow, RiskMedium, RiskHigh, RiskCritical:
		return true
	default:
		return false
	}
}

// Escalates reports whether the level needs a manager's attention.
func (r RiskLevel) Escalates() bool {
	return r == RiskHigh || r == RiskCritical
}

const (
	// DefaultDaysSinceReward is used when the employee never got a credit.
	DefaultDaysSinceReward = 365
	// DefaultWellnessScore is used when no wellness score was recorded.
	DefaultWellnessScore = 50
	// DefaultPredictedDays applies when the model omits a horizon.
	DefaultPredictedDays = 30
)

type Score struct {
	ID              string                      `gorm:"column:id;primaryKey" json:"id"`
	CreatedAt       time.Time                   `gorm:"column:created_at" json:"created_at"`
	EmployeeID      string                      `gorm:"column:employee_id;index;not null" json:"employee_id"`
	CompanyID       string                      `gorm:"column:company_id;index" json:"company_id"`
	OverallScore    int                         `gorm:"column:overall_score" json:"overall_score"`
	WorkLifeBalance int                         `gorm:"column:work_life_balance" json:"work_life_balance"`
	Engagement      int                         `gorm:"column:engagement_score" json:"engagement_score"`
	Stress          int                         `gorm:"column:stress_level" json:"stress_level"`
	Energy          int                         `gorm:"column:energy_level" json:"energy_level"`
	DataSources     datatypes.JSONSlice[string] `gorm:"column:data_sources" json:"data_sources"`
	RecordedAt      time.Time                   `gorm:"column:recorded_at;index" json:"recorded_at"`
}

func (Score) TableName() string { return "wellness_scores" }

type Prediction struct {
	ID                         string                      `gorm:"column:id;primaryKey" json:"id"`
	CreatedAt                  time.Time                   `gorm:"column:created_at" json:"created_at"`
	EmployeeID                 string                      `gorm:"column:employee_id;index;not null" json:"employee_id"`
	CompanyID                  string                      `gorm:"column:company_id;index" json:"company_id"`
	RiskLevel                  RiskLevel                   `gorm:"column:risk_level;not null" json:"risk_level"`
	RiskScore                  int                         `gorm:"column:risk_score;not null" json:"risk_score"`
	PredictedDate              *time.Time                  `gorm:"column:predicted_date" json:"predicted_date,omitempty"`
	Confidence                 float64                     `gorm:"column:confidence" json:"confidence"`
	ContributingFactors        datatypes.JSONSlice[string] `gorm:"column:contributing_factors" json:"contributing_factors"`
	Reasoning                  string                      `gorm:"column:reasoning" json:"reasoning"`
	RecommendedIntervention    string                      `gorm:"column:recommended_intervention" json:"recommended_intervention"`
	SuggestedRewardTypes       datatypes.JSONSlice[string] `gorm:"column:suggested_reward_types" json:"suggested_reward_types"`
	RequiresNotification       bool                        `gorm:"column:requires_notification" json:"requires_notification"`
	ManagerNotified            bool                        `gorm:"column:manager_notified" json:"manager_notified"`
	PreventiveRewardsSuggested bool                        `gorm:"column:preventive_rewards_suggested" json:"preventive_rewards_suggested"`
	MilestoneID                *string                     `gorm:"column:milestone_id" json:"milestone_id,omitempty"`
}

func (Prediction) TableName() string { return "burnout_predictions" }

// Signals are the inputs sent to the model.
type Signals struct {
	EmployeeName         string   `json:"employee_name"`
	Department           string   `json:"department,omitempty"`
	TenureDays           int      `json:"tenure_days,omitempty"`
	DaysSinceLastReward  int      `json:"days_since_last_reward"`
	RecentWellnessScore  int      `json:"recent_wellness_score"`
	WellnessTrend        []int    `json:"wellness_trend,omitempty"`
	ExpiredMilestones    int      `json:"expired_milestones"`
	OpenMilestones       int      `json:"open_milestones"`
	PreferredCategories  []string `json:"preferred_categories,omitempty"`
	RecentTransactionCnt int      `json:"recent_transaction_count"`
}

// answer is the JSON object the model is asked to return.
type answer struct {
	RiskLevel            string   `json:"risk_level"`
	RiskScore            float64  `json:"risk_score"`
	PredictedDays        int      `json:"predicted_days"`
	Confidence           float64  `json:"confidence"`
	Factors              []string `json:"factors"`
	Reasoning            string   `json:"reasoning"`
	Intervention         string   `json:"intervention"`
	SuggestedRewardTypes []string `json:"suggested_reward_types"`
}

type AnalyzeRequest struct {
	EmployeeID string `json:"employeeId"`
}

type Analysis struct {
	Success              bool        `json:"success"`
	Prediction           *Prediction `json:"prediction"`
	SuggestedRewardTypes []string    `json:"suggested_reward_types"`
}

type ScoreRequest struct {
	OverallScore    int        `json:"overall_score" binding:"gte=0,lte=100"`
	WorkLifeBalance int        `json:"work_life_balance" binding:"gte=0,lte=100"`
	Engagement      int        `json:"engagement_score" binding:"gte=0,lte=100"`
	Stress          int        `json:"stress_level" binding:"gte=0,lte=100"`
	Energy          int        `json:"energy_level" binding:"gte=0,lte=100"`
	DataSources     []string   `json:"data_sources"`
	RecordedAt      *time.Time `json:"recorded_at"`
}
