package company

import (
	"time"

	"gorm.io/datatypes"
)

// Settings is the per-company configuration stored as JSON.
type Settings struct {
	// RewardPolicy is a CEL expression over cost, category, allowed and
	// monthly_budget. Empty means every package is allowed.
	RewardPolicy      string   `json:"reward_policy,omitempty"`
	AllowedCategories []string `json:"allowed_categories,omitempty"`
	FastMode          bool     `json:"fast_mode,omitempty"`
}

type Company struct {
	ID            string                        `gorm:"column:id;primaryKey" json:"id"`
	CreatedAt     time.Time                     `gorm:"column:created_at" json:"created_at"`
	UpdatedAt     time.Time                     `gorm:"column:updated_at" json:"updated_at"`
	Name          string                        `gorm:"column:name;not null" json:"name"`
	Slug          string                        `gorm:"column:slug;uniqueIndex;not null" json:"slug"`
	Code          string                        `gorm:"column:code;uniqueIndex" json:"code"`
	Industry      string                        `gorm:"column:industry" json:"industry,omitempty"`
	EmployeeCount int                           `gorm:"column:employee_count" json:"employee_count"`
	WalletBalance int64                         `gorm:"column:wallet_balance;not null;default:0" json:"wallet_balance"`
	MonthlyBudget int64                         `gorm:"column:monthly_budget;not null;default:0" json:"monthly_budget"`
	Settings      datatypes.JSONType[Settings] `gorm:"column:settings" json:"settings"`
	IsPlatform    bool                          `gorm:"column:is_platform;default:false" json:"is_platform"`
}

func (Company) TableName() string {
	return "companies"
}

type CreateRequest struct {
	Name          string   `json:"name" binding:"required"`
	Slug          string   `json:"slug"`
	Industry      string   `json:"industry"`
	EmployeeCount int      `json:"employee_count" binding:"gte=0"`
	MonthlyBudget int64    `json:"monthly_budget" binding:"gte=0"`
	WalletBalance int64    `json:"wallet_balance" binding:"gte=0"`
	Settings      Settings `json:"settings"`
	IsPlatform    bool     `json:"-"`
}

type UpdateRequest struct {
	Name          *string   `json:"name"`
	Industry      *string   `json:"industry"`
	EmployeeCount *int      `json:"employee_count" binding:"omitempty,gte=0"`
	MonthlyBudget *int64    `json:"monthly_budget" binding:"omitempty,gte=0"`
	Settings      *Settings `json:"settings"`
}

type FundRequest struct {
	Amount int64 `json:"amount" binding:"required,gt=0"`
}
