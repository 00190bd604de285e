package reward

import (
	"time"
)

type Category string

const (
	CategoryTravel     Category = "travel"
	CategoryWellness   Category = "wellness"
	CategoryExperience Category = "experience"
	CategoryLearning   Category = "learning"
	CategoryFamily     Category = "family"
)

func (c Category) Valid() bool {
	switch c {
	case CategoryTravel, CategoryWellness, CategoryExperience, CategoryLearning, CategoryFamily:
		return true
	default:
		return false
	}
}

type PackageStatus string

const (
	PackageDraft           PackageStatus = "draft"
	PackagePendingApproval PackageStatus = "pending_approval"
	PackageApproved        PackageStatus = "approved"
	PackageRejected        PackageStatus = "rejected"
	PackageRedeemed        PackageStatus = "redeemed"
)

type ApprovalStatus string

const (
	ApprovalPending  ApprovalStatus = "pending"
	ApprovalApproved ApprovalStatus = "approved"
	ApprovalRejected ApprovalStatus = "rejected"
)

type Package struct {
	ID              string        `gorm:"column:id;primaryKey" json:"id"`
	CreatedAt       time.Time     `gorm:"column:created_at" json:"created_at"`
	UpdatedAt       time.Time     `gorm:"column:updated_at" json:"updated_at"`
	CompanyID       string        `gorm:"column:company_id;index;not null" json:"company_id"`
	EmployeeID      string        `gorm:"column:employee_id;index;not null" json:"employee_id"`
	MilestoneID     *string       `gorm:"column:milestone_id" json:"milestone_id,omitempty"`
	Code            string        `gorm:"column:code;uniqueIndex" json:"code"`
	Title           string        `gorm:"column:title;not null" json:"title"`
	Description     string        `gorm:"column:description" json:"description,omitempty"`
	Category        Category      `gorm:"column:category;not null" json:"category"`
	Cost            int64         `gorm:"column:cost;not null" json:"cost"`
	AIReasoning     string        `gorm:"column:ai_reasoning" json:"ai_reasoning,omitempty"`
	PreferenceScore float64       `gorm:"column:preference_score" json:"preference_score"`
	Status          PackageStatus `gorm:"column:status;index;not null;default:'draft'" json:"status"`
	RedeemedAt      *time.Time    `gorm:"column:redeemed_at" json:"redeemed_at,omitempty"`
}

func (Package) TableName() string { return "reward_packages" }

type Approval struct {
	ID             string         `gorm:"column:id;primaryKey" json:"id"`
	CreatedAt      time.Time      `gorm:"column:created_at" json:"created_at"`
	UpdatedAt      time.Time      `gorm:"column:updated_at" json:"updated_at"`
	CompanyID      string         `gorm:"column:company_id;index;not null" json:"company_id"`
	PackageID      string         `gorm:"column:package_id;index;not null" json:"package_id"`
	ApproverID     *string        `gorm:"column:approver_id" json:"approver_id,omitempty"`
	EmployerAmount int64          `gorm:"column:employer_amount" json:"employer_amount"`
	EmployeeAmount int64          `gorm:"column:employee_amount" json:"employee_amount"`
	Status         ApprovalStatus `gorm:"column:status;index;not null;default:'pending'" json:"status"`
	Comments       string         `gorm:"column:comments" json:"comments,omitempty"`
	RequestedAt    time.Time      `gorm:"column:requested_at" json:"requested_at"`
	RespondedAt    *time.Time     `gorm:"column:responded_at" json:"responded_at,omitempty"`
	Package        *Package       `gorm:"foreignKey:PackageID" json:"package,omitempty"`
}

func (Approval) TableName() string { return "approvals" }

type Feedback struct {
	ID         string    `gorm:"column:id;primaryKey" json:"id"`
	CreatedAt  time.Time `gorm:"column:created_at" json:"created_at"`
	PackageID  string    `gorm:"column:package_id;uniqueIndex:idx_feedback_package_employee" json:"package_id"`
	EmployeeID string    `gorm:"column:employee_id;uniqueIndex:idx_feedback_package_employee" json:"employee_id"`
	Rating     int       `gorm:"column:rating;not null" json:"rating"`
	Comment    string    `gorm:"column:comment" json:"comment,omitempty"`
}

func (Feedback) TableName() string { return "package_feedback" }

type CreateRequest struct {
	EmployeeID      string   `json:"employee_id" binding:"required"`
	MilestoneID     *string  `json:"milestone_id"`
	Title           string   `json:"title" binding:"required"`
	Description     string   `json:"description"`
	Category        Category `json:"category" binding:"required"`
	Cost            int64    `json:"cost" binding:"required,gt=0"`
	AIReasoning     string   `json:"ai_reasoning"`
	PreferenceScore float64  `json:"preference_score" binding:"gte=0,lte=1"`
}

type ApproveRequest struct {
	EmployerAmount int64  `json:"employer_amount" binding:"gte=0"`
	EmployeeAmount int64  `json:"employee_amount" binding:"gte=0"`
	Comments       string `json:"comments"`
}

type RejectRequest struct {
	Comments string `json:"comments"`
}

type FeedbackRequest struct {
	Rating  int    `json:"rating" binding:"required,min=1,max=5"`
	Comment string `json:"comment"`
}

type Filter struct {
	EmployeeID string
	Status     PackageStatus
}
