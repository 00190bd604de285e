package account

import (
	"time"

	"rewards-controlplane/services/company"

	"gorm.io/datatypes"
)

type Role string

const (
	RoleEmployee   Role = "employee"
	RoleEmployer   Role = "employer"
	RoleAdmin      Role = "admin"
	RoleSuperAdmin Role = "super_admin"
)

func (r Role) Valid() bool {
	switch r {
	case RoleEmployee, RoleEmployer, RoleAdmin, RoleSuperAdmin:
		return true
	default:
		return false
	}
}

type ApprovalStatus string

const (
	Pending  ApprovalStatus = "pending"
	Approved ApprovalStatus = "approved"
	Rejected ApprovalStatus = "rejected"
)

type Profile struct {
	ID           string     `gorm:"column:id;primaryKey" json:"id"`
	CreatedAt    time.Time  `gorm:"column:created_at" json:"created_at"`
	UpdatedAt    time.Time  `gorm:"column:updated_at" json:"updated_at"`
	Name         string     `gorm:"column:name;not null" json:"name"`
	Email        string     `gorm:"column:email;uniqueIndex;not null" json:"email"`
	AvatarURL    string     `gorm:"column:avatar_url" json:"avatar_url,omitempty"`
	Department   string     `gorm:"column:department" json:"department,omitempty"`
	CompanyID    string     `gorm:"column:company_id;index" json:"company_id,omitempty"`
	ManagerID    *string    `gorm:"column:manager_id" json:"manager_id,omitempty"`
	HireDate     *time.Time `gorm:"column:hire_date" json:"hire_date,omitempty"`
	PasswordHash string     `gorm:"column:password_hash" json:"-"`
}

func (Profile) TableName() string { return "profiles" }

type UserRole struct {
	ID             string         `gorm:"column:id;primaryKey" json:"id"`
	CreatedAt      time.Time      `gorm:"column:created_at" json:"created_at"`
	UpdatedAt      time.Time      `gorm:"column:updated_at" json:"updated_at"`
	UserID         string         `gorm:"column:user_id;uniqueIndex;not null" json:"user_id"`
	Role           Role           `gorm:"column:role;not null" json:"role"`
	CompanyID      string         `gorm:"column:company_id;index" json:"company_id,omitempty"`
	ApprovalStatus ApprovalStatus `gorm:"column:approval_status;not null;default:'pending'" json:"approval_status"`
	ApprovedBy     string         `gorm:"column:approved_by" json:"approved_by,omitempty"`
}

func (UserRole) TableName() string { return "user_roles" }

type EmployeePreference struct {
	ID                  string                      `gorm:"column:id;primaryKey" json:"id"`
	CreatedAt           time.Time                   `gorm:"column:created_at" json:"created_at"`
	UpdatedAt           time.Time                   `gorm:"column:updated_at" json:"updated_at"`
	EmployeeID          string                      `gorm:"column:employee_id;uniqueIndex;not null" json:"employee_id"`
	PreferredCategories datatypes.JSONSlice[string] `gorm:"column:preferred_categories" json:"preferred_categories"`
	Destinations        datatypes.JSONSlice[string] `gorm:"column:destinations" json:"destinations"`
	TravelStyle         string                      `gorm:"column:travel_style" json:"travel_style,omitempty"`
	BudgetMin           int64                       `gorm:"column:budget_min" json:"budget_min"`
	BudgetMax           int64                       `gorm:"column:budget_max" json:"budget_max"`
	BlackoutNotes       string                      `gorm:"column:blackout_notes" json:"blackout_notes,omitempty"`
}

func (EmployeePreference) TableName() string { return "employee_preferences" }

// CurrentUser is the session view returned by login and /auth/me.
type CurrentUser struct {
	Profile *Profile         `json:"profile"`
	Role    *UserRole        `json:"role"`
	Company *company.Company `json:"company,omitempty"`
}

type Session struct {
	AccessToken string       `json:"access_token"`
	TokenType   string       `json:"token_type"`
	ExpiresAt   time.Time    `json:"expires_at"`
	User        *CurrentUser `json:"user"`
}

type SignupRequest struct {
	Name     string `json:"name" binding:"required"`
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required,min=8"`
	Company  string `json:"company" binding:"required"`
}

type LoginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

type UpdateProfileRequest struct {
	Name       *string    `json:"name"`
	AvatarURL  *string    `json:"avatar_url"`
	Department *string    `json:"department"`
	ManagerID  *string    `json:"manager_id"`
	HireDate   *time.Time `json:"hire_date"`
}

type PreferenceRequest struct {
	PreferredCategories []string `json:"preferred_categories"`
	Destinations        []string `json:"destinations"`
	TravelStyle         string   `json:"travel_style"`
	BudgetMin           int64    `json:"budget_min" binding:"gte=0"`
	BudgetMax           int64    `json:"budget_max" binding:"gte=0"`
	BlackoutNotes       string   `json:"blackout_notes"`
}

type AssignRoleRequest struct {
	Role      Role   `json:"role" binding:"required"`
	CompanyID string `json:"company_id"`
}
