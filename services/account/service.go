package account

import (
	"context"
	"errors"
	"strings"

	"rewards-controlplane/pkg/db/option"
	"rewards-controlplane/pkg/db/pagination"
	"rewards-controlplane/pkg/errutil"
	"rewards-controlplane/pkg/logger"
	"rewards-controlplane/pkg/repository"
	"rewards-controlplane/pkg/security"
	"rewards-controlplane/services/company"

	"github.com/bwmarrin/snowflake"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Companies is the slice of the company service accounts depend on.
type Companies interface {
	Get(ctx context.Context, id string) (*company.Company, error)
	FindBySlugOrCode(ctx context.Context, ref string) (*company.Company, error)
}

// Revoker invalidates sessions before their expiry. Tokens carry the role,
// so a role change revokes every session of the user.
type Revoker interface {
	Revoke(ctx context.Context, claims *security.Claims) error
	Track(ctx context.Context, claims *security.Claims) error
	RevokeUser(ctx context.Context, userID string) error
}

var ErrNoRole = errors.New("no role assigned")

type Service struct {
	db        *gorm.DB
	node      *snowflake.Node
	tokens    *security.TokenIssuer
	revoker   Revoker
	companies Companies

	profiles    repository.Repository[Profile]
	roles       repository.Repository[UserRole]
	preferences repository.Repository[EmployeePreference]
}

type ServiceParams struct {
	fx.In
	DB        *gorm.DB
	Node      *snowflake.Node
	Tokens    *security.TokenIssuer
	Companies *company.Service
	Sessions  *security.SessionStore `optional:"true"`
}

func NewService(p ServiceParams) *Service {
	var revoker Revoker
	if p.Sessions != nil {
		revoker = p.Sessions
	}
	return New(p.DB, p.Node, p.Tokens, p.Companies, revoker)
}

func New(db *gorm.DB, node *snowflake.Node, tokens *security.TokenIssuer, companies Companies, revoker Revoker) *Service {
	return &Service{
		db:          db,
		node:        node,
		tokens:      tokens,
		revoker:     revoker,
		companies:   companies,
		profiles:    repository.ProvideStore[Profile](db),
		roles:       repository.ProvideStore[UserRole](db),
		preferences: repository.ProvideStore[EmployeePreference](db),
	}
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// Signup creates a profile in the named company with a pending employee role.
func (s *Service) Signup(ctx context.Context, req SignupRequest) (*CurrentUser, error) {
	zapLog := logger.FromContext(ctx)
	email := normalizeEmail(req.Email)

	c, err := s.companies.FindBySlugOrCode(ctx, req.Company)
	if err != nil {
		return nil, err
	}

	exist, err := s.profiles.FindOne(ctx, &Profile{Email: email})
	if err != nil {
		zapLog.Error("failed to look up profile by email", zap.Error(err))
		return nil, errutil.Internal("failed to sign up", err)
	}
	if exist != nil {
		return nil, errutil.Conflict("email already registered", nil)
	}

	hash, err := security.HashPassword(req.Password)
	if err != nil {
		return nil, errutil.ValidationFailed(err.Error(), err,
			errutil.WithDetails(errutil.Detail{Field: "password", Message: err.Error()}))
	}

	profile := &Profile{
		ID:           s.node.Generate().String(),
		Name:         strings.TrimSpace(req.Name),
		Email:        email,
		CompanyID:    c.ID,
		PasswordHash: hash,
	}
	role := &UserRole{
		ID:             s.node.Generate().String(),
		UserID:         profile.ID,
		Role:           RoleEmployee,
		CompanyID:      c.ID,
		ApprovalStatus: Pending,
	}

	if err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := s.profiles.WithTrx(tx).Create(ctx, profile); err != nil {
			return err
		}
		return s.roles.WithTrx(tx).Create(ctx, role)
	}); err != nil {
		zapLog.Error("failed to create profile", zap.Error(err))
		return nil, errutil.Internal("failed to sign up", err)
	}

	zapLog.Info("profile signed up", zap.String("user_id", profile.ID), zap.String("company_id", c.ID))
	return &CurrentUser{Profile: profile, Role: role, Company: c}, nil
}

// Login checks the password and issues a session token for the current user.
func (s *Service) Login(ctx context.Context, req LoginRequest) (*Session, error) {
	profile, err := s.profiles.FindOne(ctx, &Profile{Email: normalizeEmail(req.Email)})
	if err != nil {
		logger.FromContext(ctx).Error("failed to look up profile", zap.Error(err))
		return nil, errutil.Internal("failed to log in", err)
	}
	if profile == nil || profile.PasswordHash == "" || !security.CheckPassword(profile.PasswordHash, req.Password) {
		return nil, errutil.Unauthorized("invalid login credentials", nil)
	}

	user, err := s.CurrentUser(ctx, profile.ID)
	if err != nil {
		return nil, err
	}

	token, claims, err := s.tokens.Issue(security.Identity{
		UserID:     profile.ID,
		Role:       string(user.Role.Role),
		RoleStatus: string(user.Role.ApprovalStatus),
		CompanyID:  user.Role.CompanyID,
	})
	if err != nil {
		return nil, errutil.Internal("failed to issue session", err)
	}
	if s.revoker != nil {
		if err := s.revoker.Track(ctx, claims); err != nil {
			logger.FromContext(ctx).Error("failed to track session", zap.String("user_id", profile.ID), zap.Error(err))
			return nil, errutil.ServiceUnavailable("session store unavailable", err)
		}
	}

	return &Session{
		AccessToken: token,
		TokenType:   "bearer",
		ExpiresAt:   claims.ExpiresAt.Time,
		User:        user,
	}, nil
}

// Logout revokes the session. Failures are logged and not retried.
func (s *Service) Logout(ctx context.Context, claims *security.Claims) {
	if s.revoker == nil || claims == nil {
		return
	}
	if err := s.revoker.Revoke(ctx, claims); err != nil {
		logger.FromContext(ctx).Warn("failed to revoke session", zap.String("user_id", claims.UserID()), zap.Error(err))
	}
}

// endSessions forces userID to log in again after a role change.
func (s *Service) endSessions(ctx context.Context, userID string) {
	if s.revoker == nil {
		return
	}
	if err := s.revoker.RevokeUser(ctx, userID); err != nil {
		logger.FromContext(ctx).Error("failed to revoke sessions after role change", zap.String("user_id", userID), zap.Error(err))
	}
}

// CurrentUser loads profile, role and company. A profile without a role row
// fails with "no role assigned".
func (s *Service) CurrentUser(ctx context.Context, userID string) (*CurrentUser, error) {
	profile, err := s.GetProfile(ctx, userID)
	if err != nil {
		return nil, err
	}

	role, err := s.roles.FindOne(ctx, &UserRole{UserID: userID})
	if err != nil {
		logger.FromContext(ctx).Error("failed to load role", zap.String("user_id", userID), zap.Error(err))
		return nil, errutil.Internal("failed to load role", err)
	}
	if role == nil {
		return nil, errutil.Forbidden(ErrNoRole.Error(), ErrNoRole)
	}

	user := &CurrentUser{Profile: profile, Role: role}
	if role.CompanyID != "" {
		c, err := s.companies.Get(ctx, role.CompanyID)
		if err != nil && !errutil.Is(err, errutil.StatusNotFound) {
			return nil, err
		}
		user.Company = c
	}
	return user, nil
}

func (s *Service) GetProfile(ctx context.Context, userID string) (*Profile, error) {
	profile, err := s.profiles.FindOne(ctx, &Profile{ID: userID})
	if err != nil {
		logger.FromContext(ctx).Error("failed to load profile", zap.String("user_id", userID), zap.Error(err))
		return nil, errutil.Internal("failed to load profile", err)
	}
	if profile == nil {
		return nil, errutil.NotFound("profile not found", nil)
	}
	return profile, nil
}

// GetEmployee returns a profile only when it belongs to companyID.
func (s *Service) GetEmployee(ctx context.Context, companyID, employeeID string) (*Profile, error) {
	profile, err := s.GetProfile(ctx, employeeID)
	if err != nil {
		return nil, err
	}
	if profile.CompanyID != companyID {
		return nil, errutil.NotFound("employee not found", nil)
	}
	return profile, nil
}

func (s *Service) ListEmployees(ctx context.Context, companyID string, page pagination.Pagination) ([]*Profile, *pagination.PageInfo, error) {
	profiles, err := s.profiles.Find(ctx, &Profile{CompanyID: companyID},
		option.WithSortBy(option.QuerySortBy{OrderBy: "desc"}),
		option.ApplyPagination(page),
	)
	if err != nil {
		logger.FromContext(ctx).Error("failed to list employees", zap.String("company_id", companyID), zap.Error(err))
		return nil, nil, errutil.Internal("failed to list employees", err)
	}
	out, info := pagination.Trim(profiles, page.Limit, func(p *Profile) pagination.Cursor {
		return pagination.CursorFrom(p.CreatedAt, p.ID)
	})
	return out, info, nil
}

// CompanyEmployees returns every profile of companyID. Sweeps and detection
// use it; request paths use ListEmployees.
func (s *Service) CompanyEmployees(ctx context.Context, companyID string) ([]*Profile, error) {
	return s.profiles.Find(ctx, &Profile{CompanyID: companyID})
}

func (s *Service) UpdateProfile(ctx context.Context, userID string, req UpdateProfileRequest, employerEdit bool) (*Profile, error) {
	if _, err := s.GetProfile(ctx, userID); err != nil {
		return nil, err
	}

	updates := map[string]any{}
	if req.Name != nil {
		updates["name"] = strings.TrimSpace(*req.Name)
	}
	if req.AvatarURL != nil {
		updates["avatar_url"] = *req.AvatarURL
	}
	if req.Department != nil {
		updates["department"] = *req.Department
	}
	if employerEdit {
		if req.ManagerID != nil {
			updates["manager_id"] = *req.ManagerID
		}
		if req.HireDate != nil {
			updates["hire_date"] = req.HireDate.UTC()
		}
	}
	if len(updates) > 0 {
		if err := s.profiles.Update(ctx, userID, updates); err != nil {
			return nil, errutil.Internal("failed to update profile", err)
		}
	}
	return s.GetProfile(ctx, userID)
}

// GetPreferences returns nil without error when the employee has none.
func (s *Service) GetPreferences(ctx context.Context, employeeID string) (*EmployeePreference, error) {
	pref, err := s.preferences.FindOne(ctx, &EmployeePreference{EmployeeID: employeeID})
	if err != nil {
		return nil, errutil.Internal("failed to load preferences", err)
	}
	return pref, nil
}

func (s *Service) UpsertPreferences(ctx context.Context, employeeID string, req PreferenceRequest) (*EmployeePreference, error) {
	if req.BudgetMax > 0 && req.BudgetMin > req.BudgetMax {
		return nil, errutil.ValidationFailed("budget_min exceeds budget_max", nil)
	}

	existing, err := s.GetPreferences(ctx, employeeID)
	if err != nil {
		return nil, err
	}

	if existing == nil {
		pref := &EmployeePreference{
			ID:                  s.node.Generate().String(),
			EmployeeID:          employeeID,
			PreferredCategories: datatypes.NewJSONSlice(req.PreferredCategories),
			Destinations:        datatypes.NewJSONSlice(req.Destinations),
			TravelStyle:         req.TravelStyle,
			BudgetMin:           req.BudgetMin,
			BudgetMax:           req.BudgetMax,
			BlackoutNotes:       req.BlackoutNotes,
		}
		if err := s.preferences.Create(ctx, pref); err != nil {
			return nil, errutil.Internal("failed to save preferences", err)
		}
		return pref, nil
	}

	if err := s.preferences.Update(ctx, existing.ID, map[string]any{
		"preferred_categories": datatypes.NewJSONSlice(req.PreferredCategories),
		"destinations":         datatypes.NewJSONSlice(req.Destinations),
		"travel_style":         req.TravelStyle,
		"budget_min":           req.BudgetMin,
		"budget_max":           req.BudgetMax,
		"blackout_notes":       req.BlackoutNotes,
	}); err != nil {
		return nil, errutil.Internal("failed to save preferences", err)
	}
	return s.GetPreferences(ctx, employeeID)
}
