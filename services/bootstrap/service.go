package bootstrap

import (
	"context"
	"errors"

	"rewards-controlplane/pkg/config"
	"rewards-controlplane/services/account"
	"rewards-controlplane/services/company"

	"go.uber.org/fx"
	"go.uber.org/zap"
)

var ErrIncompletePlatform = errors.New("platform configuration is incomplete")

type Companies interface {
	Platform(ctx context.Context) (*company.Company, error)
	Create(ctx context.Context, req company.CreateRequest) (*company.Company, error)
}

type Accounts interface {
	EnsureUser(ctx context.Context, name, email, password string, role account.Role, companyID string) (*account.Profile, bool, error)
}

type Service struct {
	config    *config.Config
	companies Companies
	accounts  Accounts
}

type ServiceParams struct {
	fx.In
	Config    *config.Config
	Companies *company.Service
	Accounts  *account.Service
}

func NewService(p ServiceParams) *Service {
	return New(p.Config, p.Companies, p.Accounts)
}

func New(cfg *config.Config, companies Companies, accounts Accounts) *Service {
	return &Service{config: cfg, companies: companies, accounts: accounts}
}

// Ensure creates the platform company and its super admin when missing. It
// is safe to run on every start.
func (s *Service) Ensure(ctx context.Context) (*company.Company, error) {
	platform := s.config.Platform
	if platform.CompanyName == "" || platform.AdminEmail == "" || platform.AdminPassword == "" {
		zap.L().Error("[bootstrap] platform configuration is incomplete, skipping")
		return nil, ErrIncompletePlatform
	}

	c, err := s.companies.Platform(ctx)
	if err != nil {
		zap.L().Error("[bootstrap] failed to look up platform company", zap.Error(err))
		return nil, err
	}
	if c == nil {
		c, err = s.companies.Create(ctx, company.CreateRequest{
			Name:       platform.CompanyName,
			Slug:       platform.CompanySlug,
			IsPlatform: true,
		})
		if err != nil {
			zap.L().Error("[bootstrap] failed to create platform company", zap.Error(err))
			return nil, err
		}
		zap.L().Info("[bootstrap] platform company created", zap.String("company_id", c.ID), zap.String("slug", c.Slug))
	}

	name := platform.AdminName
	if name == "" {
		name = "Platform Admin"
	}
	admin, created, err := s.accounts.EnsureUser(ctx, name, platform.AdminEmail, platform.AdminPassword, account.RoleSuperAdmin, c.ID)
	if err != nil {
		zap.L().Error("[bootstrap] failed to ensure super admin", zap.Error(err))
		return nil, err
	}
	if created {
		zap.L().Info("[bootstrap] super admin created", zap.String("user_id", admin.ID), zap.String("email", admin.Email))
	} else {
		zap.L().Info("[bootstrap] super admin already exists", zap.String("email", admin.Email))
	}
	return c, nil
}
