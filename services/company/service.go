package company

import (
	"context"

	"rewards-controlplane/pkg/db/option"
	"rewards-controlplane/pkg/db/pagination"
	"rewards-controlplane/pkg/errutil"
	"rewards-controlplane/pkg/logger"
	"rewards-controlplane/pkg/repository"
	"rewards-controlplane/pkg/sequence"

	"github.com/bwmarrin/snowflake"
	"github.com/gosimple/slug"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type Service struct {
	db   *gorm.DB
	node *snowflake.Node
	seq  sequence.Generator
	repo repository.Repository[Company]
}

type ServiceParams struct {
	fx.In
	DB   *gorm.DB
	Node *snowflake.Node
	Seq  sequence.Generator
}

func NewService(p ServiceParams) *Service {
	return &Service{
		db:   p.DB,
		node: p.Node,
		seq:  p.Seq,
		repo: repository.ProvideStore[Company](p.DB),
	}
}

func (s *Service) Create(ctx context.Context, req CreateRequest) (*Company, error) {
	zapLog := logger.FromContext(ctx)

	if err := ValidatePolicy(req.Settings.RewardPolicy); err != nil {
		return nil, errutil.ValidationFailed("invalid reward policy", err,
			errutil.WithDetails(errutil.Detail{Field: "settings.reward_policy", Message: err.Error()}))
	}

	slugName := req.Slug
	if slugName == "" {
		slugName = slug.Make(req.Name)
	}

	exist, err := s.repo.FindOne(ctx, &Company{Slug: slugName})
	if err != nil {
		zapLog.Error("failed query get company by slug", zap.Error(err))
		return nil, errutil.Internal("failed to check existing company", err)
	}
	if exist != nil {
		zapLog.Warn("company already exists", zap.String("slug", slugName))
		return nil, errutil.Conflict("company already exists", nil)
	}

	code, err := s.seq.NextCompanyCode(ctx)
	if err != nil {
		zapLog.Error("failed to generate company code", zap.Error(err))
		return nil, errutil.Internal("failed to create company", err)
	}

	c := &Company{
		ID:            s.node.Generate().String(),
		Name:          req.Name,
		Slug:          slugName,
		Code:          code,
		Industry:      req.Industry,
		EmployeeCount: req.EmployeeCount,
		WalletBalance: req.WalletBalance,
		MonthlyBudget: req.MonthlyBudget,
		Settings:      datatypes.NewJSONType(req.Settings),
		IsPlatform:    req.IsPlatform,
	}
	if err := s.repo.Create(ctx, c); err != nil {
		zapLog.Error("failed to create company", zap.Error(err))
		return nil, errutil.Internal("failed to create company", err)
	}

	zapLog.Info("company created", zap.String("company_id", c.ID), zap.String("slug", c.Slug))
	return c, nil
}

func (s *Service) List(ctx context.Context, page pagination.Pagination) ([]*Company, *pagination.PageInfo, error) {
	companies, err := s.repo.Find(ctx, nil,
		option.WithSortBy(option.QuerySortBy{OrderBy: "desc"}),
		option.ApplyPagination(page),
	)
	if err != nil {
		logger.FromContext(ctx).Error("failed to list companies", zap.Error(err))
		return nil, nil, errutil.Internal("failed to list companies", err)
	}

	out, info := pagination.Trim(companies, page.Limit, func(c *Company) pagination.Cursor {
		return pagination.CursorFrom(c.CreatedAt, c.ID)
	})
	return out, info, nil
}

func (s *Service) Get(ctx context.Context, id string) (*Company, error) {
	c, err := s.repo.FindOne(ctx, &Company{ID: id})
	if err != nil {
		logger.FromContext(ctx).Error("failed to get company", zap.String("company_id", id), zap.Error(err))
		return nil, errutil.Internal("failed to get company", err)
	}
	if c == nil {
		return nil, errutil.NotFound("company not found", nil)
	}
	return c, nil
}

// FindBySlugOrCode resolves the company a signup names.
func (s *Service) FindBySlugOrCode(ctx context.Context, ref string) (*Company, error) {
	c, err := s.repo.FindOne(ctx, nil, option.WithWhere("slug = ? OR code = ?", ref, ref))
	if err != nil {
		return nil, errutil.Internal("failed to look up company", err)
	}
	if c == nil {
		return nil, errutil.NotFound("company not found", nil)
	}
	return c, nil
}

// Platform returns the platform company, or nil before bootstrap ran.
func (s *Service) Platform(ctx context.Context) (*Company, error) {
	return s.repo.FindOne(ctx, &Company{IsPlatform: true})
}

func (s *Service) Update(ctx context.Context, id string, req UpdateRequest) (*Company, error) {
	c, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	updates := map[string]any{}
	if req.Name != nil {
		updates["name"] = *req.Name
	}
	if req.Industry != nil {
		updates["industry"] = *req.Industry
	}
	if req.EmployeeCount != nil {
		updates["employee_count"] = *req.EmployeeCount
	}
	if req.MonthlyBudget != nil {
		updates["monthly_budget"] = *req.MonthlyBudget
	}
	if req.Settings != nil {
		if err := ValidatePolicy(req.Settings.RewardPolicy); err != nil {
			return nil, errutil.ValidationFailed("invalid reward policy", err,
				errutil.WithDetails(errutil.Detail{Field: "settings.reward_policy", Message: err.Error()}))
		}
		updates["settings"] = datatypes.NewJSONType(*req.Settings)
	}
	if len(updates) == 0 {
		return c, nil
	}

	if err := s.repo.Update(ctx, id, updates); err != nil {
		logger.FromContext(ctx).Error("failed to update company", zap.String("company_id", id), zap.Error(err))
		return nil, errutil.Internal("failed to update company", err)
	}
	return s.Get(ctx, id)
}

// Fund credits the company reward pool.
func (s *Service) Fund(ctx context.Context, id string, amount int64) (*Company, error) {
	if amount <= 0 {
		return nil, errutil.BadRequest("amount must be positive", nil)
	}
	if _, err := s.Get(ctx, id); err != nil {
		return nil, err
	}

	if err := s.repo.Update(ctx, id, map[string]any{
		"wallet_balance": gorm.Expr("wallet_balance + ?", amount),
	}); err != nil {
		return nil, errutil.Internal("failed to fund company pool", err)
	}
	logger.FromContext(ctx).Info("company pool funded", zap.String("company_id", id), zap.Int64("amount", amount))
	return s.Get(ctx, id)
}

// DebitPool takes amount from the company pool inside tx, holding a row
// lock on the company. It fails with 422 when the pool cannot cover it.
func (s *Service) DebitPool(ctx context.Context, tx *gorm.DB, id string, amount int64) (*Company, error) {
	repo := s.repo.WithTrx(tx)
	c, err := repo.FindOne(ctx, &Company{ID: id}, option.WithLockingUpdate())
	if err != nil {
		return nil, errutil.Internal("failed to lock company pool", err)
	}
	if c == nil {
		return nil, errutil.NotFound("company not found", nil)
	}
	if amount <= 0 {
		return c, nil
	}
	if c.WalletBalance < amount {
		return nil, errutil.UnprocessableEntity("insufficient company pool balance", nil,
			errutil.WithDetails(errutil.Detail{Field: "employer_amount", Message: "exceeds company pool"}))
	}

	if err := repo.Update(ctx, id, map[string]any{
		"wallet_balance": gorm.Expr("wallet_balance - ?", amount),
	}); err != nil {
		return nil, errutil.Internal("failed to debit company pool", err)
	}
	c.WalletBalance -= amount
	return c, nil
}
