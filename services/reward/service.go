package reward

import (
	"context"
	"fmt"
	"time"

	"rewards-controlplane/pkg/db/option"
	"rewards-controlplane/pkg/db/pagination"
	"rewards-controlplane/pkg/errutil"
	"rewards-controlplane/pkg/logger"
	"rewards-controlplane/pkg/repository"
	"rewards-controlplane/pkg/sequence"
	"rewards-controlplane/services/account"
	"rewards-controlplane/services/company"
	"rewards-controlplane/services/wallet"

	"github.com/bwmarrin/snowflake"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Employees interface {
	GetEmployee(ctx context.Context, companyID, employeeID string) (*account.Profile, error)
}

type Companies interface {
	Get(ctx context.Context, id string) (*company.Company, error)
	DebitPool(ctx context.Context, tx *gorm.DB, id string, amount int64) (*company.Company, error)
}

type Ledger interface {
	Post(ctx context.Context, tx *gorm.DB, e wallet.Entry) (*wallet.Transaction, error)
}

type Service struct {
	db        *gorm.DB
	node      *snowflake.Node
	seq       sequence.Generator
	employees Employees
	companies Companies
	ledger    Ledger

	packages  repository.Repository[Package]
	approvals repository.Repository[Approval]
	feedback  repository.Repository[Feedback]
}

type ServiceParams struct {
	fx.In
	DB        *gorm.DB
	Node      *snowflake.Node
	Seq       sequence.Generator
	Employees *account.Service
	Companies *company.Service
	Wallet    *wallet.Service
}

func NewService(p ServiceParams) *Service {
	return New(p.DB, p.Node, p.Seq, p.Employees, p.Companies, p.Wallet)
}

func New(db *gorm.DB, node *snowflake.Node, seq sequence.Generator, employees Employees, companies Companies, ledger Ledger) *Service {
	return &Service{
		db:        db,
		node:      node,
		seq:       seq,
		employees: employees,
		companies: companies,
		ledger:    ledger,
		packages:  repository.ProvideStore[Package](db),
		approvals: repository.ProvideStore[Approval](db),
		feedback:  repository.ProvideStore[Feedback](db),
	}
}

// Create drafts a package after checking it against the company reward
// policy.
func (s *Service) Create(ctx context.Context, companyID string, req CreateRequest) (*Package, error) {
	zapLog := logger.FromContext(ctx)

	if !req.Category.Valid() {
		return nil, errutil.BadRequest("unknown reward category", nil,
			errutil.WithDetails(errutil.Detail{Field: "category", Message: "invalid"}))
	}
	if _, err := s.employees.GetEmployee(ctx, companyID, req.EmployeeID); err != nil {
		return nil, err
	}

	c, err := s.companies.Get(ctx, companyID)
	if err != nil {
		return nil, err
	}
	ok, err := c.Allows(req.Cost, string(req.Category))
	if err != nil {
		zapLog.Error("failed to evaluate reward policy", zap.String("company_id", companyID), zap.Error(err))
		return nil, errutil.Internal("failed to evaluate reward policy", err)
	}
	if !ok {
		zapLog.Info("package rejected by reward policy",
			zap.String("company_id", companyID),
			zap.String("category", string(req.Category)),
			zap.Int64("cost", req.Cost),
		)
		return nil, errutil.UnprocessableEntity("package violates company reward policy", nil)
	}

	code, err := s.seq.NextPackageCode(ctx, companyID)
	if err != nil {
		zapLog.Error("failed to generate package code", zap.Error(err))
		return nil, errutil.Internal("failed to create package", err)
	}

	p := &Package{
		ID:              s.node.Generate().String(),
		CompanyID:       companyID,
		EmployeeID:      req.EmployeeID,
		MilestoneID:     req.MilestoneID,
		Code:            code,
		Title:           req.Title,
		Description:     req.Description,
		Category:        req.Category,
		Cost:            req.Cost,
		AIReasoning:     req.AIReasoning,
		PreferenceScore: req.PreferenceScore,
		Status:          PackageDraft,
	}
	if err := s.packages.Create(ctx, p); err != nil {
		zapLog.Error("failed to create package", zap.Error(err))
		return nil, errutil.Internal("failed to create package", err)
	}

	zapLog.Info("reward package created", zap.String("package_id", p.ID), zap.String("code", p.Code))
	return p, nil
}

func (s *Service) List(ctx context.Context, companyID string, f Filter, page pagination.Pagination) ([]*Package, *pagination.PageInfo, error) {
	rows, err := s.packages.Find(ctx, &Package{CompanyID: companyID, EmployeeID: f.EmployeeID, Status: f.Status},
		option.WithSortBy(option.QuerySortBy{OrderBy: "desc"}),
		option.ApplyPagination(page),
	)
	if err != nil {
		logger.FromContext(ctx).Error("failed to list packages", zap.String("company_id", companyID), zap.Error(err))
		return nil, nil, errutil.Internal("failed to list packages", err)
	}

	out, info := pagination.Trim(rows, page.Limit, func(p *Package) pagination.Cursor {
		return pagination.CursorFrom(p.CreatedAt, p.ID)
	})
	return out, info, nil
}

// ForEmployee lists an employee's packages that left draft.
func (s *Service) ForEmployee(ctx context.Context, employeeID string) ([]*Package, error) {
	rows, err := s.packages.Find(ctx, &Package{EmployeeID: employeeID},
		option.ApplyOperator(option.Condition{Field: "status", Operator: option.NEQ, Value: PackageDraft}),
		option.WithSortBy(option.QuerySortBy{OrderBy: "desc"}),
	)
	if err != nil {
		logger.FromContext(ctx).Error("failed to list employee packages", zap.String("employee_id", employeeID), zap.Error(err))
		return nil, errutil.Internal("failed to list packages", err)
	}
	return rows, nil
}

func (s *Service) Get(ctx context.Context, companyID, id string) (*Package, error) {
	p, err := s.packages.FindOne(ctx, &Package{ID: id, CompanyID: companyID})
	if err != nil {
		return nil, errutil.Internal("failed to get package", err)
	}
	if p == nil {
		return nil, errutil.NotFound("package not found", nil)
	}
	return p, nil
}

func (s *Service) owned(ctx context.Context, employeeID, id string) (*Package, error) {
	p, err := s.packages.FindOne(ctx, &Package{ID: id, EmployeeID: employeeID})
	if err != nil {
		return nil, errutil.Internal("failed to get package", err)
	}
	if p == nil {
		return nil, errutil.NotFound("package not found", nil)
	}
	return p, nil
}

// casPackage moves a package from one status to another inside tx.
func casPackage(tx *gorm.DB, id string, from, to PackageStatus, extra map[string]any) error {
	updates := map[string]any{"status": to}
	for k, v := range extra {
		updates[k] = v
	}
	res := tx.Model(&Package{}).Where("id = ? AND status = ?", id, from).Updates(updates)
	if res.Error != nil {
		return errutil.Internal("failed to update package", res.Error)
	}
	if res.RowsAffected == 0 {
		return errutil.Conflict(fmt.Sprintf("package is not %s", from), nil)
	}
	return nil
}

// Submit sends a draft (or previously rejected) package for approval.
func (s *Service) Submit(ctx context.Context, companyID, id string) (*Approval, error) {
	zapLog := logger.FromContext(ctx)

	p, err := s.Get(ctx, companyID, id)
	if err != nil {
		return nil, err
	}
	if p.Status != PackageDraft && p.Status != PackageRejected {
		return nil, errutil.Conflict(fmt.Sprintf("cannot submit a %s package", p.Status), nil)
	}

	a := &Approval{
		ID:          s.node.Generate().String(),
		CompanyID:   companyID,
		PackageID:   p.ID,
		Status:      ApprovalPending,
		RequestedAt: time.Now().UTC(),
	}
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := casPackage(tx, p.ID, p.Status, PackagePendingApproval, nil); err != nil {
			return err
		}
		if err := s.approvals.WithTrx(tx).Create(ctx, a); err != nil {
			return errutil.Internal("failed to create approval", err)
		}
		return nil
	})
	if err != nil {
		zapLog.Warn("failed to submit package", zap.String("package_id", id), zap.Error(err))
		return nil, err
	}

	zapLog.Info("package submitted for approval", zap.String("package_id", p.ID), zap.String("approval_id", a.ID))
	return a, nil
}

func (s *Service) ListApprovals(ctx context.Context, companyID string, status ApprovalStatus, page pagination.Pagination) ([]*Approval, *pagination.PageInfo, error) {
	rows, err := s.approvals.Find(ctx, &Approval{CompanyID: companyID, Status: status},
		option.WithPreload("Package"),
		option.WithSortBy(option.QuerySortBy{OrderBy: "desc"}),
		option.ApplyPagination(page),
	)
	if err != nil {
		logger.FromContext(ctx).Error("failed to list approvals", zap.String("company_id", companyID), zap.Error(err))
		return nil, nil, errutil.Internal("failed to list approvals", err)
	}

	out, info := pagination.Trim(rows, page.Limit, func(a *Approval) pagination.Cursor {
		return pagination.CursorFrom(a.CreatedAt, a.ID)
	})
	return out, info, nil
}

func (s *Service) GetApproval(ctx context.Context, companyID, id string) (*Approval, error) {
	a, err := s.approvals.FindOne(ctx, &Approval{ID: id, CompanyID: companyID}, option.WithPreload("Package"))
	if err != nil {
		return nil, errutil.Internal("failed to get approval", err)
	}
	if a == nil {
		return nil, errutil.NotFound("approval not found", nil)
	}
	return a, nil
}

// Approve settles a pending approval. The split must cover the package cost
// exactly. The employer share is taken from the company pool and both
// shares are credited to the employee wallet in one transaction.
func (s *Service) Approve(ctx context.Context, companyID, approverID, id string, req ApproveRequest) (*Approval, error) {
	zapLog := logger.FromContext(ctx)

	a, err := s.GetApproval(ctx, companyID, id)
	if err != nil {
		return nil, err
	}
	if a.Status != ApprovalPending {
		return nil, errutil.Conflict("approval already decided", nil)
	}
	p := a.Package
	if p == nil {
		return nil, errutil.NotFound("package not found", nil)
	}
	if req.EmployerAmount < 0 || req.EmployeeAmount < 0 || req.EmployerAmount+req.EmployeeAmount != p.Cost {
		return nil, errutil.ValidationFailed("employer_amount + employee_amount must equal the package cost", nil,
			errutil.WithDetails(
				errutil.Detail{Field: "employer_amount", Message: fmt.Sprintf("cost is %d", p.Cost)},
				errutil.Detail{Field: "employee_amount", Message: fmt.Sprintf("cost is %d", p.Cost)},
			))
	}

	now := time.Now().UTC()
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&Approval{}).Where("id = ? AND status = ?", a.ID, ApprovalPending).Updates(map[string]any{
			"status":          ApprovalApproved,
			"approver_id":     approverID,
			"employer_amount": req.EmployerAmount,
			"employee_amount": req.EmployeeAmount,
			"comments":        req.Comments,
			"responded_at":    now,
		})
		if res.Error != nil {
			return errutil.Internal("failed to update approval", res.Error)
		}
		if res.RowsAffected == 0 {
			return errutil.Conflict("approval already decided", nil)
		}
		if err := casPackage(tx, p.ID, PackagePendingApproval, PackageApproved, nil); err != nil {
			return err
		}

		if _, err := s.companies.DebitPool(ctx, tx, companyID, req.EmployerAmount); err != nil {
			return err
		}
		for _, share := range []struct {
			t      wallet.TransactionType
			amount int64
		}{
			{wallet.EmployerContribution, req.EmployerAmount},
			{wallet.EmployeeContribution, req.EmployeeAmount},
		} {
			if share.amount == 0 {
				continue
			}
			if _, err := s.ledger.Post(ctx, tx, wallet.Entry{
				CompanyID:   companyID,
				EmployeeID:  p.EmployeeID,
				Type:        share.t,
				Amount:      share.amount,
				MilestoneID: p.MilestoneID,
				PackageID:   &p.ID,
				Description: p.Title,
			}); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		zapLog.Warn("failed to approve package", zap.String("approval_id", id), zap.Error(err))
		return nil, err
	}

	zapLog.Info("package approved",
		zap.String("approval_id", a.ID),
		zap.String("package_id", p.ID),
		zap.Int64("employer_amount", req.EmployerAmount),
		zap.Int64("employee_amount", req.EmployeeAmount),
	)
	return s.GetApproval(ctx, companyID, id)
}

func (s *Service) Reject(ctx context.Context, companyID, approverID, id, comments string) (*Approval, error) {
	a, err := s.GetApproval(ctx, companyID, id)
	if err != nil {
		return nil, err
	}
	if a.Status != ApprovalPending {
		return nil, errutil.Conflict("approval already decided", nil)
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&Approval{}).Where("id = ? AND status = ?", a.ID, ApprovalPending).Updates(map[string]any{
			"status":       ApprovalRejected,
			"approver_id":  approverID,
			"comments":     comments,
			"responded_at": time.Now().UTC(),
		})
		if res.Error != nil {
			return errutil.Internal("failed to update approval", res.Error)
		}
		if res.RowsAffected == 0 {
			return errutil.Conflict("approval already decided", nil)
		}
		return casPackage(tx, a.PackageID, PackagePendingApproval, PackageRejected, nil)
	})
	if err != nil {
		return nil, err
	}

	logger.FromContext(ctx).Info("package rejected", zap.String("approval_id", a.ID), zap.String("package_id", a.PackageID))
	return s.GetApproval(ctx, companyID, id)
}

// Redeem spends an approved package from the employee wallet.
func (s *Service) Redeem(ctx context.Context, employeeID, id string) (*Package, error) {
	p, err := s.owned(ctx, employeeID, id)
	if err != nil {
		return nil, err
	}
	if p.Status != PackageApproved {
		return nil, errutil.Conflict(fmt.Sprintf("cannot redeem a %s package", p.Status), nil)
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := casPackage(tx, p.ID, PackageApproved, PackageRedeemed, map[string]any{"redeemed_at": time.Now().UTC()}); err != nil {
			return err
		}
		_, err := s.ledger.Post(ctx, tx, wallet.Entry{
			CompanyID:   p.CompanyID,
			EmployeeID:  employeeID,
			Type:        wallet.RewardRedemption,
			Amount:      p.Cost,
			MilestoneID: p.MilestoneID,
			PackageID:   &p.ID,
			Description: p.Title,
		})
		return err
	})
	if err != nil {
		logger.FromContext(ctx).Warn("failed to redeem package", zap.String("package_id", id), zap.Error(err))
		return nil, err
	}

	logger.FromContext(ctx).Info("package redeemed", zap.String("package_id", p.ID), zap.String("employee_id", employeeID))
	return s.owned(ctx, employeeID, id)
}

func (s *Service) Feedback(ctx context.Context, employeeID, id string, req FeedbackRequest) (*Feedback, error) {
	if req.Rating < 1 || req.Rating > 5 {
		return nil, errutil.BadRequest("rating must be between 1 and 5", nil)
	}
	p, err := s.owned(ctx, employeeID, id)
	if err != nil {
		return nil, err
	}
	if p.Status != PackageApproved && p.Status != PackageRedeemed {
		return nil, errutil.Conflict("feedback is only accepted on approved packages", nil)
	}

	exist, err := s.feedback.FindOne(ctx, &Feedback{PackageID: p.ID, EmployeeID: employeeID})
	if err != nil {
		return nil, errutil.Internal("failed to check feedback", err)
	}
	if exist != nil {
		return nil, errutil.Conflict("feedback already submitted", nil)
	}

	fb := &Feedback{
		ID:         s.node.Generate().String(),
		PackageID:  p.ID,
		EmployeeID: employeeID,
		Rating:     req.Rating,
		Comment:    req.Comment,
	}
	if err := s.feedback.Create(ctx, fb); err != nil {
		logger.FromContext(ctx).Error("failed to save feedback", zap.Error(err))
		return nil, errutil.Internal("failed to save feedback", err)
	}
	return fb, nil
}
