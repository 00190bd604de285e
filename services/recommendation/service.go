package recommendation

import (
	"context"
	"encoding/json"
	"time"

	"rewards-controlplane/pkg/db/option"
	"rewards-controlplane/pkg/db/pagination"
	"rewards-controlplane/pkg/errutil"
	"rewards-controlplane/pkg/logger"
	"rewards-controlplane/pkg/realtime"
	"rewards-controlplane/pkg/rediskey"
	"rewards-controlplane/pkg/repository"
	"rewards-controlplane/services/account"
	"rewards-controlplane/services/detection"

	"github.com/bwmarrin/snowflake"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type Employees interface {
	GetEmployee(ctx context.Context, companyID, employeeID string) (*account.Profile, error)
}

type Cycles interface {
	Get(ctx context.Context, companyID, id string) (*detection.View, error)
}

type Service struct {
	db        *gorm.DB
	node      *snowflake.Node
	bus       realtime.Bus
	employees Employees
	cycles    Cycles
	now       func() time.Time
	repo      repository.Repository[Recommendation]
}

type ServiceParams struct {
	fx.In
	DB        *gorm.DB
	Node      *snowflake.Node
	Bus       realtime.Bus
	Employees *account.Service
	Cycles    *detection.Service
}

func NewService(p ServiceParams) *Service {
	return New(p.DB, p.Node, p.Bus, p.Employees, p.Cycles)
}

func New(db *gorm.DB, node *snowflake.Node, bus realtime.Bus, employees Employees, cycles Cycles) *Service {
	return &Service{
		db:        db,
		node:      node,
		bus:       bus,
		employees: employees,
		cycles:    cycles,
		now:       func() time.Time { return time.Now().UTC() },
		repo:      repository.ProvideStore[Recommendation](db),
	}
}

// Approve hands a recommendation to an employee. When it came out of a
// detection cycle, that cycle must belong to the company and be completed.
func (s *Service) Approve(ctx context.Context, companyID, approverID string, req ApproveRequest) (*Recommendation, error) {
	zapLog := logger.FromContext(ctx)

	if !json.Valid(req.Recommendation) {
		return nil, errutil.BadRequest("recommendation must be valid JSON", nil,
			errutil.WithDetails(errutil.Detail{Field: "recommendation", Message: "invalid json"}))
	}
	if _, err := s.employees.GetEmployee(ctx, companyID, req.EmployeeID); err != nil {
		return nil, err
	}
	if req.CycleID != nil && *req.CycleID != "" {
		v, err := s.cycles.Get(ctx, companyID, *req.CycleID)
		if err != nil {
			return nil, err
		}
		if v.State != detection.StateCompleted {
			return nil, errutil.Conflict("detection cycle has not completed", nil)
		}
	} else {
		req.CycleID = nil
	}

	r := &Recommendation{
		ID:             s.node.Generate().String(),
		CompanyID:      companyID,
		EmployeeID:     req.EmployeeID,
		ApprovedBy:     approverID,
		CycleID:        req.CycleID,
		Recommendation: datatypes.JSON(req.Recommendation),
		Status:         StatusPending,
	}
	if err := s.repo.Create(ctx, r); err != nil {
		zapLog.Error("failed to create approved recommendation", zap.String("employee_id", req.EmployeeID), zap.Error(err))
		return nil, errutil.Internal("failed to approve recommendation", err)
	}

	zapLog.Info("recommendation approved",
		zap.String("recommendation_id", r.ID),
		zap.String("employee_id", r.EmployeeID),
		zap.String("approved_by", approverID),
	)
	s.publish(ctx, realtime.EventInsert, r)
	return r, nil
}

func (s *Service) List(ctx context.Context, companyID string, f Filter, page pagination.Pagination) ([]*Recommendation, *pagination.PageInfo, error) {
	rows, err := s.repo.Find(ctx, &Recommendation{CompanyID: companyID, EmployeeID: f.EmployeeID, Status: f.Status},
		option.WithSortBy(option.QuerySortBy{OrderBy: "desc"}),
		option.ApplyPagination(page),
	)
	if err != nil {
		logger.FromContext(ctx).Error("failed to list recommendations", zap.String("company_id", companyID), zap.Error(err))
		return nil, nil, errutil.Internal("failed to list recommendations", err)
	}
	out, info := pagination.Trim(rows, page.Limit, func(r *Recommendation) pagination.Cursor {
		return pagination.CursorFrom(r.CreatedAt, r.ID)
	})
	return out, info, nil
}

func (s *Service) ForEmployee(ctx context.Context, employeeID string, status Status) ([]*Recommendation, error) {
	rows, err := s.repo.Find(ctx, &Recommendation{EmployeeID: employeeID, Status: status},
		option.WithSortBy(option.QuerySortBy{OrderBy: "desc"}),
	)
	if err != nil {
		logger.FromContext(ctx).Error("failed to list employee recommendations", zap.String("employee_id", employeeID), zap.Error(err))
		return nil, errutil.Internal("failed to list recommendations", err)
	}
	return rows, nil
}

// Accept moves a pending recommendation of employeeID to accepted.
func (s *Service) Accept(ctx context.Context, employeeID, id string) (*Recommendation, error) {
	zapLog := logger.FromContext(ctx)

	now := s.now()
	res := s.db.WithContext(ctx).Model(&Recommendation{}).
		Where("id = ? AND employee_id = ? AND status = ?", id, employeeID, StatusPending).
		Updates(map[string]any{"status": StatusAccepted, "accepted_at": now})
	if res.Error != nil {
		zapLog.Error("failed to accept recommendation", zap.String("recommendation_id", id), zap.Error(res.Error))
		return nil, errutil.Internal("failed to accept recommendation", res.Error)
	}

	r, err := s.repo.FindOne(ctx, &Recommendation{ID: id, EmployeeID: employeeID})
	if err != nil {
		return nil, errutil.Internal("failed to get recommendation", err)
	}
	if r == nil {
		return nil, errutil.NotFound("recommendation not found", nil)
	}
	if res.RowsAffected == 0 {
		return nil, errutil.Conflict("recommendation already accepted", nil)
	}

	zapLog.Info("recommendation accepted", zap.String("recommendation_id", id), zap.String("employee_id", employeeID))
	s.publish(ctx, realtime.EventUpdate, r)
	return r, nil
}

// Channel is the realtime channel an employee's stream listens on.
func Channel(employeeID string) string {
	return rediskey.BuildEmployeeChannel(employeeID)
}

// publish failures are logged and never fail the caller.
func (s *Service) publish(ctx context.Context, eventType string, r *Recommendation) {
	if s.bus == nil {
		return
	}
	ev, err := realtime.NewEvent(eventType, Table, r)
	if err == nil {
		err = s.bus.Publish(ctx, Channel(r.EmployeeID), ev)
	}
	if err != nil {
		logger.FromContext(ctx).Warn("failed to publish recommendation event",
			zap.String("recommendation_id", r.ID),
			zap.String("event", eventType),
			zap.Error(err),
		)
	}
}

// Bus is the event bus employee streams subscribe to.
func (s *Service) Bus() realtime.Bus {
	return s.bus
}
