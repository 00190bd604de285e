package milestone

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"rewards-controlplane/pkg/db/option"
	"rewards-controlplane/pkg/db/pagination"
	"rewards-controlplane/pkg/errutil"
	"rewards-controlplane/pkg/logger"
	"rewards-controlplane/pkg/repository"
	"rewards-controlplane/services/account"
	"rewards-controlplane/services/company"
	"rewards-controlplane/services/wallet"

	"github.com/bwmarrin/snowflake"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const (
	// ExpiryGrace is how long past its due date an open milestone survives.
	ExpiryGrace = 30 * 24 * time.Hour
	// AnniversaryLookahead is how far ahead the anniversary scan looks.
	AnniversaryLookahead = 30 * 24 * time.Hour
)

type Employees interface {
	GetEmployee(ctx context.Context, companyID, employeeID string) (*account.Profile, error)
	CompanyEmployees(ctx context.Context, companyID string) ([]*account.Profile, error)
}

type Ledger interface {
	Post(ctx context.Context, tx *gorm.DB, e wallet.Entry) (*wallet.Transaction, error)
}

type Pool interface {
	DebitPool(ctx context.Context, tx *gorm.DB, id string, amount int64) (*company.Company, error)
}

type Service struct {
	db         *gorm.DB
	node       *snowflake.Node
	employees  Employees
	ledger     Ledger
	pool       Pool
	milestones repository.Repository[Milestone]
	events     repository.Repository[HRISEvent]
}

type ServiceParams struct {
	fx.In
	DB        *gorm.DB
	Node      *snowflake.Node
	Employees *account.Service
	Wallet    *wallet.Service
	Companies *company.Service
}

func NewService(p ServiceParams) *Service {
	return New(p.DB, p.Node, p.Employees, p.Wallet, p.Companies)
}

func New(db *gorm.DB, node *snowflake.Node, employees Employees, ledger Ledger, pool Pool) *Service {
	return &Service{
		db:         db,
		node:       node,
		employees:  employees,
		ledger:     ledger,
		pool:       pool,
		milestones: repository.ProvideStore[Milestone](db),
		events:     repository.ProvideStore[HRISEvent](db),
	}
}

func (s *Service) Create(ctx context.Context, companyID string, req CreateRequest) (*Milestone, error) {
	zapLog := logger.FromContext(ctx)

	if !req.Type.Valid() {
		return nil, errutil.BadRequest("unknown milestone type", nil,
			errutil.WithDetails(errutil.Detail{Field: "type", Message: "invalid"}))
	}
	if req.TriggerDate == nil && req.PredictedDate == nil {
		return nil, errutil.BadRequest("trigger_date or predicted_date is required", nil)
	}
	if _, err := s.employees.GetEmployee(ctx, companyID, req.EmployeeID); err != nil {
		return nil, err
	}

	m := &Milestone{
		ID:              s.node.Generate().String(),
		EmployeeID:      req.EmployeeID,
		CompanyID:       companyID,
		Type:            req.Type,
		TriggerDate:     req.TriggerDate,
		PredictedDate:   req.PredictedDate,
		ConfidenceScore: req.ConfidenceScore,
		Status:          StatusPending,
		Description:     req.Description,
		Source:          SourceManual,
		BonusAmount:     req.BonusAmount,
	}
	if err := s.milestones.Create(ctx, m); err != nil {
		zapLog.Error("failed to create milestone", zap.Error(err))
		return nil, errutil.Internal("failed to create milestone", err)
	}

	zapLog.Info("milestone created",
		zap.String("milestone_id", m.ID),
		zap.String("employee_id", m.EmployeeID),
		zap.String("type", string(m.Type)),
	)
	return m, nil
}

// CreatePredicted opens an AI-sourced milestone inside tx.
func (s *Service) CreatePredicted(ctx context.Context, tx *gorm.DB, companyID, employeeID string, t Type, predicted time.Time, confidence float64, description string) (*Milestone, error) {
	m := &Milestone{
		ID:              s.node.Generate().String(),
		EmployeeID:      employeeID,
		CompanyID:       companyID,
		Type:            t,
		PredictedDate:   &predicted,
		ConfidenceScore: confidence,
		Status:          StatusPending,
		Description:     description,
		Source:          SourceAI,
	}
	if err := s.milestones.WithTrx(tx).Create(ctx, m); err != nil {
		return nil, err
	}
	return m, nil
}

func (s *Service) List(ctx context.Context, companyID string, f Filter, page pagination.Pagination) ([]*Milestone, *pagination.PageInfo, error) {
	rows, err := s.milestones.Find(ctx, &Milestone{CompanyID: companyID, EmployeeID: f.EmployeeID, Status: f.Status},
		option.WithSortBy(option.QuerySortBy{OrderBy: "desc"}),
		option.ApplyPagination(page),
	)
	if err != nil {
		logger.FromContext(ctx).Error("failed to list milestones", zap.String("company_id", companyID), zap.Error(err))
		return nil, nil, errutil.Internal("failed to list milestones", err)
	}

	out, info := pagination.Trim(rows, page.Limit, func(m *Milestone) pagination.Cursor {
		return pagination.CursorFrom(m.CreatedAt, m.ID)
	})
	return out, info, nil
}

// ForEmployee returns all milestones of an employee, newest first.
func (s *Service) ForEmployee(ctx context.Context, employeeID string) ([]*Milestone, error) {
	rows, err := s.milestones.Find(ctx, &Milestone{EmployeeID: employeeID},
		option.WithSortBy(option.QuerySortBy{OrderBy: "desc"}),
	)
	if err != nil {
		logger.FromContext(ctx).Error("failed to list employee milestones", zap.String("employee_id", employeeID), zap.Error(err))
		return nil, errutil.Internal("failed to list milestones", err)
	}
	return rows, nil
}

func (s *Service) Get(ctx context.Context, companyID, id string) (*Milestone, error) {
	m, err := s.milestones.FindOne(ctx, &Milestone{ID: id, CompanyID: companyID})
	if err != nil {
		logger.FromContext(ctx).Error("failed to get milestone", zap.String("milestone_id", id), zap.Error(err))
		return nil, errutil.Internal("failed to get milestone", err)
	}
	if m == nil {
		return nil, errutil.NotFound("milestone not found", nil)
	}
	return m, nil
}

// ExpiredCount is the number of expired milestones of an employee.
func (s *Service) ExpiredCount(ctx context.Context, employeeID string) (int64, error) {
	n, err := s.milestones.Count(ctx, &Milestone{EmployeeID: employeeID, Status: StatusExpired})
	if err != nil {
		return 0, errutil.Internal("failed to count milestones", err)
	}
	return n, nil
}

// UpdateStatus moves a milestone along its lifecycle. Completing one with a
// bonus debits the company pool and credits the employee wallet in the
// same transaction.
func (s *Service) UpdateStatus(ctx context.Context, companyID, id string, next Status) (*Milestone, error) {
	zapLog := logger.FromContext(ctx)

	m, err := s.Get(ctx, companyID, id)
	if err != nil {
		return nil, err
	}
	if !m.Status.CanMoveTo(next) {
		return nil, errutil.Conflict(fmt.Sprintf("cannot move milestone from %s to %s", m.Status, next), nil)
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		updates := map[string]any{"status": next}
		if next == StatusCompleted {
			updates["completed_at"] = time.Now().UTC()
		}
		res := tx.Model(&Milestone{}).Where("id = ? AND status = ?", m.ID, m.Status).Updates(updates)
		if res.Error != nil {
			return errutil.Internal("failed to update milestone", res.Error)
		}
		if res.RowsAffected == 0 {
			return errutil.Conflict("milestone was modified concurrently", nil)
		}

		if next != StatusCompleted || m.BonusAmount <= 0 {
			return nil
		}
		if _, err := s.pool.DebitPool(ctx, tx, companyID, m.BonusAmount); err != nil {
			return err
		}
		_, err := s.ledger.Post(ctx, tx, wallet.Entry{
			CompanyID:   companyID,
			EmployeeID:  m.EmployeeID,
			Type:        wallet.MilestoneBonus,
			Amount:      m.BonusAmount,
			MilestoneID: &m.ID,
			Description: fmt.Sprintf("%s milestone bonus", m.Type),
		})
		return err
	})
	if err != nil {
		zapLog.Warn("failed to update milestone status", zap.String("milestone_id", id), zap.Error(err))
		return nil, err
	}

	zapLog.Info("milestone status updated",
		zap.String("milestone_id", id),
		zap.String("from", string(m.Status)),
		zap.String("to", string(next)),
	)
	return s.Get(ctx, companyID, id)
}

// RecordEvent stores an HRIS event and, for life-event types, opens the
// matching milestone.
func (s *Service) RecordEvent(ctx context.Context, companyID string, source Source, req EventRequest) (*HRISEvent, error) {
	zapLog := logger.FromContext(ctx)

	if !req.EventType.Valid() {
		return nil, errutil.BadRequest("unknown event type", nil,
			errutil.WithDetails(errutil.Detail{Field: "event_type", Message: "invalid"}))
	}
	if _, err := s.employees.GetEmployee(ctx, companyID, req.EmployeeID); err != nil {
		return nil, err
	}

	payload, err := json.Marshal(req.Payload)
	if err != nil {
		return nil, errutil.BadRequest("invalid payload", err)
	}

	ev := &HRISEvent{
		ID:         s.node.Generate().String(),
		EmployeeID: req.EmployeeID,
		CompanyID:  companyID,
		EventType:  req.EventType,
		Source:     source,
		OccurredAt: req.OccurredAt.UTC(),
		Payload:    datatypes.JSON(payload),
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if t, ok := milestoneFor[req.EventType]; ok {
			occurred := ev.OccurredAt
			m := &Milestone{
				ID:              s.node.Generate().String(),
				EmployeeID:      ev.EmployeeID,
				CompanyID:       companyID,
				Type:            t,
				TriggerDate:     &occurred,
				ConfidenceScore: 1,
				Status:          StatusPending,
				Description:     string(req.EventType),
				Source:          source,
			}
			if err := s.milestones.WithTrx(tx).Create(ctx, m); err != nil {
				return err
			}
			ev.MilestoneID = &m.ID
		}
		return s.events.WithTrx(tx).Create(ctx, ev)
	})
	if err != nil {
		zapLog.Error("failed to record hris event", zap.Error(err))
		return nil, errutil.Internal("failed to record event", err)
	}

	zapLog.Info("hris event recorded",
		zap.String("event_id", ev.ID),
		zap.String("event_type", string(ev.EventType)),
		zap.Bool("milestone_created", ev.MilestoneID != nil),
	)
	return ev, nil
}

// ExpireOverdue expires open milestones whose due date is older than
// ExpiryGrace.
func (s *Service) ExpireOverdue(ctx context.Context, companyID string, now time.Time) (int, error) {
	cutoff := now.UTC().Add(-ExpiryGrace)
	res := s.db.WithContext(ctx).Model(&Milestone{}).
		Where("company_id = ? AND status IN ?", companyID, []Status{StatusPending, StatusActive}).
		Where("COALESCE(trigger_date, predicted_date) < ?", cutoff).
		Update("status", StatusExpired)
	if res.Error != nil {
		return 0, res.Error
	}
	return int(res.RowsAffected), nil
}

// nextAnniversary returns the next hire anniversary on or after today and
// the number of years it marks.
func nextAnniversary(hire, now time.Time) (time.Time, int) {
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	hire = time.Date(hire.Year(), hire.Month(), hire.Day(), 0, 0, 0, 0, time.UTC)

	years := today.Year() - hire.Year()
	next := hire.AddDate(years, 0, 0)
	if next.Before(today) {
		years++
		next = hire.AddDate(years, 0, 0)
	}
	return next, years
}

// ScanAnniversaries opens an anniversary milestone for every employee whose
// next hire anniversary falls inside AnniversaryLookahead.
func (s *Service) ScanAnniversaries(ctx context.Context, companyID string, now time.Time) (int, error) {
	employees, err := s.employees.CompanyEmployees(ctx, companyID)
	if err != nil {
		return 0, err
	}

	horizon := now.UTC().Add(AnniversaryLookahead)
	created := 0
	for _, e := range employees {
		if e.HireDate == nil {
			continue
		}
		date, years := nextAnniversary(*e.HireDate, now)
		if years < 1 || date.After(horizon) {
			continue
		}

		exists, err := s.milestones.FindOne(ctx, nil,
			option.WithWhere("employee_id = ? AND type = ? AND trigger_date >= ? AND trigger_date < ?",
				e.ID, TypeAnniversary, date, date.Add(24*time.Hour)),
		)
		if err != nil {
			return created, err
		}
		if exists != nil {
			continue
		}

		m := &Milestone{
			ID:              s.node.Generate().String(),
			EmployeeID:      e.ID,
			CompanyID:       companyID,
			Type:            TypeAnniversary,
			TriggerDate:     &date,
			ConfidenceScore: 1,
			Status:          StatusPending,
			Description:     fmt.Sprintf("%d year work anniversary", years),
			Source:          SourceHRIS,
		}
		if err := s.milestones.Create(ctx, m); err != nil {
			return created, err
		}
		created++
	}

	if created > 0 {
		zap.L().Info("anniversary milestones created", zap.String("company_id", companyID), zap.Int("count", created))
	}
	return created, nil
}
