package detection

import (
	"context"
	"fmt"
	"time"

	"rewards-controlplane/pkg/config"
	"rewards-controlplane/pkg/db/option"
	"rewards-controlplane/pkg/db/pagination"
	"rewards-controlplane/pkg/errutil"
	"rewards-controlplane/pkg/featureflags"
	"rewards-controlplane/pkg/logger"
	"rewards-controlplane/pkg/repository"
	"rewards-controlplane/services/company"

	"github.com/bwmarrin/snowflake"
	"github.com/redis/go-redis/v9"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const (
	defaultStepDelay     = 2 * time.Second
	defaultFastStepDelay = time.Second
	cancelAttempts       = 3
	defaultStaleAfter    = 30 * time.Minute
)

// Delays are the pauses between steps in normal and fast mode.
type Delays struct {
	Normal time.Duration
	Fast   time.Duration
}

func DelaysFrom(cfg *config.Config) Delays {
	d := Delays{Normal: cfg.Detection.StepDelay, Fast: cfg.Detection.FastStepDelay}
	if d.Normal <= 0 {
		d.Normal = defaultStepDelay
	}
	if d.Fast <= 0 {
		d.Fast = defaultFastStepDelay
	}
	return d
}

func (d Delays) For(fast bool) time.Duration {
	if fast {
		return d.Fast
	}
	return d.Normal
}

type Service struct {
	db        *gorm.DB
	node      *snowflake.Node
	starter   Starter
	locker    Locker
	companies Companies
	flags     featureflags.FeatureFlag
	delays    Delays
	stale     time.Duration
	now       func() time.Time

	cycles repository.Repository[Cycle]
	steps  repository.Repository[Step]
}

type ServiceParams struct {
	fx.In
	DB        *gorm.DB
	Node      *snowflake.Node
	Config    *config.Config
	Flags     featureflags.FeatureFlag
	Companies *company.Service
	Starter   Starter
	Redis     *redis.Client `optional:"true"`
}

func NewService(p ServiceParams) *Service {
	svc := New(p.DB, p.Node, p.Starter, p.Companies, p.Flags, DelaysFrom(p.Config))
	svc.locker = NewLocker(p.Redis)
	if p.Config.Detection.StaleAfter > 0 {
		svc.stale = p.Config.Detection.StaleAfter
	}
	return svc
}

func New(db *gorm.DB, node *snowflake.Node, starter Starter, companies Companies, flags featureflags.FeatureFlag, delays Delays) *Service {
	if flags == nil {
		flags = featureflags.Static(nil)
	}
	return &Service{
		db:        db,
		node:      node,
		starter:   starter,
		companies: companies,
		flags:     flags,
		delays:    delays,
		stale:     defaultStaleAfter,
		now:       func() time.Time { return time.Now().UTC() },
		cycles:    repository.ProvideStore[Cycle](db),
		steps:     repository.ProvideStore[Step](db),
	}
}

// Start opens a cycle for companyID and hands it to the workflow engine.
// Only one non-terminal cycle may exist per company.
func (s *Service) Start(ctx context.Context, companyID, initiator string, req StartRequest) (*View, error) {
	c, err := s.companies.Get(ctx, companyID)
	if err != nil {
		return nil, err
	}

	fast := c.Settings.Data().FastMode || s.flags.Enabled(ctx, companyID, featureflags.DetectionFastMode, false)
	if req.FastMode != nil {
		fast = *req.FastMode
	}
	return s.open(ctx, companyID, initiator, fast, nil)
}

// Retry starts a fresh cycle from a terminal one. The source cycle is not
// modified.
func (s *Service) Retry(ctx context.Context, companyID, initiator, id string) (*View, error) {
	src, err := s.get(ctx, companyID, id)
	if err != nil {
		return nil, err
	}
	if !src.State.Terminal() {
		return nil, errutil.Conflict(fmt.Sprintf("cannot retry a %s cycle", src.State), nil)
	}
	return s.open(ctx, companyID, initiator, src.FastMode, &src.ID)
}

func (s *Service) open(ctx context.Context, companyID, initiator string, fast bool, retryOf *string) (*View, error) {
	zapLog := logger.FromContext(ctx)

	if s.locker != nil {
		unlock, err := s.locker.Lock(ctx, companyID)
		if err != nil {
			return nil, err
		}
		defer unlock()
	}

	running, err := s.running(ctx, companyID)
	if err != nil {
		zapLog.Error("failed to count running cycles", zap.String("company_id", companyID), zap.Error(err))
		return nil, errutil.Internal("failed to start detection cycle", err)
	}
	if running > 0 {
		return nil, errutil.Conflict("a detection cycle is already running", nil)
	}

	now := s.now()
	cycle := &Cycle{
		ID:          s.node.Generate().String(),
		CompanyID:   companyID,
		InitiatedBy: initiator,
		State:       StateContextAnalysis,
		FastMode:    fast,
		Version:     1,
		StartedAt:   now,
		RetryOf:     retryOf,
	}
	steps := make([]*Step, 0, len(Steps))
	for i, name := range Steps {
		steps = append(steps, &Step{
			ID:       s.node.Generate().String(),
			CycleID:  cycle.ID,
			Name:     name,
			Position: i,
			Status:   StepPending,
		})
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := s.cycles.WithTrx(tx).Create(ctx, cycle); err != nil {
			return err
		}
		return s.steps.WithTrx(tx).BatchCreate(ctx, steps)
	})
	if err != nil {
		zapLog.Error("failed to create detection cycle", zap.String("company_id", companyID), zap.Error(err))
		return nil, errutil.Internal("failed to start detection cycle", err)
	}

	workflowID, err := s.starter.Start(ctx, Input{
		CycleID:   cycle.ID,
		CompanyID: companyID,
		FastMode:  fast,
		StepDelay: s.delays.For(fast),
	})
	if err != nil {
		zapLog.Error("failed to start detection workflow", zap.String("cycle_id", cycle.ID), zap.Error(err))
		s.db.WithContext(ctx).Model(&Cycle{}).
			Where("id = ? AND version = ?", cycle.ID, cycle.Version).
			Updates(map[string]any{
				"state":         StateFailed,
				"error_message": "failed to start workflow: " + err.Error(),
				"completed_at":  s.now(),
				"version":       gorm.Expr("version + 1"),
			})
		return nil, errutil.ServiceUnavailable("failed to start detection cycle", err)
	}

	if err := s.cycles.Update(ctx, cycle.ID, map[string]any{"workflow_id": workflowID}); err != nil {
		zapLog.Warn("failed to record workflow id", zap.String("cycle_id", cycle.ID), zap.Error(err))
	}

	zapLog.Info("detection cycle started",
		zap.String("cycle_id", cycle.ID),
		zap.String("company_id", companyID),
		zap.Bool("fast_mode", fast),
		zap.Stringp("retry_of", retryOf),
	)
	return s.Get(ctx, companyID, cycle.ID)
}

// running counts non-terminal cycles. Without a Locker two concurrent
// starts may both see zero.
func (s *Service) running(ctx context.Context, companyID string) (int64, error) {
	var n int64
	err := s.db.WithContext(ctx).Model(&Cycle{}).
		Where("company_id = ? AND state NOT IN ?", companyID, []State{StateCompleted, StateFailed, StateCancelled}).
		Count(&n).Error
	return n, err
}

func (s *Service) get(ctx context.Context, companyID, id string) (*Cycle, error) {
	c, err := s.cycles.FindOne(ctx, &Cycle{ID: id, CompanyID: companyID})
	if err != nil {
		logger.FromContext(ctx).Error("failed to get detection cycle", zap.String("cycle_id", id), zap.Error(err))
		return nil, errutil.Internal("failed to get detection cycle", err)
	}
	if c == nil {
		return nil, errutil.NotFound("detection cycle not found", nil)
	}
	return c, nil
}

// Get returns the cycle with its steps and progress.
func (s *Service) Get(ctx context.Context, companyID, id string) (*View, error) {
	c, err := s.get(ctx, companyID, id)
	if err != nil {
		return nil, err
	}
	steps, err := s.steps.Find(ctx, &Step{CycleID: c.ID},
		option.WithSortBy(option.QuerySortBy{SortBy: "position", OrderBy: "asc", Allow: map[string]bool{"position": true}}),
	)
	if err != nil {
		logger.FromContext(ctx).Error("failed to load detection steps", zap.String("cycle_id", id), zap.Error(err))
		return nil, errutil.Internal("failed to get detection cycle", err)
	}
	return &View{Cycle: c, Steps: steps, Progress: Progress(c.State, steps)}, nil
}

func (s *Service) List(ctx context.Context, companyID string, state State, page pagination.Pagination) ([]*Cycle, *pagination.PageInfo, error) {
	rows, err := s.cycles.Find(ctx, &Cycle{CompanyID: companyID, State: state},
		option.WithSortBy(option.QuerySortBy{OrderBy: "desc"}),
		option.ApplyPagination(page),
	)
	if err != nil {
		logger.FromContext(ctx).Error("failed to list detection cycles", zap.String("company_id", companyID), zap.Error(err))
		return nil, nil, errutil.Internal("failed to list detection cycles", err)
	}
	out, info := pagination.Trim(rows, page.Limit, func(c *Cycle) pagination.Cursor {
		return pagination.CursorFrom(c.CreatedAt, c.ID)
	})
	return out, info, nil
}

// Cancel marks a running cycle cancelled with a version check, then asks the
// workflow engine to stop. The runner's next write sees the cancelled row if
// the engine request is lost.
func (s *Service) Cancel(ctx context.Context, companyID, id string) (*View, error) {
	zapLog := logger.FromContext(ctx)

	var c *Cycle
	for attempt := 0; attempt < cancelAttempts; attempt++ {
		cur, err := s.get(ctx, companyID, id)
		if err != nil {
			return nil, err
		}
		if cur.State.Terminal() {
			return nil, errutil.Conflict(fmt.Sprintf("cycle is already %s", cur.State), nil)
		}

		res := s.db.WithContext(ctx).Model(&Cycle{}).
			Where("id = ? AND version = ?", id, cur.Version).
			Updates(map[string]any{
				"state":        StateCancelled,
				"completed_at": s.now(),
				"version":      gorm.Expr("version + 1"),
			})
		if res.Error != nil {
			zapLog.Error("failed to cancel detection cycle", zap.String("cycle_id", id), zap.Error(res.Error))
			return nil, errutil.Internal("failed to cancel detection cycle", res.Error)
		}
		if res.RowsAffected == 1 {
			c = cur
			break
		}
		zapLog.Debug("detection cycle moved while cancelling, retrying", zap.String("cycle_id", id), zap.Int("attempt", attempt+1))
	}
	if c == nil {
		return nil, errutil.Conflict("detection cycle changed concurrently", nil)
	}

	if c.WorkflowID != "" {
		if err := s.starter.Cancel(ctx, c.WorkflowID); err != nil {
			zapLog.Warn("failed to cancel detection workflow", zap.String("workflow_id", c.WorkflowID), zap.Error(err))
		}
	}

	zapLog.Info("detection cycle cancelled", zap.String("cycle_id", id), zap.String("from_state", string(c.State)))
	return s.Get(ctx, companyID, id)
}
