package detection

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"rewards-controlplane/pkg/config"
	"rewards-controlplane/pkg/errutil"
	"rewards-controlplane/pkg/featureflags"
	"rewards-controlplane/pkg/logger"
	"rewards-controlplane/services/account"
	"rewards-controlplane/services/company"
	"rewards-controlplane/services/imagegen"
	"rewards-controlplane/services/milestone"

	"go.temporal.io/sdk/temporal"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// CancelledErrorType marks activity errors raised because the cycle row was
// cancelled underneath the workflow.
const CancelledErrorType = "CycleCancelled"

// policyProbeCost is the package cost each category is checked against
// during policy alignment.
const policyProbeCost = 250

type Employees interface {
	CompanyEmployees(ctx context.Context, companyID string) ([]*account.Profile, error)
	GetPreferences(ctx context.Context, employeeID string) (*account.EmployeePreference, error)
}

type Milestones interface {
	ForEmployee(ctx context.Context, employeeID string) ([]*milestone.Milestone, error)
}

type Companies interface {
	Get(ctx context.Context, id string) (*company.Company, error)
}

type Images interface {
	Generate(ctx context.Context, prompts []string) ([]*string, error)
}

type StepInput struct {
	CycleID  string `json:"cycle_id"`
	Step     State  `json:"step"`
	Position int    `json:"position"`
}

type FailInput struct {
	CycleID string `json:"cycle_id"`
	Step    State  `json:"step"`
	Message string `json:"message"`
}

// Activities are the side effects of a detection cycle. Every write is a
// compare-and-swap on the cycle state so a cancelled cycle is never
// overwritten.
type Activities struct {
	db         *gorm.DB
	employees  Employees
	milestones Milestones
	companies  Companies
	images     Images
	flags      featureflags.FeatureFlag
	withImages bool
	now        func() time.Time
}

type ActivitiesParams struct {
	fx.In
	DB         *gorm.DB
	Config     *config.Config
	Flags      featureflags.FeatureFlag
	Employees  *account.Service
	Milestones *milestone.Service
	Companies  *company.Service
	Images     *imagegen.Service
}

func NewActivities(p ActivitiesParams) *Activities {
	return NewActivitiesWith(p.DB, p.Employees, p.Milestones, p.Companies, p.Images, p.Flags, p.Config.Detection.Images)
}

func NewActivitiesWith(db *gorm.DB, employees Employees, milestones Milestones, companies Companies, images Images, flags featureflags.FeatureFlag, withImages bool) *Activities {
	if flags == nil {
		flags = featureflags.Static(nil)
	}
	return &Activities{
		db:         db,
		employees:  employees,
		milestones: milestones,
		companies:  companies,
		images:     images,
		flags:      flags,
		withImages: withImages,
		now:        func() time.Time { return time.Now().UTC() },
	}
}

func cancelled(id string) error {
	return temporal.NewNonRetryableApplicationError(fmt.Sprintf("cycle %s was cancelled", id), CancelledErrorType, nil)
}

// permanent stops activity retries for domain errors a retry cannot fix.
func permanent(err error) error {
	if err == nil {
		return nil
	}
	switch errutil.StatusOf(err) {
	case errutil.StatusInternal, errutil.StatusServiceUnavailable, errutil.StatusBadGateway, errutil.StatusTimeout:
		return err
	}
	return temporal.NewNonRetryableApplicationError(err.Error(), string(errutil.StatusOf(err)), err)
}

// advance moves the cycle from one state to another and bumps its version.
// from == to only bumps the version, which still fails once the cycle left
// that state.
func (a *Activities) advance(tx *gorm.DB, id string, from, to State, extra map[string]any) error {
	updates := map[string]any{
		"state":   to,
		"version": gorm.Expr("version + 1"),
	}
	for k, v := range extra {
		updates[k] = v
	}

	res := tx.Model(&Cycle{}).Where("id = ? AND state IN ?", id, []State{from, to}).Updates(updates)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected > 0 {
		return nil
	}

	var c Cycle
	if err := tx.Where("id = ?", id).Take(&c).Error; err != nil {
		return err
	}
	if c.State == StateCancelled {
		return cancelled(id)
	}
	return temporal.NewNonRetryableApplicationError(
		fmt.Sprintf("cycle is %s, expected %s", c.State, from), string(errutil.StatusConflict), nil)
}

func (a *Activities) BeginStep(ctx context.Context, in StepInput) error {
	from := StateContextAnalysis
	if in.Position > 0 {
		from = Steps[in.Position-1]
	}
	now := a.now()

	return a.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := a.advance(tx, in.CycleID, from, in.Step, nil); err != nil {
			return err
		}
		return tx.Model(&Step{}).
			Where("cycle_id = ? AND position = ? AND status = ?", in.CycleID, in.Position, StepPending).
			Updates(map[string]any{"status": StepInProgress, "started_at": now}).Error
	})
}

func (a *Activities) RunStep(ctx context.Context, in StepInput) error {
	var c Cycle
	if err := a.db.WithContext(ctx).Where("id = ?", in.CycleID).Take(&c).Error; err != nil {
		return err
	}
	if c.State == StateCancelled {
		return cancelled(in.CycleID)
	}

	var (
		out any
		err error
	)
	switch in.Step {
	case StateContextAnalysis:
		out, err = a.contextAnalysis(ctx, c.CompanyID)
	case StatePreferenceMatch:
		out, err = a.preferenceMatch(ctx, c.ID)
	case StatePolicyAlignment:
		out, err = a.policyAlignment(ctx, c.CompanyID)
	case StateBudgetFitCheck:
		out, err = a.budgetFit(ctx, c.CompanyID)
	case StateGeneratingRewards:
		out, err = a.generate(ctx, &c)
	default:
		return temporal.NewNonRetryableApplicationError(fmt.Sprintf("unknown step %s", in.Step), "unknown_step", nil)
	}
	if err != nil {
		return permanent(err)
	}

	b, err := json.Marshal(out)
	if err != nil {
		return err
	}
	return a.db.WithContext(ctx).Model(&Step{}).
		Where("cycle_id = ? AND position = ? AND status = ?", in.CycleID, in.Position, StepInProgress).
		Update("output", b).Error
}

func (a *Activities) EndStep(ctx context.Context, in StepInput) error {
	now := a.now()
	return a.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := a.advance(tx, in.CycleID, in.Step, in.Step, nil); err != nil {
			return err
		}
		return tx.Model(&Step{}).
			Where("cycle_id = ? AND position = ? AND status = ?", in.CycleID, in.Position, StepInProgress).
			Updates(map[string]any{"status": StepCompleted, "ended_at": now}).Error
	})
}

// Complete copies the generator output onto the cycle and closes it.
func (a *Activities) Complete(ctx context.Context, cycleID string) error {
	var last Step
	if err := a.db.WithContext(ctx).
		Where("cycle_id = ? AND name = ?", cycleID, StateGeneratingRewards).
		Take(&last).Error; err != nil {
		return err
	}

	now := a.now()
	return a.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return a.advance(tx, cycleID, StateGeneratingRewards, StateCompleted, map[string]any{
			"result":       last.Output,
			"completed_at": now,
		})
	})
}

// Fail records a workflow error on the cycle and on the step that raised it.
// A cycle that already reached a terminal state is left untouched.
func (a *Activities) Fail(ctx context.Context, in FailInput) error {
	now := a.now()
	return a.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&Cycle{}).
			Where("id = ? AND state NOT IN ?", in.CycleID, []State{StateCompleted, StateFailed, StateCancelled}).
			Updates(map[string]any{
				"state":         StateFailed,
				"error_message": in.Message,
				"completed_at":  now,
				"version":       gorm.Expr("version + 1"),
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return nil
		}
		return tx.Model(&Step{}).
			Where("cycle_id = ? AND name = ? AND status IN ?", in.CycleID, in.Step, []StepStatus{StepPending, StepInProgress}).
			Updates(map[string]any{"status": StepFailed, "ended_at": now}).Error
	})
}

func (a *Activities) output(ctx context.Context, cycleID string, step State, dst any) error {
	var s Step
	if err := a.db.WithContext(ctx).Where("cycle_id = ? AND name = ?", cycleID, step).Take(&s).Error; err != nil {
		return err
	}
	if len(s.Output) == 0 {
		return fmt.Errorf("step %s has no output", step)
	}
	return json.Unmarshal(s.Output, dst)
}

func (a *Activities) contextAnalysis(ctx context.Context, companyID string) (*ContextOutput, error) {
	employees, err := a.employees.CompanyEmployees(ctx, companyID)
	if err != nil {
		return nil, err
	}

	out := &ContextOutput{Employees: make([]Candidate, 0, len(employees))}
	for _, e := range employees {
		ms, err := a.milestones.ForEmployee(ctx, e.ID)
		if err != nil {
			return nil, err
		}
		c := Candidate{EmployeeID: e.ID, Name: e.Name, Department: e.Department}
		for _, m := range ms {
			if m.Status == milestone.StatusPending || m.Status == milestone.StatusActive {
				c.Signals = append(c.Signals, fmt.Sprintf("%s milestone", m.Type))
				out.Milestones++
			}
		}
		out.Employees = append(out.Employees, c)
	}
	return out, nil
}

func (a *Activities) preferenceMatch(ctx context.Context, cycleID string) (*PreferenceOutput, error) {
	var prior ContextOutput
	if err := a.output(ctx, cycleID, StateContextAnalysis, &prior); err != nil {
		return nil, err
	}

	out := &PreferenceOutput{Matches: map[string][]string{}}
	for _, c := range prior.Employees {
		pref, err := a.employees.GetPreferences(ctx, c.EmployeeID)
		if err != nil {
			return nil, err
		}
		if pref == nil || len(pref.PreferredCategories) == 0 {
			out.Missing++
			continue
		}
		out.Matches[c.EmployeeID] = pref.PreferredCategories
	}
	return out, nil
}

func (a *Activities) policyAlignment(ctx context.Context, companyID string) (*PolicyOutput, error) {
	c, err := a.companies.Get(ctx, companyID)
	if err != nil {
		return nil, err
	}

	out := &PolicyOutput{Allowed: []string{}, Rejected: []string{}}
	for _, category := range categories {
		ok, err := c.Allows(policyProbeCost, category)
		if err != nil {
			return nil, errutil.UnprocessableEntity("failed to evaluate reward policy", err)
		}
		if ok {
			out.Allowed = append(out.Allowed, category)
		} else {
			out.Rejected = append(out.Rejected, category)
		}
	}
	return out, nil
}

func (a *Activities) budgetFit(ctx context.Context, companyID string) (*BudgetOutput, error) {
	c, err := a.companies.Get(ctx, companyID)
	if err != nil {
		return nil, err
	}
	out := &BudgetOutput{MonthlyBudget: c.MonthlyBudget, Pool: c.WalletBalance, Available: c.WalletBalance}
	if c.MonthlyBudget > 0 && c.MonthlyBudget < out.Available {
		out.Available = c.MonthlyBudget
	}
	return out, nil
}

func (a *Activities) generate(ctx context.Context, c *Cycle) (*Result, error) {
	var in GenerateInput
	if err := a.output(ctx, c.ID, StateContextAnalysis, &in.Context); err != nil {
		return nil, err
	}
	if err := a.output(ctx, c.ID, StatePreferenceMatch, &in.Preferences); err != nil {
		return nil, err
	}
	if err := a.output(ctx, c.ID, StatePolicyAlignment, &in.Policy); err != nil {
		return nil, err
	}
	if err := a.output(ctx, c.ID, StateBudgetFitCheck, &in.Budget); err != nil {
		return nil, err
	}

	res := NewMockGenerator(SeedFor(c.ID)).Generate(in)

	if a.withImages && a.images != nil && a.flags.Enabled(ctx, c.CompanyID, featureflags.RecommendationImages, true) {
		images, err := a.images.Generate(ctx, ImagePrompts[:])
		if err != nil {
			logger.FromContext(ctx).Warn("recommendation images unavailable, using fallbacks",
				zap.String("cycle_id", c.ID), zap.Error(err))
			images = nil
		}
		Illustrate(&res, images)
	}
	return &res, nil
}
