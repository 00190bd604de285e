package wellness

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"strings"
	"time"

	"rewards-controlplane/pkg/ai"
	"rewards-controlplane/pkg/db/option"
	"rewards-controlplane/pkg/errutil"
	"rewards-controlplane/pkg/featureflags"
	"rewards-controlplane/pkg/logger"
	"rewards-controlplane/pkg/repository"
	"rewards-controlplane/services/account"
	"rewards-controlplane/services/milestone"
	"rewards-controlplane/services/wallet"

	"github.com/bwmarrin/snowflake"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// historyWindow caps how many past wellness scores feed the analysis.
const historyWindow = 10

type Profiles interface {
	GetProfile(ctx context.Context, userID string) (*account.Profile, error)
	GetPreferences(ctx context.Context, employeeID string) (*account.EmployeePreference, error)
}

type Milestones interface {
	ForEmployee(ctx context.Context, employeeID string) ([]*milestone.Milestone, error)
	CreatePredicted(ctx context.Context, tx *gorm.DB, companyID, employeeID string, t milestone.Type, predicted time.Time, confidence float64, description string) (*milestone.Milestone, error)
}

type Ledger interface {
	History(ctx context.Context, employeeID string) ([]*wallet.Transaction, error)
}

type Service struct {
	db         *gorm.DB
	node       *snowflake.Node
	chat       ai.ChatCompleter
	flags      featureflags.FeatureFlag
	profiles   Profiles
	milestones Milestones
	ledger     Ledger
	now        func() time.Time

	scores      repository.Repository[Score]
	predictions repository.Repository[Prediction]
}

type ServiceParams struct {
	fx.In
	DB         *gorm.DB
	Node       *snowflake.Node
	Chat       ai.ChatCompleter
	Flags      featureflags.FeatureFlag
	Profiles   *account.Service
	Milestones *milestone.Service
	Wallet     *wallet.Service
}

func NewService(p ServiceParams) *Service {
	return New(p.DB, p.Node, p.Chat, p.Flags, p.Profiles, p.Milestones, p.Wallet)
}

func New(db *gorm.DB, node *snowflake.Node, chat ai.ChatCompleter, flags featureflags.FeatureFlag, profiles Profiles, milestones Milestones, ledger Ledger) *Service {
	if flags == nil {
		flags = featureflags.Static(nil)
	}
	return &Service{
		db:          db,
		node:        node,
		chat:        chat,
		flags:       flags,
		profiles:    profiles,
		milestones:  milestones,
		ledger:      ledger,
		now:         time.Now,
		scores:      repository.ProvideStore[Score](db),
		predictions: repository.ProvideStore[Prediction](db),
	}
}

func (s *Service) History(ctx context.Context, employeeID string, limit int) ([]*Score, error) {
	opts := []option.QueryOption{
		option.WithSortBy(option.QuerySortBy{SortBy: "recorded_at", OrderBy: "desc", Allow: map[string]bool{"recorded_at": true}}),
	}
	if limit > 0 {
		opts = append(opts, func(db *gorm.DB) *gorm.DB { return db.Limit(limit) })
	}
	rows, err := s.scores.Find(ctx, &Score{EmployeeID: employeeID}, opts...)
	if err != nil {
		logger.FromContext(ctx).Error("failed to load wellness history", zap.String("employee_id", employeeID), zap.Error(err))
		return nil, errutil.Internal("failed to load wellness history", err)
	}
	return rows, nil
}

func (s *Service) Predictions(ctx context.Context, employeeID string) ([]*Prediction, error) {
	rows, err := s.predictions.Find(ctx, &Prediction{EmployeeID: employeeID},
		option.WithSortBy(option.QuerySortBy{OrderBy: "desc"}),
	)
	if err != nil {
		logger.FromContext(ctx).Error("failed to list burnout predictions", zap.String("employee_id", employeeID), zap.Error(err))
		return nil, errutil.Internal("failed to list predictions", err)
	}
	return rows, nil
}

// EnsureEmployee fails with 404 unless employeeID belongs to companyID.
func (s *Service) EnsureEmployee(ctx context.Context, companyID, employeeID string) error {
	profile, err := s.profiles.GetProfile(ctx, employeeID)
	if err != nil {
		return err
	}
	if profile.CompanyID != companyID {
		return errutil.NotFound("employee not found", nil)
	}
	return nil
}

// RecordScore stores a manually captured wellness score.
func (s *Service) RecordScore(ctx context.Context, companyID, employeeID string, req ScoreRequest) (*Score, error) {
	if err := s.EnsureEmployee(ctx, companyID, employeeID); err != nil {
		return nil, err
	}
	recorded := s.now().UTC()
	if req.RecordedAt != nil {
		recorded = req.RecordedAt.UTC()
	}
	sources := req.DataSources
	if len(sources) == 0 {
		sources = []string{"manual"}
	}

	score := &Score{
		ID:              s.node.Generate().String(),
		EmployeeID:      employeeID,
		CompanyID:       companyID,
		OverallScore:    req.OverallScore,
		WorkLifeBalance: req.WorkLifeBalance,
		Engagement:      req.Engagement,
		Stress:          req.Stress,
		Energy:          req.Energy,
		DataSources:     datatypes.NewJSONSlice(sources),
		RecordedAt:      recorded,
	}
	if err := s.scores.Create(ctx, score); err != nil {
		logger.FromContext(ctx).Error("failed to record wellness score", zap.Error(err))
		return nil, errutil.Internal("failed to record wellness score", err)
	}
	return score, nil
}

func (s *Service) signals(ctx context.Context, profile *account.Profile) (Signals, []*Score, error) {
	now := s.now()
	sig := Signals{
		EmployeeName:        profile.Name,
		Department:          profile.Department,
		DaysSinceLastReward: DefaultDaysSinceReward,
		RecentWellnessScore: DefaultWellnessScore,
	}
	if profile.HireDate != nil {
		sig.TenureDays = int(now.Sub(*profile.HireDate).Hours() / 24)
	}

	prefs, err := s.profiles.GetPreferences(ctx, profile.ID)
	if err != nil {
		return sig, nil, err
	}
	if prefs != nil {
		sig.PreferredCategories = prefs.PreferredCategories
	}

	history, err := s.History(ctx, profile.ID, historyWindow)
	if err != nil {
		return sig, nil, err
	}
	if len(history) > 0 {
		sig.RecentWellnessScore = history[0].OverallScore
		for _, h := range history {
			sig.WellnessTrend = append(sig.WellnessTrend, h.OverallScore)
		}
	}

	milestones, err := s.milestones.ForEmployee(ctx, profile.ID)
	if err != nil {
		return sig, nil, err
	}
	for _, m := range milestones {
		switch m.Status {
		case milestone.StatusExpired:
			sig.ExpiredMilestones++
		case milestone.StatusPending, milestone.StatusActive:
			sig.OpenMilestones++
		}
	}

	txns, err := s.ledger.History(ctx, profile.ID)
	if err != nil {
		return sig, nil, err
	}
	rewarded := false
	for i := len(txns) - 1; i >= 0; i-- {
		t := txns[i]
		if now.Sub(t.CreatedAt) <= 90*24*time.Hour {
			sig.RecentTransactionCnt++
		}
		if t.Amount > 0 && !rewarded {
			sig.DaysSinceLastReward = int(now.Sub(t.CreatedAt).Hours() / 24)
			rewarded = true
		}
	}
	return sig, history, nil
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}

func parseAnswer(raw string) (*answer, error) {
	var out answer
	if err := json.Unmarshal([]byte(ai.ExtractJSON(raw)), &out); err != nil {
		return nil, fmt.Errorf("decode model answer: %w", err)
	}
	out.RiskLevel = strings.ToLower(strings.TrimSpace(out.RiskLevel))
	if !RiskLevel(out.RiskLevel).Valid() {
		return nil, fmt.Errorf("invalid risk level %q", out.RiskLevel)
	}
	out.RiskScore = math.Round(clamp(out.RiskScore, 0, 100))
	out.Confidence = clamp(out.Confidence, 0, 1)
	if out.PredictedDays <= 0 {
		out.PredictedDays = DefaultPredictedDays
	}
	if out.Factors == nil {
		out.Factors = []string{}
	}
	if out.SuggestedRewardTypes == nil {
		out.SuggestedRewardTypes = []string{}
	}
	return &out, nil
}

// AnalyzeBurnoutRisk scores one employee with the chat model and stores a
// prediction plus a derived wellness score in one transaction. High and
// critical risk open a burnout_risk milestone on the predicted date.
func (s *Service) AnalyzeBurnoutRisk(ctx context.Context, employeeID, companyScope string) (*Analysis, error) {
	zapLog := logger.FromContext(ctx).With(zap.String("employee_id", employeeID))

	if strings.TrimSpace(employeeID) == "" {
		return nil, errutil.BadRequest("employeeId is required", nil)
	}

	profile, err := s.profiles.GetProfile(ctx, employeeID)
	if err != nil {
		if errutil.Is(err, errutil.StatusNotFound) {
			return nil, errutil.NotFound("Employee not found", err)
		}
		return nil, err
	}
	if companyScope != "" && profile.CompanyID != companyScope {
		return nil, errutil.NotFound("Employee not found", nil)
	}

	sig, history, err := s.signals(ctx, profile)
	if err != nil {
		zapLog.Error("failed to gather burnout signals", zap.Error(err))
		return nil, err
	}

	prompt, err := userPrompt(sig)
	if err != nil {
		return nil, errutil.Internal("failed to build prompt", err)
	}
	raw, err := s.chat.Complete(ctx, systemPrompt, prompt)
	if err != nil {
		zapLog.Error("burnout analysis model call failed", zap.Error(err))
		return nil, errutil.Internal("AI analysis failed", err)
	}
	ans, err := parseAnswer(raw)
	if err != nil {
		zapLog.Error("burnout analysis answer malformed", zap.Error(err))
		return nil, errutil.Internal("Failed to parse AI response", err)
	}

	now := s.now().UTC()
	predicted := now.AddDate(0, 0, ans.PredictedDays)
	level := RiskLevel(ans.RiskLevel)
	risk := int(ans.RiskScore)

	prediction := &Prediction{
		ID:                         s.node.Generate().String(),
		EmployeeID:                 profile.ID,
		CompanyID:                  profile.CompanyID,
		RiskLevel:                  level,
		RiskScore:                  risk,
		PredictedDate:              &predicted,
		Confidence:                 ans.Confidence,
		ContributingFactors:        datatypes.NewJSONSlice(ans.Factors),
		Reasoning:                  ans.Reasoning,
		RecommendedIntervention:    ans.Intervention,
		SuggestedRewardTypes:       datatypes.NewJSONSlice(ans.SuggestedRewardTypes),
		RequiresNotification:       level.Escalates(),
		PreventiveRewardsSuggested: len(ans.SuggestedRewardTypes) > 0,
	}

	score := &Score{
		ID:              s.node.Generate().String(),
		EmployeeID:      profile.ID,
		CompanyID:       profile.CompanyID,
		OverallScore:    100 - risk,
		WorkLifeBalance: DefaultWellnessScore,
		Engagement:      DefaultWellnessScore,
		Stress:          risk,
		Energy:          DefaultWellnessScore,
		DataSources:     datatypes.NewJSONSlice([]string{"burnout_analysis"}),
		RecordedAt:      now,
	}
	if len(history) > 0 {
		score.WorkLifeBalance = history[0].WorkLifeBalance
		score.Engagement = history[0].Engagement
		score.Energy = history[0].Energy
	}

	openMilestone := level.Escalates() &&
		s.flags.Enabled(ctx, profile.CompanyID, featureflags.BurnoutAutoMilestones, true)

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if openMilestone {
			m, err := s.milestones.CreatePredicted(ctx, tx, profile.CompanyID, profile.ID, milestone.TypeBurnoutRisk,
				predicted, ans.Confidence, fmt.Sprintf("%s burnout risk: %s", level, ans.Intervention))
			if err != nil {
				return err
			}
			prediction.MilestoneID = &m.ID
		}
		if err := s.predictions.WithTrx(tx).Create(ctx, prediction); err != nil {
			return err
		}
		return s.scores.WithTrx(tx).Create(ctx, score)
	})
	if err != nil {
		zapLog.Error("failed to store burnout prediction", zap.Error(err))
		return nil, errutil.Internal("failed to store prediction", err)
	}

	zapLog.Info("burnout risk analysed",
		zap.String("risk_level", string(level)),
		zap.Int("risk_score", risk),
		zap.Int("days_since_last_reward", sig.DaysSinceLastReward),
		zap.Int("recent_wellness_score", sig.RecentWellnessScore),
		zap.Bool("requires_notification", prediction.RequiresNotification),
	)

	return &Analysis{
		Success:              true,
		Prediction:           prediction,
		SuggestedRewardTypes: ans.SuggestedRewardTypes,
	}, nil
}
