package wellness

import (
	"context"
	"errors"
	"testing"
	"time"

	"rewards-controlplane/pkg/ai"
	"rewards-controlplane/pkg/errutil"
	"rewards-controlplane/pkg/featureflags"
	"rewards-controlplane/services/account"
	"rewards-controlplane/services/milestone"
	"rewards-controlplane/services/testutil"
	"rewards-controlplane/services/wallet"

	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func init() {
	zap.ReplaceGlobals(zap.NewNop())
}

type fakeProfiles struct {
	profiles map[string]*account.Profile
	prefs    map[string]*account.EmployeePreference
}

func (f *fakeProfiles) GetProfile(_ context.Context, id string) (*account.Profile, error) {
	p, ok := f.profiles[id]
	if !ok {
		return nil, errutil.NotFound("profile not found", nil)
	}
	return p, nil
}

func (f *fakeProfiles) GetPreferences(_ context.Context, id string) (*account.EmployeePreference, error) {
	return f.prefs[id], nil
}

func (f *fakeProfiles) GetEmployee(ctx context.Context, companyID, id string) (*account.Profile, error) {
	p, err := f.GetProfile(ctx, id)
	if err != nil || p.CompanyID != companyID {
		return nil, errutil.NotFound("employee not found", nil)
	}
	return p, nil
}

func (f *fakeProfiles) CompanyEmployees(context.Context, string) ([]*account.Profile, error) {
	return nil, nil
}

type fixture struct {
	svc        *Service
	db         *gorm.DB
	chat       *ai.MockChatCompleter
	milestones *milestone.Service
	wallet     *wallet.Service
}

func setup(t *testing.T, flags featureflags.FeatureFlag) *fixture {
	db := testutil.NewTestDB(t, &Score{}, &Prediction{}, &milestone.Milestone{}, &wallet.Account{}, &wallet.Transaction{})
	node := testutil.Node(t)
	ctrl := gomock.NewController(t)
	chat := ai.NewMockChatCompleter(ctrl)

	profiles := &fakeProfiles{
		profiles: map[string]*account.Profile{
			"E1": {ID: "E1", Name: "Edda", CompanyID: "c1"},
		},
		prefs: map[string]*account.EmployeePreference{},
	}
	ledger := wallet.NewService(wallet.ServiceParams{DB: db, Node: node, Seq: &testutil.FakeSequence{}})
	milestones := milestone.New(db, node, profiles, ledger, nil)

	return &fixture{
		svc:        New(db, node, chat, flags, profiles, milestones, ledger),
		db:         db,
		chat:       chat,
		milestones: milestones,
		wallet:     ledger,
	}
}

const mediumAnswer = "```json\n" + `{"risk_level":"Medium","risk_score":42,"predicted_days":60,"confidence":0.7,
"factors":["no recent rewards"],"reasoning":"long gap since last reward","intervention":"plan a short break",
"suggested_reward_types":["wellness","travel"]}` + "\n```"

func TestAnalyzeWithoutHistory(t *testing.T) {
	f := setup(t, nil)
	ctx := context.Background()

	f.chat.EXPECT().Complete(gomock.Any(), systemPrompt, gomock.Any()).
		DoAndReturn(func(_ context.Context, _, user string) (string, error) {
			require.Contains(t, user, `"days_since_last_reward": 365`)
			require.Contains(t, user, `"recent_wellness_score": 50`)
			require.Contains(t, user, `"expired_milestones": 0`)
			return mediumAnswer, nil
		})

	out, err := f.svc.AnalyzeBurnoutRisk(ctx, "E1", "")
	require.NoError(t, err)
	require.True(t, out.Success)
	require.Equal(t, RiskMedium, out.Prediction.RiskLevel)
	require.Equal(t, 42, out.Prediction.RiskScore)
	require.False(t, out.Prediction.RequiresNotification)
	require.True(t, out.Prediction.PreventiveRewardsSuggested)
	require.Equal(t, []string{"wellness", "travel"}, out.SuggestedRewardTypes)

	var predictions, scores int64
	require.NoError(t, f.db.Model(&Prediction{}).Where("employee_id = ?", "E1").Count(&predictions).Error)
	require.NoError(t, f.db.Model(&Score{}).Where("employee_id = ?", "E1").Count(&scores).Error)
	require.Equal(t, int64(1), predictions)
	require.Equal(t, int64(1), scores)

	history, err := f.svc.History(ctx, "E1", 0)
	require.NoError(t, err)
	require.Equal(t, 58, history[0].OverallScore)
	require.Equal(t, 42, history[0].Stress)
	require.Equal(t, DefaultWellnessScore, history[0].Energy)
}

func TestAnalyzeUsesSignals(t *testing.T) {
	f := setup(t, nil)
	ctx := context.Background()

	_, err := f.svc.RecordScore(ctx, "c1", "E1", ScoreRequest{OverallScore: 33, Energy: 20, WorkLifeBalance: 40, Engagement: 60})
	require.NoError(t, err)
	_, err = f.wallet.Post(ctx, nil, wallet.Entry{CompanyID: "c1", EmployeeID: "E1", Type: wallet.MilestoneBonus, Amount: 50})
	require.NoError(t, err)

	f.chat.EXPECT().Complete(gomock.Any(), gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, _, user string) (string, error) {
			require.Contains(t, user, `"days_since_last_reward": 0`)
			require.Contains(t, user, `"recent_wellness_score": 33`)
			return `{"risk_level":"low","risk_score":10,"confidence":0.9}`, nil
		})

	out, err := f.svc.AnalyzeBurnoutRisk(ctx, "E1", "c1")
	require.NoError(t, err)
	require.Equal(t, RiskLow, out.Prediction.RiskLevel)
	require.NotNil(t, out.SuggestedRewardTypes)

	history, err := f.svc.History(ctx, "E1", 1)
	require.NoError(t, err)
	require.Len(t, history, 1)
	require.Equal(t, 20, history[0].Energy)
	require.Equal(t, 90, history[0].OverallScore)
}

func TestAnalyzeHighRiskOpensMilestone(t *testing.T) {
	f := setup(t, nil)
	ctx := context.Background()

	f.chat.EXPECT().Complete(gomock.Any(), gomock.Any(), gomock.Any()).
		Return(`{"risk_level":"critical","risk_score":140,"predicted_days":14,"confidence":1.8,"intervention":"reduce load"}`, nil)

	out, err := f.svc.AnalyzeBurnoutRisk(ctx, "E1", "")
	require.NoError(t, err)
	require.Equal(t, 100, out.Prediction.RiskScore)
	require.Equal(t, 1.0, out.Prediction.Confidence)
	require.True(t, out.Prediction.RequiresNotification)
	require.NotNil(t, out.Prediction.MilestoneID)

	all, err := f.milestones.ForEmployee(ctx, "E1")
	require.NoError(t, err)
	require.Len(t, all, 1)
	require.Equal(t, milestone.TypeBurnoutRisk, all[0].Type)
	require.Equal(t, milestone.SourceAI, all[0].Source)
	require.WithinDuration(t, time.Now().AddDate(0, 0, 14), *all[0].PredictedDate, time.Minute)
}

func TestAnalyzeHighRiskFlagOff(t *testing.T) {
	f := setup(t, featureflags.Static(map[string]bool{featureflags.BurnoutAutoMilestones: false}))

	f.chat.EXPECT().Complete(gomock.Any(), gomock.Any(), gomock.Any()).
		Return(`{"risk_level":"high","risk_score":75}`, nil)

	out, err := f.svc.AnalyzeBurnoutRisk(context.Background(), "E1", "")
	require.NoError(t, err)
	require.True(t, out.Prediction.RequiresNotification)
	require.Nil(t, out.Prediction.MilestoneID)
}

func TestAnalyzeErrors(t *testing.T) {
	f := setup(t, nil)
	ctx := context.Background()

	_, err := f.svc.AnalyzeBurnoutRisk(ctx, "", "")
	require.True(t, errutil.Is(err, errutil.StatusBadRequest))

	_, err = f.svc.AnalyzeBurnoutRisk(ctx, "ghost", "")
	require.True(t, errutil.Is(err, errutil.StatusNotFound))

	_, err = f.svc.AnalyzeBurnoutRisk(ctx, "E1", "other-company")
	require.True(t, errutil.Is(err, errutil.StatusNotFound))

	f.chat.EXPECT().Complete(gomock.Any(), gomock.Any(), gomock.Any()).Return("I think they are fine", nil)
	_, err = f.svc.AnalyzeBurnoutRisk(ctx, "E1", "")
	require.True(t, errutil.Is(err, errutil.StatusInternal))

	f.chat.EXPECT().Complete(gomock.Any(), gomock.Any(), gomock.Any()).Return(`{"risk_level":"extreme","risk_score":50}`, nil)
	_, err = f.svc.AnalyzeBurnoutRisk(ctx, "E1", "")
	require.True(t, errutil.Is(err, errutil.StatusInternal))

	f.chat.EXPECT().Complete(gomock.Any(), gomock.Any(), gomock.Any()).Return("", errors.New("timeout"))
	_, err = f.svc.AnalyzeBurnoutRisk(ctx, "E1", "")
	require.True(t, errutil.Is(err, errutil.StatusInternal))

	var n int64
	require.NoError(t, f.db.Model(&Prediction{}).Count(&n).Error)
	require.Zero(t, n)
}

func TestParseAnswer(t *testing.T) {
	ans, err := parseAnswer(`Sure! {"risk_level":" HIGH ","risk_score":-5,"predicted_days":0}`)
	require.NoError(t, err)
	require.Equal(t, "high", ans.RiskLevel)
	require.Zero(t, ans.RiskScore)
	require.Equal(t, DefaultPredictedDays, ans.PredictedDays)
	require.Empty(t, ans.Factors)
}

type fakeLedger []*wallet.Transaction

func (f fakeLedger) History(context.Context, string) ([]*wallet.Transaction, error) {
	return f, nil
}

func TestSignalsUsesNewestCredit(t *testing.T) {
	f := setup(t, nil)
	now := time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC)
	day := 24 * time.Hour

	ledger := fakeLedger{
		{Amount: 200, CreatedAt: now.Add(-500 * day)},
		{Amount: 100, CreatedAt: now.Add(-DefaultDaysSinceReward * day)},
		{Amount: -50, CreatedAt: now.Add(-10 * day)},
	}
	svc := New(f.db, testutil.Node(t), f.chat, nil, &fakeProfiles{prefs: map[string]*account.EmployeePreference{}}, f.milestones, ledger)
	svc.now = func() time.Time { return now }

	sig, _, err := svc.signals(context.Background(), &account.Profile{ID: "E1", Name: "Edda", CompanyID: "c1"})
	require.NoError(t, err)
	require.Equal(t, DefaultDaysSinceReward, sig.DaysSinceLastReward)
	require.Equal(t, 1, sig.RecentTransactionCnt)
}
