package reward

import (
	"context"
	"testing"

	"rewards-controlplane/pkg/db/pagination"
	"rewards-controlplane/pkg/errutil"
	"rewards-controlplane/services/account"
	"rewards-controlplane/services/company"
	"rewards-controlplane/services/testutil"
	"rewards-controlplane/services/wallet"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func init() {
	zap.ReplaceGlobals(zap.NewNop())
}

type fakeEmployees map[string]*account.Profile

func (f fakeEmployees) GetEmployee(_ context.Context, companyID, employeeID string) (*account.Profile, error) {
	p, ok := f[employeeID]
	if !ok || p.CompanyID != companyID {
		return nil, errutil.NotFound("employee not found", nil)
	}
	return p, nil
}

type fixture struct {
	svc       *Service
	wallet    *wallet.Service
	companies *company.Service
	company   *company.Company
}

func setup(t *testing.T, pool int64, settings company.Settings) *fixture {
	db := testutil.NewTestDB(t, &Package{}, &Approval{}, &Feedback{}, &company.Company{}, &wallet.Account{}, &wallet.Transaction{})
	node := testutil.Node(t)
	seq := &testutil.FakeSequence{}

	companies := company.NewService(company.ServiceParams{DB: db, Node: node, Seq: seq})
	ledger := wallet.NewService(wallet.ServiceParams{DB: db, Node: node, Seq: seq})

	c, err := companies.Create(context.Background(), company.CreateRequest{
		Name:          "Acme",
		WalletBalance: pool,
		MonthlyBudget: 2000,
		Settings:      settings,
	})
	require.NoError(t, err)

	employees := fakeEmployees{"e1": {ID: "e1", CompanyID: c.ID}}
	return &fixture{
		svc:       New(db, node, seq, employees, companies, ledger),
		wallet:    ledger,
		companies: companies,
		company:   c,
	}
}

func (f *fixture) submitted(t *testing.T, cost int64) (*Package, *Approval) {
	t.Helper()
	ctx := context.Background()
	p, err := f.svc.Create(ctx, f.company.ID, CreateRequest{EmployeeID: "e1", Title: "Lisbon weekend", Category: CategoryTravel, Cost: cost})
	require.NoError(t, err)
	a, err := f.svc.Submit(ctx, f.company.ID, p.ID)
	require.NoError(t, err)
	return p, a
}

func TestCreateChecksPolicy(t *testing.T) {
	f := setup(t, 1000, company.Settings{
		RewardPolicy:      "cost <= monthly_budget",
		AllowedCategories: []string{"travel", "wellness"},
	})
	ctx := context.Background()

	p, err := f.svc.Create(ctx, f.company.ID, CreateRequest{EmployeeID: "e1", Title: "Spa", Category: CategoryWellness, Cost: 400})
	require.NoError(t, err)
	require.Equal(t, PackageDraft, p.Status)
	require.NotEmpty(t, p.Code)

	_, err = f.svc.Create(ctx, f.company.ID, CreateRequest{EmployeeID: "e1", Title: "Trip", Category: CategoryTravel, Cost: 5000})
	require.True(t, errutil.Is(err, errutil.StatusUnprocessableEntity))

	_, err = f.svc.Create(ctx, f.company.ID, CreateRequest{EmployeeID: "e1", Title: "Course", Category: CategoryLearning, Cost: 100})
	require.True(t, errutil.Is(err, errutil.StatusUnprocessableEntity))

	_, err = f.svc.Create(ctx, f.company.ID, CreateRequest{EmployeeID: "e1", Title: "Car", Category: "vehicle", Cost: 100})
	require.True(t, errutil.Is(err, errutil.StatusBadRequest))

	_, err = f.svc.Create(ctx, f.company.ID, CreateRequest{EmployeeID: "ghost", Title: "Spa", Category: CategoryWellness, Cost: 100})
	require.True(t, errutil.Is(err, errutil.StatusNotFound))
}

func TestApproveSplitsContributions(t *testing.T) {
	f := setup(t, 1000, company.Settings{})
	ctx := context.Background()
	p, a := f.submitted(t, 600)
	require.Equal(t, ApprovalPending, a.Status)

	pending, _, err := f.svc.ListApprovals(ctx, f.company.ID, ApprovalPending, pagination.Pagination{Limit: 10})
	require.NoError(t, err)
	require.Len(t, pending, 1)
	require.Equal(t, p.ID, pending[0].Package.ID)

	_, err = f.svc.Approve(ctx, f.company.ID, "boss", a.ID, ApproveRequest{EmployerAmount: 400, EmployeeAmount: 100})
	require.True(t, errutil.Is(err, errutil.StatusValidationFailed))

	out, err := f.svc.Approve(ctx, f.company.ID, "boss", a.ID, ApproveRequest{EmployerAmount: 450, EmployeeAmount: 150})
	require.NoError(t, err)
	require.Equal(t, ApprovalApproved, out.Status)
	require.Equal(t, PackageApproved, out.Package.Status)
	require.NotNil(t, out.RespondedAt)

	c, err := f.companies.Get(ctx, f.company.ID)
	require.NoError(t, err)
	require.Equal(t, int64(550), c.WalletBalance)

	history, err := f.wallet.History(ctx, "e1")
	require.NoError(t, err)
	require.Len(t, history, 2)
	require.Equal(t, wallet.EmployerContribution, history[0].Type)
	require.Equal(t, int64(450), history[0].BalanceAfter)
	require.Equal(t, wallet.EmployeeContribution, history[1].Type)
	require.Equal(t, int64(600), history[1].BalanceAfter)

	_, err = f.svc.Approve(ctx, f.company.ID, "boss", a.ID, ApproveRequest{EmployerAmount: 600})
	require.True(t, errutil.Is(err, errutil.StatusConflict))
}

func TestApproveInsufficientPoolRollsBack(t *testing.T) {
	f := setup(t, 100, company.Settings{})
	ctx := context.Background()
	_, a := f.submitted(t, 600)

	_, err := f.svc.Approve(ctx, f.company.ID, "boss", a.ID, ApproveRequest{EmployerAmount: 600})
	require.True(t, errutil.Is(err, errutil.StatusUnprocessableEntity))

	a, err = f.svc.GetApproval(ctx, f.company.ID, a.ID)
	require.NoError(t, err)
	require.Equal(t, ApprovalPending, a.Status)
	require.Equal(t, PackagePendingApproval, a.Package.Status)

	acct, err := f.wallet.Balance(ctx, "e1")
	require.NoError(t, err)
	require.Zero(t, acct.Balance)
}

func TestRejectThenResubmit(t *testing.T) {
	f := setup(t, 1000, company.Settings{})
	ctx := context.Background()
	p, a := f.submitted(t, 300)

	out, err := f.svc.Reject(ctx, f.company.ID, "boss", a.ID, "over budget this quarter")
	require.NoError(t, err)
	require.Equal(t, ApprovalRejected, out.Status)
	require.Equal(t, "over budget this quarter", out.Comments)
	require.Equal(t, PackageRejected, out.Package.Status)

	again, err := f.svc.Submit(ctx, f.company.ID, p.ID)
	require.NoError(t, err)
	require.NotEqual(t, a.ID, again.ID)

	_, err = f.svc.Submit(ctx, f.company.ID, p.ID)
	require.True(t, errutil.Is(err, errutil.StatusConflict))
}

func TestRedeemAndFeedback(t *testing.T) {
	f := setup(t, 1000, company.Settings{})
	ctx := context.Background()
	p, a := f.submitted(t, 500)

	_, err := f.svc.Redeem(ctx, "e1", p.ID)
	require.True(t, errutil.Is(err, errutil.StatusConflict))

	_, err = f.svc.Approve(ctx, f.company.ID, "boss", a.ID, ApproveRequest{EmployerAmount: 500})
	require.NoError(t, err)

	redeemed, err := f.svc.Redeem(ctx, "e1", p.ID)
	require.NoError(t, err)
	require.Equal(t, PackageRedeemed, redeemed.Status)
	require.NotNil(t, redeemed.RedeemedAt)

	acct, err := f.wallet.Balance(ctx, "e1")
	require.NoError(t, err)
	require.Zero(t, acct.Balance)

	_, err = f.svc.Redeem(ctx, "someone-else", p.ID)
	require.True(t, errutil.Is(err, errutil.StatusNotFound))

	fb, err := f.svc.Feedback(ctx, "e1", p.ID, FeedbackRequest{Rating: 5, Comment: "great trip"})
	require.NoError(t, err)
	require.Equal(t, 5, fb.Rating)

	_, err = f.svc.Feedback(ctx, "e1", p.ID, FeedbackRequest{Rating: 4})
	require.True(t, errutil.Is(err, errutil.StatusConflict))

	_, err = f.svc.Feedback(ctx, "e1", p.ID, FeedbackRequest{Rating: 9})
	require.True(t, errutil.Is(err, errutil.StatusBadRequest))

	mine, err := f.svc.ForEmployee(ctx, "e1")
	require.NoError(t, err)
	require.Len(t, mine, 1)
}
