package wallet

import (
	"context"
	"testing"

	"rewards-controlplane/pkg/db/pagination"
	"rewards-controlplane/pkg/errutil"
	"rewards-controlplane/services/testutil"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func init() {
	zap.ReplaceGlobals(zap.NewNop())
}

func newTestService(t *testing.T) (*Service, *gorm.DB) {
	db := testutil.NewTestDB(t, &Account{}, &Transaction{})
	return NewService(ServiceParams{DB: db, Node: testutil.Node(t), Seq: &testutil.FakeSequence{}}), db
}

func TestPostComputesBalanceAfter(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	first, err := svc.Post(ctx, nil, Entry{CompanyID: "c1", EmployeeID: "e1", Type: EmployerContribution, Amount: 300})
	require.NoError(t, err)
	require.Equal(t, int64(300), first.BalanceAfter)
	require.Empty(t, first.PreviousHash)

	second, err := svc.Post(ctx, nil, Entry{CompanyID: "c1", EmployeeID: "e1", Type: EmployeeContribution, Amount: 200})
	require.NoError(t, err)
	require.Equal(t, int64(500), second.BalanceAfter)
	require.Equal(t, first.Hash, second.PreviousHash)

	third, err := svc.Post(ctx, nil, Entry{CompanyID: "c1", EmployeeID: "e1", Type: RewardRedemption, Amount: 450})
	require.NoError(t, err)
	require.Equal(t, int64(-450), third.Amount)
	require.Equal(t, int64(50), third.BalanceAfter)
	require.Equal(t, int64(3), third.Sequence)

	acct, err := svc.Balance(ctx, "e1")
	require.NoError(t, err)
	require.Equal(t, int64(50), acct.Balance)
	require.Equal(t, third.Hash, acct.LastHash)
}

func TestPostRejectsOverdraft(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	_, err := svc.Post(ctx, nil, Entry{CompanyID: "c1", EmployeeID: "e1", Type: MilestoneBonus, Amount: 100})
	require.NoError(t, err)

	_, err = svc.Post(ctx, nil, Entry{CompanyID: "c1", EmployeeID: "e1", Type: RewardRedemption, Amount: 101})
	require.True(t, errutil.Is(err, errutil.StatusUnprocessableEntity))

	_, err = svc.Post(ctx, nil, Entry{CompanyID: "c1", EmployeeID: "e1", Type: MilestoneBonus, Amount: 0})
	require.True(t, errutil.Is(err, errutil.StatusBadRequest))

	_, err = svc.Post(ctx, nil, Entry{CompanyID: "c1", EmployeeID: "e1", Type: "gift", Amount: 5})
	require.True(t, errutil.Is(err, errutil.StatusBadRequest))

	acct, err := svc.Balance(ctx, "e1")
	require.NoError(t, err)
	require.Equal(t, int64(100), acct.Balance)
}

func TestPostJoinsCallerTransaction(t *testing.T) {
	svc, db := newTestService(t)
	ctx := context.Background()

	err := db.Transaction(func(tx *gorm.DB) error {
		if _, err := svc.Post(ctx, tx, Entry{CompanyID: "c1", EmployeeID: "e2", Type: EmployerContribution, Amount: 70}); err != nil {
			return err
		}
		return gorm.ErrInvalidData
	})
	require.ErrorIs(t, err, gorm.ErrInvalidData)

	acct, err := svc.Balance(ctx, "e2")
	require.NoError(t, err)
	require.Zero(t, acct.Balance)

	history, err := svc.History(ctx, "e2")
	require.NoError(t, err)
	require.Empty(t, history)
}

func TestVerifyChain(t *testing.T) {
	svc, db := newTestService(t)
	ctx := context.Background()

	for _, amount := range []int64{100, 250, 40} {
		_, err := svc.Post(ctx, nil, Entry{CompanyID: "c1", EmployeeID: "e3", Type: EmployerContribution, Amount: amount})
		require.NoError(t, err)
	}

	report, err := svc.VerifyChain(ctx, "e3")
	require.NoError(t, err)
	require.True(t, report.Valid)
	require.Equal(t, 3, report.Checked)
	require.Equal(t, int64(390), report.Balance)

	history, err := svc.History(ctx, "e3")
	require.NoError(t, err)
	require.NoError(t, db.Model(&Transaction{}).Where("id = ?", history[1].ID).Update("amount", 999).Error)

	report, err = svc.VerifyChain(ctx, "e3")
	require.NoError(t, err)
	require.False(t, report.Valid)
	require.Equal(t, history[1].ID, report.BrokenAt)
	require.Equal(t, "hash mismatch", report.Reason)
}

func TestListTransactions(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_, err := svc.Post(ctx, nil, Entry{CompanyID: "c1", EmployeeID: "e4", Type: MilestoneBonus, Amount: 10})
		require.NoError(t, err)
	}

	rows, info, err := svc.ListTransactions(ctx, "e4", pagination.Pagination{Limit: 2})
	require.NoError(t, err)
	require.Len(t, rows, 2)
	require.True(t, info.HasMore)
}
