package wallet

import (
	"context"
	"time"

	"rewards-controlplane/pkg/db/option"
	"rewards-controlplane/pkg/db/pagination"
	"rewards-controlplane/pkg/errutil"
	"rewards-controlplane/pkg/logger"
	"rewards-controlplane/pkg/repository"
	"rewards-controlplane/pkg/sequence"

	"github.com/bwmarrin/snowflake"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type Service struct {
	db           *gorm.DB
	node         *snowflake.Node
	seq          sequence.Generator
	accounts     repository.Repository[Account]
	transactions repository.Repository[Transaction]
}

type ServiceParams struct {
	fx.In
	DB   *gorm.DB
	Node *snowflake.Node
	Seq  sequence.Generator
}

func NewService(p ServiceParams) *Service {
	return &Service{
		db:           p.DB,
		node:         p.Node,
		seq:          p.Seq,
		accounts:     repository.ProvideStore[Account](p.DB),
		transactions: repository.ProvideStore[Transaction](p.DB),
	}
}

// Post appends one transaction to the employee's chain. With a nil tx it
// runs in its own transaction; otherwise it joins the caller's so pool
// debits and wallet credits commit together.
func (s *Service) Post(ctx context.Context, tx *gorm.DB, e Entry) (*Transaction, error) {
	if tx != nil {
		return s.post(ctx, tx, e)
	}

	var out *Transaction
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		out, err = s.post(ctx, tx, e)
		return err
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (s *Service) post(ctx context.Context, tx *gorm.DB, e Entry) (*Transaction, error) {
	zapLog := logger.FromContext(ctx)

	if !e.Type.Valid() {
		return nil, errutil.BadRequest("unknown transaction type", nil)
	}
	if e.Amount <= 0 {
		return nil, errutil.BadRequest("amount must be positive", nil)
	}
	if e.EmployeeID == "" {
		return nil, errutil.BadRequest("employee id is required", nil)
	}

	acct, err := s.lockAccount(ctx, tx, e.EmployeeID, e.CompanyID)
	if err != nil {
		zapLog.Error("failed to lock wallet account", zap.String("employee_id", e.EmployeeID), zap.Error(err))
		return nil, errutil.Internal("failed to lock wallet account", err)
	}

	amount := e.Amount
	if e.Type.Debit() {
		amount = -amount
	}
	balance := acct.Balance + amount
	if balance < 0 {
		zapLog.Warn("insufficient wallet balance",
			zap.String("employee_id", e.EmployeeID),
			zap.Int64("balance", acct.Balance),
			zap.Int64("amount", e.Amount),
		)
		return nil, errutil.UnprocessableEntity("insufficient wallet balance", nil,
			errutil.WithDetails(errutil.Detail{Field: "amount", Message: "exceeds wallet balance"}))
	}

	companyID := e.CompanyID
	if companyID == "" {
		companyID = acct.CompanyID
	}
	code, err := s.seq.NextTransactionCode(ctx, companyID)
	if err != nil {
		zapLog.Error("failed to generate transaction code", zap.Error(err))
		return nil, errutil.Internal("failed to post transaction", err)
	}

	txn := &Transaction{
		ID:            s.node.Generate().String(),
		CreatedAt:     time.Now().UTC().Truncate(time.Microsecond),
		CompanyID:     companyID,
		EmployeeID:    e.EmployeeID,
		Sequence:      acct.Sequence + 1,
		Type:          e.Type,
		Amount:        amount,
		BalanceAfter:  balance,
		MilestoneID:   e.MilestoneID,
		PackageID:     e.PackageID,
		ReferenceCode: code,
		Description:   e.Description,
		PreviousHash:  acct.LastHash,
	}
	txn.Hash = txn.GenerateHash()

	if err := s.transactions.WithTrx(tx).Create(ctx, txn); err != nil {
		zapLog.Error("failed to insert wallet transaction", zap.Error(err))
		return nil, errutil.Internal("failed to post transaction", err)
	}
	if err := s.accounts.WithTrx(tx).Update(ctx, acct.ID, map[string]any{
		"balance":   balance,
		"sequence":  txn.Sequence,
		"last_hash": txn.Hash,
	}); err != nil {
		zapLog.Error("failed to update wallet account", zap.Error(err))
		return nil, errutil.Internal("failed to post transaction", err)
	}

	zapLog.Info("wallet transaction posted",
		zap.String("employee_id", txn.EmployeeID),
		zap.String("type", string(txn.Type)),
		zap.Int64("amount", txn.Amount),
		zap.Int64("balance_after", txn.BalanceAfter),
		zap.String("reference_code", txn.ReferenceCode),
	)
	return txn, nil
}

// lockAccount creates the account row on first use and reads it back under
// FOR UPDATE.
func (s *Service) lockAccount(ctx context.Context, tx *gorm.DB, employeeID, companyID string) (*Account, error) {
	seed := &Account{
		ID:         s.node.Generate().String(),
		EmployeeID: employeeID,
		CompanyID:  companyID,
	}
	if err := tx.WithContext(ctx).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "employee_id"}}, DoNothing: true}).
		Create(seed).Error; err != nil {
		return nil, err
	}

	acct, err := s.accounts.WithTrx(tx).FindOne(ctx, &Account{EmployeeID: employeeID}, option.WithLockingUpdate())
	if err != nil {
		return nil, err
	}
	if acct == nil {
		return nil, gorm.ErrRecordNotFound
	}
	return acct, nil
}

// Balance returns the employee's account. Employees without postings get a
// zero account that is not persisted.
func (s *Service) Balance(ctx context.Context, employeeID string) (*Account, error) {
	acct, err := s.accounts.FindOne(ctx, &Account{EmployeeID: employeeID})
	if err != nil {
		logger.FromContext(ctx).Error("failed to get wallet account", zap.String("employee_id", employeeID), zap.Error(err))
		return nil, errutil.Internal("failed to get wallet", err)
	}
	if acct == nil {
		return &Account{EmployeeID: employeeID}, nil
	}
	return acct, nil
}

func (s *Service) ListTransactions(ctx context.Context, employeeID string, page pagination.Pagination) ([]*Transaction, *pagination.PageInfo, error) {
	rows, err := s.transactions.Find(ctx, &Transaction{EmployeeID: employeeID},
		option.WithSortBy(option.QuerySortBy{OrderBy: "desc"}),
		option.ApplyPagination(page),
	)
	if err != nil {
		logger.FromContext(ctx).Error("failed to list wallet transactions", zap.String("employee_id", employeeID), zap.Error(err))
		return nil, nil, errutil.Internal("failed to list transactions", err)
	}

	out, info := pagination.Trim(rows, page.Limit, func(t *Transaction) pagination.Cursor {
		return pagination.CursorFrom(t.CreatedAt, t.ID)
	})
	return out, info, nil
}

// History returns every transaction of an employee in posting order.
func (s *Service) History(ctx context.Context, employeeID string) ([]*Transaction, error) {
	rows, err := s.transactions.Find(ctx, &Transaction{EmployeeID: employeeID},
		option.WithSortBy(option.QuerySortBy{SortBy: "sequence", OrderBy: "asc", Allow: map[string]bool{"sequence": true}}),
	)
	if err != nil {
		logger.FromContext(ctx).Error("failed to load wallet history", zap.String("employee_id", employeeID), zap.Error(err))
		return nil, errutil.Internal("failed to load transactions", err)
	}
	return rows, nil
}

// VerifyChain walks the employee's transactions in order and checks hash
// links, recomputed hashes and running balances against the account head.
func (s *Service) VerifyChain(ctx context.Context, employeeID string) (*ChainReport, error) {
	rows, err := s.History(ctx, employeeID)
	if err != nil {
		return nil, err
	}
	acct, err := s.Balance(ctx, employeeID)
	if err != nil {
		return nil, err
	}

	report := &ChainReport{EmployeeID: employeeID, Valid: true}
	prevHash := ""
	var balance int64
	for _, t := range rows {
		report.Checked++
		balance += t.Amount
		switch {
		case t.PreviousHash != prevHash:
			report.Valid, report.BrokenAt, report.Reason = false, t.ID, "previous hash mismatch"
		case t.GenerateHash() != t.Hash:
			report.Valid, report.BrokenAt, report.Reason = false, t.ID, "hash mismatch"
		case t.BalanceAfter != balance:
			report.Valid, report.BrokenAt, report.Reason = false, t.ID, "balance mismatch"
		}
		if !report.Valid {
			logger.FromContext(ctx).Warn("wallet chain broken",
				zap.String("employee_id", employeeID),
				zap.String("transaction_id", t.ID),
				zap.String("reason", report.Reason),
			)
			return report, nil
		}
		prevHash = t.Hash
	}

	report.Balance = balance
	if acct.Balance != balance || acct.LastHash != prevHash {
		report.Valid, report.Reason = false, "account head mismatch"
	}
	return report, nil
}
