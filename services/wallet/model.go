package wallet

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"
	"strings"
	"time"
)

type TransactionType string

const (
	EmployerContribution TransactionType = "employer_contribution"
	EmployeeContribution TransactionType = "employee_contribution"
	RewardRedemption     TransactionType = "reward_redemption"
	MilestoneBonus       TransactionType = "milestone_bonus"
)

func (t TransactionType) Valid() bool {
	switch t {
	case EmployerContribution, EmployeeContribution, RewardRedemption, MilestoneBonus:
		return true
	default:
		return false
	}
}

// Debit reports whether the type takes money out of the wallet.
func (t TransactionType) Debit() bool {
	return t == RewardRedemption
}

// Account holds the running balance and chain head of one employee wallet.
// Its row is the lock every posting takes.
type Account struct {
	ID         string    `gorm:"column:id;primaryKey" json:"id"`
	CreatedAt  time.Time `gorm:"column:created_at" json:"created_at"`
	UpdatedAt  time.Time `gorm:"column:updated_at" json:"updated_at"`
	EmployeeID string    `gorm:"column:employee_id;uniqueIndex;not null" json:"employee_id"`
	CompanyID  string    `gorm:"column:company_id;index" json:"company_id"`
	Balance    int64     `gorm:"column:balance;not null;default:0" json:"balance"`
	Sequence   int64     `gorm:"column:sequence;not null;default:0" json:"sequence"`
	LastHash   string    `gorm:"column:last_hash" json:"-"`
}

func (Account) TableName() string { return "wallet_accounts" }

// Transaction is append-only. Amount is signed: credits positive,
// redemptions negative.
type Transaction struct {
	ID            string          `gorm:"column:id;primaryKey" json:"id"`
	CreatedAt     time.Time       `gorm:"column:created_at" json:"created_at"`
	CompanyID     string          `gorm:"column:company_id;index" json:"company_id"`
	EmployeeID    string          `gorm:"column:employee_id;index;uniqueIndex:idx_wallet_tx_seq" json:"employee_id"`
	Sequence      int64           `gorm:"column:sequence;uniqueIndex:idx_wallet_tx_seq" json:"sequence"`
	Type          TransactionType `gorm:"column:type;not null" json:"type"`
	Amount        int64           `gorm:"column:amount;not null" json:"amount"`
	BalanceAfter  int64           `gorm:"column:balance_after;not null" json:"balance_after"`
	MilestoneID   *string         `gorm:"column:milestone_id" json:"milestone_id,omitempty"`
	PackageID     *string         `gorm:"column:package_id;index" json:"package_id,omitempty"`
	ReferenceCode string          `gorm:"column:reference_code;uniqueIndex" json:"reference_code"`
	Description   string          `gorm:"column:description" json:"description,omitempty"`
	PreviousHash  string          `gorm:"column:previous_hash" json:"previous_hash"`
	Hash          string          `gorm:"column:hash" json:"hash"`
}

func (Transaction) TableName() string { return "wallet_transactions" }

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func (m *Transaction) HashFields() map[string]string {
	return map[string]string{
		"id":             m.ID,
		"company_id":     m.CompanyID,
		"employee_id":    m.EmployeeID,
		"sequence":       fmt.Sprintf("%d", m.Sequence),
		"type":           string(m.Type),
		"amount":         fmt.Sprintf("%d", m.Amount),
		"balance_after":  fmt.Sprintf("%d", m.BalanceAfter),
		"milestone_id":   deref(m.MilestoneID),
		"package_id":     deref(m.PackageID),
		"reference_code": m.ReferenceCode,
		"description":    m.Description,
		"created_at":     m.CreatedAt.UTC().Format(time.RFC3339Nano),
		"previous_hash":  m.PreviousHash,
	}
}

func (m *Transaction) GenerateHash() string {
	fields := m.HashFields()
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s=%s", k, fields[k]))
	}

	hash := sha256.Sum256([]byte(strings.Join(parts, "|")))
	return hex.EncodeToString(hash[:])
}

// Entry is a posting request.
type Entry struct {
	CompanyID   string
	EmployeeID  string
	Type        TransactionType
	Amount      int64
	MilestoneID *string
	PackageID   *string
	Description string
}

type ChainReport struct {
	EmployeeID string `json:"employee_id"`
	Valid      bool   `json:"valid"`
	Checked    int    `json:"checked"`
	Balance    int64  `json:"balance"`
	BrokenAt   string `json:"broken_at,omitempty"`
	Reason     string `json:"reason,omitempty"`
}
