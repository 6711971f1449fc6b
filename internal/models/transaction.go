package models

import (
	"errors"
	"time"

	"github.com/google/uuid"
	"golang.org/x/exp/slices"
	"gorm.io/gorm"
)

// TransactionType classifies a ledger entry.
type TransactionType string

const (
	TransactionIncome     TransactionType = "income"
	TransactionExpense    TransactionType = "expense"
	TransactionTransfer   TransactionType = "transfer"
	TransactionCCPurchase TransactionType = "cc_purchase"
	TransactionCCPayment  TransactionType = "cc_payment"
	TransactionFee        TransactionType = "fee"
	TransactionRefund     TransactionType = "refund"
)

// Valid reports whether the transaction type is one of the known types.
func (t TransactionType) Valid() bool {
	return slices.Contains([]TransactionType{
		TransactionIncome,
		TransactionExpense,
		TransactionTransfer,
		TransactionCCPurchase,
		TransactionCCPayment,
		TransactionFee,
		TransactionRefund,
	}, t)
}

// Direction is the flow direction of a ledger entry relative to its account.
type Direction string

const (
	DirectionIn  Direction = "in"
	DirectionOut Direction = "out"
)

// TransactionStatus is the settlement state of a ledger entry.
type TransactionStatus string

const (
	StatusPosted  TransactionStatus = "posted"
	StatusPending TransactionStatus = "pending"
)

// Transaction is a committed ledger entry.
//
// Amounts are integer cents, signed: outgoing entries are zero or negative,
// incoming entries are zero or positive. Internal transfers always come in
// pairs sharing a TransferGroupID, one entry per direction, each carrying
// the other's ID as TransferPeerID.
type Transaction struct {
	DefaultModel
	UserID                uuid.UUID `gorm:"index:transaction_user_posted_at,priority:1"`
	AccountID             uuid.UUID `gorm:"index:transaction_account_posted_at,priority:1"`
	CategoryID            *uuid.UUID
	ImportBatchID         *uuid.UUID
	PostedAt              time.Time `gorm:"index:transaction_user_posted_at,priority:2;index:transaction_account_posted_at,priority:2"`
	Description           string
	NormalizedDescription string
	AmountCents           int64
	Currency              string
	Type                  TransactionType   `gorm:"type:text"`
	Direction             Direction         `gorm:"type:text"`
	Status                TransactionStatus `gorm:"type:text"`
	IsInternalTransfer    bool
	ImportedHash          *string    `gorm:"uniqueIndex:transaction_user_imported_hash,where:imported_hash IS NOT NULL"`
	TransferGroupID       *uuid.UUID `gorm:"index:transaction_user_transfer_group"`
	TransferPeerID        *uuid.UUID
	TransferFromAccountID *uuid.UUID
	TransferToAccountID   *uuid.UUID
	ExternalID            string
	RawJSON               string
}

var (
	ErrTransactionTypeInvalid  = errors.New("the transaction type is invalid")
	ErrTransactionSignMismatch = errors.New("the amount sign does not match the transaction direction")
)

// BeforeSave enforces the sign/direction and transfer-flag invariants.
func (t *Transaction) BeforeSave(_ *gorm.DB) error {
	if !t.Type.Valid() {
		return ErrTransactionTypeInvalid
	}

	if t.Direction == DirectionOut && t.AmountCents > 0 {
		return ErrTransactionSignMismatch
	}
	if t.Direction == DirectionIn && t.AmountCents < 0 {
		return ErrTransactionSignMismatch
	}

	t.IsInternalTransfer = t.Type == TransactionTransfer

	if t.Status == "" {
		t.Status = StatusPosted
	}
	if t.Currency == "" {
		t.Currency = "BRL"
	}

	t.PostedAt = t.PostedAt.In(time.UTC)
	return nil
}

// AfterFind updates the timestamps to use UTC as timezone.
func (t *Transaction) AfterFind(_ *gorm.DB) error {
	t.PostedAt = t.PostedAt.In(time.UTC)
	return nil
}

// TransactionForUser returns the entry with the given ID if the user owns it.
func TransactionForUser(db *gorm.DB, userID, id uuid.UUID) (Transaction, error) {
	var transaction Transaction
	err := db.First(&transaction, "id = ? AND user_id = ?", id, userID).Error
	return transaction, err
}

// TransactionsInWindow returns all entries of the user posted in [from, to],
// in posting order. The transfer matcher operates on this window.
func TransactionsInWindow(db *gorm.DB, userID uuid.UUID, from, to time.Time) ([]Transaction, error) {
	var transactions []Transaction
	err := db.
		Where("user_id = ?", userID).
		Where("posted_at >= ? AND posted_at <= ?", from.In(time.UTC), to.In(time.UTC)).
		Order("posted_at asc").
		Order("created_at asc").
		Find(&transactions).Error
	return transactions, err
}

// TransactionExistsByHash reports whether the user already has an entry with
// the given imported hash.
func TransactionExistsByHash(db *gorm.DB, userID uuid.UUID, hash string) (bool, error) {
	var count int64
	err := db.Model(&Transaction{}).
		Where("user_id = ? AND imported_hash = ?", userID, hash).
		Count(&count).Error
	return count > 0, err
}

// CreditPurchaseDebt sums the purchases on a credit account posted within
// [from, to]. The card-payment router scores payment destinations with it.
func CreditPurchaseDebt(db *gorm.DB, userID, accountID uuid.UUID, from, to time.Time) (int64, error) {
	var total int64
	err := db.Model(&Transaction{}).
		Where("user_id = ? AND account_id = ?", userID, accountID).
		Where("type IN ?", []TransactionType{TransactionCCPurchase, TransactionExpense}).
		Where("posted_at >= ? AND posted_at <= ?", from.In(time.UTC), to.In(time.UTC)).
		Select("COALESCE(SUM(amount_cents), 0)").
		Scan(&total).Error
	return total, err
}
