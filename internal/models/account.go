package models

import (
	"errors"
	"strings"

	"github.com/google/uuid"
	"golang.org/x/exp/slices"
	"gorm.io/gorm"
)

// AccountType is the kind of account an Account represents.
type AccountType string

const (
	AccountTypeChecking   AccountType = "checking"
	AccountTypeCredit     AccountType = "credit"
	AccountTypeCash       AccountType = "cash"
	AccountTypeInvestment AccountType = "investment"
)

// Valid reports whether the account type is one of the known types.
func (t AccountType) Valid() bool {
	return slices.Contains([]AccountType{
		AccountTypeChecking,
		AccountTypeCredit,
		AccountTypeCash,
		AccountTypeInvestment,
	}, t)
}

// Account represents an account a user holds, e.g. a bank account or a
// credit card. A credit account may be linked to the non-credit account
// its fatura is paid from via ParentAccountID.
type Account struct {
	DefaultModel
	UserID          uuid.UUID   `gorm:"index"`
	Type            AccountType `gorm:"type:text"`
	Name            string
	Institution     string
	Currency        string
	ParentAccountID *uuid.UUID
	// Day of month the fatura is due. Only meaningful for credit accounts,
	// 0 when unknown.
	DueDay int
}

var (
	ErrAccountTypeInvalid       = errors.New("the account type is invalid")
	ErrAccountParentMustBeOwned = errors.New("the parent account must belong to the same user")
	ErrAccountParentNotCredit   = errors.New("the parent of a credit account must be a non-credit account")
)

// BeforeSave trims whitespace and defaults the currency.
func (a *Account) BeforeSave(_ *gorm.DB) error {
	a.Name = strings.TrimSpace(a.Name)
	a.Institution = strings.TrimSpace(a.Institution)

	if a.Currency == "" {
		a.Currency = "BRL"
	}

	if !a.Type.Valid() {
		return ErrAccountTypeInvalid
	}

	return nil
}

func (a *Account) BeforeCreate(tx *gorm.DB) error {
	_ = a.DefaultModel.BeforeCreate(tx)
	return a.checkIntegrity(tx)
}

// BeforeUpdate verifies the state of the account before
// committing an update to the database.
func (a *Account) BeforeUpdate(tx *gorm.DB) error {
	if tx.Statement.Changed("ParentAccountID") {
		return a.checkIntegrity(tx)
	}
	return nil
}

// checkIntegrity verifies that a linked parent account exists, belongs to
// the same user and is not itself a credit account.
func (a *Account) checkIntegrity(tx *gorm.DB) error {
	if a.ParentAccountID == nil {
		return nil
	}

	var parent Account
	err := tx.First(&parent, "id = ?", *a.ParentAccountID).Error
	if err != nil {
		return err
	}

	if parent.UserID != a.UserID {
		return ErrAccountParentMustBeOwned
	}

	if a.Type == AccountTypeCredit && parent.Type == AccountTypeCredit {
		return ErrAccountParentNotCredit
	}

	return nil
}

// AccountsForUser returns all accounts owned by the user.
func AccountsForUser(db *gorm.DB, userID uuid.UUID) ([]Account, error) {
	var accounts []Account
	err := db.Where(&Account{UserID: userID}).Order("name asc").Find(&accounts).Error
	return accounts, err
}

// AccountForUser returns the account with the given ID if the user owns it.
func AccountForUser(db *gorm.DB, userID, id uuid.UUID) (Account, error) {
	var account Account
	err := db.First(&account, "id = ? AND user_id = ?", id, userID).Error
	return account, err
}

// CreditAccountsForUser returns all credit accounts owned by the user.
func CreditAccountsForUser(db *gorm.DB, userID uuid.UUID) ([]Account, error) {
	var accounts []Account
	err := db.Where(&Account{UserID: userID, Type: AccountTypeCredit}).Find(&accounts).Error
	return accounts, err
}
