package models_test

import (
	"time"

	"github.com/contalivre/backend/internal/models"
)

func posted(day int) time.Time {
	return time.Date(2026, 2, day, 12, 0, 0, 0, time.UTC)
}

func (suite *TestSuiteStandard) TestTransactionTypeInvalid() {
	user := suite.createTestUser()
	account := suite.createTestAccount(models.Account{UserID: user.ID})

	err := models.DB.Create(&models.Transaction{
		UserID:      user.ID,
		AccountID:   account.ID,
		PostedAt:    posted(5),
		Type:        "wire",
		Direction:   models.DirectionOut,
		AmountCents: -100,
	}).Error

	suite.Assert().ErrorIs(err, models.ErrTransactionTypeInvalid)
}

func (suite *TestSuiteStandard) TestTransactionSignMismatch() {
	user := suite.createTestUser()
	account := suite.createTestAccount(models.Account{UserID: user.ID})

	err := models.DB.Create(&models.Transaction{
		UserID:      user.ID,
		AccountID:   account.ID,
		PostedAt:    posted(5),
		Type:        models.TransactionExpense,
		Direction:   models.DirectionOut,
		AmountCents: 100,
	}).Error
	suite.Assert().ErrorIs(err, models.ErrTransactionSignMismatch)

	err = models.DB.Create(&models.Transaction{
		UserID:      user.ID,
		AccountID:   account.ID,
		PostedAt:    posted(5),
		Type:        models.TransactionIncome,
		Direction:   models.DirectionIn,
		AmountCents: -100,
	}).Error
	suite.Assert().ErrorIs(err, models.ErrTransactionSignMismatch)
}

func (suite *TestSuiteStandard) TestTransactionDefaults() {
	user := suite.createTestUser()
	account := suite.createTestAccount(models.Account{UserID: user.ID})

	transaction := suite.createTestTransaction(models.Transaction{
		UserID:      user.ID,
		AccountID:   account.ID,
		AmountCents: -2590,
	})

	suite.Assert().Equal(models.StatusPosted, transaction.Status)
	suite.Assert().Equal("BRL", transaction.Currency)
	suite.Assert().False(transaction.IsInternalTransfer)

	transfer := suite.createTestTransaction(models.Transaction{
		UserID:      user.ID,
		AccountID:   account.ID,
		Type:        models.TransactionTransfer,
		AmountCents: -1000,
	})
	suite.Assert().True(transfer.IsInternalTransfer)
}

func (suite *TestSuiteStandard) TestTransactionImportedHashUnique() {
	user := suite.createTestUser()
	account := suite.createTestAccount(models.Account{UserID: user.ID})
	hash := "a3f2"

	suite.createTestTransaction(models.Transaction{
		UserID:       user.ID,
		AccountID:    account.ID,
		AmountCents:  -2590,
		ImportedHash: &hash,
	})

	err := models.DB.Create(&models.Transaction{
		UserID:       user.ID,
		AccountID:    account.ID,
		PostedAt:     posted(5),
		Type:         models.TransactionExpense,
		Direction:    models.DirectionOut,
		AmountCents:  -2590,
		ImportedHash: &hash,
	}).Error
	suite.Assert().ErrorContains(err, "UNIQUE constraint failed")

	// Manual entries carry no hash and never collide.
	suite.createTestTransaction(models.Transaction{UserID: user.ID, AccountID: account.ID, AmountCents: -1})
	suite.createTestTransaction(models.Transaction{UserID: user.ID, AccountID: account.ID, AmountCents: -1})

	exists, err := models.TransactionExistsByHash(models.DB, user.ID, hash)
	suite.Require().Nil(err)
	suite.Assert().True(exists)

	exists, err = models.TransactionExistsByHash(models.DB, user.ID, "0000")
	suite.Require().Nil(err)
	suite.Assert().False(exists)
}

func (suite *TestSuiteStandard) TestTransactionsInWindow() {
	user := suite.createTestUser()
	account := suite.createTestAccount(models.Account{UserID: user.ID})

	suite.createTestTransaction(models.Transaction{UserID: user.ID, AccountID: account.ID, AmountCents: -1, PostedAt: posted(1)})
	inWindow := suite.createTestTransaction(models.Transaction{UserID: user.ID, AccountID: account.ID, AmountCents: -2, PostedAt: posted(10)})
	suite.createTestTransaction(models.Transaction{UserID: user.ID, AccountID: account.ID, AmountCents: -3, PostedAt: posted(20)})

	transactions, err := models.TransactionsInWindow(models.DB, user.ID, posted(5), posted(15))
	suite.Require().Nil(err)
	suite.Require().Len(transactions, 1)
	suite.Assert().Equal(inWindow.ID, transactions[0].ID)
}

func (suite *TestSuiteStandard) TestCreditPurchaseDebt() {
	user := suite.createTestUser()
	credit := suite.createTestAccount(models.Account{UserID: user.ID, Type: models.AccountTypeCredit})
	other := suite.createTestAccount(models.Account{UserID: user.ID})

	suite.createTestTransaction(models.Transaction{
		UserID: user.ID, AccountID: credit.ID, AmountCents: -4500,
		Type: models.TransactionCCPurchase, PostedAt: posted(5),
	})
	suite.createTestTransaction(models.Transaction{
		UserID: user.ID, AccountID: credit.ID, AmountCents: -1500,
		Type: models.TransactionExpense, PostedAt: posted(10),
	})
	// Outside the window.
	suite.createTestTransaction(models.Transaction{
		UserID: user.ID, AccountID: credit.ID, AmountCents: -9900,
		Type: models.TransactionCCPurchase, PostedAt: posted(25),
	})
	// Another account.
	suite.createTestTransaction(models.Transaction{
		UserID: user.ID, AccountID: other.ID, AmountCents: -100, PostedAt: posted(5),
	})

	total, err := models.CreditPurchaseDebt(models.DB, user.ID, credit.ID, posted(1), posted(15))
	suite.Require().Nil(err)
	suite.Assert().Equal(int64(-6000), total)
}
