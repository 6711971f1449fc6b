package models_test

import (
	"github.com/contalivre/backend/internal/models"
)

func (suite *TestSuiteStandard) TestCategoryNameUniquePerUser() {
	user := suite.createTestUser()
	other := suite.createTestUser()

	suite.createTestCategory(models.Category{UserID: user.ID, Name: "Mercado"})

	err := models.DB.Create(&models.Category{UserID: user.ID, Name: "Mercado"}).Error
	suite.Assert().ErrorContains(err, "UNIQUE constraint failed")

	// The same name is fine for another user.
	err = models.DB.Create(&models.Category{UserID: other.ID, Name: "Mercado"}).Error
	suite.Assert().Nil(err)
}

func (suite *TestSuiteStandard) TestCategoryTrimsStrings() {
	user := suite.createTestUser()
	category := suite.createTestCategory(models.Category{
		UserID: user.ID,
		Name:   "  Mercado ",
		Color:  " #ff0000 ",
		Icon:   " cart ",
	})

	suite.Assert().Equal("Mercado", category.Name)
	suite.Assert().Equal("#ff0000", category.Color)
	suite.Assert().Equal("cart", category.Icon)
}

func (suite *TestSuiteStandard) TestCategoryDeleteCleansReferences() {
	user := suite.createTestUser()
	account := suite.createTestAccount(models.Account{UserID: user.ID})
	category := suite.createTestCategory(models.Category{UserID: user.ID, Name: "Mercado"})

	transaction := suite.createTestTransaction(models.Transaction{
		UserID:      user.ID,
		AccountID:   account.ID,
		CategoryID:  &category.ID,
		Description: "MERCADO CENTRAL",
		AmountCents: -3500,
	})

	rule := models.CategoryRule{
		UserID:     user.ID,
		Enabled:    true,
		MatchType:  models.RuleMatchContains,
		Pattern:    "mercado",
		CategoryID: category.ID,
	}
	suite.Require().Nil(models.DB.Create(&rule).Error)

	suite.Require().Nil(models.DB.Delete(&category).Error)

	// The entry survives without a category, the rule does not survive at all.
	updated, err := models.TransactionForUser(models.DB, user.ID, transaction.ID)
	suite.Require().Nil(err)
	suite.Assert().Nil(updated.CategoryID)

	_, err = models.RuleForUser(models.DB, user.ID, rule.ID)
	suite.Assert().ErrorIs(err, models.ErrResourceNotFound)
}
