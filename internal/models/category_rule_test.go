package models_test

import (
	"github.com/contalivre/backend/internal/models"
)

func (suite *TestSuiteStandard) TestCategoryRulePatternValidation() {
	user := suite.createTestUser()
	category := suite.createTestCategory(models.Category{UserID: user.ID})

	rule := models.CategoryRule{
		UserID:     user.ID,
		Enabled:    true,
		MatchType:  models.RuleMatchContains,
		Pattern:    "   ",
		CategoryID: category.ID,
	}
	suite.Assert().ErrorIs(models.DB.Create(&rule).Error, models.ErrRulePatternEmpty)

	rule.Pattern = "(["
	rule.MatchType = models.RuleMatchRegex
	suite.Assert().ErrorIs(models.DB.Create(&rule).Error, models.ErrRulePatternInvalid)

	// contains patterns are never compiled.
	rule.Pattern = "(["
	rule.MatchType = models.RuleMatchContains
	suite.Assert().Nil(models.DB.Create(&rule).Error)

	rule = models.CategoryRule{
		UserID:     user.ID,
		Enabled:    true,
		MatchType:  "glob",
		Pattern:    "mercado*",
		CategoryID: category.ID,
	}
	suite.Assert().ErrorIs(models.DB.Create(&rule).Error, models.ErrRuleMatchTypeInvalid)
}

func (suite *TestSuiteStandard) TestRulesForUserOrder() {
	user := suite.createTestUser()
	category := suite.createTestCategory(models.Category{UserID: user.ID})

	create := func(name string, priority uint) {
		rule := models.CategoryRule{
			UserID:     user.ID,
			Name:       name,
			Priority:   priority,
			Enabled:    true,
			MatchType:  models.RuleMatchContains,
			Pattern:    name,
			CategoryID: category.ID,
		}
		suite.Require().Nil(models.DB.Create(&rule).Error)
	}

	create("segunda", 20)
	create("primeira", 10)
	create("terceira", 20)

	rules, err := models.RulesForUser(models.DB, user.ID)
	suite.Require().Nil(err)
	suite.Require().Len(rules, 3)

	// Priority ascending, ties broken by creation order.
	suite.Assert().Equal("primeira", rules[0].Name)
	suite.Assert().Equal("segunda", rules[1].Name)
	suite.Assert().Equal("terceira", rules[2].Name)
}
