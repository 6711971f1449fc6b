package v1_test

import (
	"fmt"
	"net/http"

	"github.com/google/uuid"

	v1 "github.com/contalivre/backend/internal/controllers/v1"
	"github.com/contalivre/backend/internal/httputil"
	"github.com/contalivre/backend/internal/models"
	"github.com/contalivre/backend/test"
)

func (suite *TestSuiteStandard) TestCreateRule() {
	headers := asUser()
	category := suite.createTestCategory(headers, v1.CategoryEditable{Name: "Transporte"})

	rule := suite.createTestRule(headers, v1.CategoryRuleEditable{
		Name:       "Uber",
		Pattern:    "uber",
		CategoryID: category.ID,
	})

	suite.Assert().Equal("Uber", rule.Name)
	suite.Assert().Equal(models.RuleMatchContains, rule.MatchType)
	suite.Assert().True(rule.Enabled)
	suite.Assert().Equal(category.ID, rule.CategoryID)
}

func (suite *TestSuiteStandard) TestCreateRuleForeignCategory() {
	foreign := suite.createTestCategory(asUser(), v1.CategoryEditable{Name: "Alheia"})

	recorder := test.Request(suite.T(), http.MethodPost, "/v1/category-rules", v1.CategoryRuleEditable{
		Pattern:    "uber",
		MatchType:  models.RuleMatchContains,
		CategoryID: foreign.ID,
	}, asUser())

	test.AssertHTTPStatus(suite.T(), &recorder, http.StatusBadRequest)

	var response httputil.HTTPError
	test.DecodeResponse(suite.T(), &recorder, &response)
	suite.Assert().Equal("the rule must reference a category you own", response.Error)
}

func (suite *TestSuiteStandard) TestCreateRuleInvalidPattern() {
	headers := asUser()
	category := suite.createTestCategory(headers, v1.CategoryEditable{Name: "Transporte"})

	recorder := test.Request(suite.T(), http.MethodPost, "/v1/category-rules", v1.CategoryRuleEditable{
		Pattern:    "([",
		MatchType:  models.RuleMatchRegex,
		CategoryID: category.ID,
	}, headers)

	test.AssertHTTPStatus(suite.T(), &recorder, http.StatusBadRequest)

	var response httputil.HTTPError
	test.DecodeResponse(suite.T(), &recorder, &response)
	suite.Assert().Equal("invalid_pattern", response.Code)
}

func (suite *TestSuiteStandard) TestGetRulesScopedToUser() {
	headers := asUser()
	category := suite.createTestCategory(headers, v1.CategoryEditable{Name: "Transporte"})
	suite.createTestRule(headers, v1.CategoryRuleEditable{Name: "Minha", Pattern: "uber", CategoryID: category.ID})

	otherHeaders := asUser()
	otherCategory := suite.createTestCategory(otherHeaders, v1.CategoryEditable{Name: "Transporte"})
	suite.createTestRule(otherHeaders, v1.CategoryRuleEditable{Name: "Alheia", Pattern: "99", CategoryID: otherCategory.ID})

	recorder := test.Request(suite.T(), http.MethodGet, "/v1/category-rules", nil, headers)
	test.AssertHTTPStatus(suite.T(), &recorder, http.StatusOK)

	var rules []models.CategoryRule
	test.DecodeResponse(suite.T(), &recorder, &rules)
	suite.Require().Len(rules, 1)
	suite.Assert().Equal("Minha", rules[0].Name)
}

func (suite *TestSuiteStandard) TestUpdateRule() {
	headers := asUser()
	category := suite.createTestCategory(headers, v1.CategoryEditable{Name: "Transporte"})
	rule := suite.createTestRule(headers, v1.CategoryRuleEditable{Pattern: "uber", CategoryID: category.ID})

	disabled := false
	recorder := test.Request(suite.T(), http.MethodPatch, fmt.Sprintf("/v1/category-rules/%s", rule.ID), v1.CategoryRuleEditable{
		Name:       "Uber",
		Priority:   5,
		Enabled:    &disabled,
		MatchType:  models.RuleMatchContains,
		Pattern:    "uber trip",
		CategoryID: category.ID,
	}, headers)
	test.AssertHTTPStatus(suite.T(), &recorder, http.StatusOK)

	var updated models.CategoryRule
	test.DecodeResponse(suite.T(), &recorder, &updated)
	suite.Assert().Equal("uber trip", updated.Pattern)
	suite.Assert().Equal(uint(5), updated.Priority)
	suite.Assert().False(updated.Enabled)
}

func (suite *TestSuiteStandard) TestDeleteRule() {
	headers := asUser()
	category := suite.createTestCategory(headers, v1.CategoryEditable{Name: "Transporte"})
	rule := suite.createTestRule(headers, v1.CategoryRuleEditable{Pattern: "uber", CategoryID: category.ID})

	recorder := test.Request(suite.T(), http.MethodDelete, fmt.Sprintf("/v1/category-rules/%s", rule.ID), nil, headers)
	test.AssertHTTPStatus(suite.T(), &recorder, http.StatusNoContent)

	recorder = test.Request(suite.T(), http.MethodGet, fmt.Sprintf("/v1/category-rules/%s", rule.ID), nil, headers)
	test.AssertHTTPStatus(suite.T(), &recorder, http.StatusNotFound)
}

func (suite *TestSuiteStandard) TestRuleNotFound() {
	recorder := test.Request(suite.T(), http.MethodGet, fmt.Sprintf("/v1/category-rules/%s", uuid.New()), nil, asUser())
	test.AssertHTTPStatus(suite.T(), &recorder, http.StatusNotFound)
}
