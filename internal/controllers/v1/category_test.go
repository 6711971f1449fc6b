package v1_test

import (
	"fmt"
	"net/http"

	v1 "github.com/contalivre/backend/internal/controllers/v1"
	"github.com/contalivre/backend/internal/httputil"
	"github.com/contalivre/backend/internal/models"
	"github.com/contalivre/backend/test"
)

func (suite *TestSuiteStandard) TestCreateCategory() {
	category := suite.createTestCategory(asUser(), v1.CategoryEditable{
		Name:  "Mercado",
		Color: "#34d399",
		Icon:  "shopping-cart",
	})

	suite.Assert().Equal("Mercado", category.Name)
	suite.Assert().Equal("#34d399", category.Color)
}

func (suite *TestSuiteStandard) TestCreateCategoryDuplicateName() {
	headers := asUser()
	suite.createTestCategory(headers, v1.CategoryEditable{Name: "Mercado"})

	recorder := test.Request(suite.T(), http.MethodPost, "/v1/categories", v1.CategoryEditable{Name: "Mercado"}, headers)
	test.AssertHTTPStatus(suite.T(), &recorder, http.StatusBadRequest)

	var response httputil.HTTPError
	test.DecodeResponse(suite.T(), &recorder, &response)
	suite.Assert().Equal("a category with this name already exists", response.Error)

	// The same name is fine for another user.
	suite.createTestCategory(asUser(), v1.CategoryEditable{Name: "Mercado"})
}

func (suite *TestSuiteStandard) TestGetCategoriesScopedToUser() {
	headers := asUser()
	suite.createTestCategory(headers, v1.CategoryEditable{Name: "Minha"})
	suite.createTestCategory(asUser(), v1.CategoryEditable{Name: "Alheia"})

	recorder := test.Request(suite.T(), http.MethodGet, "/v1/categories", nil, headers)
	test.AssertHTTPStatus(suite.T(), &recorder, http.StatusOK)

	var categories []models.Category
	test.DecodeResponse(suite.T(), &recorder, &categories)
	suite.Require().Len(categories, 1)
	suite.Assert().Equal("Minha", categories[0].Name)
}

func (suite *TestSuiteStandard) TestUpdateCategory() {
	headers := asUser()
	category := suite.createTestCategory(headers, v1.CategoryEditable{Name: "Mercado"})

	recorder := test.Request(suite.T(), http.MethodPatch, fmt.Sprintf("/v1/categories/%s", category.ID), v1.CategoryEditable{
		Name:  "Supermercado",
		Color: "#f87171",
	}, headers)
	test.AssertHTTPStatus(suite.T(), &recorder, http.StatusOK)

	var updated models.Category
	test.DecodeResponse(suite.T(), &recorder, &updated)
	suite.Assert().Equal("Supermercado", updated.Name)
	suite.Assert().Equal("#f87171", updated.Color)
}

func (suite *TestSuiteStandard) TestDeleteCategory() {
	headers := asUser()
	category := suite.createTestCategory(headers, v1.CategoryEditable{Name: "Mercado"})
	rule := suite.createTestRule(headers, v1.CategoryRuleEditable{
		Pattern:    "mercado",
		CategoryID: category.ID,
	})

	recorder := test.Request(suite.T(), http.MethodDelete, fmt.Sprintf("/v1/categories/%s", category.ID), nil, headers)
	test.AssertHTTPStatus(suite.T(), &recorder, http.StatusNoContent)

	// Rules assigning the deleted category are gone too.
	recorder = test.Request(suite.T(), http.MethodGet, fmt.Sprintf("/v1/category-rules/%s", rule.ID), nil, headers)
	test.AssertHTTPStatus(suite.T(), &recorder, http.StatusNotFound)
}
