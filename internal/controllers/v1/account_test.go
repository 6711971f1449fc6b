package v1_test

import (
	"fmt"
	"net/http"

	"github.com/google/uuid"

	v1 "github.com/contalivre/backend/internal/controllers/v1"
	"github.com/contalivre/backend/internal/models"
	"github.com/contalivre/backend/test"
)

func (suite *TestSuiteStandard) TestAccountsUnauthorized() {
	recorder := test.Request(suite.T(), http.MethodGet, "/v1/accounts", nil)
	test.AssertHTTPStatus(suite.T(), &recorder, http.StatusUnauthorized)

	recorder = test.Request(suite.T(), http.MethodGet, "/v1/accounts", nil, map[string]string{v1.HeaderUserID: "not-a-uuid"})
	test.AssertHTTPStatus(suite.T(), &recorder, http.StatusUnauthorized)
}

func (suite *TestSuiteStandard) TestCreateAccount() {
	account := suite.createTestAccount(asUser(), v1.AccountEditable{
		Name:        "Conta Corrente",
		Type:        models.AccountTypeChecking,
		Institution: "inter",
	})

	suite.Assert().Equal("Conta Corrente", account.Name)
	suite.Assert().Equal(models.AccountTypeChecking, account.Type)
	suite.Assert().Equal("inter", account.Institution)
	suite.Assert().Equal("BRL", account.Currency)
	suite.Assert().NotEqual(uuid.Nil, account.ID)
}

func (suite *TestSuiteStandard) TestCreateAccountInvalidType() {
	recorder := test.Request(suite.T(), http.MethodPost, "/v1/accounts", v1.AccountEditable{
		Name: "Carteira",
		Type: "wallet",
	}, asUser())

	test.AssertHTTPStatus(suite.T(), &recorder, http.StatusBadRequest)
}

func (suite *TestSuiteStandard) TestCreateAccountForeignParent() {
	headers := asUser()
	foreign := suite.createTestAccount(asUser(), v1.AccountEditable{})

	recorder := test.Request(suite.T(), http.MethodPost, "/v1/accounts", v1.AccountEditable{
		Name:            "Cartão",
		Type:            models.AccountTypeCredit,
		ParentAccountID: &foreign.ID,
	}, headers)

	test.AssertHTTPStatus(suite.T(), &recorder, http.StatusBadRequest)
}

func (suite *TestSuiteStandard) TestGetAccountsScopedToUser() {
	headers := asUser()
	suite.createTestAccount(headers, v1.AccountEditable{Name: "Minha"})
	suite.createTestAccount(asUser(), v1.AccountEditable{Name: "Alheia"})

	recorder := test.Request(suite.T(), http.MethodGet, "/v1/accounts", nil, headers)
	test.AssertHTTPStatus(suite.T(), &recorder, http.StatusOK)

	var accounts []models.Account
	test.DecodeResponse(suite.T(), &recorder, &accounts)
	suite.Require().Len(accounts, 1)
	suite.Assert().Equal("Minha", accounts[0].Name)
}

func (suite *TestSuiteStandard) TestGetAccount() {
	headers := asUser()
	account := suite.createTestAccount(headers, v1.AccountEditable{Name: "Conta Corrente"})

	recorder := test.Request(suite.T(), http.MethodGet, fmt.Sprintf("/v1/accounts/%s", account.ID), nil, headers)
	test.AssertHTTPStatus(suite.T(), &recorder, http.StatusOK)

	var fetched models.Account
	test.DecodeResponse(suite.T(), &recorder, &fetched)
	suite.Assert().Equal(account.ID, fetched.ID)
}

func (suite *TestSuiteStandard) TestGetAccountNotFound() {
	recorder := test.Request(suite.T(), http.MethodGet, fmt.Sprintf("/v1/accounts/%s", uuid.New()), nil, asUser())
	test.AssertHTTPStatus(suite.T(), &recorder, http.StatusNotFound)

	recorder = test.Request(suite.T(), http.MethodGet, "/v1/accounts/not-a-uuid", nil, asUser())
	test.AssertHTTPStatus(suite.T(), &recorder, http.StatusBadRequest)
}

func (suite *TestSuiteStandard) TestGetAccountOfOtherUser() {
	account := suite.createTestAccount(asUser(), v1.AccountEditable{})

	recorder := test.Request(suite.T(), http.MethodGet, fmt.Sprintf("/v1/accounts/%s", account.ID), nil, asUser())
	test.AssertHTTPStatus(suite.T(), &recorder, http.StatusNotFound)
}

func (suite *TestSuiteStandard) TestUpdateAccount() {
	headers := asUser()
	account := suite.createTestAccount(headers, v1.AccountEditable{Name: "Cartão", Type: models.AccountTypeCredit})

	recorder := test.Request(suite.T(), http.MethodPatch, fmt.Sprintf("/v1/accounts/%s", account.ID), v1.AccountEditable{
		Name:   "Cartão Nubank",
		Type:   models.AccountTypeCredit,
		DueDay: 10,
	}, headers)
	test.AssertHTTPStatus(suite.T(), &recorder, http.StatusOK)

	var updated models.Account
	test.DecodeResponse(suite.T(), &recorder, &updated)
	suite.Assert().Equal("Cartão Nubank", updated.Name)
	suite.Assert().Equal(10, updated.DueDay)
}

func (suite *TestSuiteStandard) TestDeleteAccount() {
	headers := asUser()
	account := suite.createTestAccount(headers, v1.AccountEditable{})

	recorder := test.Request(suite.T(), http.MethodDelete, fmt.Sprintf("/v1/accounts/%s", account.ID), nil, headers)
	test.AssertHTTPStatus(suite.T(), &recorder, http.StatusNoContent)

	recorder = test.Request(suite.T(), http.MethodGet, fmt.Sprintf("/v1/accounts/%s", account.ID), nil, headers)
	test.AssertHTTPStatus(suite.T(), &recorder, http.StatusNotFound)
}

func (suite *TestSuiteStandard) TestAccountOptions() {
	recorder := test.Request(suite.T(), http.MethodOptions, "/v1/accounts", nil, asUser())
	test.AssertHTTPStatus(suite.T(), &recorder, http.StatusNoContent)
	suite.Assert().Equal("GET, POST", recorder.Header().Get("allow"))
}
