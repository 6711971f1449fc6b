package v1_test

import (
	"bytes"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"time"

	"github.com/google/uuid"

	v1 "github.com/contalivre/backend/internal/controllers/v1"
	"github.com/contalivre/backend/internal/httputil"
	"github.com/contalivre/backend/internal/importer"
	"github.com/contalivre/backend/internal/models"
	"github.com/contalivre/backend/internal/types"
	"github.com/contalivre/backend/test"
)

const statementCSV = "Data;Descrição;Valor\n" +
	"05/02/2026;Padaria Silva;-25,90\n" +
	"06/02/2026;Salário ACME;5.000,00\n" +
	"06/02/2026;SALDO DO DIA;100,00\n"

// parseUpload posts a multipart parse request.
func (suite *TestSuiteStandard) parseUpload(headers map[string]string, fileName string, content []byte, fields map[string]string) httptest.ResponseRecorder {
	var buffer bytes.Buffer
	writer := multipart.NewWriter(&buffer)

	if fileName != "" {
		part, err := writer.CreateFormFile("file", fileName)
		suite.Require().Nil(err)
		_, err = part.Write(content)
		suite.Require().Nil(err)
	}

	for field, value := range fields {
		suite.Require().Nil(writer.WriteField(field, value))
	}
	suite.Require().Nil(writer.Close())

	requestHeaders := map[string]string{"Content-Type": writer.FormDataContentType()}
	for header, value := range headers {
		requestHeaders[header] = value
	}

	return test.Request(suite.T(), http.MethodPost, "/v1/imports/parse", &buffer, requestHeaders)
}

func (suite *TestSuiteStandard) TestParseCSV() {
	recorder := suite.parseUpload(asUser(), "extrato.csv", []byte(statementCSV), nil)
	test.AssertHTTPStatus(suite.T(), &recorder, http.StatusOK)

	var response v1.ParseResponse
	test.DecodeResponse(suite.T(), &recorder, &response)

	suite.Assert().Equal(importer.SourceCSV, response.SourceType)
	suite.Assert().Equal(";", response.Separator)
	suite.Assert().Equal("utf-8", response.DetectedEncoding)
	suite.Assert().False(response.NeedsMapping)

	suite.Require().NotNil(response.AppliedMapping)
	suite.Assert().Equal("Data", response.AppliedMapping.Date)
	suite.Require().NotNil(response.SuggestedMappingConfidence)
	suite.Assert().Equal("alta", response.SuggestedMappingConfidence.Level)

	suite.Assert().Equal(3, response.TotalRows)
	suite.Assert().Equal(2, response.ValidRows)
	suite.Assert().Equal(1, response.IgnoredRows)
	suite.Require().Len(response.Rows, 2)
	suite.Assert().Equal("Padaria Silva", response.Rows[0].Description)
}

func (suite *TestSuiteStandard) TestParseCSVNeedsMapping() {
	content := "A;B;C\n1;2;3\n4;5;6\n"
	recorder := suite.parseUpload(asUser(), "estranho.csv", []byte(content), nil)
	test.AssertHTTPStatus(suite.T(), &recorder, http.StatusOK)

	var response v1.ParseResponse
	test.DecodeResponse(suite.T(), &recorder, &response)

	suite.Assert().True(response.NeedsMapping)
	suite.Assert().Equal([]string{"A", "B", "C"}, response.Columns)
	suite.Require().NotNil(response.SuggestedMappingConfidence)
	suite.Assert().Equal("baixa", response.SuggestedMappingConfidence.Level)
	suite.Assert().Len(response.SampleRows, 2)
	suite.Assert().Empty(response.Rows)
}

func (suite *TestSuiteStandard) TestParseCSVUserMapping() {
	content := "Quando;O que;Quanto\n05/02/2026;Padaria;-25,90\n"
	mapping := `{"date":"Quando","description":"O que","amount":"Quanto"}`

	recorder := suite.parseUpload(asUser(), "estranho.csv", []byte(content), map[string]string{"mapping": mapping})
	test.AssertHTTPStatus(suite.T(), &recorder, http.StatusOK)

	var response v1.ParseResponse
	test.DecodeResponse(suite.T(), &recorder, &response)

	suite.Assert().False(response.NeedsMapping)
	suite.Require().NotNil(response.AppliedMapping)
	suite.Assert().Equal("Quando", response.AppliedMapping.Date)
	suite.Assert().Equal(1, response.ValidRows)
}

func (suite *TestSuiteStandard) TestParseCSVInvalidMappingJSON() {
	recorder := suite.parseUpload(asUser(), "extrato.csv", []byte(statementCSV), map[string]string{"mapping": "{not json"})
	test.AssertHTTPStatus(suite.T(), &recorder, http.StatusBadRequest)

	var response httputil.HTTPError
	test.DecodeResponse(suite.T(), &recorder, &response)
	suite.Assert().Equal(importer.CodeInvalidMappingJSON, response.Code)
}

func (suite *TestSuiteStandard) TestParseCSVUnknownMappingColumns() {
	mapping := `{"date":"Data","description":"Descrição","amount":"Inexistente"}`
	recorder := suite.parseUpload(asUser(), "extrato.csv", []byte(statementCSV), map[string]string{"mapping": mapping})
	test.AssertHTTPStatus(suite.T(), &recorder, http.StatusBadRequest)

	var response httputil.HTTPError
	test.DecodeResponse(suite.T(), &recorder, &response)
	suite.Assert().Equal(importer.CodeInvalidMappingColumns, response.Code)
	suite.Assert().Equal([]string{"Inexistente"}, response.MissingColumns)
}

func (suite *TestSuiteStandard) TestParseFileMissing() {
	recorder := suite.parseUpload(asUser(), "", nil, nil)
	test.AssertHTTPStatus(suite.T(), &recorder, http.StatusBadRequest)

	var response httputil.HTTPError
	test.DecodeResponse(suite.T(), &recorder, &response)
	suite.Assert().Equal(importer.CodeFileMissing, response.Code)
}

func (suite *TestSuiteStandard) TestParseFileEmpty() {
	recorder := suite.parseUpload(asUser(), "vazio.csv", []byte("   \n "), nil)
	test.AssertHTTPStatus(suite.T(), &recorder, http.StatusBadRequest)

	var response httputil.HTTPError
	test.DecodeResponse(suite.T(), &recorder, &response)
	suite.Assert().Equal(importer.CodeFileEmpty, response.Code)
}

func (suite *TestSuiteStandard) TestParseBinaryContent() {
	recorder := suite.parseUpload(asUser(), "dados.bin", []byte{0x50, 0x4b, 0x00, 0x01, 0x02}, nil)
	test.AssertHTTPStatus(suite.T(), &recorder, http.StatusBadRequest)

	var response httputil.HTTPError
	test.DecodeResponse(suite.T(), &recorder, &response)
	suite.Assert().Equal(importer.CodeInvalidContentType, response.Code)
}

func (suite *TestSuiteStandard) TestParseOFX() {
	content := "OFXHEADER:100\nDATA:OFXSGML\nVERSION:102\nSECURITY:NONE\nENCODING:USASCII\nCHARSET:1252\nCOMPRESSION:NONE\nOLDFILEUID:NONE\nNEWFILEUID:NONE\n\n" +
		"<OFX>\n<SIGNONMSGSRSV1>\n<SONRS>\n<STATUS>\n<CODE>0\n<SEVERITY>INFO\n</STATUS>\n<DTSERVER>20260210120000\n<LANGUAGE>POR\n</SONRS>\n</SIGNONMSGSRSV1>\n" +
		"<BANKMSGSRSV1>\n<STMTTRNRS>\n<TRNUID>1\n<STATUS>\n<CODE>0\n<SEVERITY>INFO\n</STATUS>\n<STMTRS>\n<CURDEF>BRL\n" +
		"<BANKACCTFROM>\n<BANKID>077\n<ACCTID>12345-6\n<ACCTTYPE>CHECKING\n</BANKACCTFROM>\n" +
		"<BANKTRANLIST>\n<DTSTART>20260201000000\n<DTEND>20260228235959\n" +
		"<STMTTRN>\n<TRNTYPE>DEBIT\n<DTPOSTED>20260205120000\n<TRNAMT>-25.90\n<FITID>TXN001\n<NAME>PIX ENVIADO MARIA\n</STMTTRN>\n" +
		"</BANKTRANLIST>\n</STMTRS>\n</STMTTRNRS>\n</BANKMSGSRSV1>\n</OFX>"

	recorder := suite.parseUpload(asUser(), "extrato.ofx", []byte(content), nil)
	test.AssertHTTPStatus(suite.T(), &recorder, http.StatusOK)

	var response v1.ParseResponse
	test.DecodeResponse(suite.T(), &recorder, &response)

	suite.Assert().Equal(importer.SourceOFX, response.SourceType)
	suite.Assert().Equal(importer.DocumentBankStatement, response.DocumentType)
	suite.Assert().Equal(1, response.ValidRows)
}

func (suite *TestSuiteStandard) TestCommit() {
	headers := asUser()
	account := suite.createTestAccount(headers, v1.AccountEditable{})

	recorder := suite.parseUpload(headers, "extrato.csv", []byte(statementCSV), nil)
	test.AssertHTTPStatus(suite.T(), &recorder, http.StatusOK)

	var parsed v1.ParseResponse
	test.DecodeResponse(suite.T(), &recorder, &parsed)
	suite.Require().Len(parsed.Rows, 2)

	request := v1.CommitRequest{
		SourceType:       parsed.SourceType,
		FileName:         "extrato.csv",
		DefaultAccountID: &account.ID,
		Rows:             parsed.Rows,
	}

	recorder = test.Request(suite.T(), http.MethodPost, "/v1/imports/commit", request, headers)
	test.AssertHTTPStatus(suite.T(), &recorder, http.StatusCreated)

	var result importer.CommitResult
	test.DecodeResponse(suite.T(), &recorder, &result)
	suite.Assert().Equal(2, result.TotalImported)
	suite.Require().NotNil(result.ImportedRange)
	suite.Assert().Equal("2026-02-05", result.ImportedRange.From)

	// Committing the same file again is a no-op.
	recorder = test.Request(suite.T(), http.MethodPost, "/v1/imports/commit", request, headers)
	test.AssertHTTPStatus(suite.T(), &recorder, http.StatusOK)

	test.DecodeResponse(suite.T(), &recorder, &result)
	suite.Assert().True(result.DuplicateImportSource)
	suite.Assert().Equal(0, result.TotalImported)
	suite.Assert().Equal(2, result.TotalSkipped)
}

func (suite *TestSuiteStandard) TestCommitAppliesRules() {
	headers := asUser()
	account := suite.createTestAccount(headers, v1.AccountEditable{})
	category := suite.createTestCategory(headers, v1.CategoryEditable{Name: "Alimentação"})
	suite.createTestRule(headers, v1.CategoryRuleEditable{Pattern: "padaria", CategoryID: category.ID})

	recorder := suite.parseUpload(headers, "extrato.csv", []byte(statementCSV), nil)
	var parsed v1.ParseResponse
	test.DecodeResponse(suite.T(), &recorder, &parsed)

	request := v1.CommitRequest{
		SourceType:       parsed.SourceType,
		FileName:         "extrato.csv",
		DefaultAccountID: &account.ID,
		ApplyRules:       true,
		Rows:             parsed.Rows,
	}

	recorder = test.Request(suite.T(), http.MethodPost, "/v1/imports/commit", request, headers)
	test.AssertHTTPStatus(suite.T(), &recorder, http.StatusCreated)

	var result importer.CommitResult
	test.DecodeResponse(suite.T(), &recorder, &result)
	suite.Assert().Equal(1, result.DeterministicCategorizedCount)
}

func (suite *TestSuiteStandard) TestCommitEmptyRows() {
	recorder := test.Request(suite.T(), http.MethodPost, "/v1/imports/commit", v1.CommitRequest{
		SourceType: importer.SourceCSV,
		FileName:   "extrato.csv",
	}, asUser())
	test.AssertHTTPStatus(suite.T(), &recorder, http.StatusBadRequest)

	var response httputil.HTTPError
	test.DecodeResponse(suite.T(), &recorder, &response)
	suite.Assert().Equal(importer.CodeInvalidPayload, response.Code)
}

func (suite *TestSuiteStandard) TestCommitRowsLimit() {
	rows := make([]importer.Row, v1.MaxCommitRows+1)
	for i := range rows {
		rows[i] = importer.Row{
			Date:        types.NewDate(2026, 2, 5),
			Description: fmt.Sprintf("linha %d", i),
			Type:        models.TransactionExpense,
		}
	}

	recorder := test.Request(suite.T(), http.MethodPost, "/v1/imports/commit", v1.CommitRequest{
		SourceType: importer.SourceCSV,
		FileName:   "extrato.csv",
		Rows:       rows,
	}, asUser())
	test.AssertHTTPStatus(suite.T(), &recorder, http.StatusBadRequest)

	var response httputil.HTTPError
	test.DecodeResponse(suite.T(), &recorder, &response)
	suite.Assert().Equal(importer.CodeRowsLimitExceeded, response.Code)
}

func (suite *TestSuiteStandard) TestCommitUnknownDefaultAccount() {
	unknown := uuid.New()
	recorder := test.Request(suite.T(), http.MethodPost, "/v1/imports/commit", v1.CommitRequest{
		SourceType:       importer.SourceCSV,
		FileName:         "extrato.csv",
		DefaultAccountID: &unknown,
		Rows: []importer.Row{{
			Date:        types.NewDate(2026, 2, 5),
			Description: "Padaria",
			Type:        models.TransactionExpense,
		}},
	}, asUser())

	test.AssertHTTPStatus(suite.T(), &recorder, http.StatusNotFound)
}

func (suite *TestSuiteStandard) TestGetImports() {
	headers := asUser()
	account := suite.createTestAccount(headers, v1.AccountEditable{})

	recorder := suite.parseUpload(headers, "extrato.csv", []byte(statementCSV), nil)
	var parsed v1.ParseResponse
	test.DecodeResponse(suite.T(), &recorder, &parsed)

	recorder = test.Request(suite.T(), http.MethodPost, "/v1/imports/commit", v1.CommitRequest{
		SourceType:       parsed.SourceType,
		FileName:         "extrato.csv",
		DefaultAccountID: &account.ID,
		Rows:             parsed.Rows,
	}, headers)
	test.AssertHTTPStatus(suite.T(), &recorder, http.StatusCreated)

	recorder = test.Request(suite.T(), http.MethodGet, "/v1/imports", nil, headers)
	test.AssertHTTPStatus(suite.T(), &recorder, http.StatusOK)

	var batches []models.ImportBatch
	test.DecodeResponse(suite.T(), &recorder, &batches)
	suite.Require().Len(batches, 1)
	suite.Assert().Equal("extrato.csv", batches[0].FileName)

	// Filtered by the month the batch was imported in.
	currentMonth := time.Now().UTC().Format("2006-01")
	recorder = test.Request(suite.T(), http.MethodGet, "/v1/imports?month="+currentMonth, nil, headers)
	test.AssertHTTPStatus(suite.T(), &recorder, http.StatusOK)
	test.DecodeResponse(suite.T(), &recorder, &batches)
	suite.Assert().Len(batches, 1)

	recorder = test.Request(suite.T(), http.MethodGet, "/v1/imports?month=2000-01", nil, headers)
	test.AssertHTTPStatus(suite.T(), &recorder, http.StatusOK)
	test.DecodeResponse(suite.T(), &recorder, &batches)
	suite.Assert().Len(batches, 0)
}

func (suite *TestSuiteStandard) TestGetImportsInvalidMonth() {
	recorder := test.Request(suite.T(), http.MethodGet, "/v1/imports?month=13-2026", nil, asUser())
	test.AssertHTTPStatus(suite.T(), &recorder, http.StatusBadRequest)
}
