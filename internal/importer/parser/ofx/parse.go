// Package ofx parses OFX financial-exchange exports, both the XML and the
// older SGML flavor that Brazilian banks still emit.
package ofx

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/aclindsa/ofxgo"
	"github.com/shopspring/decimal"

	"github.com/contalivre/backend/internal/importer"
	"github.com/contalivre/backend/internal/types"
)

var (
	severityRe = regexp.MustCompile(`(?i)<SEVERITY>(Info|Warn|Error)</SEVERITY>`)
	openTagRe  = regexp.MustCompile(`(?m)^(\s*<[A-Z][A-Z0-9._]*[A-Z0-9])$`)
)

// preprocess fixes formatting issues that are common in SGML-style OFX
// exports: leading blank lines, mixed-case SEVERITY values and opening
// tags missing their closing bracket.
func preprocess(content string) string {
	content = strings.TrimLeft(content, " \t\r\n")
	content = severityRe.ReplaceAllStringFunc(content, strings.ToUpper)
	content = openTagRe.ReplaceAllString(content, "$1>")
	return content
}

// Parse extracts the transactions of all bank and credit card statements
// contained in an OFX document.
func Parse(data []byte) (*importer.ParseResult, error) {
	response, err := ofxgo.ParseResponse(strings.NewReader(preprocess(string(data))))
	if err != nil {
		return nil, &importer.Error{
			Code:            importer.CodeParserUnavailable,
			TechnicalReason: err.Error(),
		}
	}

	result := &importer.ParseResult{
		SourceType:   importer.SourceOFX,
		DocumentType: importer.DocumentBankStatement,
		Metadata:     map[string]string{},
	}

	for _, message := range response.Bank {
		statement, ok := message.(*ofxgo.StatementResponse)
		if !ok || statement.BankTranList == nil {
			continue
		}

		hint := string(statement.BankAcctFrom.AcctID)
		for _, transaction := range statement.BankTranList.Transactions {
			result.Candidates = append(result.Candidates, candidate(transaction, hint, importer.DocumentBankStatement))
		}
	}

	for _, message := range response.CreditCard {
		statement, ok := message.(*ofxgo.CCStatementResponse)
		if !ok || statement.BankTranList == nil {
			continue
		}

		result.DocumentType = importer.DocumentCCStatement
		hint := string(statement.CCAcctFrom.AcctID)
		for _, transaction := range statement.BankTranList.Transactions {
			result.Candidates = append(result.Candidates, candidate(transaction, hint, importer.DocumentCCStatement))
		}
	}

	if len(result.Candidates) == 0 {
		return nil, &importer.Error{
			Code:            importer.CodeParserUnavailable,
			TechnicalReason: "the OFX document contains no transactions",
		}
	}

	return result, nil
}

func candidate(transaction ofxgo.Transaction, accountHint string, documentType importer.DocumentType) importer.Candidate {
	description := strings.TrimSpace(string(transaction.Name))
	if memo := strings.TrimSpace(string(transaction.Memo)); memo != "" {
		if description == "" {
			description = memo
		} else if !strings.Contains(description, memo) {
			description = description + " " + memo
		}
	}

	amount, err := decimal.NewFromString(transaction.TrnAmt.FloatString(2))
	if err != nil {
		amount = decimal.Zero
	}

	return importer.Candidate{
		Date:         types.DateOf(transaction.DtPosted.Time),
		Amount:       amount,
		Description:  description,
		ExternalID:   strings.TrimSpace(string(transaction.FiTID)),
		AccountHint:  accountHint,
		DocumentType: documentType,
		Raw: map[string]string{
			"trnType":  fmt.Sprintf("%v", transaction.TrnType),
			"dtPosted": transaction.DtPosted.Format("2006-01-02"),
			"fitId":    string(transaction.FiTID),
		},
	}
}
