// Package importer implements the import pipeline: parsed source rows are
// canonicalized, categorized, routed and committed as ledger entries.
package importer

import (
	"github.com/contalivre/backend/internal/models"
	"github.com/contalivre/backend/internal/types"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// SourceType identifies the parser family a row came from.
type SourceType string

const (
	SourceCSV    SourceType = "csv"
	SourceOFX    SourceType = "ofx"
	SourcePDF    SourceType = "pdf"
	SourceManual SourceType = "manual"
)

// DocumentType classifies the parsed document more precisely than the
// source type: an OFX or PDF file can be either an account statement or a
// credit card invoice.
type DocumentType string

const (
	DocumentBankStatement DocumentType = "bank_statement"
	DocumentCCStatement   DocumentType = "credit_card_statement"
	DocumentCCInvoice     DocumentType = "credit_card_invoice"
)

// Kind maps the document type to the content-addressing kind of its file.
func (d DocumentType) Kind() models.ImportSourceKind {
	if d == DocumentCCStatement || d == DocumentCCInvoice {
		return models.SourceKindCCStatement
	}
	return models.SourceKindBankStatement
}

// Candidate is one transaction candidate emitted by a source parser before
// canonicalization.
type Candidate struct {
	Date         types.Date
	Amount       decimal.Decimal
	BalanceAfter *decimal.Decimal
	Description  string
	ExternalID   string
	AccountHint  string
	TypeHint     models.TransactionType
	DocumentType DocumentType
	Raw          map[string]string
}

// ParseResult is the uniform output of all source parsers.
type ParseResult struct {
	SourceType       SourceType
	DocumentType     DocumentType
	IssuerProfile    string
	Columns          []string
	Candidates       []Candidate
	DetectedEncoding string
	Metadata         map[string]string
}

// Row is the canonical import row: the unified intermediate representation
// produced by the canonicalizer and consumed by the rule engine, the
// card-payment router, the transfer matcher and the committer.
type Row struct {
	Date            types.Date      `json:"date"`
	Amount          decimal.Decimal `json:"amount"`
	BalanceAfter    *decimal.Decimal `json:"balanceAfter,omitempty"`
	TransactionKindRaw string        `json:"transactionKindRaw,omitempty"`
	CounterpartyRaw    string        `json:"counterpartyRaw,omitempty"`
	TransactionKind    string        `json:"transactionKindNorm,omitempty"`
	Counterparty       string        `json:"counterpartyNorm,omitempty"`
	MerchantKey        string        `json:"merchantKey,omitempty"`
	SourceType         SourceType    `json:"sourceType"`
	DocumentType       DocumentType  `json:"documentType,omitempty"`
	Description        string        `json:"description"`
	NormalizedDescription string     `json:"normalizedDescription"`
	Type        models.TransactionType `json:"type"`
	ExternalID  string                 `json:"externalId,omitempty"`
	AccountHint string                 `json:"accountHint,omitempty"`
	AccountID   uuid.UUID              `json:"accountId,omitempty"`
	CategoryID  uuid.UUID              `json:"categoryId,omitempty"`
	Raw         map[string]string      `json:"raw,omitempty"`

	// Routing state, set by the card-payment router. Rows sharing a
	// non-nil TransferPairID are committed as one linked transfer pair.
	TransferPairID        *uuid.UUID `json:"-"`
	TransferFromAccountID uuid.UUID  `json:"-"`
	TransferToAccountID   uuid.UUID  `json:"-"`
	CardPayment           bool       `json:"-"`
	// ManualCategory marks a category assigned by the client against a
	// preview commitIndex. It always wins over rules.
	ManualCategory bool `json:"manualCategory,omitempty"`
}

// AmountCents returns the signed amount in integer cents.
func (r Row) AmountCents() int64 {
	return r.Amount.Shift(2).Round(0).IntPart()
}

// Direction derives the entry direction from the amount sign.
func (r Row) Direction() models.Direction {
	if r.Amount.IsNegative() {
		return models.DirectionOut
	}
	return models.DirectionIn
}
