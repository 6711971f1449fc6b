// Package cardpay routes credit card payments and invoice lines.
//
// Statement imports: a "pagamento de fatura" expense on a checking account
// is really a transfer to the credit account, so the single row becomes a
// matched transfer pair. Invoice imports: purchase lines belong on the
// credit account even when the caller selected a checking default.
package cardpay

import (
	"regexp"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/contalivre/backend/internal/importer"
	"github.com/contalivre/backend/internal/importer/normalize"
	"github.com/contalivre/backend/internal/models"
)

// Card-payment vocabulary, matched against the normalized description.
var (
	paymentPhraseRe = regexp.MustCompile(`PAGAMENTO FATURA|PGTO FATURA|PAG CART|CREDIT CARD PAYMENT`)
	faturaContextRe = regexp.MustCompile(`\b(PAGAMENTO|PAG|PGTO|CARTAO)\b`)
)

const (
	paymentReceived = "PAGAMENTO RECEBIDO"

	minScore       = 5.0
	minMargin      = 1.5
	debtWindowDays = 45
	debtTightCents = int64(50)
	debtLooseCents = int64(300)
)

// IsCardPayment reports whether a normalized description names a credit
// card payment.
func IsCardPayment(normalizedDescription string) bool {
	if paymentPhraseRe.MatchString(normalizedDescription) {
		return true
	}
	return strings.Contains(normalizedDescription, "FATURA") && faturaContextRe.MatchString(normalizedDescription)
}

// Options configure one routing pass over a batch.
type Options struct {
	ConvertToTransfer bool
	TargetAccountID   *uuid.UUID
	SkipPaymentLines  bool
	// Institution detected by the source parser, used to pick or
	// synthesize the credit account for invoice imports.
	Institution string
}

// Result carries the routing counters of a batch.
type Result struct {
	Detected            int
	NotConverted        int
	SkippedPaymentLines int
}

// Router routes the rows of one batch.
type Router struct {
	userID         uuid.UUID
	defaultAccount models.Account
	options        Options

	// invoice destination, resolved once per batch
	credit *models.Account
}

func NewRouter(userID uuid.UUID, defaultAccount models.Account, options Options) *Router {
	return &Router{userID: userID, defaultAccount: defaultAccount, options: options}
}

// Route processes the batch. Converted payment rows gain a synthesized
// incoming leg; invoice rows are reassigned to the credit account. The
// returned slice replaces the input rows.
//
// Route runs inside the commit transaction so that synthesized accounts
// roll back with the batch.
func (r *Router) Route(db *gorm.DB, rows []importer.Row) ([]importer.Row, Result, error) {
	result := Result{}
	routed := make([]importer.Row, 0, len(rows))

	for _, row := range rows {
		if r.invoiceMode(row) {
			keep, err := r.routeInvoiceLine(db, &row, &result)
			if err != nil {
				return nil, result, err
			}
			if keep {
				routed = append(routed, row)
			}
			continue
		}

		pair, err := r.routeStatementLine(db, &row, &result)
		if err != nil {
			return nil, result, err
		}

		routed = append(routed, row)
		if pair != nil {
			routed = append(routed, *pair)
		}
	}

	return routed, result, nil
}

// invoiceMode reports whether a row follows the invoice-to-credit rules.
func (r *Router) invoiceMode(row importer.Row) bool {
	return r.defaultAccount.Type == models.AccountTypeCredit || row.DocumentType == importer.DocumentCCInvoice
}

// routeStatementLine converts a card-payment expense into a transfer pair.
// The returned row, if any, is the synthesized incoming leg on the credit
// account.
func (r *Router) routeStatementLine(db *gorm.DB, row *importer.Row, result *Result) (*importer.Row, error) {
	if !r.options.ConvertToTransfer || !row.Amount.IsNegative() || !IsCardPayment(row.NormalizedDescription) {
		return nil, nil
	}

	result.Detected++

	destination, err := r.paymentDestination(db, *row)
	if err != nil {
		return nil, err
	}
	if destination == nil {
		result.NotConverted++
		return nil, nil
	}

	source := row.AccountID
	if source == uuid.Nil {
		source = r.defaultAccount.ID
	}

	pairID := uuid.New()
	row.CardPayment = true
	row.Type = models.TransactionTransfer
	row.AccountID = source
	row.TransferPairID = &pairID
	row.TransferFromAccountID = source
	row.TransferToAccountID = destination.ID

	// Category overrides stay on the outgoing leg.
	incoming := *row
	incoming.Amount = row.Amount.Neg()
	incoming.AccountID = destination.ID
	incoming.ExternalID = ""
	incoming.CategoryID = uuid.Nil
	incoming.ManualCategory = false
	return &incoming, nil
}

// paymentDestination picks the credit account a payment goes to. An
// explicit target wins; otherwise credit accounts are scored and the best
// one is accepted only with a clear score and margin.
func (r *Router) paymentDestination(db *gorm.DB, row importer.Row) (*models.Account, error) {
	if r.options.TargetAccountID != nil {
		account, err := models.AccountForUser(db, r.userID, *r.options.TargetAccountID)
		if err != nil {
			return nil, err
		}
		return &account, nil
	}

	credits, err := models.CreditAccountsForUser(db, r.userID)
	if err != nil {
		return nil, err
	}
	if len(credits) == 0 {
		return nil, nil
	}

	best, runnerUp := -1.0, -1.0
	var winner *models.Account
	for i := range credits {
		score, err := r.scoreDestination(db, credits[i], row)
		if err != nil {
			return nil, err
		}

		if score > best {
			runnerUp = best
			best = score
			winner = &credits[i]
		} else if score > runnerUp {
			runnerUp = score
		}
	}

	if best < minScore || (runnerUp >= 0 && best-runnerUp < minMargin) {
		return nil, nil
	}
	return winner, nil
}

func (r *Router) scoreDestination(db *gorm.DB, credit models.Account, row importer.Row) (float64, error) {
	score := 0.0

	if credit.ParentAccountID != nil && *credit.ParentAccountID == r.defaultAccount.ID {
		score += 3
	}

	if credit.Institution != "" && strings.Contains(row.NormalizedDescription, normalize.ForMatch(credit.Institution)) {
		score += 2
	}

	if credit.DueDay > 0 {
		distance := dayDistance(row.Date.Time().Day(), credit.DueDay)
		switch {
		case distance <= 2:
			score += 1.5
		case distance <= 5:
			score += 0.5
		}
	}

	from := row.Date.AddDays(-debtWindowDays).Time()
	to := row.Date.AddDays(debtWindowDays).Time()
	debt, err := models.CreditPurchaseDebt(db, r.userID, credit.ID, from, to)
	if err != nil {
		return 0, err
	}

	payment := row.AmountCents()
	if payment < 0 {
		payment = -payment
	}
	if debt < 0 {
		debt = -debt
	}

	if debt > 0 {
		difference := debt - payment
		if difference < 0 {
			difference = -difference
		}
		switch {
		case difference <= debtTightCents:
			score += 3
		case difference <= debtLooseCents:
			score += 1
		}
	}

	return score, nil
}

// dayDistance is the circular distance between two days of month.
func dayDistance(a, b int) int {
	d := a - b
	if d < 0 {
		d = -d
	}
	if wrapped := 30 - d; wrapped < d {
		return wrapped
	}
	return d
}

// routeInvoiceLine applies the invoice-to-credit rules to one row. The
// returned bool reports whether the row survives.
func (r *Router) routeInvoiceLine(db *gorm.DB, row *importer.Row, result *Result) (bool, error) {
	isPaymentLine := row.Amount.IsPositive() &&
		(strings.Contains(row.NormalizedDescription, paymentReceived) || IsCardPayment(row.NormalizedDescription))

	if isPaymentLine {
		result.Detected++
		if r.options.SkipPaymentLines {
			result.SkippedPaymentLines++
			return false, nil
		}
	}

	credit, err := r.creditAccount(db)
	if err != nil {
		return false, err
	}

	row.AccountID = credit.ID
	if row.Amount.IsNegative() && row.Type == models.TransactionExpense {
		row.Type = models.TransactionCCPurchase
	}

	return true, nil
}

// creditAccount resolves the credit account invoice lines belong to,
// synthesizing one linked to the caller default when none matches the
// detected institution.
func (r *Router) creditAccount(db *gorm.DB) (*models.Account, error) {
	if r.credit != nil {
		return r.credit, nil
	}

	if r.defaultAccount.Type == models.AccountTypeCredit {
		r.credit = &r.defaultAccount
		return r.credit, nil
	}

	credits, err := models.CreditAccountsForUser(db, r.userID)
	if err != nil {
		return nil, err
	}

	institution := normalize.ForMatch(r.options.Institution)
	for i := range credits {
		if institution != "" && normalize.ForMatch(credits[i].Institution) == institution {
			r.credit = &credits[i]
			return r.credit, nil
		}
		if institution == "" && credits[i].ParentAccountID != nil && *credits[i].ParentAccountID == r.defaultAccount.ID {
			r.credit = &credits[i]
			return r.credit, nil
		}
	}

	name := "Cartão de crédito"
	if r.options.Institution != "" {
		name = "Cartão " + r.options.Institution
	}

	synthesized := models.Account{
		UserID:          r.userID,
		Type:            models.AccountTypeCredit,
		Name:            name,
		Institution:     r.options.Institution,
		ParentAccountID: &r.defaultAccount.ID,
	}
	if err := db.Create(&synthesized).Error; err != nil {
		return nil, err
	}

	r.credit = &synthesized
	return r.credit, nil
}
