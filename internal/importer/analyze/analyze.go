// Package analyze grades parsed rows before commit: each input row becomes
// an ok, ignored or error diagnostic, and ok rows receive the stable commit
// index that the commit step uses to address per-row overrides.
package analyze

import (
	"strings"

	"github.com/shopspring/decimal"

	"github.com/contalivre/backend/internal/importer"
	"github.com/contalivre/backend/internal/importer/normalize"
	"github.com/contalivre/backend/internal/importer/parser/delimited"
	"github.com/contalivre/backend/internal/models"
)

// Row statuses.
const (
	StatusOK      = "ok"
	StatusIgnored = "ignored"
	StatusError   = "error"
)

// Diagnostic reasons.
const (
	ReasonMissingDate        = "missing_date"
	ReasonInvalidDate        = "invalid_date"
	ReasonMissingAmount      = "missing_amount"
	ReasonInvalidAmount      = "invalid_amount"
	ReasonMissingDescription = "missing_description"
	ReasonZeroAmount         = "zero_amount"
	ReasonSaldoLine          = "saldo_line"
	ReasonUnmappableType     = "unmappable_type"
)

// PreviewSize is the number of diagnostic entries returned to the client.
const PreviewSize = 50

// Entry is the diagnostic for one input row.
type Entry struct {
	Index       int           `json:"index"`
	Status      string        `json:"status"`
	Reason      string        `json:"reason,omitempty"`
	CommitIndex *int          `json:"commitIndex,omitempty"`
	Row         *importer.Row `json:"row,omitempty"`
}

// Report aggregates the diagnostics of a whole file.
type Report struct {
	TotalRows   int            `json:"totalRows"`
	ValidRows   int            `json:"validRows"`
	IgnoredRows int            `json:"ignoredRows"`
	ErrorRows   int            `json:"errorRows"`
	Reasons     map[string]int `json:"reasons"`
	Entries     []Entry        `json:"-"`

	// Rows holds the ok rows in commit order: Rows[i] is the row that
	// commit index i addresses.
	Rows []importer.Row `json:"-"`
}

// Preview returns the first entries of the report.
func (r *Report) Preview() []Entry {
	if len(r.Entries) <= PreviewSize {
		return r.Entries
	}
	return r.Entries[:PreviewSize]
}

func newReport() *Report {
	return &Report{Reasons: map[string]int{}}
}

func (r *Report) ok(index int, row importer.Row) {
	commitIndex := len(r.Rows)
	r.Rows = append(r.Rows, row)
	r.ValidRows++
	entryRow := row
	r.Entries = append(r.Entries, Entry{
		Index:       index,
		Status:      StatusOK,
		CommitIndex: &commitIndex,
		Row:         &entryRow,
	})
}

func (r *Report) ignored(index int, reason string) {
	r.IgnoredRows++
	r.Reasons[reason]++
	r.Entries = append(r.Entries, Entry{Index: index, Status: StatusIgnored, Reason: reason})
}

func (r *Report) errored(index int, reason string) {
	r.ErrorRows++
	r.Reasons[reason]++
	r.Entries = append(r.Entries, Entry{Index: index, Status: StatusError, Reason: reason})
}

// Candidates grades rows that already came out of a structured parser.
func Candidates(candidates []importer.Candidate, sourceType importer.SourceType) *Report {
	report := newReport()
	report.TotalRows = len(candidates)

	for i, candidate := range candidates {
		grade(report, i, candidate, sourceType)
	}

	return report
}

// Delimited maps each parsed row through the column mapping and grades the
// result.
func Delimited(result *delimited.Result, mapping delimited.Mapping, sourceType importer.SourceType) *Report {
	report := newReport()
	report.TotalRows = len(result.Rows)

	for i, row := range result.Rows {
		candidate, reason := mapRow(row, mapping)
		if reason != "" {
			report.errored(i, reason)
			continue
		}
		grade(report, i, candidate, sourceType)
	}

	return report
}

// grade applies the content checks that are common to all sources.
func grade(report *Report, index int, candidate importer.Candidate, sourceType importer.SourceType) {
	switch {
	case candidate.Date.IsZero():
		report.errored(index, ReasonMissingDate)
	case strings.TrimSpace(candidate.Description) == "":
		report.ignored(index, ReasonMissingDescription)
	case isSaldoLine(candidate.Description):
		report.ignored(index, ReasonSaldoLine)
	case candidate.Amount.IsZero():
		report.ignored(index, ReasonZeroAmount)
	default:
		report.ok(index, importer.Canonicalize(candidate, sourceType))
	}
}

func isSaldoLine(description string) bool {
	normalized := normalize.ForMatch(description)
	return strings.HasPrefix(normalized, "SALDO ") || normalized == "SALDO"
}

// mapRow resolves one delimited row through the column mapping. Returned
// reasons are error-level; content-level checks run afterwards in grade.
func mapRow(row map[string]string, mapping delimited.Mapping) (importer.Candidate, string) {
	candidate := importer.Candidate{Raw: row}

	dateValue := strings.TrimSpace(row[mapping.Date])
	if dateValue == "" {
		return candidate, ReasonMissingDate
	}

	date, err := normalize.ParseFlexibleDate(dateValue)
	if err != nil {
		return candidate, ReasonInvalidDate
	}
	candidate.Date = date

	amount, reason := mapAmount(row, mapping)
	if reason != "" {
		return candidate, reason
	}
	candidate.Amount = amount

	candidate.Description = strings.TrimSpace(row[mapping.Description])
	if candidate.Description == "" && mapping.History != "" {
		candidate.Description = strings.TrimSpace(row[mapping.History])
	}

	if mapping.Type != "" {
		hint, ok := typeHint(row[mapping.Type])
		if !ok {
			return candidate, ReasonUnmappableType
		}

		candidate.TypeHint = hint
		if hint == models.TransactionExpense && candidate.Amount.IsPositive() {
			candidate.Amount = candidate.Amount.Neg()
		}
	}

	if mapping.Account != "" {
		candidate.AccountHint = strings.TrimSpace(row[mapping.Account])
	}

	if mapping.BalanceAfter != "" {
		if balance, err := normalize.ParseMoney(row[mapping.BalanceAfter]); err == nil {
			candidate.BalanceAfter = &balance
		}
	}

	return candidate, ""
}

// mapAmount reads the signed amount column, or combines a debit/credit
// pair where debits are negative.
func mapAmount(row map[string]string, mapping delimited.Mapping) (decimal.Decimal, string) {
	if mapping.Amount != "" {
		value := strings.TrimSpace(row[mapping.Amount])
		if value == "" {
			return decimal.Zero, ReasonMissingAmount
		}

		amount, err := normalize.ParseMoney(value)
		if err != nil {
			return decimal.Zero, ReasonInvalidAmount
		}
		return amount, ""
	}

	debit := strings.TrimSpace(row[mapping.Debit])
	credit := strings.TrimSpace(row[mapping.Credit])
	if debit == "" && credit == "" {
		return decimal.Zero, ReasonMissingAmount
	}

	amount := decimal.Zero
	if debit != "" {
		parsed, err := normalize.ParseMoney(debit)
		if err != nil {
			return decimal.Zero, ReasonInvalidAmount
		}
		amount = amount.Sub(parsed.Abs())
	}
	if credit != "" {
		parsed, err := normalize.ParseMoney(credit)
		if err != nil {
			return decimal.Zero, ReasonInvalidAmount
		}
		amount = amount.Add(parsed.Abs())
	}

	return amount, ""
}

var typeHints = map[string]models.TransactionType{
	"D":             models.TransactionExpense,
	"DEBITO":        models.TransactionExpense,
	"DEBIT":         models.TransactionExpense,
	"SAIDA":         models.TransactionExpense,
	"DESPESA":       models.TransactionExpense,
	"C":             models.TransactionIncome,
	"CREDITO":       models.TransactionIncome,
	"CREDIT":        models.TransactionIncome,
	"ENTRADA":       models.TransactionIncome,
	"RECEITA":       models.TransactionIncome,
	"TRANSFERENCIA": models.TransactionTransfer,
	"TRANSFER":      models.TransactionTransfer,
}

func typeHint(value string) (models.TransactionType, bool) {
	normalized := normalize.ForMatch(value)
	if normalized == "" {
		return "", true
	}

	hint, ok := typeHints[normalized]
	return hint, ok
}
