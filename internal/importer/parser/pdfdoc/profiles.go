package pdfdoc

import (
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/ryanuber/go-glob"

	"github.com/contalivre/backend/internal/importer"
	"github.com/contalivre/backend/internal/importer/normalize"
	"github.com/contalivre/backend/internal/types"
)

// profile is one issuer layout: how to recognize the document and how to
// extract transaction lines from its text.
type profile struct {
	name         string
	institution  string
	documentType importer.DocumentType

	// markers classify the document: every group must match the normalized
	// text through at least one of its alternatives.
	markers [][]string

	// denylist drops formatting and footer lines by glob pattern, matched
	// against the normalized line.
	denylist []string

	invoice bool
}

// Profile order matters: invoice markers are more specific than statement
// markers for the same issuer and must be tried first.
var profiles = []profile{
	{
		name:         "inter_invoice",
		institution:  "inter",
		documentType: importer.DocumentCCInvoice,
		markers:      [][]string{{"BANCO INTER", "INTER"}, {"FATURA"}},
		denylist: append([]string{
			"LIMITE*",
			"VENCIMENTO*",
			"PAGAMENTO MINIMO*",
		}, commonDenylist...),
		invoice: true,
	},
	{
		name:         "inter_statement",
		institution:  "inter",
		documentType: importer.DocumentBankStatement,
		markers:      [][]string{{"BANCO INTER", "INTER"}, {"EXTRATO"}},
		denylist:     commonDenylist,
	},
	{
		name:         "mercado_pago_invoice",
		institution:  "mercado_pago",
		documentType: importer.DocumentCCInvoice,
		markers:      [][]string{{"MERCADO PAGO"}, {"FATURA"}},
		denylist: append([]string{
			"LIMITE*",
			"VENCIMENTO*",
			"PAGAMENTO MINIMO*",
		}, commonDenylist...),
		invoice: true,
	},
	{
		name:         "mercado_pago_statement",
		institution:  "mercado_pago",
		documentType: importer.DocumentBankStatement,
		markers:      [][]string{{"MERCADO PAGO"}, {"EXTRATO", "DETALHE DE MOVIMENTACOES"}},
		denylist:     commonDenylist,
	},
	{
		name:         "nubank_invoice",
		institution:  "nubank",
		documentType: importer.DocumentCCInvoice,
		markers:      [][]string{{"NUBANK", "NU PAGAMENTOS"}, {"FATURA"}},
		denylist: append([]string{
			"LIMITE*",
			"VENCIMENTO*",
			"PAGAMENTO MINIMO*",
		}, commonDenylist...),
		invoice: true,
	},
}

var commonDenylist = []string{
	"SALDO DO DIA*",
	"SALDO*",
	"TOTAL*",
	"SUBTOTAL*",
	"*-- * OF * --*",
	"*PAGINA * DE *",
	"OUVIDORIA*",
	"SAC *",
	"CENTRAL DE ATENDIMENTO*",
	"CNPJ*",
}

// SupportedProfiles lists the issuer profiles the classifier recognizes.
func SupportedProfiles() []string {
	names := make([]string, len(profiles))
	for i, p := range profiles {
		names[i] = p.name
	}
	return names
}

// classify matches the normalized document text against the closed profile
// set.
func classify(normalizedText string) (profile, bool) {
	for _, p := range profiles {
		if p.matches(normalizedText) {
			return p, true
		}
	}
	return profile{}, false
}

func (p profile) matches(normalizedText string) bool {
	for _, group := range p.markers {
		found := false
		for _, marker := range group {
			if strings.Contains(normalizedText, marker) {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

func (p profile) denied(normalizedLine string) bool {
	for _, pattern := range p.denylist {
		if glob.Glob(pattern, normalizedLine) {
			return true
		}
	}
	return false
}

var (
	moneyTokenRe = regexp.MustCompile(`[-+]?\s*(?:R\$\s*)?\d{1,3}(?:\.\d{3})*,\d{2}`)
	inlineDateRe = regexp.MustCompile(`^(\d{1,2})/(\d{1,2})(?:/(\d{2,4}))?\s+`)
	monthDayRe   = regexp.MustCompile(`^(\d{1,2})\s+([A-Z]{3,9})\s+`)
	dueDateRe    = regexp.MustCompile(`VENCIMENTO:?\s*(\d{1,2}/\d{1,2}/\d{4}|\d{1,2} DE [A-Z]+ DE \d{4})`)
	positiveRe   = regexp.MustCompile(`ESTORNO|CREDITO|DEVOLUCAO|PAGAMENTO RECEBIDO`)
)

// extract walks the document lines and emits transaction candidates
// according to the profile's line rules.
func (p profile) extract(lines []string) ([]importer.Candidate, map[string]string) {
	metadata := map[string]string{"institution": p.institution}

	dueDate := types.Date{}
	if p.invoice {
		dueDate = findDueDate(lines)
		if !dueDate.IsZero() {
			metadata["dueDate"] = dueDate.String()
		}
	}

	var candidates []importer.Candidate
	currentDate := types.Date{}

	for _, rawLine := range lines {
		line := strings.TrimSpace(rawLine)
		if line == "" {
			continue
		}

		normalized := normalize.ForMatch(line)
		if p.denied(normalized) {
			continue
		}

		// A bare date line is a per-day header: following lines inherit it.
		if date, err := normalize.ParseFlexibleDate(line); err == nil {
			currentDate = date
			continue
		}

		date, remainder, ok := p.lineDate(normalized, dueDate)
		if !ok {
			if currentDate.IsZero() {
				continue
			}
			date, remainder = currentDate, normalized
		}

		token, description := lastMoneyToken(remainder)
		if token == "" || description == "" {
			continue
		}

		amount, err := normalize.ParseMoney(token)
		if err != nil {
			continue
		}

		if p.invoice {
			amount = amount.Abs()
			if !positiveRe.MatchString(normalized) {
				amount = amount.Neg()
			}
		}

		candidates = append(candidates, importer.Candidate{
			Date:         date,
			Amount:       amount,
			Description:  description,
			DocumentType: p.documentType,
			Raw: map[string]string{
				"line":    line,
				"profile": p.name,
			},
		})
	}

	return candidates, metadata
}

// lineDate extracts the inline date prefix of a transaction line. Invoice
// lines carry no year; it is inferred from the due date, rolling the year
// back when the line's month is greater than the due month.
func (p profile) lineDate(normalizedLine string, dueDate types.Date) (types.Date, string, bool) {
	if m := inlineDateRe.FindStringSubmatch(normalizedLine); m != nil {
		day, _ := strconv.Atoi(m[1])
		month, _ := strconv.Atoi(m[2])

		var date types.Date
		var err error
		if m[3] != "" {
			date, err = normalize.ParseFlexibleDate(strings.TrimSpace(inlineDateRe.FindString(normalizedLine)))
		} else {
			date, err = inferYear(day, time.Month(month), dueDate)
		}
		if err != nil {
			return types.Date{}, "", false
		}

		return date, strings.TrimSpace(normalizedLine[len(m[0]):]), true
	}

	if m := monthDayRe.FindStringSubmatch(normalizedLine); m != nil {
		month, ok := normalize.PortugueseMonth(m[2])
		if !ok {
			return types.Date{}, "", false
		}

		day, _ := strconv.Atoi(m[1])
		date, err := inferYear(day, month, dueDate)
		if err != nil {
			return types.Date{}, "", false
		}

		return date, strings.TrimSpace(normalizedLine[len(m[0]):]), true
	}

	return types.Date{}, "", false
}

func inferYear(day int, month time.Month, dueDate types.Date) (types.Date, error) {
	year := time.Now().UTC().Year()
	if !dueDate.IsZero() {
		year = dueDate.Time().Year()
		if month > dueDate.Time().Month() {
			year--
		}
	}

	t := time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
	if t.Day() != day || t.Month() != month {
		return types.Date{}, normalize.ErrInvalidDate
	}
	return types.DateOf(t), nil
}

// lastMoneyToken returns the rightmost monetary token of the line and the
// text before it, which is the description.
func lastMoneyToken(line string) (token, description string) {
	matches := moneyTokenRe.FindAllStringIndex(line, -1)
	if len(matches) == 0 {
		return "", ""
	}

	last := matches[len(matches)-1]
	return strings.TrimSpace(line[last[0]:last[1]]), strings.TrimSpace(line[:last[0]])
}

func findDueDate(lines []string) types.Date {
	for _, line := range lines {
		m := dueDateRe.FindStringSubmatch(normalize.ForMatch(line))
		if m == nil {
			continue
		}
		if date, err := normalize.ParseFlexibleDate(m[1]); err == nil {
			return date
		}
	}
	return types.Date{}
}
