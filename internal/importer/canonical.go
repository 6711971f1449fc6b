package importer

import (
	"strings"

	"github.com/contalivre/backend/internal/importer/normalize"
	"github.com/contalivre/backend/internal/models"
)

// composedPrefixes are description shapes where the transaction kind and
// the counterparty are joined by a separator, e.g. "Pix enviado: Maria" or
// "Compra no debito - Padaria Silva". The match is on the normalized form.
var composedPrefixes = []string{
	"PIX ENVIADO",
	"PIX RECEBIDO",
	"TED ENVIADA",
	"TED RECEBIDA",
	"DOC ENVIADO",
	"DOC RECEBIDO",
	"TRANSFERENCIA ENVIADA",
	"TRANSFERENCIA RECEBIDA",
	"COMPRA NO DEBITO",
	"COMPRA NO CREDITO",
	"COMPRA CARTAO",
	"PAGAMENTO EFETUADO",
	"PAGAMENTO RECEBIDO",
	"BOLETO PAGO",
}

// kindKeywords map a keyword found anywhere in the description to an
// inferred transaction kind when no composed pattern matches.
var kindKeywords = []string{
	"PIX", "TED", "DOC", "BOLETO", "SAQUE", "DEPOSITO",
	"COMPRA", "PAGAMENTO", "TARIFA", "JUROS", "RENDIMENTO", "ESTORNO",
}

// Canonicalize converts one parser candidate into a canonical import row.
func Canonicalize(candidate Candidate, sourceType SourceType) Row {
	description := strings.TrimSpace(normalize.FixMojibake(candidate.Description))
	kindRaw, counterpartyRaw := splitKind(description)

	row := Row{
		Date:               candidate.Date,
		Amount:             candidate.Amount,
		BalanceAfter:       candidate.BalanceAfter,
		TransactionKindRaw: kindRaw,
		CounterpartyRaw:    counterpartyRaw,
		TransactionKind:    normalize.ForMatch(kindRaw),
		Counterparty:       normalize.ForMatch(counterpartyRaw),
		SourceType:         sourceType,
		DocumentType:       candidate.DocumentType,
		Description:        description,
		NormalizedDescription: normalize.ForMatch(description),
		ExternalID:            candidate.ExternalID,
		AccountHint:           candidate.AccountHint,
		Raw:                   candidate.Raw,
	}

	row.Type = candidate.TypeHint
	if row.Type == "" {
		if candidate.Amount.IsNegative() {
			row.Type = models.TransactionExpense
		} else {
			row.Type = models.TransactionIncome
		}
	}

	row.MerchantKey = normalize.MerchantKey(counterpartyRaw)
	return row
}

// splitKind separates "Pix enviado: Maria Souza" into the transaction kind
// and the counterparty. Without a composed pattern the kind is inferred by
// keyword scan and the counterparty falls back to the whole description.
func splitKind(description string) (kind, counterparty string) {
	matchForm := normalize.ForMatch(description)

	for _, prefix := range composedPrefixes {
		if !strings.HasPrefix(matchForm, prefix) {
			continue
		}

		rest := strings.TrimSpace(matchForm[len(prefix):])
		rest = strings.TrimSpace(strings.TrimLeft(rest, ":-–"))
		if rest == "" {
			return description, description
		}

		// Cut the raw description at the same separator to keep the
		// counterparty's original casing.
		if idx := strings.IndexAny(description, ":-"); idx >= 0 && idx+1 < len(description) {
			return strings.TrimSpace(description[:idx]), strings.TrimSpace(description[idx+1:])
		}
		return prefix, rest
	}

	for _, keyword := range kindKeywords {
		if strings.Contains(matchForm, keyword) {
			return keyword, description
		}
	}

	return "", description
}
