package delimited

import (
	"strings"

	"github.com/contalivre/backend/internal/importer/normalize"
)

// Mapping assigns file columns to canonical row fields. Values are column
// names from the header.
type Mapping struct {
	Date         string `json:"date,omitempty"`
	Description  string `json:"description,omitempty"`
	History      string `json:"history,omitempty"`
	Amount       string `json:"amount,omitempty"`
	Debit        string `json:"debit,omitempty"`
	Credit       string `json:"credit,omitempty"`
	Type         string `json:"type,omitempty"`
	Account      string `json:"account,omitempty"`
	BalanceAfter string `json:"balanceAfter,omitempty"`
}

// HasAmount reports whether the mapping can produce an amount, either from
// a single signed column or from a debit/credit pair.
func (m Mapping) HasAmount() bool {
	return m.Amount != "" || m.Debit != "" || m.Credit != ""
}

// Complete reports whether all required fields are assigned.
func (m Mapping) Complete() bool {
	return m.Date != "" && m.Description != "" && m.HasAmount()
}

// MissingRequired lists the required fields that are not assigned.
func (m Mapping) MissingRequired() []string {
	missing := []string{}
	if m.Date == "" {
		missing = append(missing, "date")
	}
	if m.Description == "" {
		missing = append(missing, "description")
	}
	if !m.HasAmount() {
		missing = append(missing, "amount")
	}
	return missing
}

// UnknownColumns returns mapping values that name no existing column.
func (m Mapping) UnknownColumns(columns []string) []string {
	known := make(map[string]bool, len(columns))
	for _, column := range columns {
		known[column] = true
	}

	var unknown []string
	for _, assigned := range []string{m.Date, m.Description, m.History, m.Amount, m.Debit, m.Credit, m.Type, m.Account, m.BalanceAfter} {
		if assigned != "" && !known[assigned] {
			unknown = append(unknown, assigned)
		}
	}
	return unknown
}

// Confidence grades a suggested mapping.
type Confidence struct {
	Level           string   `json:"level"` // alta, media or baixa
	MissingRequired []string `json:"missingRequired"`
}

// Header synonyms, in normalized form. Exact token matches are preferred
// over contains matches when grading confidence.
var headerSynonyms = map[string][]string{
	"date":         {"DATA", "DATA MOV", "DATA MOVIMENTO", "DATA LANCAMENTO", "DATE", "DT", "FECHA"},
	"description":  {"DESCRICAO", "DESCRIPTION", "LANCAMENTO", "MEMO", "DETALHES", "NOME", "TITULO", "ESTABELECIMENTO"},
	"history":      {"HISTORICO", "HISTORY", "NARRATIVA"},
	"amount":       {"VALOR", "AMOUNT", "MONTANTE", "QUANTIA", "IMPORTE", "VALOR (R$)"},
	"debit":        {"DEBITO", "DEBIT", "SAIDA", "SAIDAS", "CARGO"},
	"credit":       {"CREDITO", "CREDIT", "ENTRADA", "ENTRADAS", "ABONO"},
	"type":         {"TIPO", "TYPE", "TIPO LANCAMENTO", "OPERACAO"},
	"account":      {"CONTA", "ACCOUNT", "AGENCIA CONTA"},
	"balanceAfter": {"SALDO", "BALANCE", "SALDO (R$)", "SALDO FINAL"},
}

// SuggestMapping infers which header column holds each canonical field and
// grades the result: alta when date, description and amount were all
// matched by exact synonyms, media when a contains match or a debit/credit
// pair had to fill in, baixa when a required field is missing.
func SuggestMapping(columns []string) (Mapping, Confidence) {
	assigned := make(map[string]string)
	exact := make(map[string]bool)
	used := make(map[string]bool)

	normalized := make([]string, len(columns))
	for i, column := range columns {
		normalized[i] = normalize.ForMatch(column)
	}

	// Exact synonym matches first, so that "VALOR" beats "SALDO VALOR".
	for field, synonyms := range headerSynonyms {
		for i, column := range normalized {
			if used[columns[i]] || assigned[field] != "" {
				continue
			}
			for _, synonym := range synonyms {
				if column == synonym {
					assigned[field] = columns[i]
					exact[field] = true
					used[columns[i]] = true
					break
				}
			}
		}
	}

	for field, synonyms := range headerSynonyms {
		if assigned[field] != "" {
			continue
		}
		for i, column := range normalized {
			if used[columns[i]] {
				continue
			}
			for _, synonym := range synonyms {
				if strings.Contains(column, synonym) {
					assigned[field] = columns[i]
					used[columns[i]] = true
					break
				}
			}
			if assigned[field] != "" {
				break
			}
		}
	}

	mapping := Mapping{
		Date:         assigned["date"],
		Description:  assigned["description"],
		History:      assigned["history"],
		Amount:       assigned["amount"],
		Debit:        assigned["debit"],
		Credit:       assigned["credit"],
		Type:         assigned["type"],
		Account:      assigned["account"],
		BalanceAfter: assigned["balanceAfter"],
	}

	// A history column can stand in for a missing description.
	if mapping.Description == "" && mapping.History != "" {
		mapping.Description = mapping.History
	}

	confidence := Confidence{MissingRequired: mapping.MissingRequired()}
	switch {
	case len(confidence.MissingRequired) > 0:
		confidence.Level = "baixa"
	case exact["date"] && exact["description"] && (exact["amount"] || (exact["debit"] && exact["credit"])):
		confidence.Level = "alta"
	default:
		confidence.Level = "media"
	}

	return mapping, confidence
}
