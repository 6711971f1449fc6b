// Package rules applies the user's category rules to canonical import
// rows. Evaluation order is ascending priority, ties broken by creation
// order; the first matching rule wins.
package rules

import (
	"regexp"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/contalivre/backend/internal/importer"
	"github.com/contalivre/backend/internal/importer/normalize"
	"github.com/contalivre/backend/internal/models"
)

// Engine holds the user's rules with their regex patterns compiled once
// per batch.
type Engine struct {
	rules []compiledRule
}

type compiledRule struct {
	rule  models.CategoryRule
	regex *regexp.Regexp
}

// NewEngine compiles the rules. Rules whose pattern does not compile are
// skipped, they are rejected at creation time and can only occur here
// through manual database edits.
func NewEngine(userRules []models.CategoryRule) *Engine {
	engine := &Engine{}

	for _, rule := range userRules {
		if !rule.Enabled {
			continue
		}

		compiled := compiledRule{rule: rule}
		if rule.MatchType == models.RuleMatchRegex {
			regex, err := regexp.Compile("(?i)" + rule.Pattern)
			if err != nil {
				log.Warn().Str("rule", rule.ID.String()).Str("pattern", rule.Pattern).Msg("skipping rule with invalid pattern")
				continue
			}
			compiled.regex = regex
		}

		engine.rules = append(engine.rules, compiled)
	}

	return engine
}

// Apply categorizes one row. A manual category set by the client always
// wins. The returned bool reports whether a rule assigned the category.
func (e *Engine) Apply(row *importer.Row) bool {
	if row.ManualCategory {
		return false
	}

	for _, compiled := range e.rules {
		if compiled.matches(*row) {
			row.CategoryID = compiled.rule.CategoryID
			return true
		}
	}

	return false
}

func (c compiledRule) matches(row importer.Row) bool {
	rule := c.rule

	if rule.AccountID != nil && *rule.AccountID != row.AccountID {
		return false
	}

	abs := row.AmountCents()
	if abs < 0 {
		abs = -abs
	}
	if rule.MinAmountCents != nil && abs < *rule.MinAmountCents {
		return false
	}
	if rule.MaxAmountCents != nil && abs > *rule.MaxAmountCents {
		return false
	}

	// Rules match the counterparty first and fall back to the whole
	// description, both in normalized form.
	text := row.Counterparty
	if text == "" {
		text = row.NormalizedDescription
	}

	switch rule.MatchType {
	case models.RuleMatchContains:
		pattern := normalize.ForMatch(rule.Pattern)
		return strings.Contains(text, pattern) || strings.Contains(row.NormalizedDescription, pattern)
	case models.RuleMatchRegex:
		return c.regex.MatchString(text) || c.regex.MatchString(row.NormalizedDescription)
	}

	return false
}
