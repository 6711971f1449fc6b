package normalize

import (
	"errors"
	"strings"

	"github.com/shopspring/decimal"
)

// ErrInvalidAmount is returned for text that cannot be unambiguously read
// as a monetary amount.
var ErrInvalidAmount = errors.New("invalid amount")

// ParseMoney parses a monetary amount as it appears in Brazilian bank
// exports: Brazilian grouping ("1.234,56"), plain ASCII ("1234.56"), an
// optional leading or trailing "R$", and C/D suffixes where D marks a
// debit and therefore a negative amount.
//
// A single separator followed by exactly three digits ("1.234") is
// ambiguous between grouping and a three-decimal fraction and is rejected.
func ParseMoney(text string) (decimal.Decimal, error) {
	s := strings.ToUpper(strings.TrimSpace(text))
	if s == "" {
		return decimal.Zero, ErrInvalidAmount
	}

	negative := false

	s = strings.TrimSpace(strings.TrimPrefix(s, "R$"))
	s = strings.TrimSpace(strings.TrimSuffix(s, "R$"))

	// C/D suffix. D marks a debit and implies negative even without a
	// minus sign.
	if last := len(s) - 1; last >= 1 && (s[last] == 'C' || s[last] == 'D') {
		body := strings.TrimSpace(s[:last])
		if isMoneyBody(body) {
			negative = s[last] == 'D'
			s = body
		}
	}

	if strings.HasPrefix(s, "-") {
		negative = true
		s = strings.TrimSpace(strings.TrimPrefix(s, "-"))
	} else if strings.HasSuffix(s, "-") {
		negative = true
		s = strings.TrimSpace(strings.TrimSuffix(s, "-"))
	}
	s = strings.TrimSpace(strings.TrimPrefix(s, "+"))

	if s == "" || !isMoneyBody(s) {
		return decimal.Zero, ErrInvalidAmount
	}

	normalized, err := normalizeSeparators(s)
	if err != nil {
		return decimal.Zero, err
	}

	value, err := decimal.NewFromString(normalized)
	if err != nil {
		return decimal.Zero, ErrInvalidAmount
	}

	if negative {
		value = value.Neg()
	}
	return value, nil
}

func isMoneyBody(s string) bool {
	s = strings.TrimSpace(s)
	if s == "" {
		return false
	}
	for _, r := range s {
		if (r < '0' || r > '9') && r != '.' && r != ',' && r != '-' && r != '+' {
			return false
		}
	}
	return true
}

// normalizeSeparators rewrites grouping and decimal separators into the
// plain ASCII decimal form.
func normalizeSeparators(s string) (string, error) {
	lastDot := strings.LastIndex(s, ".")
	lastComma := strings.LastIndex(s, ",")

	switch {
	case lastDot >= 0 && lastComma >= 0:
		// Both present: the rightmost one is the decimal separator.
		if lastComma > lastDot {
			s = strings.ReplaceAll(s, ".", "")
			s = strings.Replace(s, ",", ".", 1)
		} else {
			s = strings.ReplaceAll(s, ",", "")
		}

	case lastComma >= 0:
		if strings.Count(s, ",") > 1 {
			// Multiple commas can only be grouping.
			s = strings.ReplaceAll(s, ",", "")
		} else if len(s)-lastComma-1 == 3 {
			return "", ErrInvalidAmount
		} else {
			s = strings.Replace(s, ",", ".", 1)
		}

	case lastDot >= 0:
		if strings.Count(s, ".") > 1 {
			s = strings.ReplaceAll(s, ".", "")
		} else if len(s)-lastDot-1 == 3 {
			return "", ErrInvalidAmount
		}
	}

	if strings.Contains(s, ",") || strings.Count(s, ".") > 1 {
		return "", ErrInvalidAmount
	}

	return s, nil
}
