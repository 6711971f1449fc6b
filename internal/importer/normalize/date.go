package normalize

import (
	"errors"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/contalivre/backend/internal/types"
)

// ErrInvalidDate is returned when no recognized date form matches.
var ErrInvalidDate = errors.New("invalid date")

var portugueseMonths = map[string]time.Month{
	"JANEIRO":   time.January,
	"FEVEREIRO": time.February,
	"MARCO":     time.March,
	"ABRIL":     time.April,
	"MAIO":      time.May,
	"JUNHO":     time.June,
	"JULHO":     time.July,
	"AGOSTO":    time.August,
	"SETEMBRO":  time.September,
	"OUTUBRO":   time.October,
	"NOVEMBRO":  time.November,
	"DEZEMBRO":  time.December,
}

// PortugueseMonth resolves a Portuguese month name or its three-letter
// abbreviation ("fev", "FEVEREIRO").
func PortugueseMonth(name string) (time.Month, bool) {
	name = ForMatch(name)
	if m, ok := portugueseMonths[name]; ok {
		return m, true
	}

	if len(name) >= 3 {
		prefix := name[:3]
		for full, m := range portugueseMonths {
			if strings.HasPrefix(full, prefix) {
				return m, true
			}
		}
	}

	return 0, false
}

var (
	slashShortDate = regexp.MustCompile(`^(\d{1,2})/(\d{1,2})/(\d{2})$`)
	wordMonthDate  = regexp.MustCompile(`^(\d{1,2})\s+DE\s+([A-Z]+)(?:\s+DE\s+(\d{4}))?$`)
)

// ParseFlexibleDate parses the date forms that occur in Brazilian bank
// exports: ISO (2026-02-05), slash (05/02/2026 and 05/02/26), hyphenated
// day-first (05-02-2026) and word months ("5 de fevereiro de 2026").
// Two-digit years below 70 land in the 2000s, the rest in the 1900s.
func ParseFlexibleDate(input string) (types.Date, error) {
	s := strings.TrimSpace(input)
	if s == "" {
		return types.Date{}, ErrInvalidDate
	}

	for _, layout := range []string{"2006-01-02", "02/01/2006", "02-01-2006"} {
		if t, err := time.Parse(layout, s); err == nil {
			return types.DateOf(t), nil
		}
	}

	// Two-digit years have their own pivot, Go's time package pivots at 69.
	if m := slashShortDate.FindStringSubmatch(s); m != nil {
		day, _ := strconv.Atoi(m[1])
		month, _ := strconv.Atoi(m[2])
		year, _ := strconv.Atoi(m[3])

		if year < 70 {
			year += 2000
		} else {
			year += 1900
		}

		return civil(year, month, day)
	}

	if m := wordMonthDate.FindStringSubmatch(ForMatch(s)); m != nil {
		day, _ := strconv.Atoi(m[1])
		month, ok := PortugueseMonth(m[2])
		if !ok {
			return types.Date{}, ErrInvalidDate
		}

		year := time.Now().UTC().Year()
		if m[3] != "" {
			year, _ = strconv.Atoi(m[3])
		}

		return civil(year, int(month), day)
	}

	return types.Date{}, ErrInvalidDate
}

// civil validates the calendar day, rejecting normalized overflow such as
// 31/02 becoming March 3rd.
func civil(year, month, day int) (types.Date, error) {
	if month < 1 || month > 12 || day < 1 || day > 31 {
		return types.Date{}, ErrInvalidDate
	}

	t := time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)
	if t.Day() != day || int(t.Month()) != month {
		return types.Date{}, ErrInvalidDate
	}

	return types.DateOf(t), nil
}
