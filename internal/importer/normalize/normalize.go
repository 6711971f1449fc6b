// Package normalize folds heterogeneous statement text into the canonical
// forms the import pipeline matches on: uppercase diacritic-free strings,
// merchant keys and parsed Brazilian dates and amounts.
package normalize

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// MerchantKeyNone is the sentinel merchant key for rows without a usable
// merchant.
const MerchantKeyNone = "transacao"

var stripMarks = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

// ForMatch returns the canonical matching form of s: mojibake repaired,
// diacritics stripped, uppercased, whitespace collapsed. It is used for
// matching only and never stored as the display description.
func ForMatch(s string) string {
	s = FixMojibake(s)

	folded, _, err := transform.String(stripMarks, s)
	if err != nil {
		folded = s
	}

	return strings.Join(strings.Fields(strings.ToUpper(folded)), " ")
}

// FixMojibake repairs strings whose UTF-8 bytes were decoded as an 8-bit
// charset somewhere between the bank export and the upload ("café" for
// "café"). The repair re-encodes every rune as its windows-1252 byte and
// reinterprets the bytes as UTF-8; it is only applied when that round trip
// produces valid UTF-8 with fewer runes.
func FixMojibake(s string) string {
	if !strings.ContainsAny(s, "ÃÂâ€œž") {
		return s
	}

	b := make([]byte, 0, len(s))
	for _, r := range s {
		if r < utf8.RuneSelf {
			b = append(b, byte(r))
			continue
		}

		eb, ok := charmap.Windows1252.EncodeRune(r)
		if !ok {
			return s
		}
		b = append(b, eb)
	}

	if utf8.Valid(b) && utf8.RuneCount(b) < utf8.RuneCountInString(s) {
		return string(b)
	}

	return s
}

// noiseTokens are generic transaction words that carry no merchant
// information and are dropped when building merchant keys.
var noiseTokens = map[string]bool{
	"PAGAMENTO":     true,
	"PGTO":          true,
	"PAG":           true,
	"COMPRA":        true,
	"CARTAO":        true,
	"CREDITO":       true,
	"DEBITO":        true,
	"PIX":           true,
	"TED":           true,
	"DOC":           true,
	"TRANSFERENCIA": true,
	"TRANSF":        true,
	"ENVIADO":       true,
	"ENVIADA":       true,
	"RECEBIDO":      true,
	"RECEBIDA":      true,
	"NO":            true,
	"NA":            true,
	"DE":            true,
	"DA":            true,
	"DO":            true,
	"EM":            true,
	"PARA":          true,
	"LTDA":          true,
	"FATURA":        true,
	"PARCELA":       true,
}

// MerchantKey derives a stable short vendor key from free-form transaction
// text. Generic noise tokens and numeric suffixes are removed so that
// "COMPRA NO DEBITO - PADARIA SILVA 03/12" and "PADARIA SILVA" produce the
// same key. Returns MerchantKeyNone when nothing usable remains.
func MerchantKey(s string) string {
	var kept []string
	for _, token := range strings.Fields(ForMatch(s)) {
		token = strings.TrimRight(token, "0123456789/*-.")
		if token == "" || noiseTokens[token] {
			continue
		}
		if !strings.ContainsFunc(token, unicode.IsLetter) {
			continue
		}

		kept = append(kept, token)
		if len(kept) == 3 {
			break
		}
	}

	if len(kept) == 0 {
		return MerchantKeyNone
	}

	key := strings.Join(kept, " ")
	if len(key) > 32 {
		key = strings.TrimSpace(key[:32])
	}
	return key
}
