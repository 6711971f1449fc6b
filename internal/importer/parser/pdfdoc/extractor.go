package pdfdoc

import (
	"bytes"
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/ledongthuc/pdf"
)

// TextExtractor extracts the plain text of a PDF document. Extract must
// honor the context deadline.
type TextExtractor interface {
	Extract(ctx context.Context, data []byte, password string) (string, error)
}

// readerExtractor is the primary extraction path, built on the pdf reader
// library. It walks all pages and concatenates their plain text.
type readerExtractor struct{}

func (readerExtractor) Extract(ctx context.Context, data []byte, password string) (string, error) {
	type extraction struct {
		text string
		err  error
	}

	done := make(chan extraction, 1)
	go func() {
		// The reader panics on some malformed cross-reference tables.
		defer func() {
			if r := recover(); r != nil {
				done <- extraction{err: fmt.Errorf("text extraction panicked: %v", r)}
			}
		}()

		text, err := extractAllPages(data, password)
		done <- extraction{text: text, err: err}
	}()

	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case result := <-done:
		return result.text, result.err
	}
}

func extractAllPages(data []byte, password string) (string, error) {
	// With a nil password callback an encrypted document fails with
	// ErrInvalidPassword after the implicit empty-password attempt, which
	// the caller maps to the password-required code.
	var passwords func() string
	if password != "" {
		asked := false
		passwords = func() string {
			if asked {
				return ""
			}
			asked = true
			return password
		}
	}

	reader, err := pdf.NewReaderEncrypted(bytes.NewReader(data), int64(len(data)), passwords)
	if err != nil {
		return "", err
	}

	var b strings.Builder
	for i := 1; i <= reader.NumPage(); i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}

		text, err := page.GetPlainText(nil)
		if err != nil {
			continue
		}
		b.WriteString(text)
		b.WriteString("\n")
	}

	return b.String(), nil
}

// literalStringExtractor is the fallback path for simple documents whose
// content streams are uncompressed: it collects the literal strings fed to
// the text-showing operators.
type literalStringExtractor struct{}

var literalShowRe = regexp.MustCompile(`\(((?:\\.|[^\\()])*)\)\s*T[jJ]`)

var literalUnescaper = strings.NewReplacer(`\(`, "(", `\)`, ")", `\\`, `\`, `\n`, "\n", `\r`, "\r", `\t`, "\t")

func (literalStringExtractor) Extract(ctx context.Context, data []byte, _ string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	matches := literalShowRe.FindAllSubmatch(data, -1)
	if len(matches) == 0 {
		return "", fmt.Errorf("the document contains no literal text strings")
	}

	var b strings.Builder
	for _, match := range matches {
		b.WriteString(literalUnescaper.Replace(string(match[1])))
		b.WriteString("\n")
	}

	return b.String(), nil
}
