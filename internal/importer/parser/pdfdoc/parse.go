// Package pdfdoc parses issuer PDF statements and credit card invoices.
// Text extraction is attempted with the PDF reader first and falls back to
// a literal-string scan for simple uncompressed documents; a closed set of
// issuer profiles then drives line extraction.
package pdfdoc

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/ledongthuc/pdf"

	"github.com/contalivre/backend/internal/importer"
	"github.com/contalivre/backend/internal/importer/normalize"
)

// ExtractionTimeout bounds text extraction; runaway documents surface as
// parser-unavailable instead of hanging the request.
const ExtractionTimeout = 12 * time.Second

var (
	primary  TextExtractor = readerExtractor{}
	fallback TextExtractor = literalStringExtractor{}
)

// Parse extracts the text of a PDF document and runs the issuer-profile
// line extractor over it.
func Parse(ctx context.Context, data []byte, password string) (*importer.ParseResult, error) {
	ctx, cancel := context.WithTimeout(ctx, ExtractionTimeout)
	defer cancel()

	text, err := primary.Extract(ctx, data, password)
	if err != nil {
		if errors.Is(err, pdf.ErrInvalidPassword) {
			if password == "" {
				return nil, importer.NewError(importer.CodePDFPasswordRequired, "the document is encrypted and no password was given")
			}
			return nil, importer.NewError(importer.CodePDFPasswordInvalid, "the document rejected the given password")
		}

		if ctx.Err() != nil {
			return nil, importer.NewError(importer.CodeParserUnavailable, "text extraction exceeded its deadline")
		}

		text, err = fallback.Extract(ctx, data, password)
		if err != nil {
			return nil, importer.NewError(importer.CodeParserUnavailable, err.Error())
		}
	}

	return parseText(text)
}

func parseText(text string) (*importer.ParseResult, error) {
	lines := strings.Split(text, "\n")

	issuer, ok := classify(normalize.ForMatch(text))
	if !ok {
		return nil, &importer.Error{
			Code:              importer.CodeUnsupportedIssuerProfile,
			TechnicalReason:   "the document matches no known issuer layout",
			SupportedProfiles: SupportedProfiles(),
		}
	}

	candidates, metadata := issuer.extract(lines)
	if len(candidates) == 0 {
		return nil, importer.NewError(importer.CodePDFNoTransactions, "no transaction lines were recognized")
	}

	return &importer.ParseResult{
		SourceType:    importer.SourcePDF,
		DocumentType:  issuer.documentType,
		IssuerProfile: issuer.name,
		Candidates:    candidates,
		Metadata:      metadata,
	}, nil
}
