package importer

import "fmt"

// Error codes surfaced to clients. User-facing messages are translatable
// strings keyed by these codes; TechnicalReason is for operators only.
const (
	CodeInvalidContentType    = "invalid_content_type"
	CodeFileMissing           = "file_missing"
	CodeFileEmpty             = "file_empty"
	CodeFileSizeLimitExceeded = "file_size_limit_exceeded"
	CodeInvalidPayload        = "invalid_payload"
	CodeRowsLimitExceeded     = "rows_limit_exceeded"

	CodeInvalidMapping        = "invalid_mapping"
	CodeInvalidMappingJSON    = "invalid_mapping_json"
	CodeInvalidMappingColumns = "invalid_mapping_columns"

	CodePDFPasswordRequired      = "pdf_password_required"
	CodePDFPasswordInvalid       = "pdf_password_invalid"
	CodePDFNoTransactions        = "pdf_no_transactions"
	CodeUnsupportedIssuerProfile = "unsupported_issuer_profile"
	CodeParserUnavailable        = "source_parser_unavailable"

	CodeParseFailed  = "import_parse_failed"
	CodeCommitFailed = "import_commit_failed"
)

// Error is a typed pipeline failure carrying a stable code.
type Error struct {
	Code              string
	TechnicalReason   string
	SupportedProfiles []string
	MissingColumns    []string
}

func (e *Error) Error() string {
	if e.TechnicalReason == "" {
		return e.Code
	}
	return fmt.Sprintf("%s: %s", e.Code, e.TechnicalReason)
}

// NewError returns a pipeline error with the given code.
func NewError(code string, technicalReason string) *Error {
	return &Error{Code: code, TechnicalReason: technicalReason}
}
