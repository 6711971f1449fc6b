package v1

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/contalivre/backend/internal/httputil"
	"github.com/contalivre/backend/internal/importer"
	"github.com/contalivre/backend/internal/importer/analyze"
	"github.com/contalivre/backend/internal/importer/cardpay"
	"github.com/contalivre/backend/internal/importer/parser/delimited"
	"github.com/contalivre/backend/internal/importer/parser/ofx"
	"github.com/contalivre/backend/internal/importer/parser/pdfdoc"
	"github.com/contalivre/backend/internal/importer/rules"
	"github.com/contalivre/backend/internal/importer/transfer"
	"github.com/contalivre/backend/internal/models"
	"github.com/contalivre/backend/internal/telemetry"
	"github.com/contalivre/backend/internal/types"
)

// MaxFileSize is the upload limit for parse requests.
const MaxFileSize = 12 << 20

// MaxCommitRows is the row limit for a single commit.
const MaxCommitRows = 5000

// sampleRowCount is the number of raw rows returned when the client still
// has to assign a column mapping.
const sampleRowCount = 15

// sniffBytes is the prefix the content detection runs over.
const sniffBytes = 2048

var events = telemetry.New()

// RegisterImportRoutes registers the routes for imports with
// the RouterGroup that is passed.
func RegisterImportRoutes(r *gin.RouterGroup) {
	// Root group
	{
		r.OPTIONS("", OptionsImportList)
		r.GET("", GetImports)
	}

	r.OPTIONS("/parse", OptionsImportParse)
	r.POST("/parse", ParseImport)

	r.OPTIONS("/commit", OptionsImportCommit)
	r.POST("/commit", CommitImport)
}

// ParseResponse is the diagnostic preview of one uploaded file. Nothing is
// persisted by a parse, the client sends the rows back on commit.
type ParseResponse struct {
	SourceType       importer.SourceType   `json:"sourceType"`
	DocumentType     importer.DocumentType `json:"documentType,omitempty"`
	IssuerProfile    string                `json:"issuerProfile,omitempty"`
	Metadata         map[string]string     `json:"metadata,omitempty"`
	DetectedEncoding string                `json:"detectedEncoding,omitempty"`
	Separator        string                `json:"separator,omitempty"`

	NeedsMapping               bool                  `json:"needsMapping"`
	Columns                    []string              `json:"columns,omitempty"`
	SuggestedMapping           *delimited.Mapping    `json:"suggestedMapping,omitempty"`
	SuggestedMappingConfidence *delimited.Confidence `json:"suggestedMappingConfidence,omitempty"`
	AppliedMapping             *delimited.Mapping    `json:"appliedMapping,omitempty"`

	// SampleRows holds raw rows for the mapping UI when no complete
	// mapping could be applied.
	SampleRows [][]string `json:"sampleRows,omitempty"`

	TotalRows   int             `json:"totalRows"`
	ValidRows   int             `json:"validRows"`
	IgnoredRows int             `json:"ignoredRows"`
	ErrorRows   int             `json:"errorRows"`
	Reasons     map[string]int  `json:"reasons,omitempty"`
	Preview     []analyze.Entry `json:"preview,omitempty"`

	// Rows holds the canonical rows in commit order. Rows[i] is the row
	// that commitIndex i in the preview addresses.
	Rows []importer.Row `json:"rows,omitempty"`
}

// CommitRequest is the input of one commit: the canonical rows a previous
// parse returned, plus the routing options.
type CommitRequest struct {
	SourceType       importer.SourceType    `json:"sourceType"`
	FileName         string                 `json:"fileName"`
	DefaultAccountID *uuid.UUID             `json:"defaultAccountId"`
	Mapping          importer.CommitMapping `json:"mapping"`
	ApplyRules       bool                   `json:"applyRules"`
	Institution      string                 `json:"institution"`
	Rows             []importer.Row         `json:"rows"`
}

// @Summary		Allowed HTTP verbs
// @Description	Returns an empty response with the HTTP Header "allow" set to the allowed HTTP verbs
// @Tags			Imports
// @Success		204
// @Router			/v1/imports [options]
func OptionsImportList(c *gin.Context) {
	httputil.OptionsGet(c)
}

// @Summary		Allowed HTTP verbs
// @Description	Returns an empty response with the HTTP Header "allow" set to the allowed HTTP verbs
// @Tags			Imports
// @Success		204
// @Router			/v1/imports/parse [options]
func OptionsImportParse(c *gin.Context) {
	httputil.OptionsPost(c)
}

// @Summary		Allowed HTTP verbs
// @Description	Returns an empty response with the HTTP Header "allow" set to the allowed HTTP verbs
// @Tags			Imports
// @Success		204
// @Router			/v1/imports/commit [options]
func OptionsImportCommit(c *gin.Context) {
	httputil.OptionsPost(c)
}

// @Summary		List import batches
// @Description	Returns the most recent import batches of the authenticated user,
// @Description	optionally filtered by the month they were imported in
// @Tags			Imports
// @Produce		json
// @Success		200		{array}	models.ImportBatch
// @Failure		400		{object}	httputil.HTTPError
// @Param			month	query	string	false	"Month in YYYY-MM format"
// @Router			/v1/imports [get]
func GetImports(c *gin.Context) {
	userID := currentUser(c)

	var batches []models.ImportBatch
	var err error

	if monthQuery := c.Query("month"); monthQuery != "" {
		month, parseErr := types.ParseMonth(monthQuery)
		if parseErr != nil {
			httputil.NewError(c, http.StatusBadRequest, parseErr)
			return
		}
		batches, err = models.ImportBatchesInMonth(models.DB, userID, month, 50)
	} else {
		batches, err = models.ImportBatchesForUser(models.DB, userID, 50)
	}

	if err != nil {
		httputil.ErrorHandler(c, err)
		return
	}

	c.JSON(http.StatusOK, batches)
}

// @Summary		Parse an import file
// @Description	Parses an uploaded CSV, OFX or PDF file and returns the
// @Description	per-row diagnostics and the canonical rows. Nothing is
// @Description	persisted, the rows are sent back on commit.
// @Tags			Imports
// @Accept			multipart/form-data
// @Produce		json
// @Success		200			{object}	ParseResponse
// @Failure		400			{object}	httputil.HTTPError
// @Failure		413			{object}	httputil.HTTPError
// @Failure		422			{object}	httputil.HTTPError
// @Param			file		formData	file	true	"File to parse"
// @Param			mapping		formData	string	false	"Column mapping as JSON, delimited files only"
// @Param			pdfPassword	formData	string	false	"Password for encrypted PDF files"
// @Router			/v1/imports/parse [post]
func ParseImport(c *gin.Context) {
	userID := currentUser(c)

	fileHeader, err := c.FormFile("file")
	if err != nil {
		httputil.ImportError(c, importer.NewError(importer.CodeFileMissing, ""))
		return
	}

	if fileHeader.Size > MaxFileSize {
		events.ParseFailed(models.DB, userID, "", fileHeader.Filename, importer.CodeFileSizeLimitExceeded)
		httputil.ImportError(c, importer.NewError(importer.CodeFileSizeLimitExceeded, ""))
		return
	}

	file, err := fileHeader.Open()
	if err != nil {
		httputil.ErrorHandler(c, err)
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		httputil.ErrorHandler(c, err)
		return
	}

	if len(bytes.TrimSpace(data)) == 0 {
		events.ParseFailed(models.DB, userID, "", fileHeader.Filename, importer.CodeFileEmpty)
		httputil.ImportError(c, importer.NewError(importer.CodeFileEmpty, ""))
		return
	}

	sourceType := sniffSourceType(data)
	if sourceType == "" {
		events.ParseFailed(models.DB, userID, "", fileHeader.Filename, importer.CodeInvalidContentType)
		httputil.ImportError(c, importer.NewError(importer.CodeInvalidContentType, ""))
		return
	}

	events.ParseStarted(models.DB, userID, string(sourceType), fileHeader.Filename)

	var response *ParseResponse
	switch sourceType {
	case importer.SourcePDF:
		response, err = parsePDF(c, data, c.PostForm("pdfPassword"))
	case importer.SourceOFX:
		response, err = parseOFX(data)
	default:
		response, err = parseDelimited(data, c.PostForm("mapping"))
	}

	if err != nil {
		var importErr *importer.Error
		if !errors.As(err, &importErr) {
			importErr = importer.NewError(importer.CodeParseFailed, err.Error())
		}
		events.ParseFailed(models.DB, userID, string(sourceType), fileHeader.Filename, importErr.Code)
		httputil.ImportError(c, importErr)
		return
	}

	if !response.NeedsMapping {
		report := &analyze.Report{
			TotalRows:   response.TotalRows,
			ValidRows:   response.ValidRows,
			IgnoredRows: response.IgnoredRows,
			ErrorRows:   response.ErrorRows,
		}
		events.ParseFinished(models.DB, userID, string(sourceType), fileHeader.Filename, report)
	}

	c.JSON(http.StatusOK, response)
}

// parseDelimited parses a CSV-like file. A complete mapping, either the
// caller's or the suggested one, is required for grading; without one the
// response asks for a mapping and carries sample rows instead.
func parseDelimited(data []byte, mappingJSON string) (*ParseResponse, error) {
	result, err := delimited.Parse(data)
	if err != nil {
		if errors.Is(err, delimited.ErrEmptyFile) {
			return nil, importer.NewError(importer.CodeFileEmpty, "")
		}
		return nil, importer.NewError(importer.CodeInvalidContentType, err.Error())
	}

	var userMapping *delimited.Mapping
	if mappingJSON != "" {
		var mapping delimited.Mapping
		if err := json.Unmarshal([]byte(mappingJSON), &mapping); err != nil {
			return nil, importer.NewError(importer.CodeInvalidMappingJSON, err.Error())
		}

		if unknown := mapping.UnknownColumns(result.Columns); len(unknown) > 0 {
			return nil, &importer.Error{
				Code:           importer.CodeInvalidMappingColumns,
				MissingColumns: unknown,
			}
		}
		userMapping = &mapping
	}

	suggested, confidence := delimited.SuggestMapping(result.Columns)

	response := &ParseResponse{
		SourceType:                 importer.SourceCSV,
		DocumentType:               importer.DocumentBankStatement,
		DetectedEncoding:           result.DetectedEncoding,
		Separator:                  string(result.Separator),
		Columns:                    result.Columns,
		SuggestedMapping:           &suggested,
		SuggestedMappingConfidence: &confidence,
	}

	var applied *delimited.Mapping
	switch {
	case userMapping != nil && userMapping.Complete():
		applied = userMapping
	case suggested.Complete():
		applied = &suggested
	}

	if applied == nil {
		response.NeedsMapping = true
		response.TotalRows = len(result.Rows)
		response.SampleRows = result.RawRows
		if len(response.SampleRows) > sampleRowCount {
			response.SampleRows = response.SampleRows[:sampleRowCount]
		}
		return response, nil
	}

	response.AppliedMapping = applied
	fillReport(response, analyze.Delimited(result, *applied, importer.SourceCSV))
	return response, nil
}

func parseOFX(data []byte) (*ParseResponse, error) {
	result, err := ofx.Parse(data)
	if err != nil {
		return nil, err
	}

	response := &ParseResponse{
		SourceType:    importer.SourceOFX,
		DocumentType:  result.DocumentType,
		IssuerProfile: result.IssuerProfile,
		Metadata:      result.Metadata,
	}
	fillReport(response, analyze.Candidates(result.Candidates, importer.SourceOFX))
	return response, nil
}

func parsePDF(c *gin.Context, data []byte, password string) (*ParseResponse, error) {
	result, err := pdfdoc.Parse(c.Request.Context(), data, password)
	if err != nil {
		return nil, err
	}

	response := &ParseResponse{
		SourceType:    importer.SourcePDF,
		DocumentType:  result.DocumentType,
		IssuerProfile: result.IssuerProfile,
		Metadata:      result.Metadata,
	}
	fillReport(response, analyze.Candidates(result.Candidates, importer.SourcePDF))
	return response, nil
}

func fillReport(response *ParseResponse, report *analyze.Report) {
	response.TotalRows = report.TotalRows
	response.ValidRows = report.ValidRows
	response.IgnoredRows = report.IgnoredRows
	response.ErrorRows = report.ErrorRows
	response.Reasons = report.Reasons
	response.Preview = report.Preview()
	response.Rows = report.Rows
}

// sniffSourceType detects the parser family from the file bytes. An empty
// return means the content is not importable.
func sniffSourceType(data []byte) importer.SourceType {
	if bytes.HasPrefix(data, []byte("%PDF")) {
		return importer.SourcePDF
	}

	head := data
	if len(head) > sniffBytes {
		head = head[:sniffBytes]
	}

	upper := strings.ToUpper(string(head))
	if strings.Contains(upper, "OFXHEADER") || strings.Contains(upper, "<OFX") {
		return importer.SourceOFX
	}

	// Binary content that is neither PDF nor OFX is not importable.
	if bytes.IndexByte(head, 0) >= 0 {
		return ""
	}

	return importer.SourceCSV
}

// @Summary		Commit an import
// @Description	Persists the canonical rows of a previous parse as ledger
// @Description	entries. Committing the same file twice is a no-op.
// @Tags			Imports
// @Produce		json
// @Success		201		{object}	importer.CommitResult
// @Success		200		{object}	importer.CommitResult	"The file was already imported"
// @Failure		400		{object}	httputil.HTTPError
// @Failure		404
// @Param			commit	body	CommitRequest	true	"Commit request"
// @Router			/v1/imports/commit [post]
func CommitImport(c *gin.Context) {
	userID := currentUser(c)

	var request CommitRequest
	if err := httputil.BindData(c, &request); err != nil {
		return
	}

	if len(request.Rows) == 0 {
		httputil.ImportError(c, importer.NewError(importer.CodeInvalidPayload, ""))
		return
	}
	if len(request.Rows) > MaxCommitRows {
		httputil.ImportError(c, importer.NewError(importer.CodeRowsLimitExceeded, ""))
		return
	}

	var router importer.CardRouter
	if request.DefaultAccountID != nil {
		account, err := models.AccountForUser(models.DB, userID, *request.DefaultAccountID)
		if err != nil {
			httputil.ErrorHandler(c, err)
			return
		}

		// Card payments on non-credit accounts convert to transfers unless
		// the caller says otherwise.
		convert := account.Type != models.AccountTypeCredit
		if request.Mapping.ConvertCardPaymentsToTransfer != nil {
			convert = *request.Mapping.ConvertCardPaymentsToTransfer
		}

		router = cardRouterAdapter{cardpay.NewRouter(userID, account, cardpay.Options{
			ConvertToTransfer: convert,
			TargetAccountID:   request.Mapping.CardPaymentTargetAccountID,
			SkipPaymentLines:  request.Mapping.SkipCardPaymentLines,
			Institution:       request.Institution,
		})}
	}

	var categorizer importer.Categorizer
	if request.ApplyRules {
		userRules, err := models.RulesForUser(models.DB, userID)
		if err != nil {
			httputil.ErrorHandler(c, err)
			return
		}
		categorizer = rules.NewEngine(userRules)
	}

	options := importer.CommitOptions{
		SourceType:       request.SourceType,
		FileName:         request.FileName,
		DefaultAccountID: request.DefaultAccountID,
		Mapping:          request.Mapping,
		ApplyRules:       request.ApplyRules,
		Institution:      request.Institution,
		Rows:             request.Rows,
	}

	events.CommitStarted(models.DB, userID, string(request.SourceType), request.FileName, len(request.Rows))

	result, err := importer.Commit(c.Request.Context(), models.DB, userID, options, router, categorizer, transferMatcher{})
	if err != nil {
		events.CommitFailed(models.DB, userID, string(request.SourceType), request.FileName, importer.CodeCommitFailed)
		httputil.ImportError(c, importer.NewError(importer.CodeCommitFailed, err.Error()))
		return
	}

	events.CommitFinished(models.DB, userID, string(request.SourceType), request.FileName, result)

	status := http.StatusCreated
	if result.DuplicateImportSource {
		status = http.StatusOK
	}
	c.JSON(status, result)
}

// cardRouterAdapter converts the routing counters between the cardpay and
// importer packages.
type cardRouterAdapter struct {
	router *cardpay.Router
}

func (a cardRouterAdapter) Route(tx *gorm.DB, rows []importer.Row) ([]importer.Row, importer.RouteResult, error) {
	routed, result, err := a.router.Route(tx, rows)
	return routed, importer.RouteResult{
		Detected:            result.Detected,
		NotConverted:        result.NotConverted,
		SkippedPaymentLines: result.SkippedPaymentLines,
	}, err
}

// transferMatcher serializes the transfer suggestions for the committer.
type transferMatcher struct{}

func (transferMatcher) Match(db *gorm.DB, userID uuid.UUID, from, to time.Time) (int, json.RawMessage, error) {
	result, err := transfer.Match(db, userID, from, to)
	if err != nil {
		return 0, nil, err
	}

	if len(result.Suggestions) == 0 {
		return result.Created, nil, nil
	}

	suggestions, err := json.Marshal(result.Suggestions)
	if err != nil {
		return 0, nil, err
	}
	return result.Created, suggestions, nil
}
