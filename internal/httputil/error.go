package httputil

import (
	"errors"
	"net/http"
	"reflect"
	"strings"

	"github.com/gin-contrib/requestid"
	"github.com/gin-gonic/gin"
	go_sqlite "github.com/glebarez/go-sqlite"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"github.com/contalivre/backend/internal/importer"
	"github.com/contalivre/backend/internal/models"
)

// HTTPError is used for error responses that contain a body.
type HTTPError struct {
	Error string `json:"error" example:"O arquivo enviado está vazio"`
	Code  string `json:"code,omitempty" example:"file_empty"`

	// Extra detail for specific codes, see the import error taxonomy.
	SupportedIssuerProfiles []string `json:"supportedIssuerProfiles,omitempty"`
	MissingColumns          []string `json:"missingColumns,omitempty"`
	TechnicalReason         string   `json:"technicalReason,omitempty"`
}

// NewError creates an HTTPError instance and returns it.
func NewError(c *gin.Context, status int, err error) {
	c.JSON(status, HTTPError{Error: err.Error()})
}

// User-facing messages by error code. The technical reason is kept out of
// these generic paths.
var messages = map[string]string{
	importer.CodeInvalidContentType:       "O tipo do arquivo enviado não é suportado",
	importer.CodeFileMissing:              "Nenhum arquivo foi enviado",
	importer.CodeFileEmpty:                "O arquivo enviado está vazio",
	importer.CodeFileSizeLimitExceeded:    "O arquivo enviado excede o tamanho máximo de 12 MiB",
	importer.CodeInvalidPayload:           "O corpo da requisição é inválido",
	importer.CodeRowsLimitExceeded:        "O número de linhas excede o máximo de 5000",
	importer.CodeInvalidMapping:           "O mapeamento de colunas é inválido",
	importer.CodeInvalidMappingJSON:       "O mapeamento de colunas não é um JSON válido",
	importer.CodeInvalidMappingColumns:    "O mapeamento referencia colunas que não existem no arquivo",
	importer.CodePDFPasswordRequired:      "O documento é protegido por senha",
	importer.CodePDFPasswordInvalid:       "A senha do documento está incorreta",
	importer.CodePDFNoTransactions:        "Nenhuma transação foi encontrada no documento",
	importer.CodeUnsupportedIssuerProfile: "O layout do documento não é reconhecido",
	importer.CodeParserUnavailable:        "O documento não pôde ser processado",
	importer.CodeParseFailed:              "Ocorreu um erro ao processar o arquivo",
	importer.CodeCommitFailed:             "Ocorreu um erro ao gravar a importação",
}

var statuses = map[string]int{
	importer.CodeFileSizeLimitExceeded:    http.StatusRequestEntityTooLarge,
	importer.CodePDFPasswordRequired:      http.StatusUnprocessableEntity,
	importer.CodePDFPasswordInvalid:       http.StatusUnprocessableEntity,
	importer.CodePDFNoTransactions:        http.StatusUnprocessableEntity,
	importer.CodeUnsupportedIssuerProfile: http.StatusUnprocessableEntity,
	importer.CodeParserUnavailable:        http.StatusUnprocessableEntity,
	importer.CodeParseFailed:              http.StatusInternalServerError,
	importer.CodeCommitFailed:             http.StatusInternalServerError,
}

// ImportError writes the response for a typed import pipeline error.
func ImportError(c *gin.Context, err *importer.Error) {
	status, ok := statuses[err.Code]
	if !ok {
		status = http.StatusBadRequest
	}

	message, ok := messages[err.Code]
	if !ok {
		message = "A importação falhou"
	}

	response := HTTPError{
		Error:                   message,
		Code:                    err.Code,
		SupportedIssuerProfiles: err.SupportedProfiles,
		MissingColumns:          err.MissingColumns,
	}

	// Operator detail is only surfaced where the client is expected to
	// show a support dialog, not in the generic validation paths.
	if err.Code == importer.CodeParserUnavailable {
		response.TechnicalReason = err.TechnicalReason
	}

	c.JSON(status, response)
}

// ErrorHandler translates an error into the correct response.
func ErrorHandler(c *gin.Context, err error) {
	var importError *importer.Error

	switch {
	case errors.Is(err, models.ErrResourceNotFound) || errors.Is(err, gorm.ErrRecordNotFound):
		c.AbortWithStatus(http.StatusNotFound)

	case errors.As(err, &importError):
		ImportError(c, importError)

	case strings.Contains(err.Error(), "UNIQUE constraint failed"),
		strings.Contains(err.Error(), "constraint failed: FOREIGN KEY constraint failed"):
		NewError(c, http.StatusBadRequest, errors.New("a resource with these values already exists or a referenced resource does not exist"))

	case reflect.TypeOf(err) == reflect.TypeOf(&go_sqlite.Error{}):
		log.Error().Str("request-id", requestid.Get(c)).Msgf("%T: %v", err, err.Error())
		NewError(c, http.StatusInternalServerError, errors.New("a database error occurred during your request, please contact your server administrator. The request id is '"+requestid.Get(c)+"'"))

	default:
		log.Error().Str("request-id", requestid.Get(c)).Msgf("%T: %v", err, err.Error())
		NewError(c, http.StatusInternalServerError, errors.New("an error occurred on the server during your request, please contact your server administrator. The request id is '"+requestid.Get(c)+"'"))
	}
}
