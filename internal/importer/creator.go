package importer

import (
	"context"
	"encoding/json"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/contalivre/backend/internal/importer/helpers"
	"github.com/contalivre/backend/internal/models"
)

// CommitMapping carries the commit-time routing options.
type CommitMapping struct {
	ConvertCardPaymentsToTransfer *bool      `json:"convertCardPaymentsToTransfer,omitempty"`
	CardPaymentTargetAccountID    *uuid.UUID `json:"cardPaymentTargetAccountId,omitempty"`
	SkipCardPaymentLines          bool       `json:"skipCardPaymentLines,omitempty"`
}

// CommitOptions is the full input of one commit.
type CommitOptions struct {
	SourceType       SourceType
	FileName         string
	DefaultAccountID *uuid.UUID
	Mapping          CommitMapping
	ApplyRules       bool
	Institution      string
	Rows             []Row
}

// InvalidDetail names one rejected row.
type InvalidDetail struct {
	Index  int    `json:"index"`
	Reason string `json:"reason"`
}

// DuplicateDetails splits the duplicate count by where the duplicate was
// found.
type DuplicateDetails struct {
	InDatabase int `json:"inDatabase"`
	InPayload  int `json:"inPayload"`
}

// ImportedRange is the date span of the inserted entries.
type ImportedRange struct {
	From string `json:"from"`
	To   string `json:"to"`
}

// CommitResult aggregates the outcome of one commit.
type CommitResult struct {
	TotalImported                 int               `json:"totalImported"`
	TotalSkipped                  int               `json:"totalSkipped"`
	Duplicates                    int               `json:"duplicates"`
	InvalidRows                   int               `json:"invalidRows"`
	DuplicateDetails              DuplicateDetails  `json:"duplicateDetails"`
	InvalidDetails                []InvalidDetail   `json:"invalidDetails,omitempty"`
	TotalTransfersCreated         int               `json:"totalTransfersCreated"`
	TotalCardPaymentsDetected     int               `json:"totalCardPaymentsDetected"`
	TotalCardPaymentsNotConverted int               `json:"totalCardPaymentsNotConverted"`
	TransferReviewSuggestions     json.RawMessage   `json:"transferReviewSuggestions,omitempty"`
	DeterministicCategorizedCount int               `json:"deterministicCategorizedCount"`
	ImportedRange                 *ImportedRange    `json:"importedRange,omitempty"`
	DuplicateImportSource         bool              `json:"duplicateImportSource"`
	Idempotent                    bool              `json:"idempotent"`
}

// Invalid row reasons at commit time.
const (
	InvalidMissingDate    = "missing_date"
	InvalidMissingAccount = "missing_account"
	InvalidType           = "invalid_type"
)

// FileHash is the content digest that identifies an uploaded file by its
// logical rows, independent of incidental formatting.
func FileHash(fileName string, kind models.ImportSourceKind, rows []Row) string {
	fields := make([]string, 0, 2+len(rows))
	fields = append(fields, fileName, string(kind))

	for _, row := range rows {
		fields = append(fields, helpers.Join(
			row.Date.String(),
			row.Amount.StringFixed(2),
			strings.ToUpper(string(row.Direction())),
			row.NormalizedDescription,
			strings.ToUpper(row.ExternalID),
		))
	}

	return helpers.Sha256String(helpers.Join(fields...))
}

// RowHash is the per-row uniqueness digest for the ledger. Rows that agree
// on account, day, amount, type, direction, normalized text and merchant
// are the same entry no matter which file they arrived in.
func RowHash(userID, accountID uuid.UUID, row Row, institutionID string) string {
	return helpers.Sha256String(helpers.Join(
		userID.String(),
		accountID.String(),
		row.Date.String(),
		strconv.FormatInt(row.AmountCents(), 10),
		string(row.Type),
		string(row.Direction()),
		row.NormalizedDescription,
		row.MerchantKey,
		institutionID,
	))
}

// CardRouter routes the batch rows before they are persisted. It is
// satisfied by cardpay.Router; the indirection keeps the import and
// routing packages independent. Route receives the commit transaction.
type CardRouter interface {
	Route(tx *gorm.DB, rows []Row) ([]Row, RouteResult, error)
}

// RouteResult mirrors the card-payment routing counters.
type RouteResult struct {
	Detected            int
	NotConverted        int
	SkippedPaymentLines int
}

// Categorizer assigns categories to rows. Satisfied by rules.Engine.
type Categorizer interface {
	Apply(row *Row) bool
}

// TransferMatcher links transfer pairs across the committed window and
// returns the review suggestions in serialized form.
type TransferMatcher interface {
	Match(db *gorm.DB, userID uuid.UUID, from, to time.Time) (created int, suggestions json.RawMessage, err error)
}

// Commit writes one batch of canonical rows as ledger entries.
//
// The whole batch runs in a single transaction: the ImportSource shortcut,
// the card-payment routing, the rule engine, the per-row upserts, the
// transfer matcher and the ImportBatch row all commit or roll back
// together.
func Commit(ctx context.Context, db *gorm.DB, userID uuid.UUID, options CommitOptions, router CardRouter, categorizer Categorizer, matcher TransferMatcher) (CommitResult, error) {
	result := CommitResult{Idempotent: true}

	kind := models.SourceKindBankStatement
	for _, row := range options.Rows {
		if row.DocumentType.Kind() == models.SourceKindCCStatement {
			kind = models.SourceKindCCStatement
			break
		}
	}

	fileHash := FileHash(options.FileName, kind, options.Rows)

	// The same bytes, or the same logical rows under a different filename,
	// were already ingested: no side effects beyond telemetry.
	_, err := models.ImportSourceByHash(db, userID, fileHash)
	if err == nil {
		result.DuplicateImportSource = true
		result.TotalSkipped = len(options.Rows)
		return result, nil
	}
	if err != models.ErrResourceNotFound {
		return result, err
	}

	tx := db.WithContext(ctx).Begin()
	defer func() {
		// Commit sets tx.Error to nil; this is a no-op on success.
		tx.Rollback()
	}()

	source := models.ImportSource{
		UserID:        userID,
		InstitutionID: options.Institution,
		Kind:          kind,
		FileName:      options.FileName,
		FileHash:      fileHash,
	}
	if err := tx.Create(&source).Error; err != nil {
		return result, err
	}

	mappingJSON, err := json.Marshal(options.Mapping)
	if err != nil {
		return result, err
	}

	batch := models.ImportBatch{
		UserID:      userID,
		Source:      string(options.SourceType),
		FileName:    options.FileName,
		MappingJSON: string(mappingJSON),
	}
	if err := tx.Create(&batch).Error; err != nil {
		return result, err
	}

	rows := options.Rows
	if router != nil {
		var routing RouteResult
		rows, routing, err = router.Route(tx, rows)
		if err != nil {
			return result, err
		}

		result.TotalCardPaymentsDetected = routing.Detected
		result.TotalCardPaymentsNotConverted = routing.NotConverted
		result.TotalSkipped += routing.SkippedPaymentLines
	}

	if options.ApplyRules && categorizer != nil {
		for i := range rows {
			if categorizer.Apply(&rows[i]) {
				result.DeterministicCategorizedCount++
			}
		}
	}

	inserted, err := insertRows(tx, userID, rows, options, source.ID, batch.ID, &result)
	if err != nil {
		return result, err
	}

	if len(inserted) > 0 {
		from, to := dateSpan(inserted)
		result.ImportedRange = &ImportedRange{
			From: from.Format("2006-01-02"),
			To:   to.Format("2006-01-02"),
		}

		if matcher != nil {
			created, suggestions, err := matcher.Match(tx, userID, from.AddDate(0, 0, -3), to.AddDate(0, 0, 3))
			if err != nil {
				return result, err
			}

			result.TotalTransfersCreated += created
			if len(suggestions) > 0 && string(suggestions) != "null" && string(suggestions) != "[]" {
				result.TransferReviewSuggestions = suggestions
				batch.SuggestionsJSON = string(suggestions)
			}
		}
	}

	batch.TotalImported = result.TotalImported
	batch.TotalSkipped = result.TotalSkipped
	batch.Duplicates = result.Duplicates
	batch.InvalidRows = result.InvalidRows
	batch.TransfersCreated = result.TotalTransfersCreated
	batch.CardPaymentsDetected = result.TotalCardPaymentsDetected
	batch.CardPaymentsNotConverted = result.TotalCardPaymentsNotConverted
	if err := tx.Save(&batch).Error; err != nil {
		return result, err
	}

	if err := tx.Commit().Error; err != nil {
		return result, err
	}

	return result, nil
}

// insertRows upserts the rows in input order and returns the inserted
// entries.
func insertRows(tx *gorm.DB, userID uuid.UUID, rows []Row, options CommitOptions, sourceID, batchID uuid.UUID, result *CommitResult) ([]models.Transaction, error) {
	var inserted []models.Transaction
	seenHashes := make(map[string]bool, len(rows))
	pairLegs := make(map[uuid.UUID]*models.Transaction)

	for i := range rows {
		row := rows[i]

		accountID := row.AccountID
		if accountID == uuid.Nil && options.DefaultAccountID != nil {
			accountID = *options.DefaultAccountID
		}

		reason := ""
		switch {
		case row.Date.IsZero():
			reason = InvalidMissingDate
		case accountID == uuid.Nil:
			reason = InvalidMissingAccount
		case !row.Type.Valid():
			reason = InvalidType
		}
		if reason != "" {
			result.InvalidRows++
			result.InvalidDetails = append(result.InvalidDetails, InvalidDetail{Index: i, Reason: reason})
			continue
		}

		hash := RowHash(userID, accountID, row, options.Institution)

		if seenHashes[hash] {
			result.Duplicates++
			result.DuplicateDetails.InPayload++
			continue
		}
		seenHashes[hash] = true

		exists, err := models.TransactionExistsByHash(tx, userID, hash)
		if err != nil {
			return nil, err
		}
		if exists {
			result.Duplicates++
			result.DuplicateDetails.InDatabase++
			continue
		}

		rawJSON, err := json.Marshal(row)
		if err != nil {
			return nil, err
		}

		transaction := models.Transaction{
			UserID:                userID,
			AccountID:             accountID,
			ImportBatchID:         &batchID,
			PostedAt:              row.Date.Time(),
			Description:           row.Description,
			NormalizedDescription: row.NormalizedDescription,
			AmountCents:           row.AmountCents(),
			Type:                  row.Type,
			Direction:             row.Direction(),
			ImportedHash:          &hash,
			ExternalID:            row.ExternalID,
			RawJSON:               string(rawJSON),
		}
		if row.CategoryID != uuid.Nil {
			categoryID := row.CategoryID
			transaction.CategoryID = &categoryID
		}

		if err := tx.Create(&transaction).Error; err != nil {
			// The unique index on (user, imported hash) serializes racing
			// imports; losing the race is a duplicate, not a failure.
			if strings.Contains(err.Error(), "UNIQUE constraint failed") && strings.Contains(err.Error(), "imported_hash") {
				result.Duplicates++
				result.DuplicateDetails.InDatabase++
				continue
			}
			return nil, err
		}

		item := models.ImportItem{
			UserID:         userID,
			ImportSourceID: sourceID,
			TransactionID:  &transaction.ID,
			RawJSON:        string(rawJSON),
		}
		if err := tx.Create(&item).Error; err != nil {
			return nil, err
		}

		if row.TransferPairID != nil {
			if first, ok := pairLegs[*row.TransferPairID]; ok {
				if err := linkPair(tx, first, &transaction, *row.TransferPairID, row); err != nil {
					return nil, err
				}
				result.TotalTransfersCreated++
			} else {
				pairLegs[*row.TransferPairID] = &transaction
			}
		}

		inserted = append(inserted, transaction)
		result.TotalImported++
	}

	return inserted, nil
}

// linkPair cross-links the two legs the card-payment router synthesized.
func linkPair(tx *gorm.DB, first, second *models.Transaction, groupID uuid.UUID, row Row) error {
	for _, leg := range []*models.Transaction{first, second} {
		leg.Type = models.TransactionTransfer
		leg.TransferGroupID = &groupID
		leg.TransferFromAccountID = &row.TransferFromAccountID
		leg.TransferToAccountID = &row.TransferToAccountID
	}
	first.TransferPeerID = &second.ID
	second.TransferPeerID = &first.ID

	if err := tx.Save(first).Error; err != nil {
		return err
	}
	return tx.Save(second).Error
}

func dateSpan(transactions []models.Transaction) (from, to time.Time) {
	from, to = transactions[0].PostedAt, transactions[0].PostedAt
	for _, t := range transactions[1:] {
		if t.PostedAt.Before(from) {
			from = t.PostedAt
		}
		if t.PostedAt.After(to) {
			to = t.PostedAt
		}
	}
	return from, to
}
