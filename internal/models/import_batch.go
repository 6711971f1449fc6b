package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/contalivre/backend/internal/types"
)

// ImportBatch records one committed import. Ledger entries created by the
// commit link back to it via ImportBatchID.
type ImportBatch struct {
	DefaultModel
	UserID                   uuid.UUID `gorm:"index"`
	Source                   string
	FileName                 string
	MappingJSON              string
	TotalImported            int
	TotalSkipped             int
	Duplicates               int
	InvalidRows              int
	TransfersCreated         int
	CardPaymentsDetected     int
	CardPaymentsNotConverted int
	// Transfer review suggestions emitted by the matcher, serialized for
	// later review. They are never applied automatically.
	SuggestionsJSON string
	ImportedAt      time.Time
}

// BeforeSave defaults the import timestamp.
func (b *ImportBatch) BeforeSave(_ *gorm.DB) error {
	if b.ImportedAt.IsZero() {
		b.ImportedAt = time.Now().In(time.UTC)
	}
	return nil
}

// ImportBatchesForUser returns the user's batches, most recent first.
func ImportBatchesForUser(db *gorm.DB, userID uuid.UUID, limit int) ([]ImportBatch, error) {
	var batches []ImportBatch
	err := db.Where(&ImportBatch{UserID: userID}).
		Order("imported_at desc").
		Limit(limit).
		Find(&batches).Error
	return batches, err
}

// ImportBatchesInMonth returns the user's batches imported in the given
// month, most recent first.
func ImportBatchesInMonth(db *gorm.DB, userID uuid.UUID, month types.Month, limit int) ([]ImportBatch, error) {
	from := time.Time(month).In(time.UTC)
	to := time.Time(month.AddDate(0, 1)).In(time.UTC)

	var batches []ImportBatch
	err := db.Where(&ImportBatch{UserID: userID}).
		Where("imported_at >= ? AND imported_at < ?", from, to).
		Order("imported_at desc").
		Limit(limit).
		Find(&batches).Error
	return batches, err
}
