package models

import (
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// ImportSourceKind classifies the document an ImportSource was built from.
type ImportSourceKind string

const (
	SourceKindBankStatement ImportSourceKind = "BANK_STATEMENT"
	SourceKindCCStatement   ImportSourceKind = "CC_STATEMENT"
)

// ImportSource is the content-addressed record of a previously ingested
// file. The unique (user, file hash) pair short-circuits reprocessing of
// the same bytes or the same logical rows under a different filename.
type ImportSource struct {
	DefaultModel
	UserID        uuid.UUID `gorm:"uniqueIndex:import_source_user_file_hash"`
	InstitutionID string
	Kind          ImportSourceKind `gorm:"type:text"`
	FileName      string
	FileHash      string `gorm:"uniqueIndex:import_source_user_file_hash"`
}

// ImportSourceByHash returns the source with the given file hash, if any.
func ImportSourceByHash(db *gorm.DB, userID uuid.UUID, fileHash string) (ImportSource, error) {
	var source ImportSource
	err := db.First(&source, "user_id = ? AND file_hash = ?", userID, fileHash).Error
	return source, err
}

// ImportItem is the audit record of one raw parsed row, keyed to the
// ImportSource it came from. The pipeline never branches on its contents.
type ImportItem struct {
	DefaultModel
	UserID         uuid.UUID `gorm:"index"`
	ImportSourceID uuid.UUID `gorm:"index"`
	TransactionID  *uuid.UUID
	RawJSON        string
}
