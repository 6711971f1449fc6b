package models

import (
	"github.com/google/uuid"
)

// ImportPhase is the pipeline phase an event was recorded in.
type ImportPhase string

const (
	PhaseParse  ImportPhase = "parse"
	PhaseCommit ImportPhase = "commit"
)

// ImportEvent is one append-only telemetry record written at a phase
// boundary of the import pipeline.
type ImportEvent struct {
	DefaultModel
	UserID     uuid.UUID `gorm:"index"`
	SourceType string
	Event      string
	Phase      ImportPhase `gorm:"type:text"`
	FileName   string
	ErrorCode  string

	TotalRows   *int
	ValidRows   *int
	IgnoredRows *int
	ErrorRows   *int

	Imported                *int
	Skipped                 *int
	Duplicates              *int
	InvalidRows             *int
	TransferCreated         *int
	CardPaymentDetected     *int
	CardPaymentNotConverted *int
}
