// Package telemetry records append-only import events at the pipeline's
// phase boundaries. Failures are logged and swallowed, the import path
// never blocks on telemetry.
package telemetry

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"github.com/contalivre/backend/internal/importer"
	"github.com/contalivre/backend/internal/importer/analyze"
	"github.com/contalivre/backend/internal/models"
)

// DedupWindow suppresses repeated parse-error events for the same user,
// source, file and error code.
const DedupWindow = 15 * time.Second

// Event names.
const (
	EventParseStarted   = "parse_started"
	EventParseFinished  = "parse_finished"
	EventParseFailed    = "parse_failed"
	EventCommitStarted  = "commit_started"
	EventCommitFinished = "commit_finished"
	EventCommitFailed   = "commit_failed"
)

var importEventCount = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "import_events_total",
		Help: "How many import pipeline events were recorded, partitioned by phase, event and source type.",
	},
	[]string{"phase", "event", "source_type"},
)

var importedRowCount = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "import_rows_total",
		Help: "How many import rows were processed, partitioned by outcome.",
	},
	[]string{"outcome"},
)

// Collectors returns the package's Prometheus collectors for registration
// by the router.
func Collectors() []prometheus.Collector {
	return []prometheus.Collector{importEventCount, importedRowCount}
}

// Recorder writes import events. The zero value is not usable, use New.
type Recorder struct {
	mu     sync.Mutex
	recent map[string]time.Time
	now    func() time.Time
}

func New() *Recorder {
	return &Recorder{
		recent: make(map[string]time.Time),
		now:    time.Now,
	}
}

// ParseStarted records the entry into the parse phase.
func (r *Recorder) ParseStarted(db *gorm.DB, userID uuid.UUID, sourceType, fileName string) {
	r.write(db, models.ImportEvent{
		UserID:     userID,
		SourceType: sourceType,
		Event:      EventParseStarted,
		Phase:      models.PhaseParse,
		FileName:   fileName,
	})
}

// ParseFinished records a successful parse with its row diagnostics.
func (r *Recorder) ParseFinished(db *gorm.DB, userID uuid.UUID, sourceType, fileName string, report *analyze.Report) {
	event := models.ImportEvent{
		UserID:     userID,
		SourceType: sourceType,
		Event:      EventParseFinished,
		Phase:      models.PhaseParse,
		FileName:   fileName,
	}

	if report != nil {
		event.TotalRows = &report.TotalRows
		event.ValidRows = &report.ValidRows
		event.IgnoredRows = &report.IgnoredRows
		event.ErrorRows = &report.ErrorRows

		importedRowCount.WithLabelValues("valid").Add(float64(report.ValidRows))
		importedRowCount.WithLabelValues("ignored").Add(float64(report.IgnoredRows))
		importedRowCount.WithLabelValues("error").Add(float64(report.ErrorRows))
	}

	r.write(db, event)
}

// ParseFailed records a parse error. Repeats of the same error for the
// same user, source and file within the dedup window are dropped.
func (r *Recorder) ParseFailed(db *gorm.DB, userID uuid.UUID, sourceType, fileName, errorCode string) {
	key := userID.String() + "|" + sourceType + "|" + fileName + "|" + errorCode

	r.mu.Lock()
	now := r.now()
	if last, ok := r.recent[key]; ok && now.Sub(last) < DedupWindow {
		r.mu.Unlock()
		return
	}
	r.recent[key] = now
	for k, at := range r.recent {
		if now.Sub(at) >= DedupWindow {
			delete(r.recent, k)
		}
	}
	r.mu.Unlock()

	r.write(db, models.ImportEvent{
		UserID:     userID,
		SourceType: sourceType,
		Event:      EventParseFailed,
		Phase:      models.PhaseParse,
		FileName:   fileName,
		ErrorCode:  errorCode,
	})
}

// CommitStarted records the entry into the commit phase.
func (r *Recorder) CommitStarted(db *gorm.DB, userID uuid.UUID, sourceType, fileName string, rowCount int) {
	r.write(db, models.ImportEvent{
		UserID:     userID,
		SourceType: sourceType,
		Event:      EventCommitStarted,
		Phase:      models.PhaseCommit,
		FileName:   fileName,
		TotalRows:  &rowCount,
	})
}

// CommitFinished records a committed batch with its counters.
func (r *Recorder) CommitFinished(db *gorm.DB, userID uuid.UUID, sourceType, fileName string, result importer.CommitResult) {
	r.write(db, models.ImportEvent{
		UserID:                  userID,
		SourceType:              sourceType,
		Event:                   EventCommitFinished,
		Phase:                   models.PhaseCommit,
		FileName:                fileName,
		Imported:                &result.TotalImported,
		Skipped:                 &result.TotalSkipped,
		Duplicates:              &result.Duplicates,
		InvalidRows:             &result.InvalidRows,
		TransferCreated:         &result.TotalTransfersCreated,
		CardPaymentDetected:     &result.TotalCardPaymentsDetected,
		CardPaymentNotConverted: &result.TotalCardPaymentsNotConverted,
	})

	importedRowCount.WithLabelValues("imported").Add(float64(result.TotalImported))
	importedRowCount.WithLabelValues("duplicate").Add(float64(result.Duplicates))
}

// CommitFailed records a failed commit.
func (r *Recorder) CommitFailed(db *gorm.DB, userID uuid.UUID, sourceType, fileName, errorCode string) {
	r.write(db, models.ImportEvent{
		UserID:     userID,
		SourceType: sourceType,
		Event:      EventCommitFailed,
		Phase:      models.PhaseCommit,
		FileName:   fileName,
		ErrorCode:  errorCode,
	})
}

func (r *Recorder) write(db *gorm.DB, event models.ImportEvent) {
	importEventCount.WithLabelValues(string(event.Phase), event.Event, event.SourceType).Inc()

	if err := db.Create(&event).Error; err != nil {
		log.Warn().Err(err).Str("event", event.Event).Msg("could not write import event")
	}
}
