// Package sync orchestrates bulk import runs: it drives the registry
// importer, persists the imported records, and tracks run status.
package sync

import (
	"context"
	"fmt"

	"github.com/go-logr/logr"

	"github.com/openscholar/doisync/internal/datacite"
	"github.com/openscholar/doisync/internal/status"
)

//go:generate mockgen -destination=mocks/mock_store.go -package=mocks -source=manager.go RecordStore

// storeBatchSize is how many records are buffered before a store write
const storeBatchSize = 100

// RecordStore persists imported identifier records
type RecordStore interface {
	// UpsertBatch writes a batch of records, replacing previous imports of
	// the same identifiers
	UpsertBatch(ctx context.Context, records []datacite.Record) error
}

// Manager runs imports end to end. Registry-side prefix failures are
// isolated and reported; a store failure aborts the run, since continuing
// would silently drop records.
type Manager struct {
	importer    *datacite.Importer
	store       RecordStore
	persistence status.Persistence
	testMode    bool
}

// NewManager creates an import manager
func NewManager(importer *datacite.Importer, store RecordStore, persistence status.Persistence, testMode bool) *Manager {
	return &Manager{
		importer:    importer,
		store:       store,
		persistence: persistence,
		testMode:    testMode,
	}
}

// Result summarizes a finished import run
type Result struct {
	// Report is the per-prefix outcome of the registry walk
	Report *datacite.Report

	// Stored is the number of records written to the store
	Stored int
}

// RunImport imports all records under the given prefixes and persists them.
// The run status is saved as Running when the run starts and as Complete or
// Failed when it ends, so operators can observe progress between runs.
func (m *Manager) RunImport(ctx context.Context, prefixes []string) (*Result, error) {
	logger := logr.FromContextOrDiscard(ctx)

	stream := m.importer.ImportAll(prefixes)
	report := stream.Report()

	startedAt := report.Started
	if err := m.persistence.SaveStatus(ctx, &status.ImportStatus{
		Phase:     status.ImportPhaseRunning,
		RunID:     report.RunID,
		TestMode:  m.testMode,
		StartedAt: &startedAt,
	}); err != nil {
		return nil, fmt.Errorf("failed to persist run status: %w", err)
	}

	logger.Info("import run started", "runID", report.RunID, "prefixes", prefixes, "testMode", m.testMode)

	stored := 0
	batch := make([]datacite.Record, 0, storeBatchSize)
	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		if err := m.store.UpsertBatch(ctx, batch); err != nil {
			return err
		}
		stored += len(batch)
		batch = batch[:0]
		return nil
	}

	for {
		record, ok := stream.Next(ctx)
		if !ok {
			break
		}
		batch = append(batch, record)
		if len(batch) == storeBatchSize {
			if err := flush(); err != nil {
				return nil, m.failRun(ctx, report, stored, err)
			}
		}
	}
	if err := flush(); err != nil {
		return nil, m.failRun(ctx, report, stored, err)
	}

	result := &Result{Report: report, Stored: stored}

	finishedAt := report.Finished
	runStatus := &status.ImportStatus{
		Phase:          status.ImportPhaseComplete,
		RunID:          report.RunID,
		TestMode:       m.testMode,
		StartedAt:      &startedAt,
		FinishedAt:     &finishedAt,
		RecordCount:    stored,
		FailedPrefixes: failedPrefixes(report),
	}
	if len(runStatus.FailedPrefixes) > 0 {
		runStatus.Message = fmt.Sprintf("%d of %d prefixes failed", len(runStatus.FailedPrefixes), len(prefixes))
	}
	if err := m.persistence.SaveStatus(ctx, runStatus); err != nil {
		return nil, fmt.Errorf("failed to persist run status: %w", err)
	}

	logger.Info("import run finished",
		"runID", report.RunID,
		"stored", stored,
		"failedPrefixes", runStatus.FailedPrefixes)
	return result, nil
}

// failRun records an aborted run and wraps the causing error
func (m *Manager) failRun(ctx context.Context, report *datacite.Report, stored int, cause error) error {
	logger := logr.FromContextOrDiscard(ctx)
	logger.Error(cause, "import run aborted", "runID", report.RunID, "stored", stored)

	startedAt := report.Started
	if err := m.persistence.SaveStatus(ctx, &status.ImportStatus{
		Phase:          status.ImportPhaseFailed,
		Message:        cause.Error(),
		RunID:          report.RunID,
		TestMode:       m.testMode,
		StartedAt:      &startedAt,
		RecordCount:    stored,
		FailedPrefixes: failedPrefixes(report),
	}); err != nil {
		logger.Error(err, "failed to persist failure status")
	}

	return fmt.Errorf("import run %s aborted: %w", report.RunID, cause)
}

func failedPrefixes(report *datacite.Report) []string {
	var prefixes []string
	for _, result := range report.Failed() {
		prefixes = append(prefixes, result.Prefix)
	}
	return prefixes
}
