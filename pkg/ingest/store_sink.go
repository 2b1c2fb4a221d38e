package ingest

import (
	"context"
	"database/sql"
	"errors"
	"sync"
	"time"

	"github.com/japaniel/wifireview/pkg/analysis"
	"github.com/japaniel/wifireview/pkg/db"
)

// StoreSink persists summaries to the relational store through a
// BatchWriter and keeps the analysis_runs row of the run up to date.
type StoreSink struct {
	conn *db.DB
	bw   *BatchWriter

	mu     sync.Mutex
	failed []error
}

// NewStoreSink creates a sink that commits every batchSize products or
// every flushInterval, whichever comes first.
func NewStoreSink(conn *db.DB, batchSize int, flushInterval time.Duration) *StoreSink {
	s := &StoreSink{conn: conn, bw: NewBatchWriter(conn.DB, batchSize, flushInterval)}
	s.bw.OnError = func(err error) {
		s.mu.Lock()
		s.failed = append(s.failed, err)
		s.mu.Unlock()
	}
	return s
}

// ProcessedIDs implements ProgressStore.
func (s *StoreSink) ProcessedIDs(ctx context.Context) (map[string]bool, error) {
	return db.ProcessedIDs(ctx, s.conn.Executor())
}

// RunStarted records the run before any product is written.
func (s *StoreSink) RunStarted(ctx context.Context, runID, dir string, at time.Time) error {
	return db.StartRun(ctx, s.conn.Executor(), db.Run{ID: runID, ReviewDir: dir, Status: db.RunRunning, StartedAt: at})
}

// RunFinished stores the final counters of the run.
func (s *StoreSink) RunFinished(ctx context.Context, sum RunSummary) error {
	status := db.RunCompleted
	if sum.Interrupted {
		status = db.RunInterrupted
	}
	finished := sum.FinishedAt
	return db.FinishRun(ctx, s.conn.Executor(), db.Run{
		ID:         sum.RunID,
		Status:     status,
		Processed:  sum.Processed,
		Skipped:    sum.Skipped,
		Failed:     sum.Failed,
		FinishedAt: &finished,
	})
}

// Write queues the summary; it is committed with the next batch.
func (s *StoreSink) Write(ctx context.Context, runID string, sum analysis.Summary) error {
	at := time.Now()
	return s.bw.Submit(func(ctx context.Context, tx *sql.Tx) error {
		if err := db.SaveSummary(ctx, s.conn.Bind(tx), runID, sum, at); err != nil {
			return &WriteError{ProductID: sum.ProductID, Err: err}
		}
		return nil
	})
}

// Close flushes pending writes and returns every write that failed.
func (s *StoreSink) Close() error {
	err := s.bw.Close()
	if errors.Is(err, ErrBatchWriterClosed) {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.failed) > 0 {
		return errors.Join(s.failed...)
	}
	return err
}
