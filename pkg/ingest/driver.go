// Package ingest runs the batch: it walks a directory of per-product review
// files, analyses each product and hands the summaries to output sinks in
// file order.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"hash/fnv"
	"log/slog"
	"math/rand/v2"
	"slices"
	"time"

	"github.com/google/uuid"

	"github.com/japaniel/wifireview/pkg/analysis"
	"github.com/japaniel/wifireview/pkg/review"
	"github.com/japaniel/wifireview/pkg/segment"
)

// WorkerPoolInterface abstracts the worker pool so tests can inject failing implementations.
type WorkerPoolInterface interface {
	Start(ctx context.Context)
	Submit(Job) error
	// SubmitCtx attempts to enqueue a job but returns promptly if ctx is canceled.
	SubmitCtx(ctx context.Context, job Job) error
	Close()
}

// Sink receives product summaries. Write is called from a single goroutine
// in review-file order. Close flushes; write failures that surface late are
// returned from Close as *WriteError values (possibly joined).
type Sink interface {
	Write(ctx context.Context, runID string, s analysis.Summary) error
	Close() error
}

// RunObserver is implemented by sinks that keep run bookkeeping.
type RunObserver interface {
	RunStarted(ctx context.Context, runID, dir string, at time.Time) error
	RunFinished(ctx context.Context, sum RunSummary) error
}

// ProgressStore reports which products already have stored results.
type ProgressStore interface {
	ProcessedIDs(ctx context.Context) (map[string]bool, error)
}

// WriteError ties a sink failure to the product being written.
type WriteError struct {
	ProductID string
	Err       error
}

func (e *WriteError) Error() string { return fmt.Sprintf("write %s: %v", e.ProductID, e.Err) }
func (e *WriteError) Unwrap() error { return e.Err }

// Failure describes a product that could not be processed.
type Failure struct {
	ProductID string
	Path      string
	Err       error
}

// RunSummary counts what happened to each review file of a run.
type RunSummary struct {
	RunID       string
	Dir         string
	Seed        uint64
	Total       int
	Processed   int
	Skipped     int
	Failed      int
	Failures    []Failure
	Interrupted bool
	StartedAt   time.Time
	FinishedAt  time.Time
}

// Driver runs the analysis pipeline over a directory of review files.
type Driver struct {
	Segmenter *segment.Segmenter
	Resources *analysis.Resources
	Sinks     []Sink
	// Progress, when set, lets the driver skip products that already have
	// results. Force disables the skip.
	Progress ProgressStore
	Force    bool

	Workers int
	// Seed drives review sampling; each product derives its own stream from
	// it. Zero picks a time-based seed per run.
	Seed uint64
	// KeywordExclusions are dropped from keyword rows.
	KeywordExclusions []string

	Logger *slog.Logger
	// OnProgress is called after each product with the number of finished and total files.
	OnProgress func(done, total int)

	// PoolFactory allows tests to inject custom worker pool implementations.
	PoolFactory func(workers, queue int) WorkerPoolInterface
}

// NewDriver creates a Driver with default settings.
func NewDriver(seg *segment.Segmenter, res *analysis.Resources, sinks ...Sink) *Driver {
	return &Driver{
		Segmenter:         seg,
		Resources:         res,
		Sinks:             sinks,
		Workers:           4,
		KeywordExclusions: analysis.DefaultKeywordExclusions,
	}
}

func (d *Driver) logger() *slog.Logger {
	if d.Logger != nil {
		return d.Logger
	}
	return slog.Default()
}

// productResult is what a worker hands back to the ordered consumer.
type productResult struct {
	Index   int
	Source  review.Source
	Summary analysis.Summary
	Err     error
}

// Run processes every review file in dir and closes the sinks when done.
// Per-file failures are logged and counted; the batch always continues.
// The returned error is non-nil only when the run could not start, or ctx
// was cancelled (the summary then covers what was finished).
func (d *Driver) Run(ctx context.Context, dir string) (RunSummary, error) {
	log := d.logger()
	sum := RunSummary{RunID: uuid.NewString(), Dir: dir, Seed: d.Seed, StartedAt: time.Now()}
	if sum.Seed == 0 {
		sum.Seed = uint64(sum.StartedAt.UnixNano())
	}
	log = log.With("run_id", sum.RunID)

	sources, err := review.Discover(dir)
	if err != nil {
		d.closeSinks()
		return sum, err
	}
	sum.Total = len(sources)

	for _, s := range d.Sinks {
		if obs, ok := s.(RunObserver); ok {
			if err := obs.RunStarted(ctx, sum.RunID, dir, sum.StartedAt); err != nil {
				d.closeSinks()
				return sum, fmt.Errorf("start run: %w", err)
			}
		}
	}

	pending := sources
	if d.Progress != nil && !d.Force {
		done, err := d.Progress.ProcessedIDs(ctx)
		if err != nil {
			log.Warn("could not read processed products; analysing everything", "error", err)
		} else {
			pending = nil
			for _, src := range sources {
				if done[src.ProductID] {
					log.Debug("skipping processed product", "product_id", src.ProductID)
					sum.Skipped++
					continue
				}
				pending = append(pending, src)
			}
		}
	}
	log.Info("run started", "dir", dir, "files", len(sources), "pending", len(pending), "workers", d.Workers, "seed", sum.Seed)

	written, runErr := d.process(ctx, pending, sum.RunID, sum.Seed, &sum)

	for _, s := range d.Sinks {
		if err := s.Close(); err != nil {
			for _, we := range writeErrors(err) {
				if written[we.ProductID] {
					delete(written, we.ProductID)
					sum.Failures = append(sum.Failures, Failure{ProductID: we.ProductID, Err: we.Err})
				}
				log.Error("sink write failed", "product_id", we.ProductID, "error", we.Err)
			}
		}
	}
	sum.Processed = len(written)
	sum.Failed = len(sum.Failures)
	if runErr != nil {
		sum.Interrupted = true
	}
	sum.FinishedAt = time.Now()

	for _, s := range d.Sinks {
		if obs, ok := s.(RunObserver); ok {
			// The run context may already be cancelled; the bookkeeping row should still land.
			if err := obs.RunFinished(context.WithoutCancel(ctx), sum); err != nil {
				log.Error("could not record run result", "error", err)
			}
		}
	}
	log.Info("run finished",
		"processed", sum.Processed, "skipped", sum.Skipped, "failed", sum.Failed,
		"interrupted", sum.Interrupted, "elapsed", sum.FinishedAt.Sub(sum.StartedAt).Round(time.Millisecond))
	return sum, runErr
}

func (d *Driver) closeSinks() {
	for _, s := range d.Sinks {
		_ = s.Close()
	}
}

// writeErrors flattens a sink Close error into per-product write errors.
// Errors that name no product are reported with an empty id.
func writeErrors(err error) []*WriteError {
	var out []*WriteError
	var walk func(error)
	walk = func(e error) {
		if joined, ok := e.(interface{ Unwrap() []error }); ok {
			for _, inner := range joined.Unwrap() {
				walk(inner)
			}
			return
		}
		var we *WriteError
		if errors.As(e, &we) {
			out = append(out, we)
			return
		}
		out = append(out, &WriteError{Err: e})
	}
	walk(err)
	return out
}

// process fans products out to the worker pool and writes the results in
// input order. It returns the ids handed to every sink without error.
func (d *Driver) process(ctx context.Context, sources []review.Source, runID string, seed uint64, sum *RunSummary) (map[string]bool, error) {
	log := d.logger().With("run_id", runID)
	written := make(map[string]bool, len(sources))
	if len(sources) == 0 {
		return written, nil
	}

	workers := d.Workers
	if workers <= 0 {
		workers = 1
	}
	var wp WorkerPoolInterface
	if d.PoolFactory != nil {
		wp = d.PoolFactory(workers, workers*2)
	} else {
		wp = NewWorkerPool(workers, workers*2)
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	resultCh := make(chan productResult, workers*2)
	doneCh := make(chan struct{})

	// Consumer: reorder by index and feed the sinks.
	go func() {
		defer close(doneCh)
		buffer := make(map[int]productResult)
		next := 0
		for res := range resultCh {
			buffer[res.Index] = res
			for {
				item, ok := buffer[next]
				if !ok {
					break
				}
				delete(buffer, next)
				next++
				d.emit(ctx, log, runID, item, written, sum)
				if d.OnProgress != nil {
					d.OnProgress(sum.Skipped+next, sum.Total)
				}
			}
		}
	}()

	wp.Start(ctx)

	var submitErr error
	for i, src := range sources {
		job := func(ctx context.Context) error {
			res := productResult{Index: i, Source: src}
			res.Summary, res.Err = d.analyzeFile(src, seed)
			select {
			case resultCh <- res:
			case <-ctx.Done():
			}
			return res.Err
		}
		if err := wp.SubmitCtx(ctx, job); err != nil {
			submitErr = err
			break
		}
	}

	// Workers finish queued jobs (or stop on cancellation) before the
	// consumer is told no more results are coming.
	wp.Close()
	close(resultCh)
	<-doneCh

	if err := ctx.Err(); err != nil && submitErr == nil {
		submitErr = err
	}
	if submitErr != nil {
		if errors.Is(submitErr, context.Canceled) || errors.Is(submitErr, context.DeadlineExceeded) {
			log.Warn("run interrupted", "error", submitErr)
		} else {
			log.Error("could not schedule products", "error", submitErr)
		}
		return written, submitErr
	}
	return written, nil
}

func (d *Driver) emit(ctx context.Context, log *slog.Logger, runID string, res productResult, written map[string]bool, sum *RunSummary) {
	id := res.Source.ProductID
	if res.Err != nil {
		log.Warn("skipping review file", "product_id", id, "path", res.Source.Path, "error", res.Err)
		sum.Failures = append(sum.Failures, Failure{ProductID: id, Path: res.Source.Path, Err: res.Err})
		return
	}
	for _, s := range d.Sinks {
		if err := s.Write(ctx, runID, res.Summary); err != nil {
			log.Error("sink write failed", "product_id", id, "error", err)
			sum.Failures = append(sum.Failures, Failure{ProductID: id, Path: res.Source.Path, Err: err})
			return
		}
	}
	written[id] = true
	log.Info("processed product", "product_id", id,
		"reviews", res.Summary.Report.Statistics.Total,
		"positive", res.Summary.Report.Statistics.Positive,
		"negative", res.Summary.Report.Statistics.Negative)
}

func (d *Driver) analyzeFile(src review.Source, seed uint64) (analysis.Summary, error) {
	pr, err := review.LoadFile(src.Path)
	if err != nil {
		return analysis.Summary{}, err
	}
	return d.analyze(src.ProductID, review.Prepare(pr.Records), seed), nil
}

// AnalyzeProduct runs the pipeline over the prepared reviews of one product
// using the driver's Seed for sampling.
func (d *Driver) AnalyzeProduct(productID string, reviews []review.Review) analysis.Summary {
	return d.analyze(productID, reviews, d.Seed)
}

func (d *Driver) analyze(productID string, reviews []review.Review, seed uint64) analysis.Summary {
	res := d.Resources
	var (
		results  []analysis.ReviewResult
		allWords []string
		posTexts []string
		negTexts []string
	)
	for _, r := range reviews {
		cleaned := segment.CleanString(r.Text)
		if cleaned == "" {
			continue
		}
		words := slices.Collect(d.Segmenter.Words(cleaned, true))
		tokens := slices.Collect(d.Segmenter.Tagged(cleaned, true))

		sent := analysis.ClassifySentiment(words, res)
		results = append(results, analysis.ReviewResult{
			Sentiment: sent,
			Features:  analysis.ExtractFeatures(tokens, res.Categories),
		})
		allWords = append(allWords, words...)
		switch sent.Label {
		case analysis.Positive:
			posTexts = append(posTexts, r.Text)
		case analysis.Negative:
			negTexts = append(negTexts, r.Text)
		}
	}

	report := analysis.BuildReport(results)
	scores := analysis.ScoreCategories(report, res.Categories)
	report.FeatureScores = scores.Map()

	rng := productRand(seed, productID)
	return analysis.Summary{
		ProductID:       productID,
		Report:          report,
		Scores:          scores,
		Keywords:        analysis.TopKeywords(allWords, analysis.KeywordSlots, d.KeywordExclusions),
		PositiveSamples: analysis.SampleTexts(posTexts, analysis.SampleSlots, rng),
		NegativeSamples: analysis.SampleTexts(negTexts, analysis.SampleSlots, rng),
	}
}

// productRand gives each product its own stream so samples do not depend
// on which worker ran first.
func productRand(seed uint64, productID string) *rand.Rand {
	h := fnv.New64a()
	_, _ = h.Write([]byte(productID))
	return rand.New(rand.NewPCG(seed, h.Sum64()))
}
