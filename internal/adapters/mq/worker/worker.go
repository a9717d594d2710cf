// Package worker defines worker contracts for asynchronous call scoring and
// record updates.
package worker

import (
	"context"
	"fmt"
	"runtime"
	"strconv"
	"time"

	"github.com/okian/callscore/internal/adapters/oracle"
	"github.com/okian/callscore/internal/domain/insight"
	"github.com/okian/callscore/internal/domain/model"
	"github.com/okian/callscore/internal/domain/rubric"
	"github.com/okian/callscore/internal/domain/scoring"
	"github.com/okian/callscore/pkg/logger"
	"github.com/okian/callscore/pkg/metrics"
)

// Default worker configuration constants.
const (
	defaultWorkerMultiplier = 2 // multiplier for runtime.NumCPU()
	poolShutdownTimeout     = 30 * time.Second
)

// fallbackSummary replaces the derived call summary when the scoring oracle
// fails and neutral baseline scores are substituted.
const fallbackSummary = "Automated analysis was unavailable for this call. " +
	"Neutral baseline scores were applied; review the recording manually for accurate coaching."

// Job abstracts what workers read off the queue.
// Using the model.AnalysisJob type for consistency.
type Job = model.AnalysisJob

// Scorer produces raw rubric sub-scores for a call description.
type Scorer interface {
	Score(ctx context.Context, req oracle.Request) (oracle.RawScores, error)
}

// Store is the subset of the record store workers need.
type Store interface {
	Get(ctx context.Context, id string) (model.CallRecord, error)
	Update(ctx context.Context, rec model.CallRecord) error
}

// Queue defines how workers receive jobs.
type Queue interface {
	Dequeue(ctx context.Context) <-chan Job
}

// Worker processes analysis jobs and writes score records using the provided
// interfaces.
type Worker interface {
	// Run starts the worker loop until ctx is canceled.
	Run(ctx context.Context)

	// Shutdown gracefully stops the worker.
	Shutdown(ctx context.Context) error
}

// InMemoryWorker implements Worker for processing analysis jobs.
type InMemoryWorker struct {
	queue  Queue
	scorer Scorer
	store  Store
	def    rubric.Definition
	name   string

	// Shutdown control
	shutdown chan struct{}
	done     chan struct{}

	// Logging
	logger logger.Logger
}

// NewInMemoryWorker creates a new worker with configuration options.
func NewInMemoryWorker(queue Queue, scorer Scorer, store Store, def rubric.Definition, opts ...Option) *InMemoryWorker {
	w := &InMemoryWorker{
		queue:    queue,
		scorer:   scorer,
		store:    store,
		def:      def,
		name:     "worker",
		shutdown: make(chan struct{}),
		done:     make(chan struct{}),
		logger:   logger.Get().Named("worker"),
	}

	for _, opt := range opts {
		opt(w)
	}

	if w.name != "worker" {
		w.logger = w.logger.Named(w.name)
	}

	return w
}

// Run starts the worker loop.
func (w *InMemoryWorker) Run(ctx context.Context) {
	defer func() {
		close(w.done)
	}()

	jobChan := w.queue.Dequeue(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-w.shutdown:
			return
		case job, ok := <-jobChan:
			if !ok {
				// Channel closed, worker should stop.
				return
			}

			if err := w.processJob(ctx, job); err != nil {
				w.logger.Error(ctx, "error processing analysis job", logger.Error(err))
			}
		}
	}
}

// Shutdown gracefully stops the worker.
func (w *InMemoryWorker) Shutdown(ctx context.Context) error {
	close(w.shutdown)

	select {
	case <-w.done:
		return nil
	case <-ctx.Done():
		w.logger.Warn(ctx, "shutdown timed out")
		return fmt.Errorf("shutdown timed out: %w", ctx.Err())
	}
}

// processJob scores a single pending call record. An oracle failure is not a
// job failure: the record gets the neutral fallback analysis so every
// submitted call ends up with a result.
func (w *InMemoryWorker) processJob(ctx context.Context, job Job) error {
	start := time.Now()
	defer func() {
		metrics.RecordWorkerProcessingLatency(float64(time.Since(start).Milliseconds()))
	}()

	rec, err := w.store.Get(ctx, job.RecordID)
	if err != nil {
		metrics.RecordWorkerError()
		metrics.RecordErrorByComponent("worker", "record_missing")
		return fmt.Errorf("load record %s: %w", job.RecordID, err)
	}

	scoreStart := time.Now()
	raw, scoreErr := w.scorer.Score(ctx, oracle.Request{
		Description: job.Description,
		Category:    job.Category,
	})
	metrics.RecordScoringLatency(float64(time.Since(scoreStart).Milliseconds()))

	var analysis *model.Analysis
	if scoreErr != nil {
		metrics.RecordWorkerError()
		metrics.RecordErrorByComponent("worker", "oracle_error")
		w.logger.Warn(ctx, "oracle scoring failed, applying neutral fallback",
			logger.String("record_id", job.RecordID),
			logger.Error(scoreErr),
		)
		analysis, err = FallbackAnalysis(w.def, job.Category)
		rec.Status = model.StatusFallback
		metrics.RecordAnalysisFallback()
	} else {
		analysis, err = BuildAnalysis(raw.Core, raw.Methodology, w.def, job.Category)
		rec.Status = model.StatusScored
	}
	if err != nil {
		metrics.RecordWorkerError()
		metrics.RecordErrorByComponent("worker", "analysis_error")
		return fmt.Errorf("analyze record %s: %w", job.RecordID, err)
	}

	rec.Analysis = analysis
	if err := w.store.Update(ctx, rec); err != nil {
		metrics.RecordWorkerError()
		metrics.RecordErrorByComponent("worker", "store_error")
		return fmt.Errorf("update record %s: %w", job.RecordID, err)
	}

	metrics.RecordAnalysisCompleted()
	return nil
}

// BuildAnalysis turns raw sub-scores into the full score record: clamp,
// aggregate, then derive the insight bundle. Shared with the synchronous
// manual-score path.
func BuildAnalysis(core, methodology map[string]int, def rubric.Definition, category rubric.Category) (*model.Analysis, error) {
	normCore, normMeth, err := scoring.Normalize(core, methodology, def)
	if err != nil {
		return nil, err
	}
	sum, err := scoring.Score(normCore, normMeth, def)
	if err != nil {
		return nil, err
	}
	bundle, err := insight.Derive(normCore, normMeth, def, category, sum)
	if err != nil {
		return nil, err
	}
	return &model.Analysis{
		OverallScore:          sum.OverallScore,
		MethodologyCompliance: sum.MethodologyCompliance,
		CallEffectiveness:     sum.Effectiveness,
		CoreScores:            normCore,
		MethodologyScores:     normMeth,
		KeyInsights:           bundle.Insights,
		OutcomePrediction:     bundle.Outcome,
		Coaching:              bundle.Coaching,
		MethodologyCoaching:   bundle.MethodologyCoaching,
		CallSummary:           bundle.Summary,
	}, nil
}

// FallbackAnalysis builds the all-neutral analysis used when the oracle is
// unreachable. Identical to scoring an all-neutral submission except for the
// summary text.
func FallbackAnalysis(def rubric.Definition, category rubric.Category) (*model.Analysis, error) {
	core, methodology := scoring.Neutral(def)
	a, err := BuildAnalysis(core, methodology, def, category)
	if err != nil {
		return nil, err
	}
	a.CallSummary = fallbackSummary
	return a, nil
}

// Pool manages multiple workers.
type Pool struct {
	workers []*InMemoryWorker
	queue   Queue

	// Logging
	logger logger.Logger
}

// NewPool creates a new worker pool.
func NewPool(workerCount int, queue Queue, scorer Scorer, store Store, def rubric.Definition) *Pool {
	if workerCount < 1 {
		workerCount = runtime.NumCPU() * defaultWorkerMultiplier
	}

	pool := &Pool{
		workers: make([]*InMemoryWorker, workerCount),
		queue:   queue,
		logger:  logger.Get().Named("worker-pool"),
	}

	for i := 0; i < workerCount; i++ {
		pool.workers[i] = NewInMemoryWorker(
			queue,
			scorer,
			store,
			def,
			WithName("worker-"+strconv.Itoa(i)),
		)
	}

	metrics.UpdateWorkerCount(workerCount)

	return pool
}

// Start starts all workers in the pool.
func (p *Pool) Start(ctx context.Context) {
	for _, worker := range p.workers {
		go worker.Run(ctx)
	}
}

// Shutdown gracefully shuts down the entire worker pool.
func (p *Pool) Shutdown(ctx context.Context) error {
	// First close the queue so no new jobs arrive and workers drain.
	if closer, ok := p.queue.(interface{ Close() error }); ok {
		if err := closer.Close(); err != nil {
			p.logger.Error(ctx, "error closing queue", logger.Error(err))
		}
	}

	for _, worker := range p.workers {
		close(worker.shutdown)
	}

	shutdownCtx, cancel := context.WithTimeout(ctx, poolShutdownTimeout)
	defer cancel()

	for i, worker := range p.workers {
		select {
		case <-worker.done:
		case <-shutdownCtx.Done():
			p.logger.Warn(ctx, "worker shutdown timed out", logger.Int("worker_id", i))
		}
	}

	metrics.UpdateWorkerCount(0)
	return nil
}
