// Package service provides the core business service that implements
// the dependencies required by the HTTP API.
package service

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"path/filepath"
	"runtime"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/okian/callscore/internal/adapters/blob"
	jobqueue "github.com/okian/callscore/internal/adapters/mq/queue"
	workerpool "github.com/okian/callscore/internal/adapters/mq/worker"
	"github.com/okian/callscore/internal/adapters/oracle"
	"github.com/okian/callscore/internal/adapters/repository"
	"github.com/okian/callscore/internal/domain/dedupe"
	"github.com/okian/callscore/internal/domain/model"
	"github.com/okian/callscore/internal/domain/rubric"
	"github.com/okian/callscore/internal/domain/types"
	"github.com/okian/callscore/pkg/logger"
	"github.com/okian/callscore/pkg/metrics"
)

// Store backend and oracle mode names accepted by the service.
const (
	BackendJSONFile = "jsonfile"
	BackendSQLite   = "sqlite"

	OracleStatic = "static"
	OracleHTTP   = "http"
)

const hoursPerDay = 24

// Service implements the API dependencies for the call analysis system.
type Service struct {
	mu sync.RWMutex

	// Core components
	store      repository.Store
	blobs      blob.Store
	deduper    dedupe.Deduper
	jobQueue   jobqueue.Queue
	scorer     oracle.Scorer
	workerPool *workerpool.Pool
	def        rubric.Definition

	// Configuration
	workerCount   int
	queueSize     int
	dedupeSize    int
	storeBackend  string
	storePath     string
	blobDir       string
	retention     time.Duration
	sweepInterval time.Duration
	oracleMode    string
	oracleURL     string
	oracleTimeout time.Duration

	// State
	started bool
	stopCh  chan struct{}

	// Logging
	logger logger.Logger
}

// Option applies a configuration option to the Service.
type Option func(*Service)

// WithWorkerCount sets the number of analysis workers.
func WithWorkerCount(count int) Option {
	return func(s *Service) {
		if count > 0 {
			s.workerCount = count
		}
	}
}

// WithQueueSize sets the maximum size of the analysis job queue.
func WithQueueSize(size int) Option {
	return func(s *Service) {
		if size > 0 {
			s.queueSize = size
		}
	}
}

// WithDedupeSize sets the size of the submission idempotency cache.
func WithDedupeSize(size int) Option {
	return func(s *Service) {
		if size > 0 {
			s.dedupeSize = size
		}
	}
}

// WithLogger sets a custom logger for the service.
func WithLogger(l logger.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithStoreBackend selects the record store backend and its location.
func WithStoreBackend(backend, path string) Option {
	return func(s *Service) {
		if backend != "" {
			s.storeBackend = backend
		}
		if path != "" {
			s.storePath = path
		}
	}
}

// WithBlobDir sets the directory for uploaded recordings.
func WithBlobDir(dir string) Option {
	return func(s *Service) {
		if dir != "" {
			s.blobDir = dir
		}
	}
}

// WithRetention configures the age-based retention sweep. Zero days disables
// the sweep entirely.
func WithRetention(days, sweepMinutes int) Option {
	return func(s *Service) {
		s.retention = time.Duration(days) * hoursPerDay * time.Hour
		if sweepMinutes > 0 {
			s.sweepInterval = time.Duration(sweepMinutes) * time.Minute
		}
	}
}

// WithOracle selects the scoring oracle mode and its endpoint.
func WithOracle(mode, url string, timeout time.Duration) Option {
	return func(s *Service) {
		if mode != "" {
			s.oracleMode = mode
		}
		s.oracleURL = url
		if timeout > 0 {
			s.oracleTimeout = timeout
		}
	}
}

// WithScorer injects a scoring oracle directly, bypassing mode selection.
func WithScorer(sc oracle.Scorer) Option {
	return func(s *Service) {
		if sc != nil {
			s.scorer = sc
		}
	}
}

// WithStore injects a record store directly, bypassing backend selection.
func WithStore(st repository.Store) Option {
	return func(s *Service) {
		if st != nil {
			s.store = st
		}
	}
}

// WithRubric overrides the rubric definition.
func WithRubric(def rubric.Definition) Option {
	return func(s *Service) {
		s.def = def
	}
}

// New constructs a new Service with default configuration.
func New(opts ...Option) *Service {
	s := &Service{
		workerCount:   runtime.NumCPU() * 2,
		queueSize:     10_000,
		dedupeSize:    50_000,
		storeBackend:  BackendJSONFile,
		storePath:     "data/calls_database.json",
		blobDir:       "data/uploads",
		retention:     90 * hoursPerDay * time.Hour,
		sweepInterval: time.Hour,
		oracleMode:    OracleStatic,
		oracleTimeout: time.Minute,
		def:           rubric.Default(),
		stopCh:        make(chan struct{}),
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// Start initializes and starts the service components.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return nil
	}

	if s.logger == nil {
		s.logger = logger.Get().Named("service")
	}

	s.logger.Info(ctx, "starting call analysis service...")

	if err := s.def.Validate(); err != nil {
		return fmt.Errorf("rubric definition: %w", err)
	}

	if s.store == nil {
		switch s.storeBackend {
		case BackendSQLite:
			st, err := repository.NewSQLiteStore(ctx, s.storePath)
			if err != nil {
				return fmt.Errorf("open sqlite store: %w", err)
			}
			s.store = st
			s.logger.Info(ctx, "using sqlite store", logger.String("path", s.storePath))
		case BackendJSONFile:
			st, err := repository.NewJSONStore(s.storePath)
			if err != nil {
				return fmt.Errorf("open json store: %w", err)
			}
			s.store = st
			s.logger.Info(ctx, "using json file store", logger.String("path", s.storePath))
		default:
			return fmt.Errorf("unknown store backend %q", s.storeBackend)
		}
	}

	if s.blobs == nil {
		bs, err := blob.NewFSStore(s.blobDir)
		if err != nil {
			return fmt.Errorf("open recording store: %w", err)
		}
		s.blobs = bs
	}

	s.deduper = dedupe.NewInMemoryDeduper(
		dedupe.WithMaxSize(s.dedupeSize),
	)
	s.jobQueue = jobqueue.NewInMemoryQueue(
		jobqueue.WithCapacity(s.queueSize),
		jobqueue.WithBufferSize(s.queueSize),
	)

	if s.scorer == nil {
		switch s.oracleMode {
		case OracleHTTP:
			if s.oracleURL == "" {
				return fmt.Errorf("http oracle requires a url")
			}
			s.scorer = oracle.NewHTTPScorer(s.oracleURL, s.def,
				oracle.WithTimeout(s.oracleTimeout),
			)
			s.logger.Info(ctx, "using http scoring oracle", logger.String("url", s.oracleURL))
		case OracleStatic:
			s.scorer = oracle.NewStaticScorer(s.def)
			s.logger.Info(ctx, "using static scoring oracle")
		default:
			return fmt.Errorf("unknown oracle mode %q", s.oracleMode)
		}
	}

	s.workerPool = workerpool.NewPool(s.workerCount, s.jobQueue, s.scorer, s.store, s.def)
	s.workerPool.Start(ctx)

	if s.retention > 0 {
		go s.retentionLoop(ctx)
	}

	s.started = true
	s.logger.Info(ctx, "call analysis service started",
		logger.Int("workers", s.workerCount),
		logger.Int("queueSize", s.queueSize),
		logger.Int("dedupeSize", s.dedupeSize),
		logger.String("storeBackend", s.storeBackend),
	)

	return nil
}

// Stop gracefully shuts down the service.
func (s *Service) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started {
		return
	}

	ctx := context.Background()
	s.logger.Info(ctx, "stopping call analysis service...")

	// Shutting down the pool also closes the queue so workers drain.
	if s.workerPool != nil {
		_ = s.workerPool.Shutdown(ctx)
	}

	if s.store != nil {
		_ = s.store.Close()
	}

	select {
	case <-s.stopCh:
		// Channel already closed
	default:
		close(s.stopCh)
	}

	s.started = false
	s.logger.Info(ctx, "call analysis service stopped")
}

// SeenAndRecord atomically checks if a client request id was seen and records
// it if not. Returns true if it was already seen.
func (s *Service) SeenAndRecord(ctx context.Context, id string) bool {
	seen := s.deduper.SeenAndRecord(ctx, id)
	if seen {
		metrics.RecordAnalysisDuplicate()
	}
	return seen
}

// Unrecord removes a client request id from the seen list, allowing the
// submission to be retried.
func (s *Service) Unrecord(ctx context.Context, id string) {
	s.deduper.Unrecord(ctx, id)
}

// Size returns the current number of entries in the deduper.
func (s *Service) Size() int64 {
	if s.deduper == nil {
		return 0
	}
	return s.deduper.Size()
}

// SubmitManual scores a call synchronously from human-entered sub-scores and
// persists the finished record.
func (s *Service) SubmitManual(ctx context.Context, meta model.CallRecord, core, methodology map[string]int) (model.CallRecord, error) {
	metrics.RecordAnalysisSubmitted()

	analysis, err := workerpool.BuildAnalysis(core, methodology, s.def, meta.Category)
	if err != nil {
		return model.CallRecord{}, fmt.Errorf("analyze submission: %w", err)
	}

	rec := meta
	rec.ID = uuid.NewString()
	rec.UploadedAt = time.Now().UTC()
	rec.Status = model.StatusScored
	rec.Analysis = analysis

	if err := s.store.Create(ctx, rec); err != nil {
		return model.CallRecord{}, fmt.Errorf("persist record: %w", err)
	}
	metrics.RecordAnalysisCompleted()

	s.logger.Info(ctx, "manual submission scored",
		logger.String("id", rec.ID),
		logger.String("rm", rec.RMName),
		logger.Float64("overall", analysis.OverallScore),
	)
	return rec, nil
}

// SubmitForScoring persists a pending record and queues it for asynchronous
// oracle scoring. Returns false on backpressure; the pending record is rolled
// back so a retry starts clean.
func (s *Service) SubmitForScoring(ctx context.Context, meta model.CallRecord, description string) (model.CallRecord, bool) {
	metrics.RecordAnalysisSubmitted()

	rec := meta
	rec.ID = uuid.NewString()
	rec.UploadedAt = time.Now().UTC()
	rec.Status = model.StatusPending

	if err := s.store.Create(ctx, rec); err != nil {
		s.logger.Error(ctx, "failed to persist pending record", logger.Error(err))
		return model.CallRecord{}, false
	}

	job := model.AnalysisJob{
		RecordID:    rec.ID,
		Description: description,
		Category:    rec.Category,
		SubmittedAt: rec.UploadedAt,
	}
	if ok := s.jobQueue.Enqueue(ctx, job); !ok {
		if err := s.store.Delete(ctx, rec.ID); err != nil {
			s.logger.Error(ctx, "failed to roll back pending record", logger.Error(err))
		}
		return model.CallRecord{}, false
	}

	s.logger.Info(ctx, "submission queued for scoring",
		logger.String("id", rec.ID),
		logger.String("rm", rec.RMName),
	)
	return rec, true
}

// Analysis returns the call record with the given id.
func (s *Service) Analysis(ctx context.Context, id string) (model.CallRecord, error) {
	return s.store.Get(ctx, id)
}

// ListAnalyses returns condensed rows for records matching the filter.
func (s *Service) ListAnalyses(ctx context.Context, f repository.Filter) ([]types.ListEntry, error) {
	records, err := s.store.List(ctx, f)
	if err != nil {
		return nil, err
	}

	entries := make([]types.ListEntry, len(records))
	for i, rec := range records {
		entry := types.ListEntry{
			ID:              rec.ID,
			RMName:          rec.RMName,
			ParticipantName: rec.ParticipantName,
			CallCategory:    string(rec.Category),
			CallDate:        rec.CallDate,
			Status:          rec.Status,
		}
		if rec.Analysis != nil {
			entry.OverallScore = rec.Analysis.OverallScore
			entry.MethodologyCompliance = rec.Analysis.MethodologyCompliance
			entry.CallEffectiveness = rec.Analysis.CallEffectiveness
			entry.LikelyResult = rec.Analysis.OutcomePrediction.LikelyResult
		}
		entries[i] = entry
	}
	return entries, nil
}

// AddFeedback appends an admin review note to a call record.
func (s *Service) AddFeedback(ctx context.Context, id string, fb model.Feedback) (model.CallRecord, error) {
	rec, err := s.store.Get(ctx, id)
	if err != nil {
		return model.CallRecord{}, err
	}
	rec.Feedback = append(rec.Feedback, fb)
	if err := s.store.Update(ctx, rec); err != nil {
		return model.CallRecord{}, err
	}
	return rec, nil
}

// SaveRecording stores an uploaded recording and returns its key. The file
// extension is preserved so downloads keep a usable name.
func (s *Service) SaveRecording(ctx context.Context, filename string, data []byte) (string, error) {
	key := uuid.NewString()
	if ext := filepath.Ext(filename); ext != "" && !strings.ContainsAny(ext, `/\`) {
		key += ext
	}
	return s.blobs.Put(ctx, key, bytes.NewReader(data))
}

// Recording returns the stored recording bytes for key.
func (s *Service) Recording(ctx context.Context, key string) ([]byte, error) {
	rc, err := s.blobs.Get(ctx, key)
	if err != nil {
		return nil, err
	}
	defer rc.Close()

	data, err := io.ReadAll(rc)
	if err != nil {
		return nil, fmt.Errorf("read recording %s: %w", key, err)
	}
	return data, nil
}

// Rubric exposes the active rubric definition.
func (s *Service) Rubric(_ context.Context) rubric.Definition {
	return s.def
}

// Summary computes the admin aggregate report across all stored records.
// Averages cover analyzed records only; pending records count toward totals.
func (s *Service) Summary(ctx context.Context) (types.SummaryReport, error) {
	records, err := s.store.List(ctx, repository.Filter{})
	if err != nil {
		return types.SummaryReport{}, err
	}

	report := types.SummaryReport{TotalCalls: len(records)}

	rms := make(map[string]struct{})
	byCategory := make(map[string]*types.CategoryStats)
	paramTotals := make(map[string]int)
	analyzed := 0

	for _, rec := range records {
		rms[rec.RMName] = struct{}{}

		cs, ok := byCategory[string(rec.Category)]
		if !ok {
			cs = &types.CategoryStats{Category: string(rec.Category)}
			byCategory[string(rec.Category)] = cs
		}
		cs.Count++

		if rec.Analysis == nil {
			continue
		}
		analyzed++
		report.AvgScore += rec.Analysis.OverallScore
		report.AvgCompliance += rec.Analysis.MethodologyCompliance
		cs.AvgScore += rec.Analysis.OverallScore
		cs.AvgCompliance += rec.Analysis.MethodologyCompliance
		for name, v := range rec.Analysis.MethodologyScores {
			paramTotals[name] += v
		}
	}

	report.ActiveRMs = len(rms)
	if analyzed > 0 {
		report.AvgScore /= float64(analyzed)
		report.AvgCompliance /= float64(analyzed)
	}

	report.ByCategory = make([]types.CategoryStats, 0, len(byCategory))
	for _, cat := range rubric.Categories() {
		cs, ok := byCategory[string(cat)]
		if !ok {
			continue
		}
		scored := scoredInCategory(records, cat)
		if scored > 0 {
			cs.AvgScore /= float64(scored)
			cs.AvgCompliance /= float64(scored)
		}
		report.ByCategory = append(report.ByCategory, *cs)
	}

	report.ParameterStats = make([]types.ParameterStat, 0, len(s.def.Methodology))
	for _, dim := range s.def.Methodology {
		stat := types.ParameterStat{Parameter: dim.Name, Max: dim.Max}
		if analyzed > 0 {
			stat.AvgScore = float64(paramTotals[dim.Name]) / float64(analyzed)
		}
		report.ParameterStats = append(report.ParameterStats, stat)
	}
	sort.SliceStable(report.ParameterStats, func(i, j int) bool {
		return report.ParameterStats[i].AvgScore < report.ParameterStats[j].AvgScore
	})

	return report, nil
}

// scoredInCategory counts analyzed records in a category.
func scoredInCategory(records []model.CallRecord, cat rubric.Category) int {
	n := 0
	for _, rec := range records {
		if rec.Category == cat && rec.Analysis != nil {
			n++
		}
	}
	return n
}

// GetStats returns service statistics for monitoring.
func (s *Service) GetStats() map[string]interface{} {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ctx := context.Background()
	stats := map[string]interface{}{
		"started":     s.started,
		"workerCount": s.workerCount,
		"queueSize":   s.queueSize,
		"dedupeSize":  s.dedupeSize,
	}

	if s.started {
		queueLen := s.jobQueue.Len(ctx)
		totalCalls := s.store.Count(ctx)

		stats["queueLength"] = queueLen
		stats["totalCalls"] = totalCalls

		metrics.UpdateQueueSize(queueLen)
		metrics.UpdateStoreRecords(totalCalls)
	}

	return stats
}

// retentionLoop periodically deletes records and recordings older than the
// retention window.
func (s *Service) retentionLoop(ctx context.Context) {
	ticker := time.NewTicker(s.sweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-s.stopCh:
			return
		case <-ticker.C:
			s.sweep(ctx)
		}
	}
}

// sweep applies one retention pass: expired records first, then their
// recordings, then any orphaned recordings past the window.
func (s *Service) sweep(ctx context.Context) {
	start := time.Now()
	cutoff := start.Add(-s.retention)

	deleted, err := s.store.DeleteOlderThan(ctx, cutoff)
	if err != nil {
		s.logger.Error(ctx, "retention sweep failed", logger.Error(err))
		return
	}

	blobsDeleted := 0
	for _, rec := range deleted {
		if rec.RecordingKey == "" {
			continue
		}
		if err := s.blobs.Delete(ctx, rec.RecordingKey); err != nil {
			s.logger.Warn(ctx, "failed to delete recording",
				logger.String("key", rec.RecordingKey),
				logger.Error(err),
			)
			continue
		}
		blobsDeleted++
	}

	// Orphaned uploads (never attached to a record) age out too.
	orphans, err := s.blobs.DeleteOlderThan(ctx, cutoff)
	if err != nil {
		s.logger.Warn(ctx, "orphan recording sweep failed", logger.Error(err))
	}
	blobsDeleted += orphans

	metrics.RecordRetentionRecordsDeleted(len(deleted))
	metrics.RecordRetentionRecordingsDeleted(blobsDeleted)
	metrics.RecordRetentionSweepDuration(time.Since(start).Seconds())

	if len(deleted) > 0 || blobsDeleted > 0 {
		s.logger.Info(ctx, "retention sweep completed",
			logger.Int("records", len(deleted)),
			logger.Int("recordings", blobsDeleted),
		)
	}
}
