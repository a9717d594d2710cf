package worker_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	queue "github.com/okian/callscore/internal/adapters/mq/queue"
	worker "github.com/okian/callscore/internal/adapters/mq/worker"
	oracle "github.com/okian/callscore/internal/adapters/oracle"
	model "github.com/okian/callscore/internal/domain/model"
	rubric "github.com/okian/callscore/internal/domain/rubric"
	"github.com/okian/callscore/pkg/logger"
	. "github.com/smartystreets/goconvey/convey"
)

const updateTimeout = 2 * time.Second

func TestMain(m *testing.M) {
	if err := logger.Init(); err != nil {
		panic(err)
	}
	m.Run()
}

// fakeStore holds records in memory and signals every Update so tests can
// wait for asynchronous processing without sleeping.
type fakeStore struct {
	mu      sync.Mutex
	recs    map[string]model.CallRecord
	updated chan string
}

func newFakeStore(recs ...model.CallRecord) *fakeStore {
	s := &fakeStore{
		recs:    make(map[string]model.CallRecord, len(recs)),
		updated: make(chan string, 64),
	}
	for _, rec := range recs {
		s.recs[rec.ID] = rec
	}
	return s
}

func (s *fakeStore) Get(_ context.Context, id string) (model.CallRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.recs[id]
	if !ok {
		return model.CallRecord{}, errors.New("record not found")
	}
	return rec, nil
}

func (s *fakeStore) Update(_ context.Context, rec model.CallRecord) error {
	s.mu.Lock()
	s.recs[rec.ID] = rec
	s.mu.Unlock()
	s.updated <- rec.ID
	return nil
}

func (s *fakeStore) get(id string) model.CallRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.recs[id]
}

func waitForUpdate(t *testing.T, s *fakeStore) string {
	t.Helper()
	select {
	case id := <-s.updated:
		return id
	case <-time.After(updateTimeout):
		t.Fatal("timed out waiting for a record update")
		return ""
	}
}

func pendingRecord(id string) model.CallRecord {
	return model.CallRecord{
		ID:         id,
		RMName:     "Priya",
		Category:   rubric.CategoryWelcome,
		CallDate:   "2026-08-01",
		UploadedAt: time.Now().UTC(),
		Status:     model.StatusPending,
	}
}

func TestWorkerScoresPendingRecord(t *testing.T) {
	def := rubric.Default()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	Convey("Given a worker fed by a queue with a working oracle", t, func() {
		store := newFakeStore(pendingRecord("rec-1"))
		q := queue.NewInMemoryQueue(queue.WithCapacity(10))
		scorer := oracle.NewStaticScorer(def, oracle.WithScores(
			map[string]int{
				"rapport_building": 18, "needs_discovery": 22, "solution_presentation": 22,
				"objection_handling": 13, "closing_technique": 13,
			},
			map[string]int{
				"principles_usage": 8, "case_studies_usage": 8, "bhag_fine_tuning": 8,
				"gap_creation": 8, "urgency_creation": 8, "contextualisation": 8,
				"excitement_creation": 8, "profile_understanding": 8,
				"credibility_building": 8, "commitment_getting": 8,
			},
		))
		w := worker.NewInMemoryWorker(q, scorer, store, def)
		go w.Run(ctx)
		defer func() {
			shutCtx, shutCancel := context.WithTimeout(context.Background(), time.Second)
			defer shutCancel()
			_ = w.Shutdown(shutCtx)
		}()

		Convey("When a job for the pending record is enqueued", func() {
			So(q.Enqueue(ctx, worker.Job{
				RecordID:    "rec-1",
				Description: "walked the participant through the program",
				Category:    rubric.CategoryWelcome,
				SubmittedAt: time.Now(),
			}), ShouldBeTrue)
			So(waitForUpdate(t, store), ShouldEqual, "rec-1")

			Convey("Then the record transitions to scored with a full analysis", func() {
				rec := store.get("rec-1")
				So(rec.Status, ShouldEqual, model.StatusScored)
				So(rec.Analysis, ShouldNotBeNil)
				So(rec.Analysis.OverallScore, ShouldEqual, 84.8)
				So(rec.Analysis.MethodologyCompliance, ShouldEqual, 80.0)
				So(rec.Analysis.CallEffectiveness, ShouldEqual, "Good")
				So(rec.Analysis.CoreScores["rapport_building"], ShouldEqual, 18)
				So(rec.Analysis.OutcomePrediction.LikelyResult, ShouldNotBeEmpty)
			})
		})
	})
}

func TestWorkerFallsBackWhenOracleFails(t *testing.T) {
	def := rubric.Default()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	Convey("Given a worker whose oracle always fails", t, func() {
		store := newFakeStore(pendingRecord("rec-1"))
		q := queue.NewInMemoryQueue(queue.WithCapacity(10))
		scorer := oracle.NewStaticScorer(def, oracle.WithError(oracle.ErrUnavailable))
		w := worker.NewInMemoryWorker(q, scorer, store, def)
		go w.Run(ctx)
		defer func() {
			shutCtx, shutCancel := context.WithTimeout(context.Background(), time.Second)
			defer shutCancel()
			_ = w.Shutdown(shutCtx)
		}()

		Convey("When the job is processed", func() {
			So(q.Enqueue(ctx, worker.Job{
				RecordID:    "rec-1",
				Description: "short call",
				Category:    rubric.CategoryWelcome,
			}), ShouldBeTrue)
			So(waitForUpdate(t, store), ShouldEqual, "rec-1")

			Convey("Then the record carries the neutral fallback analysis", func() {
				rec := store.get("rec-1")
				So(rec.Status, ShouldEqual, model.StatusFallback)
				So(rec.Analysis, ShouldNotBeNil)

				want, err := worker.FallbackAnalysis(def, rubric.CategoryWelcome)
				So(err, ShouldBeNil)
				So(rec.Analysis, ShouldResemble, want)
				So(rec.Analysis.CallSummary, ShouldContainSubstring, "Neutral baseline scores were applied")
			})
		})
	})
}

func TestBuildAnalysis(t *testing.T) {
	def := rubric.Default()

	Convey("Given raw oracle output with noise", t, func() {
		core := map[string]int{"rapport_building": 99, "made_up_key": 3}
		methodology := map[string]int{"principles_usage": -2}

		analysis, err := worker.BuildAnalysis(core, methodology, def, rubric.CategoryWelcome)

		Convey("Then the analysis is built on the clamped, completed maps", func() {
			So(err, ShouldBeNil)
			So(analysis.CoreScores["rapport_building"], ShouldEqual, 20)
			So(analysis.CoreScores, ShouldNotContainKey, "made_up_key")
			So(analysis.MethodologyScores["principles_usage"], ShouldEqual, 0)
			So(analysis.MethodologyScores["excitement_creation"], ShouldEqual, 5)
			So(analysis.OverallScore, ShouldBeBetweenOrEqual, 0, 100)
			So(analysis.CallSummary, ShouldStartWith, "Call scored ")
		})
	})

	Convey("Given an invalid rubric definition", t, func() {
		_, err := worker.BuildAnalysis(nil, nil, rubric.Definition{}, "")
		So(err, ShouldWrap, rubric.ErrInvalidDefinition)
	})
}

func TestFallbackAnalysis(t *testing.T) {
	def := rubric.Default()

	Convey("Given the neutral fallback", t, func() {
		fallback, err := worker.FallbackAnalysis(def, rubric.CategoryBHAG)
		So(err, ShouldBeNil)

		Convey("Then it matches an all-neutral analysis except for the summary", func() {
			neutral, err := worker.BuildAnalysis(nil, nil, def, rubric.CategoryBHAG)
			So(err, ShouldBeNil)

			So(fallback.CallSummary, ShouldNotEqual, neutral.CallSummary)
			fallback.CallSummary = neutral.CallSummary
			So(fallback, ShouldResemble, neutral)
		})
	})
}

func TestPoolProcessesAllJobs(t *testing.T) {
	def := rubric.Default()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	Convey("Given a pool of three workers", t, func() {
		const jobs = 12

		recs := make([]model.CallRecord, 0, jobs)
		for i := 0; i < jobs; i++ {
			recs = append(recs, pendingRecord(fmt.Sprintf("rec-%d", i)))
		}
		store := newFakeStore(recs...)
		q := queue.NewInMemoryQueue(queue.WithCapacity(jobs))
		pool := worker.NewPool(3, q, oracle.NewStaticScorer(def), store, def)
		pool.Start(ctx)

		Convey("When a batch of jobs is enqueued", func() {
			for i := 0; i < jobs; i++ {
				So(q.Enqueue(ctx, worker.Job{
					RecordID:    fmt.Sprintf("rec-%d", i),
					Description: "batch call",
					Category:    rubric.CategoryWelcome,
				}), ShouldBeTrue)
			}

			Convey("Then every record ends up scored", func() {
				for i := 0; i < jobs; i++ {
					waitForUpdate(t, store)
				}
				for i := 0; i < jobs; i++ {
					So(store.get(fmt.Sprintf("rec-%d", i)).Status, ShouldEqual, model.StatusScored)
				}
			})

			Convey("And shutdown drains cleanly", func() {
				for i := 0; i < jobs; i++ {
					waitForUpdate(t, store)
				}
				So(pool.Shutdown(ctx), ShouldBeNil)
				So(q.IsClosed(), ShouldBeTrue)
			})
		})
	})
}
