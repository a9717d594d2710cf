package service_test

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	oracle "github.com/okian/callscore/internal/adapters/oracle"
	repository "github.com/okian/callscore/internal/adapters/repository"
	service "github.com/okian/callscore/internal/app"
	model "github.com/okian/callscore/internal/domain/model"
	rubric "github.com/okian/callscore/internal/domain/rubric"
	"github.com/okian/callscore/pkg/logger"
	. "github.com/smartystreets/goconvey/convey"
)

const scoredTimeout = 3 * time.Second

func TestMain(m *testing.M) {
	if err := logger.Init(); err != nil {
		panic(err)
	}
	m.Run()
}

// newService starts a service on throwaway storage with retention disabled.
func newService(t *testing.T, opts ...service.Option) *service.Service {
	t.Helper()
	base := []service.Option{
		service.WithStoreBackend(service.BackendJSONFile, filepath.Join(t.TempDir(), "calls.json")),
		service.WithBlobDir(t.TempDir()),
		service.WithWorkerCount(2),
		service.WithRetention(0, 0),
	}
	svc := service.New(append(base, opts...)...)
	if err := svc.Start(context.Background()); err != nil {
		t.Fatalf("start service: %v", err)
	}
	t.Cleanup(svc.Stop)
	return svc
}

func meta(rm string, category rubric.Category) model.CallRecord {
	return model.CallRecord{
		RMName:          rm,
		ParticipantName: "Jordan",
		Category:        category,
		CallOutcome:     "Positive",
		CallDate:        "2026-08-15",
		DurationMinutes: 30,
	}
}

func maxScores(dims []rubric.Dimension) map[string]int {
	scores := make(map[string]int, len(dims))
	for _, dim := range dims {
		scores[dim.Name] = dim.Max
	}
	return scores
}

// waitScored polls until the record leaves the pending status.
func waitScored(t *testing.T, svc *service.Service, id string) model.CallRecord {
	t.Helper()
	deadline := time.Now().Add(scoredTimeout)
	for time.Now().Before(deadline) {
		rec, err := svc.Analysis(context.Background(), id)
		if err == nil && rec.Status != model.StatusPending {
			return rec
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("record %s was not scored within %s", id, scoredTimeout)
	return model.CallRecord{}
}

func TestSubmitManual(t *testing.T) {
	ctx := context.Background()
	def := rubric.Default()

	Convey("Given a running service", t, func() {
		svc := newService(t)

		Convey("When a manual submission with perfect sub-scores arrives", func() {
			rec, err := svc.SubmitManual(ctx, meta("Priya", rubric.CategoryWelcome),
				maxScores(def.Core), maxScores(def.Methodology))

			Convey("Then the record is scored and persisted immediately", func() {
				So(err, ShouldBeNil)
				So(rec.ID, ShouldNotBeEmpty)
				So(rec.Status, ShouldEqual, model.StatusScored)
				So(rec.Analysis, ShouldNotBeNil)
				So(rec.Analysis.OverallScore, ShouldEqual, 100.0)
				So(rec.Analysis.CallEffectiveness, ShouldEqual, "Excellent")

				stored, err := svc.Analysis(ctx, rec.ID)
				So(err, ShouldBeNil)
				So(stored.Analysis.OverallScore, ShouldEqual, 100.0)
			})
		})
	})
}

func TestSubmitForScoring(t *testing.T) {
	ctx := context.Background()

	Convey("Given a running service with the static oracle", t, func() {
		svc := newService(t)

		Convey("When a description-only submission is queued", func() {
			rec, ok := svc.SubmitForScoring(ctx, meta("Priya", rubric.CategoryWelcome),
				"walked through the program and set the next call")

			Convey("Then it is acknowledged pending and eventually scored", func() {
				So(ok, ShouldBeTrue)
				So(rec.ID, ShouldNotBeEmpty)
				So(rec.Status, ShouldEqual, model.StatusPending)

				scored := waitScored(t, svc, rec.ID)
				So(scored.Status, ShouldEqual, model.StatusScored)
				So(scored.Analysis, ShouldNotBeNil)
				// Static oracle returns neutral mid-range scores.
				So(scored.Analysis.OverallScore, ShouldEqual, 48.8)
				So(scored.Analysis.MethodologyCompliance, ShouldEqual, 50.0)
			})
		})
	})
}

func TestSubmitForScoringFallback(t *testing.T) {
	ctx := context.Background()
	def := rubric.Default()

	Convey("Given a service whose oracle always fails", t, func() {
		svc := newService(t, service.WithScorer(
			oracle.NewStaticScorer(def, oracle.WithError(oracle.ErrUnavailable)),
		))

		Convey("When a submission is queued", func() {
			rec, ok := svc.SubmitForScoring(ctx, meta("Priya", rubric.CategoryWelcome), "short call")
			So(ok, ShouldBeTrue)

			Convey("Then the record still ends up with the fallback analysis", func() {
				scored := waitScored(t, svc, rec.ID)
				So(scored.Status, ShouldEqual, model.StatusFallback)
				So(scored.Analysis, ShouldNotBeNil)
				So(scored.Analysis.OverallScore, ShouldEqual, 48.8)
				So(scored.Analysis.CallSummary, ShouldContainSubstring, "Neutral baseline scores were applied")
			})
		})
	})
}

// blockingScorer parks every Score call until released, keeping workers busy
// so the queue can be filled deterministically.
type blockingScorer struct {
	release chan struct{}
	def     rubric.Definition
}

func (b *blockingScorer) Score(ctx context.Context, req oracle.Request) (oracle.RawScores, error) {
	select {
	case <-b.release:
	case <-ctx.Done():
	}
	return oracle.NewStaticScorer(b.def).Score(ctx, req)
}

func TestSubmitForScoringBackpressure(t *testing.T) {
	ctx := context.Background()
	def := rubric.Default()

	Convey("Given a single busy worker and a one-slot queue", t, func() {
		blocker := &blockingScorer{release: make(chan struct{}), def: def}
		svc := newService(t,
			service.WithWorkerCount(1),
			service.WithQueueSize(1),
			service.WithScorer(blocker),
		)
		defer close(blocker.release)

		Convey("When submissions keep arriving and nothing drains", func() {
			// The worker and its dequeue hand-off can hold a couple of jobs
			// beyond the queue slot; keep submitting until one is rejected.
			accepted := []string{}
			rejected := false
			for i := 0; i < 10 && !rejected; i++ {
				rec, ok := svc.SubmitForScoring(ctx, meta("Priya", rubric.CategoryWelcome), "queued call")
				if !ok {
					rejected = true
					break
				}
				accepted = append(accepted, rec.ID)
			}

			Convey("Then one is rejected and its pending record rolled back", func() {
				So(rejected, ShouldBeTrue)
				So(svc.GetStats()["totalCalls"], ShouldEqual, len(accepted))
				for _, id := range accepted {
					_, err := svc.Analysis(ctx, id)
					So(err, ShouldBeNil)
				}
			})
		})
	})
}

func TestDedupe(t *testing.T) {
	ctx := context.Background()

	Convey("Given a running service", t, func() {
		svc := newService(t)

		Convey("When a client request id is recorded", func() {
			So(svc.SeenAndRecord(ctx, "req-1"), ShouldBeFalse)

			Convey("Then a repeat is flagged and unrecording clears it", func() {
				So(svc.SeenAndRecord(ctx, "req-1"), ShouldBeTrue)
				svc.Unrecord(ctx, "req-1")
				So(svc.SeenAndRecord(ctx, "req-1"), ShouldBeFalse)
			})
		})
	})
}

func TestAddFeedback(t *testing.T) {
	ctx := context.Background()
	def := rubric.Default()

	Convey("Given a scored record", t, func() {
		svc := newService(t)
		rec, err := svc.SubmitManual(ctx, meta("Priya", rubric.CategoryWelcome),
			maxScores(def.Core), maxScores(def.Methodology))
		So(err, ShouldBeNil)

		Convey("When feedback is added twice", func() {
			_, err := svc.AddFeedback(ctx, rec.ID, model.Feedback{
				Author: "coach", Comment: "strong close", Rating: 5, CreatedAt: time.Now().UTC(),
			})
			So(err, ShouldBeNil)
			updated, err := svc.AddFeedback(ctx, rec.ID, model.Feedback{
				Author: "lead", Comment: "verify follow-up happened", Rating: 4, CreatedAt: time.Now().UTC(),
			})
			So(err, ShouldBeNil)

			Convey("Then both notes persist in order", func() {
				So(updated.Feedback, ShouldHaveLength, 2)
				So(updated.Feedback[0].Author, ShouldEqual, "coach")
				So(updated.Feedback[1].Author, ShouldEqual, "lead")

				stored, err := svc.Analysis(ctx, rec.ID)
				So(err, ShouldBeNil)
				So(stored.Feedback, ShouldHaveLength, 2)
			})
		})
	})
}

func TestListAnalyses(t *testing.T) {
	ctx := context.Background()
	def := rubric.Default()

	Convey("Given scored records from two RMs", t, func() {
		svc := newService(t)
		_, err := svc.SubmitManual(ctx, meta("Priya", rubric.CategoryWelcome),
			maxScores(def.Core), maxScores(def.Methodology))
		So(err, ShouldBeNil)
		_, err = svc.SubmitManual(ctx, meta("Daniel", rubric.CategoryBHAG), nil, nil)
		So(err, ShouldBeNil)

		Convey("When listing with an RM filter", func() {
			entries, err := svc.ListAnalyses(ctx, repository.Filter{RMName: "priya"})

			Convey("Then the condensed rows carry the analysis fields", func() {
				So(err, ShouldBeNil)
				So(entries, ShouldHaveLength, 1)
				So(entries[0].RMName, ShouldEqual, "Priya")
				So(entries[0].CallCategory, ShouldEqual, string(rubric.CategoryWelcome))
				So(entries[0].OverallScore, ShouldEqual, 100.0)
				So(entries[0].CallEffectiveness, ShouldEqual, "Excellent")
				So(entries[0].LikelyResult, ShouldNotBeEmpty)
			})
		})
	})
}

func TestSummary(t *testing.T) {
	ctx := context.Background()
	def := rubric.Default()

	Convey("Given a spread of scored records", t, func() {
		svc := newService(t)
		_, err := svc.SubmitManual(ctx, meta("Priya", rubric.CategoryWelcome),
			maxScores(def.Core), maxScores(def.Methodology))
		So(err, ShouldBeNil)
		// nil sub-scores normalize to the neutral mid-range.
		_, err = svc.SubmitManual(ctx, meta("Priya", rubric.CategoryWelcome), nil, nil)
		So(err, ShouldBeNil)
		_, err = svc.SubmitManual(ctx, meta("Daniel", rubric.CategoryBHAG), nil, nil)
		So(err, ShouldBeNil)

		Convey("When the summary is computed", func() {
			report, err := svc.Summary(ctx)

			Convey("Then totals and averages cover the analyzed records", func() {
				So(err, ShouldBeNil)
				So(report.TotalCalls, ShouldEqual, 3)
				So(report.ActiveRMs, ShouldEqual, 2)
				So(report.AvgScore, ShouldAlmostEqual, (100.0+48.8+48.8)/3, 0.001)
				So(report.AvgCompliance, ShouldAlmostEqual, (100.0+50.0+50.0)/3, 0.001)
			})

			Convey("Then per-category stats follow the rubric category order", func() {
				So(err, ShouldBeNil)
				So(report.ByCategory, ShouldHaveLength, 2)
				So(report.ByCategory[0].Category, ShouldEqual, string(rubric.CategoryWelcome))
				So(report.ByCategory[0].Count, ShouldEqual, 2)
				So(report.ByCategory[0].AvgScore, ShouldAlmostEqual, (100.0+48.8)/2, 0.001)
				So(report.ByCategory[1].Category, ShouldEqual, string(rubric.CategoryBHAG))
				So(report.ByCategory[1].Count, ShouldEqual, 1)
			})

			Convey("Then parameter stats cover every methodology parameter, weakest first", func() {
				So(err, ShouldBeNil)
				So(report.ParameterStats, ShouldHaveLength, len(def.Methodology))
				for i := 1; i < len(report.ParameterStats); i++ {
					So(report.ParameterStats[i-1].AvgScore, ShouldBeLessThanOrEqualTo, report.ParameterStats[i].AvgScore)
				}
			})
		})
	})
}

func TestRecordings(t *testing.T) {
	ctx := context.Background()

	Convey("Given a running service", t, func() {
		svc := newService(t)

		Convey("When a recording is saved", func() {
			key, err := svc.SaveRecording(ctx, "welcome-call.mp3", []byte("audio bytes"))

			Convey("Then the key keeps the extension and the bytes round-trip", func() {
				So(err, ShouldBeNil)
				So(key, ShouldEndWith, ".mp3")

				data, err := svc.Recording(ctx, key)
				So(err, ShouldBeNil)
				So(string(data), ShouldEqual, "audio bytes")
			})
		})
	})
}

func TestRubric(t *testing.T) {
	ctx := context.Background()

	Convey("Given a running service", t, func() {
		svc := newService(t)

		Convey("Then it exposes the default rubric", func() {
			def := svc.Rubric(ctx)
			So(def.Validate(), ShouldBeNil)
			So(def.Core, ShouldHaveLength, 5)
			So(def.Methodology, ShouldHaveLength, 10)
		})
	})
}
