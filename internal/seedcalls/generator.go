package seedcalls

import (
	"context"
	"crypto/rand"
	"fmt"
	"math/big"
	"time"

	"github.com/google/uuid"

	"github.com/okian/callscore/internal/domain/rubric"
	"github.com/okian/callscore/pkg/logger"
)

// Performance profiles used to spread generated scores across the bands.
const (
	caseStrongPerformer  = 0
	caseAveragePerformer = 1
	caseWeakPerformer    = 2
	caseMixedPerformer   = 3
	profileCount         = 4
)

// Fraction of submissions sent description-only for asynchronous scoring,
// as a 1-in-N chance.
const descriptionEveryN = 4

var rmNames = []string{
	"Anita Rao", "Vikram Shah", "Meera Pillai", "Rahul Nair",
	"Divya Menon", "Karan Joshi", "Sneha Iyer", "Arjun Das",
}

var participantNames = []string{
	"Priya Sharma", "Rohit Verma", "Kavya Reddy", "Amit Patel",
	"Nisha Gupta", "Suresh Kumar", "Lakshmi Krishnan", "Deepak Singh",
}

var outcomes = []string{"Registered", "Follow-up scheduled", "Not interested", "Undecided"}

// randInt returns a random integer in [0, n) using crypto/rand.
func randInt(n int) int {
	v, _ := rand.Int(rand.Reader, big.NewInt(int64(n)))
	return int(v.Int64())
}

// generateSubmissions creates the requested number of synthetic submissions.
func generateSubmissions(ctx context.Context, config *Config, def rubric.Definition, stats *Stats) []Submission {
	logger.Get().Info(ctx, "generating call submissions", logger.Int("numCalls", config.NumCalls))

	categories := rubric.Categories()
	subs := make([]Submission, config.NumCalls)
	today := time.Now().UTC().Format("2006-01-02")

	for i := range subs {
		sub := Submission{
			ClientRequestID: uuid.NewString(),
			RMName:          rmNames[randInt(len(rmNames))],
			ParticipantName: participantNames[randInt(len(participantNames))],
			CallCategory:    string(categories[randInt(len(categories))]),
			CallOutcome:     outcomes[randInt(len(outcomes))],
			CallDate:        today,
			DurationMinutes: 10 + randInt(50),
		}

		if randInt(descriptionEveryN) == 0 {
			sub.Description = fmt.Sprintf(
				"Call %d with %s: discussed goals, walked through the program structure and addressed pricing concerns.",
				i, sub.ParticipantName)
		} else {
			profile := randInt(profileCount)
			sub.CoreScores = generateScores(def.Core, profile)
			sub.MethodologyScores = generateScores(def.Methodology, profile)
		}
		subs[i] = sub
	}

	stats.CallsGenerated = len(subs)
	logger.Get().Info(ctx, "generated submissions", logger.Int("count", len(subs)))
	return subs
}

// generateScores produces sub-scores for one dimension group under a
// performance profile.
func generateScores(dims []rubric.Dimension, profile int) map[string]int {
	scores := make(map[string]int, len(dims))
	for _, dim := range dims {
		var v int
		switch profile {
		case caseStrongPerformer:
			// 80-100% of max
			v = dim.Max*4/5 + randInt(dim.Max/5+1)
		case caseAveragePerformer:
			// 50-80% of max
			v = dim.Max/2 + randInt(dim.Max*3/10+1)
		case caseWeakPerformer:
			// 0-50% of max
			v = randInt(dim.Max/2 + 1)
		default:
			// Anywhere in range
			v = randInt(dim.Max + 1)
		}
		scores[dim.Name] = v
	}
	return scores
}
