package scoring_test

import (
	"testing"

	rubric "github.com/okian/callscore/internal/domain/rubric"
	scoring "github.com/okian/callscore/internal/domain/scoring"
	. "github.com/smartystreets/goconvey/convey"
)

// atMax returns sub-score maps with every dimension at its maximum.
func atMax(dims []rubric.Dimension) map[string]int {
	scores := make(map[string]int, len(dims))
	for _, dim := range dims {
		scores[dim.Name] = dim.Max
	}
	return scores
}

// atZero returns sub-score maps with every dimension at zero.
func atZero(dims []rubric.Dimension) map[string]int {
	scores := make(map[string]int, len(dims))
	for _, dim := range dims {
		scores[dim.Name] = 0
	}
	return scores
}

func TestScore(t *testing.T) {
	def := rubric.Default()

	Convey("Given the default rubric", t, func() {
		Convey("When every dimension scores its maximum", func() {
			sum, err := scoring.Score(atMax(def.Core), atMax(def.Methodology), def)

			Convey("Then the overall score is exactly 100", func() {
				So(err, ShouldBeNil)
				So(sum.OverallScore, ShouldEqual, 100.0)
				So(sum.MethodologyCompliance, ShouldEqual, 100.0)
				So(sum.Effectiveness, ShouldEqual, scoring.EffectivenessExcellent)
			})
		})

		Convey("When every dimension scores zero", func() {
			sum, err := scoring.Score(atZero(def.Core), atZero(def.Methodology), def)

			Convey("Then the overall score is exactly 0", func() {
				So(err, ShouldBeNil)
				So(sum.OverallScore, ShouldEqual, 0.0)
				So(sum.MethodologyCompliance, ShouldEqual, 0.0)
				So(sum.Effectiveness, ShouldEqual, scoring.EffectivenessNeedsImprovement)
			})
		})

		Convey("When core and methodology totals are both 60", func() {
			core := map[string]int{
				"rapport_building":      12,
				"needs_discovery":       15,
				"solution_presentation": 15,
				"objection_handling":    9,
				"closing_technique":     9,
			}
			methodology := make(map[string]int, len(def.Methodology))
			for _, dim := range def.Methodology {
				methodology[dim.Name] = 6
			}
			sum, err := scoring.Score(core, methodology, def)

			Convey("Then the weighted blend is 60 and the band is Average", func() {
				So(err, ShouldBeNil)
				So(sum.OverallScore, ShouldEqual, 60.0)
				So(sum.MethodologyCompliance, ShouldEqual, 60.0)
				So(sum.Effectiveness, ShouldEqual, scoring.EffectivenessAverage)
			})
		})

		Convey("When compliance is computed", func() {
			methodology := atZero(def.Methodology)
			methodology["principles_usage"] = 7
			methodology["gap_creation"] = 3

			Convey("Then it equals the methodology sum regardless of core", func() {
				sumA, err := scoring.Score(atMax(def.Core), methodology, def)
				So(err, ShouldBeNil)
				sumB, err := scoring.Score(atZero(def.Core), methodology, def)
				So(err, ShouldBeNil)

				So(sumA.MethodologyCompliance, ShouldEqual, 10.0)
				So(sumB.MethodologyCompliance, ShouldEqual, 10.0)
			})
		})

		Convey("When values are out of range", func() {
			wild := map[string]int{
				"rapport_building":      999,
				"needs_discovery":       -5,
				"solution_presentation": 25,
				"objection_handling":    15,
				"closing_technique":     15,
			}
			clamped := map[string]int{
				"rapport_building":      20,
				"needs_discovery":       0,
				"solution_presentation": 25,
				"objection_handling":    15,
				"closing_technique":     15,
			}

			Convey("Then scoring the wild input equals scoring its clamped equivalent", func() {
				methodology := atMax(def.Methodology)
				sumWild, err := scoring.Score(wild, methodology, def)
				So(err, ShouldBeNil)
				sumClamped, err := scoring.Score(clamped, methodology, def)
				So(err, ShouldBeNil)
				So(sumWild, ShouldResemble, sumClamped)
			})
		})

		Convey("When the excitement_creation key is missing entirely", func() {
			methodology := atMax(def.Methodology)
			delete(methodology, "excitement_creation")
			sum, err := scoring.Score(atMax(def.Core), methodology, def)

			Convey("Then the neutral default of 5/10 is substituted", func() {
				So(err, ShouldBeNil)
				// 90 methodology points + neutral 5 instead of the full 10.
				So(sum.MethodologyCompliance, ShouldEqual, 95.0)
				So(sum.OverallScore, ShouldEqual, 98.0)
			})
		})

		Convey("When the rubric definition is invalid", func() {
			bad := rubric.Definition{}
			_, err := scoring.Score(nil, nil, bad)

			Convey("Then an error is returned", func() {
				So(err, ShouldWrap, rubric.ErrInvalidDefinition)
			})
		})
	})
}

func TestEffectivenessLabel(t *testing.T) {
	Convey("Given the fixed effectiveness thresholds", t, func() {
		Convey("Then bands are inclusive on their lower bound", func() {
			So(scoring.EffectivenessLabel(100), ShouldEqual, scoring.EffectivenessExcellent)
			So(scoring.EffectivenessLabel(85.0), ShouldEqual, scoring.EffectivenessExcellent)
			So(scoring.EffectivenessLabel(84.9), ShouldEqual, scoring.EffectivenessGood)
			So(scoring.EffectivenessLabel(70.0), ShouldEqual, scoring.EffectivenessGood)
			So(scoring.EffectivenessLabel(69.9), ShouldEqual, scoring.EffectivenessAverage)
			So(scoring.EffectivenessLabel(50.0), ShouldEqual, scoring.EffectivenessAverage)
			So(scoring.EffectivenessLabel(49.9), ShouldEqual, scoring.EffectivenessNeedsImprovement)
			So(scoring.EffectivenessLabel(0), ShouldEqual, scoring.EffectivenessNeedsImprovement)
		})
	})
}

func TestNormalize(t *testing.T) {
	def := rubric.Default()

	Convey("Given partial and out-of-range sub-scores", t, func() {
		core := map[string]int{
			"rapport_building": 50, // above max 20
			"unknown_key":      7,
		}
		normCore, normMeth, err := scoring.Normalize(core, nil, def)

		Convey("Then every rubric key is present and clamped", func() {
			So(err, ShouldBeNil)
			So(normCore, ShouldHaveLength, len(def.Core))
			So(normCore["rapport_building"], ShouldEqual, 20)
			So(normCore["needs_discovery"], ShouldEqual, 12) // neutral
			So(normMeth, ShouldHaveLength, len(def.Methodology))
			So(normMeth["excitement_creation"], ShouldEqual, 5) // neutral
		})

		Convey("Then keys not declared in the rubric are dropped", func() {
			So(normCore, ShouldNotContainKey, "unknown_key")
		})
	})
}

func TestNeutral(t *testing.T) {
	def := rubric.Default()

	Convey("Given the default rubric", t, func() {
		core, methodology := scoring.Neutral(def)

		Convey("Then every dimension sits at half of its maximum", func() {
			for _, dim := range def.Core {
				So(core[dim.Name], ShouldEqual, dim.Max/2)
			}
			for _, dim := range def.Methodology {
				So(methodology[dim.Name], ShouldEqual, 5)
			}
		})

		Convey("Then the neutral aggregates land mid-range", func() {
			sum, err := scoring.Score(core, methodology, def)
			So(err, ShouldBeNil)
			So(sum.OverallScore, ShouldEqual, 48.8)
			So(sum.MethodologyCompliance, ShouldEqual, 50.0)
		})
	})
}
