package scoring_test

import (
	"errors"
	"math"
	"testing"

	"github.com/okian/devrank/internal/domain/scoring"
	. "github.com/smartystreets/goconvey/convey"
)

// medianConfig has every median equal to the input used in the examples below.
func medianConfig() scoring.WeightConfig {
	cfg := scoring.DefaultWeightConfig()
	cfg.Weights = map[scoring.Metric]scoring.MetricWeight{
		scoring.MetricCommits:   {Weight: 1.5, Median: 10},
		scoring.MetricPulls:     {Weight: 2.5, Median: 10},
		scoring.MetricIssues:    {Weight: 1.5, Median: 25},
		scoring.MetricReviews:   {Weight: 1.5, Median: 2},
		scoring.MetricStars:     {Weight: 3.5, Median: 50},
		scoring.MetricFollowers: {Weight: 1.5, Median: 10},
	}
	return cfg
}

func ptr(f float64) *float64 { return &f }

func TestComputeScore(t *testing.T) {
	Convey("Given the stock configuration", t, func() {
		cfg := scoring.DefaultWeightConfig()

		Convey("When every count is zero and the previous score is 5.0", func() {
			res, err := scoring.ComputeScore(scoring.MetricsInput{Username: "zero", PreviousScore: ptr(5)}, cfg)

			Convey("Then the ratio is zero and the smoothed score rounds to 0.0", func() {
				So(err, ShouldBeNil)
				So(res.Username, ShouldEqual, "zero")
				So(res.Mode, ShouldEqual, scoring.ModeWeightedPercentile)
				So(res.RawRatio, ShouldEqual, 0)
				So(res.RawPercentile, ShouldEqual, 0)
				So(res.SmoothedScore, ShouldEqual, 0.0)
				So(res.Grade, ShouldEqual, "S")
			})
		})

		Convey("When no previous score is supplied", func() {
			withDefault, err1 := scoring.ComputeScore(scoring.MetricsInput{Commits: 500, Stars: 40}, cfg)
			explicit, err2 := scoring.ComputeScore(scoring.MetricsInput{Commits: 500, Stars: 40, PreviousScore: ptr(5)}, cfg)

			Convey("Then 5.0 is used for smoothing", func() {
				So(err1, ShouldBeNil)
				So(err2, ShouldBeNil)
				So(withDefault, ShouldResemble, explicit)
			})
		})
	})

	Convey("Given counts equal to every median", t, func() {
		in := scoring.MetricsInput{
			Username: "median", Commits: 10, Pulls: 10, Issues: 25, Reviews: 2, Stars: 50, Followers: 10,
		}
		res, err := scoring.ComputeScore(in, medianConfig())

		Convey("Then the percentile is 100 and the grade is the last label", func() {
			So(err, ShouldBeNil)
			So(res.RawRatio, ShouldEqual, 1.0)
			So(res.RawPercentile, ShouldEqual, 100.0)
			So(res.Grade, ShouldEqual, "C")
		})

		Convey("Then the smoothed score blends 100 with the neutral midpoint", func() {
			// (0.8*100 + 0.2*5) / 30 = 2.7
			So(res.SmoothedScore, ShouldEqual, 2.7)
		})
	})

	Convey("Given forks only", t, func() {
		res, err := scoring.ComputeScore(scoring.MetricsInput{Forks: 1000}, scoring.DefaultWeightConfig())

		Convey("Then forks carry no weight", func() {
			So(err, ShouldBeNil)
			So(res.RawRatio, ShouldEqual, 0)
		})
	})
}

func TestDeterminismAndMonotonicity(t *testing.T) {
	Convey("Given a fixed engine", t, func() {
		engine, err := scoring.NewEngine(scoring.DefaultWeightConfig())
		So(err, ShouldBeNil)
		base := scoring.MetricsInput{Commits: 120, Pulls: 7, Issues: 3, Reviews: 1, Stars: 12, Followers: 4}

		Convey("When the same input is evaluated repeatedly", func() {
			first, _ := engine.Compute(base)

			Convey("Then the result never changes", func() {
				for i := 0; i < 50; i++ {
					again, err := engine.Compute(base)
					So(err, ShouldBeNil)
					So(again, ShouldResemble, first)
				}
			})
		})

		Convey("When any single metric increases", func() {
			before, _ := engine.Compute(base)
			bumps := map[string]func(*scoring.MetricsInput){
				"commits":   func(m *scoring.MetricsInput) { m.Commits += 100 },
				"pulls":     func(m *scoring.MetricsInput) { m.Pulls += 5 },
				"issues":    func(m *scoring.MetricsInput) { m.Issues += 5 },
				"reviews":   func(m *scoring.MetricsInput) { m.Reviews++ },
				"stars":     func(m *scoring.MetricsInput) { m.Stars += 10 },
				"followers": func(m *scoring.MetricsInput) { m.Followers++ },
			}

			Convey("Then the raw ratio does not decrease", func() {
				for name, bump := range bumps {
					in := base
					bump(&in)
					after, err := engine.Compute(in)
					So(err, ShouldBeNil)
					So(after.RawRatio, ShouldBeGreaterThanOrEqualTo, before.RawRatio)
					So(name, ShouldNotBeEmpty)
				}
			})
		})
	})
}

func TestClamping(t *testing.T) {
	Convey("Given extreme inputs", t, func() {
		engine, err := scoring.NewEngine(scoring.DefaultWeightConfig())
		So(err, ShouldBeNil)

		Convey("When counts are huge", func() {
			res, err := engine.Compute(scoring.MetricsInput{
				Commits: math.MaxInt32, Pulls: math.MaxInt32, Stars: math.MaxInt32, PreviousScore: ptr(10),
			})

			Convey("Then the smoothed score is capped at 10", func() {
				So(err, ShouldBeNil)
				So(res.SmoothedScore, ShouldEqual, 10.0)
				So(res.RawPercentile, ShouldBeGreaterThan, 100)
				So(res.Grade, ShouldEqual, "C")
			})
		})

		Convey("When the smoothed score is computed over a sweep of inputs", func() {
			Convey("Then it stays within [0, 10] with one decimal", func() {
				for c := int64(0); c < 5000; c += 250 {
					for prev := 0.0; prev <= 10; prev += 2.5 {
						res, err := engine.Compute(scoring.MetricsInput{Commits: c * 10, Stars: c, PreviousScore: ptr(prev)})
						So(err, ShouldBeNil)
						So(res.SmoothedScore, ShouldBeBetweenOrEqual, 0.0, 10.0)
						So(math.Abs(res.SmoothedScore*10-math.Round(res.SmoothedScore*10)), ShouldBeLessThan, 1e-9)
					}
				}
			})
		})
	})
}

func TestGradeTable(t *testing.T) {
	Convey("Given the nine-tier grade table", t, func() {
		cfg := medianConfig()
		engine, err := scoring.NewEngine(cfg)
		So(err, ShouldBeNil)

		// Stars alone: percentile = 3.5 * stars/50 / 12 * 100.
		percentileFor := func(stars int64) float64 {
			res, err := engine.Compute(scoring.MetricsInput{Stars: stars})
			So(err, ShouldBeNil)
			return res.RawPercentile
		}

		Convey("Then every percentile in [0, 100] maps to exactly one label", func() {
			labels := map[string]bool{}
			for _, g := range cfg.Grades {
				labels[g.Label] = true
			}
			for s := int64(0); s <= 172; s++ {
				res, err := engine.Compute(scoring.MetricsInput{Stars: s})
				So(err, ShouldBeNil)
				So(labels[res.Grade], ShouldBeTrue)
			}
		})

		Convey("Then a percentile equal to a threshold takes that threshold's label", func() {
			// 12 * 50 / 3.5 / 100 is not integral, so use a config where one star is one percent.
			oneToOne := cfg
			oneToOne.Weights = map[scoring.Metric]scoring.MetricWeight{
				scoring.MetricStars: {Weight: 1, Median: 100},
			}
			e, err := scoring.NewEngine(oneToOne)
			So(err, ShouldBeNil)

			cases := map[int64]string{0: "S", 1: "S", 2: "A+", 25: "A", 26: "A-", 50: "B+", 75: "B-", 88: "C", 100: "C"}
			for stars, want := range cases {
				res, err := e.Compute(scoring.MetricsInput{Stars: stars})
				So(err, ShouldBeNil)
				So(res.Grade, ShouldEqual, want)
			}
		})

		Convey("Then percentiles above the last threshold keep the last label", func() {
			So(percentileFor(1000), ShouldBeGreaterThan, 100)
			res, _ := engine.Compute(scoring.MetricsInput{Stars: 1000})
			So(res.Grade, ShouldEqual, "C")
		})
	})
}

func TestInvalidMetrics(t *testing.T) {
	Convey("Given a negative value in each field", t, func() {
		engine, err := scoring.NewEngine(scoring.DefaultWeightConfig())
		So(err, ShouldBeNil)

		cases := []struct {
			field string
			in    scoring.MetricsInput
		}{
			{"commits", scoring.MetricsInput{Commits: -1}},
			{"pulls", scoring.MetricsInput{Pulls: -1}},
			{"issues", scoring.MetricsInput{Issues: -1}},
			{"reviews", scoring.MetricsInput{Reviews: -1}},
			{"stars", scoring.MetricsInput{Stars: -1}},
			{"followers", scoring.MetricsInput{Followers: -1}},
			{"forks", scoring.MetricsInput{Forks: -1}},
		}

		for _, c := range cases {
			field := c.field
			Convey("When "+field+" is negative", func() {
				_, err := engine.Compute(c.in)

				Convey("Then an InvalidMetricError names the field", func() {
					var ime *scoring.InvalidMetricError
					So(errors.As(err, &ime), ShouldBeTrue)
					So(ime.Field, ShouldEqual, field)
					So(errors.Is(err, scoring.ErrInvalidMetric), ShouldBeTrue)
				})
			})
		}
	})

	Convey("Given a previous score outside [0, 10]", t, func() {
		engine, _ := scoring.NewEngine(scoring.DefaultWeightConfig())

		for _, prev := range []float64{-0.1, 10.5, math.NaN()} {
			_, err := engine.Compute(scoring.MetricsInput{PreviousScore: ptr(prev)})
			var ime *scoring.InvalidMetricError
			So(errors.As(err, &ime), ShouldBeTrue)
			So(ime.Field, ShouldEqual, "previous_score")
		}
	})
}

func TestConfigurationErrors(t *testing.T) {
	Convey("Given broken configurations", t, func() {
		mutate := []struct {
			name string
			fn   func(*scoring.WeightConfig)
		}{
			{"zero total weight", func(c *scoring.WeightConfig) {
				c.Weights = map[scoring.Metric]scoring.MetricWeight{}
			}},
			{"negative weight", func(c *scoring.WeightConfig) {
				c.Weights[scoring.MetricStars] = scoring.MetricWeight{Weight: -1, Median: 50}
			}},
			{"infinite weight", func(c *scoring.WeightConfig) {
				c.Weights[scoring.MetricStars] = scoring.MetricWeight{Weight: math.Inf(1), Median: 50}
			}},
			{"empty grade table", func(c *scoring.WeightConfig) { c.Grades = nil }},
			{"unsorted grades", func(c *scoring.WeightConfig) {
				c.Grades = []scoring.GradeThreshold{{50, "B"}, {10, "A"}, {100, "C"}}
			}},
			{"last threshold below 100", func(c *scoring.WeightConfig) {
				c.Grades = []scoring.GradeThreshold{{10, "A"}, {90, "B"}}
			}},
			{"empty label", func(c *scoring.WeightConfig) {
				c.Grades = []scoring.GradeThreshold{{100, ""}}
			}},
			{"smoothing above one", func(c *scoring.WeightConfig) { c.SmoothingFactor = 1.2 }},
			{"smoothing below zero", func(c *scoring.WeightConfig) { c.SmoothingFactor = -0.1 }},
			{"zero divisor", func(c *scoring.WeightConfig) { c.ScoreDivisor = 0 }},
			{"unknown default mode", func(c *scoring.WeightConfig) { c.DefaultMode = "magic" }},
			{"empty point floor", func(c *scoring.WeightConfig) { c.PointFloor = "" }},
			{"ascending point table", func(c *scoring.WeightConfig) { c.PointGrades = []scoring.PointGrade{{5, "D"}, {90, "SSS"}} }},
			{"duplicate point minimum", func(c *scoring.WeightConfig) {
				c.PointGrades = []scoring.PointGrade{{10, "A"}, {10, "B"}}
			}},
		}

		for _, m := range mutate {
			Convey("When the config has "+m.name, func() {
				cfg := scoring.DefaultWeightConfig()
				m.fn(&cfg)
				engine, err := scoring.NewEngine(cfg)

				Convey("Then the engine refuses to start", func() {
					So(engine, ShouldBeNil)
					var ce *scoring.ConfigurationError
					So(errors.As(err, &ce), ShouldBeTrue)
					So(errors.Is(err, scoring.ErrConfiguration), ShouldBeTrue)
				})

				Convey("Then ComputeScore reports the same error", func() {
					_, err := scoring.ComputeScore(scoring.MetricsInput{}, cfg)
					So(errors.Is(err, scoring.ErrConfiguration), ShouldBeTrue)
				})
			})
		}
	})

	Convey("Given a zero median", t, func() {
		cfg := scoring.DefaultWeightConfig()
		cfg.Weights[scoring.MetricReviews] = scoring.MetricWeight{Weight: 1, Median: 0}
		engine, err := scoring.NewEngine(cfg)

		Convey("Then it is treated as 1 instead of failing", func() {
			So(err, ShouldBeNil)
			res, err := engine.Compute(scoring.MetricsInput{Reviews: 3})
			So(err, ShouldBeNil)
			So(res.RawRatio, ShouldAlmostEqual, 3.0/cfg.TotalWeightBase(), 1e-12)
		})
	})

	Convey("Given a caller that mutates its config after construction", t, func() {
		cfg := scoring.DefaultWeightConfig()
		engine, err := scoring.NewEngine(cfg)
		So(err, ShouldBeNil)
		before, _ := engine.Compute(scoring.MetricsInput{Stars: 10})

		cfg.Weights[scoring.MetricStars] = scoring.MetricWeight{Weight: 100, Median: 1}
		cfg.Grades[0].Label = "Z"
		after, _ := engine.Compute(scoring.MetricsInput{Stars: 10})

		Convey("Then the engine is unaffected", func() {
			So(after, ShouldResemble, before)
		})
	})
}

func TestPointMode(t *testing.T) {
	Convey("Given repository signals", t, func() {
		engine, err := scoring.NewEngine(scoring.DefaultWeightConfig())
		So(err, ShouldBeNil)

		Convey("When a repo has every bonus", func() {
			r := scoring.RepoSignal{Name: "DevRank", Contributors: 3, HasReadme: true, Commits: 10}

			Convey("Then it earns base, collaboration, readme, naming and commit points", func() {
				So(scoring.RepoPoints(r), ShouldEqual, 1+2+1+1+10)
			})
		})

		Convey("When a repo has no bonus", func() {
			r := scoring.RepoSignal{Name: "scripts", Contributors: 1}

			Convey("Then it earns only the base point", func() {
				So(scoring.RepoPoints(r), ShouldEqual, 1)
			})
		})

		Convey("When totals cross grade boundaries", func() {
			cases := []struct {
				commits int64
				grade   string
			}{
				{0, "F"}, {3, "F"}, {4, "D"}, {14, "C"}, {39, "B"}, {59, "A"}, {69, "S"}, {79, "SS"}, {89, "SSS"}, {500, "SSS"},
			}

			Convey("Then the descending table picks the first minimum reached", func() {
				for _, c := range cases {
					res, err := engine.ComputePoints("dev", []scoring.RepoSignal{{Name: "x", Commits: c.commits}})
					So(err, ShouldBeNil)
					So(res.Points, ShouldEqual, c.commits+1)
					So(res.Grade, ShouldEqual, c.grade)
					So(res.Mode, ShouldEqual, scoring.ModePointThreshold)
				}
			})
		})

		Convey("When there are no repositories", func() {
			res, err := engine.ComputePoints("empty", nil)

			Convey("Then the floor grade applies", func() {
				So(err, ShouldBeNil)
				So(res.Points, ShouldEqual, 0)
				So(res.Grade, ShouldEqual, "F")
			})
		})

		Convey("When a repo signal is negative", func() {
			_, err := engine.ComputePoints("dev", []scoring.RepoSignal{{Name: "x", Commits: -2}})

			Convey("Then an InvalidMetricError is returned", func() {
				So(errors.Is(err, scoring.ErrInvalidMetric), ShouldBeTrue)
			})
		})
	})

	Convey("Given repository names", t, func() {
		So(scoring.IsCamelCase("DevRank"), ShouldBeTrue)
		So(scoring.IsCamelCase("myToolKit"), ShouldBeTrue)
		So(scoring.IsCamelCase("devrank"), ShouldBeFalse)
		So(scoring.IsCamelCase("DEVRANK"), ShouldBeFalse)
		So(scoring.IsCamelCase("dev-rank"), ShouldBeFalse)
		So(scoring.IsCamelCase("Devrank"), ShouldBeFalse)
	})
}

func TestEvaluateModes(t *testing.T) {
	Convey("Given an engine", t, func() {
		engine, err := scoring.NewEngine(scoring.DefaultWeightConfig())
		So(err, ShouldBeNil)
		in := scoring.MetricsInput{Username: "octo", Commits: 200, Stars: 30}
		repos := []scoring.RepoSignal{{Name: "OctoCat", Contributors: 2, HasReadme: true, Commits: 20}}

		Convey("When the weighted mode is requested", func() {
			res, err := engine.Evaluate(scoring.ModeWeightedPercentile, in, repos)

			Convey("Then repo signals are ignored", func() {
				So(err, ShouldBeNil)
				So(res.Points, ShouldEqual, 0)
				So(res.RawRatio, ShouldBeGreaterThan, 0)
			})
		})

		Convey("When the point mode is requested", func() {
			res, err := engine.Evaluate(scoring.ModePointThreshold, in, repos)

			Convey("Then weighted fields stay empty", func() {
				So(err, ShouldBeNil)
				So(res.Username, ShouldEqual, "octo")
				So(res.Points, ShouldEqual, 25)
				So(res.RawRatio, ShouldEqual, 0)
				So(res.RankValue(), ShouldEqual, 25)
			})
		})

		Convey("When an unknown mode is requested", func() {
			_, err := engine.Evaluate("both", in, repos)

			Convey("Then it is rejected", func() {
				So(errors.Is(err, scoring.ErrUnknownMode), ShouldBeTrue)
			})
		})
	})

	Convey("Given mode strings", t, func() {
		for in, want := range map[string]scoring.Mode{
			"weighted_percentile": scoring.ModeWeightedPercentile,
			"Weighted":            scoring.ModeWeightedPercentile,
			"point_threshold":     scoring.ModePointThreshold,
			" points ":            scoring.ModePointThreshold,
		} {
			got, err := scoring.ParseMode(in)
			So(err, ShouldBeNil)
			So(got, ShouldEqual, want)
		}
		_, err := scoring.ParseMode("mixed")
		So(errors.Is(err, scoring.ErrUnknownMode), ShouldBeTrue)
	})
}
