// Package health turns a reconciliation result into a 0–100 score and a
// letter grade.
//
// The score is a weighted blend of four factors, each in [0, 1]:
//
//	localization  localized calls / (localized calls + hardcoded strings)
//	missing       1 − failed key lookups / key lookups
//	dead          1 − dead keys / primary keys
//	consistency   (key, target language) pairs present / pairs required
//
// A factor with a zero denominator has nothing to fault and counts as 1.
// Two edge rules override the blend: a project where nothing was scanned
// and no keys exist scores 100, and a project with hardcoded strings but
// no localized call at all scores 0.
package health

import (
	"fmt"
	"math"

	"github.com/minios-linux/lokscan/diag"
	"github.com/minios-linux/lokscan/reconcile"
)

// Weights are the share of each factor in the score. They must be
// non-negative and sum to 1.
type Weights struct {
	Localization float64 `yaml:"localization" json:"localization"`
	Missing      float64 `yaml:"missing" json:"missing"`
	Dead         float64 `yaml:"dead" json:"dead"`
	Consistency  float64 `yaml:"consistency" json:"consistency"`
}

// DefaultWeights favor the localization rate, then missing keys.
func DefaultWeights() Weights {
	return Weights{Localization: 0.40, Missing: 0.30, Dead: 0.10, Consistency: 0.20}
}

const weightTolerance = 1e-6

// Validate reports weights that are negative or do not sum to 1.
func (w Weights) Validate() error {
	for name, v := range map[string]float64{
		"localization": w.Localization,
		"missing":      w.Missing,
		"dead":         w.Dead,
		"consistency":  w.Consistency,
	} {
		if v < 0 || math.IsNaN(v) {
			return diag.Configf("health_weights", "weight %s is %v, must be >= 0", name, v)
		}
	}
	if sum := w.sum(); math.Abs(sum-1) > weightTolerance {
		return diag.Configf("health_weights", "weights sum to %.6f, must sum to 1.0", sum)
	}
	return nil
}

func (w Weights) sum() float64 {
	return w.Localization + w.Missing + w.Dead + w.Consistency
}

// Factors are the four normalized inputs of the score.
type Factors struct {
	Localization float64 `yaml:"localization" json:"localization"`
	Missing      float64 `yaml:"missing" json:"missing"`
	Dead         float64 `yaml:"dead" json:"dead"`
	Consistency  float64 `yaml:"consistency" json:"consistency"`
}

// Score is the health of one analysis run.
type Score struct {
	Score float64 `yaml:"score" json:"score"`
	Grade string  `yaml:"grade" json:"grade"`
	// LocalizationRate is the percentage of localized calls among all
	// scanned strings; 0 when nothing was scanned.
	LocalizationRate float64 `yaml:"localization_rate" json:"localization_rate"`
	// ConsistencyRate is the percentage of required target pairs present.
	ConsistencyRate float64 `yaml:"consistency_rate" json:"consistency_rate"`
	Factors         Factors `yaml:"factors" json:"factors"`

	Localized  int `yaml:"localized" json:"localized"`
	Hardcoded  int `yaml:"hardcoded" json:"hardcoded"`
	Missing    int `yaml:"missing" json:"missing"`
	Dead       int `yaml:"dead" json:"dead"`
	Duplicates int `yaml:"duplicates" json:"duplicates"`
	Unmatched  int `yaml:"unmatched_dynamic" json:"unmatched_dynamic"`
}

// Calculate scores res with weights w. It is total: any result, including
// an empty one, yields a score in [0, 100]. Invalid weights fall back to
// DefaultWeights.
func Calculate(res *reconcile.Result, w Weights) Score {
	if w.Validate() != nil {
		w = DefaultWeights()
	}
	c := res.Counts
	s := Score{
		Localized:  c.LocalizedCalls,
		Hardcoded:  c.Hardcoded,
		Missing:    len(res.MissingReferenced()),
		Dead:       c.Dead,
		Duplicates: len(res.Duplicates),
		Unmatched:  len(res.UnmatchedDynamic()),
	}

	scanned := c.LocalizedCalls + c.Hardcoded
	if scanned > 0 {
		s.LocalizationRate = round1(100 * float64(c.LocalizedCalls) / float64(scanned))
	}
	s.Factors = Factors{
		Localization: ratio(c.LocalizedCalls, scanned),
		Missing:      1 - ratio0(c.MissingReferenced, c.Checks),
		Dead:         1 - ratio0(c.Dead, c.PrimaryKeys),
		Consistency:  ratio(c.PresentPairs, c.RequiredPairs),
	}
	s.ConsistencyRate = round1(100 * s.Factors.Consistency)

	switch {
	case scanned == 0 && c.PrimaryKeys == 0:
		s.Score = 100
	case c.LocalizedCalls == 0 && c.Hardcoded > 0:
		s.Score = 0
	default:
		f := s.Factors
		blend := w.Localization*f.Localization + w.Missing*f.Missing + w.Dead*f.Dead + w.Consistency*f.Consistency
		s.Score = round1(clamp(100*blend, 0, 100))
	}
	s.Grade = Grade(s.Score)
	return s
}

// ratio returns n/d, or 1 when d is zero.
func ratio(n, d int) float64 {
	if d == 0 {
		return 1
	}
	return float64(n) / float64(d)
}

// ratio0 returns n/d, or 0 when d is zero.
func ratio0(n, d int) float64 {
	if d == 0 {
		return 0
	}
	return float64(n) / float64(d)
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}

// Grade maps a score to A (>= 90), B (>= 80), C (>= 70), D (>= 60) or F.
func Grade(score float64) string {
	switch {
	case score >= 90:
		return "A"
	case score >= 80:
		return "B"
	case score >= 70:
		return "C"
	case score >= 60:
		return "D"
	default:
		return "F"
	}
}

// RecommendationKind identifies one piece of advice.
type RecommendationKind string

const (
	FixHardcoded     RecommendationKind = "fix_hardcoded"
	AddMissing       RecommendationKind = "add_missing"
	TranslateMissing RecommendationKind = "translate_missing"
	RemoveDead       RecommendationKind = "remove_dead"
	MergeDuplicates  RecommendationKind = "merge_duplicates"
	CheckDynamic     RecommendationKind = "check_dynamic"
	RateLow          RecommendationKind = "rate_low"
	RateGood         RecommendationKind = "rate_good"
	RateExcellent    RecommendationKind = "rate_excellent"
)

// Recommendation is advice derived from a score.
type Recommendation struct {
	Kind  RecommendationKind `json:"kind"`
	Count int                `json:"count,omitempty"`
}

var recommendationFormats = map[RecommendationKind]string{
	FixHardcoded:     "Fix %d hardcoded string(s) to improve the localization rate",
	AddMissing:       "Add %d missing key(s) to the string tables",
	RemoveDead:       "Remove %d unused key(s) to reduce clutter",
	MergeDuplicates:  "Consolidate %d duplicate string(s) into shared keys",
	CheckDynamic:     "Check %d dynamic key pattern(s) that match no key",
	TranslateMissing: "Translate %d missing target-language entries",
	RateLow:          "Localization rate is below 80% - fix high-priority strings first",
	RateGood:         "Good progress! Localize the remaining hardcoded strings",
	RateExcellent:    "Excellent localization! Keep this standard for new code",
}

// Format returns the advice text. For a recommendation with a Count it is
// a printf format with one %d verb.
func (r Recommendation) Format() string { return recommendationFormats[r.Kind] }

func (r Recommendation) String() string {
	if r.Count > 0 {
		return fmt.Sprintf(r.Format(), r.Count)
	}
	return r.Format()
}

// Recommendations lists advice for s, most actionable first. missingTargets
// is the number of missing entries that code does not refer to directly.
func Recommendations(s Score, missingTargets int) []Recommendation {
	var out []Recommendation
	add := func(kind RecommendationKind, n int) {
		if n > 0 {
			out = append(out, Recommendation{Kind: kind, Count: n})
		}
	}
	add(FixHardcoded, s.Hardcoded)
	add(AddMissing, s.Missing)
	add(TranslateMissing, missingTargets)
	add(RemoveDead, s.Dead)
	add(MergeDuplicates, s.Duplicates)
	add(CheckDynamic, s.Unmatched)

	switch {
	case s.LocalizationRate < 80 && s.Localized+s.Hardcoded > 0:
		out = append(out, Recommendation{Kind: RateLow})
	case s.LocalizationRate < 95 && s.Localized+s.Hardcoded > 0:
		out = append(out, Recommendation{Kind: RateGood})
	default:
		out = append(out, Recommendation{Kind: RateExcellent})
	}
	return out
}

// Delta is the change between two scores; positive Score means better,
// positive issue counts mean more issues.
type Delta struct {
	Score            float64 `json:"score"`
	LocalizationRate float64 `json:"localization_rate"`
	Hardcoded        int     `json:"hardcoded"`
	Missing          int     `json:"missing"`
	Dead             int     `json:"dead"`
}

// Compare returns cur minus prev.
func Compare(prev, cur Score) Delta {
	return Delta{
		Score:            round1(cur.Score - prev.Score),
		LocalizationRate: round1(cur.LocalizationRate - prev.LocalizationRate),
		Hardcoded:        cur.Hardcoded - prev.Hardcoded,
		Missing:          cur.Missing - prev.Missing,
		Dead:             cur.Dead - prev.Dead,
	}
}

// Trend describes the direction of d.Score: "improved", "declined" or
// "unchanged".
func (d Delta) Trend() string {
	switch {
	case d.Score > 0:
		return "improved"
	case d.Score < 0:
		return "declined"
	default:
		return "unchanged"
	}
}
