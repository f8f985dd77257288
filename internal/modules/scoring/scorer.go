package scoring

import (
	"math"

	"github.com/blumarkets/hram/internal/domain"
)

// Penalty is one scoring adjustment, kept for the auditable breakdown.
type Penalty struct {
	Reason string `json:"reason"`
	Delta  int    `json:"delta"`
}

// Result is the full scoring output. The breakdown is required, not optional:
// onboarding consent screens must be able to explain the result.
type Result struct {
	Score     int                  `json:"score"` // final, clamped to [1,10]
	Profile   string               `json:"profile"`
	TargetPct map[domain.Layer]int `json:"target_pct"`

	Capacity float64 `json:"capacity"`
	// WillingnessRaw is the computed dimension score; Willingness is the
	// effective value after any gambler cap. Penalty comparisons and the
	// consent-screen breakdown use the raw value.
	WillingnessRaw float64 `json:"willingness_raw"`
	Willingness    float64 `json:"willingness"`
	Horizon        float64 `json:"horizon"`
	Goal           float64 `json:"goal"`

	RawScore       float64   `json:"raw_score"` // min(C, W) before caps and penalties
	LimitingFactor Dimension `json:"limiting_factor"`
	HorizonCap     int       `json:"horizon_cap,omitempty"`
	Penalties      []Penalty `json:"penalties,omitempty"`
	Warnings       []string  `json:"warnings,omitempty"`
	Flags          []string  `json:"flags,omitempty"`
}

// Score computes the risk result for a set of answers, keyed by question id
// with the chosen option index as value.
//
// It never fails: unrecognized question ids and out-of-range option indexes
// are ignored, and an empty answer set produces the all-neutral result.
func Score(answers map[string]int, q *Questionnaire) Result {
	res := Result{}

	// Dimension scores: weighted averages with unanswered questions
	// contributing the neutral score.
	res.Capacity = q.dimensionScore(DimCapacity, answers)
	res.WillingnessRaw = q.dimensionScore(DimWillingness, answers)
	res.Willingness = res.WillingnessRaw
	res.Horizon = q.dimensionScore(DimHorizon, answers)
	res.Goal = q.dimensionScore(DimGoal, answers)

	flags := q.collectFlags(answers)
	res.Flags = flags

	// Gambler without concentrated exposure caps willingness, not the
	// final score: the conservative dominance rule then decides.
	effectiveWillingness := res.Willingness
	if hasFlag(flags, FlagGambler) && !hasFlag(flags, FlagHighProportion) {
		if effectiveWillingness > 7 {
			effectiveWillingness = 7
			res.Warnings = append(res.Warnings, "gambling-style answers: willingness capped at 7")
		}
	}
	res.Willingness = effectiveWillingness

	// Conservative dominance: the weaker of capacity and willingness wins.
	if res.Capacity <= effectiveWillingness {
		res.RawScore = res.Capacity
		res.LimitingFactor = DimCapacity
	} else {
		res.RawScore = effectiveWillingness
		res.LimitingFactor = DimWillingness
	}

	score := res.RawScore

	// Horizon hard cap, when the chosen horizon option declares one.
	if cap := q.horizonHardCap(answers); cap > 0 {
		res.HorizonCap = cap
		if score > float64(cap) {
			score = float64(cap)
		}
	}

	// Consistency penalty: the crash scenario answer versus the later
	// double-check question. Large drift means the first answer was
	// aspirational, not honest.
	if drift, ok := q.crashDrift(answers); ok {
		switch {
		case drift > 5:
			res.Penalties = append(res.Penalties, Penalty{Reason: "inconsistent crash answers", Delta: -2})
			score -= 2
		case drift > 3:
			res.Penalties = append(res.Penalties, Penalty{Reason: "inconsistent crash answers", Delta: -1})
			score -= 1
		}
	}

	// Overconfidence penalty: self-assessment far above computed willingness.
	if selfScore, ok := q.roleScore(RoleSelfAssessment, answers); ok {
		if selfScore-res.WillingnessRaw > 4 {
			res.Penalties = append(res.Penalties, Penalty{Reason: "self-assessment exceeds computed willingness", Delta: -1})
			score -= 1
		}
		if selfScore >= 8 && res.WillingnessRaw <= 4 {
			res.Warnings = append(res.Warnings, "self-assessed tolerance likely overstated; using revealed behavior")
		}
	}

	// Pathological-pattern hard caps.
	if hasFlag(flags, FlagPanicSeller) {
		score = capAt(score, 3, &res, "panic-seller pattern: capped at 3")
	}
	if hasFlag(flags, FlagGambler) && hasFlag(flags, FlagHighProportion) {
		score = capAt(score, 5, &res, "gambling with concentrated savings: capped at 5")
	}
	if hasFlag(flags, FlagInexperienced) && (hasFlag(flags, FlagGambler) || hasFlag(flags, FlagRiskSeeking)) {
		score = capAt(score, 5, &res, "risk-seeking without experience: capped at 5")
	}

	// Clamp and round.
	final := int(math.Round(score))
	if final < 1 {
		final = 1
	}
	if final > 10 {
		final = 10
	}
	res.Score = final

	band := q.profileFor(final)
	res.Profile = band.Name
	res.TargetPct = band.TargetPct

	return res
}

// capAt applies a hard cap and records a warning when it binds.
func capAt(score float64, cap int, res *Result, warning string) float64 {
	if score > float64(cap) {
		res.Warnings = append(res.Warnings, warning)
		return float64(cap)
	}
	return score
}

// dimensionScore is the weighted average over all of a dimension's questions,
// with unanswered questions contributing the neutral score.
func (q *Questionnaire) dimensionScore(dim Dimension, answers map[string]int) float64 {
	var weighted, totalWeight float64
	for _, question := range q.Questions {
		if question.Dimension != dim {
			continue
		}
		weighted += q.answerScore(question, answers) * question.Weight
		totalWeight += question.Weight
	}
	if totalWeight == 0 {
		return NeutralScore
	}
	return weighted / totalWeight
}

// answerScore resolves one question's score, neutral when unanswered or the
// option index is out of range.
func (q *Questionnaire) answerScore(question Question, answers map[string]int) float64 {
	idx, answered := answers[question.ID]
	if !answered || idx < 0 || idx >= len(question.Options) {
		return NeutralScore
	}
	return question.Options[idx].Score
}

// roleScore returns the answered score of the question holding a role.
func (q *Questionnaire) roleScore(role string, answers map[string]int) (float64, bool) {
	question, ok := q.byRole(role)
	if !ok {
		return 0, false
	}
	idx, answered := answers[question.ID]
	if !answered || idx < 0 || idx >= len(question.Options) {
		return 0, false
	}
	return question.Options[idx].Score, true
}

// crashDrift is the absolute score gap between the crash scenario answer and
// its double-check. Only defined when both were answered.
func (q *Questionnaire) crashDrift(answers map[string]int) (float64, bool) {
	crash, okCrash := q.roleScore(RoleCrash, answers)
	check, okCheck := q.roleScore(RoleCrashCheck, answers)
	if !okCrash || !okCheck {
		return 0, false
	}
	return math.Abs(crash - check), true
}

// horizonHardCap returns the hard cap declared by the chosen horizon option,
// or 0 when none applies.
func (q *Questionnaire) horizonHardCap(answers map[string]int) int {
	for _, question := range q.Questions {
		if question.Dimension != DimHorizon {
			continue
		}
		idx, answered := answers[question.ID]
		if !answered || idx < 0 || idx >= len(question.Options) {
			continue
		}
		if cap := question.Options[idx].HardCap; cap > 0 {
			return cap
		}
	}
	return 0
}

// collectFlags gathers the behavioral flags of every chosen option.
func (q *Questionnaire) collectFlags(answers map[string]int) []string {
	var flags []string
	seen := make(map[string]bool)
	for _, question := range q.Questions {
		idx, answered := answers[question.ID]
		if !answered || idx < 0 || idx >= len(question.Options) {
			continue
		}
		for _, f := range question.Options[idx].Flags {
			if !seen[f] {
				seen[f] = true
				flags = append(flags, f)
			}
		}
	}
	return flags
}

func hasFlag(flags []string, flag string) bool {
	for _, f := range flags {
		if f == flag {
			return true
		}
	}
	return false
}
