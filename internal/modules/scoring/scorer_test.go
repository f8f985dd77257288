package scoring

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/blumarkets/hram/internal/domain"
)

func TestScoreEmptyAnswers(t *testing.T) {
	q := DefaultQuestionnaire()
	res := Score(map[string]int{}, q)

	// All dimensions neutral, deterministic Balanced result.
	assert.Equal(t, 5, res.Score)
	assert.Equal(t, "Balanced", res.Profile)
	assert.InDelta(t, 5.0, res.Capacity, 1e-9)
	assert.InDelta(t, 5.0, res.Willingness, 1e-9)
	assert.Empty(t, res.Penalties)
}

func TestScoreIgnoresUnknownQuestions(t *testing.T) {
	q := DefaultQuestionnaire()
	base := Score(map[string]int{}, q)
	withNoise := Score(map[string]int{"nonexistent": 2, "horizon": 99}, q)
	assert.Equal(t, base.Score, withNoise.Score)
}

func TestScoreAllMinimumSeverity(t *testing.T) {
	q := DefaultQuestionnaire()
	// The most conservative option on every question.
	answers := map[string]int{
		"income_stability":      0, // no regular income
		"emergency_fund":        0,
		"investable_proportion": 3, // more than half of savings
		"crash_reaction":        0, // sell everything
		"loss_sleep":            0,
		"gain_preference":       0, // guaranteed return
		"experience":            0,
		"crash_recheck":         0,
		"self_risk":             0,
		"horizon":               0, // within a year
		"goal":                  0,
	}
	res := Score(answers, q)

	assert.Equal(t, 1, res.Score)
	assert.Equal(t, DimCapacity, res.LimitingFactor)
	assert.InDelta(t, 1.0, res.RawScore, 1e-9)
	assert.Equal(t, "Capital Guard", res.Profile)
}

func TestScoreAllMaximumWithoutPathologicalFlags(t *testing.T) {
	q := DefaultQuestionnaire()
	answers := map[string]int{
		"income_stability":      3,
		"emergency_fund":        3,
		"investable_proportion": 0, // under 10% → highest capacity
		"crash_reaction":        3, // buy more
		"loss_sleep":            3,
		"gain_preference":       2, // highest non-gambler option
		"experience":            3,
		"crash_recheck":         3,
		"self_risk":             4,
		"horizon":               3, // ten years or more
		"goal":                  3,
	}
	res := Score(answers, q)

	assert.Equal(t, 10, res.Score)
	assert.Empty(t, res.Penalties)
	assert.Equal(t, "Upside Hunter", res.Profile)
	assert.Equal(t, 30, res.TargetPct[domain.LayerUpside])
}

func TestScoreHorizonHardCap(t *testing.T) {
	q := DefaultQuestionnaire()
	answers := map[string]int{
		"income_stability":      3,
		"emergency_fund":        3,
		"investable_proportion": 0,
		"crash_reaction":        3,
		"loss_sleep":            3,
		"gain_preference":       2,
		"experience":            3,
		"crash_recheck":         3,
		"horizon":               0, // money needed within a year → cap 3
		"goal":                  3,
	}
	res := Score(answers, q)

	assert.Equal(t, 3, res.HorizonCap)
	assert.Equal(t, 3, res.Score)
}

func TestScoreConsistencyPenalty(t *testing.T) {
	q := DefaultQuestionnaire()
	answers := map[string]int{
		"income_stability":      3,
		"emergency_fund":        3,
		"investable_proportion": 0,
		"crash_reaction":        3, // "buy more" (10)
		"loss_sleep":            2,
		"gain_preference":       2,
		"experience":            3,
		"crash_recheck":         0, // "exit to cash" (1): drift 9 → -2
		"horizon":               2,
		"goal":                  2,
	}
	res := Score(answers, q)

	require.Len(t, res.Penalties, 1)
	assert.Equal(t, -2, res.Penalties[0].Delta)
}

func TestScoreGamblerCapsWillingness(t *testing.T) {
	q := DefaultQuestionnaire()
	answers := map[string]int{
		"income_stability":      3,
		"emergency_fund":        3,
		"investable_proportion": 0, // small proportion: gambler flag alone
		"crash_reaction":        3,
		"loss_sleep":            3,
		"gain_preference":       3, // all-or-nothing → gambler
		"experience":            3,
		"crash_recheck":         3,
		"horizon":               3,
		"goal":                  3,
	}
	res := Score(answers, q)

	assert.InDelta(t, 7.0, res.Willingness, 1e-9)
	assert.Equal(t, DimWillingness, res.LimitingFactor)
	assert.Equal(t, 7, res.Score)

	// The breakdown keeps the pre-cap dimension score for the consent screen.
	assert.Greater(t, res.WillingnessRaw, 7.0)
	assert.Contains(t, res.Warnings, "gambling-style answers: willingness capped at 7")
}

func TestScoreGamblerWithHighProportionCapsAtFive(t *testing.T) {
	q := DefaultQuestionnaire()
	answers := map[string]int{
		"income_stability":      3,
		"emergency_fund":        3,
		"investable_proportion": 3, // more than half → high_proportion
		"crash_reaction":        3,
		"loss_sleep":            3,
		"gain_preference":       3, // gambler
		"experience":            3,
		"crash_recheck":         3,
		"horizon":               3,
		"goal":                  3,
	}
	res := Score(answers, q)

	assert.LessOrEqual(t, res.Score, 5)
	assert.Contains(t, res.Flags, FlagGambler)
	assert.Contains(t, res.Flags, FlagHighProportion)
}

func TestScorePanicSellerHardCap(t *testing.T) {
	q := DefaultQuestionnaire()
	answers := map[string]int{
		"income_stability":      3,
		"emergency_fund":        3,
		"investable_proportion": 0,
		"crash_reaction":        0, // sell everything → panic_seller
		"loss_sleep":            3,
		"gain_preference":       2,
		"experience":            3,
		"crash_recheck":         3,
		"horizon":               3,
		"goal":                  3,
	}
	res := Score(answers, q)

	assert.LessOrEqual(t, res.Score, 3)
	assert.Contains(t, res.Flags, FlagPanicSeller)
}

func TestScoreOverstatedSelfAssessmentWarning(t *testing.T) {
	q := DefaultQuestionnaire()
	answers := map[string]int{
		"crash_reaction":  0, // very low revealed willingness
		"loss_sleep":      0,
		"gain_preference": 0,
		"experience":      0,
		"crash_recheck":   0,
		"self_risk":       4, // "Very high"
	}
	res := Score(answers, q)

	assert.NotEmpty(t, res.Warnings)
}

func TestScoreDeterminism(t *testing.T) {
	q := DefaultQuestionnaire()
	answers := map[string]int{
		"income_stability": 2,
		"crash_reaction":   1,
		"horizon":          1,
		"goal":             2,
	}
	first := Score(answers, q)
	second := Score(answers, q)
	assert.Equal(t, first, second)
}

func TestQuestionnaireValidate(t *testing.T) {
	assert.NoError(t, DefaultQuestionnaire().Validate())

	broken := DefaultQuestionnaire()
	broken.Profiles[0].TargetPct[domain.LayerUpside] += 5
	assert.Error(t, broken.Validate())

	empty := &Questionnaire{}
	assert.Error(t, empty.Validate())
}
