// Package scoring turns risk questionnaire answers into a risk score,
// profile and target layer allocation.
package scoring

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/blumarkets/hram/internal/domain"
)

// Dimension is one of the four scoring dimensions
type Dimension string

const (
	DimCapacity    Dimension = "capacity"
	DimWillingness Dimension = "willingness"
	DimHorizon     Dimension = "horizon"
	DimGoal        Dimension = "goal"
)

// Behavioral flags attached to answer options. Specific combinations mark
// pathological answer patterns that cap the final score.
const (
	FlagPanicSeller    = "panic_seller"
	FlagGambler        = "gambler"
	FlagHighProportion = "high_proportion"
	FlagInexperienced  = "inexperienced"
	FlagRiskSeeking    = "risk_seeking"
)

// Special question roles referenced by the scoring rules
const (
	RoleCrash          = "crash"
	RoleCrashCheck     = "crash_double_check"
	RoleSelfAssessment = "self_assessment"
)

// NeutralScore is the score assumed for unanswered questions.
const NeutralScore = 5.0

// Option is one selectable answer
type Option struct {
	Label string   `yaml:"label" json:"label"`
	Score float64  `yaml:"score" json:"score"` // 1..10
	Flags []string `yaml:"flags,omitempty" json:"flags,omitempty"`
	// HardCap, when > 0 on a horizon option, clamps the raw score.
	HardCap int `yaml:"hard_cap,omitempty" json:"hard_cap,omitempty"`
}

// Question is one questionnaire entry
type Question struct {
	ID        string    `yaml:"id" json:"id"`
	Text      string    `yaml:"text" json:"text"`
	Dimension Dimension `yaml:"dimension" json:"dimension"`
	Weight    float64   `yaml:"weight" json:"weight"`
	Role      string    `yaml:"role,omitempty" json:"role,omitempty"`
	Options   []Option  `yaml:"options" json:"options"`
}

// ProfileBand maps an inclusive score range to a named profile and its
// fixed target layer percentages.
type ProfileBand struct {
	MinScore  int                  `yaml:"min_score" json:"min_score"`
	MaxScore  int                  `yaml:"max_score" json:"max_score"`
	Name      string               `yaml:"name" json:"name"`
	TargetPct map[domain.Layer]int `yaml:"target_pct" json:"target_pct"`
}

// Questionnaire is the externally configured scoring input: the question set
// and the score-to-profile table.
type Questionnaire struct {
	Questions []Question    `yaml:"questions" json:"questions"`
	Profiles  []ProfileBand `yaml:"profiles" json:"profiles"`
}

// LoadQuestionnaire reads and validates a questionnaire YAML file.
// A malformed file is a startup-time fatal condition.
func LoadQuestionnaire(path string) (*Questionnaire, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read questionnaire %s: %w", path, err)
	}

	var q Questionnaire
	if err := yaml.Unmarshal(data, &q); err != nil {
		return nil, fmt.Errorf("failed to parse questionnaire %s: %w", path, err)
	}

	if err := q.Validate(); err != nil {
		return nil, fmt.Errorf("invalid questionnaire %s: %w", path, err)
	}
	return &q, nil
}

// Validate checks the structural invariants the scorer relies on.
func (q *Questionnaire) Validate() error {
	if len(q.Questions) == 0 {
		return fmt.Errorf("questionnaire has no questions")
	}
	seen := make(map[string]bool, len(q.Questions))
	for _, question := range q.Questions {
		if question.ID == "" {
			return fmt.Errorf("question with empty id")
		}
		if seen[question.ID] {
			return fmt.Errorf("duplicate question id %q", question.ID)
		}
		seen[question.ID] = true

		switch question.Dimension {
		case DimCapacity, DimWillingness, DimHorizon, DimGoal:
		default:
			return fmt.Errorf("question %q: unknown dimension %q", question.ID, question.Dimension)
		}
		if question.Weight <= 0 {
			return fmt.Errorf("question %q: weight must be positive", question.ID)
		}
		if len(question.Options) < 2 {
			return fmt.Errorf("question %q: needs at least two options", question.ID)
		}
		for i, opt := range question.Options {
			if opt.Score < 1 || opt.Score > 10 {
				return fmt.Errorf("question %q option %d: score %v out of [1,10]", question.ID, i, opt.Score)
			}
		}
	}

	if len(q.Profiles) == 0 {
		return fmt.Errorf("questionnaire has no profile bands")
	}
	covered := make(map[int]bool)
	for _, band := range q.Profiles {
		if band.MinScore > band.MaxScore {
			return fmt.Errorf("profile %q: min_score > max_score", band.Name)
		}
		sum := 0
		for _, layer := range domain.AllLayers() {
			sum += band.TargetPct[layer]
		}
		if sum != 100 {
			return fmt.Errorf("profile %q: target percentages sum to %d, want 100", band.Name, sum)
		}
		for s := band.MinScore; s <= band.MaxScore; s++ {
			if covered[s] {
				return fmt.Errorf("profile %q: score %d covered twice", band.Name, s)
			}
			covered[s] = true
		}
	}
	for s := 1; s <= 10; s++ {
		if !covered[s] {
			return fmt.Errorf("no profile band covers score %d", s)
		}
	}
	return nil
}

// question returns the question by id.
func (q *Questionnaire) question(id string) (Question, bool) {
	for _, question := range q.Questions {
		if question.ID == id {
			return question, true
		}
	}
	return Question{}, false
}

// byRole returns the first question with the given role.
func (q *Questionnaire) byRole(role string) (Question, bool) {
	for _, question := range q.Questions {
		if question.Role == role {
			return question, true
		}
	}
	return Question{}, false
}

// profileFor maps a final score to its band. Validate guarantees coverage.
func (q *Questionnaire) profileFor(score int) ProfileBand {
	for _, band := range q.Profiles {
		if score >= band.MinScore && score <= band.MaxScore {
			return band
		}
	}
	return q.Profiles[len(q.Profiles)-1]
}

// DefaultQuestionnaire is the embedded product questionnaire, used when no
// YAML override is configured.
func DefaultQuestionnaire() *Questionnaire {
	pct := func(f, g, u int) map[domain.Layer]int {
		return map[domain.Layer]int{
			domain.LayerFoundation: f,
			domain.LayerGrowth:     g,
			domain.LayerUpside:     u,
		}
	}
	return &Questionnaire{
		Questions: []Question{
			{
				ID: "income_stability", Dimension: DimCapacity, Weight: 1.5,
				Text: "How stable is your monthly income?",
				Options: []Option{
					{Label: "No regular income", Score: 1},
					{Label: "Irregular", Score: 4},
					{Label: "Stable salary", Score: 7},
					{Label: "Multiple stable sources", Score: 10},
				},
			},
			{
				ID: "emergency_fund", Dimension: DimCapacity, Weight: 1.5,
				Text: "How many months of expenses do you hold in cash?",
				Options: []Option{
					{Label: "Less than one", Score: 1},
					{Label: "One to three", Score: 4},
					{Label: "Three to six", Score: 7},
					{Label: "More than six", Score: 10},
				},
			},
			{
				ID: "investable_proportion", Dimension: DimCapacity, Weight: 1.0,
				Text: "What share of your total savings are you investing here?",
				Options: []Option{
					{Label: "Under 10%", Score: 10},
					{Label: "10-25%", Score: 7},
					{Label: "25-50%", Score: 4},
					{Label: "More than half", Score: 1, Flags: []string{FlagHighProportion}},
				},
			},
			{
				ID: "crash_reaction", Dimension: DimWillingness, Weight: 2.0, Role: RoleCrash,
				Text: "Your portfolio drops 30% in a month. What do you do?",
				Options: []Option{
					{Label: "Sell everything immediately", Score: 1, Flags: []string{FlagPanicSeller}},
					{Label: "Sell part to stop the pain", Score: 4},
					{Label: "Hold and wait", Score: 7},
					{Label: "Buy more at the discount", Score: 10},
				},
			},
			{
				ID: "loss_sleep", Dimension: DimWillingness, Weight: 1.0,
				Text: "How much could your portfolio fall before you lose sleep?",
				Options: []Option{
					{Label: "5%", Score: 1},
					{Label: "15%", Score: 4},
					{Label: "30%", Score: 7},
					{Label: "I don't watch short-term swings", Score: 10},
				},
			},
			{
				ID: "gain_preference", Dimension: DimWillingness, Weight: 1.0,
				Text: "Which outcome appeals most?",
				Options: []Option{
					{Label: "Guaranteed 20% per year", Score: 2},
					{Label: "Likely 35%, possibly 10%", Score: 5},
					{Label: "Possibly 80%, possibly -20%", Score: 8},
					{Label: "All or nothing on a moonshot", Score: 10, Flags: []string{FlagGambler, FlagRiskSeeking}},
				},
			},
			{
				ID: "experience", Dimension: DimWillingness, Weight: 1.0,
				Text: "How long have you invested in volatile assets?",
				Options: []Option{
					{Label: "Never", Score: 2, Flags: []string{FlagInexperienced}},
					{Label: "Less than a year", Score: 4},
					{Label: "One to three years", Score: 7},
					{Label: "Through at least one full crash", Score: 10},
				},
			},
			{
				ID: "crash_recheck", Dimension: DimWillingness, Weight: 1.0, Role: RoleCrashCheck,
				Text: "Markets are down 25% and headlines say worse is coming. Honestly, what happens?",
				Options: []Option{
					{Label: "I would exit to cash", Score: 1},
					{Label: "I would trim my riskiest positions", Score: 4},
					{Label: "I would sit tight", Score: 7},
					{Label: "I would add to positions", Score: 10},
				},
			},
			{
				ID: "self_risk", Dimension: DimWillingness, Weight: 0.5, Role: RoleSelfAssessment,
				Text: "Rate your own risk tolerance.",
				Options: []Option{
					{Label: "Very low", Score: 1},
					{Label: "Low", Score: 3},
					{Label: "Moderate", Score: 5},
					{Label: "High", Score: 8},
					{Label: "Very high", Score: 10, Flags: []string{FlagRiskSeeking}},
				},
			},
			{
				ID: "horizon", Dimension: DimHorizon, Weight: 1.0,
				Text: "When will you need this money?",
				Options: []Option{
					{Label: "Within a year", Score: 1, HardCap: 3},
					{Label: "One to three years", Score: 4, HardCap: 6},
					{Label: "Three to ten years", Score: 7},
					{Label: "Ten years or more", Score: 10},
				},
			},
			{
				ID: "goal", Dimension: DimGoal, Weight: 1.0,
				Text: "What is this portfolio for?",
				Options: []Option{
					{Label: "Preserving what I have", Score: 2},
					{Label: "Keeping up with inflation", Score: 5},
					{Label: "Growing wealth", Score: 8},
					{Label: "Maximum growth, I accept deep swings", Score: 10},
				},
			},
		},
		Profiles: []ProfileBand{
			{MinScore: 1, MaxScore: 2, Name: "Capital Guard", TargetPct: pct(80, 15, 5)},
			{MinScore: 3, MaxScore: 4, Name: "Cautious", TargetPct: pct(65, 25, 10)},
			{MinScore: 5, MaxScore: 6, Name: "Balanced", TargetPct: pct(50, 35, 15)},
			{MinScore: 7, MaxScore: 8, Name: "Growth Seeker", TargetPct: pct(35, 45, 20)},
			{MinScore: 9, MaxScore: 10, Name: "Upside Hunter", TargetPct: pct(25, 45, 30)},
		},
	}
}
