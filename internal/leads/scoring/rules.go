package scoring

import (
	"bytes"
	_ "embed"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/tbauer79999/rei-crm-sub004/internal/leads/domain"

	"gopkg.in/yaml.v3"
)

// Category names a keyword dictionary in the rule table.
type Category string

const (
	CategoryMotivation         Category = "motivation"
	CategoryObjection          Category = "objection"
	CategoryEscalation         Category = "escalation"
	CategoryNextStep           Category = "next_step"
	CategoryGoal               Category = "goal"
	CategoryConfirmation       Category = "confirmation"
	CategoryDecisiveness       Category = "decisiveness"
	CategorySkepticism         Category = "skepticism"
	CategoryPersonalContext    Category = "personal_context"
	CategoryFollowUpAcceptance Category = "follow_up_acceptance"
	CategoryHesitation         Category = "hesitation"
	CategoryUrgency            Category = "urgency"
)

var requiredCategories = []Category{
	CategoryMotivation, CategoryObjection, CategoryEscalation, CategoryNextStep,
	CategoryGoal, CategoryConfirmation, CategoryDecisiveness, CategorySkepticism,
	CategoryPersonalContext, CategoryFollowUpAcceptance, CategoryHesitation, CategoryUrgency,
}

// patternTriggers are the triggers decided by a text pattern.
var patternTriggers = []domain.Trigger{
	domain.TriggerCallbackRequest,
	domain.TriggerMeetingAgreed,
	domain.TriggerPricingInquiry,
	domain.TriggerBuyingSignal,
	domain.TriggerTimelineUrgent,
	domain.TriggerTimelineMention,
}

//go:embed rules.yaml
var defaultRulesYAML []byte

var defaultRules = mustLoadRules(defaultRulesYAML)

// DefaultRules returns the rule table compiled into the binary.
func DefaultRules() *Rules {
	return defaultRules
}

type ruleFile struct {
	Version  string                   `yaml:"version"`
	Keywords map[string][]keywordRule `yaml:"keywords"`
	Triggers map[string]string        `yaml:"triggers"`
	Critical CriticalRules            `yaml:"critical"`
	Gate     GateRules                `yaml:"gate"`
	Density  QuestionDensityRules     `yaml:"high_question_density"`
	Pricing  PricingRules             `yaml:"pricing_inquiry"`
}

type keywordRule struct {
	Weight float64  `yaml:"weight"`
	Terms  []string `yaml:"terms"`
}

// CriticalRules configures the critical-score blend.
type CriticalRules struct {
	Threshold float64            `yaml:"threshold"`
	Weights   map[string]float64 `yaml:"weights"`
}

// GateRules is the minimum engagement a conversation needs before any trigger may fire.
type GateRules struct {
	MinInbound         int     `yaml:"min_inbound"`
	MinTotal           int     `yaml:"min_total"`
	MinDurationMinutes float64 `yaml:"min_duration_minutes"`
}

// QuestionDensityRules bounds the high-question-density trigger.
type QuestionDensityRules struct {
	MinDensity float64 `yaml:"min_density"`
	MinInbound int     `yaml:"min_inbound"`
}

// PricingRules are the extra conditions of a sustained pricing inquiry.
type PricingRules struct {
	MinInbound    int     `yaml:"min_inbound"`
	MinMotivation float64 `yaml:"min_motivation"`
}

type compiledKeyword struct {
	weight  float64
	pattern *regexp.Regexp
}

// Rules is a compiled, read-only rule table. It is safe for concurrent use.
type Rules struct {
	Version  string
	Critical CriticalRules
	Gate     GateRules
	Density  QuestionDensityRules
	Pricing  PricingRules

	keywords map[Category][]compiledKeyword
	triggers map[domain.Trigger]*regexp.Regexp
}

// LoadRules parses and compiles a YAML rule table.
func LoadRules(data []byte) (*Rules, error) {
	var file ruleFile
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&file); err != nil {
		return nil, fmt.Errorf("parse rules: %w", err)
	}

	rules := &Rules{
		Version:  strings.TrimSpace(file.Version),
		Critical: file.Critical,
		Gate:     file.Gate,
		Density:  file.Density,
		Pricing:  file.Pricing,
		keywords: make(map[Category][]compiledKeyword, len(file.Keywords)),
		triggers: make(map[domain.Trigger]*regexp.Regexp, len(file.Triggers)),
	}
	if rules.Version == "" {
		return nil, errors.New("rules version is required")
	}

	for _, category := range requiredCategories {
		entries, ok := file.Keywords[string(category)]
		if !ok || len(entries) == 0 {
			return nil, fmt.Errorf("keyword category %q is missing", category)
		}
		for i, entry := range entries {
			compiled, err := compileKeywordRule(entry)
			if err != nil {
				return nil, fmt.Errorf("keyword category %q rule %d: %w", category, i, err)
			}
			rules.keywords[category] = append(rules.keywords[category], compiled)
		}
	}

	for _, trigger := range patternTriggers {
		raw, ok := file.Triggers[string(trigger)]
		if !ok || strings.TrimSpace(raw) == "" {
			return nil, fmt.Errorf("trigger %q is missing", trigger)
		}
		pattern, err := regexp.Compile(raw)
		if err != nil {
			return nil, fmt.Errorf("trigger %q: %w", trigger, err)
		}
		rules.triggers[trigger] = pattern
	}

	for _, key := range []string{"urgency", "escalation", "confirmation", "question_density", "follow_up_acceptance"} {
		if _, ok := rules.Critical.Weights[key]; !ok {
			return nil, fmt.Errorf("critical weight %q is missing", key)
		}
	}
	if rules.Critical.Threshold <= 0 {
		return nil, errors.New("critical threshold must be positive")
	}

	return rules, nil
}

func mustLoadRules(data []byte) *Rules {
	rules, err := LoadRules(data)
	if err != nil {
		panic(fmt.Sprintf("scoring: embedded rules.yaml: %v", err))
	}
	return rules
}

func compileKeywordRule(rule keywordRule) (compiledKeyword, error) {
	if rule.Weight <= 0 || rule.Weight > 1 {
		return compiledKeyword{}, fmt.Errorf("weight %.2f outside (0,1]", rule.Weight)
	}
	quoted := make([]string, 0, len(rule.Terms))
	for _, term := range rule.Terms {
		term = strings.TrimSpace(strings.ToLower(term))
		if term == "" {
			continue
		}
		quoted = append(quoted, regexp.QuoteMeta(term))
	}
	if len(quoted) == 0 {
		return compiledKeyword{}, errors.New("no terms")
	}
	pattern, err := regexp.Compile(`(?i)\b(?:` + strings.Join(quoted, "|") + `)\b`)
	if err != nil {
		return compiledKeyword{}, err
	}
	return compiledKeyword{weight: rule.Weight, pattern: pattern}, nil
}

// keywordWeight returns the highest weight among the category rules matching text, or 0.
func (r *Rules) keywordWeight(category Category, text string) float64 {
	best := 0.0
	for _, rule := range r.keywords[category] {
		if rule.weight > best && rule.pattern.MatchString(text) {
			best = rule.weight
		}
	}
	return best
}

// match returns the first substring of text matching the trigger pattern.
func (r *Rules) match(trigger domain.Trigger, text string) (string, bool) {
	pattern, ok := r.triggers[trigger]
	if !ok {
		return "", false
	}
	loc := pattern.FindStringIndex(text)
	if loc == nil {
		return "", false
	}
	return text[loc[0]:loc[1]], true
}
