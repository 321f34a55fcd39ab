// Package scoring turns a lead's SMS conversation into a hot score, a funnel
// stage and an escalation decision. Everything here is pure: the same
// messages, clock and rules always give the same result.
package scoring

import (
	"strings"
	"time"

	"github.com/tbauer79999/rei-crm-sub004/internal/leads/domain"
)

// DefaultVersion identifies the scoring model. Bump it when weights or
// extractors change so stored records stay comparable.
const DefaultVersion = "hotscore-2026.10"

// Evaluation is the complete output of one scoring pass.
type Evaluation struct {
	Features  Features  `json:"features"`
	Breakdown Breakdown `json:"breakdown"`
	HotScore  int       `json:"hotScore"`
	Classification
	ComputedBy string `json:"computedBy"`
}

// Engine runs extractors, scorer and classifier with a fixed rule table.
type Engine struct {
	Version string
	rules   *Rules
}

// NewEngine returns an engine. Empty version and nil rules select the defaults.
func NewEngine(version string, rules *Rules) *Engine {
	if strings.TrimSpace(version) == "" {
		version = DefaultVersion
	}
	if rules == nil {
		rules = DefaultRules()
	}
	return &Engine{Version: version, rules: rules}
}

// ComputedBy is the provenance stamp written on every score record.
func (e *Engine) ComputedBy() string {
	return e.Version + "+rules." + e.rules.Version
}

// Evaluate scores the conversation as of now.
func (e *Engine) Evaluate(messages []domain.Message, now time.Time) Evaluation {
	features := ExtractFeatures(e.rules, messages, now)
	hotScore, breakdown := Composite(features)
	return Evaluation{
		Features:       features,
		Breakdown:      breakdown,
		HotScore:       hotScore,
		Classification: Classify(e.rules, hotScore, features, messages),
		ComputedBy:     e.ComputedBy(),
	}
}
