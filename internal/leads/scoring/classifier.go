package scoring

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/tbauer79999/rei-crm-sub004/internal/leads/domain"
)

const (
	stageColdBelow      = 20
	stageLukewarmBelow  = 40
	stageWarmBelow      = 60
	stageEngagedBelow   = 80
	qualifiedNextStepGT = 70.0

	maxDetailRunes = 160
)

// overridePriority decides which trigger names the stage override when several fire.
var overridePriority = []domain.Trigger{
	domain.TriggerCallbackRequest,
	domain.TriggerMeetingAgreed,
	domain.TriggerCriticalScore,
	domain.TriggerBuyingSignal,
}

// Classification is the stage and escalation decision for one scoring pass.
type Classification struct {
	ScoreStage                 domain.FunnelStage        `json:"scoreStage"`
	Stage                      domain.FunnelStage        `json:"funnelStage"`
	CriticalScore              float64                   `json:"criticalScore"`
	GatePassed                 bool                      `json:"gatePassed"`
	Triggers                   []domain.Trigger          `json:"alertTriggers"`
	AlertDetails               map[domain.Trigger]string `json:"alertDetails"`
	AlertPriority              domain.AlertPriority      `json:"alertPriority"`
	RequiresImmediateAttention bool                      `json:"requiresImmediateAttention"`
	StageOverrideReason        string                    `json:"stageOverrideReason,omitempty"`
}

// StageForScore maps a hot score to a funnel stage before any override.
func StageForScore(score int, nextStepClarity float64) domain.FunnelStage {
	switch {
	case score < stageColdBelow:
		return domain.FunnelStageCold
	case score < stageLukewarmBelow:
		return domain.FunnelStageLukewarm
	case score < stageWarmBelow:
		return domain.FunnelStageWarm
	case score < stageEngagedBelow:
		return domain.FunnelStageEngaged
	case nextStepClarity > qualifiedNextStepGT:
		return domain.FunnelStageQualified
	default:
		return domain.FunnelStageHot
	}
}

// CriticalScore blends the urgency-type signals. It is independent of the hot score.
func (r *Rules) CriticalScore(f Features) float64 {
	w := r.Critical.Weights
	return round1(f.Urgency*w["urgency"] +
		f.Escalation*w["escalation"] +
		f.Confirmation*w["confirmation"] +
		f.QuestionDensity*w["question_density"] +
		f.FollowUpAcceptance*w["follow_up_acceptance"])
}

// PassesGate reports whether the conversation carries enough engagement for any trigger to fire.
func (r *Rules) PassesGate(f Features) bool {
	return f.InboundCount >= r.Gate.MinInbound &&
		f.TotalCount >= r.Gate.MinTotal &&
		f.DurationMinutes >= r.Gate.MinDurationMinutes
}

// Classify decides the funnel stage, fired triggers and escalation flag.
// No trigger is evaluated when the engagement gate fails.
func Classify(rules *Rules, hotScore int, f Features, messages []domain.Message) Classification {
	c := Classification{
		ScoreStage:    StageForScore(hotScore, f.NextStepClarity),
		CriticalScore: rules.CriticalScore(f),
		GatePassed:    rules.PassesGate(f),
		Triggers:      []domain.Trigger{},
		AlertDetails:  map[domain.Trigger]string{},
	}
	c.Stage = c.ScoreStage

	if !c.GatePassed {
		return c
	}

	inbound := make([]domain.Message, 0, f.InboundCount)
	for _, msg := range sortedMessages(messages) {
		if msg.IsInbound() {
			inbound = append(inbound, msg)
		}
	}

	fire := func(trigger domain.Trigger, detail string) {
		c.Triggers = append(c.Triggers, trigger)
		c.AlertDetails[trigger] = detail
	}

	if c.CriticalScore > rules.Critical.Threshold {
		fire(domain.TriggerCriticalScore, fmt.Sprintf("critical score %.1f above %.0f", c.CriticalScore, rules.Critical.Threshold))
	}
	if detail, ok := firstMatch(rules, domain.TriggerCallbackRequest, inbound); ok {
		fire(domain.TriggerCallbackRequest, detail)
	}
	if detail, ok := firstMatch(rules, domain.TriggerMeetingAgreed, inbound); ok {
		fire(domain.TriggerMeetingAgreed, detail)
	}
	if f.InboundCount >= rules.Pricing.MinInbound && f.Motivation > rules.Pricing.MinMotivation {
		if detail, ok := firstMatch(rules, domain.TriggerPricingInquiry, inbound); ok {
			fire(domain.TriggerPricingInquiry, detail)
		}
	}
	if detail, ok := firstMatch(rules, domain.TriggerBuyingSignal, inbound); ok {
		fire(domain.TriggerBuyingSignal, detail)
	}
	if detail, ok := firstMatch(rules, domain.TriggerTimelineUrgent, inbound); ok {
		fire(domain.TriggerTimelineUrgent, detail)
	}
	if f.QuestionDensity >= rules.Density.MinDensity && f.InboundCount >= rules.Density.MinInbound {
		fire(domain.TriggerHighQuestionDensity, fmt.Sprintf("%.0f%% of %d inbound messages ask a question", f.QuestionDensity, f.InboundCount))
	}
	if detail, ok := firstMatch(rules, domain.TriggerTimelineMention, inbound); ok {
		fire(domain.TriggerTimelineMention, detail)
	}

	attention := 0
	for _, trigger := range c.Triggers {
		if trigger.RequiresAttention() {
			attention++
		}
	}
	c.RequiresImmediateAttention = attention > 0

	switch {
	case attention >= 2:
		c.AlertPriority = domain.AlertPriorityCritical
	case attention == 1:
		c.AlertPriority = domain.AlertPriorityHigh
	case len(c.Triggers) > 0:
		c.AlertPriority = domain.AlertPriorityMedium
	}

	for _, trigger := range overridePriority {
		if _, fired := c.AlertDetails[trigger]; fired {
			c.Stage = domain.FunnelStageHot
			c.StageOverrideReason = overrideReason(trigger, c.AlertDetails[trigger])
			break
		}
	}

	return c
}

// firstMatch describes the earliest inbound message matching the trigger.
func firstMatch(rules *Rules, trigger domain.Trigger, inbound []domain.Message) (string, bool) {
	for _, msg := range inbound {
		if matched, ok := rules.match(trigger, msg.Body); ok {
			return fmt.Sprintf("%q in: %s", strings.ToLower(matched), excerpt(msg.Body)), true
		}
	}
	return "", false
}

func overrideReason(trigger domain.Trigger, detail string) string {
	switch trigger {
	case domain.TriggerCallbackRequest:
		return "callback requested: " + detail
	case domain.TriggerMeetingAgreed:
		return "meeting agreed: " + detail
	case domain.TriggerCriticalScore:
		return detail
	case domain.TriggerBuyingSignal:
		return "buying signal: " + detail
	default:
		return string(trigger)
	}
}

func excerpt(body string) string {
	body = strings.Join(strings.Fields(body), " ")
	if utf8.RuneCountInString(body) <= maxDetailRunes {
		return body
	}
	runes := []rune(body)
	return string(runes[:maxDetailRunes]) + "…"
}
