package scoring

import (
	"math"
	"math/rand"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/tbauer79999/rei-crm-sub004/internal/leads/domain"
)

var baseTime = time.Date(2026, 3, 2, 15, 0, 0, 0, time.UTC)

type conversation struct {
	messages []domain.Message
}

func (c *conversation) out(offset time.Duration, body string) *conversation {
	c.messages = append(c.messages, domain.Message{
		Direction: domain.DirectionOutbound,
		Body:      body,
		SentAt:    baseTime.Add(offset),
	})
	return c
}

func (c *conversation) in(offset time.Duration, body string, ai domain.AIScores) *conversation {
	c.messages = append(c.messages, domain.Message{
		Direction: domain.DirectionInbound,
		Body:      body,
		SentAt:    baseTime.Add(offset),
		AI:        ai,
	})
	return c
}

func f64(v float64) *float64 { return &v }

func hasTrigger(triggers []domain.Trigger, want domain.Trigger) bool {
	for _, trigger := range triggers {
		if trigger == want {
			return true
		}
	}
	return false
}

func TestSingleGreetingStaysCold(t *testing.T) {
	c := (&conversation{}).
		out(0, "Hi, this is Sam from Acme Homes. Still thinking about selling?").
		in(2*time.Minute, "hi", domain.AIScores{})

	eval := NewEngine("", nil).Evaluate(c.messages, baseTime.Add(3*time.Minute))

	if eval.GatePassed {
		t.Fatalf("expected engagement gate to fail")
	}
	if eval.RequiresImmediateAttention {
		t.Fatalf("expected no immediate attention")
	}
	if eval.HotScore >= stageLukewarmBelow {
		t.Fatalf("expected hot score below %d, got %d (%+v)", stageLukewarmBelow, eval.HotScore, eval.Breakdown)
	}
	if eval.Stage != domain.FunnelStageCold && eval.Stage != domain.FunnelStageLukewarm {
		t.Fatalf("expected Cold or Lukewarm, got %s", eval.Stage)
	}
	if len(eval.Triggers) != 0 {
		t.Fatalf("expected no triggers, got %v", eval.Triggers)
	}
}

func TestCallbackRequestForcesHotStage(t *testing.T) {
	ai := domain.AIScores{Response: f64(80)}
	c := (&conversation{}).
		out(0, "Are you still looking to sell the house on Elm?").
		in(1*time.Minute, "yes", ai).
		in(8*time.Minute, "can you call me tonight", ai).
		in(15*time.Minute, "please call me, it's easier", ai).
		in(22*time.Minute, "call me after 5", ai).
		in(31*time.Minute, "thanks", ai)

	eval := NewEngine("", nil).Evaluate(c.messages, baseTime.Add(32*time.Minute))

	if !eval.GatePassed {
		t.Fatalf("expected engagement gate to pass")
	}
	if !eval.Features.MotivationFromAI || eval.Features.Motivation != 80 {
		t.Fatalf("expected AI motivation 80, got %.1f (ai=%v)", eval.Features.Motivation, eval.Features.MotivationFromAI)
	}
	if !hasTrigger(eval.Triggers, domain.TriggerCallbackRequest) {
		t.Fatalf("expected callback trigger, got %v", eval.Triggers)
	}
	if !eval.RequiresImmediateAttention {
		t.Fatalf("expected immediate attention")
	}
	if eval.Stage != domain.FunnelStageHot {
		t.Fatalf("expected Hot stage, got %s", eval.Stage)
	}
	if !strings.HasPrefix(eval.StageOverrideReason, "callback requested") {
		t.Fatalf("unexpected override reason %q", eval.StageOverrideReason)
	}
	if !strings.Contains(eval.AlertDetails[domain.TriggerCallbackRequest], "call me tonight") {
		t.Fatalf("expected alert detail to quote the message, got %q", eval.AlertDetails[domain.TriggerCallbackRequest])
	}
}

func TestMotivationPrefersAIResponseScore(t *testing.T) {
	c := (&conversation{}).
		out(0, "Hello").
		in(time.Minute, "not interested in anything", domain.AIScores{Response: f64(0)}).
		in(2*time.Minute, "well maybe", domain.AIScores{Response: f64(64)})

	f := ExtractFeatures(DefaultRules(), c.messages, baseTime.Add(time.Hour))

	if !f.MotivationFromAI {
		t.Fatalf("expected motivation from AI")
	}
	if f.Motivation != 64 {
		t.Fatalf("expected motivation 64 (zero response ignored), got %.1f", f.Motivation)
	}
}

func TestMotivationFallsBackToKeywords(t *testing.T) {
	c := (&conversation{}).
		out(0, "Hello").
		in(time.Minute, "I'm interested", domain.AIScores{Response: f64(0)}).
		in(2*time.Minute, "what time?", domain.AIScores{})

	f := ExtractFeatures(DefaultRules(), c.messages, baseTime.Add(time.Hour))

	if f.MotivationFromAI {
		t.Fatalf("expected keyword motivation when every response score is zero or missing")
	}
	if f.Motivation != 50 {
		t.Fatalf("expected keyword motivation 50, got %.1f", f.Motivation)
	}
}

func TestZeroInboundUsesNeutralDefaults(t *testing.T) {
	c := (&conversation{}).
		out(0, "call me asap, are you ready to sell?").
		out(10*time.Minute, "following up").
		out(20*time.Minute, "last try")

	eval := NewEngine("", nil).Evaluate(c.messages, baseTime.Add(30*time.Minute))
	f := eval.Features

	densities := map[string]float64{
		"motivation":   f.Motivation,
		"objection":    f.Objection,
		"escalation":   f.Escalation,
		"nextStep":     f.NextStepClarity,
		"goal":         f.GoalClarity,
		"confirmation": f.Confirmation,
		"decisiveness": f.Decisiveness,
		"skepticism":   f.Skepticism,
		"personal":     f.PersonalContext,
		"followUp":     f.FollowUpAcceptance,
		"hesitation":   f.Hesitation,
		"urgency":      f.Urgency,
		"questions":    f.QuestionDensity,
	}
	for name, value := range densities {
		if value != 0 {
			t.Fatalf("expected %s density 0 without inbound messages, got %.1f", name, value)
		}
	}
	if f.ReplySpeed != neutralReplySpeed {
		t.Fatalf("expected neutral reply speed %.0f, got %.1f", neutralReplySpeed, f.ReplySpeed)
	}
	if f.AvgReplyDelayMinutes != nil {
		t.Fatalf("expected no reply delay without pairs")
	}
	if eval.RequiresImmediateAttention {
		t.Fatalf("outbound text must never trigger escalation")
	}
}

func TestEmptyConversationIsTotal(t *testing.T) {
	eval := NewEngine("", nil).Evaluate(nil, baseTime)

	if eval.HotScore < minHotScore || eval.HotScore > maxHotScore {
		t.Fatalf("expected score in [1,100], got %d", eval.HotScore)
	}
	if eval.Breakdown.Recency != 0 {
		t.Fatalf("expected zero recency without messages, got %.1f", eval.Breakdown.Recency)
	}
}

func TestGateBlocksTriggersOnShortExchange(t *testing.T) {
	c := (&conversation{}).
		out(0, "Hi there").
		in(time.Minute, "call me now, I'm ready to sell asap", domain.AIScores{Urgency: f64(100)}).
		in(2*time.Minute, "let's do it, send me the contract", domain.AIScores{Urgency: f64(100)})

	eval := NewEngine("", nil).Evaluate(c.messages, baseTime.Add(3*time.Minute))

	if eval.GatePassed {
		t.Fatalf("expected gate to fail for two inbound messages")
	}
	if eval.RequiresImmediateAttention || len(eval.Triggers) != 0 {
		t.Fatalf("expected no triggers behind a failed gate, got %v", eval.Triggers)
	}
	if eval.StageOverrideReason != "" {
		t.Fatalf("expected no override, got %q", eval.StageOverrideReason)
	}
}

func TestOverridePriority(t *testing.T) {
	tests := []struct {
		name       string
		bodies     []string
		wantPrefix string
	}{
		{
			name:       "callback beats meeting",
			bodies:     []string{"ok", "let's meet tomorrow", "or just call me", "fine"},
			wantPrefix: "callback requested",
		},
		{
			name:       "meeting beats buying signal",
			bodies:     []string{"ok", "i'm ready", "let's meet tomorrow", "fine"},
			wantPrefix: "meeting agreed",
		},
		{
			name:       "buying signal alone",
			bodies:     []string{"ok", "where do i sign", "fine", "cool"},
			wantPrefix: "buying signal",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			c := (&conversation{}).out(0, "Quick question about your property")
			for i, body := range tc.bodies {
				c.in(time.Duration(i+1)*3*time.Minute, body, domain.AIScores{})
			}

			eval := NewEngine("", nil).Evaluate(c.messages, baseTime.Add(time.Hour))

			if eval.Stage != domain.FunnelStageHot {
				t.Fatalf("expected Hot stage, got %s", eval.Stage)
			}
			if !strings.HasPrefix(eval.StageOverrideReason, tc.wantPrefix) {
				t.Fatalf("expected reason prefix %q, got %q", tc.wantPrefix, eval.StageOverrideReason)
			}
		})
	}
}

func TestPricingInquiryNeedsMotivation(t *testing.T) {
	build := func(response float64) []domain.Message {
		ai := domain.AIScores{Response: f64(response)}
		return (&conversation{}).
			out(0, "We buy houses in any condition").
			in(2*time.Minute, "what's the price you'd pay", ai).
			out(4*time.Minute, "Depends on condition. How many bedrooms?").
			in(6*time.Minute, "it's a 3 bed", ai).
			in(9*time.Minute, "roof is new", ai).
			messages
	}

	low := NewEngine("", nil).Evaluate(build(40), baseTime.Add(10*time.Minute))
	if hasTrigger(low.Triggers, domain.TriggerPricingInquiry) {
		t.Fatalf("expected no pricing trigger at motivation 40")
	}

	high := NewEngine("", nil).Evaluate(build(80), baseTime.Add(10*time.Minute))
	if !hasTrigger(high.Triggers, domain.TriggerPricingInquiry) {
		t.Fatalf("expected pricing trigger at motivation 80, got %v", high.Triggers)
	}
	if high.AlertPriority != domain.AlertPriorityHigh {
		t.Fatalf("expected high priority for a single attention trigger, got %q", high.AlertPriority)
	}
	if high.Stage == domain.FunnelStageHot && high.StageOverrideReason != "" {
		t.Fatalf("pricing inquiry must not override the stage")
	}
}

func TestInformationalTriggersDoNotEscalate(t *testing.T) {
	c := (&conversation{}).
		out(0, "Thanks for getting back to us").
		in(2*time.Minute, "how long does it take?", domain.AIScores{}).
		in(4*time.Minute, "do you do inspections?", domain.AIScores{}).
		in(6*time.Minute, "who pays closing costs?", domain.AIScores{}).
		in(8*time.Minute, "we move in a few months, is that ok?", domain.AIScores{})

	eval := NewEngine("", nil).Evaluate(c.messages, baseTime.Add(10*time.Minute))

	if !hasTrigger(eval.Triggers, domain.TriggerHighQuestionDensity) {
		t.Fatalf("expected high question density trigger, got %v", eval.Triggers)
	}
	if !hasTrigger(eval.Triggers, domain.TriggerTimelineMention) {
		t.Fatalf("expected timeline mention trigger, got %v", eval.Triggers)
	}
	if eval.RequiresImmediateAttention {
		t.Fatalf("informational triggers must not require attention")
	}
	if eval.AlertPriority != domain.AlertPriorityMedium {
		t.Fatalf("expected medium priority, got %q", eval.AlertPriority)
	}
}

func TestMultipleAttentionTriggersAreCritical(t *testing.T) {
	c := (&conversation{}).
		out(0, "Hi").
		in(2*time.Minute, "please call me", domain.AIScores{}).
		in(4*time.Minute, "we need to sell fast, foreclosure", domain.AIScores{}).
		in(6*time.Minute, "thanks", domain.AIScores{}).
		in(8*time.Minute, "ok", domain.AIScores{})

	eval := NewEngine("", nil).Evaluate(c.messages, baseTime.Add(10*time.Minute))

	if eval.AlertPriority != domain.AlertPriorityCritical {
		t.Fatalf("expected critical priority, got %q (%v)", eval.AlertPriority, eval.Triggers)
	}
}

func TestCriticalScoreTriggerIndependentOfHotScore(t *testing.T) {
	ai := domain.AIScores{Urgency: f64(100)}
	c := (&conversation{}).
		out(0, "Hello").
		in(2*time.Minute, "yes asap?", ai).
		in(4*time.Minute, "yes urgent?", ai).
		in(6*time.Minute, "ok follow up tomorrow?", ai).
		in(8*time.Minute, "yes immediately?", ai)

	eval := NewEngine("", nil).Evaluate(c.messages, baseTime.Add(10*time.Minute))

	if eval.CriticalScore <= 75 {
		t.Fatalf("expected critical score above 75, got %.1f", eval.CriticalScore)
	}
	if !hasTrigger(eval.Triggers, domain.TriggerCriticalScore) {
		t.Fatalf("expected critical score trigger, got %v", eval.Triggers)
	}
	if eval.Stage != domain.FunnelStageHot {
		t.Fatalf("expected Hot stage, got %s", eval.Stage)
	}
}

func TestEvaluateIsDeterministic(t *testing.T) {
	c := (&conversation{}).
		out(0, "Hi").
		in(time.Minute, "interested, what's next?", domain.AIScores{Sentiment: f64(0.4), SentimentMagnitude: f64(0.6)}).
		in(9*time.Minute, "my wife wants to move soon", domain.AIScores{Sentiment: f64(0.7), Qualification: f64(70)}).
		out(10*time.Minute, "Great, when works?").
		in(20*time.Minute, "tomorrow works for me", domain.AIScores{Hesitation: f64(20)})

	engine := NewEngine("", nil)
	now := baseTime.Add(25 * time.Minute)
	first := engine.Evaluate(c.messages, now)
	second := engine.Evaluate(c.messages, now)

	if !reflect.DeepEqual(first, second) {
		t.Fatalf("expected identical evaluations, got %+v and %+v", first, second)
	}
}

func TestHotScoreAlwaysInRange(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	vocabulary := []string{
		"hi", "call me", "not interested", "how much?", "asap", "maybe later",
		"yes", "scam?", "my husband agrees", "let's do it", "ok", "", "????",
	}
	engine := NewEngine("", nil)

	for i := 0; i < 300; i++ {
		n := rng.Intn(12)
		c := &conversation{}
		offset := time.Duration(0)
		for j := 0; j < n; j++ {
			offset += time.Duration(rng.Intn(600)) * time.Minute
			body := vocabulary[rng.Intn(len(vocabulary))]
			if rng.Intn(2) == 0 {
				c.out(offset, body)
				continue
			}
			c.in(offset, body, domain.AIScores{
				Hesitation: randomScore(rng),
				Urgency:    randomScore(rng),
				Sentiment:  randomScore(rng),
				Response:   randomScore(rng),
				Weighted:   randomScore(rng),
			})
		}

		eval := engine.Evaluate(c.messages, baseTime.Add(offset+time.Duration(rng.Intn(200))*time.Hour))
		if eval.HotScore < minHotScore || eval.HotScore > maxHotScore {
			t.Fatalf("iteration %d: score %d out of range", i, eval.HotScore)
		}
		if !eval.GatePassed && eval.RequiresImmediateAttention {
			t.Fatalf("iteration %d: attention without passing the gate", i)
		}
	}
}

func randomScore(rng *rand.Rand) *float64 {
	switch rng.Intn(5) {
	case 0:
		return nil
	case 1:
		v := math.NaN()
		return &v
	case 2:
		v := rng.Float64()*400 - 200
		return &v
	default:
		v := rng.Float64() * 100
		return &v
	}
}

func TestMalformedAIValuesAreIgnored(t *testing.T) {
	nan := math.NaN()
	inf := math.Inf(1)
	c := (&conversation{}).
		out(0, "Hi").
		in(time.Minute, "hello", domain.AIScores{Sentiment: &nan, Qualification: &inf, Urgency: &nan})

	f := ExtractFeatures(DefaultRules(), c.messages, baseTime.Add(2*time.Minute))

	if f.AvgSentiment != nil || f.AIQualification != nil {
		t.Fatalf("expected NaN and Inf values to be dropped")
	}
	if f.Urgency != 0 {
		t.Fatalf("expected urgency keyword fallback 0, got %.1f", f.Urgency)
	}
}

func TestComputedByCarriesVersions(t *testing.T) {
	engine := NewEngine("hotscore-test", nil)
	if got := engine.ComputedBy(); got != "hotscore-test+rules."+DefaultRules().Version {
		t.Fatalf("unexpected computed_by %q", got)
	}
}
