package scoring

import (
	"math"
	"sort"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/tbauer79999/rei-crm-sub004/internal/leads/domain"
)

const (
	neutralReplySpeed       = 50.0
	defaultToneConsistency  = 85.0
	minThirdSpan            = time.Minute
	replyDelayPenaltyDivide = 10.0
	frequencyScale          = 10.0
	responseRateScale       = 50.0
	messageLengthDivide     = 2.0
	trendScale              = 10.0
)

// Features are the scalar signals derived from one conversation. Every score
// field is on a 0..100 scale unless noted. Optional signals that depend on
// upstream AI data are nil when no message carried a usable value.
type Features struct {
	InboundCount    int     `json:"inboundCount"`
	OutboundCount   int     `json:"outboundCount"`
	TotalCount      int     `json:"totalCount"`
	DurationMinutes float64 `json:"durationMinutes"`
	HoursSinceLast  float64 `json:"hoursSinceLastMessage"`

	AvgReplyDelayMinutes *float64 `json:"avgReplyDelayMinutes"`
	ReplySpeed           float64  `json:"replySpeed"`
	MessageFrequency     float64  `json:"messageFrequency"`
	ResponseRate         float64  `json:"responseRate"`
	Uniqueness           float64  `json:"uniqueness"`
	MessageLength        float64  `json:"messageLength"`

	Motivation         float64 `json:"motivation"`
	MotivationFromAI   bool    `json:"motivationFromAi"`
	Objection          float64 `json:"objection"`
	Escalation         float64 `json:"escalation"`
	NextStepClarity    float64 `json:"nextStepClarity"`
	GoalClarity        float64 `json:"goalClarity"`
	Confirmation       float64 `json:"confirmation"`
	Decisiveness       float64 `json:"decisiveness"`
	Skepticism         float64 `json:"skepticism"`
	PersonalContext    float64 `json:"personalContext"`
	FollowUpAcceptance float64 `json:"followUpAcceptance"`
	Hesitation         float64 `json:"hesitation"`
	Urgency            float64 `json:"urgency"`

	AvgAIHesitation *float64 `json:"avgAiHesitation"`
	AvgSentiment    *float64 `json:"avgSentiment"`
	AvgMagnitude    *float64 `json:"avgMagnitude"`
	// SentimentTrend and EngagementCurve are signed, -100..100.
	SentimentTrend  float64 `json:"sentimentTrend"`
	ToneConsistency float64 `json:"toneConsistency"`
	EngagementCurve float64 `json:"engagementCurve"`
	QuestionDensity float64 `json:"questionDensity"`

	AIQualification *float64 `json:"aiQualification"`
	AIWeighted      *float64 `json:"aiWeighted"`
	AIResponse      *float64 `json:"aiResponse"`
}

// ExtractFeatures derives all signals from the conversation. It never fails:
// insufficient input yields neutral defaults. Messages need not be sorted.
func ExtractFeatures(rules *Rules, messages []domain.Message, now time.Time) Features {
	ordered := sortedMessages(messages)
	inbound := make([]domain.Message, 0, len(ordered))
	for _, msg := range ordered {
		if msg.IsInbound() {
			inbound = append(inbound, msg)
		}
	}

	f := Features{
		InboundCount:  len(inbound),
		OutboundCount: len(ordered) - len(inbound),
		TotalCount:    len(ordered),
	}

	if len(ordered) > 0 {
		first, last := ordered[0].SentAt, ordered[len(ordered)-1].SentAt
		f.DurationMinutes = last.Sub(first).Minutes()
		f.HoursSinceLast = math.Max(0, now.Sub(last).Hours())
	}

	f.AvgReplyDelayMinutes, f.ReplySpeed = replyTiming(ordered)
	f.MessageFrequency = messageFrequency(inbound)
	f.ResponseRate = responseRate(f.InboundCount, f.OutboundCount)
	f.Uniqueness = uniqueness(inbound)
	f.MessageLength = messageLength(inbound)

	f.Motivation = keywordDensity(rules, CategoryMotivation, inbound)
	if ai := averageAI(inbound, func(s domain.AIScores) *float64 { return s.Response }, true); ai != nil {
		f.Motivation = *ai
		f.MotivationFromAI = true
	}
	f.Objection = keywordDensity(rules, CategoryObjection, inbound)
	f.Escalation = keywordDensity(rules, CategoryEscalation, inbound)
	f.NextStepClarity = keywordDensity(rules, CategoryNextStep, inbound)
	f.GoalClarity = keywordDensity(rules, CategoryGoal, inbound)
	f.Confirmation = keywordDensity(rules, CategoryConfirmation, inbound)
	f.Decisiveness = keywordDensity(rules, CategoryDecisiveness, inbound)
	f.Skepticism = keywordDensity(rules, CategorySkepticism, inbound)
	f.PersonalContext = keywordDensity(rules, CategoryPersonalContext, inbound)
	f.FollowUpAcceptance = keywordDensity(rules, CategoryFollowUpAcceptance, inbound)

	f.AvgAIHesitation = averageAI(inbound, func(s domain.AIScores) *float64 { return s.Hesitation }, false)
	if f.AvgAIHesitation != nil {
		f.Hesitation = *f.AvgAIHesitation
	} else {
		f.Hesitation = keywordDensity(rules, CategoryHesitation, inbound)
	}
	if ai := averageAI(inbound, func(s domain.AIScores) *float64 { return s.Urgency }, false); ai != nil {
		f.Urgency = *ai
	} else {
		f.Urgency = keywordDensity(rules, CategoryUrgency, inbound)
	}

	sentiments := sentimentSeries(inbound)
	if len(sentiments) > 0 {
		avg := mean(sentiments)
		f.AvgSentiment = &avg
	}
	f.ToneConsistency = toneConsistency(sentiments)
	f.SentimentTrend = sentimentTrend(sentiments)
	f.AvgMagnitude = averageMagnitude(inbound)

	f.EngagementCurve = engagementCurve(inbound)
	f.QuestionDensity = questionDensity(inbound)

	f.AIQualification = averageAI(inbound, func(s domain.AIScores) *float64 { return s.Qualification }, true)
	f.AIWeighted = averageAI(inbound, func(s domain.AIScores) *float64 { return s.Weighted }, true)
	f.AIResponse = averageAI(inbound, func(s domain.AIScores) *float64 { return s.Response }, true)

	return f
}

func sortedMessages(messages []domain.Message) []domain.Message {
	ordered := make([]domain.Message, len(messages))
	copy(ordered, messages)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].SentAt.Before(ordered[j].SentAt)
	})
	return ordered
}

// replyTiming pairs every inbound message with the latest outbound message
// before it. Without any pair the speed is the neutral midpoint.
func replyTiming(ordered []domain.Message) (*float64, float64) {
	var lastOutbound *time.Time
	var total float64
	var pairs int
	for i := range ordered {
		msg := ordered[i]
		if !msg.IsInbound() {
			sentAt := msg.SentAt
			lastOutbound = &sentAt
			continue
		}
		if lastOutbound == nil {
			continue
		}
		total += math.Max(0, msg.SentAt.Sub(*lastOutbound).Minutes())
		pairs++
	}
	if pairs == 0 {
		return nil, neutralReplySpeed
	}
	avg := total / float64(pairs)
	return &avg, math.Max(0, 100-avg/replyDelayPenaltyDivide)
}

func messageFrequency(inbound []domain.Message) float64 {
	if len(inbound) < 2 {
		return 0
	}
	span := inbound[len(inbound)-1].SentAt.Sub(inbound[0].SentAt)
	if span < minThirdSpan {
		span = minThirdSpan
	}
	perHour := float64(len(inbound)) / span.Hours()
	return math.Min(100, perHour*frequencyScale)
}

func responseRate(inbound, outbound int) float64 {
	if outbound == 0 {
		if inbound > 0 {
			return 100
		}
		return 0
	}
	return math.Min(100, float64(inbound)/float64(outbound)*responseRateScale)
}

func uniqueness(inbound []domain.Message) float64 {
	if len(inbound) < 2 {
		return 100
	}
	seen := make(map[string]struct{}, len(inbound))
	for _, msg := range inbound {
		seen[normalizeBody(msg.Body)] = struct{}{}
	}
	return float64(len(seen)) / float64(len(inbound)) * 100
}

func messageLength(inbound []domain.Message) float64 {
	if len(inbound) == 0 {
		return 0
	}
	chars := 0
	for _, msg := range inbound {
		chars += utf8.RuneCountInString(strings.TrimSpace(msg.Body))
	}
	avg := float64(chars) / float64(len(inbound))
	return math.Min(100, avg/messageLengthDivide)
}

// keywordDensity is the weighted share of inbound messages matching the
// category, as a percentage capped at 100.
func keywordDensity(rules *Rules, category Category, inbound []domain.Message) float64 {
	if len(inbound) == 0 {
		return 0
	}
	var hits float64
	for _, msg := range inbound {
		hits += rules.keywordWeight(category, msg.Body)
	}
	return math.Min(100, hits/float64(len(inbound))*100)
}

// averageAI averages one AI field across messages, clamped to 0..100.
// Unusable values are skipped; with skipZero a zero counts as absent.
func averageAI(messages []domain.Message, field func(domain.AIScores) *float64, skipZero bool) *float64 {
	values := make([]float64, 0, len(messages))
	for _, msg := range messages {
		v, ok := usable(field(msg.AI))
		if !ok || (skipZero && v == 0) {
			continue
		}
		values = append(values, clampFloat(v, 0, 100))
	}
	if len(values) == 0 {
		return nil
	}
	avg := mean(values)
	return &avg
}

// sentimentSeries maps usable sentiment values from -1..1 onto 0..100, in time order.
func sentimentSeries(inbound []domain.Message) []float64 {
	series := make([]float64, 0, len(inbound))
	for _, msg := range inbound {
		v, ok := usable(msg.AI.Sentiment)
		if !ok {
			continue
		}
		series = append(series, (clampFloat(v, -1, 1)+1)*50)
	}
	return series
}

func averageMagnitude(inbound []domain.Message) *float64 {
	values := make([]float64, 0, len(inbound))
	for _, msg := range inbound {
		v, ok := usable(msg.AI.SentimentMagnitude)
		if !ok {
			continue
		}
		values = append(values, clampFloat(math.Abs(v), 0, 1)*100)
	}
	if len(values) == 0 {
		return nil
	}
	avg := mean(values)
	return &avg
}

// toneConsistency treats a single point as moderately, not perfectly, consistent.
func toneConsistency(series []float64) float64 {
	if len(series) < 2 {
		return defaultToneConsistency
	}
	return math.Max(0, 100-stddev(series))
}

func sentimentTrend(series []float64) float64 {
	if len(series) < 2 {
		return 0
	}
	return clampFloat(slope(series)*trendScale, -100, 100)
}

// engagementCurve compares reply frequency across the first, middle and
// last thirds of the inbound messages. Each third's rate is its arrivals over
// the gaps that led to them, so a steady cadence reads as flat for any count.
func engagementCurve(inbound []domain.Message) float64 {
	n := len(inbound)
	if n < 3 {
		return 0
	}
	gaps := make([]time.Duration, 0, n-1)
	for i := 1; i < n; i++ {
		gaps = append(gaps, inbound[i].SentAt.Sub(inbound[i-1].SentAt))
	}
	m := len(gaps)
	cut1 := int(math.Round(float64(m) / 3))
	cut2 := int(math.Round(float64(2*m) / 3))

	f1 := arrivalRate(gaps[:cut1])
	f3 := arrivalRate(gaps[cut2:])
	// with two gaps the middle third is empty and drops out of the average
	f2 := f1
	if cut2 > cut1 {
		f2 = arrivalRate(gaps[cut1:cut2])
	}
	curve := ((f2 - f1) + (f3 - f2)) / 2
	return clampFloat(curve*trendScale, -100, 100)
}

// arrivalRate is messages per hour over the summed gaps.
func arrivalRate(gaps []time.Duration) float64 {
	var span time.Duration
	for _, g := range gaps {
		span += g
	}
	if span < minThirdSpan {
		span = minThirdSpan
	}
	return float64(len(gaps)) / span.Hours()
}

func questionDensity(inbound []domain.Message) float64 {
	if len(inbound) == 0 {
		return 0
	}
	questions := 0
	for _, msg := range inbound {
		if strings.Contains(msg.Body, "?") {
			questions++
		}
	}
	return float64(questions) / float64(len(inbound)) * 100
}

func usable(v *float64) (float64, bool) {
	if v == nil || math.IsNaN(*v) || math.IsInf(*v, 0) {
		return 0, false
	}
	return *v, true
}

func normalizeBody(body string) string {
	return strings.Join(strings.Fields(strings.ToLower(body)), " ")
}

func mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	var sum float64
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

func stddev(values []float64) float64 {
	avg := mean(values)
	var sq float64
	for _, v := range values {
		sq += (v - avg) * (v - avg)
	}
	return math.Sqrt(sq / float64(len(values)))
}

// slope is the least-squares slope of values against their index.
func slope(values []float64) float64 {
	n := float64(len(values))
	xMean := (n - 1) / 2
	yMean := mean(values)
	var num, den float64
	for i, y := range values {
		dx := float64(i) - xMean
		num += dx * (y - yMean)
		den += dx * dx
	}
	if den == 0 {
		return 0
	}
	return num / den
}

func clampFloat(value float64, min float64, max float64) float64 {
	if value < min {
		return min
	}
	if value > max {
		return max
	}
	return value
}
