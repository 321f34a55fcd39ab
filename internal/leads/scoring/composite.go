package scoring

import "math"

// Category weights of the final hot score. They sum to 1.
const (
	weightBehavioral          = 0.20
	weightEmotional           = 0.20
	weightIntent              = 0.15
	weightSentimentQuality    = 0.15
	weightConversationQuality = 0.15
	weightAIIntelligence      = 0.10
	weightRecency             = 0.05

	minHotScore = 1
	maxHotScore = 100

	recencyPenaltyPerHour = 2.0
)

// Breakdown holds the seven category sub-scores behind a hot score.
// Sub-scores are rounded to one decimal; Raw is their weighted sum.
type Breakdown struct {
	Behavioral          float64 `json:"behavioral"`
	Emotional           float64 `json:"emotional"`
	Intent              float64 `json:"intent"`
	SentimentQuality    float64 `json:"sentimentQuality"`
	ConversationQuality float64 `json:"conversationQuality"`
	AIIntelligence      float64 `json:"aiIntelligence"`
	Recency             float64 `json:"recency"`
	Raw                 float64 `json:"raw"`
}

// Components flattens the breakdown and weights for structured logging.
func (b Breakdown) Components() map[string]float64 {
	return map[string]float64{
		"behavioral":                  b.Behavioral,
		"behavioral_weight":           weightBehavioral,
		"emotional":                   b.Emotional,
		"emotional_weight":            weightEmotional,
		"intent":                      b.Intent,
		"intent_weight":               weightIntent,
		"sentiment_quality":           b.SentimentQuality,
		"sentiment_quality_weight":    weightSentimentQuality,
		"conversation_quality":        b.ConversationQuality,
		"conversation_quality_weight": weightConversationQuality,
		"ai_intelligence":             b.AIIntelligence,
		"ai_intelligence_weight":      weightAIIntelligence,
		"recency":                     b.Recency,
		"recency_weight":              weightRecency,
		"raw":                         b.Raw,
	}
}

// inputs collects the present values of one category.
type inputs []float64

func (in *inputs) add(v float64) { *in = append(*in, v) }

func (in *inputs) addOptional(v *float64) {
	if v != nil {
		in.add(*v)
	}
}

// average is 0 for a category without any present input.
func (in inputs) average() float64 {
	return round1(mean(in))
}

// Composite combines features into category sub-scores and the final hot score in [1,100].
func Composite(f Features) (int, Breakdown) {
	var b Breakdown

	var behavioral inputs
	behavioral.add(f.ReplySpeed)
	behavioral.add(f.MessageFrequency)
	behavioral.add(f.ResponseRate)
	behavioral.add(f.Uniqueness)
	behavioral.add(f.MessageLength)
	b.Behavioral = behavioral.average()

	// Hesitation's inverse is counted from the combined signal and again
	// from the AI average when one exists.
	var emotional inputs
	emotional.add(math.Max(0, 100-f.Hesitation))
	emotional.add(f.Motivation)
	emotional.add(f.Urgency)
	emotional.add(100 - f.Skepticism)
	if f.AvgAIHesitation != nil {
		emotional.add(100 - *f.AvgAIHesitation)
	}
	b.Emotional = emotional.average()

	var intent inputs
	intent.add(f.GoalClarity)
	intent.add(f.NextStepClarity)
	intent.add(f.Confirmation)
	intent.add(f.FollowUpAcceptance)
	intent.add(f.Decisiveness)
	b.Intent = intent.average()

	var sentiment inputs
	sentiment.addOptional(f.AvgSentiment)
	sentiment.add(f.ToneConsistency)
	if f.AvgMagnitude != nil {
		sentiment.add(100 - *f.AvgMagnitude)
	}
	sentiment.add(normalizeSigned(f.SentimentTrend))
	b.SentimentQuality = sentiment.average()

	var conversation inputs
	conversation.add(f.QuestionDensity)
	conversation.add(f.PersonalContext)
	conversation.add(100 - f.Objection)
	conversation.add(f.Escalation)
	conversation.add(normalizeSigned(f.EngagementCurve))
	b.ConversationQuality = conversation.average()

	var ai inputs
	ai.addOptional(f.AIQualification)
	ai.addOptional(f.AIWeighted)
	ai.addOptional(f.AIResponse)
	b.AIIntelligence = ai.average()

	if f.TotalCount > 0 {
		b.Recency = round1(math.Max(0, 100-recencyPenaltyPerHour*f.HoursSinceLast))
	}

	b.Raw = round1(b.Behavioral*weightBehavioral +
		b.Emotional*weightEmotional +
		b.Intent*weightIntent +
		b.SentimentQuality*weightSentimentQuality +
		b.ConversationQuality*weightConversationQuality +
		b.AIIntelligence*weightAIIntelligence +
		b.Recency*weightRecency)

	return clampScore(b.Raw), b
}

// normalizeSigned keeps only the positive side of a -100..100 signal.
func normalizeSigned(v float64) float64 {
	return clampFloat(v, 0, 100)
}

func clampScore(value float64) int {
	rounded := int(math.Round(value))
	if rounded < minHotScore {
		return minHotScore
	}
	if rounded > maxHotScore {
		return maxHotScore
	}
	return rounded
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}
