package domain

// FunnelStage is the coarse conversation-progress label stored on each score record.
type FunnelStage string

const (
	FunnelStageCold      FunnelStage = "Cold"
	FunnelStageLukewarm  FunnelStage = "Lukewarm"
	FunnelStageWarm      FunnelStage = "Warm"
	FunnelStageEngaged   FunnelStage = "Engaged"
	FunnelStageHot       FunnelStage = "Hot"
	FunnelStageQualified FunnelStage = "Qualified"
)

// Trigger names a rule that fired during classification.
type Trigger string

const (
	TriggerCriticalScore       Trigger = "critical_score"
	TriggerCallbackRequest     Trigger = "callback_request"
	TriggerMeetingAgreed       Trigger = "meeting_agreed"
	TriggerPricingInquiry      Trigger = "pricing_inquiry"
	TriggerBuyingSignal        Trigger = "buying_signal"
	TriggerTimelineUrgent      Trigger = "timeline_urgent"
	TriggerHighQuestionDensity Trigger = "high_question_density"
	TriggerTimelineMention     Trigger = "timeline_mention"
)

// RequiresAttention reports whether the trigger alone warrants handing the lead to a human.
func (t Trigger) RequiresAttention() bool {
	switch t {
	case TriggerCriticalScore, TriggerCallbackRequest, TriggerMeetingAgreed,
		TriggerPricingInquiry, TriggerBuyingSignal, TriggerTimelineUrgent:
		return true
	default:
		return false
	}
}

// AlertPriority grades an escalation. Empty means nothing fired.
type AlertPriority string

const (
	AlertPriorityNone     AlertPriority = ""
	AlertPriorityMedium   AlertPriority = "medium"
	AlertPriorityHigh     AlertPriority = "high"
	AlertPriorityCritical AlertPriority = "critical"
)
