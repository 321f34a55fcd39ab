// Package domain holds the lead vocabulary shared by scoring, escalation and storage.
package domain

// LeadStatus is the CRM status the dispatcher writes on a lead.
type LeadStatus string

const (
	LeadStatusCold    LeadStatus = "Cold Lead"
	LeadStatusWarm    LeadStatus = "Warm Lead"
	LeadStatusEngaged LeadStatus = "Engaged"
	LeadStatusHot     LeadStatus = "Hot Lead"
)

const (
	// DefaultHotLeadThreshold applies when a tenant has no valid threshold configured.
	DefaultHotLeadThreshold = 70
	MinHotLeadThreshold     = 1
	MaxHotLeadThreshold     = 100

	engagedStatusFloor = 60
	warmStatusFloor    = 50
)

// EffectiveThreshold returns threshold when it lies in 1..100, else the default.
func EffectiveThreshold(threshold int) int {
	if threshold < MinHotLeadThreshold || threshold > MaxHotLeadThreshold {
		return DefaultHotLeadThreshold
	}
	return threshold
}

// StatusForScore maps a hot score onto a lead status. The hot boundary is the
// tenant threshold and is checked first, so a threshold below 60 still wins.
func StatusForScore(score, threshold int) LeadStatus {
	switch {
	case score >= EffectiveThreshold(threshold):
		return LeadStatusHot
	case score >= engagedStatusFloor:
		return LeadStatusEngaged
	case score >= warmStatusFloor:
		return LeadStatusWarm
	default:
		return LeadStatusCold
	}
}
