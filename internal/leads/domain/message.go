package domain

import (
	"time"

	"github.com/google/uuid"
)

// Direction is who sent an SMS turn.
type Direction string

const (
	DirectionInbound  Direction = "inbound"
	DirectionOutbound Direction = "outbound"
)

// AIScores are optional per-message values from the upstream classifier.
// A nil field means the classifier produced nothing usable for that message.
type AIScores struct {
	Hesitation         *float64 `json:"hesitationScore,omitempty"`
	Urgency            *float64 `json:"urgencyScore,omitempty"`
	Sentiment          *float64 `json:"sentimentScore,omitempty"`
	SentimentMagnitude *float64 `json:"sentimentMagnitude,omitempty"`
	Qualification      *float64 `json:"qualificationScore,omitempty"`
	Response           *float64 `json:"responseScore,omitempty"`
	Weighted           *float64 `json:"weightedScore,omitempty"`
}

// Message is one immutable SMS turn of a lead conversation.
type Message struct {
	ID        uuid.UUID
	LeadID    uuid.UUID
	TenantID  uuid.UUID
	Direction Direction
	Body      string
	SentAt    time.Time
	AI        AIScores
}

// IsInbound reports whether the lead wrote the message.
func (m Message) IsInbound() bool {
	return m.Direction == DirectionInbound
}
