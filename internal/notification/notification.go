// Package notification delivers hot-lead alerts to humans over SMS, email and
// Slack, and keeps the dashboard log of every alert.
package notification

import (
	"sort"
	"strings"

	"github.com/google/uuid"
)

// Channel is one external delivery route.
type Channel string

const (
	ChannelSMS   Channel = "sms"
	ChannelEmail Channel = "email"
	ChannelSlack Channel = "slack"
)

// Preference is the tenant's choice of personal alert channels. Slack is
// independent of it and is used whenever a webhook is configured.
type Preference string

const (
	PreferenceAll   Preference = "All"
	PreferenceSMS   Preference = "SMS"
	PreferenceEmail Preference = "Email"
)

// ParsePreference is case-insensitive and falls back to All.
func ParsePreference(value string) Preference {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "sms":
		return PreferenceSMS
	case "email":
		return PreferenceEmail
	default:
		return PreferenceAll
	}
}

// Recipients are the tenant's alert contacts.
type Recipients struct {
	Preference      Preference
	Phone           string
	Email           string
	SlackWebhookURL string
}

// Payload is the alert content shared by every channel.
type Payload struct {
	TenantID     uuid.UUID `json:"tenantId"`
	LeadID       uuid.UUID `json:"leadId"`
	Title        string    `json:"title"`
	Body         string    `json:"body"`
	Priority     string    `json:"priority"`
	DashboardURL string    `json:"dashboardUrl"`
}

// Report describes the outcome of one fan-out. Failures never propagate as errors.
type Report struct {
	Attempted []Channel          `json:"attempted"`
	Delivered []Channel          `json:"delivered"`
	Failed    map[Channel]string `json:"failed,omitempty"`
}

func (r *Report) sort() {
	less := func(s []Channel) func(i, j int) bool {
		return func(i, j int) bool { return s[i] < s[j] }
	}
	sort.Slice(r.Attempted, less(r.Attempted))
	sort.Slice(r.Delivered, less(r.Delivered))
}

// ChannelNames returns the channel names as strings for persistence.
func ChannelNames(channels []Channel) []string {
	out := make([]string, 0, len(channels))
	for _, ch := range channels {
		out = append(out, string(ch))
	}
	return out
}
