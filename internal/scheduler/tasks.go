package scheduler

import (
	"encoding/json"

	"github.com/hibiken/asynq"
)

const TaskLeadScore = "leads.score"

type LeadScorePayload struct {
	LeadID    string `json:"leadId"`
	TenantID  string `json:"tenantId"`
	MessageID string `json:"messageId,omitempty"`
	Trigger   string `json:"trigger,omitempty"`
}

func NewLeadScoreTask(payload LeadScorePayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskLeadScore, data), nil
}

func ParseLeadScorePayload(task *asynq.Task) (LeadScorePayload, error) {
	var payload LeadScorePayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return LeadScorePayload{}, err
	}
	return payload, nil
}
