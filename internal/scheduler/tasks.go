package scheduler

import (
	"encoding/json"

	"github.com/hibiken/asynq"
)

const TaskHealthCheckReminder = "healthchecks.reminder"

const TaskNotificationOutboxDue = "notification.outbox.due"

type HealthCheckReminderPayload struct {
	CheckID        string `json:"checkId"`
	OrganizationID string `json:"organizationId"`
}

type NotificationOutboxDuePayload struct {
	OutboxID string `json:"outboxId"`
	TenantID string `json:"tenantId"`
}

func NewHealthCheckReminderTask(payload HealthCheckReminderPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskHealthCheckReminder, data), nil
}

func ParseHealthCheckReminderPayload(task *asynq.Task) (HealthCheckReminderPayload, error) {
	var payload HealthCheckReminderPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return HealthCheckReminderPayload{}, err
	}
	return payload, nil
}

func NewNotificationOutboxDueTask(payload NotificationOutboxDuePayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskNotificationOutboxDue, data), nil
}

func ParseNotificationOutboxDuePayload(task *asynq.Task) (NotificationOutboxDuePayload, error) {
	var payload NotificationOutboxDuePayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return NotificationOutboxDuePayload{}, err
	}
	return payload, nil
}
