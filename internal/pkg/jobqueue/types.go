package jobqueue

import (
	"encoding/json"
	"time"
)

// JobType defines the type of job
type JobType string

const (
	JobTypeGatewayWebhook JobType = "gateway_webhook"
	JobTypePendingCharges JobType = "pending_charges"
	JobTypeArchivePayload JobType = "archive_payload"
)

// JobStatus defines the status of a job
type JobStatus string

const (
	JobStatusPending    JobStatus = "pending"
	JobStatusProcessing JobStatus = "processing"
	JobStatusCompleted  JobStatus = "completed"
	JobStatusFailed     JobStatus = "failed"
	JobStatusRetrying   JobStatus = "retrying"
)

// Job represents a background job
type Job struct {
	ID          string                 `json:"id"`
	Type        JobType                `json:"type"`
	Status      JobStatus              `json:"status"`
	Payload     map[string]interface{} `json:"payload"`
	CreatedAt   time.Time              `json:"created_at"`
	UpdatedAt   time.Time              `json:"updated_at"`
	ProcessedAt *time.Time             `json:"processed_at,omitempty"`
	CompletedAt *time.Time             `json:"completed_at,omitempty"`
	ErrorMsg    string                 `json:"error_msg,omitempty"`
	RetryCount  int                    `json:"retry_count"`
	MaxRetries  int                    `json:"max_retries"`
}

// GatewayWebhookJobPayload references a journaled webhook event to reconcile.
type GatewayWebhookJobPayload struct {
	WebhookEventID uint   `json:"webhook_event_id"`
	EventType      string `json:"event_type"`
	ResourceID     string `json:"resource_id"`
}

// ToMap converts the payload to a map for storage
func (p GatewayWebhookJobPayload) ToMap() map[string]interface{} {
	return map[string]interface{}{
		"webhook_event_id": p.WebhookEventID,
		"event_type":       p.EventType,
		"resource_id":      p.ResourceID,
	}
}

func GatewayWebhookJobPayloadFromMap(data map[string]interface{}) (*GatewayWebhookJobPayload, error) {
	var payload GatewayWebhookJobPayload
	return &payload, decodePayload(data, &payload)
}

// PendingChargesJobPayload triggers a generation run. Empty UserID means all
// owners with due subscriptions.
type PendingChargesJobPayload struct {
	UserID    string `json:"user_id,omitempty"`
	ProfileID string `json:"profile_id,omitempty"`
	Trigger   string `json:"trigger"`
}

// ToMap converts the payload to a map for storage
func (p PendingChargesJobPayload) ToMap() map[string]interface{} {
	m := map[string]interface{}{"trigger": p.Trigger}
	if p.UserID != "" {
		m["user_id"] = p.UserID
		m["profile_id"] = p.ProfileID
	}
	return m
}

func PendingChargesJobPayloadFromMap(data map[string]interface{}) (*PendingChargesJobPayload, error) {
	var payload PendingChargesJobPayload
	return &payload, decodePayload(data, &payload)
}

// ArchivePayloadJobPayload carries a raw webhook body to the archive.
type ArchivePayloadJobPayload struct {
	Provider   string    `json:"provider"`
	EventID    string    `json:"event_id"`
	ReceivedAt time.Time `json:"received_at"`
	Body       string    `json:"body"`
}

// ToMap converts the payload to a map for storage
func (p ArchivePayloadJobPayload) ToMap() map[string]interface{} {
	return map[string]interface{}{
		"provider":    p.Provider,
		"event_id":    p.EventID,
		"received_at": p.ReceivedAt.UTC().Format(time.RFC3339Nano),
		"body":        p.Body,
	}
}

func ArchivePayloadJobPayloadFromMap(data map[string]interface{}) (*ArchivePayloadJobPayload, error) {
	var payload ArchivePayloadJobPayload
	return &payload, decodePayload(data, &payload)
}

func decodePayload(data map[string]interface{}, out interface{}) error {
	jsonData, err := json.Marshal(data)
	if err != nil {
		return err
	}
	return json.Unmarshal(jsonData, out)
}

// IsRetryable checks if the job can be retried
func (j *Job) IsRetryable() bool {
	return j.Status == JobStatusFailed && j.RetryCount < j.MaxRetries
}

// MarkAsProcessing updates the job status to processing
func (j *Job) MarkAsProcessing() {
	now := time.Now()
	j.Status = JobStatusProcessing
	j.UpdatedAt = now
	j.ProcessedAt = &now
}

// MarkAsCompleted updates the job status to completed
func (j *Job) MarkAsCompleted() {
	now := time.Now()
	j.Status = JobStatusCompleted
	j.UpdatedAt = now
	j.CompletedAt = &now
	j.ErrorMsg = ""
}

// MarkAsFailed updates the job status to failed
func (j *Job) MarkAsFailed(errorMsg string) {
	j.Status = JobStatusFailed
	j.UpdatedAt = time.Now()
	j.ErrorMsg = errorMsg
	j.RetryCount++
}

// MarkAsRetrying updates the job status to retrying
func (j *Job) MarkAsRetrying() {
	j.Status = JobStatusRetrying
	j.UpdatedAt = time.Now()
}

// startedAt is when the current attempt began, falling back to the last
// update for jobs written before processing was stamped.
func (j *Job) startedAt() time.Time {
	if j.ProcessedAt != nil && !j.ProcessedAt.IsZero() {
		return *j.ProcessedAt
	}
	if !j.UpdatedAt.IsZero() {
		return j.UpdatedAt
	}
	return j.CreatedAt
}
