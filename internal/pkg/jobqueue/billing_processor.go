package jobqueue

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gofiber/fiber/v2/log"

	"github.com/mywallet/mywallet/internal/pkg/metrics/counter"
	"github.com/mywallet/mywallet/internal/pkg/recurring"
)

// WebhookProcessor reconciles a journaled gateway webhook. It records its own
// outcome on the journal entry.
type WebhookProcessor interface {
	Process(ctx context.Context, webhookEventID uint, eventType, resourceID string)
}

// ChargeGenerator books pending ledger entries for due subscriptions.
type ChargeGenerator interface {
	GeneratePendingCharges(ctx context.Context, owner recurring.Owner) (recurring.GenerateResult, error)
	GenerateAllPendingCharges(ctx context.Context) (recurring.GenerateResult, error)
}

// PayloadArchiver stores raw webhook bodies.
type PayloadArchiver interface {
	Archive(ctx context.Context, provider, eventID string, receivedAt time.Time, payload []byte) (string, error)
}

// NewGatewayWebhookHandler returns the handler for gateway_webhook jobs.
func NewGatewayWebhookHandler(p WebhookProcessor) HandlerFunc {
	return func(ctx context.Context, job *Job) error {
		payload, err := GatewayWebhookJobPayloadFromMap(job.Payload)
		if err != nil {
			return fmt.Errorf("failed to parse gateway webhook job payload: %w", err)
		}
		if payload.WebhookEventID == 0 {
			return errors.New("gateway webhook job without webhook_event_id")
		}
		log.Infof("[Webhook] Processing event %d (%s %s)", payload.WebhookEventID, payload.EventType, payload.ResourceID)
		p.Process(ctx, payload.WebhookEventID, payload.EventType, payload.ResourceID)
		return nil
	}
}

// NewPendingChargesHandler returns the handler for pending_charges jobs.
func NewPendingChargesHandler(g ChargeGenerator) HandlerFunc {
	return func(ctx context.Context, job *Job) error {
		payload, err := PendingChargesJobPayloadFromMap(job.Payload)
		if err != nil {
			return fmt.Errorf("failed to parse pending charges job payload: %w", err)
		}
		_, err = RunPendingCharges(ctx, g, payload)
		return err
	}
}

// RunPendingCharges executes one generation run and records its counters.
func RunPendingCharges(ctx context.Context, g ChargeGenerator, payload *PendingChargesJobPayload) (recurring.GenerateResult, error) {
	var (
		res recurring.GenerateResult
		err error
	)
	if payload.UserID != "" {
		res, err = g.GeneratePendingCharges(ctx, recurring.Owner{UserID: payload.UserID, ProfileID: payload.ProfileID})
	} else {
		res, err = g.GenerateAllPendingCharges(ctx)
	}
	if err != nil {
		return res, err
	}

	log.Infof("[PendingCharges] Run (%s) created=%d skipped=%d failed=%d",
		payload.Trigger, res.Created, res.Skipped, res.Failed)
	if cerr := counter.AddChargeResults(res.Created, res.Skipped, res.Failed); cerr != nil {
		log.Debugf("[PendingCharges] Could not record counters: %v", cerr)
	}
	return res, nil
}

// NewArchivePayloadHandler returns the handler for archive_payload jobs.
func NewArchivePayloadHandler(a PayloadArchiver) HandlerFunc {
	return func(ctx context.Context, job *Job) error {
		payload, err := ArchivePayloadJobPayloadFromMap(job.Payload)
		if err != nil {
			return fmt.Errorf("failed to parse archive job payload: %w", err)
		}
		key, err := a.Archive(ctx, payload.Provider, payload.EventID, payload.ReceivedAt, []byte(payload.Body))
		if err != nil {
			return err
		}
		log.Infof("[Archive] Archived webhook %s/%s as %s", payload.Provider, payload.EventID, key)
		return nil
	}
}
