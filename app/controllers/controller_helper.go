package controllers

import (
	"errors"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/log"

	"github.com/mywallet/mywallet/internal/pkg/billing"
	"github.com/mywallet/mywallet/internal/pkg/ledger"
	"github.com/mywallet/mywallet/internal/pkg/recurring"
)

// Error codes returned in the "error" field of JSON error bodies
const (
	codeValidation         = "validation_error"
	codeNotFound           = "not_found"
	codeConflict           = "conflict"
	codeGatewayError       = "gateway_error"
	codeGatewayUnavailable = "gateway_unavailable"
	codeInternal           = "internal_server_error"
	codeInvalidPayload     = "invalid_payload"
	codeInvalidSignature   = "invalid_signature"
)

func jsonError(c *fiber.Ctx, status int, code, message string) error {
	return c.Status(status).JSON(fiber.Map{
		"error":   code,
		"message": message,
	})
}

// respondError maps service errors to HTTP responses.
func respondError(c *fiber.Ctx, err error) error {
	var (
		billingValidation   *billing.ValidationError
		recurringValidation *recurring.ValidationError
		gatewayErr          *billing.GatewayError
	)

	switch {
	case errors.As(err, &billingValidation):
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error":   codeValidation,
			"field":   billingValidation.Field,
			"message": billingValidation.Message,
		})
	case errors.As(err, &recurringValidation):
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error":   codeValidation,
			"field":   recurringValidation.Field,
			"message": recurringValidation.Message,
		})
	case errors.Is(err, recurring.ErrInvalidFrequency),
		errors.Is(err, ledger.ErrInvalidAmount),
		errors.Is(err, billing.ErrInvalidReference):
		return jsonError(c, fiber.StatusBadRequest, codeValidation, err.Error())

	case errors.Is(err, billing.ErrNotFound),
		errors.Is(err, recurring.ErrSubscriptionNotFound),
		errors.Is(err, recurring.ErrCardNotFound),
		errors.Is(err, recurring.ErrBankAccountNotFound),
		errors.Is(err, ledger.ErrAccountNotFound),
		errors.Is(err, ledger.ErrCardNotFound):
		return jsonError(c, fiber.StatusNotFound, codeNotFound, err.Error())

	case errors.Is(err, recurring.ErrSubscriptionCancelled),
		errors.Is(err, recurring.ErrAlreadyPaid),
		errors.Is(err, billing.ErrIdempotencyConflict):
		return jsonError(c, fiber.StatusConflict, codeConflict, err.Error())

	case errors.As(err, &gatewayErr):
		if gatewayErr.NotFound() {
			return jsonError(c, fiber.StatusNotFound, codeNotFound, gatewayErr.Message)
		}
		return jsonError(c, fiber.StatusBadGateway, codeGatewayError, gatewayErr.Message)
	case errors.Is(err, billing.ErrGatewayUnavailable),
		errors.Is(err, billing.ErrNotConfigured):
		return jsonError(c, fiber.StatusServiceUnavailable, codeGatewayUnavailable, err.Error())
	}

	log.Errorf("[API] %s %s failed: %v", c.Method(), c.Path(), err)
	return jsonError(c, fiber.StatusInternalServerError, codeInternal, "unexpected error")
}

// bodyError answers a request whose JSON body could not be decoded.
func bodyError(c *fiber.Ctx, err error) error {
	return jsonError(c, fiber.StatusBadRequest, codeInvalidPayload, "invalid JSON body: "+err.Error())
}

func firstHeaderValue(c *fiber.Ctx, keys ...string) string {
	for _, k := range keys {
		v := strings.TrimSpace(c.Get(k))
		if v != "" {
			return v
		}
	}
	return ""
}
