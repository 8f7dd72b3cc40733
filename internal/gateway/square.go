package gateway

import (
	"context"
	"strings"

	sq "github.com/square/square-go-sdk"

	"github.com/angelmondragon/payflow-backend/pkg/enums"
	pkgsquare "github.com/angelmondragon/payflow-backend/pkg/square"
)

// SquarePaymentsClient is the subset of the Square wrapper the adapter needs.
type SquarePaymentsClient interface {
	CreatePayment(ctx context.Context, params pkgsquare.PaymentCreateParams) (*sq.Payment, error)
	GetPayment(ctx context.Context, paymentID string) (*sq.Payment, error)
	CompletePayment(ctx context.Context, paymentID string) (*sq.Payment, error)
	CancelPayment(ctx context.Context, paymentID string) (*sq.Payment, error)
}

// SquareGateway adapts Square delayed-capture payments onto the Gateway port.
// A created payment stays APPROVED until ConfirmIntent captures it, which maps
// cleanly onto the pending -> completed lifecycle.
type SquareGateway struct {
	client SquarePaymentsClient
}

// NewSquareGateway builds the Square adapter.
func NewSquareGateway(client SquarePaymentsClient) *SquareGateway {
	return &SquareGateway{client: client}
}

// CreateIntent opens a delayed-capture payment.
func (g *SquareGateway) CreateIntent(ctx context.Context, params CreateIntentParams) (*Intent, error) {
	payment, err := g.client.CreatePayment(ctx, pkgsquare.PaymentCreateParams{
		AmountCents:    params.AmountCents,
		Currency:       strings.ToUpper(string(params.Currency)),
		SourceID:       params.SourceID,
		ReferenceID:    params.ReferenceID,
		IdempotencyKey: params.IdempotencyKey,
	})
	if err != nil {
		return nil, err
	}
	return squareIntent(payment), nil
}

// RetrieveIntent fetches the current provider-side state of a payment.
func (g *SquareGateway) RetrieveIntent(ctx context.Context, intentID string) (*Intent, error) {
	payment, err := g.client.GetPayment(ctx, intentID)
	if err != nil {
		return nil, err
	}
	return squareIntent(payment), nil
}

// ConfirmIntent captures an approved delayed-capture payment.
func (g *SquareGateway) ConfirmIntent(ctx context.Context, intentID string) (*Intent, error) {
	payment, err := g.client.CompletePayment(ctx, intentID)
	if err != nil {
		return nil, err
	}
	return squareIntent(payment), nil
}

// CancelIntent voids an approved payment before capture.
func (g *SquareGateway) CancelIntent(ctx context.Context, intentID string) (*Intent, error) {
	payment, err := g.client.CancelPayment(ctx, intentID)
	if err != nil {
		return nil, err
	}
	return squareIntent(payment), nil
}

func squareIntent(payment *sq.Payment) *Intent {
	if payment == nil {
		return nil
	}
	intent := &Intent{
		ID:     deref(payment.GetID()),
		Status: normalizeSquareStatus(deref(payment.GetStatus())),
	}
	if money := payment.GetAmountMoney(); money != nil {
		if money.Amount != nil {
			intent.AmountCents = *money.Amount
		}
		if money.Currency != nil {
			intent.Currency = enums.Currency(strings.ToLower(string(*money.Currency)))
		}
	}
	intent.PaymentMethod = deref(payment.GetSourceType())
	return intent
}

func normalizeSquareStatus(status string) enums.PaymentStatus {
	switch strings.ToUpper(strings.TrimSpace(status)) {
	case "APPROVED", "PENDING":
		return enums.PaymentStatusPending
	case "COMPLETED":
		return enums.PaymentStatusCompleted
	case "CANCELED":
		return enums.PaymentStatusCancelled
	default:
		return enums.PaymentStatusFailed
	}
}

func deref(ptr *string) string {
	if ptr == nil {
		return ""
	}
	return *ptr
}
