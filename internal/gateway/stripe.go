package gateway

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/stripe/stripe-go/v84"
	"github.com/stripe/stripe-go/v84/paymentintent"

	"github.com/angelmondragon/payflow-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/payflow-backend/pkg/errors"
	pkgstripe "github.com/angelmondragon/payflow-backend/pkg/stripe"
)

// StripePaymentIntentClient exposes the subset of Stripe operations the
// gateway adapter requires, so the adapter can be tested without the SDK.
type StripePaymentIntentClient interface {
	Create(ctx context.Context, params *stripe.PaymentIntentParams) (*stripe.PaymentIntent, error)
	Get(ctx context.Context, id string, params *stripe.PaymentIntentParams) (*stripe.PaymentIntent, error)
	Confirm(ctx context.Context, id string, params *stripe.PaymentIntentConfirmParams) (*stripe.PaymentIntent, error)
	Cancel(ctx context.Context, id string, params *stripe.PaymentIntentCancelParams) (*stripe.PaymentIntent, error)
}

type stripeClientWrapper struct{}

// NewStripePaymentIntentClient wraps the initialized Stripe client so the
// gateway adapter can be exercised with a stub in tests.
func NewStripePaymentIntentClient(api *pkgstripe.Client) StripePaymentIntentClient {
	if api == nil {
		return nil
	}
	return &stripeClientWrapper{}
}

func (w *stripeClientWrapper) Create(ctx context.Context, params *stripe.PaymentIntentParams) (*stripe.PaymentIntent, error) {
	if params != nil {
		params.Context = ctx
	}
	return paymentintent.New(params)
}

func (w *stripeClientWrapper) Get(ctx context.Context, id string, params *stripe.PaymentIntentParams) (*stripe.PaymentIntent, error) {
	if params == nil {
		params = &stripe.PaymentIntentParams{}
	}
	params.Context = ctx
	return paymentintent.Get(id, params)
}

func (w *stripeClientWrapper) Confirm(ctx context.Context, id string, params *stripe.PaymentIntentConfirmParams) (*stripe.PaymentIntent, error) {
	if params == nil {
		params = &stripe.PaymentIntentConfirmParams{}
	}
	params.Context = ctx
	return paymentintent.Confirm(id, params)
}

func (w *stripeClientWrapper) Cancel(ctx context.Context, id string, params *stripe.PaymentIntentCancelParams) (*stripe.PaymentIntent, error) {
	if params == nil {
		params = &stripe.PaymentIntentCancelParams{}
	}
	params.Context = ctx
	return paymentintent.Cancel(id, params)
}

// StripeGateway adapts Stripe PaymentIntents onto the Gateway port.
type StripeGateway struct {
	client StripePaymentIntentClient
}

// NewStripeGateway builds the Stripe adapter on top of the intent client.
func NewStripeGateway(client StripePaymentIntentClient) *StripeGateway {
	return &StripeGateway{client: client}
}

// CreateIntent opens a manual-confirmation PaymentIntent for the given amount.
func (g *StripeGateway) CreateIntent(ctx context.Context, params CreateIntentParams) (*Intent, error) {
	req := &stripe.PaymentIntentParams{
		Amount:   stripe.Int64(params.AmountCents),
		Currency: stripe.String(string(params.Currency)),
	}
	if key := strings.TrimSpace(params.IdempotencyKey); key != "" {
		req.SetIdempotencyKey(key)
	}
	if src := strings.TrimSpace(params.SourceID); src != "" {
		req.PaymentMethod = stripe.String(src)
	}
	for k, v := range params.Metadata {
		req.AddMetadata(k, v)
	}
	if ref := strings.TrimSpace(params.ReferenceID); ref != "" {
		req.AddMetadata("reference_id", ref)
	}

	pi, err := g.client.Create(ctx, req)
	if err != nil {
		return nil, mapStripeError(err, "create payment intent")
	}
	return stripeIntent(pi), nil
}

// RetrieveIntent fetches the current provider-side state of an intent.
func (g *StripeGateway) RetrieveIntent(ctx context.Context, intentID string) (*Intent, error) {
	pi, err := g.client.Get(ctx, intentID, nil)
	if err != nil {
		return nil, mapStripeError(err, "retrieve payment intent")
	}
	return stripeIntent(pi), nil
}

// ConfirmIntent asks Stripe to capture the intent.
func (g *StripeGateway) ConfirmIntent(ctx context.Context, intentID string) (*Intent, error) {
	pi, err := g.client.Confirm(ctx, intentID, nil)
	if err != nil {
		return nil, mapStripeError(err, "confirm payment intent")
	}
	return stripeIntent(pi), nil
}

// CancelIntent voids the intent before capture.
func (g *StripeGateway) CancelIntent(ctx context.Context, intentID string) (*Intent, error) {
	pi, err := g.client.Cancel(ctx, intentID, nil)
	if err != nil {
		return nil, mapStripeError(err, "cancel payment intent")
	}
	return stripeIntent(pi), nil
}

func stripeIntent(pi *stripe.PaymentIntent) *Intent {
	if pi == nil {
		return nil
	}
	intent := &Intent{
		ID:           pi.ID,
		ClientSecret: pi.ClientSecret,
		Status:       normalizeStripeStatus(pi.Status),
		AmountCents:  pi.Amount,
		Currency:     enums.Currency(strings.ToLower(string(pi.Currency))),
	}
	if pi.PaymentMethod != nil {
		intent.PaymentMethod = pi.PaymentMethod.ID
	}
	if intent.Status == enums.PaymentStatusFailed && pi.LastPaymentError != nil {
		intent.FailureReason = pi.LastPaymentError.Msg
	}
	return intent
}

func normalizeStripeStatus(status stripe.PaymentIntentStatus) enums.PaymentStatus {
	switch status {
	case stripe.PaymentIntentStatusSucceeded:
		return enums.PaymentStatusCompleted
	case stripe.PaymentIntentStatusCanceled:
		return enums.PaymentStatusCancelled
	case stripe.PaymentIntentStatusProcessing,
		stripe.PaymentIntentStatusRequiresPaymentMethod,
		stripe.PaymentIntentStatusRequiresConfirmation,
		stripe.PaymentIntentStatusRequiresAction,
		stripe.PaymentIntentStatusRequiresCapture:
		return enums.PaymentStatusPending
	default:
		return enums.PaymentStatusFailed
	}
}

func mapStripeError(err error, op string) error {
	if err == nil {
		return nil
	}
	var stripeErr *stripe.Error
	if errors.As(err, &stripeErr) {
		code := pkgerrors.CodeGateway
		switch {
		case stripeErr.HTTPStatusCode == http.StatusNotFound:
			code = pkgerrors.CodeNotFound
		case stripeErr.HTTPStatusCode == http.StatusConflict:
			code = pkgerrors.CodeConflict
		case stripeErr.Code == stripe.ErrorCodeIdempotencyKeyInUse:
			code = pkgerrors.CodeIdempotency
		case stripeErr.HTTPStatusCode >= 500:
			code = pkgerrors.CodeDependency
		}
		return pkgerrors.Wrap(code, err, fmt.Sprintf("stripe %s failed", op))
	}
	return pkgerrors.Wrap(pkgerrors.CodeDependency, err, fmt.Sprintf("stripe %s failed", op))
}
