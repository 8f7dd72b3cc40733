package gateway

import (
	"context"
	"net/http"
	"testing"

	"github.com/stripe/stripe-go/v84"

	"github.com/angelmondragon/payflow-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/payflow-backend/pkg/errors"
)

type stubStripeClient struct {
	createFn  func(params *stripe.PaymentIntentParams) (*stripe.PaymentIntent, error)
	getFn     func(id string) (*stripe.PaymentIntent, error)
	confirmFn func(id string) (*stripe.PaymentIntent, error)
	cancelFn  func(id string) (*stripe.PaymentIntent, error)
}

func (s *stubStripeClient) Create(_ context.Context, params *stripe.PaymentIntentParams) (*stripe.PaymentIntent, error) {
	return s.createFn(params)
}

func (s *stubStripeClient) Get(_ context.Context, id string, _ *stripe.PaymentIntentParams) (*stripe.PaymentIntent, error) {
	return s.getFn(id)
}

func (s *stubStripeClient) Confirm(_ context.Context, id string, _ *stripe.PaymentIntentConfirmParams) (*stripe.PaymentIntent, error) {
	return s.confirmFn(id)
}

func (s *stubStripeClient) Cancel(_ context.Context, id string, _ *stripe.PaymentIntentCancelParams) (*stripe.PaymentIntent, error) {
	return s.cancelFn(id)
}

func TestStripeCreateIntentNormalizesResponse(t *testing.T) {
	stub := &stubStripeClient{
		createFn: func(params *stripe.PaymentIntentParams) (*stripe.PaymentIntent, error) {
			if params.Amount == nil || *params.Amount != 2500 {
				t.Fatalf("expected amount 2500, got %v", params.Amount)
			}
			return &stripe.PaymentIntent{
				ID:           "pi_123",
				ClientSecret: "pi_123_secret",
				Status:       stripe.PaymentIntentStatusRequiresConfirmation,
				Amount:       2500,
				Currency:     stripe.CurrencyUSD,
			}, nil
		},
	}
	gw := NewStripeGateway(stub)

	intent, err := gw.CreateIntent(context.Background(), CreateIntentParams{
		AmountCents:    2500,
		Currency:       enums.CurrencyUSD,
		IdempotencyKey: "pay-order-1",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if intent.ID != "pi_123" {
		t.Fatalf("expected intent id pi_123, got %q", intent.ID)
	}
	if intent.Status != enums.PaymentStatusPending {
		t.Fatalf("expected pending status, got %q", intent.Status)
	}
	if intent.ClientSecret != "pi_123_secret" {
		t.Fatalf("expected client secret to be carried through")
	}
	if intent.Currency != enums.CurrencyUSD {
		t.Fatalf("expected usd currency, got %q", intent.Currency)
	}
}

func TestStripeStatusNormalization(t *testing.T) {
	cases := []struct {
		in   stripe.PaymentIntentStatus
		want enums.PaymentStatus
	}{
		{stripe.PaymentIntentStatusSucceeded, enums.PaymentStatusCompleted},
		{stripe.PaymentIntentStatusCanceled, enums.PaymentStatusCancelled},
		{stripe.PaymentIntentStatusProcessing, enums.PaymentStatusPending},
		{stripe.PaymentIntentStatusRequiresPaymentMethod, enums.PaymentStatusPending},
		{stripe.PaymentIntentStatusRequiresConfirmation, enums.PaymentStatusPending},
		{stripe.PaymentIntentStatusRequiresAction, enums.PaymentStatusPending},
		{stripe.PaymentIntentStatusRequiresCapture, enums.PaymentStatusPending},
		{stripe.PaymentIntentStatus("unexpected"), enums.PaymentStatusFailed},
	}
	for _, tc := range cases {
		if got := normalizeStripeStatus(tc.in); got != tc.want {
			t.Fatalf("status %q: expected %q, got %q", tc.in, tc.want, got)
		}
	}
}

func TestStripeRetrieveCarriesLastPaymentError(t *testing.T) {
	stub := &stubStripeClient{
		getFn: func(id string) (*stripe.PaymentIntent, error) {
			return &stripe.PaymentIntent{
				ID:     id,
				Status: stripe.PaymentIntentStatus("unexpected_terminal"),
				LastPaymentError: &stripe.Error{
					Code: stripe.ErrorCodeCardDeclined,
					Msg:  "Your card has insufficient funds.",
				},
			}, nil
		},
	}
	gw := NewStripeGateway(stub)

	intent, err := gw.RetrieveIntent(context.Background(), "pi_123")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if intent.Status != enums.PaymentStatusFailed {
		t.Fatalf("expected failed status, got %q", intent.Status)
	}
	if intent.FailureReason != "Your card has insufficient funds." {
		t.Fatalf("expected failure reason carried through, got %q", intent.FailureReason)
	}
}

func TestStripeRetrieveMapsNotFound(t *testing.T) {
	stub := &stubStripeClient{
		getFn: func(id string) (*stripe.PaymentIntent, error) {
			return nil, &stripe.Error{
				HTTPStatusCode: http.StatusNotFound,
				Code:           stripe.ErrorCodeResourceMissing,
				Msg:            "No such payment_intent",
			}
		},
	}
	gw := NewStripeGateway(stub)

	_, err := gw.RetrieveIntent(context.Background(), "pi_missing")
	if !pkgerrors.HasCode(err, pkgerrors.CodeNotFound) {
		t.Fatalf("expected not found error, got %v", err)
	}
}

func TestStripeConfirmMapsCardDecline(t *testing.T) {
	stub := &stubStripeClient{
		confirmFn: func(id string) (*stripe.PaymentIntent, error) {
			return nil, &stripe.Error{
				HTTPStatusCode: http.StatusPaymentRequired,
				Code:           stripe.ErrorCodeCardDeclined,
				Msg:            "Your card was declined.",
			}
		},
	}
	gw := NewStripeGateway(stub)

	_, err := gw.ConfirmIntent(context.Background(), "pi_123")
	if !pkgerrors.HasCode(err, pkgerrors.CodeGateway) {
		t.Fatalf("expected gateway error, got %v", err)
	}
}

func TestStripeCancelMapsNetworkFailure(t *testing.T) {
	stub := &stubStripeClient{
		cancelFn: func(id string) (*stripe.PaymentIntent, error) {
			return nil, context.DeadlineExceeded
		},
	}
	gw := NewStripeGateway(stub)

	_, err := gw.CancelIntent(context.Background(), "pi_123")
	if !pkgerrors.HasCode(err, pkgerrors.CodeDependency) {
		t.Fatalf("expected dependency error, got %v", err)
	}
}
