package gateway

import (
	"context"
	"testing"

	sq "github.com/square/square-go-sdk"

	"github.com/angelmondragon/payflow-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/payflow-backend/pkg/errors"
	pkgsquare "github.com/angelmondragon/payflow-backend/pkg/square"
)

type stubSquareClient struct {
	createFn   func(params pkgsquare.PaymentCreateParams) (*sq.Payment, error)
	getFn      func(paymentID string) (*sq.Payment, error)
	completeFn func(paymentID string) (*sq.Payment, error)
	cancelFn   func(paymentID string) (*sq.Payment, error)
}

func (s *stubSquareClient) CreatePayment(_ context.Context, params pkgsquare.PaymentCreateParams) (*sq.Payment, error) {
	return s.createFn(params)
}

func (s *stubSquareClient) GetPayment(_ context.Context, paymentID string) (*sq.Payment, error) {
	return s.getFn(paymentID)
}

func (s *stubSquareClient) CompletePayment(_ context.Context, paymentID string) (*sq.Payment, error) {
	return s.completeFn(paymentID)
}

func (s *stubSquareClient) CancelPayment(_ context.Context, paymentID string) (*sq.Payment, error) {
	return s.cancelFn(paymentID)
}

func squarePayment(id, status string, amount int64, currency sq.Currency) *sq.Payment {
	return &sq.Payment{
		ID:     &id,
		Status: &status,
		AmountMoney: &sq.Money{
			Amount:   &amount,
			Currency: &currency,
		},
	}
}

func TestSquareCreateIntentNormalizesApproved(t *testing.T) {
	stub := &stubSquareClient{
		createFn: func(params pkgsquare.PaymentCreateParams) (*sq.Payment, error) {
			if params.Currency != "USD" {
				t.Fatalf("expected upper-case currency, got %q", params.Currency)
			}
			return squarePayment("sqpay_1", "APPROVED", params.AmountCents, sq.CurrencyUsd), nil
		},
	}
	gw := NewSquareGateway(stub)

	intent, err := gw.CreateIntent(context.Background(), CreateIntentParams{
		AmountCents:    1299,
		Currency:       enums.CurrencyUSD,
		IdempotencyKey: "pay-order-1",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if intent.ID != "sqpay_1" {
		t.Fatalf("expected payment id sqpay_1, got %q", intent.ID)
	}
	if intent.Status != enums.PaymentStatusPending {
		t.Fatalf("expected approved payment to normalize to pending, got %q", intent.Status)
	}
	if intent.AmountCents != 1299 {
		t.Fatalf("expected amount 1299, got %d", intent.AmountCents)
	}
	if intent.Currency != enums.CurrencyUSD {
		t.Fatalf("expected usd, got %q", intent.Currency)
	}
}

func TestSquareConfirmIntentCompletesPayment(t *testing.T) {
	stub := &stubSquareClient{
		completeFn: func(paymentID string) (*sq.Payment, error) {
			return squarePayment(paymentID, "COMPLETED", 1299, sq.CurrencyUsd), nil
		},
	}
	gw := NewSquareGateway(stub)

	intent, err := gw.ConfirmIntent(context.Background(), "sqpay_1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if intent.Status != enums.PaymentStatusCompleted {
		t.Fatalf("expected completed, got %q", intent.Status)
	}
}

func TestSquareStatusNormalization(t *testing.T) {
	cases := []struct {
		in   string
		want enums.PaymentStatus
	}{
		{"APPROVED", enums.PaymentStatusPending},
		{"PENDING", enums.PaymentStatusPending},
		{"COMPLETED", enums.PaymentStatusCompleted},
		{"CANCELED", enums.PaymentStatusCancelled},
		{"FAILED", enums.PaymentStatusFailed},
		{"something-new", enums.PaymentStatusFailed},
	}
	for _, tc := range cases {
		if got := normalizeSquareStatus(tc.in); got != tc.want {
			t.Fatalf("status %q: expected %q, got %q", tc.in, tc.want, got)
		}
	}
}

func TestSquareRetrievePropagatesTypedError(t *testing.T) {
	stub := &stubSquareClient{
		getFn: func(paymentID string) (*sq.Payment, error) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "square get payment failed")
		},
	}
	gw := NewSquareGateway(stub)

	_, err := gw.RetrieveIntent(context.Background(), "sqpay_missing")
	if !pkgerrors.HasCode(err, pkgerrors.CodeNotFound) {
		t.Fatalf("expected not found error, got %v", err)
	}
}

func TestSquareCancelIntentVoidsPayment(t *testing.T) {
	stub := &stubSquareClient{
		cancelFn: func(paymentID string) (*sq.Payment, error) {
			return squarePayment(paymentID, "CANCELED", 1299, sq.CurrencyUsd), nil
		},
	}
	gw := NewSquareGateway(stub)

	intent, err := gw.CancelIntent(context.Background(), "sqpay_1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if intent.Status != enums.PaymentStatusCancelled {
		t.Fatalf("expected cancelled, got %q", intent.Status)
	}
}
