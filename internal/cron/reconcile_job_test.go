package cron

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/payflow-backend/internal/payments"
	"github.com/angelmondragon/payflow-backend/pkg/db/models"
	"github.com/angelmondragon/payflow-backend/pkg/enums"
	"github.com/angelmondragon/payflow-backend/pkg/logger"
)

type stubReader struct {
	payments []models.Payment
	err      error
	cutoff   time.Time
	limit    int
}

func (r *stubReader) ListPendingBefore(_ context.Context, cutoff time.Time, limit int) ([]models.Payment, error) {
	r.cutoff = cutoff
	r.limit = limit
	return r.payments, r.err
}

type stubReconciler struct {
	results map[uuid.UUID]*payments.Result
	errs    map[uuid.UUID]error
	calls   []uuid.UUID
}

func (r *stubReconciler) Reconcile(_ context.Context, paymentID uuid.UUID) (*payments.Result, error) {
	r.calls = append(r.calls, paymentID)
	if err, ok := r.errs[paymentID]; ok {
		return nil, err
	}
	return r.results[paymentID], nil
}

func pendingPayment() models.Payment {
	return models.Payment{
		ID:        uuid.New(),
		Status:    enums.PaymentStatusPending,
		CreatedAt: time.Now().UTC().Add(-time.Hour),
	}
}

func newReconcileJob(t *testing.T, reader *stubReader, reconciler *stubReconciler) Job {
	t.Helper()
	job, err := NewReconcileJob(ReconcileJobParams{
		Logger:     logger.New(logger.Options{ServiceName: "cron-test"}),
		Reader:     reader,
		Reconciler: reconciler,
		PendingAge: 15 * time.Minute,
		BatchSize:  50,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	return job
}

func TestReconcileJobSettlesStalePayments(t *testing.T) {
	first := pendingPayment()
	second := pendingPayment()
	reader := &stubReader{payments: []models.Payment{first, second}}
	reconciler := &stubReconciler{
		results: map[uuid.UUID]*payments.Result{
			first.ID: {
				Payment:      &models.Payment{ID: first.ID, Status: enums.PaymentStatusCompleted},
				Transitioned: true,
			},
			second.ID: {
				Payment: &models.Payment{ID: second.ID, Status: enums.PaymentStatusPending},
			},
		},
	}
	job := newReconcileJob(t, reader, reconciler)

	if err := job.Run(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(reconciler.calls) != 2 {
		t.Fatalf("expected both payments reconciled, got %d calls", len(reconciler.calls))
	}
	if reader.limit != 50 {
		t.Fatalf("expected batch size 50, got %d", reader.limit)
	}
	if time.Since(reader.cutoff) < 15*time.Minute {
		t.Fatalf("expected cutoff at least the pending age in the past, got %v", reader.cutoff)
	}
}

func TestReconcileJobContinuesPastFailures(t *testing.T) {
	broken := pendingPayment()
	healthy := pendingPayment()
	reader := &stubReader{payments: []models.Payment{broken, healthy}}
	reconciler := &stubReconciler{
		results: map[uuid.UUID]*payments.Result{
			healthy.ID: {
				Payment:      &models.Payment{ID: healthy.ID, Status: enums.PaymentStatusCancelled},
				Transitioned: true,
			},
		},
		errs: map[uuid.UUID]error{
			broken.ID: errors.New("gateway unreachable"),
		},
	}
	job := newReconcileJob(t, reader, reconciler)

	err := job.Run(context.Background())
	if err == nil {
		t.Fatal("expected aggregated error")
	}
	if len(reconciler.calls) != 2 {
		t.Fatalf("expected the sweep to continue past the failure, got %d calls", len(reconciler.calls))
	}
}

func TestReconcileJobNoStalePayments(t *testing.T) {
	reconciler := &stubReconciler{}
	job := newReconcileJob(t, &stubReader{}, reconciler)

	if err := job.Run(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(reconciler.calls) != 0 {
		t.Fatal("expected no reconcile calls")
	}
}

func TestReconcileJobPropagatesReaderFailure(t *testing.T) {
	reader := &stubReader{err: errors.New("db down")}
	job := newReconcileJob(t, reader, &stubReconciler{})

	if err := job.Run(context.Background()); err == nil {
		t.Fatal("expected error from reader")
	}
}
