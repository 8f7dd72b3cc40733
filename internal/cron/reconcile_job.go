package cron

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/multierr"

	"github.com/angelmondragon/payflow-backend/internal/payments"
	"github.com/angelmondragon/payflow-backend/pkg/db/models"
	"github.com/angelmondragon/payflow-backend/pkg/logger"
	"github.com/angelmondragon/payflow-backend/pkg/metrics"
)

const (
	defaultPendingAge = 15 * time.Minute
	defaultBatchSize  = 100
)

type pendingPaymentReader interface {
	ListPendingBefore(ctx context.Context, cutoff time.Time, limit int) ([]models.Payment, error)
}

type paymentReconciler interface {
	Reconcile(ctx context.Context, paymentID uuid.UUID) (*payments.Result, error)
}

// ReconcileJobParams configure the stale payment sweep.
type ReconcileJobParams struct {
	Logger     *logger.Logger
	Reader     pendingPaymentReader
	Reconciler paymentReconciler
	Metrics    *metrics.ReconcileMetrics
	PendingAge time.Duration
	BatchSize  int
}

// NewReconcileJob builds the job that settles payments stuck in pending by
// replaying the gateway's view of each intent.
func NewReconcileJob(params ReconcileJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Reader == nil {
		return nil, fmt.Errorf("pending payment reader required")
	}
	if params.Reconciler == nil {
		return nil, fmt.Errorf("payment reconciler required")
	}
	pendingAge := params.PendingAge
	if pendingAge <= 0 {
		pendingAge = defaultPendingAge
	}
	batchSize := params.BatchSize
	if batchSize <= 0 {
		batchSize = defaultBatchSize
	}
	return &reconcileJob{
		logg:       params.Logger,
		reader:     params.Reader,
		reconciler: params.Reconciler,
		metrics:    params.Metrics,
		pendingAge: pendingAge,
		batchSize:  batchSize,
		now:        time.Now,
	}, nil
}

type reconcileJob struct {
	logg       *logger.Logger
	reader     pendingPaymentReader
	reconciler paymentReconciler
	metrics    *metrics.ReconcileMetrics
	pendingAge time.Duration
	batchSize  int
	now        func() time.Time
}

func (j *reconcileJob) Name() string { return "stale-payment-reconcile" }

// Run reconciles every payment that has sat pending longer than the
// configured age. One payment failing does not stop the rest of the batch.
func (j *reconcileJob) Run(ctx context.Context) error {
	cutoff := j.now().UTC().Add(-j.pendingAge)
	stale, err := j.reader.ListPendingBefore(ctx, cutoff, j.batchSize)
	if err != nil {
		return fmt.Errorf("listing stale pending payments: %w", err)
	}
	if len(stale) == 0 {
		return nil
	}

	var errs []error
	settled := 0
	for _, payment := range stale {
		paymentCtx := j.logg.WithPaymentID(ctx, payment.ID.String())
		result, err := j.reconciler.Reconcile(paymentCtx, payment.ID)
		if err != nil {
			j.logg.Error(paymentCtx, "reconcile failed", err)
			errs = append(errs, fmt.Errorf("payment %s: %w", payment.ID, err))
			continue
		}
		if result.Transitioned {
			settled++
			j.metrics.IncTransition(string(result.Payment.Status))
		}
	}

	summaryCtx := j.logg.WithFields(ctx, map[string]any{
		"scanned": len(stale),
		"settled": settled,
		"failed":  len(errs),
	})
	j.logg.Info(summaryCtx, "stale payment sweep finished")

	return multierr.Combine(errs...)
}
