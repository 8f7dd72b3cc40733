package payments

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/multierr"
	"gorm.io/gorm"

	"github.com/angelmondragon/payflow-backend/internal/gateway"
	pkgdb "github.com/angelmondragon/payflow-backend/pkg/db"
	"github.com/angelmondragon/payflow-backend/pkg/db/models"
	"github.com/angelmondragon/payflow-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/payflow-backend/pkg/errors"
	"github.com/angelmondragon/payflow-backend/pkg/logger"
	"github.com/angelmondragon/payflow-backend/pkg/pagination"
)

// eventPublisher is the outbound event seam; *events.Publisher satisfies it.
type eventPublisher interface {
	Publish(ctx context.Context, eventType enums.PaymentEventType, payload map[string]any) error
}

// ServiceParams wires the payment lifecycle service.
type ServiceParams struct {
	Logger    *logger.Logger
	Repo      Repository
	Gateway   gateway.Gateway
	Publisher eventPublisher
}

// Service orchestrates the payment lifecycle across the ledger, the payment
// gateway, and the event stream. The ledger's conditional status update is
// the only synchronization: no locks are taken around gateway calls.
type Service struct {
	logg      *logger.Logger
	repo      Repository
	gateway   gateway.Gateway
	publisher eventPublisher
}

// NewService validates dependencies and builds the lifecycle service.
func NewService(params ServiceParams) (*Service, error) {
	if params.Logger == nil {
		return nil, errors.New("logger is required")
	}
	if params.Repo == nil {
		return nil, errors.New("payment repository is required")
	}
	if params.Gateway == nil {
		return nil, errors.New("payment gateway is required")
	}
	if params.Publisher == nil {
		return nil, errors.New("event publisher is required")
	}
	return &Service{
		logg:      params.Logger,
		repo:      params.Repo,
		gateway:   params.Gateway,
		publisher: params.Publisher,
	}, nil
}

// Create opens a gateway intent and records the pending payment. If the
// ledger write fails after the intent exists, the intent is cancelled; when
// that compensating cancel also fails the caller gets a reconciliation-
// required error because the two systems may have diverged.
func (s *Service) Create(ctx context.Context, input CreateInput) (*Result, error) {
	currency, err := input.validateInput()
	if err != nil {
		return nil, err
	}

	ctx = s.logg.WithOrderID(ctx, input.OrderID.String())
	ctx = s.logg.WithUserID(ctx, input.UserID.String())

	attempts, err := s.repo.CountByOrder(ctx, input.OrderID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "counting payment attempts")
	}
	idempotencyKey := fmt.Sprintf("pay-%s-%d", input.OrderID, attempts+1)

	intent, err := s.gateway.CreateIntent(ctx, gateway.CreateIntentParams{
		AmountCents:    input.AmountCents,
		Currency:       currency,
		SourceID:       input.SourceID,
		ReferenceID:    input.OrderID.String(),
		IdempotencyKey: idempotencyKey,
		Metadata:       input.Metadata,
	})
	if err != nil {
		return nil, err
	}

	ctx = s.logg.WithGatewayIntentID(ctx, intent.ID)

	payment := &models.Payment{
		OrderID:         input.OrderID,
		UserID:          input.UserID,
		AmountCents:     input.AmountCents,
		Currency:        currency,
		Status:          enums.PaymentStatusPending,
		GatewayIntentID: intent.ID,
	}
	if err := s.repo.Insert(ctx, payment); err != nil {
		return nil, s.compensateCreate(ctx, intent.ID, err)
	}

	ctx = s.logg.WithPaymentID(ctx, payment.ID.String())
	s.publishTransition(ctx, payment, enums.EventPaymentCreated)
	s.logg.Info(ctx, "payment created")

	return &Result{
		Payment:       payment,
		GatewayStatus: intent.Status,
		ClientSecret:  intent.ClientSecret,
		Transitioned:  true,
	}, nil
}

// compensateCreate voids the orphaned gateway intent after a failed ledger
// insert. Both failing together means the systems may have diverged.
func (s *Service) compensateCreate(ctx context.Context, intentID string, insertErr error) error {
	s.logg.Error(ctx, "payment insert failed; cancelling gateway intent", insertErr)

	if _, cancelErr := s.gateway.CancelIntent(ctx, intentID); cancelErr != nil {
		s.logg.Error(ctx, "compensating cancel failed", cancelErr)
		return pkgerrors.Wrap(
			pkgerrors.CodeReconciliationRequired,
			multierr.Combine(insertErr, cancelErr),
			"payment record not persisted and gateway intent not cancelled",
		).WithDetails(map[string]any{"gateway_intent_id": intentID})
	}

	if pkgdb.IsUniqueViolation(insertErr, "ux_payments_gateway_intent_id") {
		return pkgerrors.Wrap(pkgerrors.CodeConflict, insertErr, "payment already exists for gateway intent")
	}
	return pkgerrors.Wrap(pkgerrors.CodeInternal, insertErr, "persisting payment record")
}

// Confirm captures the payment at the gateway and settles the ledger row to
// whatever terminal status the gateway reports. A rejected capture mutates
// nothing; a confirm on an already-settled payment is a no-op returning the
// record as is.
func (s *Service) Confirm(ctx context.Context, input ConfirmInput) (*Result, error) {
	if err := input.validateInput(); err != nil {
		return nil, err
	}

	payment, err := s.findPayment(ctx, input.PaymentID)
	if err != nil {
		return nil, err
	}

	ctx = s.paymentCtx(ctx, payment)

	if payment.GatewayIntentID != input.GatewayIntentID {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "gateway intent does not belong to payment")
	}

	if payment.Status.IsTerminal() {
		return &Result{Payment: payment, GatewayStatus: payment.Status}, nil
	}

	intent, err := s.gateway.ConfirmIntent(ctx, payment.GatewayIntentID)
	if err != nil {
		// A rejected confirm leaves the intent open at the gateway (a
		// declined Stripe intent goes back to requires_payment_method and
		// stays capturable), so the ledger row stays pending and the error
		// is returned as-is. Only a gateway-reported terminal status moves
		// the row.
		return nil, err
	}

	if !intent.Status.IsTerminal() {
		s.logg.Info(ctx, "gateway confirm left intent pending")
		return &Result{Payment: payment, GatewayStatus: intent.Status}, nil
	}
	return s.settle(ctx, payment, intent)
}

// Reconcile re-reads the gateway's view of a payment and settles the ledger
// row if the gateway reached a terminal state. Safe to call repeatedly; a
// payment that already settled is a no-op.
func (s *Service) Reconcile(ctx context.Context, paymentID uuid.UUID) (*Result, error) {
	payment, err := s.findPayment(ctx, paymentID)
	if err != nil {
		return nil, err
	}

	ctx = s.paymentCtx(ctx, payment)

	if payment.Status.IsTerminal() {
		return &Result{Payment: payment, GatewayStatus: payment.Status}, nil
	}

	intent, err := s.gateway.RetrieveIntent(ctx, payment.GatewayIntentID)
	if err != nil {
		return nil, err
	}

	if !intent.Status.IsTerminal() {
		s.logg.Info(ctx, "gateway intent still pending; nothing to reconcile")
		return &Result{Payment: payment, GatewayStatus: intent.Status}, nil
	}

	return s.settle(ctx, payment, intent)
}

// Cancel voids the payment, gateway first: the ledger row is only moved to
// cancelled once the gateway acknowledged the void, so a crash in between
// leaves a pending row the reconciler can settle rather than a cancelled row
// hiding a live intent.
func (s *Service) Cancel(ctx context.Context, paymentID uuid.UUID) (*Result, error) {
	payment, err := s.findPayment(ctx, paymentID)
	if err != nil {
		return nil, err
	}

	ctx = s.paymentCtx(ctx, payment)

	switch payment.Status {
	case enums.PaymentStatusCompleted:
		return nil, pkgerrors.New(pkgerrors.CodeConflict, "completed payment cannot be cancelled")
	case enums.PaymentStatusCancelled, enums.PaymentStatusFailed:
		return &Result{Payment: payment, GatewayStatus: payment.Status}, nil
	}

	intent, err := s.gateway.CancelIntent(ctx, payment.GatewayIntentID)
	if err != nil {
		return nil, err
	}
	if intent.Status == enums.PaymentStatusCompleted {
		return nil, pkgerrors.New(pkgerrors.CodeConflict, "gateway already captured the payment")
	}

	return s.settle(ctx, payment, &gateway.Intent{ID: intent.ID, Status: enums.PaymentStatusCancelled})
}

// Get returns a single payment.
func (s *Service) Get(ctx context.Context, paymentID uuid.UUID) (*models.Payment, error) {
	return s.findPayment(ctx, paymentID)
}

// ListByUser returns a user's payments, newest first.
func (s *Service) ListByUser(ctx context.Context, userID uuid.UUID) ([]models.Payment, error) {
	records, err := s.repo.ListByUser(ctx, userID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "listing payments by user")
	}
	return records, nil
}

// ListByOrder returns an order's payment attempts, oldest first.
func (s *Service) ListByOrder(ctx context.Context, orderID uuid.UUID) ([]models.Payment, error) {
	records, err := s.repo.ListByOrder(ctx, orderID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "listing payments by order")
	}
	return records, nil
}

// ListPage returns a page of payments, optionally filtered by status.
func (s *Service) ListPage(ctx context.Context, params pagination.Params, status *enums.PaymentStatus) ([]models.Payment, int64, error) {
	records, total, err := s.repo.ListPage(ctx, params, status)
	if err != nil {
		return nil, 0, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "listing payments")
	}
	return records, total, nil
}

// settle applies the gateway-reported terminal status and publishes the
// matching event exactly once: only the caller whose conditional update was
// applied emits. A caller that loses the conditional write gets the record
// as the winner left it, with no event and no error.
func (s *Service) settle(ctx context.Context, payment *models.Payment, intent *gateway.Intent) (*Result, error) {
	update := StatusUpdate{}
	if intent.Status == enums.PaymentStatusFailed && intent.FailureReason != "" {
		update.FailureReason = &intent.FailureReason
	}

	updated, applied, err := s.transition(ctx, payment, intent.Status, update)
	if err != nil {
		return nil, err
	}

	if !applied {
		return &Result{Payment: updated, GatewayStatus: intent.Status}, nil
	}

	if eventType, ok := enums.EventForStatus(intent.Status); ok {
		s.publishTransition(ctx, updated, eventType)
	}
	s.logg.Info(s.logg.WithField(ctx, "status", string(intent.Status)), "payment settled")

	return &Result{Payment: updated, GatewayStatus: intent.Status, Transitioned: true}, nil
}

func (s *Service) transition(ctx context.Context, payment *models.Payment, target enums.PaymentStatus, update StatusUpdate) (*models.Payment, bool, error) {
	updated, applied, err := s.repo.UpdateStatusConditional(ctx, payment.ID, target, update)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, false, pkgerrors.Wrap(pkgerrors.CodeNotFound, err, "payment not found")
		}
		return nil, false, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "updating payment status")
	}
	return updated, applied, nil
}

// publishTransition emits the lifecycle event and never fails the caller.
// A lost event is recoverable downstream; a rolled-back payment is not.
func (s *Service) publishTransition(ctx context.Context, payment *models.Payment, eventType enums.PaymentEventType) {
	payload := map[string]any{
		"payment_id":        payment.ID.String(),
		"order_id":          payment.OrderID.String(),
		"user_id":           payment.UserID.String(),
		"amount":            payment.AmountCents,
		"currency":          string(payment.Currency),
		"status":            string(payment.Status),
		"gateway_intent_id": payment.GatewayIntentID,
	}
	if payment.FailureReason != nil {
		payload["failure_reason"] = *payment.FailureReason
	}
	if err := s.publisher.Publish(ctx, eventType, payload); err != nil {
		s.logg.Error(s.logg.WithField(ctx, "event_type", string(eventType)), "publishing payment event failed", err)
	}
}

func (s *Service) findPayment(ctx context.Context, paymentID uuid.UUID) (*models.Payment, error) {
	payment, err := s.repo.FindByID(ctx, paymentID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.Wrap(pkgerrors.CodeNotFound, err, "payment not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "loading payment")
	}
	return payment, nil
}

func (s *Service) paymentCtx(ctx context.Context, payment *models.Payment) context.Context {
	ctx = s.logg.WithPaymentID(ctx, payment.ID.String())
	return s.logg.WithGatewayIntentID(ctx, payment.GatewayIntentID)
}
