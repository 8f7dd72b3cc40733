package payments

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/payflow-backend/pkg/db/models"
	"github.com/angelmondragon/payflow-backend/pkg/enums"
	"github.com/angelmondragon/payflow-backend/pkg/pagination"
)

// StatusUpdate carries the optional columns written alongside a transition.
type StatusUpdate struct {
	FailureReason *string
}

// Repository manages persistence for payment records. UpdateStatusConditional
// is the single synchronization point for lifecycle transitions: it only
// applies when the row is still pending, and reports whether this caller won.
// Every operation is single-row, so no transactional variant is exposed.
type Repository interface {
	Insert(ctx context.Context, payment *models.Payment) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.Payment, error)
	FindByGatewayIntentID(ctx context.Context, intentID string) (*models.Payment, error)
	UpdateStatusConditional(ctx context.Context, id uuid.UUID, status enums.PaymentStatus, update StatusUpdate) (*models.Payment, bool, error)
	ListByUser(ctx context.Context, userID uuid.UUID) ([]models.Payment, error)
	ListByOrder(ctx context.Context, orderID uuid.UUID) ([]models.Payment, error)
	ListPage(ctx context.Context, params pagination.Params, status *enums.PaymentStatus) ([]models.Payment, int64, error)
	ListPendingBefore(ctx context.Context, cutoff time.Time, limit int) ([]models.Payment, error)
	CountByOrder(ctx context.Context, orderID uuid.UUID) (int64, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns a payment repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) Insert(ctx context.Context, payment *models.Payment) error {
	return r.db.WithContext(ctx).Create(payment).Error
}

func (r *repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Payment, error) {
	var payment models.Payment
	if err := r.db.WithContext(ctx).
		Where("id = ?", id).
		First(&payment).Error; err != nil {
		return nil, err
	}
	return &payment, nil
}

func (r *repository) FindByGatewayIntentID(ctx context.Context, intentID string) (*models.Payment, error) {
	var payment models.Payment
	if err := r.db.WithContext(ctx).
		Where("gateway_intent_id = ?", intentID).
		First(&payment).Error; err != nil {
		return nil, err
	}
	return &payment, nil
}

// UpdateStatusConditional moves a pending payment to the target status. The
// guard excludes every terminal status, so at most one concurrent caller gets
// applied=true; everyone else receives the row as the winner left it.
func (r *repository) UpdateStatusConditional(ctx context.Context, id uuid.UUID, status enums.PaymentStatus, update StatusUpdate) (*models.Payment, bool, error) {
	now := time.Now().UTC()
	columns := map[string]any{
		"status":     status,
		"updated_at": now,
	}
	if status == enums.PaymentStatusCompleted {
		columns["completed_at"] = now
	}
	if update.FailureReason != nil {
		columns["failure_reason"] = *update.FailureReason
	}

	result := r.db.WithContext(ctx).
		Model(&models.Payment{}).
		Where("id = ? AND status NOT IN ?", id, enums.TerminalStatuses()).
		Updates(columns)
	if result.Error != nil {
		return nil, false, result.Error
	}

	payment, err := r.FindByID(ctx, id)
	if err != nil {
		return nil, false, err
	}
	return payment, result.RowsAffected > 0, nil
}

func (r *repository) ListByUser(ctx context.Context, userID uuid.UUID) ([]models.Payment, error) {
	var records []models.Payment
	if err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Find(&records).Error; err != nil {
		return nil, err
	}
	return records, nil
}

func (r *repository) ListByOrder(ctx context.Context, orderID uuid.UUID) ([]models.Payment, error) {
	var records []models.Payment
	if err := r.db.WithContext(ctx).
		Where("order_id = ?", orderID).
		Order("created_at ASC").
		Find(&records).Error; err != nil {
		return nil, err
	}
	return records, nil
}

func (r *repository) ListPage(ctx context.Context, params pagination.Params, status *enums.PaymentStatus) ([]models.Payment, int64, error) {
	params = pagination.Normalize(params)

	query := r.db.WithContext(ctx).Model(&models.Payment{})
	if status != nil {
		query = query.Where("status = ?", *status)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var records []models.Payment
	if err := query.
		Order("created_at DESC").
		Offset(params.Offset()).
		Limit(params.Limit).
		Find(&records).Error; err != nil {
		return nil, 0, err
	}
	return records, total, nil
}

// ListPendingBefore returns pending payments created before the cutoff,
// oldest first. The reconciliation sweep feeds on this.
func (r *repository) ListPendingBefore(ctx context.Context, cutoff time.Time, limit int) ([]models.Payment, error) {
	if limit <= 0 {
		limit = 100
	}
	var records []models.Payment
	if err := r.db.WithContext(ctx).
		Where("status = ? AND created_at < ?", enums.PaymentStatusPending, cutoff).
		Order("created_at ASC").
		Limit(limit).
		Find(&records).Error; err != nil {
		return nil, err
	}
	return records, nil
}

func (r *repository) CountByOrder(ctx context.Context, orderID uuid.UUID) (int64, error) {
	var total int64
	if err := r.db.WithContext(ctx).
		Model(&models.Payment{}).
		Where("order_id = ?", orderID).
		Count(&total).Error; err != nil {
		return 0, err
	}
	return total, nil
}
