package payments

import (
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/angelmondragon/payflow-backend/pkg/db/models"
	"github.com/angelmondragon/payflow-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/payflow-backend/pkg/errors"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		tag := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if tag == "" {
			return f.Name
		}
		return tag
	})
	return v
}

// CreateInput describes a new payment attempt for an order.
type CreateInput struct {
	OrderID     uuid.UUID         `json:"order_id" validate:"required"`
	UserID      uuid.UUID         `json:"user_id" validate:"required"`
	AmountCents int64             `json:"amount_cents" validate:"required,gt=0"`
	Currency    string            `json:"currency" validate:"required,len=3"`
	SourceID    string            `json:"source_id"`
	Metadata    map[string]string `json:"metadata"`
}

func (in CreateInput) validateInput() (enums.Currency, error) {
	if err := validate.Struct(in); err != nil {
		return "", formatValidationErrors(err)
	}
	currency, err := enums.ParseCurrency(in.Currency)
	if err != nil {
		return "", pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid currency")
	}
	return currency, nil
}

// ConfirmInput identifies the payment to confirm. GatewayIntentID must match
// the intent recorded at create time; a mismatch is rejected before any
// gateway call is made.
type ConfirmInput struct {
	PaymentID       uuid.UUID `json:"payment_id" validate:"required"`
	GatewayIntentID string    `json:"gateway_intent_id" validate:"required"`
}

func (in ConfirmInput) validateInput() error {
	if err := validate.Struct(in); err != nil {
		return formatValidationErrors(err)
	}
	return nil
}

// Result is the outcome of a lifecycle operation. Transitioned reports
// whether this call performed the status change, as opposed to observing a
// transition some earlier or concurrent call already applied.
type Result struct {
	Payment       *models.Payment
	GatewayStatus enums.PaymentStatus
	ClientSecret  string
	Transitioned  bool
}

func formatValidationErrors(err error) *pkgerrors.Error {
	if errs, ok := err.(validator.ValidationErrors); ok {
		details := map[string]string{}
		for _, fieldErr := range errs {
			details[fieldErr.Field()] = validationMessage(fieldErr)
		}
		return pkgerrors.New(pkgerrors.CodeValidation, "validation failed").WithDetails(details)
	}
	return pkgerrors.Wrap(pkgerrors.CodeValidation, err, "validation failed")
}

func validationMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "gt":
		return fmt.Sprintf("must be greater than %s", fe.Param())
	case "len":
		return fmt.Sprintf("must be exactly %s characters", fe.Param())
	default:
		return fmt.Sprintf("failed %s validation", fe.Tag())
	}
}
