package gateway

import (
	"context"
	"fmt"

	"github.com/angelmondragon/payflow-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/payflow-backend/pkg/errors"
	pkgsquare "github.com/angelmondragon/payflow-backend/pkg/square"
	pkgstripe "github.com/angelmondragon/payflow-backend/pkg/stripe"
)

// Intent is the provider-agnostic view of a payment intent. Every adapter
// normalizes its provider's lifecycle onto enums.PaymentStatus so callers
// never branch on provider-specific states.
type Intent struct {
	ID            string
	ClientSecret  string
	Status        enums.PaymentStatus
	AmountCents   int64
	Currency      enums.Currency
	PaymentMethod string
	// FailureReason is the provider's explanation when Status is FAILED;
	// empty otherwise.
	FailureReason string
}

// CreateIntentParams carries everything an adapter needs to open an intent.
// IdempotencyKey is forwarded to the provider so retried creates return the
// original intent instead of charging twice.
type CreateIntentParams struct {
	AmountCents    int64
	Currency       enums.Currency
	SourceID       string
	ReferenceID    string
	IdempotencyKey string
	Metadata       map[string]string
}

// Gateway is the payment-provider port. All failures surface as typed errors
// from pkg/errors; callers treat CodeGateway as "the provider said no" and
// CodeDependency as "the provider could not be reached".
type Gateway interface {
	CreateIntent(ctx context.Context, params CreateIntentParams) (*Intent, error)
	RetrieveIntent(ctx context.Context, intentID string) (*Intent, error)
	ConfirmIntent(ctx context.Context, intentID string) (*Intent, error)
	CancelIntent(ctx context.Context, intentID string) (*Intent, error)
}

// ForProvider selects the configured gateway adapter. Clients for providers
// other than the selected one may be nil.
func ForProvider(provider enums.GatewayProvider, stripeClient *pkgstripe.Client, squareClient *pkgsquare.Client) (Gateway, error) {
	switch provider {
	case enums.GatewayProviderStripe:
		if stripeClient == nil {
			return nil, fmt.Errorf("stripe gateway selected but stripe client is not configured")
		}
		return NewStripeGateway(NewStripePaymentIntentClient(stripeClient)), nil
	case enums.GatewayProviderSquare:
		if squareClient == nil {
			return nil, fmt.Errorf("square gateway selected but square client is not configured")
		}
		return NewSquareGateway(squareClient), nil
	default:
		return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("unknown gateway provider %q", provider))
	}
}
