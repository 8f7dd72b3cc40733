package enums

import "fmt"

// GatewayProvider selects which external payment gateway is in use.
type GatewayProvider string

const (
	GatewayProviderStripe GatewayProvider = "stripe"
	GatewayProviderSquare GatewayProvider = "square"
)

// String implements fmt.Stringer.
func (g GatewayProvider) String() string {
	return string(g)
}

// ParseGatewayProvider converts raw input into a GatewayProvider.
func ParseGatewayProvider(value string) (GatewayProvider, error) {
	switch GatewayProvider(value) {
	case GatewayProviderStripe:
		return GatewayProviderStripe, nil
	case GatewayProviderSquare:
		return GatewayProviderSquare, nil
	default:
		return "", fmt.Errorf("invalid gateway provider %q", value)
	}
}
