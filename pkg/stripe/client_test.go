package stripe

import (
	"context"
	"testing"

	"github.com/angelmondragon/payflow-backend/pkg/config"
	"github.com/angelmondragon/payflow-backend/pkg/logger"
)

func TestNewClientRejectsMissingKey(t *testing.T) {
	_, err := NewClient(context.Background(), config.StripeConfig{Env: "test"}, logger.New(logger.Options{ServiceName: "test"}))
	if err == nil {
		t.Fatal("expected error for missing api key")
	}
}

func TestNewClientRejectsMismatchedKey(t *testing.T) {
	cfg := config.StripeConfig{APIKey: "sk_live_123", Env: "test"}
	if _, err := NewClient(context.Background(), cfg, nil); err == nil {
		t.Fatal("expected error for live key in test env")
	}
}

func TestNewClientRejectsUnknownEnv(t *testing.T) {
	cfg := config.StripeConfig{APIKey: "sk_test_123", Env: "staging"}
	if _, err := NewClient(context.Background(), cfg, nil); err == nil {
		t.Fatal("expected error for unknown environment")
	}
}

func TestNewClientAcceptsTestKey(t *testing.T) {
	cfg := config.StripeConfig{APIKey: "sk_test_123", Env: ""}
	client, err := NewClient(context.Background(), cfg, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if client.Environment() != "test" {
		t.Fatalf("expected test env, got %q", client.Environment())
	}
	if client.API() == nil {
		t.Fatal("expected initialized api client")
	}
}
