package errors

import (
	stdErrors "errors"
	"fmt"
	"testing"
)

func TestWrapPreservesCause(t *testing.T) {
	cause := stdErrors.New("boom")
	err := Wrap(CodeGateway, cause, "create intent failed")

	if !stdErrors.Is(err, cause) {
		t.Fatal("expected wrapped cause to be reachable via errors.Is")
	}
	if err.Code() != CodeGateway {
		t.Fatalf("expected gateway code, got %s", err.Code())
	}
}

func TestAsThroughChain(t *testing.T) {
	inner := New(CodeReconciliationRequired, "orphaned intent")
	outer := fmt.Errorf("sweep: %w", inner)

	typed := As(outer)
	if typed == nil {
		t.Fatal("expected typed error through fmt wrapping")
	}
	if typed.Code() != CodeReconciliationRequired {
		t.Fatalf("unexpected code %s", typed.Code())
	}
}

func TestHasCode(t *testing.T) {
	err := New(CodeConflict, "cancel after complete")
	if !HasCode(err, CodeConflict) {
		t.Fatal("expected conflict code")
	}
	if HasCode(err, CodeValidation) {
		t.Fatal("did not expect validation code")
	}
	if HasCode(nil, CodeConflict) {
		t.Fatal("nil error has no code")
	}
}

func TestMetadataForUnknownCode(t *testing.T) {
	meta := MetadataFor(Code("NOPE"))
	if meta != metadataByCode[CodeInternal] {
		t.Fatal("unknown codes fall back to internal metadata")
	}
}

func TestGatewayNotRetryable(t *testing.T) {
	if MetadataFor(CodeGateway).Retryable {
		t.Fatal("gateway errors must not be flagged retryable")
	}
	if !MetadataFor(CodeValidation).Retryable {
		t.Fatal("validation errors are safe to retry")
	}
}
