package tenant

import (
	"context"
	"testing"
)

func TestWithID_RoundTrip(t *testing.T) {
	ctx := WithID(context.Background(), "acme")

	got, ok := FromContext(ctx)
	if !ok {
		t.Fatal("expected tenant ID to be present")
	}
	if got != "acme" {
		t.Errorf("expected %q, got %q", "acme", got)
	}
}

func TestWithID_EmptyIsNoop(t *testing.T) {
	ctx := WithID(context.Background(), "")

	if _, ok := FromContext(ctx); ok {
		t.Error("expected no tenant ID to be attached for an empty string")
	}
}

func TestFromContext_Unset(t *testing.T) {
	if _, ok := FromContext(context.Background()); ok {
		t.Error("expected ok=false when no tenant ID was ever attached")
	}
}
