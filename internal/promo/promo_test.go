package promo

import (
	"context"
	"errors"
	"testing"
)

func TestStaticRegistry(t *testing.T) {
	reg := NewStatic(
		Rule{Code: "SAVE20", DiscountBP: 2000, MinSubtotal: 50000},
		Rule{Code: "welcome10", DiscountBP: 1000, MinSubtotal: 0},
	)

	r, err := reg.Rule(context.Background(), "SAVE20")
	if err != nil {
		t.Fatalf("Rule(SAVE20) error: %v", err)
	}
	if r.DiscountBP != 2000 || r.MinSubtotal != 50000 {
		t.Fatalf("unexpected rule: %+v", r)
	}

	r, err = reg.Rule(context.Background(), "Welcome10")
	if err != nil {
		t.Fatalf("lookup must be case-insensitive, got error: %v", err)
	}
	if r.DiscountBP != 1000 {
		t.Fatalf("DiscountBP = %d, want 1000", r.DiscountBP)
	}

	_, err = reg.Rule(context.Background(), "NOPE")
	if !errors.Is(err, ErrUnknownCode) {
		t.Fatalf("expected ErrUnknownCode, got %v", err)
	}
}
