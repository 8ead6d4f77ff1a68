package ledger

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/fpang/brand-studio/internal/store"
)

func newTestLedger(t *testing.T) (*Ledger, *store.SQLStore) {
	t.Helper()
	s, err := store.OpenSQLite(context.Background(), filepath.Join(t.TempDir(), "ledger.db"))
	if err != nil {
		t.Fatalf("OpenSQLite: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return New(s, nil), s
}

func TestPrecheck_FreeBeforeMetered(t *testing.T) {
	ctx := context.Background()
	l, _ := newTestLedger(t)

	d, err := l.Precheck(ctx, "t1", store.ActionPersonaCreation)
	if err != nil {
		t.Fatal(err)
	}
	if !d.Allowed || !d.IsFree || d.FreeRemaining != 3 {
		t.Errorf("expected free allowance, got %+v", d)
	}

	d, err = l.Precheck(ctx, "t1", store.ActionImageGeneration)
	if err != nil {
		t.Fatal(err)
	}
	if d.Allowed || d.IsFree {
		t.Errorf("image generation has no free tier and no balance, got %+v", d)
	}
}

func TestSettle_FreeUsesThenDebits(t *testing.T) {
	ctx := context.Background()
	l, _ := newTestLedger(t)
	if _, err := l.Grant(ctx, "t1", store.PoolCredits, 2, "admin", ""); err != nil {
		t.Fatal(err)
	}

	req := SettleRequest{TeamID: "t1", UserID: "u1", Action: store.ActionThemeCreation, Description: "theme"}
	for i := 0; i < 3; i++ {
		s, err := l.Settle(ctx, req)
		if err != nil {
			t.Fatalf("settle %d: %v", i, err)
		}
		if s.Charged {
			t.Errorf("settle %d should be free", i)
		}
		if s.FreeRemaining != 2-i {
			t.Errorf("settle %d: expected %d free remaining, got %d", i, 2-i, s.FreeRemaining)
		}
		if s.Balance != 2 {
			t.Errorf("free settle must not touch balance, got %d", s.Balance)
		}
	}

	s, err := l.Settle(ctx, req)
	if err != nil {
		t.Fatal(err)
	}
	if !s.Charged || s.Balance != 1 || s.Entry.AmountDebited != 1 {
		t.Errorf("expected metered debit, got %+v / %+v", s, s.Entry)
	}
}

func TestPrecheck_FreeExhaustedAndNoBalance(t *testing.T) {
	ctx := context.Background()
	l, _ := newTestLedger(t)
	for i := 0; i < 3; i++ {
		if _, err := l.Settle(ctx, SettleRequest{TeamID: "t1", Action: store.ActionPersonaCreation}); err != nil {
			t.Fatal(err)
		}
	}

	d, err := l.Precheck(ctx, "t1", store.ActionPersonaCreation)
	if err != nil {
		t.Fatal(err)
	}
	if d.Allowed {
		t.Errorf("expected denial after free tier with zero balance, got %+v", d)
	}

	_, err = l.Settle(ctx, SettleRequest{TeamID: "t1", Action: store.ActionPersonaCreation})
	if !errors.Is(err, store.ErrInsufficientBalance) {
		t.Fatalf("expected ErrInsufficientBalance, got %v", err)
	}
	entries, err := l.History(ctx, "t1", 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 3 {
		t.Errorf("expected only the 3 free entries, got %d", len(entries))
	}
}

func TestSettle_UnknownAction(t *testing.T) {
	l, _ := newTestLedger(t)
	if _, err := l.Settle(context.Background(), SettleRequest{TeamID: "t1", Action: "teleport"}); err == nil {
		t.Error("expected error for action without policy")
	}
}

func TestGrant_RejectsUnknownPool(t *testing.T) {
	l, _ := newTestLedger(t)
	if _, err := l.Grant(context.Background(), "t1", "gold", 5, "admin", ""); err == nil {
		t.Error("expected error")
	}
}

func TestSnapshot(t *testing.T) {
	ctx := context.Background()
	l, _ := newTestLedger(t)
	if _, err := l.Grant(ctx, "t1", store.PoolImageCredits, 7, "admin", "launch bonus"); err != nil {
		t.Fatal(err)
	}
	if _, err := l.Settle(ctx, SettleRequest{TeamID: "t1", Action: store.ActionPersonaCreation}); err != nil {
		t.Fatal(err)
	}

	snap, err := l.Snapshot(ctx, "t1")
	if err != nil {
		t.Fatal(err)
	}
	if snap.ImageCredits != 7 || snap.Credits != 0 {
		t.Errorf("unexpected balances %+v", snap)
	}
	persona := snap.Actions[store.ActionPersonaCreation]
	if persona.FreeUsed != 1 || persona.FreeRemaining != 2 || persona.Pool != store.PoolCredits {
		t.Errorf("unexpected persona summary %+v", persona)
	}
	if img := snap.Actions[store.ActionImageGeneration]; img.FreeGranted != 0 || img.Pool != store.PoolImageCredits {
		t.Errorf("unexpected image summary %+v", img)
	}
}
