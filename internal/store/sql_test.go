package store

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
)

func newTestStore(t *testing.T) *SQLStore {
	t.Helper()
	s, err := OpenSQLite(context.Background(), filepath.Join(t.TempDir(), "studio.db"))
	if err != nil {
		t.Fatalf("OpenSQLite: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestMigrate_Idempotent(t *testing.T) {
	s := newTestStore(t)
	if err := Migrate(context.Background(), s.DB()); err != nil {
		t.Fatalf("second Migrate: %v", err)
	}
	var n int
	if err := s.DB().Get(&n, "SELECT COUNT(*) FROM schema_migrations"); err != nil {
		t.Fatal(err)
	}
	if n != 2 {
		t.Errorf("expected 2 recorded migrations, got %d", n)
	}
}

func TestGetEntitlement_UnknownTeam(t *testing.T) {
	s := newTestStore(t)
	ent, err := s.GetEntitlement(context.Background(), "nobody")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ent.Credits != 0 || ent.ImageCredits != 0 || len(ent.FreeUsed) != 0 {
		t.Errorf("expected empty entitlement, got %+v", ent)
	}
}

func TestSettle_FreeThenMetered(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	if _, err := s.Grant(ctx, GrantParams{TeamID: "t1", UserID: "admin", Pool: PoolCredits, Amount: 5}); err != nil {
		t.Fatalf("Grant: %v", err)
	}

	params := SettleParams{TeamID: "t1", UserID: "u1", Action: ActionPersonaCreation, Pool: PoolCredits, FreeGranted: 3, Amount: 1}
	for i := 0; i < 3; i++ {
		e, err := s.Settle(ctx, params)
		if err != nil {
			t.Fatalf("free settle %d: %v", i, err)
		}
		if !e.Free || e.AmountDebited != 0 || e.BalanceBefore != 5 || e.BalanceAfter != 5 {
			t.Errorf("free settle %d: unexpected entry %+v", i, e)
		}
	}

	e, err := s.Settle(ctx, params)
	if err != nil {
		t.Fatalf("metered settle: %v", err)
	}
	if e.Free || e.AmountDebited != 1 || e.BalanceBefore != 5 || e.BalanceAfter != 4 {
		t.Errorf("unexpected metered entry %+v", e)
	}

	ent, err := s.GetEntitlement(ctx, "t1")
	if err != nil {
		t.Fatal(err)
	}
	if ent.Credits != 4 {
		t.Errorf("expected 4 credits, got %d", ent.Credits)
	}
	if ent.FreeUsed[ActionPersonaCreation] != 3 {
		t.Errorf("expected 3 free uses, got %d", ent.FreeUsed[ActionPersonaCreation])
	}
}

func TestSettle_InsufficientBalance(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	_, err := s.Settle(ctx, SettleParams{TeamID: "t1", UserID: "u1", Action: ActionImageGeneration, Pool: PoolImageCredits, Amount: 1})
	if !errors.Is(err, ErrInsufficientBalance) {
		t.Fatalf("expected ErrInsufficientBalance, got %v", err)
	}

	entries, err := s.ListLedger(ctx, "t1", 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 0 {
		t.Errorf("rejected settle must not write a ledger entry, got %d", len(entries))
	}
}

func TestSettle_PoolsAreIndependent(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	if _, err := s.Grant(ctx, GrantParams{TeamID: "t1", Pool: PoolCredits, Amount: 10}); err != nil {
		t.Fatal(err)
	}
	_, err := s.Settle(ctx, SettleParams{TeamID: "t1", Action: ActionImageGeneration, Pool: PoolImageCredits, Amount: 1})
	if !errors.Is(err, ErrInsufficientBalance) {
		t.Fatalf("image generation must not draw from credits, got %v", err)
	}
}

func TestSettle_ConcurrentNeverOverdraws(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	const balance = 5
	const workers = 20
	if _, err := s.Grant(ctx, GrantParams{TeamID: "t1", Pool: PoolImageCredits, Amount: balance}); err != nil {
		t.Fatal(err)
	}

	var wg sync.WaitGroup
	var mu sync.Mutex
	succeeded, rejected := 0, 0
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := s.Settle(ctx, SettleParams{TeamID: "t1", UserID: "u", Action: ActionImageGeneration, Pool: PoolImageCredits, Amount: 1})
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				succeeded++
			case errors.Is(err, ErrInsufficientBalance):
				rejected++
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	if succeeded != balance || rejected != workers-balance {
		t.Errorf("expected %d successes and %d rejections, got %d and %d", balance, workers-balance, succeeded, rejected)
	}
	ent, err := s.GetEntitlement(ctx, "t1")
	if err != nil {
		t.Fatal(err)
	}
	if ent.ImageCredits != 0 {
		t.Errorf("expected balance 0, got %d", ent.ImageCredits)
	}
}

func TestSettle_ConcurrentFreeTierCapped(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	var wg sync.WaitGroup
	var mu sync.Mutex
	free := 0
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			e, err := s.Settle(ctx, SettleParams{TeamID: "t1", Action: ActionThemeCreation, Pool: PoolCredits, FreeGranted: 3, Amount: 1})
			if err == nil && e.Free {
				mu.Lock()
				free++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	if free != 3 {
		t.Errorf("expected exactly 3 free settlements, got %d", free)
	}
}

func TestListLedger_NewestFirst(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	if _, err := s.Grant(ctx, GrantParams{TeamID: "t1", UserID: "admin", Pool: PoolImageCredits, Amount: 3, Description: "top-up"}); err != nil {
		t.Fatal(err)
	}
	for i := 0; i < 2; i++ {
		if _, err := s.Settle(ctx, SettleParams{
			TeamID: "t1", UserID: "u1", Action: ActionImageGeneration, Pool: PoolImageCredits, Amount: 1,
			Metadata: map[string]string{"assetKey": "k"},
		}); err != nil {
			t.Fatal(err)
		}
	}

	entries, err := s.ListLedger(ctx, "t1", 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 3 {
		t.Fatalf("expected 3 entries, got %d", len(entries))
	}
	if entries[0].BalanceAfter != 1 || entries[1].BalanceAfter != 2 {
		t.Errorf("expected newest first, got %+v", entries)
	}
	grant := entries[2]
	if grant.ActionType != ActionCreditGrant || grant.AmountDebited != -3 || grant.BalanceAfter != 3 || grant.Description != "top-up" {
		t.Errorf("unexpected grant entry %+v", grant)
	}
	if entries[0].Metadata["assetKey"] != "k" {
		t.Errorf("metadata not round-tripped: %+v", entries[0].Metadata)
	}
	for _, e := range entries {
		if e.BalanceAfter != e.BalanceBefore-e.AmountDebited {
			t.Errorf("entry %s breaks balance arithmetic", e.ID)
		}
	}

	limited, err := s.ListLedger(ctx, "t1", 1)
	if err != nil {
		t.Fatal(err)
	}
	if len(limited) != 1 {
		t.Errorf("expected limit to apply, got %d", len(limited))
	}
}

func TestGrant_RejectsNonPositive(t *testing.T) {
	s := newTestStore(t)
	if _, err := s.Grant(context.Background(), GrantParams{TeamID: "t1", Pool: PoolCredits, Amount: 0}); err == nil {
		t.Error("expected error for zero grant")
	}
	if _, err := s.Grant(context.Background(), GrantParams{TeamID: "t1", Pool: "gold", Amount: 1}); err == nil {
		t.Error("expected error for unknown pool")
	}
}

func TestPersonaAndTheme_TeamScoped(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	p := &Persona{TeamID: "t1", CreatedBy: "u1", Name: "Busy Parent", Interests: []string{"meal prep"}}
	if err := s.PutPersona(ctx, p); err != nil {
		t.Fatalf("PutPersona: %v", err)
	}
	if p.ID == "" {
		t.Fatal("expected ID to be assigned")
	}
	got, err := s.GetPersona(ctx, "t1", p.ID)
	if err != nil || got == nil {
		t.Fatalf("GetPersona: %v %v", got, err)
	}
	if got.Name != "Busy Parent" || len(got.Interests) != 1 || got.PainPoints != nil {
		t.Errorf("unexpected persona %+v", got)
	}
	if other, _ := s.GetPersona(ctx, "t2", p.ID); other != nil {
		t.Error("persona must not be visible to another team")
	}

	th := &Theme{TeamID: "t1", CreatedBy: "u1", Name: "Summer", Keywords: []string{"beach", "sun"}}
	if err := s.PutTheme(ctx, th); err != nil {
		t.Fatalf("PutTheme: %v", err)
	}
	gotTheme, err := s.GetTheme(ctx, "t1", th.ID)
	if err != nil || gotTheme == nil {
		t.Fatalf("GetTheme: %v %v", gotTheme, err)
	}
	if len(gotTheme.Keywords) != 2 {
		t.Errorf("unexpected theme %+v", gotTheme)
	}
	if missing, err := s.GetTheme(ctx, "t1", "nope"); missing != nil || err != nil {
		t.Errorf("expected nil, nil for missing theme, got %v, %v", missing, err)
	}
}

func TestTokens(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	if err := s.PutToken(ctx, "hash1", Principal{UserID: "u1", TeamID: "t1"}); err != nil {
		t.Fatal(err)
	}
	p, err := s.GetPrincipal(ctx, "hash1")
	if err != nil || p == nil || p.TeamID != "t1" {
		t.Fatalf("unexpected principal %v %v", p, err)
	}
	if err := s.PutToken(ctx, "hash1", Principal{UserID: "u2", TeamID: "t2"}); err != nil {
		t.Fatal(err)
	}
	p, _ = s.GetPrincipal(ctx, "hash1")
	if p.UserID != "u2" {
		t.Errorf("expected token to be reassigned, got %+v", p)
	}
	if p, err := s.GetPrincipal(ctx, "unknown"); p != nil || err != nil {
		t.Errorf("expected nil, nil for unknown token, got %v, %v", p, err)
	}
}
