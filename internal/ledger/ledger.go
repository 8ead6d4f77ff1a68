// Package ledger decides whether a team may run a metered action and
// records the charge once the action has succeeded.
//
// Precheck is advisory and runs before any work. Settle is authoritative:
// it delegates to the store's atomic conditional update, so two requests
// racing past the same precheck cannot both spend the last credit.
package ledger

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/fpang/brand-studio/internal/store"
)

// Policy is the free allotment and metered pool for one action.
type Policy struct {
	Action      store.ActionType
	FreeGranted int
	Pool        store.Pool
	// Cost is debited per metered use.
	Cost        int64
}

// DefaultPolicies are the allotments every team gets.
var DefaultPolicies = map[store.ActionType]Policy{
	store.ActionImageGeneration: {Action: store.ActionImageGeneration, FreeGranted: 0, Pool: store.PoolImageCredits, Cost: 1},
	store.ActionPersonaCreation: {Action: store.ActionPersonaCreation, FreeGranted: 3, Pool: store.PoolCredits, Cost: 1},
	store.ActionThemeCreation:   {Action: store.ActionThemeCreation, FreeGranted: 3, Pool: store.PoolCredits, Cost: 1},
}

// Decision is the outcome of a precheck.
type Decision struct {
	Allowed       bool  `json:"allowed"`
	IsFree        bool  `json:"isFree"`
	FreeRemaining int   `json:"freeRemaining"`
	Balance       int64 `json:"balance"`
}

// SettleRequest describes a completed action.
type SettleRequest struct {
	TeamID      string
	UserID      string
	Action      store.ActionType
	Description string
	Metadata    map[string]string
}

// Settlement is the recorded charge plus what the team has left afterwards.
type Settlement struct {
	Entry         *store.LedgerEntry
	Charged       bool
	FreeRemaining int
	Balance       int64
}

// ActionSummary is the per-action view in a snapshot.
type ActionSummary struct {
	Pool          store.Pool `json:"pool"`
	FreeGranted   int        `json:"freeGranted"`
	FreeUsed      int        `json:"freeUsed"`
	FreeRemaining int        `json:"freeRemaining"`
}

// Snapshot is a team's balances and free-tier usage.
type Snapshot struct {
	TeamID       string                             `json:"teamId"`
	Credits      int64                              `json:"credits"`
	ImageCredits int64                              `json:"imageCredits"`
	Actions      map[store.ActionType]ActionSummary `json:"actions"`
}

// Ledger applies policies on top of an EntitlementStore.
type Ledger struct {
	store    store.EntitlementStore
	policies map[store.ActionType]Policy
}

// New creates a Ledger. A nil policies map uses DefaultPolicies.
func New(s store.EntitlementStore, policies map[store.ActionType]Policy) *Ledger {
	if policies == nil {
		policies = DefaultPolicies
	}
	return &Ledger{store: s, policies: policies}
}

// Policy returns the policy for an action.
func (l *Ledger) Policy(action store.ActionType) (Policy, error) {
	p, ok := l.policies[action]
	if !ok {
		return Policy{}, fmt.Errorf("no entitlement policy for action %q", action)
	}
	return p, nil
}

func freeRemaining(p Policy, ent *store.Entitlement) int {
	remaining := p.FreeGranted - ent.FreeUsed[p.Action]
	if remaining < 0 {
		return 0
	}
	return remaining
}

// Precheck reports whether the team can currently pay for one action.
// It writes nothing.
func (l *Ledger) Precheck(ctx context.Context, teamID string, action store.ActionType) (Decision, error) {
	p, err := l.Policy(action)
	if err != nil {
		return Decision{}, err
	}
	ent, err := l.store.GetEntitlement(ctx, teamID)
	if err != nil {
		return Decision{}, fmt.Errorf("failed to read entitlement: %w", err)
	}

	d := Decision{
		FreeRemaining: freeRemaining(p, ent),
		Balance:       ent.Balance(p.Pool),
	}
	switch {
	case d.FreeRemaining > 0:
		d.Allowed, d.IsFree = true, true
	case d.Balance >= p.Cost:
		d.Allowed = true
	}

	log.Debug().
		Str("teamId", teamID).
		Str("action", string(action)).
		Bool("allowed", d.Allowed).
		Bool("free", d.IsFree).
		Int64("balance", d.Balance).
		Msg("Entitlement precheck")
	return d, nil
}

// Settle charges one successful action: a free use if any remain,
// otherwise the policy cost from the pool. Returns
// store.ErrInsufficientBalance if a concurrent request got there first.
func (l *Ledger) Settle(ctx context.Context, req SettleRequest) (*Settlement, error) {
	p, err := l.Policy(req.Action)
	if err != nil {
		return nil, err
	}
	entry, err := l.store.Settle(ctx, store.SettleParams{
		TeamID:      req.TeamID,
		UserID:      req.UserID,
		Action:      req.Action,
		Pool:        p.Pool,
		FreeGranted: p.FreeGranted,
		Amount:      p.Cost,
		Description: req.Description,
		Metadata:    req.Metadata,
	})
	if err != nil {
		if !errors.Is(err, store.ErrInsufficientBalance) {
			err = fmt.Errorf("failed to settle %s: %w", req.Action, err)
		}
		return nil, err
	}

	s := &Settlement{
		Entry:   entry,
		Charged: !entry.Free,
		Balance: entry.BalanceAfter,
	}
	// The free counter is not on the entry; re-read it for the response.
	if p.FreeGranted > 0 {
		ent, err := l.store.GetEntitlement(ctx, req.TeamID)
		if err != nil {
			log.Warn().Err(err).Str("teamId", req.TeamID).Msg("Settled but could not read remaining free uses")
		} else {
			s.FreeRemaining = freeRemaining(p, ent)
		}
	}

	log.Info().
		Str("teamId", req.TeamID).
		Str("userId", req.UserID).
		Str("action", string(req.Action)).
		Str("entryId", entry.ID).
		Bool("charged", s.Charged).
		Int64("balanceAfter", entry.BalanceAfter).
		Msg("Action settled")
	return s, nil
}

// Grant adds credits to a team's pool.
func (l *Ledger) Grant(ctx context.Context, teamID string, pool store.Pool, amount int64, actor, note string) (*store.LedgerEntry, error) {
	if !pool.Valid() {
		return nil, fmt.Errorf("unknown pool %q", pool)
	}
	if note == "" {
		note = fmt.Sprintf("granted %d %s", amount, pool)
	}
	entry, err := l.store.Grant(ctx, store.GrantParams{
		TeamID:      teamID,
		UserID:      actor,
		Pool:        pool,
		Amount:      amount,
		Description: note,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to grant credits: %w", err)
	}
	log.Info().
		Str("teamId", teamID).
		Str("pool", string(pool)).
		Int64("amount", amount).
		Int64("balanceAfter", entry.BalanceAfter).
		Msg("Credits granted")
	return entry, nil
}

// Snapshot returns balances and free uses remaining for every policy.
func (l *Ledger) Snapshot(ctx context.Context, teamID string) (*Snapshot, error) {
	ent, err := l.store.GetEntitlement(ctx, teamID)
	if err != nil {
		return nil, fmt.Errorf("failed to read entitlement: %w", err)
	}
	snap := &Snapshot{
		TeamID:       teamID,
		Credits:      ent.Credits,
		ImageCredits: ent.ImageCredits,
		Actions:      make(map[store.ActionType]ActionSummary, len(l.policies)),
	}
	for action, p := range l.policies {
		snap.Actions[action] = ActionSummary{
			Pool:          p.Pool,
			FreeGranted:   p.FreeGranted,
			FreeUsed:      ent.FreeUsed[action],
			FreeRemaining: freeRemaining(p, ent),
		}
	}
	return snap, nil
}

// History returns recent ledger entries, newest first.
func (l *Ledger) History(ctx context.Context, teamID string, limit int) ([]store.LedgerEntry, error) {
	entries, err := l.store.ListLedger(ctx, teamID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list ledger: %w", err)
	}
	return entries, nil
}
