// Package studio runs the metered actions end to end: validate the request,
// check the team can pay, do the work, then settle the charge.
//
// Nothing is debited until the action has succeeded. A failed generation
// or draft leaves balances and free-use counters untouched.
package studio

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/fpang/brand-studio/internal/assetstore"
	"github.com/fpang/brand-studio/internal/chat"
	"github.com/fpang/brand-studio/internal/generation"
	"github.com/fpang/brand-studio/internal/ledger"
	"github.com/fpang/brand-studio/internal/metrics"
	"github.com/fpang/brand-studio/internal/reconcile"
	"github.com/fpang/brand-studio/internal/store"
)

// Deps are the collaborators a Service needs.
type Deps struct {
	Store     store.Store
	Ledger    *ledger.Ledger
	Invoker   *generation.Invoker
	Text      chat.TextGenerator
	TextModel string
	Assets    assetstore.Store
	Publisher reconcile.Publisher
	// ReferenceCap limits admitted reference images; 0 uses the default.
	ReferenceCap int
	// DraftPolicy retries AI drafting. Nil shares the invoker's policy.
	DraftPolicy *generation.Policy
}

// Service is stateless apart from its collaborators and safe for
// concurrent use.
type Service struct {
	store        store.Store
	ledger       *ledger.Ledger
	invoker      *generation.Invoker
	text         chat.TextGenerator
	textModel    string
	assets       assetstore.Store
	publisher    reconcile.Publisher
	referenceCap int
	draftPolicy  generation.Policy
}

// New creates a Service.
func New(d Deps) *Service {
	s := &Service{
		store:        d.Store,
		ledger:       d.Ledger,
		invoker:      d.Invoker,
		text:         d.Text,
		textModel:    d.TextModel,
		assets:       d.Assets,
		publisher:    d.Publisher,
		referenceCap: d.ReferenceCap,
	}
	if s.ledger == nil {
		s.ledger = ledger.New(d.Store, nil)
	}
	if s.publisher == nil {
		s.publisher = reconcile.LogPublisher{}
	}
	if s.textModel == "" {
		s.textModel = chat.DefaultTextModel
	}
	switch {
	case d.DraftPolicy != nil:
		s.draftPolicy = *d.DraftPolicy
	case d.Invoker != nil:
		s.draftPolicy = d.Invoker.Policy()
	default:
		s.draftPolicy = generation.DefaultPolicy()
	}
	return s
}

func requirePrincipal(p *store.Principal) error {
	if p == nil || p.TeamID == "" {
		return newError(KindUnauthorized, "authentication required", nil)
	}
	return nil
}

// admit runs the advisory precheck. A denial never reaches the provider.
func (s *Service) admit(ctx context.Context, p *store.Principal, action store.ActionType) (ledger.Decision, error) {
	d, err := s.ledger.Precheck(ctx, p.TeamID, action)
	if err != nil {
		return d, newError(KindInternal, "could not check entitlements", err)
	}
	if !d.Allowed {
		log.Info().
			Str("teamId", p.TeamID).
			Str("action", string(action)).
			Int64("balance", d.Balance).
			Msg("Action denied by precheck")
		return d, newError(KindInsufficientBalance, msgInsufficient, store.ErrInsufficientBalance)
	}
	return d, nil
}

// settle charges a succeeded action. A failure here never fails the
// response: the action already happened, so it is logged, counted and
// published for reconciliation, and the precheck view is returned instead.
func (s *Service) settle(ctx context.Context, req ledger.SettleRequest, pre ledger.Decision) *ledger.Settlement {
	settlement, err := s.ledger.Settle(ctx, req)
	if err == nil {
		return settlement
	}

	log.Error().
		Err(err).
		Str("teamId", req.TeamID).
		Str("userId", req.UserID).
		Str("action", string(req.Action)).
		Msg("Ledger write failed after successful action")
	metrics.LedgerWriteFailure(string(req.Action))

	event := reconcile.UnsettledAction{
		TeamID:     req.TeamID,
		UserID:     req.UserID,
		ActionType: string(req.Action),
		Reason:     err.Error(),
		Metadata:   req.Metadata,
	}
	if perr := s.publisher.PublishUnsettled(context.WithoutCancel(ctx), event); perr != nil {
		log.Error().Err(perr).Str("teamId", req.TeamID).Msg("Failed to publish unsettled action")
	}

	return &ledger.Settlement{FreeRemaining: pre.FreeRemaining, Balance: pre.Balance}
}

// record emits the per-action metric.
func record(action store.ActionType, p *store.Principal, start time.Time, attempts int, charged bool, err error) {
	outcome := "success"
	if err != nil {
		outcome = AsError(err).Kind.String()
	}
	teamID := ""
	if p != nil {
		teamID = p.TeamID
	}
	metrics.Action(metrics.ActionOutcome{
		Action:   string(action),
		Outcome:  outcome,
		Attempts: attempts,
		Charged:  charged,
		Elapsed:  time.Since(start),
		TeamID:   teamID,
	})
}

// Entitlements returns the caller's balances and free-tier usage.
func (s *Service) Entitlements(ctx context.Context, p *store.Principal) (*ledger.Snapshot, error) {
	if err := requirePrincipal(p); err != nil {
		return nil, err
	}
	snap, err := s.ledger.Snapshot(ctx, p.TeamID)
	if err != nil {
		return nil, newError(KindInternal, "could not read entitlements", err)
	}
	return snap, nil
}

// Ledger returns the caller's team's recent ledger entries, newest first.
func (s *Service) Ledger(ctx context.Context, p *store.Principal, limit int) ([]store.LedgerEntry, error) {
	if err := requirePrincipal(p); err != nil {
		return nil, err
	}
	entries, err := s.ledger.History(ctx, p.TeamID, limit)
	if err != nil {
		return nil, newError(KindInternal, "could not read ledger", err)
	}
	if entries == nil {
		entries = []store.LedgerEntry{}
	}
	return entries, nil
}
