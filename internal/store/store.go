// Package store persists entitlement balances, the append-only usage
// ledger, personas, themes and API tokens.
//
// Two backends implement Store: DynamoStore (single-table DynamoDB, used by
// the Lambda deployment) and SQLStore (Postgres via pgx, or SQLite for local
// runs and tests). Both settle usage with a conditional update in the same
// transaction as the ledger insert, so concurrent requests can never push a
// balance below zero or consume more free uses than granted.
package store

import (
	"context"
	"errors"
	"time"
)

// ErrInsufficientBalance is returned by Settle when neither the free
// allotment nor the metered pool can cover the action. It is also what the
// loser of a settlement race sees.
var ErrInsufficientBalance = errors.New("insufficient balance")

// ErrConflict is returned when an optimistic write keeps losing to
// concurrent writers.
var ErrConflict = errors.New("concurrent update conflict")

// ActionType identifies a metered action.
type ActionType string

const (
	ActionImageGeneration ActionType = "image-generation"
	ActionPersonaCreation ActionType = "persona-creation"
	ActionThemeCreation   ActionType = "theme-creation"
	ActionCreditGrant     ActionType = "credit-grant"
)

// Pool is a metered balance. Image generation draws from its own pool.
type Pool string

const (
	PoolCredits      Pool = "credits"
	PoolImageCredits Pool = "image_credits"
)

// Valid reports whether p names a known pool.
func (p Pool) Valid() bool {
	return p == PoolCredits || p == PoolImageCredits
}

// Entitlement is a team's balances and free-tier usage.
type Entitlement struct {
	TeamID       string             `json:"teamId" dynamodbav:"-"`
	Credits      int64              `json:"credits" dynamodbav:"credits"`
	ImageCredits int64              `json:"imageCredits" dynamodbav:"imageCredits"`
	FreeUsed     map[ActionType]int `json:"freeUsed" dynamodbav:"freeUsed"`
	UpdatedAt    int64              `json:"updatedAt,omitempty" dynamodbav:"updatedAt,omitempty"`
}

// Balance returns the balance of the given pool.
func (e *Entitlement) Balance(p Pool) int64 {
	switch p {
	case PoolImageCredits:
		return e.ImageCredits
	default:
		return e.Credits
	}
}

// LedgerEntry is an immutable record of one balance or counter change.
// BalanceAfter == BalanceBefore - AmountDebited always holds; free-tier
// settlements debit 0 and grants debit a negative amount.
type LedgerEntry struct {
	ID            string            `json:"id" dynamodbav:"id"`
	TeamID        string            `json:"teamId" dynamodbav:"teamId"`
	UserID        string            `json:"userId" dynamodbav:"userId"`
	ActionType    ActionType        `json:"actionType" dynamodbav:"actionType"`
	Pool          Pool              `json:"pool" dynamodbav:"pool"`
	AmountDebited int64             `json:"amountDebited" dynamodbav:"amountDebited"`
	BalanceBefore int64             `json:"balanceBefore" dynamodbav:"balanceBefore"`
	BalanceAfter  int64             `json:"balanceAfter" dynamodbav:"balanceAfter"`
	Free          bool              `json:"free" dynamodbav:"free"`
	Description   string            `json:"description" dynamodbav:"description"`
	Metadata      map[string]string `json:"metadata,omitempty" dynamodbav:"metadata,omitempty"`
	CreatedAt     time.Time         `json:"createdAt" dynamodbav:"createdAt"`
}

// Persona is an audience persona owned by a team.
type Persona struct {
	ID          string    `json:"id" dynamodbav:"-"`
	TeamID      string    `json:"teamId" dynamodbav:"-"`
	CreatedBy   string    `json:"createdBy" dynamodbav:"createdBy"`
	Name        string    `json:"name" dynamodbav:"name"`
	Description string    `json:"description,omitempty" dynamodbav:"description,omitempty"`
	AgeRange    string    `json:"ageRange,omitempty" dynamodbav:"ageRange,omitempty"`
	Interests   []string  `json:"interests,omitempty" dynamodbav:"interests,omitempty"`
	PainPoints  []string  `json:"painPoints,omitempty" dynamodbav:"painPoints,omitempty"`
	CreatedAt   time.Time `json:"createdAt" dynamodbav:"createdAt"`
}

// Theme is a campaign theme owned by a team.
type Theme struct {
	ID          string    `json:"id" dynamodbav:"-"`
	TeamID      string    `json:"teamId" dynamodbav:"-"`
	CreatedBy   string    `json:"createdBy" dynamodbav:"createdBy"`
	Name        string    `json:"name" dynamodbav:"name"`
	Description string    `json:"description,omitempty" dynamodbav:"description,omitempty"`
	Keywords    []string  `json:"keywords,omitempty" dynamodbav:"keywords,omitempty"`
	CreatedAt   time.Time `json:"createdAt" dynamodbav:"createdAt"`
}

// Principal is the caller identity resolved from an API token.
type Principal struct {
	UserID string `json:"userId" dynamodbav:"userId"`
	TeamID string `json:"teamId" dynamodbav:"teamId"`
}

// SettleParams describes a successful action to be charged. If FreeGranted
// is positive the free counter for Action is tried first; otherwise, or
// when the allotment is used up, Amount is debited from Pool.
type SettleParams struct {
	TeamID      string
	UserID      string
	Action      ActionType
	Pool        Pool
	FreeGranted int
	Amount      int64
	Description string
	Metadata    map[string]string
}

// GrantParams adds credits to a pool.
type GrantParams struct {
	TeamID      string
	UserID      string
	Pool        Pool
	Amount      int64
	Description string
}

// EntitlementStore holds balances and the usage ledger.
type EntitlementStore interface {
	// GetEntitlement returns the team's balances. A team with no record has
	// zero balances and no free usage; that is not an error.
	GetEntitlement(ctx context.Context, teamID string) (*Entitlement, error)

	// Settle atomically charges one successful action and appends its
	// ledger entry. Returns ErrInsufficientBalance if nothing can cover it.
	Settle(ctx context.Context, p SettleParams) (*LedgerEntry, error)

	// Grant atomically credits a pool and appends a ledger entry.
	Grant(ctx context.Context, p GrantParams) (*LedgerEntry, error)

	// ListLedger returns the newest entries first.
	ListLedger(ctx context.Context, teamID string, limit int) ([]LedgerEntry, error)
}

// EntityStore holds personas and themes. Get methods return (nil, nil) when
// the record does not exist or belongs to another team.
type EntityStore interface {
	PutPersona(ctx context.Context, p *Persona) error
	GetPersona(ctx context.Context, teamID, id string) (*Persona, error)
	PutTheme(ctx context.Context, t *Theme) error
	GetTheme(ctx context.Context, teamID, id string) (*Theme, error)
}

// TokenStore maps hashed API tokens to principals. GetPrincipal returns
// (nil, nil) for unknown tokens.
type TokenStore interface {
	PutToken(ctx context.Context, tokenHash string, p Principal) error
	GetPrincipal(ctx context.Context, tokenHash string) (*Principal, error)
}

// Store is everything the pipeline persists.
type Store interface {
	EntitlementStore
	EntityStore
	TokenStore
}

// DefaultLedgerLimit caps ListLedger when the caller passes no limit.
const DefaultLedgerLimit = 50

func ledgerLimit(limit int) int {
	if limit <= 0 || limit > 500 {
		return DefaultLedgerLimit
	}
	return limit
}

func settleAmount(p SettleParams) int64 {
	if p.Amount <= 0 {
		return 1
	}
	return p.Amount
}
