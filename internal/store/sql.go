package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/jmoiron/sqlx"
	"github.com/oklog/ulid/v2"
	"github.com/rs/zerolog/log"
	_ "modernc.org/sqlite"
)

// timeLayout is fixed-width so stored timestamps sort lexicographically.
const timeLayout = "2006-01-02T15:04:05.000000000Z"

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) time.Time {
	t, err := time.Parse(timeLayout, s)
	if err != nil {
		log.Warn().Err(err).Str("value", s).Msg("Unparseable timestamp in database")
		return time.Time{}
	}
	return t
}

// SQLStore implements Store on a SQL database. Queries are written with ?
// placeholders and rebound for the driver, so the same code runs against
// Postgres (pgx) and SQLite (modernc).
type SQLStore struct {
	db *sqlx.DB
}

// NewSQLStore wraps an open, migrated database.
func NewSQLStore(db *sqlx.DB) *SQLStore {
	return &SQLStore{db: db}
}

// DB returns the underlying handle.
func (s *SQLStore) DB() *sqlx.DB { return s.db }

// Close closes the database.
func (s *SQLStore) Close() error { return s.db.Close() }

// OpenPostgres connects to Postgres through the pgx stdlib driver and runs
// migrations.
func OpenPostgres(ctx context.Context, dsn string) (*SQLStore, error) {
	connConfig, err := pgx.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to parse postgres DSN: %w", err)
	}
	db, err := sqlx.ConnectContext(ctx, "pgx", stdlib.RegisterConnConfig(connConfig))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to postgres: %w", err)
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(30 * time.Minute)

	if err := Migrate(ctx, db); err != nil {
		db.Close()
		return nil, err
	}
	log.Info().Str("host", connConfig.Host).Str("database", connConfig.Database).Msg("Postgres store ready")
	return NewSQLStore(db), nil
}

// OpenSQLite opens (creating if needed) a SQLite database file and runs
// migrations. The pool is limited to one connection so transactions
// serialize instead of failing with SQLITE_BUSY.
func OpenSQLite(ctx context.Context, path string) (*SQLStore, error) {
	dsn := "file:" + path + "?_pragma=journal_mode(wal)&_pragma=busy_timeout(5000)&_pragma=foreign_keys(on)"
	db, err := sqlx.ConnectContext(ctx, "sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite %s: %w", path, err)
	}
	db.SetMaxOpenConns(1)

	if err := Migrate(ctx, db); err != nil {
		db.Close()
		return nil, err
	}
	log.Debug().Str("path", path).Msg("SQLite store ready")
	return NewSQLStore(db), nil
}

// withTx runs fn in a transaction, rolling back if it returns an error.
// fn must only use tx: with a single-connection pool, touching s.db inside
// would deadlock.
func (s *SQLStore) withTx(ctx context.Context, fn func(tx *sqlx.Tx) error) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			log.Warn().Err(rbErr).Msg("Rollback failed")
		}
		return err
	}
	return tx.Commit()
}

func poolColumn(p Pool) (string, error) {
	switch p {
	case PoolCredits:
		return "credits", nil
	case PoolImageCredits:
		return "image_credits", nil
	default:
		return "", fmt.Errorf("unknown pool %q", p)
	}
}

// --- Entitlements ---

type balanceRow struct {
	Credits      int64  `db:"credits"`
	ImageCredits int64  `db:"image_credits"`
	UpdatedAt    string `db:"updated_at"`
}

type freeUsageRow struct {
	ActionType string `db:"action_type"`
	Used       int    `db:"used"`
}

// GetEntitlement returns zero balances for teams with no row.
func (s *SQLStore) GetEntitlement(ctx context.Context, teamID string) (*Entitlement, error) {
	ent := &Entitlement{TeamID: teamID, FreeUsed: map[ActionType]int{}}

	var row balanceRow
	err := s.db.GetContext(ctx, &row,
		s.db.Rebind("SELECT credits, image_credits, updated_at FROM team_balances WHERE team_id = ?"), teamID)
	switch {
	case errors.Is(err, sql.ErrNoRows):
	case err != nil:
		return nil, fmt.Errorf("failed to get balances: %w", err)
	default:
		ent.Credits = row.Credits
		ent.ImageCredits = row.ImageCredits
		ent.UpdatedAt = parseTime(row.UpdatedAt).Unix()
	}

	var usage []freeUsageRow
	if err := s.db.SelectContext(ctx, &usage,
		s.db.Rebind("SELECT action_type, used FROM free_usage WHERE team_id = ?"), teamID); err != nil {
		return nil, fmt.Errorf("failed to get free usage: %w", err)
	}
	for _, u := range usage {
		ent.FreeUsed[ActionType(u.ActionType)] = u.Used
	}
	return ent, nil
}

func ensureTeam(ctx context.Context, tx *sqlx.Tx, teamID string, now time.Time) error {
	_, err := tx.ExecContext(ctx,
		tx.Rebind("INSERT INTO team_balances (team_id, credits, image_credits, updated_at) VALUES (?, 0, 0, ?) ON CONFLICT (team_id) DO NOTHING"),
		teamID, formatTime(now))
	if err != nil {
		return fmt.Errorf("failed to ensure team row: %w", err)
	}
	return nil
}

// Settle tries the free counter first when the action has a free grant; the
// counter update is conditional on used < granted so at most FreeGranted
// settlements are ever free. Otherwise the pool is debited with a
// conditional update that leaves the row untouched if it would go negative.
func (s *SQLStore) Settle(ctx context.Context, p SettleParams) (*LedgerEntry, error) {
	col, err := poolColumn(p.Pool)
	if err != nil {
		return nil, err
	}

	var entry *LedgerEntry
	err = s.withTx(ctx, func(tx *sqlx.Tx) error {
		now := time.Now()
		if err := ensureTeam(ctx, tx, p.TeamID, now); err != nil {
			return err
		}

		if p.FreeGranted > 0 {
			free, err := consumeFree(ctx, tx, p)
			if err != nil {
				return err
			}
			if free {
				var balance int64
				if err := tx.GetContext(ctx, &balance,
					tx.Rebind("SELECT "+col+" FROM team_balances WHERE team_id = ?"), p.TeamID); err != nil {
					return fmt.Errorf("failed to read balance: %w", err)
				}
				entry = newEntry(p.TeamID, p.UserID, p.Action, p.Pool, 0, balance, now)
				entry.Free = true
				entry.Description = p.Description
				entry.Metadata = p.Metadata
				return insertLedger(ctx, tx, entry)
			}
		}

		amount := settleAmount(p)
		var after int64
		err := tx.QueryRowxContext(ctx,
			tx.Rebind("UPDATE team_balances SET "+col+" = "+col+" - ?, updated_at = ? WHERE team_id = ? AND "+col+" >= ? RETURNING "+col),
			amount, formatTime(now), p.TeamID, amount).Scan(&after)
		if errors.Is(err, sql.ErrNoRows) {
			return ErrInsufficientBalance
		}
		if err != nil {
			return fmt.Errorf("failed to debit %s: %w", col, err)
		}
		entry = newEntry(p.TeamID, p.UserID, p.Action, p.Pool, amount, after+amount, now)
		entry.Description = p.Description
		entry.Metadata = p.Metadata
		return insertLedger(ctx, tx, entry)
	})
	if err != nil {
		return nil, err
	}
	return entry, nil
}

func consumeFree(ctx context.Context, tx *sqlx.Tx, p SettleParams) (bool, error) {
	if _, err := tx.ExecContext(ctx,
		tx.Rebind("INSERT INTO free_usage (team_id, action_type, used) VALUES (?, ?, 0) ON CONFLICT (team_id, action_type) DO NOTHING"),
		p.TeamID, string(p.Action)); err != nil {
		return false, fmt.Errorf("failed to ensure free usage row: %w", err)
	}
	res, err := tx.ExecContext(ctx,
		tx.Rebind("UPDATE free_usage SET used = used + 1 WHERE team_id = ? AND action_type = ? AND used < ?"),
		p.TeamID, string(p.Action), p.FreeGranted)
	if err != nil {
		return false, fmt.Errorf("failed to consume free use: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

// Grant credits a pool. The ledger entry records a negative debit.
func (s *SQLStore) Grant(ctx context.Context, p GrantParams) (*LedgerEntry, error) {
	if p.Amount <= 0 {
		return nil, fmt.Errorf("grant amount must be positive, got %d", p.Amount)
	}
	col, err := poolColumn(p.Pool)
	if err != nil {
		return nil, err
	}

	var entry *LedgerEntry
	err = s.withTx(ctx, func(tx *sqlx.Tx) error {
		now := time.Now()
		if err := ensureTeam(ctx, tx, p.TeamID, now); err != nil {
			return err
		}
		var after int64
		if err := tx.QueryRowxContext(ctx,
			tx.Rebind("UPDATE team_balances SET "+col+" = "+col+" + ?, updated_at = ? WHERE team_id = ? RETURNING "+col),
			p.Amount, formatTime(now), p.TeamID).Scan(&after); err != nil {
			return fmt.Errorf("failed to credit %s: %w", col, err)
		}
		entry = newEntry(p.TeamID, p.UserID, ActionCreditGrant, p.Pool, -p.Amount, after-p.Amount, now)
		entry.Description = p.Description
		return insertLedger(ctx, tx, entry)
	})
	if err != nil {
		return nil, err
	}
	return entry, nil
}

func newEntry(teamID, userID string, action ActionType, pool Pool, debit, before int64, now time.Time) *LedgerEntry {
	return &LedgerEntry{
		ID:            ulid.Make().String(),
		TeamID:        teamID,
		UserID:        userID,
		ActionType:    action,
		Pool:          pool,
		AmountDebited: debit,
		BalanceBefore: before,
		BalanceAfter:  before - debit,
		CreatedAt:     now.UTC().Truncate(time.Microsecond),
	}
}

type ledgerRow struct {
	ID            string         `db:"id"`
	TeamID        string         `db:"team_id"`
	UserID        string         `db:"user_id"`
	ActionType    string         `db:"action_type"`
	Pool          string         `db:"pool"`
	AmountDebited int64          `db:"amount_debited"`
	BalanceBefore int64          `db:"balance_before"`
	BalanceAfter  int64          `db:"balance_after"`
	Free          bool           `db:"free"`
	Description   string         `db:"description"`
	Metadata      sql.NullString `db:"metadata"`
	CreatedAt     string         `db:"created_at"`
}

func insertLedger(ctx context.Context, tx *sqlx.Tx, e *LedgerEntry) error {
	var metadata sql.NullString
	if len(e.Metadata) > 0 {
		b, err := json.Marshal(e.Metadata)
		if err != nil {
			return fmt.Errorf("failed to encode ledger metadata: %w", err)
		}
		metadata = sql.NullString{String: string(b), Valid: true}
	}
	_, err := tx.ExecContext(ctx, tx.Rebind(`INSERT INTO ledger_entries
		(id, team_id, user_id, action_type, pool, amount_debited, balance_before, balance_after, free, description, metadata, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`),
		e.ID, e.TeamID, e.UserID, string(e.ActionType), string(e.Pool),
		e.AmountDebited, e.BalanceBefore, e.BalanceAfter, e.Free, e.Description, metadata, formatTime(e.CreatedAt))
	if err != nil {
		return fmt.Errorf("failed to insert ledger entry: %w", err)
	}
	return nil
}

// ListLedger returns the team's entries, newest first.
func (s *SQLStore) ListLedger(ctx context.Context, teamID string, limit int) ([]LedgerEntry, error) {
	var rows []ledgerRow
	if err := s.db.SelectContext(ctx, &rows, s.db.Rebind(`SELECT
		id, team_id, user_id, action_type, pool, amount_debited, balance_before, balance_after, free, description, metadata, created_at
		FROM ledger_entries WHERE team_id = ? ORDER BY created_at DESC, id DESC LIMIT ?`),
		teamID, ledgerLimit(limit)); err != nil {
		return nil, fmt.Errorf("failed to list ledger: %w", err)
	}

	entries := make([]LedgerEntry, 0, len(rows))
	for _, r := range rows {
		e := LedgerEntry{
			ID:            r.ID,
			TeamID:        r.TeamID,
			UserID:        r.UserID,
			ActionType:    ActionType(r.ActionType),
			Pool:          Pool(r.Pool),
			AmountDebited: r.AmountDebited,
			BalanceBefore: r.BalanceBefore,
			BalanceAfter:  r.BalanceAfter,
			Free:          r.Free,
			Description:   r.Description,
			CreatedAt:     parseTime(r.CreatedAt),
		}
		if r.Metadata.Valid && r.Metadata.String != "" {
			if err := json.Unmarshal([]byte(r.Metadata.String), &e.Metadata); err != nil {
				log.Warn().Err(err).Str("entry", r.ID).Msg("Ledger metadata is not valid JSON")
			}
		}
		entries = append(entries, e)
	}
	return entries, nil
}

// --- Personas & themes ---

type personaRow struct {
	ID          string         `db:"id"`
	TeamID      string         `db:"team_id"`
	CreatedBy   string         `db:"created_by"`
	Name        string         `db:"name"`
	Description string         `db:"description"`
	AgeRange    string         `db:"age_range"`
	Interests   sql.NullString `db:"interests"`
	PainPoints  sql.NullString `db:"pain_points"`
	CreatedAt   string         `db:"created_at"`
}

type themeRow struct {
	ID          string         `db:"id"`
	TeamID      string         `db:"team_id"`
	CreatedBy   string         `db:"created_by"`
	Name        string         `db:"name"`
	Description string         `db:"description"`
	Keywords    sql.NullString `db:"keywords"`
	CreatedAt   string         `db:"created_at"`
}

func encodeList(list []string) (sql.NullString, error) {
	if len(list) == 0 {
		return sql.NullString{}, nil
	}
	b, err := json.Marshal(list)
	if err != nil {
		return sql.NullString{}, err
	}
	return sql.NullString{String: string(b), Valid: true}, nil
}

func decodeList(s sql.NullString) []string {
	if !s.Valid || s.String == "" {
		return nil
	}
	var out []string
	if err := json.Unmarshal([]byte(s.String), &out); err != nil {
		log.Warn().Err(err).Msg("Stored list is not valid JSON")
		return nil
	}
	return out
}

// PutPersona inserts a persona. ID and CreatedAt are assigned if empty.
func (s *SQLStore) PutPersona(ctx context.Context, p *Persona) error {
	if p.ID == "" {
		p.ID = ulid.Make().String()
	}
	if p.CreatedAt.IsZero() {
		p.CreatedAt = time.Now().UTC().Truncate(time.Microsecond)
	}
	interests, err := encodeList(p.Interests)
	if err != nil {
		return err
	}
	painPoints, err := encodeList(p.PainPoints)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, s.db.Rebind(`INSERT INTO personas
		(id, team_id, created_by, name, description, age_range, interests, pain_points, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`),
		p.ID, p.TeamID, p.CreatedBy, p.Name, p.Description, p.AgeRange, interests, painPoints, formatTime(p.CreatedAt))
	if err != nil {
		return fmt.Errorf("failed to insert persona: %w", err)
	}
	return nil
}

// GetPersona returns nil if the persona does not exist for this team.
func (s *SQLStore) GetPersona(ctx context.Context, teamID, id string) (*Persona, error) {
	var r personaRow
	err := s.db.GetContext(ctx, &r, s.db.Rebind(`SELECT
		id, team_id, created_by, name, description, age_range, interests, pain_points, created_at
		FROM personas WHERE id = ? AND team_id = ?`), id, teamID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get persona: %w", err)
	}
	return &Persona{
		ID:          r.ID,
		TeamID:      r.TeamID,
		CreatedBy:   r.CreatedBy,
		Name:        r.Name,
		Description: r.Description,
		AgeRange:    r.AgeRange,
		Interests:   decodeList(r.Interests),
		PainPoints:  decodeList(r.PainPoints),
		CreatedAt:   parseTime(r.CreatedAt),
	}, nil
}

// PutTheme inserts a theme. ID and CreatedAt are assigned if empty.
func (s *SQLStore) PutTheme(ctx context.Context, t *Theme) error {
	if t.ID == "" {
		t.ID = ulid.Make().String()
	}
	if t.CreatedAt.IsZero() {
		t.CreatedAt = time.Now().UTC().Truncate(time.Microsecond)
	}
	keywords, err := encodeList(t.Keywords)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, s.db.Rebind(`INSERT INTO themes
		(id, team_id, created_by, name, description, keywords, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`),
		t.ID, t.TeamID, t.CreatedBy, t.Name, t.Description, keywords, formatTime(t.CreatedAt))
	if err != nil {
		return fmt.Errorf("failed to insert theme: %w", err)
	}
	return nil
}

// GetTheme returns nil if the theme does not exist for this team.
func (s *SQLStore) GetTheme(ctx context.Context, teamID, id string) (*Theme, error) {
	var r themeRow
	err := s.db.GetContext(ctx, &r, s.db.Rebind(`SELECT
		id, team_id, created_by, name, description, keywords, created_at
		FROM themes WHERE id = ? AND team_id = ?`), id, teamID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get theme: %w", err)
	}
	return &Theme{
		ID:          r.ID,
		TeamID:      r.TeamID,
		CreatedBy:   r.CreatedBy,
		Name:        r.Name,
		Description: r.Description,
		Keywords:    decodeList(r.Keywords),
		CreatedAt:   parseTime(r.CreatedAt),
	}, nil
}

// --- Tokens ---

// PutToken stores or replaces the principal for a token hash.
func (s *SQLStore) PutToken(ctx context.Context, tokenHash string, p Principal) error {
	_, err := s.db.ExecContext(ctx, s.db.Rebind(`INSERT INTO api_tokens (token_hash, user_id, team_id, created_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT (token_hash) DO UPDATE SET user_id = excluded.user_id, team_id = excluded.team_id`),
		tokenHash, p.UserID, p.TeamID, formatTime(time.Now()))
	if err != nil {
		return fmt.Errorf("failed to store token: %w", err)
	}
	return nil
}

// GetPrincipal returns nil for unknown tokens.
func (s *SQLStore) GetPrincipal(ctx context.Context, tokenHash string) (*Principal, error) {
	var p struct {
		UserID string `db:"user_id"`
		TeamID string `db:"team_id"`
	}
	err := s.db.GetContext(ctx, &p,
		s.db.Rebind("SELECT user_id, team_id FROM api_tokens WHERE token_hash = ?"), tokenHash)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to look up token: %w", err)
	}
	return &Principal{UserID: p.UserID, TeamID: p.TeamID}, nil
}

var _ Store = (*SQLStore)(nil)
