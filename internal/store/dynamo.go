package store

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/oklog/ulid/v2"
	"github.com/rs/zerolog/log"
)

// DynamoDB key constants for the single-table design.
//
//	PK            SK               item
//	TEAM#<id>     ENTITLEMENT      balances + freeUsed map
//	TEAM#<id>     LEDGER#<ulid>    ledger entry
//	TEAM#<id>     PERSONA#<id>     persona
//	TEAM#<id>     THEME#<id>       theme
//	TOKEN#<hash>  META             principal
const (
	teamPrefix    = "TEAM#"
	tokenPrefix   = "TOKEN#"
	skEntitlement = "ENTITLEMENT"
	skLedger      = "LEDGER#"
	skPersona     = "PERSONA#"
	skTheme       = "THEME#"
	skMeta        = "META"

	// maxSettleAttempts bounds the optimistic read-then-conditional-write
	// loop before giving up with ErrConflict.
	maxSettleAttempts = 3
)

// DynamoStore implements Store using AWS DynamoDB.
type DynamoStore struct {
	client    *dynamodb.Client
	tableName string
}

// Compile-time interface check.
var _ Store = (*DynamoStore)(nil)

// NewDynamoStore creates a DynamoStore for the given table.
// The client should be initialized from the shared AWS config.
func NewDynamoStore(client *dynamodb.Client, tableName string) *DynamoStore {
	return &DynamoStore{
		client:    client,
		tableName: tableName,
	}
}

// --- Internal helpers ---

func teamPK(teamID string) string {
	return teamPrefix + teamID
}

func key(pk, sk string) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		"PK": &types.AttributeValueMemberS{Value: pk},
		"SK": &types.AttributeValueMemberS{Value: sk},
	}
}

func numberAttr(n int64) *types.AttributeValueMemberN {
	return &types.AttributeValueMemberN{Value: strconv.FormatInt(n, 10)}
}

// marshalItem marshals a domain object and adds its PK/SK.
// The domain object should use dynamodbav:"-" for fields derived from PK/SK.
func marshalItem(pk, sk string, data interface{}) (map[string]types.AttributeValue, error) {
	item, err := attributevalue.MarshalMap(data)
	if err != nil {
		return nil, fmt.Errorf("marshal: %w", err)
	}
	item["PK"] = &types.AttributeValueMemberS{Value: pk}
	item["SK"] = &types.AttributeValueMemberS{Value: sk}
	return item, nil
}

// putNew writes an item that must not already exist.
func (s *DynamoStore) putNew(ctx context.Context, pk, sk string, data interface{}) error {
	item, err := marshalItem(pk, sk, data)
	if err != nil {
		return err
	}
	_, err = s.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:           &s.tableName,
		Item:                item,
		ConditionExpression: aws.String("attribute_not_exists(PK)"),
	})
	if err != nil {
		return fmt.Errorf("PutItem PK=%s SK=%s: %w", pk, sk, err)
	}
	return nil
}

// getItem reads a single item from DynamoDB and unmarshals it into out.
// Returns false if the item does not exist (out is not modified).
func (s *DynamoStore) getItem(ctx context.Context, pk, sk string, consistent bool, out interface{}) (bool, error) {
	result, err := s.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:      &s.tableName,
		Key:            key(pk, sk),
		ConsistentRead: aws.Bool(consistent),
	})
	if err != nil {
		return false, fmt.Errorf("GetItem PK=%s SK=%s: %w", pk, sk, err)
	}
	if result.Item == nil {
		return false, nil
	}
	if err := attributevalue.UnmarshalMap(result.Item, out); err != nil {
		return false, fmt.Errorf("unmarshal PK=%s SK=%s: %w", pk, sk, err)
	}
	return true, nil
}

func isConditionFailed(err error) bool {
	var ccf *types.ConditionalCheckFailedException
	if errors.As(err, &ccf) {
		return true
	}
	var tce *types.TransactionCanceledException
	if errors.As(err, &tce) {
		for _, r := range tce.CancellationReasons {
			if aws.ToString(r.Code) == "ConditionalCheckFailed" {
				return true
			}
		}
	}
	return false
}

// --- Entitlements ---

// entitlementItem is the stored shape; freeUsed keys are plain strings.
type entitlementItem struct {
	Credits      int64          `dynamodbav:"credits"`
	ImageCredits int64          `dynamodbav:"imageCredits"`
	FreeUsed     map[string]int `dynamodbav:"freeUsed"`
	UpdatedAt    int64          `dynamodbav:"updatedAt"`
}

func (e entitlementItem) toEntitlement(teamID string) *Entitlement {
	ent := &Entitlement{
		TeamID:       teamID,
		Credits:      e.Credits,
		ImageCredits: e.ImageCredits,
		FreeUsed:     make(map[ActionType]int, len(e.FreeUsed)),
		UpdatedAt:    e.UpdatedAt,
	}
	for k, v := range e.FreeUsed {
		ent.FreeUsed[ActionType(k)] = v
	}
	return ent
}

func (s *DynamoStore) GetEntitlement(ctx context.Context, teamID string) (*Entitlement, error) {
	var item entitlementItem
	if _, err := s.getItem(ctx, teamPK(teamID), skEntitlement, false, &item); err != nil {
		return nil, fmt.Errorf("get entitlement %s: %w", teamID, err)
	}
	return item.toEntitlement(teamID), nil
}

// ensureEntitlement creates an empty entitlement item so later updates can
// address freeUsed.<action> paths.
func (s *DynamoStore) ensureEntitlement(ctx context.Context, teamID string) error {
	_, err := s.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: &s.tableName,
		Item: map[string]types.AttributeValue{
			"PK":           &types.AttributeValueMemberS{Value: teamPK(teamID)},
			"SK":           &types.AttributeValueMemberS{Value: skEntitlement},
			"credits":      numberAttr(0),
			"imageCredits": numberAttr(0),
			"freeUsed":     &types.AttributeValueMemberM{Value: map[string]types.AttributeValue{}},
			"updatedAt":    numberAttr(time.Now().Unix()),
		},
		ConditionExpression: aws.String("attribute_not_exists(PK)"),
	})
	if err != nil && !isConditionFailed(err) {
		return fmt.Errorf("ensure entitlement %s: %w", teamID, err)
	}
	return nil
}

func (s *DynamoStore) readEntitlement(ctx context.Context, teamID string) (*Entitlement, error) {
	if err := s.ensureEntitlement(ctx, teamID); err != nil {
		return nil, err
	}
	var item entitlementItem
	if _, err := s.getItem(ctx, teamPK(teamID), skEntitlement, true, &item); err != nil {
		return nil, err
	}
	return item.toEntitlement(teamID), nil
}

func poolAttr(p Pool) (string, error) {
	switch p {
	case PoolCredits:
		return "credits", nil
	case PoolImageCredits:
		return "imageCredits", nil
	default:
		return "", fmt.Errorf("unknown pool %q", p)
	}
}

// Settle reads the entitlement, decides between the free counter and the
// pool, and commits the counter/balance update together with the ledger
// entry in one transaction conditioned on the values it read. A lost race
// re-reads and decides again.
func (s *DynamoStore) Settle(ctx context.Context, p SettleParams) (*LedgerEntry, error) {
	attr, err := poolAttr(p.Pool)
	if err != nil {
		return nil, err
	}

	for attempt := 1; attempt <= maxSettleAttempts; attempt++ {
		ent, err := s.readEntitlement(ctx, p.TeamID)
		if err != nil {
			return nil, err
		}
		balance := ent.Balance(p.Pool)
		now := time.Now()

		var update *types.Update
		var entry *LedgerEntry
		used := ent.FreeUsed[p.Action]
		if p.FreeGranted > 0 && used < p.FreeGranted {
			cond := "#pool = :balance AND freeUsed.#action = :used"
			if used == 0 {
				cond = "#pool = :balance AND (attribute_not_exists(freeUsed.#action) OR freeUsed.#action = :used)"
			}
			update = &types.Update{
				TableName:           &s.tableName,
				Key:                 key(teamPK(p.TeamID), skEntitlement),
				UpdateExpression:    aws.String("SET freeUsed.#action = :next, updatedAt = :now"),
				ConditionExpression: aws.String(cond),
				ExpressionAttributeNames: map[string]string{
					"#pool":   attr,
					"#action": string(p.Action),
				},
				ExpressionAttributeValues: map[string]types.AttributeValue{
					":balance": numberAttr(balance),
					":used":    numberAttr(int64(used)),
					":next":    numberAttr(int64(used + 1)),
					":now":     numberAttr(now.Unix()),
				},
			}
			entry = newEntry(p.TeamID, p.UserID, p.Action, p.Pool, 0, balance, now)
			entry.Free = true
		} else {
			amount := settleAmount(p)
			if balance < amount {
				return nil, ErrInsufficientBalance
			}
			update = &types.Update{
				TableName:                &s.tableName,
				Key:                      key(teamPK(p.TeamID), skEntitlement),
				UpdateExpression:         aws.String("SET #pool = :after, updatedAt = :now"),
				ConditionExpression:      aws.String("#pool = :balance"),
				ExpressionAttributeNames: map[string]string{"#pool": attr},
				ExpressionAttributeValues: map[string]types.AttributeValue{
					":balance": numberAttr(balance),
					":after":   numberAttr(balance - amount),
					":now":     numberAttr(now.Unix()),
				},
			}
			entry = newEntry(p.TeamID, p.UserID, p.Action, p.Pool, amount, balance, now)
		}
		entry.Description = p.Description
		entry.Metadata = p.Metadata

		err = s.commitWithEntry(ctx, update, entry)
		if err == nil {
			log.Debug().
				Str("teamId", p.TeamID).
				Str("action", string(p.Action)).
				Bool("free", entry.Free).
				Int64("balanceAfter", entry.BalanceAfter).
				Int("attempt", attempt).
				Msg("Usage settled")
			return entry, nil
		}
		if !isConditionFailed(err) {
			return nil, err
		}
		log.Debug().Str("teamId", p.TeamID).Int("attempt", attempt).Msg("Settle lost a race, retrying")
	}
	return nil, ErrConflict
}

// Grant credits a pool with the same optimistic transaction as Settle.
func (s *DynamoStore) Grant(ctx context.Context, p GrantParams) (*LedgerEntry, error) {
	if p.Amount <= 0 {
		return nil, fmt.Errorf("grant amount must be positive, got %d", p.Amount)
	}
	attr, err := poolAttr(p.Pool)
	if err != nil {
		return nil, err
	}

	for attempt := 1; attempt <= maxSettleAttempts; attempt++ {
		ent, err := s.readEntitlement(ctx, p.TeamID)
		if err != nil {
			return nil, err
		}
		balance := ent.Balance(p.Pool)
		now := time.Now()
		update := &types.Update{
			TableName:                &s.tableName,
			Key:                      key(teamPK(p.TeamID), skEntitlement),
			UpdateExpression:         aws.String("SET #pool = :after, updatedAt = :now"),
			ConditionExpression:      aws.String("#pool = :balance"),
			ExpressionAttributeNames: map[string]string{"#pool": attr},
			ExpressionAttributeValues: map[string]types.AttributeValue{
				":balance": numberAttr(balance),
				":after":   numberAttr(balance + p.Amount),
				":now":     numberAttr(now.Unix()),
			},
		}
		entry := newEntry(p.TeamID, p.UserID, ActionCreditGrant, p.Pool, -p.Amount, balance, now)
		entry.Description = p.Description

		err = s.commitWithEntry(ctx, update, entry)
		if err == nil {
			return entry, nil
		}
		if !isConditionFailed(err) {
			return nil, err
		}
	}
	return nil, ErrConflict
}

func (s *DynamoStore) commitWithEntry(ctx context.Context, update *types.Update, entry *LedgerEntry) error {
	item, err := marshalItem(teamPK(entry.TeamID), skLedger+entry.ID, entry)
	if err != nil {
		return err
	}
	_, err = s.client.TransactWriteItems(ctx, &dynamodb.TransactWriteItemsInput{
		TransactItems: []types.TransactWriteItem{
			{Update: update},
			{Put: &types.Put{
				TableName:           &s.tableName,
				Item:                item,
				ConditionExpression: aws.String("attribute_not_exists(PK)"),
			}},
		},
	})
	if err != nil {
		return fmt.Errorf("TransactWriteItems team=%s entry=%s: %w", entry.TeamID, entry.ID, err)
	}
	return nil
}

// ListLedger queries ledger items newest first. ULID sort keys order by
// creation time.
func (s *DynamoStore) ListLedger(ctx context.Context, teamID string, limit int) ([]LedgerEntry, error) {
	pk := teamPK(teamID)
	result, err := s.client.Query(ctx, &dynamodb.QueryInput{
		TableName:              &s.tableName,
		KeyConditionExpression: aws.String("PK = :pk AND begins_with(SK, :sk)"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":pk": &types.AttributeValueMemberS{Value: pk},
			":sk": &types.AttributeValueMemberS{Value: skLedger},
		},
		ScanIndexForward: aws.Bool(false),
		Limit:            aws.Int32(int32(ledgerLimit(limit))),
	})
	if err != nil {
		return nil, fmt.Errorf("Query ledger PK=%s: %w", pk, err)
	}

	entries := make([]LedgerEntry, 0, len(result.Items))
	for _, item := range result.Items {
		var e LedgerEntry
		if err := attributevalue.UnmarshalMap(item, &e); err != nil {
			log.Warn().Err(err).Str("pk", pk).Msg("Failed to unmarshal ledger entry, skipping")
			continue
		}
		entries = append(entries, e)
	}
	return entries, nil
}

// --- Personas & themes ---

func (s *DynamoStore) PutPersona(ctx context.Context, p *Persona) error {
	if p.ID == "" {
		p.ID = ulid.Make().String()
	}
	if p.CreatedAt.IsZero() {
		p.CreatedAt = time.Now().UTC()
	}
	if err := s.putNew(ctx, teamPK(p.TeamID), skPersona+p.ID, p); err != nil {
		return fmt.Errorf("put persona %s/%s: %w", p.TeamID, p.ID, err)
	}
	log.Debug().Str("teamId", p.TeamID).Str("personaId", p.ID).Msg("Persona stored")
	return nil
}

func (s *DynamoStore) GetPersona(ctx context.Context, teamID, id string) (*Persona, error) {
	var p Persona
	found, err := s.getItem(ctx, teamPK(teamID), skPersona+id, false, &p)
	if err != nil {
		return nil, fmt.Errorf("get persona %s/%s: %w", teamID, id, err)
	}
	if !found {
		return nil, nil
	}
	p.ID = id
	p.TeamID = teamID
	return &p, nil
}

func (s *DynamoStore) PutTheme(ctx context.Context, t *Theme) error {
	if t.ID == "" {
		t.ID = ulid.Make().String()
	}
	if t.CreatedAt.IsZero() {
		t.CreatedAt = time.Now().UTC()
	}
	if err := s.putNew(ctx, teamPK(t.TeamID), skTheme+t.ID, t); err != nil {
		return fmt.Errorf("put theme %s/%s: %w", t.TeamID, t.ID, err)
	}
	log.Debug().Str("teamId", t.TeamID).Str("themeId", t.ID).Msg("Theme stored")
	return nil
}

func (s *DynamoStore) GetTheme(ctx context.Context, teamID, id string) (*Theme, error) {
	var t Theme
	found, err := s.getItem(ctx, teamPK(teamID), skTheme+id, false, &t)
	if err != nil {
		return nil, fmt.Errorf("get theme %s/%s: %w", teamID, id, err)
	}
	if !found {
		return nil, nil
	}
	t.ID = id
	t.TeamID = teamID
	return &t, nil
}

// --- Tokens ---

func (s *DynamoStore) PutToken(ctx context.Context, tokenHash string, p Principal) error {
	item, err := marshalItem(tokenPrefix+tokenHash, skMeta, p)
	if err != nil {
		return err
	}
	_, err = s.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: &s.tableName,
		Item:      item,
	})
	if err != nil {
		return fmt.Errorf("put token for user %s: %w", p.UserID, err)
	}
	return nil
}

func (s *DynamoStore) GetPrincipal(ctx context.Context, tokenHash string) (*Principal, error) {
	var p Principal
	found, err := s.getItem(ctx, tokenPrefix+tokenHash, skMeta, false, &p)
	if err != nil {
		return nil, fmt.Errorf("get token: %w", err)
	}
	if !found {
		return nil, nil
	}
	return &p, nil
}
