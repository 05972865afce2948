package repository

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"portfolio-chat/internal/domain"
)

const (
	skPrefixMsg = "MSG#"
	skMeta      = "META#"

	DefaultTTL = 30 * 24 * time.Hour

	// skTimeLayout is fixed width so sort keys order chronologically.
	skTimeLayout = "2006-01-02T15:04:05.000000000Z"

	// maxTransactItems is DynamoDB's limit per TransactWriteItems call; one
	// slot is used by the META update.
	maxTransactItems = 100
)

// dynamodbAPI is the minimal DynamoDB interface required by DynamoStore.
// Defined here for testability.
type dynamodbAPI interface {
	Query(ctx context.Context, in *dynamodb.QueryInput, optFns ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error)
	TransactWriteItems(ctx context.Context, in *dynamodb.TransactWriteItemsInput, optFns ...func(*dynamodb.Options)) (*dynamodb.TransactWriteItemsOutput, error)
}

// DynamoStore keeps each session turn as its own item:
//
//	PK = CONV#<session id>, SK = MSG#<timestamp>#<seq>
//
// plus one META# item per session that counts turns and tracks activity.
// Items expire through the table's "ttl" attribute.
type DynamoStore struct {
	api       dynamodbAPI
	tableName string
	ttl       time.Duration
	now       func() time.Time
}

// NewDynamoStore creates a DynamoStore. A non-positive ttl uses DefaultTTL.
func NewDynamoStore(api dynamodbAPI, tableName string, ttl time.Duration) (*DynamoStore, error) {
	if api == nil {
		return nil, errors.New("repository: api must not be nil")
	}
	if strings.TrimSpace(tableName) == "" {
		return nil, errors.New("repository: table name must not be empty")
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &DynamoStore{api: api, tableName: tableName, ttl: ttl, now: time.Now}, nil
}

// convPK returns the DynamoDB partition key for a session.
func convPK(sessionID string) string {
	return "CONV#" + sessionID
}

// msgSK returns the sort key for the seq-th turn written at ts.
func msgSK(ts time.Time, seq int) string {
	return fmt.Sprintf("%s%s#%02d", skPrefixMsg, ts.UTC().Format(skTimeLayout), seq)
}

func (s *DynamoStore) ttlValue() int64 {
	return s.now().Add(s.ttl).Unix()
}

// History queries all MSG# items for a session in chronological order,
// following pagination until the partition is exhausted.
func (s *DynamoStore) History(ctx context.Context, sessionID string) ([]domain.ChatMessage, error) {
	if sessionID == "" {
		return nil, errors.New("repository: History: session id is required")
	}
	in := &dynamodb.QueryInput{
		TableName:              aws.String(s.tableName),
		KeyConditionExpression: aws.String("PK = :pk AND begins_with(SK, :prefix)"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":pk":     &types.AttributeValueMemberS{Value: convPK(sessionID)},
			":prefix": &types.AttributeValueMemberS{Value: skPrefixMsg},
		},
		ScanIndexForward: aws.Bool(true),
		ConsistentRead:   aws.Bool(true),
	}

	var turns []domain.ChatMessage
	for {
		out, err := s.api.Query(ctx, in)
		if err != nil {
			return nil, fmt.Errorf("repository: History query: %w", err)
		}
		for _, item := range out.Items {
			msg, err := itemToMessage(item)
			if err != nil {
				return nil, fmt.Errorf("repository: History unmarshal: %w", err)
			}
			turns = append(turns, msg.Turn())
		}
		if len(out.LastEvaluatedKey) == 0 {
			break
		}
		in.ExclusiveStartKey = out.LastEvaluatedKey
	}
	if turns == nil {
		turns = []domain.ChatMessage{}
	}
	return turns, nil
}

// Append writes the turns and the META update in one transaction, so either
// every turn of a cycle is stored or none is.
func (s *DynamoStore) Append(ctx context.Context, sessionID string, turns ...domain.ChatMessage) error {
	if sessionID == "" {
		return errors.New("repository: Append: session id is required")
	}
	if len(turns) == 0 {
		return nil
	}
	if len(turns) >= maxTransactItems {
		return fmt.Errorf("repository: Append: %d turns exceed the transaction limit", len(turns))
	}

	now := s.now().UTC()
	ttl := s.ttlValue()
	items := make([]types.TransactWriteItem, 0, len(turns)+1)
	for i, t := range turns {
		msg := domain.Message{
			PK:        convPK(sessionID),
			SK:        msgSK(now, i),
			SessionID: sessionID,
			Role:      t.Role,
			Content:   t.Content,
			TTL:       ttl,
		}
		items = append(items, types.TransactWriteItem{
			Put: &types.Put{
				TableName:           aws.String(s.tableName),
				Item:                messageItem(msg),
				ConditionExpression: aws.String("attribute_not_exists(PK) AND attribute_not_exists(SK)"),
			},
		})
	}
	items = append(items, types.TransactWriteItem{
		Update: &types.Update{
			TableName: aws.String(s.tableName),
			Key: map[string]types.AttributeValue{
				"PK": &types.AttributeValueMemberS{Value: convPK(sessionID)},
				"SK": &types.AttributeValueMemberS{Value: skMeta},
			},
			UpdateExpression: aws.String("SET sessionId = :sid, lastActivity = :now, #ttl = :ttl ADD turns :n"),
			ExpressionAttributeNames: map[string]string{
				"#ttl": "ttl",
			},
			ExpressionAttributeValues: map[string]types.AttributeValue{
				":sid": &types.AttributeValueMemberS{Value: sessionID},
				":now": &types.AttributeValueMemberS{Value: now.Format(time.RFC3339)},
				":ttl": &types.AttributeValueMemberN{Value: strconv.FormatInt(ttl, 10)},
				":n":   &types.AttributeValueMemberN{Value: strconv.Itoa(len(turns))},
			},
		},
	})

	if _, err := s.api.TransactWriteItems(ctx, &dynamodb.TransactWriteItemsInput{TransactItems: items}); err != nil {
		return fmt.Errorf("repository: Append: %w", err)
	}
	return nil
}

// itemToMessage converts a DynamoDB attribute map to a Message.
func itemToMessage(item map[string]types.AttributeValue) (domain.Message, error) {
	pk, err := strAttr(item, "PK")
	if err != nil {
		return domain.Message{}, err
	}
	sk, err := strAttr(item, "SK")
	if err != nil {
		return domain.Message{}, err
	}
	role, err := strAttr(item, "role")
	if err != nil {
		return domain.Message{}, err
	}
	content, err := strAttr(item, "content")
	if err != nil {
		return domain.Message{}, err
	}
	sessionID, _ := strAttr(item, "sessionId") // allow empty

	return domain.Message{
		PK:        pk,
		SK:        sk,
		SessionID: sessionID,
		Role:      role,
		Content:   content,
	}, nil
}

func messageItem(msg domain.Message) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		"PK":        &types.AttributeValueMemberS{Value: msg.PK},
		"SK":        &types.AttributeValueMemberS{Value: msg.SK},
		"sessionId": &types.AttributeValueMemberS{Value: msg.SessionID},
		"role":      &types.AttributeValueMemberS{Value: msg.Role},
		"content":   &types.AttributeValueMemberS{Value: msg.Content},
		"ttl":       &types.AttributeValueMemberN{Value: strconv.FormatInt(msg.TTL, 10)},
	}
}

func strAttr(item map[string]types.AttributeValue, key string) (string, error) {
	v, ok := item[key]
	if !ok {
		return "", fmt.Errorf("repository: missing attribute %q", key)
	}
	s, ok := v.(*types.AttributeValueMemberS)
	if !ok {
		return "", fmt.Errorf("repository: attribute %q is not a string", key)
	}
	return s.Value, nil
}
