package repository

import (
	"context"
	"errors"
	"sort"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/stretchr/testify/require"

	"portfolio-chat/internal/domain"
)

type fakeDynamo struct {
	queryPages  []*dynamodb.QueryOutput
	queryErr    error
	txErr       error
	queryInputs []dynamodb.QueryInput
	lastTxInput *dynamodb.TransactWriteItemsInput
}

func (f *fakeDynamo) Query(_ context.Context, in *dynamodb.QueryInput, _ ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error) {
	f.queryInputs = append(f.queryInputs, *in)
	if f.queryErr != nil {
		return nil, f.queryErr
	}
	page := f.queryPages[0]
	f.queryPages = f.queryPages[1:]
	return page, nil
}

func (f *fakeDynamo) TransactWriteItems(_ context.Context, in *dynamodb.TransactWriteItemsInput, _ ...func(*dynamodb.Options)) (*dynamodb.TransactWriteItemsOutput, error) {
	f.lastTxInput = in
	return &dynamodb.TransactWriteItemsOutput{}, f.txErr
}

func makeItem(sk, role, content string) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		"PK":      &types.AttributeValueMemberS{Value: "CONV#abc"},
		"SK":      &types.AttributeValueMemberS{Value: sk},
		"role":    &types.AttributeValueMemberS{Value: role},
		"content": &types.AttributeValueMemberS{Value: content},
	}
}

func mustNewStore(t *testing.T, db *fakeDynamo) *DynamoStore {
	t.Helper()
	s, err := NewDynamoStore(db, "test-table", time.Hour)
	require.NoError(t, err)
	s.now = func() time.Time { return time.Date(2026, 3, 1, 12, 0, 0, 500, time.UTC) }
	return s
}

func sv(v types.AttributeValue) string {
	return v.(*types.AttributeValueMemberS).Value
}

func nv(v types.AttributeValue) string {
	return v.(*types.AttributeValueMemberN).Value
}

func TestNewDynamoStore_Validation(t *testing.T) {
	_, err := NewDynamoStore(nil, "t", 0)
	require.ErrorContains(t, err, "api must not be nil")

	_, err = NewDynamoStore(&fakeDynamo{}, " ", 0)
	require.ErrorContains(t, err, "table name")

	s, err := NewDynamoStore(&fakeDynamo{}, "t", 0)
	require.NoError(t, err)
	require.Equal(t, DefaultTTL, s.ttl)
}

func TestMsgSK_SortsChronologically(t *testing.T) {
	base := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	keys := []string{
		msgSK(base.Add(time.Second), 0),
		msgSK(base.Add(100*time.Millisecond), 1),
		msgSK(base.Add(100*time.Millisecond), 0),
		msgSK(base, 0),
		msgSK(base.Add(time.Nanosecond), 0),
	}
	sorted := append([]string(nil), keys...)
	sort.Strings(sorted)
	require.Equal(t, []string{keys[3], keys[4], keys[2], keys[1], keys[0]}, sorted)
	require.Equal(t, "MSG#2026-01-02T03:04:05.000000000Z#00", keys[3])
}

func TestHistory_SinglePage(t *testing.T) {
	db := &fakeDynamo{queryPages: []*dynamodb.QueryOutput{{Items: []map[string]types.AttributeValue{
		makeItem("MSG#1#00", domain.RoleUser, "hi"),
		makeItem("MSG#1#01", domain.RoleAssistant, "hello"),
	}}}}
	s := mustNewStore(t, db)

	turns, err := s.History(context.Background(), "abc")
	require.NoError(t, err)
	require.Equal(t, []domain.ChatMessage{
		domain.UserMessage("hi"),
		domain.AssistantMessage("hello"),
	}, turns)

	in := db.queryInputs[0]
	require.Equal(t, "test-table", *in.TableName)
	require.True(t, *in.ScanIndexForward)
	require.Equal(t, "CONV#abc", sv(in.ExpressionAttributeValues[":pk"]))
	require.Equal(t, "MSG#", sv(in.ExpressionAttributeValues[":prefix"]))
}

func TestHistory_FollowsPagination(t *testing.T) {
	lastKey := map[string]types.AttributeValue{
		"PK": &types.AttributeValueMemberS{Value: "CONV#abc"},
		"SK": &types.AttributeValueMemberS{Value: "MSG#1#00"},
	}
	db := &fakeDynamo{queryPages: []*dynamodb.QueryOutput{
		{Items: []map[string]types.AttributeValue{makeItem("MSG#1#00", domain.RoleUser, "one")}, LastEvaluatedKey: lastKey},
		{Items: []map[string]types.AttributeValue{makeItem("MSG#1#01", domain.RoleAssistant, "two")}},
	}}
	s := mustNewStore(t, db)

	turns, err := s.History(context.Background(), "abc")
	require.NoError(t, err)
	require.Len(t, turns, 2)
	require.Equal(t, "two", turns[1].Content)
	require.Len(t, db.queryInputs, 2)
	require.Nil(t, db.queryInputs[0].ExclusiveStartKey)
	require.Equal(t, lastKey, db.queryInputs[1].ExclusiveStartKey)
}

func TestHistory_Empty(t *testing.T) {
	db := &fakeDynamo{queryPages: []*dynamodb.QueryOutput{{}}}
	s := mustNewStore(t, db)

	turns, err := s.History(context.Background(), "abc")
	require.NoError(t, err)
	require.NotNil(t, turns)
	require.Empty(t, turns)
}

func TestHistory_QueryError(t *testing.T) {
	s := mustNewStore(t, &fakeDynamo{queryErr: errors.New("throttled")})
	_, err := s.History(context.Background(), "abc")
	require.ErrorContains(t, err, "History query")
	require.ErrorContains(t, err, "throttled")
}

func TestHistory_MalformedItem(t *testing.T) {
	item := makeItem("MSG#1#00", domain.RoleUser, "hi")
	delete(item, "content")
	s := mustNewStore(t, &fakeDynamo{queryPages: []*dynamodb.QueryOutput{{Items: []map[string]types.AttributeValue{item}}}})

	_, err := s.History(context.Background(), "abc")
	require.ErrorContains(t, err, `missing attribute "content"`)
}

func TestHistory_RequiresSessionID(t *testing.T) {
	s := mustNewStore(t, &fakeDynamo{})
	_, err := s.History(context.Background(), "")
	require.Error(t, err)
}

func TestAppend_WritesTurnsAndMetaInOneTransaction(t *testing.T) {
	db := &fakeDynamo{}
	s := mustNewStore(t, db)

	err := s.Append(context.Background(), "abc", domain.UserMessage("q"), domain.AssistantMessage("a"))
	require.NoError(t, err)

	items := db.lastTxInput.TransactItems
	require.Len(t, items, 3)

	user := items[0].Put
	require.NotNil(t, user)
	require.Equal(t, "test-table", *user.TableName)
	require.Equal(t, "CONV#abc", sv(user.Item["PK"]))
	require.Equal(t, "MSG#2026-03-01T12:00:00.000000500Z#00", sv(user.Item["SK"]))
	require.Equal(t, domain.RoleUser, sv(user.Item["role"]))
	require.Equal(t, "q", sv(user.Item["content"]))
	wantTTL := time.Date(2026, 3, 1, 13, 0, 0, 500, time.UTC).Unix()
	require.Equal(t, strconv.FormatInt(wantTTL, 10), nv(user.Item["ttl"]))
	require.Contains(t, *user.ConditionExpression, "attribute_not_exists")

	assistant := items[1].Put
	require.Equal(t, "MSG#2026-03-01T12:00:00.000000500Z#01", sv(assistant.Item["SK"]))
	require.Equal(t, domain.RoleAssistant, sv(assistant.Item["role"]))
	require.Less(t, sv(user.Item["SK"]), sv(assistant.Item["SK"]))

	meta := items[2].Update
	require.NotNil(t, meta)
	require.Equal(t, "META#", sv(meta.Key["SK"]))
	require.True(t, strings.Contains(*meta.UpdateExpression, "ADD turns :n"))
	require.Equal(t, "2", nv(meta.ExpressionAttributeValues[":n"]))
	require.Equal(t, "ttl", meta.ExpressionAttributeNames["#ttl"])
}

func TestAppend_NoTurnsIsNoop(t *testing.T) {
	db := &fakeDynamo{}
	s := mustNewStore(t, db)
	require.NoError(t, s.Append(context.Background(), "abc"))
	require.Nil(t, db.lastTxInput)
}

func TestAppend_TooManyTurns(t *testing.T) {
	s := mustNewStore(t, &fakeDynamo{})
	turns := make([]domain.ChatMessage, maxTransactItems)
	require.ErrorContains(t, s.Append(context.Background(), "abc", turns...), "transaction limit")
}

func TestAppend_TransactionError(t *testing.T) {
	s := mustNewStore(t, &fakeDynamo{txErr: errors.New("conditional check failed")})
	err := s.Append(context.Background(), "abc", domain.UserMessage("q"))
	require.ErrorContains(t, err, "repository: Append")
	require.ErrorContains(t, err, "conditional check failed")
}
