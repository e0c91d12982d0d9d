package storage

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/chess-vn/rpsarena/internal/domains/entities"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeDynamo struct {
	items     []map[string]types.AttributeValue
	lastQuery *dynamodb.QueryInput
	err       error
}

func (f *fakeDynamo) PutItem(
	_ context.Context,
	params *dynamodb.PutItemInput,
	_ ...func(*dynamodb.Options),
) (*dynamodb.PutItemOutput, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.items = append(f.items, params.Item)
	return &dynamodb.PutItemOutput{}, nil
}

func (f *fakeDynamo) Query(
	_ context.Context,
	params *dynamodb.QueryInput,
	_ ...func(*dynamodb.Options),
) (*dynamodb.QueryOutput, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.lastQuery = params
	want := params.ExpressionAttributeValues[":roomId"].(*types.AttributeValueMemberS).Value
	var items []map[string]types.AttributeValue
	for i := len(f.items) - 1; i >= 0; i-- {
		id, ok := f.items[i]["RoomId"].(*types.AttributeValueMemberS)
		if ok && id.Value == want {
			items = append(items, f.items[i])
		}
	}
	return &dynamodb.QueryOutput{Items: items}, nil
}

func TestRoundRecordsRoundTrip(t *testing.T) {
	fake := &fakeDynamo{}
	client := NewClient(fake, "RoundRecords")
	ctx := context.Background()
	resolvedAt := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)

	record := entities.RoundRecord{
		RoomCode:   "ABCDE",
		ResolvedAt: resolvedAt,
		RoomId:     "room-1",
		Round:      1,
		Players:    []string{"Ann", "Bob"},
		Choices:    map[string]string{"Ann": "rock", "Bob": "scissors"},
		WinnerName: "Ann",
		Reason:     "moves",
	}
	require.NoError(t, client.PutRoundRecord(ctx, record))
	// Same code, earlier room instance.
	require.NoError(t, client.PutRoundRecord(ctx, entities.RoundRecord{
		RoomCode:   "ABCDE",
		ResolvedAt: resolvedAt.Add(-time.Hour),
		RoomId:     "room-0",
		Round:      1,
		Reason:     "timeout",
	}))
	require.Len(t, fake.items, 2)
	_, hasWinner := fake.items[1]["WinnerName"]
	assert.False(t, hasWinner)

	records, err := client.FetchRoundRecords(ctx, "room-1", 20)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, record, records[0])

	require.NotNil(t, fake.lastQuery)
	assert.Equal(t, "RoundRecords", aws.ToString(fake.lastQuery.TableName))
	assert.False(t, aws.ToBool(fake.lastQuery.ScanIndexForward))
	assert.Equal(t, int32(20), aws.ToInt32(fake.lastQuery.Limit))
}

func TestRoundRecordsErrors(t *testing.T) {
	fake := &fakeDynamo{err: errors.New("throttled")}
	client := NewClient(fake, "RoundRecords")

	err := client.PutRoundRecord(context.Background(), entities.RoundRecord{RoomCode: "ABCDE"})
	assert.ErrorContains(t, err, "throttled")

	_, err = client.FetchRoundRecords(context.Background(), "room-1", 5)
	assert.ErrorContains(t, err, "throttled")
}
