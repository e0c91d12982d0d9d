package storage

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/chess-vn/rpsarena/internal/domains/entities"
)

func (client *Client) PutRoundRecord(ctx context.Context, record entities.RoundRecord) error {
	av, err := attributevalue.MarshalMap(record)
	if err != nil {
		return fmt.Errorf("failed to marshal round record map: %w", err)
	}

	_, err = client.dynamodb.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: client.cfg.RoundsTableName,
		Item:      av,
	})
	if err != nil {
		return fmt.Errorf("failed to put round record: %w", err)
	}
	return nil
}

// FetchRoundRecords returns the most recent rounds of the room instance
// roomId, newest first.
func (client *Client) FetchRoundRecords(
	ctx context.Context,
	roomId string,
	limit int32,
) (
	[]entities.RoundRecord,
	error,
) {
	input := &dynamodb.QueryInput{
		TableName:              client.cfg.RoundsTableName,
		KeyConditionExpression: aws.String("RoomId = :roomId"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":roomId": &types.AttributeValueMemberS{Value: roomId},
		},
		ScanIndexForward: aws.Bool(false),
		Limit:            aws.Int32(limit),
	}
	output, err := client.dynamodb.Query(ctx, input)
	if err != nil {
		return nil, fmt.Errorf("failed to query round records: %w", err)
	}
	var records []entities.RoundRecord
	err = attributevalue.UnmarshalListOfMaps(output.Items, &records)
	if err != nil {
		return nil, fmt.Errorf("failed to unmarshal round records: %w", err)
	}
	return records, nil
}
