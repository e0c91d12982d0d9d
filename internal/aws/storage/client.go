package storage

import (
	"context"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
)

// dynamoAPI is the subset of the DynamoDB client the storage layer calls.
type dynamoAPI interface {
	PutItem(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	Query(ctx context.Context, params *dynamodb.QueryInput, optFns ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error)
}

type Client struct {
	dynamodb dynamoAPI
	cfg      config
}

type config struct {
	RoundsTableName *string
}

func NewClient(dynamoClient dynamoAPI, roundsTableName string) *Client {
	return &Client{
		dynamodb: dynamoClient,
		cfg: config{
			RoundsTableName: aws.String(roundsTableName),
		},
	}
}
