// Package dynamo stores feedback in a DynamoDB table keyed by user.
package dynamo

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

	"github.com/m3rciful/dreambot/internal/feedback"
)

const ttl = 180 * 24 * time.Hour

// dynamodbAPI is the subset of *dynamodb.Client the journal uses.
type dynamodbAPI interface {
	PutItem(ctx context.Context, in *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
}

// Journal implements feedback.Journal on DynamoDB.
type Journal struct {
	api   dynamodbAPI
	table string
}

func New(api dynamodbAPI, table string) (*Journal, error) {
	if api == nil {
		return nil, errors.New("dynamo journal: api must not be nil")
	}
	if strings.TrimSpace(table) == "" {
		return nil, errors.New("dynamo journal: table name must not be empty")
	}
	return &Journal{api: api, table: table}, nil
}

func userPK(userID int64) string { return "USER#" + strconv.FormatInt(userID, 10) }

func feedbackSK(e feedback.Entry) string {
	return "FEEDBACK#" + e.CreatedAt.UTC().Format(time.RFC3339Nano) + "#" + e.ID
}

func (j *Journal) Save(ctx context.Context, e feedback.Entry) error {
	item := map[string]types.AttributeValue{
		"PK":         &types.AttributeValueMemberS{Value: userPK(e.UserID)},
		"SK":         &types.AttributeValueMemberS{Value: feedbackSK(e)},
		"id":         &types.AttributeValueMemberS{Value: e.ID},
		"flow":       &types.AttributeValueMemberS{Value: string(e.Flow)},
		"body":       &types.AttributeValueMemberS{Value: e.Text},
		"created_at": &types.AttributeValueMemberS{Value: e.CreatedAt.UTC().Format(time.RFC3339Nano)},
		"ttl":        &types.AttributeValueMemberN{Value: strconv.FormatInt(e.CreatedAt.Add(ttl).Unix(), 10)},
	}
	if e.ReadingID != "" {
		item["reading_id"] = &types.AttributeValueMemberS{Value: e.ReadingID}
	}
	_, err := j.api.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:           aws.String(j.table),
		Item:                item,
		ConditionExpression: aws.String("attribute_not_exists(PK) AND attribute_not_exists(SK)"),
	})
	if err != nil {
		return fmt.Errorf("dynamo journal: put feedback: %w", err)
	}
	return nil
}
