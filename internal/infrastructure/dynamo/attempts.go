package dynamo

import (
	"context"
	"strconv"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/emmegi/catalog-api/internal/domain"
)

// AttemptRepo tracks failed-login counters. PK: email (normalized).
// Increment uses an atomic ADD so concurrent failures cannot lose updates.
type AttemptRepo struct {
	client    *dynamodb.Client
	tableName string
}

func NewAttemptRepo(client *dynamodb.Client, tableName string) *AttemptRepo {
	return &AttemptRepo{client: client, tableName: tableName}
}

func (r *AttemptRepo) Get(ctx context.Context, email string) (*domain.LoginAttempt, error) {
	out, err := r.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(r.tableName),
		Key:       strKey("email", domain.NormalizeEmail(email)),
	})
	if err != nil {
		return nil, err
	}
	if out.Item == nil {
		// No row means no failures recorded.
		return &domain.LoginAttempt{Email: domain.NormalizeEmail(email)}, nil
	}
	var a domain.LoginAttempt
	if err := attributevalue.UnmarshalMap(out.Item, &a); err != nil {
		return nil, err
	}
	return &a, nil
}

// Increment atomically bumps the failure counter and returns the new value.
func (r *AttemptRepo) Increment(ctx context.Context, email string) (int, error) {
	out, err := r.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:        aws.String(r.tableName),
		Key:              strKey("email", domain.NormalizeEmail(email)),
		UpdateExpression: aws.String("ADD failed_count :one SET updated_at = :now"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":one": &types.AttributeValueMemberN{Value: "1"},
			":now": &types.AttributeValueMemberN{Value: strconv.FormatInt(time.Now().Unix(), 10)},
		},
		ReturnValues: types.ReturnValueUpdatedNew,
	})
	if err != nil {
		return 0, err
	}
	n, ok := out.Attributes["failed_count"].(*types.AttributeValueMemberN)
	if !ok {
		return 0, nil
	}
	count, _ := strconv.Atoi(n.Value)
	return count, nil
}

// Reset clears the counter. Called after a successful login or a completed
// password reset.
func (r *AttemptRepo) Reset(ctx context.Context, email string) error {
	_, err := r.client.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName: aws.String(r.tableName),
		Key:       strKey("email", domain.NormalizeEmail(email)),
	})
	return err
}
