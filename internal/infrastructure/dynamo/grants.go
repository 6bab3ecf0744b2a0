package dynamo

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/emmegi/catalog-api/internal/domain"
)

// RoleGrantRepo manages role grants. PK: user_id — PutItem is an idempotent
// upsert, safe to re-run on repeated invite confirmations.
type RoleGrantRepo struct {
	client    *dynamodb.Client
	tableName string
}

func NewRoleGrantRepo(client *dynamodb.Client, tableName string) *RoleGrantRepo {
	return &RoleGrantRepo{client: client, tableName: tableName}
}

func (r *RoleGrantRepo) Upsert(ctx context.Context, g *domain.RoleGrant) error {
	item, err := attributevalue.MarshalMap(g)
	if err != nil {
		return fmt.Errorf("marshal role grant: %w", err)
	}
	_, err = r.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(r.tableName),
		Item:      item,
	})
	return err
}

func (r *RoleGrantRepo) Get(ctx context.Context, userID string) (*domain.RoleGrant, error) {
	out, err := r.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(r.tableName),
		Key:       strKey("user_id", userID),
	})
	if err != nil {
		return nil, err
	}
	if out.Item == nil {
		return nil, fmt.Errorf("role grant not found: %w", domain.ErrNotFound)
	}
	var g domain.RoleGrant
	if err := attributevalue.UnmarshalMap(out.Item, &g); err != nil {
		return nil, err
	}
	return &g, nil
}

// ListByRole returns all grants for a role via the `role-index` GSI.
func (r *RoleGrantRepo) ListByRole(ctx context.Context, role string) ([]domain.RoleGrant, error) {
	out, err := r.client.Query(ctx, &dynamodb.QueryInput{
		TableName:                 aws.String(r.tableName),
		IndexName:                 aws.String("role-index"),
		KeyConditionExpression:    aws.String("#r = :v"),
		ExpressionAttributeNames:  map[string]string{"#r": "role"},
		ExpressionAttributeValues: map[string]types.AttributeValue{":v": &types.AttributeValueMemberS{Value: role}},
	})
	if err != nil {
		return nil, err
	}
	var grants []domain.RoleGrant
	if err := attributevalue.UnmarshalListOfMaps(out.Items, &grants); err != nil {
		return nil, err
	}
	return grants, nil
}
