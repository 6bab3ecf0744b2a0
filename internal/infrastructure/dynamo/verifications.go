package dynamo

import (
	"context"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/emmegi/catalog-api/internal/domain"
)

// VerificationRepo manages verification sessions (invite tokens and OTP
// codes). PK: email — a plain PutItem therefore has upsert-by-email
// semantics: issuing a new credential unconditionally replaces whatever
// session was pending for that address. There is no TTL on this table;
// expiry is checked lazily at confirmation time.
type VerificationRepo struct {
	client    *dynamodb.Client
	tableName string
}

func NewVerificationRepo(client *dynamodb.Client, tableName string) *VerificationRepo {
	return &VerificationRepo{client: client, tableName: tableName}
}

// Upsert writes the session, replacing any prior session for the same email.
// Last write wins when two issuance calls race; no stronger ordering is
// provided or needed.
func (r *VerificationRepo) Upsert(ctx context.Context, v *domain.VerificationSession) error {
	item, err := attributevalue.MarshalMap(v)
	if err != nil {
		return fmt.Errorf("marshal verification session: %w", err)
	}
	_, err = r.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(r.tableName),
		Item:      item,
	})
	return err
}

func (r *VerificationRepo) Get(ctx context.Context, email string) (*domain.VerificationSession, error) {
	out, err := r.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(r.tableName),
		Key:       strKey("email", domain.NormalizeEmail(email)),
	})
	if err != nil {
		return nil, err
	}
	if out.Item == nil {
		return nil, fmt.Errorf("verification session not found: %w", domain.ErrNotFound)
	}
	var v domain.VerificationSession
	if err := attributevalue.UnmarshalMap(out.Item, &v); err != nil {
		return nil, err
	}
	return &v, nil
}

// Claim flips verified false->true, but only if the stored code and kind
// still match and the session has not been claimed yet. The conditional
// write makes concurrent confirmations single-winner: the loser gets
// domain.ErrConflict and must not perform any side effect.
func (r *VerificationRepo) Claim(ctx context.Context, email, code, kind string) error {
	_, err := r.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:           aws.String(r.tableName),
		Key:                 strKey("email", domain.NormalizeEmail(email)),
		UpdateExpression:    aws.String("SET verified = :t"),
		ConditionExpression: aws.String("attribute_exists(email) AND code = :c AND kind = :k AND verified = :f"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":t": &types.AttributeValueMemberBOOL{Value: true},
			":f": &types.AttributeValueMemberBOOL{Value: false},
			":c": &types.AttributeValueMemberS{Value: code},
			":k": &types.AttributeValueMemberS{Value: kind},
		},
	})
	if err != nil {
		var ccf *types.ConditionalCheckFailedException
		if errors.As(err, &ccf) {
			return fmt.Errorf("session already claimed or changed: %w", domain.ErrConflict)
		}
		return err
	}
	return nil
}

// Unclaim is the best-effort rollback used when a downstream identity
// mutation fails after a successful Claim, so the still-valid credential can
// be retried.
func (r *VerificationRepo) Unclaim(ctx context.Context, email string) error {
	_, err := r.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:        aws.String(r.tableName),
		Key:              strKey("email", domain.NormalizeEmail(email)),
		UpdateExpression: aws.String("SET verified = :f"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":f": &types.AttributeValueMemberBOOL{Value: false},
		},
	})
	return err
}

// Delete removes the session row. Used only on explicit invite decline so a
// future re-invite starts clean.
func (r *VerificationRepo) Delete(ctx context.Context, email string) error {
	_, err := r.client.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName: aws.String(r.tableName),
		Key:       strKey("email", domain.NormalizeEmail(email)),
	})
	return err
}
