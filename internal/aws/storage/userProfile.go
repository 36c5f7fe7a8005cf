package storage

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/zalachat/zalachat/internal/domains/entities"
)

// PutUserProfile writes the directory record once; re-delivered
// confirmation events leave the first record in place.
func (client *Client) PutUserProfile(ctx context.Context, profile entities.UserProfile) error {
	av, err := attributevalue.MarshalMap(profile)
	if err != nil {
		return fmt.Errorf("failed to marshal user profile: %w", err)
	}
	_, err = client.dynamodb.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:           client.cfg.UserProfilesTableName,
		Item:                av,
		ConditionExpression: aws.String("attribute_not_exists(UserId)"),
	})
	if err != nil {
		if isConditionFailed(err) {
			return nil
		}
		return fmt.Errorf("failed to put user profile: %w", err)
	}
	return nil
}
