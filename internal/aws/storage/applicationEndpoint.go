package storage

import (
	"context"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/expression"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/zalachat/zalachat/internal/domains/entities"
)

var (
	ErrApplicationEndpointNotFound = errors.New("application endpoint not found")
	// ErrApplicationEndpointStale means a registration with a later
	// UpdatedAt is already stored for the user.
	ErrApplicationEndpointStale = errors.New("application endpoint registration is stale")
)

func endpointKey(userId string) (map[string]types.AttributeValue, error) {
	key, err := attributevalue.MarshalMap(struct{ UserId string }{userId})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal endpoint key: %w", err)
	}
	return key, nil
}

// GetApplicationEndpoint returns the push endpoint last registered by the
// user's device.
func (client *Client) GetApplicationEndpoint(ctx context.Context, userId string) (entities.ApplicationEndpoint, error) {
	key, err := endpointKey(userId)
	if err != nil {
		return entities.ApplicationEndpoint{}, err
	}
	output, err := client.dynamodb.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:      client.cfg.ApplicationEndpointsTableName,
		Key:            key,
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return entities.ApplicationEndpoint{}, fmt.Errorf("failed to get application endpoint: %w", err)
	}
	if len(output.Item) == 0 {
		return entities.ApplicationEndpoint{}, ErrApplicationEndpointNotFound
	}
	var endpoint entities.ApplicationEndpoint
	if err := attributevalue.UnmarshalMap(output.Item, &endpoint); err != nil {
		return entities.ApplicationEndpoint{}, fmt.Errorf("failed to unmarshal application endpoint: %w", err)
	}
	return endpoint, nil
}

// PutApplicationEndpoint upserts the device registration of the user. A
// registration older than the stored one is refused with
// ErrApplicationEndpointStale; empty optional fields are removed.
func (client *Client) PutApplicationEndpoint(ctx context.Context, endpoint entities.ApplicationEndpoint) error {
	key, err := endpointKey(endpoint.UserId)
	if err != nil {
		return err
	}
	updatedAt := attributevalue.UnixTime(endpoint.UpdatedAt)
	update := expression.
		Set(expression.Name("EndpointArn"), expression.Value(endpoint.EndpointArn)).
		Set(expression.Name("UpdatedAt"), expression.Value(updatedAt))
	optional := []struct{ name, value string }{
		{"DeviceToken", endpoint.DeviceToken},
		{"Platform", endpoint.Platform},
	}
	for _, field := range optional {
		if field.value == "" {
			update = update.Remove(expression.Name(field.name))
		} else {
			update = update.Set(expression.Name(field.name), expression.Value(field.value))
		}
	}
	expr, err := expression.NewBuilder().
		WithUpdate(update).
		WithCondition(expression.AttributeNotExists(expression.Name("UpdatedAt")).
			Or(expression.Name("UpdatedAt").LessThanEqual(expression.Value(updatedAt)))).
		Build()
	if err != nil {
		return fmt.Errorf("failed to build endpoint update: %w", err)
	}
	_, err = client.dynamodb.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:                 client.cfg.ApplicationEndpointsTableName,
		Key:                       key,
		UpdateExpression:          expr.Update(),
		ConditionExpression:       expr.Condition(),
		ExpressionAttributeNames:  expr.Names(),
		ExpressionAttributeValues: expr.Values(),
	})
	if err != nil {
		if isConditionFailed(err) {
			return ErrApplicationEndpointStale
		}
		return fmt.Errorf("failed to put application endpoint: %w", err)
	}
	return nil
}
