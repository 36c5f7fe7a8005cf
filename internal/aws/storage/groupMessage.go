package storage

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/expression"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/zalachat/zalachat/internal/domains/entities"
)

func groupMessageKey(groupId, timestamp string) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		"GroupId":   &types.AttributeValueMemberS{Value: groupId},
		"Timestamp": &types.AttributeValueMemberS{Value: timestamp},
	}
}

func (client *Client) PutGroupMessage(ctx context.Context, message entities.GroupMessage) error {
	av, err := attributevalue.MarshalMap(message)
	if err != nil {
		return fmt.Errorf("failed to marshal group message: %w", err)
	}
	expr, err := expression.NewBuilder().
		WithCondition(expression.AttributeNotExists(expression.Name("Timestamp"))).
		Build()
	if err != nil {
		return err
	}
	_, err = client.dynamodb.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:                client.cfg.GroupMessagesTableName,
		Item:                     av,
		ConditionExpression:      expr.Condition(),
		ExpressionAttributeNames: expr.Names(),
	})
	if err != nil {
		if isConditionFailed(err) {
			return ErrMessageExists
		}
		return fmt.Errorf("failed to put group message: %w", err)
	}
	return nil
}

func (client *Client) UpdateGroupMessage(
	ctx context.Context,
	groupId,
	timestamp string,
	opts MessageUpdateOptions,
) (
	entities.GroupMessage,
	error,
) {
	update, ok := opts.update()
	if !ok {
		return entities.GroupMessage{}, fmt.Errorf("empty message update")
	}
	expr, err := expression.NewBuilder().
		WithUpdate(update).
		WithCondition(expression.AttributeExists(expression.Name("Timestamp"))).
		Build()
	if err != nil {
		return entities.GroupMessage{}, fmt.Errorf("failed to build group message update: %w", err)
	}
	output, err := client.dynamodb.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:                 client.cfg.GroupMessagesTableName,
		Key:                       groupMessageKey(groupId, timestamp),
		UpdateExpression:          expr.Update(),
		ConditionExpression:       expr.Condition(),
		ExpressionAttributeNames:  expr.Names(),
		ExpressionAttributeValues: expr.Values(),
		ReturnValues:              types.ReturnValueAllNew,
	})
	if err != nil {
		if isConditionFailed(err) {
			return entities.GroupMessage{}, ErrMessageNotFound
		}
		return entities.GroupMessage{}, fmt.Errorf("failed to update group message: %w", err)
	}
	var message entities.GroupMessage
	if err := attributevalue.UnmarshalMap(output.Attributes, &message); err != nil {
		return entities.GroupMessage{}, err
	}
	return message, nil
}
