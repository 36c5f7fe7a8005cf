package storage

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/expression"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/zalachat/zalachat/internal/domains/entities"
)

var (
	ErrMessageNotFound = fmt.Errorf("message not found")
	ErrMessageExists   = fmt.Errorf("message already exists")
)

// MessageUpdateOptions lists the mutable fields of a message. Nil fields are
// left untouched; ClearReaction removes the reaction attribute.
type MessageUpdateOptions struct {
	Status        *entities.MessageStatus
	Type          *entities.MessageType
	Reaction      *string
	ClearReaction bool
}

func (opts MessageUpdateOptions) update() (expression.UpdateBuilder, bool) {
	var (
		update expression.UpdateBuilder
		set    bool
	)
	if opts.Status != nil {
		update = update.Set(expression.Name("Status"), expression.Value(*opts.Status))
		set = true
	}
	if opts.Type != nil {
		update = update.Set(expression.Name("Type"), expression.Value(*opts.Type))
		set = true
	}
	switch {
	case opts.ClearReaction:
		update = update.Remove(expression.Name("Reaction"))
		set = true
	case opts.Reaction != nil:
		update = update.Set(expression.Name("Reaction"), expression.Value(*opts.Reaction))
		set = true
	}
	return update, set
}

// stringSet marshals as a DynamoDB string set rather than a list, which is
// what ADD needs to keep set semantics.
type stringSet []string

func (s stringSet) MarshalDynamoDBAttributeValue() (types.AttributeValue, error) {
	return &types.AttributeValueMemberSS{Value: s}, nil
}

func messageKey(conversationId, timestamp string) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		"ConversationId": &types.AttributeValueMemberS{Value: conversationId},
		"Timestamp":      &types.AttributeValueMemberS{Value: timestamp},
	}
}

// PutMessage appends a message. The sort key is never overwritten.
func (client *Client) PutMessage(ctx context.Context, message entities.Message) error {
	av, err := attributevalue.MarshalMap(message)
	if err != nil {
		return fmt.Errorf("failed to marshal message: %w", err)
	}
	expr, err := expression.NewBuilder().
		WithCondition(expression.AttributeNotExists(expression.Name("Timestamp"))).
		Build()
	if err != nil {
		return err
	}
	_, err = client.dynamodb.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:                client.cfg.MessagesTableName,
		Item:                     av,
		ConditionExpression:      expr.Condition(),
		ExpressionAttributeNames: expr.Names(),
	})
	if err != nil {
		if isConditionFailed(err) {
			return ErrMessageExists
		}
		return fmt.Errorf("failed to put message: %w", err)
	}
	return nil
}

func (client *Client) FetchMessages(
	ctx context.Context,
	conversationId string,
	lastKey map[string]types.AttributeValue,
	limit int32,
	ascending bool,
) (
	[]entities.Message,
	map[string]types.AttributeValue,
	error,
) {
	expr, err := expression.NewBuilder().
		WithKeyCondition(expression.Key("ConversationId").Equal(expression.Value(conversationId))).
		Build()
	if err != nil {
		return nil, nil, err
	}
	input := &dynamodb.QueryInput{
		TableName:                 client.cfg.MessagesTableName,
		KeyConditionExpression:    expr.KeyCondition(),
		ExpressionAttributeNames:  expr.Names(),
		ExpressionAttributeValues: expr.Values(),
		ExclusiveStartKey:         lastKey,
		ScanIndexForward:          aws.Bool(ascending),
	}
	if limit > 0 {
		input.Limit = aws.Int32(limit)
	}
	output, err := client.dynamodb.Query(ctx, input)
	if err != nil {
		return nil, nil, err
	}
	var messages []entities.Message
	if err := attributevalue.UnmarshalListOfMaps(output.Items, &messages); err != nil {
		return nil, nil, err
	}
	return messages, output.LastEvaluatedKey, nil
}

// ListMessages returns the messages of a conversation in timestamp order.
// A limit of zero returns the whole history.
func (client *Client) ListMessages(
	ctx context.Context,
	conversationId string,
	limit int,
	ascending bool,
) (
	[]entities.Message,
	error,
) {
	var (
		messages []entities.Message
		lastKey  map[string]types.AttributeValue
	)
	for {
		var pageLimit int32
		if limit > 0 {
			pageLimit = int32(limit - len(messages))
		}
		page, next, err := client.FetchMessages(ctx, conversationId, lastKey, pageLimit, ascending)
		if err != nil {
			return nil, err
		}
		messages = append(messages, page...)
		if next == nil || (limit > 0 && len(messages) >= limit) {
			break
		}
		lastKey = next
	}
	return messages, nil
}

func (client *Client) LastMessage(ctx context.Context, conversationId string) (entities.Message, error) {
	messages, _, err := client.FetchMessages(ctx, conversationId, nil, 1, false)
	if err != nil {
		return entities.Message{}, err
	}
	if len(messages) == 0 {
		return entities.Message{}, ErrMessageNotFound
	}
	return messages[0], nil
}

// GetMessageById looks a message up by id inside its conversation.
func (client *Client) GetMessageById(
	ctx context.Context,
	conversationId,
	messageId string,
) (
	entities.Message,
	error,
) {
	expr, err := expression.NewBuilder().
		WithKeyCondition(expression.Key("ConversationId").Equal(expression.Value(conversationId))).
		WithFilter(expression.Name("MessageId").Equal(expression.Value(messageId))).
		Build()
	if err != nil {
		return entities.Message{}, err
	}
	paginator := dynamodb.NewQueryPaginator(client.dynamodb, &dynamodb.QueryInput{
		TableName:                 client.cfg.MessagesTableName,
		KeyConditionExpression:    expr.KeyCondition(),
		FilterExpression:          expr.Filter(),
		ExpressionAttributeNames:  expr.Names(),
		ExpressionAttributeValues: expr.Values(),
	})
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return entities.Message{}, err
		}
		if len(page.Items) == 0 {
			continue
		}
		var message entities.Message
		if err := attributevalue.UnmarshalMap(page.Items[0], &message); err != nil {
			return entities.Message{}, err
		}
		return message, nil
	}
	return entities.Message{}, ErrMessageNotFound
}

// UpdateMessage changes the mutable fields of an existing message and
// returns the message as stored afterwards.
func (client *Client) UpdateMessage(
	ctx context.Context,
	conversationId,
	timestamp string,
	opts MessageUpdateOptions,
) (
	entities.Message,
	error,
) {
	update, ok := opts.update()
	if !ok {
		return entities.Message{}, fmt.Errorf("empty message update")
	}
	expr, err := expression.NewBuilder().
		WithUpdate(update).
		WithCondition(expression.AttributeExists(expression.Name("Timestamp"))).
		Build()
	if err != nil {
		return entities.Message{}, fmt.Errorf("failed to build message update: %w", err)
	}
	output, err := client.dynamodb.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:                 client.cfg.MessagesTableName,
		Key:                       messageKey(conversationId, timestamp),
		UpdateExpression:          expr.Update(),
		ConditionExpression:       expr.Condition(),
		ExpressionAttributeNames:  expr.Names(),
		ExpressionAttributeValues: expr.Values(),
		ReturnValues:              types.ReturnValueAllNew,
	})
	if err != nil {
		if isConditionFailed(err) {
			return entities.Message{}, ErrMessageNotFound
		}
		return entities.Message{}, fmt.Errorf("failed to update message: %w", err)
	}
	var message entities.Message
	if err := attributevalue.UnmarshalMap(output.Attributes, &message); err != nil {
		return entities.Message{}, err
	}
	return message, nil
}

// AddMessageReader adds userId to the ReadBy set of one message. Adding a
// reader twice leaves a single entry.
func (client *Client) AddMessageReader(ctx context.Context, conversationId, timestamp, userId string) error {
	expr, err := expression.NewBuilder().
		WithUpdate(expression.Add(expression.Name("ReadBy"), expression.Value(stringSet{userId}))).
		WithCondition(expression.AttributeExists(expression.Name("Timestamp"))).
		Build()
	if err != nil {
		return fmt.Errorf("failed to build read update: %w", err)
	}
	_, err = client.dynamodb.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:                 client.cfg.MessagesTableName,
		Key:                       messageKey(conversationId, timestamp),
		UpdateExpression:          expr.Update(),
		ConditionExpression:       expr.Condition(),
		ExpressionAttributeNames:  expr.Names(),
		ExpressionAttributeValues: expr.Values(),
	})
	if err != nil {
		if isConditionFailed(err) {
			return ErrMessageNotFound
		}
		return fmt.Errorf("failed to mark message read: %w", err)
	}
	return nil
}

// MarkConversationRead adds userId to every message of the conversation it
// has not read yet and returns the timestamps that changed.
func (client *Client) MarkConversationRead(ctx context.Context, conversationId, userId string) ([]string, error) {
	messages, err := client.ListMessages(ctx, conversationId, 0, true)
	if err != nil {
		return nil, err
	}
	var updated []string
	for _, message := range messages {
		if message.IsReadBy(userId) {
			continue
		}
		if err := client.AddMessageReader(ctx, conversationId, message.Timestamp, userId); err != nil {
			return updated, err
		}
		updated = append(updated, message.Timestamp)
	}
	return updated, nil
}
