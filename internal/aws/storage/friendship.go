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
	ErrFriendshipNotFound = fmt.Errorf("friendship not found")
	ErrFriendshipExists   = fmt.Errorf("friendship already exists")
)

type FriendshipUpdateOptions struct {
	ConversationId *string
	FriendName     *string
	Theme          *string
}

func (opts FriendshipUpdateOptions) update() (expression.UpdateBuilder, bool) {
	var (
		update expression.UpdateBuilder
		set    bool
	)
	if opts.ConversationId != nil {
		update = update.Set(expression.Name("ConversationId"), expression.Value(*opts.ConversationId))
		set = true
	}
	if opts.FriendName != nil {
		update = update.Set(expression.Name("FriendName"), expression.Value(*opts.FriendName))
		set = true
	}
	if opts.Theme != nil {
		update = update.Set(expression.Name("Theme"), expression.Value(*opts.Theme))
		set = true
	}
	return update, set
}

func friendshipKey(userId, friendId string) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		"UserId":   &types.AttributeValueMemberS{Value: userId},
		"FriendId": &types.AttributeValueMemberS{Value: friendId},
	}
}

func (client *Client) GetFriendship(ctx context.Context, userId string, friendId string) (entities.Friendship, error) {
	output, err := client.dynamodb.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:      client.cfg.FriendshipsTableName,
		Key:            friendshipKey(userId, friendId),
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return entities.Friendship{}, err
	}
	if output.Item == nil {
		return entities.Friendship{}, ErrFriendshipNotFound
	}
	var friendship entities.Friendship
	if err := attributevalue.UnmarshalMap(output.Item, &friendship); err != nil {
		return entities.Friendship{}, err
	}
	return friendship, nil
}

// ListFriendships returns every edge owned by userId.
func (client *Client) ListFriendships(ctx context.Context, userId string) ([]entities.Friendship, error) {
	expr, err := expression.NewBuilder().
		WithKeyCondition(expression.Key("UserId").Equal(expression.Value(userId))).
		Build()
	if err != nil {
		return nil, fmt.Errorf("failed to build friendship query: %w", err)
	}

	paginator := dynamodb.NewQueryPaginator(client.dynamodb, &dynamodb.QueryInput{
		TableName:                 client.cfg.FriendshipsTableName,
		KeyConditionExpression:    expr.KeyCondition(),
		ExpressionAttributeNames:  expr.Names(),
		ExpressionAttributeValues: expr.Values(),
	})
	var friendships []entities.Friendship
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, err
		}
		var items []entities.Friendship
		if err := attributevalue.UnmarshalListOfMaps(page.Items, &items); err != nil {
			return nil, err
		}
		friendships = append(friendships, items...)
	}
	return friendships, nil
}

// UpdateFriendshipPair applies the same update to both edges of a
// friendship in one transaction, so the pair never diverges.
func (client *Client) UpdateFriendshipPair(
	ctx context.Context,
	userId,
	friendId string,
	opts FriendshipUpdateOptions,
) error {
	update, ok := opts.update()
	if !ok {
		return nil
	}
	expr, err := expression.NewBuilder().
		WithUpdate(update).
		WithCondition(expression.AttributeExists(expression.Name("UserId"))).
		Build()
	if err != nil {
		return fmt.Errorf("failed to build friendship update: %w", err)
	}

	items := make([]types.TransactWriteItem, 0, 2)
	for _, key := range []map[string]types.AttributeValue{
		friendshipKey(userId, friendId),
		friendshipKey(friendId, userId),
	} {
		items = append(items, types.TransactWriteItem{
			Update: &types.Update{
				TableName:                 client.cfg.FriendshipsTableName,
				Key:                       key,
				UpdateExpression:          expr.Update(),
				ConditionExpression:       expr.Condition(),
				ExpressionAttributeNames:  expr.Names(),
				ExpressionAttributeValues: expr.Values(),
			},
		})
	}
	_, err = client.dynamodb.TransactWriteItems(ctx, &dynamodb.TransactWriteItemsInput{
		TransactItems: items,
	})
	if err != nil {
		if conditionFailedAt(err, 0) || conditionFailedAt(err, 1) {
			return ErrFriendshipNotFound
		}
		return fmt.Errorf("failed to update friendship pair: %w", err)
	}
	return nil
}

// DeleteFriendshipPair removes both edges. Messages of the conversation are
// left in place.
func (client *Client) DeleteFriendshipPair(ctx context.Context, userId, friendId string) error {
	_, err := client.dynamodb.TransactWriteItems(ctx, &dynamodb.TransactWriteItemsInput{
		TransactItems: []types.TransactWriteItem{
			{Delete: &types.Delete{
				TableName: client.cfg.FriendshipsTableName,
				Key:       friendshipKey(userId, friendId),
			}},
			{Delete: &types.Delete{
				TableName: client.cfg.FriendshipsTableName,
				Key:       friendshipKey(friendId, userId),
			}},
		},
	})
	if err != nil {
		return fmt.Errorf("failed to delete friendship pair: %w", err)
	}
	return nil
}

// conditionFailedAt reports whether the transaction was cancelled because
// the condition of the item at index failed.
func conditionFailedAt(err error, index int) bool {
	var tce *types.TransactionCanceledException
	if !errors.As(err, &tce) {
		return false
	}
	if index >= len(tce.CancellationReasons) {
		return false
	}
	code := tce.CancellationReasons[index].Code
	return code != nil && *code == "ConditionalCheckFailed"
}
