package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/expression"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/google/uuid"
	"github.com/zalachat/zalachat/internal/domains/entities"
)

func newConversationId() string {
	return uuid.NewString()
}

// AcceptFriendRequest creates both friendship edges with a freshly minted
// conversation id and marks the request accepted, all in one transaction.
// The returned edges are (receiver -> sender) and (sender -> receiver).
func (client *Client) AcceptFriendRequest(
	ctx context.Context,
	request entities.FriendRequest,
	receiverName string,
	acceptedAt time.Time,
) (
	entities.Friendship,
	entities.Friendship,
	error,
) {
	conversationId := client.newId()
	receiverEdge := entities.Friendship{
		UserId:         request.ReceiverId,
		FriendId:       request.SenderId,
		ConversationId: conversationId,
		FriendName:     request.SenderName,
		StartedAt:      acceptedAt,
	}
	senderEdge := entities.Friendship{
		UserId:         request.SenderId,
		FriendId:       request.ReceiverId,
		ConversationId: conversationId,
		FriendName:     receiverName,
		StartedAt:      acceptedAt,
	}

	notExists, err := expression.NewBuilder().
		WithCondition(expression.AttributeNotExists(expression.Name("UserId"))).
		Build()
	if err != nil {
		return entities.Friendship{}, entities.Friendship{}, err
	}
	accept, err := pendingTransition(entities.FriendRequestAccepted)
	if err != nil {
		return entities.Friendship{}, entities.Friendship{}, err
	}

	items := make([]types.TransactWriteItem, 0, 3)
	for _, edge := range []entities.Friendship{receiverEdge, senderEdge} {
		av, err := attributevalue.MarshalMap(edge)
		if err != nil {
			return entities.Friendship{}, entities.Friendship{}, fmt.Errorf("failed to marshal friendship: %w", err)
		}
		items = append(items, types.TransactWriteItem{
			Put: &types.Put{
				TableName:                client.cfg.FriendshipsTableName,
				Item:                     av,
				ConditionExpression:      notExists.Condition(),
				ExpressionAttributeNames: notExists.Names(),
			},
		})
	}
	items = append(items, types.TransactWriteItem{
		Update: &types.Update{
			TableName:                 client.cfg.FriendRequestsTableName,
			Key:                       friendRequestKey(request.ReceiverId, request.RequestId),
			UpdateExpression:          accept.Update(),
			ConditionExpression:       accept.Condition(),
			ExpressionAttributeNames:  accept.Names(),
			ExpressionAttributeValues: accept.Values(),
		},
	})

	_, err = client.dynamodb.TransactWriteItems(ctx, &dynamodb.TransactWriteItemsInput{
		TransactItems: items,
	})
	if err != nil {
		switch {
		case conditionFailedAt(err, 2):
			return entities.Friendship{}, entities.Friendship{}, ErrFriendRequestNotPending
		case conditionFailedAt(err, 0), conditionFailedAt(err, 1):
			return entities.Friendship{}, entities.Friendship{}, ErrFriendshipExists
		}
		return entities.Friendship{}, entities.Friendship{}, fmt.Errorf("failed to accept friend request: %w", err)
	}
	return receiverEdge, senderEdge, nil
}

// EnsureConversation returns the conversation id shared by userId and
// friendId, minting one when neither edge carries it yet. Minting is a
// conditional transaction over both edges, so concurrent callers agree on a
// single id.
func (client *Client) EnsureConversation(ctx context.Context, userId, friendId string) (string, error) {
	edge, err := client.GetFriendship(ctx, userId, friendId)
	if err != nil {
		return "", err
	}
	if edge.ConversationId != "" {
		return edge.ConversationId, nil
	}

	reverse, err := client.GetFriendship(ctx, friendId, userId)
	if err != nil {
		return "", err
	}
	if reverse.ConversationId != "" {
		// One-sided edge: copy the existing id over.
		err := client.setConversationIfMissing(ctx, userId, friendId, reverse.ConversationId)
		if err != nil {
			return "", err
		}
		return reverse.ConversationId, nil
	}

	conversationId := client.newId()
	expr, err := expression.NewBuilder().
		WithUpdate(expression.Set(expression.Name("ConversationId"), expression.Value(conversationId))).
		WithCondition(expression.AttributeExists(expression.Name("UserId")).
			And(expression.AttributeNotExists(expression.Name("ConversationId")))).
		Build()
	if err != nil {
		return "", fmt.Errorf("failed to build conversation update: %w", err)
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
	if err == nil {
		return conversationId, nil
	}
	if !isTransactionCanceled(err) {
		return "", fmt.Errorf("failed to mint conversation: %w", err)
	}

	// Somebody else won the race; use their id.
	edge, err = client.GetFriendship(ctx, userId, friendId)
	if err != nil {
		return "", err
	}
	if edge.ConversationId == "" {
		return "", fmt.Errorf("failed to mint conversation for %s and %s", userId, friendId)
	}
	return edge.ConversationId, nil
}

func (client *Client) setConversationIfMissing(ctx context.Context, userId, friendId, conversationId string) error {
	expr, err := expression.NewBuilder().
		WithUpdate(expression.Set(expression.Name("ConversationId"), expression.Value(conversationId))).
		WithCondition(expression.AttributeNotExists(expression.Name("ConversationId")).
			Or(expression.Name("ConversationId").Equal(expression.Value(conversationId)))).
		Build()
	if err != nil {
		return fmt.Errorf("failed to build conversation update: %w", err)
	}
	_, err = client.dynamodb.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:                 client.cfg.FriendshipsTableName,
		Key:                       friendshipKey(userId, friendId),
		UpdateExpression:          expr.Update(),
		ConditionExpression:       expr.Condition(),
		ExpressionAttributeNames:  expr.Names(),
		ExpressionAttributeValues: expr.Values(),
	})
	if err != nil {
		if isConditionFailed(err) {
			return fmt.Errorf("conversation of %s and %s diverged", userId, friendId)
		}
		return err
	}
	return nil
}
