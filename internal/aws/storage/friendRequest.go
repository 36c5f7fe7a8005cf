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
	ErrFriendRequestNotFound   = fmt.Errorf("friend request not found")
	ErrFriendRequestNotPending = fmt.Errorf("friend request already handled")
)

func friendRequestKey(receiverId, requestId string) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		"ReceiverId": &types.AttributeValueMemberS{Value: receiverId},
		"RequestId":  &types.AttributeValueMemberS{Value: requestId},
	}
}

func (client *Client) GetFriendRequest(
	ctx context.Context,
	receiverId,
	requestId string,
) (
	entities.FriendRequest,
	error,
) {
	output, err := client.dynamodb.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: client.cfg.FriendRequestsTableName,
		Key:       friendRequestKey(receiverId, requestId),
	})
	if err != nil {
		return entities.FriendRequest{}, err
	}
	if output.Item == nil {
		return entities.FriendRequest{}, ErrFriendRequestNotFound
	}
	var request entities.FriendRequest
	if err := attributevalue.UnmarshalMap(output.Item, &request); err != nil {
		return entities.FriendRequest{}, err
	}
	return request, nil
}

func (client *Client) PutFriendRequest(ctx context.Context, request entities.FriendRequest) error {
	av, err := attributevalue.MarshalMap(request)
	if err != nil {
		return fmt.Errorf("failed to marshal friend request: %w", err)
	}
	_, err = client.dynamodb.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:           client.cfg.FriendRequestsTableName,
		Item:                av,
		ConditionExpression: aws.String("attribute_not_exists(RequestId)"),
	})
	if err != nil {
		return fmt.Errorf("failed to put friend request: %w", err)
	}
	return nil
}

// ListPendingFriendRequests returns the pending requests addressed to
// receiverId.
func (client *Client) ListPendingFriendRequests(
	ctx context.Context,
	receiverId string,
) (
	[]entities.FriendRequest,
	error,
) {
	expr, err := expression.NewBuilder().
		WithKeyCondition(expression.Key("ReceiverId").Equal(expression.Value(receiverId))).
		WithFilter(expression.Name("Status").Equal(expression.Value(entities.FriendRequestPending))).
		Build()
	if err != nil {
		return nil, fmt.Errorf("failed to build friend request query: %w", err)
	}
	paginator := dynamodb.NewQueryPaginator(client.dynamodb, &dynamodb.QueryInput{
		TableName:                 client.cfg.FriendRequestsTableName,
		KeyConditionExpression:    expr.KeyCondition(),
		FilterExpression:          expr.Filter(),
		ExpressionAttributeNames:  expr.Names(),
		ExpressionAttributeValues: expr.Values(),
	})
	var requests []entities.FriendRequest
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, err
		}
		var items []entities.FriendRequest
		if err := attributevalue.UnmarshalListOfMaps(page.Items, &items); err != nil {
			return nil, err
		}
		requests = append(requests, items...)
	}
	return requests, nil
}

// HasPendingFriendRequest reports whether senderId already has a pending
// request addressed to receiverId.
func (client *Client) HasPendingFriendRequest(ctx context.Context, senderId, receiverId string) (bool, error) {
	requests, err := client.ListPendingFriendRequests(ctx, receiverId)
	if err != nil {
		return false, err
	}
	for _, request := range requests {
		if request.SenderId == senderId {
			return true, nil
		}
	}
	return false, nil
}

// RejectFriendRequest moves a pending request to rejected.
func (client *Client) RejectFriendRequest(ctx context.Context, receiverId, requestId string) error {
	expr, err := pendingTransition(entities.FriendRequestRejected)
	if err != nil {
		return err
	}
	_, err = client.dynamodb.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:                 client.cfg.FriendRequestsTableName,
		Key:                       friendRequestKey(receiverId, requestId),
		UpdateExpression:          expr.Update(),
		ConditionExpression:       expr.Condition(),
		ExpressionAttributeNames:  expr.Names(),
		ExpressionAttributeValues: expr.Values(),
	})
	if err != nil {
		if isConditionFailed(err) {
			return ErrFriendRequestNotPending
		}
		return fmt.Errorf("failed to reject friend request: %w", err)
	}
	return nil
}

func pendingTransition(to entities.FriendRequestStatus) (expression.Expression, error) {
	expr, err := expression.NewBuilder().
		WithUpdate(expression.Set(expression.Name("Status"), expression.Value(to))).
		WithCondition(expression.Name("Status").Equal(expression.Value(entities.FriendRequestPending))).
		Build()
	if err != nil {
		return expression.Expression{}, fmt.Errorf("failed to build friend request update: %w", err)
	}
	return expr, nil
}
