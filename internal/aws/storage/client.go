package storage

import (
	"context"
	"errors"
	"os"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// DynamoAPI is the subset of *dynamodb.Client used by the stores.
type DynamoAPI interface {
	GetItem(ctx context.Context, params *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	PutItem(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	UpdateItem(ctx context.Context, params *dynamodb.UpdateItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.UpdateItemOutput, error)
	DeleteItem(ctx context.Context, params *dynamodb.DeleteItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DeleteItemOutput, error)
	Query(ctx context.Context, params *dynamodb.QueryInput, optFns ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error)
	TransactWriteItems(ctx context.Context, params *dynamodb.TransactWriteItemsInput, optFns ...func(*dynamodb.Options)) (*dynamodb.TransactWriteItemsOutput, error)
}

type Client struct {
	dynamodb DynamoAPI
	cfg      Config
	newId    func() string
}

type Config struct {
	FriendshipsTableName          *string
	MessagesTableName             *string
	GroupMessagesTableName        *string
	FriendRequestsTableName       *string
	ApplicationEndpointsTableName *string
	UserProfilesTableName         *string
}

func NewClient(dynamoClient DynamoAPI, cfg Config) *Client {
	return &Client{
		dynamodb: dynamoClient,
		cfg:      cfg.withDefaults(),
		newId:    newConversationId,
	}
}

// ConfigFromEnv reads table names the way the deployed functions receive
// them. Missing variables fall back to the default table names.
func ConfigFromEnv() Config {
	var cfg Config
	if v, ok := os.LookupEnv("DYNAMODB_TABLE_FRIENDS"); ok {
		cfg.FriendshipsTableName = aws.String(v)
	}
	if v, ok := os.LookupEnv("DYNAMODB_TABLE_MESSAGES"); ok {
		cfg.MessagesTableName = aws.String(v)
	}
	if v, ok := os.LookupEnv("DYNAMODB_TABLE_GROUP_MESSAGES"); ok {
		cfg.GroupMessagesTableName = aws.String(v)
	}
	if v, ok := os.LookupEnv("DYNAMODB_TABLE_FRIEND_REQUESTS"); ok {
		cfg.FriendRequestsTableName = aws.String(v)
	}
	if v, ok := os.LookupEnv("DYNAMODB_TABLE_APPLICATION_ENDPOINTS"); ok {
		cfg.ApplicationEndpointsTableName = aws.String(v)
	}
	if v, ok := os.LookupEnv("DYNAMODB_TABLE_USER_PROFILES"); ok {
		cfg.UserProfilesTableName = aws.String(v)
	}
	return cfg
}

func (cfg Config) withDefaults() Config {
	if cfg.FriendshipsTableName == nil || *cfg.FriendshipsTableName == "" {
		cfg.FriendshipsTableName = aws.String("Friends")
	}
	if cfg.MessagesTableName == nil || *cfg.MessagesTableName == "" {
		cfg.MessagesTableName = aws.String("Messages")
	}
	if cfg.GroupMessagesTableName == nil || *cfg.GroupMessagesTableName == "" {
		cfg.GroupMessagesTableName = aws.String("GroupMessages")
	}
	if cfg.FriendRequestsTableName == nil || *cfg.FriendRequestsTableName == "" {
		cfg.FriendRequestsTableName = aws.String("FriendRequests")
	}
	if cfg.ApplicationEndpointsTableName == nil || *cfg.ApplicationEndpointsTableName == "" {
		cfg.ApplicationEndpointsTableName = aws.String("ApplicationEndpoints")
	}
	if cfg.UserProfilesTableName == nil || *cfg.UserProfilesTableName == "" {
		cfg.UserProfilesTableName = aws.String("UserProfiles")
	}
	return cfg
}

func isConditionFailed(err error) bool {
	var ccf *types.ConditionalCheckFailedException
	return errors.As(err, &ccf)
}

func isTransactionCanceled(err error) bool {
	var tce *types.TransactionCanceledException
	return errors.As(err, &tce)
}
