package main

import (
	"context"
	"time"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambda"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/zalachat/zalachat/internal/aws/storage"
	"github.com/zalachat/zalachat/internal/domains/entities"
	"github.com/zalachat/zalachat/pkg/logging"
	"go.uber.org/zap"
)

var storageClient *storage.Client

func init() {
	cfg, _ := config.LoadDefaultConfig(context.TODO())
	storageClient = storage.NewClient(
		dynamodb.NewFromConfig(cfg),
		storage.ConfigFromEnv(),
	)
}

// handler records the directory profile of a newly confirmed user so other
// users can find and name them before they ever connect.
func handler(ctx context.Context, event events.CognitoEventUserPoolsPostConfirmation) (events.CognitoEventUserPoolsPostConfirmation, error) {
	attributes := event.Request.UserAttributes
	profile := entities.UserProfile{
		UserId:    attributes["sub"],
		Email:     attributes["email"],
		Name:      attributes["name"],
		Picture:   attributes["picture"],
		CreatedAt: time.Now().UTC(),
	}
	if err := storageClient.PutUserProfile(ctx, profile); err != nil {
		logging.Error("failed to save user profile",
			zap.String("user_id", profile.UserId),
			zap.Error(err),
		)
		return event, err
	}
	logging.Info("user profile created", zap.String("user_id", profile.UserId))
	return event, nil
}

func main() {
	lambda.Start(handler)
}
