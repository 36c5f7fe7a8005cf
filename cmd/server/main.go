package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/cognitoidentityprovider"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	"github.com/joho/godotenv"
	"github.com/zalachat/zalachat/internal/app/api"
	"github.com/zalachat/zalachat/internal/app/relay"
	"github.com/zalachat/zalachat/internal/app/server"
	"github.com/zalachat/zalachat/internal/aws/auth"
	"github.com/zalachat/zalachat/internal/aws/identity"
	"github.com/zalachat/zalachat/internal/aws/media"
	"github.com/zalachat/zalachat/internal/aws/notification"
	"github.com/zalachat/zalachat/internal/aws/storage"
	"github.com/zalachat/zalachat/pkg/logging"
	"go.uber.org/zap"
)

func main() {
	// A local .env is optional; deployed instances get their environment
	// from the task definition.
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		logging.Warn("failed to load .env", zap.Error(err))
	}

	cfg, err := server.NewConfig()
	if err != nil {
		logging.Fatal("invalid configuration", zap.Error(err))
	}
	if err := logging.Init(cfg.Log); err != nil {
		logging.Fatal("failed to init logger", zap.Error(err))
	}
	defer logging.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	awsCfg, err := config.LoadDefaultConfig(ctx, config.WithRegion(cfg.AwsRegion))
	if err != nil {
		logging.Fatal("failed to load aws config", zap.Error(err))
	}
	storageClient := storage.NewClient(dynamodb.NewFromConfig(awsCfg), cfg.Storage)
	identityClient := identity.NewClient(cognitoidentityprovider.NewFromConfig(awsCfg), cfg.IdentityConfig())
	notificationClient := notification.NewClient(sns.NewFromConfig(awsCfg))
	mediaClient := media.NewClient(s3.NewFromConfig(awsCfg), cfg.MediaConfig())

	var authenticator server.Authenticator = identityClient
	if cfg.AuthMode == server.AuthModeJwks {
		verifier := auth.NewVerifier(
			auth.CognitoIssuer(cfg.AwsRegion, cfg.CognitoUserPoolId),
			cfg.CognitoClientId,
			nil,
		)
		if err := verifier.LoadCognitoPublicKeys(ctx, http.DefaultClient); err != nil {
			logging.Fatal("failed to load cognito public keys", zap.Error(err))
		}
		authenticator = verifier
	}

	hub := relay.NewHub()
	router := relay.NewRouter(hub, storageClient, storageClient, identityClient, mediaClient)
	apiHandler := api.NewHandler(api.Deps{
		Auth:     authenticator,
		Identity: identityClient,
		Store:    storageClient,
		Media:    mediaClient,
		Notifier: notificationClient,
		Hub:      hub,
	})

	if err := server.NewServer(cfg, router, authenticator, apiHandler).Start(ctx); err != nil {
		logging.Fatal("relay server exited", zap.Error(err))
	}
}
