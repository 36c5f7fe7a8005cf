package identity

import (
	"context"
	"os"

	cip "github.com/aws/aws-sdk-go-v2/service/cognitoidentityprovider"
)

// CognitoAPI is the subset of the Cognito user pool client used here.
type CognitoAPI interface {
	GetUser(ctx context.Context, params *cip.GetUserInput, optFns ...func(*cip.Options)) (*cip.GetUserOutput, error)
	AdminGetUser(ctx context.Context, params *cip.AdminGetUserInput, optFns ...func(*cip.Options)) (*cip.AdminGetUserOutput, error)
	AdminUpdateUserAttributes(ctx context.Context, params *cip.AdminUpdateUserAttributesInput, optFns ...func(*cip.Options)) (*cip.AdminUpdateUserAttributesOutput, error)
	SignUp(ctx context.Context, params *cip.SignUpInput, optFns ...func(*cip.Options)) (*cip.SignUpOutput, error)
	ConfirmSignUp(ctx context.Context, params *cip.ConfirmSignUpInput, optFns ...func(*cip.Options)) (*cip.ConfirmSignUpOutput, error)
	InitiateAuth(ctx context.Context, params *cip.InitiateAuthInput, optFns ...func(*cip.Options)) (*cip.InitiateAuthOutput, error)
	ForgotPassword(ctx context.Context, params *cip.ForgotPasswordInput, optFns ...func(*cip.Options)) (*cip.ForgotPasswordOutput, error)
	ConfirmForgotPassword(ctx context.Context, params *cip.ConfirmForgotPasswordInput, optFns ...func(*cip.Options)) (*cip.ConfirmForgotPasswordOutput, error)
	ChangePassword(ctx context.Context, params *cip.ChangePasswordInput, optFns ...func(*cip.Options)) (*cip.ChangePasswordOutput, error)
}

type Client struct {
	cognito CognitoAPI
	cfg     Config
}

type Config struct {
	UserPoolId string
	ClientId   string
}

func NewClient(cognitoClient CognitoAPI, cfg Config) *Client {
	return &Client{
		cognito: cognitoClient,
		cfg:     cfg,
	}
}

func ConfigFromEnv() Config {
	return Config{
		UserPoolId: os.Getenv("COGNITO_USER_POOL_ID"),
		ClientId:   os.Getenv("COGNITO_CLIENT_ID"),
	}
}
