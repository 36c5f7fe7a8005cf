package identity

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	cip "github.com/aws/aws-sdk-go-v2/service/cognitoidentityprovider"
	"github.com/aws/aws-sdk-go-v2/service/cognitoidentityprovider/types"
)

type Registration struct {
	Email       string
	Password    string
	Name        string
	PhoneNumber string
}

type Tokens struct {
	IdToken      string `json:"idToken"`
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
}

// SignUp registers a new account with the email as username. The account
// stays unconfirmed until ConfirmSignUp succeeds.
func (client *Client) SignUp(ctx context.Context, reg Registration) error {
	_, err := client.cognito.SignUp(ctx, &cip.SignUpInput{
		ClientId: aws.String(client.cfg.ClientId),
		Username: aws.String(reg.Email),
		Password: aws.String(reg.Password),
		UserAttributes: []types.AttributeType{
			{Name: aws.String("email"), Value: aws.String(reg.Email)},
			{Name: aws.String("name"), Value: aws.String(reg.Name)},
			{Name: aws.String("phone_number"), Value: aws.String(reg.PhoneNumber)},
		},
	})
	if err != nil {
		return fmt.Errorf("failed to sign up: %w", err)
	}
	return nil
}

func (client *Client) ConfirmSignUp(ctx context.Context, username, code string) error {
	_, err := client.cognito.ConfirmSignUp(ctx, &cip.ConfirmSignUpInput{
		ClientId:         aws.String(client.cfg.ClientId),
		Username:         aws.String(username),
		ConfirmationCode: aws.String(code),
	})
	if err != nil {
		return fmt.Errorf("failed to confirm sign up: %w", err)
	}
	return nil
}

func (client *Client) Login(ctx context.Context, username, password string) (Tokens, error) {
	output, err := client.cognito.InitiateAuth(ctx, &cip.InitiateAuthInput{
		ClientId: aws.String(client.cfg.ClientId),
		AuthFlow: types.AuthFlowTypeUserPasswordAuth,
		AuthParameters: map[string]string{
			"USERNAME": username,
			"PASSWORD": password,
		},
	})
	if err != nil {
		return Tokens{}, fmt.Errorf("failed to login: %w", err)
	}
	result := output.AuthenticationResult
	if result == nil {
		return Tokens{}, fmt.Errorf("failed to login: challenge %s not supported", output.ChallengeName)
	}
	return Tokens{
		IdToken:      aws.ToString(result.IdToken),
		AccessToken:  aws.ToString(result.AccessToken),
		RefreshToken: aws.ToString(result.RefreshToken),
	}, nil
}

func (client *Client) ForgotPassword(ctx context.Context, username string) error {
	_, err := client.cognito.ForgotPassword(ctx, &cip.ForgotPasswordInput{
		ClientId: aws.String(client.cfg.ClientId),
		Username: aws.String(username),
	})
	if err != nil {
		return fmt.Errorf("failed to request password reset: %w", err)
	}
	return nil
}

func (client *Client) ConfirmForgotPassword(ctx context.Context, username, code, newPassword string) error {
	_, err := client.cognito.ConfirmForgotPassword(ctx, &cip.ConfirmForgotPasswordInput{
		ClientId:         aws.String(client.cfg.ClientId),
		Username:         aws.String(username),
		ConfirmationCode: aws.String(code),
		Password:         aws.String(newPassword),
	})
	if err != nil {
		return fmt.Errorf("failed to reset password: %w", err)
	}
	return nil
}

func (client *Client) ChangePassword(ctx context.Context, accessToken, oldPassword, newPassword string) error {
	_, err := client.cognito.ChangePassword(ctx, &cip.ChangePasswordInput{
		AccessToken:      aws.String(accessToken),
		PreviousPassword: aws.String(oldPassword),
		ProposedPassword: aws.String(newPassword),
	})
	if err != nil {
		return fmt.Errorf("failed to change password: %w", err)
	}
	return nil
}
