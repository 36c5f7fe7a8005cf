package identity

import (
	"context"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	cip "github.com/aws/aws-sdk-go-v2/service/cognitoidentityprovider"
	"github.com/aws/aws-sdk-go-v2/service/cognitoidentityprovider/types"
	"github.com/zalachat/zalachat/internal/domains/entities"
)

var (
	ErrUserNotFound = errors.New("user not found")
	ErrInvalidToken = errors.New("invalid token")
)

// Authenticate resolves an access token to the user id it belongs to.
func (client *Client) Authenticate(ctx context.Context, accessToken string) (string, error) {
	user, err := client.CurrentUser(ctx, accessToken)
	if err != nil {
		return "", err
	}
	return user.Id, nil
}

func (client *Client) CurrentUser(ctx context.Context, accessToken string) (entities.User, error) {
	output, err := client.cognito.GetUser(ctx, &cip.GetUserInput{
		AccessToken: aws.String(accessToken),
	})
	if err != nil {
		var nae *types.NotAuthorizedException
		if errors.As(err, &nae) {
			return entities.User{}, ErrInvalidToken
		}
		var unf *types.UserNotFoundException
		if errors.As(err, &unf) {
			return entities.User{}, ErrInvalidToken
		}
		return entities.User{}, fmt.Errorf("failed to get user: %w", err)
	}
	return newUser(aws.ToString(output.Username), output.UserAttributes), nil
}

// GetUser looks a user up by id. Email aliases are accepted as well.
func (client *Client) GetUser(ctx context.Context, userId string) (entities.User, error) {
	output, err := client.cognito.AdminGetUser(ctx, &cip.AdminGetUserInput{
		UserPoolId: aws.String(client.cfg.UserPoolId),
		Username:   aws.String(userId),
	})
	if err != nil {
		var unf *types.UserNotFoundException
		if errors.As(err, &unf) {
			return entities.User{}, ErrUserNotFound
		}
		return entities.User{}, fmt.Errorf("failed to get user %s: %w", userId, err)
	}
	return newUser(aws.ToString(output.Username), output.UserAttributes), nil
}

func (client *Client) FindUserByEmail(ctx context.Context, email string) (entities.User, error) {
	return client.GetUser(ctx, email)
}

// DisplayName returns the user's name, falling back to the id.
func (client *Client) DisplayName(ctx context.Context, userId string) (string, error) {
	user, err := client.GetUser(ctx, userId)
	if err != nil {
		return "", err
	}
	return user.DisplayName(), nil
}

type AttributeUpdate struct {
	Name    *string
	Picture *string
}

func (client *Client) UpdateAttributes(ctx context.Context, userId string, update AttributeUpdate) error {
	var attributes []types.AttributeType
	if update.Name != nil {
		attributes = append(attributes, types.AttributeType{Name: aws.String("name"), Value: update.Name})
	}
	if update.Picture != nil {
		attributes = append(attributes, types.AttributeType{Name: aws.String("picture"), Value: update.Picture})
	}
	if len(attributes) == 0 {
		return nil
	}
	_, err := client.cognito.AdminUpdateUserAttributes(ctx, &cip.AdminUpdateUserAttributesInput{
		UserPoolId:     aws.String(client.cfg.UserPoolId),
		Username:       aws.String(userId),
		UserAttributes: attributes,
	})
	if err != nil {
		return fmt.Errorf("failed to update user attributes: %w", err)
	}
	return nil
}

func newUser(username string, attributes []types.AttributeType) entities.User {
	user := entities.User{Id: username, Username: username}
	for _, attr := range attributes {
		value := aws.ToString(attr.Value)
		switch aws.ToString(attr.Name) {
		case "name":
			user.Name = value
		case "email":
			user.Email = value
		case "phone_number":
			user.Phone = value
		case "picture":
			user.Picture = value
		}
	}
	return user
}
