package entities

import "time"

// User is the identity provider's view of an account. It is never persisted
// by the relay.
type User struct {
	Id       string
	Username string
	Name     string
	Email    string
	Phone    string
	Picture  string
}

func (u User) DisplayName() string {
	if u.Name != "" {
		return u.Name
	}
	return u.Id
}

type UserProfile struct {
	UserId    string    `dynamodbav:"UserId"`
	Email     string    `dynamodbav:"Email"`
	Name      string    `dynamodbav:"Name,omitempty"`
	Picture   string    `dynamodbav:"Picture,omitempty"`
	CreatedAt time.Time `dynamodbav:"CreatedAt"`
}

// ApplicationEndpoint is the SNS platform endpoint of a user's device.
type ApplicationEndpoint struct {
	UserId      string    `dynamodbav:"UserId"`
	EndpointArn string    `dynamodbav:"EndpointArn"`
	DeviceToken string    `dynamodbav:"DeviceToken,omitempty"`
	Platform    string    `dynamodbav:"Platform,omitempty"`
	UpdatedAt   time.Time `dynamodbav:"UpdatedAt,unixtime"`
}
