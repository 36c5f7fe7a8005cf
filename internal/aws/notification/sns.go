package notification

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sns"
)

type PushNotification struct {
	Title string            `json:"title"`
	Body  string            `json:"body"`
	Data  map[string]string `json:"data,omitempty"`
}

// Message renders the notification in SNS per-platform message structure.
func (n PushNotification) Message() (string, error) {
	gcm, err := json.Marshal(map[string]interface{}{
		"notification": map[string]string{
			"title": n.Title,
			"body":  n.Body,
		},
		"data": n.Data,
	})
	if err != nil {
		return "", err
	}
	apns, err := json.Marshal(map[string]interface{}{
		"aps": map[string]interface{}{
			"alert": map[string]string{
				"title": n.Title,
				"body":  n.Body,
			},
		},
		"data": n.Data,
	})
	if err != nil {
		return "", err
	}
	message, err := json.Marshal(map[string]string{
		"default": n.Body,
		"GCM":     string(gcm),
		"APNS":    string(apns),
	})
	if err != nil {
		return "", err
	}
	return string(message), nil
}

func (client *Client) SendPushNotification(
	ctx context.Context,
	endpointArn string,
	notification PushNotification,
) error {
	message, err := notification.Message()
	if err != nil {
		return fmt.Errorf("failed to build push message: %w", err)
	}
	_, err = client.sns.Publish(ctx, &sns.PublishInput{
		Message:          aws.String(message),
		MessageStructure: aws.String("json"),
		TargetArn:        aws.String(endpointArn),
	})
	if err != nil {
		return fmt.Errorf("failed to publish message: %w", err)
	}
	return nil
}
