package notification

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSNS struct {
	input *sns.PublishInput
	err   error
}

func (f *fakeSNS) Publish(_ context.Context, in *sns.PublishInput, _ ...func(*sns.Options)) (*sns.PublishOutput, error) {
	f.input = in
	if f.err != nil {
		return nil, f.err
	}
	return &sns.PublishOutput{MessageId: aws.String("m-1")}, nil
}

func TestSendPushNotification(t *testing.T) {
	fake := &fakeSNS{}
	client := NewClient(fake)

	err := client.SendPushNotification(context.Background(), "arn:aws:sns:endpoint", PushNotification{
		Title: "Friend request",
		Body:  "Alice sent you a friend request",
		Data:  map[string]string{"senderId": "alice"},
	})
	require.NoError(t, err)
	assert.Equal(t, "arn:aws:sns:endpoint", aws.ToString(fake.input.TargetArn))
	assert.Equal(t, "json", aws.ToString(fake.input.MessageStructure))

	var message map[string]string
	require.NoError(t, json.Unmarshal([]byte(aws.ToString(fake.input.Message)), &message))
	assert.Equal(t, "Alice sent you a friend request", message["default"])
	assert.Contains(t, message["GCM"], "senderId")
	assert.Contains(t, message["APNS"], "aps")
}

func TestSendPushNotificationError(t *testing.T) {
	client := NewClient(&fakeSNS{err: errors.New("endpoint disabled")})

	err := client.SendPushNotification(context.Background(), "arn", PushNotification{Body: "x"})
	assert.ErrorContains(t, err, "endpoint disabled")
}
