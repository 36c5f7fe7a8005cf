package notification

import (
	"context"

	"github.com/aws/aws-sdk-go-v2/service/sns"
)

// SNSAPI is the subset of *sns.Client used for push delivery.
type SNSAPI interface {
	Publish(ctx context.Context, params *sns.PublishInput, optFns ...func(*sns.Options)) (*sns.PublishOutput, error)
}

type Client struct {
	sns SNSAPI
}

func NewClient(snsClient SNSAPI) *Client {
	return &Client{
		sns: snsClient,
	}
}
