package media

import (
	"context"
	"fmt"
	"io"
	"os"
	"path"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"
)

// S3API is the subset of *s3.Client used for uploads.
type S3API interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

type Client struct {
	s3  S3API
	cfg Config
}

type Config struct {
	Bucket string
	Region string
}

func NewClient(s3Client S3API, cfg Config) *Client {
	return &Client{
		s3:  s3Client,
		cfg: cfg,
	}
}

func ConfigFromEnv() Config {
	return Config{
		Bucket: os.Getenv("S3_BUCKET_NAME"),
		Region: os.Getenv("AWS_REGION"),
	}
}

// BaseUrl is the public prefix of every uploaded object.
func (client *Client) BaseUrl() string {
	return fmt.Sprintf("https://%s.s3.%s.amazonaws.com/", client.cfg.Bucket, client.cfg.Region)
}

// Owns reports whether rawUrl points into the media bucket.
func (client *Client) Owns(rawUrl string) bool {
	return client.cfg.Bucket != "" && strings.HasPrefix(rawUrl, client.BaseUrl())
}

// Upload stores body under prefix with a unique name that keeps the original
// extension, and returns the object's public URL.
func (client *Client) Upload(
	ctx context.Context,
	prefix,
	fileName,
	contentType string,
	body io.Reader,
) (
	string,
	error,
) {
	if client.cfg.Bucket == "" {
		return "", fmt.Errorf("media bucket not configured")
	}
	key := path.Join(prefix, uuid.NewString()+strings.ToLower(path.Ext(fileName)))
	_, err := client.s3.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(client.cfg.Bucket),
		Key:         aws.String(key),
		Body:        body,
		ContentType: aws.String(contentType),
	})
	if err != nil {
		return "", fmt.Errorf("failed to upload %s: %w", fileName, err)
	}
	return client.BaseUrl() + key, nil
}
