package storage

import (
	"context"
	"log"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/sitepipe/sitepipe/internal/settings"
)

// Client wraps the object storage SDK client for bucket and object
// operations against S3 or an S3-compatible endpoint.
type Client struct {
	client   *s3.Client
	uploader *manager.Uploader
	region   string
}

// NewClient builds a client from app settings. A custom endpoint switches
// to path-style addressing for local object stores. Request retries are
// capped at a single attempt; retry policy belongs to callers.
func NewClient(ctx context.Context, as *settings.AppSettings) (*Client, error) {
	cfg, err := config.LoadDefaultConfig(ctx,
		config.WithRegion(as.AWSRegion),
		config.WithRetryMaxAttempts(1),
	)
	if err != nil {
		return nil, err
	}

	client := s3.NewFromConfig(cfg, func(o *s3.Options) {
		if as.AWSEndpoint != "" {
			o.BaseEndpoint = aws.String(as.AWSEndpoint)
			o.UsePathStyle = true
		}
		if as.AWSAccessKey != "" {
			o.Credentials = aws.NewCredentialsCache(
				credentials.NewStaticCredentialsProvider(as.AWSAccessKey, as.AWSSecretKey, ""),
			)
		}
	})

	return &Client{
		client:   client,
		uploader: manager.NewUploader(client),
		region:   as.AWSRegion,
	}, nil
}

func MustNewClient(ctx context.Context, as *settings.AppSettings) *Client {
	c, err := NewClient(ctx, as)
	if err != nil {
		log.Fatal("err creating object storage client: ", err)
	}
	return c
}
