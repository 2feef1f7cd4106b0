// Package s3 provides a drive folder source over an S3 bucket. Key prefixes are
// folders and objects are files; file links are presigned GET URLs.
package s3

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	awscreds "github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/fedesuarez16/opting-sub000/internal/config"
	"github.com/fedesuarez16/opting-sub000/internal/http"
	"github.com/fedesuarez16/opting-sub000/internal/logging"
)

// NewFromConfig builds a Provider from the [drive.s3] settings. Static keys are
// used when configured, otherwise the default AWS credential chain.
func NewFromConfig(ctx context.Context, cfg *config.Config, logger *logging.Logger) (*Provider, error) {
	s3cfg := cfg.Drive.S3
	if s3cfg.Bucket == "" {
		return nil, fmt.Errorf("s3 drive: %w", config.ErrMissingBucket)
	}

	// Shared HTTP client with proxy support
	httpClient, err := http.ConfigureHTTPClient(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to configure HTTP client: %w", err)
	}

	loadOpts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithHTTPClient(httpClient),
		awsconfig.WithRetryMaxAttempts(cfg.Drive.MaxRetries + 1),
	}
	if s3cfg.Region != "" {
		loadOpts = append(loadOpts, awsconfig.WithRegion(s3cfg.Region))
	}
	if s3cfg.AccessKey != "" {
		loadOpts = append(loadOpts, awsconfig.WithCredentialsProvider(
			awscreds.NewStaticCredentialsProvider(s3cfg.AccessKey, s3cfg.SecretKey, "")))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if s3cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(s3cfg.Endpoint)
			o.UsePathStyle = true
		}
	})

	return New(client, s3.NewPresignClient(client), s3cfg.Bucket, s3cfg.RootPrefix, logger), nil
}
