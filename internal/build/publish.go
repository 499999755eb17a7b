package build

import (
	"bytes"
	"context"
	"fmt"
	"path"
	"strconv"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/langyo/React-frontback-scaffold/internal/config"
)

// ObjectPutter is the part of the S3 client the publisher uses.
type ObjectPutter interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// S3Publisher mirrors every successful cycle's bundles to an S3 bucket.
//
// Each cycle writes both artifacts under <prefix><target>.bundle.js, so the
// bucket always holds the latest good pair.
type S3Publisher struct {
	client ObjectPutter
	bucket string
	prefix string
}

// NewS3Publisher creates a publisher writing to bucket under prefix.
func NewS3Publisher(client ObjectPutter, bucket, prefix string) *S3Publisher {
	return &S3Publisher{client: client, bucket: bucket, prefix: prefix}
}

// NewS3PublisherFromConfig loads AWS credentials from the environment and
// returns a publisher for cfg.Publish.
func NewS3PublisherFromConfig(ctx context.Context, cfg *config.Config) (*S3Publisher, error) {
	var opts []func(*awsconfig.LoadOptions) error
	if cfg.Publish.Region != "" {
		opts = append(opts, awsconfig.WithRegion(cfg.Publish.Region))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Publish.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Publish.Endpoint)
			o.UsePathStyle = true
		}
	})
	return NewS3Publisher(client, cfg.Publish.Bucket, cfg.Publish.Prefix), nil
}

// Key returns the object key for t.
func (p *S3Publisher) Key(t Target) string {
	return path.Join(p.prefix, string(t)+".bundle.js")
}

// Publish uploads every artifact. It stops at the first failed upload.
func (p *S3Publisher) Publish(ctx context.Context, artifacts map[Target][]byte) error {
	now := time.Now().UTC().Format(time.RFC3339)
	for _, t := range Targets {
		data, ok := artifacts[t]
		if !ok {
			continue
		}
		_, err := p.client.PutObject(ctx, &s3.PutObjectInput{
			Bucket:      aws.String(p.bucket),
			Key:         aws.String(p.Key(t)),
			Body:        bytes.NewReader(data),
			ContentType: aws.String("text/javascript"),
			Metadata: map[string]string{
				"target":       string(t),
				"publish-time": now,
				"size":         strconv.Itoa(len(data)),
			},
		})
		if err != nil {
			return fmt.Errorf("s3 put %s: %w", t, err)
		}
	}
	return nil
}
