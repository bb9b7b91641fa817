package report

import (
	"bytes"
	"context"
	"fmt"
	"path"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"go.uber.org/zap"
)

// PutObjectAPI is the part of the S3 client the sink uses.
type PutObjectAPI interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// S3Options configures an S3Sink. Empty keys fall back to the default AWS
// credential chain.
type S3Options struct {
	Bucket    string
	Prefix    string
	Region    string
	Endpoint  string // S3-compatible stores; enables path-style addressing
	AccessKey string
	SecretKey string
}

// S3Sink uploads reports to s3://bucket/prefix/<run_id>.json.
type S3Sink struct {
	client PutObjectAPI
	bucket string
	prefix string
	logger *zap.Logger
}

// NewS3Sink builds an AWS client from opts.
func NewS3Sink(ctx context.Context, opts S3Options, logger *zap.Logger) (*S3Sink, error) {
	if opts.Bucket == "" {
		return nil, fmt.Errorf("s3 sink: bucket is required")
	}

	loadOpts := []func(*config.LoadOptions) error{}
	if opts.Region != "" {
		loadOpts = append(loadOpts, config.WithRegion(opts.Region))
	}
	if opts.AccessKey != "" {
		loadOpts = append(loadOpts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(opts.AccessKey, opts.SecretKey, ""),
		))
	}

	cfg, err := config.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	client := s3.NewFromConfig(cfg, func(o *s3.Options) {
		if opts.Endpoint != "" {
			o.BaseEndpoint = aws.String(opts.Endpoint)
			o.UsePathStyle = true
		}
	})
	return NewS3SinkWithClient(client, opts.Bucket, opts.Prefix, logger), nil
}

// NewS3SinkWithClient wraps an existing client.
func NewS3SinkWithClient(client PutObjectAPI, bucket, prefix string, logger *zap.Logger) *S3Sink {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &S3Sink{client: client, bucket: bucket, prefix: prefix, logger: logger}
}

// Key returns the object key for r.
func (s *S3Sink) Key(r *Report) string {
	return path.Join(s.prefix, r.RunID+".json")
}

// Persist implements Sink.
func (s *S3Sink) Persist(ctx context.Context, r *Report) (string, error) {
	doc, err := Encode(r.WithoutTraces())
	if err != nil {
		return "", err
	}

	key := s.Key(r)
	s.logger.Debug("s3 put",
		zap.String("bucket", s.bucket),
		zap.String("key", key),
		zap.Int("bytes", len(doc)))

	_, err = s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(doc),
		ContentType: aws.String("application/json"),
	})
	if err != nil {
		return "", fmt.Errorf("s3 put %s: %w", key, err)
	}
	return fmt.Sprintf("s3://%s/%s", s.bucket, key), nil
}
