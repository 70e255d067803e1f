package services

import (
	"bytes"
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	"mdmc/internal/config"
	"mdmc/internal/utils/logger"
)

// Ensure S3Service implements FileStore
var _ FileStore = (*S3Service)(nil)

// S3Service stores export files in S3 or an S3-compatible bucket.
type S3Service struct {
	client     *s3.Client
	presign    *s3.PresignClient
	bucketName string
	logger     *logger.Logger
}

func NewS3Service(ctx context.Context, cfg config.S3Config) (*S3Service, error) {
	log := logger.New("s3_service")

	if cfg.AccessKey == "" || cfg.SecretKey == "" {
		return nil, log.Error("S3 credentials are empty ❌", fmt.Errorf("accessKey or secretKey is empty"))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithRegion(cfg.Region),
		awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			cfg.AccessKey,
			cfg.SecretKey,
			"",
		)),
		awsconfig.WithRetryMode(aws.RetryModeStandard),
		awsconfig.WithRetryMaxAttempts(3),
	)
	if err != nil {
		return nil, log.Error("Unable to load SDK config ❌", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		}
	})

	_, err = client.HeadBucket(ctx, &s3.HeadBucketInput{Bucket: aws.String(cfg.BucketName)})
	if err != nil {
		return nil, log.Error("Failed to reach export bucket ❌", err)
	}

	log.Success("S3 export storage ready (%s) ✅", cfg.BucketName)

	return &S3Service{
		client:     client,
		presign:    s3.NewPresignClient(client),
		bucketName: cfg.BucketName,
		logger:     log,
	}, nil
}

// Put uploads body under key as a private object.
func (s *S3Service) Put(ctx context.Context, key string, body []byte, contentType string) error {
	s.logger.Info("📤 Uploading export: %s", key)

	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucketName),
		Key:         aws.String(key),
		Body:        bytes.NewReader(body),
		ACL:         types.ObjectCannedACLPrivate,
		ContentType: aws.String(contentType),
	})
	if err != nil {
		return s.logger.Error("Failed to upload export ❌", err)
	}
	return nil
}

// SignedURL returns a pre-signed GET link for key valid for ttl.
func (s *S3Service) SignedURL(ctx context.Context, key string, ttl time.Duration) (string, error) {
	presigned, err := s.presign.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucketName),
		Key:    aws.String(key),
	}, s3.WithPresignExpires(ttl))
	if err != nil {
		return "", s.logger.Error("Failed to generate pre-signed URL ❌", err)
	}
	return presigned.URL, nil
}
