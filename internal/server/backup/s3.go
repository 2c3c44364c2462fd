// Package backup stores note exports in S3-compatible object storage and
// hands out presigned download links for them.
package backup

import (
	"bytes"
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	v4 "github.com/aws/aws-sdk-go-v2/aws/signer/v4"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	sc "github.com/dmitrijs2005/notesync/internal/server/config"
)

// LinkValidity is how long a presigned download link stays usable.
const LinkValidity = 15 * time.Minute

const contentType = "application/json"

var (
	loadDefaultAWSConfig = config.LoadDefaultConfig

	newS3ClientFromConfig = func(cfg aws.Config, optFns ...func(*s3.Options)) *s3.Client {
		return s3.NewFromConfig(cfg, optFns...)
	}

	newS3PresignClient = func(c *s3.Client) *s3.PresignClient {
		return s3.NewPresignClient(c)
	}

	putObject = func(c *s3.Client, ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
		return c.PutObject(ctx, in, optFns...)
	}

	presignGetObject = func(pc *s3.PresignClient, ctx context.Context, in *s3.GetObjectInput, optFns ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error) {
		return pc.PresignGetObject(ctx, in, optFns...)
	}
)

// Exporter writes an object and returns a link to read it back.
type Exporter interface {
	Export(ctx context.Context, key string, body []byte) (string, error)
}

type S3Exporter struct {
	config *sc.Config
}

var _ Exporter = (*S3Exporter)(nil)

func NewS3Exporter(cfg *sc.Config) *S3Exporter {
	return &S3Exporter{config: cfg}
}

func (e *S3Exporter) newClient(ctx context.Context) (*s3.Client, error) {
	cfg, err := loadDefaultAWSConfig(ctx,
		config.WithRegion(e.config.S3Region),
		config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			e.config.S3RootUser,
			e.config.S3RootPassword,
			"",
		)))
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	return newS3ClientFromConfig(cfg, func(o *s3.Options) {
		o.BaseEndpoint = aws.String(e.config.S3BaseEndpoint)
		o.UsePathStyle = true
	}), nil
}

// Export uploads body under key and presigns a GET for it.
func (e *S3Exporter) Export(ctx context.Context, key string, body []byte) (string, error) {
	client, err := e.newClient(ctx)
	if err != nil {
		return "", err
	}

	bucket := e.config.S3Bucket
	if _, err := putObject(client, ctx, &s3.PutObjectInput{
		Bucket:      &bucket,
		Key:         &key,
		Body:        bytes.NewReader(body),
		ContentType: aws.String(contentType),
	}); err != nil {
		return "", fmt.Errorf("put object: %w", err)
	}

	req, err := presignGetObject(newS3PresignClient(client), ctx, &s3.GetObjectInput{
		Bucket: &bucket,
		Key:    &key,
	}, s3.WithPresignExpires(LinkValidity))
	if err != nil {
		return "", fmt.Errorf("presign get: %w", err)
	}

	return req.URL, nil
}
