package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"imagelab/internal/domain"
)

type s3PutObjectAPI interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// S3Options configures the S3 media sink.
type S3Options struct {
	Bucket        string
	Region        string
	Prefix        string
	PublicBaseURL string
	// Endpoint overrides the service endpoint for S3-compatible stores.
	Endpoint string
	// Client replaces the SDK client; used in tests.
	Client s3PutObjectAPI
}

// S3Uploader writes decoded media into a bucket and returns its public URL.
type S3Uploader struct {
	client        s3PutObjectAPI
	bucket        string
	prefix        string
	publicBaseURL string
}

// NewS3Uploader loads the default AWS credential chain unless a client is injected.
func NewS3Uploader(ctx context.Context, opts S3Options) (*S3Uploader, error) {
	bucket := strings.TrimSpace(opts.Bucket)
	if bucket == "" {
		return nil, errors.New("s3: bucket is required")
	}
	region := strings.TrimSpace(opts.Region)
	publicBase := strings.TrimSpace(opts.PublicBaseURL)
	if publicBase == "" {
		if region == "" {
			return nil, errors.New("s3: region or public base url is required")
		}
		publicBase = fmt.Sprintf("https://%s.s3.%s.amazonaws.com", bucket, region)
	}

	client := opts.Client
	if client == nil {
		var loadOpts []func(*awsconfig.LoadOptions) error
		if region != "" {
			loadOpts = append(loadOpts, awsconfig.WithRegion(region))
		}
		cfg, err := awsconfig.LoadDefaultConfig(ctx, loadOpts...)
		if err != nil {
			return nil, fmt.Errorf("s3: load aws config: %w", err)
		}
		endpoint := strings.TrimSpace(opts.Endpoint)
		client = s3.NewFromConfig(cfg, func(o *s3.Options) {
			if endpoint != "" {
				o.BaseEndpoint = aws.String(endpoint)
				o.UsePathStyle = true
			}
		})
	}
	return &S3Uploader{
		client:        client,
		bucket:        bucket,
		prefix:        opts.Prefix,
		publicBaseURL: publicBase,
	}, nil
}

// Upload decodes the payload and stores it under <prefix>/<uuid>.<ext>.
func (u *S3Uploader) Upload(ctx context.Context, payload string, kind domain.MediaType, title, description string) (string, error) {
	data, err := decodePayload(payload)
	if err != nil {
		return "", err
	}
	contentType, ext := contentMeta(kind, data)
	key := objectKey(u.prefix, ext)
	metadata := map[string]string{}
	if t := asciiMetadata(title); t != "" {
		metadata["title"] = t
	}
	if d := asciiMetadata(description); d != "" {
		metadata["description"] = d
	}
	_, err = u.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(u.bucket),
		Key:           aws.String(key),
		Body:          bytes.NewReader(data),
		ContentType:   aws.String(contentType),
		ContentLength: aws.Int64(int64(len(data))),
		Metadata:      metadata,
	})
	if err != nil {
		return "", &domain.UpstreamError{Provider: "s3", Err: err}
	}
	return joinURL(u.publicBaseURL, key), nil
}

// asciiMetadata drops characters S3 user metadata cannot carry in headers.
func asciiMetadata(s string) string {
	var b strings.Builder
	for _, r := range strings.TrimSpace(s) {
		if r >= 0x20 && r < 0x7f {
			b.WriteRune(r)
		}
	}
	out := strings.TrimSpace(b.String())
	if len(out) > 256 {
		out = out[:256]
	}
	return out
}

var _ Uploader = (*S3Uploader)(nil)
