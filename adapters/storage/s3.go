package storage

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	"github.com/Skryldev/photo-processor/config"
	"github.com/Skryldev/photo-processor/core"
	apperrors "github.com/Skryldev/photo-processor/errors"
)

// S3API is the subset of *s3.Client used by the adapter, so tests can inject
// a double.
type S3API interface {
	PutObject(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	GetObject(ctx context.Context, in *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	DeleteObject(ctx context.Context, in *s3.DeleteObjectInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
	HeadObject(ctx context.Context, in *s3.HeadObjectInput, optFns ...func(*s3.Options)) (*s3.HeadObjectOutput, error)
}

// S3 is the ObjectStore backed by AWS S3 or an S3-compatible store
// (MinIO, R2). Object metadata is stored as x-amz-meta-* headers.
type S3 struct {
	client S3API
}

// NewS3Client builds an aws-sdk-go-v2 client from configuration. Static
// credentials are used when both keys are set; otherwise the default chain.
func NewS3Client(ctx context.Context, cfg config.S3Config) (*s3.Client, error) {
	var opts []func(*awsconfig.LoadOptions) error
	if cfg.Region != "" {
		opts = append(opts, awsconfig.WithRegion(cfg.Region))
	}
	if cfg.AccessKeyID != "" && cfg.SecretAccessKey != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("s3 storage: load aws config: %w", err)
	}
	return s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
		o.UsePathStyle = cfg.UsePathStyle
	}), nil
}

// NewS3 creates an S3 adapter. client must not be nil.
func NewS3(client S3API) (*S3, error) {
	if client == nil {
		return nil, fmt.Errorf("s3 storage: client must not be nil")
	}
	return &S3{client: client}, nil
}

func (s *S3) Put(ctx context.Context, key core.StorageKey, r io.Reader, opts core.PutOptions) error {
	in := &s3.PutObjectInput{
		Bucket:   aws.String(key.Bucket),
		Key:      aws.String(key.Path),
		Body:     r,
		Metadata: opts.Metadata,
	}
	if opts.ContentType != "" {
		in.ContentType = aws.String(opts.ContentType)
	}
	if opts.CacheControl != "" {
		in.CacheControl = aws.String(opts.CacheControl)
	}
	if _, err := s.client.PutObject(ctx, in); err != nil {
		return apperrors.Wrap(apperrors.CategoryTransfer, "s3.put", err)
	}
	return nil
}

func (s *S3) Get(ctx context.Context, key core.StorageKey) (io.ReadCloser, error) {
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(key.Bucket),
		Key:    aws.String(key.Path),
	})
	if err != nil {
		return nil, apperrors.Wrap(apperrors.CategoryTransfer, "s3.get", notFound(key, err))
	}
	return out.Body, nil
}

func (s *S3) Delete(ctx context.Context, key core.StorageKey) error {
	_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(key.Bucket),
		Key:    aws.String(key.Path),
	})
	return apperrors.Wrap(apperrors.CategoryTransfer, "s3.delete", err)
}

func (s *S3) Stat(ctx context.Context, key core.StorageKey) (core.ObjectAttrs, error) {
	out, err := s.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(key.Bucket),
		Key:    aws.String(key.Path),
	})
	if err != nil {
		return core.ObjectAttrs{}, apperrors.Wrap(apperrors.CategoryTransfer, "s3.stat", notFound(key, err))
	}
	return core.ObjectAttrs{
		Size:         aws.ToInt64(out.ContentLength),
		ContentType:  aws.ToString(out.ContentType),
		CacheControl: aws.ToString(out.CacheControl),
		Metadata:     out.Metadata,
	}, nil
}

// notFound maps the SDK's missing-object errors onto ErrObjectNotFound.
func notFound(key core.StorageKey, err error) error {
	var nsk *types.NoSuchKey
	var nf *types.NotFound
	if errors.As(err, &nsk) || errors.As(err, &nf) {
		return fmt.Errorf("%w: %s/%s", apperrors.ErrObjectNotFound, key.Bucket, key.Path)
	}
	return err
}
