package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"slices"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	"github.com/cwbudde/algo-tap/tap/pulse"
)

const contentType = "application/vnd.apache.parquet"

// S3API is the subset of the S3 client used by the S3 store.
type S3API interface {
	PutObject(ctx context.Context, in *s3.PutObjectInput, opts ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	GetObject(ctx context.Context, in *s3.GetObjectInput, opts ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	ListObjectsV2(ctx context.Context, in *s3.ListObjectsV2Input, opts ...func(*s3.Options)) (*s3.ListObjectsV2Output, error)
	DeleteObject(ctx context.Context, in *s3.DeleteObjectInput, opts ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
}

// S3 is a Store keeping parquet objects under a bucket prefix.
type S3 struct {
	cli    S3API
	bucket string
	prefix string
}

// NewS3 returns a store writing to bucket below prefix. A non-empty
// prefix is treated as a directory.
func NewS3(cli S3API, bucket, prefix string) (*S3, error) {
	if cli == nil {
		return nil, fmt.Errorf("%w: storage: s3 client is required", pulse.ErrValidation)
	}
	if bucket == "" {
		return nil, fmt.Errorf("%w: storage: bucket is required", pulse.ErrValidation)
	}
	prefix = strings.Trim(prefix, "/")
	if prefix != "" {
		prefix += "/"
	}
	return &S3{cli: cli, bucket: bucket, prefix: prefix}, nil
}

// S3Config describes how to reach the bucket.
type S3Config struct {
	Region    string
	Endpoint  string // "" for AWS; set for MinIO or LocalStack
	AccessKey string // empty selects the default credential chain
	SecretKey string
	PathStyle bool
}

// NewS3Client builds an S3 client from cfg.
func NewS3Client(ctx context.Context, cfg S3Config) (*s3.Client, error) {
	var loaders []func(*config.LoadOptions) error
	if cfg.Region != "" {
		loaders = append(loaders, config.WithRegion(cfg.Region))
	}
	if cfg.AccessKey != "" {
		loaders = append(loaders, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, ""),
		))
	}
	awsCfg, err := config.LoadDefaultConfig(ctx, loaders...)
	if err != nil {
		return nil, fmt.Errorf("storage: aws config: %w", err)
	}
	return s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		o.UsePathStyle = cfg.PathStyle
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
	}), nil
}

func (s *S3) object(key string) string {
	return s.prefix + key + fileExt
}

func (s *S3) Save(ctx context.Context, key string, a pulse.Array) error {
	if err := checkKey(key); err != nil {
		return err
	}
	data, err := Encode(a)
	if err != nil {
		return err
	}
	_, err = s.cli.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(s.object(key)),
		Body:        bytes.NewReader(data),
		ContentType: aws.String(contentType),
	})
	if err != nil {
		return fmt.Errorf("storage: s3 put %s: %w", key, err)
	}
	return nil
}

func (s *S3) Load(ctx context.Context, key string) (pulse.Array, error) {
	if err := checkKey(key); err != nil {
		return nil, err
	}
	out, err := s.cli.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.object(key)),
	})
	if err != nil {
		var nsk *types.NoSuchKey
		if errors.As(err, &nsk) {
			return nil, fmt.Errorf("%w: %q", ErrNotFound, key)
		}
		return nil, fmt.Errorf("storage: s3 get %s: %w", key, err)
	}
	data, err := io.ReadAll(out.Body)
	_ = out.Body.Close()
	if err != nil {
		return nil, fmt.Errorf("storage: s3 get %s: %w", key, err)
	}
	return Decode(data)
}

// objects lists the object keys below the store prefix plus prefix.
func (s *S3) objects(ctx context.Context, prefix string) ([]string, error) {
	var (
		keys []string
		cont *string
	)
	for {
		out, err := s.cli.ListObjectsV2(ctx, &s3.ListObjectsV2Input{
			Bucket:            aws.String(s.bucket),
			Prefix:            aws.String(s.prefix + prefix),
			ContinuationToken: cont,
			MaxKeys:           aws.Int32(1000),
		})
		if err != nil {
			return nil, fmt.Errorf("storage: s3 list: %w", err)
		}
		for _, o := range out.Contents {
			keys = append(keys, aws.ToString(o.Key))
		}
		if !aws.ToBool(out.IsTruncated) {
			return keys, nil
		}
		cont = out.NextContinuationToken
	}
}

func (s *S3) List(ctx context.Context, prefix string) ([]string, error) {
	objs, err := s.objects(ctx, prefix)
	if err != nil {
		return nil, err
	}
	keys := make([]string, 0, len(objs))
	for _, o := range objs {
		k, ok := strings.CutSuffix(strings.TrimPrefix(o, s.prefix), fileExt)
		if ok {
			keys = append(keys, k)
		}
	}
	slices.Sort(keys)
	return keys, nil
}

// Clear deletes every snapshot object below the store prefix.
func (s *S3) Clear(ctx context.Context) error {
	objs, err := s.objects(ctx, "")
	if err != nil {
		return err
	}
	for _, o := range objs {
		if !strings.HasSuffix(o, fileExt) {
			continue
		}
		_, err := s.cli.DeleteObject(ctx, &s3.DeleteObjectInput{
			Bucket: aws.String(s.bucket),
			Key:    aws.String(o),
		})
		if err != nil {
			return fmt.Errorf("storage: s3 delete %s: %w", o, err)
		}
	}
	return nil
}
