package services

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"

	"github.com/petitmonde/univers-backend/internal/pkg/envutil"
	"github.com/petitmonde/univers-backend/internal/pkg/logger"
)

type BucketObject struct {
	Name string
	Size int64
}

// RemoteBucket is the media side of the remote backend: the Supabase
// Storage bucket, addressed through its S3-compatible endpoint.
type RemoteBucket interface {
	Upload(ctx context.Context, content []byte, path, contentType string) error
	Download(ctx context.Context, path string) ([]byte, error)
	Delete(ctx context.Context, paths []string) error
	List(ctx context.Context, prefix string) ([]BucketObject, error)
}

type remoteBucket struct {
	log      *logger.Logger
	client   *s3.Client
	uploader *manager.Uploader
	bucket   string
}

// NewRemoteBucket builds the S3 client for the configured Supabase
// storage endpoint. Missing credentials return (nil, nil): the caller
// treats a nil bucket as local-only mode.
func NewRemoteBucket(ctx context.Context, log *logger.Logger) (RemoteBucket, error) {
	serviceLog := log.With("service", "RemoteBucket")

	endpoint := envutil.String("SUPABASE_S3_ENDPOINT", "")
	accessKey := envutil.String("SUPABASE_S3_ACCESS_KEY", "")
	secretKey := envutil.String("SUPABASE_S3_SECRET_KEY", "")
	region := envutil.String("SUPABASE_S3_REGION", "us-east-1")
	bucket := envutil.String("SUPABASE_BUCKET_NAME", "univers")

	if endpoint == "" || accessKey == "" || secretKey == "" {
		serviceLog.Info("Storage credentials not configured, remote bucket disabled")
		return nil, nil
	}

	cfg, err := awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithRegion(region),
		awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(accessKey, secretKey, "")),
	)
	if err != nil {
		return nil, fmt.Errorf("load storage config: %w", err)
	}

	client := s3.NewFromConfig(cfg, func(o *s3.Options) {
		o.BaseEndpoint = aws.String(endpoint)
		// Supabase storage only speaks path-style addressing.
		o.UsePathStyle = true
	})

	serviceLog.Info("Remote bucket configured", "bucket", bucket, "endpoint", endpoint)
	return &remoteBucket{
		log:      serviceLog,
		client:   client,
		uploader: manager.NewUploader(client),
		bucket:   bucket,
	}, nil
}

func (b *remoteBucket) Upload(ctx context.Context, content []byte, path, contentType string) error {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Minute)
	defer cancel()
	_, err := b.uploader.Upload(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(b.bucket),
		Key:         aws.String(path),
		Body:        bytes.NewReader(content),
		ContentType: aws.String(contentType),
	})
	if err != nil {
		return fmt.Errorf("upload %s: %w", path, err)
	}
	return nil
}

// Download returns (nil, nil) when the object does not exist.
func (b *remoteBucket) Download(ctx context.Context, path string) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Minute)
	defer cancel()
	out, err := b.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(b.bucket),
		Key:    aws.String(path),
	})
	if err != nil {
		var noKey *s3types.NoSuchKey
		if errors.As(err, &noKey) {
			return nil, nil
		}
		return nil, fmt.Errorf("download %s: %w", path, err)
	}
	defer out.Body.Close()
	data, err := io.ReadAll(out.Body)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return data, nil
}

func (b *remoteBucket) Delete(ctx context.Context, paths []string) error {
	if len(paths) == 0 {
		return nil
	}
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	ids := make([]s3types.ObjectIdentifier, 0, len(paths))
	for _, p := range paths {
		ids = append(ids, s3types.ObjectIdentifier{Key: aws.String(p)})
	}
	_, err := b.client.DeleteObjects(ctx, &s3.DeleteObjectsInput{
		Bucket: aws.String(b.bucket),
		Delete: &s3types.Delete{Objects: ids, Quiet: aws.Bool(true)},
	})
	if err != nil {
		return fmt.Errorf("delete objects: %w", err)
	}
	return nil
}

func (b *remoteBucket) List(ctx context.Context, prefix string) ([]BucketObject, error) {
	ctx, cancel := context.WithTimeout(ctx, time.Minute)
	defer cancel()
	var out []BucketObject
	paginator := s3.NewListObjectsV2Paginator(b.client, &s3.ListObjectsV2Input{
		Bucket: aws.String(b.bucket),
		Prefix: aws.String(prefix),
	})
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("list %s: %w", prefix, err)
		}
		for _, obj := range page.Contents {
			out = append(out, BucketObject{
				Name: aws.ToString(obj.Key),
				Size: aws.ToInt64(obj.Size),
			})
		}
	}
	return out, nil
}
