package export

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"go.uber.org/zap"

	"github.com/septivank/plant-metrics-pipeline/internal/config"
)

const contentType = "text/csv"

// Sink stores one rendered CSV object under key
type Sink interface {
	Put(ctx context.Context, key string, body []byte) (string, error)
}

// ObjectKey returns prefix/YYYY/MM/DD/<runID>.csv for a run started at startedAt.
func ObjectKey(prefix, runID string, startedAt time.Time) string {
	return path.Join(prefix, startedAt.UTC().Format("2006/01/02"), runID+".csv")
}

// NewSink builds the sink selected by cfg.Driver. It returns nil for ExportNone.
func NewSink(ctx context.Context, cfg config.ExportConfig, logger *zap.Logger) (Sink, error) {
	switch cfg.Driver {
	case config.ExportNone, "":
		logger.Info("csv export disabled")
		return nil, nil
	case config.ExportFile:
		logger.Info("csv export to local directory", zap.String("dir", cfg.Dir))
		return NewFileSink(cfg.Dir), nil
	case config.ExportS3:
		logger.Info("csv export to s3",
			zap.String("bucket", cfg.S3Bucket),
			zap.String("region", cfg.S3Region))
		sink, err := NewS3Sink(ctx, S3Config{
			Bucket:    cfg.S3Bucket,
			Region:    cfg.S3Region,
			Endpoint:  cfg.S3Endpoint,
			PathStyle: cfg.S3PathStyle,
		})
		if err != nil {
			return nil, err
		}
		return sink, nil
	default:
		return nil, fmt.Errorf("unknown export driver %q", cfg.Driver)
	}
}

// FileSink writes objects below a root directory
type FileSink struct {
	root string
}

// NewFileSink creates a sink rooted at dir
func NewFileSink(dir string) *FileSink {
	return &FileSink{root: dir}
}

// Put writes body to root/key, creating parent directories, and returns the file path.
func (s *FileSink) Put(ctx context.Context, key string, body []byte) (string, error) {
	target := filepath.Join(s.root, filepath.FromSlash(key))
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return "", fmt.Errorf("failed to create export directory: %w", err)
	}

	tmp := target + ".tmp"
	if err := os.WriteFile(tmp, body, 0o644); err != nil {
		return "", fmt.Errorf("failed to write export file: %w", err)
	}
	if err := os.Rename(tmp, target); err != nil {
		_ = os.Remove(tmp)
		return "", fmt.Errorf("failed to move export file into place: %w", err)
	}
	return target, nil
}

// S3Config holds S3 sink construction parameters
type S3Config struct {
	Bucket    string
	Region    string
	Endpoint  string // optional, for MinIO or localstack
	PathStyle bool
}

type objectPutter interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// S3Sink uploads objects to a single bucket
type S3Sink struct {
	client objectPutter
	bucket string
}

// NewS3Sink creates an S3 sink using the default AWS credential chain.
func NewS3Sink(ctx context.Context, cfg S3Config) (*S3Sink, error) {
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("s3 bucket required")
	}
	region := cfg.Region
	if region == "" {
		region = "us-east-1"
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("failed to load aws config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		o.UsePathStyle = cfg.PathStyle
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
	})

	return &S3Sink{client: client, bucket: cfg.Bucket}, nil
}

// Put uploads body and returns the s3:// URI of the object.
func (s *S3Sink) Put(ctx context.Context, key string, body []byte) (string, error) {
	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(s.bucket),
		Key:           aws.String(key),
		Body:          bytes.NewReader(body),
		ContentType:   aws.String(contentType),
		ContentLength: aws.Int64(int64(len(body))),
	})
	if err != nil {
		return "", fmt.Errorf("failed to upload %s to bucket %s: %w", key, s.bucket, err)
	}
	return fmt.Sprintf("s3://%s/%s", s.bucket, key), nil
}
