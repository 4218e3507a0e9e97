// Package storage keeps copies of raw source data in object storage.
package storage

import (
	"bytes"
	"cmp"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"path"
	"strings"
	"time"

	"github.com/attendsync/backend/internal/application/reconciliation"
	"github.com/attendsync/backend/internal/domain/attendance"
	infraconfig "github.com/attendsync/backend/internal/infrastructure/config"
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"go.uber.org/zap"
)

var _ reconciliation.PunchArchive = (*S3PunchArchive)(nil)

const (
	defaultPrefix   = "raw-punches"
	defaultEndpoint = "http://localhost:9000"
	defaultRegion   = "us-east-1"
)

// ArchiveDocument is the JSON object written for every fetch
type ArchiveDocument struct {
	RunID      string                `json:"run_id"`
	Window     reconciliation.Window `json:"window"`
	ArchivedAt time.Time             `json:"archived_at"`
	Count      int                   `json:"count"`
	Punches    []attendance.Punch    `json:"punches"`
}

// S3PunchArchive writes raw punch batches to an S3 compatible bucket
// (AWS S3, MinIO, RustFS, ...). Objects are keyed
// <prefix>/YYYY/MM/DD/<run id>.json by archive date.
type S3PunchArchive struct {
	client *s3.Client
	bucket string
	prefix string
	logger *zap.Logger
	now    func() time.Time
}

// S3PunchArchiveOption configures an S3PunchArchive
type S3PunchArchiveOption func(*S3PunchArchive)

func WithLogger(logger *zap.Logger) S3PunchArchiveOption {
	return func(s *S3PunchArchive) { s.logger = logger }
}

// WithClock replaces the time source used for keys
func WithClock(now func() time.Time) S3PunchArchiveOption {
	return func(s *S3PunchArchive) { s.now = now }
}

// NewS3PunchArchive builds the S3 client from cfg. It does not contact the
// store; call EnsureBucket for that.
func NewS3PunchArchive(cfg *infraconfig.StorageConfig, opts ...S3PunchArchiveOption) (*S3PunchArchive, error) {
	if cfg == nil {
		return nil, errors.New("storage configuration is required")
	}
	var missing []error
	for _, f := range []struct{ value, name string }{
		{cfg.Bucket, "bucket"},
		{cfg.AccessKey, "access key"},
		{cfg.SecretKey, "secret key"},
	} {
		if f.value == "" {
			missing = append(missing, fmt.Errorf("storage %s is required", f.name))
		}
	}
	if err := errors.Join(missing...); err != nil {
		return nil, err
	}

	endpoint, err := endpointURL(cfg.Endpoint, cfg.UseSSL)
	if err != nil {
		return nil, err
	}
	client, err := newS3Client(cfg, endpoint)
	if err != nil {
		return nil, err
	}

	archive := &S3PunchArchive{
		client: client,
		bucket: cfg.Bucket,
		prefix: cmp.Or(strings.Trim(cfg.Prefix, "/"), defaultPrefix),
		logger: zap.NewNop(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(archive)
	}
	return archive, nil
}

// endpointURL adds the scheme a bare host:port is missing
func endpointURL(endpoint string, useSSL bool) (string, error) {
	endpoint = cmp.Or(endpoint, defaultEndpoint)
	if !strings.Contains(endpoint, "://") {
		scheme := "http://"
		if useSSL {
			scheme = "https://"
		}
		endpoint = scheme + endpoint
	}
	u, err := url.Parse(endpoint)
	if err != nil {
		return "", fmt.Errorf("invalid storage endpoint: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return "", fmt.Errorf("invalid storage endpoint scheme %q", u.Scheme)
	}
	return endpoint, nil
}

func newS3Client(cfg *infraconfig.StorageConfig, endpoint string) (*s3.Client, error) {
	awsCfg, err := config.LoadDefaultConfig(context.Background(),
		config.WithRegion(cmp.Or(cfg.Region, defaultRegion)),
		config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, "")),
	)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	return s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		o.BaseEndpoint = aws.String(endpoint)
		o.UsePathStyle = cfg.UsePathStyle
		// MinIO and RustFS reject the default streaming checksums
		o.RequestChecksumCalculation = aws.RequestChecksumCalculationWhenRequired
	}), nil
}

// EnsureBucket creates the bucket when HeadBucket reports it missing
func (s *S3PunchArchive) EnsureBucket(ctx context.Context) error {
	bucket := aws.String(s.bucket)
	_, err := s.client.HeadBucket(ctx, &s3.HeadBucketInput{Bucket: bucket})
	switch {
	case err == nil:
		return nil
	case !isMissingBucket(err):
		return fmt.Errorf("head bucket %s: %w", s.bucket, err)
	}

	_, err = s.client.CreateBucket(ctx, &s3.CreateBucketInput{Bucket: bucket})
	var owned *types.BucketAlreadyOwnedByYou
	if err != nil && !errors.As(err, &owned) {
		return fmt.Errorf("create bucket %s: %w", s.bucket, err)
	}
	s.logger.Info("Archive bucket created", zap.String("bucket", s.bucket))
	return nil
}

func isMissingBucket(err error) bool {
	var notFound *types.NotFound
	var noSuchBucket *types.NoSuchBucket
	return errors.As(err, &notFound) || errors.As(err, &noSuchBucket)
}

// Archive writes punches as one JSON document and returns its key
func (s *S3PunchArchive) Archive(
	ctx context.Context,
	runID string,
	window reconciliation.Window,
	punches []attendance.Punch,
) (string, error) {
	if runID == "" {
		return "", errors.New("run id is required")
	}
	at := s.now().UTC()
	key := ArchiveKey(s.prefix, at, runID)

	if punches == nil {
		punches = []attendance.Punch{}
	}
	body, err := json.Marshal(ArchiveDocument{
		RunID:      runID,
		Window:     window,
		ArchivedAt: at,
		Count:      len(punches),
		Punches:    punches,
	})
	if err != nil {
		return "", fmt.Errorf("encode punch archive: %w", err)
	}

	_, err = s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(body),
		ContentType: aws.String("application/json"),
	})
	if err != nil {
		return "", fmt.Errorf("put %s: %w", key, err)
	}

	s.logger.Debug("Punch batch archived",
		zap.String("key", key),
		zap.Int("punches", len(punches)),
		zap.Int("bytes", len(body)))
	return key, nil
}

func (s *S3PunchArchive) GetBucket() string {
	return s.bucket
}

// ArchiveKey returns <prefix>/YYYY/MM/DD/<runID>.json
func ArchiveKey(prefix string, at time.Time, runID string) string {
	return path.Join(prefix, at.Format("2006/01/02"), runID+".json")
}
