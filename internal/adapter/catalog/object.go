package catalog

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/guillermoBallester/audiencelens/internal/core/domain"
	miniogo "github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// maxObjectSize bounds how much of a catalog object is read.
const maxObjectSize = 64 << 20

// ObjectConfig locates a catalog object in S3-compatible storage.
type ObjectConfig struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Region    string
	UseSSL    bool
	Bucket    string
	Key       string
}

// ParseObjectURL splits s3://bucket/key into bucket and key.
func ParseObjectURL(raw string) (bucket, key string, err error) {
	u, err := url.Parse(raw)
	if err != nil {
		return "", "", fmt.Errorf("parsing catalog URL: %w", err)
	}
	if u.Scheme != "s3" {
		return "", "", fmt.Errorf("catalog URL %q: scheme must be s3", raw)
	}
	key = strings.TrimPrefix(u.Path, "/")
	if u.Host == "" || key == "" {
		return "", "", fmt.Errorf("catalog URL %q: expected s3://bucket/key", raw)
	}
	return u.Host, key, nil
}

// ObjectSource loads the catalog from an S3 or MinIO object on every Load.
// It is safe for concurrent use.
type ObjectSource struct {
	client *miniogo.Client
	bucket string
	key    string
}

func NewObjectSource(cfg ObjectConfig) (*ObjectSource, error) {
	client, err := miniogo.New(cfg.Endpoint, &miniogo.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("creating object store client: %w", err)
	}
	return &ObjectSource{client: client, bucket: cfg.Bucket, key: cfg.Key}, nil
}

func (s *ObjectSource) Load(ctx context.Context) ([]domain.Table, error) {
	obj, err := s.client.GetObject(ctx, s.bucket, s.key, miniogo.GetObjectOptions{})
	if err != nil {
		return nil, mapError(err, s.bucket, s.key)
	}
	defer func() { _ = obj.Close() }()

	// GetObject is lazy; Stat surfaces missing objects and auth errors.
	if _, err := obj.Stat(); err != nil {
		return nil, mapError(err, s.bucket, s.key)
	}

	data, err := io.ReadAll(io.LimitReader(obj, maxObjectSize+1))
	if err != nil {
		return nil, mapError(err, s.bucket, s.key)
	}
	if len(data) > maxObjectSize {
		return nil, fmt.Errorf("catalog object s3://%s/%s exceeds %d bytes", s.bucket, s.key, maxObjectSize)
	}
	return Decode(data)
}

// mapError gives S3 errors a stable shape: missing buckets and keys wrap
// domain.ErrNotFound.
func mapError(err error, bucket, key string) error {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return fmt.Errorf("fetching s3://%s/%s: %w", bucket, key, err)
	}

	var resp miniogo.ErrorResponse
	if errors.As(err, &resp) {
		switch {
		case resp.StatusCode == http.StatusNotFound,
			resp.Code == "NoSuchBucket", resp.Code == "NoSuchKey":
			return fmt.Errorf("catalog object s3://%s/%s: %w", bucket, key, domain.ErrNotFound)
		case resp.StatusCode == http.StatusForbidden, resp.StatusCode == http.StatusUnauthorized,
			resp.Code == "AccessDenied", resp.Code == "InvalidAccessKeyId", resp.Code == "SignatureDoesNotMatch":
			return fmt.Errorf("access denied to s3://%s/%s: %s", bucket, key, resp.Code)
		}
	}
	return fmt.Errorf("fetching s3://%s/%s: %w", bucket, key, err)
}
