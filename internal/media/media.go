// Package media stores submission photos in S3-compatible object storage.
package media

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"
)

const DefaultMaxSize = 10 << 20

var (
	ErrTooLarge    = errors.New("file too large")
	ErrUnsupported = errors.New("unsupported media type")
	ErrEmpty       = errors.New("empty file")
	ErrNotFound    = errors.New("media not found")
)

var allowed = map[string]bool{
	"image/jpeg": true,
	"image/png":  true,
	"image/gif":  true,
	"image/webp": true,
	"image/heic": true,
}

// s3Client is the subset of *s3.Client the store needs.
type s3Client interface {
	PutObject(ctx context.Context, input *s3.PutObjectInput, opts ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	GetObject(ctx context.Context, input *s3.GetObjectInput, opts ...func(*s3.Options)) (*s3.GetObjectOutput, error)
}

type Config struct {
	Endpoint  string
	Bucket    string
	Region    string
	AccessKey string
	SecretKey string
	// PublicURL, when set, is the prefix of returned object URLs. Otherwise
	// URLs point at the API's own media route.
	PublicURL string
	MaxSize   int64
}

// Enabled reports whether enough is configured to reach a bucket.
func (c Config) Enabled() bool {
	return c.Bucket != "" && c.AccessKey != "" && c.SecretKey != ""
}

// Object is a stored file.
type Object struct {
	Key         string `json:"key"`
	URL         string `json:"url"`
	ContentType string `json:"content_type"`
	Size        int64  `json:"size"`
}

type Store struct {
	client  s3Client
	bucket  string
	baseURL string
	maxSize int64
	now     func() time.Time
}

func NewStore(cfg Config) *Store {
	return newStore(newS3Client(cfg), cfg)
}

func newStore(client s3Client, cfg Config) *Store {
	base := strings.TrimRight(cfg.PublicURL, "/")
	if base == "" {
		base = "/api/media"
	}
	maxSize := cfg.MaxSize
	if maxSize <= 0 {
		maxSize = DefaultMaxSize
	}
	return &Store{
		client:  client,
		bucket:  cfg.Bucket,
		baseURL: base,
		maxSize: maxSize,
		now:     func() time.Time { return time.Now().UTC() },
	}
}

func newS3Client(cfg Config) *s3.Client {
	opts := s3.Options{
		Region:       cfg.Region,
		Credentials:  credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, ""),
		UsePathStyle: true,
	}
	if cfg.Endpoint != "" {
		opts.BaseEndpoint = aws.String(cfg.Endpoint)
	}
	return s3.New(opts)
}

func (s *Store) MaxSize() int64 {
	return s.maxSize
}

// Upload stores an image under the tenant's prefix. The type is sniffed from
// the content; the client's declared type is ignored.
func (s *Store) Upload(ctx context.Context, tenantID string, r io.Reader) (*Object, error) {
	data, err := io.ReadAll(io.LimitReader(r, s.maxSize+1))
	if err != nil {
		return nil, fmt.Errorf("read upload: %w", err)
	}
	if len(data) == 0 {
		return nil, ErrEmpty
	}
	if int64(len(data)) > s.maxSize {
		return nil, ErrTooLarge
	}

	mt := mimetype.Detect(data)
	contentType := strings.SplitN(mt.String(), ";", 2)[0]
	if !allowed[contentType] {
		return nil, fmt.Errorf("%w: %s", ErrUnsupported, contentType)
	}

	key := path.Join(tenantID, s.now().Format("2006/01"), uuid.NewString()+mt.Extension())
	_, err = s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(s.bucket),
		Key:           aws.String(key),
		Body:          bytes.NewReader(data),
		ContentLength: aws.Int64(int64(len(data))),
		ContentType:   aws.String(contentType),
	})
	if err != nil {
		return nil, fmt.Errorf("upload to s3: %w", err)
	}

	return &Object{
		Key:         key,
		URL:         s.baseURL + "/" + key,
		ContentType: contentType,
		Size:        int64(len(data)),
	}, nil
}

// Open streams a stored object. Keys outside tenantID's prefix are reported
// as not found.
func (s *Store) Open(ctx context.Context, tenantID, key string) (io.ReadCloser, string, error) {
	if !strings.HasPrefix(key, tenantID+"/") || strings.Contains(key, "..") {
		return nil, "", ErrNotFound
	}
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		var missing *types.NoSuchKey
		if errors.As(err, &missing) {
			return nil, "", ErrNotFound
		}
		return nil, "", fmt.Errorf("download from s3: %w", err)
	}
	return out.Body, aws.ToString(out.ContentType), nil
}
