// Package backup takes encrypted snapshots of the SQLite database and keeps
// them in S3-compatible object storage.
package backup

import (
	"bytes"
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	_ "modernc.org/sqlite"
)

const keyLayout = "20060102T150405Z"

var (
	ErrNotFound     = errors.New("backup not found")
	ErrTargetExists = errors.New("restore target already exists")
)

type s3Client interface {
	PutObject(ctx context.Context, input *s3.PutObjectInput, opts ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	GetObject(ctx context.Context, input *s3.GetObjectInput, opts ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	ListObjectsV2(ctx context.Context, input *s3.ListObjectsV2Input, opts ...func(*s3.Options)) (*s3.ListObjectsV2Output, error)
	DeleteObject(ctx context.Context, input *s3.DeleteObjectInput, opts ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
}

type Config struct {
	Endpoint  string
	Bucket    string
	Region    string
	AccessKey string
	SecretKey string

	Prefix        string
	Passphrase    string
	Interval      time.Duration
	RetentionDays int
}

// Enabled reports whether a bucket and a passphrase are configured.
func (c Config) Enabled() bool {
	return c.Bucket != "" && c.AccessKey != "" && c.SecretKey != "" && c.Passphrase != ""
}

// Object is one stored backup.
type Object struct {
	Key       string    `json:"key"`
	Size      int64     `json:"size"`
	CreatedAt time.Time `json:"created_at"`
}

type Manager struct {
	db     *sql.DB
	client s3Client
	cfg    Config
	logger *slog.Logger
	now    func() time.Time

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

func NewManager(db *sql.DB, cfg Config, logger *slog.Logger) *Manager {
	return newManager(db, newS3Client(cfg), cfg, logger)
}

func newManager(db *sql.DB, client s3Client, cfg Config, logger *slog.Logger) *Manager {
	if cfg.Prefix == "" {
		cfg.Prefix = "backups/"
	}
	if !strings.HasSuffix(cfg.Prefix, "/") {
		cfg.Prefix += "/"
	}
	if cfg.Interval <= 0 {
		cfg.Interval = 24 * time.Hour
	}
	return &Manager{
		db:     db,
		client: client,
		cfg:    cfg,
		logger: logger.With("component", "backup"),
		now:    func() time.Time { return time.Now().UTC() },
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

// Start runs a backup every interval until ctx is cancelled or Stop is called.
func (m *Manager) Start(ctx context.Context) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.cancel != nil {
		return
	}

	ctx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	m.cancel, m.done = cancel, done

	go func() {
		defer close(done)
		ticker := time.NewTicker(m.cfg.Interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if _, err := m.RunNow(ctx); err != nil {
					m.logger.Error("scheduled backup failed", "error", err)
				}
			}
		}
	}()
	m.logger.Info("backup scheduler started", "interval", m.cfg.Interval, "retention_days", m.cfg.RetentionDays)
}

func (m *Manager) Stop() {
	m.mu.Lock()
	cancel, done := m.cancel, m.done
	m.cancel, m.done = nil, nil
	m.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done
}

// RunNow snapshots the database, uploads the encrypted snapshot and prunes
// backups past the retention window.
func (m *Manager) RunNow(ctx context.Context) (*Object, error) {
	start := m.now()

	data, err := m.snapshot(ctx)
	if err != nil {
		return nil, err
	}
	sealed, err := seal(data, m.cfg.Passphrase)
	if err != nil {
		return nil, err
	}

	key := m.cfg.Prefix + "chorely-" + start.Format(keyLayout) + ".db.enc"
	if _, err := m.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(m.cfg.Bucket),
		Key:           aws.String(key),
		Body:          bytes.NewReader(sealed),
		ContentLength: aws.Int64(int64(len(sealed))),
		ContentType:   aws.String("application/octet-stream"),
	}); err != nil {
		return nil, fmt.Errorf("upload backup: %w", err)
	}

	obj := &Object{Key: key, Size: int64(len(sealed)), CreatedAt: start}
	m.logger.Info("backup uploaded", "key", key, "size", obj.Size, "took", m.now().Sub(start))

	if m.cfg.RetentionDays > 0 {
		if n, err := m.Cleanup(ctx); err != nil {
			m.logger.Warn("backup cleanup failed", "error", err)
		} else if n > 0 {
			m.logger.Info("old backups removed", "count", n)
		}
	}
	return obj, nil
}

// snapshot writes a consistent copy of the live database with VACUUM INTO
// and returns its bytes.
func (m *Manager) snapshot(ctx context.Context) ([]byte, error) {
	dir, err := os.MkdirTemp("", "chorely-backup-")
	if err != nil {
		return nil, fmt.Errorf("create temp dir: %w", err)
	}
	defer os.RemoveAll(dir)

	path := filepath.Join(dir, "snapshot.db")
	if _, err := m.db.ExecContext(ctx, "VACUUM INTO ?", path); err != nil {
		return nil, fmt.Errorf("snapshot database: %w", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read snapshot: %w", err)
	}
	return data, nil
}

// List returns the stored backups, newest first.
func (m *Manager) List(ctx context.Context) ([]Object, error) {
	var (
		out   []Object
		token *string
	)
	for {
		page, err := m.client.ListObjectsV2(ctx, &s3.ListObjectsV2Input{
			Bucket:            aws.String(m.cfg.Bucket),
			Prefix:            aws.String(m.cfg.Prefix),
			ContinuationToken: token,
		})
		if err != nil {
			return nil, fmt.Errorf("list backups: %w", err)
		}
		for _, o := range page.Contents {
			out = append(out, objectFrom(o))
		}
		if !aws.ToBool(page.IsTruncated) || page.NextContinuationToken == nil {
			break
		}
		token = page.NextContinuationToken
	}

	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func objectFrom(o types.Object) Object {
	obj := Object{Key: aws.ToString(o.Key), Size: aws.ToInt64(o.Size)}
	name := strings.TrimSuffix(filepath.Base(obj.Key), ".db.enc")
	if t, err := time.Parse(keyLayout, strings.TrimPrefix(name, "chorely-")); err == nil {
		obj.CreatedAt = t
	} else if o.LastModified != nil {
		obj.CreatedAt = o.LastModified.UTC()
	}
	return obj
}

// Cleanup deletes backups older than the retention window. It returns the
// number removed. A retention of zero keeps everything.
func (m *Manager) Cleanup(ctx context.Context) (int, error) {
	if m.cfg.RetentionDays <= 0 {
		return 0, nil
	}
	objects, err := m.List(ctx)
	if err != nil {
		return 0, err
	}

	cutoff := m.now().AddDate(0, 0, -m.cfg.RetentionDays)
	removed := 0
	for _, o := range objects {
		if !o.CreatedAt.Before(cutoff) {
			continue
		}
		if _, err := m.client.DeleteObject(ctx, &s3.DeleteObjectInput{
			Bucket: aws.String(m.cfg.Bucket),
			Key:    aws.String(o.Key),
		}); err != nil {
			m.logger.Warn("failed to delete backup", "key", o.Key, "error", err)
			continue
		}
		removed++
	}
	return removed, nil
}

// Restore downloads and decrypts a backup into dst, a path that must not
// exist yet. The restored file is integrity-checked before it is moved into
// place; the live database is never touched.
func (m *Manager) Restore(ctx context.Context, key, dst string) error {
	if !strings.HasPrefix(key, m.cfg.Prefix) {
		key = m.cfg.Prefix + key
	}
	if _, err := os.Stat(dst); err == nil {
		return fmt.Errorf("%w: %s", ErrTargetExists, dst)
	}

	res, err := m.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(m.cfg.Bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		var nsk *types.NoSuchKey
		if errors.As(err, &nsk) {
			return fmt.Errorf("%w: %s", ErrNotFound, key)
		}
		return fmt.Errorf("download backup: %w", err)
	}
	sealed, err := io.ReadAll(res.Body)
	res.Body.Close()
	if err != nil {
		return fmt.Errorf("read backup: %w", err)
	}

	data, err := open(sealed, m.cfg.Passphrase)
	if err != nil {
		return err
	}

	tmp := dst + ".partial"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return fmt.Errorf("write restored db: %w", err)
	}
	if err := checkIntegrity(ctx, tmp); err != nil {
		os.Remove(tmp)
		return err
	}
	if err := os.Rename(tmp, dst); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("move restored db: %w", err)
	}

	m.logger.Info("backup restored", "key", key, "path", dst)
	return nil
}

func checkIntegrity(ctx context.Context, path string) error {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return fmt.Errorf("open restored db: %w", err)
	}
	defer db.Close()

	var result string
	if err := db.QueryRowContext(ctx, "PRAGMA integrity_check").Scan(&result); err != nil {
		return fmt.Errorf("integrity check: %w", err)
	}
	if result != "ok" {
		return fmt.Errorf("integrity check failed: %s", result)
	}
	return nil
}
