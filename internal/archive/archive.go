// Package archive publishes encrypted snapshots of the results database to
// S3-compatible storage and fetches them back.
package archive

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
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/sethvargo/go-retry"
	"go.uber.org/multierr"
	_ "modernc.org/sqlite"

	"github.com/dukerupert/doubleup/internal/model"
	"github.com/dukerupert/doubleup/internal/store"
)

var (
	ErrNotConfigured = errors.New("archive storage not configured")
	ErrNotFound      = errors.New("archive not found")
)

// s3Client is an interface for testability.
type s3Client interface {
	PutObject(ctx context.Context, input *s3.PutObjectInput, opts ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	GetObject(ctx context.Context, input *s3.GetObjectInput, opts ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	DeleteObject(ctx context.Context, input *s3.DeleteObjectInput, opts ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
}

// Config holds the bucket, credentials and passphrase used for snapshots.
type Config struct {
	Endpoint   string
	Bucket     string
	Region     string
	Prefix     string
	AccessKey  string
	SecretKey  string
	Passphrase string
}

// Publisher moves snapshots between the results database and the bucket,
// recording each one in the archives table.
type Publisher struct {
	cfg      Config
	db       *sql.DB
	archives *store.ArchiveStore
	client   s3Client

	backoff func() retry.Backoff
	now     func() time.Time
}

// NewPublisher returns ErrNotConfigured unless a bucket, credentials and a
// passphrase are all set.
func NewPublisher(cfg Config, db *sql.DB, archives *store.ArchiveStore) (*Publisher, error) {
	if cfg.Bucket == "" || cfg.AccessKey == "" || cfg.SecretKey == "" || cfg.Passphrase == "" {
		return nil, ErrNotConfigured
	}
	return newPublisher(cfg, db, archives, newS3Client(cfg)), nil
}

func newPublisher(cfg Config, db *sql.DB, archives *store.ArchiveStore, client s3Client) *Publisher {
	return &Publisher{
		cfg:      cfg,
		db:       db,
		archives: archives,
		client:   client,
		backoff: func() retry.Backoff {
			return retry.WithMaxRetries(3, retry.NewExponential(time.Second))
		},
		now: func() time.Time { return time.Now().UTC() },
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

// Publish snapshots the database, encrypts it and uploads it. runID ties the
// archive to the run it was taken after and may be empty.
func (p *Publisher) Publish(ctx context.Context, runID string) (*model.Archive, error) {
	filename := fmt.Sprintf("doubleup-%s.db.enc", p.now().Format("2006-01-02T150405Z"))
	key := p.cfg.Prefix + filename

	record, err := p.archives.Create(runID, filename, key)
	if err != nil {
		return nil, fmt.Errorf("create archive record: %w", err)
	}
	if err := p.archives.UpdateStatus(record.ID, model.ArchiveStatusUploading, ""); err != nil {
		return nil, err
	}

	fail := func(err error) (*model.Archive, error) {
		if uerr := p.archives.UpdateStatus(record.ID, model.ArchiveStatusFailed, err.Error()); uerr != nil {
			slog.Error("record archive failure", "id", record.ID, "error", uerr)
		}
		return nil, err
	}

	snapshot, err := p.snapshot(ctx)
	if err != nil {
		return fail(err)
	}
	sealed, err := Seal(snapshot, p.cfg.Passphrase)
	if err != nil {
		return fail(fmt.Errorf("encrypt: %w", err))
	}
	if err := p.upload(ctx, key, sealed); err != nil {
		return fail(fmt.Errorf("upload to s3: %w", err))
	}

	if err := p.archives.UpdateCompleted(record.ID, int64(len(sealed))); err != nil {
		return nil, err
	}
	slog.Info("archive published", "key", key, "bytes", len(sealed))
	return p.archives.GetByID(record.ID)
}

// snapshot returns a consistent copy of the database file.
func (p *Publisher) snapshot(ctx context.Context) ([]byte, error) {
	dir, err := os.MkdirTemp("", "doubleup-archive-")
	if err != nil {
		return nil, fmt.Errorf("create temp dir: %w", err)
	}
	defer os.RemoveAll(dir)

	path := filepath.Join(dir, "snapshot.db")
	if _, err := p.db.ExecContext(ctx, "VACUUM INTO ?", path); err != nil {
		return nil, fmt.Errorf("snapshot database: %w", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read snapshot: %w", err)
	}
	return data, nil
}

func (p *Publisher) upload(ctx context.Context, key string, body []byte) error {
	return retry.Do(ctx, p.backoff(), func(ctx context.Context) error {
		_, err := p.client.PutObject(ctx, &s3.PutObjectInput{
			Bucket:        aws.String(p.cfg.Bucket),
			Key:           aws.String(key),
			Body:          bytes.NewReader(body),
			ContentLength: aws.Int64(int64(len(body))),
		})
		if err != nil {
			slog.Warn("archive upload failed", "key", key, "error", err)
			return retry.RetryableError(err)
		}
		return nil
	})
}

func (p *Publisher) download(ctx context.Context, key string) ([]byte, error) {
	var data []byte
	err := retry.Do(ctx, p.backoff(), func(ctx context.Context) error {
		out, err := p.client.GetObject(ctx, &s3.GetObjectInput{
			Bucket: aws.String(p.cfg.Bucket),
			Key:    aws.String(key),
		})
		if err != nil {
			return retry.RetryableError(err)
		}
		defer out.Body.Close()
		data, err = io.ReadAll(out.Body)
		if err != nil {
			return retry.RetryableError(err)
		}
		return nil
	})
	return data, err
}

// Fetch downloads the archive stored under key, or the latest completed one
// when key is empty, and writes the decrypted database to dst after an
// integrity check.
func (p *Publisher) Fetch(ctx context.Context, key, dst string) (*model.Archive, error) {
	var (
		record *model.Archive
		err    error
	)
	if key == "" {
		record, err = p.archives.LatestCompleted()
	} else {
		record, err = p.archives.GetByKey(key)
	}
	if err != nil {
		return nil, err
	}
	if record == nil {
		if key == "" {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("%w: %s", ErrNotFound, key)
	}

	sealed, err := p.download(ctx, record.S3Key)
	if err != nil {
		return nil, fmt.Errorf("download from s3: %w", err)
	}
	plaintext, err := Open(sealed, p.cfg.Passphrase)
	if err != nil {
		return nil, err
	}

	tmp := dst + ".partial"
	if err := os.WriteFile(tmp, plaintext, 0600); err != nil {
		return nil, fmt.Errorf("write database: %w", err)
	}
	if err := checkIntegrity(tmp); err != nil {
		os.Remove(tmp)
		return nil, err
	}
	if err := os.Rename(tmp, dst); err != nil {
		os.Remove(tmp)
		return nil, fmt.Errorf("move database into place: %w", err)
	}
	return record, nil
}

func checkIntegrity(path string) error {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return fmt.Errorf("open fetched db: %w", err)
	}
	defer db.Close()

	var result string
	if err := db.QueryRow("PRAGMA integrity_check").Scan(&result); err != nil {
		return fmt.Errorf("integrity check: %w", err)
	}
	if result != "ok" {
		return fmt.Errorf("integrity check failed: %s", result)
	}
	return nil
}

// Prune deletes archives older than the retention period from the table and
// the bucket. Records are removed even when an object delete fails; those
// failures are returned together.
func (p *Publisher) Prune(ctx context.Context, retention time.Duration) ([]string, error) {
	keys, err := p.archives.DeleteOlderThan(p.now().Add(-retention))
	if err != nil {
		return nil, fmt.Errorf("delete old archives: %w", err)
	}

	var errs error
	for _, key := range keys {
		if _, err := p.client.DeleteObject(ctx, &s3.DeleteObjectInput{
			Bucket: aws.String(p.cfg.Bucket),
			Key:    aws.String(key),
		}); err != nil {
			errs = multierr.Append(errs, fmt.Errorf("delete s3 object %s: %w", key, err))
		}
	}
	return keys, errs
}
