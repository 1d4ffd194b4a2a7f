// Package storage keeps tool outputs for later download under a result ID.
package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// ErrNotFound is returned for unknown or expired results.
var ErrNotFound = errors.New("result not found")

// Result describes a stored output.
type Result struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	ContentType string    `json:"content_type"`
	Size        int64     `json:"size"`
	Created     time.Time `json:"created"`
	Expires     time.Time `json:"expires"`
}

// NewResult allocates a result with a fresh ID that expires after ttl.
func NewResult(name, contentType string, ttl time.Duration) *Result {
	now := time.Now().UTC()
	return &Result{
		ID:          uuid.NewString(),
		Name:        name,
		ContentType: contentType,
		Created:     now,
		Expires:     now.Add(ttl),
	}
}

// Expired reports whether the result is past its expiry at t.
func (r *Result) Expired(t time.Time) bool { return !r.Expires.IsZero() && !t.Before(r.Expires) }

// Store persists results. Implementations must treat expired results as missing.
type Store interface {
	Put(ctx context.Context, r *Result, data []byte) error
	Get(ctx context.Context, id string) (*Result, []byte, error)
	Delete(ctx context.Context, id string) error
	Backend() string
	Ping(ctx context.Context) error
	Close() error
}

// ValidID reports whether id is a result ID this package could have issued.
func ValidID(id string) bool {
	u, err := uuid.Parse(id)
	return err == nil && u.String() == id
}

func checkID(id string) error {
	if !ValidID(id) {
		return ErrNotFound
	}
	return nil
}

// Options selects and configures a backend.
type Options struct {
	Backend       string
	Dir           string
	RedisURL      string
	S3Bucket      string
	S3Prefix      string
	S3Region      string
	S3AccessKey   string
	S3SecretKey   string
	EncryptionKey string
}

// New builds the configured backend, wrapped with encryption when a key is set.
func New(ctx context.Context, opts Options) (Store, error) {
	var (
		s   Store
		err error
	)
	switch opts.Backend {
	case "", "local":
		s, err = NewLocal(opts.Dir)
	case "redis":
		s, err = NewRedis(opts.RedisURL)
	case "s3":
		s, err = NewS3(ctx, S3Options{
			Bucket:    opts.S3Bucket,
			Prefix:    opts.S3Prefix,
			Region:    opts.S3Region,
			AccessKey: opts.S3AccessKey,
			SecretKey: opts.S3SecretKey,
		})
	default:
		return nil, fmt.Errorf("unknown results backend %q", opts.Backend)
	}
	if err != nil {
		return nil, err
	}
	if opts.EncryptionKey != "" {
		return NewEncrypted(s, opts.EncryptionKey), nil
	}
	return s, nil
}

// Sweeper is implemented by backends that cannot expire entries on their own.
type Sweeper interface {
	Sweep(ctx context.Context) int
}

// Sweep removes expired entries when the backend needs it. Redis and S3
// expire results themselves and report zero.
func Sweep(ctx context.Context, s Store) int {
	if e, ok := s.(*Encrypted); ok {
		s = e.Store
	}
	if sw, ok := s.(Sweeper); ok {
		return sw.Sweep(ctx)
	}
	return 0
}
