package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awscfg "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/rs/zerolog/log"
)

// S3Options configures the S3 backend. Without static keys the default AWS
// credential chain is used.
type S3Options struct {
	Bucket    string
	Prefix    string
	Region    string
	AccessKey string
	SecretKey string
}

// S3 keeps results as objects under Prefix. Result metadata travels as
// object metadata; expiry is enforced on read and left to a bucket
// lifecycle rule for deletion.
type S3 struct {
	client     *s3.Client
	uploader   *manager.Uploader
	downloader *manager.Downloader
	bucket     string
	prefix     string
	now        func() time.Time
}

func NewS3(ctx context.Context, opts S3Options) (*S3, error) {
	if opts.Bucket == "" {
		return nil, errors.New("s3 results backend needs a bucket")
	}
	var loaders []func(*awscfg.LoadOptions) error
	if opts.Region != "" {
		loaders = append(loaders, awscfg.WithRegion(opts.Region))
	}
	if opts.AccessKey != "" && opts.SecretKey != "" {
		loaders = append(loaders, awscfg.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(opts.AccessKey, opts.SecretKey, "")))
	}
	cfg, err := awscfg.LoadDefaultConfig(ctx, loaders...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}
	cli := s3.NewFromConfig(cfg)
	return &S3{
		client:     cli,
		uploader:   manager.NewUploader(cli),
		downloader: manager.NewDownloader(cli),
		bucket:     opts.Bucket,
		prefix:     opts.Prefix,
		now:        time.Now,
	}, nil
}

func (s *S3) Backend() string { return "s3" }

func (s *S3) key(id string) string { return objectKey(s.prefix, id) }

func objectKey(prefix, id string) string {
	if prefix != "" && !strings.HasSuffix(prefix, "/") {
		prefix += "/"
	}
	return prefix + id
}

func resultMetadata(r *Result) map[string]string {
	return map[string]string{
		"name":         r.Name,
		"content-type": r.ContentType,
		"size":         strconv.FormatInt(r.Size, 10),
		"created":      r.Created.UTC().Format(time.RFC3339),
		"expires":      r.Expires.UTC().Format(time.RFC3339),
	}
}

func parseResultMetadata(id string, meta map[string]string) *Result {
	// metadata keys come back lower-cased from S3
	get := func(k string) string {
		for mk, v := range meta {
			if strings.EqualFold(mk, k) {
				return v
			}
		}
		return ""
	}
	r := &Result{ID: id, Name: get("name"), ContentType: get("content-type")}
	r.Size, _ = strconv.ParseInt(get("size"), 10, 64)
	r.Created, _ = time.Parse(time.RFC3339, get("created"))
	r.Expires, _ = time.Parse(time.RFC3339, get("expires"))
	return r
}

func (s *S3) Put(ctx context.Context, r *Result, data []byte) error {
	if err := checkID(r.ID); err != nil {
		return fmt.Errorf("invalid result id %q", r.ID)
	}
	if r.Size == 0 {
		r.Size = int64(len(data))
	}
	key := s.key(r.ID)
	out, err := s.uploader.Upload(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String(r.ContentType),
		Expires:     aws.Time(r.Expires),
		Metadata:    resultMetadata(r),
	})
	if err != nil {
		log.Error().Err(err).Str("key", key).Msg("result upload failed")
		return fmt.Errorf("failed to upload to S3: %w", err)
	}
	log.Debug().Str("key", key).Str("location", out.Location).Int("size", len(data)).Msg("uploaded result to S3")
	return nil
}

func isNotFound(err error) bool {
	var nsk *s3types.NoSuchKey
	var nf *s3types.NotFound
	return errors.As(err, &nsk) || errors.As(err, &nf)
}

func (s *S3) Get(ctx context.Context, id string) (*Result, []byte, error) {
	if err := checkID(id); err != nil {
		return nil, nil, err
	}
	key := s.key(id)
	head, err := s.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if isNotFound(err) {
		return nil, nil, ErrNotFound
	}
	if err != nil {
		return nil, nil, fmt.Errorf("failed to stat S3 object: %w", err)
	}
	r := parseResultMetadata(id, head.Metadata)
	if r.Expired(s.now()) {
		return nil, nil, ErrNotFound
	}

	buf := manager.NewWriteAtBuffer(make([]byte, 0, aws.ToInt64(head.ContentLength)))
	if _, err := s.downloader.Download(ctx, buf, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	}); err != nil {
		if isNotFound(err) {
			return nil, nil, ErrNotFound
		}
		return nil, nil, fmt.Errorf("failed to download from S3: %w", err)
	}
	return r, buf.Bytes(), nil
}

func (s *S3) Delete(ctx context.Context, id string) error {
	if err := checkID(id); err != nil {
		return err
	}
	_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.key(id)),
	})
	if err != nil {
		return fmt.Errorf("failed to delete S3 object: %w", err)
	}
	return nil
}

func (s *S3) Ping(ctx context.Context) error {
	_, err := s.client.HeadBucket(ctx, &s3.HeadBucketInput{Bucket: aws.String(s.bucket)})
	return err
}

func (s *S3) Close() error { return nil }
