// Package r2client stores chat-history snapshots in Cloudflare R2.
// It wraps the AWS S3 SDK with the handful of operations the backup loop
// needs: whole-object put/get, conditional writes for a backup lease, and
// zstd snapshot compression.
package r2client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"
	smithyhttp "github.com/aws/smithy-go/transport/http"
	"github.com/google/uuid"
	"github.com/klauspost/compress/zstd"
)

// ErrNotFound is returned when an object does not exist.
var ErrNotFound = errors.New("r2client: object not found")

// maxSnapshotBytes bounds decompressed snapshot size.
const maxSnapshotBytes = 64 << 20

// Config holds R2 client configuration.
type Config struct {
	Endpoint    string // https://<account>.r2.cloudflarestorage.com
	AccessKeyID string
	SecretKey   string
	BucketName  string
}

// Validate reports missing fields.
func (c Config) Validate() error {
	var missing []string
	if c.Endpoint == "" {
		missing = append(missing, "endpoint")
	}
	if c.AccessKeyID == "" {
		missing = append(missing, "access key id")
	}
	if c.SecretKey == "" {
		missing = append(missing, "secret key")
	}
	if c.BucketName == "" {
		missing = append(missing, "bucket name")
	}
	if len(missing) > 0 {
		return fmt.Errorf("r2client: missing %s", strings.Join(missing, ", "))
	}
	return nil
}

// Client provides R2 object operations.
type Client struct {
	s3     *s3.Client
	bucket string
}

// New creates an R2 client.
func New(ctx context.Context, cfg Config) (*Client, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	awsCfg, err := config.LoadDefaultConfig(ctx,
		config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			cfg.AccessKeyID,
			cfg.SecretKey,
			"",
		)),
		config.WithRegion("auto"),
	)
	if err != nil {
		return nil, fmt.Errorf("r2client: load aws config: %w", err)
	}

	s3Client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		o.BaseEndpoint = aws.String(cfg.Endpoint)
		o.UsePathStyle = true // R2 requires path-style addressing
	})

	return &Client{s3: s3Client, bucket: cfg.BucketName}, nil
}

// Put writes data to key and returns the new ETag.
func (c *Client) Put(ctx context.Context, key string, data []byte, contentType string) (string, error) {
	return c.put(ctx, &s3.PutObjectInput{Key: aws.String(key)}, data, contentType)
}

// PutIfAbsent writes data only if key does not exist.
// It returns false without error when the object already exists.
func (c *Client) PutIfAbsent(ctx context.Context, key string, data []byte, contentType string) (bool, string, error) {
	etag, err := c.put(ctx, &s3.PutObjectInput{Key: aws.String(key), IfNoneMatch: aws.String("*")}, data, contentType)
	if isPreconditionFailed(err) {
		return false, "", nil
	}
	return err == nil, etag, err
}

// PutIfMatch overwrites key only while its ETag still equals etag.
func (c *Client) PutIfMatch(ctx context.Context, key string, data []byte, etag, contentType string) (bool, string, error) {
	newEtag, err := c.put(ctx, &s3.PutObjectInput{Key: aws.String(key), IfMatch: aws.String(`"` + etag + `"`)}, data, contentType)
	if isPreconditionFailed(err) {
		return false, "", nil
	}
	return err == nil, newEtag, err
}

func (c *Client) put(ctx context.Context, input *s3.PutObjectInput, data []byte, contentType string) (string, error) {
	input.Bucket = aws.String(c.bucket)
	input.Body = bytes.NewReader(data)
	if contentType != "" {
		input.ContentType = aws.String(contentType)
	}
	result, err := c.s3.PutObject(ctx, input)
	if err != nil {
		return "", fmt.Errorf("r2client: put %q: %w", aws.ToString(input.Key), err)
	}
	return trimETag(result.ETag), nil
}

// Get reads the whole object at key. It returns ErrNotFound for a missing key.
func (c *Client) Get(ctx context.Context, key string) ([]byte, string, error) {
	result, err := c.s3.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(c.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		if isNotFound(err) {
			return nil, "", ErrNotFound
		}
		return nil, "", fmt.Errorf("r2client: get %q: %w", key, err)
	}
	defer func() { _ = result.Body.Close() }()

	data, err := io.ReadAll(result.Body)
	if err != nil {
		return nil, "", fmt.Errorf("r2client: read %q: %w", key, err)
	}
	return data, trimETag(result.ETag), nil
}

// Delete removes key.
func (c *Client) Delete(ctx context.Context, key string) error {
	_, err := c.s3.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(c.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return fmt.Errorf("r2client: delete %q: %w", key, err)
	}
	return nil
}

func trimETag(etag *string) string {
	return strings.Trim(aws.ToString(etag), `"`)
}

func isPreconditionFailed(err error) bool {
	if err == nil {
		return false
	}
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) && apiErr.ErrorCode() == "PreconditionFailed" {
		return true
	}
	var respErr *smithyhttp.ResponseError
	if errors.As(err, &respErr) && respErr.HTTPStatusCode() == 412 {
		return true
	}
	return false
}

func isNotFound(err error) bool {
	var nsk *types.NoSuchKey
	if errors.As(err, &nsk) {
		return true
	}
	var nf *types.NotFound
	if errors.As(err, &nf) {
		return true
	}
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case "NoSuchKey", "NotFound", "404":
			return true
		}
	}
	var respErr *smithyhttp.ResponseError
	return errors.As(err, &respErr) && respErr.HTTPStatusCode() == 404
}

// ObjectStore is the subset of Client used by Lease, so tests can swap it.
type ObjectStore interface {
	PutIfAbsent(ctx context.Context, key string, data []byte, contentType string) (bool, string, error)
	PutIfMatch(ctx context.Context, key string, data []byte, etag, contentType string) (bool, string, error)
	Get(ctx context.Context, key string) ([]byte, string, error)
	Delete(ctx context.Context, key string) error
}

// leaseRecord is the JSON body stored at a lease key.
type leaseRecord struct {
	Owner     string    `json:"owner"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Lease is a time-bounded exclusive claim on a key, built on conditional
// writes. Replicas sharing a bucket use it so only one uploads backups.
type Lease struct {
	store ObjectStore
	key   string
	ttl   time.Duration
	owner string
	etag  string
	now   func() time.Time
}

// NewLease creates a lease on key with a random owner id.
func NewLease(store ObjectStore, key string, ttl time.Duration) *Lease {
	return &Lease{store: store, key: key, ttl: ttl, owner: uuid.NewString(), now: time.Now}
}

// Owner returns this lease's owner id.
func (l *Lease) Owner() string { return l.owner }

func (l *Lease) record() ([]byte, error) {
	return json.Marshal(leaseRecord{Owner: l.owner, ExpiresAt: l.now().Add(l.ttl)})
}

// Acquire claims the lease. It returns false when another owner holds an
// unexpired lease. Holding the lease already renews it.
func (l *Lease) Acquire(ctx context.Context) (bool, error) {
	data, err := l.record()
	if err != nil {
		return false, err
	}

	if l.etag != "" {
		ok, etag, err := l.store.PutIfMatch(ctx, l.key, data, l.etag, "application/json")
		if err != nil {
			return false, fmt.Errorf("renew lease: %w", err)
		}
		if ok {
			l.etag = etag
			return true, nil
		}
		l.etag = ""
	}

	created, etag, err := l.store.PutIfAbsent(ctx, l.key, data, "application/json")
	if err != nil {
		return false, fmt.Errorf("acquire lease: %w", err)
	}
	if created {
		l.etag = etag
		return true, nil
	}

	body, current, err := l.store.Get(ctx, l.key)
	if errors.Is(err, ErrNotFound) {
		return false, nil // released in between; next tick retries
	}
	if err != nil {
		return false, fmt.Errorf("acquire lease: read: %w", err)
	}
	var held leaseRecord
	if json.Unmarshal(body, &held) == nil && l.now().Before(held.ExpiresAt) {
		return false, nil
	}

	stolen, etag, err := l.store.PutIfMatch(ctx, l.key, data, current, "application/json")
	if err != nil {
		return false, fmt.Errorf("acquire lease: take over: %w", err)
	}
	if stolen {
		l.etag = etag
	}
	return stolen, nil
}

// Release deletes the lease if this owner still holds it.
func (l *Lease) Release(ctx context.Context) error {
	if l.etag == "" {
		return nil
	}
	l.etag = ""

	body, _, err := l.store.Get(ctx, l.key)
	if errors.Is(err, ErrNotFound) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("release lease: %w", err)
	}
	var held leaseRecord
	if json.Unmarshal(body, &held) == nil && held.Owner != l.owner {
		return nil
	}
	return l.store.Delete(ctx, l.key)
}

// Compress zstd-encodes data.
func Compress(data []byte) ([]byte, error) {
	enc, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedBetterCompression))
	if err != nil {
		return nil, fmt.Errorf("compress: create encoder: %w", err)
	}
	defer func() { _ = enc.Close() }()
	return enc.EncodeAll(data, make([]byte, 0, len(data)/4)), nil
}

// Decompress decodes a zstd stream, rejecting output larger than 64 MiB.
func Decompress(r io.Reader) ([]byte, error) {
	dec, err := zstd.NewReader(r)
	if err != nil {
		return nil, fmt.Errorf("decompress: create decoder: %w", err)
	}
	defer dec.Close()

	data, err := io.ReadAll(io.LimitReader(dec, maxSnapshotBytes+1))
	if err != nil {
		return nil, fmt.Errorf("decompress: %w", err)
	}
	if len(data) > maxSnapshotBytes {
		return nil, errors.New("decompress: snapshot too large")
	}
	return data, nil
}
