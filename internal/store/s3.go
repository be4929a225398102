package store

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/zynqcloud/go-assets/internal/asset"
)

// S3Config describes an S3-compatible bucket (AWS, MinIO, …).
type S3Config struct {
	Endpoint  string
	Region    string
	Bucket    string
	AccessKey string
	SecretKey string
	UseSSL    bool
	PathStyle bool
}

// S3 stores artifacts as objects in a single bucket. PutObject only makes an
// object visible once the upload completes, which gives Put its atomicity.
type S3 struct {
	cl     *minio.Client
	bucket string
}

// NewS3 connects to the bucket, creating it when absent.
func NewS3(ctx context.Context, cfg S3Config) (*S3, error) {
	opts := &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
		Region: cfg.Region,
	}
	if cfg.PathStyle {
		opts.BucketLookup = minio.BucketLookupPath
	}
	cl, err := minio.New(cfg.Endpoint, opts)
	if err != nil {
		return nil, fmt.Errorf("s3 client: %w", err)
	}

	ok, err := cl.BucketExists(ctx, cfg.Bucket)
	if err != nil {
		return nil, fmt.Errorf("s3 bucket %q: %w", cfg.Bucket, err)
	}
	if !ok {
		if err := cl.MakeBucket(ctx, cfg.Bucket, minio.MakeBucketOptions{Region: cfg.Region}); err != nil {
			return nil, fmt.Errorf("s3 create bucket %q: %w", cfg.Bucket, err)
		}
	}
	return &S3{cl: cl, bucket: cfg.Bucket}, nil
}

// Put uploads r to a new object key. With a known size the SDK streams
// exactly size bytes; a short stream fails the upload and nothing is stored.
func (s *S3) Put(ctx context.Context, r io.Reader, size int64) (PutResult, error) {
	location := newLocation()
	hasher := sha256.New()
	src := &exactReader{r: r, want: size}

	info, err := s.cl.PutObject(ctx, s.bucket, location, io.TeeReader(src, hasher), size,
		minio.PutObjectOptions{ContentType: "application/octet-stream"})
	if err != nil {
		// The request may have reached the bucket before the stream failed.
		s.cl.RemoveObject(context.WithoutCancel(ctx), s.bucket, location, minio.RemoveObjectOptions{}) //nolint:errcheck
		return PutResult{}, fmt.Errorf("%w: put object: %w", asset.ErrStorageWriteFailed, err)
	}

	// The SDK stops after size bytes; drain one more read so undeclared
	// trailing bytes are detected rather than silently truncated.
	if size >= 0 {
		if _, err := src.Read(make([]byte, 1)); err != nil && err != io.EOF {
			s.cl.RemoveObject(context.WithoutCancel(ctx), s.bucket, location, minio.RemoveObjectOptions{}) //nolint:errcheck
			return PutResult{}, fmt.Errorf("%w: stream: %w", asset.ErrStorageWriteFailed, err)
		}
	}
	return PutResult{Location: location, Size: info.Size, SHA256: hex.EncodeToString(hasher.Sum(nil))}, nil
}

// Get stats the object first so a missing key is reported before any bytes
// are streamed; GetObject itself is lazy and would only fail on first Read.
func (s *S3) Get(ctx context.Context, location string) (io.ReadCloser, int64, error) {
	info, err := s.cl.StatObject(ctx, s.bucket, location, minio.StatObjectOptions{})
	if err != nil {
		if isNoSuchKey(err) {
			return nil, 0, fmt.Errorf("%w: %s", asset.ErrArtifactNotFound, location)
		}
		return nil, 0, fmt.Errorf("s3 stat %q: %w", location, err)
	}
	obj, err := s.cl.GetObject(ctx, s.bucket, location, minio.GetObjectOptions{})
	if err != nil {
		return nil, 0, fmt.Errorf("s3 get %q: %w", location, err)
	}
	return obj, info.Size, nil
}

// Delete removes the object; S3 deletes of absent keys already succeed.
func (s *S3) Delete(ctx context.Context, location string) error {
	err := s.cl.RemoveObject(ctx, s.bucket, location, minio.RemoveObjectOptions{})
	if err != nil && !isNoSuchKey(err) {
		return fmt.Errorf("s3 delete %q: %w", location, err)
	}
	return nil
}

// Exists reports whether the object is present.
func (s *S3) Exists(ctx context.Context, location string) (bool, error) {
	_, err := s.cl.StatObject(ctx, s.bucket, location, minio.StatObjectOptions{})
	if err == nil {
		return true, nil
	}
	if isNoSuchKey(err) {
		return false, nil
	}
	return false, err
}

// Walk lists every object under the models/ prefix.
func (s *S3) Walk(ctx context.Context, fn func(Artifact) error) error {
	// Cancelling stops the SDK's listing goroutine if fn bails out early.
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	objects := s.cl.ListObjects(ctx, s.bucket, minio.ListObjectsOptions{
		Prefix:    locationPrefix + "/",
		Recursive: true,
	})
	for obj := range objects {
		if obj.Err != nil {
			return fmt.Errorf("s3 list: %w", obj.Err)
		}
		if err := fn(Artifact{Location: obj.Key, Size: obj.Size, ModTime: obj.LastModified}); err != nil {
			return err
		}
	}
	return ctx.Err()
}

func isNoSuchKey(err error) bool {
	return minio.ToErrorResponse(err).Code == "NoSuchKey"
}
