package media

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"

	gcs "cloud.google.com/go/storage"
	"github.com/google/uuid"
	"google.golang.org/api/iterator"
)

const (
	// gcsStagingPrefix holds multipart parts until they are composed.
	gcsStagingPrefix = ".multipart/"

	// maxComposeSources is the per-request limit of GCS compose.
	maxComposeSources = 32
)

// GCSStorage implements Storage on a Google Cloud Storage bucket. GCS has
// no S3-style multipart upload, so parts are staged as separate objects
// and composed on completion.
type GCSStorage struct {
	client *gcs.Client
	bucket *gcs.BucketHandle
}

// NewGCSStorage connects with application default credentials.
func NewGCSStorage(ctx context.Context, bucketName string) (*GCSStorage, error) {
	client, err := gcs.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("creating gcs client: %w", err)
	}
	return &GCSStorage{client: client, bucket: client.Bucket(bucketName)}, nil
}

// Close releases the client.
func (s *GCSStorage) Close() error {
	return s.client.Close()
}

func (s *GCSStorage) Put(ctx context.Context, key string, body io.Reader, _ int64, contentType string) error {
	w := s.bucket.Object(key).NewWriter(ctx)
	w.ContentType = contentType
	if _, err := io.Copy(w, body); err != nil {
		_ = w.Close()
		return fmt.Errorf("gcs put %s: %w", key, err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("gcs put %s: %w", key, err)
	}
	return nil
}

func (s *GCSStorage) Stat(ctx context.Context, key string) (*ObjectInfo, error) {
	attrs, err := s.bucket.Object(key).Attrs(ctx)
	if err != nil {
		return nil, gcsError("stat", key, err)
	}
	return &ObjectInfo{
		Size:        attrs.Size,
		ContentType: attrs.ContentType,
		ETag:        attrs.Etag,
		ModifiedAt:  attrs.Updated,
	}, nil
}

func (s *GCSStorage) Get(ctx context.Context, key string, rng *ByteRange) (*ObjectReader, error) {
	var (
		r   *gcs.Reader
		err error
	)
	obj := s.bucket.Object(key)
	if rng != nil {
		r, err = obj.NewRangeReader(ctx, rng.Start, rng.Length())
	} else {
		r, err = obj.NewReader(ctx)
	}
	if err != nil {
		return nil, gcsError("get", key, err)
	}
	return &ObjectReader{
		Body: r,
		ObjectInfo: ObjectInfo{
			Size:        r.Remain(),
			ContentType: r.Attrs.ContentType,
			ModifiedAt:  r.Attrs.LastModified,
		},
	}, nil
}

func (s *GCSStorage) List(ctx context.Context, limit int) ([]Object, error) {
	objects := []Object{}
	it := s.bucket.Objects(ctx, nil)
	for {
		attrs, err := it.Next()
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("gcs list: %w", err)
		}
		if strings.HasPrefix(attrs.Name, gcsStagingPrefix) {
			continue
		}
		objects = append(objects, Object{
			Key:         attrs.Name,
			Size:        attrs.Size,
			ETag:        attrs.Etag,
			ContentType: attrs.ContentType,
			Uploaded:    attrs.Updated,
		})
		if limit > 0 && len(objects) == limit {
			break
		}
	}
	return objects, nil
}

func (s *GCSStorage) Delete(ctx context.Context, key string) error {
	err := s.bucket.Object(key).Delete(ctx)
	if err != nil && !errors.Is(err, gcs.ErrObjectNotExist) {
		return fmt.Errorf("gcs delete %s: %w", key, err)
	}
	return nil
}

// CreateMultipart records the content type on a staging marker so the
// composed object can carry it.
func (s *GCSStorage) CreateMultipart(ctx context.Context, key, contentType string) (string, error) {
	uploadID := uuid.NewString()
	w := s.bucket.Object(stagingMarker(uploadID)).NewWriter(ctx)
	w.Metadata = map[string]string{"key": key, "contentType": contentType}
	if err := w.Close(); err != nil {
		return "", fmt.Errorf("gcs create multipart %s: %w", key, err)
	}
	return uploadID, nil
}

func (s *GCSStorage) UploadPart(ctx context.Context, key, uploadID string, partNumber int, body io.Reader, _ int64) (string, error) {
	marker, err := s.bucket.Object(stagingMarker(uploadID)).Attrs(ctx)
	if err != nil {
		return "", gcsError("resume multipart", key, err)
	}
	if marker.Metadata["key"] != key {
		return "", ErrObjectNotFound
	}

	w := s.bucket.Object(stagingPart(uploadID, partNumber)).NewWriter(ctx)
	if _, err := io.Copy(w, body); err != nil {
		_ = w.Close()
		return "", fmt.Errorf("gcs upload part %d of %s: %w", partNumber, key, err)
	}
	if err := w.Close(); err != nil {
		return "", fmt.Errorf("gcs upload part %d of %s: %w", partNumber, key, err)
	}
	return w.Attrs().Etag, nil
}

func (s *GCSStorage) CompleteMultipart(ctx context.Context, key, uploadID string, parts []CompletedPart) error {
	if len(parts) > maxComposeSources {
		return ErrTooManyParts
	}
	marker, err := s.bucket.Object(stagingMarker(uploadID)).Attrs(ctx)
	if err != nil {
		return gcsError("resume multipart", key, err)
	}
	if marker.Metadata["key"] != key {
		return ErrObjectNotFound
	}

	sorted := append([]CompletedPart(nil), parts...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].PartNumber < sorted[j].PartNumber })

	sources := make([]*gcs.ObjectHandle, 0, len(sorted))
	for _, p := range sorted {
		sources = append(sources, s.bucket.Object(stagingPart(uploadID, p.PartNumber)))
	}
	composer := s.bucket.Object(key).ComposerFrom(sources...)
	composer.ContentType = marker.Metadata["contentType"]
	if _, err := composer.Run(ctx); err != nil {
		return fmt.Errorf("gcs compose %s: %w", key, err)
	}

	for _, src := range append(sources, s.bucket.Object(stagingMarker(uploadID))) {
		_ = src.Delete(ctx)
	}
	return nil
}

func (s *GCSStorage) Ping(ctx context.Context) error {
	_, err := s.bucket.Attrs(ctx)
	return err
}

func stagingMarker(uploadID string) string {
	return gcsStagingPrefix + uploadID + "/upload"
}

func stagingPart(uploadID string, partNumber int) string {
	return gcsStagingPrefix + uploadID + "/" + strconv.Itoa(partNumber)
}

func gcsError(op, key string, err error) error {
	if errors.Is(err, gcs.ErrObjectNotExist) {
		return ErrObjectNotFound
	}
	return fmt.Errorf("gcs %s %s: %w", op, key, err)
}
