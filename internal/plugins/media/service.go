package media

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"path"
	"strconv"
	"strings"
	"time"
	"unicode"

	"github.com/google/uuid"

	"github.com/keyxmakerx/nexus/internal/apperror"
)

const msgStorageNotConfigured = "Bucket not bound"

// MediaService validates keys and bodies before they reach the bucket.
type MediaService interface {
	// Configured reports whether a storage backend is bound.
	Configured() bool

	// Upload stores body under key and returns its public URL.
	Upload(ctx context.Context, key string, body []byte, contentType string) (string, error)

	// CreateMultipart starts an upload under a fresh key derived from
	// filename's extension.
	CreateMultipart(ctx context.Context, filename, contentType string) (*MultipartUpload, error)

	UploadPart(ctx context.Context, key, uploadID string, partNumber int, body []byte) (string, error)

	// CompleteMultipart assembles the parts and returns the public URL.
	CompleteMultipart(ctx context.Context, key, uploadID string, parts []CompletedPart) (string, error)

	List(ctx context.Context) ([]Object, error)
	Delete(ctx context.Context, key string) error

	// Open resolves rangeHeader against the object and opens the body.
	// The returned range is nil when the whole object is served.
	Open(ctx context.Context, key, rangeHeader string) (*ObjectReader, *ByteRange, int64, error)

	// Health lists a single object to prove the bucket answers.
	Health(ctx context.Context) error
}

type mediaService struct {
	storage Storage
	maxSize int64
	now     func() time.Time
}

// NewMediaService creates the media service. storage may be nil, in which
// case reads return empty results and writes fail.
func NewMediaService(storage Storage, maxSize int64) MediaService {
	return &mediaService{storage: storage, maxSize: maxSize, now: time.Now}
}

func (s *mediaService) Configured() bool {
	return s.storage != nil
}

func (s *mediaService) Upload(ctx context.Context, key string, body []byte, contentType string) (string, error) {
	if s.storage == nil {
		return "", apperror.NewServiceUnavailable(msgStorageNotConfigured)
	}
	if err := validateKey(key); err != nil {
		return "", err
	}
	if err := s.checkSize(body); err != nil {
		return "", err
	}
	if contentType == "" || contentType == "application/octet-stream" {
		contentType = http.DetectContentType(body)
	}

	if err := s.storage.Put(ctx, key, bytes.NewReader(body), int64(len(body)), contentType); err != nil {
		return "", storageError(err)
	}
	slog.Info("object uploaded",
		slog.String("key", key),
		slog.Int("bytes", len(body)),
		slog.String("content_type", contentType),
	)
	return FileURL(key), nil
}

func (s *mediaService) CreateMultipart(ctx context.Context, filename, contentType string) (*MultipartUpload, error) {
	if s.storage == nil {
		return nil, apperror.NewServiceUnavailable(msgStorageNotConfigured)
	}
	if strings.TrimSpace(filename) == "" {
		return nil, apperror.NewValidation("filename is required")
	}

	key := s.generateKey(filename)
	uploadID, err := s.storage.CreateMultipart(ctx, key, contentType)
	if err != nil {
		return nil, storageError(err)
	}
	return &MultipartUpload{UploadID: uploadID, Key: key}, nil
}

func (s *mediaService) UploadPart(ctx context.Context, key, uploadID string, partNumber int, body []byte) (string, error) {
	if s.storage == nil {
		return "", apperror.NewServiceUnavailable(msgStorageNotConfigured)
	}
	if err := validateKey(key); err != nil {
		return "", err
	}
	if uploadID == "" {
		return "", apperror.NewValidation("uploadId is required")
	}
	if partNumber < 1 || partNumber > maxPartNumber {
		return "", apperror.NewValidation(fmt.Sprintf("partNumber must be between 1 and %d", maxPartNumber))
	}
	if err := s.checkSize(body); err != nil {
		return "", err
	}

	etag, err := s.storage.UploadPart(ctx, key, uploadID, partNumber, bytes.NewReader(body), int64(len(body)))
	if err != nil {
		return "", storageError(err)
	}
	return etag, nil
}

func (s *mediaService) CompleteMultipart(ctx context.Context, key, uploadID string, parts []CompletedPart) (string, error) {
	if s.storage == nil {
		return "", apperror.NewServiceUnavailable(msgStorageNotConfigured)
	}
	if err := validateKey(key); err != nil {
		return "", err
	}
	if uploadID == "" {
		return "", apperror.NewValidation("uploadId is required")
	}
	if len(parts) == 0 {
		return "", apperror.NewValidation("parts are required")
	}
	seen := make(map[int]bool, len(parts))
	for _, p := range parts {
		if p.PartNumber < 1 || p.PartNumber > maxPartNumber || p.ETag == "" {
			return "", apperror.NewValidation("every part needs a partNumber and an etag")
		}
		if seen[p.PartNumber] {
			return "", apperror.NewValidation("duplicate partNumber " + strconv.Itoa(p.PartNumber))
		}
		seen[p.PartNumber] = true
	}

	if err := s.storage.CompleteMultipart(ctx, key, uploadID, parts); err != nil {
		return "", storageError(err)
	}
	slog.Info("multipart upload completed", slog.String("key", key), slog.Int("parts", len(parts)))
	return FileURL(key), nil
}

func (s *mediaService) List(ctx context.Context) ([]Object, error) {
	if s.storage == nil {
		return []Object{}, nil
	}
	objects, err := s.storage.List(ctx, 0)
	if err != nil {
		return nil, storageError(err)
	}
	return objects, nil
}

func (s *mediaService) Delete(ctx context.Context, key string) error {
	if s.storage == nil {
		return apperror.NewServiceUnavailable(msgStorageNotConfigured)
	}
	if err := validateKey(key); err != nil {
		return err
	}
	if err := s.storage.Delete(ctx, key); err != nil {
		return storageError(err)
	}
	slog.Info("object deleted", slog.String("key", key))
	return nil
}

func (s *mediaService) Open(ctx context.Context, key, rangeHeader string) (*ObjectReader, *ByteRange, int64, error) {
	if s.storage == nil {
		return nil, nil, 0, apperror.NewNotFound("file not found")
	}
	if err := validateKey(key); err != nil {
		return nil, nil, 0, apperror.NewNotFound("file not found")
	}

	if rangeHeader == "" {
		obj, err := s.storage.Get(ctx, key, nil)
		if err != nil {
			return nil, nil, 0, storageError(err)
		}
		return obj, nil, obj.Size, nil
	}

	info, err := s.storage.Stat(ctx, key)
	if err != nil {
		return nil, nil, 0, storageError(err)
	}
	rng, err := parseRange(rangeHeader, info.Size)
	if err != nil {
		return nil, nil, 0, err
	}
	obj, err := s.storage.Get(ctx, key, rng)
	if err != nil {
		return nil, nil, 0, storageError(err)
	}
	if obj.ContentType == "" {
		obj.ContentType = info.ContentType
	}
	if obj.ETag == "" {
		obj.ETag = info.ETag
	}
	return obj, rng, info.Size, nil
}

func (s *mediaService) Health(ctx context.Context) error {
	if s.storage == nil {
		return apperror.NewServiceUnavailable(msgStorageNotConfigured)
	}
	if _, err := s.storage.List(ctx, 1); err != nil {
		return storageError(err)
	}
	return nil
}

func (s *mediaService) checkSize(body []byte) error {
	if len(body) == 0 {
		return apperror.NewValidation("body is empty")
	}
	if s.maxSize > 0 && int64(len(body)) > s.maxSize {
		return apperror.NewValidation(fmt.Sprintf("file too large; maximum size is %d MB", s.maxSize/(1024*1024)))
	}
	return nil
}

// generateKey builds "<unix-ms>_<random>.<ext>" keeping only a short
// alphanumeric extension from filename.
func (s *mediaService) generateKey(filename string) string {
	random := strings.ReplaceAll(uuid.NewString(), "-", "")[:12]
	key := strconv.FormatInt(s.now().UnixMilli(), 10) + "_" + random

	ext := strings.TrimPrefix(strings.ToLower(path.Ext(filename)), ".")
	if ext == "" || len(ext) > maxExtLen {
		return key
	}
	for _, r := range ext {
		if !unicode.IsLetter(r) && !unicode.IsDigit(r) {
			return key
		}
	}
	return key + "." + ext
}

// validateKey rejects keys that could escape the bucket namespace or
// collide with the GCS staging area.
func validateKey(key string) error {
	switch {
	case key == "":
		return apperror.NewValidation("Missing key")
	case len(key) > maxKeyLen:
		return apperror.NewValidation("key is too long")
	case strings.HasPrefix(key, "/"), strings.HasPrefix(key, gcsStagingPrefix):
		return apperror.NewValidation("invalid key")
	}
	for _, seg := range strings.Split(key, "/") {
		if seg == "." || seg == ".." {
			return apperror.NewValidation("invalid key")
		}
	}
	for _, r := range key {
		if unicode.IsControl(r) {
			return apperror.NewValidation("invalid key")
		}
	}
	return nil
}

// parseRange resolves a single "bytes=" range against size. Multiple
// ranges are not supported and yield the whole object.
func parseRange(header string, size int64) (*ByteRange, error) {
	spec, ok := strings.CutPrefix(header, "bytes=")
	if !ok || strings.Contains(spec, ",") {
		return nil, nil
	}
	startStr, endStr, ok := strings.Cut(strings.TrimSpace(spec), "-")
	if !ok {
		return nil, nil
	}
	unsatisfiable := apperror.NewRangeNotSatisfiable("requested range not satisfiable")

	if startStr == "" {
		// Suffix range: the last n bytes.
		n, err := strconv.ParseInt(endStr, 10, 64)
		if err != nil || n <= 0 || size == 0 {
			return nil, unsatisfiable
		}
		n = min(n, size)
		return &ByteRange{Start: size - n, End: size - 1}, nil
	}

	start, err := strconv.ParseInt(startStr, 10, 64)
	if err != nil || start < 0 || start >= size {
		return nil, unsatisfiable
	}
	end := size - 1
	if endStr != "" {
		e, err := strconv.ParseInt(endStr, 10, 64)
		if err != nil || e < start {
			return nil, unsatisfiable
		}
		end = min(e, size-1)
	}
	return &ByteRange{Start: start, End: end}, nil
}

// storageError maps backend errors onto AppErrors.
func storageError(err error) error {
	var appErr *apperror.AppError
	switch {
	case errors.As(err, &appErr):
		return appErr
	case errors.Is(err, ErrObjectNotFound):
		return apperror.NewNotFound("file not found")
	case errors.Is(err, ErrTooManyParts):
		return apperror.NewValidation("too many parts for this storage backend")
	default:
		return apperror.NewInternal(err)
	}
}
