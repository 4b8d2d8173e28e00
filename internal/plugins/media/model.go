// Package media proxies the object storage bucket that holds uploaded
// audio, video and images. Admins upload (single shot or multipart), list
// and delete objects; anyone can stream an object back through
// /api/file/<key>, with single byte-range support for media players.
//
// Two backends implement Storage: S3-compatible buckets (AWS S3,
// Cloudflare R2, MinIO) and Google Cloud Storage.
package media

import (
	"errors"
	"io"
	"time"
)

var (
	// ErrObjectNotFound is returned when a key does not exist.
	ErrObjectNotFound = errors.New("media: object not found")

	// ErrTooManyParts is returned when a multipart upload exceeds what the
	// backend can assemble.
	ErrTooManyParts = errors.New("media: too many parts")
)

const (
	// maxKeyLen matches the S3 object key limit.
	maxKeyLen = 1024

	// maxPartNumber is the highest part number S3 accepts.
	maxPartNumber = 10000

	// maxExtLen bounds the extension kept from a multipart filename.
	maxExtLen = 10

	fileRoutePrefix = "/api/file/"
)

// Object describes one stored object in listings.
type Object struct {
	Key         string    `json:"key"`
	Size        int64     `json:"size"`
	ETag        string    `json:"etag,omitempty"`
	ContentType string    `json:"contentType,omitempty"`
	Uploaded    time.Time `json:"uploaded"`
}

// ObjectInfo is the metadata needed to serve an object.
type ObjectInfo struct {
	Size        int64
	ContentType string
	ETag        string
	ModifiedAt  time.Time
}

// ByteRange is an inclusive, absolute byte range.
type ByteRange struct {
	Start int64
	End   int64
}

// Length returns the number of bytes covered by r.
func (r ByteRange) Length() int64 { return r.End - r.Start + 1 }

// ObjectReader is an open object body. Callers must close Body.
type ObjectReader struct {
	Body io.ReadCloser
	ObjectInfo
}

// CompletedPart identifies an uploaded part when completing a multipart
// upload.
type CompletedPart struct {
	PartNumber int    `json:"partNumber"`
	ETag       string `json:"etag"`
}

// CreateMultipartRequest is the body of POST /api/upload/mp/create.
type CreateMultipartRequest struct {
	Filename    string `json:"filename"`
	ContentType string `json:"contentType"`
}

// CompleteMultipartRequest is the body of POST /api/upload/mp/complete.
type CompleteMultipartRequest struct {
	Parts []CompletedPart `json:"parts"`
}

// MultipartUpload identifies an upload in progress.
type MultipartUpload struct {
	UploadID string `json:"uploadId"`
	Key      string `json:"key"`
}

// FileURL is the public path an object is served from.
func FileURL(key string) string {
	return fileRoutePrefix + key
}
