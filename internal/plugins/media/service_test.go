package media

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/keyxmakerx/nexus/internal/apperror"
)

type memObject struct {
	data        []byte
	contentType string
	modified    time.Time
}

type memUpload struct {
	key         string
	contentType string
	parts       map[int][]byte
}

// memStorage is an in-memory Storage for tests.
type memStorage struct {
	mu      sync.Mutex
	objects map[string]memObject
	uploads map[string]*memUpload
	next    int
	listErr error
}

func newMemStorage() *memStorage {
	return &memStorage{objects: map[string]memObject{}, uploads: map[string]*memUpload{}}
}

func (m *memStorage) Put(_ context.Context, key string, body io.Reader, _ int64, contentType string) error {
	data, err := io.ReadAll(body)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.objects[key] = memObject{data: data, contentType: contentType, modified: time.Unix(1700000000, 0)}
	return nil
}

func (m *memStorage) Stat(_ context.Context, key string) (*ObjectInfo, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	obj, ok := m.objects[key]
	if !ok {
		return nil, ErrObjectNotFound
	}
	return &ObjectInfo{Size: int64(len(obj.data)), ContentType: obj.contentType, ETag: `"e"`, ModifiedAt: obj.modified}, nil
}

func (m *memStorage) Get(_ context.Context, key string, rng *ByteRange) (*ObjectReader, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	obj, ok := m.objects[key]
	if !ok {
		return nil, ErrObjectNotFound
	}
	data := obj.data
	if rng != nil {
		data = data[rng.Start : rng.End+1]
	}
	return &ObjectReader{
		Body:       io.NopCloser(bytes.NewReader(data)),
		ObjectInfo: ObjectInfo{Size: int64(len(data)), ContentType: obj.contentType, ModifiedAt: obj.modified},
	}, nil
}

func (m *memStorage) List(_ context.Context, limit int) ([]Object, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.listErr != nil {
		return nil, m.listErr
	}
	out := []Object{}
	for k, o := range m.objects {
		out = append(out, Object{Key: k, Size: int64(len(o.data)), ContentType: o.contentType})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *memStorage) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.objects, key)
	return nil
}

func (m *memStorage) CreateMultipart(_ context.Context, key, contentType string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.next++
	id := fmt.Sprintf("up-%d", m.next)
	m.uploads[id] = &memUpload{key: key, contentType: contentType, parts: map[int][]byte{}}
	return id, nil
}

func (m *memStorage) UploadPart(_ context.Context, key, uploadID string, partNumber int, body io.Reader, _ int64) (string, error) {
	data, err := io.ReadAll(body)
	if err != nil {
		return "", err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	up, ok := m.uploads[uploadID]
	if !ok || up.key != key {
		return "", ErrObjectNotFound
	}
	up.parts[partNumber] = data
	return fmt.Sprintf("etag-%d", partNumber), nil
}

func (m *memStorage) CompleteMultipart(_ context.Context, key, uploadID string, parts []CompletedPart) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	up, ok := m.uploads[uploadID]
	if !ok || up.key != key {
		return ErrObjectNotFound
	}
	sorted := append([]CompletedPart(nil), parts...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].PartNumber < sorted[j].PartNumber })
	var buf bytes.Buffer
	for _, p := range sorted {
		data, ok := up.parts[p.PartNumber]
		if !ok || p.ETag != fmt.Sprintf("etag-%d", p.PartNumber) {
			return errors.New("unknown part")
		}
		buf.Write(data)
	}
	m.objects[key] = memObject{data: buf.Bytes(), contentType: up.contentType}
	delete(m.uploads, uploadID)
	return nil
}

func (m *memStorage) Ping(context.Context) error { return nil }

func TestUploadThenOpen(t *testing.T) {
	store := newMemStorage()
	svc := NewMediaService(store, 1<<20)
	ctx := context.Background()

	fileURL, err := svc.Upload(ctx, "audio/song.mp3", []byte("ID3-audio-bytes"), "audio/mpeg")
	require.NoError(t, err)
	assert.Equal(t, "/api/file/audio/song.mp3", fileURL)

	obj, rng, total, err := svc.Open(ctx, "audio/song.mp3", "")
	require.NoError(t, err)
	defer obj.Body.Close()
	assert.Nil(t, rng)
	assert.Equal(t, int64(15), total)
	assert.Equal(t, "audio/mpeg", obj.ContentType)
	data, _ := io.ReadAll(obj.Body)
	assert.Equal(t, "ID3-audio-bytes", string(data))
}

func TestUpload_SniffsMissingContentType(t *testing.T) {
	store := newMemStorage()
	svc := NewMediaService(store, 1<<20)

	_, err := svc.Upload(context.Background(), "cover.png", []byte("\x89PNG\r\n\x1a\nrest"), "")
	require.NoError(t, err)
	assert.Equal(t, "image/png", store.objects["cover.png"].contentType)
}

func TestUpload_Rejections(t *testing.T) {
	svc := NewMediaService(newMemStorage(), 8)
	ctx := context.Background()

	tests := []struct {
		name string
		key  string
		body string
	}{
		{"missing key", "", "x"},
		{"absolute key", "/etc/passwd", "x"},
		{"dot segment", "a/../b", "x"},
		{"staging area", ".multipart/x/1", "x"},
		{"control char", "a\nb", "x"},
		{"too long", strings.Repeat("k", maxKeyLen+1), "x"},
		{"empty body", "k", ""},
		{"too large", "k", "123456789"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Upload(ctx, tt.key, []byte(tt.body), "text/plain")
			assert.True(t, apperror.IsType(err, apperror.TypeValidation), "got %v", err)
		})
	}
}

func TestUnconfiguredStorage(t *testing.T) {
	svc := NewMediaService(nil, 0)
	ctx := context.Background()

	assert.False(t, svc.Configured())

	files, err := svc.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, files)

	_, err = svc.Upload(ctx, "k", []byte("x"), "")
	assert.Equal(t, msgStorageNotConfigured, apperror.SafeMessage(err))
	assert.Error(t, svc.Health(ctx))

	_, _, _, err = svc.Open(ctx, "k", "")
	assert.Equal(t, 404, apperror.SafeCode(err))
}

func TestParseRange(t *testing.T) {
	tests := []struct {
		header  string
		want    *ByteRange
		invalid bool
	}{
		{"bytes=0-99", &ByteRange{0, 99}, false},
		{"bytes=100-", &ByteRange{100, 999}, false},
		{"bytes=-100", &ByteRange{900, 999}, false},
		{"bytes=-5000", &ByteRange{0, 999}, false},
		{"bytes=990-2000", &ByteRange{990, 999}, false},
		{"bytes=0-0", &ByteRange{0, 0}, false},
		{"bytes=0-1,5-6", nil, false},
		{"items=0-5", nil, false},
		{"bytes=1000-", nil, true},
		{"bytes=50-10", nil, true},
		{"bytes=-0", nil, true},
		{"bytes=x-y", nil, true},
	}
	for _, tt := range tests {
		t.Run(tt.header, func(t *testing.T) {
			got, err := parseRange(tt.header, 1000)
			if tt.invalid {
				assert.True(t, apperror.IsType(err, apperror.TypeRangeNotSatisfiable), "got %v", err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestOpen_Range(t *testing.T) {
	store := newMemStorage()
	svc := NewMediaService(store, 0)
	ctx := context.Background()
	_, err := svc.Upload(ctx, "clip.mp4", []byte("0123456789"), "video/mp4")
	require.NoError(t, err)

	obj, rng, total, err := svc.Open(ctx, "clip.mp4", "bytes=2-5")
	require.NoError(t, err)
	defer obj.Body.Close()
	assert.Equal(t, &ByteRange{2, 5}, rng)
	assert.Equal(t, int64(10), total)
	assert.Equal(t, `"e"`, obj.ETag, "etag falls back to the stat result")
	data, _ := io.ReadAll(obj.Body)
	assert.Equal(t, "2345", string(data))

	_, _, _, err = svc.Open(ctx, "missing.mp4", "bytes=0-1")
	assert.Equal(t, 404, apperror.SafeCode(err))
}

func TestMultipartFlow(t *testing.T) {
	store := newMemStorage()
	svc := NewMediaService(store, 0).(*mediaService)
	svc.now = func() time.Time { return time.UnixMilli(1700000000123) }
	ctx := context.Background()

	up, err := svc.CreateMultipart(ctx, "Live Set.FLAC", "audio/flac")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(up.Key, "1700000000123_"), up.Key)
	assert.True(t, strings.HasSuffix(up.Key, ".flac"), up.Key)

	e2, err := svc.UploadPart(ctx, up.Key, up.UploadID, 2, []byte("world"))
	require.NoError(t, err)
	e1, err := svc.UploadPart(ctx, up.Key, up.UploadID, 1, []byte("hello "))
	require.NoError(t, err)

	fileURL, err := svc.CompleteMultipart(ctx, up.Key, up.UploadID, []CompletedPart{
		{PartNumber: 2, ETag: e2},
		{PartNumber: 1, ETag: e1},
	})
	require.NoError(t, err)
	assert.Equal(t, FileURL(up.Key), fileURL)
	assert.Equal(t, "hello world", string(store.objects[up.Key].data))
	assert.Equal(t, "audio/flac", store.objects[up.Key].contentType)
}

func TestMultipart_Validation(t *testing.T) {
	svc := NewMediaService(newMemStorage(), 0)
	ctx := context.Background()

	_, err := svc.CreateMultipart(ctx, " ", "")
	assert.True(t, apperror.IsType(err, apperror.TypeValidation))

	_, err = svc.UploadPart(ctx, "k", "", 1, []byte("x"))
	assert.True(t, apperror.IsType(err, apperror.TypeValidation))

	_, err = svc.UploadPart(ctx, "k", "u", 0, []byte("x"))
	assert.True(t, apperror.IsType(err, apperror.TypeValidation))

	_, err = svc.UploadPart(ctx, "k", "u", maxPartNumber+1, []byte("x"))
	assert.True(t, apperror.IsType(err, apperror.TypeValidation))

	_, err = svc.UploadPart(ctx, "k", "nope", 1, []byte("x"))
	assert.Equal(t, 404, apperror.SafeCode(err))

	_, err = svc.CompleteMultipart(ctx, "k", "u", nil)
	assert.True(t, apperror.IsType(err, apperror.TypeValidation))

	_, err = svc.CompleteMultipart(ctx, "k", "u", []CompletedPart{{PartNumber: 1, ETag: "a"}, {PartNumber: 1, ETag: "b"}})
	assert.True(t, apperror.IsType(err, apperror.TypeValidation))
}

func TestGenerateKey_Extension(t *testing.T) {
	svc := NewMediaService(nil, 0).(*mediaService)
	svc.now = func() time.Time { return time.UnixMilli(42) }

	assert.Regexp(t, `^42_[0-9a-f]{12}\.mp3$`, svc.generateKey("a.b.MP3"))
	assert.Regexp(t, `^42_[0-9a-f]{12}$`, svc.generateKey("noext"))
	assert.Regexp(t, `^42_[0-9a-f]{12}$`, svc.generateKey("evil.p/h"))
	assert.Regexp(t, `^42_[0-9a-f]{12}$`, svc.generateKey("x."+strings.Repeat("a", maxExtLen+1)))
}

func TestHealth(t *testing.T) {
	store := newMemStorage()
	svc := NewMediaService(store, 0)
	assert.NoError(t, svc.Health(context.Background()))

	store.listErr = errors.New("bucket offline")
	assert.Equal(t, 500, apperror.SafeCode(svc.Health(context.Background())))
}

func TestDelete(t *testing.T) {
	store := newMemStorage()
	svc := NewMediaService(store, 0)
	ctx := context.Background()
	_, err := svc.Upload(ctx, "img/a.jpg", []byte("jpeg"), "image/jpeg")
	require.NoError(t, err)

	require.NoError(t, svc.Delete(ctx, "img/a.jpg"))
	files, err := svc.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, files)

	assert.True(t, apperror.IsType(svc.Delete(ctx, "../x"), apperror.TypeValidation))
}
