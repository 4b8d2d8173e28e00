package media

import (
	"errors"
	"io"
	"net/http"
	"net/url"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/keyxmakerx/nexus/internal/apperror"
)

// Handler handles HTTP requests for bucket operations.
type Handler struct {
	service MediaService
	maxSize int64
}

// NewHandler creates a new media handler. maxSize caps buffered bodies.
func NewHandler(service MediaService, maxSize int64) *Handler {
	return &Handler{service: service, maxSize: maxSize}
}

// Upload stores the raw request body (PUT /api/upload?key=).
func (h *Handler) Upload(c echo.Context) error {
	body, err := h.readBody(c)
	if err != nil {
		return err
	}
	fileURL, err := h.service.Upload(c.Request().Context(), c.QueryParam("key"), body, c.Request().Header.Get(echo.HeaderContentType))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, map[string]string{"url": fileURL})
}

// CreateMultipart starts a multipart upload (POST /api/upload/mp/create).
func (h *Handler) CreateMultipart(c echo.Context) error {
	var req CreateMultipartRequest
	if err := c.Bind(&req); err != nil {
		return apperror.NewBadRequest("invalid request body")
	}
	upload, err := h.service.CreateMultipart(c.Request().Context(), req.Filename, req.ContentType)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, upload)
}

// UploadPart stores one part (POST /api/upload/mp/part?key=&uploadId=&partNumber=).
func (h *Handler) UploadPart(c echo.Context) error {
	partNumber, err := strconv.Atoi(c.QueryParam("partNumber"))
	if err != nil {
		return apperror.NewValidation("partNumber must be an integer")
	}
	body, err := h.readBody(c)
	if err != nil {
		return err
	}
	etag, err := h.service.UploadPart(c.Request().Context(), c.QueryParam("key"), c.QueryParam("uploadId"), partNumber, body)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, map[string]string{"etag": etag})
}

// CompleteMultipart assembles the parts (POST /api/upload/mp/complete?key=&uploadId=).
func (h *Handler) CompleteMultipart(c echo.Context) error {
	var req CompleteMultipartRequest
	if err := c.Bind(&req); err != nil {
		return apperror.NewBadRequest("invalid request body")
	}
	fileURL, err := h.service.CompleteMultipart(c.Request().Context(), c.QueryParam("key"), c.QueryParam("uploadId"), req.Parts)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, map[string]string{"url": fileURL})
}

// List returns every object in the bucket (GET /api/storage/list).
func (h *Handler) List(c echo.Context) error {
	files, err := h.service.List(c.Request().Context())
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, map[string]any{"files": files})
}

// Delete removes an object (DELETE /api/delete-file/*).
func (h *Handler) Delete(c echo.Context) error {
	if err := h.service.Delete(c.Request().Context(), wildcardKey(c)); err != nil {
		return err
	}
	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}

// Serve streams an object, honoring a single byte range (GET /api/file/*).
func (h *Handler) Serve(c echo.Context) error {
	obj, rng, total, err := h.service.Open(c.Request().Context(), wildcardKey(c), c.Request().Header.Get("Range"))
	if err != nil {
		return err
	}
	defer obj.Body.Close()

	header := c.Response().Header()
	header.Set("Accept-Ranges", "bytes")
	header.Set("Cache-Control", "public, max-age=86400")
	if obj.ETag != "" {
		header.Set("ETag", obj.ETag)
	}
	if !obj.ModifiedAt.IsZero() {
		header.Set("Last-Modified", obj.ModifiedAt.UTC().Format(http.TimeFormat))
	}

	contentType := obj.ContentType
	if contentType == "" {
		contentType = echo.MIMEOctetStream
	}

	status := http.StatusOK
	if rng != nil {
		status = http.StatusPartialContent
		header.Set("Content-Range", "bytes "+strconv.FormatInt(rng.Start, 10)+"-"+strconv.FormatInt(rng.End, 10)+"/"+strconv.FormatInt(total, 10))
		header.Set(echo.HeaderContentLength, strconv.FormatInt(rng.Length(), 10))
	} else if obj.Size > 0 {
		header.Set(echo.HeaderContentLength, strconv.FormatInt(obj.Size, 10))
	}
	return c.Stream(status, contentType, obj.Body)
}

// HealthCheck proves the bucket answers (GET /api/health-check).
func (h *Handler) HealthCheck(c echo.Context) error {
	if err := h.service.Health(c.Request().Context()); err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{"status": "error"})
	}
	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}

// readBody buffers the request body, one byte past the cap so the
// service can reject oversized payloads.
func (h *Handler) readBody(c echo.Context) ([]byte, error) {
	r := io.Reader(c.Request().Body)
	if h.maxSize > 0 {
		r = io.LimitReader(r, h.maxSize+1)
	}
	body, err := io.ReadAll(r)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return nil, apperror.NewValidation("file too large")
		}
		return nil, apperror.NewBadRequest("reading request body failed")
	}
	return body, nil
}

// wildcardKey returns the unescaped object key from the trailing path.
func wildcardKey(c echo.Context) string {
	raw := c.Param("*")
	if key, err := url.PathUnescape(raw); err == nil {
		return key
	}
	return raw
}
