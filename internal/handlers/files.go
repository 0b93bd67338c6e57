package handlers

import (
	"mime"
	"net/http"

	"github.com/gin-gonic/gin"

	"submita/internal/apiclient"
	"submita/internal/pages"
	"submita/internal/storage"
)

// File serves an uploaded PDF or image. With an object store configured the
// backend is asked first whether the session may read the file, and only then
// is the browser sent to a short-lived signed link; otherwise the bytes are
// streamed from the backend.
func (h HandlerSet) File(c *gin.Context) {
	r := h.pages.Begin(c)
	if r.Load() {
		return
	}

	bucket, filename := c.Param("bucket"), c.Param("filename")
	if !storage.AllowedBucket(bucket) || !storage.ValidFilename(filename) {
		r.Fail(http.StatusNotFound)
		return
	}
	ctx := c.Request.Context()

	if h.store != nil {
		if err := r.Backend.Files.Authorize(ctx, bucket, filename); err != nil {
			h.fileFailure(r, err)
			return
		}
		u, err := h.store.PresignedURL(ctx, bucket, filename)
		if err == nil {
			c.Redirect(http.StatusFound, u.String())
			return
		}
		h.log.Warn().Err(err).Str("bucket", bucket).Str("file", filename).Msg("presign failed, streaming from backend")
	}

	raw, err := r.Backend.Files.Get(ctx, bucket, filename)
	if err != nil {
		h.fileFailure(r, err)
		return
	}
	defer raw.Body.Close()

	contentType := raw.ContentType
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	c.DataFromReader(http.StatusOK, raw.ContentLength, contentType, raw.Body, map[string]string{
		"Content-Disposition":    mime.FormatMediaType("inline", map[string]string{"filename": filename}),
		"Cache-Control":          "private, max-age=300",
		"X-Content-Type-Options": "nosniff",
	})
}

// fileFailure hides files the session may not read behind a 404.
func (h HandlerSet) fileFailure(r *pages.Request, err error) {
	if r.Handled(err) {
		return
	}
	status := http.StatusBadGateway
	if apiErr, ok := apiclient.AsError(err); ok && (apiErr.NotFound() || apiErr.Status == http.StatusForbidden) {
		status = http.StatusNotFound
	}
	r.Fail(status)
}
