package apiclient

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"strings"

	"submita/internal/upload"
)

// FilePart is one file sent as multipart/form-data.
type FilePart struct {
	Field       string
	FileName    string
	ContentType string
	Content     io.Reader
}

var quoteEscaper = strings.NewReplacer("\\", "\\\\", `"`, "\\\"")

// Upload posts a single file. progress, when set, is called as the body is
// written to the connection. Uploads are never retried.
func (c *Client) Upload(ctx context.Context, path string, part FilePart, progress upload.ProgressFunc, out any) error {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)

	field := part.Field
	if field == "" {
		field = "file"
	}
	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="%s"; filename="%s"`,
		quoteEscaper.Replace(field), quoteEscaper.Replace(part.FileName)))
	contentType := part.ContentType
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	h.Set("Content-Type", contentType)

	w, err := mw.CreatePart(h)
	if err != nil {
		return fmt.Errorf("create multipart part: %w", err)
	}
	if _, err := io.Copy(w, part.Content); err != nil {
		return fmt.Errorf("write multipart part: %w", err)
	}
	if err := mw.Close(); err != nil {
		return fmt.Errorf("close multipart body: %w", err)
	}

	total := int64(buf.Len())
	body := upload.NewProgressReader(&buf, total, progress)
	return c.roundTrip(ctx, http.MethodPost, path, nil, body, mw.FormDataContentType(), total, out)
}
