// Package formdata builds multipart bodies for audio uploads.
package formdata

import (
	"bytes"
	"fmt"
	"io"
	"mime/multipart"
	"net/textproto"
	"strings"
)

// Audio is the upload source; internal/audio.Artifact satisfies it.
type Audio interface {
	Filename() string
	MIME() string
	Reader() io.Reader
}

// AudioBody writes a single file part named field and returns the body with
// its Content-Type header value.
func AudioBody(field string, a Audio) (*bytes.Buffer, string, error) {
	field = strings.TrimSpace(field)
	if field == "" {
		return nil, "", fmt.Errorf("field name is required")
	}

	ct := strings.TrimSpace(a.MIME())
	if ct == "" {
		ct = "application/octet-stream"
	}

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)

	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", fmt.Sprintf(`form-data; name=%q; filename=%q`, field, a.Filename()))
	h.Set("Content-Type", ct)

	part, err := mw.CreatePart(h)
	if err != nil {
		return nil, "", fmt.Errorf("create part: %w", err)
	}
	if _, err := io.Copy(part, a.Reader()); err != nil {
		return nil, "", fmt.Errorf("write part: %w", err)
	}
	if err := mw.Close(); err != nil {
		return nil, "", fmt.Errorf("close multipart: %w", err)
	}

	return &body, mw.FormDataContentType(), nil
}
