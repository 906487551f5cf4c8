package harvest

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/textproto"
)

// Recognizer extracts the text visible in a photo.
type Recognizer interface {
	Recognize(ctx context.Context, photo Photo) (string, error)
}

// RecognizerFunc adapts a function to Recognizer.
type RecognizerFunc func(ctx context.Context, photo Photo) (string, error)

func (f RecognizerFunc) Recognize(ctx context.Context, photo Photo) (string, error) {
	return f(ctx, photo)
}

// HTTPRecognizer posts the image to an OCR service as multipart field
// "image" and reads {"text": "..."} back.
type HTTPRecognizer struct {
	up *Upstream
}

func NewHTTPRecognizer(up *Upstream) *HTTPRecognizer {
	return &HTTPRecognizer{up: up}
}

func (h *HTTPRecognizer) Recognize(ctx context.Context, photo Photo) (string, error) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)

	name := photo.Filename
	if name == "" {
		name = "harvest.jpg"
	}
	ct := photo.ContentType
	if ct == "" {
		ct = "application/octet-stream"
	}
	hdr := make(textproto.MIMEHeader)
	hdr.Set("Content-Disposition", fmt.Sprintf(`form-data; name="image"; filename=%q`, name))
	hdr.Set("Content-Type", ct)
	part, err := mw.CreatePart(hdr)
	if err != nil {
		return "", err
	}
	if _, err := part.Write(photo.Data); err != nil {
		return "", err
	}
	if err := mw.Close(); err != nil {
		return "", err
	}

	body, err := h.up.Post(ctx, mw.FormDataContentType(), buf.Bytes())
	if err != nil {
		return "", err
	}
	var out struct {
		Text string `json:"text"`
	}
	if err := json.Unmarshal(body, &out); err != nil {
		return "", fmt.Errorf("ocr reply: %w", err)
	}
	return out.Text, nil
}
