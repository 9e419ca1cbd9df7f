// Package upload submits the finished audio artifact to the coaching backend.
package upload

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strconv"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

// Artifact is the file handed to the upload path: either the canonical WAV
// or, after a transcode failure, the raw compressed recording.
type Artifact struct {
	Filename    string
	ContentType string
	Data        []byte
}

// Uploader posts artifacts to a fixed backend endpoint.
type Uploader struct {
	baseURL string
	client  *http.Client
}

// New creates an Uploader for the given base URL (e.g. "https://coach.example.com").
func New(baseURL string) *Uploader {
	return &Uploader{
		baseURL: baseURL,
		client: &http.Client{
			Transport: otelhttp.NewTransport(http.DefaultTransport),
			Timeout:   2 * time.Minute,
		},
	}
}

// Upload submits the artifact for the given session as a multipart file
// together with the two processing flags.
func (u *Uploader) Upload(ctx context.Context, sessionID string, art Artifact, processImmediately, generateFeedback bool) error {
	var body bytes.Buffer
	w := multipart.NewWriter(&body)

	part, err := w.CreateFormFile("audio_file", art.Filename)
	if err != nil {
		return fmt.Errorf("upload: build form: %w", err)
	}
	if _, err := part.Write(art.Data); err != nil {
		return fmt.Errorf("upload: build form: %w", err)
	}
	if err := w.WriteField("process_immediately", strconv.FormatBool(processImmediately)); err != nil {
		return fmt.Errorf("upload: build form: %w", err)
	}
	if err := w.WriteField("generate_feedback", strconv.FormatBool(generateFeedback)); err != nil {
		return fmt.Errorf("upload: build form: %w", err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("upload: build form: %w", err)
	}

	url := fmt.Sprintf("%s/api/sessions/%s/audio", u.baseURL, sessionID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, &body)
	if err != nil {
		return fmt.Errorf("upload: build request: %w", err)
	}
	req.Header.Set("Content-Type", w.FormDataContentType())

	resp, err := u.client.Do(req)
	if err != nil {
		return fmt.Errorf("upload: post artifact: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return fmt.Errorf("upload: backend returned %d: %s", resp.StatusCode, detail)
	}
	return nil
}
