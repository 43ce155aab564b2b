// Package extraction talks to the resume extraction service and runs upload
// batches through it one file at a time.
package extraction

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"strings"
	"time"

	"go.uber.org/zap"
)

// DefaultTimeout bounds a single extraction request.
const DefaultTimeout = 60 * time.Second

// File is one uploaded file to extract.
type File struct {
	Name     string
	MimeType string
	Data     []byte
}

// Response is the normalized extraction service response.
type Response struct {
	Text string
	Raw  map[string]any
}

// Extractor extracts display text from a single file.
type Extractor interface {
	Extract(ctx context.Context, file File) (*Response, error)
}

// Error represents a failed extraction request.
type Error struct {
	File       string
	StatusCode int
	Message    string
	Cause      error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("extraction failed for %s: %s: %v", e.File, e.Message, e.Cause)
	}
	return fmt.Sprintf("extraction failed for %s: %s", e.File, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// Client calls an HTTP extraction endpoint with multipart/form-data.
type Client struct {
	endpoint   string
	httpClient *http.Client
	logger     *zap.Logger
}

// NewClient creates a client for the extraction endpoint URL.
func NewClient(endpoint string, httpClient *http.Client, logger *zap.Logger) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: DefaultTimeout}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{endpoint: endpoint, httpClient: httpClient, logger: logger}
}

// Extract posts file as the single "file" part and normalizes the response.
func (c *Client) Extract(ctx context.Context, file File) (*Response, error) {
	body, contentType, err := encodeMultipart(file)
	if err != nil {
		return nil, &Error{File: file.Name, Message: "failed to encode upload", Cause: err}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, body)
	if err != nil {
		return nil, &Error{File: file.Name, Message: "failed to create request", Cause: err}
	}
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &Error{File: file.Name, Message: "HTTP request failed", Cause: err}
	}
	defer func() { _ = resp.Body.Close() }()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &Error{File: file.Name, StatusCode: resp.StatusCode, Message: "failed to read response body", Cause: err}
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &Error{
			File:       file.Name,
			StatusCode: resp.StatusCode,
			Message:    fmt.Sprintf("unexpected status %d: %s", resp.StatusCode, truncate(string(data), 200)),
		}
	}

	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, &Error{File: file.Name, StatusCode: resp.StatusCode, Message: "invalid JSON response", Cause: err}
	}

	if msg, failed := ReportedFailure(raw); failed {
		return nil, &Error{File: file.Name, StatusCode: resp.StatusCode, Message: msg}
	}

	text := ResolveText(raw)
	c.logger.Debug("extracted resume text",
		zap.String("file", file.Name),
		zap.Int("chars", len(text)),
		zap.Duration("elapsed", time.Since(start)))

	return &Response{Text: text, Raw: raw}, nil
}

func encodeMultipart(file File) (*bytes.Buffer, string, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	header := make(textproto.MIMEHeader)
	header.Set("Content-Disposition", fmt.Sprintf(`form-data; name="file"; filename=%q`, file.Name))
	mimeType := file.MimeType
	if mimeType == "" {
		mimeType = "application/octet-stream"
	}
	header.Set("Content-Type", mimeType)

	part, err := w.CreatePart(header)
	if err != nil {
		return nil, "", err
	}
	if _, err := part.Write(file.Data); err != nil {
		return nil, "", err
	}
	if err := w.Close(); err != nil {
		return nil, "", err
	}
	return &buf, w.FormDataContentType(), nil
}

func truncate(s string, n int) string {
	s = strings.TrimSpace(s)
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
