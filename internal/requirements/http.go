package requirements

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"
)

// DefaultTimeout bounds a generation request.
const DefaultTimeout = 90 * time.Second

// HTTPGenerator calls the requirements generation service.
type HTTPGenerator struct {
	endpoint   string
	httpClient *http.Client
	logger     *zap.Logger
}

// NewHTTPGenerator creates a generator posting to endpoint.
func NewHTTPGenerator(endpoint string, httpClient *http.Client, logger *zap.Logger) *HTTPGenerator {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: DefaultTimeout}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &HTTPGenerator{endpoint: endpoint, httpClient: httpClient, logger: logger}
}

// Generate posts req as JSON and validates the response document.
func (g *HTTPGenerator) Generate(ctx context.Context, req Request) (*Requirements, error) {
	if err := req.Validate(); err != nil {
		return nil, &GenerationError{Role: req.RoleName, Message: "invalid request", Cause: err}
	}

	body, err := json.Marshal(req)
	if err != nil {
		return nil, &GenerationError{Role: req.RoleName, Message: "failed to encode request", Cause: err}
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, g.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, &GenerationError{Role: req.RoleName, Message: "failed to create request", Cause: err}
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json")

	resp, err := g.httpClient.Do(httpReq)
	if err != nil {
		return nil, &GenerationError{Role: req.RoleName, Message: "HTTP request failed", Cause: err}
	}
	defer func() { _ = resp.Body.Close() }()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &GenerationError{Role: req.RoleName, StatusCode: resp.StatusCode, Message: "failed to read response body", Cause: err}
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &GenerationError{
			Role:       req.RoleName,
			StatusCode: resp.StatusCode,
			Message:    fmt.Sprintf("unexpected status %d: %s", resp.StatusCode, strings.TrimSpace(string(data))),
		}
	}

	reqs, err := Decode(data)
	if err != nil {
		return nil, &GenerationError{Role: req.RoleName, StatusCode: resp.StatusCode, Message: "malformed response", Cause: err}
	}

	g.logger.Info("generated requirements",
		zap.String("role", req.RoleName),
		zap.Int("items", reqs.Count()))
	return reqs, nil
}
