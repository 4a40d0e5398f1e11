package dbproxy

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/kimalale/tactical-workflow-manager/pkg/api"
	"github.com/kimalale/tactical-workflow-manager/pkg/log"
)

type (
	// Gateway forwards database operations to the external service that
	// owns the actual drivers
	Gateway interface {
		Execute(context.Context, *api.DatabaseExecuteRequest) (any, error)
		Test(context.Context, *api.DatabaseConnection) error
	}

	// HTTPGateway is a Gateway speaking the gateway's JSON HTTP API
	HTTPGateway struct {
		httpClient *http.Client
		baseURL    string
	}
)

const (
	executePath = "/api/database/execute"
	testPath    = "/api/database/test"
	userAgent   = "Tactical-Workflow-Engine/4.0"
)

var (
	ErrGatewayFailed = errors.New("database operation failed")
	ErrGatewayHTTP   = errors.New("gateway returned HTTP error")
	ErrTestFailed    = errors.New("connection test failed")
)

var _ Gateway = (*HTTPGateway)(nil)

// NewHTTPGateway creates a gateway client rooted at baseURL
func NewHTTPGateway(baseURL string, timeout time.Duration) *HTTPGateway {
	return &HTTPGateway{
		httpClient: &http.Client{
			Timeout: timeout,
		},
		baseURL: strings.TrimSuffix(baseURL, "/"),
	}
}

// Execute runs one operation. A success:false response or a transport
// failure is returned as a single ErrGatewayFailed error, never with a
// partial result
func (g *HTTPGateway) Execute(
	ctx context.Context, req *api.DatabaseExecuteRequest,
) (any, error) {
	var res api.DatabaseExecuteResponse
	if err := g.post(ctx, executePath, req, &res); err != nil {
		slog.Error("Database gateway request failed",
			log.Connection(req.ConnectionConfig.Name),
			slog.String("operation", string(req.Operation)),
			log.Error(err))
		return nil, fmt.Errorf("%w: %w", ErrGatewayFailed, err)
	}
	if !res.Success {
		return nil, fmt.Errorf("%w: %s", ErrGatewayFailed, res.Error)
	}
	return res.Result, nil
}

// Test asks the gateway to open and verify a connection
func (g *HTTPGateway) Test(
	ctx context.Context, conn *api.DatabaseConnection,
) error {
	var res api.DatabaseTestResponse
	req := &api.DatabaseTestRequest{ConnectionConfig: conn}
	if err := g.post(ctx, testPath, req, &res); err != nil {
		return fmt.Errorf("%w: %w", ErrTestFailed, err)
	}
	if !res.Success {
		return fmt.Errorf("%w: %s", ErrTestFailed, res.Error)
	}
	return nil
}

func (g *HTTPGateway) post(
	ctx context.Context, path string, body, out any,
) error {
	data, err := json.Marshal(body)
	if err != nil {
		return err
	}

	httpReq, err := http.NewRequestWithContext(
		ctx, http.MethodPost, g.baseURL+path, bytes.NewReader(data),
	)
	if err != nil {
		return err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json")
	httpReq.Header.Set("User-Agent", userAgent)

	resp, err := g.httpClient.Do(httpReq)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}

	// The gateway reports operation failures as JSON bodies on non-2xx
	// responses, so those are decoded before the status is checked
	if err := json.Unmarshal(respBody, out); err == nil {
		return nil
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("%w: HTTP %d", ErrGatewayHTTP, resp.StatusCode)
	}
	return fmt.Errorf("invalid gateway response: %q", string(respBody))
}
