package builder

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/kimalale/tactical-workflow-manager/pkg/api"
)

// Client talks to a running engine over its HTTP API
type Client struct {
	httpClient *http.Client
	baseURL    string
}

var (
	ErrInstallWorkflow = errors.New("failed to install workflow")
	ErrStartRun        = errors.New("failed to start run")
	ErrGetRun          = errors.New("failed to get run")
	ErrCancelRun       = errors.New("failed to cancel run")
	ErrTriggerWebhook  = errors.New("failed to trigger webhook")
	ErrCreateWebhook   = errors.New("failed to create webhook")
	ErrSetVariable     = errors.New("failed to set variable")
	ErrGetVariable     = errors.New("failed to get variable")
	ErrHealth          = errors.New("health check failed")
)

const (
	DefaultEngineURL = "http://localhost:8080"

	routeHealth   = "/health"
	routeWorkflow = "/engine/workflow"
	routeRun      = "/engine/run"
	routeWebhook  = "/engine/webhook"
	routeTrigger  = "/webhook"
	routeVars     = "/engine/vars"

	contentTypeJSON = "application/json"
)

// NewClient creates a client rooted at baseURL
func NewClient(baseURL string, timeout time.Duration) *Client {
	if baseURL == "" {
		baseURL = DefaultEngineURL
	}
	return &Client{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// Health returns the engine's health report
func (c *Client) Health(ctx context.Context) (*api.HealthResponse, error) {
	var res api.HealthResponse
	err := c.do(ctx, http.MethodGet, c.url(routeHealth), nil, &res,
		ErrHealth, http.StatusOK)
	if err != nil {
		return nil, err
	}
	return &res, nil
}

// InstallWorkflow replaces the engine's current workflow document
func (c *Client) InstallWorkflow(ctx context.Context, doc *api.Document) error {
	return c.do(ctx, http.MethodPut, c.url(routeWorkflow), doc, nil,
		ErrInstallWorkflow, http.StatusOK)
}

// StartRun starts an asynchronous run of the installed workflow
func (c *Client) StartRun(ctx context.Context, payload any) (api.RunID, error) {
	var res api.RunStartedResponse
	err := c.do(ctx, http.MethodPost, c.url(routeRun),
		api.RunRequest{Payload: payload}, &res,
		ErrStartRun, http.StatusAccepted)
	if err != nil {
		return "", err
	}
	return res.RunID, nil
}

// RunAndWait runs the installed workflow and returns its final state
func (c *Client) RunAndWait(
	ctx context.Context, payload any,
) (*api.RunState, error) {
	var res api.RunState
	err := c.do(ctx, http.MethodPost, c.url(routeRun),
		api.RunRequest{Payload: payload, Wait: true}, &res,
		ErrStartRun, http.StatusOK)
	if err != nil {
		return nil, err
	}
	return &res, nil
}

// GetRun returns the current state of a run
func (c *Client) GetRun(
	ctx context.Context, id api.RunID,
) (*api.RunState, error) {
	var res api.RunState
	err := c.do(ctx, http.MethodGet, c.url("%s/%s", routeRun, id), nil,
		&res, ErrGetRun, http.StatusOK)
	if err != nil {
		return nil, err
	}
	return &res, nil
}

// CancelRun asks the engine to stop a run
func (c *Client) CancelRun(ctx context.Context, id api.RunID) error {
	return c.do(ctx, http.MethodPost,
		c.url("%s/%s/cancel", routeRun, id), nil, nil,
		ErrCancelRun, http.StatusAccepted)
}

// CreateWebhook registers a named webhook
func (c *Client) CreateWebhook(
	ctx context.Context, name string,
) (*api.Webhook, error) {
	var res api.Webhook
	err := c.do(ctx, http.MethodPost, c.url(routeWebhook),
		api.CreateWebhookRequest{Name: name}, &res,
		ErrCreateWebhook, http.StatusCreated)
	if err != nil {
		return nil, err
	}
	return &res, nil
}

// TriggerWebhook fires a webhook with payload as the request body
func (c *Client) TriggerWebhook(
	ctx context.Context, id api.WebhookID, payload any,
) (api.RunID, error) {
	var res api.WebhookTriggeredResponse
	err := c.do(ctx, http.MethodPost, c.url("%s/%s", routeTrigger, id),
		payload, &res, ErrTriggerWebhook, http.StatusAccepted)
	if err != nil {
		return "", err
	}
	return res.RunID, nil
}

// SetVariable stores a shared variable
func (c *Client) SetVariable(ctx context.Context, key string, value any) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	return c.do(ctx, http.MethodPut, c.url("%s/%s", routeVars, key),
		api.SetVariableRequest{Value: raw}, nil,
		ErrSetVariable, http.StatusOK)
}

// GetVariable reads a shared variable
func (c *Client) GetVariable(ctx context.Context, key string) (any, error) {
	var res api.VariableResponse
	err := c.do(ctx, http.MethodGet, c.url("%s/%s", routeVars, key), nil,
		&res, ErrGetVariable, http.StatusOK)
	if err != nil {
		return nil, err
	}
	return res.Value, nil
}

func (c *Client) url(format string, args ...any) string {
	path := fmt.Sprintf(format, args...)
	return c.baseURL + path
}

func (c *Client) do(
	ctx context.Context, method, url string, body, dst any,
	baseErr error, want int,
) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", contentTypeJSON)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %w", baseErr, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != want {
		data, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("%w: status %d, body: %s",
			baseErr, resp.StatusCode, string(data))
	}

	if dst == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(dst)
}
