package clients

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// TokenFunc supplies the bearer token for authenticated requests. A nil
// TokenFunc leaves requests unauthenticated.
type TokenFunc func(ctx context.Context) (string, error)

type BaseClient struct {
	baseURL string
	client  *http.Client
	headers map[string]string
	token   TokenFunc
}

func NewBaseClient(baseURL string) *BaseClient {
	return &BaseClient{
		baseURL: baseURL,
		client: &http.Client{
			Timeout: 30 * time.Second,
		},
		headers: make(map[string]string),
	}
}

func (c *BaseClient) SetHeader(key, value string) {
	c.headers[key] = value
}

func (c *BaseClient) SetTimeout(timeout time.Duration) {
	c.client.Timeout = timeout
}

// SetTokenFunc attaches a bearer-token source to every request.
func (c *BaseClient) SetTokenFunc(fn TokenFunc) {
	c.token = fn
}

func (c *BaseClient) MakeRequest(ctx context.Context, method, endpoint string, body io.Reader) ([]byte, error) {
	return c.makeRequest(ctx, method, endpoint, body, true)
}

func (c *BaseClient) makeRequest(ctx context.Context, method, endpoint string, body io.Reader, withAuth bool) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+endpoint, body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	for key, value := range c.headers {
		req.Header.Set(key, value)
	}
	if withAuth && c.token != nil {
		token, err := c.token(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to get token: %w", err)
		}
		if token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to make request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		responseBody, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("API returned status code: %d, response: %s", resp.StatusCode, string(responseBody))
	}

	responseBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	return responseBody, nil
}

// MakeJSONRequest marshals in as the request body and unmarshals the
// response into out when out is non-nil.
func (c *BaseClient) MakeJSONRequest(ctx context.Context, method, endpoint string, in, out interface{}) error {
	return c.makeJSONRequest(ctx, method, endpoint, in, out, true)
}

// MakeJSONRequestNoAuth is MakeJSONRequest without the bearer token. The
// credential exchange itself must never wait on a valid bearer token.
func (c *BaseClient) MakeJSONRequestNoAuth(ctx context.Context, method, endpoint string, in, out interface{}) error {
	return c.makeJSONRequest(ctx, method, endpoint, in, out, false)
}

func (c *BaseClient) makeJSONRequest(ctx context.Context, method, endpoint string, in, out interface{}, withAuth bool) error {
	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("failed to marshal request body: %w", err)
		}
		body = bytes.NewReader(data)
	}

	responseBody, err := c.makeRequest(ctx, method, endpoint, body, withAuth)
	if err != nil {
		return err
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(responseBody, out); err != nil {
		return fmt.Errorf("failed to unmarshal response: %w, raw response: %s", err, string(responseBody))
	}
	return nil
}

func (c *BaseClient) Get(ctx context.Context, endpoint string) ([]byte, error) {
	return c.MakeRequest(ctx, "GET", endpoint, nil)
}

func (c *BaseClient) Post(ctx context.Context, endpoint string, body io.Reader) ([]byte, error) {
	return c.MakeRequest(ctx, "POST", endpoint, body)
}

func (c *BaseClient) Put(ctx context.Context, endpoint string, body io.Reader) ([]byte, error) {
	return c.MakeRequest(ctx, "PUT", endpoint, body)
}

func (c *BaseClient) Delete(ctx context.Context, endpoint string) ([]byte, error) {
	return c.MakeRequest(ctx, "DELETE", endpoint, nil)
}
