package loadgen

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// HTTPClient wraps http.Client with timeout
type HTTPClient struct {
	client *http.Client
}

// newHTTPClient creates a new HTTP client with timeout
func newHTTPClient(timeout time.Duration) *HTTPClient {
	return &HTTPClient{client: &http.Client{Timeout: timeout}}
}

// Get performs a GET request
func (c *HTTPClient) Get(ctx context.Context, url string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	return c.client.Do(req)
}

// Post performs a POST request with JSON body
func (c *HTTPClient) Post(ctx context.Context, url string, body any) (*http.Response, error) {
	jsonData, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request body: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(jsonData))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	return c.client.Do(req)
}

// readResponseBody reads and closes the response body
func readResponseBody(resp *http.Response) ([]byte, error) {
	defer resp.Body.Close()
	return io.ReadAll(resp.Body)
}

// submit posts one scenario.
func (c *HTTPClient) submit(ctx context.Context, baseURL string, sc *Scenario) (SubmitResponse, error) {
	resp, err := c.Post(ctx, baseURL+"/analyses", sc)
	if err != nil {
		return SubmitResponse{}, err
	}
	body, err := readResponseBody(resp)
	if err != nil {
		return SubmitResponse{}, fmt.Errorf("read submit response: %w", err)
	}
	if resp.StatusCode != StatusAccepted && resp.StatusCode != StatusOK {
		return SubmitResponse{}, fmt.Errorf("submit returned %d: %s", resp.StatusCode, bytes.TrimSpace(body))
	}
	var ack SubmitResponse
	if err := json.Unmarshal(body, &ack); err != nil {
		return SubmitResponse{}, fmt.Errorf("decode submit response: %w", err)
	}
	return ack, nil
}

// status fetches a run.
func (c *HTTPClient) status(ctx context.Context, baseURL, id string) (RunStatus, error) {
	resp, err := c.Get(ctx, baseURL+"/analyses/"+id)
	if err != nil {
		return RunStatus{}, err
	}
	body, err := readResponseBody(resp)
	if err != nil {
		return RunStatus{}, fmt.Errorf("read run %s: %w", id, err)
	}
	if resp.StatusCode != StatusOK {
		return RunStatus{}, fmt.Errorf("run %s returned %d", id, resp.StatusCode)
	}
	var st RunStatus
	if err := json.Unmarshal(body, &st); err != nil {
		return RunStatus{}, fmt.Errorf("decode run %s: %w", id, err)
	}
	return st, nil
}

// grid downloads the CSV grid of one day of a run.
func (c *HTTPClient) grid(ctx context.Context, baseURL, id, day string) ([]byte, error) {
	resp, err := c.Get(ctx, baseURL+"/analyses/"+id+"/grid?day="+day)
	if err != nil {
		return nil, err
	}
	body, err := readResponseBody(resp)
	if err != nil {
		return nil, fmt.Errorf("read grid %s/%s: %w", id, day, err)
	}
	if resp.StatusCode != StatusOK {
		return nil, fmt.Errorf("grid %s/%s returned %d", id, day, resp.StatusCode)
	}
	return body, nil
}
