package scheduler

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"
)

const (
	// maxResponseBody caps a buffered runner response.
	maxResponseBody = 32 << 20
	// maxErrorBody caps the runner body kept on a RunnerRejectedError.
	maxErrorBody = 4096
)

// Client talks to runners over HTTP: health listing for readiness and
// request invocation for dispatch.
type Client struct {
	httpClient *http.Client
	apiKey     string
	healthPath string
	maxBody    int64
}

// NewClient constructs a runner client. A nil httpClient gets a pooled
// transport with no overall timeout: every call carries its own context.
func NewClient(httpClient *http.Client, apiKey, healthPath string) *Client {
	if httpClient == nil {
		tr := &http.Transport{
			Proxy: http.ProxyFromEnvironment,
			DialContext: (&net.Dialer{
				Timeout:   10 * time.Second,
				KeepAlive: 30 * time.Second,
			}).DialContext,
			MaxIdleConns:          100,
			MaxIdleConnsPerHost:   16,
			IdleConnTimeout:       90 * time.Second,
			TLSHandshakeTimeout:   10 * time.Second,
			ExpectContinueTimeout: 1 * time.Second,
		}
		httpClient = &http.Client{Transport: tr, Timeout: 0}
	}
	if healthPath == "" {
		healthPath = defaultHealthPath
	}
	return &Client{httpClient: httpClient, apiKey: apiKey, healthPath: healthPath, maxBody: maxResponseBody}
}

// healthResponse accepts both OpenAI-style and llama/ollama-style model lists.
type healthResponse struct {
	Data []struct {
		ID string `json:"id"`
	} `json:"data"`
	Models []struct {
		Name  string `json:"name"`
		Model string `json:"model"`
	} `json:"models"`
}

// Health returns the capability identifiers a runner currently reports.
func (c *Client) Health(ctx context.Context, baseURL string) ([]string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, baseURL+c.healthPath, nil)
	if err != nil {
		return nil, err
	}
	c.authorize(req)
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &RunnerUnreachableError{Runner: baseURL, Err: err}
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return nil, &RunnerRejectedError{Runner: baseURL, Status: resp.StatusCode, Body: b}
	}
	var hr healthResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxResponseBody)).Decode(&hr); err != nil {
		return nil, fmt.Errorf("decode health response from %s: %w", baseURL, err)
	}
	ids := make([]string, 0, len(hr.Data)+len(hr.Models))
	for _, d := range hr.Data {
		if d.ID != "" {
			ids = append(ids, d.ID)
		}
	}
	for _, m := range hr.Models {
		if m.Name != "" {
			ids = append(ids, m.Name)
		}
		if m.Model != "" && m.Model != m.Name {
			ids = append(ids, m.Model)
		}
	}
	return ids, nil
}

// Invoke posts the payload to the runner and buffers its answer. Transport
// failures become RunnerUnreachableError and non-2xx answers RunnerRejectedError.
func (c *Client) Invoke(ctx context.Context, baseURL string, r Request) (Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, baseURL+r.Path, bytes.NewReader(r.Body))
	if err != nil {
		return Response{}, err
	}
	ct := r.ContentType
	if ct == "" {
		ct = "application/json"
	}
	req.Header.Set("Content-Type", ct)
	c.authorize(req)
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return Response{}, &RunnerUnreachableError{Runner: baseURL, Err: err}
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return Response{}, &RunnerRejectedError{Runner: baseURL, Status: resp.StatusCode, Body: b}
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, c.maxBody+1))
	if err != nil {
		return Response{}, &RunnerUnreachableError{Runner: baseURL, Err: err}
	}
	if int64(len(body)) > c.maxBody {
		return Response{}, responseTooLargeError{runner: baseURL, limit: c.maxBody}
	}
	return Response{Runner: baseURL, Status: resp.StatusCode, Header: resp.Header.Clone(), Body: body}, nil
}

func (c *Client) authorize(req *http.Request) {
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}
}
