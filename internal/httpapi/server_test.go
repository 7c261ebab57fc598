package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"runnerd/internal/scheduler"
	"runnerd/pkg/types"
)

type mockService struct {
	mu     sync.Mutex
	status types.StatusResponse
	ready  bool
	doErr  error
	resp   scheduler.Response
	got    []scheduler.Request
}

func (m *mockService) Do(_ context.Context, req scheduler.Request) (scheduler.Response, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.got = append(m.got, req)
	if m.doErr != nil {
		return scheduler.Response{}, m.doErr
	}
	if m.resp.Status == 0 {
		return scheduler.Response{
			Runner: "http://runner-1",
			Status: http.StatusOK,
			Header: http.Header{"Content-Type": []string{"application/json"}},
			Body:   req.Body,
		}, nil
	}
	return m.resp, nil
}

func (m *mockService) Status() types.StatusResponse { return m.status }
func (m *mockService) Ready() bool                  { return m.ready }
func (m *mockService) Model() string                { return "m" }

func (m *mockService) requests() []scheduler.Request {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]scheduler.Request(nil), m.got...)
}

type mockHTTPError struct {
	msg  string
	code int
}

func (e mockHTTPError) Error() string   { return e.msg }
func (e mockHTTPError) StatusCode() int { return e.code }

func postJSON(t *testing.T, h http.Handler, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func decodeError(t *testing.T, w *httptest.ResponseRecorder) types.ErrorResponse {
	t.Helper()
	var e types.ErrorResponse
	if err := json.Unmarshal(w.Body.Bytes(), &e); err != nil {
		t.Fatalf("error body %q: %v", w.Body.String(), err)
	}
	return e
}

const chatBody = `{"model":"m","messages":[{"role":"user","content":"hi"}]}`

func TestModelsHandler(t *testing.T) {
	r := NewMux(&mockService{})
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/v1/models", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("status=%d", w.Code)
	}
	var body types.ModelsResponse
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("json: %v", err)
	}
	if len(body.Data) != 1 || body.Data[0].ID != "m" {
		t.Fatalf("unexpected models: %+v", body)
	}
}

func TestStatusHandler(t *testing.T) {
	svc := &mockService{status: types.StatusResponse{State: "ready", PoolSize: 2, QueueDepth: 1}}
	r := NewMux(svc)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/status", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("status=%d", w.Code)
	}
	if ct := w.Header().Get("Content-Type"); !strings.Contains(ct, "application/json") {
		t.Fatalf("content-type=%s", ct)
	}
	var body types.StatusResponse
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("json: %v", err)
	}
	if body.PoolSize != 2 || body.QueueDepth != 1 || body.State != "ready" {
		t.Fatalf("unexpected body: %+v", body)
	}
}

func TestHealthAndReadiness(t *testing.T) {
	svc := &mockService{}
	r := NewMux(svc)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if w.Code != http.StatusOK || w.Body.String() != "ok" {
		t.Fatalf("healthz: %d %q", w.Code, w.Body.String())
	}

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	if w.Code != http.StatusServiceUnavailable || !strings.Contains(w.Body.String(), "loading") {
		t.Fatalf("readyz before start: %d %q", w.Code, w.Body.String())
	}

	svc.ready = true
	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("readyz: %d", w.Code)
	}
}

func TestChatCompletionForwards(t *testing.T) {
	svc := &mockService{}
	r := NewMux(svc)
	w := postJSON(t, r, "/v1/chat/completions", `{"messages":[{"role":"user","content":"hi"}],"max_tokens":8}`)
	if w.Code != http.StatusOK {
		t.Fatalf("status=%d body=%s", w.Code, w.Body.String())
	}
	if got := w.Header().Get("X-Runner"); got != "http://runner-1" {
		t.Fatalf("X-Runner=%q", got)
	}
	reqs := svc.requests()
	if len(reqs) != 1 || reqs[0].Path != "/v1/chat/completions" || reqs[0].ContentType != "application/json" {
		t.Fatalf("forwarded %+v", reqs)
	}
	var payload map[string]any
	if err := json.Unmarshal(reqs[0].Body, &payload); err != nil {
		t.Fatalf("payload: %v", err)
	}
	if payload["model"] != "m" || payload["stream"] != false || payload["max_tokens"] != float64(8) {
		t.Fatalf("payload=%v", payload)
	}
	// The runner's answer is relayed as-is.
	if !bytes.Equal(w.Body.Bytes(), reqs[0].Body) {
		t.Fatalf("body=%s", w.Body.String())
	}
}

func TestCompletionForwardsRunnerStatus(t *testing.T) {
	svc := &mockService{resp: scheduler.Response{Runner: "http://r", Status: http.StatusCreated, Body: []byte("text")}}
	w := postJSON(t, NewMux(svc), "/v1/completions", `{"prompt":"hello"}`)
	if w.Code != http.StatusCreated || w.Body.String() != "text" {
		t.Fatalf("got %d %q", w.Code, w.Body.String())
	}
	if ct := w.Header().Get("Content-Type"); ct != "application/json" {
		t.Fatalf("default content-type=%q", ct)
	}
	if reqs := svc.requests(); len(reqs) != 1 || reqs[0].Path != "/v1/completions" {
		t.Fatalf("forwarded %+v", reqs)
	}
}

func TestCompletionRejectsBadInput(t *testing.T) {
	cases := []struct {
		name string
		path string
		ct   string
		body string
		want int
	}{
		{"bad json", "/v1/chat/completions", "application/json", "not-json", http.StatusBadRequest},
		{"no messages", "/v1/chat/completions", "application/json", `{"messages":[]}`, http.StatusBadRequest},
		{"stream", "/v1/chat/completions", "application/json", `{"messages":[{"role":"user","content":"x"}],"stream":true}`, http.StatusBadRequest},
		{"other model", "/v1/chat/completions", "application/json", `{"model":"other","messages":[{"role":"user","content":"x"}]}`, http.StatusNotFound},
		{"no prompt", "/v1/completions", "application/json", `{"prompt":"  "}`, http.StatusBadRequest},
		{"content type", "/v1/completions", "text/plain", `{"prompt":"x"}`, http.StatusUnsupportedMediaType},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			svc := &mockService{}
			req := httptest.NewRequest(http.MethodPost, tc.path, bytes.NewBufferString(tc.body))
			req.Header.Set("Content-Type", tc.ct)
			w := httptest.NewRecorder()
			NewMux(svc).ServeHTTP(w, req)
			if w.Code != tc.want {
				t.Fatalf("status=%d want %d body=%s", w.Code, tc.want, w.Body.String())
			}
			if e := decodeError(t, w); e.Code != tc.want || e.Error == "" {
				t.Fatalf("error body %+v", e)
			}
			if n := len(svc.requests()); n != 0 {
				t.Fatalf("invalid request reached the scheduler %d times", n)
			}
		})
	}
}

func TestBodyTooLarge(t *testing.T) {
	SetMaxBodyBytes(16)
	t.Cleanup(func() { SetMaxBodyBytes(0) })
	w := postJSON(t, NewMux(&mockService{}), "/v1/completions", `{"prompt":"this is longer than sixteen bytes"}`)
	if w.Code != http.StatusRequestEntityTooLarge {
		t.Fatalf("status=%d", w.Code)
	}
}

func TestServiceErrorMapping(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want int
	}{
		{"closed", scheduler.ErrClosed, http.StatusServiceUnavailable},
		{"unreachable", &scheduler.RunnerUnreachableError{Runner: "http://r", Err: errors.New("refused")}, http.StatusBadGateway},
		{"timeout", mockHTTPError{msg: "timed out", code: http.StatusGatewayTimeout}, http.StatusGatewayTimeout},
		{"generic", errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			w := postJSON(t, NewMux(&mockService{doErr: tc.err}), "/v1/chat/completions", chatBody)
			if w.Code != tc.want {
				t.Fatalf("status=%d want %d", w.Code, tc.want)
			}
		})
	}
}

func TestRunnerRejectionCarriesRunnerAnswer(t *testing.T) {
	err := &scheduler.RunnerRejectedError{Runner: "http://r", Status: 500, Body: []byte("kaboom")}
	w := postJSON(t, NewMux(&mockService{doErr: err}), "/v1/chat/completions", chatBody)
	if w.Code != http.StatusBadGateway {
		t.Fatalf("status=%d", w.Code)
	}
	e := decodeError(t, w)
	if e.RunnerStatus != 500 || e.RunnerBody != "kaboom" {
		t.Fatalf("error body %+v", e)
	}
}

func TestQueueFullMapsTo429(t *testing.T) {
	// The runner is never probed, so it stays loading and every request queues.
	sched, err := scheduler.NewWithConfig(scheduler.Config{
		Runners:      []string{"http://127.0.0.1:1"},
		Model:        "m",
		MaxQueueSize: 1,
	})
	if err != nil {
		t.Fatalf("new scheduler: %v", err)
	}
	t.Cleanup(func() { _ = sched.Close(context.Background()) })
	if _, err := sched.Submit(context.Background(), scheduler.Request{Path: "/v1/completions"}); err != nil {
		t.Fatalf("first submit: %v", err)
	}

	w := postJSON(t, NewMux(sched), "/v1/completions", `{"prompt":"x"}`)
	if w.Code != http.StatusTooManyRequests {
		t.Fatalf("status=%d body=%s", w.Code, w.Body.String())
	}
	if w.Header().Get("Retry-After") == "" {
		t.Fatalf("missing Retry-After")
	}
	if e := decodeError(t, w); !strings.Contains(e.Error, "queue full") {
		t.Fatalf("error=%q", e.Error)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	r := NewMux(&mockService{})
	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/healthz", nil))
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("status=%d", w.Code)
	}
	if !strings.Contains(w.Body.String(), `runnerd_http_requests_total{method="GET",path="/healthz",status="200"}`) {
		t.Fatalf("request counter missing from /metrics")
	}
}

func TestNosniffHeader(t *testing.T) {
	w := httptest.NewRecorder()
	NewMux(&mockService{}).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if got := w.Header().Get("X-Content-Type-Options"); got != "nosniff" {
		t.Fatalf("X-Content-Type-Options=%q", got)
	}
}

func TestCORSPreflight(t *testing.T) {
	SetCORSOptions(true, []string{"https://app.example"}, []string{"GET", "POST"}, []string{"Authorization", "Content-Type"})
	t.Cleanup(func() { SetCORSOptions(false, nil, nil, nil) })
	req := httptest.NewRequest(http.MethodOptions, "/v1/chat/completions", nil)
	req.Header.Set("Origin", "https://app.example")
	req.Header.Set("Access-Control-Request-Method", "POST")
	w := httptest.NewRecorder()
	NewMux(&mockService{}).ServeHTTP(w, req)
	if got := w.Header().Get("Access-Control-Allow-Origin"); got != "https://app.example" {
		t.Fatalf("Access-Control-Allow-Origin=%q", got)
	}
}
