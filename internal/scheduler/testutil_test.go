package scheduler

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"
)

const testModel = "m"

// fakeRunner is an httptest-backed runner. Completion calls echo their body.
// When gated, each call blocks until release is called (or all are freed on
// cleanup).
type fakeRunner struct {
	srv   *httptest.Server
	model string

	mu          sync.Mutex
	status      int
	body        string
	healthFails int
	healthCalls int
	inflight    int
	maxInflight int
	bodies      []string

	gate     chan struct{}
	stop     chan struct{}
	stopOnce sync.Once
	started  chan string
}

func newFakeRunner(t *testing.T, gated bool) *fakeRunner {
	t.Helper()
	f := &fakeRunner{
		model:   testModel,
		status:  http.StatusOK,
		stop:    make(chan struct{}),
		started: make(chan string, 256),
	}
	if gated {
		f.gate = make(chan struct{})
	}
	mux := http.NewServeMux()
	mux.HandleFunc("/v1/models", f.handleModels)
	mux.HandleFunc("/", f.handleCall)
	f.srv = httptest.NewServer(mux)
	t.Cleanup(f.srv.Close)
	// Runs before srv.Close so blocked handlers can return.
	t.Cleanup(f.releaseAll)
	return f
}

func (f *fakeRunner) URL() string { return f.srv.URL }

func (f *fakeRunner) handleModels(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	f.healthCalls++
	failing := f.healthCalls <= f.healthFails
	model := f.model
	f.mu.Unlock()
	if failing {
		http.Error(w, "loading", http.StatusServiceUnavailable)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{
		"object": "list",
		"data":   []map[string]string{{"id": model}},
	})
}

func (f *fakeRunner) handleCall(w http.ResponseWriter, r *http.Request) {
	b, _ := io.ReadAll(r.Body)
	f.mu.Lock()
	f.inflight++
	if f.inflight > f.maxInflight {
		f.maxInflight = f.inflight
	}
	f.bodies = append(f.bodies, string(b))
	f.mu.Unlock()
	f.started <- string(b)

	if f.gate != nil {
		select {
		case <-f.gate:
		case <-f.stop:
		case <-r.Context().Done():
		}
	}

	f.mu.Lock()
	f.inflight--
	status, body := f.status, f.body
	f.mu.Unlock()
	if body == "" {
		body = string(b)
	}
	w.WriteHeader(status)
	_, _ = w.Write([]byte(body))
}

// release lets exactly one blocked call finish.
func (f *fakeRunner) release(t *testing.T) {
	t.Helper()
	select {
	case f.gate <- struct{}{}:
	case <-time.After(2 * time.Second):
		t.Fatalf("no call waiting on %s", f.URL())
	}
}

func (f *fakeRunner) releaseAll() { f.stopOnce.Do(func() { close(f.stop) }) }

func (f *fakeRunner) setResponse(status int, body string) {
	f.mu.Lock()
	f.status, f.body = status, body
	f.mu.Unlock()
}

func (f *fakeRunner) setHealthFails(n int) {
	f.mu.Lock()
	f.healthFails = n
	f.mu.Unlock()
}

func (f *fakeRunner) setModel(m string) {
	f.mu.Lock()
	f.model = m
	f.mu.Unlock()
}

func (f *fakeRunner) healthCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.healthCalls
}

func (f *fakeRunner) calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.bodies))
	copy(out, f.bodies)
	return out
}

func (f *fakeRunner) peakInflight() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.maxInflight
}

// waitStarted returns the body of the next call that reached the runner.
func (f *fakeRunner) waitStarted(t *testing.T) string {
	t.Helper()
	select {
	case b := <-f.started:
		return b
	case <-time.After(2 * time.Second):
		t.Fatalf("timed out waiting for a call on %s", f.URL())
		return ""
	}
}

// newTestScheduler builds a scheduler over the given runners, fills in test
// defaults and starts it.
func newTestScheduler(t *testing.T, cfg Config, runners ...*fakeRunner) *Scheduler {
	t.Helper()
	s := newUnstartedScheduler(t, cfg, runners...)
	if err := s.Start(testCtx(t)); err != nil {
		t.Fatalf("start: %v", err)
	}
	return s
}

func newUnstartedScheduler(t *testing.T, cfg Config, runners ...*fakeRunner) *Scheduler {
	t.Helper()
	if cfg.Model == "" {
		cfg.Model = testModel
	}
	if cfg.ProbeAttempts == 0 {
		cfg.ProbeAttempts = 3
	}
	if cfg.ProbeDelay == 0 {
		cfg.ProbeDelay = -1
	}
	for _, r := range runners {
		cfg.Runners = append(cfg.Runners, r.URL())
	}
	s, err := NewWithConfig(cfg)
	if err != nil {
		t.Fatalf("new scheduler: %v", err)
	}
	t.Cleanup(func() {
		for _, r := range runners {
			r.releaseAll()
		}
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = s.Close(ctx)
	})
	return s
}

func req(body string) Request {
	return Request{Path: "/v1/chat/completions", Body: []byte(body)}
}

// testCtx returns a context with a short timeout, canceled on test cleanup.
func testCtx(t *testing.T) context.Context {
	t.Helper()
	c, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	t.Cleanup(cancel)
	return c
}

// eventually polls cond until it holds or a second passes.
func eventually(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(5 * time.Millisecond)
	}
}
