package httpapi

import (
	"context"
	"errors"
	"io"
	"mime"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"runnerd/internal/scheduler"
	"runnerd/pkg/types"
)

// Service is the scheduler surface the gateway needs. *scheduler.Scheduler
// satisfies it.
type Service interface {
	Do(ctx context.Context, req scheduler.Request) (scheduler.Response, error)
	Status() types.StatusResponse
	Ready() bool
	Model() string
}

// Admin is implemented by services that support runtime runner registration.
// When the Service passed to NewMux implements it, /admin routes are mounted.
type Admin interface {
	AddRunner(ctx context.Context, url string) error
	DrainRunner(url string) error
	RemoveRunner(ctx context.Context, url string) error
}

// NewMux builds the gateway router.
func NewMux(svc Service) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(MetricsMiddleware)
	r.Use(middleware.Compress(5))
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			w.Header().Set("X-Content-Type-Options", "nosniff")
			next.ServeHTTP(w, req)
		})
	})
	if corsEnabled {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins: corsAllowedOrigins,
			AllowedMethods: corsAllowedMethods,
			AllowedHeaders: corsAllowedHeaders,
			ExposedHeaders: []string{"X-Request-Id", "X-Runner", "Retry-After"},
			MaxAge:         300,
		}))
	}

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	r.Get("/readyz", func(w http.ResponseWriter, _ *http.Request) {
		if svc.Ready() {
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write([]byte("ready"))
			return
		}
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte("loading"))
	})
	r.Handle("/metrics", promhttp.Handler())
	r.Get("/status", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, svc.Status())
	})

	r.Group(func(r chi.Router) {
		r.Use(BearerAuth)
		r.Get("/v1/models", modelsHandler(svc))
		r.Group(func(r chi.Router) {
			r.Use(RateLimit)
			r.Post("/v1/chat/completions", completionHandler(svc, "/v1/chat/completions", BuildChatPayload))
			r.Post("/v1/completions", completionHandler(svc, "/v1/completions", BuildCompletionPayload))
		})
		if a, ok := svc.(Admin); ok {
			mountAdmin(r, svc, a)
		}
	})

	MountSwagger(r)
	return r
}

func modelsHandler(svc Service) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, types.ModelsResponse{
			Object: "list",
			Data:   []types.ModelInfo{{ID: svc.Model(), Object: "model", OwnedBy: "runnerd"}},
		})
	}
}

// payloadBuilder validates a client body and returns the runner-bound payload.
type payloadBuilder func(body []byte, model string) ([]byte, error)

// completionHandler forwards one completion request through the scheduler and
// relays the runner's answer unchanged.
func completionHandler(svc Service, path string, build payloadBuilder) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		lvl := requestLogLevel(r)
		logStart(r, lvl)

		body, err := readJSONBody(w, r)
		if err == nil {
			body, err = build(body, svc.Model())
		}
		if err != nil {
			status := writeServiceError(w, err)
			logEnd(r, lvl, status, start, "", err)
			return
		}

		ctx, cancel := joinContexts(serverBaseCtx, r.Context())
		defer cancel()
		resp, err := svc.Do(ctx, scheduler.Request{Path: path, Body: body, ContentType: "application/json"})
		if err != nil {
			if r.Context().Err() != nil {
				// Client went away; nothing to write.
				logEnd(r, lvl, 499, start, "", err)
				return
			}
			status := writeServiceError(w, err)
			logEnd(r, lvl, status, start, "", err)
			return
		}

		ct := resp.Header.Get("Content-Type")
		if ct == "" {
			ct = "application/json"
		}
		w.Header().Set("Content-Type", ct)
		w.Header().Set("X-Runner", resp.Runner)
		status := resp.Status
		if status == 0 {
			status = http.StatusOK
		}
		w.WriteHeader(status)
		_, _ = w.Write(resp.Body)
		logEnd(r, lvl, status, start, resp.Runner, nil)
	}
}

// readJSONBody enforces the JSON content type and the body size cap.
func readJSONBody(w http.ResponseWriter, r *http.Request) ([]byte, error) {
	if ct := r.Header.Get("Content-Type"); ct != "" {
		mt, _, err := mime.ParseMediaType(ct)
		if err != nil || mt != "application/json" {
			return nil, badRequestError{msg: "Content-Type must be application/json", code: http.StatusUnsupportedMediaType}
		}
	}
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	b, err := io.ReadAll(r.Body)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return nil, badRequestError{msg: "request body too large", code: http.StatusRequestEntityTooLarge}
		}
		return nil, badRequestError{msg: "failed to read request body"}
	}
	return b, nil
}
