package httpapi

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"runnerd/internal/registry"
	"runnerd/pkg/types"
)

func mountAdmin(r chi.Router, svc Service, a Admin) {
	r.Route("/admin/runners", func(r chi.Router) {
		r.Get("/", func(w http.ResponseWriter, _ *http.Request) {
			writeJSON(w, http.StatusOK, svc.Status().Runners)
		})
		r.Post("/", func(w http.ResponseWriter, req *http.Request) {
			url, err := runnerURL(w, req)
			if err != nil {
				writeServiceError(w, err)
				return
			}
			ctx, cancel := joinContexts(serverBaseCtx, req.Context())
			defer cancel()
			if err := a.AddRunner(ctx, url); err != nil {
				writeServiceError(w, err)
				return
			}
			writeJSON(w, http.StatusCreated, types.RunnerRegistration{URL: url})
		})
		r.Post("/drain", func(w http.ResponseWriter, req *http.Request) {
			url, err := runnerURL(w, req)
			if err == nil {
				err = a.DrainRunner(url)
			}
			if err != nil {
				writeServiceError(w, err)
				return
			}
			writeJSON(w, http.StatusAccepted, types.RunnerRegistration{URL: url})
		})
		r.Delete("/", func(w http.ResponseWriter, req *http.Request) {
			url, err := parseRunnerURL(req.URL.Query().Get("url"))
			if err != nil {
				writeServiceError(w, err)
				return
			}
			ctx, cancel := joinContexts(serverBaseCtx, req.Context())
			defer cancel()
			if err := a.RemoveRunner(ctx, url); err != nil {
				writeServiceError(w, err)
				return
			}
			w.WriteHeader(http.StatusNoContent)
		})
	})
}

// runnerURL decodes a RunnerRegistration body and normalizes its URL.
func runnerURL(w http.ResponseWriter, r *http.Request) (string, error) {
	b, err := readJSONBody(w, r)
	if err != nil {
		return "", err
	}
	var reg types.RunnerRegistration
	if err := json.Unmarshal(b, &reg); err != nil {
		return "", badRequestError{msg: "invalid JSON body"}
	}
	return parseRunnerURL(reg.URL)
}

func parseRunnerURL(raw string) (string, error) {
	urls, err := registry.Parse([]string{raw})
	if err != nil {
		return "", badRequestError{msg: err.Error()}
	}
	if len(urls) == 0 {
		return "", badRequestError{msg: "url is required"}
	}
	return urls[0], nil
}
