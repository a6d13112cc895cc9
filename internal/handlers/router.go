package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/xelth-com/arcasync/internal/buildinfo"
	"github.com/xelth-com/arcasync/internal/jobs"
	"github.com/xelth-com/arcasync/internal/metrics"
	"github.com/xelth-com/arcasync/internal/middleware"
	"github.com/xelth-com/arcasync/internal/websocket"
)

// HealthCheck probes one dependency
type HealthCheck func(ctx context.Context) error

// Options wires the router to the rest of the service
type Options struct {
	Runner     *jobs.Runner
	Catalog    jobs.CatalogSource
	Hub        *websocket.Hub
	JWTSecret  string
	APIKeyHash string
	Checks     map[string]HealthCheck
	Scheduled  []string
}

// Router wraps the mux router and the job runner
type Router struct {
	*mux.Router
	opts Options
}

// NewRouter creates a new HTTP router with all routes
func NewRouter(opts Options) *Router {
	r := &Router{
		Router: mux.NewRouter(),
		opts:   opts,
	}
	r.Use(middleware.Metrics)

	// Public endpoints
	r.HandleFunc("/health", r.healthCheck).Methods("GET")
	r.Handle("/metrics", metrics.MetricsHandler()).Methods("GET")

	// Everything else needs a token or an API key
	auth := middleware.Auth(opts.JWTSecret, opts.APIKeyHash)
	protect := func(path string, h http.HandlerFunc) *mux.Route {
		return r.Handle(path, auth(h))
	}

	// Job triggers
	protect("/products", r.trigger("products", "Products sent for upload to the store.")).Methods("GET")
	protect("/products-details", r.trigger("products-details", "Products sent for upload to the store.")).Methods("GET")
	protect("/products-images", r.trigger("products-images", "Images sent for upload to the store.")).Methods("GET")
	protect("/products-stocks", r.trigger("products-stocks", "Stock levels sent for upload to the store.")).Methods("GET")
	protect("/brands", r.trigger("brands", "Brands sent for upload to the store.")).Methods("GET")
	protect("/categories/upload", r.trigger("categories-upload", "Categories sent for upload to the store.")).Methods("GET")
	protect("/customer/arca", r.trigger("customers-import", "Customer import job started.")).Methods("POST")

	// Read-only views
	protect("/categories", r.getCategories).Methods("GET")
	protect("/logs/error", r.getErrorLog).Methods("GET")
	protect("/logs/{job}", r.getJobLog).Methods("GET")
	protect("/api/status", r.getStatus).Methods("GET")
	protect("/api/runs", r.listRuns).Methods("GET")

	// Live job events
	protect("/ws", func(w http.ResponseWriter, req *http.Request) {
		websocket.ServeWs(opts.Hub, w, req)
	}).Methods("GET")

	r.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		respondError(w, http.StatusNotFound, "not found")
	})
	r.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		respondError(w, http.StatusMethodNotAllowed, "method not allowed")
	})

	return r
}

// healthCheck reports the state of every configured dependency
func (r *Router) healthCheck(w http.ResponseWriter, req *http.Request) {
	ctx, cancel := context.WithTimeout(req.Context(), 5*time.Second)
	defer cancel()

	status := http.StatusOK
	checks := make(map[string]string, len(r.opts.Checks))
	for name, check := range r.opts.Checks {
		if err := check(ctx); err != nil {
			checks[name] = "error"
			status = http.StatusServiceUnavailable
			continue
		}
		checks[name] = "ok"
	}

	overall := "ok"
	if status != http.StatusOK {
		overall = "degraded"
	}
	respondJSON(w, status, map[string]interface{}{
		"status": overall,
		"checks": checks,
	})
}

// getStatus returns build info, registered jobs and active runs
func (r *Router) getStatus(w http.ResponseWriter, req *http.Request) {
	var jobList []map[string]string
	for _, j := range r.opts.Runner.Jobs() {
		jobList = append(jobList, map[string]string{"name": j.Name, "description": j.Description})
	}

	var running []map[string]interface{}
	for _, run := range r.opts.Runner.Running() {
		running = append(running, map[string]interface{}{
			"job":       run.Job,
			"runId":     run.ID,
			"trigger":   run.Trigger,
			"startedAt": run.StartedAt,
		})
	}

	listeners := 0
	if r.opts.Hub != nil {
		listeners = r.opts.Hub.Listeners()
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"status":    "running",
		"build":     buildinfo.Info(),
		"jobs":      jobList,
		"running":   running,
		"scheduled": r.opts.Scheduled,
		"listeners": listeners,
	})
}

// respondJSON sends a JSON response
func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// respondError sends an error response
func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{
		"error": message,
	})
}
