// Package daemon is the HTTP server side of the berth API.
package daemon

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	stdprometheus "github.com/prometheus/client_golang/prometheus"

	"github.com/berth-deploy/berth/pkg/api"
	"github.com/berth-deploy/berth/pkg/event"
	transport "github.com/berth-deploy/berth/pkg/http"
	berthmetrics "github.com/berth-deploy/berth/pkg/metrics"
)

var (
	requestDuration = stdprometheus.NewHistogramVec(stdprometheus.HistogramOpts{
		Namespace: "berth",
		Name:      "request_duration_seconds",
		Help:      "Time (in seconds) spent serving HTTP requests.",
		Buckets:   stdprometheus.DefBuckets,
	}, []string{berthmetrics.LabelMethod, berthmetrics.LabelRoute, "status_code"})
)

func init() {
	stdprometheus.MustRegister(requestDuration)
}

// An API server for the daemon
func NewRouter() *mux.Router {
	r := transport.NewAPIRouter()

	// We assume every request that doesn't match a route is a client
	// calling an old or hitherto unsupported API.
	r.NewRoute().Name("NotFound").HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		transport.WriteError(w, r, http.StatusNotFound, transport.MakeAPINotFound(r.URL.Path))
	})

	return r
}

func NewHandler(s api.Server, r *mux.Router) http.Handler {
	handle := HTTPServer{s}

	r.Get(transport.Ping).HandlerFunc(handle.Ping)
	r.Get(transport.Version).HandlerFunc(handle.Version)
	r.Get(transport.Notify).HandlerFunc(handle.Notify)

	r.Get(transport.Deploy).HandlerFunc(handle.Deploy)
	r.Get(transport.DeploymentStatus).HandlerFunc(handle.DeploymentStatus)
	r.Get(transport.ListDeployments).HandlerFunc(handle.ListDeployments)
	r.Get(transport.ListServices).HandlerFunc(handle.ListServices)

	r.Get(transport.CleanupAll).HandlerFunc(handle.CleanupAll)
	r.Get(transport.CleanupService).HandlerFunc(handle.CleanupService)
	r.Get(transport.CleanupPreview).HandlerFunc(handle.CleanupPreview)

	return instrument(r)
}

// instrument records request durations labelled by method, route
// name and status code.
func instrument(r *mux.Router) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		start := time.Now()
		interceptor := &statusInterceptor{ResponseWriter: w, code: http.StatusOK}
		r.ServeHTTP(interceptor, req)

		routeName := "unknown"
		var match mux.RouteMatch
		if r.Match(req, &match) && match.Route != nil {
			if name := match.Route.GetName(); name != "" {
				routeName = name
			}
		}
		requestDuration.WithLabelValues(
			req.Method, routeName, fmt.Sprint(interceptor.code),
		).Observe(time.Since(start).Seconds())
	})
}

type statusInterceptor struct {
	http.ResponseWriter
	code int
}

func (i *statusInterceptor) WriteHeader(code int) {
	i.code = code
	i.ResponseWriter.WriteHeader(code)
}

type HTTPServer struct {
	server api.Server
}

func (s HTTPServer) Ping(w http.ResponseWriter, r *http.Request) {
	if err := s.server.Ping(r.Context()); err != nil {
		transport.ErrorResponse(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s HTTPServer) Version(w http.ResponseWriter, r *http.Request) {
	version, err := s.server.Version(r.Context())
	if err != nil {
		transport.ErrorResponse(w, r, err)
		return
	}
	transport.JSONResponse(w, r, version)
}

func (s HTTPServer) Notify(w http.ResponseWriter, r *http.Request) {
	var ev event.Event
	defer r.Body.Close()

	if err := json.NewDecoder(r.Body).Decode(&ev); err != nil {
		transport.WriteError(w, r, http.StatusBadRequest, err)
		return
	}
	created, err := s.server.NotifyEvent(r.Context(), ev)
	if err != nil {
		transport.ErrorResponse(w, r, err)
		return
	}
	transport.JSONResponse(w, r, created)
}

func (s HTTPServer) Deploy(w http.ResponseWriter, r *http.Request) {
	var req api.DeployRequest
	defer r.Body.Close()

	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		transport.WriteError(w, r, http.StatusBadRequest, err)
		return
	}
	dep, err := s.server.Deploy(r.Context(), req)
	if err != nil {
		transport.ErrorResponse(w, r, err)
		return
	}
	transport.JSONResponse(w, r, dep)
}

func (s HTTPServer) DeploymentStatus(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	dep, err := s.server.DeploymentStatus(r.Context(), id)
	if err != nil {
		transport.ErrorResponse(w, r, err)
		return
	}
	transport.JSONResponse(w, r, dep)
}

func (s HTTPServer) ListDeployments(w http.ResponseWriter, r *http.Request) {
	serviceID := mux.Vars(r)["service"]
	deployments, err := s.server.ListDeployments(r.Context(), serviceID)
	if err != nil {
		transport.ErrorResponse(w, r, err)
		return
	}
	transport.JSONResponse(w, r, deployments)
}

func (s HTTPServer) ListServices(w http.ResponseWriter, r *http.Request) {
	services, err := s.server.ListServices(r.Context())
	if err != nil {
		transport.ErrorResponse(w, r, err)
		return
	}
	transport.JSONResponse(w, r, services)
}

func (s HTTPServer) CleanupService(w http.ResponseWriter, r *http.Request) {
	serviceID := mux.Vars(r)["service"]
	result, err := s.server.CleanupService(r.Context(), serviceID)
	if err != nil {
		transport.ErrorResponse(w, r, err)
		return
	}
	transport.JSONResponse(w, r, result)
}

func (s HTTPServer) CleanupPreview(w http.ResponseWriter, r *http.Request) {
	serviceID := mux.Vars(r)["service"]
	preview, err := s.server.PreviewCleanup(r.Context(), serviceID)
	if err != nil {
		transport.ErrorResponse(w, r, err)
		return
	}
	transport.JSONResponse(w, r, preview)
}

func (s HTTPServer) CleanupAll(w http.ResponseWriter, r *http.Request) {
	results, err := s.server.CleanupAll(r.Context())
	if err != nil {
		transport.ErrorResponse(w, r, err)
		return
	}
	transport.JSONResponse(w, r, results)
}
