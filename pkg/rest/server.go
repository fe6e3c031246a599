package rest

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/edgeflare/autorest/pkg/entity"
	"github.com/edgeflare/autorest/pkg/httputil"
	"github.com/edgeflare/autorest/pkg/metrics"
	"github.com/edgeflare/autorest/pkg/schema"
)

// Server serves the synthesized REST surface. Everything it dispatches on
// (catalogs, registry, route table) is built before Start and immutable
// afterward; per-request state lives entirely on the stack and in the
// per-catalog connection pools.
type Server struct {
	router   *httputil.Router
	catalogs []*schema.Catalog
	registry *entity.Registry
	routes   []Route
	exec     Executor
	logger   *zap.Logger
}

// NewServer synthesizes the route table from the registry and wires every
// route plus the fixed endpoints (/health, /schema, /openapi.json, /docs,
// /metrics) onto the router.
func NewServer(catalogs []*schema.Catalog, registry *entity.Registry, logger *zap.Logger, opts ...httputil.RouterOptions) *Server {
	s := &Server{
		router:   httputil.NewRouter(opts...),
		catalogs: catalogs,
		registry: registry,
		routes:   SynthesizeRoutes(registry),
		logger:   logger,
	}
	s.register()
	return s
}

// AddMiddleware adds middleware applied to every route.
func (s *Server) AddMiddleware(mw httputil.Middleware, additional ...httputil.Middleware) {
	s.router.Use(mw, additional...)
}

// Routes returns the synthesized route table.
func (s *Server) Routes() []Route {
	out := make([]Route, len(s.routes))
	copy(out, s.routes)
	return out
}

// Start begins serving on addr. The route table is fully built before this
// point; no route is ever added afterward.
func (s *Server) Start(addr string) error {
	s.logger.Info("server starting",
		zap.String("addr", addr),
		zap.Int("entities", s.registry.Len()),
		zap.Int("routes", len(s.routes)))
	return s.router.ListenAndServe(addr)
}

// ServeHTTP dispatches through the route table, letting the server be used
// directly as an http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// Shutdown drains in-flight requests and closes every catalog pool.
func (s *Server) Shutdown(ctx context.Context) error {
	err := s.router.Shutdown(ctx)
	for _, cat := range s.catalogs {
		if cerr := cat.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}
	return err
}

func (s *Server) register() {
	for _, route := range s.routes {
		s.router.Handle(route.Method+" "+route.Pattern, s.handlerFor(route))
	}

	health := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		httputil.Text(w, http.StatusOK, "ok")
	})
	s.router.Handle("GET /health", health)
	s.router.Handle("GET /health/{$}", health)

	s.router.Handle("GET /schema", http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		httputil.JSON(w, http.StatusOK, s.catalogs)
	}))

	oapi := NewOpenAPIGenerator(s.routes, OpenAPIInfo{
		Title:       "autorest",
		Description: "REST API synthesized from reflected database schemas",
		Version:     "1.0.0",
	})
	s.router.Handle("GET /openapi.json", oapi)
	s.router.Handle("GET /docs", http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		httputil.HTML(w, http.StatusOK, swaggerUIPage)
	}))

	s.router.Handle("GET /metrics", metrics.Handler())
}

func (s *Server) handlerFor(route Route) http.Handler {
	switch route.Kind {
	case KindList:
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { s.handleList(w, r, route) })
	case KindGetByKey:
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { s.handleGetByKey(w, r, route) })
	case KindCreate:
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { s.handleCreate(w, r, route) })
	case KindUpdate:
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { s.handleUpdate(w, r, route) })
	case KindDelete:
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { s.handleDelete(w, r, route) })
	default:
		panic("unknown handler kind " + route.Kind)
	}
}

func (s *Server) handleList(w http.ResponseWriter, r *http.Request, route Route) {
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			s.respondError(w, route, validationErrorf("limit %q is not a non-negative integer", raw))
			return
		}
		limit = n
	}

	start := time.Now()
	rows, err := s.exec.List(r.Context(), route.Entity, limit)
	metrics.ObserveQuery(route.Entity.Catalog().Name, string(route.Kind), start, err)
	if err != nil {
		s.respondError(w, route, err)
		return
	}
	s.respond(w, route, http.StatusOK, rows)
}

func (s *Server) handleGetByKey(w http.ResponseWriter, r *http.Request, route Route) {
	start := time.Now()
	row, err := s.exec.GetByKey(r.Context(), route.Entity, keyValues(r, route.Entity))
	metrics.ObserveQuery(route.Entity.Catalog().Name, string(route.Kind), start, err)
	if err != nil {
		s.respondError(w, route, err)
		return
	}
	s.respond(w, route, http.StatusOK, row)
}

func (s *Server) handleCreate(w http.ResponseWriter, r *http.Request, route Route) {
	var data map[string]any
	if err := httputil.BindOrError(r, w, &data); err != nil {
		metrics.ObserveRequest(route.Entity.QualifiedName, string(route.Kind), http.StatusBadRequest)
		return
	}

	start := time.Now()
	row, err := s.exec.Create(r.Context(), route.Entity, data)
	metrics.ObserveQuery(route.Entity.Catalog().Name, string(route.Kind), start, err)
	if err != nil {
		s.respondError(w, route, err)
		return
	}
	s.respond(w, route, http.StatusCreated, row)
}

func (s *Server) handleUpdate(w http.ResponseWriter, r *http.Request, route Route) {
	var data map[string]any
	if err := httputil.BindOrError(r, w, &data); err != nil {
		metrics.ObserveRequest(route.Entity.QualifiedName, string(route.Kind), http.StatusBadRequest)
		return
	}

	start := time.Now()
	row, err := s.exec.Update(r.Context(), route.Entity, keyValues(r, route.Entity), data)
	metrics.ObserveQuery(route.Entity.Catalog().Name, string(route.Kind), start, err)
	if err != nil {
		s.respondError(w, route, err)
		return
	}
	s.respond(w, route, http.StatusOK, row)
}

func (s *Server) handleDelete(w http.ResponseWriter, r *http.Request, route Route) {
	start := time.Now()
	err := s.exec.Delete(r.Context(), route.Entity, keyValues(r, route.Entity))
	metrics.ObserveQuery(route.Entity.Catalog().Name, string(route.Kind), start, err)
	if err != nil {
		s.respondError(w, route, err)
		return
	}
	metrics.ObserveRequest(route.Entity.QualifiedName, string(route.Kind), http.StatusNoContent)
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) respond(w http.ResponseWriter, route Route, status int, body any) {
	metrics.ObserveRequest(route.Entity.QualifiedName, string(route.Kind), status)
	httputil.JSON(w, status, body)
}

// respondError maps the executor's error taxonomy onto HTTP statuses.
// Failed calls are reported to the caller, never retried: retrying a write
// could double-apply it.
func (s *Server) respondError(w http.ResponseWriter, route Route, err error) {
	var status int
	var msg string

	var verr *ValidationError
	var ierr *InternalError
	switch {
	case errors.Is(err, ErrNotFound):
		status, msg = http.StatusNotFound, "row not found"
	case errors.As(err, &verr):
		status, msg = http.StatusBadRequest, verr.Msg
	case errors.As(err, &ierr):
		status, msg = http.StatusInternalServerError, "internal error"
		s.logger.Error("request failed",
			zap.String("catalog", ierr.Catalog),
			zap.String("table", ierr.Table),
			zap.String("operation", string(ierr.Op)),
			zap.Error(ierr.Err))
	default:
		status, msg = http.StatusInternalServerError, "internal error"
		s.logger.Error("request failed",
			zap.String("entity", route.Entity.QualifiedName),
			zap.String("operation", string(route.Kind)),
			zap.Error(err))
	}

	metrics.ObserveRequest(route.Entity.QualifiedName, string(route.Kind), status)
	httputil.Error(w, status, msg)
}
