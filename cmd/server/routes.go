package main

import (
	"net/http"
	"strings"

	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"
	"github.com/lychee-technology/dataeditor"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// NewHandler wires the API routes, metrics endpoint, optional static
// front-end and the shared middleware.
func NewHandler(s *Server, config *dataeditor.Config, registry *prometheus.Registry) http.Handler {
	router := mux.NewRouter()

	middlewares := []mux.MiddlewareFunc{
		handlers.CompressHandler,
	}
	if config.Server.EnableCORS {
		middlewares = append(middlewares, handlers.CORS(
			handlers.AllowedMethods([]string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete}),
			handlers.AllowedHeaders([]string{"Authorization", "Content-Type"}),
		))
	}
	if config.Logging.AccessLog {
		accessLog := zap.NewStdLog(zap.L()).Writer()
		middlewares = append(middlewares, func(next http.Handler) http.Handler {
			return handlers.LoggingHandler(accessLog, next)
		})
	}
	router.Use(middlewares...)

	if config.Metrics.Enabled && registry != nil {
		router.Handle(config.Metrics.Path, promhttp.HandlerFor(registry, promhttp.HandlerOpts{Registry: registry}))
	}

	prefix := strings.TrimRight(config.Server.APIPrefix, "/")
	api := router.NewRoute().Subrouter()
	if prefix != "" {
		api = router.PathPrefix(prefix).Subrouter()
		api.HandleFunc("", s.readAuth(s.handleListSchemas)).Methods(http.MethodGet)
	}
	if config.Metrics.Enabled && registry != nil {
		api.Use(handleHTTPMetrics(registry))
	}
	s.addRoutes(api)

	if config.Server.StaticDirectory != "" {
		router.PathPrefix("/").Handler(http.FileServer(http.Dir(config.Server.StaticDirectory)))
	}
	return router
}

func (s *Server) addRoutes(api *mux.Router) {
	api.HandleFunc("/", s.readAuth(s.handleListSchemas)).Methods(http.MethodGet)
	api.HandleFunc("/{model}", s.readAuth(s.handleListEntries)).Methods(http.MethodGet)
	api.HandleFunc("/{model}/", s.readAuth(s.handleListEntries)).Methods(http.MethodGet)
	api.HandleFunc("/{model}", s.requireAuth(s.handleCreateEntry)).Methods(http.MethodPost)
	api.HandleFunc("/{model}/", s.requireAuth(s.handleCreateEntry)).Methods(http.MethodPost)
	api.HandleFunc("/{model}/{id}", s.readAuth(s.handleGetEntry)).Methods(http.MethodGet)
	api.HandleFunc("/{model}/{id}", s.requireAuth(s.handleUpdateEntry)).Methods(http.MethodPut)
	api.HandleFunc("/{model}/{id}", s.requireAuth(s.handleDeleteEntry)).Methods(http.MethodDelete)
}
