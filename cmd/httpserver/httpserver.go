// Package httpserver manages server creation and api routing.
package httpserver

import (
	"database/sql"
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/go-petr/customer-ledger/internal/customerdelivery"
	"github.com/go-petr/customer-ledger/internal/customerrepo"
	"github.com/go-petr/customer-ledger/internal/customerservice"
	"github.com/go-petr/customer-ledger/internal/domain"
	"github.com/go-petr/customer-ledger/internal/middleware"
	"github.com/go-petr/customer-ledger/internal/telemetry"
	"github.com/go-petr/customer-ledger/pkg/configpkg"
)

// Server holds db connection, handlers router and configuration.
type Server struct {
	DB     *sql.DB
	Engine *gin.Engine
	Config configpkg.Config
}

// ServeHTTP implements the http.Handler interface for the Server type.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.Engine.ServeHTTP(w, r)
}

// New creates Server type with instantiated domains and routes.
//
// The collectors are registered with registerer and exposed on config.MetricsPath.
// A nil registerer stands for the prometheus default registry.
func New(conn *sql.DB, logger zerolog.Logger, config configpkg.Config, registerer prometheus.Registerer) (*Server, error) {
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}

	metrics := telemetry.NewMetrics(registerer)

	if err := telemetry.RegisterDBPoolMetrics(conn, registerer); err != nil {
		return nil, fmt.Errorf("cannot register db pool metrics: %w", err)
	}

	v, ok := binding.Validator.Engine().(*validator.Validate)
	if !ok {
		return nil, errors.New("cannot register validator field names")
	}

	customerdelivery.RegisterFieldNames(v)

	engine := gin.New()

	engine.Use(middleware.RequestLogger(logger))
	engine.Use(middleware.Metrics(metrics))
	engine.Use(gin.Recovery())

	for _, kind := range domain.Kinds {
		repo := customerrepo.NewRepoPGS(conn, kind, metrics)
		service := customerservice.New(kind, repo, metrics)
		handler := customerdelivery.NewHandler(kind, service)

		handler.Register(engine)
	}

	if config.MetricsPath != "" {
		gatherer, ok := registerer.(prometheus.Gatherer)
		if !ok {
			gatherer = prometheus.DefaultGatherer
		}

		engine.GET(config.MetricsPath, gin.WrapH(promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})))
	}

	server := &Server{
		DB:     conn,
		Engine: engine,
		Config: config,
	}

	return server, nil
}
