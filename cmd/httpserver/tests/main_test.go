//go:build integration

package tests

import (
	"context"
	"log"
	"os"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"

	"github.com/go-petr/customer-ledger/cmd/httpserver"
	"github.com/go-petr/customer-ledger/internal/integrationtest"
	"github.com/go-petr/customer-ledger/internal/middleware"
	"github.com/go-petr/customer-ledger/pkg/configpkg"
	"github.com/go-petr/customer-ledger/pkg/dbpkg"
)

var server *httpserver.Server

// TestMain calls testMain and passes the returned exit code to os.Exit(). The reason
// that TestMain is basically a wrapper around testMain is because os.Exit() does not
// respect deferred functions, so this configuration allows for a deferred function.
func TestMain(m *testing.M) {
	os.Exit(testMain(m))
}

// testMain returns an integer denoting an exit code to be returned and used in
// TestMain. The exit code 0 denotes success, all other codes denote failure.
func testMain(m *testing.M) int {
	pg, err := integrationtest.StartPostgres(context.Background())
	if err != nil {
		log.Println("cannot start postgres:", err)
		return 1
	}
	defer func() { _ = pg.Terminate() }()

	config := configpkg.Config{
		DBDriver:    "postgres",
		DBSource:    pg.Source,
		MetricsPath: "/metrics",
	}

	zerolog.SetGlobalLevel(zerolog.FatalLevel)
	logger := middleware.NewLogger(config)

	conn, err := dbpkg.Setup(config.DBDriver, config.DBSource)
	if err != nil {
		log.Println("cannot setup database:", err)
		return 1
	}
	defer conn.Close()

	gin.SetMode(gin.ReleaseMode)

	server, err = httpserver.New(conn, logger, config, prometheus.NewRegistry())
	if err != nil {
		log.Println("cannot create server:", err)
		return 1
	}

	return m.Run()
}
