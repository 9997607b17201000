// Package main runs the schemadump MCP server: it exposes migrate-and-dump
// tools over stdio to agents (e.g. Cursor) without exposing connection URLs.
package main

import (
	"errors"
	"log/slog"
	"net/http"
	"os"

	"github.com/mark3labs/mcp-go/server"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/SedlarDavid/schemadump/internal/config"
	"github.com/SedlarDavid/schemadump/internal/metrics"
	srv "github.com/SedlarDavid/schemadump/internal/server"
	"github.com/SedlarDavid/schemadump/pkg/schemadump"
)

// EnvMetricsAddr enables a prometheus listener, e.g. ":9090".
const EnvMetricsAddr = "SCHEMADUMP_METRICS_ADDR"

func main() {
	// stdout carries the protocol; logs go to stderr.
	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))
	slog.SetDefault(logger)

	cfg, err := config.Load()
	if err != nil {
		logger.Error("config", "err", err)
		os.Exit(1)
	}
	logger.Info("targets loaded", "ids", cfg.TargetIDs())

	dumper := &schemadump.Dumper{Logger: logger}
	if addr := os.Getenv(EnvMetricsAddr); addr != "" {
		dumper.Metrics = metrics.New("", prometheus.DefaultRegisterer)
		go serveMetrics(logger, addr)
	}

	if err := server.ServeStdio(srv.New(cfg, dumper)); err != nil {
		logger.Error("server", "err", err)
		os.Exit(1)
	}
}

func serveMetrics(logger *slog.Logger, addr string) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler(nil))
	logger.Info("metrics listening", "addr", addr)
	if err := http.ListenAndServe(addr, mux); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("metrics server", "err", err)
	}
}
