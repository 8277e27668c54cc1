package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/jtn0123/megabonk-vision/internal/metrics"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// debugServer serves the live event stream and Prometheus metrics.
type debugServer struct {
	hub    *metrics.Hub
	prom   *metrics.PrometheusSink
	srv    *http.Server
	cancel context.CancelFunc
	addr   string
}

func newDebugMux(hub *metrics.Hub, reg *prometheus.Registry) *http.ServeMux {
	mux := http.NewServeMux()
	mux.Handle("/events", hub)
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		fmt.Fprintln(w, "ok")
	})
	return mux
}

func startDebugServer(ctx context.Context, addr string, logger *slog.Logger) (*debugServer, error) {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector())
	prom, err := metrics.NewPrometheusSink(reg)
	if err != nil {
		return nil, err
	}

	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("debug listener: %w", err)
	}

	ctx, cancel := context.WithCancel(ctx)
	hub := metrics.NewHub(logger)
	go hub.Run(ctx)

	d := &debugServer{
		hub:    hub,
		prom:   prom,
		cancel: cancel,
		addr:   ln.Addr().String(),
		srv: &http.Server{
			Handler:           newDebugMux(hub, reg),
			ReadHeaderTimeout: 5 * time.Second,
		},
	}
	go func() {
		if err := d.srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("debug server failed", "err", err)
		}
	}()
	logger.Info("debug server listening", "addr", d.addr)
	return d, nil
}

// Sinks returns the sinks detection events should be recorded to.
func (d *debugServer) Sinks() []metrics.Sink {
	return []metrics.Sink{d.prom, d.hub}
}

// Close stops the server and disconnects event clients.
func (d *debugServer) Close() error {
	d.cancel()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	return d.srv.Shutdown(ctx)
}
