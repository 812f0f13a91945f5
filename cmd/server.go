package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/otherjamesbrown/mailroom/pkg/buildinfo"
	"github.com/otherjamesbrown/mailroom/pkg/layout"
	"github.com/otherjamesbrown/mailroom/pkg/logging"
)

const (
	serverReadTimeout     = 5 * time.Second
	serverWriteTimeout    = 10 * time.Second
	serverShutdownTimeout = 5 * time.Second
)

// statusServer is the read-only HTTP view of a root. It never mutates
// anything: /status re-reads the persisted state on every request.
type statusServer struct {
	http            *http.Server
	logger          logging.Logger
	shutdownTimeout time.Duration
}

func newStatusServer(addr string, deps *CommandDeps, l layout.Layout, logger logging.Logger) *statusServer {
	return &statusServer{
		http: &http.Server{
			Addr:         addr,
			Handler:      statusHandler(deps, l, logger),
			ReadTimeout:  serverReadTimeout,
			WriteTimeout: serverWriteTimeout,
		},
		logger:          logger.With(logging.F("system", "http")),
		shutdownTimeout: serverShutdownTimeout,
	}
}

// statusHandler routes /status, /metrics, /version and /healthz.
func statusHandler(deps *CommandDeps, l layout.Layout, logger logging.Logger) http.Handler {
	deps.metrics()
	var gatherer prometheus.Gatherer = prometheus.DefaultGatherer
	if deps.Registry != nil {
		gatherer = deps.Registry
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/status", func(w http.ResponseWriter, r *http.Request) {
		report, err := buildStatus(l, deps.now(), logger)
		if err != nil {
			logger.Error("Building status failed", logging.Err(err))
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		report.Collection.Record(deps.metrics())
		w.Header().Set("Content-Type", "application/json")
		_ = outputJSON(w, report)
	})
	mux.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	mux.Handle("/version", buildinfo.Handler("mailroom"))
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok\n"))
	})
	return mux
}

// Run serves until ctx is done, then shuts down gracefully.
func (s *statusServer) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("Status server listening", logging.F("addr", s.http.Addr))
		errCh <- s.http.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("status server: %w", err)
	case <-ctx.Done():
	}

	s.logger.Info("Shutting down status server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.shutdownTimeout)
	defer cancel()
	if err := s.http.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("status server shutdown: %w", err)
	}
	<-errCh
	return nil
}
