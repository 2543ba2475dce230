package setup

import (
	"errors"
	"net"
	"net/http"
	"net/http/pprof"
	"strconv"
	"time"

	"go.uber.org/zap"
)

// debugHandler serves the runtime profiles and nothing else.
func debugHandler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/debug/pprof/", pprof.Index)
	mux.HandleFunc("/debug/pprof/cmdline", pprof.Cmdline)
	mux.HandleFunc("/debug/pprof/profile", pprof.Profile)
	mux.HandleFunc("/debug/pprof/symbol", pprof.Symbol)
	mux.HandleFunc("/debug/pprof/trace", pprof.Trace)
	return mux
}

// serveDebug binds the profiling endpoint to loopback. Shutting down the
// returned server also closes its listener.
func serveDebug(port int, logger *zap.Logger) (*http.Server, error) {
	addr := net.JoinHostPort("127.0.0.1", strconv.Itoa(port))

	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, err
	}

	// Profiles can take longer than any API request
	srv := &http.Server{
		Handler:           debugHandler(),
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      2 * time.Minute,
	}

	go func() {
		logger.Warn("Profiling endpoint enabled", zap.String("address", listener.Addr().String()))
		if err := srv.Serve(listener); !errors.Is(err, http.ErrServerClosed) {
			logger.Error("Profiling endpoint stopped", zap.Error(err))
		}
	}()

	return srv, nil
}
