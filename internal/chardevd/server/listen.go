package server

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
)

const (
	deviceNodeMode  = 0666
	shutdownTimeout = 5 * time.Second
)

// ListenDeviceNode registers the device node as a unix socket at path. A
// stale socket left by an earlier run is replaced; any other file at path is
// left alone and reported as an error. The node is removed when the listener
// is closed.
func ListenDeviceNode(path string) (net.Listener, error) {
	if fi, err := os.Lstat(path); err == nil {
		if fi.Mode()&os.ModeSocket == 0 {
			return nil, fmt.Errorf("device node %s exists and is not a socket", path)
		}
		if err := os.Remove(path); err != nil {
			return nil, fmt.Errorf("failed to remove stale device node: %w", err)
		}
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create device node directory: %w", err)
	}

	listener, err := net.Listen("unix", path)
	if err != nil {
		return nil, fmt.Errorf("failed to listen on device node: %w", err)
	}
	if err := os.Chmod(path, deviceNodeMode); err != nil {
		log.Warn().Err(err).Str("device_node", path).Msg("failed to chmod device node")
	}
	return listener, nil
}

// Serve serves the router on every listener until ctx is done or one of them
// fails, then shuts all of them down.
func (s *DeviceServer) Serve(ctx context.Context, listeners ...net.Listener) error {
	g, gctx := errgroup.WithContext(ctx)
	servers := make([]*http.Server, 0, len(listeners))

	for _, l := range listeners {
		l := l
		srv := &http.Server{
			Handler:           s.Router,
			ReadHeaderTimeout: 5 * time.Second,
			// event streams end when the server stops
			BaseContext: func(net.Listener) context.Context { return gctx },
		}
		servers = append(servers, srv)
		g.Go(func() error {
			log.Info().Str("network", l.Addr().Network()).Str("address", l.Addr().String()).Msg("chardevd listening")
			if err := srv.Serve(l); err != nil && err != http.ErrServerClosed {
				return fmt.Errorf("serving %s: %w", l.Addr(), err)
			}
			return nil
		})
	}

	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		for _, srv := range servers {
			if err := srv.Shutdown(shutdownCtx); err != nil {
				log.Error().Err(err).Msg("graceful shutdown failed")
				srv.Close()
			}
		}
		return nil
	})

	return g.Wait()
}
