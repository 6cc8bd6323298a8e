// Package server assembles the chardevd HTTP API: the session routes of the
// transport adapter plus device, version and readiness endpoints. The same
// router is served on TCP and on the device node socket.
package server

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/chardev/chardev/internal/chardevd/config"
	"github.com/chardev/chardev/internal/chardevd/session"
	"github.com/chardev/chardev/internal/common/httpx"
	"github.com/chardev/chardev/internal/common/logtrace"
	"github.com/chardev/chardev/internal/common/middleware"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/rs/zerolog/log"
)

const eventBufferSize = 256

// DeviceServer routes HTTP requests to the device.
type DeviceServer struct {
	Router *chi.Mux
	device *Device
	cfg    *config.ConfigParam
}

// CreateNewServer creates a server for device configured by cfg.
func CreateNewServer(cfg *config.ConfigParam, device *Device) (*DeviceServer, error) {
	if cfg == nil || device == nil {
		return nil, fmt.Errorf("server needs a config and a device")
	}
	return &DeviceServer{
		Router: chi.NewRouter(),
		device: device,
		cfg:    cfg,
	}, nil
}

// MountHandlers installs middleware and routes.
func (s *DeviceServer) MountHandlers() {
	s.Router.Use(middleware.RequestLogger)
	s.Router.Use(middleware.PanicHandler)
	if s.cfg.HandleCORS {
		s.Router.Use(s.HandleCORS)
	}
	s.Router.Use(checkClientVersion)
	s.mountResourceHandlers(s.Router)
	if logtrace.IsTraceEnabled() {
		fmt.Println("Routes in chardevd router")
		walkFunc := func(method string, route string, handler http.Handler, middlewares ...func(http.Handler) http.Handler) error {
			fmt.Printf("%s %s\n", method, route)
			return nil
		}
		if err := chi.Walk(s.Router, walkFunc); err != nil {
			log.Error().Err(err).Msg("Error walking router")
		}
	}
}

func (s *DeviceServer) mountResourceHandlers(r chi.Router) {
	r.Group(func(r chi.Router) {
		if timeout := s.cfg.GetRequestTimeout(); timeout > 0 {
			r.Use(middleware.SetTimeout(timeout))
		}
		r.Route("/sessions", session.Router)
		r.Get("/version", s.getVersion)
		r.Get("/ready", s.getReadiness)
		r.Get("/device", httpx.WrapHttpRsp(s.getDevice))
	})
	// streams stay open until the client leaves
	r.Get("/device/events", httpx.WrapHttpRsp(s.streamEvents))
}

// GetVersionRsp is the body of GET /version.
type GetVersionRsp struct {
	ServerVersion string `json:"serverVersion"`
	ApiVersion    string `json:"apiVersion"`
}

func (s *DeviceServer) getVersion(w http.ResponseWriter, r *http.Request) {
	log.Ctx(r.Context()).Debug().Msg("GetVersion")
	rsp := &GetVersionRsp{
		ServerVersion: "chardevd: " + Version,
		ApiVersion:    Version,
	}
	httpx.SendJsonRsp(r.Context(), w, http.StatusOK, rsp)
}

func (s *DeviceServer) getReadiness(w http.ResponseWriter, r *http.Request) {
	log.Ctx(r.Context()).Debug().Msg("Readiness check")
	httpx.SendJsonRsp(r.Context(), w, http.StatusOK, map[string]string{
		"status": "ready",
	})
}

// DeviceInfo is the body of GET /device.
type DeviceInfo struct {
	DeviceNode    string `json:"deviceNode"`
	Capacity      int    `json:"capacity"`
	OpenSessions  int    `json:"openSessions"`
	AuditLog      string `json:"auditLog,omitempty"`
	DroppedEvents uint64 `json:"droppedEvents"`
}

func (s *DeviceServer) getDevice(r *http.Request) (*httpx.Response, error) {
	return &httpx.Response{
		StatusCode: http.StatusOK,
		Response: DeviceInfo{
			DeviceNode:   s.cfg.DeviceNode,
			Capacity:     s.device.Store.Capacity(),
			OpenSessions: s.device.Store.OpenSessions(),
			AuditLog:     s.device.AuditLogPath(),
		},
	}, nil
}

// streamEvents writes one JSON store event per line until the client
// disconnects or the bus shuts down. Events are dropped for readers that
// fall behind; the loss is logged and counted in DeviceInfo.
func (s *DeviceServer) streamEvents(r *http.Request) (*httpx.Response, error) {
	ctx := r.Context()
	sub, unsubscribe := s.device.Bus.Subscribe(TopicStorePattern, eventBufferSize)

	return &httpx.Response{
		StatusCode:  http.StatusOK,
		ContentType: httpx.ContentTypeNDJSON,
		Chunked:     true,
		WriteChunks: func(w http.ResponseWriter) error {
			defer unsubscribe()
			var seen uint64
			defer func() {
				if lost := sub.Dropped() - seen; lost > 0 {
					log.Ctx(ctx).Warn().Uint64("lost", lost).Msg("event stream dropped store events")
				}
			}()
			flusher, _ := w.(http.Flusher)
			if flusher != nil {
				flusher.Flush()
			}
			enc := json.NewEncoder(w)
			for {
				select {
				case <-ctx.Done():
					return nil
				case ev, ok := <-sub.Channel:
					if !ok {
						return nil
					}
					if dropped := sub.Dropped(); dropped != seen {
						log.Ctx(ctx).Warn().Uint64("lost", dropped-seen).Msg("event stream dropped store events")
						seen = dropped
					}
					if err := enc.Encode(ev.Data); err != nil {
						return err
					}
					if flusher != nil {
						flusher.Flush()
					}
				}
			}
		},
	}, nil
}

// HandleCORS answers cross-origin requests from browser clients.
func (s *DeviceServer) HandleCORS(next http.Handler) http.Handler {
	return cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type", "Content-Length", "Accept-Encoding", ClientVersionHeader},
		ExposedHeaders:   []string{"Location", middleware.RequestIDHeader, session.HeaderCount, session.HeaderPosition},
		AllowCredentials: false,
		MaxAge:           300,
	})(next)
}
