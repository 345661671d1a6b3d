// Copyright (C) 2024, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/NYTimes/gziphandler"
	"github.com/ava-labs/avalanchego/utils/logging"
	"github.com/gorilla/mux"
	"github.com/rs/cors"
	"go.uber.org/zap"
)

var _ Server = (*server)(nil)

type PathAdder interface {
	// AddRoute registers a route to a handler. Responses are gzipped.
	AddRoute(handler http.Handler, endpoint string) error
	// AddStreamRoute registers a route to a handler that hijacks the
	// connection.
	AddStreamRoute(handler http.Handler, endpoint string) error
}

// Server maintains the HTTP router of a venue
type Server interface {
	PathAdder
	// Addr is the address the server listens on
	Addr() net.Addr
	// Dispatch starts the API server
	Dispatch() error
	// Shutdown this server
	Shutdown() error
}

type HTTPConfig struct {
	ReadTimeout       time.Duration `json:"readTimeout"       yaml:"readTimeout"`
	ReadHeaderTimeout time.Duration `json:"readHeaderTimeout" yaml:"readHeaderTimeout"`
	WriteTimeout      time.Duration `json:"writeTimeout"      yaml:"writeTimeout"`
	IdleTimeout       time.Duration `json:"idleTimeout"       yaml:"idleTimeout"`
}

func DefaultHTTPConfig() HTTPConfig {
	return HTTPConfig{
		ReadTimeout:       30 * time.Second,
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
}

var errDuplicateRoute = errors.New("duplicate route")

type server struct {
	// log this server writes to
	log logging.Logger

	shutdownTimeout time.Duration

	// Maps endpoints to handlers
	router *mux.Router
	routes map[string]struct{}

	srv *http.Server

	// Listener used to serve traffic
	listener net.Listener
}

// New returns an instance of a Server. Responses carry CORS headers for
// [allowedOrigins].
func New(
	log logging.Logger,
	listener net.Listener,
	httpConfig HTTPConfig,
	allowedOrigins []string,
	shutdownTimeout time.Duration,
) Server {
	router := mux.NewRouter()
	corsHandler := cors.New(cors.Options{
		AllowedOrigins:   allowedOrigins,
		AllowCredentials: true,
	}).Handler(router)

	log.Info("API created",
		zap.Stringer("addr", listener.Addr()),
		zap.Strings("allowedOrigins", allowedOrigins),
	)

	return &server{
		log:             log,
		shutdownTimeout: shutdownTimeout,
		router:          router,
		routes:          map[string]struct{}{},
		srv: &http.Server{
			Handler:           corsHandler,
			ReadTimeout:       httpConfig.ReadTimeout,
			ReadHeaderTimeout: httpConfig.ReadHeaderTimeout,
			WriteTimeout:      httpConfig.WriteTimeout,
			IdleTimeout:       httpConfig.IdleTimeout,
		},
		listener: listener,
	}
}

func (s *server) Addr() net.Addr {
	return s.listener.Addr()
}

// Dispatch serves until Shutdown is called, after which it returns nil.
func (s *server) Dispatch() error {
	if err := s.srv.Serve(s.listener); !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *server) AddRoute(handler http.Handler, endpoint string) error {
	return s.addRoute(gziphandler.GzipHandler(handler), endpoint)
}

func (s *server) AddStreamRoute(handler http.Handler, endpoint string) error {
	return s.addRoute(handler, endpoint)
}

func (s *server) addRoute(handler http.Handler, endpoint string) error {
	if _, ok := s.routes[endpoint]; ok {
		return fmt.Errorf("%w: %s", errDuplicateRoute, endpoint)
	}
	s.routes[endpoint] = struct{}{}
	s.log.Info("adding route",
		zap.String("endpoint", endpoint),
	)
	s.router.Handle(endpoint, handler)
	return nil
}

func (s *server) Shutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), s.shutdownTimeout)
	err := s.srv.Shutdown(ctx)
	cancel()

	// If shutdown times out, make sure the server is still shutdown.
	_ = s.srv.Close()
	return err
}
