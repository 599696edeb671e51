package http

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"voyalty/internal/service"
)

type Server struct {
	srv *http.Server
}

func NewServer(addr string, svc service.LoyaltyService) *Server {
	r := chi.NewRouter()
	h := NewHandler(svc)
	h.Routes(r)

	return &Server{
		srv: &http.Server{
			Addr:         addr,
			Handler:      r,
			ReadTimeout:  5 * time.Second,
			WriteTimeout: 10 * time.Second,
			IdleTimeout:  120 * time.Second,
		},
	}
}

func (s *Server) Start(ctx context.Context) error {
	// ErrServerClosed is the normal outcome of Stop, not a failure.
	if err := s.srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) Stop(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}
