// Package httpapi exposes the login, verification and handshake endpoints
// over HTTP. Handlers stay thin: they parse and classify the request, call
// the matching service and translate its error into a status code.
package httpapi

import (
	"net/http"

	"github.com/dmitrijs2005/passlink/internal/logging"
	"github.com/dmitrijs2005/passlink/internal/server/auth"
	"github.com/dmitrijs2005/passlink/internal/server/services"
)

type Server struct {
	login     *services.LoginService
	handshake *services.HandshakeService
	codec     *auth.Codec
	logger    logging.Logger
	mux       *http.ServeMux
}

func NewServer(login *services.LoginService, handshake *services.HandshakeService,
	codec *auth.Codec, logger logging.Logger) *Server {
	s := &Server{
		login:     login,
		handshake: handshake,
		codec:     codec,
		logger:    logger.With("module", "httpapi"),
		mux:       http.NewServeMux(),
	}
	s.registerRoutes()
	return s
}

func (s *Server) Handler() http.Handler {
	var h http.Handler = s.mux
	h = recoverMiddleware(h)
	h = s.loggingMiddleware(h)
	h = requestIDMiddleware(h)
	return h
}

func (s *Server) registerRoutes() {
	s.mux.HandleFunc("/v1/health", s.handleHealth)
	s.mux.HandleFunc("/v1/auth/login", s.handleLogin)
	s.mux.HandleFunc("/v1/auth/verify", s.handleVerify)
	s.mux.HandleFunc("/v1/handshake/confirm", s.handleHandshakeConfirm)
}
