package httpapi

import (
	"encoding/json"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/dmitrijs2005/passlink/internal/common"
	"github.com/dmitrijs2005/passlink/internal/server/services"
)

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, common.ErrorValidation)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"ok":   true,
		"time": time.Now().UTC().Format(time.RFC3339Nano),
	})
}

// loginRequest is the union of both login phases. The phases have disjoint
// schemas: request-phase carries the email alone, confirm-phase carries all
// three fields. Anything in between is malformed.
type loginRequest struct {
	Email string `json:"email"`
	Token string `json:"token"`
	Code  string `json:"code"`
}

type loginResponse struct {
	Token string `json:"token"`
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, common.ErrorValidation)
		return
	}

	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, common.ErrorValidation)
		return
	}

	parsed, err := classifyLogin(req, clientIP(r))
	if err != nil {
		writeError(w, err)
		return
	}

	res, err := s.login.Dispatch(r.Context(), parsed)
	if err != nil {
		writeError(w, err)
		return
	}

	if res.SignedToken != "" {
		writeJSON(w, http.StatusOK, loginResponse{Token: res.SignedToken})
		return
	}
	writeJSON(w, http.StatusOK, loginResponse{Token: res.ContinuationToken})
}

// classifyLogin settles which phase the body describes before anything
// touches the database.
func classifyLogin(req loginRequest, ip *string) (services.LoginRequest, error) {
	email := strings.TrimSpace(req.Email)
	if email == "" {
		return nil, common.ErrorValidation
	}

	switch {
	case req.Token == "" && req.Code == "":
		return services.RequestPhase{Email: email}, nil
	case req.Token != "" && req.Code != "":
		return services.ConfirmPhase{Email: email, Token: req.Token, Code: req.Code, IP: ip}, nil
	default:
		// One of token/code present without the other matches neither schema.
		return nil, common.ErrorMalformedParams
	}
}

// clientIP extracts the caller address, preferring the first hop recorded by
// a proxy.
func clientIP(r *http.Request) *string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		ip := strings.TrimSpace(strings.SplitN(fwd, ",", 2)[0])
		if ip != "" {
			return &ip
		}
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil || host == "" {
		return nil
	}
	return &host
}

type verifyResponse struct {
	Valid  bool   `json:"valid"`
	UserID string `json:"user_id,omitempty"`
	Email  string `json:"email,omitempty"`
	Name   string `json:"name,omitempty"`
	Method string `json:"method,omitempty"`
}

func (s *Server) handleVerify(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, common.ErrorValidation)
		return
	}

	raw := bearerToken(r)
	if raw == "" {
		writeError(w, common.ErrorUnauthorized)
		return
	}

	claims, err := s.codec.Verify(raw)
	if err != nil {
		// Expiry is the one verification failure surfaced distinctly.
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, verifyResponse{
		Valid:  true,
		UserID: claims.UserID,
		Email:  claims.Email,
		Name:   claims.Name,
		Method: claims.Method,
	})
}

func (s *Server) handleHandshakeConfirm(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, common.ErrorValidation)
		return
	}

	params := r.URL.Query().Get("params")
	if err := s.handshake.Confirm(r.Context(), params, bearerToken(r)); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

func bearerToken(r *http.Request) string {
	auth := r.Header.Get(common.AuthorizationHeaderName)
	const prefix = "Bearer "
	if !strings.HasPrefix(auth, prefix) {
		return ""
	}
	return strings.TrimSpace(strings.TrimPrefix(auth, prefix))
}
