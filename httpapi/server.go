// Package httpapi exposes the relay over HTTP: account registration and
// login, token-guarded relay routes, and a diagnostics endpoint.
package httpapi

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/okanoue/apirelay"
	"github.com/okanoue/apirelay/userstore"
)

type Server struct {
	relay                *apirelay.Relay
	users                *userstore.Store
	upstreamHost         string
	credentialConfigured bool
	logger               *slog.Logger
	mux                  *http.ServeMux
}

type Option interface {
	apply(s *Server)
}

var (
	_ Option = loggerOption{}
	_ Option = upstreamInfoOption{}
)

type loggerOption struct {
	logger *slog.Logger
}

func (o loggerOption) apply(s *Server) {
	s.logger = o.logger
}

func WithLogger(logger *slog.Logger) loggerOption {
	return loggerOption{logger}
}

type upstreamInfoOption struct {
	host                 string
	credentialConfigured bool
}

func (o upstreamInfoOption) apply(s *Server) {
	s.upstreamHost = o.host
	s.credentialConfigured = o.credentialConfigured
}

// WithUpstreamInfo sets the static configuration reported by /api/status
// and enables the fail-fast credential check on the relay routes.
func WithUpstreamInfo(host string, credentialConfigured bool) upstreamInfoOption {
	return upstreamInfoOption{host, credentialConfigured}
}

func NewServer(relay *apirelay.Relay, users *userstore.Store, opts ...Option) *Server {
	s := &Server{
		relay:  relay,
		users:  users,
		logger: slog.Default(),
	}
	for _, o := range opts {
		o.apply(s)
	}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /auth/register", s.handleRegister)
	mux.HandleFunc("POST /auth/login", s.handleLogin)
	mux.HandleFunc("POST /auth/logout", s.handleLogout)
	mux.HandleFunc("GET /api/search", s.requireSession(s.handleSearch))
	mux.HandleFunc("GET /api/detail/{id}", s.requireSession(s.handleDetail))
	mux.HandleFunc("GET /api/status", s.handleStatus)
	s.mux = mux
	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

type credentials struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var creds credentials
	if err := json.NewDecoder(r.Body).Decode(&creds); err != nil || creds.Username == "" || creds.Password == "" {
		writeError(w, http.StatusBadRequest, "username and password are required")
		return
	}
	if err := s.users.Register(creds.Username, creds.Password); err != nil {
		if errors.Is(err, userstore.ErrUserExists) {
			writeError(w, http.StatusConflict, "user already exists")
			return
		}
		s.logger.ErrorContext(r.Context(), "register failed", slog.Any("error", err))
		writeError(w, http.StatusInternalServerError, "registration failed")
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{"username": creds.Username})
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var creds credentials
	if err := json.NewDecoder(r.Body).Decode(&creds); err != nil {
		writeError(w, http.StatusBadRequest, "username and password are required")
		return
	}
	token, err := s.users.Login(creds.Username, creds.Password)
	if err != nil {
		writeError(w, http.StatusUnauthorized, "invalid username or password")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"token": token})
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	if token := bearerToken(r); token != "" {
		s.users.Logout(token)
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) requireSession(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		token := bearerToken(r)
		if token == "" {
			writeError(w, http.StatusUnauthorized, "missing bearer token")
			return
		}
		if _, ok := s.users.Verify(token); !ok {
			writeError(w, http.StatusUnauthorized, "invalid or expired token")
			return
		}
		next(w, r)
	}
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	s.relayRequest(w, r, "/search")
}

func (s *Server) handleDetail(w http.ResponseWriter, r *http.Request) {
	s.relayRequest(w, r, "/detail/"+r.PathValue("id"))
}

// relayRequest maps relay outcomes to HTTP statuses. The credential check
// runs first so a misconfigured deployment never touches cache or quota.
func (s *Server) relayRequest(w http.ResponseWriter, r *http.Request, path string) {
	if !s.credentialConfigured {
		writeError(w, http.StatusServiceUnavailable, apirelay.ErrMissingCredential.Error())
		return
	}

	payload, err := s.relay.Do(r.Context(), path, r.URL.Query())
	if err != nil {
		var quotaErr *apirelay.QuotaExceededError
		if errors.As(err, &quotaErr) {
			writeJSON(w, http.StatusTooManyRequests, map[string]any{
				"error":     "daily quota exceeded",
				"limit":     quotaErr.Limit,
				"used":      quotaErr.Used,
				"remaining": quotaErr.Remaining,
				"resetDay":  quotaErr.ResetDay,
			})
			return
		}
		s.logger.ErrorContext(r.Context(), "relay request failed", slog.String("path", path), slog.Any("error", err))
		writeError(w, http.StatusBadGateway, "upstream request failed")
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write(payload)
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	status := s.relay.Quota()
	writeJSON(w, http.StatusOK, map[string]any{
		"quota": map[string]any{
			"day":       status.Day,
			"used":      status.Used,
			"remaining": status.Remaining,
		},
		"upstreamHost":         s.upstreamHost,
		"credentialConfigured": s.credentialConfigured,
	})
}

func bearerToken(r *http.Request) string {
	auth := r.Header.Get("Authorization")
	const prefix = "Bearer "
	if !strings.HasPrefix(auth, prefix) {
		return ""
	}
	return strings.TrimPrefix(auth, prefix)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
