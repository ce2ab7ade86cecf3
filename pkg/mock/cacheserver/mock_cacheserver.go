/*
Copyright Inferno Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

// Package cacheserver provides a scripted identity cache server for tests.
package cacheserver

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"time"

	"github.com/gorilla/mux"
)

// Config scripts the behaviour of the mock server's auth endpoints.
type Config struct {
	// Challenge returned by GET /login/challenge.
	Challenge string

	// Token and RefreshToken are issued by successful logins and refreshes.
	Token        string
	RefreshToken string

	// AcceptRefreshToken is the only refresh token the refresh endpoint
	// accepts. When empty, every refresh token is accepted.
	AcceptRefreshToken string

	// LoginStatus and RefreshStatus force a non-2xx response from the
	// respective endpoint when set.
	LoginStatus   int
	RefreshStatus int

	// StatusUser is the user reported by GET /auth/status.
	StatusUser string

	// LoginDelay stalls the login handler, giving concurrent requests time
	// to pile up on the single-flight group.
	LoginDelay time.Duration
}

// Server is a scripted identity cache server backed by httptest. Auth
// endpoint behaviour is driven by Config; resource endpoints are registered
// per test via Handle. Every request is counted by path.
type Server struct {
	cfg        Config
	router     *mux.Router
	httpServer *httptest.Server

	lock           sync.Mutex
	hits           map[string]int
	identityTokens []string
	refreshTokens  []string
}

// New starts a mock cache server with the given script.
func New(cfg Config) *Server {
	s := &Server{
		cfg:    cfg,
		router: mux.NewRouter(),
		hits:   map[string]int{},
	}

	s.router.Use(s.countRequests)

	s.router.HandleFunc("/login/challenge", s.handleChallenge).Methods(http.MethodGet)
	s.router.HandleFunc("/login", s.handleLogin).Methods(http.MethodPost)
	s.router.HandleFunc("/refresh_token", s.handleRefresh).Methods(http.MethodGet)
	s.router.HandleFunc("/auth/status", s.handleStatus).Methods(http.MethodGet)

	s.httpServer = httptest.NewServer(s.router)

	return s
}

// URL returns the base URL of the running server.
func (s *Server) URL() string {
	return s.httpServer.URL
}

// Close shuts the server down.
func (s *Server) Close() {
	s.httpServer.Close()
}

// Handle registers a resource endpoint for the given methods.
func (s *Server) Handle(path string, handler http.HandlerFunc, methods ...string) {
	s.router.HandleFunc(path, handler).Methods(methods...)
}

// Hits returns how many requests the server received for the given path.
func (s *Server) Hits(path string) int {
	s.lock.Lock()
	defer s.lock.Unlock()

	return s.hits[path]
}

// IdentityTokens returns the identity tokens received by the login endpoint.
func (s *Server) IdentityTokens() []string {
	s.lock.Lock()
	defer s.lock.Unlock()

	return append([]string(nil), s.identityTokens...)
}

// RefreshTokens returns the refresh tokens received by the refresh endpoint.
func (s *Server) RefreshTokens() []string {
	s.lock.Lock()
	defer s.lock.Unlock()

	return append([]string(nil), s.refreshTokens...)
}

func (s *Server) countRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.lock.Lock()
		s.hits[r.URL.Path]++
		s.lock.Unlock()

		next.ServeHTTP(w, r)
	})
}

func (s *Server) handleChallenge(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, map[string]string{"challenge": s.cfg.Challenge})
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	if s.cfg.LoginDelay > 0 {
		time.Sleep(s.cfg.LoginDelay)
	}

	var req struct {
		IdentityToken string `json:"identityToken"`
	}

	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		w.WriteHeader(http.StatusBadRequest)

		return
	}

	s.lock.Lock()
	s.identityTokens = append(s.identityTokens, req.IdentityToken)
	s.lock.Unlock()

	if s.cfg.LoginStatus != 0 {
		w.WriteHeader(s.cfg.LoginStatus)

		return
	}

	s.writeTokens(w)
}

func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	refreshToken := r.URL.Query().Get("refresh_token")

	s.lock.Lock()
	s.refreshTokens = append(s.refreshTokens, refreshToken)
	s.lock.Unlock()

	if s.cfg.RefreshStatus != 0 {
		w.WriteHeader(s.cfg.RefreshStatus)

		return
	}

	if s.cfg.AcceptRefreshToken != "" && refreshToken != s.cfg.AcceptRefreshToken {
		w.WriteHeader(http.StatusUnauthorized)

		return
	}

	s.writeTokens(w)
}

func (s *Server) handleStatus(w http.ResponseWriter, _ *http.Request) {
	user := s.cfg.StatusUser

	var resp struct {
		User *string `json:"user"`
	}

	if user != "" {
		resp.User = &user
	}

	writeJSON(w, resp)
}

func (s *Server) writeTokens(w http.ResponseWriter) {
	writeJSON(w, map[string]string{
		"token":        s.cfg.Token,
		"refreshToken": s.cfg.RefreshToken,
	})
}

func writeJSON(w http.ResponseWriter, body interface{}) {
	w.Header().Set("Content-Type", "application/json")

	if err := json.NewEncoder(w).Encode(body); err != nil {
		w.WriteHeader(http.StatusInternalServerError)
	}
}
