// Package server hosts the chat UI page, a JSON HTTP API, and the
// WebSocket gateway that connects presentation surfaces to the daemon.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/ccbridge-ai/ccbridge/internal/eventbus"
	"github.com/ccbridge-ai/ccbridge/internal/session"
	"github.com/ccbridge-ai/ccbridge/internal/switcher"
	"github.com/ccbridge-ai/ccbridge/internal/version"
	"github.com/ccbridge-ai/ccbridge/web"
)

// SessionManager is the session surface the API server needs.
type SessionManager interface {
	List() []*session.Session
	ActiveCount() int
	Create(title string, provider *switcher.Provider) *session.Session
	Close(id string, reason string) error
}

// ProviderSource exposes the credential-switcher store.
type ProviderSource interface {
	IsInstalled() bool
	DatabasePath() string
	Providers(ctx context.Context) []switcher.Provider
	ActiveProvider(ctx context.Context) *switcher.Provider
	Open(ctx context.Context) error
}

// Reloader tears down active sessions so they restart with fresh
// configuration.
type Reloader interface {
	Reload() int
}

// Options groups the dependencies of the API server.
type Options struct {
	ListenAddr      string
	DevMode         bool
	DevServerOrigin string

	Sessions  SessionManager
	Providers ProviderSource
	Reloader  Reloader
	Bus       *eventbus.Bus
}

// APIServer serves the UI, the HTTP API, and the gateway on a single
// loopback listener.
type APIServer struct {
	opts    Options
	gateway *Gateway
	assets  uiAssets

	httpServer *http.Server
	listener   net.Listener
	lifecycle  eventbus.ServiceLifecycle
	noticeSub  *eventbus.TypedSubscription[eventbus.NoticeEvent]
	startTime  time.Time

	mu   sync.Mutex
	addr string
}

// NewAPIServer creates the server. Start must be called to begin
// listening.
func NewAPIServer(opts Options) (*APIServer, error) {
	if opts.Sessions == nil {
		return nil, fmt.Errorf("session manager is required")
	}
	if opts.Providers == nil {
		return nil, fmt.Errorf("provider source is required")
	}

	assets, err := loadUIAssets()
	if err != nil {
		return nil, err
	}

	var devOrigin string
	if opts.DevMode {
		devOrigin = opts.DevServerOrigin
	}

	return &APIServer{
		opts:    opts,
		gateway: NewGateway(originChecker(devOrigin)),
		assets:  assets,
	}, nil
}

// Gateway exposes the surface gateway for components outside the server
// package.
func (s *APIServer) Gateway() *Gateway {
	return s.gateway
}

// Addr returns the bound listen address, valid after Start.
func (s *APIServer) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.addr
}

// Start binds the listener and begins serving. Notices published on the
// event bus are forwarded to connected surfaces.
func (s *APIServer) Start(ctx context.Context) error {
	listener, err := net.Listen("tcp", s.opts.ListenAddr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", s.opts.ListenAddr, err)
	}

	s.mu.Lock()
	s.listener = listener
	s.addr = listener.Addr().String()
	s.mu.Unlock()

	s.startTime = time.Now()
	s.httpServer = &http.Server{
		Handler:           s.routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	s.lifecycle.Start(ctx)
	s.lifecycle.Go(s.gateway.Run)

	if s.opts.Bus != nil {
		s.noticeSub = eventbus.SubscribeTo(
			s.opts.Bus,
			eventbus.UI.Notice,
			eventbus.WithSubscriptionName("api_server_notices"),
		)
		s.lifecycle.AddSubscriptions(s.noticeSub)
		s.lifecycle.Go(s.forwardNotices)
	}

	go func() {
		if serveErr := s.httpServer.Serve(listener); serveErr != nil && !errors.Is(serveErr, http.ErrServerClosed) {
			log.Printf("[APIServer] serve error: %v", serveErr)
		}
	}()

	log.Printf("[APIServer] listening on http://%s", s.Addr())
	return nil
}

// Shutdown stops the HTTP server and the gateway pump.
func (s *APIServer) Shutdown(ctx context.Context) error {
	var err error
	if s.httpServer != nil {
		err = s.httpServer.Shutdown(ctx)
	}
	s.lifecycle.Stop()
	if waitErr := s.lifecycle.Wait(ctx); err == nil {
		err = waitErr
	}
	return err
}

// forwardNotices pushes bus notices to every connected surface. With no
// surface bound the notice is dropped; the next page load re-queries
// state anyway.
func (s *APIServer) forwardNotices(ctx context.Context) {
	eventbus.Consume(ctx, s.noticeSub, nil, func(notice eventbus.NoticeEvent) {
		if err := s.gateway.Post(notice); err != nil && !errors.Is(err, ErrNoSurface) {
			log.Printf("[APIServer] forward notice: %v", err)
		}
	})
}

func (s *APIServer) routes() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /{$}", s.handleIndex)
	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("GET /api/status", s.handleStatus)
	mux.HandleFunc("GET /api/providers", s.handleProviders)
	mux.HandleFunc("GET /api/providers/active", s.handleActiveProvider)
	mux.HandleFunc("POST /api/switcher/open", s.handleOpenSwitcher)
	mux.HandleFunc("GET /api/sessions", s.handleSessions)
	mux.HandleFunc("POST /api/sessions", s.handleCreateSession)
	mux.HandleFunc("DELETE /api/sessions/{id}", s.handleCloseSession)
	mux.HandleFunc("POST /api/reload", s.handleReload)
	mux.HandleFunc("GET /ws", s.gateway.HandleWebSocket)

	dist, err := fs.Sub(web.Dist, "dist")
	if err != nil {
		// The embedded tree always contains dist; reaching this is a
		// build problem, not a runtime one.
		panic(fmt.Sprintf("embedded ui assets: %v", err))
	}
	mux.Handle("GET /assets/", http.FileServerFS(dist))

	return mux
}

func (s *APIServer) handleIndex(w http.ResponseWriter, r *http.Request) {
	var devOrigin string
	if s.opts.DevMode {
		devOrigin = s.opts.DevServerOrigin
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := renderIndex(w, s.assets, devOrigin); err != nil {
		log.Printf("[APIServer] render index: %v", err)
	}
}

func (s *APIServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// StatusResponse reports daemon runtime state.
type StatusResponse struct {
	Version           string  `json:"version"`
	UptimeSeconds     float64 `json:"uptime_seconds"`
	ActiveSessions    int     `json:"active_sessions"`
	ConnectedSurfaces int     `json:"connected_surfaces"`
	SwitcherInstalled bool    `json:"switcher_installed"`
	SwitcherDBPath    string  `json:"switcher_db_path"`
}

func (s *APIServer) handleStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, StatusResponse{
		Version:           version.String(),
		UptimeSeconds:     time.Since(s.startTime).Seconds(),
		ActiveSessions:    s.opts.Sessions.ActiveCount(),
		ConnectedSurfaces: s.gateway.SurfaceCount(),
		SwitcherInstalled: s.opts.Providers.IsInstalled(),
		SwitcherDBPath:    s.opts.Providers.DatabasePath(),
	})
}

func (s *APIServer) handleProviders(w http.ResponseWriter, r *http.Request) {
	providers := s.opts.Providers.Providers(r.Context())
	if providers == nil {
		providers = []switcher.Provider{}
	}
	writeJSON(w, http.StatusOK, providers)
}

func (s *APIServer) handleActiveProvider(w http.ResponseWriter, r *http.Request) {
	active := s.opts.Providers.ActiveProvider(r.Context())
	if active == nil {
		writeError(w, http.StatusNotFound, "no active provider")
		return
	}
	writeJSON(w, http.StatusOK, active)
}

func (s *APIServer) handleOpenSwitcher(w http.ResponseWriter, r *http.Request) {
	if err := s.opts.Providers.Open(r.Context()); err != nil {
		writeError(w, http.StatusBadGateway, err.Error())
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "launched"})
}

// SessionResponse is the wire form of a chat session.
type SessionResponse struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Provider  string    `json:"provider,omitempty"`
	Status    string    `json:"status"`
	StartTime time.Time `json:"start_time"`
}

func toSessionResponse(sess *session.Session) SessionResponse {
	resp := SessionResponse{
		ID:        sess.ID,
		Title:     sess.Title,
		Status:    string(sess.CurrentStatus()),
		StartTime: sess.StartTime,
	}
	if sess.Provider != nil {
		resp.Provider = sess.Provider.Name
	}
	return resp
}

func (s *APIServer) handleSessions(w http.ResponseWriter, r *http.Request) {
	sessions := s.opts.Sessions.List()
	out := make([]SessionResponse, 0, len(sessions))
	for _, sess := range sessions {
		out = append(out, toSessionResponse(sess))
	}
	writeJSON(w, http.StatusOK, out)
}

// CreateSessionRequest is the body of POST /api/sessions.
type CreateSessionRequest struct {
	Title string `json:"title"`
}

func (s *APIServer) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	var req CreateSessionRequest
	if err := decodeJSONBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.Title == "" {
		req.Title = "New chat"
	}

	provider := s.opts.Providers.ActiveProvider(r.Context())
	sess := s.opts.Sessions.Create(req.Title, provider)
	writeJSON(w, http.StatusCreated, toSessionResponse(sess))
}

func (s *APIServer) handleCloseSession(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if err := s.opts.Sessions.Close(id, "user_closed"); err != nil {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "closed"})
}

// ReloadResponse reports how many sessions a reload closed.
type ReloadResponse struct {
	ClosedSessions int `json:"closed_sessions"`
}

func (s *APIServer) handleReload(w http.ResponseWriter, r *http.Request) {
	if s.opts.Reloader == nil {
		writeError(w, http.StatusServiceUnavailable, "reload service unavailable")
		return
	}
	writeJSON(w, http.StatusOK, ReloadResponse{ClosedSessions: s.opts.Reloader.Reload()})
}

func decodeJSONBody(r *http.Request, dst any) error {
	if r.Body == nil {
		return nil
	}
	defer r.Body.Close()
	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(dst); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("invalid request body: %w", err)
	}
	return nil
}
