// Package httpapi serves the static web assets and the two JSON status
// endpoints (C10), routed with matryer/way the way the rest of the example
// pack's HTTP surfaces are.
package httpapi

import (
	"encoding/json"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"github.com/matryer/way"
	"github.com/sirupsen/logrus"

	"mazegame/server/internal/registry"
)

// ConfigPayload is the body of GET /api/config.
type ConfigPayload struct {
	WebsocketPort int    `json:"websocketPort"`
	GameVersion   string `json:"gameVersion"`
	ServerName    string `json:"serverName"`
	MazeSize      string `json:"mazeSize"`
	MaxPlayers    int    `json:"maxPlayers"`
}

// StatusPayload is the body of GET /api/status.
type StatusPayload struct {
	Status           string `json:"status"`
	ConnectedPlayers int    `json:"connectedPlayers"`
	TotalPlayers     int    `json:"totalPlayers"`
	OnlinePlayers    int    `json:"onlinePlayers"`
	UptimeSeconds    int64  `json:"uptime"`
	ServerTimeMS     int64  `json:"serverTime"`
}

// Server is the HTTP surface: static files under webRoot plus the status
// endpoints.
type Server struct {
	router     *way.Router
	httpServer *http.Server
	webRoot    string
	config     ConfigPayload
	registry   *registry.Registry
	startedAt  time.Time
	log        *logrus.Entry
}

// New builds the HTTP surface bound to addr, serving static files from
// webRoot and status data derived from reg.
func New(addr, webRoot string, config ConfigPayload, reg *registry.Registry, log *logrus.Entry) *Server {
	s := &Server{
		router:    way.NewRouter(),
		webRoot:   webRoot,
		config:    config,
		registry:  reg,
		startedAt: time.Now(),
		log:       log,
	}
	s.router.HandleFunc("GET", "/api/config", s.handleConfig)
	s.router.HandleFunc("GET", "/api/status", s.handleStatus)
	s.router.HandleFunc("GET", "/...", s.handleStatic)
	s.httpServer = &http.Server{Addr: addr, Handler: s.router}
	return s
}

// ListenAndServe blocks serving HTTP until Shutdown is called.
func (s *Server) ListenAndServe() error {
	err := s.httpServer.ListenAndServe()
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}

// Shutdown gracefully stops the HTTP server within deadline.
func (s *Server) Shutdown(deadline time.Duration) error {
	return shutdownWithTimeout(s.httpServer, deadline)
}

func (s *Server) handleConfig(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, s.config)
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	online := s.registry.Online()
	writeJSON(w, StatusPayload{
		Status:           "running",
		ConnectedPlayers: len(online),
		TotalPlayers:     len(s.registry.Snapshot()),
		OnlinePlayers:    len(online),
		UptimeSeconds:    int64(time.Since(s.startedAt).Seconds()),
		ServerTimeMS:     time.Now().UnixMilli(),
	})
}

func (s *Server) handleStatic(w http.ResponseWriter, r *http.Request) {
	reqPath := way.Param(r.Context(), "")
	if reqPath == "" {
		reqPath = "index.html"
	}
	if !isSafePath(s.webRoot, reqPath) {
		http.Error(w, "forbidden", http.StatusForbidden)
		return
	}
	http.ServeFile(w, r, filepath.Join(s.webRoot, reqPath))
}

// isSafePath reports whether rel, joined onto root, stays inside root: no
// ".." segment, and the cleaned absolute form doesn't escape root.
func isSafePath(root, rel string) bool {
	if strings.Contains(rel, "..") {
		return false
	}
	cleaned := filepath.Clean(filepath.Join(root, rel))
	rootAbs, err := filepath.Abs(root)
	if err != nil {
		return false
	}
	cleanedAbs, err := filepath.Abs(cleaned)
	if err != nil {
		return false
	}
	return cleanedAbs == rootAbs || strings.HasPrefix(cleanedAbs, rootAbs+string(filepath.Separator))
}

func writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(v)
}
