package observer

import (
	"context"
	"errors"
	"net"
	"net/http"
	"strings"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/l1jgo/zonelights/internal/config"
)

// Server exposes the hub over HTTP: GET /lights upgrades to a websocket
// stream, GET /healthz reports liveness.
type Server struct {
	cfg config.ObserverConfig
	hub *Hub
	log *zap.Logger

	upgrader websocket.Upgrader
	nextID   atomic.Uint64

	srv *http.Server
	ln  net.Listener
}

func NewServer(cfg config.ObserverConfig, hub *Hub, log *zap.Logger) *Server {
	return &Server{
		cfg: cfg,
		hub: hub,
		log: log,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 16 * 1024,
			CheckOrigin:     func(r *http.Request) bool { return true }, // access is checked per peer
		},
	}
}

func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/lights", s.handleLights)
	mux.HandleFunc("/healthz", func(rw http.ResponseWriter, _ *http.Request) {
		rw.WriteHeader(http.StatusOK)
		_, _ = rw.Write([]byte("ok\n"))
	})
	return mux
}

// Start listens on the configured address and serves in the background.
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.cfg.BindAddress)
	if err != nil {
		return err
	}
	s.ln = ln
	s.srv = &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		if err := s.srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.log.Error("observer server stopped", zap.Error(err))
		}
	}()
	return nil
}

// Addr returns the listener's address.
func (s *Server) Addr() net.Addr {
	return s.ln.Addr()
}

// Shutdown stops accepting viewers. Open websockets are closed by the hub.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.srv == nil {
		return nil
	}
	return s.srv.Shutdown(ctx)
}

func (s *Server) handleLights(rw http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		rw.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	if !s.authorized(r.RemoteAddr, r.URL.Query().Get("token")) {
		http.Error(rw, "forbidden", http.StatusForbidden)
		return
	}

	conn, err := s.upgrader.Upgrade(rw, r, nil)
	if err != nil {
		return
	}

	id := s.nextID.Add(1)
	sess := NewSession(conn, id, r.RemoteAddr, s.cfg.QueueSize, s.cfg.MaxFPS, s.log)
	s.hub.Register(sess)
	s.log.Info("viewer connected", zap.Uint64("viewer", id), zap.String("ip", sess.IP))

	go sess.writeLoop()
	sess.readLoop(s.hub.reg)

	s.hub.Unregister(id)
	s.log.Info("viewer disconnected",
		zap.Uint64("viewer", id),
		zap.Uint64("dropped", sess.Dropped()),
	)
}

// authorized lets loopback peers in unconditionally; others need a token
// matching the configured bcrypt hash.
func (s *Server) authorized(remoteAddr, token string) bool {
	if isLoopbackRemote(remoteAddr) {
		return true
	}
	if s.cfg.TokenHash == "" || token == "" {
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(s.cfg.TokenHash), []byte(token)) == nil
}

func isLoopbackRemote(remoteAddr string) bool {
	host := remoteAddr
	if h, _, err := net.SplitHostPort(remoteAddr); err == nil {
		host = h
	}
	host = strings.TrimPrefix(host, "[")
	host = strings.TrimSuffix(host, "]")
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}

// HashToken returns the bcrypt hash to put in observer.token_hash.
func HashToken(token string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(token), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}
