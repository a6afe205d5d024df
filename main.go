package main

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/joho/godotenv"

	"dragonfox-collabsync-server/auth"
	"dragonfox-collabsync-server/config"
	"dragonfox-collabsync-server/domain"
	"dragonfox-collabsync-server/hub"
	"dragonfox-collabsync-server/protocol"
	"dragonfox-collabsync-server/signaling"
	"dragonfox-collabsync-server/store"
	ws "dragonfox-collabsync-server/websocket"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

func main() {
	if err := godotenv.Load(); err != nil {
		slog.Warn("no .env file found, using environment variables")
	}

	cfg, err := config.Load()
	if err != nil {
		slog.Error("config error", "error", err)
		os.Exit(1)
	}
	setupLogger(cfg.LogLevel)

	messages, err := store.Open(cfg.DatabasePath)
	if err != nil {
		slog.Error("store error", "error", err)
		os.Exit(1)
	}

	verifier := auth.NewVerifier(cfg.JWTSecret, cfg.JWTIssuer)
	registry := hub.NewRegistry()
	relay := hub.NewRelay(registry, messages, cfg.PersistTimeout)
	coordinator := signaling.NewCoordinator()

	chatHandler := protocol.NewChatHandler(relay)
	signalingHandler := protocol.NewSignalingHandler(coordinator)

	mux := http.NewServeMux()
	mux.HandleFunc("/ws/chat", chatSocketHandler(verifier, registry, chatHandler))
	mux.HandleFunc("/ws/meeting", meetingSocketHandler(verifier, coordinator, signalingHandler))
	mux.HandleFunc("/health", healthHandler)
	mux.HandleFunc("/stats", statsHandler(registry, coordinator))

	server := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: mux,
	}

	go func() {
		slog.Info("server starting", "port", cfg.Port)
		if err := server.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			slog.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slog.Info("server shutting down")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		slog.Error("shutdown error", "error", err)
	}
}

func setupLogger(logLevel string) {
	level := slog.LevelInfo
	switch logLevel {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: level})))
}

// authenticate upgrades the request and verifies the bearer token from the
// connection URI. A failed handshake closes the socket with a
// policy-violation status and the reason; no frame is processed before the
// token checks out.
func authenticate(verifier domain.IdentityVerifier, w http.ResponseWriter, r *http.Request) (*websocket.Conn, domain.Identity, bool) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Error("upgrade error", "error", err)
		return nil, domain.Identity{}, false
	}

	identity, err := verifier.Verify(r.URL.Query().Get("token"))
	if err != nil {
		slog.Warn("handshake rejected", "remote", r.RemoteAddr, "error", err)
		ws.Reject(conn, err.Error())
		return nil, domain.Identity{}, false
	}
	return conn, identity, true
}

func chatSocketHandler(verifier domain.IdentityVerifier, registry *hub.Registry, handler *protocol.ChatHandler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		conn, identity, ok := authenticate(verifier, w, r)
		if !ok {
			return
		}

		sess := ws.NewSession(uuid.New().String(), identity, conn, handler, func(s *ws.Session) {
			registry.Unregister(identity.UserID, s)
		})
		registry.Register(identity.UserID, sess)
		sess.Start()
	}
}

func meetingSocketHandler(verifier domain.IdentityVerifier, coordinator *signaling.Coordinator, handler *protocol.SignalingHandler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		conn, identity, ok := authenticate(verifier, w, r)
		if !ok {
			return
		}

		sess := ws.NewSession(uuid.New().String(), identity, conn, handler, func(s *ws.Session) {
			coordinator.Detach(s.ID())
		})
		coordinator.Attach(sess)
		sess.Start()
	}
}

func healthHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

func statsHandler(registry *hub.Registry, coordinator *signaling.Coordinator) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rooms, participants := coordinator.Stats()
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]int{
			"connections":  registry.Len(),
			"rooms":        rooms,
			"participants": participants,
		})
	}
}
