package ws

import (
	"context"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
)

// TokenVerifier извлекает личность из access-токена.
type TokenVerifier interface {
	UserID(token string) (int64, error)
}

type Server struct {
	upgrader websocket.Upgrader
	registry *Registry
	router   *Router
	recorder AttendanceRecorder
	verifier TokenVerifier // nil — личность берётся из join как есть

	pingEvery    time.Duration
	writeTimeout time.Duration

	sessions sync.WaitGroup
}

func NewServer(registry *Registry, router *Router, recorder AttendanceRecorder, verifier TokenVerifier, pingEvery, writeTimeout time.Duration) *Server {
	if pingEvery <= 0 {
		pingEvery = 15 * time.Second
	}
	return &Server{
		registry: registry,
		router:   router,
		recorder: recorder,
		verifier: verifier,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
		pingEvery:    pingEvery,
		writeTimeout: writeTimeout,
	}
}

// WS endpoint: GET /ws/classroom/{id}?access_token=...
// Авторизация (можно ли этому пользователю в этот класс) — забота внешнего
// HTTP-слоя до апгрейда; здесь только извлечение личности из токена.
func (s *Server) HandleWS(w http.ResponseWriter, r *http.Request) {
	classroomID := chi.URLParam(r, "id")
	if classroomID == "" {
		http.Error(w, "missing classroom id", http.StatusBadRequest)
		return
	}

	var pinnedUserID int64
	if token := strings.TrimSpace(r.URL.Query().Get("access_token")); token != "" && s.verifier != nil {
		uid, err := s.verifier.UserID(token)
		if err != nil {
			http.Error(w, "invalid access token", http.StatusUnauthorized)
			return
		}
		pinnedUserID = uid
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Warn("ws upgrade failed", "classroom", classroomID, "err", err)
		return
	}

	sess := &session{
		registry:    s.registry,
		router:      s.router,
		recorder:    s.recorder,
		conn:        newWsConn(conn, s.writeTimeout),
		classroomID: classroomID,
		origin:      remoteHost(r),
		pingEvery:   s.pingEvery,
	}

	s.sessions.Add(1)
	defer s.sessions.Done()
	sess.run(r.Context(), pinnedUserID)
}

// Shutdown закрывает транспорт всех живых сессий и ждёт, пока каждая
// выполнит свою Closing-последовательность (attendance не остаётся открытой).
func (s *Server) Shutdown(ctx context.Context) error {
	s.registry.CloseAll()

	done := make(chan struct{})
	go func() {
		s.sessions.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Monitor — счётчики realtime-слоя одним значением (для healthz).
type Monitor struct {
	Registry *Registry
	Router   *Router
}

func (m Monitor) Stats() (rooms, participants int) { return m.Registry.Stats() }
func (m Monitor) UnknownMessages() int64           { return m.Router.UnknownMessages() }

// remoteHost — сетевой источник для attendance (RealIP уже применён выше).
func remoteHost(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
