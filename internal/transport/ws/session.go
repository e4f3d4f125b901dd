package ws

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync/atomic"
	"time"
)

// AttendanceRecorder — контракт учёта посещаемости, каким его видит сессия.
// Ошибки записи логируются и не влияют на relay.
type AttendanceRecorder interface {
	OpenRecord(ctx context.Context, classroomID string, userID int64, joinedAt time.Time, origin string) (int64, error)
	CloseRecord(ctx context.Context, recordID int64, leftAt time.Time) error
}

// session владеет жизненным циклом одного физического соединения:
// AwaitingJoin -> Active -> Closing. Closing выполняется ровно один раз,
// каким бы путём сессия ни завершилась (ошибка чтения, вытеснение, shutdown).
type session struct {
	registry *Registry
	router   *Router
	recorder AttendanceRecorder

	conn        *wsConn
	classroomID string
	origin      string
	pingEvery   time.Duration

	part   *Participant
	closed atomic.Bool
}

// run — весь цикл сессии; выполняется в горутине соединения.
// pinnedUserID != 0 фиксирует личность из access-токена: user_id в join
// обязан совпасть.
func (s *session) run(ctx context.Context, pinnedUserID int64) {
	join, ok := s.awaitJoin(pinnedUserID)
	if !ok {
		// нарушение протокола до допуска: никаких следов в реестре и учёте
		return
	}

	s.admit(ctx, join)
	s.readLoop()
	s.teardown()
}

// awaitJoin читает первое сообщение. Всё, что не является корректным join,
// фатально: соединение закрывается кодом 4003 без побочных эффектов.
func (s *session) awaitJoin(pinnedUserID int64) (Envelope, bool) {
	s.conn.conn.SetReadLimit(maxMessageSize)
	_ = s.conn.conn.SetReadDeadline(time.Now().Add(2 * s.pingEvery))

	var msg Envelope
	_, data, err := s.conn.conn.ReadMessage()
	if err != nil {
		_ = s.conn.Close()
		return Envelope{}, false
	}
	if err := json.Unmarshal(data, &msg); err != nil {
		s.conn.closeWith(closeCodeProtocolViolation, "malformed join")
		return Envelope{}, false
	}
	if msg.Type != TypeJoin || msg.UserID <= 0 {
		s.conn.closeWith(closeCodeProtocolViolation, "join expected")
		return Envelope{}, false
	}
	if pinnedUserID != 0 && msg.UserID != pinnedUserID {
		s.conn.closeWith(closeCodeProtocolViolation, "user_id does not match token")
		return Envelope{}, false
	}
	return msg, true
}

// admit регистрирует участника: открывает attendance, вставляет запись в
// реестр (с вытеснением прежней сессии того же пользователя), шлёт новичку
// снапшот комнаты и user_joined остальным.
func (s *session) admit(ctx context.Context, join Envelope) {
	joinedAt := time.Now()

	attID, err := s.recorder.OpenRecord(ctx, s.classroomID, join.UserID, joinedAt, s.origin)
	if err != nil {
		// relay важнее durability: участник допускается без записи
		slog.Warn("attendance open failed",
			"classroom", s.classroomID, "user", join.UserID, "err", err)
	}

	s.part = &Participant{
		ClassroomID:  s.classroomID,
		UserID:       join.UserID,
		UserInfo:     join.UserInfo,
		Conn:         s.conn,
		JoinedAt:     joinedAt,
		AttendanceID: attID,
	}

	if old := s.registry.Admit(s.part); old != nil {
		// прежняя сессия закрывается моментом нового join; её attendance
		// не остаётся открытой, её read-цикл добьёт остальную уборку
		slog.Info("participant superseded",
			"classroom", s.classroomID, "user", join.UserID)
		if err := s.recorder.CloseRecord(ctx, old.AttendanceID, joinedAt); err != nil {
			slog.Warn("attendance close on supersession failed",
				"classroom", s.classroomID, "user", join.UserID, "err", err)
		}
		_ = old.Conn.Close()
	}

	peers := make([]StateItem, 0)
	for _, it := range s.registry.Snapshot(s.classroomID) {
		if it.UserID != s.part.UserID {
			peers = append(peers, it)
		}
	}
	if err := s.conn.Send(Envelope{Type: TypeState, Participants: peers}); err != nil {
		slog.Debug("initial state send failed",
			"classroom", s.classroomID, "user", join.UserID, "err", err)
	}

	s.registry.BroadcastExcept(s.classroomID, Envelope{
		Type:     TypeUserJoined,
		UserID:   s.part.UserID,
		UserInfo: s.part.UserInfo,
	}, s.part.UserID)

	slog.Info("participant joined",
		"classroom", s.classroomID, "user", join.UserID, "attendance_id", attID)

	go s.pingLoop()
}

// readLoop принимает сообщения строго по порядку прибытия и отдаёт их
// роутеру. Выход из цикла — по ошибке транспорта либо нарушению протокола.
func (s *session) readLoop() {
	s.conn.conn.SetPongHandler(func(string) error {
		_ = s.conn.conn.SetReadDeadline(time.Now().Add(2 * s.pingEvery))
		return nil
	})

	for {
		_, data, err := s.conn.conn.ReadMessage()
		if err != nil {
			return
		}
		var msg Envelope
		if err := json.Unmarshal(data, &msg); err != nil {
			s.conn.closeWith(closeCodeProtocolViolation, "malformed message")
			return
		}
		if err := s.router.Dispatch(s.part, msg); err != nil {
			s.conn.closeWith(closeCodeProtocolViolation, err.Error())
			return
		}
	}
}

func (s *session) pingLoop() {
	ticker := time.NewTicker(s.pingEvery)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if err := s.conn.ping(); err != nil {
				_ = s.conn.Close()
				return
			}
		case <-s.conn.closed:
			return
		}
	}
}

// teardown — единственная Closing-последовательность: Remove (сработает,
// только если запись всё ещё наша), закрытие attendance, user_left остальным.
// Guard по CAS: гонка «ошибка чтения + внешняя отмена» не запустит её дважды.
func (s *session) teardown() {
	if !s.closed.CompareAndSwap(false, true) {
		return
	}

	// свой контекст: уборка должна дожить и при погашенном request-контексте
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	leftAt := time.Now()
	removed := s.registry.Remove(s.classroomID, s.part.UserID, s.part)

	if err := s.recorder.CloseRecord(ctx, s.part.AttendanceID, leftAt); err != nil {
		slog.Warn("attendance close failed",
			"classroom", s.classroomID, "user", s.part.UserID, "err", err)
	}

	if removed != nil {
		// вытесненная сессия сюда не попадает: её запись уже не её
		s.registry.BroadcastExcept(s.classroomID, Envelope{
			Type:   TypeUserLeft,
			UserID: s.part.UserID,
		}, 0)
	}

	_ = s.conn.Close()
	slog.Info("participant left",
		"classroom", s.classroomID, "user", s.part.UserID, "superseded", removed == nil)
}
