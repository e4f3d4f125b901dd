package ws

import (
	"encoding/json"
	"log/slog"
	"sync"
	"time"
)

// Participant — живое присутствие пользователя в комнате. Создаётся в Admit,
// уничтожается в Remove либо вытесняется повторным Admit того же user_id.
type Participant struct {
	ClassroomID  string
	UserID       int64
	UserInfo     json.RawMessage
	Conn         Conn
	JoinedAt     time.Time
	AttendanceID int64
}

type room struct {
	mu           sync.Mutex
	participants map[int64]*Participant
	// pruned выставляется под mu, когда комната удалена из реестра;
	// Admit, попавший в такую комнату, обязан начать заново.
	pruned bool
}

// Registry — авторитетная таблица присутствия. Глобальный RWMutex защищает
// только map комнат; всё остальное сериализуется per-room мьютексом, чтобы
// несвязанные комнаты не конкурировали.
type Registry struct {
	mu    sync.RWMutex
	rooms map[string]*room
}

func NewRegistry() *Registry {
	return &Registry{rooms: make(map[string]*room)}
}

func (r *Registry) getOrCreate(classroomID string) *room {
	r.mu.Lock()
	defer r.mu.Unlock()

	rm, ok := r.rooms[classroomID]
	if !ok {
		rm = &room{participants: make(map[int64]*Participant)}
		r.rooms[classroomID] = rm
	}
	return rm
}

func (r *Registry) get(classroomID string) *room {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return r.rooms[classroomID]
}

// Admit вставляет участника; существующая запись того же (classroom, user)
// атомарно вытесняется и возвращается вызывающему — тот обязан закрыть её
// attendance и транспорт. Двух живых записей на один ключ не бывает.
func (r *Registry) Admit(p *Participant) (superseded *Participant) {
	for {
		rm := r.getOrCreate(p.ClassroomID)

		rm.mu.Lock()
		if rm.pruned {
			// комнату успели удалить между getOrCreate и lock
			rm.mu.Unlock()
			continue
		}
		superseded = rm.participants[p.UserID]
		rm.participants[p.UserID] = p
		rm.mu.Unlock()

		return superseded
	}
}

// Remove удаляет запись, только если она всё ещё принадлежит p: отключение
// уже вытесненной сессии не должно трогать её преемника. Отсутствие записи —
// не ошибка. Опустевшая комната удаляется здесь же, фонового sweeper-а нет.
func (r *Registry) Remove(classroomID string, userID int64, p *Participant) *Participant {
	rm := r.get(classroomID)
	if rm == nil {
		return nil
	}

	rm.mu.Lock()
	cur := rm.participants[userID]
	if cur == nil || cur != p {
		rm.mu.Unlock()
		return nil
	}
	delete(rm.participants, userID)
	empty := len(rm.participants) == 0
	rm.mu.Unlock()

	if empty {
		r.prune(classroomID, rm)
	}
	return cur
}

func (r *Registry) prune(classroomID string, rm *room) {
	r.mu.Lock()
	defer r.mu.Unlock()

	// перепроверка под обоими замками: кто-то мог успеть войти
	rm.mu.Lock()
	defer rm.mu.Unlock()
	if len(rm.participants) == 0 && r.rooms[classroomID] == rm {
		rm.pruned = true
		delete(r.rooms, classroomID)
	}
}

// BroadcastExcept доставляет сообщение всем живым хендлам комнаты, кроме
// excludeUserID (0 — без исключений). Ошибка записи одному получателю не
// прерывает рассылку остальным: его транспорт закрывается, и штатная
// Closing-последовательность его сессии делает остальную уборку.
func (r *Registry) BroadcastExcept(classroomID string, msg Envelope, excludeUserID int64) {
	rm := r.get(classroomID)
	if rm == nil {
		return
	}

	rm.mu.Lock()
	defer rm.mu.Unlock()

	for uid, p := range rm.participants {
		if excludeUserID != 0 && uid == excludeUserID {
			continue
		}
		if err := p.Conn.Send(msg); err != nil {
			slog.Warn("broadcast send failed, evicting recipient",
				"classroom", classroomID, "user", uid, "err", err)
			_ = p.Conn.Close()
		}
	}
}

// SendTo — unicast. false означает «адресата нет в комнате» (мог выйти между
// отправкой и доставкой) либо запись в его транспорт не удалась; это не ошибка.
func (r *Registry) SendTo(classroomID string, userID int64, msg Envelope) bool {
	rm := r.get(classroomID)
	if rm == nil {
		return false
	}

	rm.mu.Lock()
	defer rm.mu.Unlock()

	p, ok := rm.participants[userID]
	if !ok {
		return false
	}
	if err := p.Conn.Send(msg); err != nil {
		slog.Warn("unicast send failed, evicting recipient",
			"classroom", classroomID, "user", userID, "err", err)
		_ = p.Conn.Close()
		return false
	}
	return true
}

// Snapshot — согласованный срез участников комнаты для state-сообщения.
func (r *Registry) Snapshot(classroomID string) []StateItem {
	rm := r.get(classroomID)
	if rm == nil {
		return nil
	}

	rm.mu.Lock()
	defer rm.mu.Unlock()

	items := make([]StateItem, 0, len(rm.participants))
	for _, p := range rm.participants {
		items = append(items, StateItem{
			UserID:   p.UserID,
			UserInfo: p.UserInfo,
			JoinedAt: p.JoinedAt.Unix(),
		})
	}
	return items
}

// CloseAll закрывает транспорт каждого участника; используется при shutdown.
// Уборку (Remove, attendance, user_left) делают сами сессии.
func (r *Registry) CloseAll() {
	r.mu.RLock()
	rooms := make([]*room, 0, len(r.rooms))
	for _, rm := range r.rooms {
		rooms = append(rooms, rm)
	}
	r.mu.RUnlock()

	for _, rm := range rooms {
		rm.mu.Lock()
		for _, p := range rm.participants {
			_ = p.Conn.Close()
		}
		rm.mu.Unlock()
	}
}

// Stats — счётчики для healthz.
func (r *Registry) Stats() (rooms, participants int) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	rooms = len(r.rooms)
	for _, rm := range r.rooms {
		rm.mu.Lock()
		participants += len(rm.participants)
		rm.mu.Unlock()
	}
	return rooms, participants
}
