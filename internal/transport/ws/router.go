package ws

import (
	"errors"
	"log/slog"
	"sync/atomic"
)

// ErrDuplicateJoin — повторный join в уже активной сессии; фатален для этой
// сессии (нарушение протокола), но не для комнаты.
var ErrDuplicateJoin = errors.New("duplicate join on active session")

// Router — чистая диспетчеризация: тег сообщения -> действие над реестром.
// Собственного состояния, кроме диагностического счётчика, не имеет.
type Router struct {
	registry *Registry
	unknown  atomic.Int64
}

func NewRouter(registry *Registry) *Router {
	return &Router{registry: registry}
}

// Dispatch обрабатывает одно входящее сообщение активной сессии. Сообщения
// одного соединения диспетчеризуются строго по порядку прибытия (вызывается
// из единственного read-цикла сессии).
func (r *Router) Dispatch(sender *Participant, msg Envelope) error {
	switch msg.Type {
	case TypeOffer, TypeAnswer, TypeCandidate:
		// unicast строго внутри комнаты отправителя; target вне её
		// недостижим по построению
		if msg.TargetUserID <= 0 {
			slog.Debug("signaling message without target, dropped",
				"classroom", sender.ClassroomID, "from", sender.UserID, "type", msg.Type)
			return nil
		}
		msg.From = sender.UserID
		if !r.registry.SendTo(sender.ClassroomID, msg.TargetUserID, msg) {
			// адресат успел выйти — молча отбрасываем
			slog.Debug("signaling target absent",
				"classroom", sender.ClassroomID, "from", sender.UserID,
				"target", msg.TargetUserID, "type", msg.Type)
		}
		return nil

	case TypeChat, TypeHandRaise:
		msg.From = sender.UserID
		r.registry.BroadcastExcept(sender.ClassroomID, msg, 0)
		return nil

	case TypeJoin:
		return ErrDuplicateJoin

	default:
		// неизвестные теги не фатальны: задел на новые типы сообщений
		r.unknown.Add(1)
		slog.Debug("unknown message tag dropped",
			"classroom", sender.ClassroomID, "from", sender.UserID, "type", msg.Type)
		return nil
	}
}

// UnknownMessages — счётчик отброшенных неизвестных тегов (для healthz).
func (r *Router) UnknownMessages() int64 {
	return r.unknown.Load()
}
