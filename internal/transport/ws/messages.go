package ws

import "encoding/json"

// Теги сообщений. Клиент шлёт join/offer/answer/candidate/chat/hand_raise,
// сервер — state/user_joined/user_left плюс ретрансляцию сигналинга.
const (
	TypeJoin      = "join"
	TypeOffer     = "offer"
	TypeAnswer    = "answer"
	TypeCandidate = "candidate"
	TypeChat      = "chat"
	TypeHandRaise = "hand_raise"

	TypeState      = "state"       // снапшот участников для нового подключения
	TypeUserJoined = "user_joined" // участник вошёл
	TypeUserLeft   = "user_left"   // участник вышел
)

// Envelope — плоский tagged-JSON конверт. Payload и UserInfo не
// интерпретируются сервером (opaque-блобы для WebRTC-сигналинга и UI).
type Envelope struct {
	Type         string          `json:"type"`
	UserID       int64           `json:"user_id,omitempty"`
	From         int64           `json:"from,omitempty"` // проставляется сервером при ретрансляции
	TargetUserID int64           `json:"target_user_id,omitempty"`
	UserInfo     json.RawMessage `json:"user_info,omitempty"`
	Payload      json.RawMessage `json:"payload,omitempty"`

	Participants []StateItem `json:"participants,omitempty"` // только для state
}

type StateItem struct {
	UserID   int64           `json:"user_id"`
	UserInfo json.RawMessage `json:"user_info,omitempty"`
	JoinedAt int64           `json:"joined_at_unix"`
}
