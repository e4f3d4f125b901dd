package ws

import (
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// Код закрытия при нарушении протокола (не-join первым сообщением,
// битый JSON, повторный join в активной сессии).
const closeCodeProtocolViolation = 4003

const (
	defaultWriteTimeout = 5 * time.Second
	maxMessageSize      = 1 << 20
)

// Conn — транспортный хендл участника, каким его видит реестр.
type Conn interface {
	Send(msg Envelope) error
	Close() error
}

type wsConn struct {
	conn         *websocket.Conn
	writeTimeout time.Duration
	sendMu       chan struct{}

	closeOnce sync.Once
	closed    chan struct{}
}

func newWsConn(c *websocket.Conn, writeTimeout time.Duration) *wsConn {
	if writeTimeout <= 0 {
		writeTimeout = defaultWriteTimeout
	}
	return &wsConn{
		conn:         c,
		writeTimeout: writeTimeout,
		sendMu:       make(chan struct{}, 1),
		closed:       make(chan struct{}),
	}
}

func (c *wsConn) Send(msg Envelope) error {
	c.sendMu <- struct{}{}
	defer func() { <-c.sendMu }()
	_ = c.conn.SetWriteDeadline(time.Now().Add(c.writeTimeout))

	return c.conn.WriteJSON(msg)
}

func (c *wsConn) ping() error {
	return c.conn.WriteControl(websocket.PingMessage, nil,
		time.Now().Add(c.writeTimeout))
}

// closeWith шлёт close-фрейм с кодом и закрывает транспорт.
func (c *wsConn) closeWith(code int, reason string) {
	c.sendMu <- struct{}{}
	_ = c.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(code, reason),
		time.Now().Add(c.writeTimeout))
	<-c.sendMu

	_ = c.Close()
}

func (c *wsConn) Close() error {
	c.closeOnce.Do(func() { close(c.closed) })

	return c.conn.Close()
}
