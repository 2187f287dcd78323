package providers

import (
	"time"

	"github.com/fasthttp/websocket"
)

// fasthttpConn wraps fasthttp/websocket.Conn to satisfy types.Conn.
type fasthttpConn struct {
	conn         *websocket.Conn
	writeTimeout time.Duration
	pongWait     time.Duration
}

func newFasthttpConn(conn *websocket.Conn, maxFrame int64, pingInterval, writeTimeout time.Duration) *fasthttpConn {
	f := &fasthttpConn{
		conn:         conn,
		writeTimeout: writeTimeout,
		pongWait:     pingInterval * 2,
	}
	if maxFrame > 0 {
		conn.SetReadLimit(maxFrame)
	}
	if f.pongWait > 0 {
		conn.SetReadDeadline(time.Now().Add(f.pongWait))
		conn.SetPongHandler(func(string) error {
			return conn.SetReadDeadline(time.Now().Add(f.pongWait))
		})
	}
	return f
}

func (f *fasthttpConn) ReadMessage() ([]byte, error) {
	_, data, err := f.conn.ReadMessage()
	if err == nil && f.pongWait > 0 {
		f.conn.SetReadDeadline(time.Now().Add(f.pongWait))
	}
	return data, err
}

func (f *fasthttpConn) WriteJSON(v any) error {
	if f.writeTimeout > 0 {
		f.conn.SetWriteDeadline(time.Now().Add(f.writeTimeout))
	}
	return f.conn.WriteJSON(v)
}

func (f *fasthttpConn) Ping() error {
	var deadline time.Time
	if f.writeTimeout > 0 {
		deadline = time.Now().Add(f.writeTimeout)
	}
	return f.conn.WriteControl(websocket.PingMessage, nil, deadline)
}

func (f *fasthttpConn) Close() error { return f.conn.Close() }
