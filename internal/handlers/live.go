package handlers

import (
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// Frame types exchanged on live streams
const (
	frameNotifications = "notifications"
	frameMessages      = "messages"
	frameError         = "error"
	frameSignedOut     = "signed_out"
	frameRetry         = "retry"
)

type liveFrame struct {
	Type  string      `json:"type"`
	Data  interface{} `json:"data"`
	Error string      `json:"error,omitempty"`
	Retry bool        `json:"retry,omitempty"`
}

// liveConn serializes writes; gorilla allows one concurrent writer
type liveConn struct {
	conn *websocket.Conn
	mu   sync.Mutex
}

func newLiveConn(conn *websocket.Conn) *liveConn {
	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	return &liveConn{conn: conn}
}

func (l *liveConn) send(frame liveFrame) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return l.conn.WriteJSON(frame)
}

func (l *liveConn) ping() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait))
}

func (l *liveConn) close(reason string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, reason)
	l.conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(writeWait))
	l.conn.Close()
}

// readFrames delivers client frames until the peer goes away or sends
// something that is not a frame, then closes the channel. done stops it when
// the consumer leaves first.
func (l *liveConn) readFrames(done <-chan struct{}) <-chan liveFrame {
	frames := make(chan liveFrame)
	go func() {
		defer close(frames)
		for {
			var f liveFrame
			if err := l.conn.ReadJSON(&f); err != nil {
				return
			}
			select {
			case frames <- f:
			case <-done:
				return
			}
		}
	}()
	return frames
}
