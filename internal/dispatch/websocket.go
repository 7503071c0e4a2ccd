package dispatch

import (
	"context"
	"fmt"
	"net"
	"net/http"

	"github.com/gorilla/websocket"

	"github.com/scttfrdmn/agenkit-sub000/internal/transport"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// startWebSocket serves the §4.D surface: every binary message on the
// single endpoint carries one framed envelope, matching
// local_agent.py's _handle_websocket_client.
func (l *LocalAgent) startWebSocket(addr string) error {
	mux := http.NewServeMux()
	mux.HandleFunc("/", l.handleWebSocketUpgrade)

	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("dispatch: listen %s: %w", addr, err)
	}
	srv := &http.Server{Handler: mux}
	l.httpServer = srv
	l.wg.Add(1)
	go func() {
		defer l.wg.Done()
		_ = srv.Serve(ln)
	}()
	return nil
}

func (l *LocalAgent) handleWebSocketUpgrade(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	conn.SetReadLimit(transport.MaxMessageSize)
	l.wg.Add(1)
	go l.handleWebSocketConn(conn)
}

func (l *LocalAgent) handleWebSocketConn(conn *websocket.Conn) {
	defer l.wg.Done()
	defer conn.Close()

	for {
		if l.stopped() {
			return
		}
		_, data, err := conn.ReadMessage()
		if err != nil {
			return
		}

		respBytes, done := l.handleFrame(context.Background(), data, func(b []byte) error {
			return conn.WriteMessage(websocket.BinaryMessage, b)
		})
		if done {
			return
		}
		if respBytes != nil {
			if err := conn.WriteMessage(websocket.BinaryMessage, respBytes); err != nil {
				return
			}
		}
	}
}
