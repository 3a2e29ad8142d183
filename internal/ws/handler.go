package ws

import (
	"net/http"
	"time"

	"github.com/bytedance/sonic"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	writeWait    = 10 * time.Second
	pongWait     = 60 * time.Second
	pingPeriod   = (pongWait * 9) / 10
	maxFrameSize = 4096
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
	CheckOrigin: func(r *http.Request) bool {
		return true // read-only feed, same policy as CORS
	},
}

// Message is a client request or a server control reply. Results are sent
// as bare JSON objects.
type Message struct {
	Type    string `json:"type"`
	Message string `json:"message,omitempty"`
	Time    int64  `json:"timestamp,omitempty"`
}

// HandleConnection upgrades the request and streams results until the
// client leaves or the hub closes.
func (h *Hub) HandleConnection(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", zap.Error(err))
		return
	}
	defer conn.Close()

	cl, ok := h.register()
	if !ok {
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, "shutting down"),
			time.Now().Add(writeWait))
		return
	}
	defer h.unregister(cl)

	h.logger.Debug("websocket client connected", zap.String("remote", c.ClientIP()))
	cl.control <- encode(Message{Type: "system", Message: "connected", Time: time.Now().Unix()})

	go h.read(conn, cl)
	h.write(conn, cl)
}

// read handles pings from the client. Any read error ends the session.
func (h *Hub) read(conn *websocket.Conn, cl *client) {
	defer cl.stop()

	conn.SetReadLimit(maxFrameSize)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.logger.Debug("websocket read error", zap.Error(err))
			}
			return
		}

		var msg Message
		reply := Message{Type: "pong", Time: time.Now().Unix()}
		if err := sonic.Unmarshal(data, &msg); err != nil || msg.Type != "ping" {
			reply = Message{Type: "error", Message: "unknown message type"}
		}
		select {
		case cl.control <- encode(reply):
		default:
		}
	}
}

func (h *Hub) write(conn *websocket.Conn, cl *client) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case msg, ok := <-cl.send:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = conn.WriteMessage(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseGoingAway, "shutting down"))
				return
			}
			if err := conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		case msg := <-cl.control:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-cl.done:
			return
		}
	}
}

func encode(msg Message) []byte {
	data, _ := sonic.Marshal(msg)
	return data
}
