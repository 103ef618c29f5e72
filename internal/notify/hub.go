package notify

import (
	"context"
	"net/http"
	"sync"
	"time"

	"SpyCanvas/internal/interfaces"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
)

const (
	sendBuffer     = 16
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = pongWait * 9 / 10
	maxMessageSize = 512
)

// Hub 进程内 websocket 推送：客户端按主题订阅，投递不阻塞，缓冲满即丢弃（客户端会重新拉取）
type Hub struct {
	mu       sync.RWMutex
	topics   map[string]map[*client]struct{}
	upgrader websocket.Upgrader
	logger   *logrus.Logger
}

type client struct {
	conn   *websocket.Conn
	send   chan interfaces.Notification
	topics []string
}

// NewHub 创建推送中心
func NewHub(logger *logrus.Logger) *Hub {
	return &Hub{
		topics: make(map[string]map[*client]struct{}),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
		logger: logger,
	}
}

// Publish 实现 interfaces.Publisher
func (h *Hub) Publish(_ context.Context, topic string, n interfaces.Notification) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for c := range h.topics[topic] {
		select {
		case c.send <- n:
		default:
			h.logger.WithField("topic", topic).Debug("推送缓冲已满，丢弃通知")
		}
	}
}

// Subscribers 某主题当前订阅数
func (h *Hub) Subscribers(topic string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.topics[topic])
}

// Serve 升级连接并订阅 topics，阻塞到连接断开
func (h *Hub) Serve(w http.ResponseWriter, r *http.Request, topics []string) error {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return err
	}
	c := &client{
		conn:   conn,
		send:   make(chan interfaces.Notification, sendBuffer),
		topics: topics,
	}
	h.register(c)

	go c.writePump()
	c.readPump()
	h.unregister(c)
	return nil
}

// Close 断开全部连接
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	seen := make(map[*client]struct{})
	for topic, clients := range h.topics {
		for c := range clients {
			if _, ok := seen[c]; !ok {
				seen[c] = struct{}{}
				close(c.send)
			}
		}
		delete(h.topics, topic)
	}
}

func (h *Hub) register(c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, t := range c.topics {
		if h.topics[t] == nil {
			h.topics[t] = make(map[*client]struct{})
		}
		h.topics[t][c] = struct{}{}
	}
}

func (h *Hub) unregister(c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	registered := false
	for _, t := range c.topics {
		if _, ok := h.topics[t][c]; ok {
			registered = true
			delete(h.topics[t], c)
			if len(h.topics[t]) == 0 {
				delete(h.topics, t)
			}
		}
	}
	// Close 已经关闭过 send
	if registered {
		close(c.send)
	}
}

// readPump 只处理控制帧，客户端发来的数据忽略
func (c *client) readPump() {
	defer func() {
		_ = c.conn.Close()
	}()
	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (c *client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteJSON(msg); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
