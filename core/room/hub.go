package room

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"DuetFM/logger"

	"github.com/gorilla/websocket"
)

// Client WebSocket 客户端连接
// 一条连接最多绑定一个 (room, username)，这个绑定是断线路由回
// 正确房间的唯一依据
type Client struct {
	Hub  *Hub
	Conn *websocket.Conn
	Send chan []byte

	mu       sync.RWMutex
	room     string
	username string

	closed atomic.Bool
}

// Hub 连接管理中心
// 持有房间到连接集合的映射，负责消息投递；房间的逻辑状态归 Registry 管
type Hub struct {
	// 房间 -> 客户端集合
	rooms map[string]map[*Client]bool

	// 绑定键 -> 客户端（一个用户在一个房间只能有一个连接）
	userClients map[string]*Client // key: room:username

	// 已绑定的全部客户端，曲库事件全局投递用
	clients map[*Client]bool

	register   chan *registration
	unregister chan *Client
	broadcast  chan *broadcastMessage

	mu   sync.RWMutex
	done chan struct{}

	// 连接断开时的回调（隐式 leave），由分发器注入
	onDisconnect func(*Client)
}

// broadcastMessage 广播任务
// targetUser 非空时只投递给该用户的连接，和房间广播共用同一条
// 队列，因此定向消息和广播之间保持入队顺序
type broadcastMessage struct {
	room        string // 为空表示全局
	message     []byte
	excludeUser string
	targetUser  string
}

// registration 带完成信号的注册请求
// Register 返回时客户端一定已在投递名单里，加入快照之后的
// 房间广播不会漏掉新成员
type registration struct {
	client *Client
	done   chan struct{}
}

// NewHub 创建连接管理中心
func NewHub() *Hub {
	return &Hub{
		rooms:       make(map[string]map[*Client]bool),
		userClients: make(map[string]*Client),
		clients:     make(map[*Client]bool),
		register:    make(chan *registration),
		unregister:  make(chan *Client),
		broadcast:   make(chan *broadcastMessage, 256),
		done:        make(chan struct{}),
	}
}

// SetOnDisconnect 注入断线回调
func (h *Hub) SetOnDisconnect(fn func(*Client)) {
	h.onDisconnect = fn
}

// Run 启动 Hub 主循环
func (h *Hub) Run() {
	for {
		select {
		case reg := <-h.register:
			h.registerClient(reg.client)
			close(reg.done)

		case client := <-h.unregister:
			h.removeClient(client)

		case msg := <-h.broadcast:
			h.deliver(msg)

		case <-h.done:
			h.cleanup()
			return
		}
	}
}

// Stop 停止 Hub
func (h *Hub) Stop() {
	close(h.done)
}

// registerClient 注册已绑定的客户端
func (h *Hub) registerClient(client *Client) {
	room, username := client.Binding()
	key := bindingKey(room, username)

	// 先写入新连接再踢旧连接：旧连接的断线回调查到的永远是
	// 新连接，不会误判成真正的离开
	h.mu.Lock()
	old := h.userClients[key]
	if h.rooms[room] == nil {
		h.rooms[room] = make(map[*Client]bool)
	}
	h.rooms[room][client] = true
	h.userClients[key] = client
	h.clients[client] = true
	h.mu.Unlock()

	if old != nil && old != client {
		h.removeClient(old)
	}

	logger.Info("client registered",
		logger.String("room", room),
		logger.String("username", username))
}

// removeClient 移除客户端并触发断线回调
func (h *Hub) removeClient(client *Client) {
	room, username := client.Binding()
	key := bindingKey(room, username)

	h.mu.Lock()
	_, present := h.clients[client]
	if present {
		delete(h.clients, client)
		if clients, ok := h.rooms[room]; ok {
			delete(clients, client)
			if len(clients) == 0 {
				delete(h.rooms, room)
			}
		}
		if h.userClients[key] == client {
			delete(h.userClients, key)
		}
		close(client.Send)
	}
	h.mu.Unlock()

	if !present {
		return
	}
	client.closed.Store(true)

	// 回调里会经由 Registry 再次广播（memberLeft），不能阻塞主循环
	if h.onDisconnect != nil {
		go h.onDisconnect(client)
	}

	logger.Info("client unregistered",
		logger.String("room", room),
		logger.String("username", username))
}

// deliver 投递一条广播
func (h *Hub) deliver(msg *broadcastMessage) {
	if msg.message == nil {
		return
	}

	h.mu.RLock()
	var targets []*Client
	if msg.targetUser != "" {
		if client := h.userClients[bindingKey(msg.room, msg.targetUser)]; client != nil {
			targets = []*Client{client}
		}
	} else if msg.room == "" {
		targets = make([]*Client, 0, len(h.clients))
		for client := range h.clients {
			targets = append(targets, client)
		}
	} else {
		clients := h.rooms[msg.room]
		targets = make([]*Client, 0, len(clients))
		for client := range clients {
			targets = append(targets, client)
		}
	}
	h.mu.RUnlock()

	var evicted []*Client
	for _, client := range targets {
		if msg.excludeUser != "" {
			if _, username := client.Binding(); username == msg.excludeUser {
				continue
			}
		}

		select {
		case client.Send <- msg.message:
		default:
			// 发送缓冲区满视为传输故障，该客户端按隐式断线处理
			evicted = append(evicted, client)
		}
	}

	for _, client := range evicted {
		h.removeClient(client)
	}
}

// cleanup 清理所有连接
func (h *Hub) cleanup() {
	h.mu.Lock()
	defer h.mu.Unlock()

	for client := range h.clients {
		close(client.Send)
	}
	h.rooms = make(map[string]map[*Client]bool)
	h.userClients = make(map[string]*Client)
	h.clients = make(map[*Client]bool)
}

func bindingKey(room, username string) string {
	return fmt.Sprintf("%s:%s", room, username)
}

// Register 注册客户端（绑定之后调用），注册完成后才返回
func (h *Hub) Register(client *Client) {
	done := make(chan struct{})
	h.register <- &registration{client: client, done: done}
	<-done
}

// Unregister 注销客户端
func (h *Hub) Unregister(client *Client) {
	h.unregister <- client
}

// ToRoom 实现 Broadcaster：房间内投递
// 同一房间的广播按入队顺序投递给每个成员，跨房间不保序
func (h *Hub) ToRoom(room string, message []byte, excludeUser string) {
	h.broadcast <- &broadcastMessage{room: room, message: message, excludeUser: excludeUser}
}

// ToAll 实现 Broadcaster：全局投递
func (h *Hub) ToAll(message []byte) {
	h.broadcast <- &broadcastMessage{message: message}
}

// ToUser 实现 Broadcaster：定向投递给房间内的某个用户
// 经过同一条广播队列，和前后广播保持顺序
func (h *Hub) ToUser(room, username string, message []byte) {
	h.broadcast <- &broadcastMessage{room: room, message: message, targetUser: username}
}

// GetClient 获取指定绑定的客户端
func (h *Hub) GetClient(room, username string) *Client {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.userClients[bindingKey(room, username)]
}

// ClientCount 当前连接数
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// ========== Client 方法 ==========

// NewClient 创建客户端
func NewClient(hub *Hub, conn *websocket.Conn) *Client {
	return &Client{
		Hub:  hub,
		Conn: conn,
		Send: make(chan []byte, 256),
	}
}

// Bind 绑定客户端到 (room, username)
func (c *Client) Bind(room, username string) {
	c.mu.Lock()
	c.room = room
	c.username = username
	c.mu.Unlock()
}

// Binding 读取绑定（线程安全）
func (c *Client) Binding() (room, username string) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.room, c.username
}

// IsClosed 连接是否已按断线处理
func (c *Client) IsClosed() bool {
	return c.closed.Load()
}

// SendMessage 发送消息给客户端
func (c *Client) SendMessage(msg *WSMessage) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return err
	}

	select {
	case c.Send <- data:
		return nil
	default:
		return fmt.Errorf("send buffer full")
	}
}

// ReadPump 读取消息循环
// 退出即视为断线：先标记 closed 再注销，保证该连接排队中的
// 动作不会在断线处理之后再被应用
func (c *Client) ReadPump(ctx context.Context, handler func(ctx context.Context, client *Client, msg *WSMessage)) {
	defer func() {
		c.closed.Store(true)
		c.Hub.Unregister(c)
		c.Conn.Close()
	}()

	c.Conn.SetReadLimit(4096) // 4KB
	c.Conn.SetReadDeadline(time.Now().Add(60 * time.Second))
	c.Conn.SetPongHandler(func(string) error {
		c.Conn.SetReadDeadline(time.Now().Add(60 * time.Second))
		return nil
	})

	for {
		select {
		case <-ctx.Done():
			return
		default:
			_, message, err := c.Conn.ReadMessage()
			if err != nil {
				if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
					room, username := c.Binding()
					logger.Warn("websocket read error",
						logger.ErrorField(err),
						logger.String("room", room),
						logger.String("username", username))
				}
				return
			}

			var msg WSMessage
			if err := json.Unmarshal(message, &msg); err != nil {
				logger.Warn("invalid message format", logger.ErrorField(err))
				continue
			}

			if msg.Type == MsgTypePing {
				pong := &WSMessage{Type: MsgTypePong, Timestamp: time.Now().UnixMilli()}
				if data, err := json.Marshal(pong); err == nil {
					select {
					case c.Send <- data:
					default:
					}
				}
				continue
			}

			handler(ctx, c, &msg)
		}
	}
}

// WritePump 写入消息循环
func (c *Client) WritePump() {
	ticker := time.NewTicker(30 * time.Second)
	defer func() {
		ticker.Stop()
		c.Conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.Send:
			c.Conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if !ok {
				// Hub 关闭了通道
				c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			if err := c.Conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}

		case <-ticker.C:
			c.Conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
