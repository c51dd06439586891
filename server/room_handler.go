package server

import (
	"context"
	"encoding/json"
	"net/http"

	"DuetFM/core/room"
	"DuetFM/logger"
	"DuetFM/model"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
)

// RoomHandler 房间相关的HTTP入口：WebSocket升级和历史查询
type RoomHandler struct {
	hub        *room.Hub
	registry   *room.Registry
	dispatcher *room.Dispatcher
	upgrader   websocket.Upgrader
}

// NewRoomHandler 创建房间处理器
func NewRoomHandler(hub *room.Hub, registry *room.Registry, dispatcher *room.Dispatcher) *RoomHandler {
	return &RoomHandler{
		hub:        hub,
		registry:   registry,
		dispatcher: dispatcher,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
}

// ServeWS 升级WebSocket连接
// 连接建立后第一条消息应当是 join，加入前的其他动作都会被忽略
func (h *RoomHandler) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Error("failed to upgrade WebSocket", logger.ErrorField(err))
		return
	}

	client := room.NewClient(h.hub, conn)

	// 连接的生命周期独立于这次HTTP请求
	go client.WritePump()
	go client.ReadPump(context.Background(), h.dispatcher.HandleMessage)
}

// RoomMessagesResponse 聊天历史响应
type RoomMessagesResponse struct {
	Room     string              `json:"room"`
	Messages []model.ChatMessage `json:"messages"`
}

// GetRoomMessagesHandler 返回房间的有界聊天历史（最旧在前）
func (h *RoomHandler) GetRoomMessagesHandler(w http.ResponseWriter, r *http.Request) {
	roomName := mux.Vars(r)["room"]

	history, ok := h.registry.History(roomName)
	if !ok {
		http.Error(w, "room not found", http.StatusNotFound)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(&RoomMessagesResponse{
		Room:     roomName,
		Messages: history,
	})
}
