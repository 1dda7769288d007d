// Package handler 包含了处理 HTTP 请求的控制器逻辑。
package handler

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"maum-talk-go/internal/model"
	"maum-talk-go/internal/service"
	"maum-talk-go/pkg/log"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // 允许所有来源
	},
}

// ChatHandler 负责处理 WebSocket 聊天连接。
type ChatHandler struct {
	chatService    service.ChatService
	sessionService service.SessionService
	historyService service.HistoryService
}

// NewChatHandler 创建一个新的 ChatHandler。
func NewChatHandler(chatService service.ChatService, sessionService service.SessionService, historyService service.HistoryService) *ChatHandler {
	return &ChatHandler{
		chatService:    chatService,
		sessionService: sessionService,
		historyService: historyService,
	}
}

// chunkWriter 把流式分块包装为 JSON 帧后写入 WebSocket 连接。
type chunkWriter struct {
	conn *websocket.Conn
}

// WriteMessage 满足 llm.MessageWriter 接口。
func (w *chunkWriter) WriteMessage(messageType int, data []byte) error {
	frame := map[string]interface{}{
		"type":    "chunk",
		"content": string(data),
	}
	b, _ := json.Marshal(frame)
	return w.conn.WriteMessage(messageType, b)
}

// sendCompletion 在一轮回复结束后发送完成通知帧。
func sendCompletion(conn *websocket.Conn) {
	resp := map[string]interface{}{
		"type":      "completion",
		"status":    "finished",
		"timestamp": time.Now().UnixMilli(),
		"date":      time.Now().Format("2006-01-02T15:04:05"),
	}
	b, _ := json.Marshal(resp)
	if err := conn.WriteMessage(websocket.TextMessage, b); err != nil {
		log.Warnf("发送完成通知失败: %v", err)
	}
}

// Handle 处理一个传入的 WebSocket 连接。
// 路径参数中的会话令牌解析出参与者与会话后，整条连接复用同一份内存中的历史副本。
func (h *ChatHandler) Handle(c *gin.Context) {
	tokenString := c.Param("token")
	resolved, err := h.sessionService.Resolve(tokenString)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"code": http.StatusUnauthorized, "message": "无效的会话令牌", "data": nil})
		return
	}
	participant := resolved.Participant
	session := resolved.Session

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Error("WebSocket 升级失败", err)
		return
	}
	defer conn.Close()

	log.Infof("WebSocket 连接已建立，参与者: %s, 会话: %s", participant.UserID, session.SessionID)

	ctx := c.Request.Context()
	writer := &chunkWriter{conn: conn}

	// 加载历史快照，本连接内维护内存副本
	stored, err := h.historyService.Load(session.SessionID)
	if err != nil {
		log.Error("加载会话历史失败", err)
		_ = conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"error","message":"대화 기록을 불러오지 못했습니다."}`))
		return
	}
	history := make([]model.ChatMessage, 0, len(stored))
	for _, m := range stored {
		history = append(history, model.ChatMessage{Role: m.Role, Content: m.Content})
	}

	chain := h.chatService.Configure(ctx, participant.Name)

	// 新会话首先下发问候语，问候语同样计入历史
	if len(history) == 0 {
		if err := writer.WriteMessage(websocket.TextMessage, []byte(chain.Greeting)); err != nil {
			log.Warnf("下发问候语失败: %v", err)
			return
		}
		sendCompletion(conn)
		if _, err := h.historyService.Append(session.SessionID, model.RoleAssistant, chain.Greeting, nil); err != nil {
			log.Error("持久化问候语失败", err)
		}
		history = append(history, model.ChatMessage{Role: model.RoleAssistant, Content: chain.Greeting})
	}

	// 双向响应时间：参与者侧从上一条回复结束计时，模型侧从收到输入计时
	lastTurnEnded := time.Now()

	for {
		_, message, err := conn.ReadMessage()
		if err != nil {
			log.Warnf("从 WebSocket 读取消息失败: %v", err)
			break
		}
		input := string(message)
		if input == "" {
			continue
		}

		userElapsed := time.Since(lastTurnEnded).Seconds()
		if _, err := h.historyService.Append(session.SessionID, model.RoleUser, input, &userElapsed); err != nil {
			log.Error("持久化参与者消息失败", err)
		}

		// 管理端编辑过配置时惰性重建对话链
		if h.chatService.Stale(ctx, chain) {
			log.Infof("检测到配置更新，重建会话 %s 的对话链", session.SessionID)
			chain = h.chatService.Configure(ctx, participant.Name)
		}

		started := time.Now()
		answer := h.chatService.Invoke(ctx, chain, history, input, writer)
		assistantElapsed := time.Since(started).Seconds()
		sendCompletion(conn)

		if _, err := h.historyService.Append(session.SessionID, model.RoleAssistant, answer, &assistantElapsed); err != nil {
			log.Error("持久化回复消息失败", err)
		}

		history = append(history,
			model.ChatMessage{Role: model.RoleUser, Content: input},
			model.ChatMessage{Role: model.RoleAssistant, Content: answer},
		)
		lastTurnEnded = time.Now()
	}
}
