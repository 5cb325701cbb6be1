package live

import (
	"log"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"

	"github.com/markdave123/contexta/backend/internal/service/reply"
)

// Handler WebSocket聊天处理器: one socket carries many request/response
// cycles for the same client.
type Handler struct {
	pipeline *reply.Pipeline
	upgrader websocket.Upgrader
}

// New 创建WebSocket处理器
func New(pipeline *reply.Pipeline) *Handler {
	return &Handler{
		pipeline: pipeline,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
	}
}

// RegisterRoutes 注册WebSocket路由
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/live", h.handleSocket)
}

type inboundFrame struct {
	SessionID string  `json:"sessionId"`
	UserID    *string `json:"userId,omitempty"`
	Message   string  `json:"message"`
}

type outboundFrame struct {
	SessionID string    `json:"sessionId"`
	Run       reply.Run `json:"run"`
	Error     string    `json:"error,omitempty"`
}

func (h *Handler) handleSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("[live] upgrade failed: %v", err)
		return
	}
	defer conn.Close()

	ctx := r.Context()
	for {
		var frame inboundFrame
		if err := conn.ReadJSON(&frame); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Printf("[live] read failed: %v", err)
			}
			return
		}

		if frame.SessionID == "" || frame.Message == "" {
			if err := conn.WriteJSON(outboundFrame{Error: "sessionId and message are required"}); err != nil {
				return
			}
			continue
		}

		run, err := h.pipeline.Handle(ctx, frame.SessionID, frame.UserID, frame.Message)
		out := outboundFrame{SessionID: frame.SessionID, Run: run}
		if err != nil {
			out.Error = err.Error()
		}
		if err := conn.WriteJSON(out); err != nil {
			log.Printf("[live] write failed: %v", err)
			return
		}
	}
}
