package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"os"

	"github.com/avvvet/score-services/internal/comm"
	"github.com/avvvet/score-services/internal/scoresvc/state"
	"github.com/avvvet/score-services/internal/scoresvc/ws"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	log "github.com/sirupsen/logrus"
)

type Handler struct {
	upgrader websocket.Upgrader
	ws       *ws.Ws
}

type Response struct {
	Message string      `json:"message"`
	Code    int         `json:"code"`
	Data    interface{} `json:"data"`
	Error   string      `json:"error"`
}

func NewHandler(s *ws.Ws) *Handler {
	h := &Handler{
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
		ws: s,
	}
	return h
}

// HandleWebSocket upgrades the request and hands the connection its own
// reader goroutine.
func (h *Handler) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// the upgrader has already written its own error response
		log.Errorf("Failed to upgrade to WebSocket: %v", err)
		return
	}

	connID := uuid.New().String()
	h.ws.HandleConnect(connID, conn)

	log.Infof("New WebSocket connection established: %s", connID)

	go h.handleConnection(conn, connID)
}

func (h *Handler) handleConnection(conn *websocket.Conn, connID string) {
	// cleanup runs the full leave cascade for the session
	defer func() {
		log.Infof("Closing WebSocket connection: %s", connID)
		conn.Close()
		h.ws.HandleDisconnect(connID)
	}()

	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Errorf("WebSocket unexpected close error for socket %s: %v", connID, err)
			} else {
				log.Infof("WebSocket connection closed normally for socket: %s", connID)
			}
			break
		}

		message := &comm.WSMessage{}
		if err := json.Unmarshal(raw, &message); err != nil {
			log.Errorf("Failed to unmarshal message from socket %s: %v", connID, err)
			// a malformed frame aborts only itself, not the connection
			h.ws.SendError(connID, fmt.Errorf("%w: %s", state.ErrBadPayload, err))
			continue
		}

		log.Debugf("Received message from socket %s: type=%s", connID, message.Type)

		h.ws.SocketMessage(connID, message)
	}
}

func (h *Handler) CreateResponse(w http.ResponseWriter, rsp Response) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(rsp.Code)
	if err := json.NewEncoder(w).Encode(rsp); err != nil {
		log.Errorf("Failed to encode response: %v", err)
	}
}

func (h *Handler) HealthHandler(w http.ResponseWriter, r *http.Request) {
	rsp := Response{
		Message: "score service is running at port " + os.Getenv("SERVICE_PORT"),
		Code:    200,
		Data:    nil,
	}
	if err := json.NewEncoder(w).Encode(rsp); err != nil {
		log.Errorf("Failed to encode health response: %v", err)
	}
}
