package ws

import (
	"sync"

	"github.com/avvvet/score-services/internal/comm"
	"github.com/avvvet/score-services/internal/scoresvc/dispatch"
	"github.com/avvvet/score-services/internal/scoresvc/state"
	"github.com/gorilla/websocket"
	log "github.com/sirupsen/logrus"
)

// Ws ties the transport to the state layer: it tracks raw socket
// connections by connection id and drains each session's outbound queue
// onto its socket.
type Ws struct {
	connMap    sync.Map // connID -> *websocket.Conn
	reg        *state.Registry
	dispatcher *dispatch.Dispatcher
}

func NewWs() *Ws {
	reg := state.NewRegistry()
	return &Ws{
		reg:        reg,
		dispatcher: dispatch.NewDispatcher(reg),
	}
}

func (s *Ws) Registry() *state.Registry {
	return s.reg
}

// HandleConnect registers the session and starts its writer.
func (s *Ws) HandleConnect(connID string, conn *websocket.Conn) {
	s.connMap.Store(connID, conn)
	sess := s.reg.InitSession(connID)
	go s.writePump(connID, conn, sess.Queue())
}

// writePump drains the session's queue in push order. One writer per
// session keeps frames to the same destination ordered.
func (s *Ws) writePump(connID string, conn *websocket.Conn, q *state.OutQueue) {
	for {
		frame, ok := q.Pop()
		if !ok {
			return
		}
		if err := conn.WriteMessage(websocket.TextMessage, frame); err != nil {
			log.Errorf("Error writing to socket %s: %s", connID, err)
			return
		}
	}
}

// HandleDisconnect tears the session down with the full leave cascade.
func (s *Ws) HandleDisconnect(connID string) {
	s.connMap.Delete(connID)
	s.reg.CleanupSession(connID)
}

// SocketMessage handles one decoded envelope from a web client. Command and
// delivery failures both come back to the sender as error events.
func (s *Ws) SocketMessage(connID string, message *comm.WSMessage) {
	delivErrs, err := s.dispatcher.Dispatch(connID, message)
	if err != nil {
		log.Errorf("Error handling %s from socket %s: %s", message.Type, connID, err)
		s.SendError(connID, err)
		return
	}
	for _, derr := range delivErrs {
		log.Errorf("Error delivering %s from socket %s: %s", message.Type, connID, derr)
		s.SendError(connID, derr)
	}
}

// SendError pushes one error event onto the sender's queue.
func (s *Ws) SendError(connID string, err error) {
	frame, encErr := comm.Encode(comm.EvtError, comm.Error{
		Description:   err.Error(),
		DisplayToUser: state.DisplayToUser(err),
	})
	if encErr != nil {
		log.Errorf("Error encoding error event for socket %s: %s", connID, encErr)
		return
	}
	if sendErr := s.reg.SendToConn(connID, frame); sendErr != nil {
		log.Errorf("Error sending error event to socket %s: %s", connID, sendErr)
	}
}

func (s *Ws) GetConnection(connID string) (*websocket.Conn, bool) {
	conn, ok := s.connMap.Load(connID)
	if !ok {
		return nil, false
	}
	return conn.(*websocket.Conn), true
}
