package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"rainfall-predictor/internal/rainfall"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

const (
	streamReadLimit    = 64 << 10
	streamPongWait     = 60 * time.Second
	streamPingInterval = 30 * time.Second
	streamWriteWait    = 10 * time.Second
)

// Stream message types.
const (
	MessageResult = "result"
	MessageError  = "error"
)

// StreamMessage is sent for every observation received on /api/v1/stream.
// Exactly one of Result and Error is set.
type StreamMessage struct {
	Type   string           `json:"type"`
	Result *rainfall.Result `json:"result,omitempty"`
	Error  *ErrorResponse   `json:"error,omitempty"`
}

// handleStream scores one observation per text message, in order, on a
// single connection.
func (s *Server) handleStream(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Error().Err(err).Msg("Failed to upgrade stream connection")
		return
	}
	if !s.addClient(conn) {
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"),
			time.Now().Add(streamWriteWait))
		conn.Close()
		return
	}
	defer s.removeClient(conn)

	conn.SetReadLimit(streamReadLimit)
	_ = conn.SetReadDeadline(time.Now().Add(streamPongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(streamPongWait))
	})

	done := make(chan struct{})
	defer close(done)
	go keepAlive(conn, done)

	log.Debug().Str("remote", r.RemoteAddr).Msg("Stream client connected")

	for {
		msgType, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Warn().Err(err).Str("remote", r.RemoteAddr).Msg("Stream closed unexpectedly")
			}
			return
		}
		_ = conn.SetReadDeadline(time.Now().Add(streamPongWait))
		if msgType != websocket.TextMessage {
			continue
		}

		msg := s.scoreMessage(r, data)
		_ = conn.SetWriteDeadline(time.Now().Add(streamWriteWait))
		if err := conn.WriteJSON(msg); err != nil {
			log.Debug().Err(err).Str("remote", r.RemoteAddr).Msg("Failed to write stream message")
			return
		}
	}
}

func (s *Server) scoreMessage(r *http.Request, data []byte) StreamMessage {
	var req rainfall.Request
	if err := json.Unmarshal(data, &req); err != nil {
		return StreamMessage{Type: MessageError, Error: &ErrorResponse{
			Error: fmt.Sprintf("invalid request: %v", err),
			Kind:  KindRequest,
		}}
	}

	res, err := s.svc.Predict(r.Context(), req)
	if err != nil {
		status, body := classify(err)
		if status >= http.StatusInternalServerError {
			log.Error().Err(err).Str("kind", body.Kind).Msg("Stream prediction failed")
		}
		return StreamMessage{Type: MessageError, Error: &body}
	}
	return StreamMessage{Type: MessageResult, Result: &res}
}

func keepAlive(conn *websocket.Conn, done <-chan struct{}) {
	ticker := time.NewTicker(streamPingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(streamWriteWait)); err != nil {
				return
			}
		}
	}
}

func (s *Server) addClient(conn *websocket.Conn) bool {
	s.clientsMu.Lock()
	defer s.clientsMu.Unlock()

	if s.closing {
		return false
	}
	s.clients[conn] = true
	if s.metrics != nil {
		s.metrics.StreamClients().Set(float64(len(s.clients)))
	}
	return true
}

func (s *Server) removeClient(conn *websocket.Conn) {
	s.clientsMu.Lock()
	delete(s.clients, conn)
	if s.metrics != nil {
		s.metrics.StreamClients().Set(float64(len(s.clients)))
	}
	s.clientsMu.Unlock()

	conn.Close()
	log.Debug().Msg("Stream client disconnected")
}

// ClientCount returns the number of connected stream clients.
func (s *Server) ClientCount() int {
	s.clientsMu.Lock()
	defer s.clientsMu.Unlock()
	return len(s.clients)
}

func (s *Server) closeClients() {
	s.clientsMu.Lock()
	defer s.clientsMu.Unlock()

	s.closing = true
	for conn := range s.clients {
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"),
			time.Now().Add(time.Second))
		conn.Close()
	}
}
