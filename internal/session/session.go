package session

import (
	"bytes"
	"compress/gzip"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/gorilla/websocket"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 4096
	sendQueueSize  = 32
)

// outbound is one queued server-to-client frame. Chunk payloads go out as
// gzipped binary frames; everything else is JSON text.
type outbound struct {
	data   []byte
	binary bool
}

// Session is one connected client. The send channel is never closed; done
// marks the session dead so detached handlers finishing after disconnect
// drop their reply instead of sending.
type Session struct {
	id        string
	hub       *Hub
	conn      *websocket.Conn
	send      chan outbound
	done      chan struct{}
	closeOnce sync.Once
}

func newSession(hub *Hub, conn *websocket.Conn, id string) *Session {
	return &Session{
		id:   id,
		hub:  hub,
		conn: conn,
		send: make(chan outbound, sendQueueSize),
		done: make(chan struct{}),
	}
}

// shutdown marks the session closed and tears down the connection. Safe to
// call from any goroutine, any number of times.
func (s *Session) shutdown() {
	s.closeOnce.Do(func() {
		close(s.done)
		if s.conn != nil {
			s.conn.Close()
		}
	})
}

// enqueue queues a frame unless the session is closed. A full queue drops
// the frame; delivery is best-effort by contract.
func (s *Session) enqueue(out outbound) {
	select {
	case <-s.done:
		return
	default:
	}
	select {
	case s.send <- out:
	default:
		log.Warn("session send queue full, dropping message", "player_id", s.id)
	}
}

// ID returns the session's player id.
func (s *Session) ID() string {
	return s.id
}

// sendJSON queues a text frame.
func (s *Session) sendJSON(v any) {
	data, err := json.Marshal(v)
	if err != nil {
		log.Error("failed to marshal outbound message", "player_id", s.id, "error", err)
		return
	}
	s.enqueue(outbound{data: data})
}

// sendCompressed queues a gzipped binary frame.
func (s *Session) sendCompressed(v any) {
	data, err := json.Marshal(v)
	if err != nil {
		log.Error("failed to marshal chunk payload", "player_id", s.id, "error", err)
		return
	}
	packed, err := gzipBytes(data)
	if err != nil {
		log.Error("failed to compress chunk payload", "player_id", s.id, "error", err)
		return
	}
	s.enqueue(outbound{data: packed, binary: true})
}

// readPump decodes inbound messages in arrival order. Slow operations run on
// their own goroutines so replies are emitted in completion order.
func (s *Session) readPump() {
	defer s.hub.closeSession(s)
	s.conn.SetReadLimit(maxMessageSize)
	s.conn.SetReadDeadline(time.Now().Add(pongWait))
	s.conn.SetPongHandler(func(string) error {
		s.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, raw, err := s.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Warn("session read error", "player_id", s.id, "error", err)
			}
			return
		}

		var msg clientMessage
		if err := json.Unmarshal(raw, &msg); err != nil {
			s.sendJSON(invalidRequest())
			continue
		}

		switch msg.Type {
		case msgHandshake:
			s.hub.handleHandshake(s)
		case msgRequestChunk:
			go s.hub.handleRequestChunk(s, msg)
		case msgMove:
			s.hub.handleMove(s, msg)
		case msgMining:
			go s.hub.handleMining(s, msg)
		default:
			s.sendJSON(invalidRequest())
		}
	}
}

// writePump owns the connection's write side.
func (s *Session) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		s.conn.Close()
	}()

	for {
		select {
		case <-s.done:
			s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			s.conn.WriteMessage(websocket.CloseMessage, []byte{})
			return
		case out := <-s.send:
			s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			messageType := websocket.TextMessage
			if out.binary {
				messageType = websocket.BinaryMessage
			}
			if err := s.conn.WriteMessage(messageType, out.data); err != nil {
				return
			}
		case <-ticker.C:
			s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := s.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func gzipBytes(data []byte) ([]byte, error) {
	var buf bytes.Buffer
	zw := gzip.NewWriter(&buf)
	if _, err := zw.Write(data); err != nil {
		return nil, fmt.Errorf("failed to compress payload: %w", err)
	}
	if err := zw.Close(); err != nil {
		return nil, fmt.Errorf("failed to finish compressing payload: %w", err)
	}
	return buf.Bytes(), nil
}
