package session

import (
	"math"

	"github.com/chunkgame/server/internal/player"
	"github.com/chunkgame/server/internal/terrain"
)

// invalidParamsText is the exact client-facing text for malformed requests.
const invalidParamsText = "Invalid request parameters"

// clientMessage is the single inbound envelope. X and Y are pointers so a
// string where a number belongs fails decoding instead of reading as zero.
type clientMessage struct {
	Type string   `json:"type"`
	X    *float64 `json:"x,omitempty"`
	Y    *float64 `json:"y,omitempty"`
	Mode string   `json:"mode,omitempty"`
	Tool string   `json:"tool,omitempty"`
}

const (
	msgHandshake    = "handshake"
	msgRequestChunk = "requestChunk"
	msgMove         = "move"
	msgMining       = "mining"
)

// hasCoords reports whether both coordinates are present and finite.
func (m *clientMessage) hasCoords() bool {
	if m.X == nil || m.Y == nil {
		return false
	}
	for _, v := range []float64{*m.X, *m.Y} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}

type connectedMsg struct {
	Type    string                     `json:"type"`
	ID      string                     `json:"id"`
	Players map[string]player.Position `json:"players"`
}

type playerUpdateMsg struct {
	Type    string                     `json:"type"`
	Players map[string]player.Position `json:"players"`
}

type chunkMsg struct {
	Type  string             `json:"type"`
	Chunk *terrain.WireChunk `json:"chunk"`
}

type miningSuccessMsg struct {
	Type     string `json:"type"`
	Resource string `json:"resource"`
	Amount   int    `json:"amount"`
	X        int    `json:"x"`
	Y        int    `json:"y"`
}

type miningFailedMsg struct {
	Type string `json:"type"`
	X    int    `json:"x"`
	Y    int    `json:"y"`
}

type errorMsg struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

func invalidRequest() errorMsg {
	return errorMsg{Type: "error", Message: invalidParamsText}
}
