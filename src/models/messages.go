package models

import "encoding/json"

// -----------------------------------------------------------------------------
// Client -> server frames
// -----------------------------------------------------------------------------

// MClientMessage is the envelope for everything a streaming client may send.
type MClientMessage struct {
	Type    string   `json:"type"` // "subscribe" | "unsubscribe" | "ping"
	Symbols []string `json:"symbols,omitempty"`
}

// -----------------------------------------------------------------------------
// Server -> client frames
// -----------------------------------------------------------------------------

// MServerMessage is the envelope for every frame sent to a streaming client.
type MServerMessage struct {
	Type    string          `json:"type"`
	Data    json.RawMessage `json:"data,omitempty"`
	Symbols []string        `json:"symbols,omitempty"`
	Code    string          `json:"code,omitempty"`
	Message string          `json:"message,omitempty"`
}

// Frame helpers. Marshal errors here would mean a non-serializable model,
// which is a programming error; the payload is dropped rather than sent broken.

func NewTickMessage(tick MTick) *MServerMessage {
	data, err := json.Marshal(tick)
	if err != nil {
		return nil
	}
	return &MServerMessage{Type: "tick", Data: data}
}

func NewCandleMessage(candle MCandle) *MServerMessage {
	data, err := json.Marshal(candle)
	if err != nil {
		return nil
	}
	return &MServerMessage{Type: "candle", Data: data}
}

func NewTradeMessage(trade MTrade) *MServerMessage {
	data, err := json.Marshal(trade)
	if err != nil {
		return nil
	}
	return &MServerMessage{Type: "trade", Data: data}
}

func NewSnapshotMessage(snap MSnapshot) *MServerMessage {
	data, err := json.Marshal(snap.Symbols)
	if err != nil {
		return nil
	}
	return &MServerMessage{Type: "snapshot", Data: data}
}

func NewAckMessage(kind string, symbols []string) *MServerMessage {
	return &MServerMessage{Type: kind, Symbols: symbols}
}

func NewErrorMessage(code, message string) *MServerMessage {
	return &MServerMessage{Type: "error", Code: code, Message: message}
}

func NewPongMessage() *MServerMessage {
	return &MServerMessage{Type: "pong"}
}
