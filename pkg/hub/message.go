// Package hub fans dashboard events out to websocket clients.
//
// Each Hub owns its client set inside one goroutine (Run); producers only
// send on channels, so Broadcast is safe from any goroutine and never
// blocks the engine.
package hub

import "github.com/gofiber/websocket/v2"

// Message is one broadcast payload. Binary messages (camera JPEGs) go out
// as binary frames, everything else as text.
type Message struct {
	Binary bool
	Data   []byte
}

// NewJSONMessage wraps pre-encoded JSON.
func NewJSONMessage(data []byte) Message { return Message{Data: data} }

// NewBinaryMessage wraps raw bytes.
func NewBinaryMessage(data []byte) Message { return Message{Binary: true, Data: data} }

func (m Message) frameType() int {
	if m.Binary {
		return websocket.BinaryMessage
	}
	return websocket.TextMessage
}
