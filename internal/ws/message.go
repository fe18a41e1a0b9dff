package ws

import (
	"time"

	"github.com/nextmovecargo/branding/internal/branding"
)

// MessageType discriminates WebSocket messages.
type MessageType string

const (
	// MessageSnapshot is sent once, right after the connection opens.
	MessageSnapshot MessageType = "branding.snapshot"
	MessageUpdated  MessageType = "branding.updated"
	MessageReset    MessageType = "branding.reset"
)

// Message is the envelope for all WebSocket messages.
type Message struct {
	Type      MessageType `json:"type"`
	Revision  int64       `json:"revision"`
	Timestamp time.Time   `json:"timestamp"`
	Data      any         `json:"data"`
}

// BrandingData is the payload of every branding message: the full merged
// document, so clients never need to merge themselves.
type BrandingData struct {
	Source   branding.Source   `json:"source"`
	Settings branding.Document `json:"settings"`
}

func messageType(topic string) MessageType {
	switch topic {
	case branding.TopicReset:
		return MessageReset
	default:
		return MessageUpdated
	}
}
