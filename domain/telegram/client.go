package telegram

import (
	"context"
	"errors"
)

// ErrUnauthorized marks a rejected credential. Publishing cannot proceed
// until the session token is fixed, so callers should surface it instead
// of retrying.
var ErrUnauthorized = errors.New("chat backend rejected credentials")

// Chat is a resolved send target.
type Chat struct {
	ID    string
	Title string
	Type  string
}

// Video is the uploaded-video part of a message, when present.
type Video struct {
	FileUniqueID string
	FileSize     int64
}

// Message is what the backend returns after a send.
type Message struct {
	ID     int64
	ChatID string
	Video  *Video
}

// SendVideoRequest uploads a local file as a streamable video.
type SendVideoRequest struct {
	ChatID            string
	Path              string
	Caption           string
	SupportsStreaming bool
}

// Client is the chat-backend surface the publisher consumes.
type Client interface {
	GetChat(ctx context.Context, chatID string) (*Chat, error)
	SendVideo(ctx context.Context, req SendVideoRequest) (*Message, error)
}
