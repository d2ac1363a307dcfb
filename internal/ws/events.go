package ws

import (
	"encoding/json"
	"time"

	"chathub/internal/models"
)

// EventType identifies a websocket event using a custom enum type for better
// type safety.
type EventType string

// Client -> server events.
const (
	EventSetup         EventType = "setup"
	EventJoinChat      EventType = "join-chat"
	EventLeaveChat     EventType = "leave-chat"
	EventTyping        EventType = "typing"
	EventStopTyping    EventType = "stop-typing"
	EventSendMessage   EventType = "send-message"
	EventMarkSeen      EventType = "mark-seen"
	EventDeleteMessage EventType = "delete-message"
)

// Server -> client events.
const (
	EventPeerOnline     EventType = "peer-online"
	EventPeerOffline    EventType = "peer-offline"
	EventReceiveMessage EventType = "receive-message"
	EventSeenUpdated    EventType = "message-seen-updated"
	EventMessageDeleted EventType = "message-deleted"
	EventAck            EventType = "ack"
	EventErrorType      EventType = "error"
)

// Delete scopes accepted by delete-message.
const (
	ScopeForMe    = "for-me"
	ScopeEveryone = "everyone"
)

func (t EventType) String() string {
	return string(t)
}

// IsInbound reports whether the type is one a client may send.
func (t EventType) IsInbound() bool {
	switch t {
	case EventSetup, EventJoinChat, EventLeaveChat, EventTyping,
		EventStopTyping, EventSendMessage, EventMarkSeen, EventDeleteMessage:
		return true
	default:
		return false
	}
}

// Event is the wire frame. Data carries the per-type payload; inbound frames
// keep it raw so each handler decodes exactly what it validates.
type Event struct {
	Type EventType       `json:"type"`
	Data json.RawMessage `json:"data,omitempty"`
}

/** -------------------- inbound payloads -------------------- */

type SetupData struct {
	Token string `json:"token"`
}

type ChatData struct {
	ConversationID string `json:"conversationId"`
}

type SendMessageData struct {
	ConversationID string `json:"conversationId"`
	Text           string `json:"text,omitempty"`
	AttachmentURL  string `json:"attachmentUrl,omitempty"`
}

type MarkSeenData struct {
	MessageID string `json:"messageId"`
}

type DeleteMessageData struct {
	MessageID string `json:"messageId"`
	Scope     string `json:"scope"`
}

/** -------------------- outbound payloads -------------------- */

type PeerOnlineData struct {
	UserID string `json:"userId"`
}

type PeerOfflineData struct {
	UserID     string    `json:"userId"`
	LastSeenAt time.Time `json:"lastSeenAt"`
}

type TypingData struct {
	ConversationID string `json:"conversationId"`
	Typer          string `json:"typer"`
}

type SeenUpdatedData struct {
	MessageID string               `json:"messageId"`
	SeenBy    []models.MessageSeen `json:"seenBy"`
}

type MessageDeletedData struct {
	MessageID string `json:"messageId"`
}

type AckData struct {
	Event   EventType               `json:"event"`
	Message *models.MessageResponse `json:"message,omitempty"`
}

type ErrorData struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

/** -------------------- constructors -------------------- */

func newEvent(t EventType, payload any) *Event {
	data, _ := json.Marshal(payload)
	return &Event{Type: t, Data: data}
}

func marshalEvent(evt *Event) ([]byte, error) {
	return json.Marshal(evt)
}

func NewPeerOnlineEvent(userID string) *Event {
	return newEvent(EventPeerOnline, PeerOnlineData{UserID: userID})
}

func NewPeerOfflineEvent(userID string, lastSeenAt time.Time) *Event {
	return newEvent(EventPeerOffline, PeerOfflineData{UserID: userID, LastSeenAt: lastSeenAt})
}

func NewTypingEvent(t EventType, conversationID, typer string) *Event {
	return newEvent(t, TypingData{ConversationID: conversationID, Typer: typer})
}

func NewReceiveMessageEvent(msg models.MessageResponse) *Event {
	return newEvent(EventReceiveMessage, msg)
}

func NewSeenUpdatedEvent(messageID string, seenBy []models.MessageSeen) *Event {
	if seenBy == nil {
		seenBy = []models.MessageSeen{}
	}
	return newEvent(EventSeenUpdated, SeenUpdatedData{MessageID: messageID, SeenBy: seenBy})
}

func NewMessageDeletedEvent(messageID string) *Event {
	return newEvent(EventMessageDeleted, MessageDeletedData{MessageID: messageID})
}

func NewAckEvent(of EventType, msg *models.MessageResponse) *Event {
	return newEvent(EventAck, AckData{Event: of, Message: msg})
}

func NewErrorEvent(code, message string) *Event {
	return newEvent(EventErrorType, ErrorData{Code: code, Message: message})
}
