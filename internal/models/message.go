package models

import "time"

/** --------------------ENTITIES-------------------- */

// Message is a chat message. Text may be empty when AttachmentURL is set.
// Seen rows never include the sender. Deletions are per-viewer soft deletes;
// the row itself is only removed by a delete-for-everyone.
type Message struct {
	ID             string            `gorm:"primaryKey;type:char(36)" json:"id"`
	ConversationID string            `gorm:"index;not null" json:"conversationId"`
	SenderID       string            `gorm:"index;not null" json:"senderId"`
	Text           string            `json:"text,omitempty"`
	AttachmentURL  string            `json:"attachmentUrl,omitempty"`
	Seen           []MessageSeen     `gorm:"constraint:OnDelete:CASCADE;foreignKey:MessageID" json:"seenBy"`
	Deletions      []MessageDeletion `gorm:"constraint:OnDelete:CASCADE;foreignKey:MessageID" json:"-"`
	CreatedAt      time.Time         `json:"createdAt"`
}

// MessageSeen records one viewer's receipt, unique per (message, user).
type MessageSeen struct {
	MessageID string    `gorm:"primaryKey;type:char(36)" json:"-"`
	UserID    string    `gorm:"primaryKey;type:char(36)" json:"userId"`
	SeenAt    time.Time `gorm:"not null" json:"seenAt"`
}

// MessageDeletion hides a message from one viewer without removing it.
type MessageDeletion struct {
	MessageID string `gorm:"primaryKey;type:char(36)"`
	UserID    string `gorm:"primaryKey;type:char(36)"`
}

/** -------------------- DTOs -------------------- */

type MessageResponse struct {
	ID             string        `json:"id"`
	ConversationID string        `json:"conversationId"`
	SenderID       string        `json:"senderId"`
	Text           string        `json:"text,omitempty"`
	AttachmentURL  string        `json:"attachmentUrl,omitempty"`
	SeenBy         []MessageSeen `json:"seenBy"`
	CreatedAt      time.Time     `json:"createdAt"`
}

func (m *Message) ToResponse() MessageResponse {
	seen := m.Seen
	if seen == nil {
		seen = []MessageSeen{}
	}
	return MessageResponse{
		ID:             m.ID,
		ConversationID: m.ConversationID,
		SenderID:       m.SenderID,
		Text:           m.Text,
		AttachmentURL:  m.AttachmentURL,
		SeenBy:         seen,
		CreatedAt:      m.CreatedAt,
	}
}
