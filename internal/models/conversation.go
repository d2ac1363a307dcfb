package models

import "time"

// Conversation groups users. Direct chats are two-member conversations with
// IsGroup false; the latest-message summary is denormalized for list views.
type Conversation struct {
	ID                string     `gorm:"primaryKey;type:char(36)" json:"id"`
	Name              string     `json:"name,omitempty"`
	IsGroup           bool       `gorm:"not null;default:false" json:"isGroup"`
	LatestMessageText string     `json:"latestMessageText,omitempty"`
	LatestMessageAt   *time.Time `json:"latestMessageAt,omitempty"`
	Members           []User     `gorm:"many2many:conversation_members" json:"members,omitempty"`
	CreatedAt         time.Time  `json:"createdAt"`
}

type CreateConversationRequest struct {
	Name      string   `json:"name"`
	IsGroup   bool     `json:"isGroup"`
	MemberIDs []string `json:"memberIds" binding:"required,min=1"`
}

type ConversationResponse struct {
	ID                string         `json:"id"`
	Name              string         `json:"name,omitempty"`
	IsGroup           bool           `json:"isGroup"`
	LatestMessageText string         `json:"latestMessageText,omitempty"`
	LatestMessageAt   *time.Time     `json:"latestMessageAt,omitempty"`
	Members           []UserResponse `json:"members"`
}

func (c *Conversation) ToResponse() ConversationResponse {
	members := make([]UserResponse, 0, len(c.Members))
	for i := range c.Members {
		members = append(members, c.Members[i].ToResponse())
	}
	return ConversationResponse{
		ID:                c.ID,
		Name:              c.Name,
		IsGroup:           c.IsGroup,
		LatestMessageText: c.LatestMessageText,
		LatestMessageAt:   c.LatestMessageAt,
		Members:           members,
	}
}
