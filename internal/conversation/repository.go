package conversation

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"chathub/internal/models"
)

// Repository is the gorm-backed storage for conversations and messages.
type Repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

func (r *Repository) Create(ctx context.Context, conv *models.Conversation) error {
	return r.db.WithContext(ctx).Create(conv).Error
}

func (r *Repository) FindByID(ctx context.Context, id string) (*models.Conversation, error) {
	var conv models.Conversation
	err := r.db.WithContext(ctx).Preload("Members").First(&conv, "id = ?", id).Error
	if err != nil {
		return nil, mapNotFound(err)
	}
	return &conv, nil
}

func (r *Repository) MemberIDs(ctx context.Context, conversationID string) ([]string, error) {
	// Existence first, so an unknown conversation is NotFound rather than an
	// empty member list.
	var count int64
	if err := r.db.WithContext(ctx).Model(&models.Conversation{}).
		Where("id = ?", conversationID).Count(&count).Error; err != nil {
		return nil, err
	}
	if count == 0 {
		return nil, models.ErrNotFound
	}

	var ids []string
	err := r.db.WithContext(ctx).Table("conversation_members").
		Where("conversation_id = ?", conversationID).
		Pluck("user_id", &ids).Error
	return ids, err
}

func (r *Repository) ConversationIDsOf(ctx context.Context, userID string) ([]string, error) {
	var ids []string
	err := r.db.WithContext(ctx).Table("conversation_members").
		Where("user_id = ?", userID).
		Pluck("conversation_id", &ids).Error
	return ids, err
}

func (r *Repository) ListForUser(ctx context.Context, userID string) ([]models.Conversation, error) {
	var convs []models.Conversation
	err := r.db.WithContext(ctx).
		Preload("Members").
		Joins("JOIN conversation_members cm ON cm.conversation_id = conversations.id").
		Where("cm.user_id = ?", userID).
		Order("latest_message_at DESC").
		Find(&convs).Error
	return convs, err
}

func (r *Repository) UpdateLatestSummary(ctx context.Context, conversationID, text string, at time.Time) error {
	return r.db.WithContext(ctx).Model(&models.Conversation{}).
		Where("id = ?", conversationID).
		Updates(map[string]any{
			"latest_message_text": text,
			"latest_message_at":   at,
		}).Error
}

// ListNonContacts returns users who share no conversation with userID,
// candidates for starting a new chat. The caller itself is excluded.
func (r *Repository) ListNonContacts(ctx context.Context, userID string) ([]models.User, error) {
	var users []models.User
	err := r.db.WithContext(ctx).
		Where("id <> ?", userID).
		Where(`NOT EXISTS (
			SELECT 1 FROM conversation_members cm
			JOIN conversation_members cm2 ON cm2.conversation_id = cm.conversation_id
			WHERE cm.user_id = ? AND cm2.user_id = users.id)`, userID).
		Order("name ASC").
		Find(&users).Error
	return users, err
}

/** -------------------- messages -------------------- */

func (r *Repository) CreateMessage(ctx context.Context, msg *models.Message) error {
	return r.db.WithContext(ctx).Create(msg).Error
}

func (r *Repository) FindMessage(ctx context.Context, id string) (*models.Message, error) {
	var msg models.Message
	err := r.db.WithContext(ctx).Preload("Seen").First(&msg, "id = ?", id).Error
	if err != nil {
		return nil, mapNotFound(err)
	}
	return &msg, nil
}

// UpsertSeen records a receipt if absent and returns the full seen set.
// Duplicate marks hit the primary key and are ignored.
func (r *Repository) UpsertSeen(ctx context.Context, messageID, userID string, at time.Time) ([]models.MessageSeen, error) {
	seen := models.MessageSeen{MessageID: messageID, UserID: userID, SeenAt: at}
	err := r.db.WithContext(ctx).
		Where(models.MessageSeen{MessageID: messageID, UserID: userID}).
		Attrs(models.MessageSeen{SeenAt: at}).
		FirstOrCreate(&seen).Error
	if err != nil {
		return nil, err
	}

	var all []models.MessageSeen
	err = r.db.WithContext(ctx).
		Where("message_id = ?", messageID).
		Find(&all).Error
	return all, err
}

func (r *Repository) CreateDeletion(ctx context.Context, messageID, userID string) error {
	deletion := models.MessageDeletion{MessageID: messageID, UserID: userID}
	return r.db.WithContext(ctx).
		Where(deletion).
		FirstOrCreate(&deletion).Error
}

// DeleteMessage removes the row and its seen/deletion children in one
// transaction.
func (r *Repository) DeleteMessage(ctx context.Context, messageID string) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("message_id = ?", messageID).Delete(&models.MessageSeen{}).Error; err != nil {
			return err
		}
		if err := tx.Where("message_id = ?", messageID).Delete(&models.MessageDeletion{}).Error; err != nil {
			return err
		}
		return tx.Delete(&models.Message{}, "id = ?", messageID).Error
	})
}

// ListMessages returns the conversation history visible to viewerID, oldest
// first. Messages the viewer soft-deleted are filtered out here.
func (r *Repository) ListMessages(ctx context.Context, conversationID, viewerID string) ([]models.Message, error) {
	var msgs []models.Message
	err := r.db.WithContext(ctx).
		Preload("Seen").
		Where("conversation_id = ?", conversationID).
		Where("NOT EXISTS (SELECT 1 FROM message_deletions md WHERE md.message_id = messages.id AND md.user_id = ?)", viewerID).
		Order("created_at ASC").
		Find(&msgs).Error
	return msgs, err
}

func mapNotFound(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return models.ErrNotFound
	}
	return err
}
