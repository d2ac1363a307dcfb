package conversation

import (
	"context"
	"time"

	"github.com/google/uuid"

	"chathub/internal/models"
)

// Service is the conversation store consumed by both the HTTP handlers and
// the websocket router. Membership checks for the HTTP surface live here;
// the router does its own validation against the same primitives.
type Service struct {
	repo *Repository
}

func NewService(repo *Repository) *Service {
	return &Service{repo: repo}
}

/** -------------------- router-facing store -------------------- */

func (s *Service) MembersOf(ctx context.Context, conversationID string) ([]string, error) {
	return s.repo.MemberIDs(ctx, conversationID)
}

func (s *Service) ConversationsOf(ctx context.Context, userID string) ([]string, error) {
	return s.repo.ConversationIDsOf(ctx, userID)
}

func (s *Service) AppendMessage(ctx context.Context, msg *models.Message) error {
	return s.repo.CreateMessage(ctx, msg)
}

func (s *Service) UpdateLatestSummary(ctx context.Context, conversationID, text string, at time.Time) error {
	return s.repo.UpdateLatestSummary(ctx, conversationID, text, at)
}

func (s *Service) GetMessage(ctx context.Context, messageID string) (*models.Message, error) {
	return s.repo.FindMessage(ctx, messageID)
}

func (s *Service) MarkSeen(ctx context.Context, messageID, userID string, at time.Time) ([]models.MessageSeen, error) {
	return s.repo.UpsertSeen(ctx, messageID, userID, at)
}

func (s *Service) DeleteForUser(ctx context.Context, messageID, userID string) error {
	return s.repo.CreateDeletion(ctx, messageID, userID)
}

func (s *Service) DeleteForEveryone(ctx context.Context, messageID string) error {
	return s.repo.DeleteMessage(ctx, messageID)
}

/** -------------------- HTTP surface -------------------- */

// Create builds a conversation containing the creator plus the requested
// members. Direct chats get no name; groups keep the one supplied.
func (s *Service) Create(ctx context.Context, creatorID string, req models.CreateConversationRequest) (*models.Conversation, error) {
	memberIDs := append([]string{creatorID}, req.MemberIDs...)
	seen := make(map[string]struct{}, len(memberIDs))
	members := make([]models.User, 0, len(memberIDs))
	for _, id := range memberIDs {
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		members = append(members, models.User{ID: id})
	}

	conv := &models.Conversation{
		ID:        uuid.New().String(),
		Name:      req.Name,
		IsGroup:   req.IsGroup,
		Members:   members,
		CreatedAt: time.Now().UTC(),
	}
	if err := s.repo.Create(ctx, conv); err != nil {
		return nil, err
	}
	return s.repo.FindByID(ctx, conv.ID)
}

func (s *Service) ListForUser(ctx context.Context, userID string) ([]models.Conversation, error) {
	return s.repo.ListForUser(ctx, userID)
}

// NonContacts lists users the caller shares no conversation with yet.
func (s *Service) NonContacts(ctx context.Context, userID string) ([]models.User, error) {
	return s.repo.ListNonContacts(ctx, userID)
}

// History returns the messages of a conversation as seen by viewerID. The
// viewer must be a member.
func (s *Service) History(ctx context.Context, conversationID, viewerID string) ([]models.Message, error) {
	members, err := s.repo.MemberIDs(ctx, conversationID)
	if err != nil {
		return nil, err
	}
	isMember := false
	for _, id := range members {
		if id == viewerID {
			isMember = true
			break
		}
	}
	if !isMember {
		return nil, models.ErrNotFound
	}
	return s.repo.ListMessages(ctx, conversationID, viewerID)
}
