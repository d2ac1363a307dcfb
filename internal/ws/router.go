package ws

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"

	"chathub/internal/models"
	"chathub/pkg/logger"
)

// ConversationStore is the persistence boundary the router fans out through.
// The conversation service is the production implementation.
type ConversationStore interface {
	MembersOf(ctx context.Context, conversationID string) ([]string, error)
	ConversationsOf(ctx context.Context, userID string) ([]string, error)
	AppendMessage(ctx context.Context, msg *models.Message) error
	UpdateLatestSummary(ctx context.Context, conversationID, text string, at time.Time) error
	GetMessage(ctx context.Context, messageID string) (*models.Message, error)
	MarkSeen(ctx context.Context, messageID, userID string, at time.Time) ([]models.MessageSeen, error)
	DeleteForUser(ctx context.Context, messageID, userID string) error
	DeleteForEveryone(ctx context.Context, messageID string) error
}

// StatusPublisher mirrors presence transitions somewhere other processes can
// read them (Redis in production). Failures are logged, never fatal.
type StatusPublisher interface {
	PublishStatus(ctx context.Context, t Transition) error
}

// Delivery is one outbound event addressed to a set of connections. The hub
// applies deliveries to whichever of those connections are still live.
type Delivery struct {
	ConnIDs []string
	Event   *Event
}

// Router validates inbound events against session and room state, mutates
// the registries, and produces the deliveries to emit. All per-event
// failures become an error event to the originating connection; the
// connection itself stays usable.
//
// Registry operations never block; store and resolver calls are the only
// suspension points and happen outside any registry lock.
type Router struct {
	sessions *SessionRegistry
	presence *PresenceTracker
	rooms    *RoomRegistry
	store    ConversationStore
	resolver IdentityResolver
	status   StatusPublisher

	resolveTimeout time.Duration
	now            func() time.Time
	log            *logger.Logger
}

func NewRouter(
	sessions *SessionRegistry,
	presence *PresenceTracker,
	rooms *RoomRegistry,
	store ConversationStore,
	resolver IdentityResolver,
	status StatusPublisher,
	resolveTimeout time.Duration,
	log *logger.Logger,
) *Router {
	if resolveTimeout <= 0 {
		resolveTimeout = 5 * time.Second
	}
	return &Router{
		sessions:       sessions,
		presence:       presence,
		rooms:          rooms,
		store:          store,
		resolver:       resolver,
		status:         status,
		resolveTimeout: resolveTimeout,
		now:            time.Now,
		log:            log,
	}
}

// Presence exposes the tracker for the online-status HTTP query.
func (r *Router) Presence() *PresenceTracker {
	return r.presence
}

// HandleEvent processes one inbound event for a connection and returns the
// deliveries to emit. Events from the same connection must be handled one at
// a time, in order; the client read loop guarantees that.
func (r *Router) HandleEvent(ctx context.Context, connID string, evt *Event) []Delivery {
	if evt == nil || !evt.Type.IsInbound() {
		return r.reject(connID, errValidation("unknown event type"))
	}

	var (
		deliveries []Delivery
		err        error
	)

	switch evt.Type {
	case EventSetup:
		deliveries, err = r.handleSetup(ctx, connID, evt)
	default:
		// Everything except setup requires an authenticated connection.
		var userID string
		userID, err = r.sessions.Resolve(connID)
		if err != nil {
			return r.reject(connID, errAuthentication("connection is not authenticated"))
		}
		switch evt.Type {
		case EventJoinChat:
			deliveries, err = r.handleJoin(ctx, connID, userID, evt)
		case EventLeaveChat:
			deliveries, err = r.handleLeave(connID, evt)
		case EventTyping, EventStopTyping:
			deliveries, err = r.handleTyping(connID, userID, evt)
		case EventSendMessage:
			deliveries, err = r.handleSendMessage(ctx, connID, userID, evt)
		case EventMarkSeen:
			deliveries, err = r.handleMarkSeen(ctx, connID, userID, evt)
		case EventDeleteMessage:
			deliveries, err = r.handleDeleteMessage(ctx, connID, userID, evt)
		}
	}

	if err != nil {
		return r.reject(connID, err)
	}
	return deliveries
}

// HandleDisconnect tears down a departed connection: session mapping, room
// membership, presence count. Returns the peer-offline fan-out when the user
// went offline.
func (r *Router) HandleDisconnect(ctx context.Context, connID string) []Delivery {
	r.rooms.LeaveAll(connID)

	userID, ok := r.sessions.Forget(connID)
	if !ok {
		return nil
	}

	transition, edged, err := r.presence.Disconnect(userID)
	if err != nil {
		// Invariant violation; operators see it, clients never do.
		r.log.Error("presence disconnect invariant violated", "userID", userID, "error", err)
		return nil
	}
	if !edged {
		return nil
	}

	r.publishStatus(ctx, transition)

	peers := r.peerConnections(ctx, userID)
	if len(peers) == 0 {
		return nil
	}
	return []Delivery{{ConnIDs: peers, Event: NewPeerOfflineEvent(userID, transition.LastSeenAt)}}
}

/** -------------------- handlers -------------------- */

func (r *Router) handleSetup(ctx context.Context, connID string, evt *Event) ([]Delivery, error) {
	if _, err := r.sessions.Resolve(connID); err == nil {
		return nil, errValidation("connection is already authenticated")
	}

	var data SetupData
	if err := decode(evt, &data); err != nil {
		return nil, err
	}
	if data.Token == "" {
		return nil, errAuthentication("missing token")
	}

	// Bounded wait on the resolver; a timeout is an authentication failure,
	// not a fatal one.
	resolveCtx, cancel := context.WithTimeout(ctx, r.resolveTimeout)
	defer cancel()

	userID, err := r.sessions.Authenticate(resolveCtx, r.resolver, connID, data.Token)
	if err != nil {
		return nil, errAuthentication("invalid or expired token")
	}

	deliveries := []Delivery{{ConnIDs: []string{connID}, Event: NewAckEvent(EventSetup, nil)}}

	transition, edged := r.presence.Connect(userID)
	if edged {
		r.publishStatus(ctx, transition)
		if peers := r.peerConnections(ctx, userID); len(peers) > 0 {
			deliveries = append(deliveries, Delivery{ConnIDs: peers, Event: NewPeerOnlineEvent(userID)})
		}
	}
	return deliveries, nil
}

func (r *Router) handleJoin(ctx context.Context, connID, userID string, evt *Event) ([]Delivery, error) {
	var data ChatData
	if err := decode(evt, &data); err != nil {
		return nil, err
	}
	if data.ConversationID == "" {
		return nil, errValidation("conversationId is required")
	}

	if err := r.requireMember(ctx, data.ConversationID, userID); err != nil {
		return nil, err
	}

	count := r.rooms.Join(connID, data.ConversationID)
	r.log.Debug("connection joined room", "connID", connID, "conversationID", data.ConversationID, "members", count)
	return nil, nil
}

func (r *Router) handleLeave(connID string, evt *Event) ([]Delivery, error) {
	var data ChatData
	if err := decode(evt, &data); err != nil {
		return nil, err
	}
	r.rooms.Leave(connID, data.ConversationID)
	return nil, nil
}

func (r *Router) handleTyping(connID, userID string, evt *Event) ([]Delivery, error) {
	var data ChatData
	if err := decode(evt, &data); err != nil {
		return nil, err
	}
	if room, ok := r.rooms.RoomOf(connID); !ok || room != data.ConversationID {
		return nil, errValidation("connection is not in that conversation's room")
	}

	targets := exclude(r.rooms.Members(data.ConversationID), connID)
	if len(targets) == 0 {
		return nil, nil
	}
	return []Delivery{{ConnIDs: targets, Event: NewTypingEvent(evt.Type, data.ConversationID, userID)}}, nil
}

func (r *Router) handleSendMessage(ctx context.Context, connID, userID string, evt *Event) ([]Delivery, error) {
	var data SendMessageData
	if err := decode(evt, &data); err != nil {
		return nil, err
	}
	if data.ConversationID == "" {
		return nil, errValidation("conversationId is required")
	}
	if data.Text == "" && data.AttachmentURL == "" {
		return nil, errValidation("message needs text or an attachment")
	}

	members, err := r.membersOf(ctx, data.ConversationID)
	if err != nil {
		return nil, err
	}
	if !contains(members, userID) {
		return nil, errAuthorization("sender is not a member of the conversation")
	}

	now := r.now()
	msg := &models.Message{
		ID:             uuid.New().String(),
		ConversationID: data.ConversationID,
		SenderID:       userID,
		Text:           data.Text,
		AttachmentURL:  data.AttachmentURL,
		Seen:           []models.MessageSeen{},
		CreatedAt:      now,
	}

	// Persistence completes (or fails) before any fan-out, so a disconnect
	// mid-send never loses the message.
	if err := r.store.AppendMessage(ctx, msg); err != nil {
		return nil, errInternal("could not persist message")
	}

	summary := data.Text
	if summary == "" {
		summary = "[attachment]"
	}
	if err := r.store.UpdateLatestSummary(ctx, data.ConversationID, summary, now); err != nil {
		r.log.Error("latest-summary update failed", "conversationID", data.ConversationID, "error", err)
	}

	resp := msg.ToResponse()

	// Fan out to every connection of every member: room occupants see it
	// live, members viewing another conversation still get notified. The
	// sender's own connection gets a separate ack instead of an echo.
	targets := make([]string, 0)
	for _, member := range members {
		targets = append(targets, r.sessions.ConnectionsOf(member)...)
	}
	targets = exclude(dedupe(targets), connID)

	deliveries := []Delivery{{ConnIDs: []string{connID}, Event: NewAckEvent(EventSendMessage, &resp)}}
	if len(targets) > 0 {
		deliveries = append(deliveries, Delivery{ConnIDs: targets, Event: NewReceiveMessageEvent(resp)})
	}
	return deliveries, nil
}

func (r *Router) handleMarkSeen(ctx context.Context, connID, userID string, evt *Event) ([]Delivery, error) {
	var data MarkSeenData
	if err := decode(evt, &data); err != nil {
		return nil, err
	}
	if data.MessageID == "" {
		return nil, errValidation("messageId is required")
	}

	msg, err := r.store.GetMessage(ctx, data.MessageID)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return nil, errNotFound("message not found")
		}
		return nil, errInternal("could not load message")
	}
	if msg.SenderID == userID {
		return nil, errValidation("sender implicitly sees its own message")
	}
	if err := r.requireMember(ctx, msg.ConversationID, userID); err != nil {
		return nil, err
	}

	// Idempotent: a duplicate mark is absorbed by the store.
	seenBy, err := r.store.MarkSeen(ctx, data.MessageID, userID, r.now())
	if err != nil {
		return nil, errInternal("could not record seen state")
	}

	targets := r.rooms.Members(msg.ConversationID)
	if len(targets) == 0 {
		return nil, nil
	}
	return []Delivery{{ConnIDs: targets, Event: NewSeenUpdatedEvent(data.MessageID, seenBy)}}, nil
}

func (r *Router) handleDeleteMessage(ctx context.Context, connID, userID string, evt *Event) ([]Delivery, error) {
	var data DeleteMessageData
	if err := decode(evt, &data); err != nil {
		return nil, err
	}
	if data.MessageID == "" {
		return nil, errValidation("messageId is required")
	}

	msg, err := r.store.GetMessage(ctx, data.MessageID)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return nil, errNotFound("message not found")
		}
		return nil, errInternal("could not load message")
	}

	switch data.Scope {
	case ScopeEveryone:
		if msg.SenderID != userID {
			return nil, errAuthorization("only the sender can delete for everyone")
		}
		if err := r.store.DeleteForEveryone(ctx, data.MessageID); err != nil {
			return nil, errInternal("could not delete message")
		}
		targets := r.rooms.Members(msg.ConversationID)
		deliveries := []Delivery{{ConnIDs: []string{connID}, Event: NewAckEvent(EventDeleteMessage, nil)}}
		if len(targets) > 0 {
			deliveries = append(deliveries, Delivery{ConnIDs: targets, Event: NewMessageDeletedEvent(data.MessageID)})
		}
		return deliveries, nil

	case ScopeForMe:
		if err := r.requireMember(ctx, msg.ConversationID, userID); err != nil {
			return nil, err
		}
		if err := r.store.DeleteForUser(ctx, data.MessageID, userID); err != nil {
			return nil, errInternal("could not delete message")
		}
		// Caller-local effect only; no broadcast.
		return []Delivery{{ConnIDs: []string{connID}, Event: NewAckEvent(EventDeleteMessage, nil)}}, nil

	default:
		return nil, errValidation("scope must be \"for-me\" or \"everyone\"")
	}
}

/** -------------------- helpers -------------------- */

// reject converts any handler error into an error event on the originating
// connection. Internal invariant details never reach the client.
func (r *Router) reject(connID string, err error) []Delivery {
	var evtErr *EventError
	if !errors.As(err, &evtErr) {
		r.log.Error("event handling failed", "connID", connID, "error", err)
		evtErr = errInternal("internal error")
	}
	return []Delivery{{ConnIDs: []string{connID}, Event: NewErrorEvent(evtErr.Code, evtErr.Message)}}
}

func (r *Router) membersOf(ctx context.Context, conversationID string) ([]string, error) {
	members, err := r.store.MembersOf(ctx, conversationID)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return nil, errNotFound("conversation not found")
		}
		return nil, errInternal("could not load conversation members")
	}
	return members, nil
}

func (r *Router) requireMember(ctx context.Context, conversationID, userID string) error {
	members, err := r.membersOf(ctx, conversationID)
	if err != nil {
		return err
	}
	if !contains(members, userID) {
		return errAuthorization("not a member of the conversation")
	}
	return nil
}

// peerConnections collects the connections of every currently-connected user
// who shares a conversation with userID. Interest is determined lazily from
// the store.
func (r *Router) peerConnections(ctx context.Context, userID string) []string {
	conversations, err := r.store.ConversationsOf(ctx, userID)
	if err != nil {
		r.log.Error("conversation list lookup failed", "userID", userID, "error", err)
		return nil
	}

	seen := make(map[string]struct{})
	var conns []string
	for _, conversationID := range conversations {
		members, err := r.store.MembersOf(ctx, conversationID)
		if err != nil {
			r.log.Error("member lookup failed", "conversationID", conversationID, "error", err)
			continue
		}
		for _, member := range members {
			if member == userID {
				continue
			}
			if _, dup := seen[member]; dup {
				continue
			}
			seen[member] = struct{}{}
			conns = append(conns, r.sessions.ConnectionsOf(member)...)
		}
	}
	return dedupe(conns)
}

func (r *Router) publishStatus(ctx context.Context, t Transition) {
	if r.status == nil {
		return
	}
	if err := r.status.PublishStatus(ctx, t); err != nil {
		r.log.Error("status publish failed", "userID", t.UserID, "error", err)
	}
}

func decode(evt *Event, into any) error {
	if len(evt.Data) == 0 {
		return errValidation("missing event payload")
	}
	if err := json.Unmarshal(evt.Data, into); err != nil {
		return errValidation("malformed event payload")
	}
	return nil
}

func contains(list []string, want string) bool {
	for _, v := range list {
		if v == want {
			return true
		}
	}
	return false
}

func exclude(list []string, drop string) []string {
	out := list[:0]
	for _, v := range list {
		if v != drop {
			out = append(out, v)
		}
	}
	return out
}

func dedupe(list []string) []string {
	seen := make(map[string]struct{}, len(list))
	out := list[:0]
	for _, v := range list {
		if _, dup := seen[v]; dup {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}
