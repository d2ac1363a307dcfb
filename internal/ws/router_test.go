package ws

import (
	"context"
	"encoding/json"
	"errors"
	"sort"
	"testing"
	"time"

	"chathub/internal/models"
	"chathub/pkg/logger"
	"chathub/pkg/response"
)

/** -------------------- fakes -------------------- */

type fakeStore struct {
	members   map[string][]string // conversationID -> member userIDs
	convs     map[string][]string // userID -> conversationIDs
	messages  map[string]*models.Message
	summaries map[string]string
	deletions map[string][]string // messageID -> userIDs
	appendErr error
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		members:   make(map[string][]string),
		convs:     make(map[string][]string),
		messages:  make(map[string]*models.Message),
		summaries: make(map[string]string),
		deletions: make(map[string][]string),
	}
}

func (f *fakeStore) MembersOf(_ context.Context, conversationID string) ([]string, error) {
	members, ok := f.members[conversationID]
	if !ok {
		return nil, models.ErrNotFound
	}
	return members, nil
}

func (f *fakeStore) ConversationsOf(_ context.Context, userID string) ([]string, error) {
	return f.convs[userID], nil
}

func (f *fakeStore) AppendMessage(_ context.Context, msg *models.Message) error {
	if f.appendErr != nil {
		return f.appendErr
	}
	clone := *msg
	f.messages[msg.ID] = &clone
	return nil
}

func (f *fakeStore) UpdateLatestSummary(_ context.Context, conversationID, text string, _ time.Time) error {
	f.summaries[conversationID] = text
	return nil
}

func (f *fakeStore) GetMessage(_ context.Context, messageID string) (*models.Message, error) {
	msg, ok := f.messages[messageID]
	if !ok {
		return nil, models.ErrNotFound
	}
	return msg, nil
}

func (f *fakeStore) MarkSeen(_ context.Context, messageID, userID string, at time.Time) ([]models.MessageSeen, error) {
	msg, ok := f.messages[messageID]
	if !ok {
		return nil, models.ErrNotFound
	}
	for _, seen := range msg.Seen {
		if seen.UserID == userID {
			return msg.Seen, nil
		}
	}
	msg.Seen = append(msg.Seen, models.MessageSeen{MessageID: messageID, UserID: userID, SeenAt: at})
	return msg.Seen, nil
}

func (f *fakeStore) DeleteForUser(_ context.Context, messageID, userID string) error {
	f.deletions[messageID] = append(f.deletions[messageID], userID)
	return nil
}

func (f *fakeStore) DeleteForEveryone(_ context.Context, messageID string) error {
	delete(f.messages, messageID)
	return nil
}

type fakeStatus struct {
	transitions []Transition
}

func (f *fakeStatus) PublishStatus(_ context.Context, t Transition) error {
	f.transitions = append(f.transitions, t)
	return nil
}

/** -------------------- helpers -------------------- */

func newTestRouter(store *fakeStore) (*Router, *fakeStatus) {
	status := &fakeStatus{}
	resolver := staticResolver{"tok-u1": "u1", "tok-u2": "u2", "tok-u3": "u3"}
	router := NewRouter(
		NewSessionRegistry(),
		NewPresenceTracker(),
		NewRoomRegistry(),
		store,
		resolver,
		status,
		time.Second,
		logger.New("error"),
	)
	return router, status
}

func inbound(t *testing.T, kind EventType, payload any) *Event {
	t.Helper()
	data, err := json.Marshal(payload)
	if err != nil {
		t.Fatalf("marshal payload: %v", err)
	}
	return &Event{Type: kind, Data: data}
}

// findDelivery returns the single delivery of the given type, failing the
// test when there are zero or several.
func findDelivery(t *testing.T, deliveries []Delivery, kind EventType) Delivery {
	t.Helper()
	var found []Delivery
	for _, d := range deliveries {
		if d.Event.Type == kind {
			found = append(found, d)
		}
	}
	if len(found) != 1 {
		t.Fatalf("expected exactly one %s delivery, got %d (all: %v)", kind, len(found), kinds(deliveries))
	}
	return found[0]
}

func hasDelivery(deliveries []Delivery, kind EventType) bool {
	for _, d := range deliveries {
		if d.Event.Type == kind {
			return true
		}
	}
	return false
}

func kinds(deliveries []Delivery) []EventType {
	out := make([]EventType, 0, len(deliveries))
	for _, d := range deliveries {
		out = append(out, d.Event.Type)
	}
	return out
}

func decodePayload(t *testing.T, d Delivery, into any) {
	t.Helper()
	if err := json.Unmarshal(d.Event.Data, into); err != nil {
		t.Fatalf("decode %s payload: %v", d.Event.Type, err)
	}
}

func expectError(t *testing.T, deliveries []Delivery, connID, code string) {
	t.Helper()
	d := findDelivery(t, deliveries, EventErrorType)
	if len(d.ConnIDs) != 1 || d.ConnIDs[0] != connID {
		t.Errorf("error should target only %s, got %v", connID, d.ConnIDs)
	}
	var data ErrorData
	decodePayload(t, d, &data)
	if data.Code != code {
		t.Errorf("error code = %s, want %s", data.Code, code)
	}
}

/** -------------------- tests -------------------- */

func TestRouterRejectsEventsBeforeSetup(t *testing.T) {
	store := newFakeStore()
	router, _ := newTestRouter(store)
	ctx := context.Background()

	deliveries := router.HandleEvent(ctx, "c1", inbound(t, EventJoinChat, ChatData{ConversationID: "X"}))
	expectError(t, deliveries, "c1", response.CodeAuthentication)
}

func TestRouterSetup(t *testing.T) {
	store := newFakeStore()
	store.members["X"] = []string{"u1", "u2"}
	store.convs["u1"] = []string{"X"}
	store.convs["u2"] = []string{"X"}
	router, status := newTestRouter(store)
	ctx := context.Background()

	t.Run("BadToken", func(t *testing.T) {
		deliveries := router.HandleEvent(ctx, "c1", inbound(t, EventSetup, SetupData{Token: "nope"}))
		expectError(t, deliveries, "c1", response.CodeAuthentication)
	})

	t.Run("FirstConnectionAnnouncesToPeers", func(t *testing.T) {
		// u1 connects first; no peers online yet.
		deliveries := router.HandleEvent(ctx, "c1", inbound(t, EventSetup, SetupData{Token: "tok-u1"}))
		findDelivery(t, deliveries, EventAck)
		if hasDelivery(deliveries, EventPeerOnline) {
			t.Error("no peer is connected, nobody to announce to")
		}

		// u2 connects; u1 must hear about it.
		deliveries = router.HandleEvent(ctx, "c2", inbound(t, EventSetup, SetupData{Token: "tok-u2"}))
		online := findDelivery(t, deliveries, EventPeerOnline)
		if len(online.ConnIDs) != 1 || online.ConnIDs[0] != "c1" {
			t.Errorf("peer-online targets = %v, want [c1]", online.ConnIDs)
		}
		var data PeerOnlineData
		decodePayload(t, online, &data)
		if data.UserID != "u2" {
			t.Errorf("peer-online userID = %s, want u2", data.UserID)
		}

		if len(status.transitions) != 2 || !status.transitions[1].Online {
			t.Errorf("expected two online transitions mirrored, got %v", status.transitions)
		}
	})

	t.Run("SecondTabIsSilent", func(t *testing.T) {
		deliveries := router.HandleEvent(ctx, "c1b", inbound(t, EventSetup, SetupData{Token: "tok-u1"}))
		if hasDelivery(deliveries, EventPeerOnline) {
			t.Error("an additional connection is not an online edge")
		}
	})

	t.Run("DoubleSetupRejected", func(t *testing.T) {
		deliveries := router.HandleEvent(ctx, "c1", inbound(t, EventSetup, SetupData{Token: "tok-u1"}))
		expectError(t, deliveries, "c1", response.CodeValidation)
	})
}

func TestRouterSendAndSeenScenario(t *testing.T) {
	store := newFakeStore()
	store.members["X"] = []string{"u1", "u2"}
	store.convs["u1"] = []string{"X"}
	store.convs["u2"] = []string{"X"}
	router, _ := newTestRouter(store)
	ctx := context.Background()

	router.HandleEvent(ctx, "c1", inbound(t, EventSetup, SetupData{Token: "tok-u1"}))
	router.HandleEvent(ctx, "c1", inbound(t, EventJoinChat, ChatData{ConversationID: "X"}))
	router.HandleEvent(ctx, "c2", inbound(t, EventSetup, SetupData{Token: "tok-u2"}))
	router.HandleEvent(ctx, "c2", inbound(t, EventJoinChat, ChatData{ConversationID: "X"}))

	var messageID string

	t.Run("SendFansOutAndAcks", func(t *testing.T) {
		deliveries := router.HandleEvent(ctx, "c2", inbound(t, EventSendMessage, SendMessageData{
			ConversationID: "X",
			Text:           "hi",
		}))

		ack := findDelivery(t, deliveries, EventAck)
		if len(ack.ConnIDs) != 1 || ack.ConnIDs[0] != "c2" {
			t.Errorf("ack targets = %v, want [c2]", ack.ConnIDs)
		}
		var ackData AckData
		decodePayload(t, ack, &ackData)
		if ackData.Message == nil || ackData.Message.Text != "hi" {
			t.Fatalf("ack should carry the persisted message, got %+v", ackData)
		}
		messageID = ackData.Message.ID

		recv := findDelivery(t, deliveries, EventReceiveMessage)
		if len(recv.ConnIDs) != 1 || recv.ConnIDs[0] != "c1" {
			t.Errorf("receive-message targets = %v, want [c1]", recv.ConnIDs)
		}
		var msg models.MessageResponse
		decodePayload(t, recv, &msg)
		if msg.Text != "hi" || len(msg.SeenBy) != 0 {
			t.Errorf("fresh message should have empty seenBy, got %+v", msg)
		}

		// Persistence round-trip: stored message starts unseen.
		stored := store.messages[messageID]
		if stored == nil {
			t.Fatal("message was not persisted")
		}
		if len(stored.Seen) != 0 {
			t.Errorf("stored seenBy should be empty, got %v", stored.Seen)
		}
		if store.summaries["X"] != "hi" {
			t.Errorf("latest summary = %q, want hi", store.summaries["X"])
		}
	})

	t.Run("EmptyPayloadRejectedBeforeMutation", func(t *testing.T) {
		before := len(store.messages)
		deliveries := router.HandleEvent(ctx, "c2", inbound(t, EventSendMessage, SendMessageData{ConversationID: "X"}))
		expectError(t, deliveries, "c2", response.CodeValidation)
		if len(store.messages) != before {
			t.Error("rejected send must not persist anything")
		}
	})

	t.Run("MarkSeenBroadcastsToRoom", func(t *testing.T) {
		deliveries := router.HandleEvent(ctx, "c1", inbound(t, EventMarkSeen, MarkSeenData{MessageID: messageID}))

		seen := findDelivery(t, deliveries, EventSeenUpdated)
		targets := append([]string(nil), seen.ConnIDs...)
		sort.Strings(targets)
		if len(targets) != 2 || targets[0] != "c1" || targets[1] != "c2" {
			t.Errorf("seen-updated targets = %v, want room [c1 c2]", targets)
		}
		var data SeenUpdatedData
		decodePayload(t, seen, &data)
		if len(data.SeenBy) != 1 || data.SeenBy[0].UserID != "u1" {
			t.Errorf("seenBy = %v, want [u1]", data.SeenBy)
		}
	})

	t.Run("MarkSeenIsIdempotent", func(t *testing.T) {
		deliveries := router.HandleEvent(ctx, "c1", inbound(t, EventMarkSeen, MarkSeenData{MessageID: messageID}))
		if hasDelivery(deliveries, EventErrorType) {
			t.Fatal("duplicate mark-seen is a no-op, not an error")
		}
		var data SeenUpdatedData
		decodePayload(t, findDelivery(t, deliveries, EventSeenUpdated), &data)
		if len(data.SeenBy) != 1 {
			t.Errorf("duplicate mark must not grow seenBy, got %v", data.SeenBy)
		}
	})

	t.Run("SenderCannotMarkOwnMessage", func(t *testing.T) {
		deliveries := router.HandleEvent(ctx, "c2", inbound(t, EventMarkSeen, MarkSeenData{MessageID: messageID}))
		expectError(t, deliveries, "c2", response.CodeValidation)
	})

	t.Run("UnknownMessageIsNotFound", func(t *testing.T) {
		deliveries := router.HandleEvent(ctx, "c1", inbound(t, EventMarkSeen, MarkSeenData{MessageID: "missing"}))
		expectError(t, deliveries, "c1", response.CodeNotFound)
	})
}

func TestRouterDeleteMessage(t *testing.T) {
	store := newFakeStore()
	store.members["X"] = []string{"u1", "u2"}
	store.convs["u1"] = []string{"X"}
	store.convs["u2"] = []string{"X"}
	router, _ := newTestRouter(store)
	ctx := context.Background()

	router.HandleEvent(ctx, "c1", inbound(t, EventSetup, SetupData{Token: "tok-u1"}))
	router.HandleEvent(ctx, "c1", inbound(t, EventJoinChat, ChatData{ConversationID: "X"}))
	router.HandleEvent(ctx, "c2", inbound(t, EventSetup, SetupData{Token: "tok-u2"}))
	router.HandleEvent(ctx, "c2", inbound(t, EventJoinChat, ChatData{ConversationID: "X"}))

	send := router.HandleEvent(ctx, "c2", inbound(t, EventSendMessage, SendMessageData{ConversationID: "X", Text: "hi"}))
	var ackData AckData
	decodePayload(t, findDelivery(t, send, EventAck), &ackData)
	messageID := ackData.Message.ID

	t.Run("ForMeIsCallerLocal", func(t *testing.T) {
		deliveries := router.HandleEvent(ctx, "c1", inbound(t, EventDeleteMessage, DeleteMessageData{
			MessageID: messageID,
			Scope:     ScopeForMe,
		}))

		ack := findDelivery(t, deliveries, EventAck)
		if len(ack.ConnIDs) != 1 || ack.ConnIDs[0] != "c1" {
			t.Errorf("for-me ack targets = %v, want [c1]", ack.ConnIDs)
		}
		if hasDelivery(deliveries, EventMessageDeleted) {
			t.Error("for-me must not broadcast")
		}
		if users := store.deletions[messageID]; len(users) != 1 || users[0] != "u1" {
			t.Errorf("deletions = %v, want [u1]", users)
		}
		// Still in storage for the other viewer.
		if _, ok := store.messages[messageID]; !ok {
			t.Error("for-me delete must keep the message in storage")
		}
	})

	t.Run("EveryoneRequiresSender", func(t *testing.T) {
		deliveries := router.HandleEvent(ctx, "c1", inbound(t, EventDeleteMessage, DeleteMessageData{
			MessageID: messageID,
			Scope:     ScopeEveryone,
		}))
		expectError(t, deliveries, "c1", response.CodeAuthorization)
	})

	t.Run("InvalidScope", func(t *testing.T) {
		deliveries := router.HandleEvent(ctx, "c2", inbound(t, EventDeleteMessage, DeleteMessageData{
			MessageID: messageID,
			Scope:     "both",
		}))
		expectError(t, deliveries, "c2", response.CodeValidation)
	})

	t.Run("EveryoneBroadcastsAndRemoves", func(t *testing.T) {
		deliveries := router.HandleEvent(ctx, "c2", inbound(t, EventDeleteMessage, DeleteMessageData{
			MessageID: messageID,
			Scope:     ScopeEveryone,
		}))

		deleted := findDelivery(t, deliveries, EventMessageDeleted)
		targets := append([]string(nil), deleted.ConnIDs...)
		sort.Strings(targets)
		if len(targets) != 2 || targets[0] != "c1" || targets[1] != "c2" {
			t.Errorf("message-deleted targets = %v, want room [c1 c2]", targets)
		}
		if _, ok := store.messages[messageID]; ok {
			t.Error("delete-for-everyone must remove the message")
		}
	})
}

func TestRouterTypingAndDisconnect(t *testing.T) {
	store := newFakeStore()
	store.members["X"] = []string{"u1", "u2"}
	store.convs["u1"] = []string{"X"}
	store.convs["u2"] = []string{"X"}
	router, status := newTestRouter(store)
	ctx := context.Background()

	router.HandleEvent(ctx, "c1", inbound(t, EventSetup, SetupData{Token: "tok-u1"}))
	router.HandleEvent(ctx, "c1", inbound(t, EventJoinChat, ChatData{ConversationID: "X"}))
	router.HandleEvent(ctx, "c2", inbound(t, EventSetup, SetupData{Token: "tok-u2"}))
	router.HandleEvent(ctx, "c2", inbound(t, EventJoinChat, ChatData{ConversationID: "X"}))

	t.Run("TypingExcludesSender", func(t *testing.T) {
		deliveries := router.HandleEvent(ctx, "c2", inbound(t, EventTyping, ChatData{ConversationID: "X"}))
		typing := findDelivery(t, deliveries, EventTyping)
		if len(typing.ConnIDs) != 1 || typing.ConnIDs[0] != "c1" {
			t.Errorf("typing targets = %v, want [c1]", typing.ConnIDs)
		}
		var data TypingData
		decodePayload(t, typing, &data)
		if data.Typer != "u2" {
			t.Errorf("typer = %s, want u2", data.Typer)
		}
	})

	t.Run("TypingOutsideRoomRejected", func(t *testing.T) {
		store.members["Y"] = []string{"u1", "u2"}
		deliveries := router.HandleEvent(ctx, "c2", inbound(t, EventTyping, ChatData{ConversationID: "Y"}))
		expectError(t, deliveries, "c2", response.CodeValidation)
	})

	t.Run("DisconnectAnnouncesOffline", func(t *testing.T) {
		deliveries := router.HandleDisconnect(ctx, "c1")

		offline := findDelivery(t, deliveries, EventPeerOffline)
		if len(offline.ConnIDs) != 1 || offline.ConnIDs[0] != "c2" {
			t.Errorf("peer-offline targets = %v, want [c2]", offline.ConnIDs)
		}
		var data PeerOfflineData
		decodePayload(t, offline, &data)
		if data.UserID != "u1" || data.LastSeenAt.IsZero() {
			t.Errorf("peer-offline payload = %+v", data)
		}

		last := status.transitions[len(status.transitions)-1]
		if last.Online || last.UserID != "u1" {
			t.Errorf("offline transition not mirrored, got %+v", last)
		}
	})

	t.Run("TypingIntoEmptyRoomIsSilent", func(t *testing.T) {
		// c1 left; typing from c2 reaches nobody and errors nobody.
		deliveries := router.HandleEvent(ctx, "c2", inbound(t, EventTyping, ChatData{ConversationID: "X"}))
		if hasDelivery(deliveries, EventErrorType) {
			t.Error("broadcasting to an empty room is a legal no-op")
		}
		if hasDelivery(deliveries, EventTyping) {
			t.Error("no recipients expected")
		}
	})

	t.Run("DisconnectOfUnauthenticatedConnection", func(t *testing.T) {
		if deliveries := router.HandleDisconnect(ctx, "never-setup"); deliveries != nil {
			t.Errorf("expected no deliveries, got %v", kinds(deliveries))
		}
	})
}

func TestRouterFanOutToAllConnections(t *testing.T) {
	store := newFakeStore()
	store.members["X"] = []string{"u1", "u2"}
	store.convs["u1"] = []string{"X"}
	store.convs["u2"] = []string{"X"}
	router, _ := newTestRouter(store)
	ctx := context.Background()

	// u1 is signed in from two tabs; only the first has the conversation open.
	router.HandleEvent(ctx, "c1", inbound(t, EventSetup, SetupData{Token: "tok-u1"}))
	router.HandleEvent(ctx, "c1b", inbound(t, EventSetup, SetupData{Token: "tok-u1"}))
	router.HandleEvent(ctx, "c1", inbound(t, EventJoinChat, ChatData{ConversationID: "X"}))
	router.HandleEvent(ctx, "c2", inbound(t, EventSetup, SetupData{Token: "tok-u2"}))

	t.Run("SendReachesEveryTab", func(t *testing.T) {
		deliveries := router.HandleEvent(ctx, "c2", inbound(t, EventSendMessage, SendMessageData{
			ConversationID: "X",
			Text:           "hi",
		}))

		recv := findDelivery(t, deliveries, EventReceiveMessage)
		targets := append([]string(nil), recv.ConnIDs...)
		sort.Strings(targets)
		if len(targets) != 2 || targets[0] != "c1" || targets[1] != "c1b" {
			t.Errorf("receive-message targets = %v, want both of u1's connections", targets)
		}
	})

	t.Run("OfflineAnnouncedToEveryTab", func(t *testing.T) {
		deliveries := router.HandleDisconnect(ctx, "c2")

		offline := findDelivery(t, deliveries, EventPeerOffline)
		targets := append([]string(nil), offline.ConnIDs...)
		sort.Strings(targets)
		if len(targets) != 2 || targets[0] != "c1" || targets[1] != "c1b" {
			t.Errorf("peer-offline targets = %v, want both of u1's connections", targets)
		}
	})
}

func TestRouterMembershipAuthorization(t *testing.T) {
	store := newFakeStore()
	store.members["X"] = []string{"u1", "u2"}
	store.convs["u3"] = nil
	router, _ := newTestRouter(store)
	ctx := context.Background()

	router.HandleEvent(ctx, "c3", inbound(t, EventSetup, SetupData{Token: "tok-u3"}))

	t.Run("JoinRequiresMembership", func(t *testing.T) {
		deliveries := router.HandleEvent(ctx, "c3", inbound(t, EventJoinChat, ChatData{ConversationID: "X"}))
		expectError(t, deliveries, "c3", response.CodeAuthorization)
	})

	t.Run("JoinUnknownConversation", func(t *testing.T) {
		deliveries := router.HandleEvent(ctx, "c3", inbound(t, EventJoinChat, ChatData{ConversationID: "missing"}))
		expectError(t, deliveries, "c3", response.CodeNotFound)
	})

	t.Run("SendRequiresMembership", func(t *testing.T) {
		deliveries := router.HandleEvent(ctx, "c3", inbound(t, EventSendMessage, SendMessageData{
			ConversationID: "X",
			Text:           "intruder",
		}))
		expectError(t, deliveries, "c3", response.CodeAuthorization)
	})

	t.Run("StorageFailureIsInternalAndSurvivable", func(t *testing.T) {
		store.members["Z"] = []string{"u3"}
		store.appendErr = errors.New("boom")
		deliveries := router.HandleEvent(ctx, "c3", inbound(t, EventSendMessage, SendMessageData{
			ConversationID: "Z",
			Text:           "hello",
		}))
		expectError(t, deliveries, "c3", response.CodeInternal)
		store.appendErr = nil

		// The connection stays usable.
		deliveries = router.HandleEvent(ctx, "c3", inbound(t, EventSendMessage, SendMessageData{
			ConversationID: "Z",
			Text:           "hello again",
		}))
		findDelivery(t, deliveries, EventAck)
	})
}
