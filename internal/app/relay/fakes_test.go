package relay

import (
	"context"
	"encoding/json"
	"errors"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/zalachat/zalachat/internal/aws/storage"
	"github.com/zalachat/zalachat/internal/domains/entities"
)

type frame struct {
	Type string          `json:"type"`
	Ack  string          `json:"ack"`
	Data json.RawMessage `json:"data"`
}

// recorder is a Writer that keeps every frame written to it.
type recorder struct {
	frames []frame
	closed bool
	mu     sync.Mutex
}

func (w *recorder) WriteJSON(v interface{}) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	var f frame
	if err := json.Unmarshal(b, &f); err != nil {
		return err
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	w.frames = append(w.frames, f)
	return nil
}

func (w *recorder) WriteControl(int, []byte, time.Time) error { return nil }

func (w *recorder) SetWriteDeadline(time.Time) error { return nil }

func (w *recorder) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.closed = true
	return nil
}

func (w *recorder) events(event string) []frame {
	w.mu.Lock()
	defer w.mu.Unlock()
	var out []frame
	for _, f := range w.frames {
		if f.Type == event {
			out = append(out, f)
		}
	}
	return out
}

func (w *recorder) count() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.frames)
}

func (w *recorder) reset() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.frames = nil
}

func decodeData(t *testing.T, f frame) map[string]interface{} {
	t.Helper()
	var m map[string]interface{}
	require.NoError(t, json.Unmarshal(f.Data, &m))
	return m
}

type fakeFriendships struct {
	edges   map[[2]string]entities.Friendship
	listErr error
	mu      sync.Mutex
}

func newFakeFriendships() *fakeFriendships {
	return &fakeFriendships{edges: make(map[[2]string]entities.Friendship)}
}

func (f *fakeFriendships) befriend(a, b, conversationId string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.edges[[2]string{a, b}] = entities.Friendship{UserId: a, FriendId: b, ConversationId: conversationId}
	f.edges[[2]string{b, a}] = entities.Friendship{UserId: b, FriendId: a, ConversationId: conversationId}
}

func (f *fakeFriendships) edge(a, b string) entities.Friendship {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.edges[[2]string{a, b}]
}

func (f *fakeFriendships) ListFriendships(_ context.Context, userId string) ([]entities.Friendship, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.listErr != nil {
		return nil, f.listErr
	}
	var out []entities.Friendship
	for key, edge := range f.edges {
		if key[0] == userId {
			out = append(out, edge)
		}
	}
	return out, nil
}

func (f *fakeFriendships) UpdateFriendshipPair(_ context.Context, userId, friendId string, opts storage.FriendshipUpdateOptions) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	keys := [][2]string{{userId, friendId}, {friendId, userId}}
	for _, key := range keys {
		if _, ok := f.edges[key]; !ok {
			return storage.ErrFriendshipNotFound
		}
	}
	for _, key := range keys {
		edge := f.edges[key]
		if opts.Theme != nil {
			edge.Theme = *opts.Theme
		}
		if opts.FriendName != nil {
			edge.FriendName = *opts.FriendName
		}
		f.edges[key] = edge
	}
	return nil
}

type fakeMessages struct {
	messages map[[2]string]entities.Message
	groups   map[[2]string]entities.GroupMessage
	putErr   error
	puts     int
	mu       sync.Mutex
}

func newFakeMessages() *fakeMessages {
	return &fakeMessages{
		messages: make(map[[2]string]entities.Message),
		groups:   make(map[[2]string]entities.GroupMessage),
	}
}

func (f *fakeMessages) PutMessage(_ context.Context, message entities.Message) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.putErr != nil {
		return f.putErr
	}
	key := [2]string{message.ConversationId, message.Timestamp}
	if _, ok := f.messages[key]; ok {
		return storage.ErrMessageExists
	}
	f.messages[key] = message
	f.puts++
	return nil
}

func (f *fakeMessages) UpdateMessage(_ context.Context, conversationId, timestamp string, opts storage.MessageUpdateOptions) (entities.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	key := [2]string{conversationId, timestamp}
	message, ok := f.messages[key]
	if !ok {
		return entities.Message{}, storage.ErrMessageNotFound
	}
	if opts.Status != nil {
		message.Status = *opts.Status
	}
	if opts.Type != nil {
		message.Type = *opts.Type
	}
	if opts.ClearReaction {
		message.Reaction = ""
	} else if opts.Reaction != nil {
		message.Reaction = *opts.Reaction
	}
	f.messages[key] = message
	return message, nil
}

func (f *fakeMessages) GetMessageById(_ context.Context, conversationId, messageId string) (entities.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for key, message := range f.messages {
		if key[0] == conversationId && message.MessageId == messageId {
			return message, nil
		}
	}
	return entities.Message{}, storage.ErrMessageNotFound
}

func (f *fakeMessages) MarkConversationRead(_ context.Context, conversationId, userId string) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var updated []string
	for key, message := range f.messages {
		if key[0] != conversationId || message.IsReadBy(userId) {
			continue
		}
		message.ReadBy = append(message.ReadBy, userId)
		f.messages[key] = message
		updated = append(updated, key[1])
	}
	return updated, nil
}

func (f *fakeMessages) PutGroupMessage(_ context.Context, message entities.GroupMessage) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.putErr != nil {
		return f.putErr
	}
	f.groups[[2]string{message.GroupId, message.Timestamp}] = message
	f.puts++
	return nil
}

func (f *fakeMessages) UpdateGroupMessage(_ context.Context, groupId, timestamp string, opts storage.MessageUpdateOptions) (entities.GroupMessage, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	key := [2]string{groupId, timestamp}
	message, ok := f.groups[key]
	if !ok {
		return entities.GroupMessage{}, storage.ErrMessageNotFound
	}
	if opts.Status != nil {
		message.Status = *opts.Status
	}
	if opts.Type != nil {
		message.Type = *opts.Type
	}
	f.groups[key] = message
	return message, nil
}

// conversation returns the messages of a conversation in sort key order.
func (f *fakeMessages) conversation(conversationId string) []entities.Message {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []entities.Message
	for key, message := range f.messages {
		if key[0] == conversationId {
			out = append(out, message)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Timestamp < out[j].Timestamp })
	return out
}

func (f *fakeMessages) group(groupId string) []entities.GroupMessage {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []entities.GroupMessage
	for key, message := range f.groups {
		if key[0] == groupId {
			out = append(out, message)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Timestamp < out[j].Timestamp })
	return out
}

type fakeDirectory map[string]string

func (d fakeDirectory) DisplayName(_ context.Context, userId string) (string, error) {
	name, ok := d[userId]
	if !ok {
		return "", errors.New("user not found")
	}
	return name, nil
}

type bucket string

func (b bucket) Owns(rawUrl string) bool {
	return len(rawUrl) >= len(b) && rawUrl[:len(b)] == string(b)
}

// fixture wires a router with fakes. A and B are friends on conv-1; C is a
// stranger.
type fixture struct {
	router      *Router
	hub         *Hub
	friendships *fakeFriendships
	messages    *fakeMessages
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	friendships := newFakeFriendships()
	friendships.befriend("A", "B", "conv-1")
	messages := newFakeMessages()
	hub := NewHub()
	router := NewRouter(
		hub,
		friendships,
		messages,
		fakeDirectory{"A": "Alice", "B": "Bob"},
		bucket("https://media.example.com/"),
	)
	return &fixture{
		router:      router,
		hub:         hub,
		friendships: friendships,
		messages:    messages,
	}
}

func (f *fixture) connect(t *testing.T, userId string) (*Conn, *recorder) {
	t.Helper()
	w := &recorder{}
	c := NewConn(w, userId, ConnOptions{})
	f.hub.Register(c)
	t.Cleanup(func() { f.hub.Unregister(c) })
	return c, w
}

func (f *fixture) send(t *testing.T, c *Conn, event string, data interface{}, ack string) {
	t.Helper()
	raw, err := json.Marshal(data)
	require.NoError(t, err)
	f.router.Dispatch(context.Background(), c, Inbound{Type: event, Data: raw, Ack: ack})
}

func requireError(t *testing.T, w *recorder, event string, kind Kind) {
	t.Helper()
	errs := w.events("error")
	require.NotEmpty(t, errs, "expected an error event")
	data := decodeData(t, errs[len(errs)-1])
	require.Equal(t, event, data["event"])
	require.Equal(t, string(kind), data["code"])
}
