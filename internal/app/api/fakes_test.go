package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http/httptest"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
	"github.com/zalachat/zalachat/internal/app/relay"
	"github.com/zalachat/zalachat/internal/aws/identity"
	"github.com/zalachat/zalachat/internal/aws/notification"
	"github.com/zalachat/zalachat/internal/aws/storage"
	"github.com/zalachat/zalachat/internal/domains/entities"
)

type fakeAuth map[string]string

func (a fakeAuth) Authenticate(_ context.Context, token string) (string, error) {
	userId, ok := a[token]
	if !ok {
		return "", errors.New("token is malformed")
	}
	return userId, nil
}

type fakeIdentity struct {
	users      map[string]entities.User
	signUpErr  error
	registered []identity.Registration
	updates    map[string]identity.AttributeUpdate
	mu         sync.Mutex
}

func newFakeIdentity() *fakeIdentity {
	return &fakeIdentity{
		users: map[string]entities.User{
			"A": {Id: "A", Username: "A", Name: "Alice", Email: "alice@example.com"},
			"B": {Id: "B", Username: "B", Name: "Bob", Email: "bob@example.com", Picture: "https://media.example.com/avatars/b.png"},
			"C": {Id: "C", Username: "C", Name: "Carol", Email: "carol@example.com"},
		},
		updates: make(map[string]identity.AttributeUpdate),
	}
}

func (f *fakeIdentity) CurrentUser(ctx context.Context, accessToken string) (entities.User, error) {
	return f.GetUser(ctx, strings.TrimPrefix(accessToken, "token-"))
}

func (f *fakeIdentity) GetUser(_ context.Context, userId string) (entities.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	user, ok := f.users[userId]
	if !ok {
		return entities.User{}, identity.ErrUserNotFound
	}
	return user, nil
}

func (f *fakeIdentity) FindUserByEmail(_ context.Context, email string) (entities.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, user := range f.users {
		if user.Email == email {
			return user, nil
		}
	}
	return entities.User{}, identity.ErrUserNotFound
}

func (f *fakeIdentity) UpdateAttributes(_ context.Context, userId string, update identity.AttributeUpdate) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.updates[userId] = update
	user := f.users[userId]
	if update.Name != nil {
		user.Name = *update.Name
	}
	if update.Picture != nil {
		user.Picture = *update.Picture
	}
	f.users[userId] = user
	return nil
}

func (f *fakeIdentity) SignUp(_ context.Context, reg identity.Registration) error {
	if f.signUpErr != nil {
		return f.signUpErr
	}
	f.registered = append(f.registered, reg)
	return nil
}

func (f *fakeIdentity) ConfirmSignUp(context.Context, string, string) error { return nil }

func (f *fakeIdentity) Login(_ context.Context, username, _ string) (identity.Tokens, error) {
	return identity.Tokens{AccessToken: "token-" + username}, nil
}

func (f *fakeIdentity) ForgotPassword(context.Context, string) error { return nil }

func (f *fakeIdentity) ConfirmForgotPassword(context.Context, string, string, string) error {
	return nil
}

func (f *fakeIdentity) ChangePassword(context.Context, string, string, string) error { return nil }

type fakeStore struct {
	friendships map[[2]string]entities.Friendship
	requests    map[[2]string]entities.FriendRequest
	messages    map[string][]entities.Message
	endpoints   map[string]entities.ApplicationEndpoint
	minted      int
	listErr     error
	mu          sync.Mutex
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		friendships: make(map[[2]string]entities.Friendship),
		requests:    make(map[[2]string]entities.FriendRequest),
		messages:    make(map[string][]entities.Message),
		endpoints:   make(map[string]entities.ApplicationEndpoint),
	}
}

func (s *fakeStore) befriend(a, b, conversationId string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.friendships[[2]string{a, b}] = entities.Friendship{UserId: a, FriendId: b, ConversationId: conversationId}
	s.friendships[[2]string{b, a}] = entities.Friendship{UserId: b, FriendId: a, ConversationId: conversationId}
}

func (s *fakeStore) ListFriendships(_ context.Context, userId string) ([]entities.Friendship, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listErr != nil {
		return nil, s.listErr
	}
	var out []entities.Friendship
	for key, friendship := range s.friendships {
		if key[0] == userId {
			out = append(out, friendship)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].FriendId < out[j].FriendId })
	return out, nil
}

func (s *fakeStore) UpdateFriendshipPair(context.Context, string, string, storage.FriendshipUpdateOptions) error {
	return nil
}

func (s *fakeStore) GetFriendship(_ context.Context, userId, friendId string) (entities.Friendship, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	friendship, ok := s.friendships[[2]string{userId, friendId}]
	if !ok {
		return entities.Friendship{}, storage.ErrFriendshipNotFound
	}
	return friendship, nil
}

func (s *fakeStore) DeleteFriendshipPair(_ context.Context, userId, friendId string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.friendships, [2]string{userId, friendId})
	delete(s.friendships, [2]string{friendId, userId})
	return nil
}

func (s *fakeStore) EnsureConversation(_ context.Context, userId, friendId string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	edge := s.friendships[[2]string{userId, friendId}]
	if edge.ConversationId != "" {
		return edge.ConversationId, nil
	}
	s.minted++
	conversationId := "minted-" + userId + "-" + friendId
	for _, key := range [][2]string{{userId, friendId}, {friendId, userId}} {
		friendship := s.friendships[key]
		friendship.ConversationId = conversationId
		s.friendships[key] = friendship
	}
	return conversationId, nil
}

func (s *fakeStore) GetFriendRequest(_ context.Context, receiverId, requestId string) (entities.FriendRequest, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	request, ok := s.requests[[2]string{receiverId, requestId}]
	if !ok {
		return entities.FriendRequest{}, storage.ErrFriendRequestNotFound
	}
	return request, nil
}

func (s *fakeStore) PutFriendRequest(_ context.Context, request entities.FriendRequest) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.requests[[2]string{request.ReceiverId, request.RequestId}] = request
	return nil
}

func (s *fakeStore) ListPendingFriendRequests(_ context.Context, receiverId string) ([]entities.FriendRequest, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []entities.FriendRequest
	for key, request := range s.requests {
		if key[0] == receiverId && request.Status == entities.FriendRequestPending {
			out = append(out, request)
		}
	}
	return out, nil
}

func (s *fakeStore) HasPendingFriendRequest(ctx context.Context, senderId, receiverId string) (bool, error) {
	requests, err := s.ListPendingFriendRequests(ctx, receiverId)
	if err != nil {
		return false, err
	}
	for _, request := range requests {
		if request.SenderId == senderId {
			return true, nil
		}
	}
	return false, nil
}

func (s *fakeStore) RejectFriendRequest(_ context.Context, receiverId, requestId string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := [2]string{receiverId, requestId}
	request, ok := s.requests[key]
	if !ok || request.Status != entities.FriendRequestPending {
		return storage.ErrFriendRequestNotPending
	}
	request.Status = entities.FriendRequestRejected
	s.requests[key] = request
	return nil
}

func (s *fakeStore) AcceptFriendRequest(
	_ context.Context,
	request entities.FriendRequest,
	receiverName string,
	acceptedAt time.Time,
) (
	entities.Friendship,
	entities.Friendship,
	error,
) {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := [2]string{request.ReceiverId, request.RequestId}
	if s.requests[key].Status != entities.FriendRequestPending {
		return entities.Friendship{}, entities.Friendship{}, storage.ErrFriendRequestNotPending
	}
	conversationId := "conv-" + request.RequestId
	receiverEdge := entities.Friendship{
		UserId:         request.ReceiverId,
		FriendId:       request.SenderId,
		ConversationId: conversationId,
		FriendName:     request.SenderName,
		StartedAt:      acceptedAt,
	}
	senderEdge := entities.Friendship{
		UserId:         request.SenderId,
		FriendId:       request.ReceiverId,
		ConversationId: conversationId,
		FriendName:     receiverName,
		StartedAt:      acceptedAt,
	}
	s.friendships[[2]string{receiverEdge.UserId, receiverEdge.FriendId}] = receiverEdge
	s.friendships[[2]string{senderEdge.UserId, senderEdge.FriendId}] = senderEdge
	request.Status = entities.FriendRequestAccepted
	s.requests[key] = request
	return receiverEdge, senderEdge, nil
}

func (s *fakeStore) addMessage(message entities.Message) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.messages[message.ConversationId] = append(s.messages[message.ConversationId], message)
}

func (s *fakeStore) ListMessages(_ context.Context, conversationId string, limit int, ascending bool) ([]entities.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	messages := append([]entities.Message(nil), s.messages[conversationId]...)
	sort.Slice(messages, func(i, j int) bool {
		if ascending {
			return messages[i].Timestamp < messages[j].Timestamp
		}
		return messages[i].Timestamp > messages[j].Timestamp
	})
	if limit > 0 && len(messages) > limit {
		messages = messages[:limit]
	}
	return messages, nil
}

func (s *fakeStore) LastMessage(ctx context.Context, conversationId string) (entities.Message, error) {
	messages, _ := s.ListMessages(ctx, conversationId, 1, false)
	if len(messages) == 0 {
		return entities.Message{}, storage.ErrMessageNotFound
	}
	return messages[0], nil
}

func (s *fakeStore) GetApplicationEndpoint(_ context.Context, userId string) (entities.ApplicationEndpoint, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	endpoint, ok := s.endpoints[userId]
	if !ok {
		return entities.ApplicationEndpoint{}, storage.ErrApplicationEndpointNotFound
	}
	return endpoint, nil
}

func (s *fakeStore) PutApplicationEndpoint(_ context.Context, endpoint entities.ApplicationEndpoint) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if stored, ok := s.endpoints[endpoint.UserId]; ok && stored.UpdatedAt.After(endpoint.UpdatedAt) {
		return storage.ErrApplicationEndpointStale
	}
	s.endpoints[endpoint.UserId] = endpoint
	return nil
}

type fakeUploader struct {
	uploads []string
}

func (u *fakeUploader) Upload(_ context.Context, prefix, fileName, _ string, body io.Reader) (string, error) {
	if _, err := io.ReadAll(body); err != nil {
		return "", err
	}
	key := prefix + "/" + fileName
	u.uploads = append(u.uploads, key)
	return "https://media.example.com/" + key, nil
}

type fakeNotifier struct {
	sent []notification.PushNotification
	arns []string
}

func (n *fakeNotifier) SendPushNotification(_ context.Context, endpointArn string, push notification.PushNotification) error {
	n.arns = append(n.arns, endpointArn)
	n.sent = append(n.sent, push)
	return nil
}

// sink is a websocket stand-in recording frames emitted through the hub.
type sink struct {
	frames []map[string]json.RawMessage
	mu     sync.Mutex
}

func (s *sink) WriteJSON(v interface{}) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	var frame map[string]json.RawMessage
	if err := json.Unmarshal(b, &frame); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.frames = append(s.frames, frame)
	return nil
}

func (s *sink) WriteControl(int, []byte, time.Time) error { return nil }

func (s *sink) SetWriteDeadline(time.Time) error { return nil }

func (s *sink) Close() error { return nil }

func (s *sink) events(event string) []json.RawMessage {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []json.RawMessage
	for _, frame := range s.frames {
		var t string
		_ = json.Unmarshal(frame["type"], &t)
		if t == event {
			out = append(out, frame["data"])
		}
	}
	return out
}

type apiFixture struct {
	engine   *gin.Engine
	handler  *Handler
	identity *fakeIdentity
	store    *fakeStore
	media    *fakeUploader
	notifier *fakeNotifier
	hub      *relay.Hub
}

func newAPIFixture(t *testing.T) *apiFixture {
	t.Helper()
	gin.SetMode(gin.TestMode)
	f := &apiFixture{
		identity: newFakeIdentity(),
		store:    newFakeStore(),
		media:    &fakeUploader{},
		notifier: &fakeNotifier{},
		hub:      relay.NewHub(),
	}
	f.handler = NewHandler(Deps{
		Auth:     fakeAuth{"token-A": "A", "token-B": "B", "token-C": "C"},
		Identity: f.identity,
		Store:    f.store,
		Media:    f.media,
		Notifier: f.notifier,
		Hub:      f.hub,
	})
	f.handler.newId = func() string { return "req-1" }
	f.handler.now = func() time.Time { return time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC) }
	f.engine = gin.New()
	f.handler.Register(f.engine)
	return f
}

// online registers a live connection for userId and returns its frames.
func (f *apiFixture) online(t *testing.T, userId string) *sink {
	t.Helper()
	s := &sink{}
	c := relay.NewConn(s, userId, relay.ConnOptions{})
	f.hub.Register(c)
	t.Cleanup(func() { f.hub.Unregister(c) })
	return s
}

func (f *apiFixture) do(t *testing.T, method, path, userId string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(b)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if userId != "" {
		req.Header.Set("Authorization", "Bearer token-"+userId)
	}
	w := httptest.NewRecorder()
	f.engine.ServeHTTP(w, req)
	return w
}

func decodeBody(t *testing.T, w *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), v), w.Body.String())
}

func errorOf(t *testing.T, w *httptest.ResponseRecorder) string {
	t.Helper()
	var body map[string]string
	decodeBody(t, w, &body)
	return body["error"]
}
