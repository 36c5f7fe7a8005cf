package relay

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/zalachat/zalachat/internal/aws/storage"
	"github.com/zalachat/zalachat/internal/domains/entities"
	"github.com/zalachat/zalachat/pkg/logging"
	"github.com/zalachat/zalachat/pkg/utils"
	"go.uber.org/zap"
)

type MessageStore interface {
	PutMessage(ctx context.Context, message entities.Message) error
	UpdateMessage(ctx context.Context, conversationId, timestamp string, opts storage.MessageUpdateOptions) (entities.Message, error)
	GetMessageById(ctx context.Context, conversationId, messageId string) (entities.Message, error)
	MarkConversationRead(ctx context.Context, conversationId, userId string) ([]string, error)
	PutGroupMessage(ctx context.Context, message entities.GroupMessage) error
	UpdateGroupMessage(ctx context.Context, groupId, timestamp string, opts storage.MessageUpdateOptions) (entities.GroupMessage, error)
}

// Directory resolves display names for system messages and forwards.
type Directory interface {
	DisplayName(ctx context.Context, userId string) (string, error)
}

// AttachmentOwner recognises URLs of files uploaded to the media bucket.
type AttachmentOwner interface {
	Owns(rawUrl string) bool
}

type handlerFunc func(ctx context.Context, c *Conn, data json.RawMessage) (interface{}, error)

// Router validates inbound events, authorizes them, persists their side
// effects and fans the results out through the hub. Events of one
// connection are dispatched sequentially by its read loop.
type Router struct {
	hub         *Hub
	access      *Access
	friendships FriendshipStore
	messages    MessageStore
	directory   Directory
	attachments AttachmentOwner
	sequencer   *utils.Sequencer
	newId       func() string
	handlers    map[string]handlerFunc
}

func NewRouter(
	hub *Hub,
	friendships FriendshipStore,
	messages MessageStore,
	directory Directory,
	attachments AttachmentOwner,
) *Router {
	r := &Router{
		hub:         hub,
		access:      NewAccess(friendships),
		friendships: friendships,
		messages:    messages,
		directory:   directory,
		attachments: attachments,
		sequencer:   utils.NewSequencer(time.Now),
		newId:       uuid.NewString,
	}
	r.handlers = map[string]handlerFunc{
		"joinConversation":  r.handleJoinConversation,
		"leaveConversation": r.handleLeaveConversation,
		"joinGroup":         r.handleJoinGroup,
		"leaveGroup":        r.handleLeaveGroup,

		"sendMessage":     r.handleSendMessage,
		"recallMessage":   r.handleRecallMessage,
		"deleteMessage":   r.handleDeleteMessage,
		"forwardMessage":  r.handleForwardMessage,
		"markAsRead":      r.handleMarkAsRead,
		"themeChanged":    r.handleThemeChanged,
		"nicknameChanged": r.handleNicknameChanged,
		"reactMessage":    r.handleReactMessage,

		"sendGroupMessage":    r.handleSendGroupMessage,
		"recallGroupMessage":  r.handleRecallGroupMessage,
		"deleteGroupMessage":  r.handleDeleteGroupMessage,
		"forwardGroupMessage": r.handleForwardGroupMessage,

		"callRequest":  r.handleCallRequest,
		"callResponse": r.handleCallResponse,
		"call:offer":   r.handleCallOffer,
		"call:answer":  r.handleCallAnswer,
		"iceCandidate": r.handleIceCandidate,
		"callEnd":      r.handleCallEnd,

		"offer":            r.handleMeshOffer,
		"answer":           r.handleMeshAnswer,
		"candidate":        r.handleMeshCandidate,
		"group:offer":      r.handleGroupOffer,
		"group:answer":     r.handleGroupAnswer,
		"group:candidate":  r.handleGroupCandidate,
		"videoCallStarted": r.handleVideoCallStarted,
		"startVideoCall":   r.handleStartVideoCall,
		"videoCallEnded":   r.handleVideoCallEnded,
	}
	return r
}

func (r *Router) Hub() *Hub {
	return r.hub
}

func (r *Router) Access() *Access {
	return r.access
}

// Dispatch handles one inbound event. A failure is reported to the origin
// connection only, as an error event and, when requested, an ack; the
// connection itself stays open.
func (r *Router) Dispatch(ctx context.Context, c *Conn, in Inbound) {
	start := time.Now()
	label := in.Type

	var (
		result interface{}
		err    error
	)
	handler, ok := r.handlers[in.Type]
	switch {
	case !ok:
		label = "unknown"
		err = InvalidInput("unknown event %q", in.Type)
	case !c.Allow():
		err = &Error{Kind: KindRateLimited, Message: "too many events"}
	default:
		result, err = r.call(ctx, handler, c, in)
	}
	eventDuration.WithLabelValues(label).Observe(time.Since(start).Seconds())

	if err != nil {
		eventsCounter.WithLabelValues(label, string(KindOf(err))).Inc()
		r.fail(c, in, err)
		return
	}
	eventsCounter.WithLabelValues(label, "ok").Inc()
	if in.Ack != "" {
		if result == nil {
			result = ackOk{Status: "ok"}
		}
		r.ack(c, in.Ack, result)
	}
}

func (r *Router) call(ctx context.Context, handler handlerFunc, c *Conn, in Inbound) (result interface{}, err error) {
	defer func() {
		if p := recover(); p != nil {
			err = Upstream("internal error", fmt.Errorf("panic: %v", p))
		}
	}()
	return handler(ctx, c, in.Data)
}

func (r *Router) fail(c *Conn, in Inbound, err error) {
	fields := []zap.Field{
		zap.String("event", in.Type),
		zap.String("user_id", c.userId),
		zap.String("conn_id", c.id),
		zap.Error(err),
	}
	if KindOf(err) == KindUpstreamFailure {
		logging.Error("event failed", fields...)
	} else {
		logging.Warn("event rejected", fields...)
	}

	emitErr := c.Emit("error", ErrorPayload{
		Event:   in.Type,
		Code:    KindOf(err),
		Message: PublicMessage(err),
	})
	if emitErr != nil {
		logging.Warn("failed to emit error", zap.String("conn_id", c.id), zap.Error(emitErr))
	}
	if in.Ack != "" {
		r.ack(c, in.Ack, ackError{Error: PublicMessage(err)})
	}
}

func (r *Router) ack(c *Conn, id string, data interface{}) {
	err := c.writeJson(ackFrame{Type: "ack", Ack: id, Data: data})
	if err != nil {
		logging.Warn("failed to ack", zap.String("conn_id", c.id), zap.Error(err))
	}
}

// displayName falls back to the user id when the directory is unavailable.
func (r *Router) displayName(ctx context.Context, userId string) string {
	if r.directory == nil {
		return userId
	}
	name, err := r.directory.DisplayName(ctx, userId)
	if err != nil || name == "" {
		logging.Warn("failed to resolve display name", zap.String("user_id", userId), zap.Error(err))
		return userId
	}
	return name
}

func (r *Router) handleJoinConversation(ctx context.Context, c *Conn, data json.RawMessage) (interface{}, error) {
	var p conversationRef
	if err := decode(data, &p); err != nil {
		return nil, err
	}
	if p.ConversationId == "" {
		return nil, InvalidInput("conversationId is required")
	}
	if _, err := r.access.authorize(ctx, c.userId, p.ConversationId); err != nil {
		return nil, err
	}
	r.hub.Join(c, RoomConversation, p.ConversationId)
	logging.Debug("joined conversation",
		zap.String("user_id", c.userId),
		zap.String("conversation_id", p.ConversationId),
	)
	return nil, nil
}

func (r *Router) handleLeaveConversation(_ context.Context, c *Conn, data json.RawMessage) (interface{}, error) {
	var p conversationRef
	if err := decode(data, &p); err != nil {
		return nil, err
	}
	if p.ConversationId == "" {
		return nil, InvalidInput("conversationId is required")
	}
	r.hub.Leave(c, RoomConversation, p.ConversationId)
	return nil, nil
}

func (r *Router) handleJoinGroup(_ context.Context, c *Conn, data json.RawMessage) (interface{}, error) {
	var p groupRef
	if err := decode(data, &p); err != nil {
		return nil, err
	}
	if p.GroupId == "" {
		return nil, InvalidInput("groupId is required")
	}
	r.hub.Join(c, RoomGroup, p.GroupId)
	logging.Debug("joined group", zap.String("user_id", c.userId), zap.String("group_id", p.GroupId))
	return nil, nil
}

func (r *Router) handleLeaveGroup(_ context.Context, c *Conn, data json.RawMessage) (interface{}, error) {
	var p groupRef
	if err := decode(data, &p); err != nil {
		return nil, err
	}
	if p.GroupId == "" {
		return nil, InvalidInput("groupId is required")
	}
	r.hub.Leave(c, RoomGroup, p.GroupId)
	return nil, nil
}
