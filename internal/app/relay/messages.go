package relay

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/zalachat/zalachat/internal/aws/storage"
	"github.com/zalachat/zalachat/internal/domains/dtos"
	"github.com/zalachat/zalachat/internal/domains/entities"
	"github.com/zalachat/zalachat/pkg/utils"
)

// clientMessageType resolves the type a client may set on its own
// messages. System and recalled messages are produced by the server only.
func clientMessageType(raw string) (entities.MessageType, error) {
	if raw == "" {
		return entities.MessageTypeText, nil
	}
	t := entities.MessageType(raw)
	switch t {
	case entities.MessageTypeText, entities.MessageTypeImage, entities.MessageTypeVideo,
		entities.MessageTypeAudio, entities.MessageTypeFile:
		return t, nil
	}
	return "", InvalidInput("invalid message type %q", raw)
}

func (r *Router) appendMessage(ctx context.Context, message entities.Message) (entities.Message, error) {
	message.MessageId = r.newId()
	message.Timestamp = r.sequencer.NextString()
	message.Status = entities.MessageStatusSent
	if err := r.messages.PutMessage(ctx, message); err != nil {
		return entities.Message{}, Upstream("failed to save message", err)
	}
	return message, nil
}

func (r *Router) broadcastMessage(message entities.Message) {
	resp := dtos.MessageResponseFromEntity(message)
	r.hub.Broadcast(RoomConversation, message.ConversationId, nil, "receiveMessage", resp)
	r.hub.Broadcast(RoomConversation, message.ConversationId, nil, "lastMessageUpdated", dtos.LastMessageResponse{
		ConversationId: message.ConversationId,
		LastMessage:    &resp,
	})
}

func (r *Router) handleSendMessage(ctx context.Context, c *Conn, data json.RawMessage) (interface{}, error) {
	var p sendMessagePayload
	if err := decode(data, &p); err != nil {
		return nil, err
	}
	if p.ConversationId == "" || p.Content == "" || p.SenderId == "" {
		return nil, InvalidInput("conversationId, content and senderId are required")
	}
	if p.SenderId != c.userId {
		return nil, InvalidInput("senderId does not match the connection")
	}
	messageType, err := clientMessageType(p.Type)
	if err != nil {
		return nil, err
	}
	edge, err := r.access.authorize(ctx, c.userId, p.ConversationId)
	if err != nil {
		return nil, err
	}

	message, err := r.appendMessage(ctx, entities.Message{
		ConversationId: p.ConversationId,
		SenderId:       c.userId,
		ReceiverId:     edge.FriendId,
		Content:        p.Content,
		Type:           messageType,
	})
	if err != nil {
		return nil, err
	}
	r.broadcastMessage(message)
	return SendAck{Status: "sent", MessageId: message.MessageId}, nil
}

func (r *Router) updateMessage(
	ctx context.Context,
	c *Conn,
	data json.RawMessage,
	opts storage.MessageUpdateOptions,
	event string,
) (
	interface{},
	error,
) {
	var p messageRef
	if err := decode(data, &p); err != nil {
		return nil, err
	}
	if p.ConversationId == "" || p.Timestamp == "" {
		return nil, InvalidInput("conversationId and timestamp are required")
	}
	if _, err := r.access.authorize(ctx, c.userId, p.ConversationId); err != nil {
		return nil, err
	}
	_, err := r.messages.UpdateMessage(ctx, p.ConversationId, p.Timestamp, opts)
	if err != nil {
		if errors.Is(err, storage.ErrMessageNotFound) {
			return nil, NotFound("message not found", err)
		}
		return nil, Upstream("failed to update message", err)
	}
	r.hub.Broadcast(RoomConversation, p.ConversationId, nil, event, messageRef{
		ConversationId: p.ConversationId,
		Timestamp:      p.Timestamp,
	})
	return nil, nil
}

func (r *Router) handleRecallMessage(ctx context.Context, c *Conn, data json.RawMessage) (interface{}, error) {
	status := entities.MessageStatusRecalled
	messageType := entities.MessageTypeRecalled
	return r.updateMessage(ctx, c, data, storage.MessageUpdateOptions{
		Status: &status,
		Type:   &messageType,
	}, "messageRecalled")
}

func (r *Router) handleDeleteMessage(ctx context.Context, c *Conn, data json.RawMessage) (interface{}, error) {
	status := entities.MessageStatusDeleted
	return r.updateMessage(ctx, c, data, storage.MessageUpdateOptions{
		Status: &status,
	}, "messageDeleted")
}

func (r *Router) handleForwardMessage(ctx context.Context, c *Conn, data json.RawMessage) (interface{}, error) {
	var p forwardMessagePayload
	if err := decode(data, &p); err != nil {
		return nil, err
	}
	if p.ConversationId == "" || p.NewConversationId == "" || p.Content == "" {
		return nil, InvalidInput("conversationId, newConversationId and content are required")
	}
	messageType, err := clientMessageType(p.Type)
	if err != nil {
		return nil, err
	}
	if _, err := r.access.authorize(ctx, c.userId, p.ConversationId); err != nil {
		return nil, err
	}
	target, err := r.access.authorize(ctx, c.userId, p.NewConversationId)
	if err != nil {
		return nil, err
	}

	forwardedFrom := p.ForwardedFrom
	if forwardedFrom == "" {
		forwardedFrom = c.userId
	}
	forwardedName := p.ForwardedName
	if forwardedName == "" {
		forwardedName = r.displayName(ctx, forwardedFrom)
	}

	message, err := r.appendMessage(ctx, entities.Message{
		ConversationId: p.NewConversationId,
		SenderId:       c.userId,
		ReceiverId:     target.FriendId,
		Content:        p.Content,
		Type:           messageType,
		ForwardedFrom:  forwardedFrom,
		ForwardedName:  forwardedName,
	})
	if err != nil {
		return nil, err
	}
	r.broadcastMessage(message)
	return SendAck{Status: "sent", MessageId: message.MessageId}, nil
}

func (r *Router) handleMarkAsRead(ctx context.Context, c *Conn, data json.RawMessage) (interface{}, error) {
	var p markAsReadPayload
	if err := decode(data, &p); err != nil {
		return nil, err
	}
	if p.ConversationId == "" || p.UserId == "" {
		return nil, InvalidInput("conversationId and userId are required")
	}
	if p.UserId != c.userId {
		return nil, InvalidInput("userId does not match the connection")
	}
	if _, err := r.access.authorize(ctx, c.userId, p.ConversationId); err != nil {
		return nil, err
	}
	if _, err := r.messages.MarkConversationRead(ctx, p.ConversationId, c.userId); err != nil {
		return nil, Upstream("failed to mark messages as read", err)
	}
	r.hub.Broadcast(RoomConversation, p.ConversationId, nil, "messagesRead", messagesReadPayload{
		ConversationId: p.ConversationId,
		UserId:         c.userId,
	})
	return nil, nil
}

func (r *Router) handleThemeChanged(ctx context.Context, c *Conn, data json.RawMessage) (interface{}, error) {
	var p themeChangedPayload
	if err := decode(data, &p); err != nil {
		return nil, err
	}
	if p.ConversationId == "" || p.NewTheme == "" {
		return nil, InvalidInput("conversationId and newTheme are required")
	}
	if p.From != c.userId {
		return nil, InvalidInput("from does not match the connection")
	}
	edge, err := r.access.authorize(ctx, c.userId, p.ConversationId)
	if err != nil {
		return nil, err
	}
	err = r.friendships.UpdateFriendshipPair(ctx, c.userId, edge.FriendId, storage.FriendshipUpdateOptions{
		Theme: &p.NewTheme,
	})
	if err != nil {
		return nil, friendshipUpdateError(err)
	}

	content := fmt.Sprintf("%s changed the theme to %s",
		r.displayName(ctx, c.userId),
		utils.ThemeDisplayName(p.NewTheme),
	)
	if err := r.systemMessage(ctx, p.ConversationId, edge.FriendId, content); err != nil {
		return nil, err
	}
	r.hub.Broadcast(RoomConversation, p.ConversationId, nil, "themeChanged", p)
	return nil, nil
}

func (r *Router) handleNicknameChanged(ctx context.Context, c *Conn, data json.RawMessage) (interface{}, error) {
	var p nicknameChangedPayload
	if err := decode(data, &p); err != nil {
		return nil, err
	}
	if p.ConversationId == "" || p.NewNickname == "" {
		return nil, InvalidInput("conversationId and newNickname are required")
	}
	edge, err := r.access.authorize(ctx, c.userId, p.ConversationId)
	if err != nil {
		return nil, err
	}
	err = r.friendships.UpdateFriendshipPair(ctx, c.userId, edge.FriendId, storage.FriendshipUpdateOptions{
		FriendName: &p.NewNickname,
	})
	if err != nil {
		return nil, friendshipUpdateError(err)
	}

	content := fmt.Sprintf("%s changed the nickname to %s", r.displayName(ctx, c.userId), p.NewNickname)
	if err := r.systemMessage(ctx, p.ConversationId, edge.FriendId, content); err != nil {
		return nil, err
	}
	p.From = c.userId
	r.hub.Broadcast(RoomConversation, p.ConversationId, nil, "nicknameChanged", p)
	return nil, nil
}

func friendshipUpdateError(err error) error {
	if errors.Is(err, storage.ErrFriendshipNotFound) {
		return NotFound("friendship not found", err)
	}
	return Upstream("failed to update friendship", err)
}

// systemMessage records a server authored message in the conversation and
// broadcasts it like any other message.
func (r *Router) systemMessage(ctx context.Context, conversationId, receiverId, content string) error {
	message, err := r.appendMessage(ctx, entities.Message{
		ConversationId: conversationId,
		SenderId:       entities.SystemSenderId,
		ReceiverId:     receiverId,
		Content:        content,
		Type:           entities.MessageTypeSystem,
	})
	if err != nil {
		return err
	}
	r.hub.Broadcast(RoomConversation, conversationId, nil, "receiveMessage", dtos.MessageResponseFromEntity(message))
	return nil
}

func (r *Router) handleReactMessage(ctx context.Context, c *Conn, data json.RawMessage) (interface{}, error) {
	var p reactMessagePayload
	if err := decode(data, &p); err != nil {
		return nil, err
	}
	if p.ConversationId == "" || p.MessageId == "" {
		return nil, InvalidInput("conversationId and messageId are required")
	}
	if _, err := r.access.authorize(ctx, c.userId, p.ConversationId); err != nil {
		return nil, err
	}
	message, err := r.messages.GetMessageById(ctx, p.ConversationId, p.MessageId)
	if err != nil {
		if errors.Is(err, storage.ErrMessageNotFound) {
			return nil, NotFound("message not found", err)
		}
		return nil, Upstream("failed to load message", err)
	}

	opts := storage.MessageUpdateOptions{Reaction: &p.Reaction}
	if p.Reaction == "" {
		opts = storage.MessageUpdateOptions{ClearReaction: true}
	}
	if _, err := r.messages.UpdateMessage(ctx, p.ConversationId, message.Timestamp, opts); err != nil {
		if errors.Is(err, storage.ErrMessageNotFound) {
			return nil, NotFound("message not found", err)
		}
		return nil, Upstream("failed to react to message", err)
	}
	r.hub.Broadcast(RoomConversation, p.ConversationId, nil, "messageReacted", p)
	return nil, nil
}
