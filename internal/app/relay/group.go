package relay

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/zalachat/zalachat/internal/aws/storage"
	"github.com/zalachat/zalachat/internal/domains/dtos"
	"github.com/zalachat/zalachat/internal/domains/entities"
	"github.com/zalachat/zalachat/pkg/utils"
)

// Group rosters live outside the relay, so a connection may act on a group
// only after joining its room.
func (r *Router) requireGroupMember(c *Conn, groupId string) error {
	if !r.hub.IsMember(c, RoomGroup, groupId) {
		return Unauthorized("not a member of group")
	}
	return nil
}

// groupMessageType types uploaded attachments by extension and falls back
// to the client supplied type for everything else.
func (r *Router) groupMessageType(content, raw string) (entities.MessageType, error) {
	if r.attachments != nil && r.attachments.Owns(content) {
		return entities.MessageType(utils.AttachmentType(content)), nil
	}
	return clientMessageType(raw)
}

func (r *Router) appendGroupMessage(ctx context.Context, message entities.GroupMessage) (entities.GroupMessage, error) {
	message.MessageId = r.newId()
	message.Timestamp = r.sequencer.NextString()
	message.Status = entities.MessageStatusSent
	if err := r.messages.PutGroupMessage(ctx, message); err != nil {
		return entities.GroupMessage{}, Upstream("failed to save group message", err)
	}
	r.hub.Broadcast(RoomGroup, message.GroupId, nil, "receiveGroupMessage", dtos.GroupMessageResponseFromEntity(message))
	return message, nil
}

func (r *Router) handleSendGroupMessage(ctx context.Context, c *Conn, data json.RawMessage) (interface{}, error) {
	var p sendGroupMessagePayload
	if err := decode(data, &p); err != nil {
		return nil, err
	}
	if p.GroupId == "" || p.Content == "" {
		return nil, InvalidInput("groupId and content are required")
	}
	if err := r.requireGroupMember(c, p.GroupId); err != nil {
		return nil, err
	}
	messageType, err := r.groupMessageType(p.Content, p.Type)
	if err != nil {
		return nil, err
	}
	message, err := r.appendGroupMessage(ctx, entities.GroupMessage{
		GroupId:  p.GroupId,
		SenderId: c.userId,
		Content:  p.Content,
		Type:     messageType,
	})
	if err != nil {
		return nil, err
	}
	return SendAck{Status: "sent", MessageId: message.MessageId}, nil
}

func (r *Router) updateGroupMessage(
	ctx context.Context,
	c *Conn,
	data json.RawMessage,
	opts storage.MessageUpdateOptions,
	event string,
) (
	interface{},
	error,
) {
	var p groupMessageRef
	if err := decode(data, &p); err != nil {
		return nil, err
	}
	if p.GroupId == "" || p.Timestamp == "" {
		return nil, InvalidInput("groupId and timestamp are required")
	}
	if err := r.requireGroupMember(c, p.GroupId); err != nil {
		return nil, err
	}
	_, err := r.messages.UpdateGroupMessage(ctx, p.GroupId, p.Timestamp, opts)
	if err != nil {
		if errors.Is(err, storage.ErrMessageNotFound) {
			return nil, NotFound("message not found", err)
		}
		return nil, Upstream("failed to update group message", err)
	}
	r.hub.Broadcast(RoomGroup, p.GroupId, nil, event, p)
	return nil, nil
}

func (r *Router) handleRecallGroupMessage(ctx context.Context, c *Conn, data json.RawMessage) (interface{}, error) {
	status := entities.MessageStatusRecalled
	messageType := entities.MessageTypeRecalled
	return r.updateGroupMessage(ctx, c, data, storage.MessageUpdateOptions{
		Status: &status,
		Type:   &messageType,
	}, "groupMessageRecalled")
}

func (r *Router) handleDeleteGroupMessage(ctx context.Context, c *Conn, data json.RawMessage) (interface{}, error) {
	status := entities.MessageStatusDeleted
	return r.updateGroupMessage(ctx, c, data, storage.MessageUpdateOptions{
		Status: &status,
	}, "groupMessageDeleted")
}

func (r *Router) handleForwardGroupMessage(ctx context.Context, c *Conn, data json.RawMessage) (interface{}, error) {
	var p forwardGroupMessagePayload
	if err := decode(data, &p); err != nil {
		return nil, err
	}
	if p.GroupId == "" || p.NewGroupId == "" || p.Content == "" {
		return nil, InvalidInput("groupId, newGroupId and content are required")
	}
	if err := r.requireGroupMember(c, p.GroupId); err != nil {
		return nil, err
	}
	if err := r.requireGroupMember(c, p.NewGroupId); err != nil {
		return nil, err
	}
	messageType, err := r.groupMessageType(p.Content, p.Type)
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
	message, err := r.appendGroupMessage(ctx, entities.GroupMessage{
		GroupId:       p.NewGroupId,
		SenderId:      c.userId,
		Content:       p.Content,
		Type:          messageType,
		ForwardedFrom: forwardedFrom,
		ForwardedName: forwardedName,
	})
	if err != nil {
		return nil, err
	}
	return SendAck{Status: "sent", MessageId: message.MessageId}, nil
}
