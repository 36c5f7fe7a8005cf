package relay

import (
	"context"
	"encoding/json"

	"github.com/zalachat/zalachat/pkg/logging"
	"go.uber.org/zap"
)

// Signaling payloads are relayed without persistence. Direct events go to
// the personal room of the addressed user; group events go to the group
// room.

func (r *Router) relayToUser(c *Conn, to, event string, data interface{}) {
	delivered := r.hub.EmitToUser(to, event, data)
	logging.Debug("signal relayed",
		zap.String("event", event),
		zap.String("from", c.userId),
		zap.String("to", to),
		zap.Int("delivered", delivered),
	)
}

func (r *Router) handleCallRequest(_ context.Context, c *Conn, data json.RawMessage) (interface{}, error) {
	var p callRequestPayload
	if err := decode(data, &p); err != nil {
		return nil, err
	}
	if p.ConversationId == "" || p.To == "" || p.CallType == "" {
		return nil, InvalidInput("invalid call request data")
	}
	if p.To == c.userId {
		return nil, InvalidInput("cannot call yourself")
	}
	r.relayToUser(c, p.To, "callRequest", callRequestPayload{
		From:           c.userId,
		ConversationId: p.ConversationId,
		CallType:       p.CallType,
	})
	return nil, nil
}

func (r *Router) handleCallResponse(_ context.Context, c *Conn, data json.RawMessage) (interface{}, error) {
	var p callResponsePayload
	if err := decode(data, &p); err != nil {
		return nil, err
	}
	if p.ConversationId == "" || p.To == "" || p.Accepted == nil {
		return nil, InvalidInput("invalid call response data")
	}
	r.relayToUser(c, p.To, "callResponse", callResponsePayload{
		From:           c.userId,
		ConversationId: p.ConversationId,
		Accepted:       p.Accepted,
	})
	return nil, nil
}

func (r *Router) handleCallOffer(_ context.Context, c *Conn, data json.RawMessage) (interface{}, error) {
	var p callSignalPayload
	if err := decode(data, &p); err != nil {
		return nil, err
	}
	if p.ConversationId == "" || p.To == "" || !present(p.Offer) {
		return nil, InvalidInput("invalid call offer data")
	}
	r.relayToUser(c, p.To, "offer", callSignalPayload{
		From:           c.userId,
		ConversationId: p.ConversationId,
		Offer:          p.Offer,
	})
	return nil, nil
}

func (r *Router) handleCallAnswer(_ context.Context, c *Conn, data json.RawMessage) (interface{}, error) {
	var p callSignalPayload
	if err := decode(data, &p); err != nil {
		return nil, err
	}
	if p.ConversationId == "" || p.To == "" || !present(p.Answer) {
		return nil, InvalidInput("invalid call answer data")
	}
	r.relayToUser(c, p.To, "answer", callSignalPayload{
		From:           c.userId,
		ConversationId: p.ConversationId,
		Answer:         p.Answer,
	})
	return nil, nil
}

func (r *Router) handleIceCandidate(_ context.Context, c *Conn, data json.RawMessage) (interface{}, error) {
	var p callSignalPayload
	if err := decode(data, &p); err != nil {
		return nil, err
	}
	if p.ConversationId == "" || p.To == "" || !present(p.Candidate) {
		return nil, InvalidInput("invalid ICE candidate data")
	}
	r.relayToUser(c, p.To, "iceCandidate", callSignalPayload{
		From:           c.userId,
		ConversationId: p.ConversationId,
		Candidate:      p.Candidate,
	})
	return nil, nil
}

func (r *Router) handleCallEnd(_ context.Context, c *Conn, data json.RawMessage) (interface{}, error) {
	var p callSignalPayload
	if err := decode(data, &p); err != nil {
		return nil, err
	}
	if p.ConversationId == "" || p.To == "" {
		return nil, InvalidInput("invalid call end data")
	}
	r.relayToUser(c, p.To, "callEnd", callSignalPayload{
		From:           c.userId,
		ConversationId: p.ConversationId,
	})
	return nil, nil
}

// decodeMesh validates a group call payload. The sender must be the caller
// and a member of the group room.
func (r *Router) decodeMesh(c *Conn, data json.RawMessage, needSdp, needCandidate, needReceiver bool) (meshSignalPayload, error) {
	var p meshSignalPayload
	if err := decode(data, &p); err != nil {
		return p, err
	}
	if p.GroupId == "" || p.SenderId == "" ||
		(needSdp && !present(p.Sdp)) ||
		(needCandidate && !present(p.Candidate)) ||
		(needReceiver && p.ReceiverId == "") {
		return p, InvalidInput("invalid group call data")
	}
	if p.SenderId != c.userId {
		return p, InvalidInput("senderId does not match the connection")
	}
	if err := r.requireGroupMember(c, p.GroupId); err != nil {
		return p, err
	}
	return p, nil
}

// Mesh offers and answers are addressed to one peer of a group call.
func (r *Router) handleMeshOffer(_ context.Context, c *Conn, data json.RawMessage) (interface{}, error) {
	p, err := r.decodeMesh(c, data, true, false, true)
	if err != nil {
		return nil, err
	}
	r.relayToUser(c, p.ReceiverId, "offer", p)
	return nil, nil
}

func (r *Router) handleMeshAnswer(_ context.Context, c *Conn, data json.RawMessage) (interface{}, error) {
	p, err := r.decodeMesh(c, data, true, false, true)
	if err != nil {
		return nil, err
	}
	r.relayToUser(c, p.ReceiverId, "answer", p)
	return nil, nil
}

func (r *Router) handleMeshCandidate(_ context.Context, c *Conn, data json.RawMessage) (interface{}, error) {
	p, err := r.decodeMesh(c, data, false, true, false)
	if err != nil {
		return nil, err
	}
	r.hub.Broadcast(RoomGroup, p.GroupId, c, "candidate", p)
	return nil, nil
}

func (r *Router) handleGroupOffer(_ context.Context, c *Conn, data json.RawMessage) (interface{}, error) {
	p, err := r.decodeMesh(c, data, true, false, false)
	if err != nil {
		return nil, err
	}
	r.hub.Broadcast(RoomGroup, p.GroupId, nil, "group:offer", p)
	return nil, nil
}

func (r *Router) handleGroupAnswer(_ context.Context, c *Conn, data json.RawMessage) (interface{}, error) {
	p, err := r.decodeMesh(c, data, true, false, true)
	if err != nil {
		return nil, err
	}
	r.hub.Broadcast(RoomGroup, p.GroupId, nil, "group:answer", p)
	return nil, nil
}

func (r *Router) handleGroupCandidate(_ context.Context, c *Conn, data json.RawMessage) (interface{}, error) {
	p, err := r.decodeMesh(c, data, false, true, false)
	if err != nil {
		return nil, err
	}
	r.hub.Broadcast(RoomGroup, p.GroupId, nil, "group:candidate", p)
	return nil, nil
}

func (r *Router) groupCallEvent(c *Conn, data json.RawMessage, event string, includeSender bool) (interface{}, error) {
	var p groupRef
	if err := decode(data, &p); err != nil {
		return nil, err
	}
	if p.GroupId == "" {
		return nil, InvalidInput("groupId is required")
	}
	if err := r.requireGroupMember(c, p.GroupId); err != nil {
		return nil, err
	}
	var except *Conn
	if !includeSender {
		except = c
	}
	r.hub.Broadcast(RoomGroup, p.GroupId, except, event, p)
	logging.Info("group call event",
		zap.String("event", event),
		zap.String("group_id", p.GroupId),
		zap.String("user_id", c.userId),
	)
	return nil, nil
}

func (r *Router) handleVideoCallStarted(_ context.Context, c *Conn, data json.RawMessage) (interface{}, error) {
	return r.groupCallEvent(c, data, "videoCallStarted", true)
}

func (r *Router) handleStartVideoCall(_ context.Context, c *Conn, data json.RawMessage) (interface{}, error) {
	return r.groupCallEvent(c, data, "startVideoCall", false)
}

func (r *Router) handleVideoCallEnded(_ context.Context, c *Conn, data json.RawMessage) (interface{}, error) {
	return r.groupCallEvent(c, data, "videoCallEnded", false)
}
