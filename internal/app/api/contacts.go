package api

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/zalachat/zalachat/internal/app/relay"
	"github.com/zalachat/zalachat/internal/aws/notification"
	"github.com/zalachat/zalachat/internal/aws/storage"
	"github.com/zalachat/zalachat/internal/domains/dtos"
	"github.com/zalachat/zalachat/internal/domains/entities"
	"github.com/zalachat/zalachat/pkg/logging"
	"go.uber.org/zap"
)

func newRequestId() string {
	return uuid.NewString()
}

type friendListUpdate struct {
	UserSub   string `json:"userSub"`
	Action    string `json:"action"`
	FriendSub string `json:"friendSub"`
}

func (h *Handler) displayName(ctx context.Context, userId string) string {
	user, err := h.identity.GetUser(ctx, userId)
	if err != nil {
		logging.Warn("failed to resolve display name", zap.String("user_id", userId), zap.Error(err))
		return userId
	}
	return user.DisplayName()
}

// notifyFriendList tells both sides that their friend lists changed.
func (h *Handler) notifyFriendList(action, userId, friendId string) {
	h.emit(userId, "friendListUpdated", friendListUpdate{UserSub: userId, Action: action, FriendSub: friendId})
	h.emit(friendId, "friendListUpdated", friendListUpdate{UserSub: friendId, Action: action, FriendSub: userId})
}

func (h *Handler) sendFriendRequest(c *gin.Context) {
	ctx := c.Request.Context()
	senderId := currentUserId(c)

	var req dtos.SendFriendRequestRequest
	if !bindJSON(c, &req) {
		return
	}
	receiver, err := h.identity.FindUserByEmail(ctx, req.ReceiverEmail)
	if err != nil {
		abort(c, providerError("failed to look up receiver", err))
		return
	}
	if receiver.Id == senderId {
		abort(c, relay.InvalidInput("cannot send a friend request to yourself"))
		return
	}
	_, err = h.store.GetFriendship(ctx, senderId, receiver.Id)
	switch {
	case err == nil:
		abort(c, relay.InvalidInput("already friends"))
		return
	case !errors.Is(err, storage.ErrFriendshipNotFound):
		abort(c, relay.Upstream("failed to check friendship", err))
		return
	}
	pending, err := h.store.HasPendingFriendRequest(ctx, senderId, receiver.Id)
	if err != nil {
		abort(c, relay.Upstream("failed to check friend requests", err))
		return
	}
	if pending {
		abort(c, relay.InvalidInput("friend request already sent"))
		return
	}

	request := entities.FriendRequest{
		ReceiverId: receiver.Id,
		RequestId:  h.newId(),
		SenderId:   senderId,
		SenderName: h.displayName(ctx, senderId),
		Status:     entities.FriendRequestPending,
		CreatedAt:  h.now().UTC(),
	}
	if err := h.store.PutFriendRequest(ctx, request); err != nil {
		abort(c, relay.Upstream("failed to save friend request", err))
		return
	}

	h.emit(receiver.Id, "receiveFriendRequest", dtos.FriendRequestResponseFromEntity(request))
	h.emit(senderId, "friendRequestSent", gin.H{
		"receiverId":   receiver.Id,
		"receiverName": receiver.DisplayName(),
	})
	if h.hub == nil || !h.hub.IsOnline(receiver.Id) {
		h.pushFriendRequest(ctx, request)
	}

	resp := success("friend request sent")
	resp["friendSub"] = receiver.Id
	c.JSON(http.StatusOK, resp)
}

// pushFriendRequest notifies an offline receiver through its registered
// device. Failures are logged only.
func (h *Handler) pushFriendRequest(ctx context.Context, request entities.FriendRequest) {
	if h.notifier == nil {
		return
	}
	endpoint, err := h.store.GetApplicationEndpoint(ctx, request.ReceiverId)
	if err != nil {
		if !isNotFound(err) {
			logging.Warn("failed to load application endpoint",
				zap.String("user_id", request.ReceiverId),
				zap.Error(err),
			)
		}
		return
	}
	err = h.notifier.SendPushNotification(ctx, endpoint.EndpointArn, notification.PushNotification{
		Title: "New friend request",
		Body:  request.SenderName + " sent you a friend request",
		Data: map[string]string{
			"type":      "friendRequest",
			"requestId": request.RequestId,
			"senderId":  request.SenderId,
		},
	})
	if err != nil {
		logging.Warn("failed to push friend request",
			zap.String("user_id", request.ReceiverId),
			zap.Error(err),
		)
	}
}

func (h *Handler) listFriendRequests(c *gin.Context) {
	requests, err := h.store.ListPendingFriendRequests(c.Request.Context(), currentUserId(c))
	if err != nil {
		abort(c, relay.Upstream("failed to load friend requests", err))
		return
	}
	resp := make([]dtos.FriendRequestResponse, 0, len(requests))
	for _, request := range requests {
		resp = append(resp, dtos.FriendRequestResponseFromEntity(request))
	}
	c.JSON(http.StatusOK, resp)
}

// pendingRequest loads a request addressed to the caller and checks that it
// has not been handled yet.
func (h *Handler) pendingRequest(ctx context.Context, receiverId, requestId string) (entities.FriendRequest, error) {
	request, err := h.store.GetFriendRequest(ctx, receiverId, requestId)
	if err != nil {
		if errors.Is(err, storage.ErrFriendRequestNotFound) {
			return request, relay.NotFound("friend request not found", err)
		}
		return request, relay.Upstream("failed to load friend request", err)
	}
	if request.Status != entities.FriendRequestPending {
		return request, relay.InvalidInput("friend request already handled")
	}
	return request, nil
}

func (h *Handler) acceptFriendRequest(c *gin.Context) {
	ctx := c.Request.Context()
	receiverId := currentUserId(c)

	var req dtos.FriendRequestActionRequest
	if !bindJSON(c, &req) {
		return
	}
	request, err := h.pendingRequest(ctx, receiverId, req.RequestId)
	if err != nil {
		abort(c, err)
		return
	}
	receiverEdge, senderEdge, err := h.store.AcceptFriendRequest(ctx, request, h.displayName(ctx, receiverId), h.now().UTC())
	if err != nil {
		switch {
		case errors.Is(err, storage.ErrFriendRequestNotPending):
			abort(c, relay.InvalidInput("friend request already handled"))
		case errors.Is(err, storage.ErrFriendshipExists):
			abort(c, relay.InvalidInput("already friends"))
		default:
			abort(c, relay.Upstream("failed to accept friend request", err))
		}
		return
	}

	h.emit(request.SenderId, "friendRequestAcceptedClient", dtos.FriendResponseFromEntity(senderEdge))
	h.emit(receiverId, "friendAdded", dtos.FriendResponseFromEntity(receiverEdge))
	h.notifyFriendList("accept", receiverId, request.SenderId)

	resp := success("friend request accepted")
	resp["friendSub"] = request.SenderId
	resp["conversationId"] = receiverEdge.ConversationId
	c.JSON(http.StatusOK, resp)
}

func (h *Handler) rejectFriendRequest(c *gin.Context) {
	ctx := c.Request.Context()
	receiverId := currentUserId(c)

	var req dtos.FriendRequestActionRequest
	if !bindJSON(c, &req) {
		return
	}
	request, err := h.pendingRequest(ctx, receiverId, req.RequestId)
	if err != nil {
		abort(c, err)
		return
	}
	if err := h.store.RejectFriendRequest(ctx, receiverId, req.RequestId); err != nil {
		if errors.Is(err, storage.ErrFriendRequestNotPending) {
			abort(c, relay.InvalidInput("friend request already handled"))
			return
		}
		abort(c, relay.Upstream("failed to reject friend request", err))
		return
	}

	h.emit(request.SenderId, "friendRequestRejectedClient", gin.H{"receiverId": receiverId})
	h.notifyFriendList("reject", receiverId, request.SenderId)
	c.JSON(http.StatusOK, success("friend request rejected"))
}

func (h *Handler) listFriends(c *gin.Context) {
	friendships, err := h.store.ListFriendships(c.Request.Context(), currentUserId(c))
	if err != nil {
		abort(c, relay.Upstream("failed to load friends", err))
		return
	}
	friends := make([]dtos.FriendResponse, 0, len(friendships))
	for _, friendship := range friendships {
		friends = append(friends, dtos.FriendResponseFromEntity(friendship))
	}
	c.JSON(http.StatusOK, gin.H{"friends": friends})
}

func (h *Handler) removeFriend(c *gin.Context) {
	ctx := c.Request.Context()
	userId := currentUserId(c)

	var req dtos.RemoveFriendRequest
	if !bindJSON(c, &req) {
		return
	}
	if req.FriendId == userId {
		abort(c, relay.InvalidInput("cannot remove yourself"))
		return
	}
	if _, err := h.store.GetFriendship(ctx, userId, req.FriendId); err != nil {
		if errors.Is(err, storage.ErrFriendshipNotFound) {
			abort(c, relay.NotFound("friend not found", err))
			return
		}
		abort(c, relay.Upstream("failed to load friendship", err))
		return
	}
	if err := h.store.DeleteFriendshipPair(ctx, userId, req.FriendId); err != nil {
		abort(c, relay.Upstream("failed to remove friend", err))
		return
	}

	h.emit(req.FriendId, "friendRemovedClient", gin.H{"friendId": userId})
	h.emit(userId, "friendRemovedClient", gin.H{"friendId": req.FriendId})
	h.notifyFriendList("remove", userId, req.FriendId)

	resp := success("friend removed")
	resp["friendSub"] = req.FriendId
	c.JSON(http.StatusOK, resp)
}
