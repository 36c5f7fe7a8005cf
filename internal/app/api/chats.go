package api

import (
	"context"
	"errors"
	"net/http"
	"sort"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/zalachat/zalachat/internal/app/relay"
	"github.com/zalachat/zalachat/internal/aws/storage"
	"github.com/zalachat/zalachat/internal/domains/dtos"
	"github.com/zalachat/zalachat/pkg/logging"
	"go.uber.org/zap"
)

// lastMessage returns nil for a conversation without messages.
func (h *Handler) lastMessage(ctx context.Context, conversationId string) (*dtos.MessageResponse, error) {
	message, err := h.store.LastMessage(ctx, conversationId)
	if err != nil {
		if errors.Is(err, storage.ErrMessageNotFound) {
			return nil, nil
		}
		return nil, err
	}
	resp := dtos.MessageResponseFromEntity(message)
	return &resp, nil
}

// listConversations returns one conversation per friend, most recently
// active first. Friendships created before conversation ids existed get one
// minted here.
func (h *Handler) listConversations(c *gin.Context) {
	ctx := c.Request.Context()
	userId := currentUserId(c)

	friendships, err := h.store.ListFriendships(ctx, userId)
	if err != nil {
		abort(c, relay.Upstream("failed to load conversations", err))
		return
	}
	conversations := make([]dtos.ConversationResponse, 0, len(friendships))
	for _, friendship := range friendships {
		conversationId := friendship.ConversationId
		if conversationId == "" {
			conversationId, err = h.store.EnsureConversation(ctx, userId, friendship.FriendId)
			if err != nil {
				abort(c, relay.Upstream("failed to create conversation", err))
				return
			}
			friendship.ConversationId = conversationId
		}
		last, err := h.lastMessage(ctx, conversationId)
		if err != nil {
			abort(c, relay.Upstream("failed to load last message", err))
			return
		}

		friend := dtos.FriendResponseFromEntity(friendship)
		conversation := dtos.ConversationResponse{
			ConversationId: conversationId,
			FriendId:       friendship.FriendId,
			FriendName:     friend.FriendName,
			Theme:          friend.Theme,
			LastMessage:    last,
		}
		user, err := h.identity.GetUser(ctx, friendship.FriendId)
		if err != nil {
			logging.Warn("failed to load friend profile", zap.String("friend_id", friendship.FriendId), zap.Error(err))
		} else {
			conversation.FriendPicture = user.Picture
			if friendship.FriendName == "" {
				conversation.FriendName = user.DisplayName()
			}
		}
		conversations = append(conversations, conversation)
	}

	sort.SliceStable(conversations, func(i, j int) bool {
		return lastTimestamp(conversations[i]) > lastTimestamp(conversations[j])
	})
	c.JSON(http.StatusOK, conversations)
}

func lastTimestamp(conversation dtos.ConversationResponse) string {
	if conversation.LastMessage == nil {
		return ""
	}
	return conversation.LastMessage.Timestamp
}

func (h *Handler) listMessages(c *gin.Context) {
	ctx := c.Request.Context()
	conversationId := c.Param("conversationId")

	limit := 0
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			abort(c, relay.InvalidInput("limit must be a non-negative integer"))
			return
		}
		limit = n
	}
	var ascending bool
	switch c.DefaultQuery("sort", "asc") {
	case "asc":
		ascending = true
	case "desc":
		ascending = false
	default:
		abort(c, relay.InvalidInput("sort must be asc or desc"))
		return
	}

	if !h.access.HasAccess(ctx, currentUserId(c), conversationId) {
		abort(c, relay.Unauthorized("no access to conversation"))
		return
	}
	messages, err := h.store.ListMessages(ctx, conversationId, limit, ascending)
	if err != nil {
		abort(c, relay.Upstream("failed to load messages", err))
		return
	}
	c.JSON(http.StatusOK, dtos.MessageResponsesFromEntities(messages))
}

func (h *Handler) listLastMessages(c *gin.Context) {
	ctx := c.Request.Context()
	friendships, err := h.store.ListFriendships(ctx, currentUserId(c))
	if err != nil {
		abort(c, relay.Upstream("failed to load conversations", err))
		return
	}
	resp := make([]dtos.LastMessageResponse, 0, len(friendships))
	for _, friendship := range friendships {
		if friendship.ConversationId == "" {
			continue
		}
		last, err := h.lastMessage(ctx, friendship.ConversationId)
		if err != nil {
			abort(c, relay.Upstream("failed to load last message", err))
			return
		}
		resp = append(resp, dtos.LastMessageResponse{
			ConversationId: friendship.ConversationId,
			LastMessage:    last,
		})
	}
	c.JSON(http.StatusOK, resp)
}

// getFriendProfile returns the full profile of the caller or one of its
// friends.
func (h *Handler) getFriendProfile(c *gin.Context) {
	ctx := c.Request.Context()
	userId := currentUserId(c)
	targetId := c.Param("userId")

	if targetId != userId {
		if _, err := h.store.GetFriendship(ctx, userId, targetId); err != nil {
			if errors.Is(err, storage.ErrFriendshipNotFound) {
				abort(c, relay.Unauthorized("not allowed to view this user"))
				return
			}
			abort(c, relay.Upstream("failed to load friendship", err))
			return
		}
	}
	user, err := h.identity.GetUser(ctx, targetId)
	if err != nil {
		abort(c, providerError("failed to load user", err))
		return
	}
	c.JSON(http.StatusOK, dtos.UserResponseFromEntity(user, true))
}
