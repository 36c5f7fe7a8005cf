package relay

import (
	"context"

	"github.com/zalachat/zalachat/internal/aws/storage"
	"github.com/zalachat/zalachat/internal/domains/entities"
	"github.com/zalachat/zalachat/pkg/logging"
	"go.uber.org/zap"
)

type FriendshipStore interface {
	ListFriendships(ctx context.Context, userId string) ([]entities.Friendship, error)
	UpdateFriendshipPair(ctx context.Context, userId, friendId string, opts storage.FriendshipUpdateOptions) error
}

// Access derives conversation permissions from friendship edges: a user may
// act on a conversation iff one of the edges they own carries its id.
type Access struct {
	friendships FriendshipStore
}

func NewAccess(friendships FriendshipStore) *Access {
	return &Access{friendships: friendships}
}

// HasAccess fails closed: a store error denies access.
func (a *Access) HasAccess(ctx context.Context, userId, conversationId string) bool {
	_, err := a.link(ctx, userId, conversationId)
	return err == nil
}

// ResolveCounterpart returns the other participant of the conversation.
func (a *Access) ResolveCounterpart(ctx context.Context, userId, conversationId string) (string, error) {
	edge, err := a.link(ctx, userId, conversationId)
	if err != nil {
		return "", err
	}
	return edge.FriendId, nil
}

// authorize returns the caller's edge for the conversation or an
// Unauthorized error.
func (a *Access) authorize(ctx context.Context, userId, conversationId string) (entities.Friendship, error) {
	edge, err := a.link(ctx, userId, conversationId)
	if err != nil {
		return entities.Friendship{}, Unauthorized("no access to conversation")
	}
	return edge, nil
}

func (a *Access) link(ctx context.Context, userId, conversationId string) (entities.Friendship, error) {
	if userId == "" || conversationId == "" {
		return entities.Friendship{}, NotFound("friendship not found", nil)
	}
	friendships, err := a.friendships.ListFriendships(ctx, userId)
	if err != nil {
		logging.Error("failed to check conversation access",
			zap.String("user_id", userId),
			zap.String("conversation_id", conversationId),
			zap.Error(err),
		)
		return entities.Friendship{}, NotFound("friendship not found", err)
	}
	for _, friendship := range friendships {
		if friendship.ConversationId == conversationId {
			return friendship, nil
		}
	}
	return entities.Friendship{}, NotFound("friendship not found", storage.ErrFriendshipNotFound)
}
