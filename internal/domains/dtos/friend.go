package dtos

import (
	"time"

	"github.com/zalachat/zalachat/internal/domains/entities"
	"github.com/zalachat/zalachat/pkg/utils"
)

type SendFriendRequestRequest struct {
	ReceiverEmail string `json:"receiverEmail" binding:"required"`
}

type FriendRequestActionRequest struct {
	RequestId string `json:"requestId" binding:"required"`
}

type RemoveFriendRequest struct {
	FriendId string `json:"friendId" binding:"required"`
}

type FriendRequestResponse struct {
	RequestId  string    `json:"requestId"`
	SenderId   string    `json:"senderId"`
	SenderName string    `json:"senderName"`
	Timestamp  time.Time `json:"timestamp"`
}

func FriendRequestResponseFromEntity(request entities.FriendRequest) FriendRequestResponse {
	return FriendRequestResponse{
		RequestId:  request.RequestId,
		SenderId:   request.SenderId,
		SenderName: request.SenderName,
		Timestamp:  request.CreatedAt,
	}
}

type FriendResponse struct {
	FriendId       string `json:"friendId"`
	FriendName     string `json:"friendName"`
	ConversationId string `json:"conversationId,omitempty"`
	Theme          string `json:"theme"`
}

func FriendResponseFromEntity(friendship entities.Friendship) FriendResponse {
	resp := FriendResponse{
		FriendId:       friendship.FriendId,
		FriendName:     friendship.FriendName,
		ConversationId: friendship.ConversationId,
		Theme:          friendship.Theme,
	}
	if resp.FriendName == "" {
		resp.FriendName = friendship.FriendId
	}
	if resp.Theme == "" {
		resp.Theme = utils.DefaultTheme
	}
	return resp
}

type ConversationResponse struct {
	ConversationId string           `json:"conversationId"`
	FriendId       string           `json:"friendId"`
	FriendName     string           `json:"friendName"`
	FriendPicture  string           `json:"friendPicture,omitempty"`
	Theme          string           `json:"theme"`
	LastMessage    *MessageResponse `json:"lastMessage,omitempty"`
}
