package dtos

import (
	"github.com/zalachat/zalachat/internal/domains/entities"
)

type MessageResponse struct {
	ConversationId string   `json:"conversationId"`
	MessageId      string   `json:"messageId"`
	SenderId       string   `json:"senderId"`
	ReceiverId     string   `json:"receiverId,omitempty"`
	Content        string   `json:"content"`
	Type           string   `json:"type"`
	Timestamp      string   `json:"timestamp"`
	Status         string   `json:"status"`
	ForwardedFrom  string   `json:"forwardedFrom,omitempty"`
	ForwardedName  string   `json:"forwardedName,omitempty"`
	Reaction       string   `json:"reaction,omitempty"`
	ReadBy         []string `json:"readBy,omitempty"`
}

func MessageResponseFromEntity(message entities.Message) MessageResponse {
	return MessageResponse{
		ConversationId: message.ConversationId,
		MessageId:      message.MessageId,
		SenderId:       message.SenderId,
		ReceiverId:     message.ReceiverId,
		Content:        message.Content,
		Type:           string(message.Type),
		Timestamp:      message.Timestamp,
		Status:         string(message.Status),
		ForwardedFrom:  message.ForwardedFrom,
		ForwardedName:  message.ForwardedName,
		Reaction:       message.Reaction,
		ReadBy:         message.ReadBy,
	}
}

func MessageResponsesFromEntities(messages []entities.Message) []MessageResponse {
	resp := make([]MessageResponse, 0, len(messages))
	for _, message := range messages {
		resp = append(resp, MessageResponseFromEntity(message))
	}
	return resp
}

type GroupMessageResponse struct {
	GroupId       string   `json:"groupId"`
	MessageId     string   `json:"messageId"`
	SenderId      string   `json:"senderId"`
	Content       string   `json:"content"`
	Type          string   `json:"type"`
	Timestamp     string   `json:"timestamp"`
	Status        string   `json:"status"`
	ForwardedFrom string   `json:"forwardedFrom,omitempty"`
	ForwardedName string   `json:"forwardedName,omitempty"`
	Reaction      string   `json:"reaction,omitempty"`
	ReadBy        []string `json:"readBy,omitempty"`
}

func GroupMessageResponseFromEntity(message entities.GroupMessage) GroupMessageResponse {
	return GroupMessageResponse{
		GroupId:       message.GroupId,
		MessageId:     message.MessageId,
		SenderId:      message.SenderId,
		Content:       message.Content,
		Type:          string(message.Type),
		Timestamp:     message.Timestamp,
		Status:        string(message.Status),
		ForwardedFrom: message.ForwardedFrom,
		ForwardedName: message.ForwardedName,
		Reaction:      message.Reaction,
		ReadBy:        message.ReadBy,
	}
}

type LastMessageResponse struct {
	ConversationId string           `json:"conversationId"`
	LastMessage    *MessageResponse `json:"lastMessage"`
}
