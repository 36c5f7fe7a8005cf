package relay

import "encoding/json"

type conversationRef struct {
	ConversationId string `json:"conversationId"`
}

type groupRef struct {
	GroupId string `json:"groupId"`
}

type sendMessagePayload struct {
	ConversationId string `json:"conversationId"`
	Content        string `json:"content"`
	SenderId       string `json:"senderId"`
	ReceiverId     string `json:"receiverId"`
	Type           string `json:"type"`
}

type messageRef struct {
	ConversationId string `json:"conversationId"`
	Timestamp      string `json:"timestamp"`
}

type forwardMessagePayload struct {
	ConversationId    string `json:"conversationId"`
	NewConversationId string `json:"newConversationId"`
	Content           string `json:"content"`
	Type              string `json:"type"`
	ForwardedFrom     string `json:"forwardedFrom"`
	ForwardedName     string `json:"forwardedName"`
}

type markAsReadPayload struct {
	ConversationId string `json:"conversationId"`
	UserId         string `json:"userId"`
}

type themeChangedPayload struct {
	ConversationId string `json:"conversationId"`
	NewTheme       string `json:"newTheme"`
	From           string `json:"from"`
}

type nicknameChangedPayload struct {
	ConversationId string `json:"conversationId"`
	NewNickname    string `json:"newNickname"`
	From           string `json:"from,omitempty"`
}

type reactMessagePayload struct {
	ConversationId string `json:"conversationId"`
	MessageId      string `json:"messageId"`
	Reaction       string `json:"reaction"`
}

type messagesReadPayload struct {
	ConversationId string `json:"conversationId"`
	UserId         string `json:"userId"`
}

type sendGroupMessagePayload struct {
	GroupId string `json:"groupId"`
	Content string `json:"content"`
	Type    string `json:"type"`
}

type groupMessageRef struct {
	GroupId   string `json:"groupId"`
	Timestamp string `json:"timestamp"`
}

type forwardGroupMessagePayload struct {
	GroupId       string `json:"groupId"`
	NewGroupId    string `json:"newGroupId"`
	Content       string `json:"content"`
	Type          string `json:"type"`
	ForwardedFrom string `json:"forwardedFrom"`
	ForwardedName string `json:"forwardedName"`
}

// Signaling payloads. Session descriptions and candidates are opaque and
// relayed verbatim.

type callRequestPayload struct {
	ConversationId string `json:"conversationId"`
	To             string `json:"to"`
	From           string `json:"from,omitempty"`
	CallType       string `json:"callType"`
}

type callResponsePayload struct {
	ConversationId string `json:"conversationId"`
	To             string `json:"to,omitempty"`
	From           string `json:"from,omitempty"`
	Accepted       *bool  `json:"accepted"`
}

type callSignalPayload struct {
	ConversationId string          `json:"conversationId"`
	To             string          `json:"to,omitempty"`
	From           string          `json:"from,omitempty"`
	Offer          json.RawMessage `json:"offer,omitempty"`
	Answer         json.RawMessage `json:"answer,omitempty"`
	Candidate      json.RawMessage `json:"candidate,omitempty"`
}

type meshSignalPayload struct {
	GroupId    string          `json:"groupId"`
	SenderId   string          `json:"senderId"`
	ReceiverId string          `json:"receiverId,omitempty"`
	Sdp        json.RawMessage `json:"sdp,omitempty"`
	Candidate  json.RawMessage `json:"candidate,omitempty"`
}

func present(raw json.RawMessage) bool {
	return len(raw) > 0 && string(raw) != "null" && string(raw) != `""`
}
