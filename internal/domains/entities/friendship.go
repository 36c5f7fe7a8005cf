package entities

import "time"

// Friendship is one directed edge of a friendship. Edges are always written
// in pairs and both carry the same ConversationId.
type Friendship struct {
	UserId         string    `dynamodbav:"UserId"`
	FriendId       string    `dynamodbav:"FriendId"`
	ConversationId string    `dynamodbav:"ConversationId,omitempty"`
	FriendName     string    `dynamodbav:"FriendName,omitempty"`
	Theme          string    `dynamodbav:"Theme,omitempty"`
	StartedAt      time.Time `dynamodbav:"StartedAt"`
}

type FriendRequestStatus string

const (
	FriendRequestPending  FriendRequestStatus = "pending"
	FriendRequestAccepted FriendRequestStatus = "accepted"
	FriendRequestRejected FriendRequestStatus = "rejected"
)

type FriendRequest struct {
	ReceiverId string              `dynamodbav:"ReceiverId"`
	RequestId  string              `dynamodbav:"RequestId"`
	SenderId   string              `dynamodbav:"SenderId"`
	SenderName string              `dynamodbav:"SenderName"`
	Status     FriendRequestStatus `dynamodbav:"Status"`
	CreatedAt  time.Time           `dynamodbav:"CreatedAt"`
}
