package entities

type MessageType string

const (
	MessageTypeText     MessageType = "text"
	MessageTypeImage    MessageType = "image"
	MessageTypeVideo    MessageType = "video"
	MessageTypeAudio    MessageType = "audio"
	MessageTypeFile     MessageType = "file"
	MessageTypeSystem   MessageType = "system"
	MessageTypeRecalled MessageType = "recalled"
)

func (t MessageType) Valid() bool {
	switch t {
	case MessageTypeText, MessageTypeImage, MessageTypeVideo, MessageTypeAudio,
		MessageTypeFile, MessageTypeSystem, MessageTypeRecalled:
		return true
	}
	return false
}

type MessageStatus string

const (
	MessageStatusSent     MessageStatus = "sent"
	MessageStatusRecalled MessageStatus = "recalled"
	MessageStatusDeleted  MessageStatus = "deleted"
)

const SystemSenderId = "system"

// Message belongs to a 1:1 conversation. Timestamp is the sort key and is
// never rewritten; only Status, Type, Reaction and ReadBy change after the
// first write.
type Message struct {
	ConversationId string        `dynamodbav:"ConversationId"`
	Timestamp      string        `dynamodbav:"Timestamp"`
	MessageId      string        `dynamodbav:"MessageId"`
	SenderId       string        `dynamodbav:"SenderId"`
	ReceiverId     string        `dynamodbav:"ReceiverId,omitempty"`
	Content        string        `dynamodbav:"Content"`
	Type           MessageType   `dynamodbav:"Type"`
	Status         MessageStatus `dynamodbav:"Status"`
	ForwardedFrom  string        `dynamodbav:"ForwardedFrom,omitempty"`
	ForwardedName  string        `dynamodbav:"ForwardedName,omitempty"`
	Reaction       string        `dynamodbav:"Reaction,omitempty"`
	ReadBy         []string      `dynamodbav:"ReadBy,stringset,omitempty"`
}

func (m Message) IsReadBy(userId string) bool {
	for _, id := range m.ReadBy {
		if id == userId {
			return true
		}
	}
	return false
}

type GroupMessage struct {
	GroupId       string        `dynamodbav:"GroupId"`
	Timestamp     string        `dynamodbav:"Timestamp"`
	MessageId     string        `dynamodbav:"MessageId"`
	SenderId      string        `dynamodbav:"SenderId"`
	Content       string        `dynamodbav:"Content"`
	Type          MessageType   `dynamodbav:"Type"`
	Status        MessageStatus `dynamodbav:"Status"`
	ForwardedFrom string        `dynamodbav:"ForwardedFrom,omitempty"`
	ForwardedName string        `dynamodbav:"ForwardedName,omitempty"`
	Reaction      string        `dynamodbav:"Reaction,omitempty"`
	ReadBy        []string      `dynamodbav:"ReadBy,stringset,omitempty"`
}
