package relay

import (
	"encoding/json"
)

// Inbound is a client frame. Ack is optional; when set the server answers
// with an ack frame carrying the same id.
type Inbound struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
	Ack  string          `json:"ack,omitempty"`
}

type Outbound struct {
	Type string      `json:"type"`
	Data interface{} `json:"data"`
}

type ackFrame struct {
	Type string      `json:"type"`
	Ack  string      `json:"ack"`
	Data interface{} `json:"data"`
}

type ErrorPayload struct {
	Event   string `json:"event"`
	Code    Kind   `json:"code"`
	Message string `json:"message"`
}

type ackOk struct {
	Status string `json:"status"`
}

type ackError struct {
	Error string `json:"error"`
}

type SendAck struct {
	Status    string `json:"status"`
	MessageId string `json:"messageId"`
}

// decode unmarshals the event data into v. An absent data field decodes as
// an empty object.
func decode(data json.RawMessage, v interface{}) error {
	if len(data) == 0 || string(data) == "null" {
		return nil
	}
	if err := json.Unmarshal(data, v); err != nil {
		return InvalidInput("malformed payload")
	}
	return nil
}
