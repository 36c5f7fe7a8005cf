package dtos

type ServerStatusResponse struct {
	Status      string `json:"status"`
	Connections int    `json:"connections"`
	OnlineUsers int    `json:"onlineUsers"`
	Rooms       int    `json:"rooms"`
}
