package server

import "errors"

// Handshake rejections. The texts are part of the client contract.
var (
	ErrNoToken      = errors.New("Authentication error: No token")
	ErrInvalidToken = errors.New("Authentication error: Invalid token")
)
