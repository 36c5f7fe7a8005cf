package server

import (
	"context"
	"net/http"

	"github.com/zalachat/zalachat/internal/app/api"
	"github.com/zalachat/zalachat/pkg/logging"
	"go.uber.org/zap"
)

type Authenticator interface {
	Authenticate(ctx context.Context, token string) (string, error)
}

// handshakeToken reads the token from the "token" query parameter or, for
// clients that can set headers, the Authorization header.
func handshakeToken(r *http.Request) string {
	if token := r.URL.Query().Get("token"); token != "" {
		return token
	}
	return api.BearerToken(r.Header.Get("Authorization"))
}

// authenticate resolves the user of a websocket handshake.
func (s *Server) authenticate(r *http.Request) (string, error) {
	token := handshakeToken(r)
	if token == "" {
		return "", ErrNoToken
	}
	userId, err := s.auth.Authenticate(r.Context(), token)
	if err != nil || userId == "" {
		logging.Info("handshake rejected",
			zap.String("remote_address", r.RemoteAddr),
			zap.Error(err),
		)
		return "", ErrInvalidToken
	}
	return userId, nil
}
