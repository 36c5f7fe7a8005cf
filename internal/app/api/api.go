package api

import (
	"context"
	"errors"
	"io"
	"strings"
	"time"

	"github.com/aws/smithy-go"
	"github.com/gin-gonic/gin"
	"github.com/zalachat/zalachat/internal/app/relay"
	"github.com/zalachat/zalachat/internal/aws/identity"
	"github.com/zalachat/zalachat/internal/aws/notification"
	"github.com/zalachat/zalachat/internal/aws/storage"
	"github.com/zalachat/zalachat/internal/domains/entities"
	"github.com/zalachat/zalachat/pkg/logging"
	"go.uber.org/zap"
)

const (
	userIdKey = "userId"
	tokenKey  = "accessToken"
)

type Authenticator interface {
	Authenticate(ctx context.Context, token string) (string, error)
}

// Identity is the part of the user pool client the REST surface needs.
type Identity interface {
	CurrentUser(ctx context.Context, accessToken string) (entities.User, error)
	GetUser(ctx context.Context, userId string) (entities.User, error)
	FindUserByEmail(ctx context.Context, email string) (entities.User, error)
	UpdateAttributes(ctx context.Context, userId string, update identity.AttributeUpdate) error
	SignUp(ctx context.Context, reg identity.Registration) error
	ConfirmSignUp(ctx context.Context, username, code string) error
	Login(ctx context.Context, username, password string) (identity.Tokens, error)
	ForgotPassword(ctx context.Context, username string) error
	ConfirmForgotPassword(ctx context.Context, username, code, newPassword string) error
	ChangePassword(ctx context.Context, accessToken, oldPassword, newPassword string) error
}

type Store interface {
	relay.FriendshipStore
	GetFriendship(ctx context.Context, userId, friendId string) (entities.Friendship, error)
	DeleteFriendshipPair(ctx context.Context, userId, friendId string) error
	EnsureConversation(ctx context.Context, userId, friendId string) (string, error)

	GetFriendRequest(ctx context.Context, receiverId, requestId string) (entities.FriendRequest, error)
	PutFriendRequest(ctx context.Context, request entities.FriendRequest) error
	ListPendingFriendRequests(ctx context.Context, receiverId string) ([]entities.FriendRequest, error)
	HasPendingFriendRequest(ctx context.Context, senderId, receiverId string) (bool, error)
	RejectFriendRequest(ctx context.Context, receiverId, requestId string) error
	AcceptFriendRequest(
		ctx context.Context,
		request entities.FriendRequest,
		receiverName string,
		acceptedAt time.Time,
	) (entities.Friendship, entities.Friendship, error)

	ListMessages(ctx context.Context, conversationId string, limit int, ascending bool) ([]entities.Message, error)
	LastMessage(ctx context.Context, conversationId string) (entities.Message, error)

	GetApplicationEndpoint(ctx context.Context, userId string) (entities.ApplicationEndpoint, error)
	PutApplicationEndpoint(ctx context.Context, endpoint entities.ApplicationEndpoint) error
}

type Uploader interface {
	Upload(ctx context.Context, prefix, fileName, contentType string, body io.Reader) (string, error)
}

type Notifier interface {
	SendPushNotification(ctx context.Context, endpointArn string, notification notification.PushNotification) error
}

type Deps struct {
	Auth     Authenticator
	Identity Identity
	Store    Store
	Media    Uploader
	Notifier Notifier
	Hub      *relay.Hub
}

// Handler serves the REST routes. Realtime side effects of REST calls, such
// as friend request notifications, go out through the relay hub.
type Handler struct {
	auth     Authenticator
	identity Identity
	store    Store
	media    Uploader
	notifier Notifier
	hub      *relay.Hub
	access   *relay.Access
	now      func() time.Time
	newId    func() string
}

func NewHandler(deps Deps) *Handler {
	return &Handler{
		auth:     deps.Auth,
		identity: deps.Identity,
		store:    deps.Store,
		media:    deps.Media,
		notifier: deps.Notifier,
		hub:      deps.Hub,
		access:   relay.NewAccess(deps.Store),
		now:      time.Now,
		newId:    newRequestId,
	}
}

func (h *Handler) Register(r gin.IRouter) {
	authGroup := r.Group("/api/auth")
	authGroup.POST("/register", h.register)
	authGroup.POST("/confirm-otp", h.confirmOtp)
	authGroup.POST("/login", h.login)
	authGroup.POST("/forgot-password", h.forgotPassword)
	authGroup.POST("/reset-password", h.resetPassword)

	secured := authGroup.Group("", h.RequireAuth())
	secured.POST("/change-password", h.changePassword)
	secured.GET("/user", h.getCurrentUser)
	secured.GET("/user/:userId", h.getUser)
	secured.POST("/update-user", h.updateUser)

	contacts := r.Group("/api/contacts", h.RequireAuth())
	contacts.POST("/send-friend-request", h.sendFriendRequest)
	contacts.GET("/friend-requests", h.listFriendRequests)
	contacts.POST("/accept-friend-request", h.acceptFriendRequest)
	contacts.POST("/reject-friend-request", h.rejectFriendRequest)
	contacts.GET("/friends", h.listFriends)
	contacts.POST("/remove-friend", h.removeFriend)

	chats := r.Group("/api/chats", h.RequireAuth())
	chats.GET("/conversations", h.listConversations)
	chats.GET("/messages/:conversationId", h.listMessages)
	chats.GET("/last-messages", h.listLastMessages)
	chats.GET("/user/:userId", h.getFriendProfile)

	r.POST("/api/upload", h.RequireAuth(), h.upload)
	r.PUT("/api/devices", h.RequireAuth(), h.registerDevice)
}

// BearerToken extracts the token of an "Authorization: Bearer" header.
func BearerToken(header string) string {
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}

func (h *Handler) RequireAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		token := BearerToken(c.GetHeader("Authorization"))
		if token == "" {
			abort(c, relay.Unauthenticated("missing access token"))
			return
		}
		userId, err := h.auth.Authenticate(c.Request.Context(), token)
		if err != nil {
			logging.Debug("rejected token", zap.Error(err))
			abort(c, relay.Unauthenticated("invalid access token"))
			return
		}
		c.Set(userIdKey, userId)
		c.Set(tokenKey, token)
		c.Next()
	}
}

func currentUserId(c *gin.Context) string {
	return c.GetString(userIdKey)
}

func abort(c *gin.Context, err error) {
	status := relay.HTTPStatus(err)
	if relay.KindOf(err) == relay.KindUpstreamFailure {
		logging.Error("request failed",
			zap.String("method", c.Request.Method),
			zap.String("path", c.FullPath()),
			zap.String("user_id", currentUserId(c)),
			zap.Error(err),
		)
	}
	c.AbortWithStatusJSON(status, gin.H{"error": relay.PublicMessage(err)})
}

func bindJSON(c *gin.Context, v interface{}) bool {
	if err := c.ShouldBindJSON(v); err != nil {
		abort(c, relay.InvalidInput("invalid request body"))
		return false
	}
	return true
}

func success(message string) gin.H {
	return gin.H{"success": true, "message": message}
}

// providerError surfaces user pool rejections such as a wrong code or an
// existing username as bad input and hides everything else.
func providerError(msg string, err error) error {
	if errors.Is(err, identity.ErrUserNotFound) {
		return relay.NotFound("user not found", err)
	}
	if errors.Is(err, identity.ErrInvalidToken) {
		return relay.Unauthenticated("invalid access token")
	}
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) && apiErr.ErrorFault() == smithy.FaultClient {
		return &relay.Error{Kind: relay.KindInvalidInput, Message: apiErr.ErrorMessage(), Err: err}
	}
	return relay.Upstream(msg, err)
}

// emit sends a realtime event to every connection of userId.
func (h *Handler) emit(userId, event string, data interface{}) {
	if h.hub == nil {
		return
	}
	h.hub.EmitToUser(userId, event, data)
}

func isNotFound(err error) bool {
	return errors.Is(err, storage.ErrFriendshipNotFound) ||
		errors.Is(err, storage.ErrFriendRequestNotFound) ||
		errors.Is(err, storage.ErrMessageNotFound) ||
		errors.Is(err, storage.ErrApplicationEndpointNotFound)
}
