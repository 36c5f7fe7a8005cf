package api

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/zalachat/zalachat/internal/app/relay"
	"github.com/zalachat/zalachat/internal/aws/identity"
	"github.com/zalachat/zalachat/internal/domains/dtos"
)

const maxAvatarSize = 2 << 20

var avatarTypes = map[string]struct{}{
	"image/jpeg": {},
	"image/png":  {},
	"image/gif":  {},
}

func (h *Handler) register(c *gin.Context) {
	var req dtos.RegisterRequest
	if !bindJSON(c, &req) {
		return
	}
	err := h.identity.SignUp(c.Request.Context(), identity.Registration{
		Email:       req.Email,
		Password:    req.Password,
		Name:        req.Name,
		PhoneNumber: req.PhoneNumber,
	})
	if err != nil {
		abort(c, providerError("failed to register", err))
		return
	}
	c.JSON(http.StatusOK, success("registered, check your email for the confirmation code"))
}

func (h *Handler) confirmOtp(c *gin.Context) {
	var req dtos.ConfirmOtpRequest
	if !bindJSON(c, &req) {
		return
	}
	if err := h.identity.ConfirmSignUp(c.Request.Context(), req.Username, req.OtpCode); err != nil {
		abort(c, providerError("failed to confirm account", err))
		return
	}
	c.JSON(http.StatusOK, success("account confirmed"))
}

func (h *Handler) login(c *gin.Context) {
	var req dtos.LoginRequest
	if !bindJSON(c, &req) {
		return
	}
	tokens, err := h.identity.Login(c.Request.Context(), req.Username, req.Password)
	if err != nil {
		abort(c, providerError("failed to login", err))
		return
	}
	c.JSON(http.StatusOK, tokens)
}

func (h *Handler) forgotPassword(c *gin.Context) {
	var req dtos.ForgotPasswordRequest
	if !bindJSON(c, &req) {
		return
	}
	if err := h.identity.ForgotPassword(c.Request.Context(), req.Username); err != nil {
		abort(c, providerError("failed to request password reset", err))
		return
	}
	c.JSON(http.StatusOK, success("reset code sent"))
}

func (h *Handler) resetPassword(c *gin.Context) {
	var req dtos.ResetPasswordRequest
	if !bindJSON(c, &req) {
		return
	}
	err := h.identity.ConfirmForgotPassword(c.Request.Context(), req.Username, req.Code, req.NewPassword)
	if err != nil {
		abort(c, providerError("failed to reset password", err))
		return
	}
	c.JSON(http.StatusOK, success("password reset"))
}

func (h *Handler) changePassword(c *gin.Context) {
	var req dtos.ChangePasswordRequest
	if !bindJSON(c, &req) {
		return
	}
	err := h.identity.ChangePassword(c.Request.Context(), c.GetString(tokenKey), req.OldPassword, req.NewPassword)
	if err != nil {
		abort(c, providerError("failed to change password", err))
		return
	}
	c.JSON(http.StatusOK, success("password changed"))
}

func (h *Handler) getCurrentUser(c *gin.Context) {
	user, err := h.identity.CurrentUser(c.Request.Context(), c.GetString(tokenKey))
	if err != nil {
		abort(c, providerError("failed to load user", err))
		return
	}
	c.JSON(http.StatusOK, dtos.UserResponseFromEntity(user, true))
}

// getUser returns the public profile of any user.
func (h *Handler) getUser(c *gin.Context) {
	user, err := h.identity.GetUser(c.Request.Context(), c.Param("userId"))
	if err != nil {
		abort(c, providerError("failed to load user", err))
		return
	}
	c.JSON(http.StatusOK, dtos.UserResponseFromEntity(user, false))
}

// updateUser changes the display name and, when a picture part is present,
// uploads it as the new avatar.
func (h *Handler) updateUser(c *gin.Context) {
	ctx := c.Request.Context()
	userId := currentUserId(c)

	var update identity.AttributeUpdate
	if name := strings.TrimSpace(c.PostForm("name")); name != "" {
		update.Name = &name
	}
	fileHeader, err := c.FormFile("picture")
	switch {
	case err == nil:
		if fileHeader.Size > maxAvatarSize {
			abort(c, relay.InvalidInput("picture must not exceed 2MB"))
			return
		}
		contentType := fileHeader.Header.Get("Content-Type")
		if _, ok := avatarTypes[contentType]; !ok {
			abort(c, relay.InvalidInput("picture must be a jpeg, png or gif image"))
			return
		}
		file, err := fileHeader.Open()
		if err != nil {
			abort(c, relay.InvalidInput("unreadable picture"))
			return
		}
		defer file.Close()
		url, err := h.media.Upload(ctx, "avatars", fileHeader.Filename, contentType, file)
		if err != nil {
			abort(c, relay.Upstream("failed to upload picture", err))
			return
		}
		update.Picture = &url
	case err != http.ErrMissingFile:
		abort(c, relay.InvalidInput("invalid multipart form"))
		return
	}
	if update.Name == nil && update.Picture == nil {
		abort(c, relay.InvalidInput("nothing to update"))
		return
	}

	if err := h.identity.UpdateAttributes(ctx, userId, update); err != nil {
		abort(c, providerError("failed to update user", err))
		return
	}
	user, err := h.identity.GetUser(ctx, userId)
	if err != nil {
		abort(c, providerError("failed to load user", err))
		return
	}
	c.JSON(http.StatusOK, dtos.UserResponseFromEntity(user, true))
}
