package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/zalachat/zalachat/internal/app/relay"
	"github.com/zalachat/zalachat/internal/aws/storage"
	"github.com/zalachat/zalachat/internal/domains/dtos"
	"github.com/zalachat/zalachat/internal/domains/entities"
	"github.com/zalachat/zalachat/pkg/logging"
	"github.com/zalachat/zalachat/pkg/utils"
	"go.uber.org/zap"
)

const maxAttachmentSize = 25 << 20

// upload stores a chat attachment and returns its URL together with the
// message type it will be shown as.
func (h *Handler) upload(c *gin.Context) {
	fileHeader, err := c.FormFile("file")
	if err != nil {
		abort(c, relay.InvalidInput("file is required"))
		return
	}
	if fileHeader.Size > maxAttachmentSize {
		abort(c, relay.InvalidInput("file must not exceed 25MB"))
		return
	}
	file, err := fileHeader.Open()
	if err != nil {
		abort(c, relay.InvalidInput("unreadable file"))
		return
	}
	defer file.Close()

	contentType := fileHeader.Header.Get("Content-Type")
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	url, err := h.media.Upload(c.Request.Context(), "attachments", fileHeader.Filename, contentType, file)
	if err != nil {
		abort(c, relay.Upstream("failed to upload file", err))
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"url":  url,
		"type": utils.AttachmentType(url),
	})
}

func (h *Handler) registerDevice(c *gin.Context) {
	var req dtos.DeviceRegisterRequest
	if !bindJSON(c, &req) {
		return
	}
	err := h.store.PutApplicationEndpoint(c.Request.Context(), entities.ApplicationEndpoint{
		UserId:      currentUserId(c),
		EndpointArn: req.EndpointArn,
		DeviceToken: req.DeviceToken,
		Platform:    req.Platform,
		UpdatedAt:   h.now().UTC(),
	})
	if errors.Is(err, storage.ErrApplicationEndpointStale) {
		logging.Debug("ignored stale device registration", zap.String("user_id", currentUserId(c)))
		err = nil
	}
	if err != nil {
		abort(c, relay.Upstream("failed to register device", err))
		return
	}
	c.JSON(http.StatusOK, success("device registered"))
}
