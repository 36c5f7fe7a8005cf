package utils

import (
	"net/url"
	"path"
	"strings"
)

// AttachmentType infers a message type from the extension of an uploaded
// attachment URL. Unknown extensions are treated as plain files.
func AttachmentType(rawUrl string) string {
	if rawUrl == "" {
		return "file"
	}
	p := rawUrl
	if u, err := url.Parse(rawUrl); err == nil && u.Path != "" {
		p = u.Path
	}
	switch strings.ToLower(path.Ext(p)) {
	case ".jpg", ".jpeg", ".png", ".gif":
		return "image"
	case ".mp3", ".wav", ".ogg", ".webm":
		return "audio"
	case ".mp4", ".avi", ".mkv", ".mov":
		return "video"
	default:
		return "file"
	}
}
