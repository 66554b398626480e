package services

import (
	"encoding/base64"
	"fmt"
	"net/url"
	"strings"
	"unicode/utf8"

	"github.com/thereayou/rylac/internal/apperrors"
	"github.com/thereayou/rylac/internal/models"
)

// SendRequest тело message:send; какая часть обязательна, решает Type
type SendRequest struct {
	ReceiverID string             `json:"receiverId"`
	Type       models.MessageType `json:"type"`
	Content    string             `json:"content"`
	Media      *MediaPayload      `json:"media,omitempty"`
	Gif        *GifPayload        `json:"gif,omitempty"`
	TempID     string             `json:"tempId,omitempty"`
}

// MediaPayload вложение: ссылка или base64 прямо в событии
type MediaPayload struct {
	URL      string `json:"url,omitempty"`
	Data     string `json:"data,omitempty"`
	MimeType string `json:"mimeType"`
	Size     int64  `json:"size,omitempty"`
	Name     string `json:"name,omitempty"`
}

type GifPayload struct {
	URL   string `json:"url"`
	Title string `json:"title,omitempty"`
}

const defaultGifTitle = "GIF"

var allowedMime = map[models.MessageType]map[string]bool{
	models.MessageImage: {
		"image/jpeg": true, "image/jpg": true, "image/png": true, "image/gif": true, "image/webp": true,
	},
	models.MessageAudio: {
		"audio/mpeg": true, "audio/mp3": true, "audio/wav": true, "audio/ogg": true, "audio/webm": true,
	},
	models.MessageFile: {
		"application/pdf": true, "text/plain": true, "application/zip": true, "application/json": true,
	},
}

// buildMessage проверяет полезную нагрузку и собирает запись без id и времени
func (r *SendRequest) buildMessage(senderID string, limits MessageLimits) (*models.Message, error) {
	msgType := r.Type
	if msgType == "" {
		msgType = models.MessageText
	}
	if !msgType.Valid() {
		return nil, apperrors.Validation("invalid message type")
	}
	if err := r.checkVariant(msgType); err != nil {
		return nil, err
	}

	msg := &models.Message{
		ConversationID: models.ConversationID(senderID, r.ReceiverID),
		SenderID:       senderID,
		ReceiverID:     r.ReceiverID,
		Type:           msgType,
	}

	switch {
	case msgType == models.MessageText:
		content := strings.TrimSpace(r.Content)
		if content == "" {
			return nil, apperrors.Validation("message content cannot be empty")
		}
		if utf8.RuneCountInString(content) > limits.MaxTextLength {
			return nil, apperrors.Validation(fmt.Sprintf("message too long (max %d characters)", limits.MaxTextLength))
		}
		msg.Content = content

	case msgType == models.MessageGIF:
		if r.Gif == nil || !isHTTPURL(r.Gif.URL) {
			return nil, apperrors.Validation("gif url is required")
		}
		title := strings.TrimSpace(r.Gif.Title)
		if title == "" {
			title = defaultGifTitle
		}
		msg.GifURL = r.Gif.URL
		msg.GifTitle = title
		msg.Content = title

	case msgType.IsMedia():
		if err := r.applyMedia(msg, limits); err != nil {
			return nil, err
		}
	}

	return msg, nil
}

// checkVariant: нагрузка другого типа это ошибка, а не молча отброшенные поля
func (r *SendRequest) checkVariant(msgType models.MessageType) error {
	switch {
	case msgType == models.MessageText && (r.Media != nil || r.Gif != nil):
		return apperrors.Validation("text message cannot carry media or gif")
	case msgType == models.MessageGIF && r.Media != nil:
		return apperrors.Validation("gif message cannot carry media")
	case msgType.IsMedia() && r.Gif != nil:
		return apperrors.Validation(string(msgType) + " message cannot carry gif")
	}
	return nil
}

func (r *SendRequest) applyMedia(msg *models.Message, limits MessageLimits) error {
	m := r.Media
	if m == nil || (m.URL == "" && m.Data == "") {
		return apperrors.Validation("media is required")
	}
	mime := strings.ToLower(strings.TrimSpace(m.MimeType))
	if !allowedMime[msg.Type][mime] {
		return apperrors.Validation("unsupported media type")
	}

	size := m.Size
	mediaURL := m.URL
	if m.Data != "" {
		decoded, err := decodeInline(m.Data)
		if err != nil {
			return apperrors.Validation("media data is not valid base64")
		}
		size = int64(decoded)
		if !strings.HasPrefix(m.Data, "data:") {
			mediaURL = "data:" + mime + ";base64," + m.Data
		} else {
			mediaURL = m.Data
		}
	} else if !isHTTPURL(m.URL) {
		return apperrors.Validation("media url must be http(s)")
	}

	if size < 0 {
		return apperrors.Validation("invalid media size")
	}
	if size > limits.MaxMediaSize {
		return apperrors.Validation(fmt.Sprintf("file too large (max %d bytes)", limits.MaxMediaSize))
	}

	caption := strings.TrimSpace(r.Content)
	if caption == "" {
		caption = "[" + string(msg.Type) + "]"
	}
	if utf8.RuneCountInString(caption) > limits.MaxTextLength {
		return apperrors.Validation(fmt.Sprintf("message too long (max %d characters)", limits.MaxTextLength))
	}

	msg.Content = caption
	msg.MediaURL = mediaURL
	msg.MediaName = strings.TrimSpace(m.Name)
	msg.MediaMimeType = mime
	msg.MediaSize = size
	return nil
}

// decodeInline принимает чистый base64 или data URL, возвращает размер в байтах
func decodeInline(data string) (int, error) {
	if strings.HasPrefix(data, "data:") {
		idx := strings.Index(data, ";base64,")
		if idx < 0 {
			return 0, fmt.Errorf("data url without base64 payload")
		}
		data = data[idx+len(";base64,"):]
	}
	raw, err := base64.StdEncoding.DecodeString(data)
	if err != nil {
		return 0, err
	}
	return len(raw), nil
}

func isHTTPURL(raw string) bool {
	u, err := url.Parse(raw)
	if err != nil {
		return false
	}
	return (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}
