package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type MessageType string

const (
	MessageText  MessageType = "text"
	MessageImage MessageType = "image"
	MessageAudio MessageType = "audio"
	MessageGIF   MessageType = "gif"
	MessageFile  MessageType = "file"
)

// Tombstone текст, которым заменяется содержимое удалённого сообщения
const Tombstone = "This message was deleted"

func (t MessageType) Valid() bool {
	switch t {
	case MessageText, MessageImage, MessageAudio, MessageGIF, MessageFile:
		return true
	}
	return false
}

func (t MessageType) IsMedia() bool {
	return t == MessageImage || t == MessageAudio || t == MessageFile
}

type Message struct {
	ID             uuid.UUID   `gorm:"type:uuid;primaryKey" json:"id"`
	ConversationID string      `gorm:"size:40;not null;index:idx_messages_conversation_created,priority:1" json:"conversationId"`
	SenderID       string      `gorm:"size:16;not null;index" json:"senderId"`
	ReceiverID     string      `gorm:"size:16;not null;index" json:"receiverId"`
	Type           MessageType `gorm:"size:10;not null;default:'text'" json:"type"`
	Content        string      `gorm:"not null;default:''" json:"content"`
	MediaURL       string      `json:"mediaUrl,omitempty"`
	MediaName      string      `json:"mediaName,omitempty"`
	MediaMimeType  string      `json:"mediaMimeType,omitempty"`
	MediaSize      int64       `json:"mediaSize,omitempty"`
	GifURL         string      `json:"gifUrl,omitempty"`
	GifTitle       string      `json:"gifTitle,omitempty"`
	IsRead         bool        `gorm:"not null;default:false" json:"isRead"`
	IsDeleted      bool        `gorm:"not null;default:false" json:"isDeleted"`
	CreatedAt      time.Time   `gorm:"index:idx_messages_conversation_created,priority:2" json:"createdAt"`
}

// BeforeCreate: UUIDv7 растёт со временем, поэтому id служит tie-break при равном created_at
func (m *Message) BeforeCreate(*gorm.DB) error {
	if m.ID == uuid.Nil {
		id, err := uuid.NewV7()
		if err != nil {
			return err
		}
		m.ID = id
	}
	return nil
}

// Counterpart возвращает второго участника диалога относительно userID
func (m *Message) Counterpart(userID string) string {
	if m.SenderID == userID {
		return m.ReceiverID
	}
	return m.SenderID
}

// ConversationID детерминированный ключ диалога, не зависит от порядка аргументов.
// Идентификаторы состоят только из цифр, поэтому разделитель "_" не даёт коллизий.
func ConversationID(a, b string) string {
	if b < a {
		a, b = b, a
	}
	return a + "_" + b
}
