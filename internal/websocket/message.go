package websocket

import (
	"encoding/json"
	"time"
)

// MessageType имя события в конверте
type MessageType string

const (
	// Системные типы
	TypePing  MessageType = "ping"
	TypePong  MessageType = "pong"
	TypeAck   MessageType = "ack"
	TypeError MessageType = "error"

	// Сообщения
	TypeMessageSend    MessageType = "message:send"
	TypeMessageNew     MessageType = "message:new"
	TypeMessageRead    MessageType = "message:read"
	TypeReadReceipt    MessageType = "message:readReceipt"
	TypeMessageDelete  MessageType = "message:delete"
	TypeMessageDeleted MessageType = "message:deleted"

	// Набор текста
	TypeTypingStart MessageType = "typing:start"
	TypeTypingStop  MessageType = "typing:stop"

	// Статусы
	TypeStatusChange MessageType = "user:statusChange"
)

// Message конверт каждого фрейма в обе стороны
type Message struct {
	Type      MessageType     `json:"type"`
	AckID     string          `json:"ack_id,omitempty"`
	Data      json.RawMessage `json:"data,omitempty"`
	Timestamp time.Time       `json:"timestamp"`
}

// AckPayload ответ на событие, которое ждёт подтверждения
type AckPayload struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   interface{} `json:"error,omitempty"`
}

// Encode собирает готовый фрейм
func Encode(msgType MessageType, ackID string, data interface{}) ([]byte, error) {
	msg := Message{
		Type:      msgType,
		AckID:     ackID,
		Timestamp: time.Now().UTC(),
	}
	if data != nil {
		raw, err := json.Marshal(data)
		if err != nil {
			return nil, err
		}
		msg.Data = raw
	}
	return json.Marshal(msg)
}

// ExpectsAck события, на которые ack отправляется даже без ack_id
func (t MessageType) ExpectsAck() bool {
	return t == TypeMessageSend || t == TypeMessageDelete
}
