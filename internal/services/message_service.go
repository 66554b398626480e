package services

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"github.com/thereayou/rylac/internal/apperrors"
	"github.com/thereayou/rylac/internal/events"
	"github.com/thereayou/rylac/internal/models"
	"github.com/thereayou/rylac/internal/websocket"
	"go.uber.org/zap"
)

const (
	DefaultHistoryLimit = 50
	MaxHistoryLimit     = 100
)

// Deliverer личные каналы пользователей
type Deliverer interface {
	Deliver(userID string, msgType websocket.MessageType, data interface{}) int
}

type MessageLimits struct {
	MaxMediaSize  int64
	MaxTextLength int
}

// SentMessage сохранённая запись плюс tempId клиента, уходит в ack
type SentMessage struct {
	models.Message
	TempID string `json:"tempId,omitempty"`
}

type HistoryPage struct {
	Messages []models.Message `json:"messages"`
	HasMore  bool             `json:"hasMore"`
}

type ReadReceipt struct {
	ReadBy         string `json:"readBy"`
	ConversationID string `json:"conversationId"`
}

type DeletedNotice struct {
	MessageID      string `json:"messageId"`
	ConversationID string `json:"conversationId"`
}

type TypingNotice struct {
	UserID string `json:"userId"`
}

type MessageService struct {
	store     MessageStore
	hub       Deliverer
	publisher events.Publisher
	limits    MessageLimits
	log       *zap.SugaredLogger
}

func NewMessageService(store MessageStore, hub Deliverer, publisher events.Publisher, limits MessageLimits, log *zap.SugaredLogger) *MessageService {
	if publisher == nil {
		publisher = events.NopPublisher{}
	}
	return &MessageService{
		store:     store,
		hub:       hub,
		publisher: publisher,
		limits:    limits,
		log:       log,
	}
}

// Send проверяет и сохраняет сообщение, затем доставляет его получателю
func (s *MessageService) Send(ctx context.Context, senderID string, req SendRequest) (*SentMessage, error) {
	req.ReceiverID = strings.TrimSpace(req.ReceiverID)
	if req.ReceiverID == "" {
		return nil, apperrors.Validation("receiver id is required")
	}
	if req.ReceiverID == senderID {
		return nil, apperrors.Forbidden("cannot send messages to yourself")
	}

	msg, err := req.buildMessage(senderID, s.limits)
	if err != nil {
		return nil, err
	}

	exists, err := s.store.UserExists(ctx, req.ReceiverID)
	if err != nil {
		return nil, apperrors.Unavailable(err)
	}
	if !exists {
		return nil, apperrors.NotFound("receiver not found")
	}

	if err := s.store.SaveMessage(ctx, msg); err != nil {
		return nil, apperrors.Unavailable(err)
	}

	s.hub.Deliver(msg.ReceiverID, websocket.TypeMessageNew, msg)
	s.publisher.Publish(ctx, events.Event{
		Type:           events.MessageCreated,
		ConversationID: msg.ConversationID,
		ActorID:        senderID,
		Payload:        msg,
	})

	return &SentMessage{Message: *msg, TempID: req.TempID}, nil
}

// History страница диалога в хронологическом порядке
func (s *MessageService) History(ctx context.Context, userID, counterpartID, before string, limit int) (*HistoryPage, error) {
	if limit <= 0 {
		limit = DefaultHistoryLimit
	}
	if limit > MaxHistoryLimit {
		limit = MaxHistoryLimit
	}

	var cursor *uuid.UUID
	if before != "" {
		id, err := uuid.Parse(before)
		if err != nil {
			return nil, apperrors.Validation("invalid cursor")
		}
		cursor = &id
	}

	exists, err := s.store.UserExists(ctx, counterpartID)
	if err != nil {
		return nil, apperrors.Unavailable(err)
	}
	if !exists {
		return nil, apperrors.NotFound("user not found")
	}

	messages, err := s.store.GetConversationMessages(ctx, models.ConversationID(userID, counterpartID), limit, cursor)
	if err != nil {
		return nil, storeError(err, "cursor message not found")
	}

	// Разворачиваем порядок, чтобы старые сообщения были первыми
	for i, j := 0, len(messages)-1; i < j; i, j = i+1, j-1 {
		messages[i], messages[j] = messages[j], messages[i]
	}
	if messages == nil {
		messages = []models.Message{}
	}

	return &HistoryPage{Messages: messages, HasMore: len(messages) == limit}, nil
}

// MarkRead помечает входящие от собеседника прочитанными и шлёт ему квитанцию
func (s *MessageService) MarkRead(ctx context.Context, readerID, counterpartID string) (int64, error) {
	counterpartID = strings.TrimSpace(counterpartID)
	if counterpartID == "" {
		return 0, apperrors.Validation("counterpart id is required")
	}
	if counterpartID == readerID {
		return 0, apperrors.Validation("cannot read a conversation with yourself")
	}

	conversationID := models.ConversationID(readerID, counterpartID)
	n, err := s.store.MarkConversationRead(ctx, conversationID, readerID)
	if err != nil {
		return 0, apperrors.Unavailable(err)
	}

	s.hub.Deliver(counterpartID, websocket.TypeReadReceipt, ReadReceipt{
		ReadBy:         readerID,
		ConversationID: conversationID,
	})
	if n > 0 {
		s.publisher.Publish(ctx, events.Event{
			Type:           events.MessageRead,
			ConversationID: conversationID,
			ActorID:        readerID,
			Payload:        map[string]int64{"count": n},
		})
	}
	return n, nil
}

// Delete мягко удаляет сообщение отправителя; событие уходит только на реальном переходе
func (s *MessageService) Delete(ctx context.Context, requesterID, messageID string) (*models.Message, error) {
	id, err := uuid.Parse(strings.TrimSpace(messageID))
	if err != nil {
		return nil, apperrors.Validation("invalid message id")
	}

	msg, err := s.store.GetMessage(ctx, id)
	if err != nil {
		return nil, storeError(err, "message not found")
	}
	if msg.SenderID != requesterID {
		return nil, apperrors.Forbidden("you can only delete your own messages")
	}
	if msg.IsDeleted {
		return msg, nil
	}

	changed, err := s.store.SoftDeleteMessage(ctx, id, requesterID)
	if err != nil {
		return nil, apperrors.Unavailable(err)
	}

	if changed {
		notice := DeletedNotice{MessageID: msg.ID.String(), ConversationID: msg.ConversationID}
		s.hub.Deliver(msg.Counterpart(requesterID), websocket.TypeMessageDeleted, notice)
		s.publisher.Publish(ctx, events.Event{
			Type:           events.MessageDeleted,
			ConversationID: msg.ConversationID,
			ActorID:        requesterID,
			Payload:        notice,
		})
	}

	// перечитываем, чтобы вернуть надгробие из базы
	stored, err := s.store.GetMessage(ctx, id)
	if err != nil {
		return nil, storeError(err, "message not found")
	}
	return stored, nil
}

// Typing ретранслирует индикатор набора только собеседнику
func (s *MessageService) Typing(senderID, counterpartID string, started bool) error {
	counterpartID = strings.TrimSpace(counterpartID)
	if counterpartID == "" {
		return apperrors.Validation("counterpart id is required")
	}
	if counterpartID == senderID {
		return nil
	}

	eventType := websocket.TypeTypingStop
	if started {
		eventType = websocket.TypeTypingStart
	}
	s.hub.Deliver(counterpartID, eventType, TypingNotice{UserID: senderID})
	return nil
}
