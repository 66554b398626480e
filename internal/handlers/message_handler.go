package handlers

import (
	"context"
	"encoding/json"

	"github.com/thereayou/rylac/internal/apperrors"
	"github.com/thereayou/rylac/internal/handlers/dto"
	"github.com/thereayou/rylac/internal/models"
	"github.com/thereayou/rylac/internal/services"
	"github.com/thereayou/rylac/internal/websocket"
)

// MessageHandler разбирает события одного соединения и вызывает MessageService
type MessageHandler struct {
	messages *services.MessageService
}

func NewMessageHandler(messages *services.MessageService) *MessageHandler {
	return &MessageHandler{messages: messages}
}

func (h *MessageHandler) HandleMessage(ctx context.Context, client *websocket.Client, msg *websocket.Message) error {
	switch msg.Type {
	case websocket.TypePing:
		return client.SendMessage(websocket.TypePong, msg.AckID, nil)

	case websocket.TypeMessageSend:
		return h.handleSend(ctx, client, msg)

	case websocket.TypeMessageRead:
		return h.handleRead(ctx, client, msg)

	case websocket.TypeTypingStart, websocket.TypeTypingStop:
		return h.handleTyping(client, msg)

	case websocket.TypeMessageDelete:
		return h.handleDelete(ctx, client, msg)

	default:
		return apperrors.Validation(websocket.ErrUnknownEvent.Error() + ": " + string(msg.Type))
	}
}

func (h *MessageHandler) handleSend(ctx context.Context, client *websocket.Client, msg *websocket.Message) error {
	var req services.SendRequest
	if err := decode(msg, &req); err != nil {
		return err
	}

	sent, err := h.messages.Send(ctx, client.UserID, req)
	if err != nil {
		return err
	}

	client.SendAck(msg.AckID, websocket.AckPayload{Success: true, Data: sent})
	return nil
}

func (h *MessageHandler) handleRead(ctx context.Context, client *websocket.Client, msg *websocket.Message) error {
	var req dto.ReadPayload
	if err := decode(msg, &req); err != nil {
		return err
	}
	if req.CounterpartID == "" {
		return apperrors.Validation("counterpartId is required")
	}

	n, err := h.messages.MarkRead(ctx, client.UserID, req.CounterpartID)
	if err != nil {
		return err
	}

	if msg.AckID != "" {
		client.SendAck(msg.AckID, websocket.AckPayload{Success: true, Data: dto.ReadResult{
			ConversationID: models.ConversationID(client.UserID, req.CounterpartID),
			Updated:        n,
		}})
	}
	return nil
}

func (h *MessageHandler) handleTyping(client *websocket.Client, msg *websocket.Message) error {
	var req dto.TypingPayload
	if err := decode(msg, &req); err != nil {
		return err
	}
	return h.messages.Typing(client.UserID, req.CounterpartID, msg.Type == websocket.TypeTypingStart)
}

func (h *MessageHandler) handleDelete(ctx context.Context, client *websocket.Client, msg *websocket.Message) error {
	var req dto.DeletePayload
	if err := decode(msg, &req); err != nil {
		return err
	}

	deleted, err := h.messages.Delete(ctx, client.UserID, req.MessageID)
	if err != nil {
		return err
	}

	client.SendAck(msg.AckID, websocket.AckPayload{Success: true, Data: deleted})
	return nil
}

func decode(msg *websocket.Message, v interface{}) error {
	if len(msg.Data) == 0 {
		return apperrors.Validation("data is required")
	}
	if err := json.Unmarshal(msg.Data, v); err != nil {
		return apperrors.Validation(websocket.ErrInvalidMessage.Error())
	}
	return nil
}
