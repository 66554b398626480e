package dto

// ReadPayload data события message:read
type ReadPayload struct {
	CounterpartID string `json:"counterpartId"`
}

// TypingPayload data событий typing:start / typing:stop
type TypingPayload struct {
	CounterpartID string `json:"counterpartId"`
}

// DeletePayload data события message:delete
type DeletePayload struct {
	MessageID string `json:"messageId"`
}

type ReadResult struct {
	ConversationID string `json:"conversationId"`
	Updated        int64  `json:"updated"`
}
