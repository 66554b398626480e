// Package events публикует изменения сообщений во внешний поток.
package events

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	kafkago "github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

const (
	MessageCreated = "message.created"
	MessageRead    = "message.read"
	MessageDeleted = "message.deleted"
)

// Event запись потока; ключ партиционирования — ConversationID
type Event struct {
	Type           string      `json:"type"`
	ConversationID string      `json:"conversationId"`
	ActorID        string      `json:"actorId"`
	Payload        interface{} `json:"payload,omitempty"`
	OccurredAt     time.Time   `json:"occurredAt"`
}

type Publisher interface {
	Publish(ctx context.Context, event Event)
	Close() error
}

// KafkaPublisher ставит события в буфер и пишет их отдельной горутиной.
// Ошибки брокера только логируются и никогда не возвращаются в обработчик.
type KafkaPublisher struct {
	writer *kafkago.Writer
	queue  chan kafkago.Message
	done   chan struct{}

	mu     sync.RWMutex
	closed bool
	log    *zap.SugaredLogger
}

const (
	publishQueueSize = 1024
	publishTimeout   = 5 * time.Second
)

func NewKafkaPublisher(brokers []string, topic string, log *zap.SugaredLogger) *KafkaPublisher {
	p := &KafkaPublisher{
		writer: &kafkago.Writer{
			Addr:         kafkago.TCP(brokers...),
			Topic:        topic,
			Balancer:     &kafkago.Hash{},
			RequiredAcks: kafkago.RequireOne,
			BatchTimeout: 50 * time.Millisecond,
			WriteTimeout: publishTimeout,
		},
		queue: make(chan kafkago.Message, publishQueueSize),
		done:  make(chan struct{}),
		log:   log,
	}
	go p.run()
	return p
}

func (p *KafkaPublisher) run() {
	defer close(p.done)
	for msg := range p.queue {
		ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
		if err := p.writer.WriteMessages(ctx, msg); err != nil {
			p.log.Warnw("kafka publish failed", "key", string(msg.Key), "error", err)
		}
		cancel()
	}
}

// Publish не блокирует: при переполненном буфере событие отбрасывается
func (p *KafkaPublisher) Publish(_ context.Context, event Event) {
	if event.OccurredAt.IsZero() {
		event.OccurredAt = time.Now().UTC()
	}
	b, err := json.Marshal(event)
	if err != nil {
		p.log.Warnw("encode event", "type", event.Type, "error", err)
		return
	}
	msg := kafkago.Message{
		Key:   []byte(event.ConversationID),
		Value: b,
		Time:  event.OccurredAt,
		Headers: []kafkago.Header{
			{Key: "type", Value: []byte(event.Type)},
		},
	}

	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		p.log.Debugw("publisher closed, dropping event", "type", event.Type)
		return
	}
	select {
	case p.queue <- msg:
	default:
		p.log.Warnw("event queue full, dropping", "type", event.Type)
	}
}

// Close дописывает очередь и закрывает writer; Publish после него события отбрасывает
func (p *KafkaPublisher) Close() error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		<-p.done
		return nil
	}
	p.closed = true
	close(p.queue)
	p.mu.Unlock()

	<-p.done
	return p.writer.Close()
}

// NopPublisher используется, когда KAFKA_BROKERS не задан
type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, Event) {}
func (NopPublisher) Close() error                   { return nil }

// Recorder копит события в памяти
type Recorder struct {
	mu     sync.Mutex
	events []Event
}

func (r *Recorder) Publish(_ context.Context, event Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
}

func (r *Recorder) Close() error { return nil }

func (r *Recorder) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Event, len(r.events))
	copy(out, r.events)
	return out
}
