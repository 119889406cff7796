package notify

import (
	"context"
	"encoding/json"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

// KafkaWriter is the subset of *kafka.Writer used by KafkaPublisher.
type KafkaWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaPublisher forwards events to a Kafka topic keyed by company.
// Events are queued and written by a single goroutine; a full queue drops the event.
type KafkaPublisher struct {
	writer    KafkaWriter
	events    chan Event
	logger    *zap.Logger
	closeChan chan struct{}
	done      chan struct{}
}

// NewKafkaPublisher dials nothing up front; kafka-go connects lazily on first write.
func NewKafkaPublisher(brokers []string, topic string, logger *zap.Logger) *KafkaPublisher {
	return newKafkaPublisher(&kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Topic:                  topic,
		Balancer:               &kafka.Hash{},
		BatchTimeout:           50 * time.Millisecond,
		AllowAutoTopicCreation: true,
	}, logger, 1000)
}

func newKafkaPublisher(writer KafkaWriter, logger *zap.Logger, buffer int) *KafkaPublisher {
	if logger == nil {
		logger = zap.NewNop()
	}
	p := &KafkaPublisher{
		writer:    writer,
		events:    make(chan Event, buffer),
		logger:    logger.Named("kafka_publisher"),
		closeChan: make(chan struct{}),
		done:      make(chan struct{}),
	}
	go p.eventLoop()
	return p
}

func (p *KafkaPublisher) Publish(ctx context.Context, event Event) {
	select {
	case p.events <- event:
	default:
		p.logger.Warn("kafka publisher queue full, dropping event",
			zap.String("event", event.Event),
			zap.String("company_id", event.Company),
		)
	}
}

func (p *KafkaPublisher) eventLoop() {
	defer close(p.done)
	for {
		select {
		case event := <-p.events:
			p.send(context.Background(), event)
		case <-p.closeChan:
			return
		}
	}
}

func (p *KafkaPublisher) send(ctx context.Context, event Event) {
	value, err := json.Marshal(event)
	if err != nil {
		p.logger.Error("failed to serialize event", zap.String("event", event.Event), zap.Error(err))
		return
	}
	if err := p.writer.WriteMessages(ctx, kafka.Message{Key: []byte(event.Company), Value: value}); err != nil {
		p.logger.Error("failed to produce event",
			zap.String("event", event.Event),
			zap.String("company_id", event.Company),
			zap.Error(err),
		)
	}
}

// Close stops the event loop and closes the writer. Queued events are discarded.
func (p *KafkaPublisher) Close() {
	close(p.closeChan)
	<-p.done
	if err := p.writer.Close(); err != nil {
		p.logger.Error("failed to close kafka writer", zap.Error(err))
	}
}
