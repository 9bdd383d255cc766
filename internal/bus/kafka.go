package bus

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/IBM/sarama"

	"github.com/ricesearch/rice-facets/internal/pkg/errors"
	"github.com/ricesearch/rice-facets/internal/pkg/logger"
)

// Kafka record headers set on every published event.
const (
	HeaderCorrelationID = "correlation_id"
	HeaderSource        = "source"
)

// KafkaConfig holds Kafka connection settings.
type KafkaConfig struct {
	Brokers       []string
	ConsumerGroup string
	ClientID      string
	Version       string // e.g. "2.8.0"

	// TopicPrefix is prepended to lifecycle topics on the broker, so
	// "facets.result" is stored as TopicPrefix+"facets.result".
	TopicPrefix string
}

func (c KafkaConfig) brokerTopic(topic string) string {
	return c.TopicPrefix + topic
}

// KafkaBus publishes lifecycle events to Kafka. All subscribed topics are
// read by one consumer group session, which is re-joined whenever a new
// topic is subscribed.
type KafkaBus struct {
	cfg      KafkaConfig
	client   sarama.Client
	producer sarama.SyncProducer
	group    sarama.ConsumerGroup
	log      *logger.Logger

	mu        sync.RWMutex
	handlers  map[string][]Handler
	closed    bool
	consuming bool
	rejoin    context.CancelFunc

	ctx  context.Context
	stop context.CancelFunc
	wg   sync.WaitGroup
}

// saramaConfig maps cfg onto a sarama configuration. Events are small and
// only useful while fresh, so consumers start at the newest offset.
func saramaConfig(cfg KafkaConfig) (*sarama.Config, error) {
	version, err := sarama.ParseKafkaVersion(cfg.Version)
	if err != nil {
		return nil, errors.Wrap(errors.CodeValidation, "invalid kafka version", err)
	}

	sc := sarama.NewConfig()
	sc.Version = version
	sc.ClientID = cfg.ClientID
	sc.Producer.Return.Successes = true
	sc.Producer.RequiredAcks = sarama.WaitForLocal
	sc.Producer.Retry.Max = 3
	sc.Consumer.Group.Rebalance.GroupStrategies = []sarama.BalanceStrategy{sarama.NewBalanceStrategyRoundRobin()}
	sc.Consumer.Offsets.Initial = sarama.OffsetNewest
	sc.Consumer.Return.Errors = true
	sc.Net.DialTimeout = 10 * time.Second
	sc.Net.ReadTimeout = 10 * time.Second
	sc.Net.WriteTimeout = 10 * time.Second
	return sc, nil
}

// NewKafkaBus connects to the brokers.
func NewKafkaBus(cfg KafkaConfig, log *logger.Logger) (*KafkaBus, error) {
	if len(cfg.Brokers) == 0 {
		return nil, errors.New(errors.CodeValidation, "kafka brokers cannot be empty")
	}
	if cfg.ConsumerGroup == "" {
		return nil, errors.New(errors.CodeValidation, "kafka consumer group cannot be empty")
	}
	if cfg.ClientID == "" {
		cfg.ClientID = "rice-facets"
	}
	if cfg.Version == "" {
		cfg.Version = "2.8.0"
	}
	if log == nil {
		log = logger.Discard()
	}

	sc, err := saramaConfig(cfg)
	if err != nil {
		return nil, err
	}

	client, err := sarama.NewClient(cfg.Brokers, sc)
	if err != nil {
		return nil, errors.Wrap(errors.CodeUnavailable, "failed to connect to kafka", err)
	}
	producer, err := sarama.NewSyncProducerFromClient(client)
	if err != nil {
		client.Close()
		return nil, errors.Wrap(errors.CodeUnavailable, "failed to create kafka producer", err)
	}
	group, err := sarama.NewConsumerGroupFromClient(cfg.ConsumerGroup, client)
	if err != nil {
		producer.Close()
		client.Close()
		return nil, errors.Wrap(errors.CodeUnavailable, "failed to create kafka consumer group", err)
	}

	ctx, stop := context.WithCancel(context.Background())
	return &KafkaBus{
		cfg:      cfg,
		client:   client,
		producer: producer,
		group:    group,
		log:      log.WithComponent("kafka-bus"),
		handlers: make(map[string][]Handler),
		ctx:      ctx,
		stop:     stop,
	}, nil
}

// Publish sends the event, keyed by correlation id so every event of one
// request lands on the same partition in order.
func (b *KafkaBus) Publish(ctx context.Context, topic string, event Event) error {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return errors.New(errors.CodeUnavailable, "bus is closed")
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	msg, err := producerMessage(b.cfg.brokerTopic(topic), event)
	if err != nil {
		return err
	}
	if _, _, err := b.producer.SendMessage(msg); err != nil {
		return errors.Wrap(errors.CodeUnavailable, "failed to publish to kafka", err)
	}
	return nil
}

func producerMessage(brokerTopic string, event Event) (*sarama.ProducerMessage, error) {
	data, err := json.Marshal(event)
	if err != nil {
		return nil, errors.Wrap(errors.CodeInternal, "failed to marshal event", err)
	}

	key := event.CorrelationID
	if key == "" {
		key = event.ID
	}

	msg := &sarama.ProducerMessage{
		Topic: brokerTopic,
		Key:   sarama.StringEncoder(key),
		Value: sarama.ByteEncoder(data),
	}
	if event.CorrelationID != "" {
		msg.Headers = append(msg.Headers, sarama.RecordHeader{Key: []byte(HeaderCorrelationID), Value: []byte(event.CorrelationID)})
	}
	if event.Source != "" {
		msg.Headers = append(msg.Headers, sarama.RecordHeader{Key: []byte(HeaderSource), Value: []byte(event.Source)})
	}
	return msg, nil
}

// Subscribe registers a handler for a lifecycle topic.
func (b *KafkaBus) Subscribe(_ context.Context, topic string, handler Handler) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return errors.New(errors.CodeUnavailable, "bus is closed")
	}

	newTopic := len(b.handlers[topic]) == 0
	b.handlers[topic] = append(b.handlers[topic], handler)

	switch {
	case !b.consuming:
		b.consuming = true
		b.wg.Add(1)
		go b.consume()
	case newTopic && b.rejoin != nil:
		b.rejoin()
	}
	return nil
}

// brokerTopics lists the subscribed topics as named on the broker.
func (b *KafkaBus) brokerTopics() []string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	topics := make([]string, 0, len(b.handlers))
	for t := range b.handlers {
		topics = append(topics, b.cfg.brokerTopic(t))
	}
	slices.Sort(topics)
	return topics
}

func (b *KafkaBus) consume() {
	defer b.wg.Done()
	handler := &groupHandler{bus: b}

	for b.ctx.Err() == nil {
		session, cancel := context.WithCancel(b.ctx)
		b.mu.Lock()
		b.rejoin = cancel
		b.mu.Unlock()

		topics := b.brokerTopics()
		// Consume blocks for one group session.
		err := b.group.Consume(session, topics, handler)
		rejoined := session.Err() != nil && b.ctx.Err() == nil
		cancel()

		if err != nil && !stderrors.Is(err, sarama.ErrClosedConsumerGroup) {
			b.log.Warn("kafka consumer error", "topics", topics, "error", err)
		}
		if rejoined {
			continue
		}
		select {
		case <-b.ctx.Done():
		case <-time.After(time.Second):
		}
	}
}

func (b *KafkaBus) dispatch(ctx context.Context, brokerTopic string, data []byte) {
	topic := strings.TrimPrefix(brokerTopic, b.cfg.TopicPrefix)

	var event Event
	if err := json.Unmarshal(data, &event); err != nil {
		b.log.Warn("dropping undecodable event", "topic", topic, "error", err)
		return
	}

	b.mu.RLock()
	handlers := b.handlers[topic]
	b.mu.RUnlock()

	for _, h := range handlers {
		if err := h(ctx, event); err != nil {
			b.log.Warn("event handler failed", "topic", topic, "event", event.ID, "correlation_id", event.CorrelationID, "error", err)
		}
	}
}

// Close stops consuming and releases the Kafka client.
func (b *KafkaBus) Close() error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil
	}
	b.closed = true
	b.mu.Unlock()

	b.stop()
	var errs []error
	if err := b.group.Close(); err != nil {
		errs = append(errs, err)
	}
	b.wg.Wait()
	if err := b.producer.Close(); err != nil {
		errs = append(errs, err)
	}
	if err := b.client.Close(); err != nil && !stderrors.Is(err, sarama.ErrClosedClient) {
		errs = append(errs, err)
	}

	if err := stderrors.Join(errs...); err != nil {
		return errors.Wrap(errors.CodeInternal, "closing kafka bus", err)
	}
	return nil
}

// groupHandler implements sarama.ConsumerGroupHandler.
type groupHandler struct {
	bus *KafkaBus
}

func (h *groupHandler) Setup(sarama.ConsumerGroupSession) error   { return nil }
func (h *groupHandler) Cleanup(sarama.ConsumerGroupSession) error { return nil }

func (h *groupHandler) ConsumeClaim(session sarama.ConsumerGroupSession, claim sarama.ConsumerGroupClaim) error {
	for {
		select {
		case <-session.Context().Done():
			return nil
		case msg, ok := <-claim.Messages():
			if !ok {
				return nil
			}
			h.bus.dispatch(session.Context(), msg.Topic, msg.Value)
			session.MarkMessage(msg, "")
		}
	}
}

// ParseKafkaBrokers splits a comma-separated broker list.
func ParseKafkaBrokers(s string) []string {
	var brokers []string
	for _, b := range strings.Split(s, ",") {
		if b = strings.TrimSpace(b); b != "" {
			brokers = append(brokers, b)
		}
	}
	return brokers
}
