package transport

import (
	"context"
	"time"

	"github.com/IBM/sarama"

	"github.com/testbedctl/actorcore/pkg/log"
)

// KafkaConfig mirrors the kafka.* configuration surface (spec.md §6):
// brokers, security, and the producer retry/timeout policy.
type KafkaConfig struct {
	Brokers      []string
	ClientID     string
	SecurityProtocol string // "PLAINTEXT", "SASL_SSL", ...
	SASLUsername string
	SASLPassword string
	Retry        RetryConfig
}

// KafkaBus is a Bus backed by IBM/sarama: a SyncProducer with the
// configured retry/timeout policy for Publish, and one ConsumerGroup per
// Subscribe call with manual offset commits, so a message is only
// acknowledged after its handler returns successfully (spec.md §4.7:
// at-least-once ordered delivery).
type KafkaBus struct {
	cfg      KafkaConfig
	client   sarama.Client
	producer sarama.SyncProducer
}

// NewKafkaBus dials brokers and builds the shared client and producer.
func NewKafkaBus(cfg KafkaConfig) (*KafkaBus, error) {
	if cfg.Retry.Retries == 0 {
		cfg.Retry = DefaultRetryConfig()
	}

	sc := sarama.NewConfig()
	sc.ClientID = cfg.ClientID
	sc.Producer.Return.Successes = true
	sc.Producer.Retry.Max = cfg.Retry.Retries
	sc.Producer.Timeout = time.Duration(cfg.Retry.Timeout) * time.Second
	sc.Producer.RequiredAcks = sarama.WaitForAll
	sc.Consumer.Offsets.AutoCommit.Enable = false
	sc.Consumer.Return.Errors = true

	if cfg.SASLUsername != "" {
		sc.Net.SASL.Enable = true
		sc.Net.SASL.User = cfg.SASLUsername
		sc.Net.SASL.Password = cfg.SASLPassword
	}

	client, err := sarama.NewClient(cfg.Brokers, sc)
	if err != nil {
		return nil, err
	}
	producer, err := sarama.NewSyncProducerFromClient(client)
	if err != nil {
		client.Close()
		return nil, err
	}

	return &KafkaBus{cfg: cfg, client: client, producer: producer}, nil
}

// Publish sends msg via the sync producer, which internally retries up
// to cfg.Retry.Retries times before returning an error (spec.md §5:
// "a producer pool ... with retry; default 5 retries, configurable
// timeout 900-1200s").
func (b *KafkaBus) Publish(ctx context.Context, msg Message) error {
	_, _, err := b.producer.SendMessage(&sarama.ProducerMessage{
		Topic: msg.Topic,
		Key:   sarama.StringEncoder(msg.Key),
		Value: sarama.ByteEncoder(msg.Value),
	})
	return err
}

// consumerGroupHandler adapts a plain handle func to sarama's
// ConsumerGroupHandler, committing the offset only after handle
// succeeds.
type consumerGroupHandler struct {
	handle func(Message) error
}

func (consumerGroupHandler) Setup(sarama.ConsumerGroupSession) error   { return nil }
func (consumerGroupHandler) Cleanup(sarama.ConsumerGroupSession) error { return nil }

func (h consumerGroupHandler) ConsumeClaim(sess sarama.ConsumerGroupSession, claim sarama.ConsumerGroupClaim) error {
	for msg := range claim.Messages() {
		if err := h.handle(Message{Topic: msg.Topic, Key: string(msg.Key), Value: msg.Value}); err != nil {
			log.WithComponent("transport").Error().Err(err).
				Str("topic", msg.Topic).Msg("handler failed, offset not committed; message will be redelivered")
			return err
		}
		sess.MarkMessage(msg, "")
		sess.Commit()
	}
	return nil
}

// Subscribe joins a consumer group named after topic and runs until ctx
// is canceled, manual-committing offsets via consumerGroupHandler.
func (b *KafkaBus) Subscribe(ctx context.Context, topic string, handle func(Message) error) error {
	group, err := sarama.NewConsumerGroupFromClient(b.cfg.ClientID+"-"+topic, b.client)
	if err != nil {
		return err
	}
	defer group.Close()

	h := consumerGroupHandler{handle: handle}
	for {
		if err := group.Consume(ctx, []string{topic}, h); err != nil {
			return err
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
	}
}

// Close shuts down the producer and the shared client.
func (b *KafkaBus) Close() error {
	if err := b.producer.Close(); err != nil {
		return err
	}
	return b.client.Close()
}
