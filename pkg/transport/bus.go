// Package transport carries serialized protocol envelopes between
// actors. It defines the Bus abstraction the kernel's consumer and
// producer threads use, plus two implementations: an in-memory
// channel-backed Bus for single-process tests and deployments, and a
// Kafka-backed Bus using IBM/sarama for multi-process deployments
// (spec.md §5: "one consumer thread ... a producer pool ... with retry").
package transport

import "context"

// Message is one unit of bus transport: an opaque payload (normally a
// JSON-encoded protocol.Envelope) addressed to a topic.
type Message struct {
	Topic string
	Key   string // partitioning/ordering key, normally the destination actor guid
	Value []byte
}

// Bus is the transport abstraction every actor's consumer and producer
// are built on. Implementations must preserve per-(topic, partition)
// ordering for at-least-once delivery (spec.md §4.7).
type Bus interface {
	// Publish sends msg, retrying internally per the configured retry
	// policy before returning an error.
	Publish(ctx context.Context, msg Message) error

	// Subscribe registers a consumer for topic; messages are delivered
	// to handle until ctx is canceled or Close is called. Offset commits
	// happen only after handle returns nil, so a crash mid-processing
	// redelivers the message (at-least-once).
	Subscribe(ctx context.Context, topic string, handle func(Message) error) error

	// Close releases underlying connections.
	Close() error
}

// RetryConfig configures KafkaBus's retrying producer; MemoryBus does
// not use it (spec.md §5: "default 5 retries, configurable
// timeout 900-1200s").
type RetryConfig struct {
	Retries int
	Timeout int // seconds
}

// DefaultRetryConfig matches the spec's stated defaults.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{Retries: 5, Timeout: 900}
}
