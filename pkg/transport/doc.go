/*
Package transport carries serialized protocol.Envelope bytes between
actor processes (spec.md §5: "one consumer thread ... a producer pool
... a clock thread ... a timer thread").

Two implementations satisfy Bus:

  - MemoryBus: channel-backed, in-process. The default for tests and a
    single-process deployment that runs all three actor roles in one
    binary.
  - KafkaBus: github.com/IBM/sarama-backed, for a real multi-process,
    multi-site deployment. Publish uses a SyncProducer configured with
    the spec's retry/timeout defaults (5 retries, 900s); Subscribe joins
    a consumer group with auto-commit disabled, so an offset only
    advances after the caller's handler returns nil — redelivering a
    message whose handler failed or whose process crashed mid-handling.

Nothing in pkg/kernel or pkg/protocol depends on which Bus is wired; the
actor.Runtime picks one at startup from configuration.
*/
package transport
