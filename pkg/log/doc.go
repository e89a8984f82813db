/*
Package log provides structured logging for the control framework using zerolog.

The log package wraps the zerolog library to provide JSON-structured logging with
component-specific loggers, configurable log levels, and helper functions for
common logging patterns. All logs include timestamps and support filtering by
severity level for production debugging.

# Architecture

The framework's logging system provides structured JSON logging with minimal overhead:

	┌──────────────────── LOGGING SYSTEM ──────────────────────┐
	│                                                            │
	│  ┌────────────────────────────────────────────┐          │
	│  │            Global Logger                    │          │
	│  │  - Zerolog instance                         │          │
	│  │  - Initialized via log.Init()               │          │
	│  │  - Thread-safe for concurrent use           │          │
	│  └──────────────────┬─────────────────────────┘          │
	│                     │                                      │
	│  ┌──────────────────▼─────────────────────────┐          │
	│  │           Configuration                     │          │
	│  │  - Level: debug/info/warn/error             │          │
	│  │  - Format: JSON or console (human)          │          │
	│  │  - Output: stdout, file, or custom writer   │          │
	│  └──────────────────┬─────────────────────────┘          │
	│                     │                                      │
	│  ┌──────────────────▼─────────────────────────┐          │
	│  │         Component Loggers                   │          │
	│  │  - WithComponent("kernel")                  │          │
	│  │  - WithActor(guid, "broker")                │          │
	│  │  - WithReservation("r-abc123")              │          │
	│  │  - WithSlice("s-def456")                    │          │
	│  └──────────────────┬─────────────────────────┘          │
	│                     │                                      │
	│  ┌──────────────────▼─────────────────────────┐          │
	│  │            Log Output                       │          │
	│  │                                              │          │
	│  │  JSON Format:                               │          │
	│  │  {                                           │          │
	│  │    "level": "info",                         │          │
	│  │    "component": "kernel",                   │          │
	│  │    "time": "2026-07-31T10:30:00Z",         │          │
	│  │    "message": "reservation ticketed"        │          │
	│  │  }                                           │          │
	│  │                                              │          │
	│  │  Console Format:                            │          │
	│  │  2026-07-31T10:30:00Z INF reservation ticketed component=kernel │   │
	│  └────────────────────────────────────────────┘           │
	└────────────────────────────────────────────────────────┘

# Core Components

Global Logger:
  - Package-level zerolog.Logger instance
  - Initialized once via log.Init()
  - Accessible from every package in this module
  - Thread-safe concurrent writes

Log Levels:
  - Debug: Detailed debugging information
  - Info: General informational messages
  - Warn: Warning messages (potential issues)
  - Error: Error messages (operation failed)
  - Fatal: Critical errors (process exits)

Configuration:
  - Level: Filter messages below threshold
  - JSONOutput: JSON vs human-readable console
  - Output: io.Writer for log destination (stdout, file)

Context Loggers:
  - WithComponent: Add component name to all logs
  - WithNodeID: Add graph_node_id context
  - WithActor: Add actor_guid and actor_role context
  - WithReservation: Add reservation_id context
  - WithSlice: Add slice_id context

# Log Levels

Debug Level:
  - Purpose: Detailed debugging information
  - Usage: Development and troubleshooting
  - Performance: Verbose, may impact production
  - Example: "evaluating node n-14: free cores=4, ram=8GB"

Info Level:
  - Purpose: General informational messages
  - Usage: Default production level
  - Performance: Moderate volume
  - Example: "reservation r-9f2 ticketed (node n-14)"

Warn Level:
  - Purpose: Potential issues or unexpected conditions
  - Usage: Situations that may require attention
  - Performance: Low volume
  - Example: "peer broker-2 heartbeat missed (1 occurrence)"

Error Level:
  - Purpose: Operation failures that need investigation
  - Usage: Failed operations, exceptions
  - Performance: Low volume
  - Example: "handler failed: provision timed out for r-9f2"

Fatal Level:
  - Purpose: Critical errors causing process termination
  - Usage: Unrecoverable errors only
  - Behavior: Logs message and exits process (os.Exit(1))
  - Example: "failed to open reservation store: %v"

# Usage

Initializing the Logger:

	import "github.com/testbedctl/actorcore/pkg/log"

	// JSON output (production)
	log.Init(log.Config{
		Level:      log.InfoLevel,
		JSONOutput: true,
		Output:     os.Stdout,
	})

	// Console output (development)
	log.Init(log.Config{
		Level:      log.DebugLevel,
		JSONOutput: false,
		Output:     os.Stdout,
	})

	// Custom output (file)
	file, _ := os.OpenFile("/var/log/actorcore.log", os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	log.Init(log.Config{
		Level:      log.InfoLevel,
		JSONOutput: true,
		Output:     file,
	})

Simple Logging:

	log.Info("actor initialized successfully")
	log.Debug("polling calendar for due reservations")
	log.Warn("delegation capacity running low")
	log.Error("failed to reach peer broker")
	log.Fatal("cannot start without a reservation store") // Exits process

Structured Logging:

	log.Logger.Info().
		Str("reservation_id", "r-9f2").
		Int("retry_count", 1).
		Msg("reservation redeemed")

	log.Logger.Error().
		Err(err).
		Str("graph_node_id", "n-14").
		Msg("node capacity check failed")

Component Loggers:

	// Create component-specific logger
	kernelLog := log.WithComponent("kernel")
	kernelLog.Info().Msg("tick loop started")
	kernelLog.Debug().Str("reservation_id", "r-9f2").Msg("processing ticket request")

	// Multiple context fields
	policyLog := log.WithComponent("policy").
		With().Str("graph_node_id", "n-14").
		Str("reservation_id", "r-9f2").Logger()
	policyLog.Info().Msg("candidate node selected")
	policyLog.Error().Err(err).Msg("allocation failed")

Context Logger Helpers:

	// Actor-specific logs
	actorLog := log.WithActor("broker-guid-1", "broker")
	actorLog.Info().Msg("actor registered with peer catalog")

	// Reservation-specific logs
	resLog := log.WithReservation("r-9f2")
	resLog.Info().Msg("reservation ticketed")

	// Slice-specific logs
	sliceLog := log.WithSlice("s-def456")
	sliceLog.Info().Msg("slice stable")

Complete Example:

	package main

	import (
		"errors"
		"os"
		"github.com/testbedctl/actorcore/pkg/log"
	)

	func main() {
		// Initialize logger
		log.Init(log.Config{
			Level:      log.InfoLevel,
			JSONOutput: true,
			Output:     os.Stdout,
		})

		log.Info("actor starting")

		// Component-specific logging
		kernelLog := log.WithComponent("kernel")
		kernelLog.Info().
			Str("graph_node_id", "n-1").
			Int("reservation_count", 5).
			Msg("tick processed reservations")

		// Error logging
		err := errors.New("connection refused")
		log.Logger.Error().
			Err(err).
			Str("component", "transport").
			Msg("failed to reach peer")

		log.Info("actor stopped")
	}

# Integration Points

This package integrates with:

  - pkg/kernel: Logs tick-loop step execution and event dispatch
  - pkg/policy: Logs broker/authority allocation decisions
  - pkg/handler: Logs provisioning, teardown, and probe outcomes
  - pkg/actor: Logs inbound/outbound message handling
  - pkg/orchestrator: Logs slice workflow events and RPC expiries
  - pkg/transport: Logs bus connectivity and delivery retries

# Log Output Examples

JSON Format (Production):

	{"level":"info","component":"kernel","time":"2026-07-31T10:30:00Z","message":"actor initialized"}
	{"level":"info","component":"policy","reservation_id":"r-9f2","time":"2026-07-31T10:30:01Z","message":"reservation ticketed"}
	{"level":"error","component":"handler","graph_node_id":"n-14","time":"2026-07-31T10:30:02Z","message":"provision failed"}

Console Format (Development):

	2026-07-31T10:30:00Z INF actor initialized component=kernel
	2026-07-31T10:30:01Z INF reservation ticketed component=policy reservation_id=r-9f2
	2026-07-31T10:30:02Z ERR provision failed component=handler graph_node_id=n-14

# Design Patterns

Global Logger Pattern:
  - Single package-level Logger instance
  - Initialized once at application start
  - Accessible from all packages without passing
  - Simplifies logging in deeply nested calls

Context Logger Pattern:
  - Create child loggers with context fields
  - Pass context loggers to functions
  - Automatically includes context in all logs
  - Avoids repetitive field specification

Structured Logging Pattern:
  - Use typed fields (.Str, .Int, .Err)
  - Enables log aggregation and querying
  - Better than string concatenation
  - Parseable by log analysis tools

Error Logging Pattern:
  - Always use .Err(err) for error objects
  - Provides stack trace information
  - Enables error tracking and alerting
  - Consistent error format across codebase

# Performance Characteristics

Logging Overhead:
  - Disabled level: 0ns (compile-time optimization)
  - JSON encode: ~500ns per log line
  - Console format: ~1µs per log line
  - String field: +50ns per field
  - Int field: +30ns per field

Memory Allocation:
  - Zero allocation for disabled levels
  - ~100 bytes per log line (JSON)
  - ~200 bytes per log line (console)
  - Amortized by buffer pooling

Throughput:
  - JSON: ~2M log lines per second
  - Console: ~1M log lines per second
  - Bottleneck: I/O write speed
  - Async writes recommended for high volume

Log Level Impact:
  - Debug: High volume, use in development only
  - Info: Moderate volume, suitable for production
  - Warn/Error: Low volume, minimal impact
  - Recommendation: Info level in production

# Troubleshooting

Common Issues:

No Log Output:
  - Symptom: No logs appearing
  - Check: log.Init() called before logging
  - Check: Log level set appropriately (Debug < Info < Warn < Error)
  - Solution: Initialize logger in main() before any logging

Excessive Log Volume:
  - Symptom: Disk space fills quickly
  - Cause: Debug level in production
  - Check: Log level configuration
  - Solution: Use Info level in production, rotate logs

Missing Context Fields:
  - Symptom: Logs missing component or id fields
  - Cause: Using global Logger instead of context logger
  - Solution: Use WithComponent() or create child loggers

Log Parsing Fails:
  - Symptom: Cannot parse JSON logs
  - Cause: Invalid JSON in message field
  - Check: Embedded quotes or control characters
  - Solution: Use .Str() instead of string interpolation

Performance Degradation:
  - Symptom: Slow application performance
  - Cause: Excessive logging in hot path
  - Check: Log statements inside the tick loop's per-reservation scan
  - Solution: Reduce log frequency, use sampling

# Log Rotation

File-Based Logging:

This package does not include built-in log rotation. Use external tools:

Logrotate (Linux):
	# /etc/logrotate.d/actorcore
	/var/log/actorcore/*.log {
	    daily
	    rotate 7
	    compress
	    delaycompress
	    missingok
	    notifempty
	    copytruncate
	}

Systemd Journal:
	# Automatic rotation by systemd
	journalctl -u actorcore -f

Docker/Kubernetes:
	# Use container runtime log drivers
	# JSON logs to stdout (already implemented)

# Log Aggregation

Recommended Tools:

Elasticsearch + Filebeat:
  - Filebeat ships logs to Elasticsearch
  - Kibana for visualization and search
  - Query: component:"policy" AND level:"error"

Loki + Promtail:
  - Lightweight log aggregation
  - Grafana integration
  - Query: {component="kernel"} |= "error"

CloudWatch Logs:
  - AWS native log aggregation
  - Metric filters for alerting
  - Query: fields @message | filter component = "handler"

Datadog:
  - Full-stack observability
  - APM and log correlation
  - Query: service:actorcore component:policy status:error

# Monitoring

Log-Based Alerts:

High Error Rate:
  - Query: rate(log entries with level="error"[5m]) > 10
  - Description: More than 10 errors per second
  - Action: Check recent errors, investigate root cause

No Logs:
  - Query: absent(log entries[1m])
  - Description: No logs received in 1 minute
  - Action: Check actor process, log pipeline

Specific Error Pattern:
  - Query: log entries containing "provision failed"
  - Description: Handler provisioning failures
  - Action: Check handler pool status, substrate connectivity

# Security

Log Content:
  - Never log secrets or sensitive data
  - Redact tokens, passwords, API keys
  - Use log scrubbing for compliance (GDPR, PCI)
  - Review logs before sharing externally

Log Access:
  - Restrict log file permissions (0640)
  - Limit log aggregation access (RBAC)
  - Audit log access in production
  - Encrypt logs at rest and in transit

Log Injection:
  - Use structured logging (prevents injection)
  - Never concatenate user input into log messages
  - Use typed fields (.Str, .Int) for user data
  - Validate/sanitize before logging if necessary

# Best Practices

Do:
  - Use Info level for production
  - Use structured fields for queryable data
  - Create component-specific loggers
  - Log errors with .Err() for stack traces
  - Include context (actor guid, reservation id, slice id)

Don't:
  - Log sensitive data (secrets, passwords, auth tokens)
  - Use Debug level in production
  - Log in tight loops (use sampling)
  - Concatenate strings (use .Str, .Int)
  - Block on log writes (use buffered output)

# See Also

  - Zerolog documentation: https://github.com/rs/zerolog
  - Structured logging: https://www.thoughtworks.com/radar/techniques/structured-logging
  - 12-Factor App Logs: https://12factor.net/logs
  - Log aggregation: https://www.elastic.co/what-is/log-aggregation
*/
package log
