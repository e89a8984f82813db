// Package config loads the YAML configuration surface spec.md §6 names:
// actor role/policy/resource wiring, the peer catalog, the logical clock,
// graph and reservation store connections, PDP wiring, and the metrics
// exporter port.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/testbedctl/actorcore/pkg/types"
)

// KafkaConfig controls the message bus a Kafka-backed deployment uses.
type KafkaConfig struct {
	Brokers          []string `yaml:"brokers"`
	ClientID         string   `yaml:"client_id"`
	SecurityProtocol string   `yaml:"security_protocol"`
	SASLUsername     string   `yaml:"sasl_username"`
	SASLPassword     string   `yaml:"sasl_password"`
	RPCRetries       int      `yaml:"rpc_retries"`
	RPCTimeout       int      `yaml:"rpc_timeout_seconds"`
}

// ActorConfig selects the role this process runs as and the policy and
// handler/control wiring that role loads (spec.md §6 "actor.type",
// "actor.policy", "actor.resources"/"actor.controls").
type ActorConfig struct {
	GUID      string                      `yaml:"guid"`
	Type      types.ActorRole             `yaml:"type"`
	Policy    string                      `yaml:"policy"`
	Resources map[types.ResourceType]string `yaml:"resources"`
	Controls  map[types.ResourceType]string `yaml:"controls"`
}

// TimeConfig controls the logical clock (spec.md §6 "time.*").
type TimeConfig struct {
	Manual      bool  `yaml:"manual"`
	StartTime   int64 `yaml:"start_time"`
	CycleMillis int   `yaml:"cycle_millis"`
	FirstTick   uint64 `yaml:"first_tick"`
}

// Neo4jConfig is the graph-store connection (spec.md §6 "neo4j.*"). The
// graph information model's implementation is an explicit non-goal; this
// is only the connection surface a deployment fills in.
type Neo4jConfig struct {
	URI      string `yaml:"uri"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	Database string `yaml:"database"`
}

// DatabaseConfig is the reservation/slice store connection (spec.md §6
// "database.*"). The shipped Store implementation is BoltDB
// (pkg/storage), so only DataDir and CommitBatchSize are consumed today;
// the rest describes the surface a SQL-backed Store would bind to.
type DatabaseConfig struct {
	Driver          string `yaml:"driver"`
	DataDir         string `yaml:"data_dir"`
	DSN             string `yaml:"dsn"`
	CommitBatchSize int    `yaml:"commit_batch_size"`
}

// PDPConfig wires the external authorization endpoint (spec.md §6
// "pdp.enable", "pdp.url").
type PDPConfig struct {
	Enable  bool   `yaml:"enable"`
	URL     string `yaml:"url"`
	Timeout int    `yaml:"timeout_seconds"`
}

// PeerConfig is one entry of the static peer catalog (spec.md §3 "Peer").
type PeerConfig struct {
	GUID           string          `yaml:"guid"`
	Type           types.ActorRole `yaml:"type"`
	InboundTopic   string          `yaml:"inbound_topic"`
	DelegationName string          `yaml:"delegation_name"`
}

// Config is the full process configuration.
type Config struct {
	Kafka      KafkaConfig  `yaml:"kafka"`
	Actor      ActorConfig  `yaml:"actor"`
	Peers      []PeerConfig `yaml:"peers"`
	Time       TimeConfig   `yaml:"time"`
	Neo4j      Neo4jConfig  `yaml:"neo4j"`
	Database   DatabaseConfig `yaml:"database"`
	PDP        PDPConfig    `yaml:"pdp"`
	Prometheus struct {
		Port int `yaml:"port"`
	} `yaml:"prometheus"`
}

// New returns a Config populated with the defaults a bare deployment
// (simulated handlers, in-memory bus, manual clock off) can run under
// without a config file.
func New() *Config {
	cfg := &Config{}
	cfg.Kafka.ClientID = "actorcore"
	cfg.Kafka.RPCRetries = 5
	cfg.Kafka.RPCTimeout = 900
	cfg.Actor.Policy = "calendar"
	cfg.Database.Driver = "boltdb"
	cfg.Database.DataDir = "./data"
	cfg.Database.CommitBatchSize = 1
	cfg.Prometheus.Port = 9090
	return cfg
}

// Load reads path as YAML into a Config seeded with defaults. A missing
// file is not an error — the defaults stand on their own for local runs
// and tests.
func Load(path string) (*Config, error) {
	cfg := New()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	return cfg, nil
}

// PeerCatalog converts the configured peer list into the Peer values
// pkg/actor loads into its process-wide catalog at init.
func (c *Config) PeerCatalog() []types.Peer {
	peers := make([]types.Peer, 0, len(c.Peers))
	for _, p := range c.Peers {
		peers = append(peers, types.Peer{
			GUID:           p.GUID,
			Type:           p.Type,
			InboundTopic:   p.InboundTopic,
			DelegationName: p.DelegationName,
		})
	}
	return peers
}
