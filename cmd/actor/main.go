// Command actor runs one orchestrator, broker, or authority process:
// it loads the YAML config (pkg/config), wires the role's kernel,
// calendar, policy, transport, and storage together (pkg/actor,
// pkg/policy, pkg/orchestrator), and serves /metrics, /health, /ready,
// and /live until interrupted.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/testbedctl/actorcore/pkg/actor"
	"github.com/testbedctl/actorcore/pkg/calendar"
	"github.com/testbedctl/actorcore/pkg/clock"
	"github.com/testbedctl/actorcore/pkg/config"
	"github.com/testbedctl/actorcore/pkg/graph"
	"github.com/testbedctl/actorcore/pkg/handler"
	"github.com/testbedctl/actorcore/pkg/log"
	"github.com/testbedctl/actorcore/pkg/metrics"
	"github.com/testbedctl/actorcore/pkg/orchestrator"
	"github.com/testbedctl/actorcore/pkg/pdp"
	"github.com/testbedctl/actorcore/pkg/policy"
	"github.com/testbedctl/actorcore/pkg/storage"
	"github.com/testbedctl/actorcore/pkg/transport"
	"github.com/testbedctl/actorcore/pkg/types"
)

var (
	// Version information (set via ldflags during build)
	Version = "dev"
	Commit  = "unknown"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:   "actor",
	Short: "Run an orchestrator, broker, or authority process",
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Start this process's kernel, load its role, and serve until interrupted",
	RunE: func(cmd *cobra.Command, args []string) error {
		return run(configPath)
	},
}

func init() {
	runCmd.Flags().StringVarP(&configPath, "config", "c", "config.yaml", "path to YAML config")
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("actor %s (%s)\n", Version, Commit)
		},
	})
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(path string) error {
	cfg, err := config.Load(path)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	log.Init(log.Config{Level: log.InfoLevel, JSONOutput: true})
	metrics.SetVersion(Version)
	l := log.WithActor(cfg.Actor.GUID, string(cfg.Actor.Type))
	l.Info().Str("config", path).Msg("starting actor process")

	store, err := storage.NewBoltStore(cfg.Database.DataDir)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer store.Close()
	metrics.RegisterComponent("store", true, "")

	bus, err := buildBus(cfg)
	if err != nil {
		return fmt.Errorf("build transport: %w", err)
	}
	defer bus.Close()
	metrics.RegisterComponent("bus", true, "")

	authorizer := pdp.New(cfg.PDP.Enable, cfg.PDP.URL, cfg.PDP.Timeout)

	var startTime time.Time
	if cfg.Time.StartTime != 0 {
		startTime = time.Unix(cfg.Time.StartTime, 0)
	}
	clk := clock.New(clock.Config{
		Manual:    cfg.Time.Manual,
		Period:    time.Duration(cfg.Time.CycleMillis) * time.Millisecond,
		StartTime: startTime,
		FirstTick: cfg.Time.FirstTick,
	})
	defer clk.Stop()

	rt := actor.NewRuntime(actor.RuntimeConfig{
		GUID:  cfg.Actor.GUID,
		Role:  cfg.Actor.Type,
		Clock: clk,
		Bus:   bus,
		Store: store,
		PDP:   authorizer,
		Peers: cfg.PeerCatalog(),
	})

	cal := calendar.New(3600)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	switch cfg.Actor.Type {
	case types.RoleBroker:
		if err := runBroker(ctx, cfg, rt, cal); err != nil {
			return err
		}
	case types.RoleAuthority:
		if err := runAuthority(ctx, cfg, rt, cal); err != nil {
			return err
		}
	case types.RoleOrchestrator:
		if err := runOrchestrator(ctx, cfg, rt, cal); err != nil {
			return err
		}
	default:
		return fmt.Errorf("unrecognized actor.type %q", cfg.Actor.Type)
	}

	metrics.RegisterComponent("kernel", true, "")
	serveHTTP(cfg.Prometheus.Port)

	<-ctx.Done()
	l.Info().Msg("shutting down")
	return nil
}

func buildBus(cfg *config.Config) (transport.Bus, error) {
	if len(cfg.Kafka.Brokers) == 0 {
		return transport.NewMemoryBus(), nil
	}
	return transport.NewKafkaBus(transport.KafkaConfig{
		Brokers:          cfg.Kafka.Brokers,
		ClientID:         cfg.Kafka.ClientID,
		SecurityProtocol: cfg.Kafka.SecurityProtocol,
		SASLUsername:     cfg.Kafka.SASLUsername,
		SASLPassword:     cfg.Kafka.SASLPassword,
		Retry: transport.RetryConfig{
			Retries: cfg.Kafka.RPCRetries,
			Timeout: cfg.Kafka.RPCTimeout,
		},
	})
}

func buildRegistry(cfg *config.Config) handler.Registry {
	reg := make(handler.Registry, len(cfg.Actor.Resources))
	for resourceType := range cfg.Actor.Resources {
		// Only "simulated" ships in this repository; a substrate-specific
		// handler module name in actor.resources falls back to it rather
		// than failing startup, since driver implementations are an
		// explicit non-goal here.
		reg[resourceType] = handler.NewSimulated()
	}
	if len(reg) == 0 {
		reg[types.ResourceVM] = handler.NewSimulated()
	}
	return reg
}

func runBroker(ctx context.Context, cfg *config.Config, rt *actor.Runtime, cal *calendar.Calendar) error {
	cbm := graph.NewInMemory(cfg.Actor.GUID + "-cbm")
	brokerPolicy := policy.NewBroker(cbm, cal, nil, nil)
	hooks := policy.NewBrokerHooks(cfg.Actor.GUID, brokerPolicy)

	a, err := actor.New(actor.Config{
		Runtime:         rt,
		Hooks:           hooks,
		Calendar:        cal,
		InboundTopic:    cfg.Actor.GUID + ".in",
		BatchCap:        256,
		CommitBatchSize: cfg.Database.CommitBatchSize,
		GraphStore:      cbm,
		ResourceTypes:   resourceTypeList(cfg.Actor.Resources),
	})
	if err != nil {
		return fmt.Errorf("build broker actor: %w", err)
	}
	a.Start(ctx)
	return nil
}

func runAuthority(ctx context.Context, cfg *config.Config, rt *actor.Runtime, cal *calendar.Calendar) error {
	arm := graph.NewInMemory(cfg.Actor.GUID + "-arm")
	authorityPolicy := policy.NewAuthority(arm, cal)

	pool := handler.NewPool(buildRegistry(cfg), 8, nil)
	hooks := policy.NewAuthorityHooks(cfg.Actor.GUID, authorityPolicy, pool, rt.Clock, 1*time.Second)

	a, err := actor.New(actor.Config{
		Runtime:         rt,
		Hooks:           hooks,
		Calendar:        cal,
		InboundTopic:    cfg.Actor.GUID + ".in",
		BatchCap:        256,
		CommitBatchSize: cfg.Database.CommitBatchSize,
		Handlers:        pool,
	})
	if err != nil {
		return fmt.Errorf("build authority actor: %w", err)
	}
	pool.Attach(a.Kernel)
	a.Start(ctx)
	return nil
}

func runOrchestrator(ctx context.Context, cfg *config.Config, rt *actor.Runtime, cal *calendar.Calendar) error {
	brokerPeer, authorities := splitPeers(cfg)
	orchPolicy := policy.NewOrchestratorPolicy(24 * time.Hour)

	m, err := orchestrator.New(orchestrator.Config{
		Runtime:         rt,
		Calendar:        cal,
		Policy:          orchPolicy,
		Store:           rt.Store,
		InboundTopic:    cfg.Actor.GUID + ".in",
		BrokerPeer:      brokerPeer,
		Authorities:     authorities,
		BatchCap:        256,
		CommitBatchSize: cfg.Database.CommitBatchSize,
		RPCRetries:      cfg.Kafka.RPCRetries,
		RPCTimeoutTicks: uint64(cfg.Kafka.RPCTimeout),
	})
	if err != nil {
		return fmt.Errorf("build orchestrator manager: %w", err)
	}
	m.Actor.Start(ctx)
	return nil
}

func resourceTypeList(resources map[types.ResourceType]string) []types.ResourceType {
	out := make([]types.ResourceType, 0, len(resources))
	for rt := range resources {
		out = append(out, rt)
	}
	return out
}

func splitPeers(cfg *config.Config) (types.Peer, map[types.ResourceType]types.Peer) {
	var broker types.Peer
	authorities := make(map[types.ResourceType]types.Peer)
	for _, p := range cfg.PeerCatalog() {
		if p.Type == types.RoleBroker {
			broker = p
			continue
		}
		if p.Type == types.RoleAuthority {
			for rt := range cfg.Actor.Resources {
				authorities[rt] = p
			}
		}
	}
	return broker, authorities
}

func serveHTTP(port int) {
	if port <= 0 {
		port = 9090
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler())
	mux.Handle("/health", metrics.HealthHandler())
	mux.Handle("/ready", metrics.ReadyHandler())
	mux.Handle("/live", metrics.LivenessHandler())

	go func() {
		addr := fmt.Sprintf(":%d", port)
		if err := http.ListenAndServe(addr, mux); err != nil {
			log.WithComponent("http").Error().Err(err).Msg("metrics server exited")
		}
	}()
}
