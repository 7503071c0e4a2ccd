// Command agentd hosts an agent.Agent behind a LocalAgent dispatcher,
// wrapped in whatever resilience middleware its config enables, and
// keeps a small in-process registry self-registered via a heartbeat
// loop. Structured around a signal-driven main and layered config
// loading, following cellorg/cmd/orchestrator/main.go.
package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/scttfrdmn/agenkit-sub000/agent"
	"github.com/scttfrdmn/agenkit-sub000/internal/config"
	"github.com/scttfrdmn/agenkit-sub000/internal/dispatch"
	"github.com/scttfrdmn/agenkit-sub000/internal/registry"
	"github.com/scttfrdmn/agenkit-sub000/internal/remote"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		log.Fatal(err)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "agentd",
		Short: "serve an agent over the dispatch fabric",
	}

	var (
		configFile     string
		endpoint       string
		relayEndpoint  string
		statusEndpoint string
		debug          bool
	)

	serve := &cobra.Command{
		Use:   "serve",
		Short: "bind an endpoint and start dispatching requests",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configFile, cmd.Flags())
			if err != nil {
				return fmt.Errorf("agentd: %w", err)
			}
			if endpoint != "" {
				cfg.Serve.Endpoint = endpoint
			}
			if debug {
				cfg.Debug = true
			}
			return runServe(cfg, relayEndpoint, statusEndpoint)
		},
	}
	serve.Flags().StringVar(&configFile, "config", "", "path to a YAML config file")
	serve.Flags().StringVar(&endpoint, "endpoint", "", "override serve.endpoint, e.g. tcp://:9101")
	serve.Flags().StringVar(&relayEndpoint, "relay", "", "relay every request to this remote endpoint instead of echoing locally")
	serve.Flags().StringVar(&statusEndpoint, "status-endpoint", "127.0.0.1:9191", "address for the read-only /registry and /health introspection server")
	serve.Flags().BoolVar(&debug, "debug", false, "enable debug logging")

	root.AddCommand(serve)
	return root
}

func runServe(cfg *config.Config, relayEndpoint, statusEndpoint string) error {
	name := cfg.AppName
	if name == "" {
		name = "agentd"
	}

	var base agent.Agent
	if relayEndpoint != "" {
		ra, err := remote.Dial(name, relayEndpoint, cfg.Serve.CallTimeout)
		if err != nil {
			return fmt.Errorf("agentd: dial relay %s: %w", relayEndpoint, err)
		}
		defer ra.Close()
		base = ra
		log.Printf("[%s] relaying every request to %s", name, relayEndpoint)
	} else {
		base = agent.Func(echo(name))
	}

	wrapped := wrapMiddleware(name, base, cfg)

	la := dispatch.New(wrapped, cfg.Serve.Endpoint)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := la.Start(ctx); err != nil {
		return fmt.Errorf("agentd: start %s: %w", cfg.Serve.Endpoint, err)
	}
	log.Printf("[%s] serving on %s", name, cfg.Serve.Endpoint)

	reg := registry.New(cfg.Registry.HeartbeatTimeout, cfg.Registry.PruneInterval)
	if err := reg.Register(registry.Registration{
		Name:     name,
		Endpoint: cfg.Serve.Endpoint,
	}); err != nil {
		log.Printf("[%s] registry: %v", name, err)
	}
	go registry.HeartbeatLoop(ctx, reg, name, cfg.Registry.HeartbeatTimeout/3)

	statusSrv := startStatusServer(statusEndpoint, reg)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	select {
	case sig := <-sigCh:
		log.Printf("[%s] received %s, shutting down", name, sig)
	case <-ctx.Done():
	}

	cancel()
	stopCtx, stopCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer stopCancel()
	if err := la.Stop(stopCtx); err != nil {
		log.Printf("[%s] stop: %v", name, err)
	}
	if statusSrv != nil {
		_ = statusSrv.Shutdown(stopCtx)
	}
	return nil
}

// echo is the default hosted agent: it mirrors the request content back,
// tagged with the serving node's name, so a fresh deployment has
// something real to call without writing a domain agent first.
func echo(name string) func(context.Context, agent.Message) (agent.Message, error) {
	return func(ctx context.Context, msg agent.Message) (agent.Message, error) {
		return agent.NewMessage("agent", fmt.Sprintf("%v", msg.Content)).WithMetadata("echoed_by", name), nil
	}
}

// startStatusServer exposes the in-process registry over a plain HTTP
// endpoint, since the registry itself is orthogonal to whichever
// transport the dispatcher binds (§4.I) and has no wire representation
// of its own in v1.0.
func startStatusServer(addr string, reg *registry.Registry) *http.Server {
	if addr == "" {
		return nil
	}
	mux := http.NewServeMux()
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	mux.HandleFunc("/registry", func(w http.ResponseWriter, r *http.Request) {
		writeJSONRegistrations(w, reg.List())
	})
	srv := &http.Server{Addr: addr, Handler: mux}
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Printf("status server: %v", err)
		}
	}()
	return srv
}
