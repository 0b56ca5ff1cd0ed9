package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"sort"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/knws/screencontrol/internal/automation"
	"github.com/knws/screencontrol/internal/browser"
	"github.com/knws/screencontrol/internal/config"
	"github.com/knws/screencontrol/internal/discovery"
	"github.com/knws/screencontrol/internal/fsops"
	"github.com/knws/screencontrol/internal/httpapi"
	"github.com/knws/screencontrol/internal/router"
	"github.com/knws/screencontrol/internal/shell"
	"github.com/knws/screencontrol/internal/stdio"
	"github.com/knws/screencontrol/internal/tools"
	"github.com/knws/screencontrol/pkg/events"
)

const version = "1.0.0"

var (
	workDir      string
	httpPort     int
	relayPort    int
	noHTTP       bool
	noRelay      bool
	mcpStdio     bool
	showVersion  bool
	showSettings bool
)

var rootCmd = &cobra.Command{
	Use:   "screencontrol",
	Short: "Local automation agent bridging HTTP and MCP clients to shell, filesystem, and browser tools",
	Long: `ScreenControl is a local automation agent. It exposes a fixed tool
catalogue over two transports: a loopback HTTP API and an MCP stdio
bridge. Browser tools are relayed to a browser extension over a
websocket; shell and filesystem tools run directly on this machine.`,
	RunE: runAgent,
}

func init() {
	rootCmd.Flags().StringVarP(&workDir, "dir", "d", ".", "Default working directory for shell commands")
	rootCmd.Flags().IntVarP(&httpPort, "port", "p", config.DefaultHTTPPort, "HTTP API port (loopback only)")
	rootCmd.Flags().IntVar(&relayPort, "relay-port", config.DefaultRelayPort, "Browser relay websocket port")
	rootCmd.Flags().BoolVar(&noHTTP, "no-http", false, "Disable the HTTP API")
	rootCmd.Flags().BoolVar(&noRelay, "no-relay", false, "Disable the browser relay")
	rootCmd.Flags().BoolVar(&mcpStdio, "mcp-stdio", false, "Serve MCP over stdin/stdout")
	rootCmd.Flags().BoolVarP(&showVersion, "version", "v", false, "Print version and exit")
	rootCmd.Flags().BoolVar(&showSettings, "settings", false, "Print effective configuration and exit")

	instancesCmd.Flags().BoolVarP(&watchInstances, "watch", "w", false, "Keep watching the registry and reprint on changes")
	rootCmd.AddCommand(instancesCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func runAgent(cmd *cobra.Command, args []string) error {
	if showVersion {
		fmt.Printf("screencontrol %s\n", version)
		return nil
	}

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if cmd.Flags().Changed("port") {
		cfg.HTTPPort = httpPort
	}
	if cmd.Flags().Changed("relay-port") {
		cfg.RelayPort = relayPort
	}

	if showSettings {
		path, _ := config.Path()
		fmt.Printf("config file: %s\n", path)
		fmt.Printf("http_port: %d\n", cfg.HTTPPort)
		fmt.Printf("relay_port: %d\n", cfg.RelayPort)
		fmt.Printf("api_key: %s\n", cfg.APIKey)
		fmt.Printf("exec_timeout_seconds: %d\n", cfg.ExecTimeoutSeconds)
		fmt.Printf("max_output_bytes: %d\n", cfg.MaxOutputBytes)
		fmt.Printf("relay_timeout_seconds: %d\n", cfg.RelayTimeoutSecs)
		fmt.Printf("max_shell_sessions: %d\n", cfg.MaxShellSessions)
		return nil
	}

	absWorkDir, err := filepath.Abs(workDir)
	if err != nil {
		return fmt.Errorf("resolve working directory: %w", err)
	}

	// All diagnostics go to stderr; stdout belongs to the MCP bridge.
	logger := log.New(os.Stderr, "", log.LstdFlags)
	startedAt := time.Now()

	eventBus := events.NewEventBus()
	defer eventBus.Shutdown()

	manager := shell.NewManager(eventBus, cfg.MaxShellSessions, cfg.MaxOutputBytes)

	relay := browser.NewRelay(eventBus, time.Duration(cfg.RelayTimeoutSecs)*time.Second)
	if !noRelay {
		if err := relay.Start(cfg.RelayPort); err != nil {
			return err
		}
		logger.Printf("browser relay listening on %s", relay.Addr())
	}

	registry := tools.NewRegistry()
	providers := map[tools.Category]router.Provider{
		tools.CategoryAutomation: automation.NewStub(version),
		tools.CategoryFilesystem: fsops.NewProvider(),
		tools.CategoryShell:      shell.NewToolProvider(manager, absWorkDir),
		tools.CategoryBrowser:    browser.NewProvider(relay),
	}
	toolRouter := router.New(registry, providers, relay.Connected, eventBus)

	var server *httpapi.Server
	if !noHTTP {
		server = httpapi.NewServer(cfg.APIKey, toolRouter, func() httpapi.StatusInfo {
			return httpapi.StatusInfo{
				Version:        version,
				UptimeSeconds:  int(time.Since(startedAt).Seconds()),
				ShellSessions:  len(manager.List()),
				RelayConnected: relay.Connected(),
			}
		})
		if err := server.Start(cfg.HTTPPort); err != nil {
			return err
		}
		logger.Printf("http api listening on %s", server.Addr())
	}

	instancesDir, instanceID := registerInstance(logger, cfg)

	shutdown := func() {
		logger.Printf("shutting down")
		if !noRelay {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			relay.Stop(ctx)
			cancel()
		}
		if server != nil {
			server.Stop()
		}
		manager.CleanupAll()
		if instanceID != "" {
			if err := discovery.Unregister(instancesDir, instanceID); err != nil {
				logger.Printf("unregister instance: %v", err)
			}
		}
	}

	if mcpStdio {
		bridge := stdio.NewBridge(os.Stdin, os.Stdout, registry, toolRouter, relay.Connected, "screencontrol", version)
		bridge.SubscribeRelayEvents(eventBus)

		ctx, cancel := context.WithCancel(context.Background())
		go func() {
			sigChan := make(chan os.Signal, 1)
			signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
			<-sigChan
			cancel()
		}()

		err := bridge.Run(ctx)
		shutdown()
		return err
	}

	if noHTTP && noRelay {
		return fmt.Errorf("nothing to serve: pass --mcp-stdio or drop --no-http/--no-relay")
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan
	shutdown()
	return nil
}

// registerInstance publishes this agent in the discovery registry. A
// failure only loses discoverability, not functionality.
func registerInstance(logger *log.Logger, cfg *config.Config) (string, string) {
	dir, err := config.Dir()
	if err != nil {
		logger.Printf("instance registry unavailable: %v", err)
		return "", ""
	}
	instancesDir := filepath.Join(dir, "instances")
	hostname, _ := os.Hostname()

	instance := &discovery.Instance{
		ID:        uuid.NewString(),
		PID:       os.Getpid(),
		HTTPPort:  cfg.HTTPPort,
		RelayPort: cfg.RelayPort,
		Hostname:  hostname,
		StartedAt: time.Now(),
	}
	if err := discovery.Register(instancesDir, instance); err != nil {
		logger.Printf("register instance: %v", err)
		return "", ""
	}
	return instancesDir, instance.ID
}

var watchInstances bool

var instancesCmd = &cobra.Command{
	Use:   "instances",
	Short: "List running screencontrol agents on this machine",
	RunE: func(cmd *cobra.Command, args []string) error {
		dir, err := config.Dir()
		if err != nil {
			return err
		}
		instancesDir := filepath.Join(dir, "instances")

		instances, err := discovery.List(instancesDir)
		if err != nil {
			return err
		}
		printInstances(instances)

		if !watchInstances {
			return nil
		}

		watcher, err := discovery.NewWatcher(instancesDir)
		if err != nil {
			return err
		}
		defer watcher.Stop()

		watcher.OnUpdate(func(current map[string]*discovery.Instance) {
			list := make([]*discovery.Instance, 0, len(current))
			for _, inst := range current {
				list = append(list, inst)
			}
			fmt.Println("registry changed:")
			printInstances(list)
		})

		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
		<-sigChan
		return nil
	},
}

func printInstances(instances []*discovery.Instance) {
	if len(instances) == 0 {
		fmt.Println("no running instances")
		return
	}

	sort.Slice(instances, func(i, j int) bool {
		return instances[i].StartedAt.Before(instances[j].StartedAt)
	})
	for _, inst := range instances {
		fmt.Printf("%s  pid=%d  http=%d  relay=%d  up since %s\n",
			inst.ID, inst.PID, inst.HTTPPort, inst.RelayPort,
			inst.StartedAt.Format(time.RFC3339))
	}
}
