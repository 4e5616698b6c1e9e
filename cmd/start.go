package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/adamgarcia4/goLearning/meff/logger"
	"github.com/adamgarcia4/goLearning/meff/node"
	"github.com/adamgarcia4/goLearning/meff/shell"
)

var (
	configPath string
	noShell    bool
	startFlags = node.DefaultConfig(node.DefaultName)
)

var startCmd = &cobra.Command{
	Use:   "start",
	Short: "Start a meff node",
	Long: `Start a meff node and an interactive command shell on stdin.

Flags override values read from --config. Address "auto" uses the first
non-loopback IPv4 address of this machine.

Examples:
  # Start a new network
  meff start --name=alice --port=7000

  # Join it from another node
  meff start --name=bob --port=7001 --join=127.0.0.1:7000

  # Keep items across restarts and expose a gRPC health endpoint
  meff start --name=carol --port=7002 --join=127.0.0.1:7000 --data-dir=./carol --health-port=7102`,
	RunE: runStart,
}

func init() {
	rootCmd.AddCommand(startCmd)

	f := startCmd.Flags()
	f.StringVarP(&configPath, "config", "c", "", "YAML config file")
	f.BoolVar(&noShell, "no-shell", false, "Run without the command shell until interrupted")

	// Server flags
	f.StringVarP(&startFlags.Name, "name", "n", startFlags.Name, "Node name, unique in the network")
	f.StringVarP(&startFlags.Address, "address", "a", startFlags.Address, `Address to bind and advertise ("auto" to discover)`)
	f.StringVarP(&startFlags.Port, "port", "p", startFlags.Port, "Port to bind")
	f.StringVarP(&startFlags.Join, "join", "j", "", "Address of a member to join through")

	// Failure monitor flags
	f.DurationVar(&startFlags.HeartbeatInterval, "heartbeat", startFlags.HeartbeatInterval, "Interval between liveness probes")
	f.DurationVar(&startFlags.ProbeTimeout, "probe-timeout", startFlags.ProbeTimeout, "Timeout of one liveness probe")
	f.DurationVar(&startFlags.DialTimeout, "dial-timeout", startFlags.DialTimeout, "Timeout to connect to a peer")

	// Local collaborators
	f.StringVar(&startFlags.DataDir, "data-dir", "", "Directory for a persistent item store (memory when empty)")
	f.StringVar(&startFlags.DownloadDir, "download-dir", startFlags.DownloadDir, "Directory fetched items are written to")
	f.StringVar(&startFlags.PlayerCommand, "player", "", `Command the item bytes are piped to for playback, e.g. "ffplay -nodisp -autoexit -"`)
	f.StringVar(&startFlags.HealthPort, "health-port", "", "Port of the gRPC health endpoint (disabled when empty)")
}

// loadStartConfig merges the config file and the flags the user actually set.
func loadStartConfig(flags *pflag.FlagSet) (*node.Config, error) {
	if configPath == "" {
		cfg := *startFlags
		return &cfg, nil
	}

	cfg, err := node.LoadConfigFile(configPath)
	if err != nil {
		return nil, err
	}
	overrides := map[string]func(){
		"name":          func() { cfg.Name = startFlags.Name },
		"address":       func() { cfg.Address = startFlags.Address },
		"port":          func() { cfg.Port = startFlags.Port },
		"join":          func() { cfg.Join = startFlags.Join },
		"heartbeat":     func() { cfg.HeartbeatInterval = startFlags.HeartbeatInterval },
		"probe-timeout": func() { cfg.ProbeTimeout = startFlags.ProbeTimeout },
		"dial-timeout":  func() { cfg.DialTimeout = startFlags.DialTimeout },
		"data-dir":      func() { cfg.DataDir = startFlags.DataDir },
		"download-dir":  func() { cfg.DownloadDir = startFlags.DownloadDir },
		"player":        func() { cfg.PlayerCommand = startFlags.PlayerCommand },
		"health-port":   func() { cfg.HealthPort = startFlags.HealthPort },
	}
	flags.Visit(func(fl *pflag.Flag) {
		if apply, ok := overrides[fl.Name]; ok {
			apply()
		}
	})
	return cfg, nil
}

func runStart(cmd *cobra.Command, args []string) error {
	// Initialize logger for non-interactive mode (write to stdout)
	logger.Init("", true)

	config, err := loadStartConfig(cmd.Flags())
	if err != nil {
		return err
	}
	if err := applyLogLevel(cmd, config.LogLevel); err != nil {
		return err
	}

	n, err := node.New(config, node.WithDisplay(shell.NewPrinter(os.Stdout)))
	if err != nil {
		return fmt.Errorf("failed to create node: %w", err)
	}
	if err := n.Start(); err != nil {
		return fmt.Errorf("failed to start node: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if !noShell {
		go func() {
			sh := shell.New(n, os.Stdout)
			if err := sh.Run(ctx, os.Stdin); err != nil {
				logger.Errorf("shell: %v", err)
			}
			// end of input without exit leaves the node running until a signal
		}()
	}

	select {
	case <-n.Done():
		return nil
	case <-ctx.Done():
	}

	logger.Info("Shutting down...")
	leaveCtx, cancel := context.WithTimeout(context.Background(), config.LeaveGrace+5*time.Second)
	defer cancel()
	if err := n.Leave(leaveCtx); err != nil {
		logger.Errorf("Error leaving the network: %v", err)
		return n.Stop()
	}
	return nil
}
