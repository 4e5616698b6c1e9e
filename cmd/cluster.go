package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/adamgarcia4/goLearning/meff/logger"
	"github.com/adamgarcia4/goLearning/meff/node"
	"github.com/adamgarcia4/goLearning/meff/shell"
)

var (
	clusterSize      int
	clusterBasePort  int
	clusterHeartbeat time.Duration
)

var clusterCmd = &cobra.Command{
	Use:   "cluster",
	Short: "Run a local network of nodes in one process",
	Long: `Run N nodes on loopback, each joining through the first, and print the
network status once it has converged. Runs until interrupted.

Examples:
  meff cluster -n 4 --base-port 7000`,
	RunE: runCluster,
}

func init() {
	rootCmd.AddCommand(clusterCmd)
	clusterCmd.Flags().IntVarP(&clusterSize, "nodes", "n", 3, "Number of nodes")
	clusterCmd.Flags().IntVar(&clusterBasePort, "base-port", 7000, "First port handed out to nodes")
	clusterCmd.Flags().DurationVar(&clusterHeartbeat, "heartbeat", time.Second, "Interval between liveness probes")
}

func runCluster(cmd *cobra.Command, args []string) error {
	logger.Init("", true)
	if err := applyLogLevel(cmd, ""); err != nil {
		return err
	}
	if clusterSize < 1 {
		return fmt.Errorf("need at least one node")
	}

	manager := node.NewManager(clusterBasePort)
	manager.Configure = func(c *node.Config) {
		c.HeartbeatInterval = clusterHeartbeat
		c.DownloadDir = fmt.Sprintf("downloads/%s", c.Name)
	}
	defer func() {
		if err := manager.StopAll(); err != nil {
			logger.Errorf("%v", err)
		}
	}()

	for i := 0; i < clusterSize; i++ {
		if _, err := manager.CreateNode(); err != nil {
			return err
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if !waitConverged(ctx, manager, clusterSize) {
		logger.Warnf("network did not converge before the deadline")
	}
	for _, n := range manager.GetNodes() {
		fmt.Fprintln(os.Stdout, shell.RenderStatus(n.Status()))
	}

	<-ctx.Done()
	logger.Info("Shutting down...")
	return nil
}

// waitConverged polls until every node knows size members.
func waitConverged(ctx context.Context, manager *node.Manager, size int) bool {
	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()
	deadline := time.After(10 * time.Second)
	for {
		converged := true
		for _, n := range manager.GetNodes() {
			if len(n.Status().Members) != size {
				converged = false
				break
			}
		}
		if converged {
			return true
		}
		select {
		case <-ctx.Done():
			return false
		case <-deadline:
			return false
		case <-ticker.C:
		}
	}
}
