package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/adamgarcia4/goLearning/meff/logger"
)

var rootCmd = &cobra.Command{
	Use:   "meff",
	Short: "Peer-to-peer music exchange node",
	Long: `meff runs a node of a peer-to-peer network that shares a membership table
and a replicated store of music files. Every stored file keeps one redundant
copy on another peer and is re-replicated when that peer disappears.`,
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().String("log-level", "", "Minimum log level: debug, info, warn or error")
}

// applyLogLevel sets the logger's minimum level from the flag, falling back to fallback.
func applyLogLevel(cmd *cobra.Command, fallback string) error {
	level, _ := cmd.Flags().GetString("log-level")
	if level == "" {
		level = fallback
	}
	if level == "" {
		return nil
	}
	parsed, err := logger.ParseLevel(level)
	if err != nil {
		return err
	}
	return logger.SetLevel(parsed)
}
