package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/dvloznov/smart-ledger/internal/app"
	"github.com/dvloznov/smart-ledger/internal/config"
	"github.com/dvloznov/smart-ledger/internal/logger"
	"github.com/spf13/cobra"
)

var (
	cfgFile string
	userID  string
	rootCmd = &cobra.Command{
		Use:   "cli",
		Short: "Operate the smart-ledger statement import service",
		Long: `Submit bank statements, review their drafts, confirm them into the
ledger and run maintenance tasks against the configured database.`,
		SilenceUsage: true,
	}
)

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", os.Getenv("SMART_LEDGER_CONFIG"), "config file (yaml/json/toml)")
	rootCmd.PersistentFlags().StringVar(&userID, "user", os.Getenv("SMART_LEDGER_USER"), "ledger owner id")

	rootCmd.AddCommand(submitCmd())
	rootCmd.AddCommand(statusCmd())
	rootCmd.AddCommand(jobsCmd())
	rootCmd.AddCommand(draftsCmd())
	rootCmd.AddCommand(confirmCmd())
	rootCmd.AddCommand(retryCmd())
	rootCmd.AddCommand(reapCmd())
	rootCmd.AddCommand(summaryCmd())
}

func main() {
	ctx, cancel := context.WithCancel(context.Background())

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigChan
		cancel()
	}()

	err := rootCmd.ExecuteContext(ctx)
	cancel()

	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// openApp loads config and wires services for one command.
func openApp(ctx context.Context) (*app.App, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, err
	}
	log := logger.NewWithLevel(cfg.Server.LogLevel, cfg.Server.LogJSON)
	return app.New(ctx, cfg, log, true)
}

func requireUser() error {
	if userID == "" {
		return fmt.Errorf("--user is required")
	}
	return nil
}

func printJSON(v interface{}) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
