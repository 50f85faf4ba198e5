package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/hausnetz/eos/app"
	"github.com/hausnetz/eos/config"
)

var optimizeCmd = &cobra.Command{
	Use:   "optimize",
	Short: "Run a single optimization cycle and print the plan",
	RunE:  optimizeOnce,
}

func init() {
	rootCmd.AddCommand(optimizeCmd)
}

func optimizeOnce(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load(cfgPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	svc, err := app.New(cfg)
	if err != nil {
		return err
	}
	defer svc.Close()

	plan, err := svc.Engine.RunOnce(ctx)
	if err != nil {
		return err
	}
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(plan)
}
