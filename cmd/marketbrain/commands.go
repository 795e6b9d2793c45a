package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"MarketBrain/internal/di"
	"MarketBrain/internal/usecase"
	"MarketBrain/pkg/config"
	xhttp "MarketBrain/pkg/http"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the loops, observation feed and HTTP API",
	RunE:  runServe,
}

var onceCmd = &cobra.Command{
	Use:   "once",
	Short: "Run a single cycle of one loop and exit",
	RunE:  runOnce,
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Print a status snapshot",
	Long: `Without --addr the snapshot is built from the ledger with no loops
started. With --addr it is fetched from a running instance.`,
	RunE: runStatus,
}

var (
	onceLoop   string
	statusAddr string
)

func init() {
	onceCmd.Flags().StringVar(&onceLoop, "loop", usecase.LoopScanner, "loop to run: brain, scanner or agent")
	statusCmd.Flags().StringVar(&statusAddr, "addr", "", "base URL of a running instance, e.g. http://localhost:8080")
}

func runServe(_ *cobra.Command, _ []string) error {
	cfg, err := config.LoadWithEnv(configPath)
	if err != nil {
		return fmt.Errorf("config load failed: %w", err)
	}

	app, cleanup, err := di.InitializeApp(cfg)
	if err != nil {
		return fmt.Errorf("app initialization failed: %w", err)
	}
	defer cleanup()

	return app.Run()
}

func runOnce(cmd *cobra.Command, _ []string) error {
	cfg, err := config.LoadWithEnv(configPath)
	if err != nil {
		return fmt.Errorf("config load failed: %w", err)
	}

	app, cleanup, err := di.InitializeApp(cfg)
	if err != nil {
		return fmt.Errorf("app initialization failed: %w", err)
	}
	defer cleanup()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	sup := app.Supervisor()
	runErr := sup.RunOnce(ctx, onceLoop)
	if err := printJSON(cmd, sup.Status().Loops[onceLoop]); err != nil {
		return err
	}
	return runErr
}

func runStatus(cmd *cobra.Command, _ []string) error {
	if statusAddr == "" {
		cfg, err := config.LoadWithEnv(configPath)
		if err != nil {
			return fmt.Errorf("config load failed: %w", err)
		}
		app, cleanup, err := di.InitializeApp(cfg)
		if err != nil {
			return fmt.Errorf("app initialization failed: %w", err)
		}
		defer cleanup()
		return printJSON(cmd, app.Supervisor().Status())
	}

	var body struct {
		Data json.RawMessage `json:"data"`
	}
	client := xhttp.NewClient(statusAddr, xhttp.WithTimeout(10*time.Second))
	if err := client.GetJSON(cmd.Context(), "/api/brain/status", &body); err != nil {
		return fmt.Errorf("status request: %w", err)
	}

	var status usecase.SystemStatus
	if err := json.Unmarshal(body.Data, &status); err != nil {
		return fmt.Errorf("decode status: %w", err)
	}
	return printJSON(cmd, status)
}

func printJSON(cmd *cobra.Command, v interface{}) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
