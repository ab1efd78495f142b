package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"researcher/internal/config"
	"researcher/internal/logger"
	"researcher/internal/server"
	"researcher/internal/tui"
)

func main() {
	_ = godotenv.Load()
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var cfgPath string
	root := &cobra.Command{
		Use:          "researcher",
		Short:        "Multi-agent research assistant",
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVarP(&cfgPath, "config", "c", "", "Path to YAML config file (optional; uses ~/.config/researcher/config.yaml if not provided)")

	load := func() (*config.AppConfig, error) {
		if cfgPath == "" {
			cfg, _, err := config.LoadDefault()
			return cfg, err
		}
		return config.Load(cfgPath)
	}

	root.AddCommand(newServeCmd(load), newAskCmd(load), newQueryCmd(load), newMemoryCmd(load))
	return root
}

type loader func() (*config.AppConfig, error)

func newLogger(cfg *config.AppConfig, console bool) (*zap.Logger, error) {
	lc := logger.Config{Level: cfg.Log.Level, File: cfg.Log.File, Production: cfg.Log.Production}
	if console {
		lc.Console = os.Stderr
	}
	return logger.New(lc)
}

func newServeCmd(load loader) *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API (/chat, /chat/stream, /memory, /metrics)",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := load()
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}
			log, err := newLogger(cfg, true)
			if err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			a, err := buildApp(ctx, cfg, log)
			if err != nil {
				return err
			}
			defer a.Close()

			if addr == "" {
				addr = cfg.Server.Address
			}
			srv := server.New(a.pipeline, a.memory, a.metrics, log)
			errc := make(chan error, 1)
			go func() { errc <- srv.Start(addr) }()

			select {
			case err := <-errc:
				return err
			case <-ctx.Done():
			}
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			log.Info("shutting down")
			return srv.Shutdown(shutdownCtx)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "listen address (overrides server.address)")
	return cmd
}

func newAskCmd(load loader) *cobra.Command {
	return &cobra.Command{
		Use:   "ask",
		Short: "Interactive terminal client that streams agent progress",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := load()
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}
			// the TUI owns the terminal, so logs go to the file only
			log, err := newLogger(cfg, false)
			if err != nil {
				return err
			}
			ctx, cancel := context.WithCancel(cmd.Context())
			defer cancel()

			a, err := buildApp(ctx, cfg, log)
			if err != nil {
				return err
			}
			defer a.Close()

			m := tui.New(ctx, a.pipeline, a.memoryNote())
			_, err = tea.NewProgram(m, tea.WithAltScreen()).Run()
			return err
		},
	}
}

func newQueryCmd(load loader) *cobra.Command {
	return &cobra.Command{
		Use:   "query <question>",
		Short: "Run one blocking research query and print the final state as JSON",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := load()
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}
			log, err := newLogger(cfg, true)
			if err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
			defer stop()

			a, err := buildApp(ctx, cfg, log)
			if err != nil {
				return err
			}
			defer a.Close()

			st, err := a.pipeline.Run(ctx, strings.Join(args, " "))
			if err != nil {
				return err
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(st)
		},
	}
}

func newMemoryCmd(load loader) *cobra.Command {
	mem := &cobra.Command{
		Use:   "memory",
		Short: "Manage the semantic memory",
	}
	mem.AddCommand(&cobra.Command{
		Use:   "clear",
		Short: "Delete every stored memory record",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := load()
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}
			log, err := newLogger(cfg, true)
			if err != nil {
				return err
			}
			defer func() { _ = log.Sync() }()

			capability, store := openMemory(cmd.Context(), cfg, nil, log)
			if store == nil {
				return capability.Reason()
			}
			defer store.Close()
			if err := store.Clear(cmd.Context()); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "memory cleared")
			return nil
		},
	})
	return mem
}
