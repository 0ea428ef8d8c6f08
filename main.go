package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"toolchat/config"
	"toolchat/conversation"
	"toolchat/mcp"
	"toolchat/storage"
)

const (
	Version = "v0.01.00"
	License = "Apache-2.0"

	shutdownTimeout = 5 * time.Second
)

var (
	settingsPath string
	debug        bool
)

// app holds everything a command needs. It is built lazily so that
// commands like "config template" run without a data directory.
type app struct {
	cfg     *config.Config
	logger  *slog.Logger
	closer  io.Closer
	store   *storage.Store
	tools   *mcp.Manager
	service *conversation.Service
	session *conversation.Session
}

func newApp() (*app, error) {
	cfg, err := config.LoadFrom(settingsPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if debug {
		cfg.Debug = true
	}

	logger, closer, err := config.NewLogger(cfg.DataDir(), cfg.Debug)
	if err != nil {
		return nil, err
	}
	slog.SetDefault(logger)

	store, err := storage.Open(cfg.DataDir())
	if err != nil {
		closer.Close()
		return nil, fmt.Errorf("failed to open conversation store: %w", err)
	}

	servers, err := config.LoadServers(cfg.ServersPath())
	if err != nil {
		store.Close()
		closer.Close()
		return nil, err
	}

	tools := mcp.NewManager(servers,
		mcp.WithLogger(logger),
		mcp.WithTimeout(cfg.ToolTimeout),
		mcp.WithClientInfo("toolchat", Version),
	)

	return &app{
		cfg:     cfg,
		logger:  logger,
		closer:  closer,
		store:   store,
		tools:   tools,
		service: conversation.New(store, tools, logger),
		session: conversation.NewSession(cfg.UserID),
	}, nil
}

// close cancels pending confirmations, stops tool calls and releases the
// store and log file.
func (a *app) close() error {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	var errs []error
	if err := a.service.Shutdown(ctx); err != nil {
		errs = append(errs, err)
	}
	if err := a.store.Close(); err != nil {
		errs = append(errs, err)
	}
	a.logger.Debug("=== Shutdown complete ===")
	if err := a.closer.Close(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// withApp runs fn with a fully initialised app and always shuts it down,
// including when a signal cancelled the command context.
func withApp(fn func(cmd *cobra.Command, args []string, a *app) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		runErr := fn(cmd, args, a)
		if err := a.close(); err != nil {
			fmt.Fprintf(cmd.ErrOrStderr(), "Warning: shutdown: %v\n", err)
		}
		return runErr
	}
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rootCmd := &cobra.Command{
		Use:           "toolchat",
		Short:         "Conversations with tool providers over the Model Context Protocol",
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().StringVar(&settingsPath, "config", config.GetSettingsFilePath(), "Path to settings.toml")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", config.CheckDebug(), "Write debug.log into the data directory")

	rootCmd.AddCommand(serversCmd())
	rootCmd.AddCommand(toolsCmd())
	rootCmd.AddCommand(conversationsCmd())
	rootCmd.AddCommand(chatCmd())
	rootCmd.AddCommand(configCmd())

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
