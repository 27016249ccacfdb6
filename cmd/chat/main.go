package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"

	"github.com/Rrens/smart-chat/internal/config"
	"github.com/Rrens/smart-chat/internal/llm/providers"
	"github.com/Rrens/smart-chat/internal/logging"
	"github.com/Rrens/smart-chat/internal/repository"
	"github.com/Rrens/smart-chat/internal/service"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

var (
	configPath string
	storeFlag  string
	showHTML   bool
	logLevel   string
	version    = "dev"
)

var rootCmd = &cobra.Command{
	Use:   "smart-chat",
	Short: "Chat with a completion backend from the terminal",
	Long: `Interactive terminal client for smart-chat.

Conversations are kept as sessions in the configured store (SQLite by
default) and shared with the HTTP server when both point at the same store.

Commands inside the prompt:
  /new             start a new session
  /list            list sessions
  /switch N        make session N current
  /rename TITLE    rename the current session
  /delete [N]      delete session N (default: current)
  /reset           clear the current session
  /html            toggle printing replies as rendered HTML
  /quit            exit`,
	Version:       version,
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE:          runChat,
}

func init() {
	rootCmd.Flags().StringVarP(&configPath, "config", "c", "", "Path to config file (default $CONFIG_PATH or ./configs/config.yaml)")
	rootCmd.Flags().StringVar(&storeFlag, "store", "", "Override store driver (memory, sqlite, redis, postgres, mysql, mongo)")
	rootCmd.Flags().BoolVar(&showHTML, "html", false, "Print replies as rendered HTML")
	rootCmd.Flags().StringVar(&logLevel, "log-level", "warn", "Log level")
}

func main() {
	_ = godotenv.Load()

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, errorStyle.Render("Error: "+err.Error()))
		os.Exit(1)
	}
}

func runChat(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if storeFlag != "" {
		cfg.Store.Driver = storeFlag
	}
	cfg.Logging.Level = logLevel

	closer, err := logging.Setup(cfg.Logging)
	if err != nil {
		return err
	}
	defer closer.Close()

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	store, err := repository.Open(ctx, cfg)
	if err != nil {
		return fmt.Errorf("failed to open session store: %w", err)
	}
	defer store.Close()

	sessions := service.NewSessionService(store, cfg.Store.KeyPrefix)
	sessions.LoadAll(ctx)

	router := providers.NewRouter(cfg.LLM)
	controller := service.NewController(
		sessions,
		providers.NewClient(cfg, router),
		service.WithGenerationOptions(cfg.LLM.Generation),
		service.WithTypingDelay(cfg.Chat.TypingDelay),
	)

	// Ctrl-C cancels a reply in flight; at the prompt it exits
	interrupts := make(chan os.Signal, 1)
	signal.Notify(interrupts, os.Interrupt)
	defer signal.Stop(interrupts)

	r := newREPL(controller, cmd.InOrStdin(), cmd.OutOrStdout())
	r.showHTML = showHTML
	go func() {
		for range interrupts {
			if !controller.Cancel() {
				fmt.Fprintln(cmd.OutOrStdout())
				os.Exit(0)
			}
		}
	}()

	return r.run(ctx)
}

func loadConfig() (*config.Config, error) {
	if configPath != "" {
		return config.LoadFile(configPath)
	}
	return config.Load()
}
