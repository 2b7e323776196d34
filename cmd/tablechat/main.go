package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/joho/godotenv"
	"github.com/lmittmann/tint"
	"github.com/spf13/cobra"

	"github.com/tablechat-io/tablechat/internal/agent"
	"github.com/tablechat-io/tablechat/internal/config"
	"github.com/tablechat-io/tablechat/internal/dataset"
	"github.com/tablechat-io/tablechat/internal/render"
	"github.com/tablechat-io/tablechat/internal/schema"
	"github.com/tablechat-io/tablechat/internal/server"
	"github.com/tablechat-io/tablechat/internal/session"
	"github.com/tablechat-io/tablechat/internal/translate"
)

var (
	// Set by LDFLAGS
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

var (
	verbose bool
	askFile string
)

var rootCmd = &cobra.Command{
	Use:   "tablechat",
	Short: "Chat with CSV data in plain language",
	Long: `tablechat answers natural-language questions about an uploaded CSV
by translating them into a small query language and evaluating the
result locally.`,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("tablechat %s (commit: %s, built: %s)\n", version, commit, date)
	},
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP server",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServe()
	},
}

var askCmd = &cobra.Command{
	Use:   "ask [question]",
	Short: "Answer a single question about a CSV file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runAsk(cmd.Context(), args[0])
	},
}

func main() {
	_ = godotenv.Load()

	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
	askCmd.Flags().StringVarP(&askFile, "file", "f", "", "CSV file to question (required)")
	_ = askCmd.MarkFlagRequired("file")

	rootCmd.AddCommand(versionCmd, serveCmd, askCmd)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newLogger() *slog.Logger {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	return slog.New(tint.NewHandler(os.Stderr, &tint.Options{Level: level}))
}

func newAgent(cfg config.Config, log *slog.Logger) (*agent.Agent, error) {
	translator := translate.NewAnthropic(translate.AnthropicConfig{
		APIKey:    cfg.AnthropicAPIKey,
		Model:     anthropic.Model(cfg.Model),
		MaxTokens: cfg.MaxTokens,
		Timeout:   cfg.TranslateTimeout,
		Logger:    log,
	})
	return agent.New(agent.Config{
		Logger:      log,
		Translator:  translator,
		MaxAttempts: cfg.MaxAttempts,
		RetryDelay:  cfg.RetryDelay,
	})
}

func runServe() error {
	cfg := config.Load()
	log := newLogger()

	var ag *agent.Agent
	if cfg.Configured() {
		var err error
		ag, err = newAgent(cfg, log)
		if err != nil {
			return err
		}
	} else {
		log.Warn("ANTHROPIC_API_KEY is not set; /chat will report the missing credential")
	}

	store := session.NewStore(cfg.SessionTTL)
	defer store.Stop()

	srv := &http.Server{
		Addr:    cfg.ListenAddr,
		Handler: server.New(log, store, ag, cfg.HistoryWindow).Router(),
	}

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, syscall.SIGINT, syscall.SIGTERM)

	errCh := make(chan error, 1)
	go func() {
		log.Info("server listening", "addr", cfg.ListenAddr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case sig := <-shutdown:
		log.Info("shutting down", "signal", sig.String())
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		return fmt.Errorf("graceful shutdown: %w", err)
	}
	log.Info("server stopped")
	return nil
}

func runAsk(ctx context.Context, question string) error {
	cfg := config.Load()
	log := newLogger()

	if !cfg.Configured() {
		return fmt.Errorf("ANTHROPIC_API_KEY is not set")
	}

	f, err := os.Open(askFile)
	if err != nil {
		return err
	}
	defer f.Close()

	ds, err := dataset.Load(f, askFile)
	if err != nil {
		return fmt.Errorf("load %s: %w", askFile, err)
	}
	prof := schema.Build(ds)

	ag, err := newAgent(cfg, log)
	if err != nil {
		return err
	}

	out, err := ag.Ask(ctx, question, ds, prof, nil)
	if err != nil {
		return err
	}

	log.Debug("question answered", "expression", out.Expression, "attempts", out.Attempts)
	fmt.Println(render.Answer(out.Result, out.Query, ds))
	return nil
}
