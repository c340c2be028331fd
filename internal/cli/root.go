// Package cli implements the rag-assistant command line.
package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"rag-assistant-go/internal/app"
	"rag-assistant-go/internal/config"
	"rag-assistant-go/internal/console"
	"rag-assistant-go/pkg/log"
)

var (
	configPath string
	skipIngest bool

	// cfg is loaded by the persistent pre-run of every command.
	cfg *config.Config

	// buildApp is replaced in tests.
	buildApp = app.New
)

var rootCmd = &cobra.Command{
	Use:   "rag-assistant",
	Short: "Answer questions about your documents",
	Long: `Indexes the configured document into PostgreSQL/pgvector, then starts an
interactive console. Every question is answered from the chunks most similar
to it. Type "exit" to quit.`,
	SilenceUsage:      true,
	PersistentPreRunE: loadConfig,
	RunE:              runConsole,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "configs/config.yaml", "path to the YAML config file, empty for defaults and environment only")
	rootCmd.Flags().BoolVar(&skipIngest, "skip-ingest", false, "start the console without indexing ingestion.source first")
}

// Execute runs the root command and exits non-zero on failure.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func loadConfig(cmd *cobra.Command, _ []string) error {
	loaded, err := config.Load(configPath)
	if err != nil {
		return err
	}
	cfg = loaded
	log.Init(cfg.Log.Level, cfg.Log.Format, cfg.Log.OutputPath)
	return nil
}

func runConsole(cmd *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := buildApp(ctx, cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	if !skipIngest {
		if err := a.IngestConfigured(ctx, cfg.Ingestion); err != nil {
			return err
		}
	}

	sessionID := a.Conversations.NewSessionID()
	log.Infof("console session %s started", sessionID)
	if err := console.New(a.Chat, cmd.InOrStdin(), cmd.OutOrStdout(), sessionID).Run(ctx); err != nil {
		return fmt.Errorf("console stopped: %w", err)
	}
	return nil
}
