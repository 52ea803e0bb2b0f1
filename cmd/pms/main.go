// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package main is the entry point for the pms CLI: project-scoped PubMed
// search with deduplicated local storage.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/pdiddy/pms/internal/config"
	"github.com/pdiddy/pms/internal/ingest"
	"github.com/pdiddy/pms/internal/logging"
	"github.com/pdiddy/pms/internal/pubmed"
	"github.com/pdiddy/pms/internal/records"
	"github.com/pdiddy/pms/internal/secrets"
	"github.com/pdiddy/pms/internal/store"
	"github.com/pdiddy/pms/pkg/types"
)

// version is set at build time via ldflags.
var version = "dev"

// env holds what PersistentPreRunE resolved for the running command.
var env struct {
	conf     *config.Manager
	cfg      types.Config
	cfgErr   error
	log      *zap.Logger
	closeLog func()
}

// rootCmd is the base command for the pms CLI.
var rootCmd = &cobra.Command{
	Use:   "pms",
	Short: "Search PubMed and keep deduplicated article collections per project",
	Long: `pms searches PubMed through the NCBI E-utilities API and stores the
matching articles in local projects. Each project remembers which articles
it already holds, so re-running a search only fetches what is new.

Articles are kept as JSON Lines under the data directory, tracked in a
SQLite database, and can be exported as jsonl, json, csv, or yaml.`,
	SilenceUsage:       true,
	SilenceErrors:      true,
	PersistentPreRunE:  setup,
	PersistentPostRunE: teardown,
}

func init() {
	rootCmd.PersistentFlags().String("config", "", "config file (default: ~/.config/pms/config.yaml)")
	rootCmd.PersistentFlags().String("log-level", "", "log level: debug, info, warn, error (overrides logging.level)")
}

func setup(cmd *cobra.Command, args []string) error {
	sec, err := secrets.Load(secrets.DefaultDir, nil)
	if err != nil {
		return err
	}

	cfgFile, _ := cmd.Flags().GetString("config")
	conf, err := config.Load(config.Options{
		File:    cfgFile,
		EnvFile: ".env",
		Secrets: sec,
	})
	if err != nil {
		return err
	}
	env.conf = conf
	env.cfg, env.cfgErr = conf.Config()

	level := env.cfg.Logging.Level
	if l, _ := cmd.Flags().GetString("log-level"); l != "" {
		level = l
	}
	logFile := env.cfg.Logging.File
	if env.cfgErr != nil {
		logFile = ""
	}
	env.log, env.closeLog, err = logging.New(level, logFile, cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	if len(sec) > 0 {
		env.log.Debug("loaded secrets", zap.Strings("keys", sec.Names()))
	}
	return nil
}

func teardown(cmd *cobra.Command, args []string) error {
	if env.log != nil {
		_ = env.log.Sync()
	}
	if env.closeLog != nil {
		env.closeLog()
	}
	return nil
}

// openOrchestrator wires both stores and, when online is set, the PubMed
// client. The returned func closes the tracking database.
func openOrchestrator(online bool, opts ...ingest.Option) (*ingest.Orchestrator, func(), error) {
	if env.cfgErr != nil {
		return nil, nil, env.cfgErr
	}
	db, err := store.Open(env.cfg.Storage.DatabasePath)
	if err != nil {
		return nil, nil, err
	}

	var client ingest.Retriever
	if online {
		client = pubmed.NewClient(env.cfg.API, pubmed.WithLogger(env.log))
	}
	recs := records.New(env.cfg.Storage.DataDir, env.log)

	opts = append([]ingest.Option{ingest.WithLogger(env.log)}, opts...)
	orch := ingest.New(client, db, recs, opts...)
	return orch, func() { db.Close() }, nil
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	if err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
