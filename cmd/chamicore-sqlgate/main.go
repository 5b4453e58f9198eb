// Package main is the entry point for the chamicore-sqlgate service and CLI.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"git.cscs.ch/openchami/chamicore-sqlgate/internal/audit"
	"git.cscs.ch/openchami/chamicore-sqlgate/internal/config"
	"git.cscs.ch/openchami/chamicore-sqlgate/internal/gate"
	"git.cscs.ch/openchami/chamicore-sqlgate/internal/server"
	"git.cscs.ch/openchami/chamicore-sqlgate/pkg/types"
)

var (
	version   = "dev"
	commit    = "none"
	buildDate = "unknown"
)

func main() {
	root := &cobra.Command{
		Use:           "chamicore-sqlgate",
		Short:         "SQL statement authorization gate",
		Long:          "chamicore-sqlgate validates SQL statements against session-scoped allow and deny rules before they reach a database.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(newCheckCmd())
	root.AddCommand(newServeCmd())
	root.AddCommand(newVersionCmd())

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newCheckCmd() *cobra.Command {
	var policyFile string

	cmd := &cobra.Command{
		Use:   "check <request-json>",
		Short: "Validate one request and print the decision",
		Long: "check reads a validation request as a single JSON argument, resolves the\n" +
			"sql-permissions document and prints the decision as JSON on stdout.\n" +
			"A denied verdict still exits 0; only operational failures exit non-zero.",
		Args: cobra.ExactArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			runCheck(args[0], policyFile)
		},
	}
	cmd.Flags().StringVar(&policyFile, "policy-file", "",
		"load the permission document from a YAML or JSON file instead of the session store")
	return cmd
}

func newServeCmd() *cobra.Command {
	var policyFile string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the validation service on a unix socket",
		Run: func(cmd *cobra.Command, args []string) {
			runServe(policyFile)
		},
	}
	cmd.Flags().StringVar(&policyFile, "policy-file", "",
		"load the permission document from a YAML or JSON file instead of the session store")
	return cmd
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("chamicore-sqlgate %s (commit: %s, built: %s)\n", version, commit, buildDate)
		},
	}
}

func runCheck(requestJSON, policyFile string) {
	// Unexpected evaluation failures exit 2; operational failures exit 1.
	defer func() {
		if r := recover(); r != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", r)
			os.Exit(2)
		}
	}()

	cfg := loadConfig()
	setupLogging(cfg)

	var req types.ValidationRequest
	if err := json.Unmarshal([]byte(requestJSON), &req); err != nil {
		fmt.Fprintf(os.Stderr, "failed to parse input args: %v\n", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithTimeout(context.Background(), cfg.RequestTimeout)
	defer cancel()

	result, err := buildGate(cfg, policyFile).Validate(ctx, req)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to get sql permissions: %v\n", err)
		os.Exit(1)
	}

	out, err := json.Marshal(result)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(2)
	}
	fmt.Println(string(out))
}

func runServe(policyFile string) {
	cfg := loadConfig()
	setupLogging(cfg)

	logger := log.With().Str("component", "main").Logger()
	logger.Info().
		Str("version", version).
		Str("commit", commit).
		Str("build_date", buildDate).
		Str("socket", cfg.SocketPath).
		Msg("starting chamicore-sqlgate")

	srv := server.New(cfg.SocketPath, buildGate(cfg, policyFile),
		server.WithLogger(log.Logger),
		server.WithRequestTimeout(cfg.RequestTimeout),
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logger.Info().Str("signal", sig.String()).Msg("received shutdown signal")
		cancel()
	}()

	if err := srv.Run(ctx); err != nil {
		logger.Error().Err(err).Msg("server stopped with error")
		os.Exit(1)
	}
	logger.Info().Msg("server stopped gracefully")
}

func loadConfig() config.Config {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}
	return cfg
}

func setupLogging(cfg config.Config) {
	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	if cfg.DevMode {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})
	} else {
		zerolog.TimeFieldFormat = zerolog.TimeFormatUnixMs
		log.Logger = zerolog.New(os.Stderr).With().Timestamp().Str("service", "sqlgate").Str("version", version).Logger()
	}
}

// buildGate assembles the gate with its policy source. An explicit
// --policy-file flag wins over the configured file; with neither set the
// permission document comes from the session store named in each request.
func buildGate(cfg config.Config, policyFile string) *gate.Gate {
	if policyFile == "" {
		policyFile = cfg.PolicyFile
	}

	var source gate.PolicySource
	if policyFile != "" {
		source = &gate.FileSource{Path: policyFile}
	} else {
		source = &gate.ContextStoreSource{
			Timeout:    cfg.FetchTimeout,
			Attempts:   uint(cfg.FetchAttempts),
			RetryDelay: cfg.FetchRetryDelay,
		}
	}

	return gate.New(source,
		gate.WithLogger(log.Logger),
		gate.WithAuditLogger(audit.NewLogger(log.Logger)),
	)
}
