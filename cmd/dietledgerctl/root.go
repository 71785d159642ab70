package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"dietledger/internal/amqp"
	"dietledger/internal/cli"
	"dietledger/internal/log"
	"dietledger/internal/services"
)

var (
	flagJSON    bool
	flagVerbose bool

	app        *cli.App
	amqpClient *amqp.Client
)

var rootCmd = &cobra.Command{
	Use:           "dietledgerctl",
	Short:         "Exchange ledger command line",
	Long:          "Record food exchanges and inspect daily progress against the dietary plan.",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
		return openApp(cmd.Context())
	},
	PersistentPostRunE: func(_ *cobra.Command, _ []string) error {
		return closeApp()
	},
}

// Execute runs the command tree and exits non-zero on failure.
func Execute() {
	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		_ = closeApp()
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().BoolVar(&flagJSON, "json", false, "Print results as JSON")
	rootCmd.PersistentFlags().BoolVarP(&flagVerbose, "verbose", "v", false, "Log to stderr at debug level")
}

func openApp(ctx context.Context) error {
	cli.LoadEnvFile()
	cfg := cli.LoadAndValidateConfig()
	if flagVerbose {
		cfg.LogLevel = "debug"
	} else {
		cfg.LogLevel = "error"
	}
	logger := cli.SetupLogger(cfg, log.ComponentCLI)

	var publisher services.Publisher
	if cfg.AMQPURL != "" {
		c, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue, logger)
		if err != nil {
			return fmt.Errorf("connect to broker: %w", err)
		}
		amqpClient = c
		publisher = c
	}

	a, err := cli.Build(ctx, cfg, logger, publisher)
	if err != nil {
		return err
	}
	app = a
	return nil
}

func closeApp() error {
	var err error
	if app != nil {
		err = app.Close()
		app = nil
	}
	if amqpClient != nil {
		_ = amqpClient.Close()
		amqpClient = nil
	}
	return err
}

func tracker() *services.Tracker {
	return app.Tracker
}

// printJSON is used for every command when --json is set.
func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// dateArg returns args[0] or today's date.
func dateArg(args []string) string {
	if len(args) > 0 {
		return args[0]
	}
	return tracker().Today().String()
}
