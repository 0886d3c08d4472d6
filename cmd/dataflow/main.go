// Package main provides the dataflow CLI. It drives one workbench session
// headlessly against the analysis engine: analyze a file or manual rows,
// smooth a column, export the results, or run a document conversion.
package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"dataflow/internal/config"
	"dataflow/internal/engine"
	"dataflow/internal/infrastructure"
	"dataflow/internal/notify"
	"dataflow/internal/workbench"
	"dataflow/pkg/contracts"
)

// cli holds the state shared by every subcommand
type cli struct {
	configFile string
	engineURL  string
	logLevel   string
	logFormat  string

	cfg    *config.Config
	logger *slog.Logger
}

func main() {
	_ = godotenv.Load()

	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	c := &cli{}

	root := &cobra.Command{
		Use:   "dataflow",
		Short: "Analyze tabular data and convert documents with the analysis engine",
		Long: `dataflow runs the data-analysis workbench from the command line.
It sends files or manual rows to the analysis engine, prints the result
tabs, applies smoothing and exports results. It also runs the PDF merge,
image to PDF and PDF to image conversions.`,
		SilenceUsage:      true,
		PersistentPreRunE: c.setup,
	}

	root.PersistentFlags().StringVar(&c.configFile, "config", "", "YAML config file (default: $DATAFLOW_CONFIG_FILE or ./config.yaml)")
	root.PersistentFlags().StringVar(&c.engineURL, "engine", "", "Analysis engine base URL (overrides config)")
	root.PersistentFlags().StringVar(&c.logLevel, "log-level", "warn", "Log level: debug, info, warn, error")
	root.PersistentFlags().StringVar(&c.logFormat, "log-format", infrastructure.FormatText, "Log format on stderr: text, json")

	root.AddCommand(newAnalyzeCmd(c), newConvertCmd(c), newVersionCmd())
	return root
}

func (c *cli) setup(cmd *cobra.Command, _ []string) error {
	var (
		cfg *config.Config
		err error
	)
	if c.configFile != "" {
		cfg, err = config.LoadFrom(c.configFile)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if c.engineURL != "" {
		cfg.Engine.BaseURL = c.engineURL
	}

	logging := cfg.Logging
	if c.logLevel != "" {
		logging.Level = c.logLevel
	}
	if c.logFormat != "" {
		logging.Format = c.logFormat
	}
	logger, err := infrastructure.NewLogger(logging, cmd.ErrOrStderr())
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}

	c.cfg = cfg
	c.logger = logger.With(slog.String("component", "cli"))
	return nil
}

// newWorkbench creates the session a command runs in. Notifications are
// printed to stderr as they happen.
func (c *cli) newWorkbench(cmd *cobra.Command) *workbench.Workbench {
	client := engine.NewClient(c.cfg.Engine, c.logger)
	return workbench.New("cli", client, workbench.Options{
		MaxUploadBytes: c.cfg.Engine.MaxUploadBytes,
		Logger:         c.logger,
		Sinks:          []notify.Notifier{notify.NewWriterSink(cmd.ErrOrStderr())},
	})
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			fmt.Fprintln(cmd.OutOrStdout(), contracts.GetFullVersionString())
			return nil
		},
	}
}
