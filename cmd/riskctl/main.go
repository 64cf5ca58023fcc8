// Command riskctl runs risk analyses against the local databases without the
// HTTP server.
package main

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/aristath/riskcore/internal/config"
	"github.com/aristath/riskcore/internal/di"
	"github.com/aristath/riskcore/pkg/logger"
)

// options holds the persistent flags shared by every command
type options struct {
	dataDir    string
	riskConfig string
	logLevel   string
	jsonOutput bool
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	opts := &options{}

	root := &cobra.Command{
		Use:          "riskctl",
		Short:        "Portfolio risk analysis from the command line",
		Long:         "riskctl computes VaR, Expected Shortfall, stress tests and compliance checks for stored portfolios.",
		SilenceUsage: true,
	}

	flags := root.PersistentFlags()
	flags.StringVar(&opts.dataDir, "data-dir", "", "database directory (default $RISK_DATA_DIR or ./data)")
	flags.StringVar(&opts.riskConfig, "risk-config", "", "risk configuration file (default $RISK_CONFIG_PATH)")
	flags.StringVar(&opts.logLevel, "log-level", "warn", "log level (debug|info|warn|error)")
	flags.BoolVar(&opts.jsonOutput, "json", false, "print results as JSON")

	root.AddCommand(
		newAnalyzeCmd(opts),
		newStressCmd(opts),
		newScenariosCmd(opts),
		newImportPricesCmd(opts),
		newVersionCmd(),
	)
	return root
}

// env is what a command needs to run: the wired container and the risk
// configuration
type env struct {
	container *di.Container
	riskCfg   config.RiskConfig
}

func (e *env) close() {
	e.container.Close()
}

// setup loads configuration and wires the databases and services. The report
// archive stays disabled for CLI runs.
func setup(ctx context.Context, opts *options, stderr io.Writer) (*env, error) {
	if opts.dataDir != "" {
		if err := os.Setenv("RISK_DATA_DIR", opts.dataDir); err != nil {
			return nil, err
		}
	}
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load configuration: %w", err)
	}
	if opts.riskConfig != "" {
		cfg.RiskConfigPath = opts.riskConfig
	}
	cfg.Archive = config.ArchiveConfig{}

	log := logger.New(logger.Config{Level: opts.logLevel, Pretty: true, Output: stderr})

	container, err := di.InitializeDatabases(cfg, log)
	if err != nil {
		return nil, err
	}
	if err := di.InitializeRepositories(container, log); err != nil {
		container.Close()
		return nil, err
	}
	if err := di.InitializeServices(ctx, container, cfg, log); err != nil {
		container.Close()
		return nil, err
	}

	riskCfg, err := container.LoadRiskConfig()
	if err != nil {
		container.Close()
		return nil, err
	}
	return &env{container: container, riskCfg: riskCfg}, nil
}
