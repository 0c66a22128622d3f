package commands

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/cleared-dev/stmtimport/internal/buildinfo"
	"github.com/cleared-dev/stmtimport/internal/config"
	"github.com/cleared-dev/stmtimport/internal/importer"
	"github.com/cleared-dev/stmtimport/internal/logger"
	"github.com/cleared-dev/stmtimport/internal/statement"
)

// globalFlags are the persistent flags shared by every subcommand.
type globalFlags struct {
	configPath string
	logLevel   string
	logFormat  string
}

// NewRootCommand creates the root CLI command with all subcommands registered.
func NewRootCommand() *cobra.Command {
	var g globalFlags

	rootCmd := &cobra.Command{
		Use:     "stmtimport",
		Short:   "Turn bank statement text into structured transactions",
		Version: buildinfo.String(),
		CompletionOptions: cobra.CompletionOptions{
			DisableDefaultCmd: true,
		},
		SilenceUsage: true,
	}

	pf := rootCmd.PersistentFlags()
	pf.StringVar(&g.configPath, "config", "", "config file (default: "+config.FileName+" in the repo or working directory)")
	pf.StringVar(&g.logLevel, "log-level", "", "log level: trace, debug, info, warn, error (overrides config)")
	pf.StringVar(&g.logFormat, "log-format", "", "log format: console or json (overrides config)")

	rootCmd.AddCommand(
		newInitCommand(),
		newParseCommand(&g),
		newFormatsCommand(&g),
		newImportCommand(&g),
	)

	return rootCmd
}

// env is what a command needs once config is loaded. The logger travels in
// the command's context.
type env struct {
	cfg      *config.Config
	registry *importer.Registry
}

// load reads the config for root, builds the logger, and registers the
// built-in and configured importers. An explicit --config must exist; the
// implicit one falls back to config.Default.
func (g *globalFlags) load(cmd *cobra.Command, root string) (*env, error) {
	var (
		cfg *config.Config
		err error
	)
	if g.configPath != "" {
		cfg, err = config.Load(g.configPath)
	} else {
		cfg, err = config.LoadOrDefault(filepath.Join(root, config.FileName))
	}
	if err != nil {
		return nil, err
	}

	level, format := cfg.Logging.Level, cfg.Logging.Format
	if g.logLevel != "" {
		level = g.logLevel
	}
	if g.logFormat != "" {
		format = g.logFormat
	}
	log, err := logger.New(cmd.ErrOrStderr(), level, format)
	if err != nil {
		return nil, err
	}
	cmd.SetContext(logger.WithContext(cmd.Context(), log))

	reg := importer.DefaultRegistry(statement.WithLogger(log))
	if err := reg.AddConfigured(cfg.Importers, statement.WithLogger(log)); err != nil {
		return nil, fmt.Errorf("loading importers: %w", err)
	}
	return &env{cfg: cfg, registry: reg}, nil
}

// importerFor returns the named importer or an error listing the known ones.
func (e *env) importerFor(name string) (*importer.Importer, error) {
	imp := e.registry.Get(name)
	if imp == nil {
		return nil, fmt.Errorf("unknown importer %q (known: %s)", name, strings.Join(e.registry.Names(), ", "))
	}
	return imp, nil
}

// extraFields builds the fields merged into every record of a file: the
// source's fields, then its account, then the overrides.
func extraFields(src config.SourceConfig, overrides map[string]string) statement.Fields {
	extra := make(statement.Fields, len(src.Fields)+len(overrides)+1)
	for k, v := range src.Fields {
		extra[k] = v
	}
	if src.Account != "" {
		extra["account"] = src.Account
	}
	for k, v := range overrides {
		extra[k] = v
	}
	return extra
}
