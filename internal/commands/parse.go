package commands

import (
	"fmt"
	"io"
	"iter"
	"path/filepath"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/cleared-dev/stmtimport/internal/config"
	"github.com/cleared-dev/stmtimport/internal/export"
	"github.com/cleared-dev/stmtimport/internal/logger"
	"github.com/cleared-dev/stmtimport/internal/model"
	"github.com/cleared-dev/stmtimport/internal/statement"
)

type parseOptions struct {
	format      string
	account     string
	fields      map[string]string
	output      string
	skipInvalid bool
}

func newParseCommand(g *globalFlags) *cobra.Command {
	var opts parseOptions

	cmd := &cobra.Command{
		Use:   "parse <file>",
		Short: "Parse a statement file and print its transactions",
		Long: `Parse reads a statement file line by line and prints one row per
transaction. Without --format the importer is chosen by matching the file
name against the sources in the config.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := g.load(cmd, ".")
			if err != nil {
				return err
			}
			return runParse(cmd, e, args[0], opts)
		},
	}

	f := cmd.Flags()
	f.StringVarP(&opts.format, "format", "f", "", "importer name (see 'stmtimport formats')")
	f.StringVar(&opts.account, "account", "", "account recorded on every transaction")
	f.StringToStringVar(&opts.fields, "field", nil, "extra field as key=value (repeatable)")
	f.StringVarP(&opts.output, "output", "o", "", "output format: csv or json (default from config)")
	f.BoolVar(&opts.skipInvalid, "skip-invalid", false, "skip lines that match but fail to parse instead of stopping")

	return cmd
}

func runParse(cmd *cobra.Command, e *env, path string, opts parseOptions) error {
	src := config.SourceConfig{Importer: opts.format}
	if opts.format == "" {
		var ok bool
		src, ok = e.cfg.SourceFor(filepath.Base(path))
		if !ok {
			return fmt.Errorf("no source matches %s; pass --format", filepath.Base(path))
		}
	}
	imp, err := e.importerFor(src.Importer)
	if err != nil {
		return err
	}
	if opts.account != "" {
		src.Account = opts.account
	}

	output := opts.output
	if output == "" {
		output = e.cfg.Output.Format
	}

	log := logger.FromContext(cmd.Context())
	var stats statement.Stats
	runOpts := []statement.RunOption{statement.WithStats(&stats)}
	if opts.skipInvalid {
		runOpts = append(runOpts, statement.WithSkipInvalid(func(err error) {
			log.Warn().Err(err).Msg("skipped invalid line")
		}))
	}

	seq := imp.ProcessFile(path, extraFields(src, opts.fields), runOpts...)
	if err := writeParsed(cmd.OutOrStdout(), output, seq); err != nil {
		return err
	}

	logSummary(log, imp.Name(), path, stats)
	return nil
}

// writeParsed writes the records of seq. JSON lines are written as each
// record is parsed; CSV needs every record first to know its extra columns.
func writeParsed(w io.Writer, format string, seq iter.Seq2[model.Transaction, error]) error {
	if format != "json" {
		txns, err := statement.Collect(seq)
		if err != nil {
			return err
		}
		if err := export.WriteAll(w, format, txns); err != nil {
			return fmt.Errorf("writing output: %w", err)
		}
		return nil
	}

	jw := export.NewJSONWriter(w)
	for txn, err := range seq {
		if err != nil {
			return err
		}
		if err := jw.Write(txn); err != nil {
			return fmt.Errorf("writing output: %w", err)
		}
	}
	return jw.Flush()
}

func logSummary(log zerolog.Logger, importerName, path string, stats statement.Stats) {
	log.Info().
		Str("importer", importerName).
		Str("file", path).
		Int("lines", stats.Lines).
		Int("records", stats.Records).
		Int("skipped", stats.Skipped).
		Int("invalid", stats.Invalid).
		Msg("parsed statement")
}
