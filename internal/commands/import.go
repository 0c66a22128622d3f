package commands

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/cleared-dev/stmtimport/internal/config"
	"github.com/cleared-dev/stmtimport/internal/export"
	"github.com/cleared-dev/stmtimport/internal/gitops"
	"github.com/cleared-dev/stmtimport/internal/importer"
	"github.com/cleared-dev/stmtimport/internal/logger"
	"github.com/cleared-dev/stmtimport/internal/model"
	"github.com/cleared-dev/stmtimport/internal/runlog"
	"github.com/cleared-dev/stmtimport/internal/statement"
)

type importOptions struct {
	repo        string
	dryRun      bool
	skipInvalid bool
	commit      bool
}

func newImportCommand(g *globalFlags) *cobra.Command {
	var opts importOptions

	cmd := &cobra.Command{
		Use:   "import",
		Short: "Import every statement waiting in the repo's import/ directory",
		Long: `Import parses each statement file in import/, writes its transactions
to the output directory, records the run in logs/import-log.csv and moves
the file to import/processed/. Files no source matches are left in place.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			repo, err := filepath.Abs(opts.repo)
			if err != nil {
				return fmt.Errorf("resolving repo path: %w", err)
			}
			opts.repo = repo

			e, err := g.load(cmd, repo)
			if err != nil {
				return err
			}
			return runImport(cmd, e, opts)
		},
	}

	f := cmd.Flags()
	f.StringVar(&opts.repo, "repo", ".", "repo root")
	f.BoolVar(&opts.dryRun, "dry-run", false, "parse and report without writing or moving files")
	f.BoolVar(&opts.skipInvalid, "skip-invalid", false, "skip lines that match but fail to parse instead of failing the file")
	f.BoolVar(&opts.commit, "commit", false, "commit exports, logs and moved statements when the repo is under git")

	return cmd
}

func runImport(cmd *cobra.Command, e *env, opts importOptions) error {
	files, err := importer.Scan(opts.repo)
	if err != nil {
		return err
	}
	if len(files) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "No statements to import.")
		return nil
	}

	batchID := uuid.NewString()
	log := logger.FromContext(cmd.Context()).With().Str("batch_id", batchID).Logger()
	ctx := logger.WithContext(cmd.Context(), log)
	outDir := e.cfg.Output.Dir
	if outDir == "" {
		outDir = config.Default().Output.Dir
	}
	if !filepath.IsAbs(outDir) {
		outDir = filepath.Join(opts.repo, outDir)
	}

	var (
		entries []runlog.Entry
		failed  []string
	)
	for _, f := range files {
		src, ok := e.cfg.SourceFor(f.Name)
		if !ok {
			log.Warn().Str("file", f.Name).Msg("no source matches; leaving file in import/")
			continue
		}

		entry, err := importFile(ctx, e, f, src, batchID, outDir, opts)
		entries = append(entries, entry)
		if err != nil {
			log.Error().Err(err).Str("file", f.Name).Msg("import failed")
			failed = append(failed, f.Name)
			continue
		}
		verb := "Imported"
		if opts.dryRun {
			verb = "Would import"
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s %s (%s): %d records, %d lines skipped\n",
			verb, f.Name, entry.Importer, entry.Records, entry.Skipped)
	}

	if !opts.dryRun && len(entries) > 0 {
		if err := runlog.Append(opts.repo, entries); err != nil {
			return err
		}
		if opts.commit {
			if err := commitImport(cmd, e, opts.repo, outDir, batchID, len(entries)-len(failed)); err != nil {
				return err
			}
		}
	}

	if len(failed) > 0 {
		return fmt.Errorf("%d of %d statements failed: %s", len(failed), len(entries), strings.Join(failed, ", "))
	}
	return nil
}

// importFile parses one statement and, unless dry-running, writes its
// export and moves it to import/processed/. The returned entry describes
// the outcome either way.
func importFile(ctx context.Context, e *env, f importer.FileInfo, src config.SourceConfig, batchID, outDir string, opts importOptions) (runlog.Entry, error) {
	entry := runlog.Entry{
		Timestamp: time.Now(),
		BatchID:   batchID,
		Importer:  src.Importer,
		File:      f.Name,
		Status:    runlog.StatusFailed,
	}
	fail := func(err error) (runlog.Entry, error) {
		entry.Message = err.Error()
		return entry, err
	}

	imp, err := e.importerFor(src.Importer)
	if err != nil {
		return fail(err)
	}

	log := logger.FromContext(ctx)
	var stats statement.Stats
	runOpts := []statement.RunOption{statement.WithStats(&stats)}
	if opts.skipInvalid {
		runOpts = append(runOpts, statement.WithSkipInvalid(func(err error) {
			log.Warn().Err(err).Str("file", f.Name).Msg("skipped invalid line")
		}))
	}

	extra := extraFields(src, map[string]string{"batch_id": batchID})
	txns, err := statement.Collect(imp.ProcessFile(f.Path, extra, runOpts...))
	entry.Records, entry.Skipped, entry.Invalid = stats.Records, stats.Skipped, stats.Invalid
	if err != nil {
		return fail(err)
	}
	logSummary(log, imp.Name(), f.Path, stats)

	if !opts.dryRun {
		if err := writeExport(outDir, f.Name, e.cfg.Output.Format, txns); err != nil {
			return fail(err)
		}
		if err := importer.MarkProcessed(opts.repo, f.Name); err != nil {
			return fail(err)
		}
	}
	entry.Status = runlog.StatusOK
	return entry, nil
}

// exportName appends the export extension to the statement name, so
// "acct.txt" exports to "acct.txt.csv". A name already ending in that
// extension is used as is.
func exportName(fileName, format string) string {
	ext := export.FileExt(format)
	if strings.EqualFold(filepath.Ext(fileName), ext) {
		return fileName
	}
	return fileName + ext
}

// writeExport creates the export for fileName. An existing export is never
// overwritten.
func writeExport(dir, fileName, format string, txns []model.Transaction) (err error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating output dir: %w", err)
	}
	path := filepath.Join(dir, exportName(fileName, format))

	out, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		if errors.Is(err, os.ErrExist) {
			return fmt.Errorf("export %s already exists", path)
		}
		return fmt.Errorf("creating export: %w", err)
	}
	defer func() {
		if cerr := out.Close(); err == nil && cerr != nil {
			err = fmt.Errorf("closing export: %w", cerr)
		}
	}()

	if err := export.WriteAll(out, format, txns); err != nil {
		return fmt.Errorf("writing %s: %w", path, err)
	}
	return nil
}

func commitImport(cmd *cobra.Command, e *env, repo, outDir, batchID string, imported int) error {
	if !gitops.IsRepo(repo) {
		log := logger.FromContext(cmd.Context())
		log.Warn().Str("repo", repo).Msg("not a git repository; skipping commit")
		return nil
	}
	rel, err := filepath.Rel(repo, outDir)
	if err != nil || strings.HasPrefix(rel, "..") {
		return fmt.Errorf("output dir %s is outside the repo", outDir)
	}

	author := gitops.Author{Name: e.cfg.Git.AuthorName, Email: e.cfg.Git.AuthorEmail}
	msg := fmt.Sprintf("import: %d statements (batch %s)", imported, batchID)
	var paths []string
	for _, p := range []string{rel, "import", "logs"} {
		if _, err := os.Stat(filepath.Join(repo, p)); err == nil {
			paths = append(paths, p)
		}
	}
	hash, err := gitops.Commit(cmd.Context(), repo, msg, author, paths...)
	if errors.Is(err, gitops.ErrNothingToCommit) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("committing import: %w", err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Committed %s\n", hash)
	return nil
}
