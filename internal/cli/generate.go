package cli

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/JonMunkholm/sqlscript/internal/core"
	"github.com/JonMunkholm/sqlscript/internal/logging"
	"github.com/JonMunkholm/sqlscript/internal/source"
	"github.com/JonMunkholm/sqlscript/internal/storage/filestore"
)

// NewGenerateCommand creates the generate command.
func NewGenerateCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "generate <file>",
		Short: "Generate an insert script from a CSV or XLSX file",
		Long: `Generate one INSERT statement per row of <file> for the selected columns.

The script goes to stdout unless --output names a file. Files are written
with a metadata sidecar so "sqlscript list" can show them later.`,
		Example: `  # Plain inserts to stdout
  sqlscript generate users.csv --table users --columns id,name --mode plain

  # Guarded script saved to download/users_inserts.sql
  sqlscript generate users.xlsx -t users -c "id, name, email" -o download/users_inserts.sql`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runGenerate(cmd, args[0])
		},
	}

	cmd.Flags().StringP("table", "t", "", "Target table name (required)")
	cmd.Flags().StringP("columns", "c", "", "Comma-separated columns to insert (required)")
	cmd.Flags().StringP("mode", "m", "", "Statement mode: plain or guarded (default from config, guarded if unset)")
	cmd.Flags().Int("batch-size", 0, "Rows per generation batch")
	cmd.Flags().StringP("output", "o", "", "Output file, - for stdout")
	cmd.Flags().String("sheet", "", "XLSX worksheet (default: first sheet)")
	cmd.Flags().String("delimiter", "", "CSV field delimiter (default: ,)")
	cmd.Flags().Bool("float-numbers", false, "Read fractional numbers as floats instead of exact decimals")

	_ = cmd.RegisterFlagCompletionFunc("mode", func(_ *cobra.Command, _ []string, _ string) ([]string, cobra.ShellCompDirective) {
		return []string{string(core.ModePlain), string(core.ModeGuarded)}, cobra.ShellCompDirectiveNoFileComp
	})

	return cmd
}

func runGenerate(cmd *cobra.Command, path string) error {
	ctx := cmd.Context()
	s := GetSettings(ctx)

	opts, err := s.Options()
	if err != nil {
		return err
	}
	if _, err := opts.Validate(); err != nil {
		return err
	}
	comma, err := s.Comma()
	if err != nil {
		return err
	}

	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open source: %w", err)
	}
	defer f.Close()

	load := source.Loader(source.Options{
		Sheet:        s.Sheet,
		FloatNumbers: s.FloatNumbers,
		Comma:        comma,
	})

	if s.Output != "" && s.Output != "-" {
		return generateToFile(cmd, f, path, load, opts, s.Output)
	}

	table, err := load(f, filepath.Base(path))
	if err != nil {
		return err
	}
	projected, err := core.Project(table, opts.Columns)
	if err != nil {
		return err
	}

	w := bufio.NewWriter(cmd.OutOrStdout())
	count := 0
	err = core.Emit(ctx, projected, opts, func(stmt string) error {
		count++
		_, err := fmt.Fprintln(w, stmt)
		return err
	})
	if err != nil {
		return err
	}
	if err := w.Flush(); err != nil {
		return fmt.Errorf("write script: %w", err)
	}

	logging.FromContext(ctx).Info("script generated",
		"table", opts.TableName,
		"mode", opts.Mode,
		"statements", count,
	)
	return nil
}

// generateToFile runs the conversion service against a file store rooted at
// the output's directory.
func generateToFile(cmd *cobra.Command, src *os.File, path string, load core.LoadFunc, opts core.Options, output string) error {
	ctx := cmd.Context()

	store, err := filestore.New(filepath.Dir(output))
	if err != nil {
		return err
	}

	svc := core.NewService(store, load, nil, core.ServiceConfig{
		BatchSize:   opts.BatchSize,
		DefaultMode: opts.Mode,
	})

	result, err := svc.Convert(ctx, core.Request{
		FileName:   filepath.Base(path),
		Source:     src,
		TableName:  opts.TableName,
		Columns:    opts.Columns,
		Mode:       opts.Mode,
		BatchSize:  opts.BatchSize,
		OutputName: filepath.Base(output),
	})
	if err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Wrote %d statements to %s\n",
		result.Total, filepath.Join(store.Dir(), result.Artifact.Name))
	return nil
}
