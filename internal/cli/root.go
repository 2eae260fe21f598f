// Package cli provides the sqlscript command-line interface.
package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/JonMunkholm/sqlscript/internal/logging"
)

// Version is set at build time.
var Version = "0.1.0"

// settingsKey stores the loaded Settings in the command context.
type settingsKey struct{}

// NewRootCmd creates and returns the root command.
func NewRootCmd() *cobra.Command {
	var cfgFile string

	rootCmd := &cobra.Command{
		Use:   "sqlscript",
		Short: "Turn CSV and XLSX files into T-SQL insert scripts",
		Long: `sqlscript reads a CSV or XLSX file and writes one INSERT statement per row
for the columns you pick. Guarded mode wraps every insert in an IF NOT EXISTS
check inside a single transaction so the script can be re-run safely.`,
		Version: Version,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if cmd.Name() == "help" || cmd.Name() == "completion" || cmd.Name() == "__complete" {
				return nil
			}

			settings, err := LoadSettings(cfgFile, cmd.Flags())
			if err != nil {
				return err
			}

			logger := logging.New(cmd.ErrOrStderr(), settings.LogLevel, settings.LogFormat)
			slog.SetDefault(logger)
			if settings.ConfigFile != "" {
				logger.Debug("using config file", "path", settings.ConfigFile)
			}

			cmd.SetContext(context.WithValue(cmd.Context(), settingsKey{}, settings))
			return nil
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: ./sqlscript.yaml)")
	rootCmd.PersistentFlags().String("log-level", "", "Log level (debug|info|warn|error)")
	rootCmd.PersistentFlags().String("log-format", "", "Log format (text|json)")

	_ = rootCmd.RegisterFlagCompletionFunc("log-level", func(_ *cobra.Command, _ []string, _ string) ([]string, cobra.ShellCompDirective) {
		return []string{"debug", "info", "warn", "error"}, cobra.ShellCompDirectiveNoFileComp
	})

	rootCmd.AddCommand(NewGenerateCommand())
	rootCmd.AddCommand(NewListCommand())
	rootCmd.AddCommand(NewServeCommand())

	return rootCmd
}

// Execute runs the root command.
func Execute(ctx context.Context) error {
	rootCmd := NewRootCmd()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return err
	}
	return nil
}

// GetSettings retrieves the settings from the command context.
func GetSettings(ctx context.Context) *Settings {
	if s, ok := ctx.Value(settingsKey{}).(*Settings); ok {
		return s
	}
	s, _ := LoadSettings("", nil)
	return s
}
