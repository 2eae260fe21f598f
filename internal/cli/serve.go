package cli

import (
	"log/slog"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/JonMunkholm/sqlscript/internal/application"
	"github.com/JonMunkholm/sqlscript/internal/config"
	"github.com/JonMunkholm/sqlscript/internal/logging"
)

// NewServeCommand creates the serve command. The server reads its settings
// from the environment (and .env) exactly like cmd/server.
func NewServeCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the upload web server",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := godotenv.Load(); err == nil {
				slog.Debug("loaded .env file")
			}

			cfg, err := config.Load()
			if err != nil {
				return err
			}
			if port, _ := cmd.Flags().GetInt("port"); cmd.Flags().Changed("port") {
				cfg.Server.Port = port
			}

			logging.Setup(cfg.Logging.Level, cfg.Logging.Format)
			return application.Serve(cmd.Context(), cfg)
		},
	}

	cmd.Flags().IntP("port", "p", 0, "Listen port (overrides SERVER_PORT)")
	return cmd
}
