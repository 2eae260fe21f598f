package cli

import (
	"context"
	"fmt"
	"strconv"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/JonMunkholm/sqlscript/internal/core"
	"github.com/JonMunkholm/sqlscript/internal/storage/filestore"
	"github.com/JonMunkholm/sqlscript/internal/storage/sqlitestore"
)

// NewListCommand creates the list command.
func NewListCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List generated scripts, newest first",
		Example: `  sqlscript list --dir download
  sqlscript list --sqlite scripts.db --limit 5`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runList(cmd)
		},
	}

	cmd.Flags().String("dir", "", "Script directory (default: download)")
	cmd.Flags().String("sqlite", "", "Read from a SQLite script store instead of --dir")
	cmd.Flags().Int("limit", 0, "Maximum number of scripts to show (default: 20)")

	return cmd
}

func runList(cmd *cobra.Command) error {
	ctx := cmd.Context()
	s := GetSettings(ctx)
	sqlitePath, _ := cmd.Flags().GetString("sqlite")

	artifacts, err := listArtifacts(ctx, s, sqlitePath)
	if err != nil {
		return err
	}
	if len(artifacts) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "No scripts found.")
		return nil
	}

	tw := tablewriter.NewWriter(cmd.OutOrStdout())
	tw.SetAutoFormatHeaders(false)
	tw.SetHeader([]string{"NAME", "TABLE", "MODE", "STATEMENTS", "SIZE", "CREATED"})
	for _, a := range artifacts {
		tw.Append([]string{
			a.Name,
			a.TableName,
			string(a.Mode),
			strconv.Itoa(a.Statements),
			strconv.FormatInt(a.Size, 10),
			a.CreatedAt.Local().Format("2006-01-02 15:04:05"),
		})
	}
	tw.Render()
	return nil
}

func listArtifacts(ctx context.Context, s *Settings, sqlitePath string) ([]core.Artifact, error) {
	if sqlitePath != "" {
		store, err := sqlitestore.Open(ctx, sqlitePath)
		if err != nil {
			return nil, err
		}
		defer store.Close()
		return store.List(ctx, s.Limit)
	}

	store, err := filestore.New(s.Dir)
	if err != nil {
		return nil, err
	}
	return store.List(ctx, s.Limit)
}
