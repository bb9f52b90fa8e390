package cmd

import (
	"context"

	"github.com/emrgen/notecache/internal/config"
	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

var dbCmd = &cobra.Command{
	Use:   "db",
	Short: "db commands",
}

func init() {
	dbCmd.AddCommand(Migrate())
}

func Migrate() *cobra.Command {
	command := &cobra.Command{
		Use:   "migrate",
		Short: "Migrate the database",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(func(ctx context.Context, app *config.App) error {
				if err := app.Store.Migrate(); err != nil {
					return err
				}
				color.Green("database migrated")
				return nil
			})
		},
	}

	return command
}
