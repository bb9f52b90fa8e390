package cmd

import (
	"context"

	"github.com/emrgen/notecache/internal/config"
	"github.com/emrgen/notecache/internal/server"
	"github.com/spf13/cobra"
)

func serveCmd() *cobra.Command {
	command := &cobra.Command{
		Use:   "serve",
		Short: "run the http api and background jobs",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(func(ctx context.Context, app *config.App) error {
				return server.Start(app)
			})
		},
	}

	return command
}
