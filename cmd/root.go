package cmd

import (
	"context"
	"os"

	"github.com/emrgen/notecache/internal/config"
	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

var (
	cfgFile      string
	outputFormat string
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "notecache",
	Short: "note page and flashcard cache",
	Example: `notecache db migrate
notecache note create -t "HSK 1"
notecache page add -n <note-id> -o "你好。" -r "Hello."
notecache page list -n <note-id> --refresh
notecache card add -n <note-id> -f 书 -b book -p shū
notecache card review -c <card-id>
notecache card delete -c <card-id>
notecache serve`,
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	err := rootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default ./config.yaml or $HOME/.notecache/config.yaml)")
	rootCmd.PersistentFlags().StringVar(&outputFormat, "output", "table", "output format: table, yaml or json")

	rootCmd.AddCommand(dbCmd)
	rootCmd.AddCommand(noteCmd)
	rootCmd.AddCommand(pageCmd)
	rootCmd.AddCommand(cardCmd)
	rootCmd.AddCommand(serveCmd())
	rootCmd.SetHelpCommand(&cobra.Command{Use: "no-help", Hidden: true})

	rootCmd.CompletionOptions.HiddenDefaultCmd = true
	cobra.EnableCommandSorting = false
}

// withApp loads the config, builds the app and runs fn against it.
func withApp(fn func(ctx context.Context, app *config.App) error) error {
	cfg, err := config.LoadConfig(cfgFile)
	if err != nil {
		return err
	}
	if err := config.SetupLogging(cfg); err != nil {
		return err
	}

	app, err := config.NewApp(cfg)
	if err != nil {
		return err
	}
	defer app.Close()

	if err := fn(context.Background(), app); err != nil {
		color.Red("error: %v", err)
		return err
	}
	return nil
}

func checkMissingFlags(cmd *cobra.Command, flags ...string) bool {
	var missing []string
	for _, required := range flags {
		if !cmd.Flag(required).Changed {
			missing = append(missing, "--"+required)
		}
	}

	if len(missing) > 0 {
		color.Red("missing: %v\n", missing)
		cmd.Println("")
		_ = cmd.Usage()
		return true
	}

	return false
}
