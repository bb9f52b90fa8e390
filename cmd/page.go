package cmd

import (
	"context"
	"strconv"
	"time"

	"github.com/emrgen/notecache/internal/config"
	"github.com/emrgen/notecache/internal/model"
	"github.com/emrgen/notecache/internal/processing"
	"github.com/spf13/cobra"
)

var pageCmd = &cobra.Command{
	Use:   "page",
	Short: "page commands",
}

func init() {
	pageCmd.SetHelpCommand(&cobra.Command{Use: "no-help", Hidden: true})
	pageCmd.AddCommand(listPagesCmd())
	pageCmd.AddCommand(addPageCmd())
	pageCmd.AddCommand(processPagesCmd())
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "…"
}

func listPagesCmd() *cobra.Command {
	var noteID string
	var refresh bool

	command := &cobra.Command{
		Use:     "list",
		Short:   "list the pages of a note",
		Example: "notecache page list -n <note-id> --refresh",
		RunE: func(cmd *cobra.Command, args []string) error {
			if checkMissingFlags(cmd, "note-id") {
				return nil
			}

			return withApp(func(ctx context.Context, app *config.App) error {
				pages, err := app.Repository.LoadPages(ctx, noteID, refresh)
				if err != nil {
					return err
				}

				rows := make([][]string, 0, len(pages))
				for _, p := range pages {
					rows = append(rows, []string{
						p.ID,
						strconv.Itoa(p.PageNumber),
						app.Tracker.Status(ctx, p.ID).String(),
						truncate(p.OriginalText, 24),
					})
				}
				return render(pages, []string{"ID", "Number", "Processing", "Text"}, rows)
			})
		},
	}

	command.Flags().StringVarP(&noteID, "note-id", "n", "", "note id (required)")
	command.Flags().BoolVar(&refresh, "refresh", false, "merge the remote pages into the cache")

	return command
}

func addPageCmd() *cobra.Command {
	var page model.Page

	command := &cobra.Command{
		Use:     "add",
		Short:   "add a page to a note",
		Example: `notecache page add -n <note-id> -o "你好。" -r "Hello." -p 0`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if checkMissingFlags(cmd, "note-id") {
				return nil
			}

			return withApp(func(ctx context.Context, app *config.App) error {
				created, err := app.Repository.AddPage(ctx, page)
				if err != nil {
					return err
				}
				return render(created, []string{"ID", "Note", "Number"}, [][]string{
					{created.ID, created.NoteID, strconv.Itoa(created.PageNumber)},
				})
			})
		},
	}

	command.Flags().StringVarP(&page.NoteID, "note-id", "n", "", "note id (required)")
	command.Flags().StringVarP(&page.ID, "page-id", "i", "", "page id, generated when empty")
	command.Flags().IntVarP(&page.PageNumber, "number", "p", 0, "page number")
	command.Flags().StringVarP(&page.OriginalText, "original", "o", model.ProcessingSentinel, "captured text")
	command.Flags().StringVarP(&page.TranslatedText, "translation", "r", "", "translated text")
	command.Flags().StringVar(&page.ImageRef, "image", "", "image reference")
	command.Flags().SortFlags = false

	return command
}

func processPagesCmd() *cobra.Command {
	var noteID string
	var timeout time.Duration

	command := &cobra.Command{
		Use:     "process",
		Short:   "process every page of a note and wait for the result",
		Example: "notecache page process -n <note-id>",
		RunE: func(cmd *cobra.Command, args []string) error {
			if checkMissingFlags(cmd, "note-id") {
				return nil
			}

			return withApp(func(ctx context.Context, app *config.App) error {
				ctx, cancel := context.WithTimeout(ctx, timeout)
				defer cancel()

				session := processing.NewSession()
				defer session.Close()

				batch, err := app.Repository.ProcessNote(ctx, session, noteID, nil)
				if err != nil {
					return err
				}

				results, err := batch.Wait(ctx)
				if err != nil {
					return err
				}

				rows := make([][]string, 0, len(results))
				for _, r := range results {
					segments, status := "", app.Tracker.Status(ctx, r.PageID).String()
					if r.Text != nil {
						segments = strconv.Itoa(len(r.Text.Segments))
					}
					if r.Err != nil {
						status = r.Err.Error()
					}
					rows = append(rows, []string{r.PageID, segments, status})
				}
				return render(results, []string{"Page", "Segments", "Status"}, rows)
			})
		},
	}

	command.Flags().StringVarP(&noteID, "note-id", "n", "", "note id (required)")
	command.Flags().DurationVar(&timeout, "timeout", time.Minute, "give up waiting after this long")

	return command
}
