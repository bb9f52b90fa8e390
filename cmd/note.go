package cmd

import (
	"context"
	"strconv"
	"strings"

	"github.com/emrgen/notecache/internal/config"
	"github.com/emrgen/notecache/internal/model"
	"github.com/spf13/cobra"
)

var noteCmd = &cobra.Command{
	Use:   "note",
	Short: "note commands",
}

func init() {
	noteCmd.SetHelpCommand(&cobra.Command{Use: "no-help", Hidden: true})
	noteCmd.AddCommand(createNoteCmd())
	noteCmd.AddCommand(getNoteCmd())
}

func noteRows(notes ...*model.Note) [][]string {
	rows := make([][]string, 0, len(notes))
	for _, n := range notes {
		rows = append(rows, []string{
			n.ID,
			n.Title,
			strconv.Itoa(n.FlashcardCount),
			strconv.Itoa(len(n.PageIDs)),
			strings.Join(n.HighlightedTerms, ", "),
		})
	}
	return rows
}

var noteHeader = []string{"ID", "Title", "Flashcards", "Pages", "Highlighted"}

func createNoteCmd() *cobra.Command {
	var title string
	var highlights []string

	command := &cobra.Command{
		Use:     "create",
		Short:   "create a note",
		Example: `notecache note create -t "HSK 1" -l 书 -l 水`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if checkMissingFlags(cmd, "title") {
				return nil
			}

			return withApp(func(ctx context.Context, app *config.App) error {
				note, err := app.Repository.CreateNote(ctx, model.Note{Title: title, HighlightedTerms: highlights})
				if err != nil {
					return err
				}
				return render(note, noteHeader, noteRows(note))
			})
		},
	}

	command.Flags().StringVarP(&title, "title", "t", "", "title of the note (required)")
	command.Flags().StringSliceVarP(&highlights, "highlight", "l", nil, "highlighted term, repeatable")
	command.Flags().SortFlags = false

	return command
}

func getNoteCmd() *cobra.Command {
	var noteID string
	var refresh bool

	command := &cobra.Command{
		Use:     "get",
		Short:   "get a note",
		Example: "notecache note get -n <note-id> --refresh",
		RunE: func(cmd *cobra.Command, args []string) error {
			if checkMissingFlags(cmd, "note-id") {
				return nil
			}

			return withApp(func(ctx context.Context, app *config.App) error {
				note, err := app.Repository.LoadNote(ctx, noteID, refresh)
				if err != nil {
					return err
				}
				return render(note, noteHeader, noteRows(note))
			})
		},
	}

	command.Flags().StringVarP(&noteID, "note-id", "n", "", "note id (required)")
	command.Flags().BoolVar(&refresh, "refresh", false, "reload from the remote store and repair the cached count")

	return command
}
