package cmd

import (
	"context"
	"strconv"
	"time"

	"github.com/emrgen/notecache/internal/config"
	"github.com/emrgen/notecache/internal/model"
	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

var cardCmd = &cobra.Command{
	Use:   "card",
	Short: "flashcard commands",
}

func init() {
	cardCmd.SetHelpCommand(&cobra.Command{Use: "no-help", Hidden: true})
	cardCmd.AddCommand(listCardsCmd())
	cardCmd.AddCommand(addCardCmd())
	cardCmd.AddCommand(reviewCardCmd())
	cardCmd.AddCommand(deleteCardCmd())
}

var cardHeader = []string{"ID", "Front", "Back", "Pinyin", "Reviews", "Last Reviewed"}

func cardRows(cards ...model.FlashCard) [][]string {
	rows := make([][]string, 0, len(cards))
	for _, c := range cards {
		last := "-"
		if c.LastReviewedAt != nil {
			last = c.LastReviewedAt.Format(time.DateTime)
		}
		rows = append(rows, []string{c.ID, c.Front, c.Back, c.Pinyin, strconv.Itoa(c.ReviewCount), last})
	}
	return rows
}

func listCardsCmd() *cobra.Command {
	var noteID string

	command := &cobra.Command{
		Use:     "list",
		Short:   "list the flashcards of a note",
		Example: "notecache card list -n <note-id>",
		RunE: func(cmd *cobra.Command, args []string) error {
			if checkMissingFlags(cmd, "note-id") {
				return nil
			}

			return withApp(func(ctx context.Context, app *config.App) error {
				cards, err := app.Repository.LoadFlashcards(ctx, noteID)
				if err != nil {
					return err
				}
				return render(cards, cardHeader, cardRows(cards...))
			})
		},
	}

	command.Flags().StringVarP(&noteID, "note-id", "n", "", "note id (required)")

	return command
}

func addCardCmd() *cobra.Command {
	var noteID, front, back, pinyin string

	command := &cobra.Command{
		Use:     "add",
		Short:   "add a flashcard, or update the one with the same front",
		Example: "notecache card add -n <note-id> -f 书 -b book -p shū",
		RunE: func(cmd *cobra.Command, args []string) error {
			if checkMissingFlags(cmd, "note-id", "front", "back") {
				return nil
			}

			return withApp(func(ctx context.Context, app *config.App) error {
				card, err := app.Repository.AddFlashcard(ctx, front, back, noteID, pinyin)
				if err != nil {
					return err
				}
				return render(card, cardHeader, cardRows(*card))
			})
		},
	}

	command.Flags().StringVarP(&noteID, "note-id", "n", "", "note id (required)")
	command.Flags().StringVarP(&front, "front", "f", "", "front of the card (required)")
	command.Flags().StringVarP(&back, "back", "b", "", "back of the card (required)")
	command.Flags().StringVarP(&pinyin, "pinyin", "p", "", "pinyin")
	command.Flags().SortFlags = false

	return command
}

func reviewCardCmd() *cobra.Command {
	var cardID string

	command := &cobra.Command{
		Use:     "review",
		Short:   "record a review of a flashcard",
		Example: "notecache card review -c <card-id>",
		RunE: func(cmd *cobra.Command, args []string) error {
			if checkMissingFlags(cmd, "card-id") {
				return nil
			}

			return withApp(func(ctx context.Context, app *config.App) error {
				card, err := app.Store.GetFlashcard(ctx, cardID)
				if err != nil {
					cached, cacheErr := app.Cache.GetFlashcard(ctx, cardID)
					if cacheErr != nil || cached == nil {
						return err
					}
					card = cached
				}

				reviewed, err := app.Repository.UpdateFlashcard(ctx, *card)
				if err != nil {
					return err
				}
				return render(reviewed, cardHeader, cardRows(*reviewed))
			})
		},
	}

	command.Flags().StringVarP(&cardID, "card-id", "c", "", "flashcard id (required)")

	return command
}

func deleteCardCmd() *cobra.Command {
	var cardID, noteID string

	command := &cobra.Command{
		Use:     "delete",
		Short:   "delete a flashcard",
		Example: "notecache card delete -c <card-id>",
		RunE: func(cmd *cobra.Command, args []string) error {
			if checkMissingFlags(cmd, "card-id") {
				return nil
			}

			return withApp(func(ctx context.Context, app *config.App) error {
				if err := app.Repository.DeleteFlashcard(ctx, cardID, noteID); err != nil {
					return err
				}
				color.Green("flashcard %s deleted", cardID)
				return nil
			})
		},
	}

	command.Flags().StringVarP(&cardID, "card-id", "c", "", "flashcard id (required)")
	command.Flags().StringVarP(&noteID, "note-id", "n", "", "note id, defaults to the card's note")

	return command
}
