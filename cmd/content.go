package cmd

import (
	"fmt"

	sessionrender "github.com/bnema/pathfinder/internal/adapters/render/session"
	"github.com/bnema/pathfinder/internal/domain"
	"github.com/spf13/cobra"
)

func newContentCmd(app *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "content",
		Short: "Browse learning content",
	}

	cmd.AddCommand(
		newContentListCmd(app),
		newContentShowCmd(app),
		newContentViewCmd(app),
		newContentFavoriteCmd(app),
		newContentCommentsCmd(app),
		newContentCommentCmd(app),
	)

	return cmd
}

func newContentListCmd(app *app) *cobra.Command {
	var flags listFlags
	var category string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List content",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if _, err := app.start(cmd); err != nil {
				return err
			}
			q := app.core.Content.ListQuery(flags.params(category))
			return showPage(cmd, app, "Content", q, flags.asJSON, contentItem)
		},
	}

	flags.register(cmd)
	cmd.Flags().StringVar(&category, "category", "", "Only show content in this category")

	return cmd
}

func contentItem(c domain.Content) sessionrender.Item {
	return sessionrender.Item{
		ID:    c.ID,
		Title: c.Title,
		Meta:  fmt.Sprintf("%s · %d views · %d favorites", c.Category, c.ViewCount, c.FavoriteCount),
	}
}

func newContentShowCmd(app *app) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "show <id>",
		Short: "Show one content item",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := app.start(cmd); err != nil {
				return err
			}
			content, err := showValue[domain.Content](cmd, app, app.core.Content.DetailQuery(args[0]))
			if err != nil {
				return err
			}
			if asJSON {
				return writeJSON(cmd.OutOrStdout(), content)
			}

			out := cmd.OutOrStdout()
			_, _ = fmt.Fprintf(out, "%s\n", content.Title)
			_, _ = fmt.Fprintf(out, "category: %s\n", content.Category)
			_, _ = fmt.Fprintf(out, "author: %s\n", authorName(content.Author, content.AuthorID))
			_, _ = fmt.Fprintf(out, "views: %d  favorites: %d  comments: %d\n", content.ViewCount, content.FavoriteCount, content.CommentCount)
			if content.Description != "" {
				_, _ = fmt.Fprintf(out, "\n%s\n", content.Description)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the content as JSON")

	return cmd
}

func newContentViewCmd(app *app) *cobra.Command {
	return &cobra.Command{
		Use:   "view <id>",
		Short: "Record a view of a content item",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := app.start(cmd); err != nil {
				return err
			}
			if err := app.core.Content.IncrementViews(cmd.Context(), args[0]); err != nil {
				return err
			}
			_, err := fmt.Fprintf(cmd.OutOrStdout(), "Recorded view of %s\n", args[0])
			return err
		},
	}
}

func newContentFavoriteCmd(app *app) *cobra.Command {
	return &cobra.Command{
		Use:   "favorite <id>",
		Short: "Toggle a favorite on a content item",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := app.start(cmd); err != nil {
				return err
			}
			favorited, err := app.core.Content.ToggleFavorite(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return printFavorite(cmd, args[0], favorited)
		},
	}
}

func newContentCommentsCmd(app *app) *cobra.Command {
	return &cobra.Command{
		Use:   "comments <id>",
		Short: "List comments on a content item",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := app.start(cmd); err != nil {
				return err
			}
			comments, err := showValue[[]domain.Comment](cmd, app, app.core.Content.CommentsQuery(args[0]))
			if err != nil {
				return err
			}
			return printComments(cmd.OutOrStdout(), comments)
		},
	}
}

func newContentCommentCmd(app *app) *cobra.Command {
	var text string
	var parentID string

	cmd := &cobra.Command{
		Use:   "comment <id>",
		Short: "Comment on a content item",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := app.start(cmd); err != nil {
				return err
			}
			comment, err := app.core.Content.AddComment(cmd.Context(), args[0], text, parentID)
			if err != nil {
				return err
			}
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "Added comment %s\n", comment.ID)
			return err
		},
	}

	registerCommentFlags(cmd, &text, &parentID)

	return cmd
}

func registerCommentFlags(cmd *cobra.Command, text, parentID *string) {
	cmd.Flags().StringVar(text, "text", "", "Comment text")
	cmd.Flags().StringVar(parentID, "parent", "", "Reply to this comment")
	_ = cmd.MarkFlagRequired("text")
}

func printFavorite(cmd *cobra.Command, id string, favorited bool) error {
	state := "Removed favorite from"
	if favorited {
		state = "Favorited"
	}
	_, err := fmt.Fprintf(cmd.OutOrStdout(), "%s %s\n", state, id)
	return err
}
