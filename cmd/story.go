package cmd

import (
	"fmt"
	"strings"

	sessionrender "github.com/bnema/pathfinder/internal/adapters/render/session"
	"github.com/bnema/pathfinder/internal/domain"
	"github.com/spf13/cobra"
)

func newStoryCmd(app *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "story",
		Short: "Read and share stories",
	}

	cmd.AddCommand(
		newStoryListCmd(app),
		newStoryShowCmd(app),
		newStoryCreateCmd(app),
		newStoryUpdateCmd(app),
		newStoryDeleteCmd(app),
		newStoryLikeCmd(app),
		newStoryFavoriteCmd(app),
		newStoryCommentsCmd(app),
		newStoryCommentCmd(app),
	)

	return cmd
}

func newStoryListCmd(app *app) *cobra.Command {
	var flags listFlags

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List stories",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if _, err := app.start(cmd); err != nil {
				return err
			}
			q := app.core.Stories.ListQuery(flags.params(""))
			return showPage(cmd, app, "Stories", q, flags.asJSON, storyItem)
		},
	}

	flags.register(cmd)

	return cmd
}

func storyItem(s domain.Story) sessionrender.Item {
	meta := fmt.Sprintf("by %s · %d likes · %d comments", authorName(s.Author, s.AuthorID), s.LikeCount, s.CommentCount)
	if len(s.Tags) > 0 {
		meta += " · #" + strings.Join(s.Tags, " #")
	}
	return sessionrender.Item{ID: s.ID, Title: s.Title, Meta: meta}
}

func newStoryShowCmd(app *app) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "show <id>",
		Short: "Show one story",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := app.start(cmd); err != nil {
				return err
			}
			story, err := showValue[domain.Story](cmd, app, app.core.Stories.DetailQuery(args[0]))
			if err != nil {
				return err
			}
			if asJSON {
				return writeJSON(cmd.OutOrStdout(), story)
			}

			out := cmd.OutOrStdout()
			_, _ = fmt.Fprintf(out, "%s\n", story.Title)
			_, _ = fmt.Fprintf(out, "author: %s\n", authorName(story.Author, story.AuthorID))
			if len(story.Tags) > 0 {
				_, _ = fmt.Fprintf(out, "tags: %s\n", strings.Join(story.Tags, ", "))
			}
			_, _ = fmt.Fprintf(out, "likes: %d  favorites: %d  comments: %d\n", story.LikeCount, story.FavoriteCount, story.CommentCount)
			_, _ = fmt.Fprintf(out, "\n%s\n", story.Content)
			return nil
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the story as JSON")

	return cmd
}

type storyFlags struct {
	title   string
	content string
	tags    []string
}

func (f *storyFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.title, "title", "", "Story title")
	cmd.Flags().StringVar(&f.content, "content", "", "Story body")
	cmd.Flags().StringSliceVar(&f.tags, "tag", nil, "Tag (repeatable)")
}

func (f storyFlags) input() domain.StoryInput {
	return domain.StoryInput{Title: f.title, Content: f.content, Tags: f.tags}
}

func newStoryCreateCmd(app *app) *cobra.Command {
	var flags storyFlags

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Publish a story",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if _, err := app.start(cmd); err != nil {
				return err
			}
			story, err := app.core.Stories.Create(cmd.Context(), flags.input())
			if err != nil {
				return err
			}
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "Created story %s\n", story.ID)
			return err
		},
	}

	flags.register(cmd)
	_ = cmd.MarkFlagRequired("title")
	_ = cmd.MarkFlagRequired("content")

	return cmd
}

func newStoryUpdateCmd(app *app) *cobra.Command {
	var flags storyFlags

	cmd := &cobra.Command{
		Use:   "update <id>",
		Short: "Edit a story; unset flags keep their current value",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := app.start(cmd); err != nil {
				return err
			}
			story, err := app.core.Stories.Update(cmd.Context(), args[0], flags.input())
			if err != nil {
				return err
			}
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "Updated story %s\n", story.ID)
			return err
		},
	}

	flags.register(cmd)

	return cmd
}

func newStoryDeleteCmd(app *app) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a story",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := app.start(cmd); err != nil {
				return err
			}
			if err := app.core.Stories.Delete(cmd.Context(), args[0]); err != nil {
				return err
			}
			_, err := fmt.Fprintf(cmd.OutOrStdout(), "Deleted story %s\n", args[0])
			return err
		},
	}
}

func newStoryLikeCmd(app *app) *cobra.Command {
	return &cobra.Command{
		Use:   "like <id>",
		Short: "Like a story",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := app.start(cmd); err != nil {
				return err
			}
			if err := app.core.Stories.Like(cmd.Context(), args[0]); err != nil {
				return err
			}
			_, err := fmt.Fprintf(cmd.OutOrStdout(), "Liked story %s\n", args[0])
			return err
		},
	}
}

func newStoryFavoriteCmd(app *app) *cobra.Command {
	return &cobra.Command{
		Use:   "favorite <id>",
		Short: "Toggle a favorite on a story",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := app.start(cmd); err != nil {
				return err
			}
			favorited, err := app.core.Stories.ToggleFavorite(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return printFavorite(cmd, args[0], favorited)
		},
	}
}

func newStoryCommentsCmd(app *app) *cobra.Command {
	return &cobra.Command{
		Use:   "comments <id>",
		Short: "List comments on a story",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := app.start(cmd); err != nil {
				return err
			}
			comments, err := showValue[[]domain.Comment](cmd, app, app.core.Stories.CommentsQuery(args[0]))
			if err != nil {
				return err
			}
			return printComments(cmd.OutOrStdout(), comments)
		},
	}
}

func newStoryCommentCmd(app *app) *cobra.Command {
	var text string
	var parentID string

	cmd := &cobra.Command{
		Use:   "comment <id>",
		Short: "Comment on a story",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := app.start(cmd); err != nil {
				return err
			}
			comment, err := app.core.Stories.AddComment(cmd.Context(), args[0], text, parentID)
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
