package cmd

import (
	"context"
	"fmt"
	"io"
	"strings"

	sessionrender "github.com/bnema/pathfinder/internal/adapters/render/session"
	"github.com/bnema/pathfinder/internal/cache"
	"github.com/bnema/pathfinder/internal/domain"
	"github.com/spf13/cobra"
)

type listFlags struct {
	page     int
	pageSize int
	search   string
	asJSON   bool
}

func (f *listFlags) register(cmd *cobra.Command) {
	cmd.Flags().IntVar(&f.page, "page", domain.DefaultPage, "Page number")
	cmd.Flags().IntVar(&f.pageSize, "page-size", domain.DefaultPageSize, "Rows per page")
	cmd.Flags().StringVar(&f.search, "search", "", "Search term")
	cmd.Flags().BoolVar(&f.asJSON, "json", false, "Print the page as JSON")
}

func (f listFlags) params(filter string) domain.ListParams {
	return domain.ListParams{
		Filter:      filter,
		Page:        f.page,
		PageSize:    f.pageSize,
		SearchQuery: f.search,
	}.Normalize()
}

// awaitSnapshot blocks until the subscription holds a value or its fetch
// fails.
func awaitSnapshot(ctx context.Context, sub *cache.Subscription) (cache.Snapshot, error) {
	for {
		snap := sub.Snapshot()
		if snap.HasValue && !snap.Placeholder {
			return snap, nil
		}
		if snap.Status == cache.StatusError && snap.Err != nil {
			return snap, snap.Err
		}

		select {
		case <-ctx.Done():
			return snap, ctx.Err()
		case <-sub.Updates():
		}
	}
}

type pageJSON[T any] struct {
	Rows       []T  `json:"rows"`
	Total      int  `json:"total"`
	Page       int  `json:"page"`
	PageSize   int  `json:"page_size"`
	TotalPages int  `json:"total_pages"`
	Stale      bool `json:"stale"`
}

// showPage subscribes to a list query, waits for its first value and prints
// it either as JSON or through the page renderer.
func showPage[T any](cmd *cobra.Command, app *app, title string, q cache.Query, asJSON bool, item func(T) sessionrender.Item) error {
	sub := app.core.UseEntity(cmd.Context(), q, cache.SubscribeOptions{KeepPrevious: true})
	defer sub.Close()

	snap, err := awaitSnapshot(cmd.Context(), sub)
	if err != nil {
		return err
	}
	page, ok := cache.Value[domain.Page[T]](snap)
	if !ok {
		return fmt.Errorf("unexpected value %T for %s", snap.Value, snap.Key)
	}

	if asJSON {
		return writeJSON(cmd.OutOrStdout(), pageJSON[T]{
			Rows:       page.Rows,
			Total:      page.Total,
			Page:       page.Page,
			PageSize:   page.PageSize,
			TotalPages: page.TotalPages,
			Stale:      snap.IsStale,
		})
	}

	view := sessionrender.PageView{
		Title:      title,
		Page:       page.Page,
		TotalPages: page.TotalPages,
		Total:      page.Total,
		Stale:      snap.IsStale,
		Fetching:   snap.Status == cache.StatusFetching,
		Err:        snap.Err,
	}
	for _, row := range page.Rows {
		view.Items = append(view.Items, item(row))
	}

	rendered, err := app.renderPage(view)
	if err != nil {
		return fmt.Errorf("render page: %w", err)
	}
	_, err = fmt.Fprintln(cmd.OutOrStdout(), rendered)
	return err
}

// showValue waits for a detail or collection query and returns its typed
// value.
func showValue[T any](cmd *cobra.Command, app *app, q cache.Query) (T, error) {
	var zero T
	sub := app.core.UseEntity(cmd.Context(), q, cache.SubscribeOptions{})
	defer sub.Close()

	snap, err := awaitSnapshot(cmd.Context(), sub)
	if err != nil {
		return zero, err
	}
	v, ok := cache.Value[T](snap)
	if !ok {
		return zero, fmt.Errorf("unexpected value %T for %s", snap.Value, snap.Key)
	}
	return v, nil
}

func printComments(w io.Writer, comments []domain.Comment) error {
	if len(comments) == 0 {
		_, err := fmt.Fprintln(w, "No comments yet.")
		return err
	}

	known := make(map[string]bool, len(comments))
	for _, c := range comments {
		known[c.ID] = true
	}

	replies := make(map[string][]domain.Comment)
	var roots []domain.Comment
	for _, c := range comments {
		if c.ParentID == "" || !known[c.ParentID] {
			roots = append(roots, c)
			continue
		}
		replies[c.ParentID] = append(replies[c.ParentID], c)
	}

	var walk func(c domain.Comment, depth int) error
	walk = func(c domain.Comment, depth int) error {
		if _, err := fmt.Fprintf(w, "%s%s  %s: %s\n", strings.Repeat("  ", depth), c.ID, commentAuthor(c), c.Content); err != nil {
			return err
		}
		for _, reply := range replies[c.ID] {
			if err := walk(reply, depth+1); err != nil {
				return err
			}
		}
		return nil
	}

	for _, c := range roots {
		if err := walk(c, 0); err != nil {
			return err
		}
	}
	return nil
}

func commentAuthor(c domain.Comment) string {
	if c.Author != nil && c.Author.Username != "" {
		return c.Author.Username
	}
	return string(c.UserID)
}

func authorName(author *domain.Author, id domain.UserID) string {
	if author != nil && author.Username != "" {
		return author.Username
	}
	return string(id)
}
