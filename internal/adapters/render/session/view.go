package session

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/bnema/pathfinder/internal/domain"
	"github.com/charmbracelet/lipgloss"
)

type SessionView struct {
	Session domain.Session
	// Pending is set when an earlier conversion left rows behind.
	Pending *PendingMigration
	Now     time.Time
}

type PendingMigration struct {
	From domain.UserID
	To   domain.UserID
}

type PageView struct {
	Title      string
	Items      []Item
	Page       int
	TotalPages int
	Total      int
	Stale      bool
	Fetching   bool
	// Err is the last background refresh error, shown next to the data it
	// failed to replace.
	Err error
}

type Item struct {
	ID    string
	Title string
	Meta  string
}

func renderSession(view SessionView, s styles) string {
	lines := []string{
		s.title.Render("Pathfinder Session"),
		s.header.Render("state: " + stateLabel(view.Session)),
	}

	switch identity := view.Session.Identity.(type) {
	case nil:
		lines = append(lines, s.empty.Render("Session not resolved."))
	case domain.AnonymousIdentity:
		lines = append(lines, s.section.Render(lipgloss.JoinVertical(lipgloss.Left,
			s.anonymous.Render("Guest "+string(identity.ID)),
			s.detail.Render("started "+formatAge(identity.CreatedAt, view.Now)),
			s.empty.Render("Progress is kept on this machine until you convert the guest session."),
		)))
	case domain.AuthenticatedIdentity:
		lines = append(lines, s.section.Render(renderAuthenticated(identity, s)))
	default:
		lines = append(lines, s.warning.Render(fmt.Sprintf("unknown identity %T", identity)))
	}

	if view.Pending != nil {
		lines = append(lines, s.section.Render(s.warning.Render(
			fmt.Sprintf("[migration pending] %s -> %s", view.Pending.From, view.Pending.To),
		)))
	}

	return lipgloss.JoinVertical(lipgloss.Left, lines...)
}

func renderAuthenticated(identity domain.AuthenticatedIdentity, s styles) string {
	parts := []string{s.signedIn.Render(displayName(identity))}
	if identity.Email != "" {
		parts = append(parts, s.detail.Render("email: "+identity.Email))
	}
	parts = append(parts, s.detail.Render("id: "+string(identity.ID)))

	profile := identity.Profile
	if profile == nil {
		return lipgloss.JoinVertical(lipgloss.Left, append(parts, s.warning.Render("profile: unavailable"))...)
	}
	if profile.UserType != "" {
		parts = append(parts, s.detail.Render("type: "+string(profile.UserType)))
	}
	if profile.School != "" {
		school := profile.School
		if profile.Major != "" {
			school += ", " + profile.Major
		}
		parts = append(parts, s.detail.Render("school: "+school))
	}
	return lipgloss.JoinVertical(lipgloss.Left, parts...)
}

func displayName(identity domain.AuthenticatedIdentity) string {
	if p := identity.Profile; p != nil {
		if name := strings.TrimSpace(p.FullName); name != "" {
			return name
		}
		if name := strings.TrimSpace(p.Username); name != "" {
			return name
		}
	}
	if identity.Email != "" {
		return identity.Email
	}
	return string(identity.ID)
}

func stateLabel(session domain.Session) string {
	if session.IsZero() {
		return "unresolved"
	}
	return string(session.Kind())
}

func renderPage(view PageView, s styles) string {
	header := fmt.Sprintf("page %d/%d, %d total", view.Page, max(view.TotalPages, 1), view.Total)
	if view.Stale {
		header += " " + s.warning.Render("[stale]")
	}
	if view.Fetching {
		header += " " + s.empty.Render("[refreshing]")
	}

	lines := []string{s.title.Render(view.Title), s.header.Render(header)}
	if view.Err != nil {
		lines = append(lines, s.warning.Render("last refresh failed: "+view.Err.Error()))
	}

	if len(view.Items) == 0 {
		lines = append(lines, s.empty.Render("Nothing here yet."))
		return lipgloss.JoinVertical(lipgloss.Left, lines...)
	}

	items := make([]string, 0, len(view.Items))
	for _, item := range view.Items {
		row := s.itemTitle.Render(item.Title) + " " + s.itemMeta.Render("("+item.ID+")")
		if item.Meta != "" {
			row = lipgloss.JoinVertical(lipgloss.Left, row, s.detail.Render("  "+item.Meta))
		}
		items = append(items, row)
	}
	lines = append(lines, s.section.Render(lipgloss.JoinVertical(lipgloss.Left, items...)))

	return lipgloss.JoinVertical(lipgloss.Left, lines...)
}

func renderMigration(report domain.MigrationReport, s styles) string {
	lines := []string{
		s.title.Render("Ownership Migration"),
		s.header.Render(fmt.Sprintf("%s -> %s", report.From, report.To)),
	}

	rows := make([]string, 0, len(report.Migrated)+len(report.Failed)+len(report.Pending))
	for _, table := range report.Migrated {
		rows = append(rows, s.ok.Render(fmt.Sprintf("ok       %s (%d rows)", table, report.Rows[table])))
	}
	for _, failure := range report.Failed {
		rows = append(rows, s.failed.Render(fmt.Sprintf("failed   %s: %v", failure.Table, failure.Err)))
	}
	for _, table := range report.Pending {
		rows = append(rows, s.pending.Render("pending  "+table))
	}
	if len(rows) > 0 {
		lines = append(lines, s.section.Render(lipgloss.JoinVertical(lipgloss.Left, rows...)))
	}

	if report.Complete() {
		lines = append(lines, s.section.Render(s.ok.Render("migration complete")))
	} else {
		lines = append(lines, s.section.Render(s.warning.Render(
			fmt.Sprintf("migration incomplete: %d tables remaining", len(report.Remaining())),
		)))
	}

	return lipgloss.JoinVertical(lipgloss.Left, lines...)
}

func formatAge(at, now time.Time) string {
	if at.IsZero() {
		return "at an unknown time"
	}
	if now.IsZero() {
		return at.Format(time.RFC3339)
	}

	elapsed := now.Sub(at)
	if elapsed < time.Minute {
		return "just now"
	}
	if elapsed < time.Hour {
		return plural(int(elapsed.Minutes()), "minute") + " ago"
	}
	if elapsed < 24*time.Hour {
		return plural(int(elapsed.Hours()), "hour") + " ago"
	}

	days := int(math.Floor(elapsed.Hours() / 24))
	return fmt.Sprintf("%s ago (%s)", plural(days, "day"), at.Format("02 Jan 2006"))
}

func plural(n int, unit string) string {
	if n == 1 {
		return "1 " + unit
	}
	return fmt.Sprintf("%d %ss", n, unit)
}
