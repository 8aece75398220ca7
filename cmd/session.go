package cmd

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"time"

	sessionrender "github.com/bnema/pathfinder/internal/adapters/render/session"
	"github.com/bnema/pathfinder/internal/domain"
	"github.com/spf13/cobra"
)

func newSessionCmd(app *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "session",
		Short: "Inspect and change the current identity",
	}

	cmd.AddCommand(
		newSessionStatusCmd(app),
		newSessionSignInCmd(app),
		newSessionSignUpCmd(app),
		newSessionConvertCmd(app),
		newSessionSignOutCmd(app),
		newSessionLoginCmd(app),
		newSessionRefreshCmd(app),
	)

	return cmd
}

type sessionJSON struct {
	Kind             string       `json:"kind"`
	UserID           string       `json:"user_id"`
	Email            string       `json:"email,omitempty"`
	ResolvedAt       time.Time    `json:"resolved_at"`
	PendingMigration *pendingJSON `json:"pending_migration,omitempty"`
}

type pendingJSON struct {
	From string `json:"from"`
	To   string `json:"to"`
}

func newSessionStatusCmd(app *app) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show the current session",
		RunE: func(cmd *cobra.Command, _ []string) error {
			session, err := app.start(cmd)
			if err != nil {
				return err
			}

			from, to, pending, err := app.core.Identity.PendingMigration(cmd.Context())
			if err != nil {
				app.logger.Warn("read pending migration failed", "error", err)
			}

			if asJSON {
				out := sessionJSON{
					Kind:       string(session.Kind()),
					UserID:     string(session.UserID()),
					ResolvedAt: session.ResolvedAt,
				}
				if identity, ok := session.Authenticated(); ok {
					out.Email = identity.Email
				}
				if pending {
					out.PendingMigration = &pendingJSON{From: string(from), To: string(to)}
				}
				return writeJSON(cmd.OutOrStdout(), out)
			}

			view := sessionrender.SessionView{Session: session, Now: app.now()}
			if pending {
				view.Pending = &sessionrender.PendingMigration{From: from, To: to}
			}
			rendered, err := app.renderSession(view)
			if err != nil {
				return fmt.Errorf("render session: %w", err)
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), rendered)
			return err
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the session as JSON")

	return cmd
}

type credentialFlags struct {
	email    string
	password string
}

func (f *credentialFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.email, "email", "", "Account email")
	cmd.Flags().StringVar(&f.password, "password", "", "Account password")
	_ = cmd.MarkFlagRequired("email")
	_ = cmd.MarkFlagRequired("password")
}

func (f credentialFlags) credentials() domain.Credentials {
	return domain.Credentials{Email: f.email, Password: f.password}
}

type profileFlags struct {
	username       string
	fullName       string
	userType       string
	school         string
	major          string
	graduationYear int
	bio            string
}

func (f *profileFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.username, "username", "", "Public username")
	cmd.Flags().StringVar(&f.fullName, "full-name", "", "Full name")
	cmd.Flags().StringVar(&f.userType, "user-type", string(domain.UserTypeStudent), "User type (student|teacher|alumni)")
	cmd.Flags().StringVar(&f.school, "school", "", "School")
	cmd.Flags().StringVar(&f.major, "major", "", "Major")
	cmd.Flags().IntVar(&f.graduationYear, "graduation-year", 0, "Graduation year")
	cmd.Flags().StringVar(&f.bio, "bio", "", "Short bio")
}

func (f profileFlags) profile() (domain.ProfileData, error) {
	userType := domain.UserType(f.userType)
	switch userType {
	case domain.UserTypeStudent, domain.UserTypeTeacher, domain.UserTypeAlumni:
	default:
		return domain.ProfileData{}, fmt.Errorf("unsupported user type %q", f.userType)
	}

	return domain.ProfileData{
		Username:       f.username,
		FullName:       f.fullName,
		UserType:       userType,
		School:         f.school,
		Major:          f.major,
		GraduationYear: f.graduationYear,
		Bio:            f.bio,
	}, nil
}

func newSessionSignInCmd(app *app) *cobra.Command {
	var creds credentialFlags

	cmd := &cobra.Command{
		Use:   "signin",
		Short: "Sign in to an existing account",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if _, err := app.start(cmd); err != nil {
				return err
			}
			session, err := app.core.Identity.SignIn(cmd.Context(), creds.credentials())
			if err != nil {
				return err
			}
			return printSignedIn(cmd.OutOrStdout(), session)
		},
	}

	creds.register(cmd)

	return cmd
}

func newSessionSignUpCmd(app *app) *cobra.Command {
	var creds credentialFlags
	var profile profileFlags

	cmd := &cobra.Command{
		Use:   "signup",
		Short: "Register a new account without keeping guest data",
		RunE: func(cmd *cobra.Command, _ []string) error {
			data, err := profile.profile()
			if err != nil {
				return err
			}
			if _, err := app.start(cmd); err != nil {
				return err
			}
			session, err := app.core.Identity.SignUp(cmd.Context(), creds.credentials(), data)
			if err != nil {
				return err
			}
			return printSignedIn(cmd.OutOrStdout(), session)
		},
	}

	creds.register(cmd)
	profile.register(cmd)

	return cmd
}

func newSessionConvertCmd(app *app) *cobra.Command {
	var creds credentialFlags
	var profile profileFlags

	cmd := &cobra.Command{
		Use:   "convert",
		Short: "Turn the guest session into an account and keep its data",
		RunE: func(cmd *cobra.Command, _ []string) error {
			data, err := profile.profile()
			if err != nil {
				return err
			}
			if _, err := app.start(cmd); err != nil {
				return err
			}

			result, err := app.core.ConvertGuestToUser(cmd.Context(), creds.credentials(), data)
			var migrationErr *domain.MigrationError
			if err != nil && !errors.As(err, &migrationErr) {
				return err
			}

			rendered, renderErr := app.renderMigration(result.Report)
			if renderErr != nil {
				return fmt.Errorf("render migration: %w", renderErr)
			}
			_, _ = fmt.Fprintln(cmd.OutOrStdout(), rendered)

			if migrationErr != nil {
				return fmt.Errorf("signed in, but some data is still owned by the guest session; run `pf migrate retry`: %w", err)
			}
			return printSignedIn(cmd.OutOrStdout(), result.Session)
		},
	}

	creds.register(cmd)
	profile.register(cmd)

	return cmd
}

func newSessionSignOutCmd(app *app) *cobra.Command {
	return &cobra.Command{
		Use:   "signout",
		Short: "Sign out and start a fresh guest session",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if _, err := app.start(cmd); err != nil {
				return err
			}
			session := app.core.SignOut(cmd.Context())
			_, err := fmt.Fprintf(cmd.OutOrStdout(), "Signed out; guest session %s\n", session.UserID())
			return err
		},
	}
}

func newSessionLoginCmd(app *app) *cobra.Command {
	var provider string

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Sign in through an identity provider in the browser",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if _, err := app.start(cmd); err != nil {
				return err
			}
			app.prompt = cmd.OutOrStdout()
			stop := app.watch(cmd.Context())
			session, err := app.core.Identity.SignInWithOAuth(cmd.Context(), provider)
			stop()
			if err != nil {
				return err
			}
			return printSignedIn(cmd.OutOrStdout(), session)
		},
	}

	cmd.Flags().StringVar(&provider, "provider", "google", "Identity provider")

	return cmd
}

func newSessionRefreshCmd(app *app) *cobra.Command {
	return &cobra.Command{
		Use:   "refresh",
		Short: "Reload the profile of the current session",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if _, err := app.start(cmd); err != nil {
				return err
			}
			session, err := app.core.Identity.RefreshProfile(cmd.Context())
			if err != nil {
				return err
			}
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "Refreshed %s session %s\n", session.Kind(), session.UserID())
			return err
		},
	}
}

func newMigrateCmd(app *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Manage guest data ownership migrations",
	}

	cmd.AddCommand(newMigrateRetryCmd(app))

	return cmd
}

func newMigrateRetryCmd(app *app) *cobra.Command {
	var from string
	var to string

	cmd := &cobra.Command{
		Use:   "retry",
		Short: "Re-run an incomplete migration (defaults to the pending one)",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if _, err := app.start(cmd); err != nil {
				return err
			}

			report, err := app.core.Identity.RetryMigration(cmd.Context(), domain.UserID(from), domain.UserID(to))
			if err != nil && report.From == "" {
				return err
			}

			rendered, renderErr := app.renderMigration(report)
			if renderErr != nil {
				return fmt.Errorf("render migration: %w", renderErr)
			}
			_, _ = fmt.Fprintln(cmd.OutOrStdout(), rendered)
			return err
		},
	}

	cmd.Flags().StringVar(&from, "from", "", "Guest identity that still owns rows")
	cmd.Flags().StringVar(&to, "to", "", "Account identity to move rows to")

	return cmd
}

func printSignedIn(w io.Writer, session domain.Session) error {
	identity, ok := session.Authenticated()
	if !ok {
		return fmt.Errorf("expected an authenticated session, got %s", session)
	}
	label := identity.Email
	if label == "" {
		label = string(identity.ID)
	}
	_, err := fmt.Fprintf(w, "Signed in as %s\n", label)
	return err
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
