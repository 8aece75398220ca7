package cmd

import (
	"fmt"

	"github.com/bnema/pathfinder/internal/application"
	"github.com/bnema/pathfinder/internal/domain"
	"github.com/spf13/cobra"
)

func newProfileCmd(app *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "profile",
		Short: "Show and edit account profiles",
	}

	cmd.AddCommand(
		newProfileShowCmd(app),
		newProfileUpdateCmd(app),
	)

	return cmd
}

func newProfileShowCmd(app *app) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "show [user-id]",
		Short: "Show a profile, your own by default",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			session, err := app.start(cmd)
			if err != nil {
				return err
			}

			var id domain.UserID
			if len(args) == 1 {
				id = domain.UserID(args[0])
			} else {
				identity, ok := session.Authenticated()
				if !ok {
					return fmt.Errorf("guest sessions have no profile; pass a user id: %w", domain.ErrNoAuthenticatedUser)
				}
				id = identity.ID
			}

			profile, err := showValue[domain.Profile](cmd, app, app.core.Profiles.DetailQuery(id))
			if err != nil {
				return err
			}
			if asJSON {
				return writeJSON(cmd.OutOrStdout(), profile)
			}

			out := cmd.OutOrStdout()
			name := profile.FullName
			if name == "" {
				name = profile.Username
			}
			_, _ = fmt.Fprintf(out, "%s (%s)\n", name, profile.UserType)
			if profile.School != "" || profile.Major != "" {
				_, _ = fmt.Fprintf(out, "school: %s  major: %s\n", profile.School, profile.Major)
			}
			if profile.GraduationYear > 0 {
				_, _ = fmt.Fprintf(out, "graduation: %d\n", profile.GraduationYear)
			}
			if profile.Bio != "" {
				_, _ = fmt.Fprintf(out, "\n%s\n", profile.Bio)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the profile as JSON")

	return cmd
}

func newProfileUpdateCmd(app *app) *cobra.Command {
	var edit application.ProfileEdit

	cmd := &cobra.Command{
		Use:   "update",
		Short: "Edit your profile",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if _, err := app.start(cmd); err != nil {
				return err
			}
			profile, err := app.core.Profiles.Update(cmd.Context(), edit)
			if err != nil {
				return err
			}
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "Updated profile %s\n", profile.ID)
			return err
		},
	}

	cmd.Flags().StringVar(&edit.FullName, "full-name", "", "Full name")
	cmd.Flags().StringVar(&edit.School, "school", "", "School")
	cmd.Flags().StringVar(&edit.Major, "major", "", "Major")
	cmd.Flags().IntVar(&edit.GraduationYear, "graduation-year", 0, "Graduation year")
	cmd.Flags().StringVar(&edit.Bio, "bio", "", "Short bio")

	return cmd
}
