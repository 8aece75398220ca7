package cmd

import "github.com/spf13/cobra"

func Execute() error {
	root, closeApp := newRootCmd()
	defer closeApp()
	return root.Execute()
}

// newRootCmd builds the command tree. The returned func releases the core
// and must run after Execute, whether or not the command failed.
func newRootCmd() (*cobra.Command, func()) {
	rootCmd := &cobra.Command{
		Use:           "pf",
		Short:         "Pathfinder CLI (pf): guest sessions, accounts and cached content",
		Long:          "pf (Pathfinder CLI) lets you browse content, stories and tasks as a guest, convert the guest session into an account without losing progress, and keeps a local cache of what it fetched.",
		SilenceUsage:  true,
		SilenceErrors: false,
	}

	app, err := wireApp()
	if err != nil {
		rootCmd.RunE = func(_ *cobra.Command, _ []string) error {
			return err
		}
		rootCmd.AddCommand(newVersionCmd())
		return rootCmd, func() {}
	}

	rootCmd.AddCommand(
		newVersionCmd(),
		newSessionCmd(app),
		newMigrateCmd(app),
		newContentCmd(app),
		newStoryCmd(app),
		newTaskCmd(app),
		newProfileCmd(app),
	)

	return rootCmd, app.close
}
