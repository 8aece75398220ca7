package cmd

import (
	"fmt"

	sessionrender "github.com/bnema/pathfinder/internal/adapters/render/session"
	"github.com/bnema/pathfinder/internal/domain"
	"github.com/spf13/cobra"
)

func newTaskCmd(app *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "task",
		Short: "Work through practice tasks",
	}

	cmd.AddCommand(
		newTaskListCmd(app),
		newTaskShowCmd(app),
		newTaskAttemptsCmd(app),
		newTaskStartCmd(app),
		newTaskStepCmd(app),
		newTaskCompleteCmd(app),
	)

	return cmd
}

func newTaskListCmd(app *app) *cobra.Command {
	var flags listFlags
	var difficulty string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List tasks",
		RunE: func(cmd *cobra.Command, _ []string) error {
			switch domain.TaskDifficulty(difficulty) {
			case "", domain.TaskDifficultyEasy, domain.TaskDifficultyMedium, domain.TaskDifficultyHard:
			default:
				return fmt.Errorf("unsupported difficulty %q", difficulty)
			}
			if _, err := app.start(cmd); err != nil {
				return err
			}
			q := app.core.Tasks.ListQuery(flags.params(difficulty))
			return showPage(cmd, app, "Tasks", q, flags.asJSON, taskItem)
		},
	}

	flags.register(cmd)
	cmd.Flags().StringVar(&difficulty, "difficulty", "", "Only show tasks of this difficulty (easy|medium|hard)")

	return cmd
}

func taskItem(t domain.Task) sessionrender.Item {
	return sessionrender.Item{
		ID:    t.ID,
		Title: t.Title,
		Meta:  fmt.Sprintf("%s · %d steps · %.0f%% completed", t.Difficulty, t.TotalSteps, t.CompletionRate),
	}
}

func newTaskShowCmd(app *app) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "show <id>",
		Short: "Show one task",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := app.start(cmd); err != nil {
				return err
			}
			task, err := showValue[domain.Task](cmd, app, app.core.Tasks.DetailQuery(args[0]))
			if err != nil {
				return err
			}
			if asJSON {
				return writeJSON(cmd.OutOrStdout(), task)
			}

			out := cmd.OutOrStdout()
			_, _ = fmt.Fprintf(out, "%s\n", task.Title)
			_, _ = fmt.Fprintf(out, "difficulty: %s  steps: %d\n", task.Difficulty, task.TotalSteps)
			_, _ = fmt.Fprintf(out, "attempts: %d  completion: %.0f%%\n", task.AttemptCount, task.CompletionRate)
			if task.Description != "" {
				_, _ = fmt.Fprintf(out, "\n%s\n", task.Description)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the task as JSON")

	return cmd
}

func newTaskAttemptsCmd(app *app) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "attempts",
		Short: "List your task attempts",
		RunE: func(cmd *cobra.Command, _ []string) error {
			session, err := app.start(cmd)
			if err != nil {
				return err
			}
			attempts, err := showValue[[]domain.TaskAttempt](cmd, app, app.core.Tasks.AttemptsQuery(session.UserID()))
			if err != nil {
				return err
			}
			if asJSON {
				return writeJSON(cmd.OutOrStdout(), attempts)
			}

			if len(attempts) == 0 {
				_, err := fmt.Fprintln(cmd.OutOrStdout(), "No attempts yet.")
				return err
			}
			for _, a := range attempts {
				line := fmt.Sprintf("%s\ttask %s\t%s\tstep %d", a.ID, a.TaskID, a.Status, a.CurrentStep)
				if a.Status == domain.AttemptCompleted {
					line += fmt.Sprintf("\trating %d", a.Rating)
				}
				_, _ = fmt.Fprintln(cmd.OutOrStdout(), line)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the attempts as JSON")

	return cmd
}

func newTaskStartCmd(app *app) *cobra.Command {
	return &cobra.Command{
		Use:   "start <task-id>",
		Short: "Start an attempt on a task",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := app.start(cmd); err != nil {
				return err
			}
			attempt, err := app.core.Tasks.Start(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "Started attempt %s on task %s\n", attempt.ID, attempt.TaskID)
			return err
		},
	}
}

func newTaskStepCmd(app *app) *cobra.Command {
	var step int
	var answers map[string]string

	cmd := &cobra.Command{
		Use:   "step <attempt-id>",
		Short: "Move an attempt to a step and save answers",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := app.start(cmd); err != nil {
				return err
			}

			var submission map[string]any
			if len(answers) > 0 {
				submission = make(map[string]any, len(answers))
				for k, v := range answers {
					submission[k] = v
				}
			}

			attempt, err := app.core.Tasks.UpdateStep(cmd.Context(), args[0], step, submission)
			if err != nil {
				return err
			}
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "Attempt %s at step %d\n", attempt.ID, attempt.CurrentStep)
			return err
		},
	}

	cmd.Flags().IntVar(&step, "step", 0, "Step number")
	cmd.Flags().StringToStringVar(&answers, "answer", nil, "Answer as key=value (repeatable)")
	_ = cmd.MarkFlagRequired("step")

	return cmd
}

func newTaskCompleteCmd(app *app) *cobra.Command {
	var taskID string
	var rating int

	cmd := &cobra.Command{
		Use:   "complete <attempt-id>",
		Short: "Complete an attempt with a rating from 1 to 5",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := app.start(cmd); err != nil {
				return err
			}
			attempt, err := app.core.Tasks.Complete(cmd.Context(), args[0], taskID, rating)
			if err != nil {
				return err
			}
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "Completed attempt %s with rating %d\n", attempt.ID, attempt.Rating)
			return err
		},
	}

	cmd.Flags().StringVar(&taskID, "task", "", "Task the attempt belongs to")
	cmd.Flags().IntVar(&rating, "rating", 0, "Rating from 1 to 5")
	_ = cmd.MarkFlagRequired("task")
	_ = cmd.MarkFlagRequired("rating")

	return cmd
}
