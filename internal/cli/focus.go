package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"github.com/valter-silva-au/focus/pkg/models"
)

// newUnitCmd builds one of the timer commands that act on a single unit.
func newUnitCmd(use, short, done string, op func(ctx context.Context, ref models.UnitRef) error) *cobra.Command {
	cmd := &cobra.Command{
		Use:   use + " <id>",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if Focus == nil {
				return fmt.Errorf("focus controller not initialized")
			}
			ref, err := unitArg(cmd, args[0])
			if err != nil {
				return err
			}
			ctx := cmdContext(cmd)
			if err := loadForCommand(ctx); err != nil {
				return err
			}
			if err := op(ctx, ref); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s %s\n", done, ref)
			printStatus(cmd, Focus.Status(nowFunc()))
			return nil
		},
	}
	cmd.Flags().Bool("subtask", false, "The id names a subtask")
	return cmd
}

var (
	startCmd = newUnitCmd("start", "Start the timer on a task or subtask", "Started",
		func(ctx context.Context, ref models.UnitRef) error { return Focus.Start(ctx, ref) })
	pauseCmd = newUnitCmd("pause", "Pause a running task or subtask", "Paused",
		func(ctx context.Context, ref models.UnitRef) error { return Focus.Pause(ctx, ref) })
	resumeCmd = newUnitCmd("resume", "Resume a paused task or subtask", "Resumed",
		func(ctx context.Context, ref models.UnitRef) error { return Focus.Resume(ctx, ref) })
	completeCmd = newUnitCmd("complete", "Mark a task or subtask done", "Completed",
		func(ctx context.Context, ref models.UnitRef) error { return Focus.Complete(ctx, ref) })
	peekCmd = newUnitCmd("peek", "Show the accumulated time of a unit without starting it", "Peeking at",
		func(ctx context.Context, ref models.UnitRef) error { return Focus.Peek(ctx, ref) })
)

var deleteYes bool

var deleteCmd = &cobra.Command{
	Use:   "delete <task-id>",
	Short: "Delete a task and its subtasks",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if Focus == nil {
			return fmt.Errorf("focus controller not initialized")
		}
		id, err := parseID(args[0])
		if err != nil {
			return err
		}
		if !deleteYes {
			return fmt.Errorf("deleting task %d cannot be undone, pass --yes to confirm", id)
		}
		ctx := cmdContext(cmd)
		if err := loadForCommand(ctx); err != nil {
			return err
		}
		if err := Focus.Delete(ctx, id); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Deleted task %d\n", id)
		return nil
	},
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the focus timer",
	Long: `Show the unit whose timer is displayed and its elapsed time.

The running unit is taken from the server on every call, so the timer
survives restarts of the client.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if Focus == nil {
			return fmt.Errorf("focus controller not initialized")
		}
		if err := loadForCommand(cmdContext(cmd)); err != nil {
			return err
		}
		printStatus(cmd, Focus.Status(nowFunc()))
		return nil
	},
}

var resetYes bool

var resetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Reset the displayed timer to zero",
	Long: `Reset the displayed timer to 00:00:00 and hold it paused.

Only the local clock is reset; the unit's status on the server is not
changed. Within one session "focus ui" keeps the reset value; a one-shot
command shows it once.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if Focus == nil {
			return fmt.Errorf("focus controller not initialized")
		}
		ctx := cmdContext(cmd)
		if err := loadForCommand(ctx); err != nil {
			return err
		}
		if err := Focus.Reset(ctx, resetYes); err != nil {
			if !resetYes {
				return fmt.Errorf("%w, pass --yes to confirm", err)
			}
			return err
		}
		printStatus(cmd, Focus.Status(nowFunc()))
		return nil
	},
}

func init() {
	deleteCmd.Flags().BoolVarP(&deleteYes, "yes", "y", false, "Confirm the deletion")
	resetCmd.Flags().BoolVarP(&resetYes, "yes", "y", false, "Confirm the reset")

	for _, c := range []*cobra.Command{startCmd, pauseCmd, resumeCmd, completeCmd, peekCmd, deleteCmd, statusCmd, resetCmd} {
		rootCmd.AddCommand(c)
	}
}
