package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"github.com/valter-silva-au/focus/pkg/models"
)

var subtaskCmd = &cobra.Command{
	Use:   "subtask",
	Short: "Add subtasks and tick them off",
}

var subtaskAddCmd = &cobra.Command{
	Use:   "add <task-id> <title>",
	Short: "Add a subtask to a task",
	Args:  cobra.MinimumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		taskID, err := parseID(args[0])
		if err != nil {
			return err
		}
		title := strings.Join(args[1:], " ")
		acks, err := upsertSubtask(cmd, taskID, models.SubtaskEdit{Title: &title})
		if err != nil {
			return err
		}
		if len(acks) > 0 {
			fmt.Fprintf(cmd.OutOrStdout(), "Added subtask %d to task %d\n", acks[0].ID, taskID)
		}
		return nil
	},
}

func newSubtaskDoneCmd(use string, done bool) *cobra.Command {
	return &cobra.Command{
		Use:   use + " <task-id> <subtask-id>",
		Short: fmt.Sprintf("Set a subtask's checkbox to %v", done),
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			taskID, err := parseID(args[0])
			if err != nil {
				return err
			}
			subID, err := parseID(args[1])
			if err != nil {
				return err
			}
			if _, err := upsertSubtask(cmd, taskID, models.SubtaskEdit{ID: subID, Done: done}); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Subtask %d done=%v\n", subID, done)
			return nil
		},
	}
}

func upsertSubtask(cmd *cobra.Command, taskID int64, edit models.SubtaskEdit) ([]models.SubtaskAck, error) {
	if Sync == nil {
		return nil, fmt.Errorf("task synchronizer not initialized")
	}
	ctx := cmdContext(cmd)
	if err := loadForCommand(ctx); err != nil {
		return nil, err
	}
	return Sync.UpsertSubtasks(ctx, taskID, []models.SubtaskEdit{edit})
}

func init() {
	subtaskCmd.AddCommand(subtaskAddCmd)
	subtaskCmd.AddCommand(newSubtaskDoneCmd("done", true))
	subtaskCmd.AddCommand(newSubtaskDoneCmd("undone", false))
	rootCmd.AddCommand(subtaskCmd)
}
