package cli

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/valter-silva-au/focus/internal/timefmt"
	"github.com/valter-silva-au/focus/pkg/models"
)

// nowFunc is the CLI's wall clock; tests replace it.
var nowFunc = time.Now

var (
	tasksSorted bool
	tasksType   string
	tasksJSON   bool
)

var tasksCmd = &cobra.Command{
	Use:   "tasks",
	Short: "List tasks and their subtasks",
	Long: `List tasks with their subtasks.

By default tasks are shown in the order the server stores them. With
--sorted they are scored by the server for a productivity type (planner,
sprinter or flow; defaults to the remembered type).`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if Sync == nil {
			return fmt.Errorf("task synchronizer not initialized")
		}
		ctx := cmdContext(cmd)

		var tasks []models.Task
		if tasksSorted || tasksType != "" {
			if Sorter == nil {
				return fmt.Errorf("sort coordinator not initialized")
			}
			if tasksType != "" {
				if err := Sorter.SetType(models.SortType(tasksType)); err != nil {
					return err
				}
			}
			if err := Sorter.Sort(ctx); err != nil {
				return err
			}
			tasks = Sync.Store().Tasks()
		} else {
			var err error
			if tasks, err = Sync.LoadAll(ctx); err != nil {
				return err
			}
		}

		if tasksJSON {
			data, err := json.MarshalIndent(tasks, "", "  ")
			if err != nil {
				return fmt.Errorf("formatting tasks as JSON: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), string(data))
			return nil
		}
		if tasksSorted || tasksType != "" {
			fmt.Fprintf(cmd.OutOrStdout(), "Sorted for %s\n\n", Sorter.Type())
		}
		printTasks(cmd, tasks, nowFunc(), tasksSorted || tasksType != "")
		return nil
	},
}

var (
	createDeadline   string
	createEstimate   int
	createTags       []string
	createImportance int
)

var createCmd = &cobra.Command{
	Use:   "create <title>",
	Short: "Create a task",
	Long: `Create a task with the given title.

The deadline accepts RFC 3339, "YYYY-MM-DDTHH:MM" or "YYYY-MM-DD".
Importance ranges from 0 to 3.`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if Sync == nil {
			return fmt.Errorf("task synchronizer not initialized")
		}
		in := models.CreateTaskInput{
			Title:           strings.Join(args, " "),
			EstimateMinutes: createEstimate,
			Tags:            strings.Join(createTags, ","),
			Importance:      createImportance,
		}
		if createDeadline != "" {
			d, err := timefmt.ParseTimestamp(createDeadline)
			if err != nil {
				return fmt.Errorf("parsing --deadline: %w", err)
			}
			in.Deadline = d
		}

		sortType := models.SortType("")
		if Sorter != nil {
			sortType = Sorter.Type()
		}
		id, err := Sync.CreateTask(cmdContext(cmd), in, sortType)
		if err != nil && id == 0 {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Created task %d: %s\n", id, strings.TrimSpace(in.Title))
		return err
	},
}

func init() {
	tasksCmd.Flags().BoolVar(&tasksSorted, "sorted", false, "Show the server's scored order")
	tasksCmd.Flags().StringVar(&tasksType, "type", "", "Sort type: planner, sprinter or flow (implies --sorted)")
	tasksCmd.Flags().BoolVar(&tasksJSON, "json", false, "Output tasks as JSON")

	createCmd.Flags().StringVar(&createDeadline, "deadline", "", "Deadline, e.g. 2025-02-01T09:00")
	createCmd.Flags().IntVar(&createEstimate, "estimate", 0, "Estimate in minutes")
	createCmd.Flags().StringSliceVar(&createTags, "tags", nil, "Comma-separated tags")
	createCmd.Flags().IntVar(&createImportance, "importance", 0, "Importance from 0 to 3")

	rootCmd.AddCommand(tasksCmd)
	rootCmd.AddCommand(createCmd)
}
