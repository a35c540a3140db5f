package cli

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/valter-silva-au/focus/internal/core"
	"github.com/valter-silva-au/focus/internal/timefmt"
	"github.com/valter-silva-au/focus/pkg/models"
)

func cmdContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}

func parseID(s string) (int64, error) {
	id, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid id %q: must be a positive integer", s)
	}
	return id, nil
}

// unitArg builds a unit reference from an id argument and the --subtask flag.
func unitArg(cmd *cobra.Command, arg string) (models.UnitRef, error) {
	id, err := parseID(arg)
	if err != nil {
		return models.UnitRef{}, err
	}
	if sub, _ := cmd.Flags().GetBool("subtask"); sub {
		return models.SubtaskRef(id), nil
	}
	return models.TaskRef(id), nil
}

// loadForCommand fills the store with a flat load unless something is
// already loaded. The load also adopts the backend's running unit.
func loadForCommand(ctx context.Context) error {
	if Sync == nil {
		return fmt.Errorf("task synchronizer not initialized")
	}
	if Sync.Store().Source() != core.SourceNone {
		return nil
	}
	_, err := Sync.LoadAll(ctx)
	return err
}

func printStatus(cmd *cobra.Command, fs core.FocusStatus) {
	out := cmd.OutOrStdout()
	if !fs.Active {
		fmt.Fprintf(out, "No unit is being tracked. %s\n", fs.Clock)
		return
	}
	state := "running"
	switch {
	case fs.Peek:
		state = "peek"
	case fs.Paused:
		state = "paused"
	}
	fmt.Fprintf(out, "%s  %s %d %q  [%s]\n", fs.Clock, fs.Ref.Kind, fs.Ref.ID, fs.Title, state)
}

func statusMarker(s models.TaskStatus) string {
	switch s {
	case models.StatusDoing:
		return ">"
	case models.StatusPaused:
		return "="
	case models.StatusDone:
		return "x"
	}
	return " "
}

func printTasks(cmd *cobra.Command, tasks []models.Task, now time.Time, showScore bool) {
	out := cmd.OutOrStdout()
	if len(tasks) == 0 {
		fmt.Fprintln(out, "No tasks.")
		return
	}
	for _, t := range tasks {
		line := fmt.Sprintf("[%s] %4d  %-32s %-7s", statusMarker(t.Status), t.ID, t.Title, t.Status)
		if t.Deadline != nil {
			line += "  " + timefmt.FormatDate(t.Deadline) + " (" + timefmt.FormatRemaining(t.Deadline, now) + ")"
		}
		if t.EstimateMinutes > 0 {
			line += fmt.Sprintf("  ~%dm", t.EstimateMinutes)
		}
		if showScore {
			line += fmt.Sprintf("  score %.2f", t.Score)
		}
		fmt.Fprintln(out, strings.TrimRight(line, " "))
		for _, s := range t.Subtasks {
			check := " "
			if s.Done {
				check = "x"
			}
			fmt.Fprintf(out, "        [%s] %4d  %s (%s)\n", check, s.ID, s.Title, s.Status)
		}
	}
}
