package cli

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/valter-silva-au/focus/internal/timefmt"
	"github.com/valter-silva-au/focus/pkg/models"
)

var (
	sortType      string
	sortRecompute bool
)

var sortCmd = &cobra.Command{
	Use:   "sort",
	Short: "Show tasks in the server's scored order",
	Long: `Load tasks in the order the server scored them for a productivity type.

With --recompute the server rescores first. The chosen type is remembered
for the next run.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if Sorter == nil {
			return fmt.Errorf("sort coordinator not initialized")
		}
		ctx := cmdContext(cmd)
		if sortType != "" {
			if err := Sorter.SetType(models.SortType(sortType)); err != nil {
				return err
			}
		}
		var err error
		if sortRecompute {
			err = Sorter.Recompute(ctx)
		} else {
			err = Sorter.Sort(ctx)
		}
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Sorted for %s at %s\n\n", Sorter.Type(), timefmt.FormatTimestamp(Sorter.SortedAt()))
		printTasks(cmd, Sync.Store().Tasks(), nowFunc(), true)
		return nil
	},
}

var (
	settingsType string
	settingsAuto string
)

var sortSettingsCmd = &cobra.Command{
	Use:   "settings",
	Short: "Save the sort type and auto-sort preference on the server",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if Sorter == nil {
			return fmt.Errorf("sort coordinator not initialized")
		}
		if settingsType != "" {
			if err := Sorter.SetType(models.SortType(settingsType)); err != nil {
				return err
			}
		}
		switch settingsAuto {
		case "":
		case "on", "true":
			if err := Sorter.SetAutoSort(true); err != nil {
				return err
			}
		case "off", "false":
			if err := Sorter.SetAutoSort(false); err != nil {
				return err
			}
		default:
			return fmt.Errorf("--auto must be on or off, got %q", settingsAuto)
		}
		if err := Sorter.SaveSettings(cmdContext(cmd)); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Sort settings saved: type=%s auto=%v\n", Sorter.Type(), Sorter.AutoSort())
		return nil
	},
}

func init() {
	sortCmd.Flags().StringVar(&sortType, "type", "", "Sort type: planner, sprinter or flow")
	sortCmd.Flags().BoolVar(&sortRecompute, "recompute", false, "Ask the server to rescore before loading")

	sortSettingsCmd.Flags().StringVar(&settingsType, "type", "", "Sort type: planner, sprinter or flow")
	sortSettingsCmd.Flags().StringVar(&settingsAuto, "auto", "", "Auto-sort: on or off")

	sortCmd.AddCommand(sortSettingsCmd)
	rootCmd.AddCommand(sortCmd)
}
