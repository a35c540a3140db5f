package cli

import (
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/valter-silva-au/focus/internal/timefmt"
	"github.com/valter-silva-au/focus/pkg/models"
)

var (
	metricsJSON  bool
	metricsRange string
	metricsLocal bool
	metricsSince string
)

var metricsCmd = &cobra.Command{
	Use:   "metrics",
	Short: "Show focus time against your target",
	Long: `Show the server's focus summary for a day, week or month: focused
time against the target and the current streak.

With --local, metrics are derived from this machine's event log instead:
sessions, pauses, completions and focused time per day.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if metricsLocal {
			return runLocalMetrics(cmd)
		}
		if ServerMet == nil {
			return fmt.Errorf("metrics service not initialized")
		}
		r := models.MetricsRange(metricsRange)
		switch r {
		case models.RangeDay, models.RangeWeek, models.RangeMonth:
		default:
			return fmt.Errorf("--range must be day, week or month, got %q", metricsRange)
		}

		m, err := ServerMet.MetricsSummary(cmdContext(cmd), r)
		if err != nil {
			return err
		}
		if metricsJSON {
			return printJSON(cmd, m)
		}
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "Focus (%s)\n\n", r)
		fmt.Fprintf(out, "  %-16s %s\n", "Focused:", timefmt.FormatClock(m.ActualSeconds))
		fmt.Fprintf(out, "  %-16s %s\n", "Target:", timefmt.FormatClock(m.TargetSeconds))
		fmt.Fprintf(out, "  %-16s %.0f%%\n", "Progress:", m.ProgressPercent())
		fmt.Fprintf(out, "  %-16s %d day(s)\n", "Streak:", m.StreakDays)
		return nil
	},
}

func runLocalMetrics(cmd *cobra.Command) error {
	if MetricsCalc == nil {
		return fmt.Errorf("metrics calculator not initialized (event log may be disabled)")
	}
	now := nowFunc()
	since, err := parseSinceDuration(metricsSince, now)
	if err != nil {
		return fmt.Errorf("parsing --since: %w", err)
	}
	m, err := MetricsCalc.Calculate(since, now)
	if err != nil {
		return fmt.Errorf("calculating metrics: %w", err)
	}
	if metricsJSON {
		return printJSON(cmd, m)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Local metrics (since %s)\n\n", since.Format("2006-01-02"))
	fmt.Fprintf(out, "  %-20s %d\n", "Sessions started:", m.SessionsStarted)
	fmt.Fprintf(out, "  %-20s %d\n", "Pauses:", m.Pauses)
	fmt.Fprintf(out, "  %-20s %d\n", "Completions:", m.Completions)
	fmt.Fprintf(out, "  %-20s %d\n", "Resets:", m.Resets)
	fmt.Fprintf(out, "  %-20s %s\n", "Focused:", timefmt.FormatClock(m.FocusSeconds))
	fmt.Fprintf(out, "  %-20s %d day(s)\n", "Streak:", m.StreakDays)

	if len(m.SecondsByDay) > 0 {
		days := make([]string, 0, len(m.SecondsByDay))
		for d := range m.SecondsByDay {
			days = append(days, d)
		}
		sort.Strings(days)
		fmt.Fprintln(out, "\n  By day:")
		for _, d := range days {
			fmt.Fprintf(out, "    %s  %s\n", d, timefmt.FormatClock(m.SecondsByDay[d]))
		}
	}
	return nil
}

func printJSON(cmd *cobra.Command, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("formatting as JSON: %w", err)
	}
	fmt.Fprintln(cmd.OutOrStdout(), string(data))
	return nil
}

// parseSinceDuration parses a human-friendly duration string like "7d", "30d",
// or "24h" and returns the corresponding time before now.
func parseSinceDuration(s string, now time.Time) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return now.AddDate(0, 0, -7), nil
	}

	if strings.HasSuffix(s, "d") {
		days, err := strconv.Atoi(strings.TrimSuffix(s, "d"))
		if err != nil {
			return time.Time{}, fmt.Errorf("invalid day duration %q", s)
		}
		return now.AddDate(0, 0, -days), nil
	}

	if strings.HasSuffix(s, "h") {
		hours, err := strconv.Atoi(strings.TrimSuffix(s, "h"))
		if err != nil {
			return time.Time{}, fmt.Errorf("invalid hour duration %q", s)
		}
		return now.Add(-time.Duration(hours) * time.Hour), nil
	}

	return time.Time{}, fmt.Errorf("unsupported duration format %q (use e.g. 7d, 30d, 24h)", s)
}

func init() {
	metricsCmd.Flags().BoolVar(&metricsJSON, "json", false, "Output metrics as JSON")
	metricsCmd.Flags().StringVar(&metricsRange, "range", "day", "Summary range: day, week or month")
	metricsCmd.Flags().BoolVar(&metricsLocal, "local", false, "Use the local event log instead of the server")
	metricsCmd.Flags().StringVar(&metricsSince, "since", "7d", "Window for --local (e.g. 7d, 30d, 24h)")
	rootCmd.AddCommand(metricsCmd)
}
