package cli

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/valter-silva-au/focus/internal/api"
	focusmcp "github.com/valter-silva-au/focus/internal/mcp"
)

var mcpNoAutoSort bool

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "MCP server commands",
	Long:  "Commands for running the focus MCP (Model Context Protocol) server.",
}

var mcpServeCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the task list and focus timer over MCP on stdio",
	Long: `Serve the task list and the focus timer as MCP tools on stdio:
list_tasks, focus_status, start_focus, pause_focus, resume_focus,
complete_unit, get_metrics and get_alerts.

Tasks are loaded once on startup so a timer already running on the server
is adopted. While the server runs, the auto-sort loop recomputes the order
every sort.interval if auto-sort is on; --no-auto-sort disables the loop.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if Sync == nil || Focus == nil {
			return fmt.Errorf("focus services not initialized")
		}

		ctx, stop := signal.NotifyContext(cmdContext(cmd), os.Interrupt, syscall.SIGTERM)
		defer stop()

		if _, err := Sync.LoadAll(ctx); err != nil {
			if api.IsUnauthorized(err) {
				return err
			}
			// The tools load lazily, so a backend that is down now can
			// still be used once it comes back.
			if Log != nil {
				Log.WithError(err).Warn("mcp: initial task load failed")
			}
		}

		if Sorter != nil && !mcpNoAutoSort {
			go Sorter.Run(ctx)
		}

		srv := focusmcp.NewServer(Sync, Focus, MetricsCalc, AlertEngine, appVersion)
		if err := srv.Run(ctx); err != nil && ctx.Err() == nil {
			return fmt.Errorf("running MCP server: %w", err)
		}
		return nil
	},
}

func init() {
	mcpServeCmd.Flags().BoolVar(&mcpNoAutoSort, "no-auto-sort", false, "Do not run the periodic auto-sort while serving")
	mcpCmd.AddCommand(mcpServeCmd)
	rootCmd.AddCommand(mcpCmd)
}
