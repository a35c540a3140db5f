package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"
	"github.com/valter-silva-au/focus/internal/api"
)

var (
	appVersion = "dev"
	appCommit  = "none"
	appDate    = "unknown"
)

// SetVersionInfo sets the version information injected via ldflags.
func SetVersionInfo(version, commit, date string) {
	appVersion = version
	appCommit = commit
	appDate = date
}

// ErrLoginRequired wraps a 401 from the backend together with where to log in.
type ErrLoginRequired struct {
	LoginURL string
	Err      error
}

func (e *ErrLoginRequired) Error() string {
	return fmt.Sprintf("session expired, log in at %s", e.LoginURL)
}

func (e *ErrLoginRequired) Unwrap() error { return e.Err }

var rootCmd = &cobra.Command{
	Use:   "focus",
	Short: "focus - tasks and a focus timer from the terminal",
	Long: `focus is a terminal client for the task and focus-timer service.

List, create and sort tasks, run a focus timer on a task or subtask,
take the productivity diagnosis and read your focus metrics. Run
"focus ui" for the interactive board.`,
	SilenceUsage: true,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "focus %s\ncommit: %s\nbuilt:  %s\n", appVersion, appCommit, appDate)
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}

// Execute runs the root command. A 401 from the backend becomes an
// ErrLoginRequired carrying the login URL.
func Execute() error {
	err := rootCmd.Execute()
	var login *ErrLoginRequired
	if api.IsUnauthorized(err) && !errors.As(err, &login) {
		return &ErrLoginRequired{LoginURL: LoginURL, Err: err}
	}
	return err
}
