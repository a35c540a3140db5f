package main

import (
	"errors"
	"fmt"
	"os"

	app "github.com/valter-silva-au/focus/internal"
	"github.com/valter-silva-au/focus/internal/cli"
)

// Set by goreleaser ldflags at build time.
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	os.Exit(run())
}

func run() int {
	cli.SetVersionInfo(version, commit, date)
	basePath := app.ResolveBasePath()

	a, err := app.NewApp(basePath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error initializing focus: %v\n", err)
		return 1
	}
	defer a.Close()

	if err := cli.Execute(); err != nil {
		var login *cli.ErrLoginRequired
		if errors.As(err, &login) {
			fmt.Fprintf(os.Stderr, "Your session has expired. Log in again at:\n  %s\n", login.LoginURL)
			return 1
		}
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	return 0
}
