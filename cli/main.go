package main

import (
	"fmt"
	"os"

	"github.com/devilmonastery/notedesk/cli/internal"
	"github.com/devilmonastery/notedesk/internal/client"
)

func main() {
	rootCmd := cli.NewRootCommand()

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		if client.IsSessionInvalid(err) {
			fmt.Fprintln(os.Stderr, "Your session has expired. Run 'notedesk auth login' to sign in again.")
		}
		os.Exit(1)
	}
}
