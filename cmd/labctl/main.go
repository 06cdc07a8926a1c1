// Command labctl runs the lab engines and the intent classifier offline.
//
// It reads the same JSON bodies the HTTP API accepts, which makes it handy
// for checking rule changes before a deploy.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func main() {
	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:           "labctl",
		Short:         "Run lab tools and classify messages from the command line",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(newRunCommand(), newNextCommand(), newClassifyCommand())
	return root
}
