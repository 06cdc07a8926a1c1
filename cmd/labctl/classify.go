package main

import (
	"fmt"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/ameotech/triage/internal/intent"
)

func newClassifyCommand() *cobra.Command {
	var (
		page    string
		catalog string
	)
	cmd := &cobra.Command{
		Use:   "classify <message...>",
		Short: "Classify a visitor message",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := loadClassifier(cmd, catalog)
			if err != nil {
				return err
			}
			ci := c.Classify(strings.Join(args, " "), page)

			out := cmd.OutOrStdout()
			color.New(color.Bold).Fprintf(out, "%s", ci.Intent)
			fmt.Fprintf(out, " (%s)\n", c.Label(ci.Intent))
			fmt.Fprintf(out, "confidence: %.2f\n", ci.Confidence)
			if ci.Rule != "" {
				fmt.Fprintf(out, "rule:       %s\n", ci.Rule)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&page, "page", "", "page path the message was sent from")
	cmd.Flags().StringVar(&catalog, "rules", "", "rule catalog YAML (default built in)")
	return cmd
}

func loadClassifier(cmd *cobra.Command, path string) (*intent.Classifier, error) {
	if path == "" {
		return intent.Default()
	}
	raw, err := readInput(cmd, path)
	if err != nil {
		return nil, err
	}
	return intent.Load(raw)
}
