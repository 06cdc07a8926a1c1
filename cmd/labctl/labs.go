package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/ameotech/triage/internal/dialogue"
	"github.com/ameotech/triage/internal/domain"
	"github.com/ameotech/triage/internal/labs"
)

func newRunCommand() *cobra.Command {
	var (
		file    string
		summary bool
	)
	cmd := &cobra.Command{
		Use:   "run <tool>",
		Short: "Score a set of answers with a lab engine",
		Long: `Score answers read from a file (or stdin) with one of the lab engines:
  audit, build-estimator, architecture-blueprint, ai-readiness`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			tool, err := parseTool(args[0])
			if err != nil {
				return err
			}
			raw, err := readInput(cmd, file)
			if err != nil {
				return err
			}
			res, err := labs.Run(tool, raw)
			if err != nil {
				return err
			}
			if summary {
				printScores(cmd.OutOrStdout(), tool, res.ScoreMap())
				return nil
			}
			return printJSON(cmd.OutOrStdout(), res)
		},
	}
	cmd.Flags().StringVarP(&file, "file", "f", "", "answers file (default stdin)")
	cmd.Flags().BoolVar(&summary, "summary", false, "print scores only")
	return cmd
}

func newNextCommand() *cobra.Command {
	var (
		file  string
		done  []string
		email string
	)
	cmd := &cobra.Command{
		Use:   "next <tool>",
		Short: "Show follow-up suggestions for a lab result",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			tool, err := parseTool(args[0])
			if err != nil {
				return err
			}
			raw, err := readInput(cmd, file)
			if err != nil {
				return err
			}
			view, err := labs.ParseView(tool, raw)
			if err != nil {
				return err
			}
			alreadyRun := make([]domain.LabTool, 0, len(done))
			for _, d := range done {
				t, err := parseTool(d)
				if err != nil {
					return err
				}
				alreadyRun = append(alreadyRun, t)
			}
			return printJSON(cmd.OutOrStdout(), dialogue.Suggest(view, alreadyRun, email))
		},
	}
	cmd.Flags().StringVarP(&file, "file", "f", "", "lab result file (default stdin)")
	cmd.Flags().StringSliceVar(&done, "done", nil, "tools the visitor already ran")
	cmd.Flags().StringVar(&email, "contact", "hello@ameotech.com", "address used in escalation links")
	return cmd
}

func parseTool(s string) (domain.LabTool, error) {
	tool, ok := domain.ParseLabTool(s)
	if !ok {
		return "", fmt.Errorf("unknown lab tool %q", s)
	}
	return tool, nil
}

func readInput(cmd *cobra.Command, file string) ([]byte, error) {
	if file == "" || file == "-" {
		raw, err := io.ReadAll(cmd.InOrStdin())
		if err != nil {
			return nil, fmt.Errorf("read stdin: %w", err)
		}
		return raw, nil
	}
	raw, err := os.ReadFile(file)
	if err != nil {
		return nil, fmt.Errorf("read answers: %w", err)
	}
	return raw, nil
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func printScores(w io.Writer, tool domain.LabTool, scores map[string]int) {
	bold := color.New(color.FgCyan, color.Bold)
	green := color.New(color.FgGreen)
	yellow := color.New(color.FgYellow)
	red := color.New(color.FgRed)

	bold.Fprintln(w, tool.Title())
	fmt.Fprintln(w, strings.Repeat("-", len(tool.Title())))

	names := make([]string, 0, len(scores))
	for name := range scores {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		score := scores[name]
		c := green
		switch {
		case score < 40:
			c = red
		case score < 70:
			c = yellow
		}
		fmt.Fprintf(w, "%-16s ", name)
		c.Fprintf(w, "%3d\n", score)
	}
}
