package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/retroloop/internal/harness"
	"github.com/roach88/retroloop/internal/template"
)

// ScenarioOptions holds flags for the scenario command.
type ScenarioOptions struct {
	*RootOptions
	ShowSnapshot bool
}

// scenarioOutcome is the per-file result payload.
type scenarioOutcome struct {
	File     string   `json:"file"`
	Name     string   `json:"name"`
	Pass     bool     `json:"pass"`
	Errors   []string `json:"errors,omitempty"`
	Calls    []string `json:"calls,omitempty"`
	Snapshot string   `json:"snapshot,omitempty"`
}

// NewScenarioCommand creates the scenario command.
func NewScenarioCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ScenarioOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "scenario <file>...",
		Short: "Replay YAML scenarios against the engine",
		Long: `Replay one or more YAML scenario files against a fresh engine with a
scripted remote, reporting each scenario's outcome.

Exit code 1 if any scenario fails, 2 if a file cannot be loaded.`,
		Args:          cobra.MinimumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runScenarios(opts, args, cmd)
		},
	}

	cmd.Flags().BoolVar(&opts.ShowSnapshot, "snapshot", false, "print the final state snapshot")

	return cmd
}

func runScenarios(opts *ScenarioOptions, paths []string, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd)

	failed := 0
	outcomes := make([]scenarioOutcome, 0, len(paths))
	for _, path := range paths {
		scenario, err := harness.LoadScenario(path)
		if err != nil {
			return outputCommandError(formatter, template.ErrCodeGeneric,
				fmt.Sprintf("%s: %v", path, err))
		}
		formatter.VerboseLog("Running scenario %s (%s)", scenario.Name, path)

		result, err := harness.Run(scenario)
		if err != nil {
			return outputCommandError(formatter, template.ErrCodeGeneric,
				fmt.Sprintf("%s: %v", path, err))
		}

		outcome := scenarioOutcome{
			File:   path,
			Name:   scenario.Name,
			Pass:   result.Pass,
			Errors: result.Errors,
		}
		if opts.Verbose {
			outcome.Calls = result.Calls
		}
		if opts.ShowSnapshot {
			outcome.Snapshot = string(result.Snapshot)
		}
		outcomes = append(outcomes, outcome)
		if !result.Pass {
			failed++
		}
	}

	if formatter.Format == "json" {
		if err := formatter.Success(outcomes); err != nil {
			return err
		}
	} else {
		for _, o := range outcomes {
			if o.Pass {
				fmt.Fprintf(formatter.Writer, "✓ %s\n", o.Name)
			} else {
				fmt.Fprintf(formatter.Writer, "✗ %s\n", o.Name)
				for _, msg := range o.Errors {
					fmt.Fprintf(formatter.Writer, "    %s\n", msg)
				}
			}
			if o.Snapshot != "" {
				fmt.Fprintf(formatter.Writer, "    %s\n", o.Snapshot)
			}
		}
		fmt.Fprintf(formatter.Writer, "\n%d scenario(s), %d failed\n", len(outcomes), failed)
	}

	if failed > 0 {
		return NewExitError(ExitFailure, fmt.Sprintf("%d scenario(s) failed", failed))
	}
	return nil
}
