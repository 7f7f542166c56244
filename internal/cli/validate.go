package cli

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/retroloop/internal/template"
)

// ValidationIssue is one reported template problem.
type ValidationIssue struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	File    string `json:"file,omitempty"`
	Line    int    `json:"line,omitempty"`
}

// ValidationResult holds validation results.
type ValidationResult struct {
	Valid     bool              `json:"valid"`
	Templates int               `json:"templates"`
	Errors    []ValidationIssue `json:"errors,omitempty"`
}

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate <templates-dir>",
		Short: "Validate board templates",
		Long: `Validate CUE board templates without touching a database.

Checks syntax, required fields, column uniqueness, and quota limits,
reporting every problem found rather than stopping at the first.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(rootOpts, args[0], cmd)
		},
	}

	return cmd
}

func runValidate(opts *RootOptions, templatesDir string, cmd *cobra.Command) error {
	formatter := newFormatter(opts, cmd)

	result, errs := template.LoadTemplates(templatesDir, template.LoadModeCollectAll)

	// A nil result means loading never got to templates: missing directory,
	// no CUE files, or a build failure. These are command errors.
	if result == nil {
		var loadErr *template.LoadError
		if len(errs) > 0 && errors.As(errs[0], &loadErr) {
			return outputCommandError(formatter, loadErr.Code, loadErr.Message)
		}
		if len(errs) > 0 {
			return outputCommandError(formatter, template.ErrCodeGeneric, errs[0].Error())
		}
		return outputCommandError(formatter, template.ErrCodeGeneric, "template load produced no result")
	}

	formatter.VerboseLog("Found %d CUE file(s) in %s", result.FileCount, templatesDir)

	issues := make([]ValidationIssue, 0, len(errs))
	for _, err := range errs {
		issues = append(issues, toIssue(err))
	}

	if len(issues) > 0 {
		return outputValidationErrors(formatter, len(result.Templates), issues)
	}
	return outputValidateSuccess(formatter, len(result.Templates))
}

// toIssue converts a load error to a reportable issue, keeping the CUE
// source position when one is available.
func toIssue(err error) ValidationIssue {
	var loadErr *template.LoadError
	if errors.As(err, &loadErr) {
		issue := ValidationIssue{
			Code:    loadErr.Code,
			Message: loadErr.Message,
		}
		if loadErr.Pos.IsValid() {
			issue.File = loadErr.Pos.Filename()
			issue.Line = loadErr.Pos.Line()
		}
		return issue
	}
	return ValidationIssue{Code: template.ErrCodeGeneric, Message: err.Error()}
}

// outputValidateSuccess outputs successful validation results.
func outputValidateSuccess(formatter *OutputFormatter, count int) error {
	if formatter.Format == "json" {
		return formatter.Success(ValidationResult{Valid: true, Templates: count})
	}

	fmt.Fprintf(formatter.Writer, "✓ %d template(s) valid\n", count)
	return nil
}

// outputValidationErrors outputs multiple validation errors.
func outputValidationErrors(formatter *OutputFormatter, count int, issues []ValidationIssue) error {
	if formatter.Format == "json" {
		response := CLIResponse{
			Status: "error",
			Data:   ValidationResult{Valid: false, Templates: count, Errors: issues},
			Error: &CLIError{
				Code:    issues[0].Code,
				Message: issues[0].Message,
			},
		}

		encoder := json.NewEncoder(formatter.Writer)
		encoder.SetIndent("", "  ")
		if err := encoder.Encode(response); err != nil {
			return err
		}
		return NewExitError(ExitFailure, fmt.Sprintf("validation failed with %d error(s)", len(issues)))
	}

	// Text format
	fmt.Fprintln(formatter.Writer, "✗ Validation failed")
	fmt.Fprintln(formatter.Writer)

	for _, issue := range issues {
		if issue.File != "" {
			fmt.Fprintf(formatter.Writer, "%s:%d\n", issue.File, issue.Line)
		}
		fmt.Fprintf(formatter.Writer, "  %s: %s\n\n", issue.Code, issue.Message)
	}

	return NewExitError(ExitFailure, fmt.Sprintf("validation failed with %d error(s)", len(issues)))
}
