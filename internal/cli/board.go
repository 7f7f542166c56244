package cli

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/roach88/retroloop/internal/server"
	"github.com/roach88/retroloop/internal/template"
)

// BoardOptions holds flags shared by the board subcommands.
type BoardOptions struct {
	*RootOptions
	Database string
}

// NewBoardCommand creates the board command group.
func NewBoardCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &BoardOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "board",
		Short: "Create and manage boards",
	}

	cmd.PersistentFlags().StringVar(&opts.Database, "db", "", "path to SQLite database (required)")
	_ = cmd.MarkPersistentFlagRequired("db")

	cmd.AddCommand(newBoardCreateCommand(opts))
	cmd.AddCommand(newBoardCloseCommand(opts))
	cmd.AddCommand(newBoardReopenCommand(opts))

	return cmd
}

// boardCreated is the success payload of board create.
type boardCreated struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Template string `json:"template"`
	Columns  int    `json:"columns"`
}

func newBoardCreateCommand(opts *BoardOptions) *cobra.Command {
	var (
		templateDir string
		templateKey string
		name        string
	)

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a board from a template",
		Long: `Create a board from a CUE template.

Without --templates, the built-in retrospective template is used.

Example:
  retroloop board create --db ./retro.db
  retroloop board create --db ./retro.db --templates ./templates --template planning --name "Sprint 42"`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runBoardCreate(opts, cmd, templateDir, templateKey, name)
		},
	}

	cmd.Flags().StringVar(&templateDir, "templates", "", "directory of CUE board templates")
	cmd.Flags().StringVar(&templateKey, "template", "retro", "template key to instantiate")
	cmd.Flags().StringVar(&name, "name", "", "board name (defaults to the template name)")

	return cmd
}

func runBoardCreate(opts *BoardOptions, cmd *cobra.Command, templateDir, templateKey, name string) error {
	formatter := newFormatter(opts.RootOptions, cmd)

	tmpl, err := resolveTemplate(formatter, templateDir, templateKey)
	if err != nil {
		return err
	}

	if name == "" {
		name = tmpl.Name
	}

	st, err := server.OpenStore(opts.Database)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to open database", err)
	}
	defer func() {
		if closeErr := st.Close(); closeErr != nil {
			slog.Error("error closing database", "error", closeErr)
		}
	}()

	srv := server.New(st)
	id, err := srv.CreateBoard(cmd.Context(), server.BoardConfig{
		Name:                 name,
		Closed:               tmpl.Closed,
		CardQuotaPerUser:     tmpl.CardQuotaPerUser,
		ReactionQuotaPerUser: tmpl.ReactionQuotaPerUser,
		MaxContentLength:     tmpl.MaxContentLength,
	})
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to create board", err)
	}

	if formatter.Format == "json" {
		return formatter.Success(boardCreated{
			ID:       id,
			Name:     name,
			Template: tmpl.Key,
			Columns:  len(tmpl.Columns),
		})
	}
	fmt.Fprintf(formatter.Writer, "Created board %s (%s)\n", id, name)
	return nil
}

// resolveTemplate loads the named template from the directory, or falls back
// to the built-in default when no directory is given.
func resolveTemplate(formatter *OutputFormatter, dir, key string) (template.BoardTemplate, error) {
	if dir == "" {
		tmpl := template.Default()
		if key != tmpl.Key {
			return template.BoardTemplate{}, outputCommandError(formatter, template.ErrCodeNotFound,
				fmt.Sprintf("template %q not found: only %q is built in, use --templates for custom templates", key, tmpl.Key))
		}
		return tmpl, nil
	}

	result, errs := template.LoadTemplates(dir, template.LoadModeFailFast)
	if len(errs) > 0 {
		return template.BoardTemplate{}, outputLoadError(formatter, errs[0])
	}
	formatter.VerboseLog("Loaded %d template(s) from %s", len(result.Templates), dir)

	tmpl, ok := result.Template(key)
	if !ok {
		return template.BoardTemplate{}, outputCommandError(formatter, template.ErrCodeNotFound,
			fmt.Sprintf("template %q not found in %s", key, dir))
	}
	return tmpl, nil
}

func newBoardCloseCommand(opts *BoardOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:           "close <board-id>",
		Short:         "Close a board, making it read-only",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSetClosed(opts, cmd, args[0], true)
		},
	}
	return cmd
}

func newBoardReopenCommand(opts *BoardOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:           "reopen <board-id>",
		Short:         "Reopen a closed board",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSetClosed(opts, cmd, args[0], false)
		},
	}
	return cmd
}

func runSetClosed(opts *BoardOptions, cmd *cobra.Command, boardID string, closed bool) error {
	formatter := newFormatter(opts.RootOptions, cmd)

	st, err := server.OpenStore(opts.Database)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to open database", err)
	}
	defer func() {
		if closeErr := st.Close(); closeErr != nil {
			slog.Error("error closing database", "error", closeErr)
		}
	}()

	srv := server.New(st)
	if err := srv.SetBoardClosed(cmd.Context(), boardID, closed); err != nil {
		return outputCommandError(formatter, template.ErrCodeGeneric, err.Error())
	}

	state := "closed"
	if !closed {
		state = "open"
	}
	if formatter.Format == "json" {
		return formatter.Success(map[string]string{"id": boardID, "state": state})
	}
	fmt.Fprintf(formatter.Writer, "Board %s is now %s\n", boardID, state)
	return nil
}

// newFormatter builds the standard formatter wired to the command's streams.
func newFormatter(opts *RootOptions, cmd *cobra.Command) *OutputFormatter {
	return &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}
}

// outputCommandError reports a command-level error (exit code 2).
func outputCommandError(formatter *OutputFormatter, code, message string) error {
	_ = formatter.Error(code, message, nil)
	return NewExitError(ExitCommandError, fmt.Sprintf("%s: %s", code, message))
}

// outputLoadError reports a template load error, preserving its code.
func outputLoadError(formatter *OutputFormatter, err error) error {
	var loadErr *template.LoadError
	if errors.As(err, &loadErr) {
		return outputCommandError(formatter, loadErr.Code, loadErr.Message)
	}
	return outputCommandError(formatter, template.ErrCodeGeneric, err.Error())
}
