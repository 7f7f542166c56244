package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"github.com/roach88/retroloop/internal/remote"
	"github.com/roach88/retroloop/internal/server"
	"github.com/roach88/retroloop/internal/template"
)

// WatchOptions holds flags for the watch command.
type WatchOptions struct {
	*RootOptions
	RedisAddr string
}

// NewWatchCommand creates the watch command.
func NewWatchCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &WatchOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "watch <board-id>",
		Short: "Stream a board's live events",
		Long: `Subscribe to a board's event channel and print events as they arrive.

Runs until interrupted. With --format json, each event is printed as one
JSON line, suitable for piping.

Example:
  retroloop watch 0190c6a1-... --redis localhost:6379`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWatch(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.RedisAddr, "redis", "localhost:6379", "Redis address")

	return cmd
}

func runWatch(opts *WatchOptions, boardID string, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd)

	bus := server.NewEventBus(&redis.Options{Addr: opts.RedisAddr})
	defer func() {
		if err := bus.Close(); err != nil {
			slog.Error("error closing event bus", "error", err)
		}
	}()

	parentCtx := cmd.Context()
	if parentCtx == nil {
		parentCtx = context.Background()
	}
	ctx, cancel := context.WithCancel(parentCtx)
	defer cancel()

	if err := bus.Ping(ctx); err != nil {
		return WrapExitError(ExitCommandError, "failed to reach Redis", err)
	}

	sub, err := bus.Subscribe(ctx, boardID)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to subscribe", err)
	}
	defer func() {
		if err := sub.Close(); err != nil {
			slog.Error("error closing subscription", "error", err)
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	slog.Info("watching board", "board", boardID, "channel", server.BoardChannel(boardID))

	for {
		select {
		case sig := <-sigChan:
			slog.Info("received signal, stopping", "signal", sig)
			return nil
		case <-ctx.Done():
			return nil
		case err, ok := <-sub.Errors():
			if !ok {
				return nil
			}
			slog.Warn("event stream error", "error", err)
		case ev, ok := <-sub.Events():
			if !ok {
				return nil
			}
			if err := printEvent(formatter, ev); err != nil {
				return outputCommandError(formatter, template.ErrCodeGeneric, err.Error())
			}
		}
	}
}

// printEvent writes one event in the configured format.
func printEvent(formatter *OutputFormatter, ev remote.Event) error {
	if formatter.Format == "json" {
		return json.NewEncoder(formatter.Writer).Encode(ev)
	}

	switch {
	case ev.Card != nil:
		fmt.Fprintf(formatter.Writer, "[%d] %s card=%s column=%s reactions=%d\n",
			ev.Seq, ev.Kind, ev.CardID, ev.Card.ColumnID, ev.Card.DirectReactionCount)
	case ev.SourceID != "":
		fmt.Fprintf(formatter.Writer, "[%d] %s %s -> %s (%s)\n",
			ev.Seq, ev.Kind, ev.SourceID, ev.TargetID, ev.LinkType)
	default:
		fmt.Fprintf(formatter.Writer, "[%d] %s card=%s\n", ev.Seq, ev.Kind, ev.CardID)
	}
	return nil
}
