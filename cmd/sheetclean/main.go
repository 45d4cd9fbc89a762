package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/JonMunkholm/sheetclean/internal/cli"
	"github.com/JonMunkholm/sheetclean/internal/core"
	"github.com/JonMunkholm/sheetclean/internal/logging"
)

func main() {
	opts, err := cli.ParseArgs(os.Args[1:])
	if err != nil {
		if cli.IsHelp(err) {
			fmt.Fprintln(os.Stdout, err)
			return
		}
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}

	slog.SetDefault(logging.New(os.Stderr, opts.LogLevel, "text"))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	err = cli.Run(ctx, opts, os.Stdout)
	stop()

	if err != nil {
		if core.IsUserFacing(err) {
			fmt.Fprintln(os.Stderr, core.FormatUserError(err))
		} else {
			fmt.Fprintln(os.Stderr, "sheetclean:", err)
		}
		slog.Debug("clean failed", "error", err)
		os.Exit(1)
	}
}
