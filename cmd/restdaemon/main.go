// SPDX-License-Identifier: GPL-3.0-or-later

// Command restdaemon serves process and host information as JSON.
//
// Usage:
//
//	restdaemon [flags] [address [port]]
//
// The address defaults to localhost and the port to 9901. The daemon
// serves /status and /self until it receives SIGINT or SIGTERM.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/bassosimone/restworker"
	"github.com/bassosimone/restworker/evloop"
)

// options contains the command line settings.
type options struct {
	address  string
	backlog  int
	maxConns int
	port     string
	timeout  time.Duration
	verbose  bool
}

// parseOptions parses the command line arguments, excluding the program name.
func parseOptions(args []string, stderr io.Writer) (*options, error) {
	opts := &options{address: "localhost", port: "9901"}
	fset := flag.NewFlagSet("restdaemon", flag.ContinueOnError)
	fset.SetOutput(stderr)
	fset.IntVar(&opts.backlog, "backlog", 128, "listen backlog")
	fset.IntVar(&opts.maxConns, "max-conns", 0, "maximum number of simultaneous connections (0 means no limit)")
	fset.DurationVar(&opts.timeout, "timeout", 15*time.Second, "per-connection inactivity timeout")
	fset.BoolVar(&opts.verbose, "v", false, "also log per-I/O events")
	if err := fset.Parse(args); err != nil {
		return nil, err
	}
	switch fset.NArg() {
	case 2:
		opts.port = fset.Arg(1)
		fallthrough
	case 1:
		opts.address = fset.Arg(0)
	case 0:
	default:
		return nil, fmt.Errorf("expected at most two positional arguments, got %d", fset.NArg())
	}
	return opts, nil
}

// run serves until ctx is done. When not nil, ready is called with the
// bound address before serving.
func run(ctx context.Context, opts *options, logger *slog.Logger, ready func(net.Addr)) error {
	cfg := restworker.NewConfig()
	cfg.MaxConns = opts.maxConns
	cfg.Timeout = opts.timeout
	listener := restworker.NewListener(cfg, logger)
	defer listener.Destroy()

	hostname, err := os.Hostname()
	if err != nil {
		logger.Warn("hostname", slog.Any("err", err))
	}
	resources := map[string]restworker.Document{
		"/self":   newSelfDocument(logger),
		"/status": newStatusDocument(hostname, time.Now(), logger),
	}
	for path, doc := range resources {
		if err := listener.RegisterResource(path, doc, nil); err != nil {
			return fmt.Errorf("cannot register %s: %w", path, err)
		}
	}

	if err := listener.Bind(opts.address, opts.port, opts.backlog); err != nil {
		return err
	}

	loop := evloop.New()
	if err := listener.Start(loop); err != nil {
		return err
	}
	if ready != nil {
		ready(listener.Addr())
	}
	logger.Info("serving", slog.String("localAddr", listener.Addr().String()))

	err = loop.Run(ctx)
	if errors.Is(err, context.Canceled) {
		err = nil
	}
	return err
}

func main() {
	opts, err := parseOptions(os.Args[1:], os.Stderr)
	if errors.Is(err, flag.ErrHelp) {
		os.Exit(0)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "restdaemon: %s\n", err.Error())
		os.Exit(2)
	}

	level := slog.LevelInfo
	if opts.verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, opts, logger, nil); err != nil {
		logger.Error("restdaemon", slog.Any("err", err))
		os.Exit(1)
	}
}
