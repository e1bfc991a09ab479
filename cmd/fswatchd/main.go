// Copyright (C) 2016 The Syncthing Authors.
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this file,
// You can obtain one at https://mozilla.org/MPL/2.0/.

// Command fswatchd runs the recursive filesystem-change notifier daemon:
// it wires the watch-tree engine (internal/watchtree) to the line-oriented
// parent-process protocol (internal/protocol) and serves the two as
// supervised services over stdin/stdout.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/alecthomas/kong"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/thejerf/suture/v4"
	"go.uber.org/automaxprocs/maxprocs"

	"fswatchd/internal/logger"
	"fswatchd/internal/protocol"
	"fswatchd/internal/suturewrap"
	"fswatchd/internal/watchtree"
)

var l = logger.New("main")

type cli struct {
	Root        []string `help:"Root directory to watch at startup. May be repeated." placeholder:"PATH"`
	Ignore      []string `help:"Ignore rule (prefix, suffix, or glob: pattern) applied to every --root." placeholder:"RULE"`
	MetricsAddr string   `help:"Address to serve Prometheus metrics on, e.g. :9200. Disabled if empty."`
	Debug       string   `help:"Comma-separated list of logging facilities to enable debug output for."`
}

func main() {
	var c cli
	kong.Parse(&c,
		kong.Name("fswatchd"),
		kong.Description("Recursive filesystem-change notifier daemon."),
	)

	if _, err := maxprocs.Set(maxprocs.Logger(l.Debugf)); err != nil {
		l.Warnf("automaxprocs: %v", err)
	}

	for _, facility := range strings.Split(c.Debug, ",") {
		facility = strings.TrimSpace(facility)
		if facility == "" {
			continue
		}
		logger.New(facility).SetDebug(true)
	}

	if err := run(c); err != nil {
		l.Warnf("fatal: %v", err)
		os.Exit(1)
	}
}

func run(c cli) error {
	formatter := protocol.NewFormatter(os.Stdout)

	source := watchtree.NewPlatformSource()
	engine, err := watchtree.NewEngine(source, os.Stdout, func(path string, rawMask uint32) {
		if path == "" {
			formatter.Message("overflow: events may have been lost")
			return
		}
		formatter.Change(path, rawMask)
	})
	if err != nil {
		return fmt.Errorf("fswatchd: %w", err)
	}
	defer engine.Close()

	registry := prometheus.NewRegistry()
	engine.RegisterMetrics(registry)
	if c.MetricsAddr != "" {
		go serveMetrics(c.MetricsAddr, registry)
	}

	for _, root := range c.Root {
		if _, err := engine.Watch(root, c.Ignore); err != nil {
			l.Warnf("watch %q: %v", root, err)
		}
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	cmds := make(chan watchtree.Command)
	sup := suture.New("fswatchd", suture.Spec{})
	sup.Add(suturewrap.AsService(func(ctx context.Context) error {
		return engine.Run(ctx, cmds)
	}, "engine"))
	sup.Add(suturewrap.AsService(func(ctx context.Context) error {
		return readCommands(ctx, os.Stdin, cmds, formatter)
	}, "protocol-reader"))

	return sup.Serve(ctx)
}

// readCommands decodes the parent process's command stream and feeds
// watchtree.Command values to the engine, replying with STATS/MESSAGE
// records as appropriate. It returns suture.ErrTerminateSupervisorTree
// when the stream reaches EOF or a quit command is received, both of
// which are treated as an orderly shutdown of the whole daemon rather
// than a restart of just this service.
func readCommands(ctx context.Context, r *os.File, cmds chan<- watchtree.Command, formatter *protocol.Formatter) error {
	reader := protocol.NewReader(r)
	for {
		cmd, err := reader.Next()
		if err != nil {
			return suture.ErrTerminateSupervisorTree
		}

		switch cmd.Kind {
		case protocol.CmdWatch:
			reply := make(chan watchtree.CommandResult, 1)
			select {
			case cmds <- watchtree.Command{Kind: watchtree.CmdWatch, Path: cmd.Path, Ignore: cmd.Ignore, Reply: reply}:
			case <-ctx.Done():
				return ctx.Err()
			}
			res := <-reply
			if res.Err != nil {
				formatter.Message(fmt.Sprintf("watch %s: %v", cmd.Path, res.Err))
			}

		case protocol.CmdUnwatch:
			select {
			case cmds <- watchtree.Command{Kind: watchtree.CmdUnwatch, Handle: cmd.Handle}:
			case <-ctx.Done():
				return ctx.Err()
			}

		case protocol.CmdStats:
			reply := make(chan watchtree.CommandResult, 1)
			select {
			case cmds <- watchtree.Command{Kind: watchtree.CmdStats, Reply: reply}:
			case <-ctx.Done():
				return ctx.Err()
			}
			res := <-reply
			formatter.Stats(res.WatchesLive, res.LimitReached, res.RootCount)

		case protocol.CmdQuit:
			return suture.ErrTerminateSupervisorTree
		}
	}
}

func serveMetrics(addr string, reg *prometheus.Registry) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	if err := http.ListenAndServe(addr, mux); err != nil {
		l.Warnf("metrics server: %v", err)
	}
}
