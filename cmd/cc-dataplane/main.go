// Copyright (C) NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved. This file is part of cc-dataplane.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/google/gops/agent"

	"github.com/ClusterCockpit/cc-dataplane/internal/actor"
	"github.com/ClusterCockpit/cc-dataplane/internal/config"
	"github.com/ClusterCockpit/cc-dataplane/internal/runtime"
	"github.com/ClusterCockpit/cc-dataplane/internal/selfmetrics"
	"github.com/ClusterCockpit/cc-dataplane/internal/tracing"
	"github.com/ClusterCockpit/cc-dataplane/pkg/log"
)

// forceExitTimeout bounds how long main waits, after cancellation, for
// every stage goroutine to observe ctx and return before giving up and
// exiting anyway.
const forceExitTimeout = 5 * time.Second

func main() {
	var flagGops bool
	var flagConfigFile string
	flag.BoolVar(&flagGops, "gops", false, "Listen via github.com/google/gops/agent (for debugging)")
	flag.StringVar(&flagConfigFile, "config", "./config.toml", "Path to the pipeline configuration file")
	flag.Parse()
	if flag.NArg() > 0 {
		flagConfigFile = flag.Arg(0)
	}

	if flagGops {
		if err := agent.Listen(agent.Options{}); err != nil {
			log.Fatalf("gops/agent.Listen failed: %s", err.Error())
		}
	}

	root, err := config.Load(flagConfigFile)
	if err != nil {
		log.Errorf("loading %s: %s", flagConfigFile, err.Error())
		os.Exit(1)
	}
	logLevel := root.LogLevel
	if env := os.Getenv("CC_LOGLEVEL"); env != "" {
		logLevel = env
	}
	log.SetLogLevel(translateLogLevel(logLevel))

	stages, err := runtime.Build(root)
	if err != nil {
		log.Errorf("building pipeline: %s", err.Error())
		os.Exit(1)
	}

	tracing.Enable(root.TimeTracing)
	if err := tracing.StartSummaryScheduler(); err != nil {
		log.Errorf("starting tracing summary scheduler: %s", err.Error())
		os.Exit(1)
	}
	defer tracing.StopSummaryScheduler()

	ctx, cancel := context.WithCancel(context.Background())

	metricsServer := selfmetrics.NewServer(root.DebugAddr)
	listener, err := metricsServer.Listen()
	if err != nil {
		log.Errorf("binding debug_addr %s: %s", root.DebugAddr, err.Error())
		os.Exit(2)
	}

	var wg sync.WaitGroup
	if listener != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := metricsServer.Serve(listener); err != nil {
				log.Errorf("self-metrics server: %s", err.Error())
			}
		}()
	}

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigs
		log.Info("shutting down")
		cancel()
	}()

	rt := actor.NewRuntime()
	wg.Add(1)
	go func() {
		defer wg.Done()
		rt.Run(ctx, stages)
	}()

	<-ctx.Done()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), forceExitTimeout)
	metricsServer.Shutdown(shutdownCtx)
	shutdownCancel()

	exited := make(chan struct{})
	go func() {
		wg.Wait()
		close(exited)
	}()

	select {
	case <-exited:
	case <-time.After(forceExitTimeout):
		log.Error("stages did not shut down in time, forcing exit")
		os.Exit(2)
	}
}

// translateLogLevel maps the spec's RUST_LOG-style level names onto
// pkg/log's own vocabulary: "trace" has no separate tier here, so it
// maps onto "debug", the most verbose level pkg/log supports.
func translateLogLevel(lvl string) string {
	switch lvl {
	case "", "info":
		return "info"
	case "trace", "debug":
		return "debug"
	case "warn":
		return "warn"
	case "error":
		return "err"
	default:
		return "info"
	}
}
