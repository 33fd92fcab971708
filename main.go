/*
Drives the testbed workload through the command scheduler on the
headless device and prints the scheduler metrics on exit.
*/
package main

import (
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spaghettifunk/anima-scheduler/engine"
	"github.com/spaghettifunk/anima-scheduler/engine/core"
	"github.com/spaghettifunk/anima-scheduler/engine/renderer/headless"
	"github.com/spaghettifunk/anima-scheduler/testbed"
)

func main() {
	configPath := flag.String("config", "", "path to a TOML configuration file")
	flag.Parse()

	cfg, err := core.LoadConfig(*configPath)
	if err != nil {
		core.LogFatal("failed to load configuration: %s", err)
	}
	if err := core.SetLogLevel(cfg.Log.Level); err != nil {
		core.LogFatal("invalid log level %q: %s", cfg.Log.Level, err)
	}

	dev := headless.New(headless.WithLatency(cfg.Headless.Latency.Duration))
	defer dev.Close()

	tw := testbed.NewTestWorkload(cfg)
	e, err := engine.New(tw.Workload, dev)
	if err != nil {
		core.LogFatal(err.Error())
	}

	if *configPath != "" {
		watcher, err := core.WatchConfig(*configPath, func(updated *core.Config) {
			if err := core.SetLogLevel(updated.Log.Level); err != nil {
				core.LogWarn("ignoring log level %q: %s", updated.Log.Level, err)
			}
			e.Reload(updated)
		})
		if err != nil {
			core.LogFatal("failed to watch configuration: %s", err)
		}
		defer watcher.Close()
	}

	if err := e.Initialize(); err != nil {
		core.LogFatal(err.Error())
	}

	// signal channel to capture system calls
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGTERM, syscall.SIGINT, syscall.SIGQUIT)

	// start shutdown goroutine
	go func() {
		// capture sigterm and other system call here
		<-sigCh
		_ = e.Shutdown()
	}()

	// run engine
	if err := e.Run(); err != nil {
		core.LogError(err.Error())
		os.Exit(1)
	}
	if err := e.Shutdown(); err != nil {
		core.LogError(err.Error())
		os.Exit(1)
	}

	m := e.Metrics().Snapshot()
	fmt.Printf("frames=%d submissions=%d forced_flushes=%d deferred_ops=%d avg_wait=%.3fms avg_record=%.3fms readbacks=%d\n",
		e.Frames(), m.Submissions, m.ForcedFlush, m.DeferredRun, m.AvgWaitMS, m.AvgRecordMS, tw.Readbacks())
}
