//go:build !tinygo

package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"

	"sparkrtc/app"
	"sparkrtc/hal"
)

func main() {
	var cfg hal.HeadlessConfig
	var appCfg app.Config
	var tracePath string
	flag.BoolVar(&cfg.Enabled, "headless", false, "Run without a window.")
	flag.IntVar(&cfg.Hz, "hz", 60, "Frame rate in headless mode.")
	flag.Uint64Var(&cfg.Frames, "frames", 0, "Stop after N frames in headless mode (0 = run forever).")
	flag.Uint64Var(&appCfg.SampleEvery, "sample-every", 0, "Ticks between sampler activations.")
	flag.Uint64Var(&appCfg.ReportEvery, "report-every", 0, "Ticks between status reports.")
	flag.Uint64Var(&appCfg.BlinkEvery, "blink-every", 0, "Ticks between LED toggles.")
	flag.StringVar(&tracePath, "trace", "", "Write binary trace frames to this file.")
	flag.Parse()

	hc := hal.HostConfig{}
	if tracePath != "" {
		f, err := os.Create(tracePath)
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
		defer f.Close()
		hc.Trace = f
	}
	h := hal.NewHost(hc)
	newApp := func(h hal.HAL) func() error {
		return app.NewWithConfig(h, appCfg)
	}

	if cfg.Enabled {
		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
		defer stop()
		if err := hal.RunHeadless(ctx, h, newApp, cfg); err != nil && !errors.Is(err, context.Canceled) {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
		return
	}

	if err := hal.RunWindow("Spark RTC", h, newApp); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
