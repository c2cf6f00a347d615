/*
Opens a window and draws one textured quad at a fixed rate until the
window is closed.
*/
package main

import (
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spaghettifunk/anima-quad/engine"
	"github.com/spaghettifunk/anima-quad/engine/config"
	"github.com/spaghettifunk/anima-quad/engine/core"
)

func main() {
	configPath := flag.String("config", "anima.toml", "path of the TOML configuration, defaults are used if it does not exist")
	printConfig := flag.Bool("print-config", false, "print the effective configuration and exit")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		core.LogFatal("failed to load configuration: %s", err)
	}
	if *printConfig {
		data, err := cfg.Encode()
		if err != nil {
			core.LogFatal("failed to encode configuration: %s", err)
		}
		fmt.Print(string(data))
		return
	}

	core.SetLogLevel(cfg.Log.Level)
	if cfg.Window.Debug {
		core.SetLogLevel("debug")
	}

	e, err := engine.New(cfg)
	if err != nil {
		core.LogError("failed to create the engine: %s", err)
		os.Exit(-1)
	}
	if err := e.Initialize(); err != nil {
		os.Exit(-1)
	}

	// signal channel to capture system calls
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGTERM, syscall.SIGINT, syscall.SIGQUIT)
	go func() {
		<-sigCh
		e.Stop()
	}()

	runErr := e.Run()
	if err := e.Terminate(); err != nil {
		core.LogError("shutdown: %s", err)
	}
	if runErr != nil {
		core.LogError("%s", runErr)
		os.Exit(1)
	}
}
