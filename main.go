package main

import (
	"context"
	"os"
	"os/signal"
	"time"

	"github.com/habedi/portal/cmd"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// shutdownGrace is how long a command gets to stop after the first interrupt.
const shutdownGrace = 3 * time.Second

func main() {
	configureLogLevelFromEnv()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	stopChan := setupInterruptListener()
	go handleInterrupt(stopChan, cancel, func(msg string) { log.Warn().Msg(msg) }, os.Exit, shutdownGrace)

	cmd.Execute(ctx)
}

// configureLogLevelFromEnv enables debug logging when DEBUG_PORTAL is set to anything but "", "0" or "false".
func configureLogLevelFromEnv() {
	switch os.Getenv("DEBUG_PORTAL") {
	case "", "0", "false":
		zerolog.SetGlobalLevel(zerolog.Disabled)
	default:
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	}
}

func setupInterruptListener() chan os.Signal {
	stopChan := make(chan os.Signal, 1)
	signal.Notify(stopChan, os.Interrupt)
	return stopChan
}

// handleInterrupt cancels the running command on the first interrupt and exits with 130
// once the grace period ends or a second interrupt arrives.
func handleInterrupt(stopChan <-chan os.Signal, cancel context.CancelFunc, logMsg func(string), exit func(int), grace time.Duration) {
	<-stopChan
	logMsg("Interrupt signal received. Shutting down...")
	cancel()
	select {
	case <-stopChan:
	case <-time.After(grace):
	}
	exit(130)
}
