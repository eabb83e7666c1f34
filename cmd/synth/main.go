package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/redis/go-redis/v9"

	"github.com/banterhq/banter/internal/config"
	"github.com/banterhq/banter/internal/synth"
	"github.com/banterhq/banter/pkg/statebus"
)

func main() {
	configPath := flag.String("config", "banter.yml", "Path to configuration file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// REDIS_URL overrides the configuration in containerized deployments.
	if url := os.Getenv("REDIS_URL"); url != "" {
		cfg.RedisURL = url
	}

	if len(cfg.Synth.Command) == 0 {
		fmt.Fprintf(os.Stderr, "Error: synth.command is not configured\n")
		os.Exit(1)
	}

	redisOpts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: Invalid Redis URL: %v\n", err)
		os.Exit(1)
	}

	bus := statebus.NewClient(redisOpts, cfg.Rules)
	defer bus.Close()

	ctx := context.Background()
	if err := bus.Ping(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: State bus not accessible: %v\n", err)
		os.Exit(1)
	}

	agent, err := synth.New(bus, &synth.ExecSpeaker{Command: cfg.Synth.Command}, cfg.Synth.PollInterval())
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: Failed to build synthesis agent: %v\n", err)
		os.Exit(1)
	}

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGTERM, syscall.SIGINT)

	errCh := make(chan error, 1)
	go func() {
		errCh <- agent.Run(runCtx)
	}()

	select {
	case sig := <-sigCh:
		fmt.Printf("Received signal %v, shutting down gracefully...\n", sig)
		cancel()
		<-errCh
	case runErr := <-errCh:
		if runErr != nil && runCtx.Err() == nil {
			fmt.Fprintf(os.Stderr, "Synthesis agent error: %v\n", runErr)
			os.Exit(1)
		}
	}

	fmt.Println("Synthesis agent stopped")
}
