package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/redis/go-redis/v9"
	"github.com/spf13/afero"

	"github.com/banterhq/banter/internal/capture"
	"github.com/banterhq/banter/internal/config"
	"github.com/banterhq/banter/internal/gate"
	"github.com/banterhq/banter/internal/monitor"
	"github.com/banterhq/banter/internal/vad"
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

	// Spectral flux is the primary classifier; peak energy takes over if
	// the FFT path ever fails on a frame.
	detector := &vad.FallbackDetector{
		Primary:   vad.NewFluxDetector(),
		Secondary: &vad.EnergyDetector{Threshold: cfg.Monitor.Threshold},
	}

	segmenter, err := vad.NewSegmenter(detector, cfg.Capture.SegmenterConfig())
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: Invalid segmenter configuration: %v\n", err)
		os.Exit(1)
	}

	fs := afero.NewOsFs()

	writes := statebus.NewDispatcher(bus, 16)
	interrupts := monitor.New(
		&vad.EnergyDetector{Threshold: cfg.Monitor.Threshold},
		writes,
		cfg.Monitor.SpeechThreshold,
		cfg.Monitor.Cooldown(),
		capture.Source,
	)

	listeningGate := gate.New(bus, capture.Source, gate.Options{
		Enabled:      cfg.Listening.ListeningEnabled(),
		UserName:     cfg.Listening.UserName,
		StopPhrases:  cfg.Listening.StopPhrases,
		StartPhrases: cfg.Listening.StartPhrases,
		StopAck:      cfg.Listening.StopAck,
		StartAck:     cfg.Listening.StartAck,
	})

	agent, err := capture.New(capture.Options{
		Bus:          bus,
		Segmenter:    segmenter,
		Store:        vad.NewStore(fs, cfg.Capture.SegmentDir),
		Frames:       capture.NewMicSource(cfg.Capture.SampleRate, cfg.Capture.FrameSize),
		Transcriber:  capture.NewWhisperClient(fs, cfg.Transcriber.URL, cfg.Transcriber.HealthURL),
		Handoff:      capture.NewHTTPHandoff(cfg.Handoff.URL, cfg.Handoff.MaxRetries, cfg.Handoff.RetryDelay()),
		Gate:         listeningGate,
		Monitor:      interrupts,
		MaxRecording: cfg.Capture.MaxRecording(),
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: Failed to build capture agent: %v\n", err)
		os.Exit(1)
	}

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGTERM, syscall.SIGINT)

	go writes.Run(runCtx)

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
			fmt.Fprintf(os.Stderr, "Capture agent error: %v\n", runErr)
			os.Exit(1)
		}
	}

	fmt.Println("Capture agent stopped")
}
