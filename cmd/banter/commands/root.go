package commands

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"github.com/banterhq/banter/internal/config"
	"github.com/banterhq/banter/internal/printer"
	"github.com/banterhq/banter/pkg/statebus"
)

var (
	version string
	commit  string
	date    string

	configPath string
	redisURL   string
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "banter",
	Short: "Banter - priority-arbitrated state bus for voice agents",
	Long: `Banter coordinates voice pipeline agents over a shared Redis state bus.

Writes carry a source and a priority; a key's current holder can only be
overwritten at equal or higher priority, and per-key admission rules can
restrict values and writers further. Every accepted change is broadcast to
all subscribers.

This command is the operator's front end: inspect and mutate bus state,
stream live changes, and trigger a capture turn.`,
	Version: version,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() error {
	return rootCmd.Execute()
}

// SetVersionInfo sets the version information for the CLI
func SetVersionInfo(v, c, d string) {
	version = v
	commit = c
	date = d
	rootCmd.Version = fmt.Sprintf("%s (commit: %s, built: %s)", v, c, d)
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "banter.yml", "Path to configuration file")
	rootCmd.PersistentFlags().StringVarP(&redisURL, "redis", "r", "", "Redis URL (overrides configuration)")
}

// loadConfig reads the configured file, falling back to built-in defaults
// when the default path does not exist and was not explicitly requested.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	if _, err := os.Stat(configPath); err != nil {
		if os.IsNotExist(err) && !cmd.Flags().Changed("config") {
			cfg := &config.Config{}
			if err := cfg.Validate(); err != nil {
				return nil, err
			}
			return cfg, nil
		}
		return nil, fmt.Errorf("cannot read config %s: %w", configPath, err)
	}
	return config.Load(configPath)
}

// connect builds a bus client from config and flags and verifies the
// backend is reachable.
func connect(cmd *cobra.Command) (*statebus.Client, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, err
	}
	if redisURL != "" {
		cfg.RedisURL = redisURL
	}

	opts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("invalid Redis URL %q: %w", cfg.RedisURL, err)
	}

	client := statebus.NewClient(opts, cfg.Rules)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx); err != nil {
		client.Close()
		return nil, printer.Error(
			"Redis connection failed",
			fmt.Sprintf("Could not reach the state bus at %s.", cfg.RedisURL),
			[]string{
				"Check that Redis is running",
				"Point at the right backend with --redis or redis_url in banter.yml",
			},
		)
	}

	return client, nil
}
