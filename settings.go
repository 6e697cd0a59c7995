package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"
	"github.com/urfave/cli/v3"
)

// envPrefix namespaces every environment override, e.g. MERGEGAME_PORT.
const envPrefix = "MERGEGAME"

// settings is the resolved runtime configuration. Precedence, highest first:
// command line flag, MERGEGAME_* environment, settings file, flag default.
type settings struct {
	Host          string
	Port          int
	ConfigDir     string
	DBPath        string
	NatsURL       string
	NatsPrefix    string
	SessionTTL    time.Duration
	CleanupPeriod time.Duration
	Debug         bool
	Ngrok         bool
	NgrokAuth     string
	NgrokDomain   string
}

func (s settings) addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

func globalFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{Name: "host", Value: "localhost", Usage: "HTTP server host"},
		&cli.IntFlag{Name: "port", Value: 8080, Usage: "HTTP server port"},
		&cli.StringFlag{Name: "config-dir", Value: "configs", Usage: "directory containing game configurations", Sources: cli.EnvVars("CONFIG_DIR")},
		&cli.StringFlag{Name: "db", Usage: "SQLite file for the leaderboard (in-memory when empty)"},
		&cli.StringFlag{Name: "nats-url", Usage: "NATS server to publish game events to (disabled when empty)"},
		&cli.StringFlag{Name: "nats-prefix", Value: "mergegame.sessions", Usage: "subject prefix for published events"},
		&cli.DurationFlag{Name: "session-ttl", Value: 24 * time.Hour, Usage: "drop sessions idle for longer than this"},
		&cli.DurationFlag{Name: "cleanup-interval", Value: time.Hour, Usage: "how often idle sessions are swept"},
		&cli.StringFlag{Name: "settings", Usage: "optional settings file (yaml, json or toml)"},
		&cli.BoolFlag{Name: "debug", Usage: "enable debug logging"},
		&cli.BoolFlag{Name: "ngrok", Usage: "expose the server through an ngrok tunnel", Sources: cli.EnvVars("NGROK_ENABLED")},
		&cli.StringFlag{Name: "ngrok-auth", Usage: "ngrok auth token", Sources: cli.EnvVars("NGROK_AUTHTOKEN", "NGROK_AUTH_TOKEN")},
		&cli.StringFlag{Name: "ngrok-domain", Usage: "custom ngrok domain", Sources: cli.EnvVars("NGROK_DOMAIN")},
	}
}

// loadSettings layers flags over viper's environment and file sources.
func loadSettings(cmd *cli.Command) (settings, error) {
	v := viper.New()
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	v.SetDefault("host", cmd.String("host"))
	v.SetDefault("port", cmd.Int("port"))
	v.SetDefault("config-dir", cmd.String("config-dir"))
	v.SetDefault("db", cmd.String("db"))
	v.SetDefault("nats-url", cmd.String("nats-url"))
	v.SetDefault("nats-prefix", cmd.String("nats-prefix"))
	v.SetDefault("session-ttl", cmd.Duration("session-ttl"))
	v.SetDefault("cleanup-interval", cmd.Duration("cleanup-interval"))
	v.SetDefault("debug", cmd.Bool("debug"))
	v.SetDefault("ngrok", cmd.Bool("ngrok"))
	v.SetDefault("ngrok-auth", cmd.String("ngrok-auth"))
	v.SetDefault("ngrok-domain", cmd.String("ngrok-domain"))

	if file := cmd.String("settings"); file != "" {
		v.SetConfigFile(file)
		if err := v.ReadInConfig(); err != nil {
			return settings{}, fmt.Errorf("read settings %s: %w", file, err)
		}
	} else {
		v.SetConfigName("mergegame")
		v.AddConfigPath(".")
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return settings{}, fmt.Errorf("read settings: %w", err)
			}
		}
	}

	for _, name := range []string{"host", "config-dir", "db", "nats-url", "nats-prefix", "ngrok-auth", "ngrok-domain"} {
		if cmd.IsSet(name) {
			v.Set(name, cmd.String(name))
		}
	}
	if cmd.IsSet("port") {
		v.Set("port", cmd.Int("port"))
	}
	for _, name := range []string{"session-ttl", "cleanup-interval"} {
		if cmd.IsSet(name) {
			v.Set(name, cmd.Duration(name))
		}
	}
	for _, name := range []string{"debug", "ngrok"} {
		if cmd.IsSet(name) {
			v.Set(name, cmd.Bool(name))
		}
	}

	s := settings{
		Host:          v.GetString("host"),
		Port:          v.GetInt("port"),
		ConfigDir:     v.GetString("config-dir"),
		DBPath:        v.GetString("db"),
		NatsURL:       v.GetString("nats-url"),
		NatsPrefix:    v.GetString("nats-prefix"),
		SessionTTL:    v.GetDuration("session-ttl"),
		CleanupPeriod: v.GetDuration("cleanup-interval"),
		Debug:         v.GetBool("debug"),
		Ngrok:         v.GetBool("ngrok"),
		NgrokAuth:     v.GetString("ngrok-auth"),
		NgrokDomain:   v.GetString("ngrok-domain"),
	}
	if s.Port < 0 || s.Port > 65535 {
		return settings{}, fmt.Errorf("invalid port %d", s.Port)
	}
	if s.SessionTTL <= 0 {
		return settings{}, fmt.Errorf("session ttl must be positive, got %s", s.SessionTTL)
	}
	if s.CleanupPeriod <= 0 {
		return settings{}, fmt.Errorf("cleanup interval must be positive, got %s", s.CleanupPeriod)
	}
	return s, nil
}

// loadDotEnv reads .env when present.
func loadDotEnv() {
	if err := godotenv.Load(); err != nil {
		if !os.IsNotExist(err) {
			log.Warn().Err(err).Msg("error loading .env file")
		}
		return
	}
	log.Debug().Msg("loaded environment from .env")
}

// setupLogging writes human readable logs to stderr so stdout stays free
// for the MCP stdio protocol.
func setupLogging(ctx context.Context, cmd *cli.Command) (context.Context, error) {
	zerolog.SetGlobalLevel(zerolog.InfoLevel)
	if cmd.Bool("debug") || os.Getenv(envPrefix+"_DEBUG") == "true" {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	}
	log.Logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen}).
		With().Timestamp().Logger()
	return ctx, nil
}
