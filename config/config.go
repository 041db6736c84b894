// Package config loads the tool configuration from the environment.
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"

	"github.com/ez-pie/ez-workspace/kubernetes"
)

// DefaultEnvFile is read when present. Variables already set in the process win.
const DefaultEnvFile = ".env"

type Config struct {
	// Kubeconfig is the kubeconfig path used outside the cluster.
	Kubeconfig string `env:"KUBECONFIG"`
	// Mode PRODUCTION selects the in-cluster config.
	Mode string `env:"DEV_MODE" envDefault:"DEVELOPMENT"`

	// DatabaseDSN enables the deployment ledger when set.
	DatabaseDSN string `env:"EZ_DATABASE_DSN"`
	ListenAddr  string `env:"EZ_LISTEN_ADDR" envDefault:":8080"`

	FrontDoorPort     int32 `env:"EZ_FRONTDOOR_PORT" envDefault:"28543"`
	EditorPort        int32 `env:"EZ_EDITOR_PORT" envDefault:"28544"`
	CollaborationPort int32 `env:"EZ_COLLABORATION_PORT" envDefault:"28545"`

	ApplyTimeout time.Duration `env:"EZ_APPLY_TIMEOUT" envDefault:"10m"`
}

// Load reads envFile, if it exists, and parses the environment.
func Load(envFile string) (*Config, error) {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !os.IsNotExist(err) {
			return nil, fmt.Errorf("load env file %q: %w", envFile, err)
		}
	}

	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("parse environment: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	for name, port := range map[string]int32{
		"EZ_FRONTDOOR_PORT":     c.FrontDoorPort,
		"EZ_EDITOR_PORT":        c.EditorPort,
		"EZ_COLLABORATION_PORT": c.CollaborationPort,
	} {
		if port < 1 || port > 65535 {
			return fmt.Errorf("invalid configuration: %s=%d is not a port", name, port)
		}
	}
	if c.ApplyTimeout <= 0 {
		return fmt.Errorf("invalid configuration: EZ_APPLY_TIMEOUT must be positive")
	}
	return nil
}

// Settings are the role ports threaded into composition.
func (c *Config) Settings() kubernetes.Settings {
	return kubernetes.Settings{
		FrontDoorPort:     c.FrontDoorPort,
		EditorPort:        c.EditorPort,
		CollaborationPort: c.CollaborationPort,
	}
}

func (c *Config) ClientOptions() kubernetes.ClientOptions {
	return kubernetes.ClientOptions{Mode: c.Mode, Kubeconfig: c.Kubeconfig}
}
