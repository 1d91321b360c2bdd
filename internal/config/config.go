package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// Store drivers.
const (
	DriverPostgres = "postgres"
	DriverMemory   = "memory"
)

// Config holds application configuration loaded from environment variables.
type Config struct {
	Port                int           `envconfig:"PORT" default:"8080"`
	LogLevel            string        `envconfig:"LOG_LEVEL" default:"info"`
	DatabaseURL         string        `envconfig:"DATABASE_URL"`
	StoreDriver         string        `envconfig:"STORE_DRIVER" default:"postgres"`
	Version             string        `envconfig:"VERSION" default:"dev"`
	BcryptCost          int           `envconfig:"BCRYPT_COST" default:"12"`
	SessionSecret       string        `envconfig:"SESSION_SECRET" required:"true"`
	SessionTTL          time.Duration `envconfig:"SESSION_TTL" default:"12h"`
	NotifyURL           string        `envconfig:"NOTIFY_URL"`
	NotifyTimeout       time.Duration `envconfig:"NOTIFY_TIMEOUT" default:"10s"`
	InvitationTTL       time.Duration `envconfig:"INVITATION_TTL" default:"168h"`
	UnmappedActions     string        `envconfig:"UNMAPPED_ACTIONS" default:"deny"`
	BootstrapAdminEmail string        `envconfig:"BOOTSTRAP_ADMIN_EMAIL"`
}

// AllowUnmapped reports whether actions missing from the capability table
// are let through.
func (c *Config) AllowUnmapped() bool {
	return c.UnmappedActions == "allow"
}

// Load reads configuration from environment variables into a Config struct.
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, err
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	switch c.StoreDriver {
	case DriverPostgres:
		if c.DatabaseURL == "" {
			return errors.New("DATABASE_URL is required when STORE_DRIVER is postgres")
		}
	case DriverMemory:
	default:
		return fmt.Errorf("unknown STORE_DRIVER %q", c.StoreDriver)
	}

	switch c.UnmappedActions {
	case "allow", "deny":
	default:
		return fmt.Errorf("UNMAPPED_ACTIONS must be allow or deny, got %q", c.UnmappedActions)
	}

	if c.SessionTTL <= 0 || c.InvitationTTL <= 0 || c.NotifyTimeout <= 0 {
		return errors.New("SESSION_TTL, INVITATION_TTL and NOTIFY_TIMEOUT must be positive")
	}
	return nil
}
