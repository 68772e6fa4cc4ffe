package authz

import (
	"path/filepath"

	"github.com/sirupsen/logrus"

	"github.com/iota-uz/tenantcrud/pkg/configuration"
)

// Config captures all inputs necessary to initialize the Casbin enforcer.
type Config struct {
	ModelPath    string
	PolicyPath   string
	FlagPath     string
	FlagMode     Mode
	Logger       *logrus.Logger
	FlagProvider FlagProvider
}

func (c Config) validate() error {
	if c.ModelPath == "" {
		return configError("missing model path")
	}
	if c.PolicyPath == "" {
		return configError("missing policy path")
	}
	if c.FlagPath == "" && c.FlagProvider == nil {
		return configError("missing flag configuration path")
	}
	return nil
}

func (c Config) normalized() Config {
	c.ModelPath = filepath.Clean(c.ModelPath)
	c.PolicyPath = filepath.Clean(c.PolicyPath)
	if c.FlagPath != "" {
		c.FlagPath = filepath.Clean(c.FlagPath)
	}
	return c
}

// ConfigFrom builds a Config from loaded configuration. AUTHZ_MODE is the
// fallback used while the flag file cannot be read.
func ConfigFrom(conf *configuration.Configuration) Config {
	return Config{
		ModelPath:  conf.Authz.ModelPath,
		PolicyPath: conf.Authz.PolicyPath,
		FlagPath:   conf.Authz.FlagConfigPath,
		FlagMode:   sanitizeMode(Mode(conf.Authz.Mode)),
		Logger:     conf.Logger(),
	}
}

// DefaultConfig builds a Config using the global configuration singleton.
func DefaultConfig() Config {
	return ConfigFrom(configuration.Use())
}
