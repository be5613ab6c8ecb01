// config is the package containing configuration for servicereload.
// The configuration is read once, at startup, from flags and the
// environment, and is not changed afterwards.
package config

import (
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/go-viper/mapstructure/v2"
	"github.com/pkg/errors"
	"github.com/spf13/viper"
)

const (
	LogFormatFmt  = "fmt"
	LogFormatJSON = "json"
)

type Config struct {
	PruneImages      bool   `mapstructure:"pruneImages"`
	PruneContainers  bool   `mapstructure:"pruneContainers"`
	Registry         string `mapstructure:"registry"`
	RegistryUser     string `mapstructure:"registryUser"`
	RegistryPassword string `mapstructure:"registryPassword"`
	Verbose          bool   `mapstructure:"verbose"`
	// IntervalSeconds is the pause between one tick's dispatch and the
	// next tick.
	IntervalSeconds int `mapstructure:"interval"`

	LogFormat     string `mapstructure:"logFormat"`
	ListenMetrics string `mapstructure:"listenMetrics"`

	Docker         string        `mapstructure:"docker"`
	CommandTimeout time.Duration `mapstructure:"commandTimeout"`

	RegistryRPS   float64 `mapstructure:"registryRps"`
	RegistryBurst int     `mapstructure:"registryBurst"`
}

// Load reads the configuration out of v, which is expected to have
// flags and environment variables bound to it already.
func Load(v *viper.Viper) (Config, error) {
	var c Config
	err := v.Unmarshal(&c, viper.DecodeHook(mapstructure.ComposeDecodeHookFunc(
		stringToBoolHook,
		mapstructure.StringToTimeDurationHookFunc(),
	)))
	if err != nil {
		return Config{}, errors.Wrap(err, "reading configuration")
	}
	return c, c.Validate()
}

func (c Config) Validate() error {
	if c.IntervalSeconds < 1 {
		return fmt.Errorf("interval must be at least one second, got %d", c.IntervalSeconds)
	}
	switch c.LogFormat {
	case LogFormatFmt, LogFormatJSON:
	default:
		return fmt.Errorf("unknown log format %q", c.LogFormat)
	}
	if c.Docker == "" {
		return errors.New("no docker binary given")
	}
	if c.RegistryRPS <= 0 || c.RegistryBurst < 1 {
		return fmt.Errorf("registry rate limit must be positive, got %v rps with a burst of %d", c.RegistryRPS, c.RegistryBurst)
	}
	return nil
}

func (c Config) Interval() time.Duration {
	return time.Duration(c.IntervalSeconds) * time.Second
}

// HasRegistryCredentials says whether a user was given to log in with.
func (c Config) HasRegistryCredentials() bool {
	return c.RegistryUser != ""
}

// Keyvals gives the configuration as logging key/value pairs, with the
// password blanked out.
func (c Config) Keyvals() []interface{} {
	password := ""
	if c.RegistryPassword != "" {
		password = "<redacted>"
	}
	return []interface{}{
		"pruneImages", c.PruneImages,
		"pruneContainers", c.PruneContainers,
		"registry", c.Registry,
		"registryUser", c.RegistryUser,
		"registryPassword", password,
		"verbose", c.Verbose,
		"interval", c.Interval(),
		"docker", c.Docker,
		"commandTimeout", c.CommandTimeout,
		"registryRps", c.RegistryRPS,
		"registryBurst", c.RegistryBurst,
	}
}

// IsTrue is how switches given in the environment are read: "true",
// in any case, is true and everything else is false.
func IsTrue(s string) bool {
	return strings.EqualFold(strings.TrimSpace(s), "true")
}

func stringToBoolHook(f reflect.Type, t reflect.Type, data interface{}) (interface{}, error) {
	if f.Kind() != reflect.String || t.Kind() != reflect.Bool {
		return data, nil
	}
	return IsTrue(reflect.ValueOf(data).String()), nil
}
