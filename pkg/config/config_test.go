package config

import (
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func valid() Config {
	return Config{
		IntervalSeconds: 30,
		LogFormat:       LogFormatFmt,
		Docker:          "docker",
		RegistryRPS:     10,
		RegistryBurst:   5,
	}
}

func TestValidate(t *testing.T) {
	assert.NoError(t, valid().Validate())

	for name, mutate := range map[string]func(*Config){
		"zero interval": func(c *Config) { c.IntervalSeconds = 0 },
		"log format":    func(c *Config) { c.LogFormat = "xml" },
		"no docker":     func(c *Config) { c.Docker = "" },
		"no rps":        func(c *Config) { c.RegistryRPS = 0 },
		"no burst":      func(c *Config) { c.RegistryBurst = 0 },
	} {
		c := valid()
		mutate(&c)
		assert.Error(t, c.Validate(), name)
	}
}

func TestIsTrue(t *testing.T) {
	for _, s := range []string{"true", "TRUE", "True", " tRuE "} {
		assert.True(t, IsTrue(s), s)
	}
	for _, s := range []string{"", "1", "yes", "false", "truthy"} {
		assert.False(t, IsTrue(s), s)
	}
}

func TestLoadDecodesStringSwitches(t *testing.T) {
	v := viper.New()
	v.Set("pruneImages", "TRUE")
	v.Set("pruneContainers", "on")
	v.Set("verbose", true)
	v.Set("interval", "12")
	v.Set("logFormat", LogFormatJSON)
	v.Set("docker", "/usr/bin/docker")
	v.Set("commandTimeout", "90s")
	v.Set("registryRps", 1.5)
	v.Set("registryBurst", 2)

	c, err := Load(v)
	require.NoError(t, err)
	assert.True(t, c.PruneImages)
	assert.False(t, c.PruneContainers)
	assert.True(t, c.Verbose)
	assert.Equal(t, 12*time.Second, c.Interval())
	assert.Equal(t, 90*time.Second, c.CommandTimeout)
}

func TestKeyvalsRedactsPassword(t *testing.T) {
	c := valid()
	c.RegistryUser = "bot"
	c.RegistryPassword = "s3cret"
	assert.True(t, c.HasRegistryCredentials())
	for _, kv := range c.Keyvals() {
		assert.NotEqual(t, "s3cret", kv)
	}
}
