package main

import (
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/fluxcd/servicereload/pkg/config"
)

// defineConfigFlags defines the flags that make up config.Config. Each
// flag is bound ("bound" in the viper sense) to the config field, and
// to an environment variable named after the flag, e.g., --prune-images
// and PRUNE_IMAGES. A flag given on the command line wins over the
// environment.
func defineConfigFlags(fs *pflag.FlagSet, v *viper.Viper, bail func(error)) {

	bind := func(fieldName, flagName string) error {
		configStruct := reflect.TypeOf(config.Config{})
		field, ok := configStruct.FieldByName(fieldName)
		if !ok {
			return fmt.Errorf("attempt to bind a flag to a field not present in config.Config, %q", fieldName)
		}
		// this parallels the logic in mapstructure, except that we
		// want to bail if a field is marked ignore, like this:
		// `mapstructure:"-"`
		mappedName := field.Name
		if namePart := strings.Split(field.Tag.Get("mapstructure"), ",")[0]; namePart != "" {
			if namePart == "-" {
				return fmt.Errorf(`attempt to bind a flag to a config field tagged as ignored, %q`, field.Name)
			}
			mappedName = namePart
		}
		if err := v.BindPFlag(mappedName, fs.Lookup(flagName)); err != nil {
			return err
		}
		return v.BindEnv(mappedName, envName(flagName))
	}

	bindOrBail := func(fieldName, flagName string) {
		if err := bind(fieldName, flagName); err != nil {
			bail(err)
		}
	}

	defineString := func(fieldName, flagName, def, desc string) {
		fs.String(flagName, def, desc)
		bindOrBail(fieldName, flagName)
	}

	defineBool := func(fieldName, flagName string, def bool, desc string) {
		fs.Bool(flagName, def, desc)
		bindOrBail(fieldName, flagName)
	}

	defineInt := func(fieldName, flagName string, def int, desc string) {
		fs.Int(flagName, def, desc)
		bindOrBail(fieldName, flagName)
	}

	defineFloat64 := func(fieldName, flagName string, def float64, desc string) {
		fs.Float64(flagName, def, desc)
		bindOrBail(fieldName, flagName)
	}

	defineDuration := func(fieldName, flagName string, def time.Duration, desc string) {
		fs.Duration(flagName, def, desc)
		bindOrBail(fieldName, flagName)
	}

	// watching
	defineInt("IntervalSeconds", "interval", 30, "seconds to wait after checking services before checking again")
	defineBool("PruneContainers", "prune-containers", false, "remove stopped containers after a service has been updated")
	defineBool("PruneImages", "prune-images", false, "remove dangling images after a service has been updated")
	defineBool("Verbose", "verbose", false, "log every image check, not only the updates")

	// registry
	defineString("Registry", "registry", "", "registry to log in to at startup; empty means the docker default")
	defineString("RegistryUser", "registry-user", "", "username for the registry login")
	defineString("RegistryPassword", "registry-password", "", "password for the registry login; prefer setting REGISTRY_PASSWORD over the flag")
	defineFloat64("RegistryRPS", "registry-rps", 10, "maximum image pulls per second per registry host")
	defineInt("RegistryBurst", "registry-burst", 5, "maximum burst of image pulls per registry host")

	// mechanics
	defineString("Docker", "docker", "docker", "docker binary to run")
	defineDuration("CommandTimeout", "command-timeout", 5*time.Minute, "duration after which a docker command is abandoned")
	defineString("LogFormat", "log-format", config.LogFormatFmt, fmt.Sprintf("log format (one of {%s,%s})", config.LogFormatFmt, config.LogFormatJSON))
	defineString("ListenMetrics", "listen-metrics", "", "listen address for the /metrics endpoint; empty to disable")
}

// envName gives the environment variable that goes with a flag.
func envName(flagName string) string {
	return strings.ToUpper(strings.Replace(flagName, "-", "_", -1))
}
