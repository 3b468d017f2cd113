package config

import (
	"bytes"
	"strings"

	"github.com/fatih/structs"
	"github.com/jeremywohl/flatten"
	"github.com/pkg/errors"
	"github.com/spf13/viper"
)

// Options controls where Load looks for configuration.
type Options struct {
	// Paths are searched in order for a file named Name with a yaml extension.
	Paths []string
	// Name defaults to "config".
	Name string
	// EnvPrefix, when set, is prepended to every environment key (PREFIX_REGISTRY_URL).
	EnvPrefix string
	// Embedded is used when no file is found on disk.
	Embedded []byte
}

// ParseConfig loads T from config.yaml in one of configFilePaths, with no embedded fallback.
func ParseConfig[T any](configFilePaths []string) (*T, error) {
	return ParseConfigWithEmbedded[T](configFilePaths, nil)
}

// ParseConfigWithEmbedded tries to load config from disk,
// and if the file is NOT found, falls back to embeddedYAML (if provided).
func ParseConfigWithEmbedded[T any](configFilePaths []string, embeddedYAML []byte) (*T, error) {
	return Load[T](Options{Paths: configFilePaths, Embedded: embeddedYAML})
}

// Load reads T with a private viper instance so repeated loads never share state.
// Environment variables override file values: nested key registry.url maps to REGISTRY_URL.
func Load[T any](opts Options) (*T, error) {
	v := viper.New()
	for _, p := range opts.Paths {
		v.AddConfigPath(p)
	}

	name := opts.Name
	if name == "" {
		name = "config"
	}
	v.SetConfigName(name)
	v.SetConfigType("yaml")

	if opts.EnvPrefix != "" {
		v.SetEnvPrefix(opts.EnvPrefix)
	}
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := bindAllConfigKeys[T](v); err != nil {
		return nil, err
	}

	if err := v.ReadInConfig(); err != nil {
		var nfErr viper.ConfigFileNotFoundError
		if !errors.As(err, &nfErr) || len(opts.Embedded) == 0 {
			return nil, errors.Wrap(err, "failed to read config")
		}
		if err := v.ReadConfig(bytes.NewReader(opts.Embedded)); err != nil {
			return nil, errors.Wrap(err, "failed to load embedded default config")
		}
	}

	c := new(T)
	if err := v.Unmarshal(c); err != nil {
		return nil, errors.Wrap(err, "unable to decode into struct")
	}
	return c, nil
}

// Workaround for major viper issue with env variables, documented here
// https://github.com/spf13/viper/issues/761
func bindAllConfigKeys[T any](v *viper.Viper) error {
	var cd T
	confMap := structs.Map(cd)

	flat, err := flatten.Flatten(confMap, "", flatten.DotStyle)
	if err != nil {
		return errors.Wrap(err, "unable to flatten config")
	}

	for key := range flat {
		if err := v.BindEnv(key); err != nil {
			return errors.Wrapf(err, "unable to bind env var: %s", key)
		}
	}
	return nil
}
