// Copyright (C) 2024, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package config loads node settings from flags, environment and an
// optional config file.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/ava-labs/avalanchego/utils/logging"
	"github.com/ava-labs/avalanchego/utils/units"
	"github.com/spf13/viper"

	"github.com/ava-labs/hypersdk/codec"
	"github.com/ava-labs/hypersdk/x/operatorfilter/addresses"
	"github.com/ava-labs/hypersdk/x/operatorfilter/registry"
)

const (
	EnvPrefix = "OPERATORFILTER"

	ListenAddressKey         = "listen-address"
	DataDirKey               = "data-dir"
	LogLevelKey              = "log-level"
	AdminKey                 = "admin"
	CodeHashCacheSizeKey     = "code-hash-cache-size"
	EventBufferSizeKey       = "event-buffer-size"
	MaxRequestBodySizeKey    = "max-request-body-size"
	ReplayWindowKey          = "replay-window"
	MaxBatchSizeKey          = "max-batch-size"
	MaxFilteredOperatorsKey  = "max-filtered-operators"
	MaxFilteredCodeHashesKey = "max-filtered-code-hashes"
	MaxSubscribersKey        = "max-subscribers"
	OwnersKey                = "owners"
)

var ErrInvalidConfig = errors.New("invalid config")

type Config struct {
	ListenAddress      string `mapstructure:"listen-address"`
	DataDir            string `mapstructure:"data-dir"`
	LogLevel           string `mapstructure:"log-level"`
	Admin              string `mapstructure:"admin"`
	CodeHashCacheSize  int    `mapstructure:"code-hash-cache-size"`
	EventBufferSize    int    `mapstructure:"event-buffer-size"`
	MaxRequestBodySize int64  `mapstructure:"max-request-body-size"`

	// ReplayWindow bounds the age of a signed request's nonce
	ReplayWindow time.Duration `mapstructure:"replay-window"`

	MaxBatchSize          int `mapstructure:"max-batch-size"`
	MaxFilteredOperators  int `mapstructure:"max-filtered-operators"`
	MaxFilteredCodeHashes int `mapstructure:"max-filtered-code-hashes"`
	MaxSubscribers        int `mapstructure:"max-subscribers"`

	// Owners maps registrants to an account that may act for them
	Owners map[string]string `mapstructure:"owners"`
}

// SetDefaults registers the default of every key on v
func SetDefaults(v *viper.Viper) {
	limits := registry.DefaultLimits()

	v.SetDefault(ListenAddressKey, "127.0.0.1:9650")
	v.SetDefault(DataDirKey, ".operatorfilter")
	v.SetDefault(LogLevelKey, logging.Info.String())
	v.SetDefault(AdminKey, "")
	v.SetDefault(CodeHashCacheSizeKey, 4*units.MiB)
	v.SetDefault(EventBufferSizeKey, 256)
	v.SetDefault(MaxRequestBodySizeKey, units.MiB)
	v.SetDefault(ReplayWindowKey, time.Minute)
	v.SetDefault(MaxBatchSizeKey, limits.MaxBatchSize)
	v.SetDefault(MaxFilteredOperatorsKey, limits.MaxFilteredOperators)
	v.SetDefault(MaxFilteredCodeHashesKey, limits.MaxFilteredCodeHashes)
	v.SetDefault(MaxSubscribersKey, limits.MaxSubscribers)
}

// Load reads the config file at path, if any, overlays OPERATORFILTER_*
// environment variables and returns the validated result. Flags bound to v
// take precedence over both.
func Load(v *viper.Viper, path string) (*Config, error) {
	SetDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config %s: %w", path, err)
		}
	}

	c := &Config{}
	if err := v.Unmarshal(c); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	if err := c.Verify(); err != nil {
		return nil, err
	}
	return c, nil
}

func (c *Config) Verify() error {
	if c.ListenAddress == "" {
		return fmt.Errorf("%w: %s is required", ErrInvalidConfig, ListenAddressKey)
	}
	if _, err := logging.ToLevel(c.LogLevel); err != nil {
		return fmt.Errorf("%w: %s: %w", ErrInvalidConfig, LogLevelKey, err)
	}
	if _, err := c.AdminAddress(); err != nil {
		return fmt.Errorf("%w: %s: %w", ErrInvalidConfig, AdminKey, err)
	}
	for key, value := range map[string]int{
		CodeHashCacheSizeKey:     c.CodeHashCacheSize,
		EventBufferSizeKey:       c.EventBufferSize,
		MaxBatchSizeKey:          c.MaxBatchSize,
		MaxFilteredOperatorsKey:  c.MaxFilteredOperators,
		MaxFilteredCodeHashesKey: c.MaxFilteredCodeHashes,
		MaxSubscribersKey:        c.MaxSubscribers,
	} {
		if value <= 0 {
			return fmt.Errorf("%w: %s must be positive", ErrInvalidConfig, key)
		}
	}
	if c.MaxRequestBodySize <= 0 {
		return fmt.Errorf("%w: %s must be positive", ErrInvalidConfig, MaxRequestBodySizeKey)
	}
	if c.ReplayWindow <= 0 {
		return fmt.Errorf("%w: %s must be positive", ErrInvalidConfig, ReplayWindowKey)
	}
	if _, err := c.RegistrantOwners(); err != nil {
		return fmt.Errorf("%w: %s: %w", ErrInvalidConfig, OwnersKey, err)
	}
	if len(c.Owners) > 0 && c.Admin == "" {
		return fmt.Errorf("%w: %s requires %s", ErrInvalidConfig, OwnersKey, AdminKey)
	}
	return nil
}

// AdminAddress returns the registry administrator. Empty means none.
func (c *Config) AdminAddress() (codec.Address, error) {
	if c.Admin == "" {
		return codec.EmptyAddress, nil
	}
	return addresses.Parse(c.Admin)
}

// RegistrantOwners decodes Owners
func (c *Config) RegistrantOwners() (map[codec.Address]codec.Address, error) {
	owners := make(map[codec.Address]codec.Address, len(c.Owners))
	for registrant, owner := range c.Owners {
		r, err := addresses.Parse(registrant)
		if err != nil {
			return nil, err
		}
		o, err := addresses.Parse(owner)
		if err != nil {
			return nil, err
		}
		owners[r] = o
	}
	return owners, nil
}

func (c *Config) Limits() registry.Limits {
	return registry.Limits{
		MaxBatchSize:          c.MaxBatchSize,
		MaxFilteredOperators:  c.MaxFilteredOperators,
		MaxFilteredCodeHashes: c.MaxFilteredCodeHashes,
		MaxSubscribers:        c.MaxSubscribers,
	}
}

// Logger builds a console logger at the configured level
func (c *Config) Logger() (logging.Logger, error) {
	level, err := logging.ToLevel(c.LogLevel)
	if err != nil {
		return nil, err
	}
	core := logging.NewWrappedCore(level, os.Stderr, logging.Colors.ConsoleEncoder())
	return logging.NewLogger("operatorfilter", core), nil
}
