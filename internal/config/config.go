// Package config loads auditor settings.
//
// Sources are applied in order, later ones winning: built-in defaults, an
// optional YAML file, then AUDITOR_* environment variables. Environment keys
// map onto dotted paths, so AUDITOR_QUERY_ADDRESS sets query.address.
// List values are comma separated.
package config

import (
	"errors"
	"fmt"
	"net"
	"os"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"

	"github.com/ryandielhenn/auditor/internal/logging"
)

const EnvPrefix = "AUDITOR_"

var ErrNotMulticast = errors.New("multicast address is not a multicast group")

type Config struct {
	Node      NodeConfig      `koanf:"node"`
	Multicast MulticastConfig `koanf:"multicast"`
	Query     QueryConfig     `koanf:"query"`
	HTTP      HTTPConfig      `koanf:"http"`
	Log       logging.Config  `koanf:"log"`
	Etcd      EtcdConfig      `koanf:"etcd"`
}

type NodeConfig struct {
	ID string `koanf:"id" validate:"required,max=128"`
	// Advertise is the query address published to etcd. Empty means the
	// query listen address.
	Advertise string `koanf:"advertise"`
}

type MulticastConfig struct {
	Address string `koanf:"address" validate:"required,hostname_port"`
	// Buffer is the largest datagram accepted, in bytes.
	Buffer int `koanf:"buffer" validate:"min=512,max=65536"`
}

type QueryConfig struct {
	Address string        `koanf:"address" validate:"required,hostname_port"`
	Timeout time.Duration `koanf:"timeout" validate:"min=0"`
}

type HTTPConfig struct {
	// Address of the admin endpoints. Empty disables them.
	Address string `koanf:"address" validate:"omitempty,hostname_port"`
}

type EtcdConfig struct {
	// Endpoints of the etcd cluster. Empty disables registration.
	Endpoints []string `koanf:"endpoints" validate:"dive,required"`
	// TTL is the registration lease in seconds.
	TTL int64 `koanf:"ttl" validate:"min=1"`
}

// Default returns the settings used when nothing overrides them.
func Default() Config {
	id, err := os.Hostname()
	if err != nil || id == "" {
		id = "auditor"
	}
	return Config{
		Node: NodeConfig{ID: id},
		Multicast: MulticastConfig{
			Address: "239.255.22.5:9907",
			Buffer:  65536,
		},
		Query: QueryConfig{
			Address: "0.0.0.0:2205",
			Timeout: 2 * time.Second,
		},
		HTTP: HTTPConfig{Address: "0.0.0.0:8080"},
		Log:  logging.DefaultConfig(),
		Etcd: EtcdConfig{TTL: 10},
	}
}

// Load reads path (if not empty) and the environment on top of Default,
// then validates the result.
func Load(path string) (Config, error) {
	cfg := Default()
	k := koanf.New(".")

	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return Config{}, fmt.Errorf("load config file %s: %w", path, err)
		}
	}

	if err := k.Load(env.ProviderWithValue(EnvPrefix, ".", envValue), nil); err != nil {
		return Config{}, fmt.Errorf("load env: %w", err)
	}

	if err := k.Unmarshal("", &cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// AUDITOR_ETCD_ENDPOINTS=a:2379,b:2379 -> etcd.endpoints = [a:2379 b:2379]
func envValue(key, value string) (string, any) {
	key = strings.ToLower(strings.TrimPrefix(key, EnvPrefix))
	key = strings.ReplaceAll(key, "_", ".")
	if key == "etcd.endpoints" {
		var out []string
		for _, v := range strings.Split(value, ",") {
			if v = strings.TrimSpace(v); v != "" {
				out = append(out, v)
			}
		}
		return key, out
	}
	return key, value
}

var validate = validator.New()

// Validate checks field constraints and that the multicast address names a
// multicast group.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	host, _, err := net.SplitHostPort(c.Multicast.Address)
	if err != nil {
		return fmt.Errorf("invalid config: multicast.address: %w", err)
	}
	if ip := net.ParseIP(host); ip == nil || !ip.IsMulticast() {
		return fmt.Errorf("invalid config: %w: %s", ErrNotMulticast, c.Multicast.Address)
	}
	return nil
}

// AdvertiseAddr is the query address other processes should dial.
func (c *Config) AdvertiseAddr() string {
	if c.Node.Advertise != "" {
		return c.Node.Advertise
	}
	return c.Query.Address
}
